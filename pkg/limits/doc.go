// Package limits provides a multi-tenant token-bucket rate limiter.
//
// # Overview
//
// A Manager is a registry of independently named token buckets. Callers
// create buckets at startup, compute a cost for each unit of work (for
// example a chat turn priced by prompt and completion tokens), ask the
// manager to consume that cost from a named bucket, and either proceed or
// reject. A periodic or on-demand refill pass credits every bucket for the
// time elapsed since its last refill.
//
// # Architecture
//
// The package is organized into sub-packages:
//
//   - bucket: The single-entity token bucket, capacity variant and clocks
//   - cost: Cost functions mapping token usage to a charge
//   - storage: Snapshot persistence backends (memory, SQLite)
//   - scheduler: Cron-driven refill and snapshot jobs
//
// # Usage
//
//	manager := limits.NewManager(limits.Config{Logger: logger})
//
//	// 100 token burst, refilled at 10 tokens/sec
//	if err := manager.CreateBucket("agent-1", 100, 10); err != nil {
//	    return err
//	}
//
//	ok, err := manager.Consume("agent-1", charge)
//	if err != nil {
//	    return err
//	}
//	if !ok {
//	    return errors.New("rate limit reached")
//	}
//
// Consume never refills implicitly. Run RefillAll periodically (see the
// scheduler package) or call Refill before consuming.
//
// # Snapshots
//
// Serialize and Deserialize move the whole registry through a JSON document
// keyed by identifier. Deserialize replaces the registry atomically and
// rejects malformed input without touching existing state.
//
// # Thread Safety
//
// Locking is two-level. The registry lock guards map structure only and is
// never held while a bucket is locked for numeric work, so operations on
// different identifiers do not block each other.
package limits
