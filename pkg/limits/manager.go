package limits

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"mercator-hq/tollgate/pkg/limits/bucket"
)

// Manager is a registry of named token buckets.
//
// The Manager exclusively owns every bucket it holds. Reads return value
// copies (bucket.State), never the bucket itself.
//
// # Example
//
//	manager := limits.NewManager(limits.Config{})
//	_ = manager.CreateBucket("agent-1", 100, 10)
//
//	ok, err := manager.Consume("agent-1", 60)
//	if err == nil && !ok {
//	    // rate limit reached
//	}
type Manager struct {
	buckets map[string]*bucket.TokenBucket

	clock   bucket.Clock
	logger  *slog.Logger
	metrics *Metrics

	// mu guards the map structure only. Bucket state has its own lock.
	mu sync.RWMutex
}

// Config contains configuration for the limits manager.
type Config struct {
	// Clock is the time source shared by all buckets.
	// Defaults to bucket.SystemClock.
	Clock bucket.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *Metrics
}

// NewManager creates an empty registry.
func NewManager(config Config) *Manager {
	if config.Clock == nil {
		config.Clock = bucket.SystemClock{}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Manager{
		buckets: make(map[string]*bucket.TokenBucket),
		clock:   config.Clock,
		logger:  config.Logger.With("component", "limits"),
		metrics: config.Metrics,
	}
}

// CreateBucket creates a bucket whose capacity equals initialBalance.
//
// An existing bucket with the same identifier is replaced, not merged.
func (m *Manager) CreateBucket(identifier string, initialBalance, refillRate float64) error {
	return m.CreateBucketWithCapacity(identifier, bucket.Finite(initialBalance), initialBalance, refillRate)
}

// CreateBucketWithCapacity creates a bucket with an explicit capacity,
// replacing any existing bucket with the same identifier.
func (m *Manager) CreateBucketWithCapacity(identifier string, capacity bucket.Capacity, initialBalance, refillRate float64) error {
	_, err := m.PutBucket(identifier, capacity, initialBalance, refillRate)
	return err
}

// PutBucket is CreateBucketWithCapacity reporting whether a bucket with the
// same identifier was replaced. Of several concurrent puts to a new
// identifier exactly one reports false.
func (m *Manager) PutBucket(identifier string, capacity bucket.Capacity, initialBalance, refillRate float64) (replaced bool, err error) {
	if identifier == "" {
		return false, fmt.Errorf("%w: identifier must not be empty", ErrInvalidArgument)
	}

	b, err := bucket.New(capacity, initialBalance, refillRate, m.clock)
	if err != nil {
		return false, fmt.Errorf("create bucket %q: %w", identifier, err)
	}

	m.mu.Lock()
	_, replaced = m.buckets[identifier]
	m.buckets[identifier] = b
	count := len(m.buckets)
	m.mu.Unlock()

	m.metrics.UpdateBucketCount(count)
	m.observeBalance(identifier, b)

	m.logger.Debug("bucket created",
		"identifier", identifier,
		"capacity", capacity.String(),
		"balance", initialBalance,
		"refill_rate", refillRate,
		"replaced", replaced,
	)
	return replaced, nil
}

// Get returns a copy of the named bucket's state.
func (m *Manager) Get(identifier string) (bucket.State, error) {
	b := m.lookup(identifier)
	if b == nil {
		return bucket.State{}, fmt.Errorf("%w: %q", ErrNotFound, identifier)
	}
	return b.State(), nil
}

// Balance returns the current balance without refilling.
// Unlimited buckets report +Inf.
func (m *Manager) Balance(identifier string) (float64, error) {
	b := m.lookup(identifier)
	if b == nil {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, identifier)
	}
	return b.Balance(), nil
}

// Consume debits count tokens from the named bucket.
//
// An absent bucket has no budget: Consume returns false with a nil error.
// Errors are returned only for invalid counts.
func (m *Manager) Consume(identifier string, count float64) (bool, error) {
	decision, err := m.TryConsume(identifier, count)
	if err != nil {
		return false, err
	}
	return decision.Allowed, nil
}

// TryConsume is Consume with a detailed Decision, for callers that must
// tell an absent bucket from an exhausted one.
func (m *Manager) TryConsume(identifier string, count float64) (Decision, error) {
	start := time.Now()
	defer func() {
		m.metrics.RecordDuration("consume", time.Since(start).Seconds())
	}()

	b := m.lookup(identifier)
	if b == nil {
		m.metrics.RecordConsume(identifier, OutcomeNotFound)
		return Decision{Outcome: OutcomeNotFound}, nil
	}

	ok, err := b.Consume(count)
	if err != nil {
		return Decision{}, fmt.Errorf("consume from %q: %w", identifier, err)
	}

	var decision Decision
	switch {
	case b.Capacity().IsUnlimited():
		decision = Decision{Allowed: true, Outcome: OutcomeUnlimited, Balance: math.Inf(1)}
	case ok:
		decision = Decision{Allowed: true, Outcome: OutcomeAllowed, Balance: b.Balance()}
	default:
		decision = Decision{Outcome: OutcomeExhausted, Balance: b.Balance()}
		if wait, err := b.TimeUntilAvailable(count); err == nil {
			decision.RetryAfter = wait
		}
	}

	m.metrics.RecordConsume(identifier, decision.Outcome)
	m.observeBalance(identifier, b)
	return decision, nil
}

// Refill refills a single bucket.
func (m *Manager) Refill(identifier string) error {
	b := m.lookup(identifier)
	if b == nil {
		return fmt.Errorf("%w: %q", ErrNotFound, identifier)
	}
	b.Refill()
	m.observeBalance(identifier, b)
	return nil
}

// RefillAll refills every bucket and returns how many were visited.
//
// The registry lock is released before any bucket is touched, so buckets
// created or removed during the pass may or may not be visited.
func (m *Manager) RefillAll() int {
	start := time.Now()

	m.mu.RLock()
	ids := make([]string, 0, len(m.buckets))
	targets := make([]*bucket.TokenBucket, 0, len(m.buckets))
	for id, b := range m.buckets {
		ids = append(ids, id)
		targets = append(targets, b)
	}
	m.mu.RUnlock()

	for i, b := range targets {
		b.Refill()
		m.observeBalance(ids[i], b)
	}

	m.metrics.RecordRefillPass()
	m.metrics.RecordDuration("refill_all", time.Since(start).Seconds())
	return len(targets)
}

// TimeUntilAvailable returns how long until desired tokens will be
// available in the named bucket, based on its last known balance.
func (m *Manager) TimeUntilAvailable(identifier string, desired float64) (time.Duration, error) {
	b := m.lookup(identifier)
	if b == nil {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, identifier)
	}

	wait, err := b.TimeUntilAvailable(desired)
	if err != nil {
		return 0, fmt.Errorf("time until available for %q: %w", identifier, err)
	}
	return wait, nil
}

// Remove deletes the named bucket. It reports whether a bucket existed.
func (m *Manager) Remove(identifier string) bool {
	m.mu.Lock()
	_, ok := m.buckets[identifier]
	delete(m.buckets, identifier)
	count := len(m.buckets)
	m.mu.Unlock()

	if ok {
		m.metrics.UpdateBucketCount(count)
		m.metrics.DeleteBalance(identifier)
		m.logger.Debug("bucket removed", "identifier", identifier)
	}
	return ok
}

// Identifiers returns the registered identifiers in sorted order.
func (m *Manager) Identifiers() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.buckets))
	for id := range m.buckets {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Len returns the number of buckets.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.buckets)
}

// List returns a state copy of every bucket, sorted by identifier.
func (m *Manager) List() []BucketInfo {
	m.mu.RLock()
	infos := make([]BucketInfo, 0, len(m.buckets))
	targets := make([]*bucket.TokenBucket, 0, len(m.buckets))
	for id, b := range m.buckets {
		infos = append(infos, BucketInfo{Identifier: id})
		targets = append(targets, b)
	}
	m.mu.RUnlock()

	for i, b := range targets {
		infos[i].State = b.State()
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Identifier < infos[j].Identifier
	})
	return infos
}

// Reconcile applies declared bucket definitions.
//
// Missing buckets are created. Buckets whose capacity or refill rate differ
// from their spec are replaced and start again from the declared initial
// balance. Matching buckets keep their current balance. Buckets absent from
// specs are left alone.
//
// Every spec is validated before anything changes.
func (m *Manager) Reconcile(specs map[string]BucketSpec) (ReconcileResult, error) {
	built := make(map[string]*bucket.TokenBucket, len(specs))
	for id, spec := range specs {
		if id == "" {
			return ReconcileResult{}, fmt.Errorf("%w: identifier must not be empty", ErrInvalidArgument)
		}
		b, err := bucket.New(spec.Capacity, spec.InitialBalance, spec.RefillRate, m.clock)
		if err != nil {
			return ReconcileResult{}, fmt.Errorf("bucket %q: %w", id, err)
		}
		built[id] = b
	}

	ids := make([]string, 0, len(specs))
	for id := range specs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var result ReconcileResult

	m.mu.Lock()
	for _, id := range ids {
		spec := specs[id]
		existing, ok := m.buckets[id]
		switch {
		case !ok:
			m.buckets[id] = built[id]
			result.Created = append(result.Created, id)
		case existing.Capacity() != spec.Capacity || existing.RefillRate() != spec.RefillRate:
			m.buckets[id] = built[id]
			result.Replaced = append(result.Replaced, id)
		default:
			result.Unchanged = append(result.Unchanged, id)
		}
	}
	count := len(m.buckets)
	m.mu.Unlock()

	m.metrics.UpdateBucketCount(count)
	for _, ids := range [][]string{result.Created, result.Replaced} {
		for _, id := range ids {
			m.observeBalance(id, built[id])
		}
	}

	m.logger.Info("buckets reconciled",
		"created", len(result.Created),
		"replaced", len(result.Replaced),
		"unchanged", len(result.Unchanged),
	)
	return result, nil
}

// lookup returns the named bucket or nil.
func (m *Manager) lookup(identifier string) *bucket.TokenBucket {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.buckets[identifier]
}

func (m *Manager) observeBalance(identifier string, b *bucket.TokenBucket) {
	if m.metrics == nil || b.Capacity().IsUnlimited() {
		return
	}
	m.metrics.UpdateBalance(identifier, b.Balance())
}

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
