// Package storage provides persistence backends for registry snapshots.
//
// # Overview
//
// A snapshot is the serialized form of a limits.Manager together with some
// bookkeeping (ID, bucket count, creation time). Backends keep a history of
// snapshots so the latest one can be restored after a restart and old ones
// can be pruned by a retention policy.
//
//   - Memory: Bounded in-process history (default, no persistence)
//   - SQLite: File-based persistence using either modernc.org/sqlite (pure Go)
//     or github.com/mattn/go-sqlite3 (cgo)
//
// # Usage
//
//	backend, err := storage.NewSQLiteBackend("/var/lib/tollgate/snapshots.db")
//	if err != nil {
//	    return err
//	}
//	defer backend.Close()
//
//	data, _ := manager.Serialize()
//	err = backend.Save(ctx, &storage.Snapshot{Data: data, BucketCount: manager.Len()})
//
//	latest, err := backend.Latest(ctx)
//	if errors.Is(err, storage.ErrNotFound) {
//	    // nothing persisted yet
//	}
//
// # Thread Safety
//
// All storage backends are thread-safe and support concurrent access
// from multiple goroutines. Locking is handled internally by each backend.
package storage
