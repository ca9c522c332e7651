package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultMemoryMaxEntries is the default history size of MemoryBackend.
const DefaultMemoryMaxEntries = 100

// MemoryBackend implements Backend using in-memory storage.
// This is the default backend and provides fast access with no persistence.
// All data is lost when the process exits.
//
// MemoryBackend is thread-safe and supports concurrent access using sync.RWMutex.
type MemoryBackend struct {
	// snapshots is ordered oldest first.
	snapshots []*Snapshot

	// mu protects access to snapshots.
	mu sync.RWMutex

	// maxEntries is the maximum number of snapshots before eviction.
	maxEntries int
}

// MemoryBackendConfig configures the memory backend.
type MemoryBackendConfig struct {
	// MaxEntries is the maximum number of snapshots to keep.
	// Oldest snapshots are evicted when this limit is reached.
	// Default: 100
	MaxEntries int
}

// NewMemoryBackend creates a new in-memory storage backend with default settings.
func NewMemoryBackend() *MemoryBackend {
	return NewMemoryBackendWithConfig(MemoryBackendConfig{
		MaxEntries: DefaultMemoryMaxEntries,
	})
}

// NewMemoryBackendWithConfig creates a new in-memory backend with custom configuration.
func NewMemoryBackendWithConfig(cfg MemoryBackendConfig) *MemoryBackend {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMemoryMaxEntries
	}

	return &MemoryBackend{
		maxEntries: cfg.MaxEntries,
	}
}

// Save persists a snapshot.
func (m *MemoryBackend) Save(ctx context.Context, snapshot *Snapshot) error {
	if err := prepare(snapshot); err != nil {
		return err
	}
	stored := clone(snapshot)

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.snapshots {
		if existing.ID == stored.ID {
			m.snapshots = append(m.snapshots[:i], m.snapshots[i+1:]...)
			break
		}
	}

	if len(m.snapshots) >= m.maxEntries {
		m.evictOldestLocked()
	}

	// Keep ordering by creation time; ties keep insertion order.
	idx := sort.Search(len(m.snapshots), func(i int) bool {
		return m.snapshots[i].CreatedAt.After(stored.CreatedAt)
	})
	m.snapshots = append(m.snapshots, nil)
	copy(m.snapshots[idx+1:], m.snapshots[idx:])
	m.snapshots[idx] = stored

	return nil
}

// Latest returns the most recently created snapshot.
func (m *MemoryBackend) Latest(ctx context.Context) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.snapshots) == 0 {
		return nil, ErrNotFound
	}
	return clone(m.snapshots[len(m.snapshots)-1]), nil
}

// Get returns the snapshot with the given ID.
func (m *MemoryBackend) Get(ctx context.Context, id string) (*Snapshot, error) {
	if id == "" {
		return nil, fmt.Errorf("id cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, snapshot := range m.snapshots {
		if snapshot.ID == id {
			return clone(snapshot), nil
		}
	}
	return nil, ErrNotFound
}

// List returns up to limit snapshots, newest first.
func (m *MemoryBackend) List(ctx context.Context, limit int) ([]*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.snapshots)
	if limit > 0 && limit < n {
		n = limit
	}

	snapshots := make([]*Snapshot, 0, n)
	for i := len(m.snapshots) - 1; i >= 0 && len(snapshots) < n; i-- {
		snapshots = append(snapshots, clone(m.snapshots[i]))
	}
	return snapshots, nil
}

// Cleanup removes snapshots created before olderThan.
func (m *MemoryBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.snapshots[:0]
	deleted := 0
	for _, snapshot := range m.snapshots {
		if snapshot.CreatedAt.Before(olderThan) {
			deleted++
			continue
		}
		kept = append(kept, snapshot)
	}
	for i := len(kept); i < len(m.snapshots); i++ {
		m.snapshots[i] = nil
	}
	m.snapshots = kept

	return deleted, nil
}

// Ping always succeeds.
func (m *MemoryBackend) Ping(ctx context.Context) error {
	return nil
}

// Close releases any resources held by the backend.
func (m *MemoryBackend) Close() error {
	return nil
}

// Size returns the current number of stored snapshots.
// This is useful for monitoring and testing.
func (m *MemoryBackend) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snapshots)
}

// evictOldestLocked evicts the oldest snapshot to make room for a new one.
// Caller must hold write lock.
func (m *MemoryBackend) evictOldestLocked() {
	if len(m.snapshots) == 0 {
		return
	}
	m.snapshots[0] = nil
	m.snapshots = m.snapshots[1:]
}
