package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested snapshot does not exist.
var ErrNotFound = errors.New("snapshot not found")

// Backend defines the interface for snapshot persistence.
// Implementations must be thread-safe and support concurrent access.
type Backend interface {
	// Save persists a snapshot. An empty ID is replaced by a new UUID and a
	// zero CreatedAt by the current time. Saving an existing ID overwrites it.
	Save(ctx context.Context, snapshot *Snapshot) error

	// Latest returns the most recently created snapshot.
	// Returns ErrNotFound if no snapshot exists.
	Latest(ctx context.Context) (*Snapshot, error)

	// Get returns the snapshot with the given ID.
	// Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, id string) (*Snapshot, error)

	// List returns up to limit snapshots, newest first.
	// A non-positive limit returns all snapshots.
	List(ctx context.Context, limit int) ([]*Snapshot, error)

	// Cleanup removes snapshots created before olderThan.
	// Returns the number of snapshots deleted and any error.
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)

	// Ping checks that the backend is usable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the backend.
	// The backend should not be used after calling Close.
	Close() error
}

// Snapshot is one persisted copy of the bucket registry.
type Snapshot struct {
	// ID uniquely identifies the snapshot (UUID v4).
	ID string

	// Data is the serialized registry.
	Data []byte

	// BucketCount is the number of buckets in Data.
	BucketCount int

	// CreatedAt is when the snapshot was taken.
	CreatedAt time.Time
}

// prepare validates a snapshot and fills in its ID and creation time.
func prepare(snapshot *Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("snapshot cannot be nil")
	}
	if len(snapshot.Data) == 0 {
		return fmt.Errorf("snapshot data cannot be empty")
	}
	if snapshot.BucketCount < 0 {
		return fmt.Errorf("bucket count cannot be negative")
	}
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now()
	}
	return nil
}

func clone(snapshot *Snapshot) *Snapshot {
	c := *snapshot
	c.Data = append([]byte(nil), snapshot.Data...)
	return &c
}
