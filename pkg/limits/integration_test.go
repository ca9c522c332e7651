package limits_test

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/tollgate/pkg/limits"
	"mercator-hq/tollgate/pkg/limits/bucket"
	"mercator-hq/tollgate/pkg/limits/storage"
)

// TestIntegration_PersistAcrossRestart drives a registry, persists it to
// SQLite, and restores it into a fresh manager as a restart would.
func TestIntegration_PersistAcrossRestart(t *testing.T) {
	ctx := context.Background()
	clock := bucket.NewManualClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	backend, err := storage.NewSQLiteBackend(filepath.Join(t.TempDir(), "tollgate.db"))
	if err != nil {
		t.Fatalf("NewSQLiteBackend() error = %v", err)
	}
	defer backend.Close()

	before := limits.NewManager(limits.Config{Clock: clock})
	if err := before.CreateBucket("agent-1", 100, 10); err != nil {
		t.Fatalf("CreateBucket() error = %v", err)
	}
	if err := before.CreateBucketWithCapacity("admin", bucket.Unlimited(), 0, 0); err != nil {
		t.Fatalf("CreateBucketWithCapacity() error = %v", err)
	}

	if ok, _ := before.Consume("agent-1", 70); !ok {
		t.Fatal("Consume(agent-1, 70) should succeed")
	}
	if ok, _ := before.Consume("admin", 1e9); !ok {
		t.Fatal("unlimited bucket should never deny")
	}

	data, count, err := before.SerializeWithCount()
	if err != nil {
		t.Fatalf("SerializeWithCount() error = %v", err)
	}
	if err := backend.Save(ctx, &storage.Snapshot{Data: data, BucketCount: count}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Two seconds pass while the process is down.
	clock.Advance(2 * time.Second)

	latest, err := backend.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	after := limits.NewManager(limits.Config{Clock: clock})
	if err := after.Deserialize(latest.Data); err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}

	if got, _ := after.Balance("agent-1"); got != 30 {
		t.Errorf("restored balance = %v, want 30", got)
	}

	// Downtime is credited on the first refill since last_refill survives.
	if err := after.Refill("agent-1"); err != nil {
		t.Fatalf("Refill() error = %v", err)
	}
	if got, _ := after.Balance("agent-1"); got != 50 {
		t.Errorf("balance after refill = %v, want 50", got)
	}

	state, err := after.Get("admin")
	if err != nil {
		t.Fatalf("Get(admin) error = %v", err)
	}
	if !state.Capacity.IsUnlimited() {
		t.Errorf("admin capacity = %v, want unlimited", state.Capacity)
	}
}

// TestIntegration_ConcurrentTenants checks that concurrent consumers across
// tenants never overspend while a refill loop runs alongside them.
func TestIntegration_ConcurrentTenants(t *testing.T) {
	clock := bucket.NewManualClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	m := limits.NewManager(limits.Config{Clock: clock})

	tenants := []string{"tenant-a", "tenant-b", "tenant-c"}
	for _, id := range tenants {
		if err := m.CreateBucket(id, 100, 1); err != nil {
			t.Fatalf("CreateBucket(%q) error = %v", id, err)
		}
	}

	const workers = 8
	var (
		wg      sync.WaitGroup
		granted [3]atomic.Int64
	)

	stopRefill := make(chan struct{})
	refillDone := make(chan struct{})
	go func() {
		defer close(refillDone)
		for {
			select {
			case <-stopRefill:
				return
			default:
				m.RefillAll()
			}
		}
	}()

	for i, id := range tenants {
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for n := 0; n < 50; n++ {
					if ok, _ := m.Consume(id, 1); ok {
						granted[i].Add(1)
					}
				}
			}()
		}
	}

	wg.Wait()
	close(stopRefill)
	<-refillDone

	// The clock never moves, so refills credit nothing.
	for i, id := range tenants {
		if got := granted[i].Load(); got != 100 {
			t.Errorf("%s granted %d tokens, want 100", id, got)
		}
		if balance, _ := m.Balance(id); balance != 0 {
			t.Errorf("%s balance = %v, want 0", id, balance)
		}
	}
}
