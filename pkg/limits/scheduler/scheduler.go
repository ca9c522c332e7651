package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/tollgate/pkg/limits"
	"mercator-hq/tollgate/pkg/limits/bucket"
	"mercator-hq/tollgate/pkg/limits/storage"
	"mercator-hq/tollgate/pkg/telemetry/tracing"

	"github.com/robfig/cron/v3"
)

// Job names accepted by NextRun.
const (
	JobRefill   = "refill"
	JobSnapshot = "snapshot"
)

// Off disables a job when used as its schedule.
const Off = "off"

// Config configures a Scheduler.
type Config struct {
	// RefillSchedule runs Manager.RefillAll. Empty or "off" disables it.
	RefillSchedule string

	// SnapshotSchedule persists the registry. Empty or "off" disables it.
	SnapshotSchedule string

	// Retention prunes snapshots older than this after each scheduled
	// snapshot. Zero keeps every snapshot.
	Retention time.Duration

	// Clock stamps snapshots and computes the retention cutoff.
	// Defaults to bucket.SystemClock.
	Clock bucket.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Tracer defaults to a noop tracer.
	Tracer *tracing.Tracer

	// Metrics is optional.
	Metrics *limits.Metrics
}

// Scheduler runs periodic refill passes and snapshots of a limits.Manager
// using cron syntax, and restores the registry from its storage backend.
type Scheduler struct {
	manager *limits.Manager
	backend storage.Backend
	config  Config

	cron    *cron.Cron
	entries map[string]cron.EntryID
	mu      sync.Mutex
	logger  *slog.Logger
	tracer  *tracing.Tracer
	running bool

	// snapshotMu serializes persistence so overlapping runs do not race
	// on retention pruning.
	snapshotMu sync.Mutex
}

// New creates a scheduler for manager persisting to backend.
// backend may be nil, in which case snapshot operations fail with
// ErrNoBackend and the snapshot job is not scheduled.
func New(manager *limits.Manager, backend storage.Backend, cfg Config) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = bucket.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = tracing.Noop()
	}

	return &Scheduler{
		manager: manager,
		backend: backend,
		config:  cfg,
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
		logger:  cfg.Logger.With("component", "limits.scheduler"),
		tracer:  cfg.Tracer,
	}
}

// ErrNoBackend is returned by snapshot operations without a storage backend.
var ErrNoBackend = errors.New("no storage backend configured")

// Start schedules the configured jobs and starts the cron runner.
// The scheduler stops when ctx is cancelled. If no job is enabled, the
// scheduler runs idle.
//
// Schedules use standard cron syntax or descriptors:
//   - "@every 1s"   - Every second
//   - "*/5 * * * *" - Every five minutes
//   - "@hourly"     - Every hour
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	type job struct {
		name     string
		schedule string
		run      func()
	}
	jobs := []job{
		{JobRefill, s.config.RefillSchedule, func() { s.RefillNow(ctx) }},
	}
	if s.backend != nil {
		jobs = append(jobs, job{JobSnapshot, s.config.SnapshotSchedule, func() { s.runSnapshot(ctx) }})
	}

	for _, j := range jobs {
		if j.schedule == "" || j.schedule == Off {
			s.logger.Info("job disabled", "job", j.name)
			continue
		}
		if _, err := cron.ParseStandard(j.schedule); err != nil {
			s.removeEntries()
			return fmt.Errorf("invalid cron schedule %q for %s: %w", j.schedule, j.name, err)
		}
		id, err := s.cron.AddFunc(j.schedule, j.run)
		if err != nil {
			s.removeEntries()
			return fmt.Errorf("failed to schedule %s: %w", j.name, err)
		}
		s.entries[j.name] = id
	}

	// The scheduler runs idle when every job is off.
	s.cron.Start()
	s.running = true

	if len(s.entries) == 0 {
		s.logger.Info("no jobs scheduled, scheduler idle")
	}

	s.logger.Info("scheduler started",
		"refill_schedule", s.config.RefillSchedule,
		"snapshot_schedule", s.config.SnapshotSchedule,
		"retention", s.config.Retention,
	)

	// Wait for context cancellation in background
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) removeEntries() {
	for name, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
}

// Stop stops the scheduler and waits for any running jobs to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	<-s.cron.Stop().Done()
	s.removeEntries()
	s.running = false
	s.logger.Info("scheduler stopped")
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled run of job, or nil if it is not
// scheduled.
func (s *Scheduler) NextRun(job string) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[job]
	if !ok || !s.running {
		return nil
	}

	entry := s.cron.Entry(id)
	if !entry.Valid() {
		return nil
	}
	next := entry.Next
	return &next
}

// RefillNow runs one registry-wide refill pass and returns the number of
// buckets visited.
func (s *Scheduler) RefillNow(ctx context.Context) int {
	_, span := s.tracer.Start(ctx, "scheduler.refill")
	defer span.End()

	n := s.manager.RefillAll()
	tracing.SetRefillAttributes(span, n)
	s.logger.Debug("refill pass completed", "buckets", n)
	return n
}

// runSnapshot is the scheduled snapshot job: persist, then prune.
func (s *Scheduler) runSnapshot(ctx context.Context) {
	snapshot, err := s.SnapshotNow(ctx)
	if err != nil {
		s.logger.Error("scheduled snapshot failed", "error", err)
		return
	}
	s.logger.Debug("scheduled snapshot saved", "id", snapshot.ID, "buckets", snapshot.BucketCount)

	if _, err := s.Prune(ctx); err != nil {
		s.logger.Error("snapshot pruning failed", "error", err)
	}
}

// SnapshotNow serializes the registry and saves it to the backend.
func (s *Scheduler) SnapshotNow(ctx context.Context) (snapshot *storage.Snapshot, err error) {
	ctx, span := s.tracer.Start(ctx, "scheduler.snapshot")
	defer func() {
		tracing.SetError(span, err)
		tracing.SetStatus(span, err)
		span.End()
		s.config.Metrics.RecordSnapshot("persist", err)
	}()

	if s.backend == nil {
		return nil, ErrNoBackend
	}

	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()

	start := time.Now()

	data, count, err := s.manager.SerializeWithCount()
	if err != nil {
		return nil, err
	}

	snapshot = &storage.Snapshot{
		Data:        data,
		BucketCount: count,
		CreatedAt:   s.config.Clock.Now(),
	}
	if err := s.backend.Save(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	tracing.SetSnapshotAttributes(span, snapshot.ID, snapshot.BucketCount, len(snapshot.Data))
	s.config.Metrics.RecordDuration("persist", time.Since(start).Seconds())
	s.logger.Info("snapshot saved",
		"id", snapshot.ID,
		"buckets", snapshot.BucketCount,
		"bytes", len(snapshot.Data),
	)

	return snapshot, nil
}

// Restore loads the latest snapshot into the manager. It returns the
// restored snapshot, or nil without error when the backend holds none.
// A malformed snapshot leaves the registry untouched.
func (s *Scheduler) Restore(ctx context.Context) (*storage.Snapshot, error) {
	return s.restore(ctx, "")
}

// RestoreID loads the snapshot with the given ID into the manager.
func (s *Scheduler) RestoreID(ctx context.Context, id string) (*storage.Snapshot, error) {
	if id == "" {
		return nil, fmt.Errorf("snapshot id cannot be empty")
	}
	return s.restore(ctx, id)
}

func (s *Scheduler) restore(ctx context.Context, id string) (snapshot *storage.Snapshot, err error) {
	ctx, span := s.tracer.Start(ctx, "scheduler.restore")
	defer func() {
		tracing.SetError(span, err)
		tracing.SetStatus(span, err)
		span.End()
		s.config.Metrics.RecordSnapshot("restore", err)
	}()

	if s.backend == nil {
		return nil, ErrNoBackend
	}

	if id == "" {
		snapshot, err = s.backend.Latest(ctx)
	} else {
		snapshot, err = s.backend.Get(ctx, id)
	}
	if errors.Is(err, storage.ErrNotFound) && id == "" {
		s.logger.Info("no snapshot to restore")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.manager.Deserialize(snapshot.Data); err != nil {
		return nil, fmt.Errorf("failed to restore snapshot %s: %w", snapshot.ID, err)
	}

	tracing.SetSnapshotAttributes(span, snapshot.ID, snapshot.BucketCount, len(snapshot.Data))
	s.logger.Info("snapshot restored",
		"id", snapshot.ID,
		"buckets", snapshot.BucketCount,
		"created_at", snapshot.CreatedAt,
	)
	return snapshot, nil
}

// Prune deletes snapshots older than the retention period. The newest
// snapshot is never pruned, so a restart can always restore.
func (s *Scheduler) Prune(ctx context.Context) (deleted int, err error) {
	defer func() { s.config.Metrics.RecordSnapshot("prune", err) }()

	if s.backend == nil {
		return 0, ErrNoBackend
	}
	if s.config.Retention <= 0 {
		return 0, nil
	}

	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()

	cutoff := s.config.Clock.Now().Add(-s.config.Retention)

	latest, err := s.backend.Latest(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if latest.CreatedAt.Before(cutoff) {
		cutoff = latest.CreatedAt
	}

	deleted, err = s.backend.Cleanup(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		s.logger.Info("pruned snapshots", "deleted_count", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}
