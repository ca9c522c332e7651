// Package scheduler automates the snapshot and restore pair of a
// limits.Manager and keeps balances fresh between requests.
//
// Two cron jobs are supported:
//
//   - refill: Manager.RefillAll on RefillSchedule (default "@every 1s")
//   - snapshot: Manager.Serialize saved to a storage.Backend on
//     SnapshotSchedule, followed by pruning of snapshots older than the
//     retention period (the newest snapshot is always kept)
//
// Restore loads the newest snapshot at startup. SnapshotNow and RestoreID
// serve on-demand persistence for the CLI and the admin API.
//
//	sched := scheduler.New(manager, backend, scheduler.Config{
//	    RefillSchedule:   "@every 1s",
//	    SnapshotSchedule: "@every 1m",
//	    Retention:        24 * time.Hour,
//	})
//	if _, err := sched.Restore(ctx); err != nil {
//	    return err
//	}
//	if err := sched.Start(ctx); err != nil {
//	    return err
//	}
//	defer sched.Stop()
package scheduler
