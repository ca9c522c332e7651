// Package metrics owns the Prometheus registry of a Tollgate process.
//
// # Overview
//
// The Collector creates a prometheus.Registry, registers the Go runtime and
// process collectors, and records admin API metrics:
//
//   - HTTP: request count, duration and in-flight requests by route
//   - Charge: raw and priced tokens of consume requests by model
//   - Build info: version and commit of the running binary
//
// Limiter metrics (consume outcomes, balances, refill passes, snapshots) are
// defined in the limits package and registered against Collector.Registry().
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	manager := limits.NewManager(limits.Config{
//		Metrics: limits.NewMetrics(collector.Registry()),
//	})
//	router.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// # Cardinality
//
// Route and model labels pass through a CardinalityLimiter. Label sets beyond
// its limit are folded into "other".
package metrics
