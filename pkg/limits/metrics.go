package limits

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the limits package.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Consume attempts by outcome
	consumeTotal *prometheus.CounterVec

	// Last observed balance of finite buckets
	balance *prometheus.GaugeVec

	// Registry size
	buckets prometheus.Gauge

	// Refill passes
	refillPasses prometheus.Counter

	// Snapshot serialize/deserialize/persist operations
	snapshotOps *prometheus.CounterVec

	// Operation latency
	opDuration *prometheus.HistogramVec
}

// NewMetrics creates limits metrics registered with reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		consumeTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tollgate_limits_consume_total",
				Help: "Total number of consume attempts by outcome",
			},
			[]string{"identifier", "outcome"},
		),

		balance: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tollgate_limits_bucket_balance",
				Help: "Last observed token balance of finite buckets",
			},
			[]string{"identifier"},
		),

		buckets: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tollgate_limits_buckets",
				Help: "Number of buckets in the registry",
			},
		),

		refillPasses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tollgate_limits_refill_passes_total",
				Help: "Total number of registry-wide refill passes",
			},
		),

		snapshotOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tollgate_limits_snapshot_operations_total",
				Help: "Total number of snapshot operations by result",
			},
			[]string{"operation", "result"},
		),

		opDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tollgate_limits_operation_duration_seconds",
				Help:    "Duration of limiter operations in seconds",
				Buckets: prometheus.ExponentialBuckets(0.000001, 2, 15), // 1µs to 16ms
			},
			[]string{"operation"},
		),
	}
}

// RecordConsume records a consume attempt.
func (m *Metrics) RecordConsume(identifier string, outcome Outcome) {
	if m == nil {
		return
	}
	m.consumeTotal.WithLabelValues(identifier, string(outcome)).Inc()
}

// UpdateBalance sets the balance gauge for a finite bucket.
func (m *Metrics) UpdateBalance(identifier string, balance float64) {
	if m == nil {
		return
	}
	m.balance.WithLabelValues(identifier).Set(balance)
}

// DeleteBalance drops the balance series of a removed bucket.
func (m *Metrics) DeleteBalance(identifier string) {
	if m == nil {
		return
	}
	m.balance.DeleteLabelValues(identifier)
}

// ResetBalances drops every balance series.
func (m *Metrics) ResetBalances() {
	if m == nil {
		return
	}
	m.balance.Reset()
}

// UpdateBucketCount sets the registry size gauge.
func (m *Metrics) UpdateBucketCount(count int) {
	if m == nil {
		return
	}
	m.buckets.Set(float64(count))
}

// RecordRefillPass records a registry-wide refill pass.
func (m *Metrics) RecordRefillPass() {
	if m == nil {
		return
	}
	m.refillPasses.Inc()
}

// RecordSnapshot records a snapshot operation.
func (m *Metrics) RecordSnapshot(operation string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.snapshotOps.WithLabelValues(operation, result).Inc()
}

// RecordDuration records the duration of an operation.
func (m *Metrics) RecordDuration(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.opDuration.WithLabelValues(operation).Observe(seconds)
}
