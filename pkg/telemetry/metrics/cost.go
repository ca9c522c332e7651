package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ChargeMetrics tracks what consume requests were charged after pricing.
//
// Metrics:
//   - tollgate_charge_usage_tokens_total: Raw tokens reported by callers
//   - tollgate_charge_tokens_total: Tokens charged to buckets after pricing
//   - tollgate_charge_tokens_per_request: Charged tokens per request
type ChargeMetrics struct {
	usageTotal   *prometheus.CounterVec
	chargedTotal *prometheus.CounterVec
	perRequest   *prometheus.HistogramVec
}

// NewChargeMetrics creates and registers charge metrics with the provided registry.
func NewChargeMetrics(registry *prometheus.Registry) *ChargeMetrics {
	cm := &ChargeMetrics{
		usageTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "charge",
				Name:      "usage_tokens_total",
				Help:      "Total raw tokens reported by consume requests",
			},
			[]string{"model"},
		),

		chargedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "charge",
				Name:      "tokens_total",
				Help:      "Total tokens charged to buckets by model and decision",
			},
			[]string{"model", "decision"},
		),

		perRequest: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "charge",
				Name:      "tokens_per_request",
				Help:      "Tokens charged per consume request",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 10), // 1 to 262144
			},
			[]string{"model"},
		),
	}

	registry.MustRegister(cm.usageTotal, cm.chargedTotal, cm.perRequest)

	return cm
}

// RecordCharge records a single priced consume request.
func (cm *ChargeMetrics) RecordCharge(model string, usage, charged float64, allowed bool) {
	decision := "denied"
	if allowed {
		decision = "allowed"
	}

	if usage > 0 {
		cm.usageTotal.WithLabelValues(model).Add(usage)
	}
	if charged > 0 {
		cm.chargedTotal.WithLabelValues(model, decision).Add(charged)
	}
	cm.perRequest.WithLabelValues(model).Observe(charged)
}
