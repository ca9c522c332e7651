package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"mercator-hq/tollgate/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Namespace prefixes every metric the collector registers.
const Namespace = "tollgate"

// Collector owns the Prometheus registry for a Tollgate process and records
// the HTTP and cost metrics of the admin API. Other packages register their
// own metrics against Registry().
//
// A disabled collector still owns a registry, so callers need not branch on
// configuration; it simply records nothing.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	httpMetrics   *HTTPMetrics
	chargeMetrics *ChargeMetrics
	buildInfo     *prometheus.GaugeVec

	// Cardinality tracking for the route label
	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a metrics collector. If registry is nil a new one is
// created. Go runtime and process collectors are registered alongside the
// Tollgate metrics.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg == nil {
		cfg = &config.MetricsConfig{Enabled: true, Path: config.DefaultMetricsPath}
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		cardinalityLimiter: NewCardinalityLimiter(1000),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c.httpMetrics = NewHTTPMetrics(registry)
	c.chargeMetrics = NewChargeMetrics(registry)

	c.buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "build_info",
			Help:      "Build information of the running binary",
		},
		[]string{"version", "commit"},
	)
	registry.MustRegister(c.buildInfo)

	return c
}

// Enabled reports whether the collector records metrics.
func (c *Collector) Enabled() bool {
	return c.config.Enabled
}

// SetBuildInfo publishes the version and commit of the running binary.
func (c *Collector) SetBuildInfo(version, commit string) {
	c.buildInfo.Reset()
	c.buildInfo.WithLabelValues(version, commit).Set(1)
}

// RecordHTTPRequest records a completed admin API request.
//
// route is the matched route pattern (e.g. "/v1/buckets/{id}/consume"),
// never the raw path, so bucket identifiers do not become label values.
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	if !c.cardinalityLimiter.Allow(method + " " + route) {
		route = "other"
	}

	c.httpMetrics.RecordRequest(method, route, strconv.Itoa(status), duration)
}

// TrackInFlight adjusts the in-flight request gauge by delta.
func (c *Collector) TrackInFlight(delta float64) {
	if !c.config.Enabled {
		return
	}
	c.httpMetrics.inFlight.Add(delta)
}

// RecordCharge records the tokens charged for a consume request priced
// by model. An empty model is recorded as "raw".
func (c *Collector) RecordCharge(model string, usage, charged float64, allowed bool) {
	if !c.config.Enabled {
		return
	}
	if model == "" {
		model = "raw"
	}
	if !c.cardinalityLimiter.Allow("model " + model) {
		model = "other"
	}
	c.chargeMetrics.RecordCharge(model, usage, charged, allowed)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the HTTP handler for the Prometheus metrics endpoint.
// A disabled collector serves 404.
func (c *Collector) Handler() http.Handler {
	if !c.config.Enabled {
		return http.NotFoundHandler()
	}
	return c.handler()
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label combinations per metric.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label set is allowed. Returns true if the label set
// already exists or if we haven't reached the cardinality limit yet.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
