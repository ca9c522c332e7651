package config

import (
	"time"

	"mercator-hq/tollgate/pkg/limits/bucket"
	"mercator-hq/tollgate/pkg/limits/cost"
)

// Config is the root configuration structure for Tollgate.
// It contains all configuration sections for the HTTP server, declared
// buckets, refill and snapshot scheduling, storage and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address
	// and timeouts.
	Server ServerConfig `yaml:"server"`

	// Buckets declares buckets by identifier. Declared buckets are created
	// at startup and reconciled on configuration reload.
	Buckets map[string]BucketConfig `yaml:"buckets"`

	// Refill controls the periodic registry-wide refill pass.
	Refill RefillConfig `yaml:"refill"`

	// Storage contains snapshot persistence configuration.
	Storage StorageConfig `yaml:"storage"`

	// Cost contains token estimation and per-model pricing used by the
	// consume endpoint.
	Cost CostConfig `yaml:"cost"`

	// Reload controls hot reloading of this file.
	Reload ReloadConfig `yaml:"reload"`

	// Telemetry contains configuration for observability including logging,
	// metrics, tracing and health checks.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port for the server to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes limits request body size, including snapshot uploads.
	// Default: 10485760 (10MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// Auth protects the /v1 API with API keys. Health, version and metrics
	// endpoints stay open.
	Auth AuthConfig `yaml:"auth"`

	// CORS controls cross-origin access for browser clients.
	CORS CORSConfig `yaml:"cors"`
}

// AuthConfig contains API key authentication configuration.
type AuthConfig struct {
	// Enabled requires a valid API key on every /v1 request.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Header is the request header carrying the key.
	// Default: "Authorization"
	Header string `yaml:"header"`

	// Scheme is the prefix expected before the key, e.g. "Bearer".
	// Empty means the header holds the bare key.
	// Default: "Bearer"
	Scheme string `yaml:"scheme"`

	// Keys lists the accepted API keys.
	Keys []APIKeyConfig `yaml:"keys"`
}

// APIKeyConfig is one accepted API key.
type APIKeyConfig struct {
	// Name identifies the key in logs. The key itself is never logged.
	Name string `yaml:"name"`

	// Key is the secret value.
	Key string `yaml:"key"`

	// Disabled rejects the key without removing it.
	Disabled bool `yaml:"disabled"`
}

// CORSConfig contains Cross-Origin Resource Sharing configuration.
type CORSConfig struct {
	// Enabled adds CORS headers and answers preflight requests.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins lists allowed origins. "*" allows any origin.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods lists methods allowed in preflight responses.
	// Default: GET, POST, PUT, DELETE, OPTIONS
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders lists request headers allowed in preflight responses.
	// Default: Authorization, Content-Type, X-Request-ID
	AllowedHeaders []string `yaml:"allowed_headers"`

	// ExposedHeaders lists response headers readable by the browser.
	// Default: X-Request-ID, Retry-After
	ExposedHeaders []string `yaml:"exposed_headers"`

	// MaxAge is how long preflight responses may be cached.
	// Default: 1h
	MaxAge time.Duration `yaml:"max_age"`

	// AllowCredentials allows cookies and credentials on cross-origin
	// requests. It cannot be combined with the "*" origin.
	// Default: false
	AllowCredentials bool `yaml:"allow_credentials"`
}

// BucketConfig declares a single bucket.
//
// When Capacity is omitted it equals InitialBalance. When InitialBalance is
// omitted a finite bucket starts full and an unlimited one at zero.
type BucketConfig struct {
	// Capacity is a number or "unlimited".
	Capacity *bucket.Capacity `yaml:"capacity"`

	// InitialBalance is the balance a newly created bucket starts with.
	InitialBalance *float64 `yaml:"initial_balance"`

	// RefillRate is in tokens per second.
	RefillRate float64 `yaml:"refill_rate"`
}

// RefillConfig controls the periodic refill pass.
type RefillConfig struct {
	// Enabled controls whether the scheduler refills buckets.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Schedule is a cron expression or descriptor.
	// Default: "@every 1s"
	Schedule string `yaml:"schedule"`
}

// StorageConfig contains snapshot persistence configuration.
type StorageConfig struct {
	// Backend selects the storage backend.
	// Options: "memory", "sqlite"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SnapshotSchedule is a cron expression for periodic snapshots.
	// "off" disables periodic snapshots.
	// Default: "@every 1m"
	SnapshotSchedule string `yaml:"snapshot_schedule"`

	// Retention is how long snapshots are kept. Zero keeps them forever.
	// Default: 24h
	Retention time.Duration `yaml:"retention"`

	// RestoreOnStart loads the latest snapshot at startup.
	// Default: true
	RestoreOnStart bool `yaml:"restore_on_start"`

	// SnapshotOnShutdown persists the registry during graceful shutdown.
	// Default: true
	SnapshotOnShutdown bool `yaml:"snapshot_on_shutdown"`

	// SQLite contains SQLite backend configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Memory contains memory backend configuration.
	Memory MemoryConfig `yaml:"memory"`
}

// SQLiteConfig contains SQLite backend configuration.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/tollgate.db"
	Path string `yaml:"path"`

	// Driver selects the database/sql driver.
	// Options: "sqlite" (modernc.org/sqlite), "sqlite3" (mattn/go-sqlite3)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// BusyTimeout is how long to wait for database locks.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// CheckpointInterval is how often the WAL is checkpointed.
	// Default: 5m
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"`
}

// MemoryConfig contains memory backend configuration.
type MemoryConfig struct {
	// MaxEntries is the number of snapshots kept in memory.
	// Default: 100
	MaxEntries int `yaml:"max_entries"`
}

// CostConfig contains token estimation and pricing configuration.
type CostConfig struct {
	// CharsPerToken is the characters-per-token ratio of the estimator.
	// Default: 4.0
	CharsPerToken float64 `yaml:"chars_per_token"`

	// Models maps model names to per-1K-token prices. Requests naming a
	// model are charged its price instead of raw tokens.
	Models map[string]cost.Pricing `yaml:"models"`

	// Default prices models missing from Models. When unset, unknown
	// models are charged raw tokens.
	Default *cost.Pricing `yaml:"default"`
}

// ReloadConfig controls configuration hot reloading.
type ReloadConfig struct {
	// Enabled watches the configuration file and reconciles declared
	// buckets when it changes.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Debounce is the quiet period before a change is applied.
	// Default: 100ms
	Debounce time.Duration `yaml:"debounce"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains OpenTelemetry tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check endpoint configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains configuration for structured logging.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains configuration for Prometheus metrics.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// TracingConfig contains configuration for OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 0.1 (10%)
	SampleRatio float64 `yaml:"sample_ratio"`

	// Exporter selects where spans are sent.
	// Options: "otlp" (gRPC collector), "stdout" (pretty-printed JSON)
	// Default: "otlp"
	Exporter string `yaml:"exporter"`

	// Endpoint is the OTLP gRPC collector endpoint. Required for "otlp".
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "tollgate"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter specific configuration.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS for OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout is the export timeout.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains configuration for health check endpoints.
type HealthConfig struct {
	// Enabled controls whether health check endpoints are enabled.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout is the timeout for individual component health checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
