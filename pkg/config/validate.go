package config

import (
	"fmt"
	"math"
	"net"
	"sort"
	"strings"

	"github.com/robfig/cron/v3"

	"mercator-hq/tollgate/pkg/limits/storage"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateBuckets(cfg.Buckets)...)
	errs = append(errs, validateRefill(&cfg.Refill)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateCost(&cfg.Cost)...)
	errs = append(errs, validateReload(&cfg.Reload)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: must be host:port", cfg.ListenAddress),
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must not be negative",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must not be negative",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.idle_timeout",
			Message: "idle timeout must not be negative",
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown timeout must not be negative",
		})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must not be negative",
		})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_body_bytes",
			Message: "max body bytes must not be negative",
		})
	}

	errs = append(errs, validateAuth(&cfg.Auth)...)

	if cfg.CORS.Enabled && cfg.CORS.AllowCredentials {
		for _, origin := range cfg.CORS.AllowedOrigins {
			if origin == "*" {
				errs = append(errs, FieldError{
					Field:   "server.cors.allowed_origins",
					Message: `"*" cannot be combined with allow_credentials`,
				})
				break
			}
		}
	}
	if cfg.CORS.MaxAge < 0 {
		errs = append(errs, FieldError{
			Field:   "server.cors.max_age",
			Message: "max age must not be negative",
		})
	}

	return errs
}

// validateAuth validates API key authentication.
func validateAuth(cfg *AuthConfig) []FieldError {
	var errs []FieldError

	seen := make(map[string]bool, len(cfg.Keys))
	active := 0
	for i, key := range cfg.Keys {
		field := fmt.Sprintf("server.auth.keys[%d]", i)
		if strings.TrimSpace(key.Key) == "" {
			errs = append(errs, FieldError{Field: field + ".key", Message: "key must not be empty"})
			continue
		}
		if seen[key.Key] {
			errs = append(errs, FieldError{Field: field + ".key", Message: "duplicate key"})
			continue
		}
		seen[key.Key] = true
		if !key.Disabled {
			active++
		}
	}

	if cfg.Enabled && active == 0 {
		errs = append(errs, FieldError{
			Field:   "server.auth.keys",
			Message: "at least one enabled key is required when auth is enabled",
		})
	}

	return errs
}

// validateBuckets validates declared buckets.
func validateBuckets(buckets map[string]BucketConfig) []FieldError {
	var errs []FieldError

	ids := make([]string, 0, len(buckets))
	for id := range buckets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		field := fmt.Sprintf("buckets.%s", id)
		if strings.TrimSpace(id) == "" {
			errs = append(errs, FieldError{
				Field:   "buckets",
				Message: "bucket identifier must not be empty",
			})
			continue
		}
		if _, err := buckets[id].Spec(); err != nil {
			errs = append(errs, FieldError{
				Field:   field,
				Message: err.Error(),
			})
		}
	}

	return errs
}

// validateRefill validates refill scheduling.
func validateRefill(cfg *RefillConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled {
		if cfg.Schedule == "" {
			errs = append(errs, FieldError{
				Field:   "refill.schedule",
				Message: "schedule is required when refill is enabled",
			})
		} else if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "refill.schedule",
				Message: fmt.Sprintf("invalid cron schedule %q: %v", cfg.Schedule, err),
			})
		}
	}

	return errs
}

// validateStorage validates storage configuration.
func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
		if cfg.Memory.MaxEntries < 0 {
			errs = append(errs, FieldError{
				Field:   "storage.memory.max_entries",
				Message: "max entries must not be negative",
			})
		}
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.path",
				Message: "path is required for the sqlite backend",
			})
		}
		if cfg.SQLite.Driver != storage.DriverModernc && cfg.SQLite.Driver != storage.DriverMattn {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q: must be one of: %s, %s", cfg.SQLite.Driver, storage.DriverModernc, storage.DriverMattn),
			})
		}
		if cfg.SQLite.BusyTimeout < 0 {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.busy_timeout",
				Message: "busy timeout must not be negative",
			})
		}
		if cfg.SQLite.CheckpointInterval < 0 {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.checkpoint_interval",
				Message: "checkpoint interval must not be negative",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend %q: must be one of: memory, sqlite", cfg.Backend),
		})
	}

	if cfg.SnapshotSchedule != "" && cfg.SnapshotSchedule != ScheduleOff {
		if _, err := cron.ParseStandard(cfg.SnapshotSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "storage.snapshot_schedule",
				Message: fmt.Sprintf("invalid cron schedule %q: %v", cfg.SnapshotSchedule, err),
			})
		}
	}
	if cfg.Retention < 0 {
		errs = append(errs, FieldError{
			Field:   "storage.retention",
			Message: "retention must not be negative",
		})
	}

	return errs
}

// validateCost validates estimation and pricing configuration.
func validateCost(cfg *CostConfig) []FieldError {
	var errs []FieldError

	if !isNonNegative(cfg.CharsPerToken) || cfg.CharsPerToken == 0 {
		errs = append(errs, FieldError{
			Field:   "cost.chars_per_token",
			Message: "chars per token must be a positive number",
		})
	}

	models := make([]string, 0, len(cfg.Models))
	for model := range cfg.Models {
		models = append(models, model)
	}
	sort.Strings(models)

	for _, model := range models {
		p := cfg.Models[model]
		if !isNonNegative(p.PromptCostPer1K) || !isNonNegative(p.CompletionCostPer1K) {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("cost.models.%s", model),
				Message: "prices must be finite non-negative numbers",
			})
		}
	}
	if p := cfg.Default; p != nil && (!isNonNegative(p.PromptCostPer1K) || !isNonNegative(p.CompletionCostPer1K)) {
		errs = append(errs, FieldError{
			Field:   "cost.default",
			Message: "prices must be finite non-negative numbers",
		})
	}

	return errs
}

// validateReload validates reload configuration.
func validateReload(cfg *ReloadConfig) []FieldError {
	var errs []FieldError

	if cfg.Debounce < 0 {
		errs = append(errs, FieldError{
			Field:   "reload.debounce",
			Message: "debounce must not be negative",
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q: must be one of: debug, info, warn, error", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q: must be one of: json, text", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Exporter {
		case "otlp":
			if cfg.Tracing.Endpoint == "" {
				errs = append(errs, FieldError{
					Field:   "telemetry.tracing.endpoint",
					Message: "endpoint is required for the otlp exporter",
				})
			}
		case "stdout":
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.exporter",
				Message: fmt.Sprintf("invalid exporter %q: must be one of: otlp, stdout", cfg.Tracing.Exporter),
			})
		}

		validSamplers := map[string]bool{"always": true, "never": true, "ratio": true}
		if !validSamplers[cfg.Tracing.Sampler] {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q: must be one of: always, never, ratio", cfg.Tracing.Sampler),
			})
		}
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	if cfg.Health.Enabled {
		if !strings.HasPrefix(cfg.Health.LivenessPath, "/") {
			errs = append(errs, FieldError{
				Field:   "telemetry.health.liveness_path",
				Message: "liveness path must start with /",
			})
		}
		if !strings.HasPrefix(cfg.Health.ReadinessPath, "/") {
			errs = append(errs, FieldError{
				Field:   "telemetry.health.readiness_path",
				Message: "readiness path must start with /",
			})
		}
		if cfg.Health.CheckTimeout < 0 {
			errs = append(errs, FieldError{
				Field:   "telemetry.health.check_timeout",
				Message: "check timeout must not be negative",
			})
		}
	}

	return errs
}

func isNonNegative(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
