package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultEnvFile is the dotenv file loaded when no explicit file is given.
const DefaultEnvFile = ".env"

// EnvAPIKeyName names the API key taken from TOLLGATE_SERVER_AUTH_KEY.
const EnvAPIKeyName = "env"

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded on top of DefaultConfig, then defaults are applied to
// any field the file zeroed and the result is validated.
// The configuration is not modified by environment variables; use
// LoadConfigWithEnvOverrides for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML onto DefaultConfig and applies defaults.
// Unknown keys are rejected. It does not validate.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	if len(data) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention TOLLGATE_SECTION_FIELD (e.g., TOLLGATE_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadDefaultWithEnvOverrides builds a configuration from defaults and
// environment variables alone, for running without a configuration file.
func LoadDefaultWithEnvOverrides() (*Config, error) {
	cfg := DefaultConfig()

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadEnvFile loads variables from a dotenv file into the process
// environment without overriding variables that are already set.
//
// An empty path loads DefaultEnvFile if it exists.
func LoadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(DefaultEnvFile); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		path = DefaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %q: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format TOLLGATE_SECTION_FIELD.
// Malformed values are reported instead of silently ignored.
func applyEnvOverrides(cfg *Config) error {
	var errs []FieldError

	str := func(key string, dst *string) {
		if val := os.Getenv(key); val != "" {
			*dst = val
		}
	}
	dur := func(key string, dst *time.Duration) {
		if val := os.Getenv(key); val != "" {
			d, err := time.ParseDuration(val)
			if err != nil {
				errs = append(errs, FieldError{Field: key, Message: fmt.Sprintf("invalid duration %q", val)})
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if val := os.Getenv(key); val != "" {
			b, err := strconv.ParseBool(val)
			if err != nil {
				errs = append(errs, FieldError{Field: key, Message: fmt.Sprintf("invalid boolean %q", val)})
				return
			}
			*dst = b
		}
	}
	float := func(key string, dst *float64) {
		if val := os.Getenv(key); val != "" {
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				errs = append(errs, FieldError{Field: key, Message: fmt.Sprintf("invalid number %q", val)})
				return
			}
			*dst = f
		}
	}

	// Server overrides
	str("TOLLGATE_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	dur("TOLLGATE_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	dur("TOLLGATE_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	dur("TOLLGATE_SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	dur("TOLLGATE_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	boolean("TOLLGATE_SERVER_AUTH_ENABLED", &cfg.Server.Auth.Enabled)
	if val := os.Getenv("TOLLGATE_SERVER_AUTH_KEY"); val != "" {
		cfg.Server.Auth.Keys = append(cfg.Server.Auth.Keys, APIKeyConfig{Name: EnvAPIKeyName, Key: val})
	}
	boolean("TOLLGATE_SERVER_CORS_ENABLED", &cfg.Server.CORS.Enabled)

	// Refill overrides
	boolean("TOLLGATE_REFILL_ENABLED", &cfg.Refill.Enabled)
	str("TOLLGATE_REFILL_SCHEDULE", &cfg.Refill.Schedule)

	// Storage overrides
	str("TOLLGATE_STORAGE_BACKEND", &cfg.Storage.Backend)
	str("TOLLGATE_STORAGE_SNAPSHOT_SCHEDULE", &cfg.Storage.SnapshotSchedule)
	dur("TOLLGATE_STORAGE_RETENTION", &cfg.Storage.Retention)
	boolean("TOLLGATE_STORAGE_RESTORE_ON_START", &cfg.Storage.RestoreOnStart)
	boolean("TOLLGATE_STORAGE_SNAPSHOT_ON_SHUTDOWN", &cfg.Storage.SnapshotOnShutdown)
	str("TOLLGATE_STORAGE_SQLITE_PATH", &cfg.Storage.SQLite.Path)
	str("TOLLGATE_STORAGE_SQLITE_DRIVER", &cfg.Storage.SQLite.Driver)
	dur("TOLLGATE_STORAGE_SQLITE_BUSY_TIMEOUT", &cfg.Storage.SQLite.BusyTimeout)

	// Cost overrides
	float("TOLLGATE_COST_CHARS_PER_TOKEN", &cfg.Cost.CharsPerToken)

	// Reload overrides
	boolean("TOLLGATE_RELOAD_ENABLED", &cfg.Reload.Enabled)

	// Telemetry overrides
	str("TOLLGATE_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	str("TOLLGATE_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	boolean("TOLLGATE_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	str("TOLLGATE_TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	boolean("TOLLGATE_TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	str("TOLLGATE_TELEMETRY_TRACING_EXPORTER", &cfg.Telemetry.Tracing.Exporter)
	str("TOLLGATE_TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	float("TOLLGATE_TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
	boolean("TOLLGATE_TELEMETRY_HEALTH_ENABLED", &cfg.Telemetry.Health.Enabled)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment override: %w", ValidationError{Errors: errs})
	}
	return nil
}
