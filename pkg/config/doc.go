// Package config provides configuration management for Tollgate.
//
// This package handles loading, validating, and watching configuration from
// YAML files with environment variable overrides. It provides a type-safe
// configuration system with comprehensive validation and sensible defaults.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("tollgate.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("tollgate.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention TOLLGATE_SECTION_FIELD.
// For example:
//
//   - TOLLGATE_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - TOLLGATE_STORAGE_SQLITE_PATH overrides storage.sqlite.path
//   - TOLLGATE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// LoadEnvFile reads a dotenv file into the environment first; variables
// already set in the environment win over the file.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Buckets
//
// Buckets are declared by identifier:
//
//	buckets:
//	  agent-1:
//	    initial_balance: 50000   # capacity defaults to the initial balance
//	    refill_rate: 13.889      # tokens per second
//	  admin:
//	    capacity: unlimited
//
// # Hot Reload
//
// Watcher observes the configuration file with fsnotify and hands each
// successfully reloaded Config to a callback, which typically reconciles
// the declared buckets with the running registry.
package config
