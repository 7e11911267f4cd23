// Package config provides configuration management for the HERA
// configuration rule service.
//
// This package handles loading and validating configuration from YAML files
// with environment variable overrides. It provides a type-safe configuration
// system with validation and sensible defaults.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("hera.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("hera.yaml")
//
// An empty path loads the defaults, which is how the CLI runs without a file.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention HERA_SECTION_FIELD.
// For example:
//
//   - HERA_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - HERA_STORE_POSTGRES_DSN overrides store.postgres.dsn
//   - HERA_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//   - HERA_SECURITY_AUTHENTICATION_KEYS appends keys given as "subject=key,..."
//
// Environment variables always take precedence over file-based configuration.
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
// Unknown YAML keys are rejected so that typos do not silently fall back to
// defaults.
//
// # Validation
//
// All configuration is validated automatically during loading. Validation includes:
//
//   - Required field checks (e.g., postgres DSN, API key subjects)
//   - Range validation (e.g., sample ratio between 0 and 1)
//   - Format validation (e.g., cron schedules, DSN scheme)
//   - Logical validation (e.g., authorization requires authentication)
package config
