package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
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
	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateSecurity(&cfg.Security)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if !strings.Contains(cfg.ListenAddress, ":") {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: must be host:port", cfg.ListenAddress),
		})
	}

	timeouts := []struct {
		field string
		value time.Duration
	}{
		{"server.read_timeout", cfg.ReadTimeout},
		{"server.write_timeout", cfg.WriteTimeout},
		{"server.idle_timeout", cfg.IdleTimeout},
		{"server.shutdown_timeout", cfg.ShutdownTimeout},
	}
	for _, tt := range timeouts {
		if tt.value <= 0 {
			errs = append(errs, FieldError{Field: tt.field, Message: "timeout must be positive"})
		}
	}

	if cfg.MaxBodyBytes <= 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_body_bytes",
			Message: "max body bytes must be positive",
		})
	}

	if rl := &cfg.RateLimit; rl.Enabled {
		if rl.RequestsPerSecond <= 0 {
			errs = append(errs, FieldError{
				Field:   "server.rate_limit.requests_per_second",
				Message: "requests per second must be positive",
			})
		}
		if rl.Burst < 1 {
			errs = append(errs, FieldError{
				Field:   "server.rate_limit.burst",
				Message: "burst must be at least 1",
			})
		}
		if rl.MaxTenants < 1 {
			errs = append(errs, FieldError{
				Field:   "server.rate_limit.max_tenants",
				Message: "max tenants must be at least 1",
			})
		}
	}

	return errs
}

func validateStore(cfg *StoreConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "file":
		if cfg.File.Path == "" {
			errs = append(errs, FieldError{
				Field:   "store.file.path",
				Message: "rule file path is required when backend is 'file'",
			})
		}
		if cfg.File.Debounce < 0 {
			errs = append(errs, FieldError{
				Field:   "store.file.debounce",
				Message: "debounce must be non-negative",
			})
		}
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "store.sqlite.path",
				Message: "database path is required when backend is 'sqlite'",
			})
		}
	case "postgres":
		errs = append(errs, validatePostgres(&cfg.Postgres)...)
	default:
		errs = append(errs, FieldError{
			Field:   "store.backend",
			Message: fmt.Sprintf("invalid store backend %q: must be 'memory', 'file', 'sqlite', or 'postgres'", cfg.Backend),
		})
	}

	if cfg.Cache.Enabled {
		if cfg.Cache.TTL <= 0 {
			errs = append(errs, FieldError{
				Field:   "store.cache.ttl",
				Message: "cache TTL must be positive when the cache is enabled",
			})
		}
		if cfg.Cache.MaxEntries <= 0 {
			errs = append(errs, FieldError{
				Field:   "store.cache.max_entries",
				Message: "cache max entries must be positive when the cache is enabled",
			})
		}
	}

	if cfg.Redis.Enabled {
		if cfg.Redis.Address == "" {
			errs = append(errs, FieldError{
				Field:   "store.redis.address",
				Message: "redis address is required when redis is enabled",
			})
		}
		if cfg.Redis.TTL <= 0 {
			errs = append(errs, FieldError{
				Field:   "store.redis.ttl",
				Message: "redis TTL must be positive when redis is enabled",
			})
		}
		if cfg.Redis.DB < 0 {
			errs = append(errs, FieldError{
				Field:   "store.redis.db",
				Message: "redis db must be non-negative",
			})
		}
	}

	if cfg.Refresh.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Refresh.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "store.refresh.schedule",
				Message: fmt.Sprintf("invalid cron schedule %q: %v", cfg.Refresh.Schedule, err),
			})
		}
	}

	return errs
}

func validatePostgres(cfg *PostgresConfig) []FieldError {
	var errs []FieldError

	if cfg.DSN == "" {
		errs = append(errs, FieldError{
			Field:   "store.postgres.dsn",
			Message: "DSN is required when backend is 'postgres'",
		})
	} else if u, err := url.Parse(cfg.DSN); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		errs = append(errs, FieldError{
			Field:   "store.postgres.dsn",
			Message: "DSN must be a postgres:// or postgresql:// URL",
		})
	}

	if cfg.MaxConns <= 0 {
		errs = append(errs, FieldError{
			Field:   "store.postgres.max_conns",
			Message: "max connections must be positive",
		})
	}
	if cfg.ConnectTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "store.postgres.connect_timeout",
			Message: "connect timeout must be positive",
		})
	}

	return errs
}

func validateEngine(cfg *EngineConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxConditionDepth <= 0 {
		errs = append(errs, FieldError{
			Field:   "engine.max_condition_depth",
			Message: "max condition depth must be positive",
		})
	}
	if cfg.StoreTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "engine.store_timeout",
			Message: "store timeout must be positive",
		})
	}
	if cfg.BatchConcurrency <= 0 {
		errs = append(errs, FieldError{
			Field:   "engine.batch_concurrency",
			Message: "batch concurrency must be positive",
		})
	}
	if cfg.MaxBatchSize <= 0 {
		errs = append(errs, FieldError{
			Field:   "engine.max_batch_size",
			Message: "max batch size must be positive",
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	// Validate logging level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	// Validate logging format
	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text', or 'console'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Path == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: "metrics path is required when metrics are enabled",
			})
		} else if cfg.Metrics.Path[0] != '/' {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: "metrics path must start with /",
			})
		}
		for i := 1; i < len(cfg.Metrics.DurationBuckets); i++ {
			if cfg.Metrics.DurationBuckets[i] <= cfg.Metrics.DurationBuckets[i-1] {
				errs = append(errs, FieldError{
					Field:   "telemetry.metrics.duration_buckets",
					Message: "buckets must be strictly increasing",
				})
				break
			}
		}
	}

	// Validate tracing configuration
	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.endpoint",
				Message: "tracing endpoint is required when tracing is enabled",
			})
		}
		if cfg.Tracing.Exporter != "otlp" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.exporter",
				Message: fmt.Sprintf("invalid exporter %q: must be 'otlp'", cfg.Tracing.Exporter),
			})
		}
	}
	switch cfg.Tracing.Sampler {
	case "always", "never", "ratio":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	return errs
}

func validateSecurity(cfg *SecurityConfig) []FieldError {
	var errs []FieldError

	auth := &cfg.Authentication
	if auth.Enabled {
		if auth.Header == "" {
			errs = append(errs, FieldError{
				Field:   "security.authentication.header",
				Message: "header is required when authentication is enabled",
			})
		}
		active := 0
		seen := make(map[string]bool, len(auth.Keys))
		for i, key := range auth.Keys {
			prefix := fmt.Sprintf("security.authentication.keys[%d]", i)
			if key.Key == "" {
				errs = append(errs, FieldError{Field: prefix + ".key", Message: "key is required"})
			} else if seen[key.Key] {
				errs = append(errs, FieldError{Field: prefix + ".key", Message: "duplicate key"})
			}
			seen[key.Key] = true
			if key.Subject == "" {
				errs = append(errs, FieldError{Field: prefix + ".subject", Message: "subject is required"})
			}
			if !key.Disabled {
				active++
			}
		}
		if active == 0 {
			errs = append(errs, FieldError{
				Field:   "security.authentication.keys",
				Message: "at least one enabled key is required when authentication is enabled",
			})
		}
	}

	authz := &cfg.Authorization
	switch authz.Mode {
	case "disabled":
	case "enforce", "shadow":
		if authz.PolicyFile == "" {
			errs = append(errs, FieldError{
				Field:   "security.authorization.policy_file",
				Message: fmt.Sprintf("policy file is required when authorization mode is %q", authz.Mode),
			})
		}
		if !auth.Enabled {
			errs = append(errs, FieldError{
				Field:   "security.authorization.mode",
				Message: "authorization requires authentication to be enabled",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "security.authorization.mode",
			Message: fmt.Sprintf("invalid authorization mode %q: must be 'enforce', 'shadow', or 'disabled'", authz.Mode),
		})
	}

	return errs
}
