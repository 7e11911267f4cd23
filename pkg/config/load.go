package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "HERA_"

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded on top of Default, remaining zero values are filled and
// the result is validated. An empty path yields the validated defaults.
// The configuration is not modified by environment variables; use
// LoadConfigWithEnvOverrides for that functionality.
func LoadConfig(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention HERA_SECTION_FIELD (e.g., HERA_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file over defaults
// 2. Apply environment variable overrides
// 3. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg, os.Getenv)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration from r on top of the defaults. It does
// not validate.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Values that fail to parse are ignored.
func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	env := envReader{getenv: getenv}

	// Server overrides
	env.str("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	env.duration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	env.duration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	env.duration("SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	env.duration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	if val := env.get("SERVER_MAX_BODY_BYTES"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Server.MaxBodyBytes = i
		}
	}

	env.boolean("SERVER_RATE_LIMIT_ENABLED", &cfg.Server.RateLimit.Enabled)
	if val := env.get("SERVER_RATE_LIMIT_REQUESTS_PER_SECOND"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Server.RateLimit.RequestsPerSecond = f
		}
	}
	env.integer("SERVER_RATE_LIMIT_BURST", &cfg.Server.RateLimit.Burst)

	// Store overrides
	env.str("STORE_BACKEND", &cfg.Store.Backend)
	env.str("STORE_FILE_PATH", &cfg.Store.File.Path)
	env.boolean("STORE_FILE_WATCH", &cfg.Store.File.Watch)
	env.duration("STORE_FILE_DEBOUNCE", &cfg.Store.File.Debounce)
	env.str("STORE_SQLITE_PATH", &cfg.Store.SQLite.Path)
	env.duration("STORE_SQLITE_BUSY_TIMEOUT", &cfg.Store.SQLite.BusyTimeout)
	env.str("STORE_POSTGRES_DSN", &cfg.Store.Postgres.DSN)
	if val := env.get("STORE_POSTGRES_MAX_CONNS"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 32); err == nil {
			cfg.Store.Postgres.MaxConns = int32(i)
		}
	}
	env.duration("STORE_POSTGRES_CONNECT_TIMEOUT", &cfg.Store.Postgres.ConnectTimeout)
	env.boolean("STORE_CACHE_ENABLED", &cfg.Store.Cache.Enabled)
	env.duration("STORE_CACHE_TTL", &cfg.Store.Cache.TTL)
	env.integer("STORE_CACHE_MAX_ENTRIES", &cfg.Store.Cache.MaxEntries)
	env.boolean("STORE_REDIS_ENABLED", &cfg.Store.Redis.Enabled)
	env.str("STORE_REDIS_ADDRESS", &cfg.Store.Redis.Address)
	env.str("STORE_REDIS_PASSWORD", &cfg.Store.Redis.Password)
	env.integer("STORE_REDIS_DB", &cfg.Store.Redis.DB)
	env.duration("STORE_REDIS_TTL", &cfg.Store.Redis.TTL)
	env.str("STORE_REDIS_KEY_PREFIX", &cfg.Store.Redis.KeyPrefix)
	env.str("STORE_REFRESH_SCHEDULE", &cfg.Store.Refresh.Schedule)

	// Engine overrides
	env.integer("ENGINE_MAX_CONDITION_DEPTH", &cfg.Engine.MaxConditionDepth)
	env.duration("ENGINE_STORE_TIMEOUT", &cfg.Engine.StoreTimeout)
	env.integer("ENGINE_BATCH_CONCURRENCY", &cfg.Engine.BatchConcurrency)
	env.integer("ENGINE_MAX_BATCH_SIZE", &cfg.Engine.MaxBatchSize)

	// Telemetry overrides
	env.str("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	env.str("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	env.boolean("TELEMETRY_LOGGING_ADD_SOURCE", &cfg.Telemetry.Logging.AddSource)
	env.boolean("TELEMETRY_LOGGING_REDACT_SECRETS", &cfg.Telemetry.Logging.RedactSecrets)
	env.boolean("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	env.str("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	env.boolean("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	env.str("TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	if val := env.get("TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
	env.str("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	env.str("TELEMETRY_TRACING_SERVICE_NAME", &cfg.Telemetry.Tracing.ServiceName)
	env.boolean("TELEMETRY_TRACING_OTLP_INSECURE", &cfg.Telemetry.Tracing.OTLP.Insecure)

	// Security overrides
	env.boolean("SECURITY_AUTHENTICATION_ENABLED", &cfg.Security.Authentication.Enabled)
	if val := env.get("SECURITY_AUTHENTICATION_KEYS"); val != "" {
		cfg.Security.Authentication.Keys = append(cfg.Security.Authentication.Keys, parseKeyList(val)...)
	}
	env.str("SECURITY_AUTHORIZATION_MODE", &cfg.Security.Authorization.Mode)
	env.str("SECURITY_AUTHORIZATION_POLICY_FILE", &cfg.Security.Authorization.PolicyFile)
}

// parseKeyList parses "subject=key,subject=key". Entries without a subject
// are skipped.
func parseKeyList(val string) []APIKeyConfig {
	var keys []APIKeyConfig
	for _, entry := range strings.Split(val, ",") {
		subject, key, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || subject == "" || key == "" {
			continue
		}
		keys = append(keys, APIKeyConfig{Key: key, Subject: subject})
	}
	return keys
}

type envReader struct {
	getenv func(string) string
}

func (r envReader) get(name string) string {
	return r.getenv(EnvPrefix + name)
}

func (r envReader) str(name string, dst *string) {
	if val := r.get(name); val != "" {
		*dst = val
	}
}

func (r envReader) boolean(name string, dst *bool) {
	if val := r.get(name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func (r envReader) integer(name string, dst *int) {
	if val := r.get(name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func (r envReader) duration(name string, dst *time.Duration) {
	if val := r.get(name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
