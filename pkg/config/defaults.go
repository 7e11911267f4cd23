package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress    = "127.0.0.1:8080"
	DefaultReadTimeout      = 15 * time.Second
	DefaultWriteTimeout     = 15 * time.Second
	DefaultIdleTimeout      = 60 * time.Second
	DefaultShutdownTimeout  = 30 * time.Second
	DefaultMaxBodyBytes     = int64(1048576) // 1MB
	DefaultRateLimitRPS     = 50.0
	DefaultRateLimitBurst   = 100
	DefaultRateLimitTenants = 10000

	// Store defaults
	DefaultStoreBackend       = "file"
	DefaultFilePath           = "./rules"
	DefaultFileDebounce       = 100 * time.Millisecond
	DefaultSQLitePath         = "data/rules.db"
	DefaultSQLiteBusyTimeout  = 5 * time.Second
	DefaultPostgresMaxConns   = int32(10)
	DefaultPostgresConnectTTL = 5 * time.Second
	DefaultCacheTTL           = 30 * time.Second
	DefaultCacheMaxEntries    = 10000
	DefaultRedisAddress       = "localhost:6379"
	DefaultRedisTTL           = 60 * time.Second
	DefaultRedisKeyPrefix     = "hera:rules:"

	// Engine defaults
	DefaultMaxConditionDepth = 32
	DefaultStoreTimeout      = 2 * time.Second
	DefaultBatchConcurrency  = 8
	DefaultMaxBatchSize      = 100

	// Telemetry defaults
	DefaultLoggingLevel         = "info"
	DefaultLoggingFormat        = "json"
	DefaultLoggingRedactSecrets = true
	DefaultMetricsEnabled       = true
	DefaultMetricsPath          = "/metrics"
	DefaultMetricsNamespace     = "hera"
	DefaultMetricsSubsystem     = "configrules"
	DefaultTracingEnabled       = false
	DefaultTracingSampler       = "ratio"
	DefaultTracingSampleRatio   = 1.0
	DefaultTracingExporter      = "otlp"
	DefaultTracingServiceName   = "hera-configrules"
	DefaultOTLPTimeout          = 10 * time.Second

	// Security defaults
	DefaultAuthHeader        = "Authorization"
	DefaultAuthScheme        = "Bearer"
	DefaultAuthorizationMode = "disabled"
)

// DefaultDurationBuckets are the histogram buckets, in seconds, used for
// evaluation and HTTP request latency.
var DefaultDurationBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Default returns a configuration with every field at its default value.
// Files are decoded on top of it so that booleans whose default is true can
// still be switched off explicitly.
func Default() *Config {
	cfg := &Config{}
	cfg.Telemetry.Logging.RedactSecrets = DefaultLoggingRedactSecrets
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Tracing.Enabled = DefaultTracingEnabled
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults. Booleans are
// left alone since their zero value is a legitimate setting; see Default.
// Calling it twice has no further effect.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Server.RateLimit.RequestsPerSecond == 0 {
		cfg.Server.RateLimit.RequestsPerSecond = DefaultRateLimitRPS
	}
	if cfg.Server.RateLimit.Burst == 0 {
		cfg.Server.RateLimit.Burst = DefaultRateLimitBurst
	}
	if cfg.Server.RateLimit.MaxTenants == 0 {
		cfg.Server.RateLimit.MaxTenants = DefaultRateLimitTenants
	}

	applyStoreDefaults(&cfg.Store)

	// Engine defaults
	if cfg.Engine.MaxConditionDepth == 0 {
		cfg.Engine.MaxConditionDepth = DefaultMaxConditionDepth
	}
	if cfg.Engine.StoreTimeout == 0 {
		cfg.Engine.StoreTimeout = DefaultStoreTimeout
	}
	if cfg.Engine.BatchConcurrency == 0 {
		cfg.Engine.BatchConcurrency = DefaultBatchConcurrency
	}
	if cfg.Engine.MaxBatchSize == 0 {
		cfg.Engine.MaxBatchSize = DefaultMaxBatchSize
	}

	applyTelemetryDefaults(&cfg.Telemetry)

	// Security defaults
	if cfg.Security.Authentication.Header == "" {
		cfg.Security.Authentication.Header = DefaultAuthHeader
	}
	if cfg.Security.Authentication.Scheme == "" {
		cfg.Security.Authentication.Scheme = DefaultAuthScheme
	}
	if cfg.Security.Authorization.Mode == "" {
		cfg.Security.Authorization.Mode = DefaultAuthorizationMode
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultStoreBackend
	}
	if cfg.File.Path == "" {
		cfg.File.Path = DefaultFilePath
	}
	if cfg.File.Debounce == 0 {
		cfg.File.Debounce = DefaultFileDebounce
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = DefaultSQLitePath
	}
	if cfg.SQLite.BusyTimeout == 0 {
		cfg.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Postgres.MaxConns == 0 {
		cfg.Postgres.MaxConns = DefaultPostgresMaxConns
	}
	if cfg.Postgres.ConnectTimeout == 0 {
		cfg.Postgres.ConnectTimeout = DefaultPostgresConnectTTL
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = DefaultCacheTTL
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = DefaultCacheMaxEntries
	}
	if cfg.Redis.Address == "" {
		cfg.Redis.Address = DefaultRedisAddress
	}
	if cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = DefaultRedisTTL
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}

	// Metrics defaults
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Metrics.DurationBuckets) == 0 {
		cfg.Metrics.DurationBuckets = append([]float64(nil), DefaultDurationBuckets...)
	}

	// Tracing defaults
	if cfg.Tracing.Sampler == "" {
		cfg.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Tracing.SampleRatio == 0 && cfg.Tracing.Sampler == "ratio" {
		cfg.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Tracing.Exporter == "" {
		cfg.Tracing.Exporter = DefaultTracingExporter
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Tracing.OTLP.Timeout == 0 {
		cfg.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}
}
