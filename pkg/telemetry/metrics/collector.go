package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"hera-erp/configrules/pkg/config"
)

// Collector owns the Prometheus registry and every metric the service
// exports. It satisfies engine.Recorder, so the engine records evaluations
// through it directly.
//
// A collector built from a disabled config accepts every call and records
// nothing.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	evaluationMetrics *EvaluationMetrics
	requestMetrics    *RequestMetrics
	cacheMetrics      *CacheMetrics
	storeMetrics      *StoreMetrics
}

// NewCollector creates a new metrics collector with the specified
// configuration and Prometheus registry. If registry is nil, a fresh registry
// with the Go runtime and process collectors is created.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	eng, _ := engine.NewEngine(engCfg, store, logger, engine.WithRecorder(collector))
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	// Work on a copy so defaults do not leak into the caller's config
	c := *cfg
	if c.Namespace == "" {
		c.Namespace = config.DefaultMetricsNamespace
	}
	if c.Subsystem == "" {
		c.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(c.DurationBuckets) == 0 {
		c.DurationBuckets = config.DefaultDurationBuckets
	}

	return &Collector{
		config:            &c,
		registry:          registry,
		evaluationMetrics: NewEvaluationMetrics(&c, registry),
		requestMetrics:    NewRequestMetrics(&c, registry),
		cacheMetrics:      NewCacheMetrics(&c, registry),
		storeMetrics:      NewStoreMetrics(&c, registry),
	}
}

// RecordEvaluation records one evaluation. outcome is a match reason
// ("condition_matched", "default_fallback", "no_match") or an error kind.
func (c *Collector) RecordEvaluation(outcome string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.evaluationMetrics.RecordEvaluation(outcome, duration)
}

// RecordStoreError records a failed rule store call.
func (c *Collector) RecordStoreError(operation string) {
	if !c.config.Enabled {
		return
	}
	c.storeMetrics.RecordError(operation)
}

// RecordMalformedSkipped records rules skipped because their condition tree
// could not be decoded.
func (c *Collector) RecordMalformedSkipped(count int) {
	if !c.config.Enabled || count <= 0 {
		return
	}
	c.evaluationMetrics.RecordMalformedSkipped(count)
}

// RecordBatch records a batch evaluation with its size and failed entries.
func (c *Collector) RecordBatch(size, failed int) {
	if !c.config.Enabled {
		return
	}
	c.evaluationMetrics.RecordBatch(size, failed)
}

// RecordHTTPRequest records a served HTTP request. route is the matched
// route pattern, not the raw path, to keep label cardinality bounded.
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.RecordRequest(method, route, strconv.Itoa(status), duration)
}

// RecordAuthorization records an authorization decision.
func (c *Collector) RecordAuthorization(mode, decision string) {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.RecordAuthorization(mode, decision)
}

// RecordCacheHit records a cache hit.
func (c *Collector) RecordCacheHit(cacheName string) {
	if !c.config.Enabled {
		return
	}
	c.cacheMetrics.RecordHit(cacheName)
}

// RecordCacheMiss records a cache miss.
func (c *Collector) RecordCacheMiss(cacheName string) {
	if !c.config.Enabled {
		return
	}
	c.cacheMetrics.RecordMiss(cacheName)
}

// RecordCacheError records a cache backend failure. The store falls through
// to its source when this happens.
func (c *Collector) RecordCacheError(cacheName string) {
	if !c.config.Enabled {
		return
	}
	c.cacheMetrics.RecordError(cacheName)
}

// UpdateCacheSize updates the current number of entries in a cache.
func (c *Collector) UpdateCacheSize(cacheName string, size int) {
	if !c.config.Enabled {
		return
	}
	c.cacheMetrics.UpdateSize(cacheName, size)
}

// RecordReload records a rule reload attempt of a store.
func (c *Collector) RecordReload(store string, err error) {
	if !c.config.Enabled {
		return
	}
	c.storeMetrics.RecordReload(store, err)
}

// UpdateRulesLoaded sets the number of rules held by a store.
func (c *Collector) UpdateRulesLoaded(store string, count int) {
	if !c.config.Enabled {
		return
	}
	c.storeMetrics.UpdateRulesLoaded(store, count)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
