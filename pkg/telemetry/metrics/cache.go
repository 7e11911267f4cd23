package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"hera-erp/configrules/pkg/config"
)

// CacheMetrics tracks rule cache performance.
//
// Metrics:
//   - hera_configrules_cache_hits_total: Cache hits by cache name
//   - hera_configrules_cache_misses_total: Cache misses by cache name
//   - hera_configrules_cache_errors_total: Cache backend failures
//   - hera_configrules_cache_entries: Current number of entries in cache
//
// Cache names are "memory" for the in-process cache and "redis".
type CacheMetrics struct {
	hitsTotal   *prometheus.CounterVec
	missesTotal *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	entries     *prometheus.GaugeVec
}

// NewCacheMetrics creates and registers cache metrics with the provided registry.
func NewCacheMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CacheMetrics {
	cm := &CacheMetrics{
		hitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"cache"},
		),

		missesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses",
			},
			[]string{"cache"},
		),

		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_errors_total",
				Help:      "Total number of cache backend errors",
			},
			[]string{"cache"},
		),

		entries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_entries",
				Help:      "Current number of entries in cache",
			},
			[]string{"cache"},
		),
	}

	registry.MustRegister(
		cm.hitsTotal,
		cm.missesTotal,
		cm.errorsTotal,
		cm.entries,
	)

	return cm
}

// RecordHit records a cache hit.
func (cm *CacheMetrics) RecordHit(cacheName string) {
	cm.hitsTotal.WithLabelValues(cacheName).Inc()
}

// RecordMiss records a cache miss.
func (cm *CacheMetrics) RecordMiss(cacheName string) {
	cm.missesTotal.WithLabelValues(cacheName).Inc()
}

// RecordError records a cache backend failure.
func (cm *CacheMetrics) RecordError(cacheName string) {
	cm.errorsTotal.WithLabelValues(cacheName).Inc()
}

// UpdateSize updates the current size of a cache.
func (cm *CacheMetrics) UpdateSize(cacheName string, size int) {
	cm.entries.WithLabelValues(cacheName).Set(float64(size))
}
