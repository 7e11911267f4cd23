package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"hera-erp/configrules/pkg/config"
)

// StoreMetrics tracks the rule stores.
//
// Metrics:
//   - hera_configrules_store_errors_total: Failed store calls by operation
//   - hera_configrules_store_reloads_total: Reload attempts by store and result
//   - hera_configrules_rules_loaded: Rules currently held by a store
type StoreMetrics struct {
	errorsTotal  *prometheus.CounterVec
	reloadsTotal *prometheus.CounterVec
	rulesLoaded  *prometheus.GaugeVec
}

// NewStoreMetrics creates and registers store metrics with the provided registry.
func NewStoreMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *StoreMetrics {
	sm := &StoreMetrics{
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "store_errors_total",
				Help:      "Total number of failed rule store calls",
			},
			[]string{"operation"},
		),

		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "store_reloads_total",
				Help:      "Total number of rule reload attempts",
			},
			[]string{"store", "result"},
		),

		rulesLoaded: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rules_loaded",
				Help:      "Number of rules currently held by a store",
			},
			[]string{"store"},
		),
	}

	registry.MustRegister(
		sm.errorsTotal,
		sm.reloadsTotal,
		sm.rulesLoaded,
	)

	return sm
}

// RecordError records a failed store call.
func (sm *StoreMetrics) RecordError(operation string) {
	sm.errorsTotal.WithLabelValues(operation).Inc()
}

// RecordReload records a reload attempt; a nil err counts as success.
func (sm *StoreMetrics) RecordReload(store string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	sm.reloadsTotal.WithLabelValues(store, result).Inc()
}

// UpdateRulesLoaded sets the rule count of a store.
func (sm *StoreMetrics) UpdateRulesLoaded(store string, count int) {
	sm.rulesLoaded.WithLabelValues(store).Set(float64(count))
}
