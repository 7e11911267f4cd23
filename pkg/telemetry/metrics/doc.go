// Package metrics provides Prometheus metrics for the configuration rule
// service.
//
// # Metrics Categories
//
//   - Evaluation Metrics: evaluation count and latency by outcome, skipped
//     malformed rules, batch sizes and failures
//   - Request Metrics: HTTP request count and latency by route, authorization
//     decisions
//   - Cache Metrics: hits, misses, errors and sizes per cache
//   - Store Metrics: store errors, reloads and loaded rule counts
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	eng, err := engine.NewEngine(engCfg, store, logger, engine.WithRecorder(collector))
//	router.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// Outcome labels are the match reasons ("condition_matched",
// "default_fallback", "no_match") plus "invalid_argument" and
// "store_unavailable". Tenant ids and config keys are never used as labels.
//
// # Prometheus Endpoint
//
//	# HELP hera_configrules_evaluations_total Total number of configuration evaluations
//	# TYPE hera_configrules_evaluations_total counter
//	hera_configrules_evaluations_total{outcome="condition_matched"} 1234
package metrics
