package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"hera-erp/configrules/pkg/config"
)

// EvaluationMetrics tracks configuration evaluations.
//
// Metrics:
//   - hera_configrules_evaluations_total: Evaluations by outcome
//   - hera_configrules_evaluation_duration_seconds: Evaluation latency by outcome
//   - hera_configrules_malformed_rules_skipped_total: Rules skipped for bad conditions
//   - hera_configrules_batch_size: Queries per batch
//   - hera_configrules_batch_failures_total: Failed batch entries
type EvaluationMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	malformedSkipped   prometheus.Counter
	batchSize          prometheus.Histogram
	batchFailures      prometheus.Counter
}

// NewEvaluationMetrics creates and registers evaluation metrics with the
// provided registry.
func NewEvaluationMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *EvaluationMetrics {
	em := &EvaluationMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluations_total",
				Help:      "Total number of configuration evaluations",
			},
			[]string{"outcome"},
		),

		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of configuration evaluations in seconds, including the store fetch",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"outcome"},
		),

		malformedSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "malformed_rules_skipped_total",
				Help:      "Rules skipped during selection because their condition tree is malformed",
			},
		),

		batchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "batch_size",
				Help:      "Number of queries per batch evaluation",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 8), // 1 to 128
			},
		),

		batchFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "batch_failures_total",
				Help:      "Batch entries that failed evaluation",
			},
		),
	}

	registry.MustRegister(
		em.evaluationsTotal,
		em.evaluationDuration,
		em.malformedSkipped,
		em.batchSize,
		em.batchFailures,
	)

	return em
}

// RecordEvaluation records one evaluation outcome and its latency.
func (em *EvaluationMetrics) RecordEvaluation(outcome string, duration time.Duration) {
	em.evaluationsTotal.WithLabelValues(outcome).Inc()
	em.evaluationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordMalformedSkipped adds skipped malformed rules.
func (em *EvaluationMetrics) RecordMalformedSkipped(count int) {
	em.malformedSkipped.Add(float64(count))
}

// RecordBatch records a batch size and its failed entries.
func (em *EvaluationMetrics) RecordBatch(size, failed int) {
	em.batchSize.Observe(float64(size))
	if failed > 0 {
		em.batchFailures.Add(float64(failed))
	}
}
