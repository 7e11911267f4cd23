package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"hera-erp/configrules/pkg/config"
)

// RequestMetrics tracks HTTP API traffic.
//
// Metrics:
//   - hera_configrules_http_requests_total: Requests by method, route and status code
//   - hera_configrules_http_request_duration_seconds: Request latency
//   - hera_configrules_authorization_decisions_total: Authorization decisions by mode
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	authzDecisions  *prometheus.CounterVec
}

// NewRequestMetrics creates and registers request metrics with the provided registry.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests served",
			},
			[]string{"method", "route", "code"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"method", "route"},
		),

		authzDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "authorization_decisions_total",
				Help:      "Tenant authorization decisions",
			},
			[]string{"mode", "decision"},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.authzDecisions,
	)

	return rm
}

// RecordRequest records a completed request.
func (rm *RequestMetrics) RecordRequest(method, route, code string, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(method, route, code).Inc()
	rm.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAuthorization records an authorization decision ("allow" or "deny").
func (rm *RequestMetrics) RecordAuthorization(mode, decision string) {
	rm.authzDecisions.WithLabelValues(mode, decision).Inc()
}
