package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Custom attribute keys use the "hera.*" namespace.
const (
	// Evaluation attributes
	AttrTenantID    = "hera.organization_id"
	AttrConfigKey   = "hera.config_key"
	AttrMatchReason = "hera.match_reason"
	AttrCandidates  = "hera.candidates_evaluated"
	AttrRuleID      = "hera.rule.id"

	// Batch attributes
	AttrBatchSize   = "hera.batch.size"
	AttrBatchFailed = "hera.batch.failed"

	// Request attributes
	AttrRequestID = "hera.request_id"
	AttrSubject   = "hera.subject"

	// Store attributes
	AttrStoreBackend = "hera.store.backend"
	AttrCacheHit     = "hera.cache.hit"
	AttrCacheName    = "hera.cache.name"

	// Error attributes
	AttrErrorType    = "hera.error.type"
	AttrErrorMessage = "error.message"
)

// SetRequestAttributes sets request identity attributes on a span. Empty
// values are skipped.
func SetRequestAttributes(span trace.Span, requestID, subject string) {
	attrs := make([]attribute.KeyValue, 0, 2)
	if requestID != "" {
		attrs = append(attrs, attribute.String(AttrRequestID, requestID))
	}
	if subject != "" {
		attrs = append(attrs, attribute.String(AttrSubject, subject))
	}
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
}

// SetCacheAttributes records a cache lookup as a span event, since one span
// may cover several lookups.
//
// Example:
//
//	SetCacheAttributes(span, true, "memory")
func SetCacheAttributes(span trace.Span, hit bool, cacheName string) {
	span.AddEvent("cache_lookup", trace.WithAttributes(
		attribute.Bool(AttrCacheHit, hit),
		attribute.String(AttrCacheName, cacheName),
	))
}

// SetErrorAttributes sets error-related attributes on a span, records the
// error and marks the span failed.
func SetErrorAttributes(span trace.Span, err error, errorType string) {
	if err == nil {
		return
	}
	span.SetAttributes(attribute.String(AttrErrorType, errorType))
	SetError(span, err)
	SetStatus(span, err)
}
