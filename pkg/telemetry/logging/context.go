package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// TenantIDKey is the context key for the tenant (organization) ID.
	TenantIDKey contextKey = "organization_id"

	// SubjectKey is the context key for the authenticated caller.
	SubjectKey contextKey = "subject"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithTenantID adds a tenant ID to the context.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, TenantIDKey, tenantID)
}

// GetTenantID retrieves the tenant ID from the context.
func GetTenantID(ctx context.Context) string {
	if tenantID, ok := ctx.Value(TenantIDKey).(string); ok {
		return tenantID
	}
	return ""
}

// WithSubject adds the authenticated subject to the context.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, SubjectKey, subject)
}

// GetSubject retrieves the authenticated subject from the context.
func GetSubject(ctx context.Context) string {
	if subject, ok := ctx.Value(SubjectKey).(string); ok {
		return subject
	}
	return ""
}

// extractContextFields extracts common fields from context for logging.
func extractContextFields(ctx context.Context) []slog.Attr {
	var fields []slog.Attr

	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, slog.String(string(RequestIDKey), requestID))
	}
	if tenantID := GetTenantID(ctx); tenantID != "" {
		fields = append(fields, slog.String(string(TenantIDKey), tenantID))
	}
	if subject := GetSubject(ctx); subject != "" {
		fields = append(fields, slog.String(string(SubjectKey), subject))
	}

	return fields
}

// ContextHandler is a slog.Handler that copies request, tenant and subject
// identifiers from the context onto each record.
type ContextHandler struct {
	slog.Handler
}

// NewContextHandler wraps h.
func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

// Handle adds context fields and forwards the record.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if fields := extractContextFields(ctx); len(fields) > 0 {
			r = r.Clone()
			r.AddAttrs(fields...)
		}
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs returns a ContextHandler whose inner handler has attrs.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup returns a ContextHandler whose inner handler uses the group.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name)}
}
