package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"hera-erp/configrules/pkg/config"
	"hera-erp/configrules/pkg/telemetry/logging"
)

// ErrorWriter writes an authentication failure response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, code, message string)

// APIKeyMiddleware authenticates requests by API key and stores the
// resulting subject in the request context.
type APIKeyMiddleware struct {
	validator *APIKeyValidator
	header    string
	scheme    string
	logger    *slog.Logger
	onError   ErrorWriter
}

// NewAPIKeyMiddleware creates the middleware. A nil onError falls back to
// plain-text http.Error responses.
func NewAPIKeyMiddleware(validator *APIKeyValidator, cfg *config.AuthenticationConfig, logger *slog.Logger, onError ErrorWriter) *APIKeyMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, status int, _, message string) {
			http.Error(w, message, status)
		}
	}
	header := cfg.Header
	if header == "" {
		header = config.DefaultAuthHeader
	}
	return &APIKeyMiddleware{
		validator: validator,
		header:    header,
		scheme:    cfg.Scheme,
		logger:    logger,
		onError:   onError,
	}
}

// Handle wraps next with API key authentication.
func (m *APIKeyMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey, err := m.extractAPIKey(r)
		if err != nil {
			m.logger.WarnContext(r.Context(), "missing API key",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			m.onError(w, r, http.StatusUnauthorized, "unauthenticated", "missing or malformed API key")
			return
		}

		info, err := m.validator.Validate(apiKey)
		if err != nil {
			m.logger.WarnContext(r.Context(), "API key rejected",
				"error", err,
				"api_key", logging.RedactAPIKey(apiKey),
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			message := "invalid API key"
			if errors.Is(err, ErrAPIKeyDisabled) {
				message = "API key disabled"
			}
			m.onError(w, r, http.StatusUnauthorized, "unauthenticated", message)
			return
		}

		ctx := WithSubject(r.Context(), info.Subject)
		m.logger.DebugContext(ctx, "API key authenticated", "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *APIKeyMiddleware) extractAPIKey(r *http.Request) (string, error) {
	value := strings.TrimSpace(r.Header.Get(m.header))
	if value == "" {
		return "", ErrMissingAPIKey
	}
	if m.scheme == "" {
		return value, nil
	}
	scheme, key, ok := strings.Cut(value, " ")
	if !ok || !strings.EqualFold(scheme, m.scheme) || strings.TrimSpace(key) == "" {
		return "", ErrMissingAPIKey
	}
	return strings.TrimSpace(key), nil
}

// WithSubject stores the authenticated subject in ctx. The subject is also
// attached to log records written with ctx.
func WithSubject(ctx context.Context, subject string) context.Context {
	return logging.WithSubject(ctx, subject)
}

// Subject returns the authenticated subject, or "" when the request was not
// authenticated.
func Subject(ctx context.Context) string {
	return logging.GetSubject(ctx)
}
