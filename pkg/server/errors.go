package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"hera-erp/configrules/pkg/engine"
	"hera-erp/configrules/pkg/telemetry/tracing"
)

// Error codes returned in the error body.
const (
	CodeInvalidArgument  = "invalid_argument"
	CodeUnauthenticated  = "unauthenticated"
	CodePermissionDenied = "permission_denied"
	CodeStoreUnavailable = "store_unavailable"
	CodeNotFound         = "not_found"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeRequestTooLarge  = "request_too_large"
	CodeRateLimited      = "rate_limited"
	CodeInternal         = "internal"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a JSON error reply. Its signature matches the error
// writer expected by the authentication middleware.
func WriteError(w http.ResponseWriter, _ *http.Request, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// errorDetail maps an engine error onto a status and error body.
func errorDetail(err error) (int, ErrorDetail) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, engine.ErrInvalidArgument):
		return http.StatusBadRequest, ErrorDetail{Code: CodeInvalidArgument, Message: err.Error()}
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, ErrorDetail{Code: CodeRequestTooLarge, Message: "request body too large"}
	case errors.Is(err, engine.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, ErrorDetail{Code: CodeStoreUnavailable, Message: "rule store unavailable"}
	default:
		return http.StatusInternalServerError, ErrorDetail{Code: CodeInternal, Message: "internal error"}
	}
}

func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := errorDetail(err)
	tracing.SetErrorAttributes(trace.SpanFromContext(r.Context()), err, detail.Code)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "error", err, "status", status)
	} else {
		s.logger.DebugContext(r.Context(), "request rejected", "error", err, "status", status)
	}
	writeJSON(w, status, ErrorResponse{Error: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to encode response", "error", err)
	}
}
