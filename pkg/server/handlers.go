package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"hera-erp/configrules/pkg/config"
	"hera-erp/configrules/pkg/engine"
	"hera-erp/configrules/pkg/rules"
	"hera-erp/configrules/pkg/security/auth"
	"hera-erp/configrules/pkg/security/authz"
	"hera-erp/configrules/pkg/telemetry/logging"
	"hera-erp/configrules/pkg/telemetry/tracing"
)

// TenantHeader may carry the tenant instead of the body or query.
const TenantHeader = "X-Organization-Id"

// AnonymousSubject is the subject used when authentication is disabled.
const AnonymousSubject = "anonymous"

// Authorization decisions reported to the metrics recorder.
const (
	decisionAllow      = "allow"
	decisionDeny       = "deny"
	decisionShadowDeny = "shadow_deny"
	decisionError      = "error"
)

// EvaluateRequest is the body of POST /api/v1/config/evaluate.
type EvaluateRequest struct {
	OrganizationID string         `json:"organization_id"`
	ConfigKey      string         `json:"config_key"`
	Context        map[string]any `json:"context"`
}

// BatchQuery is one entry of a batch request.
type BatchQuery struct {
	ConfigKey string         `json:"config_key"`
	Context   map[string]any `json:"context"`
}

// BatchRequest is the body of POST /api/v1/config/evaluate/batch.
type BatchRequest struct {
	OrganizationID string       `json:"organization_id"`
	Queries        []BatchQuery `json:"queries"`
}

// BatchItem answers the query at the same index. Exactly one of Result and
// Error is set.
type BatchItem struct {
	ConfigKey string                       `json:"config_key"`
	Result    *rules.ResolvedConfiguration `json:"result,omitempty"`
	Error     *ErrorDetail                 `json:"error,omitempty"`
}

// BatchResponse is the reply to a batch request.
type BatchResponse struct {
	OrganizationID string      `json:"organization_id"`
	Results        []BatchItem `json:"results"`
}

// RulesResponse is the reply to GET /api/v1/config/rules.
type RulesResponse struct {
	OrganizationID string                    `json:"organization_id"`
	ConfigKey      string                    `json:"config_key,omitempty"`
	Count          int                       `json:"count"`
	Rules          []rules.ConfigurationRule `json:"rules"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	tenant, err := resolveTenant(r, req.OrganizationID)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	r = withTenant(r, tenant)
	if !s.authorize(w, r, tenant, authz.ActionEvaluate) || !s.admit(w, r, tenant, 1) {
		return
	}

	evalCtx, err := rules.ContextFromMap(req.Context)
	if err != nil {
		s.writeEngineError(w, r, &engine.InvalidArgumentError{Field: "context", Message: err.Error()})
		return
	}

	res, err := s.deps.Engine.Evaluate(r.Context(), tenant, req.ConfigKey, evalCtx)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleEvaluateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	tenant, err := resolveTenant(r, req.OrganizationID)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	r = withTenant(r, tenant)
	if !s.authorize(w, r, tenant, authz.ActionEvaluate) || !s.admit(w, r, tenant, len(req.Queries)) {
		return
	}

	queries := make([]engine.Query, len(req.Queries))
	for i, q := range req.Queries {
		evalCtx, err := rules.ContextFromMap(q.Context)
		if err != nil {
			s.writeEngineError(w, r, &engine.InvalidArgumentError{
				Field:   fmt.Sprintf("queries[%d].context", i),
				Message: err.Error(),
			})
			return
		}
		queries[i] = engine.Query{ConfigKey: q.ConfigKey, Context: evalCtx}
	}

	results, err := s.deps.Engine.EvaluateBatch(r.Context(), tenant, queries)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	resp := BatchResponse{OrganizationID: tenant, Results: make([]BatchItem, len(results))}
	for i, res := range results {
		item := BatchItem{ConfigKey: res.ConfigKey, Result: res.Result}
		if res.Err != nil {
			_, detail := errorDetail(res.Err)
			item.Error = &detail
			item.Result = nil
		}
		resp.Results[i] = item
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	tenant, err := resolveTenant(r, r.URL.Query().Get("organization_id"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	r = withTenant(r, tenant)
	if !s.authorize(w, r, tenant, authz.ActionRead) || !s.admit(w, r, tenant, 1) {
		return
	}

	configKey := strings.TrimSpace(r.URL.Query().Get("config_key"))
	list, err := s.deps.Engine.ListRules(r.Context(), tenant, configKey)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if list == nil {
		list = []rules.ConfigurationRule{}
	}
	writeJSON(w, http.StatusOK, RulesResponse{
		OrganizationID: tenant,
		ConfigKey:      configKey,
		Count:          len(list),
		Rules:          list,
	})
}

// decode reads a size-limited JSON body into v. Unknown fields are rejected.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	limit := s.config.MaxBodyBytes
	if limit <= 0 {
		limit = config.DefaultMaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return &engine.InvalidArgumentError{Field: "body", Message: err.Error()}
	}
	if dec.More() {
		return &engine.InvalidArgumentError{Field: "body", Message: "unexpected data after JSON object"}
	}
	return nil
}

// resolveTenant combines the tenant named by the request with the
// X-Organization-Id header. Either may be absent, but not both, and they
// must agree when both are present.
func resolveTenant(r *http.Request, fromRequest string) (string, error) {
	fromRequest = strings.TrimSpace(fromRequest)
	header := strings.TrimSpace(r.Header.Get(TenantHeader))
	switch {
	case fromRequest == "" && header == "":
		return "", &engine.InvalidArgumentError{Field: "organization_id", Message: "must not be empty"}
	case fromRequest == "":
		return header, nil
	case header != "" && header != fromRequest:
		return "", &engine.InvalidArgumentError{Field: "organization_id", Message: "does not match " + TenantHeader + " header"}
	default:
		return fromRequest, nil
	}
}

func withTenant(r *http.Request, tenant string) *http.Request {
	ctx := logging.WithTenantID(r.Context(), tenant)
	tracing.SetRequestAttributes(trace.SpanFromContext(ctx), logging.GetRequestID(ctx), auth.Subject(ctx))
	return r.WithContext(ctx)
}

// authorize checks tenant access and writes the error reply itself when the
// request must stop.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, tenant, action string) bool {
	if s.deps.Authorizer == nil {
		return true
	}
	subject := auth.Subject(r.Context())
	if subject == "" {
		subject = AnonymousSubject
	}
	mode := string(s.deps.Authorizer.Mode())

	allowed, enforced, err := s.deps.Authorizer.Authorize(subject, tenant, authz.ObjectConfig, action)
	switch {
	case err != nil:
		s.metrics.RecordAuthorization(mode, decisionError)
		s.logger.ErrorContext(r.Context(), "authorization failed", "error", err, "action", action)
		WriteError(w, r, http.StatusInternalServerError, CodeInternal, "authorization failed")
		return false
	case allowed:
		s.metrics.RecordAuthorization(mode, decisionAllow)
		return true
	case !enforced:
		s.metrics.RecordAuthorization(mode, decisionShadowDeny)
		return true
	default:
		s.metrics.RecordAuthorization(mode, decisionDeny)
		s.logger.WarnContext(r.Context(), "access denied", "subject", subject, "action", action)
		WriteError(w, r, http.StatusForbidden, CodePermissionDenied,
			fmt.Sprintf("subject %q may not %s configuration of %s", subject, action, tenant))
		return false
	}
}

// admit charges cost to the tenant's rate limit and writes a 429 reply when
// the request must wait.
func (s *Server) admit(w http.ResponseWriter, r *http.Request, tenant string, cost int) bool {
	if s.deps.Limiter == nil {
		return true
	}
	ok, wait := s.deps.Limiter.Allow(tenant, cost)
	if ok {
		return true
	}
	seconds := int(math.Ceil(wait.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	s.logger.InfoContext(r.Context(), "request throttled", "cost", cost, "retry_after_seconds", seconds)
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	WriteError(w, r, http.StatusTooManyRequests, CodeRateLimited,
		fmt.Sprintf("rate limit exceeded for %s, retry in %ds", tenant, seconds))
	return false
}
