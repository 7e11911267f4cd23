package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"hera-erp/configrules/pkg/rules"
	"hera-erp/configrules/pkg/telemetry/tracing"
)

// RuleStore provides active configuration rules to the engine. Implementations
// must be safe for concurrent use and return only rules of the given tenant.
type RuleStore interface {
	// FetchActiveRules returns the active rules for one tenant and key.
	FetchActiveRules(ctx context.Context, tenantID, configKey string) ([]rules.ConfigurationRule, error)

	// ListActiveRules returns every active rule of a tenant.
	ListActiveRules(ctx context.Context, tenantID string) ([]rules.ConfigurationRule, error)
}

// Recorder receives evaluation measurements. The metrics package provides the
// Prometheus implementation.
type Recorder interface {
	// RecordEvaluation records one Evaluate call. outcome is a match reason
	// or an error kind.
	RecordEvaluation(outcome string, duration time.Duration)

	// RecordStoreError records a failed store call.
	RecordStoreError(operation string)

	// RecordMalformedSkipped records rules skipped for malformed conditions.
	RecordMalformedSkipped(count int)

	// RecordBatch records a batch with its size and failed slot count.
	RecordBatch(size, failed int)
}

// Outcome labels used for errors; successful evaluations use the match reason.
const (
	OutcomeInvalidArgument  = "invalid_argument"
	OutcomeStoreUnavailable = "store_unavailable"
)

// Query is one entry of a batch evaluation.
type Query struct {
	ConfigKey string
	Context   rules.Context
}

// BatchResult pairs a batch query with its outcome. Exactly one of Result and
// Err is set.
type BatchResult struct {
	ConfigKey string
	Result    *rules.ResolvedConfiguration
	Err       error
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder sets the measurement sink.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithTracer sets the tracer used for engine spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// Engine resolves configuration values for tenants. It holds no mutable state
// besides its collaborators and is safe for concurrent use.
type Engine struct {
	config   *EngineConfig
	store    RuleStore
	selector *Selector
	logger   *slog.Logger
	recorder Recorder
	tracer   trace.Tracer
}

// NewEngine creates a configuration rule engine reading from store.
func NewEngine(config *EngineConfig, store RuleStore, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if config == nil {
		config = DefaultEngineConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if store == nil {
		return nil, fmt.Errorf("rule store cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		config:   config,
		store:    store,
		selector: NewSelector(NewEvaluator(config.MaxConditionDepth), logger),
		logger:   logger,
		recorder: nopRecorder{},
		tracer:   noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Evaluate resolves the value of configKey for tenantID under evalCtx. A key
// with no applicable rule is not an error: the result has a nil Value and a
// nil MatchedRuleID.
func (e *Engine) Evaluate(ctx context.Context, tenantID, configKey string, evalCtx rules.Context) (*rules.ResolvedConfiguration, error) {
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "engine.Evaluate", trace.WithAttributes(
		attribute.String(tracing.AttrTenantID, tenantID),
		attribute.String(tracing.AttrConfigKey, configKey),
	))
	defer span.End()

	res, err := e.evaluate(ctx, tenantID, configKey, evalCtx)
	e.recorder.RecordEvaluation(outcomeOf(res, err), time.Since(start))
	if err != nil {
		tracing.SetError(span, err)
		tracing.SetStatus(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String(tracing.AttrMatchReason, string(res.MatchReason)),
		attribute.Int(tracing.AttrCandidates, res.CandidatesEvaluated),
	)
	if res.MatchedRuleID != nil {
		span.SetAttributes(attribute.String(tracing.AttrRuleID, *res.MatchedRuleID))
	}
	tracing.SetStatus(span, nil)
	return res, nil
}

func (e *Engine) evaluate(ctx context.Context, tenantID, configKey string, evalCtx rules.Context) (*rules.ResolvedConfiguration, error) {
	tenantID = strings.TrimSpace(tenantID)
	configKey = strings.TrimSpace(configKey)
	if tenantID == "" {
		return nil, invalidArgument("organization_id", "must not be empty")
	}
	if configKey == "" {
		return nil, invalidArgument("config_key", "must not be empty")
	}
	if evalCtx == nil {
		evalCtx = rules.Context{}
	}

	candidates, err := e.fetch(ctx, tenantID, configKey)
	if err != nil {
		return nil, err
	}

	sel := e.selector.Select(tenantID, configKey, candidates, evalCtx)
	if n := len(sel.SkippedMalformed); n > 0 {
		e.recorder.RecordMalformedSkipped(n)
	}

	res := &rules.ResolvedConfiguration{
		ConfigKey:           configKey,
		TenantID:            tenantID,
		MatchReason:         sel.Reason,
		CandidatesEvaluated: sel.CandidatesEvaluated,
	}
	if sel.Found() {
		id := sel.Rule.ID
		res.MatchedRuleID = &id
		res.Value = sel.Rule.Value
	}

	e.logger.Debug("configuration evaluated",
		"tenant_id", tenantID,
		"config_key", configKey,
		"match_reason", res.MatchReason,
		"matched_rule_id", sel.ruleID(),
		"candidates", sel.CandidatesEvaluated,
	)

	return res, nil
}

func (e *Engine) fetch(ctx context.Context, tenantID, configKey string) ([]rules.ConfigurationRule, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	defer cancel()

	candidates, err := e.store.FetchActiveRules(ctx, tenantID, configKey)
	if err != nil {
		e.recorder.RecordStoreError("fetch_active_rules")
		e.logger.Warn("rule store fetch failed",
			"tenant_id", tenantID,
			"config_key", configKey,
			"error", err,
		)
		return nil, &StoreUnavailableError{
			Operation: "fetch_active_rules",
			TenantID:  tenantID,
			ConfigKey: configKey,
			Cause:     err,
		}
	}
	return candidates, nil
}

// EvaluateBatch evaluates several keys for one tenant. Queries run
// concurrently and fail independently: results[i] always answers queries[i],
// and a failed query carries its own error. The returned error is set only
// when the batch as a whole is rejected.
func (e *Engine) EvaluateBatch(ctx context.Context, tenantID string, queries []Query) ([]BatchResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.EvaluateBatch", trace.WithAttributes(
		attribute.String(tracing.AttrTenantID, tenantID),
		attribute.Int(tracing.AttrBatchSize, len(queries)),
	))
	defer span.End()

	if strings.TrimSpace(tenantID) == "" {
		err := invalidArgument("organization_id", "must not be empty")
		tracing.SetStatus(span, err)
		return nil, err
	}
	if len(queries) > e.config.MaxBatchSize {
		err := invalidArgument("queries", "batch of %d exceeds the limit of %d", len(queries), e.config.MaxBatchSize)
		tracing.SetStatus(span, err)
		return nil, err
	}

	results := make([]BatchResult, len(queries))

	var g errgroup.Group
	g.SetLimit(e.config.BatchConcurrency)
	for i, q := range queries {
		g.Go(func() error {
			res, err := e.Evaluate(ctx, tenantID, q.ConfigKey, q.Context)
			results[i] = BatchResult{ConfigKey: q.ConfigKey, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	e.recorder.RecordBatch(len(queries), failed)
	span.SetAttributes(attribute.Int(tracing.AttrBatchFailed, failed))
	tracing.SetStatus(span, nil)

	return results, nil
}

// ListRules returns the active rules the store holds for a tenant, narrowed
// to configKey when it is not empty. No selection is applied.
func (e *Engine) ListRules(ctx context.Context, tenantID, configKey string) ([]rules.ConfigurationRule, error) {
	ctx, span := e.tracer.Start(ctx, "engine.ListRules", trace.WithAttributes(
		attribute.String(tracing.AttrTenantID, tenantID),
		attribute.String(tracing.AttrConfigKey, configKey),
	))
	defer span.End()

	tenantID = strings.TrimSpace(tenantID)
	configKey = strings.TrimSpace(configKey)
	if tenantID == "" {
		err := invalidArgument("organization_id", "must not be empty")
		tracing.SetStatus(span, err)
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	defer cancel()

	var (
		list []rules.ConfigurationRule
		err  error
		op   string
	)
	if configKey == "" {
		op = "list_active_rules"
		list, err = e.store.ListActiveRules(ctx, tenantID)
	} else {
		op = "fetch_active_rules"
		list, err = e.store.FetchActiveRules(ctx, tenantID, configKey)
	}
	if err != nil {
		e.recorder.RecordStoreError(op)
		storeErr := &StoreUnavailableError{Operation: op, TenantID: tenantID, ConfigKey: configKey, Cause: err}
		tracing.SetError(span, storeErr)
		tracing.SetStatus(span, storeErr)
		return nil, storeErr
	}

	span.SetAttributes(attribute.Int(tracing.AttrCandidates, len(list)))
	tracing.SetStatus(span, nil)
	return list, nil
}

func outcomeOf(res *rules.ResolvedConfiguration, err error) string {
	switch {
	case err == nil:
		return string(res.MatchReason)
	case errors.Is(err, ErrInvalidArgument):
		return OutcomeInvalidArgument
	default:
		return OutcomeStoreUnavailable
	}
}

func (s Selection) ruleID() string {
	if s.Rule == nil {
		return ""
	}
	return s.Rule.ID
}

type nopRecorder struct{}

func (nopRecorder) RecordEvaluation(string, time.Duration) {}
func (nopRecorder) RecordStoreError(string)                {}
func (nopRecorder) RecordMalformedSkipped(int)             {}
func (nopRecorder) RecordBatch(int, int)                   {}
