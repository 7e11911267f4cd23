package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"hera-erp/configrules/pkg/config"
	"hera-erp/configrules/pkg/engine"
	"hera-erp/configrules/pkg/engine/store"
	"hera-erp/configrules/pkg/rules"
	"hera-erp/configrules/pkg/security/authz"
)

const batchThreshold = "auto_journal.batch_threshold"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRules() []rules.ConfigurationRule {
	docs := []rules.RuleDocument{
		{ID: "batch-default", TenantID: "org-1", ConfigKey: batchThreshold, RuleType: rules.RuleTypeDefault, Value: 10},
		{
			ID: "batch-restaurant", TenantID: "org-1", ConfigKey: batchThreshold,
			RuleType: rules.RuleTypeConditional, Priority: 10, Value: 50,
			Conditions: map[string]any{"field": "industry", "operator": "equals", "value": "restaurant"},
		},
		{ID: "currency-default", TenantID: "org-1", ConfigKey: "finance.currency", RuleType: rules.RuleTypeDefault, Value: "AED"},
		{ID: "other-default", TenantID: "org-2", ConfigKey: batchThreshold, RuleType: rules.RuleTypeDefault, Value: 99},
	}
	out := make([]rules.ConfigurationRule, len(docs))
	for i, doc := range docs {
		out[i] = rules.FromDocument(doc)
	}
	return out
}

func testServerConfig() *config.ServerConfig {
	return &config.ServerConfig{
		ListenAddress:   "127.0.0.1:0",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		IdleTimeout:     5 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		MaxBodyBytes:    4096,
	}
}

func newTestEngine(t *testing.T, rs engine.RuleStore) *engine.Engine {
	t.Helper()
	if rs == nil {
		rs = store.NewMemoryStore(testRules()...)
	}
	eng, err := engine.NewEngine(nil, rs, discardLogger())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return eng
}

func newTestServer(t *testing.T, deps Dependencies) *Server {
	t.Helper()
	if deps.Engine == nil {
		deps.Engine = newTestEngine(t, nil)
	}
	srv, err := New(testServerConfig(), deps, discardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

func do(t *testing.T, h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func bigBody(n int) string {
	var b bytes.Buffer
	b.WriteString(`{"organization_id":"org-1","config_key":"`)
	b.WriteString(strings.Repeat("k", n))
	b.WriteString(`"}`)
	return b.String()
}

type failingStore struct{}

func (failingStore) FetchActiveRules(context.Context, string, string) ([]rules.ConfigurationRule, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) ListActiveRules(context.Context, string) ([]rules.ConfigurationRule, error) {
	return nil, errors.New("connection refused")
}

type panickingEngine struct{ Evaluator }

func (panickingEngine) Evaluate(context.Context, string, string, rules.Context) (*rules.ResolvedConfiguration, error) {
	panic("boom")
}

type fakeRecorder struct {
	mu        sync.Mutex
	requests  []string
	decisions []string
}

func (f *fakeRecorder) RecordHTTPRequest(method, route string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, method+" "+route+" "+http.StatusText(status))
}

func (f *fakeRecorder) RecordAuthorization(mode, decision string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions = append(f.decisions, mode+":"+decision)
}

type fakeAuthorizer struct {
	mode    authz.Mode
	allowed map[string]bool // subject|tenant|action
	err     error
}

func (f *fakeAuthorizer) Authorize(subject, tenant, _, action string) (bool, bool, error) {
	if f.err != nil {
		return false, f.mode == authz.ModeEnforce, f.err
	}
	ok := f.allowed[subject+"|"+tenant+"|"+action]
	return ok, f.mode == authz.ModeEnforce, nil
}

func (f *fakeAuthorizer) Mode() authz.Mode { return f.mode }
