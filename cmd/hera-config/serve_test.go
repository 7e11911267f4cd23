package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hera-erp/configrules/pkg/cli"
	"hera-erp/configrules/pkg/config"
	"hera-erp/configrules/pkg/rules"
)

func TestServe_DryRun(t *testing.T) {
	tests := []struct {
		name     string
		config   string
		args     []string
		wantCode int
		wantOut  string
	}{
		{
			name:     "defaults",
			wantCode: cli.ExitOK,
			wantOut:  "Configuration valid",
		},
		{
			name:     "listen override",
			args:     []string{"--listen", "127.0.0.1:0"},
			wantCode: cli.ExitOK,
			wantOut:  "Configuration valid",
		},
		{
			name:     "invalid log level override",
			args:     []string{"--log-level", "loud"},
			wantCode: cli.ExitUsage,
		},
		{
			name:     "authorization without authentication",
			config:   "security:\n  authorization:\n    mode: enforce\n    policy_file: policy.csv\n",
			wantCode: cli.ExitUsage,
		},
		{
			name:     "unknown config field",
			config:   "server:\n  port: 8080\n",
			wantCode: cli.ExitUsage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := []string{"serve", "--dry-run"}
			if tt.config != "" {
				args = append(args, "-c", writeFile(t, t.TempDir(), "config.yaml", tt.config))
			}
			res := run(t, append(args, tt.args...)...)
			if res.code != tt.wantCode {
				t.Fatalf("exit = %d, want %d (stderr %s)", res.code, tt.wantCode, res.stderr)
			}
			if !strings.Contains(res.stdout, tt.wantOut) {
				t.Errorf("stdout = %q, want %q", res.stdout, tt.wantOut)
			}
		})
	}
}

func newTestApp(t *testing.T) *app {
	t.Helper()

	cfg := config.Default()
	cfg.Store.Backend = "file"
	cfg.Store.File.Path = ruleDir(t)
	cfg.Security.Authentication.Enabled = true
	cfg.Security.Authentication.Keys = []config.APIKeyConfig{
		{Key: "test-key-123", Subject: "svc-finance"},
	}
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := newApp(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	t.Cleanup(a.close)
	return a
}

func TestApp_ServesEvaluations(t *testing.T) {
	a := newTestApp(t)
	handler := a.server.Handler()

	evaluate := func(key string) *httptest.ResponseRecorder {
		body := `{"organization_id":"org-1","config_key":"auto_journal.batch_threshold","context":{"industry":"restaurant"}}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/config/evaluate", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := evaluate(""); rec.Code != http.StatusUnauthorized {
		t.Errorf("without key: status = %d, want 401", rec.Code)
	}
	if rec := evaluate("wrong"); rec.Code != http.StatusUnauthorized {
		t.Errorf("with wrong key: status = %d, want 401", rec.Code)
	}

	rec := evaluate("test-key-123")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var got rules.ResolvedConfiguration
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.MatchedRuleID == nil || *got.MatchedRuleID != "batch-restaurant" {
		t.Errorf("matched rule = %v, want batch-restaurant", got.MatchedRuleID)
	}
}

func TestApp_OperationalEndpoints(t *testing.T) {
	a := newTestApp(t)
	handler := a.server.Handler()

	tests := []struct {
		path     string
		wantCode int
		wantBody string
	}{
		{path: "/health", wantCode: http.StatusOK},
		{path: "/ready", wantCode: http.StatusOK, wantBody: "rule_store"},
		{path: "/version", wantCode: http.StatusOK, wantBody: Version},
		{path: config.DefaultMetricsPath, wantCode: http.StatusOK, wantBody: "hera_configrules"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			// One recorded request so the HTTP metrics have a series
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.wantCode, rec.Body)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body missing %q:\n%s", tt.wantBody, rec.Body)
			}
		})
	}
}

func TestVersion(t *testing.T) {
	res := run(t, "version")
	if res.code != cli.ExitOK {
		t.Fatalf("exit = %d", res.code)
	}
	if !strings.HasPrefix(res.stdout, "hera-config "+Version) {
		t.Errorf("unexpected output: %s", res.stdout)
	}

	res = run(t, "version", "-o", "json")
	var info map[string]string
	if err := json.Unmarshal([]byte(res.stdout), &info); err != nil {
		t.Fatalf("decode: %v\n%s", err, res.stdout)
	}
	if info["version"] != Version || info["go_version"] == "" {
		t.Errorf("unexpected version info: %v", info)
	}
}
