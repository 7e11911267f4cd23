package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name            string
		timeout         time.Duration
		expectedTimeout time.Duration
	}{
		{name: "default timeout", timeout: 0, expectedTimeout: 5 * time.Second},
		{name: "custom timeout", timeout: 10 * time.Second, expectedTimeout: 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(tt.timeout)
			if checker.checkTimeout != tt.expectedTimeout {
				t.Errorf("expected timeout %v, got %v", tt.expectedTimeout, checker.checkTimeout)
			}
			if len(checker.ListChecks()) != 0 {
				t.Error("expected no checks on a new checker")
			}
		})
	}
}

func TestRegisterCheck_Replaces(t *testing.T) {
	checker := New(time.Second)
	checker.RegisterCheck("store", func(context.Context) error { return errors.New("down") })
	checker.RegisterCheck("store", func(context.Context) error { return nil })
	checker.RegisterCheck("redis", func(context.Context) error { return nil })

	if diff := cmp.Diff([]string{"redis", "store"}, checker.ListChecks()); diff != "" {
		t.Errorf("ListChecks() mismatch (-want +got):\n%s", diff)
	}

	status := checker.CheckReadiness(context.Background())
	if status.Status != StatusReady {
		t.Errorf("expected ready after replacing failing check, got %q", status.Status)
	}
}

func TestCheckReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantStatus string
		wantFailed []string
	}{
		{
			name:       "no checks",
			checks:     nil,
			wantStatus: StatusReady,
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"store": func(context.Context) error { return nil },
				"redis": func(context.Context) error { return nil },
			},
			wantStatus: StatusReady,
		},
		{
			name: "one failing",
			checks: map[string]CheckFunc{
				"store": func(context.Context) error { return nil },
				"redis": func(context.Context) error { return errors.New("connection refused") },
			},
			wantStatus: StatusDegraded,
			wantFailed: []string{"redis"},
		},
		{
			name: "timeout",
			checks: map[string]CheckFunc{
				"store": func(ctx context.Context) error {
					<-ctx.Done()
					return ctx.Err()
				},
			},
			wantStatus: StatusDegraded,
			wantFailed: []string{"store"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(50 * time.Millisecond)
			for name, check := range tt.checks {
				checker.RegisterCheck(name, check)
			}

			status := checker.CheckReadiness(context.Background())
			if status.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status.Status, tt.wantStatus)
			}
			if len(status.Checks) != len(tt.checks) {
				t.Errorf("got %d results, want %d", len(status.Checks), len(tt.checks))
			}
			for _, name := range tt.wantFailed {
				result := status.Checks[name]
				if result.Status != StatusUnhealthy || result.Message == "" {
					t.Errorf("check %q = %+v, want unhealthy with message", name, result)
				}
			}
		})
	}
}

func TestLivenessHandler(t *testing.T) {
	checker := New(time.Second)
	checker.RegisterCheck("store", func(context.Context) error {
		t.Error("liveness must not run dependency checks")
		return nil
	})

	rec := httptest.NewRecorder()
	checker.LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != StatusOK {
		t.Errorf("body status = %q, want ok", body.Status)
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		check    CheckFunc
		wantCode int
		wantBody bool
	}{
		{
			name:     "ready",
			method:   http.MethodGet,
			check:    func(context.Context) error { return nil },
			wantCode: http.StatusOK,
			wantBody: true,
		},
		{
			name:     "degraded",
			method:   http.MethodGet,
			check:    func(context.Context) error { return errors.New("db down") },
			wantCode: http.StatusServiceUnavailable,
			wantBody: true,
		},
		{
			name:     "head has no body",
			method:   http.MethodHead,
			check:    func(context.Context) error { return nil },
			wantCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(time.Second)
			checker.RegisterCheck("store", tt.check)

			rec := httptest.NewRecorder()
			checker.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(tt.method, "/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if got := rec.Header().Get("Content-Type"); got != "application/json" {
				t.Errorf("Content-Type = %q", got)
			}
			if hasBody := rec.Body.Len() > 0; hasBody != tt.wantBody {
				t.Errorf("has body = %v, want %v", hasBody, tt.wantBody)
			}
		})
	}
}

func TestVersionHandler(t *testing.T) {
	info := NewVersionInfo("1.4.0", "abc123", "2026-01-01T00:00:00Z")

	rec := httptest.NewRecorder()
	VersionHandler(info).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var got VersionInfo
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(info, got); diff != "" {
		t.Errorf("version mismatch (-want +got):\n%s", diff)
	}
	if got.GoVersion == "" {
		t.Error("expected go version to be filled")
	}
}
