package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"hera-erp/configrules/pkg/config"
	"hera-erp/configrules/pkg/engine"
	"hera-erp/configrules/pkg/rules"
	"hera-erp/configrules/pkg/security/authz"
	"hera-erp/configrules/pkg/telemetry/health"
	"hera-erp/configrules/pkg/telemetry/tracing"
)

// Evaluator is the part of the engine served over HTTP.
type Evaluator interface {
	Evaluate(ctx context.Context, tenantID, configKey string, evalCtx rules.Context) (*rules.ResolvedConfiguration, error)
	EvaluateBatch(ctx context.Context, tenantID string, queries []engine.Query) ([]engine.BatchResult, error)
	ListRules(ctx context.Context, tenantID, configKey string) ([]rules.ConfigurationRule, error)
}

// Authorizer decides tenant access for an authenticated subject.
type Authorizer interface {
	Authorize(subject, tenant, object, action string) (allowed bool, enforced bool, err error)
	Mode() authz.Mode
}

// RateLimiter admits or throttles requests per tenant.
type RateLimiter interface {
	Allow(tenantID string, cost int) (bool, time.Duration)
}

// Recorder receives HTTP measurements.
type Recorder interface {
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
	RecordAuthorization(mode, decision string)
}

// Dependencies are the collaborators of a Server. Only Engine is required.
type Dependencies struct {
	Engine Evaluator

	// Authenticate wraps the API routes, typically with the API key
	// middleware. Nil leaves the API unauthenticated.
	Authenticate func(http.Handler) http.Handler

	// Authorizer checks tenant access. Nil allows every request.
	Authorizer Authorizer

	// Limiter throttles authorized requests per tenant. Nil disables
	// throttling.
	Limiter RateLimiter

	Metrics        Recorder
	MetricsHandler http.Handler
	MetricsPath    string

	Health  *health.Checker
	Version health.VersionInfo

	// Tracer starts a server span per request when set.
	Tracer trace.Tracer
}

// Server serves the configuration API.
type Server struct {
	config  *config.ServerConfig
	deps    Dependencies
	logger  *slog.Logger
	metrics Recorder
	handler http.Handler

	mu         sync.Mutex
	httpServer *http.Server
}

// New creates a server. The handler is built eagerly so Handler can be used
// with httptest without starting a listener.
func New(cfg *config.ServerConfig, deps Dependencies, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}
	if deps.Engine == nil {
		return nil, errors.New("engine cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Health == nil {
		deps.Health = health.New(0)
	}
	if deps.MetricsPath == "" {
		deps.MetricsPath = config.DefaultMetricsPath
	}

	s := &Server{
		config:  cfg,
		deps:    deps,
		logger:  logger.With("component", "server"),
		metrics: deps.Metrics,
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.recoverer)
	r.Use(s.instrument)
	if s.deps.Tracer != nil {
		r.Use(tracing.HTTPMiddleware(s.deps.Tracer))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, CodeNotFound, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path)
	})

	r.Get("/health", s.deps.Health.LivenessHandler())
	r.Get("/ready", s.deps.Health.ReadinessHandler())
	r.Get("/version", health.VersionHandler(s.deps.Version))
	if s.deps.MetricsHandler != nil {
		r.Handle(s.deps.MetricsPath, s.deps.MetricsHandler)
	}

	r.Route("/api/v1/config", func(api chi.Router) {
		if s.deps.Authenticate != nil {
			api.Use(s.deps.Authenticate)
		}
		api.Post("/evaluate", s.handleEvaluate)
		api.Post("/evaluate/batch", s.handleEvaluateBatch)
		api.Get("/rules", s.handleListRules)
	})

	return r
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully within the configured shutdown timeout. It returns nil after a
// clean shutdown. A Server serves at most once.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		_ = ln.Close()
		return errors.New("server is already running")
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.httpServer = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting configuration API", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down configuration API", "timeout", s.config.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := <-errCh; err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	s.logger.Info("configuration API stopped")
	return nil
}

type nopRecorder struct{}

func (nopRecorder) RecordHTTPRequest(string, string, int, time.Duration) {}
func (nopRecorder) RecordAuthorization(string, string)                   {}
