package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"hera-erp/configrules/pkg/cli"
	"hera-erp/configrules/pkg/config"
	"hera-erp/configrules/pkg/engine"
	"hera-erp/configrules/pkg/engine/store"
	"hera-erp/configrules/pkg/limits"
	"hera-erp/configrules/pkg/security/auth"
	"hera-erp/configrules/pkg/security/authz"
	"hera-erp/configrules/pkg/server"
	"hera-erp/configrules/pkg/telemetry/health"
	"hera-erp/configrules/pkg/telemetry/logging"
	"hera-erp/configrules/pkg/telemetry/metrics"
	"hera-erp/configrules/pkg/telemetry/tracing"
)

type serveOptions struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

func newServeCmd(global *globalOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configuration API",
		Long: `Serve the configuration API with the configured rule store.

Examples:
  # Start with defaults and HERA_* environment overrides
  hera-config serve

  # Start with a config file and override the listen address
  hera-config serve --config /etc/hera/config.yaml --listen 0.0.0.0:8080

  # Validate the configuration without starting
  hera-config serve --config config.yaml --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, global, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.listenAddress, "listen", "l", "", "override listen address")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "validate config without starting the server")
	return cmd
}

func runServe(cmd *cobra.Command, global *globalOptions, opts *serveOptions) error {
	cfg, err := loadConfig(global)
	if err != nil {
		return err
	}
	if opts.listenAddress != "" {
		cfg.Server.ListenAddress = opts.listenAddress
	}
	if opts.logLevel != "" {
		cfg.Telemetry.Logging.Level = opts.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("config", err.Error())
	}

	if opts.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	logger, err := logging.New(logging.Config{
		Level:         cfg.Telemetry.Logging.Level,
		Format:        cfg.Telemetry.Logging.Format,
		AddSource:     cfg.Telemetry.Logging.AddSource,
		RedactSecrets: cfg.Telemetry.Logging.RedactSecrets,
		Writer:        os.Stdout,
	})
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.stack.Start(ctx); err != nil {
		return fmt.Errorf("start rule store: %w", err)
	}

	logger.Info("hera-config starting",
		"version", Version,
		"listen_address", cfg.Server.ListenAddress,
		"store_backend", cfg.Store.Backend,
		"authentication", cfg.Security.Authentication.Enabled,
		"authorization", cfg.Security.Authorization.Mode,
		"rate_limit", cfg.Server.RateLimit.Enabled,
		"tracing", a.tracer.Enabled(),
	)
	return a.server.ListenAndServe(ctx)
}

// app is the wired service: store stack, engine, telemetry and HTTP server.
type app struct {
	logger  *slog.Logger
	stack   *store.Stack
	engine  *engine.Engine
	tracer  *tracing.Tracer
	metrics *metrics.Collector
	server  *server.Server
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger}

	var (
		storeRecorder  store.Recorder
		engineRecorder engine.Recorder
		httpRecorder   server.Recorder
	)
	if cfg.Telemetry.Metrics.Enabled {
		a.metrics = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
		storeRecorder, engineRecorder, httpRecorder = a.metrics, a.metrics, a.metrics
	}

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, tracing.WithServiceVersion(Version))
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.tracer = tracer

	stack, err := store.Open(ctx, &cfg.Store, logger, storeRecorder)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open rule store: %w", err)
	}
	a.stack = stack

	eng, err := engine.NewEngine(engineConfig(&cfg.Engine), stack.Store, logger,
		engine.WithRecorder(engineRecorder),
		engine.WithTracer(tracer.Tracer()),
	)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create engine: %w", err)
	}
	a.engine = eng

	deps, err := a.dependencies(cfg, httpRecorder)
	if err != nil {
		a.close()
		return nil, err
	}
	srv, err := server.New(&cfg.Server, deps, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.server = srv
	return a, nil
}

func (a *app) dependencies(cfg *config.Config, recorder server.Recorder) (server.Dependencies, error) {
	checker := health.New(cfg.Engine.StoreTimeout)
	checker.RegisterCheck("rule_store", a.stack.Ping)

	deps := server.Dependencies{
		Engine:  a.engine,
		Metrics: recorder,
		Health:  checker,
		Version: health.NewVersionInfo(Version, GitCommit, BuildDate),
	}
	if a.metrics != nil {
		deps.MetricsHandler = a.metrics.Handler()
		deps.MetricsPath = cfg.Telemetry.Metrics.Path
	}
	if a.tracer.Enabled() {
		deps.Tracer = a.tracer.Tracer()
	}

	if cfg.Server.RateLimit.Enabled {
		deps.Limiter = limits.NewTenantLimiter(&cfg.Server.RateLimit)
	}

	authCfg := &cfg.Security.Authentication
	if authCfg.Enabled {
		mw := auth.NewAPIKeyMiddleware(auth.NewValidatorFromConfig(authCfg), authCfg, a.logger, server.WriteError)
		deps.Authenticate = mw.Handle
	}

	mode, err := authz.ParseMode(cfg.Security.Authorization.Mode)
	if err != nil {
		return deps, cli.NewConfigError("security.authorization.mode", err.Error())
	}
	authorizer, err := authz.NewAuthorizer(cfg.Security.Authorization.PolicyFile, mode, a.logger)
	if err != nil {
		return deps, fmt.Errorf("load authorization policy: %w", err)
	}
	deps.Authorizer = authorizer
	return deps, nil
}

func (a *app) close() {
	var errs []error
	if a.stack != nil {
		errs = append(errs, a.stack.Close())
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.tracer.Shutdown(ctx))
		cancel()
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("shutdown incomplete", "error", err)
	}
}

func engineConfig(cfg *config.EngineConfig) *engine.EngineConfig {
	return engine.DefaultEngineConfig().
		WithMaxConditionDepth(cfg.MaxConditionDepth).
		WithStoreTimeout(cfg.StoreTimeout).
		WithBatchConcurrency(cfg.BatchConcurrency).
		WithMaxBatchSize(cfg.MaxBatchSize)
}
