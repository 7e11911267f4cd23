// Package tracing provides OpenTelemetry distributed tracing for the
// configuration rule service.
//
// # Overview
//
// The package builds a tracer provider from config.TracingConfig, exporting
// spans over OTLP gRPC. When tracing is disabled a noop tracer is used, so
// callers never branch on whether tracing is on.
//
// # Sampling Strategies
//
//   - always: Sample all traces (development/debugging)
//   - never: Sample no traces
//   - ratio: Sample a fraction of traces by trace ID (production)
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, tracing.WithServiceVersion(version))
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	eng, err := engine.NewEngine(engCfg, store, logger, engine.WithTracer(tracer.Tracer()))
//
// # Span Hierarchy
//
//	POST /v1/evaluate
//	└── engine.Evaluate
//	    └── cache_lookup (event)
//
// # HTTP Integration
//
// HTTPMiddleware extracts W3C trace context (traceparent, tracestate) from
// incoming requests, starts a server span and echoes the trace id in the
// X-Trace-ID response header.
package tracing
