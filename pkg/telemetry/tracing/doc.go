// Package tracing provides OpenTelemetry distributed tracing for Sentinel.
//
// # Overview
//
// The package configures an OpenTelemetry tracer provider that exports spans
// over OTLP gRPC, installs the W3C Trace Context propagator and offers HTTP
// middleware that continues a caller's trace. When tracing is disabled every
// span is a noop.
//
// # Span Hierarchy
//
// A traced evaluation request produces:
//
//	POST /v1/evaluate
//	└── policy.evaluate
//
// The policy.evaluate span is created by the engine through the
// trace.Tracer returned from Tracer.Tracer and carries the action type,
// context type, number of rules considered and the decision.
//
// # Sampling Strategies
//
//   - always: sample every span
//   - never: sample nothing
//   - ratio: sample a fraction of traces by trace ID
//   - parent_ratio: follow the caller's decision, ratio for root spans
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	evaluator, err := engine.NewEvaluator(engineCfg, repo, logger,
//	    engine.WithTracer(tracer.Tracer()))
//
// # Configuration
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    sampler: parent_ratio
//	    sample_ratio: 0.1
//	    endpoint: otel-collector:4317
//	    insecure: true
//	    timeout: 10s
//	    service_name: sentinel
package tracing
