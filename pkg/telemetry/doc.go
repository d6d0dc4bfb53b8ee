// Package telemetry groups Sentinel's observability packages.
//
// # Components
//
//   - logging: structured slog loggers with request and trace correlation
//     and secret redaction
//   - metrics: Prometheus collectors for evaluations, rule loads and HTTP
//     requests
//   - tracing: OpenTelemetry tracer provider, sampling and W3C propagation
//   - health: liveness, readiness and version endpoints
//
// # Usage
//
//	cfg := config.GetConfig()
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
package telemetry
