// Package health provides liveness, readiness and version endpoints.
//
// # Endpoints
//
//   - /health: liveness, 200 while the process is running
//   - /ready: readiness, 200 only when every registered check passes
//   - /version: build information and the active rule set version
//
// Paths are configurable under telemetry.health.
//
// # Usage
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("rules", health.LoadedCheck(repo))
//
//	r.Get("/health", checker.LivenessHandler())
//	r.Get("/ready", checker.ReadinessHandler())
//	r.Get("/version", health.VersionHandler(info, repo.Version))
//
// Readiness checks run concurrently, each bounded by the configured check
// timeout. A check that exceeds it is reported as unhealthy with
// "health check timeout".
package health
