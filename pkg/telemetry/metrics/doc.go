// Package metrics exposes Prometheus metrics for Sentinel.
//
// # Metrics
//
//   - sentinel_evaluations_total{outcome}
//   - sentinel_evaluation_duration_seconds{outcome}
//   - sentinel_rule_hits_total{rule_id,outcome}
//   - sentinel_rules_loaded, sentinel_rule_loads_total{result},
//     sentinel_rule_load_errors, sentinel_rule_load_duration_seconds,
//     sentinel_rule_last_load_timestamp_seconds
//   - sentinel_http_requests_total{method,route,status},
//     sentinel_http_request_duration_seconds{method,route}
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	repo := repository.New(logger, repository.WithObserver(collector))
//	evaluator, err := engine.NewEvaluator(ecfg, repo, logger, engine.WithObserver(collector))
//	router.Handle("/metrics", collector.Handler())
//
// rule_id values are capped; past the cap hits are counted under "other".
package metrics
