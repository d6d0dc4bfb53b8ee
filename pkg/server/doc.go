// Package server exposes the policy engine over HTTP.
//
// # Endpoints
//
//	POST /v1/evaluate   evaluate an action, ?explain=true adds the candidate walk
//	GET  /v1/rules      list the active rules and the rule set version
//	POST /v1/reload     reload rules from their sources
//	GET  /health        liveness
//	GET  /ready         readiness, 503 until rules have loaded once
//	GET  /version       build and rule set version
//	GET  /metrics       Prometheus metrics, when enabled
//
// Evaluate request:
//
//	{
//	  "action":  {"type": "transfer", "amount": 5000},
//	  "context": {"type": "financial", "user": {"verified": false}},
//	  "task_rules": [ ... ]
//	}
//
// Call-scoped task_rules are validated before evaluation; an invalid rule is
// rejected with 400 instead of being skipped.
//
// # Middleware
//
// Requests pass through trace-context extraction, request ID assignment
// (X-Request-ID, generated as a UUID when absent), access logging with
// request metrics, panic recovery and, for the /v1 routes, a per-request
// timeout.
//
// # Errors
//
// Every non-2xx response from the API routes has the form:
//
//	{"error": {"message": "action is required", "type": "invalid_request", "request_id": "..."}}
//
// # Lifecycle
//
//	srv, err := server.New(&cfg.Server, server.Dependencies{
//	    Evaluator: evaluator,
//	    Rules:     repo,
//	    Metrics:   collector,
//	    Tracer:    tracer,
//	    Telemetry: cfg.Telemetry,
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	return srv.Start(ctx) // returns after ctx is cancelled and shutdown completes
package server
