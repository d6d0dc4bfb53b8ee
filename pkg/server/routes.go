package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mercator-hq/sentinel/pkg/telemetry/health"
	"mercator-hq/sentinel/pkg/telemetry/tracing"
)

// API routes.
const (
	RouteEvaluate = "/v1/evaluate"
	RouteRules    = "/v1/rules"
	RouteReload   = "/v1/reload"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(tracing.HTTPMiddleware(s.deps.Tracer))
	r.Use(RequestID)
	r.Use(AccessLog(s.logger, s.deps.Metrics))
	r.Use(Recovery(s.logger))

	hc := s.deps.Telemetry.Health
	r.Get(hc.LivenessPath, s.deps.Checker.LivenessHandler())
	r.Get(hc.ReadinessPath, s.deps.Checker.ReadinessHandler())
	r.Get(hc.VersionPath, health.VersionHandler(s.deps.Version, s.deps.Rules.Version))

	if mc := s.deps.Telemetry.Metrics; s.deps.Metrics != nil && mc.Enabled {
		r.Handle(mc.Path, s.deps.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		if s.config.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.config.RequestTimeout))
		}
		r.Post(RouteEvaluate, s.handleEvaluate)
		r.Get(RouteRules, s.handleRules)
		r.Post(RouteReload, s.handleReload)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, ErrorTypeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, ErrorTypeMethodNotAllowed, "method not allowed")
	})

	return r
}
