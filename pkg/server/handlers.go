package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"mercator-hq/sentinel/pkg/config"
	"mercator-hq/sentinel/pkg/telemetry/logging"
	"mercator-hq/sentinel/pkg/telemetry/tracing"
)

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	explain := s.deps.ExplainByDefault
	if v := r.URL.Query().Get("explain"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, ErrorTypeInvalidRequest,
				fmt.Sprintf("invalid explain parameter %q", v))
			return
		}
		explain = b
	}

	var req EvaluateRequest
	limit := s.config.MaxBodyBytes
	if limit <= 0 {
		limit = config.DefaultMaxBodyBytes
	}
	body := http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeError(w, r, http.StatusRequestEntityTooLarge, ErrorTypeTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		case errors.Is(err, io.EOF):
			writeError(w, r, http.StatusBadRequest, ErrorTypeInvalidRequest, "request body is empty")
		default:
			writeError(w, r, http.StatusBadRequest, ErrorTypeInvalidRequest,
				fmt.Sprintf("invalid request body: %v", err))
		}
		return
	}
	if req.Action == nil {
		writeError(w, r, http.StatusBadRequest, ErrorTypeInvalidRequest, "action is required")
		return
	}
	if err := s.deps.Evaluator.Config().ValidateTaskRules(req.TaskRules); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrorTypeInvalidRequest, err.Error())
		return
	}

	if explain {
		explanation := s.deps.Evaluator.Explain(ctx, req.Action, req.Context, req.TaskRules)
		s.logDecision(r, explanation.Decision.EvaluationID, explanation.Decision.Outcome())
		writeJSON(w, http.StatusOK, explanation)
		return
	}

	decision := s.deps.Evaluator.Evaluate(ctx, req.Action, req.Context, req.TaskRules)
	s.logDecision(r, decision.EvaluationID, decision.Outcome())
	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) logDecision(r *http.Request, evaluationID, outcome string) {
	ctx := logging.WithEvaluationID(r.Context(), evaluationID)
	s.logger.DebugContext(ctx, "decision returned", "outcome", outcome)
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	rules := s.deps.Rules.Rules()

	resp := RulesResponse{
		Version: s.deps.Rules.Version(),
		Count:   len(rules),
		Rules:   make([]RuleSummary, 0, len(rules)),
	}
	for _, rl := range rules {
		resp.Rules = append(resp.Rules, RuleSummary{
			RuleID:   rl.RuleID,
			Name:     rl.Name,
			Priority: rl.Priority,
			Domain:   rl.Domain,
			Source:   rl.Source,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer().Start(r.Context(), tracing.SpanReload)
	defer span.End()

	result, err := s.deps.Rules.Reload(ctx)
	if err != nil {
		tracing.SetErrorAttributes(span, err, "reload")
		s.logger.ErrorContext(ctx, "reload request failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, ErrorTypeReloadFailed, err.Error())
		return
	}

	tracing.SetReloadAttributes(span, result.RuleCount, result.Version, len(result.Errors))
	writeJSON(w, http.StatusOK, newReloadResponse(result))
}

func (s *Server) tracer() trace.Tracer {
	if s.deps.Tracer != nil {
		return s.deps.Tracer.Tracer()
	}
	return noop.NewTracerProvider().Tracer(tracing.InstrumentationName)
}
