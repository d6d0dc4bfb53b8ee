package server

import (
	"encoding/json"
	"net/http"

	"mercator-hq/sentinel/pkg/policy/repository"
	"mercator-hq/sentinel/pkg/policy/rule"
	"mercator-hq/sentinel/pkg/telemetry/logging"
)

// EvaluateRequest is the body of POST /v1/evaluate.
type EvaluateRequest struct {
	Action    map[string]any `json:"action"`
	Context   map[string]any `json:"context"`
	TaskRules []rule.Rule    `json:"task_rules,omitempty"`
}

// RuleSummary describes one active rule in GET /v1/rules.
type RuleSummary struct {
	RuleID   string `json:"rule_id"`
	Name     string `json:"name,omitempty"`
	Priority string `json:"priority,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Source   string `json:"source,omitempty"`
}

// RulesResponse is the body of GET /v1/rules.
type RulesResponse struct {
	Version string        `json:"version"`
	Count   int           `json:"count"`
	Rules   []RuleSummary `json:"rules"`
}

// ReloadResponse summarizes a reload.
type ReloadResponse struct {
	RuleCount     int      `json:"rule_count"`
	DocumentCount int      `json:"document_count"`
	Errors        []string `json:"errors,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
	Conditions    []string `json:"conditions,omitempty"`
	DurationMs    float64  `json:"duration_ms"`
	Version       string   `json:"version"`
}

func newReloadResponse(result *repository.LoadResult) ReloadResponse {
	resp := ReloadResponse{
		RuleCount:     result.RuleCount,
		DocumentCount: result.DocumentCount,
		Warnings:      result.Warnings,
		Conditions:    result.Conditions,
		DurationMs:    float64(result.Duration.Microseconds()) / 1000,
		Version:       result.Version,
	}
	for _, err := range result.Errors {
		resp.Errors = append(resp.Errors, err.Error())
	}
	return resp
}

// Error types reported in ErrorResponse.
const (
	ErrorTypeInvalidRequest   = "invalid_request"
	ErrorTypeTooLarge         = "request_too_large"
	ErrorTypeNotFound         = "not_found"
	ErrorTypeMethodNotAllowed = "method_not_allowed"
	ErrorTypeReloadFailed     = "reload_failed"
	ErrorTypeInternal         = "internal_error"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, errType, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{
		Message:   message,
		Type:      errType,
		RequestID: logging.GetRequestID(r.Context()),
	}})
}
