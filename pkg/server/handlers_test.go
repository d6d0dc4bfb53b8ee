package server

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"mercator-hq/sentinel/pkg/policy/engine"
)

func TestHandleEvaluate(t *testing.T) {
	ts := newTestServer(t, true)

	tests := []struct {
		name        string
		body        string
		wantAllowed bool
		wantRule    string
		wantMessage string
	}{
		{
			name:        "large unverified transfer is blocked",
			body:        `{"action":{"type":"transfer","amount":5000},"context":{"type":"financial","user":{"verified":false}}}`,
			wantAllowed: false,
			wantRule:    "FIN-001",
			wantMessage: "Verification required for large transfers",
		},
		{
			name:        "small transfer falls through to low priority rule",
			body:        `{"action":{"type":"transfer","amount":50},"context":{"type":"financial","user":{"verified":false}}}`,
			wantAllowed: true,
			wantRule:    "FIN-002",
		},
		{
			name:        "other context is allowed by default",
			body:        `{"action":{"type":"transfer","amount":5000},"context":{"type":"retail"}}`,
			wantAllowed: true,
		},
		{
			name:        "task rule outranks repository rules",
			body:        `{"action":{"type":"transfer","amount":50},"context":{"type":"financial"},"task_rules":[{"rule_id":"TASK-1","priority":"CRITICAL","trigger":{"context":"financial"},"action":{"type":"MANDATORY_HUMAN_REVIEW","message":"review"}}]}`,
			wantAllowed: false,
			wantRule:    "TASK-1",
			wantMessage: "review",
		},
		{
			name:        "missing context is treated as empty",
			body:        `{"action":{"type":"transfer"}}`,
			wantAllowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, RouteEvaluate, tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
			}

			d := decode[engine.Decision](t, rec)
			if d.Allowed != tt.wantAllowed || d.TriggeredRule != tt.wantRule {
				t.Errorf("decision = {allowed: %v, rule: %q}, want {allowed: %v, rule: %q}",
					d.Allowed, d.TriggeredRule, tt.wantAllowed, tt.wantRule)
			}
			if tt.wantMessage != "" && d.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", d.Message, tt.wantMessage)
			}
			if d.EvaluationID == "" {
				t.Error("evaluation_id is empty")
			}
		})
	}
}

func TestHandleEvaluateExplain(t *testing.T) {
	ts := newTestServer(t, true)

	body := `{"action":{"type":"transfer","amount":50},"context":{"type":"financial","user":{"verified":false}}}`
	rec := ts.do(t, http.MethodPost, RouteEvaluate+"?explain=true", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	ex := decode[engine.Explanation](t, rec)
	if ex.Decision.TriggeredRule != "FIN-002" {
		t.Errorf("decision rule = %q, want FIN-002", ex.Decision.TriggeredRule)
	}
	if len(ex.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(ex.Steps))
	}
	first := ex.Steps[0]
	if first.RuleID != "FIN-001" || !first.TriggerMatched || first.ConditionMatched {
		t.Errorf("first step = %+v, want FIN-001 trigger matched, condition failed", first)
	}

	ts.server.deps.ExplainByDefault = true
	rec = ts.do(t, http.MethodPost, RouteEvaluate+"?explain=false", body)
	if strings.Contains(rec.Body.String(), `"steps"`) {
		t.Error("explain=false still returned steps")
	}
}

func TestHandleEvaluateBadRequests(t *testing.T) {
	ts := newTestServer(t, true)
	ts.server.config.MaxBodyBytes = 256

	tests := []struct {
		name       string
		target     string
		body       string
		wantStatus int
		wantType   string
		wantMsg    string
	}{
		{"empty body", RouteEvaluate, "", http.StatusBadRequest, ErrorTypeInvalidRequest, "empty"},
		{"malformed json", RouteEvaluate, `{"action":`, http.StatusBadRequest, ErrorTypeInvalidRequest, "invalid request body"},
		{"missing action", RouteEvaluate, `{"context":{"type":"financial"}}`, http.StatusBadRequest, ErrorTypeInvalidRequest, "action is required"},
		{"bad explain", RouteEvaluate + "?explain=maybe", `{"action":{}}`, http.StatusBadRequest, ErrorTypeInvalidRequest, "explain"},
		{
			name:       "task rule without action",
			target:     RouteEvaluate,
			body:       `{"action":{"type":"x"},"task_rules":[{"rule_id":"BROKEN","trigger":{"context":"c"}}]}`,
			wantStatus: http.StatusBadRequest,
			wantType:   ErrorTypeInvalidRequest,
			wantMsg:    "BROKEN",
		},
		{
			name:       "body too large",
			target:     RouteEvaluate,
			body:       `{"action":{"type":"` + strings.Repeat("x", 512) + `"}}`,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantType:   ErrorTypeTooLarge,
			wantMsg:    "256",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, tt.target, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}

			resp := decode[ErrorResponse](t, rec)
			if resp.Error.Type != tt.wantType {
				t.Errorf("error type = %q, want %q", resp.Error.Type, tt.wantType)
			}
			if !strings.Contains(resp.Error.Message, tt.wantMsg) {
				t.Errorf("error message = %q, want it to contain %q", resp.Error.Message, tt.wantMsg)
			}
			if resp.Error.RequestID == "" {
				t.Error("error response has no request_id")
			}
		})
	}
}

func TestHandleRules(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(t, http.MethodGet, RouteRules, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	resp := decode[RulesResponse](t, rec)
	if resp.Count != 2 || len(resp.Rules) != 2 {
		t.Fatalf("count = %d with %d rules, want 2", resp.Count, len(resp.Rules))
	}
	if resp.Version != ts.repo.Version() {
		t.Errorf("version = %q, want %q", resp.Version, ts.repo.Version())
	}
	first := resp.Rules[0]
	if first.RuleID != "FIN-001" || first.Name != "Large unverified transfer" ||
		first.Priority != "CRITICAL" || first.Domain != "finance" || first.Source == "" {
		t.Errorf("first rule = %+v", first)
	}
}

func TestHandleReload(t *testing.T) {
	ts := newTestServer(t, true)
	before := ts.repo.Version()

	ts.memory.Put("extra.yaml", []byte("rule_id: EXTRA-1\ntrigger: {context: ops}\naction: {type: WARN}\n"))
	ts.memory.Put("broken.yaml", []byte("rule_id: [unterminated\n"))

	rec := ts.do(t, http.MethodPost, RouteReload, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	resp := decode[ReloadResponse](t, rec)
	if resp.RuleCount != 3 {
		t.Errorf("rule_count = %d, want 3", resp.RuleCount)
	}
	if resp.DocumentCount != 3 {
		t.Errorf("document_count = %d, want 3", resp.DocumentCount)
	}
	if len(resp.Errors) != 1 || !strings.Contains(resp.Errors[0], "broken.yaml") {
		t.Errorf("errors = %v, want one error for broken.yaml", resp.Errors)
	}
	if resp.Version == before || resp.Version != ts.repo.Version() {
		t.Errorf("version = %q (before %q, repo %q), want the new version", resp.Version, before, ts.repo.Version())
	}
}

func TestHandleReloadBeforeLoad(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodPost, RouteReload, "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	resp := decode[ErrorResponse](t, rec)
	if resp.Error.Type != ErrorTypeReloadFailed {
		t.Errorf("error type = %q, want %q", resp.Error.Type, ErrorTypeReloadFailed)
	}
	if !strings.Contains(ts.logs.String(), "reload request failed") {
		t.Error("failed reload was not logged")
	}
}

func TestUnknownRoutes(t *testing.T) {
	ts := newTestServer(t, true)

	if rec := ts.do(t, http.MethodGet, "/v1/unknown", ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET /v1/unknown = %d, want 404", rec.Code)
	}
	rec := ts.do(t, http.MethodGet, RouteEvaluate, "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET %s = %d, want 405", RouteEvaluate, rec.Code)
	}
	if resp := decode[ErrorResponse](t, rec); resp.Error.Type != ErrorTypeMethodNotAllowed {
		t.Errorf("error type = %q, want %q", resp.Error.Type, ErrorTypeMethodNotAllowed)
	}
}

func TestReloadRespectsCancelledContext(t *testing.T) {
	ts := newTestServer(t, true)
	before := ts.repo.Version()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ts.repo.Reload(ctx); err == nil {
		t.Fatal("Reload(cancelled) error = nil, want error")
	}
	if ts.repo.Version() != before {
		t.Error("cancelled reload replaced the snapshot")
	}
}
