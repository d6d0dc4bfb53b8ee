package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/sentinel/pkg/policy/rule"
)

func newTestEvaluator(t testing.TB, rules ...rule.Rule) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(DefaultEngineConfig(), StaticRules(rules), slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}
	return e
}

func testRule(id, priority, context, actionType string, condition *rule.Condition) rule.Rule {
	return rule.Rule{
		RuleID:    id,
		Priority:  priority,
		Trigger:   &rule.Trigger{Context: context},
		Condition: condition,
		Action:    &rule.Action{Type: actionType, Message: id + " fired"},
		Source:    "rules/" + id + ".yaml",
	}
}

func TestNewEvaluator(t *testing.T) {
	if _, err := NewEvaluator(nil, nil, nil); !errors.Is(err, ErrNilProvider) {
		t.Errorf("NewEvaluator(nil provider) error = %v, want ErrNilProvider", err)
	}

	bad := DefaultEngineConfig().WithDenyActions()
	if _, err := NewEvaluator(bad, StaticRules(nil), nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewEvaluator(bad config) error = %v, want ErrInvalidConfig", err)
	}

	e, err := NewEvaluator(nil, StaticRules(nil), nil)
	if err != nil {
		t.Fatalf("NewEvaluator(nil config) error = %v", err)
	}
	if e.Config().MaxTaskRules != 1000 {
		t.Errorf("default MaxTaskRules = %d, want 1000", e.Config().MaxTaskRules)
	}
}

func TestEvaluateDefaultAllow(t *testing.T) {
	e := newTestEvaluator(t)
	d := e.Evaluate(context.Background(), map[string]any{"type": "x"}, map[string]any{"type": "y"}, nil)
	if !d.Allowed || d.Message != "" || d.TriggeredRule != "" {
		t.Errorf("Evaluate() = %+v, want default allow", d)
	}
	if d.Outcome() != OutcomeDefault {
		t.Errorf("Outcome() = %q, want %q", d.Outcome(), OutcomeDefault)
	}
	if d.EvaluationID == "" {
		t.Error("EvaluationID is empty")
	}
}

func TestEvaluateNilMaps(t *testing.T) {
	e := newTestEvaluator(t, rule.Rule{
		RuleID:  "ANY",
		Trigger: &rule.Trigger{},
		Action:  &rule.Action{Type: rule.ActionBlock, Message: "blocked"},
	})
	d := e.Evaluate(context.Background(), nil, nil, nil)
	if d.Allowed || d.TriggeredRule != "ANY" {
		t.Errorf("Evaluate(nil, nil) = %+v, want denied by ANY", d)
	}
}

func TestEvaluatePriorityOrder(t *testing.T) {
	low := testRule("LOW-1", rule.PriorityLow, "financial", rule.ActionWarn, nil)
	critical := testRule("CRIT-1", rule.PriorityCritical, "financial", rule.ActionBlock, nil)
	unknown := testRule("ODD-1", "URGENT", "financial", rule.ActionBlock, nil)

	e := newTestEvaluator(t, unknown, low, critical)
	d := e.Evaluate(context.Background(), map[string]any{"type": "transfer"}, map[string]any{"type": "financial"}, nil)
	if d.TriggeredRule != "CRIT-1" || d.Allowed {
		t.Errorf("Evaluate() = %+v, want CRIT-1 deny", d)
	}

	e = newTestEvaluator(t, unknown, low)
	d = e.Evaluate(context.Background(), map[string]any{"type": "transfer"}, map[string]any{"type": "financial"}, nil)
	if d.TriggeredRule != "LOW-1" || !d.Allowed || d.Message != "LOW-1 fired" {
		t.Errorf("Evaluate() = %+v, want LOW-1 allow", d)
	}
}

func TestEvaluateTaskRulesWinTies(t *testing.T) {
	repo := testRule("REPO-1", rule.PriorityHigh, "ops", rule.ActionWarn, nil)
	task := testRule("TASK-1", rule.PriorityHigh, "ops", rule.ActionBlock, nil)
	task.Source = ""

	e := newTestEvaluator(t, repo)
	d := e.Evaluate(context.Background(), nil, map[string]any{"type": "ops"}, []rule.Rule{task})
	if d.TriggeredRule != "TASK-1" {
		t.Errorf("TriggeredRule = %q, want TASK-1", d.TriggeredRule)
	}

	// A higher-priority repository rule still beats a task rule.
	repo.Priority = rule.PriorityCritical
	e = newTestEvaluator(t, repo)
	d = e.Evaluate(context.Background(), nil, map[string]any{"type": "ops"}, []rule.Rule{task})
	if d.TriggeredRule != "REPO-1" {
		t.Errorf("TriggeredRule = %q, want REPO-1", d.TriggeredRule)
	}
}

func TestEvaluateActionTypes(t *testing.T) {
	tests := []struct {
		actionType  string
		wantAllowed bool
	}{
		{rule.ActionBlock, false},
		{rule.ActionMandatoryHumanReview, false},
		{rule.ActionWarn, true},
		{rule.ActionEnforceMasking, true},
		{rule.ActionEnforceDeadline, true},
		{rule.ActionValidateMandatoryClauses, true},
		{"CUSTOM", true},
	}
	for _, tt := range tests {
		t.Run(tt.actionType, func(t *testing.T) {
			e := newTestEvaluator(t, testRule("R", rule.PriorityMedium, "c", tt.actionType, nil))
			d := e.Evaluate(context.Background(), nil, map[string]any{"type": "c"}, nil)
			if d.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", d.Allowed, tt.wantAllowed)
			}
			if d.ActionType != tt.actionType {
				t.Errorf("ActionType = %q, want %q", d.ActionType, tt.actionType)
			}
		})
	}
}

func TestEvaluateCustomDenyActions(t *testing.T) {
	cfg := DefaultEngineConfig().WithDenyActions(rule.ActionBlock, rule.ActionWarn)
	e, err := NewEvaluator(cfg, StaticRules{testRule("R", rule.PriorityLow, "c", rule.ActionWarn, nil)}, nil)
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}
	if d := e.Evaluate(context.Background(), nil, map[string]any{"type": "c"}, nil); d.Allowed {
		t.Errorf("Evaluate() = %+v, want WARN to deny", d)
	}
}

func TestEvaluateTransferScenario(t *testing.T) {
	review := testRule("FIN-REVIEW", rule.PriorityCritical, "financial", rule.ActionMandatoryHumanReview,
		mustCondition(t, `amount: ">10000"`))
	review.Trigger.ActionType = "transfer"
	review.Action.Message = "Transfers above 10,000 require human review"

	sanctioned := testRule("FIN-SANCTIONS", rule.PriorityHigh, "financial", rule.ActionBlock,
		mustCondition(t, "beneficiary.country: {in: [KP, IR]}"))

	logging := testRule("FIN-LOG", rule.PriorityLow, "financial", rule.ActionWarn, nil)

	e := newTestEvaluator(t, logging, sanctioned, review)
	ctx := context.Background()
	financial := map[string]any{"type": "financial"}

	tests := []struct {
		name        string
		action      map[string]any
		wantRule    string
		wantAllowed bool
	}{
		{
			name:        "large transfer",
			action:      map[string]any{"type": "transfer", "amount": 25000, "beneficiary": map[string]any{"country": "DE"}},
			wantRule:    "FIN-REVIEW",
			wantAllowed: false,
		},
		{
			name:        "sanctioned beneficiary",
			action:      map[string]any{"type": "transfer", "amount": 50, "beneficiary": map[string]any{"country": "KP"}},
			wantRule:    "FIN-SANCTIONS",
			wantAllowed: false,
		},
		{
			name:        "small transfer",
			action:      map[string]any{"type": "transfer", "amount": "50", "beneficiary": map[string]any{"country": "DE"}},
			wantRule:    "FIN-LOG",
			wantAllowed: true,
		},
		{
			name:        "large refund is not a transfer",
			action:      map[string]any{"type": "refund", "amount": 25000},
			wantRule:    "FIN-LOG",
			wantAllowed: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.Evaluate(ctx, tt.action, financial, nil)
			if d.TriggeredRule != tt.wantRule || d.Allowed != tt.wantAllowed {
				t.Errorf("Evaluate() = {rule: %q, allowed: %v}, want {rule: %q, allowed: %v}",
					d.TriggeredRule, d.Allowed, tt.wantRule, tt.wantAllowed)
			}
		})
	}
}

func TestEvaluateSkipsTaskRuleWithoutAction(t *testing.T) {
	var logs bytes.Buffer
	e, err := NewEvaluator(nil, StaticRules(nil), slog.New(slog.NewTextHandler(&logs, nil)))
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}
	broken := rule.Rule{RuleID: "BROKEN", Priority: rule.PriorityCritical, Trigger: &rule.Trigger{}}
	d := e.Evaluate(context.Background(), nil, nil, []rule.Rule{broken})
	if !d.Allowed || d.TriggeredRule != "" {
		t.Errorf("Evaluate() = %+v, want default allow", d)
	}
	if !strings.Contains(logs.String(), "skipping rule without action") {
		t.Errorf("logs = %q, want a warning about the skipped rule", logs.String())
	}
}

func TestEvaluateDoesNotMutateInputs(t *testing.T) {
	rules := []rule.Rule{
		testRule("B", rule.PriorityLow, "c", rule.ActionWarn, nil),
		testRule("A", rule.PriorityCritical, "c", rule.ActionWarn, nil),
	}
	task := []rule.Rule{testRule("T", rule.PriorityLow, "c", rule.ActionWarn, nil)}
	e := newTestEvaluator(t, rules...)
	_ = e.Evaluate(context.Background(), nil, map[string]any{"type": "c"}, task)

	if rules[0].RuleID != "B" || rules[1].RuleID != "A" {
		t.Errorf("provider rules reordered: [%s %s]", rules[0].RuleID, rules[1].RuleID)
	}
	if task[0].RuleID != "T" {
		t.Errorf("task rules modified: %+v", task)
	}
}

func TestExplain(t *testing.T) {
	e := newTestEvaluator(t,
		testRule("OTHER", rule.PriorityCritical, "legal", rule.ActionBlock, nil),
		testRule("COND", rule.PriorityHigh, "ops", rule.ActionBlock, mustCondition(t, "env: prod")),
		testRule("HIT", rule.PriorityMedium, "ops", rule.ActionWarn, nil),
		testRule("NEVER", rule.PriorityLow, "ops", rule.ActionBlock, nil),
	)

	exp := e.Explain(context.Background(), map[string]any{"env": "dev"}, map[string]any{"type": "ops"}, nil)
	if exp.Decision.TriggeredRule != "HIT" {
		t.Fatalf("TriggeredRule = %q, want HIT", exp.Decision.TriggeredRule)
	}
	if len(exp.Steps) != 3 {
		t.Fatalf("len(Steps) = %d, want 3 (stops at the deciding rule)", len(exp.Steps))
	}
	want := []Step{
		{RuleID: "OTHER", TriggerMatched: false, ConditionMatched: false},
		{RuleID: "COND", TriggerMatched: true, ConditionMatched: false},
		{RuleID: "HIT", TriggerMatched: true, ConditionMatched: true},
	}
	for i, w := range want {
		got := exp.Steps[i]
		if got.RuleID != w.RuleID || got.TriggerMatched != w.TriggerMatched || got.ConditionMatched != w.ConditionMatched {
			t.Errorf("Steps[%d] = %+v, want %+v", i, got, w)
		}
	}
}

func TestExplainNoRules(t *testing.T) {
	exp := newTestEvaluator(t).Explain(context.Background(), nil, nil, nil)
	if exp.Steps == nil || len(exp.Steps) != 0 {
		t.Errorf("Steps = %v, want empty non-nil slice", exp.Steps)
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
	rules    []string
}

func (o *recordingObserver) ObserveEvaluation(outcome, ruleID string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
	o.rules = append(o.rules, ruleID)
}

func TestEvaluateObserver(t *testing.T) {
	obs := &recordingObserver{}
	e, err := NewEvaluator(nil, StaticRules{
		testRule("DENY", rule.PriorityHigh, "a", rule.ActionBlock, nil),
		testRule("ALLOW", rule.PriorityHigh, "b", rule.ActionWarn, nil),
	}, nil, WithObserver(obs))
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}

	ctx := context.Background()
	e.Evaluate(ctx, nil, map[string]any{"type": "a"}, nil)
	e.Evaluate(ctx, nil, map[string]any{"type": "b"}, nil)
	e.Evaluate(ctx, nil, map[string]any{"type": "c"}, nil)

	want := []string{OutcomeDeny, OutcomeAllow, OutcomeDefault}
	if strings.Join(obs.outcomes, ",") != strings.Join(want, ",") {
		t.Errorf("outcomes = %v, want %v", obs.outcomes, want)
	}
	if obs.rules[0] != "DENY" || obs.rules[2] != "" {
		t.Errorf("rules = %v, want [DENY ALLOW \"\"]", obs.rules)
	}
}

func TestEvaluateRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	e, err := NewEvaluator(nil, StaticRules{
		testRule("DENY", rule.PriorityHigh, "financial", rule.ActionBlock, nil),
	}, nil, WithTracer(tp.Tracer("test")))
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}
	e.Evaluate(context.Background(), map[string]any{"type": "transfer"}, map[string]any{"type": "financial"}, nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("len(spans) = %d, want 1", len(spans))
	}
	if spans[0].Name() != SpanEvaluate {
		t.Errorf("span name = %q, want %q", spans[0].Name(), SpanEvaluate)
	}
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[AttrRuleID] != "DENY" || attrs[AttrAllowed] != "false" || attrs[AttrActionType] != "transfer" {
		t.Errorf("span attributes = %v", attrs)
	}
}

func TestEvaluateConcurrentWithProviderSwap(t *testing.T) {
	var mu sync.RWMutex
	current := []rule.Rule{testRule("V1", rule.PriorityHigh, "c", rule.ActionBlock, nil)}
	provider := RuleProviderFunc(func() []rule.Rule {
		mu.RLock()
		defer mu.RUnlock()
		return current
	})
	e, err := NewEvaluator(nil, provider, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan string, 100)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				d := e.Evaluate(context.Background(), nil, map[string]any{"type": "c"}, nil)
				if d.TriggeredRule != "V1" && d.TriggeredRule != "V2" {
					errs <- d.TriggeredRule
					return
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		next := []rule.Rule{testRule("V2", rule.PriorityHigh, "c", rule.ActionWarn, nil)}
		if i%2 == 0 {
			next[0] = testRule("V1", rule.PriorityHigh, "c", rule.ActionBlock, nil)
		}
		mu.Lock()
		current = next
		mu.Unlock()
	}
	wg.Wait()
	close(errs)
	for got := range errs {
		t.Errorf("TriggeredRule = %q, want V1 or V2", got)
	}
}

func TestValidateTaskRules(t *testing.T) {
	cfg := DefaultEngineConfig().WithMaxTaskRules(2)
	valid := testRule("T", rule.PriorityLow, "c", rule.ActionWarn, nil)

	if err := cfg.ValidateTaskRules([]rule.Rule{valid}); err != nil {
		t.Errorf("ValidateTaskRules(valid) error = %v", err)
	}
	if err := cfg.ValidateTaskRules([]rule.Rule{valid, valid, valid}); !errors.Is(err, ErrTooManyTaskRules) {
		t.Errorf("ValidateTaskRules(3) error = %v, want ErrTooManyTaskRules", err)
	}

	err := cfg.ValidateTaskRules([]rule.Rule{valid, {RuleID: "NOACT"}})
	var trErr *TaskRuleError
	if !errors.As(err, &trErr) {
		t.Fatalf("ValidateTaskRules(missing action) error = %v, want *TaskRuleError", err)
	}
	if trErr.Index != 1 || trErr.RuleID != "NOACT" {
		t.Errorf("TaskRuleError = %+v, want index 1 NOACT", trErr)
	}
	var verr *rule.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("TaskRuleError does not unwrap to *rule.ValidationError")
	}
}

func TestEngineConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *EngineConfig
		wantErr bool
	}{
		{"default", DefaultEngineConfig(), false},
		{"empty deny action", DefaultEngineConfig().WithDenyActions(""), true},
		{"negative threshold", DefaultEngineConfig().WithSlowEvaluationThreshold(-time.Second), true},
		{"zero task rules", DefaultEngineConfig().WithMaxTaskRules(0), true},
		{"trace on", DefaultEngineConfig().WithTrace(true), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPriorityRank(t *testing.T) {
	tests := []struct {
		priority string
		want     int
	}{
		{rule.PriorityCritical, RankCritical},
		{rule.PriorityHigh, RankHigh},
		{rule.PriorityMedium, RankMedium},
		{rule.PriorityLow, RankLow},
		{"critical", RankUnknown},
		{"", RankUnknown},
	}
	for _, tt := range tests {
		if got := PriorityRank(tt.priority); got != tt.want {
			t.Errorf("PriorityRank(%q) = %d, want %d", tt.priority, got, tt.want)
		}
	}
}

func TestSortByPriorityStable(t *testing.T) {
	rules := []rule.Rule{
		{RuleID: "l1", Priority: rule.PriorityLow},
		{RuleID: "x1", Priority: "OTHER"},
		{RuleID: "c1", Priority: rule.PriorityCritical},
		{RuleID: "l2", Priority: rule.PriorityLow},
		{RuleID: "c2", Priority: rule.PriorityCritical},
	}
	SortByPriority(rules)
	var got []string
	for _, r := range rules {
		got = append(got, r.RuleID)
	}
	if strings.Join(got, ",") != "c1,c2,l1,l2,x1" {
		t.Errorf("SortByPriority() order = %v, want [c1 c2 l1 l2 x1]", got)
	}
}
