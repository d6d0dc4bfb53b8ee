package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"mercator-hq/sentinel/pkg/policy/rule"
)

// Span and attribute names recorded for each evaluation.
const (
	SpanEvaluate = "policy.evaluate"

	AttrActionType      = "sentinel.action.type"
	AttrContextType     = "sentinel.context.type"
	AttrRulesConsidered = "sentinel.rules.considered"
	AttrAllowed         = "sentinel.decision.allowed"
	AttrRuleID          = "sentinel.decision.rule_id"
)

// Evaluator decides whether actions are allowed.
//
// It reads the provider's snapshot once per call and holds no mutable state,
// so it is safe for concurrent use.
type Evaluator struct {
	provider RuleProvider
	config   *EngineConfig
	logger   *slog.Logger
	observer Observer
	tracer   trace.Tracer
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithObserver reports every evaluation to o.
func WithObserver(o Observer) Option {
	return func(e *Evaluator) {
		e.observer = o
	}
}

// WithTracer records evaluation spans with t.
func WithTracer(t trace.Tracer) Option {
	return func(e *Evaluator) {
		if t != nil {
			e.tracer = t
		}
	}
}

// NewEvaluator creates an evaluator over the provider's rules.
func NewEvaluator(config *EngineConfig, provider RuleProvider, logger *slog.Logger, opts ...Option) (*Evaluator, error) {
	if config == nil {
		config = DefaultEngineConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if provider == nil {
		return nil, ErrNilProvider
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Evaluator{
		provider: provider,
		config:   config,
		logger:   logger,
		tracer:   noop.NewTracerProvider().Tracer("sentinel/engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the evaluator configuration.
func (e *Evaluator) Config() *EngineConfig {
	return e.config
}

// Evaluate decides whether action is allowed in evalCtx, its operating
// context. taskRules are call-scoped rules considered together with the
// provider's rules; task rules win ties of equal priority.
//
// Nil maps are treated as empty. Evaluate never fails.
func (e *Evaluator) Evaluate(ctx context.Context, action, evalCtx map[string]any, taskRules []rule.Rule) Decision {
	return e.run(ctx, action, evalCtx, taskRules, nil)
}

// Explain evaluates like Evaluate and records the outcome of every candidate
// up to and including the deciding rule.
func (e *Evaluator) Explain(ctx context.Context, action, evalCtx map[string]any, taskRules []rule.Rule) Explanation {
	var steps []Step
	decision := e.run(ctx, action, evalCtx, taskRules, &steps)
	if steps == nil {
		steps = []Step{}
	}
	return Explanation{Decision: decision, Steps: steps}
}

func (e *Evaluator) run(ctx context.Context, action, evalCtx map[string]any, taskRules []rule.Rule, steps *[]Step) Decision {
	start := time.Now()
	evaluationID := uuid.New().String()

	actionType, _ := action["type"].(string)
	contextType, _ := evalCtx["type"].(string)

	ordered := candidates(taskRules, e.provider.Rules())

	ctx, span := e.tracer.Start(ctx, SpanEvaluate, trace.WithAttributes(
		attribute.String(AttrActionType, actionType),
		attribute.String(AttrContextType, contextType),
		attribute.Int(AttrRulesConsidered, len(ordered)),
	))
	defer span.End()

	logger := e.logger.With("evaluation_id", evaluationID)
	logger.DebugContext(ctx, "evaluating action",
		"action_type", actionType,
		"context_type", contextType,
		"task_rules", len(taskRules),
		"rules", len(ordered),
	)

	decision := Decision{
		Allowed:         true,
		EvaluationID:    evaluationID,
		RulesConsidered: len(ordered),
	}

	for _, c := range ordered {
		r := c.rule
		step := Step{RuleID: r.RuleID, Priority: r.Priority, Source: r.Source, TaskRule: c.task}

		if r.Action == nil {
			step.Skipped = "missing action"
			logger.WarnContext(ctx, "skipping rule without action", "rule_id", r.RuleID)
			record(steps, step)
			continue
		}

		step.TriggerMatched = MatchTrigger(r, action, evalCtx)
		if step.TriggerMatched {
			step.ConditionMatched = EvaluateCondition(r.Condition, action, evalCtx)
		}
		if e.config.EnableTrace {
			logger.DebugContext(ctx, "rule evaluated",
				"rule_id", r.RuleID,
				"priority", r.Priority,
				"trigger_matched", step.TriggerMatched,
				"condition_matched", step.ConditionMatched,
			)
		}
		record(steps, step)

		if step.TriggerMatched && step.ConditionMatched {
			decision.Allowed = !e.config.denies(r.Action.Type)
			decision.Message = r.Action.Message
			decision.TriggeredRule = r.RuleID
			decision.ActionType = r.Action.Type
			decision.Priority = r.Priority
			break
		}
	}

	decision.Duration = time.Since(start)

	span.SetAttributes(attribute.Bool(AttrAllowed, decision.Allowed))
	if decision.TriggeredRule != "" {
		span.SetAttributes(attribute.String(AttrRuleID, decision.TriggeredRule))
	}

	if e.observer != nil {
		e.observer.ObserveEvaluation(decision.Outcome(), decision.TriggeredRule, decision.Duration)
	}

	level := slog.LevelDebug
	if !decision.Allowed {
		level = slog.LevelInfo
	}
	logger.Log(ctx, level, "decision evaluated",
		"allowed", decision.Allowed,
		"triggered_rule", decision.TriggeredRule,
		"action_type", decision.ActionType,
		"duration_ms", float64(decision.Duration.Microseconds())/1000,
	)
	if t := e.config.SlowEvaluationThreshold; t > 0 && decision.Duration > t {
		logger.WarnContext(ctx, "slow evaluation",
			"duration_ms", decision.Duration.Milliseconds(),
			"threshold_ms", t.Milliseconds(),
			"rules", len(ordered),
		)
	}

	return decision
}

func record(steps *[]Step, step Step) {
	if steps != nil {
		*steps = append(*steps, step)
	}
}
