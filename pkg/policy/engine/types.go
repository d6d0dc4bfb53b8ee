package engine

import (
	"time"

	"mercator-hq/sentinel/pkg/policy/rule"
)

// Decision is the result of evaluating an action.
type Decision struct {
	// Allowed is false when the deciding rule's action type denies.
	Allowed bool `json:"allowed"`

	// Message is the deciding rule's action message.
	Message string `json:"message,omitempty"`

	// TriggeredRule is the rule_id of the deciding rule. Empty on default allow.
	TriggeredRule string `json:"triggered_rule,omitempty"`

	// ActionType is the deciding rule's action type.
	ActionType string `json:"action_type,omitempty"`

	// Priority is the deciding rule's priority.
	Priority string `json:"priority,omitempty"`

	// EvaluationID correlates the decision with logs and traces.
	EvaluationID string `json:"evaluation_id,omitempty"`

	// RulesConsidered is the number of candidate rules.
	RulesConsidered int `json:"rules_considered"`

	// Duration is the time spent evaluating.
	Duration time.Duration `json:"-"`
}

// Outcome labels a decision for metrics: "deny", "allow" (a rule matched and
// allowed) or "default" (no rule matched).
func (d Decision) Outcome() string {
	switch {
	case d.TriggeredRule == "":
		return OutcomeDefault
	case d.Allowed:
		return OutcomeAllow
	default:
		return OutcomeDeny
	}
}

// Decision outcomes.
const (
	OutcomeAllow   = "allow"
	OutcomeDeny    = "deny"
	OutcomeDefault = "default"
)

// Explanation is a decision together with the candidate walk that produced it.
type Explanation struct {
	Decision Decision `json:"decision"`
	Steps    []Step   `json:"steps"`
}

// Step records how one candidate rule was handled.
type Step struct {
	RuleID           string `json:"rule_id"`
	Priority         string `json:"priority,omitempty"`
	Source           string `json:"source,omitempty"`
	TaskRule         bool   `json:"task_rule,omitempty"`
	TriggerMatched   bool   `json:"trigger_matched"`
	ConditionMatched bool   `json:"condition_matched"`
	Skipped          string `json:"skipped,omitempty"`
}

// RuleProvider supplies the current rule snapshot.
type RuleProvider interface {
	Rules() []rule.Rule
}

// RuleProviderFunc adapts a function to RuleProvider.
type RuleProviderFunc func() []rule.Rule

// Rules returns f().
func (f RuleProviderFunc) Rules() []rule.Rule {
	return f()
}

// StaticRules is a fixed rule set.
type StaticRules []rule.Rule

// Rules returns the rule set.
func (s StaticRules) Rules() []rule.Rule {
	return s
}

// Observer receives evaluation outcomes, typically for metrics.
type Observer interface {
	ObserveEvaluation(outcome, ruleID string, duration time.Duration)
}
