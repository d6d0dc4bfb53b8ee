package engine

import (
	"errors"
	"fmt"

	"mercator-hq/sentinel/pkg/policy/rule"
)

// Common sentinel errors
var (
	// ErrInvalidConfig indicates invalid engine configuration.
	ErrInvalidConfig = errors.New("invalid engine configuration")

	// ErrNilProvider indicates the evaluator was built without a rule provider.
	ErrNilProvider = errors.New("rule provider cannot be nil")

	// ErrTooManyTaskRules indicates a caller supplied more call-scoped rules
	// than the configured limit.
	ErrTooManyTaskRules = errors.New("too many task rules")
)

// TaskRuleError indicates a call-scoped rule that cannot be evaluated.
type TaskRuleError struct {
	Index  int
	RuleID string
	Cause  error
}

// Error returns the error message.
func (e *TaskRuleError) Error() string {
	if e.RuleID != "" {
		return fmt.Sprintf("task rule %d (%s): %v", e.Index, e.RuleID, e.Cause)
	}
	return fmt.Sprintf("task rule %d: %v", e.Index, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *TaskRuleError) Unwrap() error {
	return e.Cause
}

// ValidateTaskRules checks call-scoped rules before evaluation. Evaluate
// itself skips invalid task rules; callers that can reject input, such as the
// HTTP API, use this to report them instead.
func (c *EngineConfig) ValidateTaskRules(rules []rule.Rule) error {
	if len(rules) > c.MaxTaskRules {
		return fmt.Errorf("%w: %d exceeds limit of %d", ErrTooManyTaskRules, len(rules), c.MaxTaskRules)
	}
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return &TaskRuleError{Index: i, RuleID: r.RuleID, Cause: err}
		}
	}
	return nil
}
