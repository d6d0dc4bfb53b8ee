package engine

import (
	"fmt"
	"time"

	"mercator-hq/sentinel/pkg/policy/rule"
)

// EngineConfig contains configuration for the policy evaluator.
type EngineConfig struct {
	// DenyActions lists action types that produce a denied decision.
	// Default: BLOCK, MANDATORY_HUMAN_REVIEW.
	DenyActions []string

	// EnableTrace logs every candidate rule outcome at debug level.
	// Default: false.
	EnableTrace bool

	// SlowEvaluationThreshold logs a warning for evaluations slower than this.
	// Zero disables the warning.
	// Default: 10ms.
	SlowEvaluationThreshold time.Duration

	// MaxTaskRules caps the number of call-scoped rules accepted per evaluation.
	// Default: 1000.
	MaxTaskRules int
}

// DefaultEngineConfig returns the default engine configuration.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		DenyActions:             []string{rule.ActionBlock, rule.ActionMandatoryHumanReview},
		EnableTrace:             false,
		SlowEvaluationThreshold: 10 * time.Millisecond,
		MaxTaskRules:            1000,
	}
}

// Validate validates the engine configuration.
func (c *EngineConfig) Validate() error {
	if len(c.DenyActions) == 0 {
		return fmt.Errorf("%w: deny actions cannot be empty", ErrInvalidConfig)
	}
	for _, a := range c.DenyActions {
		if a == "" {
			return fmt.Errorf("%w: deny action cannot be empty", ErrInvalidConfig)
		}
	}
	if c.SlowEvaluationThreshold < 0 {
		return fmt.Errorf("%w: slow evaluation threshold cannot be negative", ErrInvalidConfig)
	}
	if c.MaxTaskRules <= 0 {
		return fmt.Errorf("%w: max task rules must be positive", ErrInvalidConfig)
	}
	return nil
}

// WithDenyActions sets the action types that deny.
func (c *EngineConfig) WithDenyActions(actions ...string) *EngineConfig {
	c.DenyActions = actions
	return c
}

// WithTrace enables or disables evaluation tracing.
func (c *EngineConfig) WithTrace(enabled bool) *EngineConfig {
	c.EnableTrace = enabled
	return c
}

// WithSlowEvaluationThreshold sets the slow evaluation warning threshold.
func (c *EngineConfig) WithSlowEvaluationThreshold(d time.Duration) *EngineConfig {
	c.SlowEvaluationThreshold = d
	return c
}

// WithMaxTaskRules sets the maximum number of call-scoped rules.
func (c *EngineConfig) WithMaxTaskRules(max int) *EngineConfig {
	c.MaxTaskRules = max
	return c
}

func (c *EngineConfig) denies(actionType string) bool {
	for _, a := range c.DenyActions {
		if a == actionType {
			return true
		}
	}
	return false
}
