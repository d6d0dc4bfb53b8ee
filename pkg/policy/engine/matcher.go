package engine

import (
	"mercator-hq/sentinel/pkg/policy/rule"
)

// MatchTrigger reports whether a rule applies to the action in its context.
//
// A rule without a trigger never applies. A non-empty trigger.context must
// equal context["type"] and a non-empty trigger.action_type must equal
// action["type"]; both comparisons are string equality against the raw value.
func MatchTrigger(r rule.Rule, action, context map[string]any) bool {
	t := r.Trigger
	if t == nil {
		return false
	}
	if t.Context != "" {
		if v, ok := context["type"].(string); !ok || v != t.Context {
			return false
		}
	}
	if t.ActionType != "" {
		if v, ok := action["type"].(string); !ok || v != t.ActionType {
			return false
		}
	}
	return true
}

// EvaluateCondition reports whether a condition holds. A nil or empty
// condition holds.
func EvaluateCondition(c *rule.Condition, action, context map[string]any) bool {
	if c == nil {
		return true
	}
	if c.Invalid != "" {
		return false
	}

	switch c.Kind {
	case rule.KindAll:
		for _, child := range c.Children {
			if !EvaluateCondition(child, action, context) {
				return false
			}
		}
		return true
	case rule.KindAny:
		for _, child := range c.Children {
			if EvaluateCondition(child, action, context) {
				return true
			}
		}
		return false
	default:
		for _, e := range c.Entries {
			if !evaluateEntry(e, action, context) {
				return false
			}
		}
		return true
	}
}

func evaluateEntry(e rule.Entry, action, context map[string]any) bool {
	cmp := e.Comparator
	switch cmp.Kind {
	case rule.CompareSkip:
		return true
	case rule.CompareNot:
		return !EvaluateCondition(cmp.Negated, action, context)
	case rule.CompareElements:
		present := elements(action, context)
		for _, want := range cmp.Elements {
			if !containsValue(present, want) {
				return false
			}
		}
		return true
	}

	actual, ok := resolveField(e.Key, action, context)
	if !ok {
		return false
	}

	switch cmp.Kind {
	case rule.CompareGreater, rule.CompareLess:
		return evaluateThreshold(cmp, actual)
	case rule.CompareOperators:
		for _, op := range cmp.Operators {
			if !evaluateOperator(op, actual) {
				return false
			}
		}
		return true
	default:
		return strictEqual(actual, cmp.Value)
	}
}

// elements returns the list that check_elements inspects: action["elements"]
// when it is a list, else context["elements"] when it is a list, else empty.
func elements(action, context map[string]any) []any {
	if items, ok := asList(action["elements"]); ok {
		return items
	}
	if items, ok := asList(context["elements"]); ok {
		return items
	}
	return nil
}
