package rule

import (
	"fmt"
	"strings"
)

// ValidationError describes why a rule record was rejected.
type ValidationError struct {
	RuleID   string
	Source   string
	Problems []string
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("invalid rule")
	if e.RuleID != "" {
		fmt.Fprintf(&sb, " %q", e.RuleID)
	}
	if e.Source != "" {
		fmt.Fprintf(&sb, " in %s", e.Source)
	}
	if len(e.Problems) > 0 {
		sb.WriteString(": ")
		sb.WriteString(strings.Join(e.Problems, "; "))
	}
	return sb.String()
}

// Validate checks that the rule can be admitted to a rule set.
func (r Rule) Validate() error {
	var problems []string
	if r.RuleID == "" {
		problems = append(problems, "rule_id is required")
	}
	if r.Action == nil {
		problems = append(problems, "action is required")
	}
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{RuleID: r.RuleID, Source: r.Source, Problems: problems}
}

// Warnings returns non-fatal findings about the rule.
func (r Rule) Warnings() []string {
	var warnings []string
	switch r.Priority {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
	case "":
		warnings = append(warnings, "priority not set, rule ranks below LOW")
	default:
		warnings = append(warnings, fmt.Sprintf("unknown priority %q, rule ranks below LOW", r.Priority))
	}

	if r.Trigger == nil {
		warnings = append(warnings, "trigger not set, rule never matches")
	} else if r.Trigger.Context == "" {
		warnings = append(warnings, "trigger.context is empty, rule matches every context")
	}

	if r.Action != nil && r.Action.Type == "" {
		warnings = append(warnings, "action.type is empty")
	}

	if r.Condition != nil {
		warnings = append(warnings, r.Condition.Warnings("condition")...)
	}
	return warnings
}

// Warnings returns findings for the node and its descendants. path prefixes
// each message.
func (c *Condition) Warnings(path string) []string {
	if c == nil {
		return nil
	}
	var warnings []string
	if c.Invalid != "" {
		warnings = append(warnings, fmt.Sprintf("%s: %s, node never passes", path, c.Invalid))
	}
	if c.Ambiguous {
		warnings = append(warnings, fmt.Sprintf("%s: both all and any present, any is ignored", path))
	}
	for i, child := range c.Children {
		warnings = append(warnings, child.Warnings(fmt.Sprintf("%s.%s[%d]", path, c.Kind, i))...)
	}
	for _, e := range c.Entries {
		p := path + "." + e.Key
		cmp := e.Comparator
		switch cmp.Kind {
		case CompareGreater, CompareLess:
			if cmp.Threshold == nil {
				warnings = append(warnings, fmt.Sprintf("%s: threshold %q is not a number, entry never passes", p, cmp.RawThreshold))
			}
		case CompareOperators:
			for _, name := range cmp.Unknown {
				warnings = append(warnings, fmt.Sprintf("%s: unknown operator %q is ignored", p, name))
			}
			for _, op := range cmp.Operators {
				if (op.Name == OpIn || op.Name == OpNotIn) && !isList(op.Operand) {
					warnings = append(warnings, fmt.Sprintf("%s: %s operand is not a list and is ignored", p, op.Name))
				}
			}
		case CompareNot:
			warnings = append(warnings, cmp.Negated.Warnings(p)...)
		case CompareSkip:
			if e.Key == KeyNot {
				warnings = append(warnings, fmt.Sprintf("%s: not must be a mapping, entry is ignored", p))
			} else {
				warnings = append(warnings, fmt.Sprintf("%s: %s inside a field map is ignored", p, e.Key))
			}
		}
	}
	return warnings
}

func isList(v any) bool {
	_, ok := v.([]any)
	return ok
}
