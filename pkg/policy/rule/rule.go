package rule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Priority levels. Unknown priority strings rank below LOW.
const (
	PriorityCritical = "CRITICAL"
	PriorityHigh     = "HIGH"
	PriorityMedium   = "MEDIUM"
	PriorityLow      = "LOW"
)

// Action types with special meaning to the evaluator. Any other type is
// accepted and produces an allowed decision.
const (
	ActionBlock                    = "BLOCK"
	ActionWarn                     = "WARN"
	ActionMandatoryHumanReview     = "MANDATORY_HUMAN_REVIEW"
	ActionEnforceMasking           = "ENFORCE_MASKING"
	ActionEnforceDeadline          = "ENFORCE_DEADLINE"
	ActionValidateMandatoryClauses = "VALIDATE_MANDATORY_CLAUSES"
)

// Rule is a single declarative policy rule.
//
// Rules are immutable once loaded; the evaluator and repository only read them.
type Rule struct {
	RuleID      string     `yaml:"rule_id" json:"rule_id"`
	Name        string     `yaml:"name,omitempty" json:"name,omitempty"`
	Priority    string     `yaml:"priority,omitempty" json:"priority,omitempty"`
	Domain      string     `yaml:"domain,omitempty" json:"domain,omitempty"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Trigger     *Trigger   `yaml:"trigger,omitempty" json:"trigger,omitempty"`
	Condition   *Condition `yaml:"condition,omitempty" json:"condition,omitempty"`
	Action      *Action    `yaml:"action,omitempty" json:"action,omitempty"`
	OnFail      string     `yaml:"on_fail,omitempty" json:"on_fail,omitempty"`

	// Source is the document the rule was loaded from. Empty for call-scoped rules.
	Source string `yaml:"-" json:"source,omitempty"`
}

// Trigger restricts a rule to an operating context and action type.
type Trigger struct {
	Context    string `yaml:"context,omitempty" json:"context,omitempty"`
	ActionType string `yaml:"action_type,omitempty" json:"action_type,omitempty"`

	// Extra holds keys the evaluator does not interpret.
	Extra map[string]any `yaml:",inline" json:"-"`
}

// Action is what a matching rule decides.
type Action struct {
	Type    string `yaml:"type" json:"type"`
	Message string `yaml:"message,omitempty" json:"message,omitempty"`

	Extra map[string]any `yaml:",inline" json:"-"`
}

// UnmarshalJSON decodes a rule. Scalar fields accept numbers and booleans as
// their literal text, the way YAML documents decode them.
func (r *Rule) UnmarshalJSON(data []byte) error {
	type plain Rule
	var aux struct {
		*plain
		RuleID      json.RawMessage `json:"rule_id"`
		Name        json.RawMessage `json:"name"`
		Priority    json.RawMessage `json:"priority"`
		Domain      json.RawMessage `json:"domain"`
		Description json.RawMessage `json:"description"`
		OnFail      json.RawMessage `json:"on_fail"`
	}
	aux.plain = (*plain)(r)
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	fields := []struct {
		name string
		raw  json.RawMessage
		dst  *string
	}{
		{"rule_id", aux.RuleID, &r.RuleID},
		{"name", aux.Name, &r.Name},
		{"priority", aux.Priority, &r.Priority},
		{"domain", aux.Domain, &r.Domain},
		{"description", aux.Description, &r.Description},
		{"on_fail", aux.OnFail, &r.OnFail},
	}
	for _, f := range fields {
		text, err := scalarText(f.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = text
	}
	return nil
}

// scalarText returns the text of a JSON scalar. Strings are unquoted, null
// and absent values are empty, numbers and booleans keep their literal form.
func scalarText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", fmt.Errorf("must be a scalar")
	default:
		return string(raw), nil
	}
}

// UnmarshalJSON decodes a trigger, keeping unknown keys in Extra.
func (t *Trigger) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("trigger: %w", err)
	}
	*t = Trigger{}
	for k, v := range fields {
		switch k {
		case "context":
			t.Context = stringOrEmpty(v)
		case "action_type":
			t.ActionType = stringOrEmpty(v)
		default:
			if t.Extra == nil {
				t.Extra = make(map[string]any)
			}
			t.Extra[k] = v
		}
	}
	return nil
}

// MarshalJSON encodes a trigger including its extra keys.
func (t Trigger) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.Extra)+2)
	for k, v := range t.Extra {
		out[k] = v
	}
	if t.Context != "" {
		out["context"] = t.Context
	}
	if t.ActionType != "" {
		out["action_type"] = t.ActionType
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes an action, keeping unknown keys in Extra.
func (a *Action) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("action: %w", err)
	}
	*a = Action{}
	for k, v := range fields {
		switch k {
		case "type":
			a.Type = stringOrEmpty(v)
		case "message":
			a.Message = stringOrEmpty(v)
		default:
			if a.Extra == nil {
				a.Extra = make(map[string]any)
			}
			a.Extra[k] = v
		}
	}
	return nil
}

// MarshalJSON encodes an action including its extra keys.
func (a Action) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.Extra)+2)
	for k, v := range a.Extra {
		out[k] = v
	}
	out["type"] = a.Type
	if a.Message != "" {
		out["message"] = a.Message
	}
	return json.Marshal(out)
}

func decodeObject(data []byte) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func stringOrEmpty(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

// FromMap builds a rule from an already-decoded generic record, such as the
// output of yaml.Unmarshal or json.Unmarshal into map[string]any.
//
// Go maps carry no key order, so condition keys are taken in sorted order.
func FromMap(m map[string]any) (Rule, error) {
	var r Rule
	if m == nil {
		return r, &ValidationError{Problems: []string{"record is empty"}}
	}

	r.RuleID = stringOrEmpty(m["rule_id"])
	r.Name = stringOrEmpty(m["name"])
	r.Priority = stringOrEmpty(m["priority"])
	r.Domain = stringOrEmpty(m["domain"])
	r.Description = stringOrEmpty(m["description"])
	r.OnFail = stringOrEmpty(m["on_fail"])

	if raw, ok := m["trigger"].(map[string]any); ok {
		t := &Trigger{}
		for _, k := range sortedKeys(raw) {
			switch k {
			case "context":
				t.Context = stringOrEmpty(raw[k])
			case "action_type":
				t.ActionType = stringOrEmpty(raw[k])
			default:
				if t.Extra == nil {
					t.Extra = make(map[string]any)
				}
				t.Extra[k] = raw[k]
			}
		}
		r.Trigger = t
	}

	if raw, ok := m["action"].(map[string]any); ok {
		a := &Action{}
		for _, k := range sortedKeys(raw) {
			switch k {
			case "type":
				a.Type = stringOrEmpty(raw[k])
			case "message":
				a.Message = stringOrEmpty(raw[k])
			default:
				if a.Extra == nil {
					a.Extra = make(map[string]any)
				}
				a.Extra[k] = raw[k]
			}
		}
		r.Action = a
	}

	if raw, ok := m["condition"]; ok && raw != nil {
		r.Condition = NewCondition(fromPlain(raw))
	}

	return r, nil
}

// IsRuleLike reports whether v is a mapping with a non-empty scalar rule_id.
func IsRuleLike(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	switch id := m["rule_id"].(type) {
	case string:
		return id != ""
	case bool, float64, json.Number, int, int64, uint64:
		return true
	default:
		return false
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
