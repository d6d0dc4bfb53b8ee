package source

import (
	"errors"
	"strings"
	"testing"

	"mercator-hq/sentinel/pkg/policy/rule"
)

func TestParseYAML(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		wantRules   []string
		wantSkipped int
		wantErrors  int
	}{
		{
			name: "single record",
			data: `
rule_id: R1
priority: HIGH
trigger: {context: ops}
action: {type: WARN}
`,
			wantRules: []string{"R1"},
		},
		{
			name: "sequence of records",
			data: `
- rule_id: R1
  trigger: {context: ops}
  action: {type: WARN}
- rule_id: R2
  trigger: {context: ops}
  action: {type: BLOCK}
`,
			wantRules: []string{"R1", "R2"},
		},
		{
			name: "records without rule_id are skipped",
			data: `
- name: not a rule
- rule_id: ""
  action: {type: WARN}
- rule_id: R3
  action: {type: WARN}
- just a string
`,
			wantRules:   []string{"R3"},
			wantSkipped: 3,
		},
		{
			name: "missing action is rejected",
			data: `
- rule_id: R1
  trigger: {context: ops}
- rule_id: R2
  action: {type: WARN}
`,
			wantRules:  []string{"R2"},
			wantErrors: 1,
		},
		{
			name:      "empty document",
			data:      "",
			wantRules: nil,
		},
		{
			name:      "comments only",
			data:      "# nothing here\n",
			wantRules: nil,
		},
		{
			name:        "scalar document",
			data:        "hello",
			wantSkipped: 1,
		},
		{
			name: "multi-document stream",
			data: `
rule_id: A
action: {type: WARN}
---
rule_id: B
action: {type: WARN}
`,
			wantRules: []string{"A", "B"},
		},
		{
			name: "type mismatch is reported per record",
			data: `
- rule_id: BAD
  trigger: [not, a, map]
  action: {type: WARN}
- rule_id: GOOD
  action: {type: WARN}
`,
			wantRules:  []string{"GOOD"},
			wantErrors: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Parse(Document{Path: "rules/test.yaml", Data: []byte(tt.data)})
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			var ids []string
			for _, r := range res.Rules {
				ids = append(ids, r.RuleID)
				if r.Source != "rules/test.yaml" {
					t.Errorf("rule %s Source = %q, want rules/test.yaml", r.RuleID, r.Source)
				}
			}
			if strings.Join(ids, ",") != strings.Join(tt.wantRules, ",") {
				t.Errorf("rules = %v, want %v", ids, tt.wantRules)
			}
			if res.Skipped != tt.wantSkipped {
				t.Errorf("Skipped = %d, want %d", res.Skipped, tt.wantSkipped)
			}
			if len(res.Errors) != tt.wantErrors {
				t.Errorf("len(Errors) = %d, want %d: %v", len(res.Errors), tt.wantErrors, res.Errors)
			}
		})
	}
}

func TestParseRejectedRecordIsValidationError(t *testing.T) {
	res, err := Parse(Document{Path: "x.yaml", Data: []byte("rule_id: R1\n")})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("len(Errors) = %d, want 1", len(res.Errors))
	}
	var verr *rule.ValidationError
	if !errors.As(res.Errors[0], &verr) {
		t.Fatalf("error type = %T, want *rule.ValidationError", res.Errors[0])
	}
	if verr.RuleID != "R1" || verr.Source != "x.yaml" {
		t.Errorf("ValidationError = %+v, want R1 in x.yaml", verr)
	}
}

func TestParseInvalidYAML(t *testing.T) {
	data := "rule_id: R1\naction:\n  type: WARN\n   message: bad indent\n"
	_, err := Parse(Document{Path: "broken.yaml", Data: []byte(data)})

	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Parse() error = %v, want *ParseError", err)
	}
	if perr.Path != "broken.yaml" {
		t.Errorf("Path = %q, want broken.yaml", perr.Path)
	}
	if perr.Line == 0 {
		t.Errorf("Line = 0, want the offending line")
	}
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		wantRules   int
		wantSkipped int
		wantErrors  int
		wantErr     bool
	}{
		{
			name:      "object",
			data:      `{"rule_id": "J1", "trigger": {"context": "ops"}, "action": {"type": "WARN"}}`,
			wantRules: 1,
		},
		{
			name:        "array with non-rules",
			data:        `[{"rule_id": "J1", "action": {"type": "WARN"}}, {"name": "x"}, 3]`,
			wantRules:   1,
			wantSkipped: 2,
		},
		{
			name:      "numeric rule_id",
			data:      `[{"rule_id": 7, "trigger": {"context": "ops"}, "action": {"type": "WARN"}}]`,
			wantRules: 1,
		},
		{
			name:        "object rule_id is not a rule",
			data:        `[{"rule_id": {"x": 1}, "action": {"type": "WARN"}}]`,
			wantSkipped: 1,
		},
		{
			name:       "object name is rejected",
			data:       `[{"rule_id": "J1", "name": ["x"], "action": {"type": "WARN"}}]`,
			wantErrors: 1,
		},
		{
			name:    "syntax error",
			data:    `{"rule_id": "J1",`,
			wantErr: true,
		},
		{
			name:        "scalar",
			data:        `"text"`,
			wantSkipped: 1,
		},
		{
			name: "empty",
			data: "  ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Parse(Document{Path: "rules/test.json", Data: []byte(tt.data)})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var perr *ParseError
				if !errors.As(err, &perr) {
					t.Errorf("Parse() error type = %T, want *ParseError", err)
				}
				return
			}
			if len(res.Rules) != tt.wantRules || res.Skipped != tt.wantSkipped || len(res.Errors) != tt.wantErrors {
				t.Errorf("Parse() = {rules: %d, skipped: %d, errors: %d}, want {%d, %d, %d}",
					len(res.Rules), res.Skipped, len(res.Errors), tt.wantRules, tt.wantSkipped, tt.wantErrors)
			}
		})
	}
}

func TestParseScalarFieldsMatchAcrossFormats(t *testing.T) {
	docs := []Document{
		{Path: "r.yaml", Data: []byte("rule_id: 7\npriority: HIGH\nname: 2024\ntrigger: {context: ops}\naction: {type: WARN}\n")},
		{Path: "r.json", Data: []byte(`{"rule_id": 7, "priority": "HIGH", "name": 2024, "trigger": {"context": "ops"}, "action": {"type": "WARN"}}`)},
	}
	for _, doc := range docs {
		t.Run(doc.Path, func(t *testing.T) {
			res, err := Parse(doc)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if len(res.Rules) != 1 {
				t.Fatalf("len(Rules) = %d, want 1 (errors: %v)", len(res.Rules), res.Errors)
			}
			if r := res.Rules[0]; r.RuleID != "7" || r.Name != "2024" || r.Priority != "HIGH" {
				t.Errorf("rule = {%q %q %q}, want {7 2024 HIGH}", r.RuleID, r.Name, r.Priority)
			}
		})
	}
}

func TestParseJSONKeepsConditionOrder(t *testing.T) {
	data := `{"rule_id": "J1", "action": {"type": "WARN"}, "condition": {"z": 1, "a": 2}}`
	res, err := Parse(Document{Path: "r.json", Data: []byte(data)})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	entries := res.Rules[0].Condition.Entries
	if entries[0].Key != "z" || entries[1].Key != "a" {
		t.Errorf("entries = [%s %s], want [z a]", entries[0].Key, entries[1].Key)
	}
}

func TestParseDocumentError(t *testing.T) {
	loadErr := &LoadError{Path: "x.yaml", Message: "too big"}
	if _, err := Parse(Document{Path: "x.yaml", Err: loadErr}); !errors.Is(err, loadErr) {
		t.Errorf("Parse() error = %v, want the document error", err)
	}
}

func TestParseWarnings(t *testing.T) {
	data := `
rule_id: W1
priority: SOMETIMES
trigger: {context: ops}
condition:
  all: [{a: 1}]
  any: [{b: 2}]
action: {type: WARN}
`
	res, err := Parse(Document{Path: "w.yaml", Data: []byte(data)})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	joined := strings.Join(res.Warnings, "\n")
	if !strings.Contains(joined, "w.yaml: W1: unknown priority") || !strings.Contains(joined, "both all and any") {
		t.Errorf("Warnings = %v", res.Warnings)
	}
}
