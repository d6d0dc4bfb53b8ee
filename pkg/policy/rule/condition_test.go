package rule

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"
)

func decodeCondition(t *testing.T, doc string) *Condition {
	t.Helper()
	var c Condition
	if err := yaml.Unmarshal([]byte(doc), &c); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	return &c
}

func TestConditionCombinators(t *testing.T) {
	tests := []struct {
		name          string
		doc           string
		wantKind      Kind
		wantChildren  int
		wantAmbiguous bool
	}{
		{"all", "all: [{a: 1}, {b: 2}]", KindAll, 2, false},
		{"any", "any: [{a: 1}]", KindAny, 1, false},
		{"both prefers all", "any: [{a: 1}]\nall: [{b: 2}, {c: 3}]", KindAll, 2, true},
		{"empty all", "all: []", KindAll, 0, false},
		{"leaf", "a: 1\nb: 2", KindLeaf, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := decodeCondition(t, tt.doc)
			if c.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", c.Kind, tt.wantKind)
			}
			if len(c.Children) != tt.wantChildren {
				t.Errorf("len(Children) = %d, want %d", len(c.Children), tt.wantChildren)
			}
			if c.Ambiguous != tt.wantAmbiguous {
				t.Errorf("Ambiguous = %v, want %v", c.Ambiguous, tt.wantAmbiguous)
			}
		})
	}
}

func TestConditionNestedCombinators(t *testing.T) {
	c := decodeCondition(t, `
any:
  - all:
      - a: 1
      - b: 2
  - c: 3
`)
	if c.Kind != KindAny || len(c.Children) != 2 {
		t.Fatalf("root = %v with %d children, want any with 2", c.Kind, len(c.Children))
	}
	if c.Children[0].Kind != KindAll || len(c.Children[0].Children) != 2 {
		t.Errorf("first child = %v with %d children, want all with 2", c.Children[0].Kind, len(c.Children[0].Children))
	}
	if c.Children[1].Kind != KindLeaf {
		t.Errorf("second child = %v, want leaf", c.Children[1].Kind)
	}
}

func TestConditionComparators(t *testing.T) {
	c := decodeCondition(t, `
status: open
count: 3
ratio: "< 0.5"
tags: [a, b]
check_elements: [x, y]
not:
  region: eu
score: {gte: 0.8, in: [1, 2]}
`)
	want := []struct {
		key  string
		kind ComparatorKind
	}{
		{"status", CompareEqual},
		{"count", CompareEqual},
		{"ratio", CompareLess},
		{"tags", CompareEqual},
		{"check_elements", CompareElements},
		{"not", CompareNot},
		{"score", CompareOperators},
	}
	if len(c.Entries) != len(want) {
		t.Fatalf("len(Entries) = %d, want %d", len(c.Entries), len(want))
	}
	for i, w := range want {
		e := c.Entries[i]
		if e.Key != w.key || e.Comparator.Kind != w.kind {
			t.Errorf("Entries[%d] = %s/%v, want %s/%v", i, e.Key, e.Comparator.Kind, w.key, w.kind)
		}
	}

	ratio := c.Entries[2].Comparator
	if ratio.Threshold == nil || *ratio.Threshold != 0.5 {
		t.Errorf("ratio threshold = %v, want 0.5", ratio.Threshold)
	}
	if n := c.Entries[5].Comparator.Negated; n == nil || len(n.Entries) != 1 || n.Entries[0].Key != "region" {
		t.Errorf("not node = %+v, want leaf on region", n)
	}
	if els := c.Entries[4].Comparator.Elements; len(els) != 2 || els[0] != "x" {
		t.Errorf("elements = %v, want [x y]", els)
	}
}

func TestConditionInvalidNodes(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"all not a list", "all: {a: 1}"},
		{"scalar child", "any: [3]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := decodeCondition(t, tt.doc)
			if len(c.Warnings("condition")) == 0 {
				t.Error("Warnings() is empty, want a finding for the invalid node")
			}
		})
	}
}

func TestConditionNullCombinatorIsLeaf(t *testing.T) {
	for _, key := range []string{KeyAll, KeyAny} {
		t.Run(key, func(t *testing.T) {
			c := decodeCondition(t, key+": null\namount: {gt: 1000}")
			if c.Kind != KindLeaf {
				t.Fatalf("Kind = %v, want %v", c.Kind, KindLeaf)
			}
			if len(c.Entries) != 2 || c.Entries[0].Comparator.Kind != CompareSkip || c.Entries[1].Comparator.Kind != CompareOperators {
				t.Fatalf("Entries = %+v, want skipped %s then amount operators", c.Entries, key)
			}
			if len(c.Warnings("condition")) != 1 {
				t.Errorf("Warnings() = %v, want one finding for the null %s", c.Warnings("condition"), key)
			}
		})
	}
}

func TestConditionNotScalarIsSkipped(t *testing.T) {
	c := decodeCondition(t, "not: true\na: 1")
	if c.Entries[0].Comparator.Kind != CompareSkip {
		t.Errorf("not comparator = %v, want CompareSkip", c.Entries[0].Comparator.Kind)
	}
}

func TestConditionIsEmpty(t *testing.T) {
	var nilCond *Condition
	if !nilCond.IsEmpty() {
		t.Error("nil condition IsEmpty() = false, want true")
	}
	if !decodeCondition(t, "{}").IsEmpty() {
		t.Error("{} IsEmpty() = false, want true")
	}
	if decodeCondition(t, "all: []").IsEmpty() {
		t.Error("all: [] IsEmpty() = true, want false")
	}
}

func TestConditionJSONKeyOrder(t *testing.T) {
	var c Condition
	if err := json.Unmarshal([]byte(`{"z": 1, "m": {"lt": 4}, "a": ">2"}`), &c); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	keys := make([]string, 0, len(c.Entries))
	for _, e := range c.Entries {
		keys = append(keys, e.Key)
	}
	if len(keys) != 3 || keys[0] != "z" || keys[1] != "m" || keys[2] != "a" {
		t.Errorf("keys = %v, want [z m a]", keys)
	}
}

func TestConditionJSONTrailingData(t *testing.T) {
	var c Condition
	if err := c.UnmarshalJSON([]byte(`{"a": 1} {"b": 2}`)); err == nil {
		t.Error("UnmarshalJSON() with trailing value error = nil, want error")
	}
}

func TestConditionYAMLAnchors(t *testing.T) {
	c := decodeCondition(t, `
all:
  - &base {region: eu}
  - *base
`)
	if len(c.Children) != 2 || c.Children[1].Entries[0].Key != "region" {
		t.Errorf("alias child = %+v, want resolved region leaf", c.Children)
	}
}
