package rule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Reserved condition keys.
const (
	KeyAll           = "all"
	KeyAny           = "any"
	KeyNot           = "not"
	KeyCheckElements = "check_elements"
)

// Kind distinguishes condition nodes.
type Kind int

const (
	// KindLeaf is a map of field keys to comparators, ANDed together.
	KindLeaf Kind = iota
	// KindAll passes when every child passes.
	KindAll
	// KindAny passes when at least one child passes.
	KindAny
)

func (k Kind) String() string {
	switch k {
	case KindAll:
		return "all"
	case KindAny:
		return "any"
	default:
		return "leaf"
	}
}

// Condition is a parsed predicate tree node.
//
// A node is either a combinator (KindAll, KindAny) with Children, or a leaf
// map (KindLeaf) with Entries in document key order.
type Condition struct {
	Kind     Kind
	Children []*Condition
	Entries  []Entry

	// Ambiguous is set when a node carried both "all" and "any"; "all" wins.
	Ambiguous bool

	// Invalid holds a reason when the node could not be interpreted.
	// Invalid nodes never pass.
	Invalid string

	raw any
}

// Entry is one key of a leaf map.
type Entry struct {
	Key        string
	Comparator Comparator
}

// ComparatorKind distinguishes leaf comparators.
type ComparatorKind int

const (
	// CompareEqual is strict equality against a scalar or list.
	CompareEqual ComparatorKind = iota
	// CompareGreater is a ">x" threshold string.
	CompareGreater
	// CompareLess is a "<x" threshold string.
	CompareLess
	// CompareOperators is an operator object such as {gte: 0.8}.
	CompareOperators
	// CompareElements is check_elements: every listed element must be present.
	CompareElements
	// CompareNot negates a nested condition node.
	CompareNot
	// CompareSkip marks reserved keys that are not evaluated.
	CompareSkip
)

// Comparator is the expected-value side of a leaf entry.
type Comparator struct {
	Kind ComparatorKind

	// Value is the expected value for CompareEqual.
	Value any

	// Threshold is set for CompareGreater and CompareLess when the
	// threshold string parsed as a number.
	Threshold *float64
	// RawThreshold is the threshold text after the operator character.
	RawThreshold string

	// Operators for CompareOperators, in document order.
	Operators []Operator
	// Unknown lists operator keys that are ignored during evaluation.
	Unknown []string

	// Elements for CompareElements.
	Elements []any

	// Negated is the nested node for CompareNot.
	Negated *Condition
}

// Operator names understood inside operator objects.
const (
	OpGT    = "gt"
	OpLT    = "lt"
	OpGTE   = "gte"
	OpLTE   = "lte"
	OpEQ    = "eq"
	OpNE    = "ne"
	OpIn    = "in"
	OpNotIn = "not_in"
)

var knownOperators = map[string]bool{
	OpGT: true, OpLT: true, OpGTE: true, OpLTE: true,
	OpEQ: true, OpNE: true, OpIn: true, OpNotIn: true,
}

// Operator is one sub-operator of an operator object.
type Operator struct {
	Name    string
	Operand any
}

// IsEmpty reports whether the condition is absent or has nothing to check.
func (c *Condition) IsEmpty() bool {
	return c == nil || (c.Kind == KindLeaf && c.Invalid == "" && len(c.Entries) == 0)
}

// Raw returns the condition as generic maps and slices, the shape it had in
// the source document.
func (c *Condition) Raw() any {
	if c == nil {
		return nil
	}
	return c.raw
}

// member and object keep mapping keys in document order while a condition is
// being built.
type member struct {
	key   string
	value any
}

type object []member

func (o object) get(key string) (any, bool) {
	for _, m := range o {
		if m.key == key {
			return m.value, true
		}
	}
	return nil, false
}

// NewCondition builds a condition node from a decoded value. Mappings must be
// given as ordered objects (see fromPlain, fromNode, fromJSON).
func NewCondition(v any) *Condition {
	c := build(v)
	c.raw = toPlain(v)
	return c
}

func build(v any) *Condition {
	obj, ok := v.(object)
	if !ok {
		return &Condition{Invalid: fmt.Sprintf("condition must be a mapping, got %s", describe(v))}
	}

	// A null combinator counts as absent; the key then falls through to the
	// leaf map and is skipped there.
	allV, _ := obj.get(KeyAll)
	anyV, _ := obj.get(KeyAny)
	hasAll, hasAny := allV != nil, anyV != nil
	switch {
	case hasAll:
		c := buildCombinator(KindAll, allV)
		c.Ambiguous = hasAny
		return c
	case hasAny:
		return buildCombinator(KindAny, anyV)
	}

	c := &Condition{Kind: KindLeaf, Entries: make([]Entry, 0, len(obj))}
	for _, m := range obj {
		c.Entries = append(c.Entries, Entry{Key: m.key, Comparator: buildComparator(m.key, m.value)})
	}
	return c
}

func buildCombinator(kind Kind, v any) *Condition {
	c := &Condition{Kind: kind}
	items, ok := v.([]any)
	if !ok {
		c.Invalid = fmt.Sprintf("%s must be a list, got %s", kind, describe(v))
		return c
	}
	c.Children = make([]*Condition, 0, len(items))
	for _, item := range items {
		child := build(item)
		child.raw = toPlain(item)
		c.Children = append(c.Children, child)
	}
	return c
}

func buildComparator(key string, v any) Comparator {
	switch key {
	case KeyAll, KeyAny:
		return Comparator{Kind: CompareSkip}
	case KeyCheckElements:
		if items, ok := v.([]any); ok {
			return Comparator{Kind: CompareElements, Elements: toPlain(items).([]any)}
		}
	case KeyNot:
		if _, ok := v.(object); ok {
			nested := build(v)
			nested.raw = toPlain(v)
			return Comparator{Kind: CompareNot, Negated: nested}
		}
		return Comparator{Kind: CompareSkip}
	}

	switch val := v.(type) {
	case object:
		cmp := Comparator{Kind: CompareOperators}
		for _, m := range val {
			if knownOperators[m.key] {
				cmp.Operators = append(cmp.Operators, Operator{Name: m.key, Operand: toPlain(m.value)})
			} else {
				cmp.Unknown = append(cmp.Unknown, m.key)
			}
		}
		return cmp
	case string:
		if strings.HasPrefix(val, ">") || strings.HasPrefix(val, "<") {
			kind := CompareGreater
			if val[0] == '<' {
				kind = CompareLess
			}
			raw := strings.TrimSpace(val[1:])
			cmp := Comparator{Kind: kind, RawThreshold: raw}
			if f, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
				cmp.Threshold = &f
			}
			return cmp
		}
	}

	return Comparator{Kind: CompareEqual, Value: toPlain(v)}
}

// fromPlain converts generic maps into ordered objects with sorted keys.
func fromPlain(v any) any {
	switch val := v.(type) {
	case map[string]any:
		keys := sortedKeys(val)
		obj := make(object, 0, len(keys))
		for _, k := range keys {
			obj = append(obj, member{key: k, value: fromPlain(val[k])})
		}
		return obj
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = fromPlain(item)
		}
		return out
	default:
		return v
	}
}

// toPlain converts ordered objects back into generic maps.
func toPlain(v any) any {
	switch val := v.(type) {
	case object:
		out := make(map[string]any, len(val))
		for _, m := range val {
			out[m.key] = toPlain(m.value)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toPlain(item)
		}
		return out
	default:
		return v
	}
}

// fromNode converts a YAML node into ordered objects, slices and scalars.
func fromNode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return fromNode(n.Content[0])
	case yaml.AliasNode:
		return fromNode(n.Alias)
	case yaml.MappingNode:
		obj := make(object, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			var key string
			if err := n.Content[i].Decode(&key); err != nil {
				return nil, fmt.Errorf("line %d: condition key: %w", n.Content[i].Line, err)
			}
			val, err := fromNode(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj = append(obj, member{key: key, value: val})
		}
		return obj, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			val, err := fromNode(item)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}
}

// fromJSON reads one JSON value from dec into ordered objects, slices and
// scalars. Numbers decode as float64.
func fromJSON(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		obj := object{}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected object key %v", keyTok)
			}
			val, err := fromJSON(dec)
			if err != nil {
				return nil, err
			}
			obj = append(obj, member{key: key, value: val})
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		out := []any{}
		for dec.More() {
			val, err := fromJSON(dec)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %v", delim)
	}
}

// UnmarshalYAML builds the condition tree keeping document key order.
func (c *Condition) UnmarshalYAML(node *yaml.Node) error {
	v, err := fromNode(node)
	if err != nil {
		return err
	}
	*c = *NewCondition(v)
	return nil
}

// UnmarshalJSON builds the condition tree keeping document key order.
func (c *Condition) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	v, err := fromJSON(dec)
	if err != nil {
		return fmt.Errorf("condition: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("condition: trailing data")
	}
	*c = *NewCondition(v)
	return nil
}

// MarshalJSON encodes the condition in its source shape.
func (c Condition) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.raw)
}

// MarshalYAML encodes the condition in its source shape.
func (c Condition) MarshalYAML() (any, error) {
	return c.raw, nil
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "list"
	case string:
		return "string"
	case bool:
		return "bool"
	default:
		return fmt.Sprintf("%T", v)
	}
}
