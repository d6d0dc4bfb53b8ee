package engine

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"

	"mercator-hq/sentinel/pkg/policy/rule"
)

// evaluateOperator applies one operator of an operator object. Unknown
// operators and in/not_in with a non-list operand hold trivially.
func evaluateOperator(op rule.Operator, actual any) bool {
	switch op.Name {
	case rule.OpGT, rule.OpLT, rule.OpGTE, rule.OpLTE:
		a, ok := toNumber(actual)
		if !ok {
			return false
		}
		b, ok := toNumber(op.Operand)
		if !ok {
			return false
		}
		return compareNumbers(op.Name, a, b)
	case rule.OpEQ:
		return strictEqual(actual, op.Operand)
	case rule.OpNE:
		return !strictEqual(actual, op.Operand)
	case rule.OpIn:
		items, ok := asList(op.Operand)
		if !ok {
			return true
		}
		return containsValue(items, actual)
	case rule.OpNotIn:
		items, ok := asList(op.Operand)
		if !ok {
			return true
		}
		return !containsValue(items, actual)
	default:
		return true
	}
}

func compareNumbers(op string, a, b float64) bool {
	switch op {
	case rule.OpGT:
		return a > b
	case rule.OpLT:
		return a < b
	case rule.OpGTE:
		return a >= b
	case rule.OpLTE:
		return a <= b
	default:
		return false
	}
}

// evaluateThreshold applies a ">x" or "<x" comparator.
func evaluateThreshold(cmp rule.Comparator, actual any) bool {
	if cmp.Threshold == nil {
		return false
	}
	a, ok := toNumber(actual)
	if !ok {
		return false
	}
	if cmp.Kind == rule.CompareGreater {
		return a > *cmp.Threshold
	}
	return a < *cmp.Threshold
}

// toNumber coerces numbers and numeric strings to float64. Booleans, nil,
// non-numeric strings, NaN and infinities are rejected.
func toNumber(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int8:
		f = float64(val)
	case int16:
		f = float64(val)
	case int32:
		f = float64(val)
	case int64:
		f = float64(val)
	case uint:
		f = float64(val)
	case uint8:
		f = float64(val)
	case uint16:
		f = float64(val)
	case uint32:
		f = float64(val)
	case uint64:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// isNumeric reports whether v is a Go number (not a numeric string).
func isNumeric(v any) bool {
	switch v.(type) {
	case float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return true
	default:
		return false
	}
}

// strictEqual compares without cross-type coercion, except that numbers of
// different Go types compare by value. Lists and maps compare element-wise.
func strictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isNumeric(a) || isNumeric(b) {
		if !isNumeric(a) || !isNumeric(b) {
			return false
		}
		x, okA := toNumber(a)
		y, okB := toNumber(b)
		return okA && okB && x == y
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !strictEqual(v, w) {
				return false
			}
		}
		return true
	}

	if al, ok := asList(a); ok {
		bl, ok := asList(b)
		if !ok || len(al) != len(bl) {
			return false
		}
		for i := range al {
			if !strictEqual(al[i], bl[i]) {
				return false
			}
		}
		return true
	}

	return reflect.DeepEqual(a, b)
}

// asList returns v as []any when it is any slice or array type.
func asList(v any) ([]any, bool) {
	switch val := v.(type) {
	case []any:
		return val, true
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func containsValue(items []any, v any) bool {
	for _, item := range items {
		if strictEqual(item, v) {
			return true
		}
	}
	return false
}
