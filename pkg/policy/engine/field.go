package engine

import (
	"reflect"
	"strconv"
	"strings"
)

// resolveField looks a condition key up in the action, then the context.
// The boolean is false when the key is undefined in both. A key present with
// a nil value is defined.
func resolveField(key string, action, context map[string]any) (any, bool) {
	if !strings.Contains(key, ".") {
		if v, ok := action[key]; ok {
			return v, true
		}
		v, ok := context[key]
		return v, ok
	}

	parts := strings.Split(key, ".")
	if v, ok := lookupPath(action, parts); ok {
		return v, true
	}
	return lookupPath(context, parts)
}

// lookupPath walks maps by key and lists by decimal index.
func lookupPath(root map[string]any, parts []string) (any, bool) {
	if root == nil {
		return nil, false
	}
	var current any = root
	for _, part := range parts {
		next, ok := step(current, part)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

func step(current any, part string) (any, bool) {
	switch c := current.(type) {
	case map[string]any:
		v, ok := c[part]
		return v, ok
	case []any:
		idx, err := strconv.Atoi(part)
		if err != nil || idx < 0 || idx >= len(c) {
			return nil, false
		}
		return c[idx], true
	case nil:
		return nil, false
	}

	// Typed maps and slices, e.g. map[string]string built in Go code.
	rv := reflect.ValueOf(current)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		v := rv.MapIndex(reflect.ValueOf(part).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, false
		}
		return v.Interface(), true
	case reflect.Slice, reflect.Array:
		idx, err := strconv.Atoi(part)
		if err != nil || idx < 0 || idx >= rv.Len() {
			return nil, false
		}
		return rv.Index(idx).Interface(), true
	default:
		return nil, false
	}
}
