package timeline

import (
	"encoding/json"
	"strconv"
)

// Accessors over generic decoded JSON. All of them treat absent keys, nil
// values, and type mismatches as "not there" rather than errors.

func childMap(m map[string]any, path ...string) map[string]any {
	cur := m
	for _, key := range path {
		next, ok := cur[key].(map[string]any)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

func childSlice(m map[string]any, path ...string) []any {
	if len(path) == 0 {
		return nil
	}
	parent := m
	if len(path) > 1 {
		parent = childMap(m, path[:len(path)-1]...)
		if parent == nil {
			return nil
		}
	}
	s, _ := parent[path[len(path)-1]].([]any)
	return s
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// intField coerces the usual JSON number representations; anything else
// counts as zero.
func intField(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return n
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0
		}
		return n
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

// boolField returns the value and whether the key held an actual boolean.
func boolField(m map[string]any, key string) (bool, bool) {
	b, ok := m[key].(bool)
	return b, ok
}
