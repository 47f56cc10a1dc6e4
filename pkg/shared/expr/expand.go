package expr

import (
	"strings"
)

// Expand converts a flat map with dot-separated keys into a nested map
// usable as an expression environment.
func Expand(value map[string]interface{}) map[string]interface{} {
	return expandPrefixed(value, "")
}

func expandPrefixed(value map[string]interface{}, prefix string) map[string]interface{} {
	m := make(map[string]interface{})
	expandPrefixedToResult(value, prefix, m)
	return m
}

func expandPrefixedToResult(value map[string]interface{}, prefix string, result map[string]interface{}) {
	if prefix != "" {
		prefix += "."
	}
	for k, val := range value {
		if !strings.HasPrefix(k, prefix) {
			continue
		}

		key := k[len(prefix):]
		idx := strings.Index(key, ".")
		if idx != -1 {
			key = key[:idx]
		}
		// The map may contain conflicts like {"a.b": 1, "a": 2}; a flat
		// key never clobbers an already-expanded nested value.
		if _, ok := result[key]; ok && idx == -1 {
			continue
		}
		if idx == -1 {
			result[key] = val
			continue
		}

		result[key] = expandPrefixed(value, k[:len(prefix)+len(key)])
	}
}
