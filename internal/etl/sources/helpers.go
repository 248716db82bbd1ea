package sources

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// navigatePath walks a dot-separated path into nested objects.
func navigatePath(obj any, path string) (any, error) {
	current := obj
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("invalid data path %q: %q is not inside an object", path, part)
		}
		next, ok := m[part]
		if !ok {
			return nil, fmt.Errorf("invalid data path %q: %q not found", path, part)
		}
		current = next
	}
	return current, nil
}

// stringify renders a decoded JSON value as a column string.
// Nested objects and arrays are kept as compact JSON.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// collapseSpace trims s and folds internal whitespace runs to one space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
