package pipeline

import "fmt"

// sanitize recursively converts a value into a JSON- and prompt-safe form:
// maps and slices keep their shape with sanitized contents, nil becomes the
// empty string, and every other leaf becomes its string representation. The
// transform is idempotent and its output never contains null markers.
func sanitize(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = sanitize(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = sanitize(val)
		}
		return out
	default:
		return fmt.Sprintf("%v", x)
	}
}
