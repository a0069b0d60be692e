package pipeline

import (
	"strings"

	"github.com/rotisserie/eris"
)

// extractJSONObject returns the first balanced JSON object in text. The scan
// tracks brace depth and is string- and escape-aware, so nested braces inside
// string values do not truncate the object. Prose or markdown fences around
// the object are ignored because the scan starts at the first '{'.
func extractJSONObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", eris.New("no JSON object found in text")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}

	return "", eris.New("unterminated JSON object in text")
}
