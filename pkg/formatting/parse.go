package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParseFailed is returned when content cannot be decoded as JSON in any
// of the accepted shapes.
var ErrParseFailed = errors.New("failed to parse payload")

var fencePattern = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*\n?(.*?)\n?` + "```")

// Parse decodes model-produced content into T. It accepts plain JSON, a JSON
// string whose value is itself JSON, and JSON wrapped in a markdown code fence.
func Parse[T any](content []byte) (T, error) {
	var result T
	raw := strings.TrimSpace(string(content))
	if raw == "" {
		return result, fmt.Errorf("%w: empty content", ErrParseFailed)
	}

	if err := json.Unmarshal([]byte(raw), &result); err == nil {
		return result, nil
	}

	var inner string
	if err := json.Unmarshal([]byte(raw), &inner); err == nil {
		raw = strings.TrimSpace(inner)
		if err := json.Unmarshal([]byte(raw), &result); err == nil {
			return result, nil
		}
	}

	if m := fencePattern.FindStringSubmatch(raw); len(m) >= 2 {
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &result); err == nil {
			return result, nil
		}
	}

	return result, fmt.Errorf("%w: %s", ErrParseFailed, truncate(raw, 120))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
