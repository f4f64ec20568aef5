// Package memory implements response normalization and search ranking for
// the mem0 memory service.
package memory

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// toolResultPrefix is emitted by some mem0 deployments that wrap tool
	// output before returning it.
	toolResultPrefix = "Tool execution result: "

	// maxNormalizeDepth bounds recursion on nested responses. Real
	// responses nest at most a few levels.
	maxNormalizeDepth = 8
)

var unicodeEscape = regexp.MustCompile(`\\u([0-9a-fA-F]{4})`)

// Normalize converts a heterogeneous mem0 response into plain text.
//
// The service may return a plain string, a JSON-encoded string (possibly
// escaped more than once), a list of records, or a single record object.
// Normalize dispatches on the runtime shape and extracts the text content.
// It is idempotent on already-clean text and never fails: malformed input
// falls back to its plain string form.
func Normalize(response any) string {
	return normalize(response, 0)
}

func normalize(v any, depth int) string {
	if isEmpty(v) {
		return ""
	}
	if depth > maxNormalizeDepth {
		return stringify(v)
	}

	s, isString := v.(string)
	if isString && !looksLikeJSON(s) {
		// Idempotence base case: plain text passes through unchanged.
		return s
	}

	var parsed any
	if isString {
		cleaned := strings.TrimPrefix(s, toolResultPrefix)
		cleaned = unescape(cleaned)
		if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
			return s
		}
	} else {
		parsed = v
	}

	switch val := parsed.(type) {
	case []any:
		texts := make([]string, 0, len(val))
		for _, item := range val {
			switch it := item.(type) {
			case map[string]any:
				if text, ok := it["text"]; ok && !isEmpty(text) {
					texts = append(texts, normalize(text, depth+1))
				}
			case string:
				texts = append(texts, it)
			}
		}
		return strings.Join(texts, "\n")

	case map[string]any:
		if text, ok := val["text"]; ok && !isEmpty(text) {
			return normalize(text, depth+1)
		}
		return stringify(val)

	default:
		return stringify(parsed)
	}
}

// looksLikeJSON reports whether s starts like a JSON container.
func looksLikeJSON(s string) bool {
	return strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{")
}

// unescape reverses common escaping artifacts from double-encoded JSON:
// escaped quotes, escaped newlines, then unicode code-point sequences.
func unescape(s string) string {
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\n`, "\n")
	return unicodeEscape.ReplaceAllStringFunc(s, func(m string) string {
		code, err := strconv.ParseUint(m[2:], 16, 32)
		if err != nil {
			return m
		}
		return string(rune(code))
	})
}

// isEmpty reports whether v carries no content.
func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	case bool:
		return !val
	case float64:
		return val == 0
	case int:
		return val == 0
	}
	return false
}

// stringify renders an arbitrary value as text, preferring JSON.
func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	return fmt.Sprintf("%v", v)
}
