// parser.go - Recovers the JSON object from a model reply

package ai

import (
	"encoding/json"
	"strings"
)

// ParseResponse takes the span from the first '{' to the last '}' of text and
// decodes it. Markdown fences and prose around the object are ignored. It
// returns nil when there is no such span, the span is not valid JSON, or the
// value is not an object.
func ParseResponse(text string) map[string]any {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < 0 || end < start {
		return nil
	}
	candidate := text[start : end+1]

	obj, ok := decodeObject(candidate)
	if !ok {
		return nil
	}
	return obj
}

func decodeObject(s string) (map[string]any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}
