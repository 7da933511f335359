package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON returns the first balanced JSON object in content, skipping
// markdown fences and prose around it. It returns "" when none is found.
func ExtractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}
	end := findJSONEnd(content, start)
	if end <= start {
		return ""
	}
	return content[start:end]
}

// findJSONEnd returns the index after the brace closing the object at start
func findJSONEnd(content string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(content); i++ {
		c := content[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// Decode unmarshals model output into v, falling back to the first embedded
// JSON object when the whole reply is not valid JSON
func Decode(content string, v interface{}) error {
	err := json.Unmarshal([]byte(strings.TrimSpace(content)), v)
	if err == nil {
		return nil
	}
	if obj := ExtractJSON(content); obj != "" {
		if err2 := json.Unmarshal([]byte(obj), v); err2 == nil {
			return nil
		}
	}
	return fmt.Errorf("failed to parse model response: %w", err)
}
