package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// fencedJSONRegex matches a markdown code fence with optional json language
// tag, capturing the body
var fencedJSONRegex = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)\\n?\\s*```")

// ExtractJSON pulls the first JSON object or array out of a model response.
// Models wrap JSON in markdown fences, lead with conversational filler, or
// trail with commentary; all of those shapes resolve to the bare payload.
// Returns an error when no valid JSON can be recovered.
func ExtractJSON(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", fmt.Errorf("empty response")
	}

	// Fenced block first: the fence body is the strongest signal of where
	// the payload lives when prose surrounds it
	if matches := fencedJSONRegex.FindStringSubmatch(trimmed); len(matches) > 1 {
		candidate := strings.TrimSpace(matches[1])
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}

	// Whole response is already bare JSON
	if json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}

	// Scan for the first balanced object or array outside the fence
	if candidate := scanBalancedJSON(trimmed); candidate != "" {
		return candidate, nil
	}

	return "", fmt.Errorf("no valid JSON found in response")
}

// scanBalancedJSON finds the first balanced top-level JSON object or array
// in s. The scan is string-aware so braces inside string values don't
// unbalance it. Returns "" when nothing balanced parses.
func scanBalancedJSON(s string) string {
	start := -1
	var open, closer byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' {
			start, open, closer = i, '{', '}'
			break
		}
		if s[i] == '[' {
			start, open, closer = i, '[', ']'
			break
		}
	}
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				candidate := s[start : i+1]
				if json.Valid([]byte(candidate)) {
					return candidate
				}
				return ""
			}
		}
	}
	return ""
}
