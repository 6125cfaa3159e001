package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codegraphio/codegraph/model"
)

// maxRepairAttempts bounds the repair passes applied to unparseable responses
const maxRepairAttempts = 2

// NormalizationError signals that no valid enrichment object could be
// recovered from a provider response. Callers treat it as a failed attempt.
type NormalizationError struct {
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalization failed: %s", e.Reason)
}

// Normalize recovers a valid EnrichmentResult from raw provider text.
// Models wrap JSON in prose, code fences, trailing commas and truncated
// objects; the normalizer extracts the first JSON object by brace counting,
// repairs it within bounds and validates the required keys. A result that
// needed repairs or defaults is tagged degraded.
func Normalize(content string) (*model.EnrichmentResult, error) {
	candidate, ok := extractJSON(content)
	if !ok {
		return nil, &NormalizationError{Reason: "no JSON object found in response"}
	}

	degraded := false
	raw, err := parseObject(candidate)
	if err != nil {
		degraded = true
		for attempt := 0; attempt < maxRepairAttempts && err != nil; attempt++ {
			candidate = repairJSON(candidate)
			raw, err = parseObject(candidate)
		}
		if err != nil {
			return nil, &NormalizationError{Reason: fmt.Sprintf("unparseable after repairs: %v", err)}
		}
	}

	result := &model.EnrichmentResult{Quality: model.QualityOK}

	summary, ok := raw["summary"].(string)
	if !ok {
		degraded = true
	}
	result.Summary = summary

	result.Tags, ok = stringSlice(raw["tags"])
	if !ok {
		degraded = true
	}

	result.Dependencies, ok = stringSlice(raw["dependencies"])
	if !ok {
		degraded = true
	}

	if degraded {
		result.Quality = model.QualityDegraded
	}

	return result, nil
}

func parseObject(candidate string) (map[string]any, error) {
	var raw map[string]any
	err := json.Unmarshal([]byte(candidate), &raw)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// extractJSON locates the first top-level JSON object in the text by brace
// counting. Braces inside quoted strings are ignored, so prose and code-fence
// markers around the object do not confuse the scan. If the object is
// truncated, the span from the first brace to the end is returned for repair.
func extractJSON(content string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(content); i++ {
		c := content[i]
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
			if start >= 0 {
				inString = true
			}
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start >= 0 {
				depth--
				if depth == 0 {
					return content[start : i+1], true
				}
			}
		}
	}

	if start >= 0 {
		// Unbalanced object, hand it to the repair passes
		return content[start:], true
	}
	return "", false
}

// repairJSON applies one pass of the two repair heuristics: trailing commas
// before closing brackets are dropped and unbalanced braces and brackets are
// closed at the end. Quoted strings are respected throughout.
func repairJSON(candidate string) string {
	var b strings.Builder
	b.Grow(len(candidate) + 4)

	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(candidate); i++ {
		c := candidate[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			b.WriteByte(c)
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case ',':
			// Drop the comma if the next non-space character closes a scope
			if next := nextNonSpace(candidate, i+1); next == '}' || next == ']' {
				continue
			}
		}
		b.WriteByte(c)
	}

	// Close an unterminated string before closing scopes
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}

	return b.String()
}

func nextNonSpace(s string, from int) byte {
	for i := from; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return s[i]
		}
	}
	return 0
}

func stringSlice(value any) ([]string, bool) {
	if value == nil {
		return []string{}, false
	}
	items, ok := value.([]any)
	if !ok {
		return []string{}, false
	}

	result := make([]string, 0, len(items))
	valid := true
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			valid = false
			continue
		}
		result = append(result, s)
	}
	return result, valid
}
