package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrNoJSON is returned when a model reply contains no JSON object.
var ErrNoJSON = errors.New("no JSON object found in model reply")

// ProcessorResult contains the result of LLM response processing
type ProcessorResult struct {
	RepairStats  JsonRepairStats `json:"repair_stats"`
	OriginalJSON string          `json:"-"`
	RepairedJSON string          `json:"-"`
}

// ProcessLLMResponse extracts the first JSON object from a model reply,
// repairs it if needed and decodes it into target.
func ProcessLLMResponse(raw string, target any) (ProcessorResult, error) {
	result := ProcessorResult{}

	jsonStr, ok := ExtractJSONObject(raw)
	if !ok {
		return result, ErrNoJSON
	}
	result.OriginalJSON = jsonStr

	repaired, stats, err := RepairJSON(jsonStr)
	result.RepairStats = stats
	result.RepairedJSON = repaired
	if err != nil {
		return result, fmt.Errorf("repair model JSON: %w", err)
	}

	if err := json.Unmarshal([]byte(repaired), target); err != nil {
		return result, fmt.Errorf("decode model JSON: %w", err)
	}
	return result, nil
}

// ExtractJSONObject returns the first balanced {...} span of raw. Braces
// inside string literals do not count, so prose, code fences and nested
// objects around or inside the payload are handled. When the reply is cut off
// before the object closes, the unterminated tail is returned for repair.
func ExtractJSONObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}
	if end, closed := scanObject(raw, start); closed {
		return raw[start : end+1], true
	}
	// Truncated: hand the rest to the repairer.
	return raw[start:], true
}

// scanObject walks from the '{' at start. It returns the index of the
// matching '}' and true, or -1 and false when input ends first.
func scanObject(s string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return -1, false
}

// truncateForLog truncates text for logging purposes
func truncateForLog(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

// Preview shortens a model reply for log lines.
func Preview(text string) string {
	return truncateForLog(strings.TrimSpace(text), 200)
}
