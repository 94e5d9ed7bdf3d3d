package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
)

// JsonRepairStats tracks statistics about JSON repair operations
type JsonRepairStats struct {
	OriginalBytes    int           `json:"original_bytes"`
	RepairedBytes    int           `json:"repaired_bytes"`
	CommentsLost     int           `json:"comments_lost"`
	ErrorsFixed      int           `json:"errors_fixed"`
	RepairTime       time.Duration `json:"repair_time"`
	RepairStrategies []string      `json:"repair_strategies"`
	WasRepaired      bool          `json:"was_repaired"`
}

var (
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
	bareKeyPattern       = regexp.MustCompile(`([{,]\s*)([a-zA-Z_][a-zA-Z0-9_]*)(\s*:)`)
	singleQuotedPattern  = regexp.MustCompile(`'([^'"\\]*)'`)
	blockCommentPattern  = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// repairStrategy is one cheap textual fix. apply returns the new text and
// whether it changed anything.
type repairStrategy struct {
	name  string
	apply func(s string, stats *JsonRepairStats) (string, bool)
}

var repairStrategies = []repairStrategy{
	{"comments_removed", removeComments},
	{"trailing_commas", func(s string, _ *JsonRepairStats) (string, bool) {
		out := trailingCommaPattern.ReplaceAllString(s, "$1")
		return out, out != s
	}},
	{"key_quotes", func(s string, _ *JsonRepairStats) (string, bool) {
		out := bareKeyPattern.ReplaceAllString(s, `$1"$2"$3`)
		return out, out != s
	}},
	{"single_quotes", func(s string, _ *JsonRepairStats) (string, bool) {
		// Model output such as {'action': 'List Files'}. Only applied when the
		// text has no double quotes at all, so apostrophes inside values survive.
		if strings.Contains(s, `"`) {
			return s, false
		}
		out := singleQuotedPattern.ReplaceAllString(s, `"$1"`)
		return out, out != s
	}},
	{"completion", func(s string, _ *JsonRepairStats) (string, bool) {
		out := completeJSON(s)
		return out, out != s
	}},
}

// RepairJSON returns raw unchanged when it is valid JSON. Otherwise it applies
// the cheap strategies in order and falls back to the jsonrepair library.
func RepairJSON(raw string) (string, JsonRepairStats, error) {
	startTime := time.Now()
	stats := JsonRepairStats{OriginalBytes: len(raw)}

	finish := func(out string) JsonRepairStats {
		stats.RepairedBytes = len(out)
		stats.RepairTime = time.Since(startTime)
		return stats
	}

	if json.Valid([]byte(raw)) {
		return raw, finish(raw), nil
	}

	stats.WasRepaired = true
	repaired := raw
	for _, strategy := range repairStrategies {
		out, changed := strategy.apply(repaired, &stats)
		if !changed {
			continue
		}
		repaired = out
		stats.RepairStrategies = append(stats.RepairStrategies, strategy.name)
		stats.ErrorsFixed++
		if json.Valid([]byte(repaired)) {
			return repaired, finish(repaired), nil
		}
	}

	libraryRepaired, err := jsonrepair.JSONRepair(repaired)
	if err == nil && json.Valid([]byte(libraryRepaired)) {
		stats.RepairStrategies = append(stats.RepairStrategies, "jsonrepair_library")
		stats.ErrorsFixed++
		return libraryRepaired, finish(libraryRepaired), nil
	}

	return repaired, finish(repaired), fmt.Errorf("JSON repair failed after %d strategies", len(stats.RepairStrategies))
}

// completeJSON closes unterminated strings, objects and arrays in LIFO order.
func completeJSON(s string) string {
	s = strings.TrimSpace(s)
	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
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
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if inString {
		s += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		s += string(stack[i])
	}
	return s
}

// removeComments strips // line comments and /* */ blocks outside strings.
func removeComments(s string, stats *JsonRepairStats) (string, bool) {
	if !strings.Contains(s, "//") && !strings.Contains(s, "/*") {
		return s, false
	}
	removed := 0
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if idx := lineCommentIndex(line); idx >= 0 {
			lines[i] = line[:idx]
			removed++
		}
	}
	out := strings.Join(lines, "\n")
	blocks := blockCommentPattern.FindAllString(out, -1)
	removed += len(blocks)
	out = blockCommentPattern.ReplaceAllString(out, "")
	stats.CommentsLost += removed
	return out, removed > 0
}

// lineCommentIndex finds "//" outside a string literal, so URLs survive.
func lineCommentIndex(line string) int {
	inString, escaped := false, false
	for i := 0; i < len(line)-1; i++ {
		c := line[i]
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
		if c == '"' {
			inString = true
			continue
		}
		if c == '/' && line[i+1] == '/' {
			return i
		}
	}
	return -1
}
