package conversation

import (
	"regexp"
	"strings"

	"github.com/gitlabassist/pkg/models"
)

// TokenCounter estimates how many model tokens a text costs.
type TokenCounter interface {
	CountTokens(content string) int
}

// SimpleTokenCounter estimates tokens from words and punctuation. It is not
// as accurate as a model tokenizer but is stable across providers.
type SimpleTokenCounter struct{}

var specialChars = regexp.MustCompile(`[.,!?;:(){}\[\]<>+\-*/=@#$%^&|~]`)

// CountTokens implements TokenCounter.
func (SimpleTokenCounter) CountTokens(content string) int {
	return len(strings.Fields(content)) + len(specialChars.FindAllStringIndex(content, -1))
}

func countTurns(counter TokenCounter, summary string, turns []models.Turn) int {
	total := counter.CountTokens(summary)
	for _, t := range turns {
		total += counter.CountTokens(t.Text)
	}
	return total
}
