package conversation

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/gitlabassist/internal/intent"
	"github.com/gitlabassist/pkg/models"
)

// Summarizer compresses older turns into a short synopsis. previous is the
// synopsis produced by the last compaction, if any.
type Summarizer interface {
	Summarize(ctx context.Context, previous string, turns []models.Turn) (string, error)
}

const (
	maxSummaryChars = 1500
	maxLineChars    = 120
)

// ExtractiveSummarizer keeps the first line of every turn, clipped. Those
// lines name the files, issues and branches, so references survive
// compaction.
type ExtractiveSummarizer struct{}

// Summarize implements Summarizer.
func (ExtractiveSummarizer) Summarize(_ context.Context, previous string, turns []models.Turn) (string, error) {
	var b strings.Builder
	if previous != "" {
		b.WriteString(previous)
		b.WriteString("\n")
	}
	for _, t := range turns {
		line := strings.TrimSpace(scanText(t))
		if utf8.RuneCountInString(line) > maxLineChars {
			line = string([]rune(line)[:maxLineChars]) + "..."
		}
		if line == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", t.Role, line)
	}
	return clipSummary(strings.TrimSpace(b.String())), nil
}

// clipSummary keeps the most recent part of an overlong synopsis.
func clipSummary(s string) string {
	if len(s) <= maxSummaryChars {
		return s
	}
	cut := len(s) - maxSummaryChars
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	s = s[cut:]
	if i := strings.IndexByte(s, '\n'); i >= 0 && i < len(s)-1 {
		s = s[i+1:]
	}
	return s
}

const summaryPrompt = `You compress a conversation between a user and a GitLab assistant.
Write at most 8 short lines. Keep every file path, issue number and branch name
that was mentioned, and what was done with it. Do not add anything else.`

// LLMSummarizer asks a model for the synopsis and falls back to the
// extractive summary when the call fails.
type LLMSummarizer struct {
	model    intent.Completer
	fallback ExtractiveSummarizer
}

// NewLLMSummarizer creates a model-backed summarizer.
func NewLLMSummarizer(model intent.Completer) *LLMSummarizer {
	return &LLMSummarizer{model: model}
}

// Summarize implements Summarizer.
func (s *LLMSummarizer) Summarize(ctx context.Context, previous string, turns []models.Turn) (string, error) {
	var b strings.Builder
	if previous != "" {
		fmt.Fprintf(&b, "Earlier synopsis:\n%s\n\n", previous)
	}
	b.WriteString("Conversation:\n")
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Text)
	}

	out, err := s.model.Complete(ctx, summaryPrompt, nil, b.String())
	if err != nil || strings.TrimSpace(out) == "" {
		log.Warn().Err(err).Int("turns", len(turns)).Msg("model summary failed, using extractive summary")
		return s.fallback.Summarize(ctx, previous, turns)
	}
	return clipSummary(strings.TrimSpace(out)), nil
}
