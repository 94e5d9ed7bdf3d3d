// Package conversation holds per-session conversation state: the turn log,
// the prompt history, reference resolution and summarization of old turns.
package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gitlabassist/pkg/models"
)

const (
	DefaultBudget     = 2000
	DefaultKeepRecent = 6
)

// Snapshot is the persisted form of a Memory.
type Snapshot struct {
	Summary string        `json:"summary"`
	Turns   []models.Turn `json:"turns"`
	Prompts []string      `json:"prompts"`
}

// Memory is the conversation of one session. It is safe for concurrent use
// but is never shared between sessions.
type Memory struct {
	mu         sync.Mutex
	summary    string
	turns      []models.Turn
	prompts    []string
	budget     int
	keepRecent int
	counter    TokenCounter
	summarizer Summarizer
	now        func() time.Time
}

// MemoryOption configures a Memory.
type MemoryOption func(*Memory)

// WithBudget sets the approximate token budget before compaction.
func WithBudget(tokens int) MemoryOption {
	return func(m *Memory) { m.budget = tokens }
}

// WithKeepRecent sets how many turns survive compaction verbatim.
func WithKeepRecent(n int) MemoryOption {
	return func(m *Memory) { m.keepRecent = n }
}

// WithSummarizer replaces the extractive summarizer.
func WithSummarizer(s Summarizer) MemoryOption {
	return func(m *Memory) { m.summarizer = s }
}

// WithTokenCounter replaces the word based token estimate.
func WithTokenCounter(c TokenCounter) MemoryOption {
	return func(m *Memory) { m.counter = c }
}

// NewMemory creates an empty conversation.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		budget:     DefaultBudget,
		keepRecent: DefaultKeepRecent,
		counter:    SimpleTokenCounter{},
		summarizer: ExtractiveSummarizer{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.keepRecent < 1 {
		m.keepRecent = 1
	}
	return m
}

// Append adds a turn and compacts older turns when over budget.
func (m *Memory) Append(ctx context.Context, role models.Role, text string) {
	m.mu.Lock()
	m.turns = append(m.turns, models.Turn{Role: role, Text: text, CreatedAt: m.now()})
	over := m.budget > 0 && countTurns(m.counter, m.summary, m.turns) > m.budget
	m.mu.Unlock()

	if over {
		if err := m.Compact(ctx); err != nil {
			log.Warn().Err(err).Msg("conversation compaction failed")
		}
	}
}

// Compact folds all but the most recent turns into the summary.
func (m *Memory) Compact(ctx context.Context) error {
	m.mu.Lock()
	if len(m.turns) <= m.keepRecent {
		m.mu.Unlock()
		return nil
	}
	cut := len(m.turns) - m.keepRecent
	old := append([]models.Turn(nil), m.turns[:cut]...)
	previous := m.summary
	m.mu.Unlock()

	// the summarizer may call a model; run it without holding the lock
	summary, err := m.summarizer.Summarize(ctx, previous, old)
	if err != nil {
		return fmt.Errorf("failed to summarize %d turns: %w", len(old), err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// turns cleared or replaced meanwhile
	if len(m.turns) < cut || m.summary != previous {
		return nil
	}
	m.summary = summary
	m.turns = append([]models.Turn(nil), m.turns[cut:]...)
	log.Debug().Int("compacted", cut).Int("kept", len(m.turns)).Msg("conversation compacted")
	return nil
}

// Turns returns a copy of the verbatim turns, oldest first.
func (m *Memory) Turns() []models.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Turn(nil), m.turns...)
}

// Summary returns the synopsis of compacted turns.
func (m *Memory) Summary() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summary
}

// Context returns the history to hand to a classifier: the synopsis as a
// system turn followed by the verbatim turns.
func (m *Memory) Context() []models.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contextLocked()
}

func (m *Memory) contextLocked() []models.Turn {
	out := make([]models.Turn, 0, len(m.turns)+1)
	if m.summary != "" {
		out = append(out, models.Turn{Role: models.RoleSystem, Text: "Summary of earlier conversation:\n" + m.summary})
	}
	return append(out, m.turns...)
}

// RecordPrompt adds a user instruction to the prompt history.
func (m *Memory) RecordPrompt(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, text)
}

// History returns the user instructions of the session.
func (m *Memory) History() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Clear forgets everything.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summary = ""
	m.turns = nil
	m.prompts = nil
}

// ResolveReference finds the literal an anaphoric instruction points at.
// The kind is inferred from the wording ("that file", "the issue").
func (m *Memory) ResolveReference(text string) (Reference, error) {
	return m.Resolve(KindsFor(text)...)
}

// Resolve finds the most recent mention of one of kinds, tried in order
// within each turn. The synopsis counts as the oldest turn.
func (m *Memory) Resolve(kinds ...RefKind) (Reference, error) {
	m.mu.Lock()
	turns := m.contextLocked()
	m.mu.Unlock()
	return resolve(turns, kinds)
}

// Snapshot returns a copy of the state for persistence.
func (m *Memory) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Summary: m.summary,
		Turns:   append([]models.Turn(nil), m.turns...),
		Prompts: append([]string(nil), m.prompts...),
	}
}

// Restore replaces the state with a snapshot.
func (m *Memory) Restore(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summary = s.Summary
	m.turns = append([]models.Turn(nil), s.Turns...)
	m.prompts = append([]string(nil), s.Prompts...)
}
