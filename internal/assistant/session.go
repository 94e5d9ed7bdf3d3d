// Package assistant runs one user turn end to end: classification,
// reference filling, dispatch and reporting, over a per-session memory.
package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gitlabassist/internal/conversation"
	"github.com/gitlabassist/internal/dispatch"
	"github.com/gitlabassist/internal/intent"
	"github.com/gitlabassist/internal/logging"
	"github.com/gitlabassist/internal/report"
	"github.com/gitlabassist/pkg/models"
)

// ConfirmFunc approves a write before it is dispatched. Fast-path actions
// are never passed to it.
type ConfirmFunc func(ctx context.Context, action *models.CanonicalAction) (bool, error)

// TurnResult is what one user turn produced.
type TurnResult struct {
	Action        *models.CanonicalAction  `json:"action,omitempty"`
	Outcome       *models.OperationOutcome `json:"outcome,omitempty"`
	Text          string                   `json:"text"`
	Clarification bool                     `json:"clarification,omitempty"`
}

// Succeeded reports whether an action ran and succeeded.
func (r *TurnResult) Succeeded() bool {
	return r != nil && r.Outcome.Succeeded()
}

// Deps are the collaborators of a Session.
type Deps struct {
	Classifier intent.Classifier
	Schema     *intent.Schema
	Dispatcher *dispatch.Dispatcher
	Memory     *conversation.Memory
	Reporter   *report.Reporter
}

// Session owns the conversation of one user. Turns are serialized.
type Session struct {
	id         string
	classifier intent.Classifier
	schema     *intent.Schema
	dispatcher *dispatch.Dispatcher
	memory     *conversation.Memory
	reporter   *report.Reporter

	confirm    ConfirmFunc
	store      conversation.Store
	transcript *logging.TranscriptLogger
	logger     zerolog.Logger

	mu         sync.Mutex
	lastAction *models.CanonicalAction
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithConfirm installs a confirmation hook for writes.
func WithConfirm(fn ConfirmFunc) SessionOption {
	return func(s *Session) { s.confirm = fn }
}

// WithStore persists the conversation after every turn.
func WithStore(store conversation.Store) SessionOption {
	return func(s *Session) { s.store = store }
}

// WithTranscript records turns in a transcript file.
func WithTranscript(tr *logging.TranscriptLogger) SessionOption {
	return func(s *Session) { s.transcript = tr }
}

// NewSession creates a session. Memory and Reporter default to fresh values.
func NewSession(id string, deps Deps, opts ...SessionOption) (*Session, error) {
	if deps.Classifier == nil || deps.Schema == nil || deps.Dispatcher == nil {
		return nil, errors.New("session needs a classifier, a schema and a dispatcher")
	}
	if deps.Memory == nil {
		deps.Memory = conversation.NewMemory()
	}
	if deps.Reporter == nil {
		deps.Reporter = &report.Reporter{}
	}
	s := &Session{
		id:         id,
		classifier: deps.Classifier,
		schema:     deps.Schema,
		dispatcher: deps.Dispatcher,
		memory:     deps.Memory,
		reporter:   deps.Reporter,
		logger:     log.With().Str("session", id).Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Memory exposes the conversation state.
func (s *Session) Memory() *conversation.Memory { return s.memory }

// Load restores the conversation from the store, if there is one.
func (s *Session) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	snap, ok, err := s.store.Load(ctx, s.id)
	if err != nil {
		return err
	}
	if ok {
		s.memory.Restore(snap)
	}
	return nil
}

// HandleTurn processes one instruction. Failures are reported in the
// result text; the error is reserved for a cancelled context.
func (s *Session) HandleTurn(ctx context.Context, text string) (*TurnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Again only repeats an action of this turn.
	s.lastAction = nil

	text = strings.TrimSpace(text)
	if text == "" {
		return &TurnResult{Text: s.reporter.Clarify("What would you like me to do?"), Clarification: true}, nil
	}

	s.dispatcher.BeginTurn()
	s.memory.RecordPrompt(text)
	history := s.memory.Context()

	action, clarification := s.classify(ctx, text, history)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.memory.Append(ctx, models.RoleUser, text)

	if action == nil {
		out := s.reporter.ReportClarification(ctx, s.memory, clarification)
		s.transcript.LogOutcome("{}", out)
		s.persist(ctx)
		return &TurnResult{Text: out, Clarification: true}, nil
	}

	result := s.execute(ctx, action, false)
	return result, nil
}

// Again dispatches the last action of the current turn once more. Unless
// confirmed, a write that already succeeded reports AlreadyCompleted.
func (s *Session) Again(ctx context.Context, confirmed bool) (*TurnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastAction == nil {
		return &TurnResult{Text: s.reporter.Clarify("There is no earlier action to repeat."), Clarification: true}, nil
	}
	return s.execute(ctx, s.lastAction.Clone(), confirmed), nil
}

func (s *Session) execute(ctx context.Context, action *models.CanonicalAction, confirmed bool) *TurnResult {
	s.lastAction = action
	actionJSON := report.ActionJSON(action)

	var outcome *models.OperationOutcome
	if ok, err := s.approve(ctx, action); err != nil || !ok {
		msg := "Cancelled, nothing was changed."
		if err != nil {
			msg = "Could not get confirmation: " + err.Error()
		}
		outcome = &models.OperationOutcome{Status: models.StatusFailure, Message: msg}
	} else {
		outcome = s.dispatcher.Dispatch(ctx, action, confirmed)
	}

	out := s.reporter.Report(ctx, s.memory, outcome)
	s.transcript.LogOutcome(actionJSON, out)
	s.logger.Info().
		Str("action", string(action.Action)).
		Str("status", string(outcome.Status)).
		Str("kind", string(outcome.Kind)).
		Msg("turn handled")
	s.persist(ctx)
	return &TurnResult{Action: action, Outcome: outcome, Text: out}
}

func (s *Session) approve(ctx context.Context, action *models.CanonicalAction) (bool, error) {
	if s.confirm == nil || !action.Action.IsWrite() || dispatch.IsFastPath(action.Action) {
		return true, nil
	}
	return s.confirm(ctx, action)
}

// classify returns either an action or the clarification question.
func (s *Session) classify(ctx context.Context, text string, history []models.Turn) (*models.CanonicalAction, string) {
	action, err := s.classifier.Classify(ctx, text, history)
	if err == nil {
		return action, ""
	}

	f, ok := intent.AsFailure(err)
	if !ok {
		s.logger.Warn().Err(err).Msg("classifier failed")
		return nil, "I couldn't process that request. Could you rephrase it?"
	}
	if f.Kind != intent.ValidationFailure || len(f.Missing) == 0 || !conversation.HasAnaphora(text) {
		return nil, f.Clarification()
	}

	filled, question := s.fillReferences(text, f)
	if filled == nil {
		return nil, question
	}
	action, err = s.schema.Complete(f.Action, filled)
	if err != nil {
		if f2, ok := intent.AsFailure(err); ok {
			return nil, f2.Clarification()
		}
		return nil, f.Clarification()
	}
	s.logger.Debug().Str("action", string(action.Action)).Msg("filled references from conversation")
	return action, ""
}

// fillReferences resolves missing fields of a partial action from earlier
// turns. Only fields with a reference kind are filled; the rest stay
// missing and are reported by the following validation.
func (s *Session) fillReferences(text string, f *intent.Failure) (map[string]any, string) {
	fields := make(map[string]any, len(f.Fields)+len(f.Missing))
	for k, v := range f.Fields {
		fields[k] = v
	}
	resolved := 0
	for _, name := range f.Missing {
		kind, ok := conversation.KindForField(name)
		if !ok {
			continue
		}
		ref, err := s.memory.Resolve(kind)
		var amb *conversation.AmbiguousReferenceError
		switch {
		case errors.As(err, &amb):
			return nil, amb.Clarification()
		case err != nil:
			continue
		}
		fields[name] = ref.Value
		resolved++
	}
	if resolved == 0 {
		return nil, f.Clarification()
	}
	return fields, ""
}

func (s *Session) persist(ctx context.Context) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, s.id, s.memory.Snapshot()); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist conversation")
	}
}

// History returns the user instructions of the session.
func (s *Session) History() []string {
	return s.memory.History()
}

// Clear forgets the conversation, including any persisted copy.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory.Clear()
	s.lastAction = nil
	s.dispatcher.BeginTurn()
	if s.store != nil {
		return s.store.Delete(ctx, s.id)
	}
	return nil
}

// Close releases the transcript file.
func (s *Session) Close() error {
	return s.transcript.Close()
}
