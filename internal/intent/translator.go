// Package intent turns free-form instructions into validated canonical actions.
package intent

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/gitlabassist/internal/llm"
	"github.com/gitlabassist/internal/logging"
	"github.com/gitlabassist/pkg/models"
)

// Classifier maps an instruction, with the session's recent turns, to a
// CanonicalAction. Errors are *Failure values.
type Classifier interface {
	Classify(ctx context.Context, text string, history []models.Turn) (*models.CanonicalAction, error)
}

// Completer is a single text-in, text-out model call.
type Completer interface {
	Complete(ctx context.Context, system string, history []models.Turn, user string) (string, error)
}

// DefaultHistoryTurns bounds how many recent turns are sent to the model.
const DefaultHistoryTurns = 8

// Translator is the model-backed Classifier. It calls the model exactly once
// per instruction and never retries.
type Translator struct {
	model        Completer
	schema       *Schema
	modelName    string
	systemPrompt string
	historyTurns int
	transcript   *logging.TranscriptLogger
}

// TranslatorOption configures a Translator.
type TranslatorOption func(*Translator)

// WithTranscript records prompts and replies to a session transcript.
func WithTranscript(tr *logging.TranscriptLogger) TranslatorOption {
	return func(t *Translator) { t.transcript = tr }
}

// WithHistoryTurns overrides DefaultHistoryTurns. Zero sends no history.
func WithHistoryTurns(n int) TranslatorOption {
	return func(t *Translator) {
		if n >= 0 {
			t.historyTurns = n
		}
	}
}

// WithModelName labels transcript entries.
func WithModelName(name string) TranslatorOption {
	return func(t *Translator) { t.modelName = name }
}

// NewTranslator builds a Translator over model.
func NewTranslator(model Completer, schema *Schema, opts ...TranslatorOption) *Translator {
	t := &Translator{
		model:        model,
		schema:       schema,
		systemPrompt: BuildSystemPrompt(),
		historyTurns: DefaultHistoryTurns,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Classify implements Classifier.
func (t *Translator) Classify(ctx context.Context, text string, history []models.Turn) (*models.CanonicalAction, error) {
	recent := history
	if len(recent) > t.historyTurns {
		recent = recent[len(recent)-t.historyTurns:]
	}

	t.transcript.LogRequest(t.modelName, text)
	reply, err := t.model.Complete(ctx, t.systemPrompt, recent, text)
	if err != nil {
		t.transcript.LogError("model call", err)
		log.Warn().Err(err).Msg("translation model call failed")
		return nil, &Failure{Kind: TranslationFailure, Message: "the language model did not answer", Err: err}
	}
	t.transcript.LogResponse(reply)

	var raw map[string]any
	result, err := llm.ProcessLLMResponse(reply, &raw)
	if err != nil {
		log.Debug().Err(err).Str("reply", llm.Preview(reply)).Msg("model reply has no usable JSON")
		message := "the model reply is not valid JSON"
		if errors.Is(err, llm.ErrNoJSON) {
			message = "the model reply contains no JSON object"
		}
		return nil, &Failure{Kind: TranslationFailure, Message: message, Err: err}
	}
	if result.RepairStats.WasRepaired {
		log.Debug().
			Strs("strategies", result.RepairStats.RepairStrategies).
			Int("errors_fixed", result.RepairStats.ErrorsFixed).
			Msg("repaired model JSON")
	}

	action, err := t.schema.Canonicalize(raw)
	if err != nil {
		if f, ok := AsFailure(err); ok {
			log.Debug().Str("kind", string(f.Kind)).Str("message", f.Message).Msg("translation rejected")
		}
		return nil, err
	}
	log.Debug().Str("action", string(action.Action)).Msg("instruction translated")
	return action, nil
}
