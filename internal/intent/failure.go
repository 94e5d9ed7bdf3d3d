package intent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gitlabassist/pkg/models"
)

// FailureKind classifies why an instruction did not become a CanonicalAction.
type FailureKind string

const (
	// TranslationFailure means the model output was unusable.
	TranslationFailure FailureKind = "translation_failure"
	// ValidationFailure means an action was found but its fields are wrong.
	ValidationFailure FailureKind = "validation_failure"
	// Unrecognized means the action is outside the vocabulary or ambiguous.
	Unrecognized FailureKind = "unrecognized"
)

// Failure is returned by classifiers instead of a CanonicalAction. Nothing
// that fails here is ever dispatched.
type Failure struct {
	Kind    FailureKind
	Message string

	// Missing lists required fields that were absent.
	Missing []string
	// Candidates holds the tied actions when an action name was ambiguous.
	Candidates []models.ActionName
	// RawAction is the action string as the classifier saw it.
	RawAction string

	// Action and Fields carry the partially built action of a
	// ValidationFailure so callers can fill gaps and validate again.
	Action models.ActionName
	Fields map[string]any

	Err error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

// Clarification is the question shown to the user.
func (f *Failure) Clarification() string {
	switch f.Kind {
	case ValidationFailure:
		if len(f.Missing) > 0 {
			return fmt.Sprintf("To %s I still need: %s. Could you provide %s?",
				strings.ToLower(string(f.Action)), strings.Join(f.Missing, ", "), pronounFor(len(f.Missing)))
		}
		return fmt.Sprintf("Some details for %s look wrong: %s. Could you rephrase?", f.Action, f.Message)
	case Unrecognized:
		if len(f.Candidates) > 0 {
			names := make([]string, len(f.Candidates))
			for i, c := range f.Candidates {
				names[i] = fmt.Sprintf("%q", c)
			}
			return fmt.Sprintf("I'm not sure which action you meant by %q. Did you mean %s?", f.RawAction, strings.Join(names, " or "))
		}
		if f.RawAction != "" {
			return fmt.Sprintf("I can't do %q. I can: %s.", f.RawAction, vocabularyList())
		}
		return fmt.Sprintf("I didn't understand which action you want. I can: %s.", vocabularyList())
	default:
		return "I couldn't turn that into a GitLab action. Could you rephrase the request?"
	}
}

// AsFailure unwraps a classifier error.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

func pronounFor(n int) string {
	if n == 1 {
		return "it"
	}
	return "them"
}

func vocabularyList() string {
	names := make([]string, len(models.Actions))
	for i, a := range models.Actions {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}
