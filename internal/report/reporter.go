// Package report turns operation outcomes and clarification questions into
// the text shown to the user, and records that text in the conversation.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gitlabassist/pkg/models"
)

const (
	successMark       = "✅"
	failureMark       = "❌"
	clarificationMark = "❓"
)

// Recorder receives the produced assistant text.
type Recorder interface {
	Append(ctx context.Context, role models.Role, text string)
}

// Reporter formats results. The zero value is ready to use.
type Reporter struct {
	// MaxChars clips long outcome messages such as file contents; 0 keeps all.
	MaxChars int
}

// Format renders an outcome as one user-facing message.
func (r *Reporter) Format(o *models.OperationOutcome) string {
	if o == nil {
		return failureMark + " Nothing was executed."
	}
	msg := strings.TrimSpace(o.Message)
	if r.MaxChars > 0 && utf8.RuneCountInString(msg) > r.MaxChars {
		runes := []rune(msg)
		msg = string(runes[:r.MaxChars]) + fmt.Sprintf("\n... (%d more characters)", len(runes)-r.MaxChars)
	}
	if !o.Succeeded() {
		if hint := hintFor(o.Kind); hint != "" {
			msg += "\n" + hint
		}
		return failureMark + " " + msg
	}
	return successMark + " " + msg
}

func hintFor(kind models.ErrorKind) string {
	switch kind {
	case models.KindPermissionDenied:
		return "Check that the token has access and that the branch is not protected."
	case models.KindTransient:
		return "GitLab did not answer in time; send the request again to retry."
	}
	return ""
}

// Clarify renders a question asked back to the user.
func (r *Reporter) Clarify(question string) string {
	return clarificationMark + " " + strings.TrimSpace(question)
}

// Report formats o and appends it to rec as an assistant turn.
func (r *Reporter) Report(ctx context.Context, rec Recorder, o *models.OperationOutcome) string {
	text := r.Format(o)
	if rec != nil {
		rec.Append(ctx, models.RoleAssistant, text)
	}
	return text
}

// ReportClarification formats a question and appends it to rec.
func (r *Reporter) ReportClarification(ctx context.Context, rec Recorder, question string) string {
	text := r.Clarify(question)
	if rec != nil {
		rec.Append(ctx, models.RoleAssistant, text)
	}
	return text
}

// ActionJSON renders the canonical action for auditing.
func ActionJSON(a *models.CanonicalAction) string {
	if a == nil {
		return "{}"
	}
	raw, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(raw)
}
