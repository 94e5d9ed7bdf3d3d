package conversation

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gitlabassist/pkg/models"
)

// RefKind is the type of thing an anaphoric reference points at.
type RefKind string

const (
	RefFile   RefKind = "file"
	RefIssue  RefKind = "issue"
	RefBranch RefKind = "branch"
)

// Reference is a literal recovered from earlier turns.
type Reference struct {
	Kind  RefKind
	Value string
}

// ErrNoReference is returned when no earlier turn mentions a candidate.
var ErrNoReference = errors.New("no earlier mention to resolve the reference")

// AmbiguousReferenceError lists the distinct candidates found in the most
// recent turn that mentions the wanted kind.
type AmbiguousReferenceError struct {
	Kind       RefKind
	Candidates []string
}

func (e *AmbiguousReferenceError) Error() string {
	return fmt.Sprintf("ambiguous %s reference: %s", e.Kind, strings.Join(e.Candidates, ", "))
}

// Clarification is the question asked back to the user.
func (e *AmbiguousReferenceError) Clarification() string {
	return fmt.Sprintf("Which %s do you mean: %s?", e.Kind, strings.Join(e.Candidates, " or "))
}

var (
	filePattern   = regexp.MustCompile(`(?:^|[\s'"` + "`" + `(])((?:[\w-]+/)*[\w-][\w.-]*\.[A-Za-z][A-Za-z0-9]{0,7})\b`)
	issuePattern  = regexp.MustCompile(`(?i)\bissues?\s*#?(\d+)\b|#(\d+)\b`)
	branchBefore  = regexp.MustCompile(`(?i)\bbranch\s+['"` + "`" + `]?([A-Za-z0-9][\w./-]*)`)
	branchAfter   = regexp.MustCompile(`(?i)\b([A-Za-z0-9][\w./-]*)['"` + "`" + `]?\s+branch\b`)
	anaphora      = regexp.MustCompile(`(?i)\b(it|that|this|the same|there)\b`)
	fileWords     = regexp.MustCompile(`(?i)\b(that|this|the same|the)\s+file\b`)
	issueWords    = regexp.MustCompile(`(?i)\b(that|this|the same|the)\s+issue\b`)
	branchWords   = regexp.MustCompile(`(?i)\b(that|this|the same|the)\s+branch\b`)
	branchIgnored = map[string]bool{
		"a": true, "an": true, "the": true, "new": true, "this": true, "that": true, "which": true,
		"each": true, "every": true, "default": true, "protected": true, "it": true, "same": true,
		"feature": true, "source": true, "target": true, "from": true, "to": true, "on": true, "of": true,
		"create": true, "delete": true, "remove": true, "add": true, "make": true, "list": true, "show": true,
	}
)

// HasAnaphora reports whether text refers back to something ("it", "that").
func HasAnaphora(text string) bool {
	return anaphora.MatchString(text)
}

// KindsFor infers the kinds of reference text asks for, in preference order.
// A bare "it" tries files, then issues, then branches.
func KindsFor(text string) []RefKind {
	switch {
	case fileWords.MatchString(text):
		return []RefKind{RefFile}
	case issueWords.MatchString(text):
		return []RefKind{RefIssue}
	case branchWords.MatchString(text):
		return []RefKind{RefBranch}
	}
	return []RefKind{RefFile, RefIssue, RefBranch}
}

// KindForField maps an action field to the reference kind that can fill it.
func KindForField(field string) (RefKind, bool) {
	switch field {
	case models.FieldFilePath:
		return RefFile, true
	case models.FieldIssueIID, models.FieldIssueNumber:
		return RefIssue, true
	case models.FieldBranch, models.FieldBranchName, models.FieldSourceBranch, models.FieldTargetBranch:
		return RefBranch, true
	}
	return "", false
}

type mention struct {
	pos   int
	value string
}

// mentions returns the candidates of kind in text, in order of appearance.
func mentions(kind RefKind, text string) []mention {
	var out []mention
	switch kind {
	case RefFile:
		for _, m := range filePattern.FindAllStringSubmatchIndex(text, -1) {
			out = append(out, mention{m[2], text[m[2]:m[3]]})
		}
	case RefIssue:
		for _, m := range issuePattern.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[2], m[3]
			if start < 0 {
				start, end = m[4], m[5]
			}
			n, err := strconv.Atoi(text[start:end])
			if err != nil || n <= 0 {
				continue
			}
			out = append(out, mention{start, strconv.Itoa(n)})
		}
	case RefBranch:
		for _, re := range []*regexp.Regexp{branchBefore, branchAfter} {
			for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
				name := strings.TrimRight(text[m[2]:m[3]], ".,;:!?")
				if name == "" || branchIgnored[strings.ToLower(name)] {
					continue
				}
				out = append(out, mention{m[2], name})
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].pos < out[j].pos })
	}
	return out
}

// scanText limits assistant turns to their first line so file contents and
// listings echoed back do not count as mentions.
func scanText(t models.Turn) string {
	if t.Role == models.RoleAssistant {
		if i := strings.IndexByte(t.Text, '\n'); i >= 0 {
			return t.Text[:i]
		}
	}
	return t.Text
}

func distinct(ms []mention) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range ms {
		if !seen[m.value] {
			seen[m.value] = true
			out = append(out, m.value)
		}
	}
	return out
}

// resolve scans turns newest first. In the first turn that mentions any of
// the kinds (tried in order), a single distinct value wins; several
// distinct values are ambiguous.
func resolve(turns []models.Turn, kinds []RefKind) (Reference, error) {
	for i := len(turns) - 1; i >= 0; i-- {
		text := scanText(turns[i])
		for _, kind := range kinds {
			values := distinct(mentions(kind, text))
			switch len(values) {
			case 0:
				continue
			case 1:
				return Reference{Kind: kind, Value: values[0]}, nil
			default:
				return Reference{}, &AmbiguousReferenceError{Kind: kind, Candidates: values}
			}
		}
	}
	return Reference{}, ErrNoReference
}
