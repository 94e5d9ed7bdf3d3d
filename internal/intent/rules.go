package intent

import (
	"context"
	"regexp"
	"strings"

	"github.com/gitlabassist/pkg/models"
)

const (
	refToken  = `([\w./-]+)`
	fileToken = `([\w./-]+\.\w+|readme)`
	quoted    = `['"“‘](.+)['"”’]`
	anaphora  = `(?:it|that issue|this issue|the issue)`
)

type rule struct {
	pattern *regexp.Regexp
	build   func(m []string) (models.ActionName, map[string]any)
}

var (
	branchSuffix = regexp.MustCompile(`(?i)\b(?:in|on|from) (?:the )?` + refToken + ` branch\b`)
	dirSuffix    = regexp.MustCompile(`(?i)\b(?:in|under) (?:the )?(?:directory|folder|path|dir) ` + refToken)
)

// rules are tried in order; the first match wins.
var rules = []rule{
	{
		pattern: regexp.MustCompile(`(?i)^(?:please )?(?:list|show|get)(?: me)?(?: all| the| all the)? branches\b`),
		build: func(m []string) (models.ActionName, map[string]any) {
			return models.ActionListBranches, map[string]any{}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)^(?:please )?(?:list|show|get)(?: me)?(?: all| the| all the)? files\b(.*)$`),
		build: func(m []string) (models.ActionName, map[string]any) {
			fields := map[string]any{}
			if b := branchSuffix.FindStringSubmatch(m[1]); b != nil {
				fields[models.FieldBranch] = b[1]
			}
			if d := dirSuffix.FindStringSubmatch(m[1]); d != nil {
				fields[models.FieldPath] = d[1]
			}
			return models.ActionListFiles, fields
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)^(?:please )?create (?:a )?(?:new )?branch (?:called |named )?` + refToken + `(?: (?:from|off|based on) (?:the )?` + refToken + `(?: branch)?)?\s*$`),
		build: func(m []string) (models.ActionName, map[string]any) {
			fields := map[string]any{models.FieldNewBranch: m[1]}
			if m[2] != "" {
				fields[models.FieldSourceBranch] = m[2]
			}
			return models.ActionCreateBranch, fields
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)^(?:please )?(?:delete|remove) (?:the )?branch (?:called |named )?` + refToken + `\s*$`),
		build: func(m []string) (models.ActionName, map[string]any) {
			return models.ActionDeleteBranch, map[string]any{models.FieldBranchName: m[1]}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)^on issue #?(\d+),? (?:add|post|leave|write) (?:the |a )?comment:? ` + quoted + `\.?\s*$`),
		build: func(m []string) (models.ActionName, map[string]any) {
			return models.ActionCommentOnIssue, map[string]any{models.FieldIssueIID: m[1], models.FieldBody: m[2]}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)^(?:add |post |leave |write )?(?:the |a )?comment:? ` + quoted + ` (?:on|to) (?:issue #?(\d+)|` + anaphora + `)\.?\s*$`),
		build: func(m []string) (models.ActionName, map[string]any) {
			fields := map[string]any{models.FieldBody: m[1]}
			if m[2] != "" {
				fields[models.FieldIssueIID] = m[2]
			}
			return models.ActionCommentOnIssue, fields
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)^(?:please )?(?:list|show|get)(?: me)?(?: all| the| open| all open| all the)? issues\b`),
		build: func(m []string) (models.ActionName, map[string]any) {
			return models.ActionGetIssues, map[string]any{}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)^(?:please )?(?:show|get|read|view|open)(?: me)? (?:the )?(?:issue #?(\d+)|that issue|this issue)\s*$`),
		build: func(m []string) (models.ActionName, map[string]any) {
			fields := map[string]any{}
			if m[1] != "" {
				fields[models.FieldIssueNumber] = m[1]
			}
			return models.ActionGetIssue, fields
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)^(?:please )?(?:read|show|open|display|cat)(?: me)? (?:the )?(?:file )?` + fileToken + `(.*)$`),
		build: func(m []string) (models.ActionName, map[string]any) {
			fields := map[string]any{models.FieldFilePath: m[1]}
			if b := branchSuffix.FindStringSubmatch(m[2]); b != nil {
				fields[models.FieldBranch] = b[1]
			}
			return models.ActionReadFile, fields
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)^(?:please )?(?:read|display|cat) (?:it|that file|this file|the file)(.*)$`),
		build: func(m []string) (models.ActionName, map[string]any) {
			fields := map[string]any{}
			if b := branchSuffix.FindStringSubmatch(m[1]); b != nil {
				fields[models.FieldBranch] = b[1]
			}
			return models.ActionReadFile, fields
		},
	},
}

// RuleClassifier is a deterministic Classifier for common phrasings. It makes
// no model call and ignores history; anaphora leave the referenced field
// missing so the caller can resolve it.
type RuleClassifier struct {
	schema *Schema
}

// NewRuleClassifier builds a RuleClassifier.
func NewRuleClassifier(schema *Schema) *RuleClassifier {
	return &RuleClassifier{schema: schema}
}

// Classify implements Classifier.
func (r *RuleClassifier) Classify(_ context.Context, text string, _ []models.Turn) (*models.CanonicalAction, error) {
	trimmed := strings.TrimSpace(text)
	for _, rl := range rules {
		m := rl.pattern.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		action, fields := rl.build(m)
		return r.schema.Complete(action, fields)
	}
	return nil, &Failure{Kind: Unrecognized, Message: "no rule matches the instruction"}
}
