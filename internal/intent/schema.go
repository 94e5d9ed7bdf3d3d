package intent

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/gitlabassist/pkg/models"
)

type fieldKind int

const (
	kindName fieldKind = iota // trimmed, non-empty string
	kindText                  // free text, kept verbatim, may be empty
	kindInt                   // positive integer; "15" and "#15" are accepted
	kindRef                   // numeric id or path
)

var fieldKinds = map[string]fieldKind{
	models.FieldFilePath:      kindName,
	models.FieldBranch:        kindName,
	models.FieldContent:       kindText,
	models.FieldNewContent:    kindText,
	models.FieldOldContent:    kindText,
	models.FieldCommitMessage: kindName,
	models.FieldTitle:         kindName,
	models.FieldDescription:   kindText,
	models.FieldProjectID:     kindRef,
	models.FieldIssueNumber:   kindInt,
	models.FieldIssueIID:      kindInt,
	models.FieldBody:          kindName,
	models.FieldSourceBranch:  kindName,
	models.FieldTargetBranch:  kindName,
	models.FieldNewBranch:     kindName,
	models.FieldBranchName:    kindName,
	models.FieldPath:          kindName,
}

type actionSpec struct {
	required []string
	optional []string
	// aliases maps alternative key names onto field names.
	aliases map[string]string
}

var fileAliases = map[string]string{
	"file":      models.FieldFilePath,
	"filename":  models.FieldFilePath,
	"file_name": models.FieldFilePath,
	"filepath":  models.FieldFilePath,
	"path":      models.FieldFilePath,
	"ref":       models.FieldBranch,
	"message":   models.FieldCommitMessage,
	"commit":    models.FieldCommitMessage,
}

func withAliases(base map[string]string, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

var actionSpecs = map[models.ActionName]actionSpec{
	models.ActionReadFile: {
		required: []string{models.FieldFilePath},
		optional: []string{models.FieldBranch},
		aliases:  fileAliases,
	},
	models.ActionCreateFile: {
		required: []string{models.FieldFilePath, models.FieldContent, models.FieldCommitMessage},
		optional: []string{models.FieldBranch},
		aliases:  withAliases(fileAliases, map[string]string{models.FieldNewContent: models.FieldContent}),
	},
	models.ActionUpdateFile: {
		required: []string{models.FieldFilePath, models.FieldNewContent, models.FieldCommitMessage},
		optional: []string{models.FieldBranch, models.FieldOldContent},
		aliases: withAliases(fileAliases, map[string]string{
			models.FieldContent: models.FieldNewContent,
			"old":               models.FieldOldContent,
			"find":              models.FieldOldContent,
			"replace":           models.FieldNewContent,
		}),
	},
	models.ActionDeleteFile: {
		required: []string{models.FieldFilePath, models.FieldCommitMessage},
		optional: []string{models.FieldBranch},
		aliases:  fileAliases,
	},
	models.ActionCreateIssue: {
		required: []string{models.FieldTitle, models.FieldDescription},
		optional: []string{models.FieldProjectID},
		aliases: map[string]string{
			"name":          models.FieldTitle,
			models.FieldBody: models.FieldDescription,
			"project":       models.FieldProjectID,
		},
	},
	models.ActionGetIssue: {
		required: []string{models.FieldIssueNumber},
		aliases: map[string]string{
			models.FieldIssueIID: models.FieldIssueNumber,
			"issue_id":           models.FieldIssueNumber,
			"iid":                models.FieldIssueNumber,
			"issue":              models.FieldIssueNumber,
			"number":             models.FieldIssueNumber,
		},
	},
	models.ActionGetIssues: {},
	models.ActionCommentOnIssue: {
		required: []string{models.FieldIssueIID, models.FieldBody},
		aliases: map[string]string{
			models.FieldIssueNumber: models.FieldIssueIID,
			"issue_id":              models.FieldIssueIID,
			"iid":                   models.FieldIssueIID,
			"issue":                 models.FieldIssueIID,
			"number":                models.FieldIssueIID,
			"comment":               models.FieldBody,
			"note":                  models.FieldBody,
			"text":                  models.FieldBody,
			"message":               models.FieldBody,
		},
	},
	models.ActionCreateMergeRequest: {
		required: []string{models.FieldSourceBranch, models.FieldTargetBranch, models.FieldTitle},
		optional: []string{models.FieldDescription},
		aliases: map[string]string{
			"source": models.FieldSourceBranch,
			"from":   models.FieldSourceBranch,
			"head":   models.FieldSourceBranch,
			"target": models.FieldTargetBranch,
			"to":     models.FieldTargetBranch,
			"base":   models.FieldTargetBranch,
			"name":   models.FieldTitle,
		},
	},
	models.ActionListBranches: {},
	models.ActionCreateBranch: {
		required: []string{models.FieldNewBranch, models.FieldSourceBranch},
		aliases: map[string]string{
			models.FieldBranchName: models.FieldNewBranch,
			models.FieldBranch:     models.FieldNewBranch,
			"name":                 models.FieldNewBranch,
			"from":                 models.FieldSourceBranch,
			"ref":                  models.FieldSourceBranch,
			"source":               models.FieldSourceBranch,
		},
	},
	models.ActionDeleteBranch: {
		required: []string{models.FieldBranchName},
		aliases: map[string]string{
			models.FieldBranch: models.FieldBranchName,
			"name":             models.FieldBranchName,
		},
	},
	models.ActionListFiles: {
		optional: []string{models.FieldPath, models.FieldBranch},
		aliases: map[string]string{
			"directory": models.FieldPath,
			"dir":       models.FieldPath,
			"folder":    models.FieldPath,
			"ref":       models.FieldBranch,
		},
	},
}

// Schema validates and completes actions. Each action has a JSON schema built
// from its field table.
type Schema struct {
	defaultBranch string
	compiled      map[models.ActionName]*gojsonschema.Schema
}

// NewSchema compiles the per-action schemas. defaultBranch fills a missing
// optional branch field.
func NewSchema(defaultBranch string) (*Schema, error) {
	if defaultBranch == "" {
		defaultBranch = "main"
	}
	s := &Schema{
		defaultBranch: defaultBranch,
		compiled:      make(map[models.ActionName]*gojsonschema.Schema, len(actionSpecs)),
	}
	for action, spec := range actionSpecs {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaDocument(spec)))
		if err != nil {
			return nil, fmt.Errorf("compile schema for %q: %w", action, err)
		}
		s.compiled[action] = compiled
	}
	return s, nil
}

// DefaultBranch returns the branch used when an action names none.
func (s *Schema) DefaultBranch() string {
	return s.defaultBranch
}

// Required returns the required fields of an action in declaration order.
func Required(action models.ActionName) []string {
	return append([]string(nil), actionSpecs[action].required...)
}

// Canonicalize turns a decoded model object into a CanonicalAction. The
// "action" key selects the action; every other key is a candidate field.
func (s *Schema) Canonicalize(raw map[string]any) (*models.CanonicalAction, error) {
	rawAction, ok := raw["action"].(string)
	if !ok || strings.TrimSpace(rawAction) == "" {
		return nil, &Failure{Kind: TranslationFailure, Message: "reply has no action field"}
	}

	action, candidates := matchAction(rawAction)
	if action == "" {
		return nil, &Failure{
			Kind:       Unrecognized,
			Message:    fmt.Sprintf("action %q is not supported", rawAction),
			RawAction:  rawAction,
			Candidates: candidates,
		}
	}

	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		if k != "action" {
			fields[k] = v
		}
	}
	return s.Complete(action, fields)
}

// Complete cleans fields for action, applies optional defaults and validates
// the result. It is also used to re-validate a partial action after the
// caller filled in a missing field.
func (s *Schema) Complete(action models.ActionName, in map[string]any) (*models.CanonicalAction, error) {
	spec, ok := actionSpecs[action]
	if !ok {
		return nil, &Failure{Kind: Unrecognized, Message: fmt.Sprintf("action %q is not supported", action), RawAction: string(action)}
	}

	fields := cleanFields(spec, in)
	s.applyDefaults(action, spec, fields)

	result, err := s.compiled[action].Validate(gojsonschema.NewGoLoader(fields))
	if err != nil {
		return nil, &Failure{Kind: ValidationFailure, Message: "fields could not be validated", Action: action, Fields: fields, Err: err}
	}
	if result.Valid() {
		return &models.CanonicalAction{Action: action, Fields: fields}, nil
	}

	missingSet := map[string]bool{}
	var problems []string
	for _, schemaErr := range result.Errors() {
		if schemaErr.Type() == "required" {
			missingSet[fmt.Sprint(schemaErr.Details()["property"])] = true
			continue
		}
		problems = append(problems, fmt.Sprintf("%s: %s", schemaErr.Field(), schemaErr.Description()))
	}
	sort.Strings(problems)

	var missing []string
	for _, name := range spec.required {
		if missingSet[name] {
			missing = append(missing, name)
		}
	}

	message := strings.Join(problems, "; ")
	if len(missing) > 0 {
		message = "missing required fields: " + strings.Join(missing, ", ")
		if len(problems) > 0 {
			message += "; " + strings.Join(problems, "; ")
		}
	}
	return nil, &Failure{
		Kind:    ValidationFailure,
		Message: message,
		Missing: missing,
		Action:  action,
		Fields:  fields,
	}
}

func (s *Schema) applyDefaults(action models.ActionName, spec actionSpec, fields map[string]any) {
	for _, name := range spec.optional {
		if _, present := fields[name]; present {
			continue
		}
		switch name {
		case models.FieldBranch:
			fields[name] = s.defaultBranch
		case models.FieldPath:
			if action == models.ActionListFiles {
				fields[name] = "."
			}
		}
	}
	if p, ok := fields[models.FieldFilePath].(string); ok && strings.EqualFold(p, "readme") {
		fields[models.FieldFilePath] = "README.md"
	}
}

// cleanFields resolves aliases, drops unknown keys and coerces values to the
// field kinds. Values that cannot be coerced are kept so validation reports them.
func cleanFields(spec actionSpec, in map[string]any) map[string]any {
	allowed := make(map[string]bool, len(spec.required)+len(spec.optional))
	for _, name := range spec.required {
		allowed[name] = true
	}
	for _, name := range spec.optional {
		allowed[name] = true
	}

	out := make(map[string]any, len(in))
	// Canonical names win over aliases.
	for k, v := range in {
		if allowed[k] {
			setField(out, k, v)
		}
	}
	for k, v := range in {
		target, isAlias := spec.aliases[strings.ToLower(k)]
		if allowed[k] || !isAlias || !allowed[target] {
			continue
		}
		if _, present := out[target]; !present {
			setField(out, target, v)
		}
	}
	return out
}

func setField(out map[string]any, name string, v any) {
	if v == nil {
		return
	}
	value, keep := coerce(fieldKinds[name], v)
	if keep {
		out[name] = value
	}
}

func coerce(kind fieldKind, v any) (any, bool) {
	switch kind {
	case kindName:
		s, ok := scalarString(v)
		if !ok {
			return v, true
		}
		s = strings.TrimSpace(s)
		return s, s != ""
	case kindText:
		if s, ok := scalarString(v); ok {
			return s, true
		}
		return v, true
	case kindInt:
		if n, ok := toInt(v); ok {
			return n, true
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			return nil, false
		}
		return v, true
	case kindRef:
		if n, ok := toInt(v); ok {
			return n, true
		}
		if s, ok := v.(string); ok {
			s = strings.TrimSpace(s)
			return s, s != ""
		}
		return v, true
	}
	return v, true
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	}
	return "", false
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return int(t), true
		}
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n), true
		}
	case string:
		s := strings.TrimPrefix(strings.TrimSpace(t), "#")
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
	}
	return 0, false
}

func kindSchema(kind fieldKind) map[string]any {
	switch kind {
	case kindName:
		return map[string]any{"type": "string", "minLength": 1}
	case kindText:
		return map[string]any{"type": "string"}
	case kindInt:
		return map[string]any{"type": "integer", "minimum": 1}
	default:
		return map[string]any{"type": []string{"integer", "string"}}
	}
}

func schemaDocument(spec actionSpec) map[string]any {
	props := map[string]any{}
	for _, name := range spec.required {
		props[name] = kindSchema(fieldKinds[name])
	}
	for _, name := range spec.optional {
		props[name] = kindSchema(fieldKinds[name])
	}
	doc := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(spec.required) > 0 {
		doc["required"] = spec.required
	}
	return doc
}
