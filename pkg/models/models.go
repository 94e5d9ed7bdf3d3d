package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ActionName is one entry of the fixed action vocabulary. The string value is
// the display name used in model output and in the audit JSON.
type ActionName string

const (
	ActionReadFile           ActionName = "Read File"
	ActionCreateFile         ActionName = "Create File"
	ActionUpdateFile         ActionName = "Update File"
	ActionDeleteFile         ActionName = "Delete File"
	ActionCreateIssue        ActionName = "Create Issue"
	ActionGetIssue           ActionName = "Get Issue"
	ActionGetIssues          ActionName = "Get Issues"
	ActionCommentOnIssue     ActionName = "Comment on Issue"
	ActionCreateMergeRequest ActionName = "Create Merge Request"
	ActionListBranches       ActionName = "List Branches"
	ActionCreateBranch       ActionName = "Create Branch"
	ActionDeleteBranch       ActionName = "Delete Branch"
	ActionListFiles          ActionName = "List Files"
)

// Actions lists the whole vocabulary in a stable order.
var Actions = []ActionName{
	ActionReadFile,
	ActionCreateFile,
	ActionUpdateFile,
	ActionDeleteFile,
	ActionCreateIssue,
	ActionGetIssue,
	ActionGetIssues,
	ActionCommentOnIssue,
	ActionCreateMergeRequest,
	ActionListBranches,
	ActionCreateBranch,
	ActionDeleteBranch,
	ActionListFiles,
}

// IsWrite reports whether the action changes repository or tracker state.
func (a ActionName) IsWrite() bool {
	switch a {
	case ActionReadFile, ActionGetIssue, ActionGetIssues, ActionListBranches, ActionListFiles:
		return false
	}
	return true
}

// IsFileWrite reports whether the action commits to a branch.
func (a ActionName) IsFileWrite() bool {
	return a == ActionCreateFile || a == ActionUpdateFile || a == ActionDeleteFile
}

// Field names used across the schema, the dispatcher and reference resolution.
const (
	FieldFilePath      = "file_path"
	FieldBranch        = "branch"
	FieldContent       = "content"
	FieldNewContent    = "new_content"
	FieldOldContent    = "old_content"
	FieldCommitMessage = "commit_message"
	FieldTitle         = "title"
	FieldDescription   = "description"
	FieldProjectID     = "project_id"
	FieldIssueNumber   = "issue_number"
	FieldIssueIID      = "issue_iid"
	FieldBody          = "body"
	FieldSourceBranch  = "source_branch"
	FieldTargetBranch  = "target_branch"
	FieldNewBranch     = "new_branch"
	FieldBranchName    = "branch_name"
	FieldPath          = "path"
)

// CanonicalAction is a validated, normalized user intent. Fields hold strings
// and ints only.
type CanonicalAction struct {
	Action ActionName
	Fields map[string]any
}

// String returns a string field or "".
func (c *CanonicalAction) String(field string) string {
	if c == nil || c.Fields == nil {
		return ""
	}
	switch v := c.Fields[field].(type) {
	case string:
		return v
	case int:
		return fmt.Sprintf("%d", v)
	}
	return ""
}

// Int returns an integer field or 0.
func (c *CanonicalAction) Int(field string) int {
	if c == nil || c.Fields == nil {
		return 0
	}
	if v, ok := c.Fields[field].(int); ok {
		return v
	}
	return 0
}

// Has reports whether a field is present.
func (c *CanonicalAction) Has(field string) bool {
	if c == nil || c.Fields == nil {
		return false
	}
	_, ok := c.Fields[field]
	return ok
}

// Key identifies the action for idempotence checks.
func (c *CanonicalAction) Key() string {
	keys := make([]string, 0, len(c.Fields))
	for k := range c.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(string(c.Action))
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%v", k, c.Fields[k])
	}
	return b.String()
}

// Clone returns a copy whose field map can be modified independently.
func (c *CanonicalAction) Clone() *CanonicalAction {
	out := &CanonicalAction{Action: c.Action, Fields: make(map[string]any, len(c.Fields))}
	for k, v := range c.Fields {
		out.Fields[k] = v
	}
	return out
}

// MarshalJSON renders the flat audit form: {"action": "...", <fields>}.
func (c CanonicalAction) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(c.Fields)+1)
	for k, v := range c.Fields {
		flat[k] = v
	}
	flat["action"] = c.Action
	return json.Marshal(flat)
}

// Status of an operation outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// OperationOutcome is the result of one dispatched action.
type OperationOutcome struct {
	Status  Status    `json:"status"`
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind,omitempty"`
	Raw     any       `json:"raw,omitempty"`
	// AlreadyCompleted marks an identical action that succeeded earlier in the turn.
	AlreadyCompleted bool `json:"already_completed,omitempty"`
}

// Succeeded reports whether the outcome is a success.
func (o *OperationOutcome) Succeeded() bool {
	return o != nil && o.Status == StatusSuccess
}

// Role of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one entry of a conversation.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Issue is the subset of an issue the assistant reports.
type Issue struct {
	IID         int    `json:"iid"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	State       string `json:"state,omitempty"`
	WebURL      string `json:"web_url,omitempty"`
}

// Note is a comment posted on an issue.
type Note struct {
	ID       int    `json:"id"`
	IssueIID int    `json:"issue_iid"`
	Body     string `json:"body"`
}

// MergeRequest is the subset of a merge request the assistant reports.
type MergeRequest struct {
	IID          int    `json:"iid"`
	Title        string `json:"title"`
	SourceBranch string `json:"source_branch"`
	TargetBranch string `json:"target_branch"`
	WebURL       string `json:"web_url,omitempty"`
}

// TreeEntry is one file or directory of a repository listing.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // blob | tree
}
