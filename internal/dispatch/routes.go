package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/gitlabassist/pkg/models"
)

type handlerFunc func(ctx context.Context, action *models.CanonicalAction) *models.OperationOutcome

// route binds an action to its handler. Fast-path routes run without any
// confirmation step once their required fields are present.
type route struct {
	handle   handlerFunc
	requires []string
	fastPath bool
}

// fastPathActions are dispatched directly, with no confirmation.
var fastPathActions = map[models.ActionName]bool{
	models.ActionCommentOnIssue: true,
}

// IsFastPath reports whether action skips the confirmation step.
func IsFastPath(action models.ActionName) bool {
	return fastPathActions[action]
}

func (d *Dispatcher) routeTable() map[models.ActionName]route {
	table := map[models.ActionName]route{
		models.ActionReadFile:           {handle: d.readFile, requires: []string{models.FieldFilePath}},
		models.ActionCreateFile:         {handle: d.writeFile, requires: []string{models.FieldFilePath, models.FieldContent, models.FieldCommitMessage}},
		models.ActionUpdateFile:         {handle: d.writeFile, requires: []string{models.FieldFilePath, models.FieldNewContent, models.FieldCommitMessage}},
		models.ActionDeleteFile:         {handle: d.writeFile, requires: []string{models.FieldFilePath, models.FieldCommitMessage}},
		models.ActionListFiles:          {handle: d.listFiles},
		models.ActionCreateIssue:        {handle: d.createIssue, requires: []string{models.FieldTitle, models.FieldDescription}},
		models.ActionGetIssue:           {handle: d.getIssue, requires: []string{models.FieldIssueNumber}},
		models.ActionGetIssues:          {handle: d.listIssues},
		models.ActionCommentOnIssue:     {handle: d.commentOnIssue, requires: []string{models.FieldIssueIID, models.FieldBody}},
		models.ActionCreateMergeRequest: {handle: d.createMergeRequest, requires: []string{models.FieldSourceBranch, models.FieldTargetBranch, models.FieldTitle}},
		models.ActionListBranches:       {handle: d.listBranches},
		models.ActionCreateBranch:       {handle: d.createBranch, requires: []string{models.FieldNewBranch, models.FieldSourceBranch}},
		models.ActionDeleteBranch:       {handle: d.deleteBranch, requires: []string{models.FieldBranchName}},
	}
	for name, r := range table {
		r.fastPath = fastPathActions[name]
		table[name] = r
	}
	return table
}

func (d *Dispatcher) branchOf(action *models.CanonicalAction) string {
	if b := action.String(models.FieldBranch); b != "" {
		return b
	}
	return d.cfg.DefaultBranch
}

func (d *Dispatcher) readFile(ctx context.Context, action *models.CanonicalAction) *models.OperationOutcome {
	path, ref := action.String(models.FieldFilePath), d.branchOf(action)
	var content string
	err := d.call(ctx, "read file", func(ctx context.Context) error {
		var err error
		content, err = d.backend.ReadFile(ctx, path, ref)
		return err
	})
	if err != nil {
		return failed(fmt.Sprintf("Could not read %s on %s", path, ref), err)
	}
	return success(fmt.Sprintf("Contents of %s (%s):\n%s", path, ref, content), content)
}

func (d *Dispatcher) listFiles(ctx context.Context, action *models.CanonicalAction) *models.OperationOutcome {
	path := action.String(models.FieldPath)
	if path == "" {
		path = "."
	}
	ref := d.branchOf(action)
	var entries []models.TreeEntry
	err := d.call(ctx, "list files", func(ctx context.Context) error {
		var err error
		entries, err = d.backend.ListFiles(ctx, path, ref)
		return err
	})
	if err != nil {
		return failed(fmt.Sprintf("Could not list files in %s on %s", path, ref), err)
	}
	if len(entries) == 0 {
		return success(fmt.Sprintf("No files in %s on %s.", path, ref), entries)
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		if e.Type == "tree" {
			lines[i] = e.Path + "/"
		} else {
			lines[i] = e.Path
		}
	}
	return success(fmt.Sprintf("Files in %s on %s:\n%s", path, ref, strings.Join(lines, "\n")), entries)
}

func (d *Dispatcher) createIssue(ctx context.Context, action *models.CanonicalAction) *models.OperationOutcome {
	title := action.String(models.FieldTitle)
	var issue *models.Issue
	err := d.call(ctx, "create issue", func(ctx context.Context) error {
		var err error
		issue, err = d.backend.CreateIssue(ctx, action.String(models.FieldProjectID), title, action.String(models.FieldDescription))
		return err
	})
	if err != nil {
		return failed(fmt.Sprintf("Could not create issue %q", title), err)
	}
	return success(fmt.Sprintf("Created issue #%d: %s", issue.IID, issue.Title), issue)
}

func (d *Dispatcher) getIssue(ctx context.Context, action *models.CanonicalAction) *models.OperationOutcome {
	iid := action.Int(models.FieldIssueNumber)
	var issue *models.Issue
	err := d.call(ctx, "get issue", func(ctx context.Context) error {
		var err error
		issue, err = d.backend.GetIssue(ctx, iid)
		return err
	})
	if err != nil {
		return failed(fmt.Sprintf("Could not get issue #%d", iid), err)
	}
	msg := fmt.Sprintf("Issue #%d [%s]: %s", issue.IID, issue.State, issue.Title)
	if issue.Description != "" {
		msg += "\n" + issue.Description
	}
	return success(msg, issue)
}

func (d *Dispatcher) listIssues(ctx context.Context, _ *models.CanonicalAction) *models.OperationOutcome {
	var issues []models.Issue
	err := d.call(ctx, "list issues", func(ctx context.Context) error {
		var err error
		issues, err = d.backend.ListIssues(ctx)
		return err
	})
	if err != nil {
		return failed("Could not list issues", err)
	}
	if len(issues) == 0 {
		return success("There are no open issues.", issues)
	}
	lines := make([]string, len(issues))
	for i, issue := range issues {
		lines[i] = fmt.Sprintf("#%d %s", issue.IID, issue.Title)
	}
	return success(fmt.Sprintf("Found %d open issues:\n%s", len(issues), strings.Join(lines, "\n")), issues)
}

// commentOnIssue is the deterministic comment path: escaped newlines in the
// body are expanded and the note is posted directly.
func (d *Dispatcher) commentOnIssue(ctx context.Context, action *models.CanonicalAction) *models.OperationOutcome {
	iid := action.Int(models.FieldIssueIID)
	if iid <= 0 {
		return failure(models.KindInvalid, fmt.Sprintf("issue_iid must be a positive integer, got %v", action.Fields[models.FieldIssueIID]), nil)
	}
	body := unescapeBody(action.String(models.FieldBody))
	if body == "" {
		return failure(models.KindInvalid, "the comment body is empty", nil)
	}

	var note *models.Note
	err := d.call(ctx, "comment on issue", func(ctx context.Context) error {
		var err error
		note, err = d.backend.CommentOnIssue(ctx, iid, body)
		return err
	})
	if err != nil {
		return failed(fmt.Sprintf("Could not comment on issue #%d", iid), err)
	}
	return success(fmt.Sprintf("Comment added to issue #%d", iid), note)
}

var bodyEscapes = strings.NewReplacer(`\\n`, "\n", `\n`, "\n", `\t`, "\t", `\"`, `"`)

// unescapeBody undoes literal escapes and removes one pair of quotes around
// the whole body.
func unescapeBody(body string) string {
	body = strings.TrimSpace(bodyEscapes.Replace(body))
	if len(body) >= 2 {
		first, last := body[0], body[len(body)-1]
		if first == last && (first == '"' || first == '\'') {
			body = strings.TrimSpace(body[1 : len(body)-1])
		}
	}
	return body
}

func (d *Dispatcher) createMergeRequest(ctx context.Context, action *models.CanonicalAction) *models.OperationOutcome {
	source, target := action.String(models.FieldSourceBranch), action.String(models.FieldTargetBranch)
	if source == target {
		return failure(models.KindInvalid, fmt.Sprintf("source and target branch are both %q", source), nil)
	}
	var mr *models.MergeRequest
	err := d.call(ctx, "create merge request", func(ctx context.Context) error {
		var err error
		mr, err = d.backend.CreateMergeRequest(ctx, source, target, action.String(models.FieldTitle), action.String(models.FieldDescription))
		return err
	})
	if err != nil {
		return failed(fmt.Sprintf("Could not create merge request %s → %s", source, target), err)
	}
	msg := fmt.Sprintf("Created merge request !%d: %s (%s → %s)", mr.IID, mr.Title, mr.SourceBranch, mr.TargetBranch)
	if mr.WebURL != "" {
		msg += "\n" + mr.WebURL
	}
	return success(msg, mr)
}

func (d *Dispatcher) listBranches(ctx context.Context, _ *models.CanonicalAction) *models.OperationOutcome {
	var names []string
	err := d.call(ctx, "list branches", func(ctx context.Context) error {
		var err error
		names, err = d.backend.ListBranches(ctx)
		return err
	})
	if err != nil {
		return failed("Could not list branches", err)
	}
	if len(names) == 0 {
		return success("The repository has no branches.", names)
	}
	return success(fmt.Sprintf("Branches:\n%s", strings.Join(names, "\n")), names)
}

func (d *Dispatcher) createBranch(ctx context.Context, action *models.CanonicalAction) *models.OperationOutcome {
	name, source := action.String(models.FieldNewBranch), action.String(models.FieldSourceBranch)
	err := d.call(ctx, "create branch", func(ctx context.Context) error {
		return d.backend.CreateBranch(ctx, name, source)
	})
	if err != nil {
		return failed(fmt.Sprintf("Could not create branch %s from %s", name, source), err)
	}
	return success(fmt.Sprintf("Created branch %s from %s", name, source), name)
}

func (d *Dispatcher) deleteBranch(ctx context.Context, action *models.CanonicalAction) *models.OperationOutcome {
	name := action.String(models.FieldBranchName)
	if d.isPrimary(name) {
		return failure(models.KindPermissionDenied,
			fmt.Sprintf("Refusing to delete %s: primary branches (%s) are never deleted", name, strings.Join(d.cfg.PrimaryBranches, ", ")), nil)
	}
	err := d.call(ctx, "delete branch", func(ctx context.Context) error {
		return d.backend.DeleteBranch(ctx, name)
	})
	if err != nil {
		return failed(fmt.Sprintf("Could not delete branch %s", name), err)
	}
	return success(fmt.Sprintf("Deleted branch %s", name), name)
}
