package dispatch

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/gitlabassist/pkg/models"
)

// writeState tracks a file write through the protected-branch policy.
type writeState int

const (
	stateStart writeState = iota
	stateRequireBranch
	stateBranchEnsured
	stateWritten
	stateFailed
)

func (s writeState) String() string {
	switch s {
	case stateStart:
		return "start"
	case stateRequireBranch:
		return "require_branch"
	case stateBranchEnsured:
		return "branch_ensured"
	case stateWritten:
		return "written"
	case stateFailed:
		return "failed"
	}
	return fmt.Sprintf("writeState(%d)", int(s))
}

// WriteResult is the raw payload of a file write outcome.
type WriteResult struct {
	Path          string `json:"path"`
	Branch        string `json:"branch"`
	BaseBranch    string `json:"base_branch"`
	CreatedBranch bool   `json:"created_branch,omitempty"`
	State         string `json:"state"`
}

type fileWrite struct {
	action  *models.CanonicalAction
	path    string
	message string
	// base is the branch the change starts from, target the branch it lands on.
	base   string
	target string
	// create is set when target does not exist yet.
	create  bool
	created bool
	state   writeState
}

func (w *fileWrite) result() WriteResult {
	return WriteResult{
		Path:          w.path,
		Branch:        w.target,
		BaseBranch:    w.base,
		CreatedBranch: w.created,
		State:         w.state.String(),
	}
}

func (d *Dispatcher) transition(w *fileWrite, next writeState) {
	d.logger.Debug().
		Str("action", string(w.action.Action)).
		Str("path", w.path).
		Str("from", w.state.String()).
		Str("to", next.String()).
		Msg("write state transition")
	w.state = next
}

func (d *Dispatcher) writeFailed(w *fileWrite, what string, err error) *models.OperationOutcome {
	d.transition(w, stateFailed)
	out := failed(what, err)
	out.Raw = w.result()
	return out
}

// writeFile runs CreateFile, UpdateFile and DeleteFile. Content is scanned
// before any backend call. A protected target branch is either redirected
// to a new feature branch or refused, depending on AutoBranch.
func (d *Dispatcher) writeFile(ctx context.Context, action *models.CanonicalAction) *models.OperationOutcome {
	branch := d.branchOf(action)
	w := &fileWrite{
		action:  action,
		path:    action.String(models.FieldFilePath),
		message: action.String(models.FieldCommitMessage),
		base:    branch,
		target:  branch,
		state:   stateStart,
	}

	if out := d.scanContent(action); out != nil {
		return out
	}

	if d.isProtected(branch) {
		d.transition(w, stateRequireBranch)
		if !d.cfg.AutoBranch {
			d.transition(w, stateFailed)
			return failure(models.KindPermissionDenied,
				fmt.Sprintf("%s is a protected branch; name a feature branch to commit %s to", branch, w.path), w.result())
		}
		w.target = d.featureBranch(w.path)
		w.create = true
	} else {
		var exists bool
		err := d.call(ctx, "check branch", func(ctx context.Context) error {
			var err error
			exists, err = d.backend.BranchExists(ctx, branch)
			return err
		})
		if err != nil {
			return d.writeFailed(w, fmt.Sprintf("Could not check branch %s", branch), err)
		}
		if !exists {
			d.transition(w, stateRequireBranch)
			w.base = d.cfg.DefaultBranch
			w.create = true
		}
	}

	if action.Action == models.ActionUpdateFile && !action.Has(models.FieldOldContent) {
		var current string
		err := d.call(ctx, "read file", func(ctx context.Context) error {
			var err error
			current, err = d.backend.ReadFile(ctx, w.path, w.base)
			return err
		})
		if err != nil {
			return d.writeFailed(w, fmt.Sprintf("Could not read %s on %s before updating it", w.path, w.base), err)
		}
		if current == action.String(models.FieldNewContent) {
			return success(fmt.Sprintf("%s on %s already has the requested content; nothing to commit.", w.path, w.base), w.result())
		}
	}

	if w.create {
		if err := d.ensureBranch(ctx, w); err != nil {
			return d.writeFailed(w, fmt.Sprintf("Could not create branch %s from %s", w.target, w.base), err)
		}
	}
	d.transition(w, stateBranchEnsured)

	if err := d.call(ctx, strings.ToLower(string(action.Action)), func(ctx context.Context) error {
		return d.commit(ctx, w)
	}); err != nil {
		return d.writeFailed(w, fmt.Sprintf("Could not %s %s on %s", verbOf(action.Action), w.path, w.target), err)
	}
	d.transition(w, stateWritten)

	msg := fmt.Sprintf("%s %s on %s", pastTenseOf(action.Action), w.path, w.target)
	if w.target != branch {
		msg += fmt.Sprintf(" (%s is protected, so the change was committed to new branch %s)", branch, w.target)
	} else if w.created {
		msg += fmt.Sprintf(" (branch created from %s)", w.base)
	}
	return success(msg, w.result())
}

// ensureBranch creates the target branch. A branch that already exists
// counts as ensured.
func (d *Dispatcher) ensureBranch(ctx context.Context, w *fileWrite) error {
	err := d.call(ctx, "create branch", func(ctx context.Context) error {
		return d.backend.CreateBranch(ctx, w.target, w.base)
	})
	if err != nil && models.KindOf(err) != models.KindConflict {
		return err
	}
	w.created = err == nil
	return nil
}

func (d *Dispatcher) commit(ctx context.Context, w *fileWrite) error {
	a := w.action
	switch a.Action {
	case models.ActionCreateFile:
		return d.backend.CreateFile(ctx, w.path, w.target, a.String(models.FieldContent), w.message)
	case models.ActionUpdateFile:
		if a.Has(models.FieldOldContent) {
			return d.backend.ReplaceInFile(ctx, w.path, w.target, a.String(models.FieldOldContent), a.String(models.FieldNewContent), w.message)
		}
		return d.backend.UpdateFile(ctx, w.path, w.target, a.String(models.FieldNewContent), w.message)
	case models.ActionDeleteFile:
		return d.backend.DeleteFile(ctx, w.path, w.target, w.message)
	}
	return models.Errorf(models.KindInvalid, "commit", "%s is not a file write", a.Action)
}

func (d *Dispatcher) scanContent(action *models.CanonicalAction) *models.OperationOutcome {
	if d.scanner == nil {
		return nil
	}
	var content string
	switch action.Action {
	case models.ActionCreateFile:
		content = action.String(models.FieldContent)
	case models.ActionUpdateFile:
		content = action.String(models.FieldNewContent)
	}
	findings := d.scanner.Scan(content)
	if len(findings) == 0 {
		return nil
	}
	names := make([]string, len(findings))
	for i, f := range findings {
		names[i] = f.String()
	}
	d.logger.Warn().Str("path", action.String(models.FieldFilePath)).Int("findings", len(findings)).Msg("secret scan blocked write")
	return failure(models.KindInvalid,
		fmt.Sprintf("Refusing to commit %s: the content looks like it contains secrets (%s)", action.String(models.FieldFilePath), strings.Join(names, "; ")),
		findings)
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

const maxSlugLen = 40

func (d *Dispatcher) featureBranch(path string) string {
	slug := slugUnsafe.ReplaceAllString(strings.ToLower(path), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		slug = "change"
	}
	return fmt.Sprintf("assistant/%s-%d", slug, d.now().Unix())
}

func verbOf(a models.ActionName) string {
	switch a {
	case models.ActionCreateFile:
		return "create"
	case models.ActionUpdateFile:
		return "update"
	case models.ActionDeleteFile:
		return "delete"
	}
	return "write"
}

func pastTenseOf(a models.ActionName) string {
	switch a {
	case models.ActionCreateFile:
		return "Created"
	case models.ActionUpdateFile:
		return "Updated"
	case models.ActionDeleteFile:
		return "Deleted"
	}
	return "Wrote"
}
