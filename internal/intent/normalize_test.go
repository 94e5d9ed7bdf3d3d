package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gitlabassist/pkg/models"
)

func TestNormalizeAction_EverySynonym(t *testing.T) {
	for synonym, want := range actionSynonyms {
		got, ok := NormalizeAction(synonym)
		assert.True(t, ok, "synonym %q", synonym)
		assert.Equal(t, want, got, "synonym %q", synonym)
	}
}

func TestNormalizeAction_DisplayNames(t *testing.T) {
	for _, action := range models.Actions {
		got, ok := NormalizeAction(string(action))
		assert.True(t, ok, "action %q", action)
		assert.Equal(t, action, got)
	}
}

func TestNormalizeAction_Separators(t *testing.T) {
	tests := map[string]models.ActionName{
		"del_file":            models.ActionDeleteFile,
		"DEL-FILE":            models.ActionDeleteFile,
		"Del File":            models.ActionDeleteFile,
		"show_file":           models.ActionReadFile,
		"comment":             models.ActionCommentOnIssue,
		"pull_request":        models.ActionCreateMergeRequest,
		"Create Pull Request": models.ActionCreateMergeRequest,
		"create_issue":        models.ActionCreateIssue,
		"  list   branches  ": models.ActionListBranches,
		"get_issues":          models.ActionGetIssues,
	}
	for raw, want := range tests {
		got, ok := NormalizeAction(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestNormalizeAction_Typos(t *testing.T) {
	tests := map[string]models.ActionName{
		"reed file":     models.ActionReadFile,
		"list branchs":  models.ActionListBranches,
		"delete brunch": models.ActionDeleteBranch,
		"creat issue":   models.ActionCreateIssue,
		"updte_file":    models.ActionUpdateFile,
	}
	for raw, want := range tests {
		got, ok := NormalizeAction(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestNormalizeAction_Unrecognized(t *testing.T) {
	for _, raw := range []string{"", "Checkout Branch", "deploy to production", "ls -la", "merge"} {
		got, ok := NormalizeAction(raw)
		assert.False(t, ok, raw)
		assert.Equal(t, models.ActionName(""), got)
	}
}

func TestMatchAction_TieIsAmbiguous(t *testing.T) {
	// "get issuez" is one edit from both "get issue" and "get issues".
	action, candidates := matchAction("get issuez")
	assert.Equal(t, models.ActionName(""), action)
	assert.ElementsMatch(t, []models.ActionName{models.ActionGetIssue, models.ActionGetIssues}, candidates)
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("abc", "abc"))
	assert.Equal(t, 3, levenshtein("", "abc"))
	assert.Equal(t, 1, levenshtein("branchs", "branches"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
}
