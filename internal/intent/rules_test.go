package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitlabassist/pkg/models"
)

func TestRuleClassifier(t *testing.T) {
	rc := NewRuleClassifier(newTestSchema(t))

	tests := []struct {
		text   string
		action models.ActionName
		fields map[string]any
	}{
		{"list all branches", models.ActionListBranches, map[string]any{}},
		{"Show me the branches", models.ActionListBranches, map[string]any{}},
		{"list the files", models.ActionListFiles, map[string]any{"path": ".", "branch": "main"}},
		{"list files in the main2 branch", models.ActionListFiles, map[string]any{"path": ".", "branch": "main2"}},
		{"list files in the directory src on the dev branch", models.ActionListFiles, map[string]any{"path": "src", "branch": "dev"}},
		{"create a new branch called feature-1 from main", models.ActionCreateBranch, map[string]any{"new_branch": "feature-1", "source_branch": "main"}},
		{"delete the branch feature-1", models.ActionDeleteBranch, map[string]any{"branch_name": "feature-1"}},
		{"On issue #15, add the comment 'This is fixed.'", models.ActionCommentOnIssue, map[string]any{"issue_iid": 15, "body": "This is fixed."}},
		{`add a comment "looks good" to issue 4`, models.ActionCommentOnIssue, map[string]any{"issue_iid": 4, "body": "looks good"}},
		{"list open issues", models.ActionGetIssues, map[string]any{}},
		{"show issue #9", models.ActionGetIssue, map[string]any{"issue_number": 9}},
		{"show me the readme", models.ActionReadFile, map[string]any{"file_path": "README.md", "branch": "main"}},
		{"read docs/setup.md from the dev branch", models.ActionReadFile, map[string]any{"file_path": "docs/setup.md", "branch": "dev"}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := rc.Classify(context.Background(), tt.text, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.action, got.Action)
			assert.Equal(t, tt.fields, got.Fields)
		})
	}
}

func TestRuleClassifier_AnaphoraLeavesFieldMissing(t *testing.T) {
	rc := NewRuleClassifier(newTestSchema(t))

	_, err := rc.Classify(context.Background(), "read that file", nil)
	f := requireFailure(t, err, ValidationFailure)
	assert.Equal(t, models.ActionReadFile, f.Action)
	assert.Equal(t, []string{"file_path"}, f.Missing)

	_, err = rc.Classify(context.Background(), "add a comment 'ping' to it", nil)
	f = requireFailure(t, err, ValidationFailure)
	assert.Equal(t, models.ActionCommentOnIssue, f.Action)
	assert.Equal(t, []string{"issue_iid"}, f.Missing)
	assert.Equal(t, "ping", f.Fields[models.FieldBody])
}

func TestRuleClassifier_MissingSourceBranchIsNotInvented(t *testing.T) {
	rc := NewRuleClassifier(newTestSchema(t))
	_, err := rc.Classify(context.Background(), "create a branch hotfix", nil)
	f := requireFailure(t, err, ValidationFailure)
	assert.Equal(t, []string{"source_branch"}, f.Missing)
}

func TestRuleClassifier_Unrecognized(t *testing.T) {
	rc := NewRuleClassifier(newTestSchema(t))
	_, err := rc.Classify(context.Background(), "deploy the app to production", nil)
	requireFailure(t, err, Unrecognized)
}
