package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairJSON_ValidJSON(t *testing.T) {
	validJSON := `{"action": "Comment on Issue", "issue_iid": 15, "body": "This is fixed."}`

	repaired, stats, err := RepairJSON(validJSON)

	require.NoError(t, err)
	assert.False(t, stats.WasRepaired)
	assert.Equal(t, validJSON, repaired)
	assert.Equal(t, len(validJSON), stats.OriginalBytes)
	assert.Equal(t, len(validJSON), stats.RepairedBytes)
}

func TestRepairJSON_TrailingCommas(t *testing.T) {
	repaired, stats, err := RepairJSON(`{"action": "List Files", "path": ".",}`)

	require.NoError(t, err)
	assert.True(t, stats.WasRepaired)
	assert.Equal(t, `{"action": "List Files", "path": "."}`, repaired)
	assert.Equal(t, 1, stats.ErrorsFixed)
	assert.Equal(t, []string{"trailing_commas"}, stats.RepairStrategies)
}

func TestRepairJSON_IncompleteObject(t *testing.T) {
	repaired, stats, err := RepairJSON(`{"action": "Read File", "file_path": "README.md"`)

	require.NoError(t, err)
	assert.True(t, stats.WasRepaired)
	assert.Equal(t, `{"action": "Read File", "file_path": "README.md"}`, repaired)
	assert.Contains(t, stats.RepairStrategies, "completion")
}

func TestRepairJSON_UnterminatedString(t *testing.T) {
	repaired, _, err := RepairJSON(`{"action": "Comment on Issue", "body": "Fixed in the last release`)

	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(repaired), &decoded))
	assert.Equal(t, "Fixed in the last release", decoded["body"])
}

func TestRepairJSON_Comments(t *testing.T) {
	malformed := "{\n  \"action\": \"Read File\", // what to do\n  \"file_path\": \"docs/https://example.com\"\n}"

	repaired, stats, err := RepairJSON(malformed)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.CommentsLost)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(repaired), &decoded))
	assert.Equal(t, "docs/https://example.com", decoded["file_path"])
}

func TestRepairJSON_UnquotedKeys(t *testing.T) {
	repaired, stats, err := RepairJSON(`{action: "List Branches"}`)

	require.NoError(t, err)
	assert.Equal(t, `{"action": "List Branches"}`, repaired)
	assert.Contains(t, stats.RepairStrategies, "key_quotes")
}

func TestRepairJSON_SingleQuotes(t *testing.T) {
	repaired, stats, err := RepairJSON(`{'action': 'Get Issues'}`)

	require.NoError(t, err)
	assert.Equal(t, `{"action": "Get Issues"}`, repaired)
	assert.Contains(t, stats.RepairStrategies, "single_quotes")
}

func TestRepairJSON_MultipleStrategies(t *testing.T) {
	repaired, stats, err := RepairJSON(`{action: "Create Branch", new_branch: "feature-x",`)

	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(repaired), &decoded))
	assert.Equal(t, "Create Branch", decoded["action"])
	assert.Equal(t, "feature-x", decoded["new_branch"])
	assert.GreaterOrEqual(t, stats.ErrorsFixed, 2)
}

func TestCompleteJSON_IgnoresBracketsInStrings(t *testing.T) {
	assert.Equal(t, `{"body": "see [docs] {x}"}`, completeJSON(`{"body": "see [docs] {x}"`))
}
