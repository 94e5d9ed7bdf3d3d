package gitlab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitlabassist/pkg/models"
)

func TestNoteClient_Create(t *testing.T) {
	var gotPath, gotToken, gotBody string
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotToken = r.Header.Get("PRIVATE-TOKEN")
		var req noteRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotBody = req.Body
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 301, "body": "This is fixed."}`))
	}))
	defer mockServer.Close()

	client := NewNoteClient(mockServer.URL+"/", "test-token", "group/project", nil, nil)
	note, err := client.Create(context.Background(), 15, "This is fixed.")

	require.NoError(t, err)
	assert.Equal(t, "/api/v4/projects/group%2Fproject/issues/15/notes", gotPath)
	assert.Equal(t, "test-token", gotToken)
	assert.Equal(t, "This is fixed.", gotBody)
	assert.Equal(t, &models.Note{ID: 301, IssueIID: 15, Body: "This is fixed."}, note)
}

func TestNoteClient_RequiresCreated(t *testing.T) {
	tests := []struct {
		status int
		kind   models.ErrorKind
	}{
		{http.StatusOK, models.KindInvalid},
		{http.StatusNotFound, models.KindNotFound},
		{http.StatusForbidden, models.KindPermissionDenied},
		{http.StatusServiceUnavailable, models.KindTransient},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"message": "nope"}`))
			}))
			defer mockServer.Close()

			client := NewNoteClient(mockServer.URL, "test-token", "42", nil, nil)
			_, err := client.Create(context.Background(), 5, "hi")
			require.Error(t, err)
			assert.Equal(t, tt.kind, models.KindOf(err))
		})
	}
}

func TestNoteClient_NetworkErrorIsTransient(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := mockServer.URL
	mockServer.Close()

	client := NewNoteClient(url, "test-token", "42", nil, nil)
	_, err := client.Create(context.Background(), 5, "hi")
	assert.Equal(t, models.KindTransient, models.KindOf(err))
}

func TestClient_CommentOnIssueUsesNotesEndpoint(t *testing.T) {
	m, srv := newMockGitLab(t)
	m.on("POST", "/api/v4/projects/42/issues/15/notes", jsonReply(http.StatusCreated, `{"id": 9, "body": "done"}`))

	note, err := newTestClient(t, srv, "42").CommentOnIssue(context.Background(), 15, "done")
	require.NoError(t, err)
	assert.Equal(t, 9, note.ID)
	assert.Equal(t, 1, m.count("POST", "/api/v4/projects/42/issues/15/notes"))
}
