package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitlabassist/internal/assistant"
	"github.com/gitlabassist/internal/dispatch"
	"github.com/gitlabassist/internal/intent"
)

type branchBackend struct {
	dispatch.Backend
}

func (branchBackend) ListBranches(context.Context) ([]string, error) {
	return []string{"main", "develop"}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	schema, err := intent.NewSchema("main")
	require.NoError(t, err)

	factory := func(ctx context.Context, id string) (*assistant.Session, error) {
		cfg := dispatch.DefaultConfig()
		cfg.ScanSecrets = false
		return assistant.NewSession(id, assistant.Deps{
			Classifier: intent.NewRuleClassifier(schema),
			Schema:     schema,
			Dispatcher: dispatch.New(branchBackend{}, cfg, dispatch.WithLogger(zerolog.Nop())),
		})
	}
	tokens, err := NewTokenService("test-secret", time.Hour)
	require.NoError(t, err)
	return NewServer(0, assistant.NewRegistry(factory, time.Hour), tokens)
}

func do(t *testing.T, s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, s *Server) SessionResponse {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/v1/sessions", "", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionID)
	require.NotEmpty(t, resp.Token)
	return resp
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","sessions":0}`, rec.Body.String())
}

func TestTurnFlow(t *testing.T) {
	s := newTestServer(t)
	sess := createSession(t, s)
	base := "/api/v1/sessions/" + sess.SessionID

	rec := do(t, s, http.MethodPost, base+"/turns", sess.Token, `{"text":"list all branches"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"action":{"action":"List Branches"},"result":"✅ Branches:\nmain\ndevelop","status":"success"}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, base+"/turns", sess.Token, `{"text":"make me a sandwich"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var turn TurnResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &turn))
	assert.Equal(t, statusClarification, turn.Status)
	assert.Nil(t, turn.Action)

	rec = do(t, s, http.MethodGet, base+"/history", sess.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var hist HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	assert.Equal(t, []string{"list all branches", "make me a sandwich"}, hist.Prompts)
	assert.Len(t, hist.Turns, 4)

	rec = do(t, s, http.MethodDelete, base+"/history", sess.Token, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodGet, base+"/history", sess.Token, "")
	assert.JSONEq(t, `{"prompts":[],"turns":[]}`, rec.Body.String())
}

func TestTurnRequiresText(t *testing.T) {
	s := newTestServer(t)
	sess := createSession(t, s)

	rec := do(t, s, http.MethodPost, "/api/v1/sessions/"+sess.SessionID+"/turns", sess.Token, `{"text":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionAuth(t *testing.T) {
	s := newTestServer(t)
	a := createSession(t, s)
	b := createSession(t, s)
	path := "/api/v1/sessions/" + a.SessionID + "/history"

	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodGet, path, "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodGet, path, "not-a-jwt", "").Code)
	assert.Equal(t, http.StatusForbidden, do(t, s, http.MethodGet, path, b.Token, "").Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, path, a.Token, "").Code)
}

func TestTokenService(t *testing.T) {
	_, err := NewTokenService(" ", time.Hour)
	assert.Error(t, err)

	ts, err := NewTokenService("secret", time.Minute)
	require.NoError(t, err)
	now := time.Now()
	ts.now = func() time.Time { return now }

	token, expiresAt, err := ts.Issue("abc")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute), expiresAt)

	id, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	other, err := NewTokenService("other-secret", time.Minute)
	require.NoError(t, err)
	_, err = other.Validate(token)
	assert.Error(t, err)

	ts.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = ts.Validate(token)
	assert.Error(t, err)
}
