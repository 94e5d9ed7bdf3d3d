package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/gitlabassist/pkg/models"
)

// NoteClient posts issue comments with a plain HTTP call to the notes
// endpoint, outside the generic client.
type NoteClient struct {
	baseURL string
	token   string
	project string
	client  *http.Client
	limiter *rate.Limiter
}

// NewNoteClient creates a NoteClient. baseURL is the instance root, without /api/v4.
func NewNoteClient(baseURL, token, project string, client *http.Client, limiter *rate.Limiter) *NoteClient {
	baseURL = strings.TrimRight(baseURL, "/")
	if client == nil {
		client = &http.Client{}
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &NoteClient{
		baseURL: fmt.Sprintf("%s/api/v4", baseURL),
		token:   token,
		project: project,
		client:  client,
		limiter: limiter,
	}
}

type noteRequest struct {
	Body string `json:"body"`
}

type noteResponse struct {
	ID   int    `json:"id"`
	Body string `json:"body"`
}

// Create posts body as a note on issue iid. GitLab answers 201 on success.
func (c *NoteClient) Create(ctx context.Context, iid int, body string) (*models.Note, error) {
	op := fmt.Sprintf("comment on issue #%d", iid)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, models.NewError(models.KindTransient, op, err)
	}

	payload, err := json.Marshal(noteRequest{Body: body})
	if err != nil {
		return nil, models.NewError(models.KindInvalid, op, err)
	}

	requestURL := fmt.Sprintf("%s/projects/%s/issues/%d/notes", c.baseURL, url.PathEscape(c.project), iid)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(payload))
	if err != nil {
		return nil, models.NewError(models.KindInvalid, op, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("PRIVATE-TOKEN", c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, models.NewError(models.KindTransient, op, fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, models.NewError(kindForStatus(resp.StatusCode, string(respBody)), op,
			fmt.Errorf("GitLab API error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}

	var note noteResponse
	if err := json.NewDecoder(resp.Body).Decode(&note); err != nil {
		return nil, models.NewError(models.KindTransient, op, fmt.Errorf("failed to decode response: %w", err))
	}
	return &models.Note{ID: note.ID, IssueIID: iid, Body: note.Body}, nil
}
