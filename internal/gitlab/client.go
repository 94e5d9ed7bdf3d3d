// Package gitlab is the repository backend: files, issues, branches and merge
// requests of one project, on top of the official GitLab client.
package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	gitlab "gitlab.com/gitlab-org/api/client-go"
	"golang.org/x/time/rate"

	"github.com/gitlabassist/pkg/models"
)

const perPage = 100

// Config contains configuration for the GitLab backend
type Config struct {
	URL       string  `koanf:"url"`
	Token     string  `koanf:"token"`
	Project   string  `koanf:"repository"`
	RateLimit float64 `koanf:"rate_limit"`

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client `koanf:"-"`
}

// Client talks to one project. It is safe for concurrent use.
type Client struct {
	api     *gitlab.Client
	notes   *NoteClient
	project string
}

// New creates a Client. Retries are disabled in client-go; callers decide
// what to retry.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("gitlab token is required")
	}
	if cfg.Project == "" {
		return nil, fmt.Errorf("gitlab repository is required")
	}
	baseURL := strings.TrimRight(cfg.URL, "/")
	if baseURL == "" {
		baseURL = "https://gitlab.com"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	limiter := rate.NewLimiter(limit, 1)

	api, err := gitlab.NewClient(cfg.Token,
		gitlab.WithBaseURL(baseURL+"/api/v4"),
		gitlab.WithHTTPClient(httpClient),
		gitlab.WithCustomLimiter(limiter),
		gitlab.WithoutRetries(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitLab client: %w", err)
	}

	log.Debug().Str("url", baseURL).Str("project", cfg.Project).Msg("initialized GitLab client")

	return &Client{
		api:     api,
		notes:   NewNoteClient(baseURL, cfg.Token, cfg.Project, httpClient, limiter),
		project: cfg.Project,
	}, nil
}

// Project returns the configured project path or id.
func (c *Client) Project() string {
	return c.project
}

// ReadFile returns the raw content of path at ref.
func (c *Client) ReadFile(ctx context.Context, path, ref string) (string, error) {
	opt := &gitlab.GetRawFileOptions{}
	if ref != "" {
		opt.Ref = gitlab.Ptr(ref)
	}
	raw, resp, err := c.api.RepositoryFiles.GetRawFile(c.project, path, opt, gitlab.WithContext(ctx))
	if err != nil {
		return "", classify("read file "+path, resp, err)
	}
	return string(raw), nil
}

// CreateFile commits a new file.
func (c *Client) CreateFile(ctx context.Context, path, branch, content, message string) error {
	_, resp, err := c.api.RepositoryFiles.CreateFile(c.project, path, &gitlab.CreateFileOptions{
		Branch:        gitlab.Ptr(branch),
		Content:       gitlab.Ptr(content),
		CommitMessage: gitlab.Ptr(message),
	}, gitlab.WithContext(ctx))
	return classify("create file "+path, resp, err)
}

// UpdateFile replaces the whole content of an existing file.
func (c *Client) UpdateFile(ctx context.Context, path, branch, content, message string) error {
	_, resp, err := c.api.RepositoryFiles.UpdateFile(c.project, path, &gitlab.UpdateFileOptions{
		Branch:        gitlab.Ptr(branch),
		Content:       gitlab.Ptr(content),
		CommitMessage: gitlab.Ptr(message),
	}, gitlab.WithContext(ctx))
	return classify("update file "+path, resp, err)
}

// ReplaceInFile swaps the first occurrence of oldContent for newContent and
// commits the result. A missing snippet is an Invalid request, unless the file
// already holds newContent: a retried call whose first commit landed succeeds.
func (c *Client) ReplaceInFile(ctx context.Context, path, branch, oldContent, newContent, message string) error {
	current, err := c.ReadFile(ctx, path, branch)
	if err != nil {
		return err
	}
	if !strings.Contains(current, oldContent) {
		if newContent != "" && strings.Contains(current, newContent) {
			return nil
		}
		return models.Errorf(models.KindInvalid, "update file "+path, "the text to replace was not found in %s", path)
	}
	return c.UpdateFile(ctx, path, branch, strings.Replace(current, oldContent, newContent, 1), message)
}

// DeleteFile removes a file on branch.
func (c *Client) DeleteFile(ctx context.Context, path, branch, message string) error {
	resp, err := c.api.RepositoryFiles.DeleteFile(c.project, path, &gitlab.DeleteFileOptions{
		Branch:        gitlab.Ptr(branch),
		CommitMessage: gitlab.Ptr(message),
	}, gitlab.WithContext(ctx))
	return classify("delete file "+path, resp, err)
}

// ListFiles returns the entries directly under path at ref.
func (c *Client) ListFiles(ctx context.Context, path, ref string) ([]models.TreeEntry, error) {
	opt := &gitlab.ListTreeOptions{ListOptions: gitlab.ListOptions{PerPage: perPage, Page: 1}}
	if path != "" && path != "." && path != "/" {
		opt.Path = gitlab.Ptr(strings.Trim(path, "/"))
	}
	if ref != "" {
		opt.Ref = gitlab.Ptr(ref)
	}

	var entries []models.TreeEntry
	for {
		nodes, resp, err := c.api.Repositories.ListTree(c.project, opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, classify("list files", resp, err)
		}
		for _, n := range nodes {
			entries = append(entries, models.TreeEntry{Path: n.Path, Type: n.Type})
		}
		if resp.NextPage == 0 {
			return entries, nil
		}
		opt.Page = resp.NextPage
	}
}

// CreateIssue opens an issue. project overrides the configured project when set.
func (c *Client) CreateIssue(ctx context.Context, project, title, description string) (*models.Issue, error) {
	pid := any(c.project)
	if project != "" {
		pid = project
	}
	issue, resp, err := c.api.Issues.CreateIssue(pid, &gitlab.CreateIssueOptions{
		Title:       gitlab.Ptr(title),
		Description: gitlab.Ptr(description),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, classify("create issue", resp, err)
	}
	return toIssue(issue), nil
}

// GetIssue fetches one issue by its project-scoped number.
func (c *Client) GetIssue(ctx context.Context, iid int) (*models.Issue, error) {
	issue, resp, err := c.api.Issues.GetIssue(c.project, iid, gitlab.WithContext(ctx))
	if err != nil {
		return nil, classify(fmt.Sprintf("get issue #%d", iid), resp, err)
	}
	return toIssue(issue), nil
}

// ListIssues returns the open issues of the project.
func (c *Client) ListIssues(ctx context.Context) ([]models.Issue, error) {
	opt := &gitlab.ListProjectIssuesOptions{
		ListOptions: gitlab.ListOptions{PerPage: perPage, Page: 1},
		State:       gitlab.Ptr("opened"),
	}
	var out []models.Issue
	for {
		issues, resp, err := c.api.Issues.ListProjectIssues(c.project, opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, classify("list issues", resp, err)
		}
		for _, issue := range issues {
			out = append(out, *toIssue(issue))
		}
		if resp.NextPage == 0 {
			return out, nil
		}
		opt.Page = resp.NextPage
	}
}

// CommentOnIssue posts a note through the direct notes endpoint.
func (c *Client) CommentOnIssue(ctx context.Context, iid int, body string) (*models.Note, error) {
	return c.notes.Create(ctx, iid, body)
}

// ListBranches returns every branch name in API order.
func (c *Client) ListBranches(ctx context.Context) ([]string, error) {
	opt := &gitlab.ListBranchesOptions{ListOptions: gitlab.ListOptions{PerPage: perPage, Page: 1}}
	var names []string
	for {
		branches, resp, err := c.api.Branches.ListBranches(c.project, opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, classify("list branches", resp, err)
		}
		for _, b := range branches {
			names = append(names, b.Name)
		}
		if resp.NextPage == 0 {
			return names, nil
		}
		opt.Page = resp.NextPage
	}
}

// BranchExists reports whether name exists. Only a 404 means false.
func (c *Client) BranchExists(ctx context.Context, name string) (bool, error) {
	_, resp, err := c.api.Branches.GetBranch(c.project, name, gitlab.WithContext(ctx))
	if err == nil {
		return true, nil
	}
	classified := classify("get branch "+name, resp, err)
	if models.KindOf(classified) == models.KindNotFound {
		return false, nil
	}
	return false, classified
}

// CreateBranch creates name from ref.
func (c *Client) CreateBranch(ctx context.Context, name, ref string) error {
	_, resp, err := c.api.Branches.CreateBranch(c.project, &gitlab.CreateBranchOptions{
		Branch: gitlab.Ptr(name),
		Ref:    gitlab.Ptr(ref),
	}, gitlab.WithContext(ctx))
	return classify("create branch "+name, resp, err)
}

// DeleteBranch deletes name.
func (c *Client) DeleteBranch(ctx context.Context, name string) error {
	resp, err := c.api.Branches.DeleteBranch(c.project, name, gitlab.WithContext(ctx))
	return classify("delete branch "+name, resp, err)
}

// CreateMergeRequest opens a merge request from source into target.
func (c *Client) CreateMergeRequest(ctx context.Context, source, target, title, description string) (*models.MergeRequest, error) {
	opt := &gitlab.CreateMergeRequestOptions{
		Title:        gitlab.Ptr(title),
		SourceBranch: gitlab.Ptr(source),
		TargetBranch: gitlab.Ptr(target),
	}
	if description != "" {
		opt.Description = gitlab.Ptr(description)
	}
	mr, resp, err := c.api.MergeRequests.CreateMergeRequest(c.project, opt, gitlab.WithContext(ctx))
	if err != nil {
		return nil, classify("create merge request", resp, err)
	}
	return &models.MergeRequest{
		IID:          mr.IID,
		Title:        mr.Title,
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		WebURL:       mr.WebURL,
	}, nil
}

func toIssue(issue *gitlab.Issue) *models.Issue {
	return &models.Issue{
		IID:         issue.IID,
		Title:       issue.Title,
		Description: issue.Description,
		State:       issue.State,
		WebURL:      issue.WebURL,
	}
}
