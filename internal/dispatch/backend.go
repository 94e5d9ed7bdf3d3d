package dispatch

import (
	"context"

	"github.com/gitlabassist/pkg/models"
)

// Backend is the subset of the repository hosting API the dispatcher needs.
// Implementations return *models.OperationError values so failures can be
// classified; anything else is treated as transient.
type Backend interface {
	ReadFile(ctx context.Context, path, ref string) (string, error)
	CreateFile(ctx context.Context, path, branch, content, message string) error
	// UpdateFile replaces the whole file content.
	UpdateFile(ctx context.Context, path, branch, content, message string) error
	// ReplaceInFile swaps oldContent for newContent inside the file.
	ReplaceInFile(ctx context.Context, path, branch, oldContent, newContent, message string) error
	DeleteFile(ctx context.Context, path, branch, message string) error
	ListFiles(ctx context.Context, path, ref string) ([]models.TreeEntry, error)

	CreateIssue(ctx context.Context, project, title, description string) (*models.Issue, error)
	GetIssue(ctx context.Context, iid int) (*models.Issue, error)
	ListIssues(ctx context.Context) ([]models.Issue, error)
	CommentOnIssue(ctx context.Context, iid int, body string) (*models.Note, error)

	ListBranches(ctx context.Context) ([]string, error)
	BranchExists(ctx context.Context, name string) (bool, error)
	CreateBranch(ctx context.Context, name, ref string) error
	DeleteBranch(ctx context.Context, name string) error

	CreateMergeRequest(ctx context.Context, source, target, title, description string) (*models.MergeRequest, error)
}
