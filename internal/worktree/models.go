package worktree

import (
	"context"
	"fmt"
	"time"
)

// Worktree lifecycle states.
const (
	StatusActive  = "active"
	StatusDeleted = "deleted"
)

// Worktree is a Git worktree checked out for one task's terminal chain.
// SessionID identifies the terminal (or terminal group) the worktree was
// created for; TaskID is the owning WorkflowTask.
type Worktree struct {
	ID             string
	SessionID      string
	TaskID         string
	RepositoryID   string
	RepositoryPath string
	Path           string
	Branch         string
	BaseBranch     string
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	MergedAt       *time.Time
	DeletedAt      *time.Time
}

// CreateRequest describes a worktree to create or reuse.
type CreateRequest struct {
	// SessionID identifies the caller requesting the worktree (e.g. a
	// terminal ID); used to dedupe repeated Create calls for the same
	// terminal. Optional.
	SessionID string

	// WorktreeID, if set, asks Create to reuse a specific prior worktree
	// record (session resumption after a restart).
	WorktreeID string

	TaskID         string
	TaskTitle      string
	RepositoryID   string
	RepositoryPath string
	BaseBranch     string

	// WorktreeBranchPrefix overrides the configured default branch prefix
	// for this request; empty falls back to Config.BranchPrefix.
	WorktreeBranchPrefix string

	// PullBeforeWorktree fetches/pulls the base branch before branching,
	// so the new worktree starts from the latest upstream commit.
	PullBeforeWorktree bool
}

// Validate checks the required fields of a CreateRequest.
func (r *CreateRequest) Validate() error {
	if r.TaskID == "" {
		return fmt.Errorf("worktree: task id is required")
	}
	if r.RepositoryPath == "" {
		return ErrRepoNotGit
	}
	if r.BaseBranch == "" {
		return ErrInvalidBaseBranch
	}
	return nil
}

// Repository carries the information the worktree manager needs from a
// repository beyond its local checkout path.
type Repository struct {
	ID            string
	SetupScript   string
	CleanupScript string
}

// RepositoryProvider resolves repository metadata (e.g. setup/cleanup
// scripts) for a worktree's owning repository. No SPEC_FULL component
// currently supplies one: repositories in this runtime (dbmodel.Project)
// carry no per-repository script fields, so Manager's repoProvider stays
// nil and runWorktreeSetupScript/runWorktreeCleanupScript are no-ops.
type RepositoryProvider interface {
	GetRepository(ctx context.Context, repositoryID string) (*Repository, error)
}

// ScriptExecutionRequest describes a setup or cleanup script invocation
// against a freshly created or about-to-be-removed worktree.
type ScriptExecutionRequest struct {
	SessionID    string
	TaskID       string
	RepositoryID string
	Script       string
	WorkingDir   string
	ScriptType   string // "setup" or "cleanup"
}
