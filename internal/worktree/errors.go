// Package worktree provisions and tears down one Git worktree per task
// branch, so concurrent terminals never share a working directory.
package worktree

import "github.com/huanchong-99/gitcortex/internal/apierr"

// ErrWorktreeNotFound is returned when the requested worktree record does
// not exist in the store. GetByID and GetBySessionID return it unwrapped;
// apierr.Is also matches it by code through any later wrapping.
var ErrWorktreeNotFound = apierr.New(apierr.WorktreeNotFound, "worktree not found")

// ErrRepoNotGit is returned when a worktree was requested against a path
// that is not a Git checkout.
var ErrRepoNotGit = apierr.New(apierr.RepoNotGit, "repository is not a git repository")

// ErrInvalidBaseBranch is returned when the requested base branch does not
// exist in the repository at worktree-creation time.
var ErrInvalidBaseBranch = apierr.New(apierr.InvalidBaseBranch, "base branch does not exist")

// ErrGitCommandFailed is returned when a `git worktree` subcommand exits
// non-zero; the command's combined output is appended by the caller.
var ErrGitCommandFailed = apierr.New(apierr.GitCommandFailed, "git command failed")
