// Package merge squash-merges a finished task branch into its workflow's
// target branch and reports the outcome back onto the message bus.
package merge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/huanchong-99/gitcortex/internal/bus"
	"github.com/huanchong-99/gitcortex/internal/dbmodel"
	"github.com/huanchong-99/gitcortex/internal/store"
)

// ConflictError is returned when a squash merge leaves conflicted paths.
// The workflow is left in `merging` for manual resolution.
type ConflictError struct {
	ConflictedPaths []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("merge: conflicts in %d path(s): %s", len(e.ConflictedPaths), strings.Join(e.ConflictedPaths, ", "))
}

// Request describes one merge_task_branch invocation (spec §4.14).
type Request struct {
	WorkflowID       string
	TaskID           string
	TaskBranch       string
	TargetBranch     string
	BaseRepoPath     string
	TaskWorktreePath string
	CommitMessage    string
}

// Coordinator runs squash merges against a repository's base checkout.
type Coordinator struct {
	store store.Store
	bus   bus.EventBus
}

// New returns a Coordinator backed by s and eventBus.
func New(s store.Store, eventBus bus.EventBus) *Coordinator {
	return &Coordinator{store: s, bus: eventBus}
}

// StatusUpdateEvent mirrors the StatusUpdate bus message.
type StatusUpdateEvent struct {
	WorkflowID string                 `json:"workflow_id"`
	Status     dbmodel.WorkflowStatus `json:"status"`
}

// MergeTaskBranch attempts a squash merge of req.TaskBranch into
// req.TargetBranch. On success the workflow transitions to completed and the
// resulting commit SHA is returned. On conflict the workflow transitions to
// merging (awaiting manual resolution) and a *ConflictError is returned. Any
// other git failure fails the workflow.
func (c *Coordinator) MergeTaskBranch(ctx context.Context, req Request) (string, error) {
	if err := c.run(ctx, req.BaseRepoPath, "fetch", req.TaskWorktreePath, req.TaskBranch); err != nil {
		return "", c.fail(ctx, req.WorkflowID, fmt.Errorf("merge: fetch task branch: %w", err))
	}

	if err := c.run(ctx, req.BaseRepoPath, "checkout", req.TargetBranch); err != nil {
		return "", c.fail(ctx, req.WorkflowID, fmt.Errorf("merge: checkout target branch: %w", err))
	}

	mergeErr := c.run(ctx, req.BaseRepoPath, "merge", "--squash", "FETCH_HEAD")
	if mergeErr != nil {
		paths := c.conflictedPaths(ctx, req.BaseRepoPath)
		if len(paths) > 0 {
			_ = c.run(ctx, req.BaseRepoPath, "merge", "--abort")
			if err := c.store.UpdateWorkflowStatus(ctx, req.WorkflowID, dbmodel.WorkflowStatusMerging); err != nil {
				return "", fmt.Errorf("merge: mark workflow %s merging: %w", req.WorkflowID, err)
			}
			c.broadcastStatus(ctx, req.WorkflowID, dbmodel.WorkflowStatusMerging)
			return "", &ConflictError{ConflictedPaths: paths}
		}
		return "", c.fail(ctx, req.WorkflowID, fmt.Errorf("merge: squash merge failed: %w", mergeErr))
	}

	if err := c.run(ctx, req.BaseRepoPath, "commit", "-m", req.CommitMessage); err != nil {
		return "", c.fail(ctx, req.WorkflowID, fmt.Errorf("merge: commit squashed changes: %w", err))
	}

	sha, err := c.output(ctx, req.BaseRepoPath, "rev-parse", "HEAD")
	if err != nil {
		return "", c.fail(ctx, req.WorkflowID, fmt.Errorf("merge: resolve merge commit sha: %w", err))
	}
	sha = strings.TrimSpace(sha)

	if err := c.store.UpdateWorkflowStatus(ctx, req.WorkflowID, dbmodel.WorkflowStatusCompleted); err != nil {
		return "", fmt.Errorf("merge: mark workflow %s completed: %w", req.WorkflowID, err)
	}
	c.broadcastStatus(ctx, req.WorkflowID, dbmodel.WorkflowStatusCompleted)
	return sha, nil
}

// ResolveAndCompleteMerge acknowledges an externally resolved merge conflict
// and transitions the workflow to completed.
func (c *Coordinator) ResolveAndCompleteMerge(ctx context.Context, workflowID, taskID, commitSHA string) error {
	if err := c.store.UpdateWorkflowStatus(ctx, workflowID, dbmodel.WorkflowStatusCompleted); err != nil {
		return fmt.Errorf("merge: mark workflow %s completed: %w", workflowID, err)
	}
	c.broadcastStatus(ctx, workflowID, dbmodel.WorkflowStatusCompleted)
	return nil
}

func (c *Coordinator) fail(ctx context.Context, workflowID string, cause error) error {
	if err := c.store.UpdateWorkflowStatus(ctx, workflowID, dbmodel.WorkflowStatusFailed); err != nil {
		return fmt.Errorf("merge: mark workflow %s failed after %v: %w", workflowID, cause, err)
	}
	data, _ := bus.Encode(map[string]string{"workflow_id": workflowID, "error": cause.Error()})
	evt := bus.NewEvent(bus.EventError, "merge-coordinator", data)
	_ = c.bus.Publish(ctx, bus.WorkflowTopic(workflowID), evt)
	return cause
}

func (c *Coordinator) broadcastStatus(ctx context.Context, workflowID string, status dbmodel.WorkflowStatus) {
	data, err := bus.Encode(StatusUpdateEvent{WorkflowID: workflowID, Status: status})
	if err != nil {
		return
	}
	evt := bus.NewEvent(bus.EventStatusUpdate, "merge-coordinator", data)
	_ = c.bus.Publish(ctx, bus.WorkflowTopic(workflowID), evt)
}

func (c *Coordinator) run(ctx context.Context, repoPath string, args ...string) error {
	cmd := c.gitCmd(ctx, repoPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

func (c *Coordinator) output(ctx context.Context, repoPath string, args ...string) (string, error) {
	cmd := c.gitCmd(ctx, repoPath, args...)
	out, err := cmd.Output()
	return string(out), err
}

func (c *Coordinator) gitCmd(ctx context.Context, repoPath string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoPath
	cmd.Env = append(os.Environ(),
		"GIT_TERMINAL_PROMPT=0",
		"GIT_ASKPASS=echo",
		"SSH_ASKPASS=/bin/false",
	)
	cmd.WaitDelay = 500 * time.Millisecond
	return cmd
}

func (c *Coordinator) conflictedPaths(ctx context.Context, repoPath string) []string {
	out, err := c.output(ctx, repoPath, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil
	}
	var paths []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paths = append(paths, line)
		}
	}
	return paths
}

// ErrNoTaskBranch is returned by callers that validate a Request before
// invoking MergeTaskBranch.
var ErrNoTaskBranch = errors.New("merge: task branch is required")
