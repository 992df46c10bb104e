// Package gitwatcher polls task branches for new commits, parses the
// trailing `---METADATA---` JSON block, and publishes TerminalCompleted
// events for the orchestrator agent to consume (spec §4.12).
package gitwatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/huanchong-99/gitcortex/internal/bus"
	"github.com/huanchong-99/gitcortex/internal/dbmodel"
	"github.com/huanchong-99/gitcortex/internal/logger"
	"github.com/huanchong-99/gitcortex/internal/store"
)

// metadataMarker is the exact line that separates free-form commit text from
// the JSON metadata block (spec §6, bit-exact format).
const metadataMarker = "---METADATA---"

// DefaultPollInterval is the watcher's default branch-HEAD poll cadence.
const DefaultPollInterval = time.Second

// TerminalCompletedEvent is published on workflow:{workflow_id} once a
// commit's metadata has been parsed successfully.
type TerminalCompletedEvent struct {
	WorkflowID string                          `json:"workflow_id"`
	TaskID     string                          `json:"task_id"`
	TerminalID string                          `json:"terminal_id"`
	CommitHash string                          `json:"commit_hash"`
	Status     dbmodel.TerminalCompletionStatus `json:"status"`
}

// Branch identifies one task branch the watcher polls for a workflow.
type Branch struct {
	WorkflowID string
	TaskID     string
	RepoPath   string
	BranchName string
}

// Watcher polls a set of branches and reacts to new commits.
type Watcher struct {
	store    store.Store
	bus      bus.EventBus
	log      *logger.Logger
	interval time.Duration
}

// New returns a Watcher polling at DefaultPollInterval; override with WithInterval.
func New(s store.Store, eventBus bus.EventBus, log *logger.Logger) *Watcher {
	return &Watcher{store: s, bus: eventBus, log: log, interval: DefaultPollInterval}
}

// WithInterval overrides the poll cadence.
func (w *Watcher) WithInterval(d time.Duration) *Watcher {
	w.interval = d
	return w
}

// Run polls branch's HEAD until ctx is cancelled, processing any new commit.
func (w *Watcher) Run(ctx context.Context, branch Branch) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var lastSeen string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			head, err := headCommit(ctx, branch.RepoPath, branch.BranchName)
			if err != nil {
				if w.log != nil {
					w.log.Debug("gitwatcher: head lookup failed", zap.String("branch", branch.BranchName), zap.Error(err))
				}
				continue
			}
			if head == "" || head == lastSeen {
				continue
			}
			lastSeen = head
			if err := w.processCommit(ctx, branch, head); err != nil && w.log != nil {
				w.log.Warn("gitwatcher: process commit failed", zap.String("commit", head), zap.Error(err))
			}
		}
	}
}

func (w *Watcher) processCommit(ctx context.Context, branch Branch, commitHash string) error {
	if existing, err := w.store.GetGitEventByCommit(ctx, branch.WorkflowID, commitHash); err == nil && existing != nil {
		return nil
	}

	message, err := commitMessage(ctx, branch.RepoPath, commitHash)
	if err != nil {
		return fmt.Errorf("gitwatcher: read commit message: %w", err)
	}

	event := &dbmodel.GitEvent{
		ID:            uuid.New().String(),
		WorkflowID:    branch.WorkflowID,
		CommitHash:    commitHash,
		Branch:        branch.BranchName,
		CommitMessage: message,
		ProcessStatus: dbmodel.GitEventPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := w.store.CreateGitEvent(ctx, event); err != nil {
		return fmt.Errorf("gitwatcher: record git event: %w", err)
	}

	meta, parseErr := ParseCommitMetadata(message)
	if parseErr != nil {
		event.ProcessStatus = dbmodel.GitEventFailed
		event.AgentResponse = parseErr.Error()
		if err := w.store.UpdateGitEvent(ctx, event); err != nil {
			return fmt.Errorf("gitwatcher: mark git event failed: %w", err)
		}
		return nil
	}

	metaBlob, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("gitwatcher: marshal commit metadata: %w", err)
	}

	event.TerminalID = meta.TerminalID
	event.Metadata = metaBlob
	event.ProcessStatus = dbmodel.GitEventProcessing
	if err := w.store.UpdateGitEvent(ctx, event); err != nil {
		return fmt.Errorf("gitwatcher: update git event: %w", err)
	}

	completion := translateStatus(meta.Status)
	data, err := bus.Encode(TerminalCompletedEvent{
		WorkflowID: branch.WorkflowID,
		TaskID:     meta.TaskID,
		TerminalID: meta.TerminalID,
		CommitHash: commitHash,
		Status:     completion,
	})
	if err != nil {
		return fmt.Errorf("gitwatcher: encode completion event: %w", err)
	}
	evt := bus.NewEvent(bus.EventTerminalCompleted, "git-watcher", data)
	return w.bus.Publish(ctx, bus.WorkflowTopic(branch.WorkflowID), evt)
}

func translateStatus(status string) dbmodel.TerminalCompletionStatus {
	switch status {
	case "completed":
		return dbmodel.CompletionCompleted
	case "review_pass":
		return dbmodel.CompletionReviewPass
	case "review_reject":
		return dbmodel.CompletionReviewReject
	default:
		return dbmodel.CompletionFailed
	}
}

func headCommit(ctx context.Context, repoPath, branch string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", branch)
	cmd.Dir = repoPath
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func commitMessage(ctx context.Context, repoPath, commitHash string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "log", "-1", "--format=%B", commitHash)
	cmd.Dir = repoPath
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}
