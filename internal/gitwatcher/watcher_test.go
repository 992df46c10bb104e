package gitwatcher

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/huanchong-99/gitcortex/internal/bus"
	"github.com/huanchong-99/gitcortex/internal/logger"
	"github.com/huanchong-99/gitcortex/internal/store"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "json"})
	require.NoError(t, err)
	return log
}

func initRepo(t *testing.T, dir string) {
	t.Helper()
	runGit(t, dir, "init", "-q")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "test")
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	return string(out)
}

func commitWithMessage(t *testing.T, dir, filename, message string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(filename), 0o644))
	runGit(t, dir, "add", filename)
	runGit(t, dir, "commit", "-q", "-m", message)
}

func TestWatcherProcessesValidMetadataCommit(t *testing.T) {
	dir := t.TempDir()
	initRepo(t, dir)
	commitWithMessage(t, dir, "a.txt", "initial")
	commitWithMessage(t, dir, "b.txt",
		"implement feature\n\n---METADATA---\n"+
			`{"workflowId":"wf-1","taskId":"task-1","terminalId":"term-1","status":"completed"}`)

	s := store.NewMemStore()
	eventBus := bus.NewMemoryEventBus(newTestLogger(t))

	var received *TerminalCompletedEvent
	done := make(chan struct{})
	_, err := eventBus.Subscribe(bus.WorkflowTopic("wf-1"), func(_ context.Context, evt *bus.Event) error {
		if evt.Type != bus.EventTerminalCompleted {
			return nil
		}
		var payload TerminalCompletedEvent
		if err := bus.Decode(evt.Data, &payload); err != nil {
			return err
		}
		received = &payload
		close(done)
		return nil
	})
	require.NoError(t, err)

	w := New(s, eventBus, newTestLogger(t)).WithInterval(20 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go w.Run(ctx, Branch{WorkflowID: "wf-1", TaskID: "task-1", RepoPath: dir, BranchName: "HEAD"})

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("timed out waiting for terminal_completed event")
	}

	require.Equal(t, "term-1", received.TerminalID)
	require.Equal(t, "task-1", received.TaskID)
	require.Equal(t, "completed", string(received.Status))
}

func TestWatcherMarksGitEventFailedOnMissingMetadata(t *testing.T) {
	dir := t.TempDir()
	initRepo(t, dir)
	commitWithMessage(t, dir, "a.txt", "no metadata here")

	s := store.NewMemStore()
	eventBus := bus.NewMemoryEventBus(newTestLogger(t))

	head := runGit(t, dir, "rev-parse", "HEAD")
	head = head[:len(head)-1]

	w := New(s, eventBus, newTestLogger(t))
	require.NoError(t, w.processCommit(context.Background(), Branch{
		WorkflowID: "wf-2", TaskID: "task-2", RepoPath: dir, BranchName: "HEAD",
	}, head))

	event, err := s.GetGitEventByCommit(context.Background(), "wf-2", head)
	require.NoError(t, err)
	require.NotNil(t, event)
	require.Equal(t, "failed", string(event.ProcessStatus))
}

func TestWatcherSkipsAlreadyRecordedCommit(t *testing.T) {
	dir := t.TempDir()
	initRepo(t, dir)
	commitWithMessage(t, dir, "a.txt",
		"done\n---METADATA---\n"+
			`{"workflowId":"wf-3","taskId":"task-3","terminalId":"term-3","status":"completed"}`)

	head := runGit(t, dir, "rev-parse", "HEAD")
	head = head[:len(head)-1]

	s := store.NewMemStore()
	eventBus := bus.NewMemoryEventBus(newTestLogger(t))
	w := New(s, eventBus, newTestLogger(t))

	branch := Branch{WorkflowID: "wf-3", TaskID: "task-3", RepoPath: dir, BranchName: "HEAD"}
	require.NoError(t, w.processCommit(context.Background(), branch, head))
	require.NoError(t, w.processCommit(context.Background(), branch, head))

	events, err := s.GetGitEventByCommit(context.Background(), "wf-3", head)
	require.NoError(t, err)
	require.Equal(t, "processing", string(events.ProcessStatus))
}
