package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/huanchong-99/gitcortex/internal/bus"
	"github.com/huanchong-99/gitcortex/internal/cliagent"
	"github.com/huanchong-99/gitcortex/internal/dbmodel"
	"github.com/huanchong-99/gitcortex/internal/logger"
	"github.com/huanchong-99/gitcortex/internal/pty"
	"github.com/huanchong-99/gitcortex/internal/store"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "debug", Format: "text", OutputPath: "stdout"})
	require.NoError(t, err)
	return log
}

// shimPATH installs a fake "claude" executable (just execs /bin/cat) ahead of
// the real PATH, so LaunchTerminal's pty.Manager.Spawn has something to run
// without depending on a real CLI binary being installed.
func shimPATH(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	script := "#!/bin/sh\nexec /bin/cat\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "claude"), []byte(script), 0755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func seedWorkflow(t *testing.T, s store.Store) (*dbmodel.Project, *dbmodel.Workflow, *dbmodel.WorkflowTask) {
	t.Helper()
	ctx := context.Background()

	project := &dbmodel.Project{ID: "proj-1", Name: "demo", RepoPath: t.TempDir(), BaseBranch: "main"}
	require.NoError(t, s.CreateProject(ctx, project))

	wf := &dbmodel.Workflow{ID: "wf-1", ProjectID: project.ID, Name: "demo workflow", Status: dbmodel.WorkflowStatusRunning}
	require.NoError(t, s.CreateWorkflow(ctx, wf))

	task := &dbmodel.WorkflowTask{ID: "task-1", WorkflowID: wf.ID, Name: "do the thing", Branch: "workflow/wf-1/do-the-thing", Status: dbmodel.TaskStatusPending, OrderIndex: 0}
	require.NoError(t, s.CreateTask(ctx, task))

	store.SeedModelConfig(s, &dbmodel.ModelConfig{ID: "claude-sonnet-4", Cli: dbmodel.CliClaude, Name: "claude-sonnet-4-20250514", Label: "Claude Sonnet 4", Default: true})

	return project, wf, task
}

func newTestLauncher(t *testing.T, s store.Store) *Launcher {
	t.Helper()
	log := testLogger(t)
	eventBus := bus.NewMemoryEventBus(log)
	ptyMgr := pty.NewManager(4096, log)
	switcher := cliagent.NewSwitcher(t.TempDir())
	masterKey := make([]byte, 32)
	return NewLauncher(s, eventBus, ptyMgr, nil, switcher, masterKey, log)
}

func TestLauncherLaunchTerminalSpawnsAndRecordsBindings(t *testing.T) {
	shimPATH(t)
	s := store.NewMemStore()
	_, _, task := seedWorkflow(t, s)

	term := &dbmodel.Terminal{
		ID:             "term-1",
		WorkflowTaskID: task.ID,
		CliTypeID:      string(dbmodel.CliClaude),
		ModelConfigID:  "claude-sonnet-4",
		Role:           dbmodel.RoleCoder,
		OrderIndex:     0,
		Status:         dbmodel.TerminalStatusNotStarted,
	}
	require.NoError(t, s.CreateTerminal(context.Background(), term))

	l := newTestLauncher(t, s)
	defer l.ptyMgr.Close(term.ID)

	res, err := l.LaunchTerminal(context.Background(), term)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Greater(t, res.ProcessID, 0)
	require.NotEmpty(t, res.PTYSessionID)
	require.True(t, l.ptyMgr.IsAlive(res.PTYSessionID))

	defer res.Bridge.Stop()

	stored, err := s.GetTerminal(context.Background(), term.ID)
	require.NoError(t, err)
	require.Equal(t, dbmodel.TerminalStatusWaiting, stored.Status)
	require.Equal(t, res.ProcessID, stored.ProcessID)
	require.Equal(t, res.PTYSessionID, stored.PTYSessionID)
	require.NotEmpty(t, stored.SessionID)
	require.NotEmpty(t, stored.ExecutionProcessID)
}

func TestLauncherLaunchTerminalFallsBackToProjectRepoWithoutWorktrees(t *testing.T) {
	shimPATH(t)
	s := store.NewMemStore()
	project, _, task := seedWorkflow(t, s)

	term := &dbmodel.Terminal{
		ID:             "term-2",
		WorkflowTaskID: task.ID,
		CliTypeID:      string(dbmodel.CliClaude),
		ModelConfigID:  "claude-sonnet-4",
		Role:           dbmodel.RoleCoder,
	}
	require.NoError(t, s.CreateTerminal(context.Background(), term))

	l := newTestLauncher(t, s)
	defer l.ptyMgr.Close(term.ID)

	workDir, err := l.resolveWorkDir(context.Background(), term, task, project)
	require.NoError(t, err)
	require.Equal(t, project.RepoPath, workDir)
}

func TestLauncherStartTerminalsForWorkflowTransitionsAllToWaiting(t *testing.T) {
	shimPATH(t)
	s := store.NewMemStore()
	_, wf, task := seedWorkflow(t, s)

	for i, id := range []string{"term-a", "term-b"} {
		term := &dbmodel.Terminal{
			ID:             id,
			WorkflowTaskID: task.ID,
			CliTypeID:      string(dbmodel.CliClaude),
			ModelConfigID:  "claude-sonnet-4",
			Role:           dbmodel.RoleCoder,
			OrderIndex:     i,
			Status:         dbmodel.TerminalStatusNotStarted,
		}
		require.NoError(t, s.CreateTerminal(context.Background(), term))
	}

	l := newTestLauncher(t, s)

	require.NoError(t, l.StartTerminalsForWorkflow(context.Background(), wf.ID))

	for _, id := range []string{"term-a", "term-b"} {
		stored, err := s.GetTerminal(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, dbmodel.TerminalStatusWaiting, stored.Status)
	}
}

func TestLauncherStartTerminalsForWorkflowStopsOnSwitchFailure(t *testing.T) {
	s := store.NewMemStore()
	_, wf, task := seedWorkflow(t, s)

	good := &dbmodel.Terminal{ID: "term-good", WorkflowTaskID: task.ID, CliTypeID: string(dbmodel.CliClaude), ModelConfigID: "claude-sonnet-4", OrderIndex: 0}
	require.NoError(t, s.CreateTerminal(context.Background(), good))

	bad := &dbmodel.Terminal{ID: "term-bad", WorkflowTaskID: task.ID, CliTypeID: "not-a-real-cli", ModelConfigID: "claude-sonnet-4", OrderIndex: 1}
	require.NoError(t, s.CreateTerminal(context.Background(), bad))

	l := newTestLauncher(t, s)

	err := l.StartTerminalsForWorkflow(context.Background(), wf.ID)
	require.Error(t, err)

	stored, err := s.GetTerminal(context.Background(), good.ID)
	require.NoError(t, err)
	require.Equal(t, dbmodel.TerminalStatusNotStarted, stored.Status)
}

func TestLauncherReconcileOnStartupResetsDeadProcesses(t *testing.T) {
	s := store.NewMemStore()
	_, _, task := seedWorkflow(t, s)

	alive := &dbmodel.Terminal{ID: "term-alive", WorkflowTaskID: task.ID, CliTypeID: string(dbmodel.CliClaude), ModelConfigID: "claude-sonnet-4", Status: dbmodel.TerminalStatusWorking, ProcessID: os.Getpid()}
	require.NoError(t, s.CreateTerminal(context.Background(), alive))

	stale := &dbmodel.Terminal{ID: "term-stale", WorkflowTaskID: task.ID, CliTypeID: string(dbmodel.CliClaude), ModelConfigID: "claude-sonnet-4", Status: dbmodel.TerminalStatusWaiting, ProcessID: 999999}
	require.NoError(t, s.CreateTerminal(context.Background(), stale))

	notRunning := &dbmodel.Terminal{ID: "term-idle", WorkflowTaskID: task.ID, CliTypeID: string(dbmodel.CliClaude), ModelConfigID: "claude-sonnet-4", Status: dbmodel.TerminalStatusNotStarted}
	require.NoError(t, s.CreateTerminal(context.Background(), notRunning))

	l := newTestLauncher(t, s)
	require.NoError(t, l.ReconcileOnStartup(context.Background()))

	aliveAfter, err := s.GetTerminal(context.Background(), alive.ID)
	require.NoError(t, err)
	require.Equal(t, dbmodel.TerminalStatusWorking, aliveAfter.Status)

	staleAfter, err := s.GetTerminal(context.Background(), stale.ID)
	require.NoError(t, err)
	require.Equal(t, dbmodel.TerminalStatusNotStarted, staleAfter.Status)
	require.Equal(t, 0, staleAfter.ProcessID)

	idleAfter, err := s.GetTerminal(context.Background(), notRunning.ID)
	require.NoError(t, err)
	require.Equal(t, dbmodel.TerminalStatusNotStarted, idleAfter.Status)
}
