package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/huanchong-99/gitcortex/internal/bus"
	"github.com/huanchong-99/gitcortex/internal/cliagent"
	"github.com/huanchong-99/gitcortex/internal/cliregistry"
	"github.com/huanchong-99/gitcortex/internal/dbmodel"
	"github.com/huanchong-99/gitcortex/internal/logger"
	"github.com/huanchong-99/gitcortex/internal/prompt"
	"github.com/huanchong-99/gitcortex/internal/pty"
	"github.com/huanchong-99/gitcortex/internal/secrets"
	"github.com/huanchong-99/gitcortex/internal/store"
	"github.com/huanchong-99/gitcortex/internal/worktree"
)

// activeStatuses are the Terminal states startup reconciliation treats as
// "was running before the process exited" (spec §4.8).
var activeStatuses = map[dbmodel.TerminalStatus]bool{
	dbmodel.TerminalStatusStarting: true,
	dbmodel.TerminalStatusStarted:  true,
	dbmodel.TerminalStatusWaiting:  true,
	dbmodel.TerminalStatusWorking:  true,
}

// LaunchResult is returned by LaunchTerminal once a terminal's PTY is live.
type LaunchResult struct {
	Terminal     *dbmodel.Terminal
	PTYSessionID string
	ProcessID    int
	Bridge       *Bridge
	Watcher      *prompt.Watcher
}

// Launcher drives §4.8: the cc-switch serial phase, the waiting-transition
// parallel phase, and per-terminal PTY spawn plus bridge/prompt-watcher
// registration.
type Launcher struct {
	store     store.Store
	bus       bus.EventBus
	ptyMgr    *pty.Manager
	worktrees *worktree.Manager
	switcher  *cliagent.Switcher
	masterKey []byte
	log       *logger.Logger

	ptyCols uint16
	ptyRows uint16
}

// NewLauncher returns a Launcher. masterKey decrypts terminals' custom API
// keys (internal/secrets); worktrees may be nil-disabled (IsEnabled false),
// in which case LaunchTerminal runs terminals directly in the project's
// checkout.
func NewLauncher(s store.Store, eventBus bus.EventBus, ptyMgr *pty.Manager, worktrees *worktree.Manager, switcher *cliagent.Switcher, masterKey []byte, log *logger.Logger) *Launcher {
	return &Launcher{
		store:     s,
		bus:       eventBus,
		ptyMgr:    ptyMgr,
		worktrees: worktrees,
		switcher:  switcher,
		masterKey: masterKey,
		log:       log,
		ptyCols:   80,
		ptyRows:   24,
	}
}

// WithPTYSize overrides the default spawn dimensions.
func (l *Launcher) WithPTYSize(cols, rows uint16) *Launcher {
	l.ptyCols, l.ptyRows = cols, rows
	return l
}

// StartTerminalsForWorkflow runs the serial cc-switch phase over every
// terminal in the workflow's tasks (ordered by task then terminal
// order_index), stopping at the first switch failure and leaving
// un-switched terminals untouched, then transitions every switched terminal
// to waiting in a parallel phase (spec §4.8).
func (l *Launcher) StartTerminalsForWorkflow(ctx context.Context, workflowID string) error {
	tasks, err := l.store.ListTasksByWorkflow(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("orchestrator: list tasks for workflow %s: %w", workflowID, err)
	}

	var ordered []*dbmodel.Terminal
	for _, task := range tasks {
		terms, err := l.store.ListTerminalsByTask(ctx, task.ID)
		if err != nil {
			return fmt.Errorf("orchestrator: list terminals for task %s: %w", task.ID, err)
		}
		ordered = append(ordered, terms...)
	}

	switched := make([]*dbmodel.Terminal, 0, len(ordered))
	for _, t := range ordered {
		if err := l.switchForTerminal(ctx, t); err != nil {
			return fmt.Errorf("orchestrator: cc-switch terminal %s: %w", t.ID, err)
		}
		switched = append(switched, t)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range switched {
		t := t
		g.Go(func() error {
			return l.markWaiting(gctx, workflowID, t)
		})
	}
	return g.Wait()
}

func (l *Launcher) switchForTerminal(ctx context.Context, t *dbmodel.Terminal) error {
	cli, err := l.store.GetCliType(ctx, t.CliTypeID)
	if err != nil {
		return fmt.Errorf("resolve cli type: %w", err)
	}
	model, err := l.store.GetModelConfig(ctx, t.ModelConfigID)
	if err != nil {
		return fmt.Errorf("resolve model config: %w", err)
	}

	var apiKey string
	if len(t.EncryptedAPIKey) > 0 {
		plain, err := secrets.Decrypt(t.EncryptedAPIKey, t.APIKeyNonce, l.masterKey, []byte(t.ID))
		if err != nil {
			return fmt.Errorf("decrypt terminal api key: %w", err)
		}
		apiKey = string(plain)
	}

	return l.switcher.Switch(cli, cliagent.SwitchConfig{
		BaseURL: t.CustomBaseURL,
		APIKey:  apiKey,
		Model:   model.Name,
	})
}

func (l *Launcher) markWaiting(ctx context.Context, workflowID string, t *dbmodel.Terminal) error {
	return BroadcastTerminalStatus(ctx, l.store, l.bus, workflowID, t.ID, dbmodel.TerminalStatusWaiting)
}

// LaunchTerminal spawns t's PTY process, records its process bindings,
// registers its bridge and prompt watcher, and returns once the PTY is
// running (spec §4.8). Actual instruction delivery happens later, driven by
// the orchestrator event loop via the bridge.
func (l *Launcher) LaunchTerminal(ctx context.Context, t *dbmodel.Terminal) (*LaunchResult, error) {
	task, err := l.store.GetTask(ctx, t.WorkflowTaskID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load task %s: %w", t.WorkflowTaskID, err)
	}
	wf, err := l.store.GetWorkflow(ctx, task.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load workflow %s: %w", task.WorkflowID, err)
	}
	project, err := l.store.GetProject(ctx, wf.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load project %s: %w", wf.ProjectID, err)
	}

	cli, err := l.store.GetCliType(ctx, t.CliTypeID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: resolve cli type for terminal %s: %w", t.ID, err)
	}
	descriptor, err := cliregistry.Lookup(cli)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	workDir, err := l.resolveWorkDir(ctx, t, task, project)
	if err != nil {
		return nil, err
	}

	if err := l.store.UpdateTerminalStatus(ctx, t.ID, dbmodel.TerminalStatusStarting); err != nil {
		return nil, fmt.Errorf("orchestrator: mark terminal %s starting: %w", t.ID, err)
	}

	ptySessionID := uuid.New().String()
	pid, err := l.ptyMgr.Spawn(ptySessionID, pty.SpawnOptions{
		Command: descriptor.Executable,
		Args:    descriptor.Args,
		Dir:     workDir,
		Cols:    l.ptyCols,
		Rows:    l.ptyRows,
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: spawn terminal %s: %w", t.ID, err)
	}

	sessionID := uuid.New().String()
	executionProcessID := uuid.New().String()
	if err := l.store.UpdateTerminalProcess(ctx, t.ID, pid, ptySessionID, sessionID, executionProcessID); err != nil {
		return nil, fmt.Errorf("orchestrator: record process bindings for terminal %s: %w", t.ID, err)
	}
	if err := BroadcastTerminalStatus(ctx, l.store, l.bus, task.WorkflowID, t.ID, dbmodel.TerminalStatusWaiting); err != nil {
		return nil, fmt.Errorf("orchestrator: mark terminal %s waiting: %w", t.ID, err)
	}

	bridge, err := StartBridge(ptySessionID, l.ptyMgr, l.bus, l.log)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: start bridge for terminal %s: %w", t.ID, err)
	}
	go bridge.WatchAndStop(bridgeLivenessPoll)

	watcher := prompt.NewWatcher(t.ID, task.WorkflowID, l.ptyMgr, l.bus, l.log).
		WithScreenSize(int(l.ptyCols), int(l.ptyRows))
	go watcher.Run(ctx)

	t.Status = dbmodel.TerminalStatusWaiting
	t.ProcessID = pid
	t.PTYSessionID = ptySessionID
	t.SessionID = sessionID
	t.ExecutionProcessID = executionProcessID

	return &LaunchResult{
		Terminal:     t,
		PTYSessionID: ptySessionID,
		ProcessID:    pid,
		Bridge:       bridge,
		Watcher:      watcher,
	}, nil
}

// resolveWorkDir creates (or reuses) t's worktree when worktree mode is
// enabled, otherwise falls back to the project's own checkout.
func (l *Launcher) resolveWorkDir(ctx context.Context, t *dbmodel.Terminal, task *dbmodel.WorkflowTask, project *dbmodel.Project) (string, error) {
	if l.worktrees == nil || !l.worktrees.IsEnabled() {
		return project.RepoPath, nil
	}

	wt, err := l.worktrees.Create(ctx, worktree.CreateRequest{
		SessionID:      t.ID,
		TaskID:         task.ID,
		TaskTitle:      task.Name,
		RepositoryID:   project.ID,
		RepositoryPath: project.RepoPath,
		BaseBranch:     project.BaseBranch,
	})
	if err != nil {
		return "", fmt.Errorf("orchestrator: create worktree for terminal %s: %w", t.ID, err)
	}
	return wt.Path, nil
}

// ReconcileOnStartup resets terminals left in an active state by a process
// that exited without a clean shutdown: any terminal whose recorded
// process_id is no longer alive is reset to not_started (spec §4.8).
func (l *Launcher) ReconcileOnStartup(ctx context.Context) error {
	terms, err := l.store.ListActiveTerminals(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator: list active terminals for reconciliation: %w", err)
	}
	for _, t := range terms {
		if !activeStatuses[t.Status] {
			continue
		}
		if processAlive(t.ProcessID) {
			continue
		}
		if err := l.store.ResetTerminalProcess(ctx, t.ID); err != nil {
			return fmt.Errorf("orchestrator: reset terminal %s: %w", t.ID, err)
		}
		if l.log != nil {
			l.log.Info("reconciled stale terminal on startup", zap.String("terminal_id", t.ID), zap.Int("stale_pid", t.ProcessID))
		}
	}
	return nil
}
