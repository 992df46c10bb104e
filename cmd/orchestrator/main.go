// Package main is the entry point for the orchestrator runtime: it wires the
// database, event bus, PTY manager, and git watcher together, resumes any
// workflow left running across a restart, and blocks until a shutdown signal
// arrives.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/huanchong-99/gitcortex/internal/bus"
	"github.com/huanchong-99/gitcortex/internal/cliagent"
	"github.com/huanchong-99/gitcortex/internal/config"
	"github.com/huanchong-99/gitcortex/internal/dbmodel"
	"github.com/huanchong-99/gitcortex/internal/gitwatcher"
	"github.com/huanchong-99/gitcortex/internal/logger"
	"github.com/huanchong-99/gitcortex/internal/merge"
	"github.com/huanchong-99/gitcortex/internal/orchestrator"
	"github.com/huanchong-99/gitcortex/internal/pty"
	"github.com/huanchong-99/gitcortex/internal/secrets"
	"github.com/huanchong-99/gitcortex/internal/store"
	"github.com/huanchong-99/gitcortex/internal/worktree"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)
	log.Info("starting orchestrator")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, closeDB, err := store.Provide(cfg, log)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer closeDB()
	s := store.NewSQLStore(db)

	providedBus, closeBus, err := bus.Provide(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize event bus", zap.Error(err))
	}
	defer closeBus()
	eventBus := providedBus.Bus

	keyProvider, err := secrets.Provide(cfg)
	if err != nil {
		log.Fatal("failed to load master key", zap.Error(err))
	}
	masterKey := keyProvider.Key()

	worktrees, closeWorktrees, err := worktree.Provide(db.DB, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize worktree manager", zap.Error(err))
	}
	defer closeWorktrees()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatal("failed to resolve home directory", zap.Error(err))
	}
	switcher := cliagent.NewSwitcher(homeDir)

	ptyMgr := pty.NewManager(cfg.PTY.ReplayBufferBytes, log)
	launcher := orchestrator.NewLauncher(s, eventBus, ptyMgr, worktrees, switcher, masterKey, log).
		WithPTYSize(uint16(cfg.PTY.DefaultCols), uint16(cfg.PTY.DefaultRows))

	if cfg.Orchestrator.ReconcileOnStartup {
		if err := launcher.ReconcileOnStartup(ctx); err != nil {
			log.Error("startup reconciliation failed", zap.Error(err))
		}
	}

	mergeCoord := merge.New(s, eventBus)
	watcher := gitwatcher.New(s, eventBus, log).WithInterval(cfg.GitWatcher.PollIntervalDuration())

	agents, err := resumeRunningWorkflows(ctx, s, eventBus, launcher, mergeCoord, watcher, masterKey, log)
	if err != nil {
		log.Fatal("failed to resume running workflows", zap.Error(err))
	}
	defer func() {
		for _, a := range agents {
			a.Stop()
		}
	}()

	log.Info("orchestrator started", zap.Int("resumed_workflows", len(agents)))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down orchestrator")
	cancel()
}

// resumeRunningWorkflows starts one Agent event loop and one git-branch
// watcher goroutine per task for every workflow left in the running state
// (spec §4.15 recovery, §4.12 git watching).
func resumeRunningWorkflows(
	ctx context.Context,
	s store.Store,
	eventBus bus.EventBus,
	launcher *orchestrator.Launcher,
	mergeCoord *merge.Coordinator,
	watcher *gitwatcher.Watcher,
	masterKey []byte,
	log *logger.Logger,
) ([]*orchestrator.Agent, error) {
	workflows, err := s.ListWorkflowsByStatus(ctx, dbmodel.WorkflowStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("list running workflows: %w", err)
	}

	agents := make([]*orchestrator.Agent, 0, len(workflows))
	for _, wf := range workflows {
		a, err := orchestrator.StartAgent(ctx, s, eventBus, launcher, mergeCoord, masterKey, wf.ID, log)
		if err != nil {
			log.Error("failed to resume workflow agent", zap.String("workflow_id", wf.ID), zap.Error(err))
			continue
		}
		agents = append(agents, a)

		project, err := s.GetProject(ctx, wf.ProjectID)
		if err != nil {
			log.Error("failed to load project for git watcher", zap.String("workflow_id", wf.ID), zap.Error(err))
			continue
		}
		tasks, err := s.ListTasksByWorkflow(ctx, wf.ID)
		if err != nil {
			log.Error("failed to list tasks for git watcher", zap.String("workflow_id", wf.ID), zap.Error(err))
			continue
		}
		for _, task := range tasks {
			go watcher.Run(ctx, gitwatcher.Branch{
				WorkflowID: wf.ID,
				TaskID:     task.ID,
				RepoPath:   project.RepoPath,
				BranchName: task.Branch,
			})
		}
	}
	return agents, nil
}
