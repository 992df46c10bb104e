// Package store provides typed, driver-agnostic access to the runtime's
// persisted entities. sqlStore is the default (sqlx over the SQLite or
// Postgres connection opened by internal/store/db); memStore backs unit tests that need a
// Store without a real database.
package store

import (
	"context"
	"errors"

	"github.com/huanchong-99/gitcortex/internal/dbmodel"
)

// ErrNotFound is returned when a lookup by ID finds no row.
var ErrNotFound = errors.New("store: not found")

// Store is typed access to workflow/task/terminal/git-event/registry
// records. Implementations must not swallow errors (spec §7 propagation
// policy): they return driver errors wrapped with context, never nil-out a
// failure.
type Store interface {
	CreateProject(ctx context.Context, p *dbmodel.Project) error
	GetProject(ctx context.Context, id string) (*dbmodel.Project, error)

	CreateWorkflow(ctx context.Context, w *dbmodel.Workflow) error
	GetWorkflow(ctx context.Context, id string) (*dbmodel.Workflow, error)
	ListWorkflowsByStatus(ctx context.Context, status dbmodel.WorkflowStatus) ([]*dbmodel.Workflow, error)
	UpdateWorkflowStatus(ctx context.Context, id string, status dbmodel.WorkflowStatus) error
	SaveWorkflowState(ctx context.Context, id string, state []byte) error
	LoadWorkflowState(ctx context.Context, id string) ([]byte, error)
	ClearWorkflowState(ctx context.Context, id string) error

	CreateTask(ctx context.Context, t *dbmodel.WorkflowTask) error
	GetTask(ctx context.Context, id string) (*dbmodel.WorkflowTask, error)
	ListTasksByWorkflow(ctx context.Context, workflowID string) ([]*dbmodel.WorkflowTask, error)
	UpdateTaskStatus(ctx context.Context, id string, status dbmodel.TaskStatus) error

	CreateTerminal(ctx context.Context, t *dbmodel.Terminal) error
	GetTerminal(ctx context.Context, id string) (*dbmodel.Terminal, error)
	ListTerminalsByTask(ctx context.Context, taskID string) ([]*dbmodel.Terminal, error)
	ListTerminalsByWorkflow(ctx context.Context, workflowID string) ([]*dbmodel.Terminal, error)
	ListActiveTerminals(ctx context.Context) ([]*dbmodel.Terminal, error)
	UpdateTerminalStatus(ctx context.Context, id string, status dbmodel.TerminalStatus) error
	UpdateTerminalProcess(ctx context.Context, id string, processID int, ptySessionID, sessionID, executionProcessID string) error
	UpdateTerminalLastCommit(ctx context.Context, id, commitHash, commitMessage string) error
	ResetTerminalProcess(ctx context.Context, id string) error

	CreateGitEvent(ctx context.Context, e *dbmodel.GitEvent) error
	GetGitEventByCommit(ctx context.Context, workflowID, commitHash string) (*dbmodel.GitEvent, error)
	UpdateGitEvent(ctx context.Context, e *dbmodel.GitEvent) error

	GetCliType(ctx context.Context, id string) (dbmodel.CliType, error)
	GetModelConfig(ctx context.Context, id string) (*dbmodel.ModelConfig, error)
	ListModelConfigs(ctx context.Context, cli dbmodel.CliType) ([]*dbmodel.ModelConfig, error)

	Close() error
}
