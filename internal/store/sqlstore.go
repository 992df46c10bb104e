package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/huanchong-99/gitcortex/internal/dbmodel"
)

// sqlStore is the sqlx-backed Store implementation. It runs unmodified
// against both the sqlite3 and pgx drivers: sqlx.Rebind translates `?`
// placeholders to `$1`-style ones for postgres, and every column type used
// here (TEXT, INTEGER, BOOLEAN, BLOB/BYTEA, TIMESTAMP[TZ]) has a portable
// Go-side representation.
type sqlStore struct {
	db *sqlx.DB
}

// NewSQLStore wraps an already-migrated *sqlx.DB (see Provide) as a Store.
func NewSQLStore(db *sqlx.DB) Store {
	return &sqlStore{db: db}
}

func (s *sqlStore) exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	return err
}

func (s *sqlStore) get(ctx context.Context, dest any, query string, args ...any) error {
	err := s.db.GetContext(ctx, dest, s.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *sqlStore) CreateProject(ctx context.Context, p *dbmodel.Project) error {
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO projects
		(id, name, repo_path, base_branch, created_at, updated_at)
		VALUES (:id, :name, :repo_path, :base_branch, :created_at, :updated_at)`, p)
	return err
}

func (s *sqlStore) GetProject(ctx context.Context, id string) (*dbmodel.Project, error) {
	var p dbmodel.Project
	if err := s.get(ctx, &p, `SELECT * FROM projects WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *sqlStore) CreateWorkflow(ctx context.Context, w *dbmodel.Workflow) error {
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO workflows
		(id, project_id, name, status, use_slash_commands, orchestrator_enabled,
		 orchestrator_api_type, orchestrator_base_url, orchestrator_model,
		 encrypted_api_key, api_key_nonce, error_terminal_enabled,
		 error_terminal_cli_id, error_terminal_model_id, merge_terminal_cli_id,
		 merge_terminal_model_id, target_branch, orchestrator_state,
		 created_at, updated_at, ready_at, started_at, completed_at)
		VALUES (:id, :project_id, :name, :status, :use_slash_commands, :orchestrator_enabled,
		 :orchestrator_api_type, :orchestrator_base_url, :orchestrator_model,
		 :encrypted_api_key, :api_key_nonce, :error_terminal_enabled,
		 :error_terminal_cli_id, :error_terminal_model_id, :merge_terminal_cli_id,
		 :merge_terminal_model_id, :target_branch, :orchestrator_state,
		 :created_at, :updated_at, :ready_at, :started_at, :completed_at)`, w)
	return err
}

func (s *sqlStore) GetWorkflow(ctx context.Context, id string) (*dbmodel.Workflow, error) {
	var w dbmodel.Workflow
	if err := s.get(ctx, &w, `SELECT * FROM workflows WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *sqlStore) ListWorkflowsByStatus(ctx context.Context, status dbmodel.WorkflowStatus) ([]*dbmodel.Workflow, error) {
	var wfs []*dbmodel.Workflow
	err := s.db.SelectContext(ctx, &wfs, s.db.Rebind(`SELECT * FROM workflows WHERE status = ?`), status)
	return wfs, err
}

func (s *sqlStore) UpdateWorkflowStatus(ctx context.Context, id string, status dbmodel.WorkflowStatus) error {
	return s.exec(ctx, `UPDATE workflows SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
}

func (s *sqlStore) SaveWorkflowState(ctx context.Context, id string, state []byte) error {
	return s.exec(ctx, `UPDATE workflows SET orchestrator_state = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, state, id)
}

func (s *sqlStore) LoadWorkflowState(ctx context.Context, id string) ([]byte, error) {
	var state []byte
	err := s.db.GetContext(ctx, &state, s.db.Rebind(`SELECT orchestrator_state FROM workflows WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return state, err
}

func (s *sqlStore) ClearWorkflowState(ctx context.Context, id string) error {
	return s.exec(ctx, `UPDATE workflows SET orchestrator_state = NULL WHERE id = ?`, id)
}

func (s *sqlStore) CreateTask(ctx context.Context, t *dbmodel.WorkflowTask) error {
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO workflow_tasks
		(id, workflow_id, name, branch, status, order_index, created_at, updated_at)
		VALUES (:id, :workflow_id, :name, :branch, :status, :order_index, :created_at, :updated_at)`, t)
	return err
}

func (s *sqlStore) GetTask(ctx context.Context, id string) (*dbmodel.WorkflowTask, error) {
	var t dbmodel.WorkflowTask
	if err := s.get(ctx, &t, `SELECT * FROM workflow_tasks WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *sqlStore) ListTasksByWorkflow(ctx context.Context, workflowID string) ([]*dbmodel.WorkflowTask, error) {
	var tasks []*dbmodel.WorkflowTask
	err := s.db.SelectContext(ctx, &tasks,
		s.db.Rebind(`SELECT * FROM workflow_tasks WHERE workflow_id = ? ORDER BY order_index ASC`), workflowID)
	return tasks, err
}

func (s *sqlStore) UpdateTaskStatus(ctx context.Context, id string, status dbmodel.TaskStatus) error {
	return s.exec(ctx, `UPDATE workflow_tasks SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
}

func (s *sqlStore) CreateTerminal(ctx context.Context, t *dbmodel.Terminal) error {
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO terminals
		(id, workflow_task_id, cli_type_id, model_config_id, custom_base_url,
		 custom_api_key, custom_api_key_nonce, role, order_index, status,
		 process_id, pty_session_id, session_id, execution_process_id,
		 last_commit_hash, last_commit_message, auto_confirm)
		VALUES (:id, :workflow_task_id, :cli_type_id, :model_config_id, :custom_base_url,
		 :custom_api_key, :custom_api_key_nonce, :role, :order_index, :status,
		 :process_id, :pty_session_id, :session_id, :execution_process_id,
		 :last_commit_hash, :last_commit_message, :auto_confirm)`, t)
	return err
}

func (s *sqlStore) GetTerminal(ctx context.Context, id string) (*dbmodel.Terminal, error) {
	var t dbmodel.Terminal
	if err := s.get(ctx, &t, `SELECT * FROM terminals WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *sqlStore) ListTerminalsByTask(ctx context.Context, taskID string) ([]*dbmodel.Terminal, error) {
	var terms []*dbmodel.Terminal
	err := s.db.SelectContext(ctx, &terms,
		s.db.Rebind(`SELECT * FROM terminals WHERE workflow_task_id = ? ORDER BY order_index ASC`), taskID)
	return terms, err
}

func (s *sqlStore) ListTerminalsByWorkflow(ctx context.Context, workflowID string) ([]*dbmodel.Terminal, error) {
	var terms []*dbmodel.Terminal
	err := s.db.SelectContext(ctx, &terms, s.db.Rebind(`SELECT t.* FROM terminals t
		JOIN workflow_tasks wt ON wt.id = t.workflow_task_id
		WHERE wt.workflow_id = ? ORDER BY wt.order_index ASC, t.order_index ASC`), workflowID)
	return terms, err
}

func (s *sqlStore) ListActiveTerminals(ctx context.Context) ([]*dbmodel.Terminal, error) {
	var terms []*dbmodel.Terminal
	err := s.db.SelectContext(ctx, &terms, s.db.Rebind(`SELECT * FROM terminals
		WHERE status IN (?, ?, ?, ?)`),
		dbmodel.TerminalStatusStarting, dbmodel.TerminalStatusStarted,
		dbmodel.TerminalStatusWaiting, dbmodel.TerminalStatusWorking)
	return terms, err
}

func (s *sqlStore) UpdateTerminalStatus(ctx context.Context, id string, status dbmodel.TerminalStatus) error {
	return s.exec(ctx, `UPDATE terminals SET status = ? WHERE id = ?`, status, id)
}

func (s *sqlStore) UpdateTerminalProcess(ctx context.Context, id string, processID int, ptySessionID, sessionID, executionProcessID string) error {
	return s.exec(ctx, `UPDATE terminals SET process_id = ?, pty_session_id = ?, session_id = ?, execution_process_id = ? WHERE id = ?`,
		processID, ptySessionID, sessionID, executionProcessID, id)
}

func (s *sqlStore) UpdateTerminalLastCommit(ctx context.Context, id, commitHash, commitMessage string) error {
	return s.exec(ctx, `UPDATE terminals SET last_commit_hash = ?, last_commit_message = ? WHERE id = ?`,
		commitHash, commitMessage, id)
}

func (s *sqlStore) ResetTerminalProcess(ctx context.Context, id string) error {
	return s.exec(ctx, `UPDATE terminals SET status = ?, process_id = 0, pty_session_id = '', session_id = '', execution_process_id = '' WHERE id = ?`,
		dbmodel.TerminalStatusNotStarted, id)
}

func (s *sqlStore) CreateGitEvent(ctx context.Context, e *dbmodel.GitEvent) error {
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO git_events
		(id, workflow_id, terminal_id, commit_hash, branch, commit_message,
		 metadata, process_status, agent_response, created_at, processed_at)
		VALUES (:id, :workflow_id, :terminal_id, :commit_hash, :branch, :commit_message,
		 :metadata, :process_status, :agent_response, :created_at, :processed_at)`, e)
	return err
}

func (s *sqlStore) GetGitEventByCommit(ctx context.Context, workflowID, commitHash string) (*dbmodel.GitEvent, error) {
	var e dbmodel.GitEvent
	if err := s.get(ctx, &e, `SELECT * FROM git_events WHERE workflow_id = ? AND commit_hash = ?`, workflowID, commitHash); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *sqlStore) UpdateGitEvent(ctx context.Context, e *dbmodel.GitEvent) error {
	return s.exec(ctx, `UPDATE git_events SET terminal_id = ?, metadata = ?, process_status = ?, agent_response = ?, processed_at = ? WHERE id = ?`,
		e.TerminalID, e.Metadata, e.ProcessStatus, e.AgentResponse, e.ProcessedAt, e.ID)
}

func (s *sqlStore) GetCliType(ctx context.Context, id string) (dbmodel.CliType, error) {
	switch dbmodel.CliType(id) {
	case dbmodel.CliClaude, dbmodel.CliCodex, dbmodel.CliGemini:
		return dbmodel.CliType(id), nil
	default:
		return "", fmt.Errorf("%w: unknown cli type %q", ErrNotFound, id)
	}
}

func (s *sqlStore) GetModelConfig(ctx context.Context, id string) (*dbmodel.ModelConfig, error) {
	var m dbmodel.ModelConfig
	if err := s.get(ctx, &m, `SELECT * FROM model_configs WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *sqlStore) ListModelConfigs(ctx context.Context, cli dbmodel.CliType) ([]*dbmodel.ModelConfig, error) {
	var models []*dbmodel.ModelConfig
	err := s.db.SelectContext(ctx, &models, s.db.Rebind(`SELECT * FROM model_configs WHERE cli = ? ORDER BY label ASC`), cli)
	return models, err
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
