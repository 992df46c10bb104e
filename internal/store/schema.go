package store

import "github.com/jmoiron/sqlx"

// bootstrapSchema creates the runtime's tables if they do not already exist.
// There is no migration framework (spec.md's Non-goals exclude SQL-level
// schema migrations); the schema is additive and stable across releases.
func bootstrapSchema(db *sqlx.DB, dialect string) error {
	blobType := "BLOB"
	timestampType := "TIMESTAMP"
	if dialect == "postgres" {
		blobType = "BYTEA"
		timestampType = "TIMESTAMPTZ"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			repo_path TEXT NOT NULL,
			base_branch TEXT NOT NULL,
			created_at ` + timestampType + ` NOT NULL,
			updated_at ` + timestampType + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			use_slash_commands BOOLEAN NOT NULL DEFAULT FALSE,
			orchestrator_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			orchestrator_api_type TEXT NOT NULL DEFAULT '',
			orchestrator_base_url TEXT NOT NULL DEFAULT '',
			orchestrator_model TEXT NOT NULL DEFAULT '',
			encrypted_api_key ` + blobType + `,
			api_key_nonce ` + blobType + `,
			error_terminal_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			error_terminal_cli_id TEXT NOT NULL DEFAULT '',
			error_terminal_model_id TEXT NOT NULL DEFAULT '',
			merge_terminal_cli_id TEXT NOT NULL DEFAULT '',
			merge_terminal_model_id TEXT NOT NULL DEFAULT '',
			target_branch TEXT NOT NULL DEFAULT '',
			orchestrator_state ` + blobType + `,
			created_at ` + timestampType + ` NOT NULL,
			updated_at ` + timestampType + ` NOT NULL,
			ready_at ` + timestampType + `,
			started_at ` + timestampType + `,
			completed_at ` + timestampType + `
		)`,
		`CREATE TABLE IF NOT EXISTS workflow_tasks (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			name TEXT NOT NULL,
			branch TEXT NOT NULL,
			status TEXT NOT NULL,
			order_index INTEGER NOT NULL,
			created_at ` + timestampType + ` NOT NULL,
			updated_at ` + timestampType + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS terminals (
			id TEXT PRIMARY KEY,
			workflow_task_id TEXT NOT NULL,
			cli_type_id TEXT NOT NULL,
			model_config_id TEXT NOT NULL,
			custom_base_url TEXT NOT NULL DEFAULT '',
			custom_api_key ` + blobType + `,
			custom_api_key_nonce ` + blobType + `,
			role TEXT NOT NULL,
			order_index INTEGER NOT NULL,
			status TEXT NOT NULL,
			process_id INTEGER NOT NULL DEFAULT 0,
			pty_session_id TEXT NOT NULL DEFAULT '',
			session_id TEXT NOT NULL DEFAULT '',
			execution_process_id TEXT NOT NULL DEFAULT '',
			last_commit_hash TEXT NOT NULL DEFAULT '',
			last_commit_message TEXT NOT NULL DEFAULT '',
			auto_confirm BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS git_events (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			terminal_id TEXT NOT NULL DEFAULT '',
			commit_hash TEXT NOT NULL,
			branch TEXT NOT NULL,
			commit_message TEXT NOT NULL,
			metadata ` + blobType + `,
			process_status TEXT NOT NULL,
			agent_response TEXT NOT NULL DEFAULT '',
			created_at ` + timestampType + ` NOT NULL,
			processed_at ` + timestampType + `
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_git_events_commit ON git_events (workflow_id, commit_hash)`,
		`CREATE TABLE IF NOT EXISTS model_configs (
			id TEXT PRIMARY KEY,
			cli TEXT NOT NULL,
			name TEXT NOT NULL,
			label TEXT NOT NULL,
			is_default BOOLEAN NOT NULL DEFAULT FALSE
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
