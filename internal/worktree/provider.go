package worktree

import (
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/huanchong-99/gitcortex/internal/config"
	"github.com/huanchong-99/gitcortex/internal/logger"
)

// Provide creates the worktree manager using the shared database connection.
func Provide(db *sql.DB, cfg *config.Config, log *logger.Logger) (*Manager, func() error, error) {
	driverName := "sqlite3"
	if cfg.Database.Driver == "postgres" {
		driverName = "pgx"
	}
	store, err := NewSQLiteStore(sqlx.NewDb(db, driverName))
	if err != nil {
		return nil, nil, err
	}
	manager, err := NewManager(Config{
		Enabled:      cfg.Worktree.Enabled,
		BasePath:     cfg.Worktree.BasePath,
		BranchPrefix: cfg.Worktree.BranchPrefix,
	}, store, log)
	if err != nil {
		return nil, nil, err
	}
	return manager, func() error { return nil }, nil
}
