package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/huanchong-99/gitcortex/internal/config"
	"github.com/huanchong-99/gitcortex/internal/logger"
	sqldb "github.com/huanchong-99/gitcortex/internal/store/db"
)

// Provide opens the configured database connection, wraps it for sqlx, and
// bootstraps the schema.
func Provide(cfg *config.Config, log *logger.Logger) (*sqlx.DB, func() error, error) {
	switch cfg.Database.Driver {
	case "", "sqlite":
		dbConn, err := sqldb.OpenSQLite(cfg.Database.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		db := sqlx.NewDb(dbConn, "sqlite3")
		if err := bootstrapSchema(db, "sqlite"); err != nil {
			return nil, nil, err
		}
		if log != nil {
			log.Info("database initialized", zap.String("db_path", cfg.Database.Path), zap.String("driver", "sqlite"))
		}
		cleanup := func() error {
			// Refresh query planner statistics before closing, SQLite's
			// recommended way to keep the next run's plans sane.
			_, _ = db.Exec("PRAGMA optimize")
			return db.Close()
		}
		return db, cleanup, nil
	case "postgres":
		dbConn, err := sqldb.OpenPostgres(cfg.Database.DSN(), cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres database: %w", err)
		}
		db := sqlx.NewDb(dbConn, "pgx")
		if err := bootstrapSchema(db, "postgres"); err != nil {
			return nil, nil, err
		}
		if log != nil {
			log.Info("database initialized", zap.String("driver", "postgres"))
		}
		return db, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}
