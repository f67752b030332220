// Package bootstrap turns configuration into the knowledge-base source and
// database handles shared by the server and the CLI.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"cattle-expert/data"
	"cattle-expert/internal/config"
	"cattle-expert/internal/knowledge"
	"cattle-expert/internal/platform/database"
)

// DatabaseTarget resolves the SQL driver and DSN for a database-backed
// knowledge source.
func DatabaseTarget(cfg *config.Config) (database.Driver, string, error) {
	switch cfg.Knowledge.Source {
	case config.SourcePostgres:
		return database.Postgres, cfg.Database.URL, nil
	case config.SourceSQLite:
		return database.SQLite, cfg.Database.SQLitePath, nil
	default:
		return "", "", fmt.Errorf("knowledge source %q is not a database", cfg.Knowledge.Source)
	}
}

func NewMigrationRunner(cfg *config.Config, logger *logrus.Logger) (*database.MigrationRunner, error) {
	driver, dsn, err := DatabaseTarget(cfg)
	if err != nil {
		return nil, err
	}
	return database.NewMigrationRunner(driver, dsn, cfg.Database.MigrationsPath, logger)
}

// OpenRepository connects to the configured database, applies migrations
// when database.auto_migrate is set and returns the repository on top of it.
// The caller closes the returned *sql.DB.
func OpenRepository(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (knowledge.Repository, *sql.DB, error) {
	driver, dsn, err := DatabaseTarget(cfg)
	if err != nil {
		return nil, nil, err
	}

	db, err := database.Open(ctx, driver, dsn, logger)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := migrateUp(cfg, logger); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	return knowledge.NewRepository(db, driver), db, nil
}

func migrateUp(cfg *config.Config, logger *logrus.Logger) error {
	runner, err := NewMigrationRunner(cfg, logger)
	if err != nil {
		return err
	}
	defer runner.Close()
	return runner.Up()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// KnowledgeSource builds the source selected by knowledge.source. The closer
// releases any database connection once the knowledge base is loaded.
func KnowledgeSource(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (knowledge.Source, io.Closer, error) {
	logger.WithField("source", cfg.Knowledge.Source).Info("Resolving knowledge base source")

	switch cfg.Knowledge.Source {
	case config.SourceEmbedded:
		return knowledge.BytesSource{Data: data.Default, Format: knowledge.FormatJSON}, nopCloser{}, nil
	case config.SourceFile:
		return knowledge.FileSource{Path: cfg.Knowledge.Path}, nopCloser{}, nil
	case config.SourcePostgres, config.SourceSQLite:
		repo, db, err := OpenRepository(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return repo, db, nil
	default:
		return nil, nil, fmt.Errorf("unknown knowledge source: %q", cfg.Knowledge.Source)
	}
}
