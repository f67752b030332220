// Package database opens the SQL stores that can hold a knowledge base and
// runs their schema migrations.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Driver identifies a supported SQL backend.
type Driver string

const (
	Postgres Driver = "postgres"
	SQLite   Driver = "sqlite"
)

// Placeholder returns the bind parameter for the n-th (1-based) argument.
func (d Driver) Placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// MigrationURL turns a DSN into the URL golang-migrate expects.
func (d Driver) MigrationURL(dsn string) string {
	if d == SQLite {
		return "sqlite://" + dsn
	}
	return dsn
}

const (
	connectAttempts = 10
	connectBackoff  = time.Second
)

// Open connects to the database and pings it, retrying while the server
// comes up. For sqlite the parent directory is created.
func Open(ctx context.Context, driver Driver, dsn string, logger *logrus.Logger) (*sql.DB, error) {
	switch driver {
	case Postgres:
	case SQLite:
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(string(driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for attempt := 1; ; attempt++ {
		err = db.PingContext(ctx)
		if err == nil {
			break
		}
		if attempt == connectAttempts {
			db.Close()
			return nil, fmt.Errorf("could not connect to %s: %w", driver, err)
		}
		logger.WithFields(logrus.Fields{
			"driver":  driver,
			"attempt": attempt,
		}).WithError(err).Warn("Waiting for database")

		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}

	if driver == SQLite {
		// One writer at a time; sqlite serializes anyway.
		db.SetMaxOpenConns(1)
	}

	logger.WithField("driver", driver).Info("Connected to database")
	return db, nil
}
