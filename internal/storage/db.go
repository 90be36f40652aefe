// Package storage persists scan results and behavioral analyses in a local
// SQLite database.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure Go driver registered as "sqlite"

	"github.com/phobologic/surveyor/internal/logging"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

const schemaVersion = 1

// DefaultPath is the database location relative to a project root.
const DefaultPath = ".surveyor/surveyor.db"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS analysis_cache (
		content_hash TEXT NOT NULL,
		model        TEXT NOT NULL,
		version      INTEGER NOT NULL,
		result_json  TEXT NOT NULL,
		analyzed_at  TEXT NOT NULL,
		PRIMARY KEY (content_hash, model)
	)`,
	`CREATE TABLE IF NOT EXISTS scans (
		id             TEXT PRIMARY KEY,
		project_path   TEXT NOT NULL,
		project_name   TEXT NOT NULL,
		status         TEXT NOT NULL,
		created_at     TEXT NOT NULL,
		completed_at   TEXT,
		health_score   INTEGER NOT NULL DEFAULT 0,
		total_files    INTEGER NOT NULL DEFAULT 0,
		total_warnings INTEGER NOT NULL DEFAULT 0,
		result_json    TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scans_project ON scans (project_path, created_at)`,
}

// DB is an open surveyor database.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
	path   string
}

// Open opens or creates the database at path, creating parent directories
// and the schema as needed.
func Open(ctx context.Context, path string, logger *slog.Logger) (*DB, error) {
	logger = logging.OrDiscard(logger)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		if _, err := conn.ExecContext(ctx, p); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("setting %q: %w", p, err)
		}
	}

	db := &DB{conn: conn, logger: logger, path: path}
	if err := db.migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

func (db *DB) migrate(ctx context.Context) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("creating schema: %w", err)
			}
		}
		var version int
		err := tx.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			db.logger.Debug("initialized database", "path", db.path, "version", schemaVersion)
			_, err = tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion)
			return err
		case err != nil:
			return fmt.Errorf("reading schema version: %w", err)
		case version > schemaVersion:
			return fmt.Errorf("database schema version %d is newer than supported version %d", version, schemaVersion)
		}
		return nil
	})
}

// withTx runs fn in a transaction, committing on success.
func (db *DB) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("rollback failed", "error", err, "rollback_error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
