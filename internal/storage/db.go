package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver for database/sql

	"github.com/Lacarte/video-player/internal/config"
)

// DB wraps the SQLite progress database.
// SQLite allows a single writer, so writes go through a one-connection pool
// and reads use a separate pool. In-memory databases share one connection
// because every new connection would open a fresh, empty database.
type DB struct {
	writer *sql.DB
	reader *sql.DB
	path   string
}

// New opens (creating if needed) the database at dbPath and initializes the
// schema. Use ":memory:" for an ephemeral database.
func New(ctx context.Context, dbPath string) (*DB, error) {
	memory := dbPath == ":memory:"

	// Ensure directory exists (skip for in-memory database)
	if !memory {
		dir := filepath.Dir(dbPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	writer, err := open(ctx, dbPath, 1)
	if err != nil {
		return nil, err
	}

	reader := writer
	if !memory {
		reader, err = open(ctx, dbPath, 4)
		if err != nil {
			_ = writer.Close()
			return nil, err
		}
	}

	db := &DB{writer: writer, reader: reader, path: dbPath}

	if err := InitSchema(ctx, writer); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// open creates a pool whose connections all carry the same pragmas.
// Pragmas are passed in the DSN because a PRAGMA statement would only
// configure whichever pooled connection happened to run it.
func open(ctx context.Context, dbPath string, maxConns int) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(maxConns)
	conn.SetConnMaxLifetime(config.DatabaseConnMaxLifetime)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

func dsn(dbPath string) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", config.DatabaseBusyTimeout.Milliseconds()))
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "foreign_keys(ON)")
	q.Set("_txlock", "immediate")
	return "file:" + dbPath + "?" + q.Encode()
}

// Close closes both connection pools.
func (db *DB) Close() error {
	var err error
	if db.reader != nil && db.reader != db.writer {
		err = db.reader.Close()
	}
	if db.writer != nil {
		if werr := db.writer.Close(); werr != nil {
			err = werr
		}
	}
	return err
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Ping verifies both pools can reach the database.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.writer.PingContext(ctx); err != nil {
		return fmt.Errorf("ping writer: %w", err)
	}
	if err := db.reader.PingContext(ctx); err != nil {
		return fmt.Errorf("ping reader: %w", err)
	}
	return nil
}

// ExecBatchContext runs fn with a prepared statement inside one write
// transaction, committing only if fn succeeds.
func (db *DB) ExecBatchContext(ctx context.Context, query string, fn func(stmt *sql.Stmt) error) error {
	tx, err := db.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	if err := fn(stmt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// CreateSnapshot writes a consistent copy of the database to dest using
// VACUUM INTO. dest must not exist.
func (db *DB) CreateSnapshot(ctx context.Context, dest string) error {
	start := time.Now()
	if _, err := db.writer.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
		return fmt.Errorf("vacuum into %s: %w", dest, err)
	}
	warnSlow(ctx, "CreateSnapshot", start, 10*config.SlowQueryThreshold, "dest", dest)
	return nil
}

// warnSlow logs operations slower than limit.
func warnSlow(ctx context.Context, operation string, start time.Time, limit time.Duration, args ...any) {
	if d := time.Since(start); d > limit {
		slog.WarnContext(ctx, "slow database operation",
			append([]any{"operation", operation, "duration_ms", d.Milliseconds()}, args...)...)
	}
}

// NewTestDB creates an in-memory database for testing.
func NewTestDB() (*DB, error) {
	return New(context.Background(), ":memory:")
}
