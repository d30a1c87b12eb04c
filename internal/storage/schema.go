package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates all necessary tables and indexes.
func InitSchema(ctx context.Context, db *sql.DB) error {
	for _, create := range []func(context.Context, *sql.DB) error{
		createProgressTable,
		createCourseStateTable,
		createSettingsTable,
		createDurationCacheTable,
	} {
		if err := create(ctx, db); err != nil {
			return err
		}
	}
	return nil
}

// createProgressTable stores per-video watch state. Paths are only unique
// within a course, so the key is (course_key, path).
func createProgressTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS progress (
		course_key TEXT NOT NULL,
		path TEXT NOT NULL,
		position_seconds REAL NOT NULL DEFAULT 0 CHECK(position_seconds >= 0),
		duration_seconds REAL,
		completed INTEGER NOT NULL DEFAULT 0 CHECK(completed IN (0, 1)),
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (course_key, path)
	);
	CREATE INDEX IF NOT EXISTS idx_progress_updated_at ON progress(course_key, updated_at);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create progress table: %w", err)
	}

	return nil
}

func createCourseStateTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS course_state (
		course_key TEXT PRIMARY KEY,
		last_watched_path TEXT,
		custom_order TEXT,
		updated_at INTEGER NOT NULL
	);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create course_state table: %w", err)
	}

	return nil
}

func createSettingsTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create settings table: %w", err)
	}

	return nil
}

// createDurationCacheTable holds one duration map per course together with
// the structure hash it was computed for.
func createDurationCacheTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS duration_cache (
		course_key TEXT PRIMARY KEY,
		structure_hash TEXT NOT NULL,
		durations TEXT NOT NULL,
		saved_at INTEGER NOT NULL
	);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create duration_cache table: %w", err)
	}

	return nil
}
