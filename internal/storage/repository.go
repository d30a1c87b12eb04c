package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lacarte/video-player/internal/config"
)

const upsertProgressQuery = `
	INSERT INTO progress (course_key, path, position_seconds, duration_seconds, completed, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(course_key, path) DO UPDATE SET
		position_seconds = excluded.position_seconds,
		duration_seconds = COALESCE(excluded.duration_seconds, progress.duration_seconds),
		completed = excluded.completed,
		updated_at = excluded.updated_at
`

// SaveProgress inserts or updates the watch state of one video.
func (db *DB) SaveProgress(ctx context.Context, p *Progress) error {
	start := time.Now()
	_, err := db.writer.ExecContext(ctx, upsertProgressQuery,
		p.CourseKey, p.Path, p.PositionSeconds, p.DurationSeconds, p.Completed, updatedAt(p.UpdatedAt))
	if err != nil {
		slog.ErrorContext(ctx, "failed to save progress",
			"course_key", p.CourseKey,
			"path", p.Path,
			"error", err)
		return fmt.Errorf("failed to save progress: %w", err)
	}

	warnSlow(ctx, "SaveProgress", start, config.SlowQueryThreshold, "path", p.Path)
	return nil
}

// SaveProgressBatch writes several progress records in one transaction,
// in slice order, so a later record for the same video wins.
func (db *DB) SaveProgressBatch(ctx context.Context, records []*Progress) error {
	if len(records) == 0 {
		return nil
	}

	start := time.Now()
	err := db.ExecBatchContext(ctx, upsertProgressQuery, func(stmt *sql.Stmt) error {
		for _, p := range records {
			if _, err := stmt.ExecContext(ctx,
				p.CourseKey, p.Path, p.PositionSeconds, p.DurationSeconds, p.Completed, updatedAt(p.UpdatedAt)); err != nil {
				return fmt.Errorf("failed to save progress %s: %w", p.Path, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.DebugContext(ctx, "batch operation completed",
		"operation", "SaveProgressBatch",
		"count", len(records),
		"duration_ms", time.Since(start).Milliseconds())
	warnSlow(ctx, "SaveProgressBatch", start, 5*config.SlowQueryThreshold, "count", len(records))
	return nil
}

// GetProgress returns the watch state of one video, or nil if none exists.
func (db *DB) GetProgress(ctx context.Context, courseKey, path string) (*Progress, error) {
	query := `
		SELECT course_key, path, position_seconds, duration_seconds, completed, updated_at
		FROM progress WHERE course_key = ? AND path = ?`

	p, err := scanProgress(db.reader.QueryRowContext(ctx, query, courseKey, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	return p, nil
}

// ListProgress returns every progress record of a course, most recent first.
func (db *DB) ListProgress(ctx context.Context, courseKey string) ([]Progress, error) {
	start := time.Now()
	query := `
		SELECT course_key, path, position_seconds, duration_seconds, completed, updated_at
		FROM progress WHERE course_key = ?
		ORDER BY updated_at DESC, path`

	rows, err := db.reader.QueryContext(ctx, query, courseKey)
	if err != nil {
		return nil, fmt.Errorf("query progress list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Progress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress: %w", err)
	}

	warnSlow(ctx, "ListProgress", start, config.SlowQueryThreshold, "course_key", courseKey, "count", len(out))
	return out, nil
}

// DeleteProgress removes the record of one video.
func (db *DB) DeleteProgress(ctx context.Context, courseKey, path string) error {
	if _, err := db.writer.ExecContext(ctx,
		`DELETE FROM progress WHERE course_key = ? AND path = ?`, courseKey, path); err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgress(row rowScanner) (*Progress, error) {
	var (
		p        Progress
		duration sql.NullFloat64
	)
	if err := row.Scan(&p.CourseKey, &p.Path, &p.PositionSeconds, &duration, &p.Completed, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if duration.Valid {
		d := duration.Float64
		p.DurationSeconds = &d
	}
	return &p, nil
}

// SaveCourseState inserts or replaces the navigation state of a course.
func (db *DB) SaveCourseState(ctx context.Context, s *CourseState) error {
	var order any
	if s.CustomOrder != nil {
		data, err := json.Marshal(s.CustomOrder)
		if err != nil {
			return fmt.Errorf("failed to marshal custom order: %w", err)
		}
		order = string(data)
	}

	query := `
		INSERT INTO course_state (course_key, last_watched_path, custom_order, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(course_key) DO UPDATE SET
			last_watched_path = excluded.last_watched_path,
			custom_order = excluded.custom_order,
			updated_at = excluded.updated_at
	`
	start := time.Now()
	if _, err := db.writer.ExecContext(ctx, query,
		s.CourseKey, nullString(s.LastWatchedPath), order, updatedAt(s.UpdatedAt)); err != nil {
		slog.ErrorContext(ctx, "failed to save course state",
			"course_key", s.CourseKey,
			"error", err)
		return fmt.Errorf("failed to save course state: %w", err)
	}

	warnSlow(ctx, "SaveCourseState", start, config.SlowQueryThreshold, "course_key", s.CourseKey)
	return nil
}

// GetCourseState returns the state of a course, or nil if none exists.
func (db *DB) GetCourseState(ctx context.Context, courseKey string) (*CourseState, error) {
	query := `SELECT course_key, last_watched_path, custom_order, updated_at FROM course_state WHERE course_key = ?`

	var (
		s     CourseState
		last  sql.NullString
		order sql.NullString
	)
	err := db.reader.QueryRowContext(ctx, query, courseKey).Scan(&s.CourseKey, &last, &order, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query course state: %w", err)
	}

	s.LastWatchedPath = last.String
	if order.Valid && order.String != "" {
		if err := json.Unmarshal([]byte(order.String), &s.CustomOrder); err != nil {
			// A corrupt override is dropped rather than blocking the course.
			slog.WarnContext(ctx, "invalid custom order in database",
				"course_key", courseKey,
				"error", err)
			s.CustomOrder = nil
		}
	}
	return &s, nil
}

// SaveSetting stores one global setting.
func (db *DB) SaveSetting(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := db.writer.ExecContext(ctx, query, key, value, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

// GetSettings returns every stored setting.
func (db *DB) GetSettings(ctx context.Context) (map[string]string, error) {
	rows, err := db.reader.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// SaveDurationCache replaces the duration cache of a course.
func (db *DB) SaveDurationCache(ctx context.Context, c *DurationCache) error {
	durations := c.Durations
	if durations == nil {
		durations = map[string]*float64{}
	}
	data, err := json.Marshal(durations)
	if err != nil {
		return fmt.Errorf("failed to marshal durations: %w", err)
	}

	query := `
		INSERT INTO duration_cache (course_key, structure_hash, durations, saved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(course_key) DO UPDATE SET
			structure_hash = excluded.structure_hash,
			durations = excluded.durations,
			saved_at = excluded.saved_at
	`
	start := time.Now()
	if _, err := db.writer.ExecContext(ctx, query, c.CourseKey, c.StructureHash, string(data), updatedAt(c.SavedAt)); err != nil {
		slog.ErrorContext(ctx, "failed to save duration cache",
			"course_key", c.CourseKey,
			"error", err)
		return fmt.Errorf("failed to save duration cache: %w", err)
	}

	warnSlow(ctx, "SaveDurationCache", start, config.SlowQueryThreshold,
		"course_key", c.CourseKey,
		"count", len(durations))
	return nil
}

// GetDurationCache returns the cached durations of a course, or nil.
func (db *DB) GetDurationCache(ctx context.Context, courseKey string) (*DurationCache, error) {
	query := `SELECT course_key, structure_hash, durations, saved_at FROM duration_cache WHERE course_key = ?`

	var (
		c    DurationCache
		data string
	)
	err := db.reader.QueryRowContext(ctx, query, courseKey).Scan(&c.CourseKey, &c.StructureHash, &data, &c.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query duration cache: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &c.Durations); err != nil {
		return nil, fmt.Errorf("decode duration cache: %w", err)
	}
	return &c, nil
}

// DeleteDurationCache drops the cache of a course.
func (db *DB) DeleteDurationCache(ctx context.Context, courseKey string) error {
	if _, err := db.writer.ExecContext(ctx, `DELETE FROM duration_cache WHERE course_key = ?`, courseKey); err != nil {
		return fmt.Errorf("failed to delete duration cache: %w", err)
	}
	return nil
}

// nullString converts empty strings to NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// updatedAt defaults a zero timestamp to now, in unix milliseconds.
func updatedAt(ts int64) int64 {
	if ts == 0 {
		return time.Now().UnixMilli()
	}
	return ts
}
