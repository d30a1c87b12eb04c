// Package storage persists watch progress, course state, settings and
// duration caches in SQLite.
// The interfaces below let the progress store and HTTP handlers depend on
// behavior instead of *DB, which keeps them testable with fakes.
package storage

import (
	"context"
)

// ProgressRepository defines per-video progress operations.
type ProgressRepository interface {
	SaveProgress(ctx context.Context, p *Progress) error
	SaveProgressBatch(ctx context.Context, records []*Progress) error
	GetProgress(ctx context.Context, courseKey, path string) (*Progress, error)
	ListProgress(ctx context.Context, courseKey string) ([]Progress, error)
	DeleteProgress(ctx context.Context, courseKey, path string) error
}

// CourseStateRepository defines per-course state operations.
type CourseStateRepository interface {
	SaveCourseState(ctx context.Context, s *CourseState) error
	GetCourseState(ctx context.Context, courseKey string) (*CourseState, error)
}

// SettingsRepository defines global setting operations.
type SettingsRepository interface {
	SaveSetting(ctx context.Context, key, value string) error
	GetSettings(ctx context.Context) (map[string]string, error)
}

// DurationCacheRepository defines duration cache operations.
type DurationCacheRepository interface {
	SaveDurationCache(ctx context.Context, c *DurationCache) error
	GetDurationCache(ctx context.Context, courseKey string) (*DurationCache, error)
	DeleteDurationCache(ctx context.Context, courseKey string) error
}

// StateRepository is everything the progress store persists.
type StateRepository interface {
	ProgressRepository
	CourseStateRepository
	SettingsRepository
}

// Compile-time checks
var (
	_ StateRepository         = (*DB)(nil)
	_ DurationCacheRepository = (*DB)(nil)
)
