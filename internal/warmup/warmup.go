// Package warmup fills the duration cache at startup so the first playlist
// already carries per-chapter totals.
package warmup

import (
	"context"
	"fmt"
	"time"

	"github.com/Lacarte/video-player/internal/course"
	"github.com/Lacarte/video-player/internal/ctxutil"
	"github.com/Lacarte/video-player/internal/duration"
	"github.com/Lacarte/video-player/internal/logger"
	"github.com/Lacarte/video-player/internal/metrics"
)

const saveTimeout = 5 * time.Second

// Stats summarizes one warmup run.
type Stats struct {
	Cache    duration.CacheResult
	Pending  int
	Resolved int
	Skipped  int
	Elapsed  time.Duration
}

// SaveFunc persists the resolved durations.
type SaveFunc func(ctx context.Context, entry duration.CacheEntry) error

// Options configures a warmup run.
type Options struct {
	Root    string // absolute course root; defaults to the course's RootPath
	Logger  *logger.Logger
	Metrics *metrics.Metrics // optional
}

// Durations resolves every video of c that the cache does not cover and
// saves the result. When ctx ends early the durations found so far are
// still saved and ctx's error is returned. Nothing is saved when the cache
// already covered every video.
func Durations(ctx context.Context, c *course.Course, oracle duration.Oracle, cached *duration.CacheEntry, save SaveFunc, opts Options) (*Stats, error) {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	log := opts.Logger.WithModule("warmup")
	start := time.Now()

	ropts := duration.Options{Root: opts.Root, Logger: opts.Logger}
	if opts.Metrics != nil {
		ropts.Metrics = opts.Metrics
	}
	r := duration.NewResolver(c, oracle, cached, ropts)
	stats := &Stats{Cache: r.CacheResult(), Pending: r.Pending()}

	if stats.Pending == 0 && stats.Cache == duration.CacheHit {
		stats.Elapsed = time.Since(start)
		opts.record("success", stats.Elapsed)
		log.DebugContext(ctx, "Duration cache already complete")
		return stats, nil
	}

	log.InfoContext(ctx, "Warming duration cache", "pending", stats.Pending, "cache", stats.Cache)
	stats.Resolved = r.Run(ctx)
	stats.Skipped = len(r.Skipped())

	saveCtx, cancel := context.WithTimeout(ctxutil.PreserveTracing(ctx), saveTimeout)
	defer cancel()
	if err := save(saveCtx, r.CacheEntry()); err != nil {
		stats.Elapsed = time.Since(start)
		opts.record("error", stats.Elapsed)
		return stats, fmt.Errorf("save duration cache: %w", err)
	}
	stats.Elapsed = time.Since(start)

	if err := ctx.Err(); err != nil {
		opts.record("partial", stats.Elapsed)
		return stats, err
	}
	status := "success"
	if stats.Skipped > 0 {
		status = "partial"
	}
	opts.record(status, stats.Elapsed)
	return stats, nil
}

func (o Options) record(status string, elapsed time.Duration) {
	if o.Metrics != nil {
		o.Metrics.RecordWarmupTask("durations", status, elapsed)
	}
}
