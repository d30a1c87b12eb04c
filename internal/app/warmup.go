package app

import (
	"context"
	"errors"

	"github.com/Lacarte/video-player/internal/config"
	"github.com/Lacarte/video-player/internal/warmup"
)

// warmDurations resolves the durations the cache is missing so the first
// playlist carries full totals. Readiness is marked when it returns,
// whatever the outcome.
func (a *Application) warmDurations(ctx context.Context) {
	defer a.readiness.MarkReady()

	ctx, cancel := context.WithTimeout(ctx, config.WarmupDurations)
	defer cancel()

	crs, cached, err := a.scanCourse(ctx)
	if err != nil {
		a.logger.WithError(err).WarnContext(ctx, "Duration warmup skipped: course unreadable")
		return
	}

	stats, err := warmup.Durations(ctx, crs, a.oracle, cached, a.saveDurationCache, warmup.Options{
		Root:    a.root,
		Logger:  a.logger,
		Metrics: a.metrics,
	})
	switch {
	case errors.Is(err, context.Canceled):
		a.logger.Info("Duration warmup interrupted", "resolved", stats.Resolved, "pending", stats.Pending)
		return
	case err != nil:
		a.logger.WithError(err).Warn("Duration warmup failed")
		return
	}
	a.logger.Info("Duration warmup complete",
		"cache", stats.Cache,
		"resolved", stats.Resolved,
		"skipped", stats.Skipped,
		"elapsed", stats.Elapsed,
	)
}
