package app

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Lacarte/video-player/internal/classify"
	"github.com/Lacarte/video-player/internal/config"
	"github.com/Lacarte/video-player/internal/ctxutil"
	"github.com/Lacarte/video-player/internal/duration"
	domerrors "github.com/Lacarte/video-player/internal/errors"
	"github.com/Lacarte/video-player/internal/storage"
)

const cacheSaveTimeout = 5 * time.Second

type durationRequest struct {
	Path string `json:"path" binding:"required"`
}

type durationResponse struct {
	Path     string   `json:"path"`
	Duration *float64 `json:"duration"`
	Error    string   `json:"error,omitempty"`
}

// probeDuration measures one video. An oracle failure is not an HTTP error:
// the player skips the video and keeps going.
func (a *Application) probeDuration(c *gin.Context) {
	wrap := domerrors.NewWrapper("duration", "probe")

	var req durationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.respondError(c, "duration", wrap.Wrap(domerrors.NewValidationError("path", err.Error()), "A video path is required"))
		return
	}
	abs, err := a.resolveMedia(req.Path)
	if err != nil {
		a.respondError(c, "duration", wrap.Wrapf(err, "Cannot read %q", req.Path))
		return
	}
	if classify.KindOf(filepath.Ext(abs)) != classify.KindVideo {
		a.respondError(c, "duration", wrap.Wrapf(domerrors.NewValidationError("path", "not a video"), "%q is not a video", req.Path))
		return
	}

	// Requests for the same video share one oracle call, which outlives any
	// single caller.
	ctx := ctxutil.PreserveTracing(c.Request.Context())
	v, err, shared := a.flight.Do("duration:"+req.Path, func() (any, error) {
		probeCtx, cancel := context.WithTimeout(ctx, 2*a.probeTimeout())
		defer cancel()

		start := time.Now()
		seconds, err := duration.Measure(probeCtx, a.oracle, abs)
		if a.metrics != nil {
			status := "success"
			if err != nil {
				status = duration.ProbeStatus(err)
			}
			a.metrics.RecordProbe(status, time.Since(start))
		}
		return seconds, err
	})
	if shared && a.metrics != nil {
		a.metrics.RecordSingleflightDedup("duration")
	}
	if err != nil {
		probeErr := domerrors.NewProbeError(req.Path, err)
		a.logger.WithError(err).WarnContext(ctx, "Duration unresolved", "path", req.Path)
		c.JSON(http.StatusOK, durationResponse{Path: req.Path, Error: probeErr.Error()})
		return
	}
	seconds := v.(float64)
	c.JSON(http.StatusOK, durationResponse{Path: req.Path, Duration: &seconds})
}

func (a *Application) probeTimeout() time.Duration {
	if a.cfg.ProbeTimeout > 0 {
		return a.cfg.ProbeTimeout
	}
	return config.ProbeTimeout
}

type streamStart struct {
	StructureHash string               `json:"structure_hash"`
	Pending       int                  `json:"pending"`
	Cache         duration.CacheResult `json:"cache"`
}

type streamUpdate struct {
	duration.Update
	Error string `json:"error,omitempty"`
}

type streamDone struct {
	Resolved      int      `json:"resolved"`
	Skipped       []string `json:"skipped"`
	TotalDuration float64  `json:"total_duration"`
}

// streamDurations resolves every unknown duration of the course and pushes
// one server-sent event per video. Resolved values are saved to the cache
// when the stream ends, including when the client disconnects early.
func (a *Application) streamDurations(c *gin.Context) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	stop := context.AfterFunc(a.streamCtx, cancel)
	defer stop()

	crs, cached, err := a.scanCourse(ctx)
	if err != nil {
		a.respondError(c, "duration", domerrors.NewWrapper("duration", "stream").Wrap(err, "Could not read the course folder"))
		return
	}

	r := duration.NewResolver(crs, a.oracle, cached, duration.Options{
		Root:    a.root,
		Logger:  a.logger,
		Metrics: a.metrics,
	})

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	rc := http.NewResponseController(c.Writer)
	send := func(event string, data any) {
		// A client that stops reading is cut off instead of pinning the probe.
		_ = rc.SetWriteDeadline(time.Now().Add(config.DurationStreamIdle))
		c.SSEvent(event, data)
		c.Writer.Flush()
	}

	send("start", streamStart{StructureHash: r.Fingerprint(), Pending: r.Pending(), Cache: r.CacheResult()})

	resolved := 0
	c.Stream(func(io.Writer) bool {
		u, ok := r.Next(ctx)
		if !ok {
			return false
		}
		ev := streamUpdate{Update: u}
		if u.Err != nil {
			ev.Error = u.Err.Error()
		} else {
			resolved++
		}
		send("duration", ev)
		return true
	})

	saveCtx, saveCancel := context.WithTimeout(ctxutil.PreserveTracing(ctx), cacheSaveTimeout)
	if err := a.saveDurationCache(saveCtx, r.CacheEntry()); err != nil {
		a.logger.WithError(err).WarnContext(saveCtx, "Failed to save duration cache")
	}
	saveCancel()

	if ctx.Err() == nil {
		send("done", streamDone{Resolved: resolved, Skipped: r.Skipped(), TotalDuration: crs.TotalDurationSeconds})
	}
}

func (a *Application) saveDurationCache(ctx context.Context, entry duration.CacheEntry) error {
	return a.db.SaveDurationCache(ctx, &storage.DurationCache{
		CourseKey:     a.courseKey,
		StructureHash: entry.Fingerprint,
		Durations:     entry.Durations,
		SavedAt:       entry.SavedAt.UnixMilli(),
	})
}

func (a *Application) getDurationCache(c *gin.Context) {
	dc, err := a.db.GetDurationCache(c.Request.Context(), a.courseKey)
	if err != nil {
		a.respondError(c, "duration", domerrors.NewWrapper("duration", "get_cache").Wrap(err, "Could not load the duration cache"))
		return
	}
	if dc == nil {
		a.respondError(c, "duration", domerrors.NewWrapper("duration", "get_cache").Wrap(domerrors.ErrNotFound, "No duration cache saved"))
		return
	}
	c.JSON(http.StatusOK, dc)
}

type durationCacheRequest struct {
	StructureHash string              `json:"structure_hash" binding:"required"`
	Durations     map[string]*float64 `json:"durations"`
}

// putDurationCache stores durations measured by the player itself. Entries
// are only checked for shape; a stale hash is simply ignored on next load.
func (a *Application) putDurationCache(c *gin.Context) {
	wrap := domerrors.NewWrapper("duration", "put_cache")

	var req durationCacheRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.respondError(c, "duration", wrap.Wrap(domerrors.NewValidationError("body", err.Error()), "Invalid duration cache payload"))
		return
	}
	for path, seconds := range req.Durations {
		if !validRelPath(path) || (seconds != nil && !validSeconds(*seconds)) {
			a.respondError(c, "duration", wrap.Wrapf(domerrors.NewValidationError("durations", "invalid entry"), "Invalid duration for %q", path))
			return
		}
	}

	entry := duration.CacheEntry{Fingerprint: req.StructureHash, Durations: req.Durations, SavedAt: time.Now().UTC()}
	if entry.Durations == nil {
		entry.Durations = map[string]*float64{}
	}
	if err := a.saveDurationCache(c.Request.Context(), entry); err != nil {
		a.respondError(c, "duration", wrap.Wrap(err, "Could not save the duration cache"))
		return
	}
	c.Status(http.StatusNoContent)
}
