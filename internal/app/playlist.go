package app

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Lacarte/video-player/internal/config"
	"github.com/Lacarte/video-player/internal/course"
	"github.com/Lacarte/video-player/internal/ctxutil"
	"github.com/Lacarte/video-player/internal/duration"
	domerrors "github.com/Lacarte/video-player/internal/errors"
	"github.com/Lacarte/video-player/internal/fingerprint"
	"github.com/Lacarte/video-player/internal/progress"
	"github.com/Lacarte/video-player/internal/storage"
)

// playlistResponse is the course document plus cache bookkeeping.
type playlistResponse struct {
	*course.Course
	StructureHash string               `json:"structure_hash"`
	DurationCache duration.CacheResult `json:"duration_cache"`
}

// scanCourse builds a fresh tree and loads the stored duration cache for
// it. The cache is returned unapplied so callers choose how to merge it.
func (a *Application) scanCourse(ctx context.Context) (*course.Course, *duration.CacheEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, config.PlaylistBuild)
	defer cancel()

	c, err := a.builder.BuildCourse(ctx, a.root)
	if err != nil {
		return nil, nil, err
	}
	stored, err := a.db.GetDurationCache(ctx, a.courseKey)
	if err != nil {
		// A broken cache only costs re-probing.
		a.logger.WithError(err).WarnContext(ctx, "Duration cache unavailable")
		stored = nil
	}
	return c, cacheEntryFrom(stored), nil
}

// applyCustomOrder runs after fingerprinting, so reordering never
// invalidates the duration cache.
func (a *Application) applyCustomOrder(ctx context.Context, c *course.Course) error {
	order, err := a.progress.CustomOrder(ctx, a.courseKey)
	if err != nil {
		return err
	}
	progress.ApplyCustomOrder(c, order)
	return nil
}

// buildPlaylist scans, merges cached durations and applies the custom order.
func (a *Application) buildPlaylist(ctx context.Context) ([]byte, error) {
	c, cached, err := a.scanCourse(ctx)
	if err != nil {
		return nil, err
	}

	hash := fingerprint.Compute(c)
	result, applied := duration.ApplyCache(c, cached, hash)
	if a.metrics != nil {
		a.metrics.RecordDurationCache(string(result))
	}
	a.logger.DebugContext(ctx, "Playlist built", "cache", result, "cached_durations", applied)

	if err := a.applyCustomOrder(ctx, c); err != nil {
		return nil, err
	}
	return json.Marshal(playlistResponse{Course: c, StructureHash: hash, DurationCache: result})
}

func (a *Application) getPlaylist(c *gin.Context) {
	// Concurrent page loads share one scan. The scan is detached from any
	// single caller so one client going away does not fail the others.
	ctx := ctxutil.PreserveTracing(c.Request.Context())
	v, err, shared := a.flight.Do("playlist", func() (any, error) {
		return a.buildPlaylist(ctx)
	})
	if shared && a.metrics != nil {
		a.metrics.RecordSingleflightDedup("playlist")
	}
	if err != nil {
		a.respondError(c, "playlist", domerrors.NewWrapper("playlist", "build_course").Wrap(err, "Could not read the course folder"))
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", v.([]byte))
}

type resumeResponse struct {
	Path      string   `json:"path"`
	Title     string   `json:"title"`
	Position  float64  `json:"position"`
	Duration  *float64 `json:"duration"`
	Completed bool     `json:"completed"`
}

func (a *Application) getResume(c *gin.Context) {
	ctx := c.Request.Context()
	wrap := domerrors.NewWrapper("playlist", "resume")

	crs, _, err := a.scanCourse(ctx)
	if err != nil {
		a.respondError(c, "playlist", wrap.Wrap(err, "Could not read the course folder"))
		return
	}
	if err := a.applyCustomOrder(ctx, crs); err != nil {
		a.respondError(c, "playlist", wrap.Wrap(err, "Could not load the saved order"))
		return
	}

	v, ok, err := a.progress.Resume(ctx, crs)
	if err != nil {
		a.respondError(c, "playlist", wrap.Wrap(err, "Could not load progress"))
		return
	}
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}

	resp := resumeResponse{Path: v.Path, Title: v.Title, Duration: v.DurationSeconds}
	if p, found, err := a.progress.Get(ctx, a.courseKey, v.Path); err == nil && found {
		resp.Position = p.PositionSeconds
		resp.Completed = p.Completed
		if resp.Duration == nil {
			resp.Duration = p.DurationSeconds
		}
	}
	c.JSON(http.StatusOK, resp)
}

type orderRequest struct {
	Order map[string]int `json:"order"`
}

func (a *Application) putOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.respondError(c, "playlist", domerrors.NewWrapper("playlist", "set_order").
			Wrap(domerrors.NewValidationError("body", err.Error()), "Invalid order payload"))
		return
	}
	for path := range req.Order {
		if !validRelPath(path) {
			a.respondError(c, "playlist", domerrors.NewWrapper("playlist", "set_order").
				Wrapf(domerrors.NewValidationError("order", "invalid path"), "Invalid path %q", path))
			return
		}
	}
	if err := a.progress.SetCustomOrder(c.Request.Context(), a.courseKey, req.Order); err != nil {
		a.respondError(c, "playlist", domerrors.NewWrapper("playlist", "set_order").Wrap(err, "Could not save the order"))
		return
	}
	c.Status(http.StatusNoContent)
}

func cacheEntryFrom(dc *storage.DurationCache) *duration.CacheEntry {
	if dc == nil {
		return nil
	}
	return &duration.CacheEntry{
		Fingerprint: dc.StructureHash,
		Durations:   dc.Durations,
		SavedAt:     time.UnixMilli(dc.SavedAt).UTC(),
	}
}
