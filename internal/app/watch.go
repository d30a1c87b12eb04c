package app

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	domerrors "github.com/Lacarte/video-player/internal/errors"
	"github.com/Lacarte/video-player/internal/progress"
	"github.com/Lacarte/video-player/internal/storage"
)

type progressListResponse struct {
	Progress        []storage.Progress `json:"progress"`
	LastWatchedPath string             `json:"last_watched_path"`
}

func (a *Application) listProgress(c *gin.Context) {
	ctx := c.Request.Context()
	wrap := domerrors.NewWrapper("progress", "list")

	records, err := a.progress.List(ctx, a.courseKey)
	if err != nil {
		a.respondError(c, "progress", wrap.Wrap(err, "Could not load progress"))
		return
	}
	last, err := a.progress.LastWatched(ctx, a.courseKey)
	if err != nil {
		a.respondError(c, "progress", wrap.Wrap(err, "Could not load progress"))
		return
	}
	if records == nil {
		records = []storage.Progress{}
	}
	c.JSON(http.StatusOK, progressListResponse{Progress: records, LastWatchedPath: last})
}

type progressRequest struct {
	Path     string   `json:"path" binding:"required"`
	Position float64  `json:"position"`
	Duration *float64 `json:"duration"`
	Ended    bool     `json:"ended"`
}

func (a *Application) putProgress(c *gin.Context) {
	wrap := domerrors.NewWrapper("progress", "save_position")

	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.respondError(c, "progress", wrap.Wrap(domerrors.NewValidationError("body", err.Error()), "Invalid progress payload"))
		return
	}
	if !validRelPath(req.Path) {
		a.respondError(c, "progress", wrap.Wrapf(domerrors.NewValidationError("path", "invalid path"), "Invalid path %q", req.Path))
		return
	}

	ctx := c.Request.Context()
	if req.Duration == nil {
		req.Duration = a.cachedDuration(ctx, req.Path)
	}

	record, err := a.progress.Update(ctx, a.courseKey, progress.Update{
		Path:     req.Path,
		Position: req.Position,
		Duration: req.Duration,
		Ended:    req.Ended,
	})
	if err != nil {
		a.respondError(c, "progress", wrap.Wrap(err, "Could not save progress"))
		return
	}
	c.JSON(http.StatusOK, record)
}

// cachedDuration returns the saved duration for path, or nil when the
// player has to report one itself.
func (a *Application) cachedDuration(ctx context.Context, path string) *float64 {
	dc, err := a.db.GetDurationCache(ctx, a.courseKey)
	if err != nil {
		a.logger.WithError(err).WarnContext(ctx, "Failed to load duration cache", "path", path)
		return nil
	}
	if dc == nil {
		return nil
	}
	if d := dc.Durations[path]; d != nil && *d > 0 {
		return d
	}
	return nil
}

func (a *Application) deleteProgress(c *gin.Context) {
	wrap := domerrors.NewWrapper("progress", "unmark")

	path := c.Query("path")
	if !validRelPath(path) {
		a.respondError(c, "progress", wrap.Wrap(domerrors.NewValidationError("path", "required"), "A video path is required"))
		return
	}
	if err := a.progress.Unmark(c.Request.Context(), a.courseKey, path); err != nil {
		a.respondError(c, "progress", wrap.Wrapf(err, "No progress saved for %q", path))
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *Application) getSettings(c *gin.Context) {
	settings, err := a.progress.Settings(c.Request.Context())
	if err != nil {
		a.respondError(c, "settings", domerrors.NewWrapper("settings", "get").Wrap(err, "Could not load settings"))
		return
	}
	c.JSON(http.StatusOK, settings)
}

// putSettings decodes over the current settings, so omitted fields keep
// their saved values.
func (a *Application) putSettings(c *gin.Context) {
	ctx := c.Request.Context()
	wrap := domerrors.NewWrapper("settings", "save")

	settings, err := a.progress.Settings(ctx)
	if err != nil {
		a.respondError(c, "settings", wrap.Wrap(err, "Could not load settings"))
		return
	}
	if err := c.ShouldBindJSON(&settings); err != nil {
		a.respondError(c, "settings", wrap.Wrap(domerrors.NewValidationError("body", err.Error()), "Invalid settings payload"))
		return
	}
	if err := a.progress.SaveSettings(ctx, settings); err != nil {
		a.respondError(c, "settings", wrap.Wrap(err, "Could not save settings"))
		return
	}
	c.JSON(http.StatusOK, settings)
}
