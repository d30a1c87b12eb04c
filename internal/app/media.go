package app

import (
	"errors"
	"fmt"
	"math"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	domerrors "github.com/Lacarte/video-player/internal/errors"
)

// mediaTypes covers containers and subtitle formats that the platform
// mime tables often lack.
var mediaTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".vtt":  "text/vtt; charset=utf-8",
	".srt":  "application/x-subrip",
}

func init() {
	if err := registerMediaTypes(mediaTypes); err != nil {
		panic(err)
	}
}

func registerMediaTypes(types map[string]string) error {
	for ext, typ := range types {
		if err := mime.AddExtensionType(ext, typ); err != nil {
			return fmt.Errorf("register mime type %s for %s: %w", typ, ext, err)
		}
	}
	return nil
}

var errOutsideCourse = domerrors.NewValidationError("path", "outside the course folder")

// serveMedia streams a file from the course folder. http.ServeFile
// handles Range and HEAD, so players can seek.
func (a *Application) serveMedia(c *gin.Context) {
	rel := c.Param("path")
	full, err := a.resolveMedia(rel)
	if err != nil {
		if errors.Is(err, errOutsideCourse) {
			a.logger.WarnContext(c.Request.Context(), "Media request outside course folder", "path", rel)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
		a.respondError(c, "media", domerrors.NewWrapper("media", "serve").Wrapf(err, "Media not found: %s", strings.TrimPrefix(rel, "/")))
		return
	}

	// Media is played inline by the page that requested it.
	c.Header("Content-Security-Policy", "default-src 'none'; media-src 'self'")
	c.Header("Cache-Control", "private, max-age=3600")
	c.File(full)
}

// resolveMedia maps a course-relative slash path to an existing regular
// file under the course root.
func (a *Application) resolveMedia(rel string) (string, error) {
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" || strings.ContainsRune(rel, 0) {
		return "", domerrors.NewValidationError("path", "empty or malformed")
	}

	full := filepath.Join(a.root, filepath.FromSlash(rel))
	if !isSubpath(a.root, full) {
		return "", errOutsideCourse
	}

	info, err := os.Stat(full)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domerrors.ErrNotFound, rel)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a file", domerrors.ErrNotFound, rel)
	}
	return full, nil
}

// isSubpath reports whether target lies inside base. Both must be clean
// absolute paths.
func isSubpath(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// validRelPath accepts the slash paths produced by a scan: relative, clean
// and free of parent references.
func validRelPath(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") || strings.ContainsRune(p, 0) {
		return false
	}
	if path.Clean(p) != p {
		return false
	}
	return p != ".." && !strings.HasPrefix(p, "../")
}

func validSeconds(f float64) bool {
	return f >= 0 && !math.IsNaN(f) && !math.IsInf(f, 0)
}
