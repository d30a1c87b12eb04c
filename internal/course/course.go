// Package course defines the course tree produced by a scan and the derived
// duration totals kept on it.
//
// Chapters own their videos, documents and children. Nothing points back up
// the tree; navigation from a video to its chapter goes through Index, which
// is rebuilt from the tree on demand.
package course

import (
	"encoding/json"
	"fmt"
	"iter"
	"math"
	"path/filepath"

	"github.com/Lacarte/video-player/internal/classify"
	"github.com/Lacarte/video-player/internal/errors"
	"github.com/Lacarte/video-player/internal/ordering"
)

// Subtitle is a subtitle file attached to a video in the same folder.
type Subtitle struct {
	Label     string `json:"label"`
	Lang      string `json:"lang"`
	File      string `json:"file"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size"`
	ModTime   int64  `json:"mtime"` // unix nanoseconds
}

// Video is a playable file. DurationSeconds is nil until resolved.
type Video struct {
	Title           string       `json:"title"`
	File            string       `json:"file"`
	Path            string       `json:"path"`
	OrderKey        ordering.Key `json:"order_key"`
	DurationSeconds *float64     `json:"duration"`
	Subtitles       []Subtitle   `json:"subtitles"`
	SizeBytes       int64        `json:"size"`
	ModTime         int64        `json:"mtime"`
}

// Duration returns the resolved duration, or 0 when unresolved.
func (v *Video) Duration() float64 {
	if v.DurationSeconds == nil {
		return 0
	}
	return *v.DurationSeconds
}

// Resolved reports whether the duration is known.
func (v *Video) Resolved() bool {
	return v.DurationSeconds != nil
}

// Document is any non-video, non-subtitle file kept in the tree.
type Document struct {
	Kind      classify.DocumentKind `json:"type"`
	Title     string                `json:"title"`
	File      string                `json:"file"`
	Path      string                `json:"path"`
	OrderKey  ordering.Key          `json:"order_key"`
	SizeBytes int64                 `json:"size"`
	ModTime   int64                 `json:"mtime"`
}

// Chapter is a folder node. DurationSeconds and VideoCount are derived from
// its subtree and only ever written by Recompute and ApplyDuration.
type Chapter struct {
	Title           string       `json:"title"`
	Path            string       `json:"path"`
	OrderKey        ordering.Key `json:"order_key"`
	Videos          []*Video     `json:"videos"`
	Documents       []*Document  `json:"documents"`
	Children        []*Chapter   `json:"children"`
	DurationSeconds float64      `json:"duration"`
	VideoCount      int          `json:"video_count"`
	Warnings        []string     `json:"warnings,omitempty"`
}

// Empty reports whether the chapter has nothing to show.
func (ch *Chapter) Empty() bool {
	return len(ch.Videos) == 0 && len(ch.Documents) == 0 && len(ch.Children) == 0
}

// Course is the root of the tree.
type Course struct {
	Title                string      `json:"title"`
	RootPath             string      `json:"root_path"`
	Videos               []*Video    `json:"videos"`
	Documents            []*Document `json:"documents"`
	Chapters             []*Chapter  `json:"chapters"`
	TotalVideos          int         `json:"total_videos"`
	TotalDurationSeconds float64     `json:"total_duration"`
	Warnings             []string    `json:"warnings,omitempty"`

	index *Index
}

// KeyFor derives the per-course storage key from a root path.
func KeyFor(root string) string {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return filepath.ToSlash(filepath.Clean(root))
}

// Key returns the storage key of this course.
func (c *Course) Key() string {
	return KeyFor(c.RootPath)
}

// Recompute rebuilds every derived total bottom-up.
func (c *Course) Recompute() {
	total, count := sumVideos(c.Videos)
	for _, ch := range c.Chapters {
		recomputeChapter(ch)
		total += ch.DurationSeconds
		count += ch.VideoCount
	}
	c.TotalDurationSeconds = total
	c.TotalVideos = count
}

func recomputeChapter(ch *Chapter) {
	for _, child := range ch.Children {
		recomputeChapter(child)
	}
	sumChapter(ch)
}

// sumChapter derives ch's totals from its own videos and the already
// derived totals of its children. Recompute and ApplyDuration both go
// through here so they add in the same order.
func sumChapter(ch *Chapter) {
	total, count := sumVideos(ch.Videos)
	for _, child := range ch.Children {
		total += child.DurationSeconds
		count += child.VideoCount
	}
	ch.DurationSeconds = total
	ch.VideoCount = count
}

func sumCourse(c *Course) {
	total, _ := sumVideos(c.Videos)
	for _, ch := range c.Chapters {
		total += ch.DurationSeconds
	}
	c.TotalDurationSeconds = total
}

func sumVideos(videos []*Video) (float64, int) {
	var total float64
	for _, v := range videos {
		total += v.Duration()
	}
	return total, len(videos)
}

// ApplyDuration sets the duration of the video at path and updates the
// totals of its ancestors only. Each ancestor re-sums its direct children,
// costing O(depth × fan-out), so totals stay bit-identical to Recompute no
// matter how many updates are applied.
func (c *Course) ApplyDuration(path string, seconds float64) error {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return errors.NewValidationError("duration", fmt.Sprintf("invalid duration %v for %s", seconds, path))
	}
	idx := c.Index()
	v, ok := idx.videos[path]
	if !ok {
		return fmt.Errorf("video %q: %w", path, errors.ErrNotFound)
	}
	v.DurationSeconds = &seconds

	for chPath, ok := idx.owner[path]; ok; chPath, ok = idx.parent[chPath] {
		sumChapter(idx.chapters[chPath])
	}
	sumCourse(c)
	return nil
}

// Index returns the derived lookup tables, building them on first use.
// Call Reindex after changing the tree shape.
func (c *Course) Index() *Index {
	if c.index == nil {
		c.index = buildIndex(c)
	}
	return c.index
}

// Reindex rebuilds the lookup tables and reports duplicate paths.
func (c *Course) Reindex() error {
	c.index = buildIndex(c)
	if len(c.index.duplicates) > 0 {
		return errors.NewValidationError("path", fmt.Sprintf("duplicate paths in course: %v", c.index.duplicates))
	}
	return nil
}

// VideoByPath looks up a video anywhere in the tree.
func (c *Course) VideoByPath(path string) (*Video, bool) {
	v, ok := c.Index().videos[path]
	return v, ok
}

// OwningChapter returns the chapter that lists the video at path. ok is
// false for top-level videos and unknown paths.
func (c *Course) OwningChapter(path string) (*Chapter, bool) {
	idx := c.Index()
	chPath, ok := idx.owner[path]
	if !ok {
		return nil, false
	}
	return idx.chapters[chPath], true
}

// AllVideos yields videos in playback order: top-level videos, then each
// chapter depth-first.
func (c *Course) AllVideos() iter.Seq[*Video] {
	return func(yield func(*Video) bool) {
		for _, v := range c.Videos {
			if !yield(v) {
				return
			}
		}
		for _, ch := range c.Chapters {
			if !yieldChapterVideos(ch, yield) {
				return
			}
		}
	}
}

func yieldChapterVideos(ch *Chapter, yield func(*Video) bool) bool {
	for _, v := range ch.Videos {
		if !yield(v) {
			return false
		}
	}
	for _, child := range ch.Children {
		if !yieldChapterVideos(child, yield) {
			return false
		}
	}
	return true
}

// AllChapters yields every chapter depth-first in display order.
func (c *Course) AllChapters() iter.Seq[*Chapter] {
	return func(yield func(*Chapter) bool) {
		var walk func(chs []*Chapter) bool
		walk = func(chs []*Chapter) bool {
			for _, ch := range chs {
				if !yield(ch) || !walk(ch.Children) {
					return false
				}
			}
			return true
		}
		walk(c.Chapters)
	}
}

// Parse decodes a course document and restores its derived state.
func Parse(data []byte) (*Course, error) {
	var c Course
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode course: %w", err)
	}
	c.Recompute()
	if err := c.Reindex(); err != nil {
		return nil, err
	}
	return &c, nil
}
