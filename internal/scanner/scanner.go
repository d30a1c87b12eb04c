// Package scanner builds a course tree from a folder on disk.
//
// A scan is synchronous and single-goroutine. Each folder is read once with
// os.ReadDir; unreadable sub-folders become warnings on their parent and
// only an unreadable root fails the scan.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/Lacarte/video-player/internal/classify"
	"github.com/Lacarte/video-player/internal/course"
	"github.com/Lacarte/video-player/internal/errors"
	"github.com/Lacarte/video-player/internal/logger"
	"github.com/Lacarte/video-player/internal/ordering"
)

// Recorder receives scan metrics. *metrics.Metrics satisfies it.
type Recorder interface {
	RecordScan(status string, duration time.Duration, videos, warnings int)
}

// Config configures a Builder.
type Config struct {
	Classifier      *classify.Classifier
	FlattenWrappers bool
	Logger          *logger.Logger
	Metrics         Recorder // optional
}

// Builder turns folders into course trees. It holds no per-scan state and
// may be shared.
type Builder struct {
	classifier *classify.Classifier
	flatten    bool
	logger     *logger.Logger
	metrics    Recorder
}

// New creates a Builder. A nil Classifier uses classify.New().
func New(cfg Config) *Builder {
	if cfg.Classifier == nil {
		cfg.Classifier = classify.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	return &Builder{
		classifier: cfg.Classifier,
		flatten:    cfg.FlattenWrappers,
		logger:     cfg.Logger.WithModule("scanner"),
		metrics:    cfg.Metrics,
	}
}

// BuildCourse scans root and returns the sorted course tree with derived
// totals computed. A missing or unreadable root returns an error matching
// errors.ErrCourseNotFound.
func (b *Builder) BuildCourse(ctx context.Context, root string) (*course.Course, error) {
	start := time.Now()
	c, err := b.build(ctx, root)

	status := "success"
	var videos, warnings int
	switch {
	case err != nil:
		status = "error"
	case len(c.Warnings) > 0 || hasChapterWarnings(c):
		status = "partial"
	}
	if c != nil {
		videos = c.TotalVideos
		warnings = countWarnings(c)
	}
	if b.metrics != nil {
		b.metrics.RecordScan(status, time.Since(start), videos, warnings)
	}

	if err != nil {
		return nil, err
	}
	b.logger.InfoContext(ctx, "Course scanned",
		"root", c.RootPath,
		"videos", c.TotalVideos,
		"chapters", countChapters(c),
		"warnings", warnings,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return c, nil
}

func (b *Builder) build(ctx context.Context, root string) (*course.Course, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.NewScanError(root, errors.ErrCourseNotFound, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.NewScanError(abs, errors.ErrCourseNotFound, err)
	}
	if !info.IsDir() {
		return nil, errors.NewScanError(abs, errors.ErrCourseNotFound, fmt.Errorf("not a directory"))
	}

	top := &course.Chapter{}
	if err := b.scanFolder(ctx, abs, "", top); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, errors.NewScanError(abs, errors.ErrCourseNotFound, err)
	}

	c := &course.Course{
		Title:     filepath.Base(abs),
		RootPath:  abs,
		Videos:    top.Videos,
		Documents: top.Documents,
		Chapters:  top.Children,
		Warnings:  top.Warnings,
	}
	c.Recompute()
	if err := c.Reindex(); err != nil {
		return nil, fmt.Errorf("build course index: %w", err)
	}
	return c, nil
}

// scanFolder fills ch with the contents of dir. It returns an error only
// when dir itself cannot be listed or ctx is done.
func (b *Builder) scanFolder(ctx context.Context, dir, rel string, ch *course.Chapter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	type folder struct {
		name string
		info fs.FileInfo
	}
	var (
		subs    []subtitleFile
		folders []folder
	)
	for _, entry := range entries {
		name := entry.Name()
		full := filepath.Join(dir, name)
		relPath := path.Join(rel, name)

		info, err := statEntry(full, entry)
		if err != nil {
			b.warn(ctx, ch, relPath, err)
			continue
		}
		if info.IsDir() {
			if entry.Type()&fs.ModeSymlink == 0 && !b.classifier.IgnoreFolder(name) {
				folders = append(folders, folder{name: name, info: info})
			}
			continue
		}
		if !info.Mode().IsRegular() || b.classifier.IgnoreFile(name) {
			continue
		}

		size, mod := info.Size(), info.ModTime().UnixNano()
		switch b.classifier.Classify(name) {
		case classify.KindVideo:
			ch.Videos = append(ch.Videos, &course.Video{
				Title:     ordering.CleanTitle(name, true),
				File:      name,
				Path:      relPath,
				OrderKey:  orderKey(full, name, info),
				SizeBytes: size,
				ModTime:   mod,
			})
		case classify.KindSubtitle:
			subs = append(subs, subtitleFile{name: name, path: relPath, size: size, modTime: mod})
		default:
			ch.Documents = append(ch.Documents, &course.Document{
				Kind:      classify.DocumentKindOf(filepath.Ext(name)),
				Title:     ordering.CleanTitle(name, true),
				File:      name,
				Path:      relPath,
				OrderKey:  orderKey(full, name, info),
				SizeBytes: size,
				ModTime:   mod,
			})
		}
	}

	sortVideos(ch.Videos)
	ordering.Sort(subs, func(s subtitleFile) ordering.Key { return ordering.Extract(s.name, time.Time{}) })
	attachSubtitles(ch.Videos, subs)

	for _, f := range folders {
		full := filepath.Join(dir, f.name)
		relPath := path.Join(rel, f.name)

		child := &course.Chapter{
			Title:    ordering.CleanTitle(f.name, false),
			Path:     relPath,
			OrderKey: orderKey(full, f.name, f.info),
		}
		if err := b.scanFolder(ctx, full, relPath, child); err != nil {
			if ctx.Err() != nil {
				return err
			}
			b.warn(ctx, ch, relPath, err)
			continue
		}
		b.adopt(ch, child)
	}

	sortVideos(ch.Videos)
	ordering.Sort(ch.Documents, func(d *course.Document) ordering.Key { return d.OrderKey })
	ordering.Sort(ch.Children, func(c *course.Chapter) ordering.Key { return c.OrderKey })
	return nil
}

// adopt attaches a scanned sub-folder to its parent. Empty folders are
// dropped. A wrapper folder, holding a single video and no sub-folders,
// is dissolved: the video takes the folder's title and order key.
func (b *Builder) adopt(parent, child *course.Chapter) {
	if len(child.Warnings) == 0 {
		if child.Empty() {
			return
		}
		if b.flatten && len(child.Videos) == 1 && len(child.Children) == 0 {
			v := child.Videos[0]
			v.Title = child.Title
			v.OrderKey = child.OrderKey
			parent.Videos = append(parent.Videos, v)
			parent.Documents = append(parent.Documents, child.Documents...)
			return
		}
	}
	parent.Children = append(parent.Children, child)
}

func (b *Builder) warn(ctx context.Context, ch *course.Chapter, relPath string, err error) {
	scanErr := errors.NewScanError(relPath, errors.ErrPartialScan, err)
	ch.Warnings = append(ch.Warnings, scanErr.Error())
	b.logger.WithError(err).WarnContext(ctx, "Skipped unreadable entry", "path", relPath)
}

// statEntry resolves symlinks so linked files are listed like regular ones.
func statEntry(full string, entry fs.DirEntry) (fs.FileInfo, error) {
	if entry.Type()&fs.ModeSymlink != 0 {
		return os.Stat(full)
	}
	return entry.Info()
}

// orderKey only pays for the creation-time lookup on dash-prefixed names.
func orderKey(full, name string, info fs.FileInfo) ordering.Key {
	var created time.Time
	if ordering.IsDashPrefixed(name) {
		created = creationTime(full, info)
	}
	return ordering.Extract(name, created)
}

func sortVideos(videos []*course.Video) {
	ordering.Sort(videos, func(v *course.Video) ordering.Key { return v.OrderKey })
}

func hasChapterWarnings(c *course.Course) bool {
	for ch := range c.AllChapters() {
		if len(ch.Warnings) > 0 {
			return true
		}
	}
	return false
}

func countWarnings(c *course.Course) int {
	n := len(c.Warnings)
	for ch := range c.AllChapters() {
		n += len(ch.Warnings)
	}
	return n
}

func countChapters(c *course.Course) int {
	n := 0
	for range c.AllChapters() {
		n++
	}
	return n
}
