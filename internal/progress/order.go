package progress

import (
	"cmp"
	"context"
	"slices"

	"github.com/Lacarte/video-player/internal/course"
)

// ApplyCustomOrder re-sorts every sibling list of c by rank. Ranked entries
// come first, lowest rank first; unranked entries follow in their existing
// order. Totals are recomputed so later ApplyDuration calls stay consistent.
func ApplyCustomOrder(c *course.Course, order map[string]int) {
	if len(order) == 0 {
		return
	}
	reorder(c.Videos, order, func(v *course.Video) string { return v.Path })
	reorder(c.Documents, order, func(d *course.Document) string { return d.Path })
	reorderChapters(c.Chapters, order)
	c.Recompute()
}

func reorderChapters(chs []*course.Chapter, order map[string]int) {
	reorder(chs, order, func(ch *course.Chapter) string { return ch.Path })
	for _, ch := range chs {
		reorder(ch.Videos, order, func(v *course.Video) string { return v.Path })
		reorder(ch.Documents, order, func(d *course.Document) string { return d.Path })
		reorderChapters(ch.Children, order)
	}
}

func reorder[T any](items []T, order map[string]int, path func(T) string) {
	slices.SortStableFunc(items, func(a, b T) int {
		ra, okA := order[path(a)]
		rb, okB := order[path(b)]
		switch {
		case okA && okB:
			return cmp.Compare(ra, rb)
		case okA:
			return -1
		case okB:
			return 1
		default:
			return 0
		}
	})
}

// Resume picks the video to continue with: the last watched one if it is
// still in the course, otherwise the first video not yet completed in
// playback order. It reports false when every video is complete.
func (s *Store) Resume(ctx context.Context, c *course.Course) (*course.Video, bool, error) {
	key := c.Key()

	s.mu.Lock()
	cs, err := s.loadLocked(ctx, key)
	if err != nil {
		s.mu.Unlock()
		return nil, false, err
	}
	last := cs.lastWatched
	completed := make(map[string]bool, len(cs.progress))
	for path, p := range cs.progress {
		completed[path] = p.Completed
	}
	s.mu.Unlock()

	if last != "" {
		if v, ok := c.VideoByPath(last); ok {
			return v, true, nil
		}
	}
	for v := range c.AllVideos() {
		if !completed[v.Path] {
			return v, true, nil
		}
	}
	return nil, false, nil
}
