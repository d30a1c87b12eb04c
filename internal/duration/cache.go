package duration

import (
	"fmt"
	"time"

	"github.com/Lacarte/video-player/internal/course"
	"github.com/Lacarte/video-player/internal/errors"
)

// CacheEntry is a persisted duration map tied to the structure fingerprint
// it was computed for.
type CacheEntry struct {
	Fingerprint string              `json:"structure_hash"`
	Durations   map[string]*float64 `json:"durations"`
	SavedAt     time.Time           `json:"saved_at"`
}

// CacheResult describes how a cache entry was used.
type CacheResult string

const (
	CacheHit     CacheResult = "hit"
	CacheMiss    CacheResult = "miss"
	CacheInvalid CacheResult = "invalid"
)

// Check returns an error matching errors.ErrCacheInvalid when the entry was
// computed for a different tree.
func (e *CacheEntry) Check(fingerprint string) error {
	if e.Fingerprint != fingerprint {
		return fmt.Errorf("%w: stored %q, current %q", errors.ErrCacheInvalid, e.Fingerprint, fingerprint)
	}
	return nil
}

// ApplyCache merges the non-null durations of entry into c when the entry
// matches fingerprint. Paths no longer in the tree are ignored.
func ApplyCache(c *course.Course, entry *CacheEntry, fingerprint string) (CacheResult, int) {
	if entry == nil {
		return CacheMiss, 0
	}
	if entry.Check(fingerprint) != nil {
		return CacheInvalid, 0
	}
	applied := 0
	for path, seconds := range entry.Durations {
		if seconds == nil {
			continue
		}
		if err := c.ApplyDuration(path, *seconds); err == nil {
			applied++
		}
	}
	return CacheHit, applied
}

// Snapshot captures every resolved duration of c as a cache entry.
func Snapshot(c *course.Course, fingerprint string) CacheEntry {
	entry := CacheEntry{
		Fingerprint: fingerprint,
		Durations:   make(map[string]*float64),
		SavedAt:     time.Now().UTC(),
	}
	for v := range c.AllVideos() {
		if v.DurationSeconds != nil {
			d := *v.DurationSeconds
			entry.Durations[v.Path] = &d
		}
	}
	return entry
}
