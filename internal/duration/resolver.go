// Package duration resolves video durations one at a time and keeps the
// course totals current as results arrive.
package duration

import (
	"context"
	"iter"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/Lacarte/video-player/internal/course"
	"github.com/Lacarte/video-player/internal/errors"
	"github.com/Lacarte/video-player/internal/fingerprint"
	"github.com/Lacarte/video-player/internal/logger"
)

// Oracle measures the playable length of a media file.
type Oracle interface {
	Duration(ctx context.Context, absPath string) (float64, error)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(ctx context.Context, absPath string) (float64, error)

func (f OracleFunc) Duration(ctx context.Context, absPath string) (float64, error) {
	return f(ctx, absPath)
}

// Recorder receives resolver metrics. *metrics.Metrics satisfies it.
type Recorder interface {
	RecordProbe(status string, duration time.Duration)
	RecordDurationCache(result string)
}

// Update is the outcome for one pending video. Seconds is nil when the
// oracle failed; Err then matches errors.ErrDurationResolutionFailed.
type Update struct {
	Path    string   `json:"path"`
	Seconds *float64 `json:"duration"`
	Err     error    `json:"-"`
	Done    int      `json:"done"`
	Total   int      `json:"total"`
}

// Options configures a Resolver.
type Options struct {
	Root    string // absolute course root; defaults to the course's RootPath
	Logger  *logger.Logger
	Metrics Recorder
}

// Resolver is a finite, non-restartable sequence of duration updates over
// the videos of one course that had no duration when it was created.
// Calls to Next are serialized so the oracle never runs concurrently.
type Resolver struct {
	mu          sync.Mutex
	course      *course.Course
	oracle      Oracle
	root        string
	fingerprint string
	cache       CacheResult
	pending     []*course.Video
	next        int
	skipped     []string
	logger      *logger.Logger
	metrics     Recorder
}

// NewResolver applies cache when it matches the current tree and queues
// every still unresolved video in playback order.
func NewResolver(c *course.Course, oracle Oracle, cache *CacheEntry, opts Options) *Resolver {
	if opts.Root == "" {
		opts.Root = c.RootPath
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	r := &Resolver{
		course:      c,
		oracle:      oracle,
		root:        opts.Root,
		fingerprint: fingerprint.Compute(c),
		logger:      opts.Logger.WithModule("duration"),
		metrics:     opts.Metrics,
	}

	result, applied := ApplyCache(c, cache, r.fingerprint)
	r.cache = result
	switch result {
	case CacheInvalid:
		r.logger.WithError(cache.Check(r.fingerprint)).Info("Duration cache ignored")
	case CacheHit:
		r.logger.Debug("Duration cache applied", "durations", applied)
	}
	if r.metrics != nil {
		r.metrics.RecordDurationCache(string(result))
	}

	for v := range c.AllVideos() {
		if !v.Resolved() {
			r.pending = append(r.pending, v)
		}
	}
	return r
}

// Next resolves the next pending video. It returns false once every video
// has been tried or ctx is done. An oracle failure is reported in the
// update and does not end the sequence.
func (r *Resolver) Next(ctx context.Context) (Update, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ctx.Err() != nil || r.next >= len(r.pending) {
		return Update{}, false
	}
	v := r.pending[r.next]

	start := time.Now()
	seconds, err := Measure(ctx, r.oracle, filepath.Join(r.root, filepath.FromSlash(v.Path)))
	elapsed := time.Since(start)
	if err == nil {
		err = r.course.ApplyDuration(v.Path, seconds)
	}
	if err != nil && ctx.Err() != nil {
		// Cancelled mid-call; the video stays pending and the sequence ends.
		return Update{}, false
	}
	r.next++

	u := Update{Path: v.Path, Done: r.next, Total: len(r.pending)}
	if err != nil {
		u.Err = errors.NewProbeError(v.Path, err)
		r.skipped = append(r.skipped, v.Path)
		r.record(ProbeStatus(err), elapsed)
		r.logger.WithError(err).WarnContext(ctx, "Duration unresolved, skipping", "path", v.Path)
		return u, true
	}
	u.Seconds = &seconds
	r.record("success", elapsed)
	return u, true
}

// All ranges over the remaining updates. Breaking out of the loop leaves the
// resolver where it stopped.
func (r *Resolver) All(ctx context.Context) iter.Seq[Update] {
	return func(yield func(Update) bool) {
		for {
			u, ok := r.Next(ctx)
			if !ok || !yield(u) {
				return
			}
		}
	}
}

// Run drains the resolver and returns the number of successful updates.
func (r *Resolver) Run(ctx context.Context) int {
	n := 0
	for u := range r.All(ctx) {
		if u.Err == nil {
			n++
		}
	}
	return n
}

// Pending returns how many videos were queued.
func (r *Resolver) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Remaining returns how many queued videos have not been tried yet.
func (r *Resolver) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending) - r.next
}

// Skipped returns the paths whose resolution failed.
func (r *Resolver) Skipped() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.skipped...)
}

// CacheResult reports how the supplied cache entry was used.
func (r *Resolver) CacheResult() CacheResult {
	return r.cache
}

// Fingerprint returns the structure fingerprint of the course.
func (r *Resolver) Fingerprint() string {
	return r.fingerprint
}

// CacheEntry snapshots the resolved durations for persisting.
func (r *Resolver) CacheEntry() CacheEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot(r.course, r.fingerprint)
}

func (r *Resolver) record(status string, elapsed time.Duration) {
	if r.metrics != nil {
		r.metrics.RecordProbe(status, elapsed)
	}
}

// Measure makes one oracle call and rejects values that are not finite
// and non-negative.
func Measure(ctx context.Context, oracle Oracle, absPath string) (float64, error) {
	seconds, err := oracle.Duration(ctx, absPath)
	if err != nil {
		return 0, err
	}
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, errors.NewValidationError("duration", "oracle returned an invalid duration")
	}
	return seconds, nil
}

// ProbeStatus is the metrics label for a failed oracle call.
func ProbeStatus(err error) string {
	switch {
	case errors.IsTimeout(err):
		return "timeout"
	case errors.IsInvalidInput(err):
		return "invalid"
	default:
		return "error"
	}
}
