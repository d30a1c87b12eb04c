// Package progress tracks per-video watch progress, per-course navigation
// state and global player settings.
//
// State is served from memory, loaded lazily per course, and persisted
// through a single writer goroutine. Writes are fire-and-forget: they are
// applied in memory immediately and queued in FIFO order, so two writes for
// the same video can never reach the database out of order.
package progress

import (
	"context"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Lacarte/video-player/internal/config"
	"github.com/Lacarte/video-player/internal/errors"
	"github.com/Lacarte/video-player/internal/logger"
	"github.com/Lacarte/video-player/internal/storage"
)

// DefaultCompletionThreshold is the watched fraction that marks a video
// complete.
const DefaultCompletionThreshold = 0.90

const (
	settingPlaybackSpeed = "playback_speed"
	settingAutoplay      = "autoplay"

	maxBatch = 64
)

// Settings are global player preferences.
type Settings struct {
	PlaybackSpeed float64 `json:"playback_speed"`
	Autoplay      bool    `json:"autoplay"`
}

// DefaultSettings returns the settings used before any are saved.
func DefaultSettings() Settings {
	return Settings{PlaybackSpeed: 1.0, Autoplay: true}
}

// Validate rejects non-positive or non-finite speeds.
func (s Settings) Validate() error {
	if math.IsNaN(s.PlaybackSpeed) || math.IsInf(s.PlaybackSpeed, 0) || s.PlaybackSpeed <= 0 || s.PlaybackSpeed > 16 {
		return errors.NewValidationError("playback_speed", "must be in (0, 16]")
	}
	return nil
}

// Update is one position report from the player.
type Update struct {
	Path     string
	Position float64
	Duration *float64 // optional; the player's own duration
	Ended    bool     // natural end of playback
}

// Recorder receives write metrics. *metrics.Metrics satisfies it.
type Recorder interface {
	RecordProgressWrite(kind, status string, count int)
}

// Options configures a Store.
type Options struct {
	Threshold float64 // zero means DefaultCompletionThreshold
	QueueSize int     // zero means 256
	Logger    *logger.Logger
	Metrics   Recorder // optional
}

type courseState struct {
	progress    map[string]*storage.Progress
	lastWatched string
	order       map[string]int
}

// op is one queued write. Exactly one field is set.
type op struct {
	progress *storage.Progress
	unmark   *storage.Progress
	state    *storage.CourseState
	setting  *[2]string
	flushed  chan struct{}
}

// Store is the progress store. It is safe for concurrent use.
type Store struct {
	repo      storage.StateRepository
	threshold float64
	logger    *logger.Logger
	metrics   Recorder

	// seqMu is held from a mutation until its writes are queued, so the
	// writer persists changes in the order they were applied in memory.
	seqMu sync.Mutex

	mu       sync.Mutex
	courses  map[string]*courseState
	settings *Settings

	sendMu sync.RWMutex
	closed bool
	queue  chan op
	done   chan struct{}
}

// New creates a Store and starts its writer goroutine. Call Close to drain
// and stop it.
func New(repo storage.StateRepository, opts Options) *Store {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultCompletionThreshold
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	s := &Store{
		repo:      repo,
		threshold: opts.Threshold,
		logger:    opts.Logger.WithModule("progress"),
		metrics:   opts.Metrics,
		courses:   make(map[string]*courseState),
		queue:     make(chan op, opts.QueueSize),
		done:      make(chan struct{}),
	}
	go s.run()
	return s
}

// Reached reports whether position has crossed threshold of duration.
// Unknown or zero durations never complete a video.
func Reached(position, duration, threshold float64) bool {
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return false
	}
	return position/duration >= threshold
}

// Update records a position report. The video becomes complete when the
// watched fraction reaches the threshold or playback ended naturally; it is
// never un-completed here. The course's last watched path moves to u.Path.
func (s *Store) Update(ctx context.Context, courseKey string, u Update) (storage.Progress, error) {
	if u.Path == "" {
		return storage.Progress{}, errors.NewValidationError("path", "required")
	}
	if math.IsNaN(u.Position) || math.IsInf(u.Position, 0) || u.Position < 0 {
		return storage.Progress{}, errors.NewValidationError("position", "must be a finite, non-negative number")
	}
	if u.Duration != nil && (math.IsNaN(*u.Duration) || math.IsInf(*u.Duration, 0) || *u.Duration < 0) {
		return storage.Progress{}, errors.NewValidationError("duration", "must be a finite, non-negative number")
	}

	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	return s.update(ctx, courseKey, u)
}

// update applies u and queues its writes. s.seqMu must be held.
func (s *Store) update(ctx context.Context, courseKey string, u Update) (storage.Progress, error) {
	s.mu.Lock()
	cs, err := s.loadLocked(ctx, courseKey)
	if err != nil {
		s.mu.Unlock()
		return storage.Progress{}, err
	}

	p, ok := cs.progress[u.Path]
	if !ok {
		p = &storage.Progress{CourseKey: courseKey, Path: u.Path}
		cs.progress[u.Path] = p
	}
	p.PositionSeconds = u.Position
	if u.Duration != nil && *u.Duration > 0 {
		d := *u.Duration
		p.DurationSeconds = &d
	}
	if !p.Completed {
		duration := 0.0
		if p.DurationSeconds != nil {
			duration = *p.DurationSeconds
		}
		p.Completed = u.Ended || Reached(u.Position, duration, s.threshold)
	}
	p.UpdatedAt = time.Now().UnixMilli()
	cs.lastWatched = u.Path

	record := *p
	state := cs.snapshot(courseKey, p.UpdatedAt)
	s.mu.Unlock()

	if err := s.enqueue(ctx, op{progress: &record}); err != nil {
		return record, err
	}
	return record, s.enqueue(ctx, op{state: state})
}

// MarkEnded marks a video complete without moving its position.
func (s *Store) MarkEnded(ctx context.Context, courseKey, path string) (storage.Progress, error) {
	if path == "" {
		return storage.Progress{}, errors.NewValidationError("path", "required")
	}
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	s.mu.Lock()
	cs, err := s.loadLocked(ctx, courseKey)
	var position float64
	if err == nil {
		if p, ok := cs.progress[path]; ok {
			position = p.PositionSeconds
		}
	}
	s.mu.Unlock()
	if err != nil {
		return storage.Progress{}, err
	}
	return s.update(ctx, courseKey, Update{Path: path, Position: position, Ended: true})
}

// Unmark forgets a video's progress, clearing its completion. Playback
// never calls this; it exists for the explicit user action.
func (s *Store) Unmark(ctx context.Context, courseKey, path string) error {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	s.mu.Lock()
	cs, err := s.loadLocked(ctx, courseKey)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	_, ok := cs.progress[path]
	delete(cs.progress, path)
	s.mu.Unlock()

	if !ok {
		return errors.ErrNotFound
	}
	return s.enqueue(ctx, op{unmark: &storage.Progress{CourseKey: courseKey, Path: path}})
}

// Get returns the progress of one video.
func (s *Store) Get(ctx context.Context, courseKey, path string) (storage.Progress, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, err := s.loadLocked(ctx, courseKey)
	if err != nil {
		return storage.Progress{}, false, err
	}
	p, ok := cs.progress[path]
	if !ok {
		return storage.Progress{}, false, nil
	}
	return *p, true, nil
}

// List returns every progress record of a course, sorted by path.
func (s *Store) List(ctx context.Context, courseKey string) ([]storage.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, err := s.loadLocked(ctx, courseKey)
	if err != nil {
		return nil, err
	}
	out := make([]storage.Progress, 0, len(cs.progress))
	for _, p := range cs.progress {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// LastWatched returns the path most recently saved for a course.
func (s *Store) LastWatched(ctx context.Context, courseKey string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, err := s.loadLocked(ctx, courseKey)
	if err != nil {
		return "", err
	}
	return cs.lastWatched, nil
}

// CustomOrder returns a copy of the course's order override, or nil.
func (s *Store) CustomOrder(ctx context.Context, courseKey string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, err := s.loadLocked(ctx, courseKey)
	if err != nil {
		return nil, err
	}
	return copyOrder(cs.order), nil
}

// SetCustomOrder replaces the course's order override. A nil or empty map
// clears it.
func (s *Store) SetCustomOrder(ctx context.Context, courseKey string, order map[string]int) error {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	s.mu.Lock()
	cs, err := s.loadLocked(ctx, courseKey)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	cs.order = copyOrder(order)
	state := cs.snapshot(courseKey, time.Now().UnixMilli())
	s.mu.Unlock()

	return s.enqueue(ctx, op{state: state})
}

// Settings returns the global settings, falling back to defaults for
// anything never saved or unparsable.
func (s *Store) Settings(ctx context.Context) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settings != nil {
		return *s.settings, nil
	}

	raw, err := s.repo.GetSettings(ctx)
	if err != nil {
		return Settings{}, err
	}
	settings := DefaultSettings()
	if v, ok := raw[settingPlaybackSpeed]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil && (Settings{PlaybackSpeed: f}).Validate() == nil {
			settings.PlaybackSpeed = f
		}
	}
	if v, ok := raw[settingAutoplay]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.Autoplay = b
		}
	}
	s.settings = &settings
	return settings, nil
}

// SaveSettings replaces the global settings.
func (s *Store) SaveSettings(ctx context.Context, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	s.mu.Lock()
	s.settings = &settings
	s.mu.Unlock()

	if err := s.enqueue(ctx, op{setting: &[2]string{settingPlaybackSpeed, strconv.FormatFloat(settings.PlaybackSpeed, 'f', -1, 64)}}); err != nil {
		return err
	}
	return s.enqueue(ctx, op{setting: &[2]string{settingAutoplay, strconv.FormatBool(settings.Autoplay)}})
}

// Flush blocks until every write queued before the call is persisted.
func (s *Store) Flush(ctx context.Context) error {
	flushed := make(chan struct{})
	if err := s.enqueue(ctx, op{flushed: flushed}); err != nil {
		return err
	}
	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting writes and waits for queued ones to be persisted.
func (s *Store) Close(ctx context.Context) error {
	s.sendMu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.sendMu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loadLocked returns the in-memory state of a course, reading it from the
// repository the first time. s.mu must be held.
func (s *Store) loadLocked(ctx context.Context, courseKey string) (*courseState, error) {
	if cs, ok := s.courses[courseKey]; ok {
		return cs, nil
	}

	records, err := s.repo.ListProgress(ctx, courseKey)
	if err != nil {
		return nil, err
	}
	state, err := s.repo.GetCourseState(ctx, courseKey)
	if err != nil {
		return nil, err
	}

	cs := &courseState{progress: make(map[string]*storage.Progress, len(records))}
	for i := range records {
		cs.progress[records[i].Path] = &records[i]
	}
	if state != nil {
		cs.lastWatched = state.LastWatchedPath
		cs.order = state.CustomOrder
	}
	s.courses[courseKey] = cs
	return cs, nil
}

func (cs *courseState) snapshot(courseKey string, ts int64) *storage.CourseState {
	return &storage.CourseState{
		CourseKey:       courseKey,
		LastWatchedPath: cs.lastWatched,
		CustomOrder:     copyOrder(cs.order),
		UpdatedAt:       ts,
	}
}

func copyOrder(order map[string]int) map[string]int {
	if len(order) == 0 {
		return nil
	}
	out := make(map[string]int, len(order))
	for k, v := range order {
		out[k] = v
	}
	return out
}

func (s *Store) enqueue(ctx context.Context, o op) error {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()

	if s.closed {
		return errors.ErrClosed
	}
	select {
	case s.queue <- o:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the single writer. Consecutive progress writes are coalesced
// into one transaction; anything else is written on its own, in order.
func (s *Store) run() {
	defer close(s.done)

	var pending *op
	for {
		var o op
		if pending != nil {
			o, pending = *pending, nil
		} else {
			var ok bool
			if o, ok = <-s.queue; !ok {
				return
			}
		}

		if o.progress == nil {
			s.apply(o)
			continue
		}

		batch := []*storage.Progress{o.progress}
	collect:
		for len(batch) < maxBatch {
			select {
			case next, ok := <-s.queue:
				if !ok {
					break collect
				}
				if next.progress == nil {
					pending = &next
					break collect
				}
				batch = append(batch, next.progress)
			default:
				break collect
			}
		}
		s.writeProgress(batch)
	}
}

func (s *Store) apply(o op) {
	ctx, cancel := context.WithTimeout(context.Background(), config.ProgressWrite)
	defer cancel()

	switch {
	case o.flushed != nil:
		close(o.flushed)
	case o.unmark != nil:
		err := s.repo.DeleteProgress(ctx, o.unmark.CourseKey, o.unmark.Path)
		s.record("unmark", err, 1)
		if err != nil {
			s.logger.WithError(err).Error("Failed to delete progress", "path", o.unmark.Path)
		}
	case o.state != nil:
		err := s.repo.SaveCourseState(ctx, o.state)
		s.record("course_state", err, 1)
		if err != nil {
			s.logger.WithError(err).Error("Failed to persist course state", "course_key", o.state.CourseKey)
		}
	case o.setting != nil:
		err := s.repo.SaveSetting(ctx, o.setting[0], o.setting[1])
		s.record("setting", err, 1)
		if err != nil {
			s.logger.WithError(err).Error("Failed to persist setting", "key", o.setting[0])
		}
	}
}

// writeProgress persists a batch in one transaction, in queue order.
func (s *Store) writeProgress(batch []*storage.Progress) {
	ctx, cancel := context.WithTimeout(context.Background(), config.ProgressWrite)
	defer cancel()

	err := s.repo.SaveProgressBatch(ctx, batch)
	s.record("progress", err, len(batch))
	if err != nil {
		s.logger.WithError(err).Error("Failed to persist progress", "count", len(batch))
	}
}

func (s *Store) record(kind string, err error, count int) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordProgressWrite(kind, status, count)
}
