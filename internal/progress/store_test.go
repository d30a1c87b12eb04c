package progress

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lacarte/video-player/internal/errors"
	"github.com/Lacarte/video-player/internal/storage"
)

const key = "/courses/go"

func fptr(f float64) *float64 { return &f }

func setupStore(t *testing.T) (*Store, *storage.DB) {
	t.Helper()
	db, err := storage.NewTestDB()
	require.NoError(t, err)
	s := New(db, Options{})
	t.Cleanup(func() {
		_ = s.Close(context.Background())
		_ = db.Close()
	})
	return s, db
}

func TestReached(t *testing.T) {
	tests := []struct {
		name     string
		position float64
		duration float64
		want     bool
	}{
		{"exactly 90 percent", 90.0, 100, true},
		{"just below", 89.9, 100, false},
		{"past the end", 120, 100, true},
		{"unknown duration", 50, 0, false},
		{"start", 0, 100, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reached(tt.position, tt.duration, DefaultCompletionThreshold))
		})
	}
}

func TestUpdate_CompletionThreshold(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	p, err := s.Update(ctx, key, Update{Path: "a.mp4", Position: 89.9, Duration: fptr(100)})
	require.NoError(t, err)
	assert.False(t, p.Completed, "89.9%% is not complete")

	p, err = s.Update(ctx, key, Update{Path: "a.mp4", Position: 90.0})
	require.NoError(t, err)
	assert.True(t, p.Completed, "90.0%% completes using the remembered duration")
}

func TestUpdate_NaturalEndAlwaysCompletes(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	// Reported duration is far off, so the fraction never reaches 90%.
	p, err := s.Update(ctx, key, Update{Path: "a.mp4", Position: 50, Duration: fptr(1000), Ended: true})
	require.NoError(t, err)
	assert.True(t, p.Completed)

	p, err = s.Update(ctx, key, Update{Path: "b.mp4", Position: 0, Ended: true})
	require.NoError(t, err)
	assert.True(t, p.Completed, "no duration at all")
}

func TestUpdate_NeverUncompletes(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	_, err := s.Update(ctx, key, Update{Path: "a.mp4", Position: 95, Duration: fptr(100)})
	require.NoError(t, err)

	p, err := s.Update(ctx, key, Update{Path: "a.mp4", Position: 3})
	require.NoError(t, err)
	assert.True(t, p.Completed)
	assert.InDelta(t, 3.0, p.PositionSeconds, 1e-9)
}

func TestUpdate_Validation(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	tests := []Update{
		{Path: "", Position: 1},
		{Path: "a.mp4", Position: -1},
		{Path: "a.mp4", Position: 1, Duration: fptr(-5)},
	}
	for _, u := range tests {
		_, err := s.Update(ctx, key, u)
		assert.True(t, errors.IsInvalidInput(err), "%+v", u)
	}
}

func TestUpdate_PersistsInOrder(t *testing.T) {
	s, db := setupStore(t)
	ctx := context.Background()

	for i := 1; i <= 200; i++ {
		_, err := s.Update(ctx, key, Update{Path: "a.mp4", Position: float64(i), Duration: fptr(1000)})
		require.NoError(t, err)
	}
	require.NoError(t, s.Flush(ctx))

	got, err := db.GetProgress(ctx, key, "a.mp4")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 200.0, got.PositionSeconds, 1e-9, "last write wins")

	state, err := db.GetCourseState(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "a.mp4", state.LastWatchedPath)
}

func TestUpdate_ConcurrentReportsPersistLatest(t *testing.T) {
	s, db := setupStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Go(func() {
			for i := range 50 {
				_, err := s.Update(ctx, key, Update{Path: "a.mp4", Position: float64(g*1000 + i)})
				assert.NoError(t, err)
			}
		})
	}
	wg.Wait()
	require.NoError(t, s.Flush(ctx))

	inMemory, ok, err := s.Get(ctx, key, "a.mp4")
	require.NoError(t, err)
	require.True(t, ok)
	stored, err := db.GetProgress(ctx, key, "a.mp4")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.InDelta(t, inMemory.PositionSeconds, stored.PositionSeconds, 1e-9, "database matches the last applied report")
}

func TestStore_ReloadsFromRepository(t *testing.T) {
	db, err := storage.NewTestDB()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	ctx := context.Background()

	first := New(db, Options{})
	_, err = first.Update(ctx, key, Update{Path: "1/a.mp4", Position: 99, Duration: fptr(100)})
	require.NoError(t, err)
	require.NoError(t, first.SetCustomOrder(ctx, key, map[string]int{"1/b.mp4": 0}))
	require.NoError(t, first.Close(ctx))

	second := New(db, Options{})
	defer func() { _ = second.Close(ctx) }()

	p, ok, err := second.Get(ctx, key, "1/a.mp4")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, p.Completed)

	last, err := second.LastWatched(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "1/a.mp4", last)

	order, err := second.CustomOrder(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"1/b.mp4": 0}, order)
}

func TestUnmark(t *testing.T) {
	s, db := setupStore(t)
	ctx := context.Background()

	_, err := s.MarkEnded(ctx, key, "a.mp4")
	require.NoError(t, err)
	require.NoError(t, s.Unmark(ctx, key, "a.mp4"))
	require.NoError(t, s.Flush(ctx))

	_, ok, err := s.Get(ctx, key, "a.mp4")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := db.GetProgress(ctx, key, "a.mp4")
	require.NoError(t, err)
	assert.Nil(t, got)

	err = s.Unmark(ctx, key, "missing.mp4")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestList_ScopedByCourse(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	_, err := s.Update(ctx, key, Update{Path: "b.mp4", Position: 1})
	require.NoError(t, err)
	_, err = s.Update(ctx, key, Update{Path: "a.mp4", Position: 2})
	require.NoError(t, err)
	_, err = s.Update(ctx, "/courses/rust", Update{Path: "a.mp4", Position: 3})
	require.NoError(t, err)

	list, err := s.List(ctx, key)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a.mp4", list[0].Path)
	assert.Equal(t, "b.mp4", list[1].Path)
}

func TestSettings(t *testing.T) {
	s, db := setupStore(t)
	ctx := context.Background()

	got, err := s.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), got)
	assert.InDelta(t, 1.0, got.PlaybackSpeed, 1e-9)
	assert.True(t, got.Autoplay)

	require.NoError(t, s.SaveSettings(ctx, Settings{PlaybackSpeed: 1.75, Autoplay: false}))
	require.NoError(t, s.Flush(ctx))

	raw, err := db.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"playback_speed": "1.75", "autoplay": "false"}, raw)

	err = s.SaveSettings(ctx, Settings{PlaybackSpeed: 0})
	assert.True(t, errors.IsInvalidInput(err))
}

func TestSettings_IgnoresCorruptValues(t *testing.T) {
	db, err := storage.NewTestDB()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	ctx := context.Background()

	require.NoError(t, db.SaveSetting(ctx, "playback_speed", "fast"))
	require.NoError(t, db.SaveSetting(ctx, "autoplay", "false"))

	s := New(db, Options{})
	defer func() { _ = s.Close(ctx) }()

	got, err := s.Settings(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got.PlaybackSpeed, 1e-9)
	assert.False(t, got.Autoplay)
}

func TestClose_RejectsWrites(t *testing.T) {
	db, err := storage.NewTestDB()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	ctx := context.Background()

	s := New(db, Options{})
	_, err = s.Update(ctx, key, Update{Path: "a.mp4", Position: 5})
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx), "close is idempotent")

	got, err := db.GetProgress(ctx, key, "a.mp4")
	require.NoError(t, err)
	require.NotNil(t, got, "close drains the queue")

	_, err = s.Update(ctx, key, Update{Path: "a.mp4", Position: 6})
	assert.ErrorIs(t, err, errors.ErrClosed)
}

type fakeRecorder struct {
	writes map[string]int
}

func (f *fakeRecorder) RecordProgressWrite(kind, status string, count int) {
	if f.writes == nil {
		f.writes = make(map[string]int)
	}
	f.writes[kind+"/"+status] += count
}

func TestStore_RecordsMetrics(t *testing.T) {
	db, err := storage.NewTestDB()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	ctx := context.Background()

	rec := &fakeRecorder{}
	s := New(db, Options{Metrics: rec})
	_, err = s.Update(ctx, key, Update{Path: "a.mp4", Position: 5})
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))

	// Close has returned, so the writer goroutine is done with rec.
	assert.Equal(t, 1, rec.writes["progress/success"])
	assert.Equal(t, 1, rec.writes["course_state/success"])
}
