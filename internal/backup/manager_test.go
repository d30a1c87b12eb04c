package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lacarte/video-player/internal/storage"
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	failPut error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (s *memoryStore) Upload(_ context.Context, key string, body io.Reader, _ string) (string, error) {
	if s.failPut != nil {
		return "", s.failPut
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	s.puts++
	return "etag-" + string(rune('0'+s.puts)), nil
}

func (s *memoryStore) Download(_ context.Context, key string) (io.ReadCloser, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, "", ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), "etag-restored", nil
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeRecorder) RecordBackup(operation, status string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, operation+"/"+status)
}

func seedDB(t *testing.T, path string) *storage.DB {
	t.Helper()
	db, err := storage.New(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.SaveProgress(context.Background(), &storage.Progress{
		CourseKey: "/courses/go", Path: "01 intro.mp4", PositionSeconds: 42, Completed: true,
	}))
	return db
}

func TestManager_UploadAndRestore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := newMemoryStore()
	rec := &fakeRecorder{}
	m := NewManager(store, Options{Key: "snapshots/progress.db.zst", TempDir: dir, Metrics: rec})

	db := seedDB(t, filepath.Join(dir, "src", "progress.db"))
	etag, err := m.Upload(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "etag-1", etag)
	assert.Equal(t, "etag-1", m.LastETag())
	assert.Contains(t, store.objects, "snapshots/progress.db.zst")

	// Temp files are cleaned up
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the source directory remains")

	target := filepath.Join(dir, "fresh", "progress.db")
	restored, err := m.Restore(ctx, target)
	require.NoError(t, err)
	assert.True(t, restored)
	assert.Equal(t, "etag-restored", m.LastETag())

	copyDB, err := storage.New(ctx, target)
	require.NoError(t, err)
	defer func() { _ = copyDB.Close() }()
	got, err := copyDB.GetProgress(ctx, "/courses/go", "01 intro.mp4")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Completed)

	assert.Equal(t, []string{"upload/success", "restore/success"}, rec.calls)
}

func TestManager_RestoreKeepsExistingDatabase(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := newMemoryStore()
	store.objects["k"] = []byte("not even zstd")
	m := NewManager(store, Options{Key: "k", TempDir: dir})

	existing := filepath.Join(dir, "progress.db")
	require.NoError(t, os.WriteFile(existing, []byte("local"), 0o644))

	restored, err := m.Restore(ctx, existing)
	require.NoError(t, err)
	assert.False(t, restored)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "local", string(data))
}

func TestManager_RestoreWithoutBackup(t *testing.T) {
	m := NewManager(newMemoryStore(), Options{Key: "missing", TempDir: t.TempDir()})

	restored, err := m.Restore(context.Background(), filepath.Join(t.TempDir(), "progress.db"))
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestManager_RestoreCorruptBackup(t *testing.T) {
	dir := t.TempDir()
	store := newMemoryStore()
	store.objects["k"] = []byte("garbage")
	m := NewManager(store, Options{Key: "k", TempDir: dir})

	target := filepath.Join(dir, "progress.db")
	_, err := m.Restore(context.Background(), target)
	require.Error(t, err)

	_, statErr := os.Stat(target)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "a failed restore leaves no database behind")
}

func TestManager_UploadFailure(t *testing.T) {
	dir := t.TempDir()
	store := newMemoryStore()
	store.failPut = errors.New("bucket unavailable")
	rec := &fakeRecorder{}
	m := NewManager(store, Options{Key: "k", TempDir: dir, Metrics: rec})

	db := seedDB(t, filepath.Join(dir, "src", "progress.db"))
	_, err := m.Upload(context.Background(), db)
	require.Error(t, err)
	assert.Equal(t, []string{"upload/error"}, rec.calls)
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	store := newMemoryStore()
	m := NewManager(store, Options{Key: "k", TempDir: dir})
	db := seedDB(t, filepath.Join(dir, "src", "progress.db"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, db, 10*time.Millisecond, time.Second)
		close(done)
	}()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.puts > 0
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
