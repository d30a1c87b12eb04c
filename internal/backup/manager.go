package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Lacarte/video-player/internal/logger"
)

// Snapshotter writes a consistent copy of a database. *storage.DB
// satisfies it.
type Snapshotter interface {
	CreateSnapshot(ctx context.Context, dest string) error
}

// Recorder receives backup metrics. *metrics.Metrics satisfies it.
type Recorder interface {
	RecordBackup(operation, status string, duration time.Duration)
}

// Options configures a Manager.
type Options struct {
	Key     string // object key of the snapshot, e.g. "snapshots/progress.db.zst"
	TempDir string // defaults to os.TempDir()
	Logger  *logger.Logger
	Metrics Recorder // optional
}

// Manager uploads and restores database snapshots.
type Manager struct {
	store   ObjectStore
	key     string
	tempDir string
	logger  *logger.Logger
	metrics Recorder

	mu       sync.Mutex // serializes uploads
	lastETag string
}

// NewManager creates a Manager storing snapshots in store.
func NewManager(store ObjectStore, opts Options) *Manager {
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &Manager{
		store:   store,
		key:     opts.Key,
		tempDir: opts.TempDir,
		logger:  opts.Logger.WithModule("backup"),
		metrics: opts.Metrics,
	}
}

// Upload snapshots db, compresses it and uploads it, replacing the
// previous backup. It returns the new ETag.
func (m *Manager) Upload(ctx context.Context, db Snapshotter) (etag string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	defer func() { m.record("upload", start, err) }()

	snapshotPath := filepath.Join(m.tempDir, "progress-"+uuid.NewString()+".db")
	if err := db.CreateSnapshot(ctx, snapshotPath); err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	defer func() { _ = os.Remove(snapshotPath) }()

	compressedPath := snapshotPath + ".zst"
	if err := CompressFile(snapshotPath, compressedPath); err != nil {
		return "", fmt.Errorf("compress snapshot: %w", err)
	}
	defer func() { _ = os.Remove(compressedPath) }()

	f, err := os.Open(compressedPath)
	if err != nil {
		return "", fmt.Errorf("open compressed snapshot: %w", err)
	}
	defer func() { _ = f.Close() }()

	etag, err = m.store.Upload(ctx, m.key, f, "application/zstd")
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}
	m.lastETag = etag

	m.logger.InfoContext(ctx, "Progress backup uploaded",
		"key", m.key,
		"etag", etag,
		"duration_ms", time.Since(start).Milliseconds())
	return etag, nil
}

// Restore downloads the backup into dbPath when no database exists there
// yet. It reports whether a restore happened; a missing backup is not an
// error.
func (m *Manager) Restore(ctx context.Context, dbPath string) (restored bool, err error) {
	if _, err := os.Stat(dbPath); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat database: %w", err)
	}

	start := time.Now()
	defer func() {
		if restored || err != nil {
			m.record("restore", start, err)
		}
	}()

	body, etag, err := m.store.Download(ctx, m.key)
	if errors.Is(err, ErrNotFound) {
		m.logger.InfoContext(ctx, "No progress backup found, starting fresh", "key", m.key)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("download snapshot: %w", err)
	}
	defer func() { _ = body.Close() }()

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return false, fmt.Errorf("create database directory: %w", err)
	}

	// Decompress next to the target so the final rename is atomic.
	tmp := dbPath + ".restore-" + uuid.NewString()
	if err := DecompressStream(body, tmp); err != nil {
		_ = os.Remove(tmp)
		return false, fmt.Errorf("decompress snapshot: %w", err)
	}
	if err := os.Rename(tmp, dbPath); err != nil {
		_ = os.Remove(tmp)
		return false, fmt.Errorf("install snapshot: %w", err)
	}

	m.mu.Lock()
	m.lastETag = etag
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "Progress database restored from backup",
		"key", m.key,
		"etag", etag,
		"path", dbPath)
	return true, nil
}

// Run uploads a snapshot every interval until ctx is done. Failures are
// logged and retried on the next tick.
func (m *Manager) Run(ctx context.Context, db Snapshotter, interval, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			uploadCtx, cancel := context.WithTimeout(ctx, timeout)
			if _, err := m.Upload(uploadCtx, db); err != nil {
				m.logger.WithError(err).WarnContext(ctx, "Periodic progress backup failed")
			}
			cancel()
		}
	}
}

// LastETag returns the ETag of the last uploaded or restored snapshot.
func (m *Manager) LastETag() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastETag
}

func (m *Manager) record(operation string, start time.Time, err error) {
	if m.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.metrics.RecordBackup(operation, status, time.Since(start))
}
