package config

import "time"

// HTTP server timeouts
const (
	// HTTPReadHeader bounds slow clients before a handler runs.
	HTTPReadHeader = 10 * time.Second

	// HTTPIdle is the keep-alive idle timeout. There is no write timeout:
	// media responses stream for as long as the player keeps reading.
	HTTPIdle = 120 * time.Second
)

// Course scanning
const (
	// PlaylistBuild bounds a single course scan triggered by a request.
	// Courses live on local or network disks; a few thousand entries scan in
	// well under a second locally, network shares can be much slower.
	PlaylistBuild = 2 * time.Minute

	// ReadinessCheckTimeout bounds the /readyz database ping and root stat.
	ReadinessCheckTimeout = 3 * time.Second
)

// Duration probing
const (
	// ProbeTimeout is the default per-video ffprobe timeout.
	// ffprobe only reads container headers, so anything longer than this is
	// almost always a stalled network mount.
	ProbeTimeout = 30 * time.Second

	// DurationStreamIdle bounds writing one duration event to a client that
	// stopped reading.
	DurationStreamIdle = 5 * time.Minute
)

// Database timeouts
const (
	// DatabaseBusyTimeout is the SQLite busy_timeout pragma value.
	DatabaseBusyTimeout = 30 * time.Second

	// DatabaseConnMaxLifetime is the maximum lifetime of pooled connections.
	DatabaseConnMaxLifetime = time.Hour

	// SlowQueryThreshold is the duration above which queries are logged.
	SlowQueryThreshold = 100 * time.Millisecond
)

// Background jobs
const (
	// BackupInterval is the default period between progress backups.
	BackupInterval = 6 * time.Hour

	// BackupTimeout bounds one snapshot upload or restore.
	BackupTimeout = 5 * time.Minute

	// ProgressFlush bounds draining queued progress writes at shutdown.
	ProgressFlush = 10 * time.Second

	// RateLimiterCleanup is how often idle per-client limiters are dropped.
	RateLimiterCleanup = 5 * time.Minute

	// ProgressWrite bounds one queued progress write or batch.
	ProgressWrite = 5 * time.Second

	// WarmupDurations bounds the startup duration warmup.
	WarmupDurations = 30 * time.Minute

	// WarmupGracePeriod is how long readiness waits for the warmup.
	WarmupGracePeriod = 10 * time.Minute
)

// Graceful shutdown
const (
	// GracefulShutdown is the default timeout for graceful server shutdown.
	GracefulShutdown = 30 * time.Second
)
