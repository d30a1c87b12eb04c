package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Course
	EnvCoursePath      = "VP_COURSE_PATH"
	EnvIgnoreFolders    = "VP_IGNORE_FOLDERS"
	EnvIgnoreExtensions = "VP_IGNORE_EXTENSIONS"
	EnvFlattenWrappers  = "VP_FLATTEN_WRAPPERS"

	// Server
	EnvPort            = "VP_PORT"
	EnvLogLevel        = "VP_LOG_LEVEL"
	EnvShutdownTimeout = "VP_SHUTDOWN_TIMEOUT"

	// Data
	EnvDataDir = "VP_DATA_DIR"

	// Duration probe
	EnvFFProbePath    = "VP_FFPROBE_PATH"
	EnvProbeTimeout   = "VP_PROBE_TIMEOUT"
	EnvProbeRateLimit = "VP_PROBE_RATE_LIMIT"

	// Progress
	EnvCompletionThreshold = "VP_COMPLETION_THRESHOLD"
	EnvProgressQueueSize   = "VP_PROGRESS_QUEUE_SIZE"

	// Warmup
	EnvWarmupDurations   = "VP_WARMUP_DURATIONS"
	EnvWaitForWarmup     = "VP_WAIT_FOR_WARMUP"
	EnvWarmupGracePeriod = "VP_WARMUP_GRACE_PERIOD"

	// Backup Feature
	EnvBackupEnabled         = "VP_BACKUP_ENABLED"
	EnvBackupEndpoint        = "VP_BACKUP_ENDPOINT"
	EnvBackupAccessKeyID     = "VP_BACKUP_ACCESS_KEY_ID"
	EnvBackupSecretAccessKey = "VP_BACKUP_SECRET_ACCESS_KEY"
	EnvBackupBucket          = "VP_BACKUP_BUCKET"
	EnvBackupKey             = "VP_BACKUP_KEY"
	EnvBackupInterval        = "VP_BACKUP_INTERVAL"

	// Sentry Feature
	EnvSentryToken       = "VP_SENTRY_TOKEN"
	EnvSentryHost        = "VP_SENTRY_HOST"
	EnvSentryEnvironment = "VP_SENTRY_ENVIRONMENT"
	EnvSentrySampleRate  = "VP_SENTRY_SAMPLE_RATE"

	// Better Stack Feature
	EnvBetterStackToken = "VP_BETTERSTACK_TOKEN"

	// Metrics Auth Feature
	EnvMetricsUsername = "VP_METRICS_USERNAME"
	EnvMetricsPassword = "VP_METRICS_PASSWORD"
)
