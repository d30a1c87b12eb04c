// Package config provides application configuration management.
// It loads settings from environment variables (and an optional .env file)
// for the HTTP server and the scan CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ValidationMode selects which settings are required.
type ValidationMode int

const (
	// ServerMode requires a course path and a data directory.
	ServerMode ValidationMode = iota
	// ScanMode takes the course path from the command line.
	ScanMode
)

// Config holds all application configuration
type Config struct {
	// Course Configuration
	CoursePath       string   // Root folder of the course to serve
	IgnoreFolders    []string // Extra folder names skipped during scans
	IgnoreExtensions []string // Extra file extensions skipped during scans
	FlattenWrappers  bool     // Promote single-video folders into their parent

	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration

	// Data Configuration
	DataDir string // Directory holding the SQLite progress database

	// Duration Probe Configuration
	FFProbePath    string
	ProbeTimeout   time.Duration
	ProbeRateLimit float64 // Probe requests per minute per client, 0 disables

	// Progress Configuration
	CompletionThreshold float64 // Watched fraction that marks a video complete
	ProgressQueueSize   int     // Buffered progress writes before callers block

	// Warmup Configuration
	WarmupDurations   bool          // Resolve missing durations into the cache at startup
	WaitForWarmup     bool          // Report not ready until the warmup finishes
	WarmupGracePeriod time.Duration // Ready anyway after this long

	// Metrics Authentication
	MetricsUsername string
	MetricsPassword string // Empty disables /metrics auth

	// Observability
	SentryToken       string
	SentryHost        string
	SentryEnvironment string
	SentrySampleRate  float64
	BetterStackToken  string

	Backup BackupConfig
}

// BackupConfig configures snapshot backups of the progress database to
// S3-compatible storage.
type BackupConfig struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Key             string
	Interval        time.Duration
}

// Load reads configuration for server mode.
func Load() (*Config, error) {
	return LoadForMode(ServerMode)
}

// LoadForMode reads configuration from environment variables and validates
// it for the given mode. A .env file in the working directory is loaded
// first when present.
func LoadForMode(mode ValidationMode) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		CoursePath:       getEnv(EnvCoursePath, ""),
		IgnoreFolders:    getListEnv(EnvIgnoreFolders),
		IgnoreExtensions: getListEnv(EnvIgnoreExtensions),
		FlattenWrappers:  getBoolEnv(EnvFlattenWrappers, true),

		Port:            getEnv(EnvPort, "8002"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),

		DataDir: getEnv(EnvDataDir, getDefaultDataDir()),

		FFProbePath:    getEnv(EnvFFProbePath, "ffprobe"),
		ProbeTimeout:   getDurationEnv(EnvProbeTimeout, ProbeTimeout),
		ProbeRateLimit: getFloatEnv(EnvProbeRateLimit, 240),

		CompletionThreshold: getFloatEnv(EnvCompletionThreshold, 0.90),
		ProgressQueueSize:   getIntEnv(EnvProgressQueueSize, 256),

		WarmupDurations:   getBoolEnv(EnvWarmupDurations, true),
		WaitForWarmup:     getBoolEnv(EnvWaitForWarmup, false),
		WarmupGracePeriod: getDurationEnv(EnvWarmupGracePeriod, WarmupGracePeriod),

		MetricsUsername: getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword: getEnv(EnvMetricsPassword, ""),

		SentryToken:       getEnv(EnvSentryToken, ""),
		SentryHost:        getEnv(EnvSentryHost, ""),
		SentryEnvironment: getEnv(EnvSentryEnvironment, "production"),
		SentrySampleRate:  getFloatEnv(EnvSentrySampleRate, 1.0),
		BetterStackToken:  getEnv(EnvBetterStackToken, ""),

		Backup: BackupConfig{
			Enabled:         getBoolEnv(EnvBackupEnabled, false),
			Endpoint:        getEnv(EnvBackupEndpoint, ""),
			AccessKeyID:     getEnv(EnvBackupAccessKeyID, ""),
			SecretAccessKey: getEnv(EnvBackupSecretAccessKey, ""),
			Bucket:          getEnv(EnvBackupBucket, ""),
			Key:             getEnv(EnvBackupKey, "snapshots/progress.db.zst"),
			Interval:        getDurationEnv(EnvBackupInterval, BackupInterval),
		},
	}

	if err := cfg.ValidateForMode(mode); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for server mode.
func (c *Config) Validate() error {
	return c.ValidateForMode(ServerMode)
}

// ValidateForMode checks that required values are set and ranges are sane.
// All problems are reported together.
func (c *Config) ValidateForMode(mode ValidationMode) error {
	var errs []error

	if mode == ServerMode {
		if c.CoursePath == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvCoursePath))
		}
		if c.Port == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvPort))
		}
		if c.DataDir == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvDataDir))
		}
	}
	if c.ProbeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvProbeTimeout, c.ProbeTimeout))
	}
	if c.ProbeRateLimit < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative, got %v", EnvProbeRateLimit, c.ProbeRateLimit))
	}
	if c.CompletionThreshold <= 0 || c.CompletionThreshold > 1 {
		errs = append(errs, fmt.Errorf("%s must be in (0, 1], got %v", EnvCompletionThreshold, c.CompletionThreshold))
	}
	if c.ProgressQueueSize < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1, got %d", EnvProgressQueueSize, c.ProgressQueueSize))
	}
	if c.WaitForWarmup && c.WarmupGracePeriod <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive when %s is set, got %v", EnvWarmupGracePeriod, EnvWaitForWarmup, c.WarmupGracePeriod))
	}
	if c.SentryToken != "" && c.SentryHost == "" {
		errs = append(errs, fmt.Errorf("%s is required when %s is set", EnvSentryHost, EnvSentryToken))
	}
	if err := c.Backup.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("backup: %w", err))
	}

	return errors.Join(errs...)
}

// Validate checks the backup settings when backups are enabled.
func (b BackupConfig) Validate() error {
	if !b.Enabled {
		return nil
	}
	var errs []error
	required := map[string]string{
		EnvBackupEndpoint:        b.Endpoint,
		EnvBackupAccessKeyID:     b.AccessKeyID,
		EnvBackupSecretAccessKey: b.SecretAccessKey,
		EnvBackupBucket:          b.Bucket,
		EnvBackupKey:             b.Key,
	}
	for _, key := range []string{EnvBackupEndpoint, EnvBackupAccessKeyID, EnvBackupSecretAccessKey, EnvBackupBucket, EnvBackupKey} {
		if required[key] == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}
	if b.Interval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvBackupInterval, b.Interval))
	}
	return errors.Join(errs...)
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getBoolEnv accepts anything strconv.ParseBool does.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated variable, dropping empty items.
func getListEnv(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".video-player")
	}
	return "./data"
}

// SQLitePath returns the full path to the SQLite database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "progress.db")
}
