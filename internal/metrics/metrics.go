// Package metrics defines the Prometheus metrics of the course player.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Scan metrics
	ScansTotal          *prometheus.CounterVec
	ScanDurationSeconds prometheus.Histogram
	ScanWarningsTotal   prometheus.Counter
	CourseVideos        prometheus.Gauge

	// Duration probe metrics
	ProbesTotal          *prometheus.CounterVec
	ProbeDurationSeconds prometheus.Histogram
	DurationCacheTotal   *prometheus.CounterVec

	// Progress metrics
	ProgressWritesTotal *prometheus.CounterVec

	// HTTP metrics
	HTTPErrorsTotal *prometheus.CounterVec

	// Singleflight metrics
	SingleflightDedupTotal *prometheus.CounterVec

	// Rate limiter metrics
	RateLimitDropsTotal *prometheus.CounterVec
	RateLimitClients    *prometheus.GaugeVec

	// Backup metrics
	BackupsTotal          *prometheus.CounterVec
	BackupDurationSeconds *prometheus.HistogramVec

	// Warmup metrics
	WarmupTasksTotal      *prometheus.CounterVec
	WarmupDurationSeconds prometheus.Histogram
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// Scan metrics
		ScansTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "vp_scans_total",
				Help: "Total number of course scans by status",
			},
			[]string{"status"}, // status: success, partial, error
		),

		ScanDurationSeconds: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vp_scan_duration_seconds",
				Help:    "Course scan duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120}, // Local disks to slow shares
			},
		),

		ScanWarningsTotal: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "vp_scan_warnings_total",
				Help: "Total number of unreadable entries skipped during scans",
			},
		),

		CourseVideos: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "vp_course_videos",
				Help: "Number of videos found by the most recent scan",
			},
		),

		// Duration probe metrics
		ProbesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "vp_probes_total",
				Help: "Total number of duration oracle calls by status",
			},
			[]string{"status"}, // status: success, error, timeout, invalid
		),

		ProbeDurationSeconds: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vp_probe_duration_seconds",
				Help:    "Duration oracle call latency in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}, // Matches 30s probe timeout
			},
		),

		DurationCacheTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "vp_duration_cache_total",
				Help: "Total number of duration cache lookups by result",
			},
			[]string{"result"}, // result: hit, miss, invalid
		),

		// Progress metrics
		ProgressWritesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "vp_progress_writes_total",
				Help: "Total number of persisted progress store records by kind and status",
			},
			[]string{"kind", "status"}, // kind: progress, unmark, course_state, setting
		),

		// HTTP metrics
		HTTPErrorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "vp_http_errors_total",
				Help: "Total HTTP errors by type and module",
			},
			[]string{"error_type", "module"}, // error_type: not_found, invalid_input, internal, timeout
		),

		// Singleflight metrics
		SingleflightDedupTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "vp_singleflight_dedup_total",
				Help: "Total number of deduplicated requests (requests that waited instead of executing)",
			},
			[]string{"module"}, // module: duration, playlist
		),

		// Rate limiter metrics
		RateLimitDropsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "vp_rate_limit_drops_total",
				Help: "Total requests rejected by a rate limiter",
			},
			[]string{"limiter"}, // limiter: probe
		),

		RateLimitClients: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vp_rate_limit_clients",
				Help: "Clients currently tracked by a rate limiter",
			},
			[]string{"limiter"},
		),

		// Backup metrics
		BackupsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "vp_backups_total",
				Help: "Total number of progress database backup operations by operation and status",
			},
			[]string{"operation", "status"}, // operation: upload, restore
		),

		BackupDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vp_backup_duration_seconds",
				Help:    "Backup operation duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"operation"},
		),

		// Warmup metrics
		WarmupTasksTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "vp_warmup_tasks_total",
				Help: "Total number of warmup tasks by task and status",
			},
			[]string{"task", "status"}, // status: success, partial, error
		),

		WarmupDurationSeconds: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vp_warmup_duration_seconds",
				Help:    "Total duration of the startup warmup",
				Buckets: []float64{0.1, 1, 10, 30, 60, 300, 900, 1800}, // cached course to 30min of probing
			},
		),
	}

	return m
}

// RecordScan records one course scan.
func (m *Metrics) RecordScan(status string, duration time.Duration, videos, warnings int) {
	m.ScansTotal.WithLabelValues(status).Inc()
	m.ScanDurationSeconds.Observe(duration.Seconds())
	m.ScanWarningsTotal.Add(float64(warnings))
	if status != "error" {
		m.CourseVideos.Set(float64(videos))
	}
}

// RecordProbe records one duration oracle call.
func (m *Metrics) RecordProbe(status string, duration time.Duration) {
	m.ProbesTotal.WithLabelValues(status).Inc()
	m.ProbeDurationSeconds.Observe(duration.Seconds())
}

// RecordDurationCache records a duration cache lookup
func (m *Metrics) RecordDurationCache(result string) {
	m.DurationCacheTotal.WithLabelValues(result).Inc()
}

// RecordProgressWrite records persisted progress store records
func (m *Metrics) RecordProgressWrite(kind, status string, count int) {
	m.ProgressWritesTotal.WithLabelValues(kind, status).Add(float64(count))
}

// RecordHTTPError records HTTP error metrics
func (m *Metrics) RecordHTTPError(errorType, module string) {
	m.HTTPErrorsTotal.WithLabelValues(errorType, module).Inc()
}

// RecordSingleflightDedup records a deduplicated request
func (m *Metrics) RecordSingleflightDedup(module string) {
	m.SingleflightDedupTotal.WithLabelValues(module).Inc()
}

// RecordRateLimitDrop records a request rejected by limiter.
func (m *Metrics) RecordRateLimitDrop(limiter string) {
	m.RateLimitDropsTotal.WithLabelValues(limiter).Inc()
}

// SetRateLimitClients sets the number of clients tracked by limiter.
func (m *Metrics) SetRateLimitClients(limiter string, count int) {
	m.RateLimitClients.WithLabelValues(limiter).Set(float64(count))
}

// RecordBackup records a backup upload or restore.
func (m *Metrics) RecordBackup(operation, status string, duration time.Duration) {
	m.BackupsTotal.WithLabelValues(operation, status).Inc()
	m.BackupDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordWarmupTask records a warmup task completion.
func (m *Metrics) RecordWarmupTask(task, status string, duration time.Duration) {
	m.WarmupTasksTotal.WithLabelValues(task, status).Inc()
	m.WarmupDurationSeconds.Observe(duration.Seconds())
}
