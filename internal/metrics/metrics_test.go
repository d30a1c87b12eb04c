package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	if m == nil {
		t.Fatal("New() returned nil")
	}

	// Verify all metric fields are initialized
	if m.ScansTotal == nil {
		t.Error("ScansTotal is nil")
	}
	if m.ScanDurationSeconds == nil {
		t.Error("ScanDurationSeconds is nil")
	}
	if m.ProbesTotal == nil {
		t.Error("ProbesTotal is nil")
	}
	if m.DurationCacheTotal == nil {
		t.Error("DurationCacheTotal is nil")
	}
	if m.ProgressWritesTotal == nil {
		t.Error("ProgressWritesTotal is nil")
	}
	if m.HTTPErrorsTotal == nil {
		t.Error("HTTPErrorsTotal is nil")
	}
	if m.BackupsTotal == nil {
		t.Error("BackupsTotal is nil")
	}
}

func TestRecordScan(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.RecordScan("success", 20*time.Millisecond, 12, 0)
	m.RecordScan("partial", 30*time.Millisecond, 10, 2)
	m.RecordScan("error", time.Millisecond, 0, 0)

	if got := testutil.ToFloat64(m.ScansTotal.WithLabelValues("partial")); got != 1 {
		t.Errorf("partial scans = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ScanWarningsTotal); got != 2 {
		t.Errorf("warnings = %v, want 2", got)
	}
	// Failed scans leave the last known video count alone
	if got := testutil.ToFloat64(m.CourseVideos); got != 10 {
		t.Errorf("course videos = %v, want 10", got)
	}
}

func TestRecordProbe(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.RecordProbe("success", 150*time.Millisecond)
	m.RecordProbe("timeout", 30*time.Second)
	m.RecordProbe("success", 80*time.Millisecond)

	if got := testutil.ToFloat64(m.ProbesTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("successful probes = %v, want 2", got)
	}
}

func TestRecordDurationCache(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.RecordDurationCache("hit")
	m.RecordDurationCache("invalid")

	if got := testutil.ToFloat64(m.DurationCacheTotal.WithLabelValues("hit")); got != 1 {
		t.Errorf("hits = %v, want 1", got)
	}
}

func TestRecordProgressWrite(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.RecordProgressWrite("progress", "success", 5)
	m.RecordProgressWrite("progress", "success", 3)
	m.RecordProgressWrite("setting", "error", 1)

	if got := testutil.ToFloat64(m.ProgressWritesTotal.WithLabelValues("progress", "success")); got != 8 {
		t.Errorf("progress writes = %v, want 8", got)
	}
}

func TestRecordHTTPError(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordHTTPError("not_found", "playlist")
	m.RecordHTTPError("invalid_input", "progress")
	m.RecordHTTPError("internal", "duration")
}

func TestRecordBackup(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordBackup("upload", "success", 2*time.Second)
	m.RecordBackup("restore", "error", time.Second)
}

func TestRecordRateLimit(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.RecordRateLimitDrop("probe")
	m.RecordRateLimitDrop("probe")
	m.SetRateLimitClients("probe", 3)

	if got := testutil.ToFloat64(m.RateLimitDropsTotal.WithLabelValues("probe")); got != 2 {
		t.Errorf("drops = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RateLimitClients.WithLabelValues("probe")); got != 3 {
		t.Errorf("clients = %v, want 3", got)
	}
}

func TestMetrics_WithDefaultRegistry(t *testing.T) {
	// Test that metrics can be created with a new registry
	// without conflicting with default registry
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.RecordScan("success", time.Second, 3, 0)
	m.RecordProbe("success", time.Second)
	m.RecordSingleflightDedup("duration")

	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	if len(metricFamilies) == 0 {
		t.Error("No metrics were gathered")
	}

	expectedMetrics := map[string]bool{
		"vp_scans_total":              false,
		"vp_scan_duration_seconds":    false,
		"vp_probes_total":             false,
		"vp_probe_duration_seconds":   false,
		"vp_singleflight_dedup_total": false,
	}

	for _, mf := range metricFamilies {
		if _, ok := expectedMetrics[mf.GetName()]; ok {
			expectedMetrics[mf.GetName()] = true
		}
	}

	for name, found := range expectedMetrics {
		if !found {
			t.Errorf("Expected metric %q not found", name)
		}
	}
}

func TestRecordWarmupTask(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.RecordWarmupTask("durations", "success", 2*time.Second)
	m.RecordWarmupTask("durations", "partial", time.Second)

	if got := testutil.ToFloat64(m.WarmupTasksTotal.WithLabelValues("durations", "success")); got != 1 {
		t.Errorf("successful warmups = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.WarmupDurationSeconds); got != 1 {
		t.Errorf("warmup duration series = %d, want 1", got)
	}
}
