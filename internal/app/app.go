// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Lacarte/video-player/internal/backup"
	"github.com/Lacarte/video-player/internal/buildinfo"
	"github.com/Lacarte/video-player/internal/classify"
	"github.com/Lacarte/video-player/internal/config"
	"github.com/Lacarte/video-player/internal/course"
	"github.com/Lacarte/video-player/internal/duration"
	"github.com/Lacarte/video-player/internal/logger"
	"github.com/Lacarte/video-player/internal/metrics"
	"github.com/Lacarte/video-player/internal/progress"
	"github.com/Lacarte/video-player/internal/ratelimit"
	"github.com/Lacarte/video-player/internal/scanner"
	"github.com/Lacarte/video-player/internal/sentry"
	"github.com/Lacarte/video-player/internal/storage"
	"github.com/Lacarte/video-player/internal/warmup"
)

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg       *config.Config
	root      string // absolute course root
	courseKey string
	logger    *logger.Logger
	db        *storage.DB
	metrics   *metrics.Metrics
	registry  *prometheus.Registry
	builder   *scanner.Builder
	oracle    duration.Oracle
	progress  *progress.Store
	backup    *backup.Manager         // nil when backups are disabled
	limiter   *ratelimit.KeyedLimiter // nil when probe rate limiting is off
	flight    singleflight.Group
	server    *http.Server

	readiness  *warmup.ReadinessState
	warmupDone chan struct{} // closed when the startup warmup returns; nil if none ran

	// streamCtx is canceled when the server starts shutting down so open
	// duration streams end instead of holding Shutdown until its deadline.
	streamCtx   context.Context
	stopStreams context.CancelFunc
}

// deps are the constructed collaborators handed to newApplication.
type deps struct {
	cfg      *config.Config
	logger   *logger.Logger
	db       *storage.DB
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	oracle   duration.Oracle
	backup   *backup.Manager
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken: cfg.BetterStackToken,
	})

	log = log.WithField("service", "video-player")
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}

	// Package-level slog.*Context calls pick up request and course fields.
	slog.SetDefault(log.Logger)

	log.WithField("version", buildinfo.Release()).Info("Initializing application...")
	if cfg.BetterStackToken != "" {
		log.Info("Better Stack logging enabled")
	}

	if err := sentry.Initialize(sentry.Config{
		Token:       cfg.SentryToken,
		Host:        cfg.SentryHost,
		Environment: cfg.SentryEnvironment,
		Release:     buildinfo.Release(),
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		log.WithError(err).Warn("Sentry initialization failed")
	} else if sentry.IsEnabled() {
		log.WithField("environment", cfg.SentryEnvironment).Info("Sentry error reporting enabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	var backupMgr *backup.Manager
	if cfg.Backup.Enabled {
		client, err := backup.NewClient(ctx, backup.ClientConfig{
			Endpoint:    cfg.Backup.Endpoint,
			AccessKeyID: cfg.Backup.AccessKeyID,
			SecretKey:   cfg.Backup.SecretAccessKey,
			Bucket:      cfg.Backup.Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("backup client: %w", err)
		}
		backupMgr = backup.NewManager(client, backup.Options{
			Key:     cfg.Backup.Key,
			TempDir: cfg.DataDir,
			Logger:  log,
			Metrics: m,
		})

		// Restore must run before the database file is opened.
		restoreCtx, cancel := context.WithTimeout(ctx, config.BackupTimeout)
		restored, err := backupMgr.Restore(restoreCtx, cfg.SQLitePath())
		cancel()
		if err != nil {
			log.WithError(err).Warn("Progress restore failed, starting with local state")
		} else if restored {
			log.WithField("key", cfg.Backup.Key).Info("Progress database restored from backup")
		}
	}

	db, err := storage.New(ctx, cfg.SQLitePath())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.WithField("path", cfg.SQLitePath()).Info("Database connected")

	probe := duration.NewFFProbe(cfg.FFProbePath, cfg.ProbeTimeout)
	if err := probe.Available(); err != nil {
		log.WithError(err).Warn("ffprobe unavailable, durations will stay unresolved")
	}

	app, err := newApplication(deps{
		cfg:      cfg,
		logger:   log,
		db:       db,
		metrics:  m,
		registry: registry,
		oracle:   probe,
		backup:   backupMgr,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	log.WithField("course", app.root).Info("Initialization complete")
	return app, nil
}

// newApplication wires the request-facing components. It does no I/O
// beyond resolving the course root, so tests can build an Application
// around a temporary database and a fake oracle.
func newApplication(d deps) (*Application, error) {
	root, err := filepath.Abs(d.cfg.CoursePath)
	if err != nil {
		return nil, fmt.Errorf("course path: %w", err)
	}

	streamCtx, stopStreams := context.WithCancel(context.Background())
	app := &Application{
		cfg:       d.cfg,
		root:      root,
		courseKey: course.KeyFor(root),
		logger:    d.logger,
		db:        d.db,
		metrics:   d.metrics,
		registry:  d.registry,
		builder: scanner.New(scanner.Config{
			Classifier:      classify.New(d.cfg.IgnoreFolders...).IgnoreExtensions(d.cfg.IgnoreExtensions...),
			FlattenWrappers: d.cfg.FlattenWrappers,
			Logger:          d.logger,
			Metrics:         d.metrics,
		}),
		oracle: d.oracle,
		progress: progress.New(d.db, progress.Options{
			Threshold: d.cfg.CompletionThreshold,
			QueueSize: d.cfg.ProgressQueueSize,
			Logger:    d.logger,
			Metrics:   d.metrics,
		}),
		backup:      d.backup,
		readiness:   warmup.NewReadinessState(d.cfg.WarmupGracePeriod),
		streamCtx:   streamCtx,
		stopStreams: stopStreams,
	}

	if d.cfg.ProbeRateLimit > 0 {
		perSecond := d.cfg.ProbeRateLimit / 60
		app.limiter = ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
			Name:          "probe",
			Burst:         max(perSecond*2, 1),
			RefillRate:    perSecond,
			CleanupPeriod: config.RateLimiterCleanup,
			Metrics:       d.metrics,
		})
	}

	app.server = &http.Server{
		Addr:              ":" + d.cfg.Port,
		Handler:           app.routes(),
		ReadHeaderTimeout: config.HTTPReadHeader,
		IdleTimeout:       config.HTTPIdle,
	}
	app.server.RegisterOnShutdown(stopStreams)
	return app, nil
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.ReadinessCheckTimeout)
	defer cancel()

	if a.cfg.WaitForWarmup && !a.readiness.IsReady() {
		status := a.readiness.Status()
		a.logger.WithField("elapsed_seconds", status.ElapsedSeconds).
			Debug("Readiness check: warmup in progress")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": status.Reason,
			"warmup": status,
		})
		return
	}

	if err := a.db.Ping(ctx); err != nil {
		a.logger.WithError(err).Warn("Readiness check failed: database unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}

	if info, err := os.Stat(a.root); err != nil || !info.IsDir() {
		a.logger.WithError(err).WithField("course", a.root).Warn("Readiness check failed: course unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "course unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"database": "connected",
		"course":   a.root,
		"features": a.getFeatures(),
		"warmup":   a.readiness.Status(),
	})
}

func (a *Application) getFeatures() map[string]bool {
	return map[string]bool{
		"backup":          a.backup != nil,
		"duration_warmup": a.cfg.WarmupDurations,
		"error_reporting": sentry.IsEnabled(),
		"metrics_auth":    a.cfg.MetricsPassword != "",
	}
}

// Run starts the HTTP server and background jobs and blocks until
// SIGINT/SIGTERM or a fatal server error.
//
// Shutdown order:
//  1. Stop accepting requests and end open duration streams
//  2. Wait for the duration warmup to save what it resolved
//  3. Drain queued progress writes
//  4. Upload a final backup while the database is still open
//  5. Close the database, flush Sentry and remote logs
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if a.cfg.WarmupDurations {
		a.warmupDone = make(chan struct{})
		g.Go(func() error {
			defer close(a.warmupDone)
			a.warmDurations(gctx)
			return nil
		})
	} else {
		a.readiness.MarkReady()
	}

	if a.backup != nil {
		g.Go(func() error {
			a.backup.Run(gctx, a.db, a.cfg.Backup.Interval, config.BackupTimeout)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Received shutdown signal")
		return a.shutdown()
	})

	return g.Wait()
}

// shutdown performs graceful shutdown of the HTTP server and resources.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	if a.limiter != nil {
		a.limiter.Stop()
	}

	// The warmup saves partial results on cancel and needs the database.
	if a.warmupDone != nil {
		select {
		case <-a.warmupDone:
		case <-shutdownCtx.Done():
			a.logger.Warn("Duration warmup did not stop before the shutdown deadline")
		}
	}

	a.logger.Info("Flushing progress writes...")
	flushCtx, flushCancel := context.WithTimeout(shutdownCtx, config.ProgressFlush)
	if err := a.progress.Close(flushCtx); err != nil {
		a.logger.WithError(err).Warn("Progress flush incomplete")
	}
	flushCancel()

	if a.backup != nil {
		backupCtx, backupCancel := context.WithTimeout(shutdownCtx, config.BackupTimeout)
		if _, err := a.backup.Upload(backupCtx, a.db); err != nil {
			a.logger.WithError(err).Warn("Final progress backup failed")
		}
		backupCancel()
	}

	a.logger.Info("Closing resources...")
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "database").Error("Component close error")
	}

	if sentry.IsEnabled() && !sentry.Flush(2*time.Second) {
		a.logger.Warn("Sentry flush timed out")
	}

	a.logger.Info("Shutdown complete")
	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Logger shutdown timed out")
	}
	return nil
}
