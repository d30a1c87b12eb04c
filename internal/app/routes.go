package app

import (
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Lacarte/video-player/internal/sentry"
)

func (a *Application) routes() *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if sentry.IsEnabled() {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(securityHeadersMiddleware())
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware(a.logger))

	router.GET("/livez", a.livenessCheck)
	router.HEAD("/livez", a.livenessCheck)
	router.GET("/readyz", a.readinessCheck)
	router.HEAD("/readyz", a.readinessCheck)
	router.GET("/metrics",
		metricsAuthMiddleware(a.cfg.MetricsPassword != "", a.cfg.MetricsUsername, a.cfg.MetricsPassword),
		gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	api := router.Group("/api", courseKeyMiddleware(a.courseKey))
	api.GET("/playlist", a.getPlaylist)
	probeLimit := a.probeRateLimitMiddleware(a.limiter)
	api.POST("/duration", probeLimit, a.probeDuration)
	api.GET("/durations/stream", probeLimit, a.streamDurations)
	api.GET("/durations/cache", a.getDurationCache)
	api.PUT("/durations/cache", a.putDurationCache)
	api.GET("/progress", a.listProgress)
	api.PUT("/progress", a.putProgress)
	api.DELETE("/progress", a.deleteProgress)
	api.GET("/settings", a.getSettings)
	api.PUT("/settings", a.putSettings)
	api.GET("/resume", a.getResume)
	api.PUT("/order", a.putOrder)

	router.GET("/media/*path", a.serveMedia)
	router.HEAD("/media/*path", a.serveMedia)

	return router
}
