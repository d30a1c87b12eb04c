package app

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Lacarte/video-player/internal/ctxutil"
	domerrors "github.com/Lacarte/video-player/internal/errors"
	"github.com/Lacarte/video-player/internal/logger"
	"github.com/Lacarte/video-player/internal/ratelimit"
	"github.com/Lacarte/video-player/internal/sentry"
)

// securityHeadersMiddleware adds security headers to responses.
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'")
		c.Header("X-Permitted-Cross-Domain-Policies", "none")
		c.Next()
	}
}

// requestIDMiddleware takes the caller's request ID, or mints one, stores it
// on the request context and echoes it back.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = c.GetHeader("X-Correlation-Id")
		}
		if requestID == "" {
			requestID = ctxutil.NewRequestID()
		}
		c.Request = c.Request.WithContext(ctxutil.WithRequestID(c.Request.Context(), requestID))
		c.Header("X-Request-Id", requestID)
		c.Next()
	}
}

// courseKeyMiddleware tags API requests with the served course so every
// log line and queued write carries it.
func courseKeyMiddleware(courseKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(ctxutil.WithCourseKey(c.Request.Context(), courseKey))
		c.Next()
	}
}

// loggingMiddleware logs HTTP requests with status-based log levels:
// 5xx=Error, 4xx=Warn, 404=Debug, 3xx/2xx=Debug.
func loggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		entry := log.WithField("http_method", method).
			WithField("http_path", path).
			WithField("http_status", status).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			WithField("client_ip", c.ClientIP())
		if requestID, ok := ctxutil.GetRequestID(c.Request.Context()); ok {
			entry = entry.WithRequestID(requestID)
		}

		switch {
		case status >= 500:
			entry.Error("HTTP request failed")
		case status == http.StatusNotFound:
			entry.Debug("HTTP request not found")
		case status >= 400:
			entry.Warn("HTTP request rejected")
		default:
			entry.Debug("HTTP request completed")
		}
	}
}

// probeRateLimitMiddleware rejects clients that start ffprobe work faster
// than the configured budget. A nil limiter lets everything through.
func (a *Application) probeRateLimitMiddleware(limiter *ratelimit.KeyedLimiter) gin.HandlerFunc {
	if limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			a.respondError(c, "duration", domerrors.NewWrapper("duration", "rate_limit").
				Wrap(domerrors.ErrRateLimited, "Too many duration requests, slow down"))
			return
		}
		c.Next()
	}
}

// respondError maps domain errors to HTTP statuses. Server-side failures are
// logged, counted and reported to Sentry; the body only carries the user
// message.
func (a *Application) respondError(c *gin.Context, module string, err error) {
	status := http.StatusInternalServerError
	errorType := "internal"
	switch {
	case domerrors.IsNotFound(err):
		status, errorType = http.StatusNotFound, "not_found"
	case domerrors.IsInvalidInput(err):
		status, errorType = http.StatusBadRequest, "invalid_input"
	case domerrors.IsTimeout(err):
		status, errorType = http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, domerrors.ErrClosed):
		status, errorType = http.StatusServiceUnavailable, "closed"
	case errors.Is(err, domerrors.ErrRateLimited):
		status, errorType = http.StatusTooManyRequests, "rate_limited"
	}

	ctx := c.Request.Context()
	if status >= 500 {
		a.logger.WithError(err).WithModule(module).ErrorContext(ctx, "Request failed")
		sentry.CaptureException(ctx, err, map[string]string{"module": module})
	}
	if a.metrics != nil {
		a.metrics.RecordHTTPError(errorType, module)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": domerrors.GetUserMessage(err)})
}
