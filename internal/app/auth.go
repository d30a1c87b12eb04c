package app

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const metricsRealm = `Basic realm="video-player metrics"`

// metricsAuthMiddleware guards /metrics with Basic Auth when enabled.
// Credentials are compared in constant time.
func metricsAuthMiddleware(enabled bool, username, password string) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	wantUser, wantPass := []byte(username), []byte(password)

	return func(c *gin.Context) {
		user, pass, ok := c.Request.BasicAuth()
		userMatch := subtle.ConstantTimeCompare([]byte(user), wantUser) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(pass), wantPass) == 1
		if !ok || !userMatch || !passMatch {
			c.Header("WWW-Authenticate", metricsRealm)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
