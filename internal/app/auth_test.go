package app

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func metricsRouter(enabled bool) *gin.Engine {
	router := gin.New()
	router.GET("/metrics", metricsAuthMiddleware(enabled, "prometheus", "secret123"), func(c *gin.Context) {
		c.String(http.StatusOK, "metrics")
	})
	return router
}

func TestMetricsAuthMiddleware_Disabled(t *testing.T) {
	router := metricsRouter(false)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "metrics", w.Body.String())
}

func TestMetricsAuthMiddleware(t *testing.T) {
	router := metricsRouter(true)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid credentials", basicAuth("prometheus", "secret123"), http.StatusOK},
		{"wrong username", basicAuth("scraper", "secret123"), http.StatusUnauthorized},
		{"wrong password", basicAuth("prometheus", "wrong"), http.StatusUnauthorized},
		{"empty password", basicAuth("prometheus", ""), http.StatusUnauthorized},
		{"no header", "", http.StatusUnauthorized},
		{"only basic", "Basic", http.StatusUnauthorized},
		{"invalid base64", "Basic notbase64!!!", http.StatusUnauthorized},
		{"bearer token", "Bearer sometoken", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, metricsRealm, w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}
