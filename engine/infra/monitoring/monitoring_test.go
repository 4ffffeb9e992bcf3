package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService(t *testing.T) {
	t.Run("Should summarize the rolling latency window", func(t *testing.T) {
		s := NewService()
		for i := 0; i < 10; i++ {
			s.ObserveRequest("/api/analyze", "POST", "200", 100*time.Millisecond, false)
		}
		stats := s.Stats()
		assert.Equal(t, 10, stats.RequestsObserved)
		assert.InDelta(t, 100.0, stats.AvgLatencyMS, 1.0)
	})

	t.Run("Should trim the window in one batch when full", func(t *testing.T) {
		s := NewService()
		for i := 0; i <= latencyWindowCap; i++ {
			s.ObserveRequest("/api/analyze", "POST", "200", time.Millisecond, false)
		}
		assert.Equal(t, latencyWindowKeep, s.Stats().RequestsObserved)
	})

	t.Run("Should report empty stats before any traffic", func(t *testing.T) {
		stats := NewService().Stats()
		assert.Zero(t, stats.RequestsObserved)
		assert.Zero(t, stats.AvgLatencyMS)
	})

	t.Run("Should expose metrics in Prometheus format", func(t *testing.T) {
		s := NewService()
		s.ObserveRequest("/api/analyze", "POST", "200", time.Millisecond, false)
		s.ObserveCompletion(true)

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "lexiscope_http_requests_total")
		assert.Contains(t, body, `lexiscope_llm_completions_total{outcome="degraded"}`)
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("Should label requests by registered route", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		s := NewService()
		router := gin.New()
		router.Use(s.Middleware())
		router.GET("/api/documents/:id", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents/doc_1", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		metrics := httptest.NewRecorder()
		s.Handler().ServeHTTP(metrics, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Contains(t, metrics.Body.String(), `route="/api/documents/:id"`)
	})
}
