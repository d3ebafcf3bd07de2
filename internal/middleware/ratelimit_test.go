package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	current := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryRateStore()
	store.clock = func() time.Time { return current }

	r := gin.New()
	r.Use(RateLimit(store, 2, time.Minute))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	hit := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		return w
	}

	require.Equal(t, http.StatusOK, hit().Code)
	second := hit()
	require.Equal(t, http.StatusOK, second.Code)
	require.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))

	limited := hit()
	require.Equal(t, http.StatusTooManyRequests, limited.Code)
	require.Contains(t, limited.Body.String(), "RATE_LIMIT")

	current = current.Add(2 * time.Minute)
	require.Equal(t, http.StatusOK, hit().Code)
}

func TestRateLimitDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimit(nil, 1, time.Minute))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}
