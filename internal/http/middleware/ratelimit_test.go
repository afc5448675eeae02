package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/fabworks/fabworks-auth/internal/http/middleware"
)

func pingRouter(rl *middleware.RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(rl.Handler())
	r.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	// 60 rpm gives a burst of 6; hammering from one IP must trip it.
	router := pingRouter(middleware.NewRateLimiter(60))

	var limited bool
	for i := 0; i < 20; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if w.Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	require.True(t, limited)
}

func TestRateLimiterDisabledWithoutBudget(t *testing.T) {
	rl := middleware.NewRateLimiter(0)
	require.Nil(t, rl)

	router := pingRouter(rl)
	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}
