package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"polls-service/internal/api/middleware"
	"polls-service/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimitIP(t *testing.T) {
	mr, redisService := testutil.SetupTestRedis(t)
	rl := middleware.NewRateLimitMiddleware(redisService)

	r := gin.New()
	r.GET("/limited", rl.RateLimitIP(2, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limited", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)

	// fails open when redis is unreachable
	mr.Close()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limited", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimitPerUser(t *testing.T) {
	_, redisService := testutil.SetupTestRedis(t)
	rl := middleware.NewRateLimitMiddleware(redisService)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Test-User"); id != "" {
			c.Set(middleware.ContextUserID, uint(len(id)))
		}
		c.Next()
	})
	r.POST("/vote", rl.RateLimit(1, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	send := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/vote", nil)
		req.Header.Set("X-Test-User", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("a"))
	assert.Equal(t, http.StatusTooManyRequests, send("a"))
	assert.Equal(t, http.StatusOK, send("bb"))
}
