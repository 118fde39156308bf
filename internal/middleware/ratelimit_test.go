package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/smis-school/smis/internal/app/models/dto"
)

func TestRateLimiter_AllowBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2, time.Minute, zerolog.Nop())
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "keys are limited independently")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("a"), "a token refills after one second")
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(5, 5, time.Minute, zerolog.Nop())
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	now = now.Add(50 * time.Second)
	rl.Allow("fresh")
	now = now.Add(20 * time.Second)

	assert.Equal(t, 1, rl.Cleanup())
	assert.Equal(t, 1, rl.Len())
}

func TestRateLimiter_Handler(t *testing.T) {
	rl := NewPerMinuteLimiter(60, 1, time.Minute, zerolog.Nop())
	r := gin.New()
	r.POST("/login", rl.Handler(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodPost, "/login", nil)).Code)

	w := serve(r, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, dto.ErrorCodeRateLimited, decode(t, w).Error.Code)
}
