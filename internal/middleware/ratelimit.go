package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/smis-school/smis/internal/app/models/dto"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps a token bucket per client key.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
	idleTTL  time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewRateLimiter allows rps requests per second with the given burst. Keys
// unseen for idleTTL are dropped by Cleanup.
func NewRateLimiter(rps float64, burst int, idleTTL time.Duration, logger zerolog.Logger) *RateLimiter {
	if burst <= 0 {
		burst = int(math.Max(1, math.Ceil(rps)))
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(rps),
		burst:    burst,
		idleTTL:  idleTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// NewPerMinuteLimiter is a limiter for n requests per minute.
func NewPerMinuteLimiter(n, burst int, idleTTL time.Duration, logger zerolog.Logger) *RateLimiter {
	return NewRateLimiter(float64(n)/60, burst, idleTTL, logger)
}

// Allow reports whether key may make a request now.
func (rl *RateLimiter) Allow(key string) bool {
	now := rl.now()
	rl.mu.Lock()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	rl.mu.Unlock()
	return v.limiter.AllowN(now, 1)
}

// Cleanup removes visitors idle longer than idleTTL and returns how many
// were removed.
func (rl *RateLimiter) Cleanup() int {
	cutoff := rl.now().Add(-rl.idleTTL)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for key, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, key)
			removed++
		}
	}
	return removed
}

// Len is the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// StartCleanup runs Cleanup every interval until ctx is done.
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := rl.Cleanup(); n > 0 {
					rl.logger.Debug().Int("removed", n).Msg("Purged idle rate limiters")
				}
			}
		}
	}()
}

// Handler limits by authenticated user when known, otherwise by client IP.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if id, ok := GetUserID(c); ok {
			key = "user:" + strconv.FormatInt(id, 10)
		}
		if !rl.Allow(key) {
			rl.logger.Warn().
				Str("key", key).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Msg("Rate limit exceeded")
			c.Header("Retry-After", strconv.Itoa(rl.retryAfter()))
			detail := dto.NewErrorDetail(dto.ErrorCodeRateLimited, "Too many requests")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponse(detail))
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) retryAfter() int {
	if rl.rate <= 0 {
		return 60
	}
	return int(math.Max(1, math.Ceil(1/float64(rl.rate))))
}
