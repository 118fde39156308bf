package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smis-school/smis/internal/app/models/dto"
)

// Pinger is a dependency that can report its health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthController reports liveness and dependency status.
type HealthController struct {
	checks  map[string]Pinger
	started time.Time
	version string
	timeout time.Duration
}

func NewHealthController(version string, checks map[string]Pinger) *HealthController {
	return &HealthController{checks: checks, started: time.Now(), version: version, timeout: 2 * time.Second}
}

// Ping godoc
// @Summary Liveness check
// @Tags health
// @Produce json
// @Success 200 {object} dto.APIResponse
// @Router /ping [get]
func (c *HealthController) Ping(ctx *gin.Context) {
	ok(ctx, gin.H{"message": "pong"}, "")
}

// Health godoc
// @Summary Readiness check
// @Description Pings the database and the cache
// @Tags health
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.HealthResponse}
// @Failure 503 {object} dto.APIResponse{data=dto.HealthResponse}
// @Router /health [get]
func (c *HealthController) Health(ctx *gin.Context) {
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), c.timeout)
	defer cancel()

	resp := dto.HealthResponse{
		Status:  "ok",
		Checks:  make(map[string]string, len(c.checks)),
		Uptime:  time.Since(c.started).Round(time.Second).String(),
		Version: c.version,
	}
	for name, p := range c.checks {
		if err := p.Ping(pingCtx); err != nil {
			resp.Checks[name] = "down: " + err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "up"
	}

	if resp.Status != "ok" {
		ctx.JSON(http.StatusServiceUnavailable, dto.APIResponse{
			Success:   false,
			Message:   "One or more dependencies are unavailable",
			Data:      resp,
			Timestamp: time.Now(),
		})
		return
	}
	ok(ctx, resp, "")
}
