package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smis-school/smis/internal/app/services"
)

// ActionHTTPRequest is recorded for mutating requests whose handler did not
// log a domain event of its own.
const ActionHTTPRequest = "http.request"

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// ActivityRecorder logs successful authenticated writes to the activity log.
// Handlers that record a domain event themselves suppress the generic entry.
func ActivityRecorder(activity services.ActivityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isMutating(c.Request.Method) {
			c.Next()
			return
		}
		ctx, mark := services.WithActivityMark(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusBadRequest || mark.Recorded() {
			return
		}
		actor := CurrentActor(c)
		if actor == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		activity.Record(context.WithoutCancel(ctx), actor, ActionHTTPRequest, entityFromRoute(route), nil, map[string]interface{}{
			"method":    c.Request.Method,
			"route":     route,
			"path":      c.Request.URL.Path,
			"status":    status,
			"requestId": GetRequestID(c),
		})
	}
}

// entityFromRoute picks the last static segment of a route template, e.g.
// "/api/v1/finance/fees/:id/payments" yields "payments".
func entityFromRoute(route string) string {
	parts := strings.Split(strings.Trim(route, "/"), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		p := parts[i]
		if p != "" && !strings.HasPrefix(p, ":") && !strings.HasPrefix(p, "*") {
			return p
		}
	}
	return "http"
}
