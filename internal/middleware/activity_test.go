package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/services"
)

func activityRouter(activity *recordingActivity) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserID, int64(5))
		c.Set(ContextRole, models.RoleAdmin)
		c.Next()
	}, ActivityRecorder(activity))

	r.POST("/api/v1/admin/classes/:id/students", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/v1/admin/departments", func(c *gin.Context) {
		activity.Record(c.Request.Context(), CurrentActor(c), services.ActionDeptCreated, "department", nil, nil)
		c.Status(http.StatusCreated)
	})
	r.PUT("/api/v1/admin/users/:id", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/api/v1/admin/users", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestActivityRecorder_RecordsUnmarkedWrites(t *testing.T) {
	activity := &recordingActivity{}
	r := activityRouter(activity)

	w := serve(r, httptest.NewRequest(http.MethodPost, "/api/v1/admin/classes/3/students", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	require.Equal(t, 1, activity.count())
	e := activity.entries[0]
	assert.Equal(t, ActionHTTPRequest, e.action)
	assert.Equal(t, "students", e.entityType)
	assert.Equal(t, int64(5), e.actor.UserID)
	assert.Equal(t, "/api/v1/admin/classes/:id/students", e.metadata["route"])
	assert.Equal(t, http.StatusOK, e.metadata["status"])
}

func TestActivityRecorder_DomainEventSuppressesGenericEntry(t *testing.T) {
	activity := &recordingActivity{}
	r := activityRouter(activity)

	w := serve(r, httptest.NewRequest(http.MethodPost, "/api/v1/admin/departments", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, 1, activity.count())
	assert.Equal(t, services.ActionDeptCreated, activity.entries[0].action)
}

func TestActivityRecorder_SkipsReadsAndFailures(t *testing.T) {
	activity := &recordingActivity{}
	r := activityRouter(activity)

	serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil))
	serve(r, httptest.NewRequest(http.MethodPut, "/api/v1/admin/users/9", nil))
	assert.Equal(t, 0, activity.count())
}

func TestEntityFromRoute(t *testing.T) {
	assert.Equal(t, "payments", entityFromRoute("/api/v1/finance/fees/:id/payments"))
	assert.Equal(t, "fees", entityFromRoute("/api/v1/finance/fees/:id"))
	assert.Equal(t, "http", entityFromRoute("/:id"))
}
