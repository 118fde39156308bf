package controllers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/models/dto"
	"github.com/smis-school/smis/internal/app/services"
	"github.com/smis-school/smis/internal/middleware"
	"github.com/smis-school/smis/internal/pkg/helpers"
	"github.com/smis-school/smis/internal/pkg/websocket"
)

// ActivityController exposes the activity log and its live feed.
type ActivityController struct {
	activityService services.ActivityService
	hub             *websocket.Hub
	upgrader        *gorilla.Upgrader
	logger          zerolog.Logger
}

func NewActivityController(activityService services.ActivityService, hub *websocket.Hub, upgrader *gorilla.Upgrader, logger zerolog.Logger) *ActivityController {
	return &ActivityController{activityService: activityService, hub: hub, upgrader: upgrader, logger: logger}
}

// List godoc
// @Summary Query the activity log
// @Tags activities
// @Produce json
// @Security BearerAuth
// @Param userId query int false "User ID"
// @Param action query string false "Action"
// @Param entityType query string false "Entity type"
// @Param entityId query int false "Entity ID"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD), inclusive"
// @Param search query string false "Free text"
// @Param page query int false "Page" default(1)
// @Param size query int false "Page size" default(10)
// @Success 200 {object} dto.APIResponse{data=dto.PaginatedResponse}
// @Router /activities [get]
func (c *ActivityController) List(ctx *gin.Context) {
	var q dto.ActivityQuery
	if !middleware.BindQuery(ctx, &q) {
		return
	}
	filter := models.ActivityFilter{
		UserID:     q.UserID,
		Action:     q.Action,
		EntityType: q.EntityType,
		EntityID:   q.EntityID,
		Search:     q.Search,
	}
	from, err := helpers.ParseOptionalDate(q.From)
	if err != nil {
		middleware.AbortBadRequest(ctx, err.Error())
		return
	}
	to, err := helpers.ParseOptionalDate(q.To)
	if err != nil {
		middleware.AbortBadRequest(ctx, err.Error())
		return
	}
	filter.From = from
	if to != nil {
		// Inclusive of the whole day.
		end := to.AddDate(0, 0, 1)
		filter.To = &end
	}

	page, size := helpers.ParsePaginationParams(ctx)
	result, err := c.activityService.List(ctx.Request.Context(), filter, page, size)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, result, "")
}

// Recent godoc
// @Summary Most recent activity
// @Tags activities
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of entries"
// @Success 200 {object} dto.APIResponse{data=[]models.ActivityLog}
// @Router /activities/recent [get]
func (c *ActivityController) Recent(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.Query("limit"))
	logs, err := c.activityService.Recent(ctx.Request.Context(), limit)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, logs, "")
}

// ByEntity godoc
// @Summary History of one entity
// @Tags activities
// @Produce json
// @Security BearerAuth
// @Param type path string true "Entity type, e.g. fee"
// @Param id path int true "Entity ID"
// @Success 200 {object} dto.APIResponse{data=[]models.ActivityLog}
// @Router /activities/entity/{type}/{id} [get]
func (c *ActivityController) ByEntity(ctx *gin.Context) {
	id, valid := helpers.ParseIDParam(ctx, "id")
	if !valid {
		return
	}
	logs, err := c.activityService.ByEntity(ctx.Request.Context(), ctx.Param("type"), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, logs, "")
}

// Mine godoc
// @Summary The caller's own activity
// @Tags activities
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page" default(1)
// @Param size query int false "Page size" default(10)
// @Success 200 {object} dto.APIResponse{data=dto.PaginatedResponse}
// @Router /activities/me [get]
func (c *ActivityController) Mine(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	page, size := helpers.ParsePaginationParams(ctx)
	result, err := c.activityService.ForUser(ctx.Request.Context(), actor.UserID, page, size)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, result, "")
}

// Create godoc
// @Summary Report a client-side activity
// @Tags activities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateActivityRequest true "Activity"
// @Success 201 {object} dto.APIResponse{data=models.ActivityLog}
// @Router /activities [post]
func (c *ActivityController) Create(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	var req dto.CreateActivityRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	userID := actor.UserID
	ip := actor.IPAddress
	ua := actor.UserAgent
	entry := &models.ActivityLog{
		UserID:     &userID,
		Action:     req.Action,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Metadata:   req.Metadata,
		IPAddress:  &ip,
		UserAgent:  &ua,
	}
	if err := c.activityService.Log(ctx.Request.Context(), entry); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	created(ctx, entry, "Activity recorded")
}

// Stream godoc
// @Summary Live activity feed
// @Description Upgrades to a WebSocket. Pass the access token as ?token= when headers cannot be set. Optional action, entityType and userId query parameters set the initial filter; clients may send {"type":"filter","filter":{...}} to change it.
// @Tags activities
// @Security BearerAuth
// @Param token query string false "Access token"
// @Param action query string false "Action prefix"
// @Param entityType query string false "Entity type"
// @Param userId query int false "User ID"
// @Success 101 {string} string "Switching Protocols"
// @Router /activities/stream [get]
func (c *ActivityController) Stream(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	filter := websocket.Filter{
		ActionPrefix: ctx.Query("action"),
		EntityType:   ctx.Query("entityType"),
	}
	if id, found := helpers.QueryInt64(ctx, "userId"); found {
		filter.UserID = &id
	}

	if err := c.hub.Serve(c.upgrader, ctx.Writer, ctx.Request, actor.UserID, filter); err != nil {
		c.logger.Debug().Err(err).Int64("userID", actor.UserID).Msg("Activity stream not established")
	}
}
