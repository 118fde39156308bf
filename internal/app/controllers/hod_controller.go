package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/smis-school/smis/internal/app/models/dto"
	"github.com/smis-school/smis/internal/app/services"
	"github.com/smis-school/smis/internal/middleware"
	"github.com/smis-school/smis/internal/pkg/helpers"
)

// HODController serves department management for heads of department.
// Every operation is scoped to the caller's department by the service.
type HODController struct {
	hodService services.HODService
}

func NewHODController(hodService services.HODService) *HODController {
	return &HODController{hodService: hodService}
}

// Dashboard godoc
// @Summary Department dashboard
// @Tags hod
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.HODDashboard}
// @Router /hod/dashboard [get]
func (c *HODController) Dashboard(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	dash, err := c.hodService.Dashboard(ctx.Request.Context(), actor)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, dash, "")
}

// Teachers godoc
// @Summary Teachers in the department
// @Tags hod
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name or email"
// @Param page query int false "Page" default(1)
// @Param size query int false "Page size" default(10)
// @Success 200 {object} dto.APIResponse{data=dto.PaginatedResponse}
// @Router /hod/teachers [get]
func (c *HODController) Teachers(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	page, size := helpers.ParsePaginationParams(ctx)
	result, err := c.hodService.Teachers(ctx.Request.Context(), actor, ctx.Query("search"), page, size)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, result, "")
}

// Students godoc
// @Summary Students in the department
// @Tags hod
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name or student number"
// @Param page query int false "Page" default(1)
// @Param size query int false "Page size" default(10)
// @Success 200 {object} dto.APIResponse{data=dto.PaginatedResponse}
// @Router /hod/students [get]
func (c *HODController) Students(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	page, size := helpers.ParsePaginationParams(ctx)
	result, err := c.hodService.Students(ctx.Request.Context(), actor, ctx.Query("search"), page, size)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, result, "")
}

// Courses godoc
// @Summary Department courses
// @Tags hod
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]models.Course}
// @Router /hod/courses [get]
func (c *HODController) Courses(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	courses, err := c.hodService.Courses(ctx.Request.Context(), actor)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, courses, "")
}

// CreateCourse godoc
// @Summary Create a course
// @Tags hod
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CourseRequest true "Course"
// @Success 201 {object} dto.APIResponse{data=models.Course}
// @Failure 403 {object} dto.APIResponse "Another department"
// @Failure 409 {object} dto.APIResponse "Course code exists"
// @Router /hod/courses [post]
func (c *HODController) CreateCourse(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	var req dto.CourseRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	course, err := c.hodService.CreateCourse(ctx.Request.Context(), actor, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	created(ctx, course, "Course created")
}

// UpdateCourse godoc
// @Summary Update a course
// @Tags hod
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Param request body dto.CourseRequest true "Course"
// @Success 200 {object} dto.APIResponse{data=models.Course}
// @Router /hod/courses/{id} [put]
func (c *HODController) UpdateCourse(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	id, valid := helpers.ParseIDParam(ctx, "id")
	if !valid {
		return
	}
	var req dto.CourseRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	course, err := c.hodService.UpdateCourse(ctx.Request.Context(), actor, id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, course, "Course updated")
}

// DeleteCourse godoc
// @Summary Delete a course
// @Tags hod
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Success 200 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse "Course has timetable or grade records"
// @Router /hod/courses/{id} [delete]
func (c *HODController) DeleteCourse(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	id, valid := helpers.ParseIDParam(ctx, "id")
	if !valid {
		return
	}
	if err := c.hodService.DeleteCourse(ctx.Request.Context(), actor, id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, nil, "Course deleted")
}

// Timetable godoc
// @Summary Department timetable
// @Tags hod
// @Produce json
// @Security BearerAuth
// @Param classId query int false "Restrict to a class"
// @Success 200 {object} dto.APIResponse{data=[]models.TimetableEntry}
// @Router /hod/timetable [get]
func (c *HODController) Timetable(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	classID, _ := helpers.QueryInt64(ctx, "classId")
	entries, err := c.hodService.Timetable(ctx.Request.Context(), actor, classID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, entries, "")
}

// AddTimetableEntry godoc
// @Summary Add a timetable slot
// @Description Rejects slots overlapping the same class, teacher or room on that day
// @Tags hod
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.TimetableEntryRequest true "Slot"
// @Success 201 {object} dto.APIResponse{data=models.TimetableEntry}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Clash with existing entries"
// @Router /hod/timetable [post]
func (c *HODController) AddTimetableEntry(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	var req dto.TimetableEntryRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	entry, err := c.hodService.AddTimetableEntry(ctx.Request.Context(), actor, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	created(ctx, entry, "Timetable entry created")
}

// RemoveTimetableEntry godoc
// @Summary Remove a timetable slot
// @Tags hod
// @Produce json
// @Security BearerAuth
// @Param id path int true "Entry ID"
// @Success 200 {object} dto.APIResponse
// @Router /hod/timetable/{id} [delete]
func (c *HODController) RemoveTimetableEntry(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	id, valid := helpers.ParseIDParam(ctx, "id")
	if !valid {
		return
	}
	if err := c.hodService.RemoveTimetableEntry(ctx.Request.Context(), actor, id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, nil, "Timetable entry removed")
}

// PerformanceReport godoc
// @Summary Department performance
// @Description Average score per course and attendance rate per class
// @Tags hod
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.PerformanceReport}
// @Router /hod/reports/performance [get]
func (c *HODController) PerformanceReport(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	report, err := c.hodService.PerformanceReport(ctx.Request.Context(), actor)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, report, "")
}
