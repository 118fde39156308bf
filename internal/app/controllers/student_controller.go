package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/smis-school/smis/internal/app/services"
	"github.com/smis-school/smis/internal/middleware"
	"github.com/smis-school/smis/internal/pkg/helpers"
)

// StudentController serves a student's own records.
type StudentController struct {
	studentService services.StudentService
}

func NewStudentController(studentService services.StudentService) *StudentController {
	return &StudentController{studentService: studentService}
}

// Dashboard godoc
// @Summary Student dashboard
// @Description Course count, attendance rate, average score, outstanding fees and today's timetable
// @Tags students
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.StudentDashboard}
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Not a student"
// @Router /students/dashboard [get]
func (c *StudentController) Dashboard(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	dash, err := c.studentService.Dashboard(ctx.Request.Context(), actor.UserID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, dash, "")
}

// Profile godoc
// @Summary Student profile
// @Tags students
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.StudentProfileResponse}
// @Router /students/profile [get]
func (c *StudentController) Profile(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	profile, err := c.studentService.Profile(ctx.Request.Context(), actor.UserID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, profile, "")
}

// Courses godoc
// @Summary Courses taught to the student's class
// @Tags students
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]models.Course}
// @Router /students/courses [get]
func (c *StudentController) Courses(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	courses, err := c.studentService.Courses(ctx.Request.Context(), actor.UserID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, courses, "")
}

// Timetable godoc
// @Summary Weekly timetable of the student's class
// @Tags students
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]models.TimetableEntry}
// @Router /students/timetable [get]
func (c *StudentController) Timetable(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	entries, err := c.studentService.Timetable(ctx.Request.Context(), actor.UserID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, entries, "")
}

// Grades godoc
// @Summary Grades grouped by course
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param term query string false "Term, e.g. 2024-T1"
// @Success 200 {object} dto.APIResponse{data=[]dto.CourseGradeSummary}
// @Router /students/grades [get]
func (c *StudentController) Grades(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	grades, err := c.studentService.Grades(ctx.Request.Context(), actor.UserID, ctx.Query("term"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, grades, "")
}

// Attendance godoc
// @Summary Attendance records with a summary
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Success 200 {object} dto.APIResponse{data=dto.StudentAttendanceResponse}
// @Failure 400 {object} dto.APIResponse "Invalid date"
// @Router /students/attendance [get]
func (c *StudentController) Attendance(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	from, err := helpers.ParseOptionalDate(ctx.Query("from"))
	if err != nil {
		middleware.AbortBadRequest(ctx, err.Error())
		return
	}
	to, err := helpers.ParseOptionalDate(ctx.Query("to"))
	if err != nil {
		middleware.AbortBadRequest(ctx, err.Error())
		return
	}

	resp, err := c.studentService.Attendance(ctx.Request.Context(), actor.UserID, from, to)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, resp, "")
}

// Fees godoc
// @Summary Fees with totals
// @Tags students
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.StudentFeesResponse}
// @Router /students/fees [get]
func (c *StudentController) Fees(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	fees, err := c.studentService.Fees(ctx.Request.Context(), actor.UserID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, fees, "")
}
