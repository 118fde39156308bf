package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/smis-school/smis/internal/app/models/dto"
	"github.com/smis-school/smis/internal/app/services"
	"github.com/smis-school/smis/internal/middleware"
	"github.com/smis-school/smis/internal/pkg/helpers"
)

// TeacherController serves classes, attendance and grading for teachers.
type TeacherController struct {
	teacherService services.TeacherService
	logger         zerolog.Logger
}

func NewTeacherController(teacherService services.TeacherService, logger zerolog.Logger) *TeacherController {
	return &TeacherController{teacherService: teacherService, logger: logger}
}

// Dashboard godoc
// @Summary Teacher dashboard
// @Tags teachers
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.TeacherDashboard}
// @Router /teachers/dashboard [get]
func (c *TeacherController) Dashboard(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	dash, err := c.teacherService.Dashboard(ctx.Request.Context(), actor.UserID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, dash, "")
}

// Classes godoc
// @Summary Classes the teacher leads or is timetabled for
// @Tags teachers
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]models.Class}
// @Router /teachers/classes [get]
func (c *TeacherController) Classes(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	classes, err := c.teacherService.Classes(ctx.Request.Context(), actor.UserID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, classes, "")
}

// ClassStudents godoc
// @Summary Roster of a class
// @Tags teachers
// @Produce json
// @Security BearerAuth
// @Param id path int true "Class ID"
// @Success 200 {object} dto.APIResponse{data=[]models.Student}
// @Failure 403 {object} dto.APIResponse "Not assigned to the class"
// @Failure 404 {object} dto.APIResponse "Class not found"
// @Router /teachers/classes/{id}/students [get]
func (c *TeacherController) ClassStudents(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	classID, valid := helpers.ParseIDParam(ctx, "id")
	if !valid {
		return
	}
	students, err := c.teacherService.ClassStudents(ctx.Request.Context(), actor.UserID, classID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, students, "")
}

// Timetable godoc
// @Summary Teacher's weekly timetable
// @Tags teachers
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]models.TimetableEntry}
// @Router /teachers/timetable [get]
func (c *TeacherController) Timetable(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	entries, err := c.teacherService.Timetable(ctx.Request.Context(), actor.UserID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, entries, "")
}

// MarkAttendance godoc
// @Summary Mark attendance for a class
// @Description Upserts one mark per student for the class and date
// @Tags teachers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.BulkAttendanceRequest true "Attendance marks"
// @Success 200 {object} dto.APIResponse{data=[]models.AttendanceRecord}
// @Failure 400 {object} dto.APIResponse "Validation error or student not on roster"
// @Failure 403 {object} dto.APIResponse "Not timetabled for the class"
// @Router /teachers/attendance [post]
func (c *TeacherController) MarkAttendance(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	var req dto.BulkAttendanceRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	records, err := c.teacherService.MarkAttendance(ctx.Request.Context(), actor, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	c.logger.Info().Int64("teacherID", actor.UserID).Int64("classID", req.ClassID).Int("records", len(records)).Msg("Attendance marked")
	ok(ctx, records, "Attendance recorded")
}

// ListAttendance godoc
// @Summary Attendance of a class
// @Tags teachers
// @Produce json
// @Security BearerAuth
// @Param classId query int true "Class ID"
// @Param date query string false "Date (YYYY-MM-DD)"
// @Success 200 {object} dto.APIResponse{data=[]models.AttendanceRecord}
// @Router /teachers/attendance [get]
func (c *TeacherController) ListAttendance(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	classID, found := helpers.QueryInt64(ctx, "classId")
	if !found {
		middleware.AbortBadRequest(ctx, "classId query parameter is required")
		return
	}
	date, err := helpers.ParseOptionalDate(ctx.Query("date"))
	if err != nil {
		middleware.AbortBadRequest(ctx, err.Error())
		return
	}

	records, err := c.teacherService.ListAttendance(ctx.Request.Context(), actor.UserID, classID, date)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, records, "")
}

// CreateGrade godoc
// @Summary Record a grade
// @Tags teachers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateGradeRequest true "Grade"
// @Success 201 {object} dto.APIResponse{data=models.Grade}
// @Failure 400 {object} dto.APIResponse "Score out of range"
// @Failure 403 {object} dto.APIResponse "Not timetabled for the course"
// @Router /teachers/grades [post]
func (c *TeacherController) CreateGrade(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	var req dto.CreateGradeRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	grade, err := c.teacherService.CreateGrade(ctx.Request.Context(), actor, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	created(ctx, grade, "Grade recorded")
}

// UpdateGrade godoc
// @Summary Update a grade
// @Tags teachers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Grade ID"
// @Param request body dto.UpdateGradeRequest true "Changes"
// @Success 200 {object} dto.APIResponse{data=models.Grade}
// @Failure 403 {object} dto.APIResponse "Grade recorded by another teacher"
// @Failure 404 {object} dto.APIResponse "Grade not found"
// @Router /teachers/grades/{id} [put]
func (c *TeacherController) UpdateGrade(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	id, valid := helpers.ParseIDParam(ctx, "id")
	if !valid {
		return
	}
	var req dto.UpdateGradeRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	grade, err := c.teacherService.UpdateGrade(ctx.Request.Context(), actor, id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, grade, "Grade updated")
}

// CourseGrades godoc
// @Summary Grades for a course
// @Tags teachers
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Param term query string false "Term"
// @Success 200 {object} dto.APIResponse{data=[]models.Grade}
// @Router /teachers/courses/{id}/grades [get]
func (c *TeacherController) CourseGrades(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	courseID, valid := helpers.ParseIDParam(ctx, "id")
	if !valid {
		return
	}
	grades, err := c.teacherService.CourseGrades(ctx.Request.Context(), actor.UserID, courseID, ctx.Query("term"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, grades, "")
}
