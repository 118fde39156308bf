package dto

import "github.com/smis-school/smis/internal/app/models"

// CourseRequest creates or updates a course. HODs may only use their own
// department; the id is filled in from the caller when omitted.
type CourseRequest struct {
	Code         string  `json:"code" binding:"required,min=2,max=20"`
	Name         string  `json:"name" binding:"required,min=2,max=150"`
	DepartmentID int64   `json:"departmentId,omitempty" binding:"omitempty,gt=0"`
	Credits      int     `json:"credits" binding:"min=0,max=60"`
	Description  *string `json:"description,omitempty"`
}

// ClassRequest creates or updates a class.
type ClassRequest struct {
	Name           string `json:"name" binding:"required,min=1,max=100"`
	DepartmentID   int64  `json:"departmentId" binding:"required,gt=0"`
	AcademicYear   string `json:"academicYear" binding:"required,max=20"`
	ClassTeacherID *int64 `json:"classTeacherId,omitempty" binding:"omitempty,gt=0"`
}

// RosterRequest replaces the roster of a class.
type RosterRequest struct {
	StudentIDs []int64 `json:"studentIds" binding:"required,dive,gt=0"`
}

// TimetableEntryRequest creates a timetable slot. Ids are pointers so a
// missing id is told apart from zero.
type TimetableEntryRequest struct {
	CourseID  *int64  `json:"courseId"`
	TeacherID *int64  `json:"teacherId"`
	ClassID   *int64  `json:"classId"`
	DayOfWeek int     `json:"dayOfWeek" binding:"required,min=1,max=7"`
	StartTime string  `json:"startTime" binding:"required,clock"`
	EndTime   string  `json:"endTime" binding:"required,clock"`
	Room      *string `json:"room,omitempty" binding:"omitempty,max=50"`
}

// AttendanceMark is one student's mark within a bulk submission.
type AttendanceMark struct {
	StudentID int64                   `json:"studentId" binding:"required,gt=0"`
	Status    models.AttendanceStatus `json:"status" binding:"required,oneof=PRESENT ABSENT LATE EXCUSED"`
	Remarks   *string                 `json:"remarks,omitempty" binding:"omitempty,max=255"`
}

// BulkAttendanceRequest marks attendance for a class on a date.
type BulkAttendanceRequest struct {
	ClassID  int64            `json:"classId" binding:"required,gt=0"`
	CourseID *int64           `json:"courseId,omitempty" binding:"omitempty,gt=0"`
	Date     string           `json:"date" binding:"required,date" example:"2025-02-14"`
	Records  []AttendanceMark `json:"records" binding:"required,min=1,dive"`
}

// AttendanceSummary aggregates a student's attendance marks.
type AttendanceSummary struct {
	Total   int64   `json:"total"`
	Present int64   `json:"present"`
	Absent  int64   `json:"absent"`
	Late    int64   `json:"late"`
	Excused int64   `json:"excused"`
	Rate    float64 `json:"rate"`
}

// StudentAttendanceResponse lists a student's attendance with a summary.
type StudentAttendanceResponse struct {
	Records []models.AttendanceRecord `json:"records"`
	Summary AttendanceSummary         `json:"summary"`
}

// CreateGradeRequest records an assessment score.
type CreateGradeRequest struct {
	StudentID  int64   `json:"studentId" binding:"required,gt=0"`
	CourseID   int64   `json:"courseId" binding:"required,gt=0"`
	Assessment string  `json:"assessment" binding:"required,max=100"`
	Score      float64 `json:"score" binding:"min=0"`
	MaxScore   float64 `json:"maxScore" binding:"required,gt=0"`
	Term       string  `json:"term" binding:"required,max=20"`
	Remarks    *string `json:"remarks,omitempty" binding:"omitempty,max=255"`
}

// UpdateGradeRequest changes a recorded score.
type UpdateGradeRequest struct {
	Assessment *string  `json:"assessment,omitempty" binding:"omitempty,max=100"`
	Score      *float64 `json:"score,omitempty" binding:"omitempty,min=0"`
	MaxScore   *float64 `json:"maxScore,omitempty" binding:"omitempty,gt=0"`
	Remarks    *string  `json:"remarks,omitempty" binding:"omitempty,max=255"`
}

// CourseGradeSummary groups grades by course for a student.
type CourseGradeSummary struct {
	CourseID   int64          `json:"courseId"`
	CourseCode string         `json:"courseCode"`
	CourseName string         `json:"courseName"`
	Average    float64        `json:"average"`
	Grades     []models.Grade `json:"grades"`
}
