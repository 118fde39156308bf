package dto

import "github.com/smis-school/smis/internal/app/models"

// StudentDashboard summarises a student's standing.
type StudentDashboard struct {
	StudentNumber   string                  `json:"studentNumber"`
	ClassName       string                  `json:"className,omitempty"`
	CourseCount     int                     `json:"courseCount"`
	AttendanceRate  float64                 `json:"attendanceRate"`
	AverageScore    float64                 `json:"averageScore"`
	OutstandingFees float64                 `json:"outstandingFees"`
	TodayTimetable  []models.TimetableEntry `json:"todayTimetable"`
	RecentGrades    []models.Grade          `json:"recentGrades"`
}

// TeacherDashboard summarises a teacher's load.
type TeacherDashboard struct {
	ClassCount     int                     `json:"classCount"`
	CourseCount    int                     `json:"courseCount"`
	StudentCount   int                     `json:"studentCount"`
	WeeklyPeriods  int                     `json:"weeklyPeriods"`
	TodayTimetable []models.TimetableEntry `json:"todayTimetable"`
	GradesRecorded int64                   `json:"gradesRecorded"`
}

// HODDashboard summarises a department.
type HODDashboard struct {
	Department   *models.Department `json:"department"`
	TeacherCount int64              `json:"teacherCount"`
	StudentCount int64              `json:"studentCount"`
	CourseCount  int64              `json:"courseCount"`
	ClassCount   int64              `json:"classCount"`
	AverageScore float64            `json:"averageScore"`
}

// FinanceDashboard summarises fee collection.
type FinanceDashboard struct {
	Totals         models.FeeTotals           `json:"totals"`
	CollectionRate float64                    `json:"collectionRate"`
	ByStatus       map[models.FeeStatus]int64 `json:"byStatus"`
	RecentPayments []models.FeePayment        `json:"recentPayments"`
}

// AdminDashboard summarises the whole system.
type AdminDashboard struct {
	UsersByRole      map[models.RoleType]int64 `json:"usersByRole"`
	DepartmentCount  int64                     `json:"departmentCount"`
	ClassCount       int64                     `json:"classCount"`
	CourseCount      int64                     `json:"courseCount"`
	ActivityByAction []models.ActionCount      `json:"activityByAction"`
	RecentActivity   []models.ActivityLog      `json:"recentActivity"`
	Cache            CacheStats                `json:"cache"`
}

// CacheStats reports cache counters.
type CacheStats struct {
	Backend string `json:"backend"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Keys    int64  `json:"keys"`
}

// CoursePerformance is the average score for a course.
type CoursePerformance struct {
	CourseID     int64   `json:"courseId"`
	CourseCode   string  `json:"courseCode"`
	CourseName   string  `json:"courseName"`
	AverageScore float64 `json:"averageScore"`
	GradeCount   int64   `json:"gradeCount"`
}

// ClassAttendance is the attendance rate for a class.
type ClassAttendance struct {
	ClassID        int64   `json:"classId"`
	ClassName      string  `json:"className"`
	AttendanceRate float64 `json:"attendanceRate"`
	RecordCount    int64   `json:"recordCount"`
}

// PerformanceReport is the HOD performance report.
type PerformanceReport struct {
	DepartmentID int64               `json:"departmentId"`
	Courses      []CoursePerformance `json:"courses"`
	Classes      []ClassAttendance   `json:"classes"`
}

// HealthResponse reports dependency status.
type HealthResponse struct {
	Status  string            `json:"status" example:"ok"`
	Checks  map[string]string `json:"checks"`
	Uptime  string            `json:"uptime"`
	Version string            `json:"version"`
}
