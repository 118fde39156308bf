package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/smis-school/smis/internal/app/controllers"
	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/middleware"
)

// Controllers groups every controller the router mounts.
type Controllers struct {
	Auth     *controllers.AuthController
	Student  *controllers.StudentController
	Teacher  *controllers.TeacherController
	HOD      *controllers.HODController
	Finance  *controllers.FinanceController
	Admin    *controllers.AdminController
	Activity *controllers.ActivityController
	Health   *controllers.HealthController
}

// Limits are the optional rate-limiting handlers. Nil entries are skipped.
type Limits struct {
	API   gin.HandlerFunc
	Login gin.HandlerFunc
}

func use(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	out := handlers[:0]
	for _, h := range handlers {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

// SetupRouter configures all application routes
func SetupRouter(router *gin.Engine, c Controllers, authMiddleware *middleware.AuthMiddleware, limits Limits) {
	router.GET("/ping", c.Health.Ping)
	router.GET("/health", c.Health.Health)

	api := router.Group("/api")

	// --- Public auth routes ---
	auth := api.Group("/auth")
	{
		auth.POST("/login", use(limits.Login, c.Auth.Login)...)
		auth.POST("/register", use(limits.Login, c.Auth.Register)...)
		auth.POST("/refresh", use(limits.Login, c.Auth.RefreshToken)...)
	}

	// --- Authenticated routes ---
	authenticated := api.Group("")
	authenticated.Use(use(authMiddleware.JWTAuth(), limits.API)...)

	authed := authenticated.Group("/auth")
	{
		authed.POST("/logout", c.Auth.Logout)
		authed.GET("/me", c.Auth.Me)
		authed.PUT("/password", c.Auth.ChangePassword)
	}

	students := authenticated.Group("/students", authMiddleware.RoleRequired(models.RoleStudent))
	{
		students.GET("/dashboard", c.Student.Dashboard)
		students.GET("/profile", c.Student.Profile)
		students.GET("/courses", c.Student.Courses)
		students.GET("/timetable", c.Student.Timetable)
		students.GET("/grades", c.Student.Grades)
		students.GET("/attendance", c.Student.Attendance)
		students.GET("/fees", c.Student.Fees)
	}

	teachers := authenticated.Group("/teachers", authMiddleware.RoleRequired(models.RoleTeacher))
	{
		teachers.GET("/dashboard", c.Teacher.Dashboard)
		teachers.GET("/classes", c.Teacher.Classes)
		teachers.GET("/classes/:id/students", c.Teacher.ClassStudents)
		teachers.GET("/timetable", c.Teacher.Timetable)
		teachers.POST("/attendance", c.Teacher.MarkAttendance)
		teachers.GET("/attendance", c.Teacher.ListAttendance)
		teachers.POST("/grades", c.Teacher.CreateGrade)
		teachers.PUT("/grades/:id", c.Teacher.UpdateGrade)
		teachers.GET("/courses/:id/grades", c.Teacher.CourseGrades)
	}

	hod := authenticated.Group("/hod", authMiddleware.RoleRequired(models.RoleHOD))
	{
		hod.GET("/dashboard", c.HOD.Dashboard)
		hod.GET("/teachers", c.HOD.Teachers)
		hod.GET("/students", c.HOD.Students)
		hod.GET("/courses", c.HOD.Courses)
		hod.POST("/courses", c.HOD.CreateCourse)
		hod.PUT("/courses/:id", c.HOD.UpdateCourse)
		hod.DELETE("/courses/:id", c.HOD.DeleteCourse)
		hod.GET("/timetable", c.HOD.Timetable)
		hod.POST("/timetable", c.HOD.AddTimetableEntry)
		hod.DELETE("/timetable/:id", c.HOD.RemoveTimetableEntry)
		hod.GET("/reports/performance", c.HOD.PerformanceReport)
	}

	finance := authenticated.Group("/finance", authMiddleware.RoleRequired(models.RoleFinance))
	{
		finance.GET("/dashboard", c.Finance.Dashboard)
		finance.GET("/fees", c.Finance.ListFees)
		finance.POST("/fees", c.Finance.CreateFee)
		finance.GET("/fees/export", c.Finance.ExportFees)
		finance.GET("/fees/:id", c.Finance.GetFee)
		finance.PUT("/fees/:id", c.Finance.UpdateFee)
		finance.DELETE("/fees/:id", c.Finance.DeleteFee)
		finance.POST("/fees/:id/payments", c.Finance.RecordPayment)
		finance.GET("/fees/:id/payments", c.Finance.ListPayments)
		finance.GET("/reports/summary", c.Finance.Summary)
	}

	admin := authenticated.Group("/admin", authMiddleware.RoleRequired(models.RoleAdmin))
	{
		admin.GET("/dashboard", c.Admin.Dashboard)
		admin.POST("/cache/flush", c.Admin.FlushCache)

		admin.GET("/users", c.Admin.ListUsers)
		admin.POST("/users", c.Admin.CreateUser)
		admin.GET("/users/:id", c.Admin.GetUser)
		admin.PUT("/users/:id", c.Admin.UpdateUser)
		admin.PATCH("/users/:id/status", c.Admin.SetUserStatus)
		admin.DELETE("/users/:id", c.Admin.DeleteUser)

		admin.GET("/departments", c.Admin.ListDepartments)
		admin.POST("/departments", c.Admin.CreateDepartment)
		admin.PUT("/departments/:id", c.Admin.UpdateDepartment)
		admin.DELETE("/departments/:id", c.Admin.DeleteDepartment)

		admin.GET("/classes", c.Admin.ListClasses)
		admin.POST("/classes", c.Admin.CreateClass)
		admin.PUT("/classes/:id", c.Admin.UpdateClass)
		admin.DELETE("/classes/:id", c.Admin.DeleteClass)
		admin.PUT("/classes/:id/roster", c.Admin.SetRoster)
	}

	activities := authenticated.Group("/activities")
	{
		activities.GET("/me", c.Activity.Mine)
		activities.POST("", c.Activity.Create)

		staff := activities.Group("", authMiddleware.RoleRequired(models.RoleAdmin, models.RoleHOD))
		staff.GET("", c.Activity.List)
		staff.GET("/recent", c.Activity.Recent)
		staff.GET("/entity/:type/:id", c.Activity.ByEntity)
	}

	// The stream authenticates on its own so the per-user API limiter does
	// not count a long-lived connection.
	api.GET("/activities/stream", authMiddleware.JWTAuth(), authMiddleware.RoleRequired(models.RoleAdmin), c.Activity.Stream)
}
