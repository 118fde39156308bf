package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	appauth "github.com/smis-school/smis/internal/app/auth"
	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/models/dto"
	"github.com/smis-school/smis/internal/app/repositories"
	"github.com/smis-school/smis/internal/pkg/apperrors"
	"github.com/smis-school/smis/internal/pkg/helpers"
)

// HODService serves a head of department. Every call is scoped to the
// department the actor heads.
type HODService interface {
	Dashboard(ctx context.Context, actor *models.Actor) (*dto.HODDashboard, error)
	Teachers(ctx context.Context, actor *models.Actor, search string, page, size int) (*dto.PaginatedResponse, error)
	Students(ctx context.Context, actor *models.Actor, search string, page, size int) (*dto.PaginatedResponse, error)

	Courses(ctx context.Context, actor *models.Actor) ([]models.Course, error)
	CreateCourse(ctx context.Context, actor *models.Actor, req *dto.CourseRequest) (*models.Course, error)
	UpdateCourse(ctx context.Context, actor *models.Actor, id int64, req *dto.CourseRequest) (*models.Course, error)
	DeleteCourse(ctx context.Context, actor *models.Actor, id int64) error

	Timetable(ctx context.Context, actor *models.Actor, classID int64) ([]models.TimetableEntry, error)
	AddTimetableEntry(ctx context.Context, actor *models.Actor, req *dto.TimetableEntryRequest) (*models.TimetableEntry, error)
	RemoveTimetableEntry(ctx context.Context, actor *models.Actor, id int64) error

	PerformanceReport(ctx context.Context, actor *models.Actor) (*dto.PerformanceReport, error)
}

// HODServiceImpl implements HODService.
type HODServiceImpl struct {
	userRepo       *repositories.UserRepository
	deptRepo       *repositories.DepartmentRepository
	courseRepo     *repositories.CourseRepository
	classRepo      *repositories.ClassRepository
	timetableRepo  *repositories.TimetableRepository
	gradeRepo      *repositories.GradeRepository
	attendanceRepo *repositories.AttendanceRepository
	authz          *appauth.AuthorizationService
	activity       ActivityService
	cache          *DashboardCache
	logger         zerolog.Logger
}

func NewHODService(repos *repositories.Repositories, authz *appauth.AuthorizationService, activity ActivityService, cache *DashboardCache, logger zerolog.Logger) *HODServiceImpl {
	return &HODServiceImpl{
		userRepo:       repos.UserRepository,
		deptRepo:       repos.DepartmentRepository,
		courseRepo:     repos.CourseRepository,
		classRepo:      repos.ClassRepository,
		timetableRepo:  repos.TimetableRepository,
		gradeRepo:      repos.GradeRepository,
		attendanceRepo: repos.AttendanceRepository,
		authz:          authz,
		activity:       activity,
		cache:          cache,
		logger:         logger,
	}
}

func (s *HODServiceImpl) Dashboard(ctx context.Context, actor *models.Actor) (*dto.HODDashboard, error) {
	deptID, err := s.authz.HODDepartment(ctx, actor)
	if err != nil {
		return nil, err
	}
	return remember(ctx, s.cache, hodDashKey(deptID), func(ctx context.Context) (*dto.HODDashboard, error) {
		dept, err := s.deptRepo.GetByID(ctx, deptID)
		if err != nil {
			return nil, err
		}
		byRole, err := s.userRepo.CountByRole(ctx, &deptID)
		if err != nil {
			return nil, err
		}
		students, err := s.userRepo.CountStudentsByDepartment(ctx, deptID)
		if err != nil {
			return nil, err
		}
		courses, err := s.courseRepo.Count(ctx, &deptID)
		if err != nil {
			return nil, err
		}
		classes, err := s.classRepo.Count(ctx, &deptID)
		if err != nil {
			return nil, err
		}
		perf, err := s.gradeRepo.AverageByCourse(ctx, deptID)
		if err != nil {
			return nil, err
		}

		return &dto.HODDashboard{
			Department:   dept,
			TeacherCount: byRole[models.RoleTeacher],
			StudentCount: students,
			CourseCount:  courses,
			ClassCount:   classes,
			AverageScore: WeightedAverage(perf),
		}, nil
	})
}

// WeightedAverage combines per-course averages weighted by grade count.
func WeightedAverage(perf []dto.CoursePerformance) float64 {
	var sum float64
	var n int64
	for _, p := range perf {
		sum += p.AverageScore * float64(p.GradeCount)
		n += p.GradeCount
	}
	if n == 0 {
		return 0
	}
	return models.RoundMoney(sum / float64(n))
}

func (s *HODServiceImpl) Teachers(ctx context.Context, actor *models.Actor, search string, page, size int) (*dto.PaginatedResponse, error) {
	deptID, err := s.authz.HODDepartment(ctx, actor)
	if err != nil {
		return nil, err
	}
	offset, limit := helpers.CalculateOffsetLimit(page, size)
	users, total, err := s.userRepo.ListUsers(ctx, models.UserFilter{
		Role:         models.RoleTeacher,
		DepartmentID: &deptID,
		Search:       search,
		SortBy:       "lastName",
		SortOrder:    "asc",
	}, offset, limit)
	if err != nil {
		return nil, err
	}
	items := make([]*dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.NewUserResponse(&users[i]))
	}
	resp := helpers.NewPaginatedResponse(items, total, page, int(limit))
	return &resp, nil
}

func (s *HODServiceImpl) Students(ctx context.Context, actor *models.Actor, search string, page, size int) (*dto.PaginatedResponse, error) {
	deptID, err := s.authz.HODDepartment(ctx, actor)
	if err != nil {
		return nil, err
	}
	offset, limit := helpers.CalculateOffsetLimit(page, size)
	students, total, err := s.userRepo.ListStudents(ctx, models.StudentFilter{DepartmentID: &deptID, Search: search}, offset, limit)
	if err != nil {
		return nil, err
	}
	resp := helpers.NewPaginatedResponse(students, total, page, int(limit))
	return &resp, nil
}

func (s *HODServiceImpl) Courses(ctx context.Context, actor *models.Actor) ([]models.Course, error) {
	deptID, err := s.authz.HODDepartment(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.courseRepo.List(ctx, &deptID)
}

// CreateCourse adds a course to the HOD's department. A departmentId in the
// request must name that same department.
func (s *HODServiceImpl) CreateCourse(ctx context.Context, actor *models.Actor, req *dto.CourseRequest) (*models.Course, error) {
	deptID, err := s.authz.HODDepartment(ctx, actor)
	if err != nil {
		return nil, err
	}
	if req.DepartmentID != 0 && req.DepartmentID != deptID {
		return nil, apperrors.NewForbiddenError("courses can only be created in your own department")
	}

	course := &models.Course{
		Code:         strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:         strings.TrimSpace(req.Name),
		DepartmentID: deptID,
		Credits:      req.Credits,
		Description:  req.Description,
	}
	if err := s.courseRepo.Create(ctx, course); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor, ActionCourseCreated, "course", int64Ptr(course.ID),
		map[string]interface{}{"code": course.Code, "departmentId": deptID})
	s.cache.Invalidate(ctx, hodDashKey(deptID), adminDashKey)
	return course, nil
}

// ownCourse loads a course and checks it belongs to the actor's department.
func (s *HODServiceImpl) ownCourse(ctx context.Context, actor *models.Actor, id int64) (*models.Course, error) {
	course, err := s.courseRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.EnsureDepartment(ctx, actor, course.DepartmentID); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *HODServiceImpl) UpdateCourse(ctx context.Context, actor *models.Actor, id int64, req *dto.CourseRequest) (*models.Course, error) {
	course, err := s.ownCourse(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if req.DepartmentID != 0 && req.DepartmentID != course.DepartmentID {
		return nil, apperrors.NewForbiddenError("courses cannot be moved to another department")
	}

	course.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	course.Name = strings.TrimSpace(req.Name)
	course.Credits = req.Credits
	course.Description = req.Description
	if err := s.courseRepo.Update(ctx, course); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor, ActionCourseUpdated, "course", int64Ptr(id), map[string]interface{}{"code": course.Code})
	s.cache.InvalidatePrefix(ctx, dashPrefix)
	return course, nil
}

func (s *HODServiceImpl) DeleteCourse(ctx context.Context, actor *models.Actor, id int64) error {
	course, err := s.ownCourse(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.courseRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.activity.Record(ctx, actor, ActionCourseDeleted, "course", int64Ptr(id), map[string]interface{}{"code": course.Code})
	s.cache.Invalidate(ctx, hodDashKey(course.DepartmentID), adminDashKey)
	return nil
}

// Timetable lists the department's entries, optionally for one class.
func (s *HODServiceImpl) Timetable(ctx context.Context, actor *models.Actor, classID int64) ([]models.TimetableEntry, error) {
	deptID, err := s.authz.HODDepartment(ctx, actor)
	if err != nil {
		return nil, err
	}
	if classID > 0 {
		class, err := s.classRepo.GetByID(ctx, classID)
		if err != nil {
			return nil, err
		}
		if class.DepartmentID != deptID {
			return nil, apperrors.NewForbiddenError("class belongs to another department")
		}
	}
	return s.timetableRepo.List(ctx, models.TimetableFilter{DepartmentID: deptID, ClassID: classID})
}

// AddTimetableEntry schedules a course for a class with a teacher. The
// course and class must belong to the HOD's department, the teacher must be
// active staff, and the slot may not overlap the class's or the teacher's
// existing entries.
func (s *HODServiceImpl) AddTimetableEntry(ctx context.Context, actor *models.Actor, req *dto.TimetableEntryRequest) (*models.TimetableEntry, error) {
	if req.CourseID == nil || req.TeacherID == nil || req.ClassID == nil {
		return nil, apperrors.NewValidationError("courseId, teacherId and classId are required")
	}
	if !helpers.ValidClock(req.StartTime) || !helpers.ValidClock(req.EndTime) {
		return nil, apperrors.NewValidationError("startTime and endTime must be formatted HH:MM")
	}
	if req.StartTime >= req.EndTime {
		return nil, apperrors.NewValidationError("startTime must be before endTime")
	}

	deptID, err := s.authz.HODDepartment(ctx, actor)
	if err != nil {
		return nil, err
	}
	course, err := s.courseRepo.GetByID(ctx, *req.CourseID)
	if err != nil {
		return nil, err
	}
	class, err := s.classRepo.GetByID(ctx, *req.ClassID)
	if err != nil {
		return nil, err
	}
	if course.DepartmentID != deptID || class.DepartmentID != deptID {
		return nil, apperrors.NewForbiddenError("course and class must belong to your department")
	}
	teacher, err := s.userRepo.GetUserByID(ctx, *req.TeacherID)
	if err != nil {
		return nil, err
	}
	if !teacher.RoleType.IsStaff() || !teacher.IsActive {
		return nil, apperrors.NewValidationError("teacherId must reference an active teacher")
	}

	entry := &models.TimetableEntry{
		CourseID:  course.ID,
		TeacherID: teacher.ID,
		ClassID:   class.ID,
		DayOfWeek: req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Room:      req.Room,
	}
	clashes, err := s.timetableRepo.FindClashes(ctx, entry)
	if err != nil {
		return nil, err
	}
	if len(clashes) > 0 {
		ids := make([]int64, 0, len(clashes))
		for _, c := range clashes {
			ids = append(ids, c.ID)
		}
		return nil, apperrors.NewCustomError(apperrors.ErrTimetableClash,
			fmt.Sprintf("slot overlaps existing timetable entries %v", ids)).
			WithDetails(map[string]interface{}{"conflictingEntryIds": ids})
	}

	if err := s.timetableRepo.Create(ctx, entry); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor, ActionTimetableAdded, "timetable", int64Ptr(entry.ID), map[string]interface{}{
		"courseId": entry.CourseID, "classId": entry.ClassID, "teacherId": entry.TeacherID, "day": entry.DayOfWeek,
	})
	s.invalidateTimetable(ctx, deptID, entry.TeacherID)
	return s.timetableRepo.GetByID(ctx, entry.ID)
}

func (s *HODServiceImpl) RemoveTimetableEntry(ctx context.Context, actor *models.Actor, id int64) error {
	entry, err := s.timetableRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	class, err := s.classRepo.GetByID(ctx, entry.ClassID)
	if err != nil {
		return err
	}
	if err := s.authz.EnsureDepartment(ctx, actor, class.DepartmentID); err != nil {
		return err
	}
	if err := s.timetableRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.activity.Record(ctx, actor, ActionTimetableRemove, "timetable", int64Ptr(id),
		map[string]interface{}{"classId": entry.ClassID, "teacherId": entry.TeacherID})
	s.invalidateTimetable(ctx, class.DepartmentID, entry.TeacherID)
	return nil
}

// Timetable changes reach today's slots on student dashboards too.
func (s *HODServiceImpl) invalidateTimetable(ctx context.Context, deptID, teacherID int64) {
	s.cache.Invalidate(ctx, hodDashKey(deptID), teacherDashKey(teacherID))
	s.cache.InvalidatePrefix(ctx, studentDashPrefix)
}

// PerformanceReport gives the average score per course and the attendance
// rate per class for the department.
func (s *HODServiceImpl) PerformanceReport(ctx context.Context, actor *models.Actor) (*dto.PerformanceReport, error) {
	deptID, err := s.authz.HODDepartment(ctx, actor)
	if err != nil {
		return nil, err
	}
	courses, err := s.gradeRepo.AverageByCourse(ctx, deptID)
	if err != nil {
		return nil, err
	}
	classes, err := s.attendanceRepo.RateByClass(ctx, deptID)
	if err != nil {
		return nil, err
	}
	return &dto.PerformanceReport{DepartmentID: deptID, Courses: courses, Classes: classes}, nil
}
