package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	appauth "github.com/smis-school/smis/internal/app/auth"
	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/models/dto"
	"github.com/smis-school/smis/internal/app/repositories"
	"github.com/smis-school/smis/internal/db"
	"github.com/smis-school/smis/internal/pkg/apperrors"
	"github.com/smis-school/smis/internal/pkg/helpers"
)

// TeacherService serves a teacher's classes, attendance and grading.
type TeacherService interface {
	Dashboard(ctx context.Context, teacherID int64) (*dto.TeacherDashboard, error)
	Classes(ctx context.Context, teacherID int64) ([]models.Class, error)
	ClassStudents(ctx context.Context, teacherID, classID int64) ([]models.Student, error)
	Timetable(ctx context.Context, teacherID int64) ([]models.TimetableEntry, error)
	MarkAttendance(ctx context.Context, actor *models.Actor, req *dto.BulkAttendanceRequest) ([]models.AttendanceRecord, error)
	ListAttendance(ctx context.Context, teacherID, classID int64, date *time.Time) ([]models.AttendanceRecord, error)
	CreateGrade(ctx context.Context, actor *models.Actor, req *dto.CreateGradeRequest) (*models.Grade, error)
	UpdateGrade(ctx context.Context, actor *models.Actor, id int64, req *dto.UpdateGradeRequest) (*models.Grade, error)
	CourseGrades(ctx context.Context, teacherID, courseID int64, term string) ([]models.Grade, error)
}

// TeacherServiceImpl implements TeacherService.
type TeacherServiceImpl struct {
	conn           db.DBTX
	userRepo       *repositories.UserRepository
	classRepo      *repositories.ClassRepository
	courseRepo     *repositories.CourseRepository
	timetableRepo  *repositories.TimetableRepository
	attendanceRepo *repositories.AttendanceRepository
	gradeRepo      *repositories.GradeRepository
	authz          *appauth.AuthorizationService
	activity       ActivityService
	cache          *DashboardCache
	logger         zerolog.Logger
	now            func() time.Time
}

func NewTeacherService(conn db.DBTX, repos *repositories.Repositories, authz *appauth.AuthorizationService, activity ActivityService, cache *DashboardCache, logger zerolog.Logger) *TeacherServiceImpl {
	return &TeacherServiceImpl{
		conn:           conn,
		userRepo:       repos.UserRepository,
		classRepo:      repos.ClassRepository,
		courseRepo:     repos.CourseRepository,
		timetableRepo:  repos.TimetableRepository,
		attendanceRepo: repos.AttendanceRepository,
		gradeRepo:      repos.GradeRepository,
		authz:          authz,
		activity:       activity,
		cache:          cache,
		logger:         logger,
		now:            time.Now,
	}
}

func (s *TeacherServiceImpl) Dashboard(ctx context.Context, teacherID int64) (*dto.TeacherDashboard, error) {
	return remember(ctx, s.cache, teacherDashKey(teacherID), func(ctx context.Context) (*dto.TeacherDashboard, error) {
		classes, err := s.classRepo.ListForTeacher(ctx, teacherID)
		if err != nil {
			return nil, err
		}
		courses, err := s.courseRepo.ListForTeacher(ctx, teacherID)
		if err != nil {
			return nil, err
		}
		week, err := s.timetableRepo.List(ctx, models.TimetableFilter{TeacherID: teacherID})
		if err != nil {
			return nil, err
		}
		graded, err := s.gradeRepo.CountByTeacher(ctx, teacherID)
		if err != nil {
			return nil, err
		}

		d := &dto.TeacherDashboard{
			ClassCount:     len(classes),
			CourseCount:    len(courses),
			WeeklyPeriods:  len(week),
			TodayTimetable: []models.TimetableEntry{},
			GradesRecorded: graded,
		}
		students := make(map[int64]bool)
		for _, c := range classes {
			for _, id := range c.Roster {
				students[id] = true
			}
		}
		d.StudentCount = len(students)

		today := helpers.ISOWeekday(s.now())
		for _, e := range week {
			if e.DayOfWeek == today {
				d.TodayTimetable = append(d.TodayTimetable, e)
			}
		}
		return d, nil
	})
}

func (s *TeacherServiceImpl) Classes(ctx context.Context, teacherID int64) ([]models.Class, error) {
	return s.classRepo.ListForTeacher(ctx, teacherID)
}

// ensureClassAccess allows the class teacher or any teacher timetabled for
// the class.
func (s *TeacherServiceImpl) ensureClassAccess(ctx context.Context, teacherID int64, class *models.Class) error {
	if class.ClassTeacherID != nil && *class.ClassTeacherID == teacherID {
		return nil
	}
	return s.authz.EnsureTeacherAssigned(ctx, teacherID, class.ID, 0)
}

func (s *TeacherServiceImpl) ClassStudents(ctx context.Context, teacherID, classID int64) ([]models.Student, error) {
	class, err := s.classRepo.GetByID(ctx, classID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureClassAccess(ctx, teacherID, class); err != nil {
		return nil, err
	}
	return s.userRepo.ListStudentsByIDs(ctx, class.Roster)
}

func (s *TeacherServiceImpl) Timetable(ctx context.Context, teacherID int64) ([]models.TimetableEntry, error) {
	return s.timetableRepo.List(ctx, models.TimetableFilter{TeacherID: teacherID})
}

// MarkAttendance upserts one mark per student for the class and date. The
// whole batch is written in one transaction.
func (s *TeacherServiceImpl) MarkAttendance(ctx context.Context, actor *models.Actor, req *dto.BulkAttendanceRequest) ([]models.AttendanceRecord, error) {
	date, err := helpers.ParseDate(req.Date)
	if err != nil {
		return nil, apperrors.NewValidationError("date must be formatted YYYY-MM-DD")
	}
	if date.After(helpers.StartOfDay(s.now().UTC())) {
		return nil, apperrors.NewValidationError("attendance cannot be marked for a future date")
	}

	class, err := s.classRepo.GetByID(ctx, req.ClassID)
	if err != nil {
		return nil, err
	}
	var courseID int64
	if req.CourseID != nil {
		courseID = *req.CourseID
		if _, err := s.courseRepo.GetByID(ctx, courseID); err != nil {
			return nil, err
		}
	}
	if err := s.authz.EnsureTeacherAssigned(ctx, actor.UserID, class.ID, courseID); err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(req.Records))
	records := make([]models.AttendanceRecord, 0, len(req.Records))
	for _, m := range req.Records {
		if !m.Status.IsValid() {
			return nil, apperrors.NewValidationError(fmt.Sprintf("invalid attendance status %q", m.Status))
		}
		if seen[m.StudentID] {
			return nil, apperrors.NewValidationError(fmt.Sprintf("student %d is marked more than once", m.StudentID))
		}
		seen[m.StudentID] = true
		if err := s.authz.EnsureOnRoster(class, m.StudentID); err != nil {
			return nil, err
		}
		records = append(records, models.AttendanceRecord{
			StudentID: m.StudentID,
			ClassID:   class.ID,
			CourseID:  req.CourseID,
			Date:      date,
			Status:    m.Status,
			MarkedBy:  actor.UserID,
			Remarks:   m.Remarks,
		})
	}

	err = db.WithTransaction(ctx, s.conn, &s.logger, func(ctx context.Context, tx pgx.Tx) error {
		return s.attendanceRepo.WithTx(tx).UpsertBulk(ctx, records)
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor, ActionAttendanceMark, "class", int64Ptr(class.ID),
		map[string]interface{}{"date": req.Date, "count": len(records), "courseId": req.CourseID})

	keys := []string{teacherDashKey(actor.UserID), hodDashKey(class.DepartmentID)}
	for _, r := range records {
		keys = append(keys, studentDashKey(r.StudentID))
	}
	s.cache.Invalidate(ctx, keys...)
	return records, nil
}

func (s *TeacherServiceImpl) ListAttendance(ctx context.Context, teacherID, classID int64, date *time.Time) ([]models.AttendanceRecord, error) {
	class, err := s.classRepo.GetByID(ctx, classID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureClassAccess(ctx, teacherID, class); err != nil {
		return nil, err
	}
	return s.attendanceRepo.List(ctx, models.AttendanceFilter{ClassID: classID, From: date, To: date})
}

func validateScore(score, maxScore float64) error {
	if maxScore <= 0 {
		return apperrors.NewValidationError("maxScore must be greater than 0")
	}
	if score < 0 || score > maxScore {
		return apperrors.NewValidationError("score must be between 0 and maxScore")
	}
	return nil
}

// CreateGrade records a score. The teacher must teach the course to a class
// the student is on.
func (s *TeacherServiceImpl) CreateGrade(ctx context.Context, actor *models.Actor, req *dto.CreateGradeRequest) (*models.Grade, error) {
	if err := validateScore(req.Score, req.MaxScore); err != nil {
		return nil, err
	}
	course, err := s.courseRepo.GetByID(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	if _, err := s.userRepo.GetStudentByID(ctx, req.StudentID); err != nil {
		return nil, err
	}
	if err := s.authz.EnsureCanGrade(ctx, actor.UserID, course.ID, req.StudentID); err != nil {
		return nil, err
	}

	grade := &models.Grade{
		StudentID:  req.StudentID,
		CourseID:   course.ID,
		TeacherID:  actor.UserID,
		Assessment: strings.TrimSpace(req.Assessment),
		Score:      req.Score,
		MaxScore:   req.MaxScore,
		Term:       strings.TrimSpace(req.Term),
		Remarks:    req.Remarks,
	}
	if err := s.gradeRepo.Create(ctx, grade); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor, ActionGradeCreated, "grade", int64Ptr(grade.ID),
		map[string]interface{}{"studentId": grade.StudentID, "courseId": grade.CourseID, "score": grade.Score})
	s.invalidateGrade(ctx, actor.UserID, grade.StudentID, course.DepartmentID)
	return s.gradeRepo.GetByID(ctx, grade.ID)
}

// UpdateGrade changes a grade the teacher recorded.
func (s *TeacherServiceImpl) UpdateGrade(ctx context.Context, actor *models.Actor, id int64, req *dto.UpdateGradeRequest) (*models.Grade, error) {
	grade, err := s.gradeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if grade.TeacherID != actor.UserID {
		return nil, apperrors.NewForbiddenError("only the teacher who recorded a grade may change it")
	}

	if req.Assessment != nil {
		grade.Assessment = strings.TrimSpace(*req.Assessment)
	}
	if req.Score != nil {
		grade.Score = *req.Score
	}
	if req.MaxScore != nil {
		grade.MaxScore = *req.MaxScore
	}
	if req.Remarks != nil {
		grade.Remarks = req.Remarks
	}
	if err := validateScore(grade.Score, grade.MaxScore); err != nil {
		return nil, err
	}
	if err := s.gradeRepo.Update(ctx, grade); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor, ActionGradeUpdated, "grade", int64Ptr(id), map[string]interface{}{"score": grade.Score})
	var deptID int64
	if course, err := s.courseRepo.GetByID(ctx, grade.CourseID); err == nil {
		deptID = course.DepartmentID
	} else if !errors.Is(err, apperrors.ErrCourseNotFound) {
		s.logger.Warn().Err(err).Int64("courseID", grade.CourseID).Msg("Could not load course for cache invalidation")
	}
	s.invalidateGrade(ctx, actor.UserID, grade.StudentID, deptID)
	return grade, nil
}

func (s *TeacherServiceImpl) invalidateGrade(ctx context.Context, teacherID, studentID, departmentID int64) {
	keys := []string{teacherDashKey(teacherID), studentDashKey(studentID)}
	if departmentID > 0 {
		keys = append(keys, hodDashKey(departmentID))
	}
	s.cache.Invalidate(ctx, keys...)
}

// CourseGrades lists every grade of a course the teacher is timetabled for.
func (s *TeacherServiceImpl) CourseGrades(ctx context.Context, teacherID, courseID int64, term string) ([]models.Grade, error) {
	if _, err := s.courseRepo.GetByID(ctx, courseID); err != nil {
		return nil, err
	}
	if err := s.authz.EnsureTeacherAssigned(ctx, teacherID, 0, courseID); err != nil {
		return nil, err
	}
	return s.gradeRepo.List(ctx, models.GradeFilter{CourseID: courseID, Term: term})
}
