package services

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/models/dto"
	"github.com/smis-school/smis/internal/app/repositories"
	"github.com/smis-school/smis/internal/pkg/helpers"
)

// StudentService serves a student's own data.
type StudentService interface {
	Dashboard(ctx context.Context, userID int64) (*dto.StudentDashboard, error)
	Profile(ctx context.Context, userID int64) (*dto.StudentProfileResponse, error)
	Courses(ctx context.Context, userID int64) ([]models.Course, error)
	Timetable(ctx context.Context, userID int64) ([]models.TimetableEntry, error)
	Grades(ctx context.Context, userID int64, term string) ([]dto.CourseGradeSummary, error)
	Attendance(ctx context.Context, userID int64, from, to *time.Time) (*dto.StudentAttendanceResponse, error)
	Fees(ctx context.Context, userID int64) (*dto.StudentFeesResponse, error)
}

// StudentServiceImpl implements StudentService.
type StudentServiceImpl struct {
	userRepo       *repositories.UserRepository
	classRepo      *repositories.ClassRepository
	courseRepo     *repositories.CourseRepository
	timetableRepo  *repositories.TimetableRepository
	gradeRepo      *repositories.GradeRepository
	attendanceRepo *repositories.AttendanceRepository
	feeRepo        *repositories.FeeRepository
	cache          *DashboardCache
	logger         zerolog.Logger
	now            func() time.Time
}

func NewStudentService(repos *repositories.Repositories, cache *DashboardCache, logger zerolog.Logger) *StudentServiceImpl {
	return &StudentServiceImpl{
		userRepo:       repos.UserRepository,
		classRepo:      repos.ClassRepository,
		courseRepo:     repos.CourseRepository,
		timetableRepo:  repos.TimetableRepository,
		gradeRepo:      repos.GradeRepository,
		attendanceRepo: repos.AttendanceRepository,
		feeRepo:        repos.FeeRepository,
		cache:          cache,
		logger:         logger,
		now:            time.Now,
	}
}

func (s *StudentServiceImpl) student(ctx context.Context, userID int64) (*models.Student, error) {
	return s.userRepo.GetStudentByUserID(ctx, userID)
}

// Dashboard returns the cached summary for the student.
func (s *StudentServiceImpl) Dashboard(ctx context.Context, userID int64) (*dto.StudentDashboard, error) {
	st, err := s.student(ctx, userID)
	if err != nil {
		return nil, err
	}
	return remember(ctx, s.cache, studentDashKey(st.ID), func(ctx context.Context) (*dto.StudentDashboard, error) {
		return s.buildDashboard(ctx, st)
	})
}

func (s *StudentServiceImpl) buildDashboard(ctx context.Context, st *models.Student) (*dto.StudentDashboard, error) {
	d := &dto.StudentDashboard{
		StudentNumber:  st.StudentNumber,
		ClassName:      st.ClassName,
		TodayTimetable: []models.TimetableEntry{},
		RecentGrades:   []models.Grade{},
	}

	if st.ClassID != nil {
		courses, err := s.courseRepo.ListForClass(ctx, *st.ClassID)
		if err != nil {
			return nil, err
		}
		d.CourseCount = len(courses)

		today, err := s.timetableRepo.List(ctx, models.TimetableFilter{
			ClassID:   *st.ClassID,
			DayOfWeek: helpers.ISOWeekday(s.now()),
		})
		if err != nil {
			return nil, err
		}
		d.TodayTimetable = today
	}

	summary, err := s.attendanceRepo.Summary(ctx, models.AttendanceFilter{StudentID: st.ID})
	if err != nil {
		return nil, err
	}
	d.AttendanceRate = summary.Rate

	if d.AverageScore, err = s.gradeRepo.AveragePercentage(ctx, models.GradeFilter{StudentID: st.ID}); err != nil {
		return nil, err
	}

	grades, err := s.gradeRepo.List(ctx, models.GradeFilter{StudentID: st.ID})
	if err != nil {
		return nil, err
	}
	if len(grades) > 5 {
		grades = grades[:5]
	}
	d.RecentGrades = grades

	totals, err := s.feeRepo.Totals(ctx, models.FeeFilter{StudentID: st.ID})
	if err != nil {
		return nil, err
	}
	d.OutstandingFees = models.RoundMoney(totals.Outstanding)
	return d, nil
}

func (s *StudentServiceImpl) Profile(ctx context.Context, userID int64) (*dto.StudentProfileResponse, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	st, err := s.student(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := &dto.StudentProfileResponse{User: dto.NewUserResponse(user), Student: st}
	resp.User.StudentID = int64Ptr(st.ID)
	resp.User.StudentNumber = st.StudentNumber
	if st.ClassID != nil {
		class, err := s.classRepo.GetByID(ctx, *st.ClassID)
		if err != nil {
			s.logger.Warn().Err(err).Int64("classID", *st.ClassID).Msg("Could not load student's class")
		} else {
			resp.Class = class
		}
	}
	return resp, nil
}

// Courses lists the courses timetabled for the student's class.
func (s *StudentServiceImpl) Courses(ctx context.Context, userID int64) ([]models.Course, error) {
	st, err := s.student(ctx, userID)
	if err != nil {
		return nil, err
	}
	if st.ClassID == nil {
		return []models.Course{}, nil
	}
	return s.courseRepo.ListForClass(ctx, *st.ClassID)
}

func (s *StudentServiceImpl) Timetable(ctx context.Context, userID int64) ([]models.TimetableEntry, error) {
	st, err := s.student(ctx, userID)
	if err != nil {
		return nil, err
	}
	if st.ClassID == nil {
		return []models.TimetableEntry{}, nil
	}
	return s.timetableRepo.List(ctx, models.TimetableFilter{ClassID: *st.ClassID})
}

// Grades groups the student's grades by course with a per-course average.
func (s *StudentServiceImpl) Grades(ctx context.Context, userID int64, term string) ([]dto.CourseGradeSummary, error) {
	st, err := s.student(ctx, userID)
	if err != nil {
		return nil, err
	}
	grades, err := s.gradeRepo.List(ctx, models.GradeFilter{StudentID: st.ID, Term: term})
	if err != nil {
		return nil, err
	}
	return GroupGradesByCourse(grades), nil
}

// GroupGradesByCourse groups grades in first-seen course order and averages
// their percentages.
func GroupGradesByCourse(grades []models.Grade) []dto.CourseGradeSummary {
	out := make([]dto.CourseGradeSummary, 0)
	index := make(map[int64]int)
	for _, g := range grades {
		i, ok := index[g.CourseID]
		if !ok {
			i = len(out)
			index[g.CourseID] = i
			out = append(out, dto.CourseGradeSummary{
				CourseID:   g.CourseID,
				CourseCode: g.CourseCode,
				CourseName: g.CourseName,
				Grades:     []models.Grade{},
			})
		}
		out[i].Grades = append(out[i].Grades, g)
	}
	for i := range out {
		var sum float64
		for _, g := range out[i].Grades {
			sum += g.Percentage()
		}
		out[i].Average = math.Round(sum/float64(len(out[i].Grades))*100) / 100
	}
	return out
}

func (s *StudentServiceImpl) Attendance(ctx context.Context, userID int64, from, to *time.Time) (*dto.StudentAttendanceResponse, error) {
	st, err := s.student(ctx, userID)
	if err != nil {
		return nil, err
	}
	filter := models.AttendanceFilter{StudentID: st.ID, From: from, To: to}
	records, err := s.attendanceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	summary, err := s.attendanceRepo.Summary(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &dto.StudentAttendanceResponse{Records: records, Summary: summary}, nil
}

func (s *StudentServiceImpl) Fees(ctx context.Context, userID int64) (*dto.StudentFeesResponse, error) {
	st, err := s.student(ctx, userID)
	if err != nil {
		return nil, err
	}
	filter := models.FeeFilter{StudentID: st.ID}
	fees, _, err := s.feeRepo.List(ctx, filter, 0, 0)
	if err != nil {
		return nil, err
	}
	totals, err := s.feeRepo.Totals(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &dto.StudentFeesResponse{Fees: fees, Totals: totals}, nil
}
