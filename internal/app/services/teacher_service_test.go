package services

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appauth "github.com/smis-school/smis/internal/app/auth"
	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/models/dto"
	"github.com/smis-school/smis/internal/app/repositories"
	"github.com/smis-school/smis/internal/pkg/apperrors"
)

var classRowColumns = []string{"id", "name", "department_id", "academic_year", "roster", "class_teacher_id", "created_at", "updated_at"}

var teacherNow = time.Date(2025, 2, 14, 9, 0, 0, 0, time.UTC)

func newTeacherService(t *testing.T) (*TeacherServiceImpl, pgxmock.PgxPoolIface, *fakeActivity) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	repos := repositories.NewRepositories(mock)
	activity := &fakeActivity{}
	svc := NewTeacherService(mock, repos, appauth.NewAuthorizationService(repos), activity, nil, zerolog.Nop())
	svc.now = func() time.Time { return teacherNow }
	return svc, mock, activity
}

func expectClass(mock pgxmock.PgxPoolIface, roster string) {
	classTeacher := int64(99)
	mock.ExpectQuery(`FROM classes cl WHERE cl.id = \$1`).
		WithArgs(int64(4)).
		WillReturnRows(pgxmock.NewRows(classRowColumns).AddRow(
			int64(4), "Form 2A", int64(1), "2024/2025", []byte(roster), &classTeacher, teacherNow, teacherNow))
}

func attendanceRequest(date string, ids ...int64) *dto.BulkAttendanceRequest {
	req := &dto.BulkAttendanceRequest{ClassID: 4, Date: date}
	for _, id := range ids {
		req.Records = append(req.Records, dto.AttendanceMark{StudentID: id, Status: models.AttendancePresent})
	}
	return req
}

func TestTeacherService_MarkAttendanceRejectsFutureDate(t *testing.T) {
	svc, mock, _ := newTeacherService(t)
	actor := &models.Actor{UserID: 8, Role: models.RoleTeacher}

	_, err := svc.MarkAttendance(context.Background(), actor, attendanceRequest("2025-02-15", 5))
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	_, err = svc.MarkAttendance(context.Background(), actor, attendanceRequest("14/02/2025", 5))
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherService_MarkAttendanceRequiresTimetable(t *testing.T) {
	svc, mock, activity := newTeacherService(t)

	expectClass(mock, "[5,6]")
	mock.ExpectQuery("SELECT 1 FROM timetable_entries").
		WithArgs(int64(8), int64(4)).
		WillReturnError(pgx.ErrNoRows)

	actor := &models.Actor{UserID: 8, Role: models.RoleTeacher}
	_, err := svc.MarkAttendance(context.Background(), actor, attendanceRequest("2025-02-14", 5))

	assert.ErrorIs(t, err, apperrors.ErrNotTimetabled)
	assert.Empty(t, activity.actions())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherService_MarkAttendanceRejectsStudentOffRoster(t *testing.T) {
	svc, mock, _ := newTeacherService(t)

	expectClass(mock, "[5,6]")
	mock.ExpectQuery("SELECT 1 FROM timetable_entries").
		WithArgs(int64(8), int64(4)).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	actor := &models.Actor{UserID: 8, Role: models.RoleTeacher}
	_, err := svc.MarkAttendance(context.Background(), actor, attendanceRequest("2025-02-14", 5, 42))

	assert.ErrorIs(t, err, apperrors.ErrStudentNotInClass)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherService_MarkAttendanceUpserts(t *testing.T) {
	svc, mock, activity := newTeacherService(t)

	expectClass(mock, "[5,6]")
	mock.ExpectQuery("SELECT 1 FROM timetable_entries").
		WithArgs(int64(8), int64(4)).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectBegin()
	for _, id := range []int64{5, 6} {
		mock.ExpectQuery("INSERT INTO attendance_records").
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(id*10, teacherNow))
	}
	mock.ExpectCommit()

	actor := &models.Actor{UserID: 8, Role: models.RoleTeacher}
	records, err := svc.MarkAttendance(context.Background(), actor, attendanceRequest("2025-02-14", 5, 6))
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, int64(8), records[0].MarkedBy)
	assert.Equal(t, []string{ActionAttendanceMark}, activity.actions())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherService_MarkAttendanceDuplicateStudent(t *testing.T) {
	svc, mock, _ := newTeacherService(t)

	expectClass(mock, "[5,6]")
	mock.ExpectQuery("SELECT 1 FROM timetable_entries").
		WithArgs(int64(8), int64(4)).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	actor := &models.Actor{UserID: 8, Role: models.RoleTeacher}
	_, err := svc.MarkAttendance(context.Background(), actor, attendanceRequest("2025-02-14", 5, 5))
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherService_CreateGradeValidatesScore(t *testing.T) {
	svc, mock, _ := newTeacherService(t)
	actor := &models.Actor{UserID: 8, Role: models.RoleTeacher}

	_, err := svc.CreateGrade(context.Background(), actor, &dto.CreateGradeRequest{
		StudentID: 5, CourseID: 2, Assessment: "Quiz", Score: 21, MaxScore: 20, Term: "2025-T1",
	})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateScore(t *testing.T) {
	assert.NoError(t, validateScore(0, 10))
	assert.NoError(t, validateScore(10, 10))
	assert.Error(t, validateScore(-1, 10))
	assert.Error(t, validateScore(5, 0))
}
