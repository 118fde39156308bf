package services

import (
	"context"
	"testing"

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

func newHODService(t *testing.T) (*HODServiceImpl, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	repos := repositories.NewRepositories(mock)
	return NewHODService(repos, appauth.NewAuthorizationService(repos), &fakeActivity{}, nil, zerolog.Nop()), mock
}

func hodActor() *models.Actor {
	dept := int64(1)
	return &models.Actor{UserID: 3, Role: models.RoleHOD, DepartmentID: &dept}
}

func TestHODService_AddTimetableEntryValidation(t *testing.T) {
	id := int64(2)
	tests := []struct {
		name string
		req  dto.TimetableEntryRequest
	}{
		{"missing course", dto.TimetableEntryRequest{TeacherID: &id, ClassID: &id, DayOfWeek: 1, StartTime: "08:00", EndTime: "09:00"}},
		{"missing teacher", dto.TimetableEntryRequest{CourseID: &id, ClassID: &id, DayOfWeek: 1, StartTime: "08:00", EndTime: "09:00"}},
		{"missing class", dto.TimetableEntryRequest{CourseID: &id, TeacherID: &id, DayOfWeek: 1, StartTime: "08:00", EndTime: "09:00"}},
		{"bad clock", dto.TimetableEntryRequest{CourseID: &id, TeacherID: &id, ClassID: &id, DayOfWeek: 1, StartTime: "8am", EndTime: "09:00"}},
		{"end before start", dto.TimetableEntryRequest{CourseID: &id, TeacherID: &id, ClassID: &id, DayOfWeek: 1, StartTime: "10:00", EndTime: "09:00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock := newHODService(t)
			_, err := svc.AddTimetableEntry(context.Background(), hodActor(), &tt.req)
			assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestHODService_CreateCourseOtherDepartment(t *testing.T) {
	svc, mock := newHODService(t)
	_, err := svc.CreateCourse(context.Background(), hodActor(), &dto.CourseRequest{Code: "MTH101", Name: "Maths", DepartmentID: 2})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHODService_RequiresHODRole(t *testing.T) {
	svc, _ := newHODService(t)
	_, err := svc.Courses(context.Background(), &models.Actor{UserID: 3, Role: models.RoleTeacher})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestWeightedAverage(t *testing.T) {
	perf := []dto.CoursePerformance{
		{CourseID: 1, AverageScore: 80, GradeCount: 3},
		{CourseID: 2, AverageScore: 60, GradeCount: 1},
		{CourseID: 3, AverageScore: 0, GradeCount: 0},
	}
	assert.Equal(t, 75.0, WeightedAverage(perf))
	assert.Equal(t, 0.0, WeightedAverage(nil))
}
