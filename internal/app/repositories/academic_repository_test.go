package repositories

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/pkg/apperrors"
)

func TestTimetableCreate_RequiresAllIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTimetableRepository(mock)
	cases := []models.TimetableEntry{
		{TeacherID: 2, ClassID: 3, DayOfWeek: 1, StartTime: "08:00", EndTime: "09:00"},
		{CourseID: 1, ClassID: 3, DayOfWeek: 1, StartTime: "08:00", EndTime: "09:00"},
		{CourseID: 1, TeacherID: 2, DayOfWeek: 1, StartTime: "08:00", EndTime: "09:00"},
	}
	for _, e := range cases {
		err := repo.Create(context.Background(), &e)
		assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableIsTeacherAssigned(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT 1 FROM timetable_entries WHERE").
		WithArgs(int64(4), int64(10), int64(6)).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	ok, err := NewTimetableRepository(mock).IsTeacherAssigned(context.Background(), 4, 10, 6)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRosterEncoding(t *testing.T) {
	raw, err := encodeRoster(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)

	raw, err = encodeRoster([]int64{3, 1, 2})
	require.NoError(t, err)
	ids, err := decodeRoster([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, ids)

	ids, err = decodeRoster(nil)
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = decodeRoster([]byte("{not json"))
	assert.Error(t, err)
}

func TestAttendanceRate(t *testing.T) {
	assert.Equal(t, 0.0, AttendanceRate(0, 0))
	assert.Equal(t, 75.0, AttendanceRate(3, 4))
	assert.Equal(t, 66.67, AttendanceRate(2, 3))
}
