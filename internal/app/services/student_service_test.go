package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smis-school/smis/internal/app/models"
)

func TestGroupGradesByCourse(t *testing.T) {
	grades := []models.Grade{
		{ID: 1, CourseID: 2, CourseCode: "ENG101", Score: 15, MaxScore: 20},
		{ID: 2, CourseID: 1, CourseCode: "MTH101", Score: 45, MaxScore: 50},
		{ID: 3, CourseID: 2, CourseCode: "ENG101", Score: 60, MaxScore: 100},
		{ID: 4, CourseID: 1, CourseCode: "MTH101", Score: 2, MaxScore: 3},
	}

	out := GroupGradesByCourse(grades)
	require.Len(t, out, 2)

	assert.Equal(t, "ENG101", out[0].CourseCode)
	assert.Len(t, out[0].Grades, 2)
	assert.Equal(t, 67.5, out[0].Average)

	assert.Equal(t, "MTH101", out[1].CourseCode)
	assert.Equal(t, 78.33, out[1].Average)
}

func TestGroupGradesByCourseEmpty(t *testing.T) {
	out := GroupGradesByCourse(nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}
