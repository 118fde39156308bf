package validation

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsStrongPassword(t *testing.T) {
	assert.True(t, IsStrongPassword("abcdef12"))
	assert.False(t, IsStrongPassword("abcdefgh"))
	assert.False(t, IsStrongPassword("12345678"))
	assert.False(t, IsStrongPassword("ab12"))
}

func TestIsValidStudentNumber(t *testing.T) {
	assert.True(t, IsValidStudentNumber("STU2024-001"))
	assert.False(t, IsValidStudentNumber("S1"))
	assert.False(t, IsValidStudentNumber("has space"))
}

func TestRegisterRules(t *testing.T) {
	v := validator.New()
	require.NoError(t, RegisterRules(v))

	type req struct {
		Number string `validate:"studentnumber"`
		Day    string `validate:"date"`
		Start  string `validate:"clock"`
		Role   string `validate:"role"`
	}

	assert.NoError(t, v.Struct(req{Number: "STU0001", Day: "2025-01-31", Start: "07:45", Role: "HOD"}))

	err := v.Struct(req{Number: "x", Day: "31-01-2025", Start: "7am", Role: "INSTRUCTOR"})
	require.Error(t, err)
	assert.Len(t, err.(validator.ValidationErrors), 4)
}
