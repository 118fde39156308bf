package repositories

import (
	"github.com/Masterminds/squirrel"

	"github.com/smis-school/smis/internal/db"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Repositories holds all the repository instances
type Repositories struct {
	UserRepository       *UserRepository
	DepartmentRepository *DepartmentRepository
	CourseRepository     *CourseRepository
	ClassRepository      *ClassRepository
	TimetableRepository  *TimetableRepository
	AttendanceRepository *AttendanceRepository
	GradeRepository      *GradeRepository
	FeeRepository        *FeeRepository
	ActivityRepository   *ActivityRepository
	TokenRepository      *TokenRepository
}

// NewRepositories initializes all repositories over conn.
func NewRepositories(conn db.DBTX) *Repositories {
	return &Repositories{
		UserRepository:       NewUserRepository(conn),
		DepartmentRepository: NewDepartmentRepository(conn),
		CourseRepository:     NewCourseRepository(conn),
		ClassRepository:      NewClassRepository(conn),
		TimetableRepository:  NewTimetableRepository(conn),
		AttendanceRepository: NewAttendanceRepository(conn),
		GradeRepository:      NewGradeRepository(conn),
		FeeRepository:        NewFeeRepository(conn),
		ActivityRepository:   NewActivityRepository(conn),
		TokenRepository:      NewTokenRepository(conn),
	}
}
