// Package auth holds authorization checks that need the database: teacher
// timetable assignments and HOD department scope.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/repositories"
	"github.com/smis-school/smis/internal/pkg/apperrors"
	"github.com/smis-school/smis/internal/pkg/logger"
)

// AuthorizationService answers "may this actor touch that resource".
type AuthorizationService struct {
	timetableRepo *repositories.TimetableRepository
	classRepo     *repositories.ClassRepository
	deptRepo      *repositories.DepartmentRepository
}

func NewAuthorizationService(repos *repositories.Repositories) *AuthorizationService {
	return &AuthorizationService{
		timetableRepo: repos.TimetableRepository,
		classRepo:     repos.ClassRepository,
		deptRepo:      repos.DepartmentRepository,
	}
}

// EnsureTeacherAssigned fails with ErrNotTimetabled unless the teacher has a
// timetable entry for the class (and course, when courseID is non-zero).
func (s *AuthorizationService) EnsureTeacherAssigned(ctx context.Context, teacherID, classID, courseID int64) error {
	ok, err := s.timetableRepo.IsTeacherAssigned(ctx, teacherID, classID, courseID)
	if err != nil {
		return err
	}
	if !ok {
		logger.Debug().Int64("teacherID", teacherID).Int64("classID", classID).Int64("courseID", courseID).
			Msg("Teacher not timetabled")
		return apperrors.ErrNotTimetabled
	}
	return nil
}

// EnsureCanGrade checks that the teacher teaches courseID to a class whose
// roster holds studentID.
func (s *AuthorizationService) EnsureCanGrade(ctx context.Context, teacherID, courseID, studentID int64) error {
	classes, err := s.classRepo.FindByStudent(ctx, studentID)
	if err != nil {
		return err
	}
	if len(classes) == 0 {
		return apperrors.ErrStudentNotInClass
	}
	for _, c := range classes {
		ok, err := s.timetableRepo.IsTeacherAssigned(ctx, teacherID, c.ID, courseID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return apperrors.ErrNotTimetabled
}

// EnsureOnRoster fails with ErrStudentNotInClass when any id is missing from
// the class roster.
func (s *AuthorizationService) EnsureOnRoster(class *models.Class, studentIDs ...int64) error {
	for _, id := range studentIDs {
		if !class.HasStudent(id) {
			return fmt.Errorf("%w: student %d", apperrors.ErrStudentNotInClass, id)
		}
	}
	return nil
}

// HODDepartment resolves the department an HOD heads. The token's department
// wins; otherwise the department naming the user as HOD.
func (s *AuthorizationService) HODDepartment(ctx context.Context, actor *models.Actor) (int64, error) {
	if !actor.Is(models.RoleHOD) {
		return 0, apperrors.ErrPermissionDenied
	}
	if actor.DepartmentID != nil {
		return *actor.DepartmentID, nil
	}
	dept, err := s.deptRepo.GetByHOD(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrDepartmentNotFound) {
			return 0, apperrors.NewForbiddenError("no department is assigned to this head of department")
		}
		return 0, err
	}
	return dept.ID, nil
}

// EnsureDepartment fails unless the HOD heads departmentID.
func (s *AuthorizationService) EnsureDepartment(ctx context.Context, actor *models.Actor, departmentID int64) error {
	own, err := s.HODDepartment(ctx, actor)
	if err != nil {
		return err
	}
	if own != departmentID {
		return apperrors.NewForbiddenError("resource belongs to another department")
	}
	return nil
}
