package services

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/models/dto"
	"github.com/smis-school/smis/internal/app/repositories"
	"github.com/smis-school/smis/internal/db"
	"github.com/smis-school/smis/internal/pkg/apperrors"
)

// DepartmentService manages departments, classes and class rosters.
type DepartmentService interface {
	ListDepartments(ctx context.Context) ([]models.Department, error)
	CreateDepartment(ctx context.Context, actor *models.Actor, req *dto.CreateDepartmentRequest) (*models.Department, error)
	UpdateDepartment(ctx context.Context, actor *models.Actor, id int64, req *dto.UpdateDepartmentRequest) (*models.Department, error)
	DeleteDepartment(ctx context.Context, actor *models.Actor, id int64) error

	ListClasses(ctx context.Context, departmentID *int64) ([]models.Class, error)
	CreateClass(ctx context.Context, actor *models.Actor, req *dto.ClassRequest) (*models.Class, error)
	UpdateClass(ctx context.Context, actor *models.Actor, id int64, req *dto.ClassRequest) (*models.Class, error)
	DeleteClass(ctx context.Context, actor *models.Actor, id int64) error
	SetRoster(ctx context.Context, actor *models.Actor, classID int64, studentIDs []int64) (*models.Class, error)
}

// DepartmentServiceImpl implements DepartmentService.
type DepartmentServiceImpl struct {
	conn      db.DBTX
	deptRepo  *repositories.DepartmentRepository
	classRepo *repositories.ClassRepository
	userRepo  *repositories.UserRepository
	activity  ActivityService
	cache     *DashboardCache
	logger    zerolog.Logger
}

func NewDepartmentService(conn db.DBTX, repos *repositories.Repositories, activity ActivityService, cache *DashboardCache, logger zerolog.Logger) *DepartmentServiceImpl {
	return &DepartmentServiceImpl{
		conn:      conn,
		deptRepo:  repos.DepartmentRepository,
		classRepo: repos.ClassRepository,
		userRepo:  repos.UserRepository,
		activity:  activity,
		cache:     cache,
		logger:    logger,
	}
}

func (s *DepartmentServiceImpl) ListDepartments(ctx context.Context) ([]models.Department, error) {
	return s.deptRepo.GetAll(ctx)
}

// checkHOD verifies the proposed head is an HOD account.
func (s *DepartmentServiceImpl) checkHOD(ctx context.Context, userID *int64) error {
	if userID == nil {
		return nil
	}
	u, err := s.userRepo.GetUserByID(ctx, *userID)
	if err != nil {
		return err
	}
	if u.RoleType != models.RoleHOD {
		return apperrors.NewValidationError("hodUserId must reference a user with role HOD")
	}
	return nil
}

func (s *DepartmentServiceImpl) CreateDepartment(ctx context.Context, actor *models.Actor, req *dto.CreateDepartmentRequest) (*models.Department, error) {
	if err := s.checkHOD(ctx, req.HODUserID); err != nil {
		return nil, err
	}
	dept := &models.Department{
		Name:      strings.TrimSpace(req.Name),
		Code:      strings.ToUpper(strings.TrimSpace(req.Code)),
		HODUserID: req.HODUserID,
	}
	if err := s.deptRepo.Create(ctx, dept); err != nil {
		return nil, err
	}
	s.activity.Record(ctx, actor, ActionDeptCreated, "department", int64Ptr(dept.ID), map[string]interface{}{"code": dept.Code})
	s.cache.Invalidate(ctx, adminDashKey)
	return s.deptRepo.GetByID(ctx, dept.ID)
}

func (s *DepartmentServiceImpl) UpdateDepartment(ctx context.Context, actor *models.Actor, id int64, req *dto.UpdateDepartmentRequest) (*models.Department, error) {
	dept, err := s.deptRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkHOD(ctx, req.HODUserID); err != nil {
		return nil, err
	}
	dept.Name = strings.TrimSpace(req.Name)
	dept.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	dept.HODUserID = req.HODUserID
	if err := s.deptRepo.Update(ctx, dept); err != nil {
		return nil, err
	}
	s.activity.Record(ctx, actor, ActionDeptUpdated, "department", int64Ptr(id), nil)
	s.cache.Invalidate(ctx, hodDashKey(id))
	return s.deptRepo.GetByID(ctx, id)
}

func (s *DepartmentServiceImpl) DeleteDepartment(ctx context.Context, actor *models.Actor, id int64) error {
	if err := s.deptRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.activity.Record(ctx, actor, ActionDeptDeleted, "department", int64Ptr(id), nil)
	s.cache.Invalidate(ctx, adminDashKey, hodDashKey(id))
	return nil
}

func (s *DepartmentServiceImpl) ListClasses(ctx context.Context, departmentID *int64) ([]models.Class, error) {
	return s.classRepo.List(ctx, departmentID)
}

func (s *DepartmentServiceImpl) checkClassTeacher(ctx context.Context, userID *int64) error {
	if userID == nil {
		return nil
	}
	u, err := s.userRepo.GetUserByID(ctx, *userID)
	if err != nil {
		return err
	}
	if !u.RoleType.IsStaff() {
		return apperrors.NewValidationError("classTeacherId must reference a teacher")
	}
	return nil
}

func (s *DepartmentServiceImpl) CreateClass(ctx context.Context, actor *models.Actor, req *dto.ClassRequest) (*models.Class, error) {
	if _, err := s.deptRepo.GetByID(ctx, req.DepartmentID); err != nil {
		return nil, err
	}
	if err := s.checkClassTeacher(ctx, req.ClassTeacherID); err != nil {
		return nil, err
	}
	class := &models.Class{
		Name:           strings.TrimSpace(req.Name),
		DepartmentID:   req.DepartmentID,
		AcademicYear:   strings.TrimSpace(req.AcademicYear),
		ClassTeacherID: req.ClassTeacherID,
		Roster:         []int64{},
	}
	if err := s.classRepo.Create(ctx, class); err != nil {
		return nil, err
	}
	s.activity.Record(ctx, actor, ActionClassCreated, "class", int64Ptr(class.ID), map[string]interface{}{"name": class.Name})
	s.cache.Invalidate(ctx, adminDashKey, hodDashKey(class.DepartmentID))
	return class, nil
}

func (s *DepartmentServiceImpl) UpdateClass(ctx context.Context, actor *models.Actor, id int64, req *dto.ClassRequest) (*models.Class, error) {
	class, err := s.classRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.DepartmentID != class.DepartmentID {
		if _, err := s.deptRepo.GetByID(ctx, req.DepartmentID); err != nil {
			return nil, err
		}
	}
	if err := s.checkClassTeacher(ctx, req.ClassTeacherID); err != nil {
		return nil, err
	}
	oldDept := class.DepartmentID
	class.Name = strings.TrimSpace(req.Name)
	class.DepartmentID = req.DepartmentID
	class.AcademicYear = strings.TrimSpace(req.AcademicYear)
	class.ClassTeacherID = req.ClassTeacherID
	if err := s.classRepo.Update(ctx, class); err != nil {
		return nil, err
	}
	s.activity.Record(ctx, actor, ActionClassUpdated, "class", int64Ptr(id), nil)
	s.cache.Invalidate(ctx, hodDashKey(oldDept), hodDashKey(class.DepartmentID))
	return s.classRepo.GetByID(ctx, id)
}

func (s *DepartmentServiceImpl) DeleteClass(ctx context.Context, actor *models.Actor, id int64) error {
	class, err := s.classRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.classRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.activity.Record(ctx, actor, ActionClassDeleted, "class", int64Ptr(id), nil)
	s.cache.Invalidate(ctx, adminDashKey, hodDashKey(class.DepartmentID))
	return nil
}

// SetRoster replaces a class roster and keeps each student's class pointer in
// step with it. Duplicate ids are collapsed; unknown ids are rejected.
func (s *DepartmentServiceImpl) SetRoster(ctx context.Context, actor *models.Actor, classID int64, studentIDs []int64) (*models.Class, error) {
	class, err := s.classRepo.GetByID(ctx, classID)
	if err != nil {
		return nil, err
	}

	ids := uniqueIDs(studentIDs)
	students, err := s.userRepo.ListStudentsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(students) != len(ids) {
		found := make(map[int64]bool, len(students))
		for _, st := range students {
			found[st.ID] = true
		}
		missing := make([]int64, 0)
		for _, id := range ids {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, apperrors.NewCustomError(apperrors.ErrStudentNotFound, "unknown student ids").
			WithDetails(map[string]interface{}{"missing": missing})
	}

	err = db.WithTransaction(ctx, s.conn, &s.logger, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.classRepo.WithTx(tx).SetRoster(ctx, classID, ids); err != nil {
			return err
		}
		return s.userRepo.WithTx(tx).AssignStudentsToClass(ctx, classID, ids)
	})
	if err != nil {
		return nil, err
	}

	previous := class.Roster
	class.Roster = ids
	s.activity.Record(ctx, actor, ActionRosterUpdated, "class", int64Ptr(classID),
		map[string]interface{}{"size": len(ids), "previousSize": len(previous)})

	keys := []string{hodDashKey(class.DepartmentID)}
	for _, id := range append(previous, ids...) {
		keys = append(keys, studentDashKey(id))
	}
	s.cache.Invalidate(ctx, keys...)
	s.cache.InvalidatePrefix(ctx, teacherDashPrefix)
	return s.classRepo.GetByID(ctx, classID)
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
