package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/models/dto"
	"github.com/smis-school/smis/internal/app/repositories"
	"github.com/smis-school/smis/internal/db"
	"github.com/smis-school/smis/internal/pkg/apperrors"
	"github.com/smis-school/smis/internal/pkg/auth"
	"github.com/smis-school/smis/internal/pkg/helpers"
)

// UserService manages accounts on behalf of administrators.
type UserService interface {
	ListUsers(ctx context.Context, filter models.UserFilter, page, size int) (*dto.PaginatedResponse, error)
	GetUser(ctx context.Context, id int64) (*dto.UserResponse, error)
	CreateUser(ctx context.Context, actor *models.Actor, req *dto.CreateUserRequest) (*dto.UserResponse, error)
	UpdateUser(ctx context.Context, actor *models.Actor, id int64, req *dto.UpdateUserRequest) (*dto.UserResponse, error)
	SetStatus(ctx context.Context, actor *models.Actor, id int64, active bool) error
	DeleteUser(ctx context.Context, actor *models.Actor, id int64) error
	ResetPassword(ctx context.Context, email, password string) error
}

// UserServiceImpl implements UserService.
type UserServiceImpl struct {
	conn      db.DBTX
	userRepo  *repositories.UserRepository
	tokenRepo *repositories.TokenRepository
	deptRepo  *repositories.DepartmentRepository
	activity  ActivityService
	cache     *DashboardCache
	logger    zerolog.Logger
}

func NewUserService(conn db.DBTX, repos *repositories.Repositories, activity ActivityService, cache *DashboardCache, logger zerolog.Logger) *UserServiceImpl {
	return &UserServiceImpl{
		conn:      conn,
		userRepo:  repos.UserRepository,
		tokenRepo: repos.TokenRepository,
		deptRepo:  repos.DepartmentRepository,
		activity:  activity,
		cache:     cache,
		logger:    logger,
	}
}

func (s *UserServiceImpl) ListUsers(ctx context.Context, filter models.UserFilter, page, size int) (*dto.PaginatedResponse, error) {
	if filter.Role != "" && !filter.Role.IsValid() {
		return nil, apperrors.NewValidationError("unknown role " + string(filter.Role))
	}
	offset, limit := helpers.CalculateOffsetLimit(page, size)
	users, total, err := s.userRepo.ListUsers(ctx, filter, offset, limit)
	if err != nil {
		return nil, err
	}
	items := make([]*dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.NewUserResponse(&users[i]))
	}
	resp := helpers.NewPaginatedResponse(items, total, page, int(limit))
	return &resp, nil
}

func (s *UserServiceImpl) GetUser(ctx context.Context, id int64) (*dto.UserResponse, error) {
	user, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return userResponseWithStudent(ctx, s.userRepo, user)
}

// CreateUser creates an account of any role. A STUDENT also gets a students
// row in the same transaction.
func (s *UserServiceImpl) CreateUser(ctx context.Context, actor *models.Actor, req *dto.CreateUserRequest) (*dto.UserResponse, error) {
	if !req.Role.IsValid() {
		return nil, apperrors.NewValidationError("unknown role " + string(req.Role))
	}
	if req.Role == models.RoleStudent && strings.TrimSpace(req.StudentNumber) == "" {
		return nil, apperrors.NewValidationError("studentNumber is required for students")
	}
	if req.Role == models.RoleHOD && req.DepartmentID == nil {
		return nil, apperrors.NewValidationError("departmentId is required for heads of department")
	}

	exists, err := s.userRepo.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error checking if email exists: %w", err)
	}
	if exists {
		return nil, apperrors.ErrEmailAlreadyExists
	}
	if req.DepartmentID != nil {
		if _, err := s.deptRepo.GetByID(ctx, *req.DepartmentID); err != nil {
			return nil, err
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		Email:        req.Email,
		Password:     hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		RoleType:     req.Role,
		DepartmentID: req.DepartmentID,
		IsActive:     true,
	}
	var student *models.Student
	if req.Role == models.RoleStudent {
		year := req.EnrollmentYear
		if year == 0 {
			year = time.Now().Year()
		}
		student = &models.Student{
			StudentNumber:  req.StudentNumber,
			ClassID:        req.ClassID,
			EnrollmentYear: year,
			GuardianName:   req.GuardianName,
			GuardianPhone:  req.GuardianPhone,
		}
	}

	err = db.WithTransaction(ctx, s.conn, &s.logger, func(ctx context.Context, tx pgx.Tx) error {
		repo := s.userRepo.WithTx(tx)
		id, err := repo.CreateUser(ctx, user)
		if err != nil {
			return err
		}
		user.ID = id
		if student == nil {
			return nil
		}
		student.UserID = id
		return repo.CreateStudent(ctx, student)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("userID", user.ID).Str("role", string(user.RoleType)).Msg("User created")
	s.activity.Record(ctx, actor, ActionUserCreated, "user", int64Ptr(user.ID),
		map[string]interface{}{"role": user.RoleType, "email": user.Email})
	s.cache.Invalidate(ctx, adminDashKey)
	if user.DepartmentID != nil {
		s.cache.Invalidate(ctx, hodDashKey(*user.DepartmentID))
	}

	resp := dto.NewUserResponse(user)
	if student != nil {
		resp.StudentID = int64Ptr(student.ID)
		resp.StudentNumber = student.StudentNumber
	}
	return resp, nil
}

func (s *UserServiceImpl) UpdateUser(ctx context.Context, actor *models.Actor, id int64, req *dto.UpdateUserRequest) (*dto.UserResponse, error) {
	user, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	before := user.DepartmentID

	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Role != nil {
		if user.RoleType == models.RoleStudent && *req.Role != models.RoleStudent {
			return nil, apperrors.NewBadRequestError("a student account cannot change role")
		}
		if id == actor.UserID && *req.Role != models.RoleAdmin {
			return nil, apperrors.NewBadRequestError("administrators cannot demote themselves")
		}
		user.RoleType = *req.Role
	}
	if req.DepartmentID != nil {
		if _, err := s.deptRepo.GetByID(ctx, *req.DepartmentID); err != nil {
			return nil, err
		}
		user.DepartmentID = req.DepartmentID
	}

	if err := s.userRepo.UpdateUser(ctx, user); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor, ActionUserUpdated, "user", int64Ptr(id), nil)
	s.cache.Invalidate(ctx, adminDashKey)
	for _, dept := range []*int64{before, user.DepartmentID} {
		if dept != nil {
			s.cache.Invalidate(ctx, hodDashKey(*dept))
		}
	}
	return userResponseWithStudent(ctx, s.userRepo, user)
}

// SetStatus enables or disables an account. Disabling revokes its sessions.
func (s *UserServiceImpl) SetStatus(ctx context.Context, actor *models.Actor, id int64, active bool) error {
	if id == actor.UserID && !active {
		return apperrors.NewBadRequestError("administrators cannot disable their own account")
	}
	if err := s.userRepo.UpdateStatus(ctx, id, active); err != nil {
		return err
	}
	if !active {
		if err := s.tokenRepo.RevokeAllUserTokens(ctx, id); err != nil {
			s.logger.Warn().Err(err).Int64("userID", id).Msg("Could not revoke sessions of disabled user")
		}
	}
	s.activity.Record(ctx, actor, ActionUserStatus, "user", int64Ptr(id), map[string]interface{}{"isActive": active})
	return nil
}

func (s *UserServiceImpl) DeleteUser(ctx context.Context, actor *models.Actor, id int64) error {
	if id == actor.UserID {
		return apperrors.NewBadRequestError("administrators cannot delete their own account")
	}
	if err := s.userRepo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.activity.Record(ctx, actor, ActionUserDeleted, "user", int64Ptr(id), nil)
	s.cache.Invalidate(ctx, adminDashKey)
	s.cache.InvalidatePrefix(ctx, hodDashPrefix)
	return nil
}

// ResetPassword sets a new password by email and revokes every session.
func (s *UserServiceImpl) ResetPassword(ctx context.Context, email, password string) error {
	user, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	return s.tokenRepo.RevokeAllUserTokens(ctx, user.ID)
}

// userResponseWithStudent adds student details for STUDENT accounts.
func userResponseWithStudent(ctx context.Context, repo *repositories.UserRepository, user *models.User) (*dto.UserResponse, error) {
	resp := dto.NewUserResponse(user)
	if user.RoleType != models.RoleStudent {
		return resp, nil
	}
	student, err := repo.GetStudentByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrStudentNotFound) {
			return resp, nil
		}
		return nil, err
	}
	resp.StudentID = int64Ptr(student.ID)
	resp.StudentNumber = student.StudentNumber
	return resp, nil
}
