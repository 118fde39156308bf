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
)

// AuthService handles authentication operations
type AuthService interface {
	Login(ctx context.Context, req *dto.LoginRequest, origin *models.Actor) (*dto.TokenResponse, error)
	RegisterStudent(ctx context.Context, req *dto.RegisterRequest, origin *models.Actor) (*dto.UserResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*dto.TokenResponse, error)
	Logout(ctx context.Context, actor *models.Actor, refreshToken string) error
	Me(ctx context.Context, userID int64) (*dto.UserResponse, error)
	ChangePassword(ctx context.Context, actor *models.Actor, req *dto.ChangePasswordRequest) error
}

// AuthServiceImpl implements AuthService.
type AuthServiceImpl struct {
	conn           db.DBTX
	userRepo       *repositories.UserRepository
	tokenRepo      *repositories.TokenRepository
	departmentRepo *repositories.DepartmentRepository
	jwtService     *auth.JWTService
	activity       ActivityService
	logger         zerolog.Logger
	now            func() time.Time
}

func NewAuthService(
	conn db.DBTX,
	repos *repositories.Repositories,
	jwtService *auth.JWTService,
	activity ActivityService,
	logger zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		conn:           conn,
		userRepo:       repos.UserRepository,
		tokenRepo:      repos.TokenRepository,
		departmentRepo: repos.DepartmentRepository,
		jwtService:     jwtService,
		activity:       activity,
		logger:         logger,
		now:            time.Now,
	}
}

// Login authenticates a user by email and password.
func (s *AuthServiceImpl) Login(ctx context.Context, req *dto.LoginRequest, origin *models.Actor) (*dto.TokenResponse, error) {
	user, err := s.userRepo.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !auth.CheckPassword(user.Password, req.Password) {
		s.logger.Warn().Int64("userID", user.ID).Msg("Failed login attempt")
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, apperrors.ErrAccountDisabled
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn().Err(err).Int64("userID", user.ID).Msg("Could not update last login")
	}
	if auth.NeedsRehash(user.Password) {
		s.upgradeHash(ctx, user.ID, req.Password)
	}

	resp, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	actor := actorFor(user, origin)
	s.activity.Record(ctx, actor, ActionLogin, "user", int64Ptr(user.ID), nil)
	return resp, nil
}

// upgradeHash re-hashes a password stored with an outdated bcrypt cost.
func (s *AuthServiceImpl) upgradeHash(ctx context.Context, userID int64, password string) {
	hash, err := auth.HashPassword(password)
	if err == nil {
		err = s.userRepo.UpdatePassword(ctx, userID, hash)
	}
	if err != nil {
		s.logger.Warn().Err(err).Int64("userID", userID).Msg("Could not upgrade password hash")
	}
}

// RegisterStudent creates a STUDENT account and its students row.
func (s *AuthServiceImpl) RegisterStudent(ctx context.Context, req *dto.RegisterRequest, origin *models.Actor) (*dto.UserResponse, error) {
	exists, err := s.userRepo.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error checking if email exists: %w", err)
	}
	if exists {
		return nil, apperrors.ErrEmailAlreadyExists
	}

	exists, err = s.userRepo.StudentNumberExists(ctx, req.StudentNumber)
	if err != nil {
		return nil, fmt.Errorf("error checking if student number exists: %w", err)
	}
	if exists {
		return nil, apperrors.ErrStudentNumberAlreadyExists
	}

	if req.DepartmentID != nil {
		if _, err := s.departmentRepo.GetByID(ctx, *req.DepartmentID); err != nil {
			return nil, err
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	year := req.EnrollmentYear
	if year == 0 {
		year = s.now().Year()
	}

	user := &models.User{
		Email:        req.Email,
		Password:     hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		RoleType:     models.RoleStudent,
		DepartmentID: req.DepartmentID,
		IsActive:     true,
	}
	student := &models.Student{StudentNumber: req.StudentNumber, EnrollmentYear: year}

	err = db.WithTransaction(ctx, s.conn, &s.logger, func(ctx context.Context, tx pgx.Tx) error {
		repo := s.userRepo.WithTx(tx)
		id, err := repo.CreateUser(ctx, user)
		if err != nil {
			return err
		}
		user.ID = id
		student.UserID = id
		return repo.CreateStudent(ctx, student)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("userID", user.ID).Str("studentNumber", student.StudentNumber).Msg("Student registered")
	s.activity.Record(ctx, actorFor(user, origin), ActionRegister, "user", int64Ptr(user.ID), nil)

	resp := dto.NewUserResponse(user)
	resp.StudentID = int64Ptr(student.ID)
	resp.StudentNumber = student.StudentNumber
	return resp, nil
}

// RefreshToken rotates a refresh token: the presented token is revoked and a
// new pair is issued.
func (s *AuthServiceImpl) RefreshToken(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, apperrors.ErrTokenInvalid
	}

	stored, err := s.tokenRepo.GetByToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if stored.IsRevoked {
		return nil, apperrors.ErrTokenRevoked
	}
	if !stored.IsUsable(s.now()) {
		_ = s.tokenRepo.RevokeToken(ctx, refreshToken)
		return nil, apperrors.ErrTokenExpired
	}

	user, err := s.userRepo.GetUserByID(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, apperrors.ErrAccountDisabled
	}

	// A concurrent refresh with the same token may have won since the read.
	if err := s.tokenRepo.ConsumeToken(ctx, refreshToken, s.now()); err != nil {
		if errors.Is(err, apperrors.ErrTokenRevoked) {
			s.logger.Warn().Int64("userID", user.ID).Msg("Refresh token reused during rotation")
			return nil, err
		}
		return nil, fmt.Errorf("failed to revoke old token: %w", err)
	}
	return s.issueTokens(ctx, user)
}

// Logout revokes one of the caller's refresh tokens.
func (s *AuthServiceImpl) Logout(ctx context.Context, actor *models.Actor, refreshToken string) error {
	stored, err := s.tokenRepo.GetByToken(ctx, refreshToken)
	if err != nil {
		return err
	}
	if stored.UserID != actor.UserID {
		return apperrors.ErrTokenInvalid
	}
	if err := s.tokenRepo.RevokeToken(ctx, refreshToken); err != nil {
		return err
	}
	s.activity.Record(ctx, actor, ActionLogout, "user", int64Ptr(actor.UserID), nil)
	return nil
}

// Me returns the caller's profile.
func (s *AuthServiceImpl) Me(ctx context.Context, userID int64) (*dto.UserResponse, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return userResponseWithStudent(ctx, s.userRepo, user)
}

// ChangePassword replaces the caller's password and signs out every session.
func (s *AuthServiceImpl) ChangePassword(ctx context.Context, actor *models.Actor, req *dto.ChangePasswordRequest) error {
	user, err := s.userRepo.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(user.Password, req.CurrentPassword) {
		return apperrors.ErrInvalidCredentials
	}
	if req.CurrentPassword == req.NewPassword {
		return apperrors.NewValidationError("new password must differ from the current one")
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	if err := s.tokenRepo.RevokeAllUserTokens(ctx, user.ID); err != nil {
		s.logger.Warn().Err(err).Int64("userID", user.ID).Msg("Could not revoke sessions after password change")
	}
	s.activity.Record(ctx, actor, ActionPasswordChanged, "user", int64Ptr(user.ID), nil)
	return nil
}

func (s *AuthServiceImpl) issueTokens(ctx context.Context, user *models.User) (*dto.TokenResponse, error) {
	pair, err := s.jwtService.GenerateTokenPair(user)
	if err != nil {
		return nil, fmt.Errorf("token generation error: %w", err)
	}
	if err := s.tokenRepo.CreateToken(ctx, pair.RefreshToken, user.ID, pair.RefreshExpiry); err != nil {
		return nil, fmt.Errorf("token saving error: %w", err)
	}
	return &dto.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(pair.AccessExpiresIn.Seconds()),
		User:         dto.NewUserResponse(user),
	}, nil
}

// actorFor builds an actor for user carrying the request origin.
func actorFor(user *models.User, origin *models.Actor) *models.Actor {
	a := &models.Actor{UserID: user.ID, Role: user.RoleType, DepartmentID: user.DepartmentID}
	if origin != nil {
		a.IPAddress = origin.IPAddress
		a.UserAgent = origin.UserAgent
	}
	return a
}
