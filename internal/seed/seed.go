package seed

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/repositories"
	"github.com/smis-school/smis/internal/db"
	"github.com/smis-school/smis/internal/pkg/apperrors"
	"github.com/smis-school/smis/internal/pkg/auth"
	"github.com/smis-school/smis/internal/pkg/validation"
)

// Options controls the default admin account.
type Options struct {
	AdminEmail    string
	AdminPassword string
}

// DefaultOptions returns the admin account used on a fresh install.
func DefaultOptions() Options {
	return Options{
		AdminEmail:    "admin@smis.local",
		AdminPassword: "Admin12345",
	}
}

// DefaultDepartments are created when missing.
var DefaultDepartments = []models.Department{
	{Name: "Sciences", Code: "SCI"},
	{Name: "Mathematics", Code: "MATH"},
	{Name: "Languages", Code: "LANG"},
	{Name: "Humanities", Code: "HUM"},
}

// Result reports what CreateDefaultData created.
type Result struct {
	DepartmentsCreated int
	AdminCreated       bool
}

// CreateDefaultData creates default departments and the admin user if they
// don't exist. Failures are collected so one bad row does not stop the rest.
func CreateDefaultData(ctx context.Context, conn db.DBTX, opts Options, lgr zerolog.Logger) (Result, error) {
	var res Result
	departmentRepo := repositories.NewDepartmentRepository(conn)
	userRepo := repositories.NewUserRepository(conn)

	lgr.Info().Msg("Checking/Creating default data (departments, admin)...")
	var finalErr error

	for _, d := range DefaultDepartments {
		dept := d
		err := departmentRepo.Create(ctx, &dept)
		switch {
		case err == nil:
			res.DepartmentsCreated++
			lgr.Debug().Str("code", dept.Code).Int64("id", dept.ID).Msg("Department created")
		case errors.Is(err, apperrors.ErrDepartmentAlreadyExists):
		default:
			lgr.Error().Err(err).Str("code", d.Code).Msg("Error creating department")
			finalErr = errors.Join(finalErr, err)
		}
	}

	email := strings.ToLower(strings.TrimSpace(opts.AdminEmail))
	if !validation.IsValidEmail(email) {
		return res, errors.Join(finalErr, apperrors.ErrInvalidEmail)
	}
	if !validation.IsStrongPassword(opts.AdminPassword) {
		return res, errors.Join(finalErr, apperrors.ErrInvalidPassword)
	}

	exists, err := userRepo.EmailExists(ctx, email)
	if err != nil {
		lgr.Error().Err(err).Msg("Error checking if admin user exists")
		return res, errors.Join(finalErr, err)
	}
	if exists {
		lgr.Info().Msg("Admin user already exists, skipping creation")
		return res, finalErr
	}

	hash, err := auth.HashPassword(opts.AdminPassword)
	if err != nil {
		return res, errors.Join(finalErr, err)
	}
	admin := &models.User{
		Email:     email,
		Password:  hash,
		FirstName: "System",
		LastName:  "Administrator",
		RoleType:  models.RoleAdmin,
		IsActive:  true,
	}
	adminID, err := userRepo.CreateUser(ctx, admin)
	if err != nil {
		lgr.Error().Err(err).Msg("Error creating admin user")
		return res, errors.Join(finalErr, err)
	}
	res.AdminCreated = true
	lgr.Info().Int64("adminID", adminID).Str("email", email).Msg("Default admin user created")

	lgr.Info().Int("departments", res.DepartmentsCreated).Msg("Default data check/creation finished")
	return res, finalErr
}
