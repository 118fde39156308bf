package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/db"
	"github.com/smis-school/smis/internal/pkg/apperrors"
	"github.com/smis-school/smis/internal/pkg/dberrors"
	"github.com/smis-school/smis/internal/pkg/logger"
)

var userColumns = []string{
	"u.id", "u.email", "u.password_hash", "u.first_name", "u.last_name", "u.role",
	"u.department_id", "u.is_active", "u.last_login_at", "u.created_at", "u.updated_at",
}

var userSortColumns = map[string]string{
	"id":        "u.id",
	"email":     "u.email",
	"firstName": "u.first_name",
	"lastName":  "u.last_name",
	"role":      "u.role",
	"createdAt": "u.created_at",
}

// Repository handles the users table.
type Repository struct {
	db db.DBTX
	sb squirrel.StatementBuilderType
}

func NewRepository(conn db.DBTX) *Repository {
	return &Repository{
		db: conn,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.FirstName, &u.LastName, &u.RoleType,
		&u.DepartmentID, &u.IsActive, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser inserts a user and returns its id.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) (int64, error) {
	sql, args, err := r.sb.Insert("users").
		Columns("email", "password_hash", "first_name", "last_name", "role", "department_id", "is_active").
		Values(strings.ToLower(user.Email), user.Password, user.FirstName, user.LastName, user.RoleType, user.DepartmentID, user.IsActive).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building create user SQL")
		return 0, fmt.Errorf("failed to build create user query: %w", err)
	}

	var id int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		if dberrors.IsDuplicateConstraintError(err, "users_email_key") {
			return 0, apperrors.ErrEmailAlreadyExists
		}
		if dberrors.IsForeignKeyViolation(err) {
			return 0, apperrors.ErrDepartmentNotFound
		}
		return 0, fmt.Errorf("error creating user: %w", err)
	}
	return id, nil
}

func (r *Repository) getOne(ctx context.Context, where squirrel.Sqlizer) (*models.User, error) {
	sql, args, err := r.sb.Select(userColumns...).From("users u").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get user query: %w", err)
	}

	u, err := scanUser(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("error retrieving user: %w", err)
	}
	return u, nil
}

// GetUserByEmail looks a user up by email, case-insensitively.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, squirrel.Eq{"u.email": strings.ToLower(strings.TrimSpace(email))})
}

func (r *Repository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, squirrel.Eq{"u.id": id})
}

func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, strings.ToLower(email)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking email: %w", err)
	}
	return exists, nil
}

func applyUserFilter(q squirrel.SelectBuilder, f models.UserFilter) squirrel.SelectBuilder {
	if f.Role != "" {
		q = q.Where(squirrel.Eq{"u.role": f.Role})
	}
	if f.DepartmentID != nil {
		q = q.Where(squirrel.Eq{"u.department_id": *f.DepartmentID})
	}
	if f.IsActive != nil {
		q = q.Where(squirrel.Eq{"u.is_active": *f.IsActive})
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"u.email": like},
			squirrel.ILike{"u.first_name": like},
			squirrel.ILike{"u.last_name": like},
		})
	}
	return q
}

// ListUsers returns a page of users and the total matching count.
func (r *Repository) ListUsers(ctx context.Context, f models.UserFilter, offset, limit uint64) ([]models.User, int64, error) {
	countSQL, countArgs, err := applyUserFilter(r.sb.Select("COUNT(*)").From("users u"), f).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count users query: %w", err)
	}
	var total int64
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting users: %w", err)
	}

	sortCol, ok := userSortColumns[f.SortBy]
	if !ok {
		sortCol = "u.id"
	}
	order := "ASC"
	if strings.EqualFold(f.SortOrder, "desc") {
		order = "DESC"
	}

	sql, args, err := applyUserFilter(r.sb.Select(userColumns...).From("users u"), f).
		OrderBy(sortCol + " " + order).
		Limit(limit).Offset(offset).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list users query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("error listing users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("error scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

// UpdateUser writes profile fields, role and department.
func (r *Repository) UpdateUser(ctx context.Context, user *models.User) error {
	sql, args, err := r.sb.Update("users").
		Set("email", strings.ToLower(user.Email)).
		Set("first_name", user.FirstName).
		Set("last_name", user.LastName).
		Set("role", user.RoleType).
		Set("department_id", user.DepartmentID).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": user.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update user query: %w", err)
	}
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, "users_email_key") {
			return apperrors.ErrEmailAlreadyExists
		}
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.ErrDepartmentNotFound
		}
		return fmt.Errorf("error updating user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (r *Repository) execByID(ctx context.Context, op string, b squirrel.UpdateBuilder, id int64) error {
	sql, args, err := b.Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build %s query: %w", op, err)
	}
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error executing %s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id int64, active bool) error {
	return r.execByID(ctx, "update user status", r.sb.Update("users").
		Set("is_active", active).
		Set("updated_at", squirrel.Expr("NOW()")), id)
}

func (r *Repository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return r.execByID(ctx, "update password", r.sb.Update("users").
		Set("password_hash", hash).
		Set("updated_at", squirrel.Expr("NOW()")), id)
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id int64) error {
	return r.execByID(ctx, "update last login", r.sb.Update("users").
		Set("last_login_at", time.Now().UTC()), id)
}

// DeleteUser removes a user. Users referenced by grades, attendance or
// payments cannot be deleted and should be disabled instead.
func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.NewConflictError("user has recorded academic or finance history; disable the account instead")
		}
		return fmt.Errorf("error deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// CountByRole counts users per role, optionally within a department.
func (r *Repository) CountByRole(ctx context.Context, departmentID *int64) (map[models.RoleType]int64, error) {
	q := r.sb.Select("role", "COUNT(*)").From("users").GroupBy("role")
	if departmentID != nil {
		q = q.Where(squirrel.Eq{"department_id": *departmentID})
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build count by role query: %w", err)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error counting users by role: %w", err)
	}
	defer rows.Close()

	out := make(map[models.RoleType]int64, len(models.AllRoles))
	for _, role := range models.AllRoles {
		out[role] = 0
	}
	for rows.Next() {
		var role models.RoleType
		var n int64
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		out[role] = n
	}
	return out, rows.Err()
}
