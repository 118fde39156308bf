package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/db"
	"github.com/smis-school/smis/internal/pkg/apperrors"
	"github.com/smis-school/smis/internal/pkg/dberrors"
)

// DepartmentRepository handles database operations for departments
type DepartmentRepository struct {
	db db.DBTX
	sb squirrel.StatementBuilderType
}

func NewDepartmentRepository(conn db.DBTX) *DepartmentRepository {
	return &DepartmentRepository{db: conn, sb: psql}
}

func (r *DepartmentRepository) selectDepartments() squirrel.SelectBuilder {
	return r.sb.Select("d.id", "d.name", "d.code", "d.hod_user_id",
		"COALESCE(h.first_name || ' ' || h.last_name, '')", "d.created_at", "d.updated_at").
		From("departments d").
		LeftJoin("users h ON h.id = d.hod_user_id")
}

func scanDepartment(row pgx.Row) (*models.Department, error) {
	d := &models.Department{}
	if err := row.Scan(&d.ID, &d.Name, &d.Code, &d.HODUserID, &d.HODName, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return d, nil
}

func mapDepartmentWriteError(err error) error {
	switch {
	case dberrors.IsDuplicateConstraintError(err, "departments_name_key"),
		dberrors.IsDuplicateConstraintError(err, "departments_code_key"):
		return apperrors.ErrDepartmentAlreadyExists
	case dberrors.IsForeignKeyViolation(err):
		return apperrors.ErrUserNotFound
	}
	return err
}

// Create creates a new department
func (r *DepartmentRepository) Create(ctx context.Context, d *models.Department) error {
	sql, args, err := r.sb.Insert("departments").
		Columns("name", "code", "hod_user_id").
		Values(d.Name, d.Code, d.HODUserID).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create department query: %w", err)
	}
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if mapped := mapDepartmentWriteError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("error creating department: %w", err)
	}
	return nil
}

// GetByID retrieves a department by ID
func (r *DepartmentRepository) GetByID(ctx context.Context, id int64) (*models.Department, error) {
	sql, args, err := r.selectDepartments().Where(squirrel.Eq{"d.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get department query: %w", err)
	}
	d, err := scanDepartment(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrDepartmentNotFound
		}
		return nil, fmt.Errorf("error retrieving department: %w", err)
	}
	return d, nil
}

// GetAll retrieves all departments ordered by name
func (r *DepartmentRepository) GetAll(ctx context.Context) ([]models.Department, error) {
	sql, args, err := r.selectDepartments().OrderBy("d.name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list departments query: %w", err)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing departments: %w", err)
	}
	defer rows.Close()

	out := make([]models.Department, 0)
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning department: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// GetByHOD returns the department headed by userID.
func (r *DepartmentRepository) GetByHOD(ctx context.Context, userID int64) (*models.Department, error) {
	sql, args, err := r.selectDepartments().Where(squirrel.Eq{"d.hod_user_id": userID}).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get department query: %w", err)
	}
	d, err := scanDepartment(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrDepartmentNotFound
		}
		return nil, fmt.Errorf("error retrieving department: %w", err)
	}
	return d, nil
}

// Update updates an existing department
func (r *DepartmentRepository) Update(ctx context.Context, d *models.Department) error {
	sql, args, err := r.sb.Update("departments").
		Set("name", d.Name).
		Set("code", d.Code).
		Set("hod_user_id", d.HODUserID).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": d.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update department query: %w", err)
	}
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		if mapped := mapDepartmentWriteError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("error updating department: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrDepartmentNotFound
	}
	return nil
}

// Delete deletes a department by ID
func (r *DepartmentRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.ErrDepartmentHasRelations
		}
		return fmt.Errorf("error deleting department: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrDepartmentNotFound
	}
	return nil
}

// Count returns the number of departments.
func (r *DepartmentRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM departments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting departments: %w", err)
	}
	return n, nil
}
