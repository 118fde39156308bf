package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/db"
	"github.com/smis-school/smis/internal/pkg/apperrors"
	"github.com/smis-school/smis/internal/pkg/dberrors"
)

var classColumns = []string{"cl.id", "cl.name", "cl.department_id", "cl.academic_year", "cl.roster", "cl.class_teacher_id", "cl.created_at", "cl.updated_at"}

// ClassRepository handles the classes table. The roster is a JSONB array of
// student ids.
type ClassRepository struct {
	db db.DBTX
	sb squirrel.StatementBuilderType
}

func NewClassRepository(conn db.DBTX) *ClassRepository {
	return &ClassRepository{db: conn, sb: psql}
}

func (r *ClassRepository) WithTx(tx db.DBTX) *ClassRepository {
	return &ClassRepository{db: tx, sb: r.sb}
}

func scanClass(row pgx.Row) (*models.Class, error) {
	c := &models.Class{}
	var roster []byte
	if err := row.Scan(&c.ID, &c.Name, &c.DepartmentID, &c.AcademicYear, &roster, &c.ClassTeacherID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	ids, err := decodeRoster(roster)
	if err != nil {
		return nil, err
	}
	c.Roster = ids
	return c, nil
}

func decodeRoster(raw []byte) ([]int64, error) {
	ids := make([]int64, 0)
	if len(raw) == 0 {
		return ids, nil
	}
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("malformed class roster: %w", err)
	}
	return ids, nil
}

func encodeRoster(ids []int64) (string, error) {
	if ids == nil {
		ids = []int64{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func mapClassWriteError(err error) error {
	switch {
	case dberrors.IsDuplicateConstraintError(err, "classes_name_year_key"):
		return apperrors.NewConflictError("class with this name already exists for the academic year")
	case dberrors.IsForeignKeyViolation(err):
		return apperrors.ErrDepartmentNotFound
	}
	return err
}

func (r *ClassRepository) Create(ctx context.Context, c *models.Class) error {
	roster, err := encodeRoster(c.Roster)
	if err != nil {
		return err
	}
	sql, args, err := r.sb.Insert("classes").
		Columns("name", "department_id", "academic_year", "roster", "class_teacher_id").
		Values(c.Name, c.DepartmentID, c.AcademicYear, roster, c.ClassTeacherID).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create class query: %w", err)
	}
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if mapped := mapClassWriteError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("error creating class: %w", err)
	}
	return nil
}

func (r *ClassRepository) GetByID(ctx context.Context, id int64) (*models.Class, error) {
	sql, args, err := r.sb.Select(classColumns...).From("classes cl").Where(squirrel.Eq{"cl.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get class query: %w", err)
	}
	c, err := scanClass(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrClassNotFound
		}
		return nil, fmt.Errorf("error retrieving class: %w", err)
	}
	return c, nil
}

// List returns classes, optionally restricted to a department.
func (r *ClassRepository) List(ctx context.Context, departmentID *int64) ([]models.Class, error) {
	q := r.sb.Select(classColumns...).From("classes cl").OrderBy("cl.academic_year DESC", "cl.name")
	if departmentID != nil {
		q = q.Where(squirrel.Eq{"cl.department_id": *departmentID})
	}
	return r.list(ctx, q)
}

// ListForTeacher returns classes the teacher is timetabled for or is the
// class teacher of.
func (r *ClassRepository) ListForTeacher(ctx context.Context, teacherID int64) ([]models.Class, error) {
	q := r.sb.Select(classColumns...).From("classes cl").
		Where(squirrel.Or{
			squirrel.Eq{"cl.class_teacher_id": teacherID},
			squirrel.Expr("EXISTS (SELECT 1 FROM timetable_entries t WHERE t.class_id = cl.id AND t.teacher_id = ?)", teacherID),
		}).
		OrderBy("cl.name")
	return r.list(ctx, q)
}

// FindByStudent returns the classes whose roster contains studentID.
func (r *ClassRepository) FindByStudent(ctx context.Context, studentID int64) ([]models.Class, error) {
	member, err := encodeRoster([]int64{studentID})
	if err != nil {
		return nil, err
	}
	q := r.sb.Select(classColumns...).From("classes cl").
		Where(squirrel.Expr("cl.roster @> ?::jsonb", member)).
		OrderBy("cl.name")
	return r.list(ctx, q)
}

func (r *ClassRepository) list(ctx context.Context, q squirrel.SelectBuilder) ([]models.Class, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list classes query: %w", err)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing classes: %w", err)
	}
	defer rows.Close()

	out := make([]models.Class, 0)
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning class: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *ClassRepository) Update(ctx context.Context, c *models.Class) error {
	sql, args, err := r.sb.Update("classes").
		Set("name", c.Name).
		Set("department_id", c.DepartmentID).
		Set("academic_year", c.AcademicYear).
		Set("class_teacher_id", c.ClassTeacherID).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": c.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update class query: %w", err)
	}
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		if mapped := mapClassWriteError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("error updating class: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrClassNotFound
	}
	return nil
}

// SetRoster replaces the roster of a class.
func (r *ClassRepository) SetRoster(ctx context.Context, classID int64, studentIDs []int64) error {
	roster, err := encodeRoster(studentIDs)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE classes SET roster = $1::jsonb, updated_at = NOW() WHERE id = $2`, roster, classID)
	if err != nil {
		return fmt.Errorf("error updating class roster: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrClassNotFound
	}
	return nil
}

func (r *ClassRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM classes WHERE id = $1`, id)
	if err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.ErrClassHasRelations
		}
		return fmt.Errorf("error deleting class: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrClassNotFound
	}
	return nil
}

// Count counts classes, optionally within a department.
func (r *ClassRepository) Count(ctx context.Context, departmentID *int64) (int64, error) {
	q := r.sb.Select("COUNT(*)").From("classes")
	if departmentID != nil {
		q = q.Where(squirrel.Eq{"department_id": *departmentID})
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count classes query: %w", err)
	}
	var n int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting classes: %w", err)
	}
	return n, nil
}
