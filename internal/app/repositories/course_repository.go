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

var courseColumns = []string{"co.id", "co.code", "co.name", "co.department_id", "co.credits", "co.description", "co.created_at", "co.updated_at"}

// CourseRepository handles the courses table.
type CourseRepository struct {
	db db.DBTX
	sb squirrel.StatementBuilderType
}

func NewCourseRepository(conn db.DBTX) *CourseRepository {
	return &CourseRepository{db: conn, sb: psql}
}

func scanCourse(row pgx.Row) (*models.Course, error) {
	c := &models.Course{}
	if err := row.Scan(&c.ID, &c.Code, &c.Name, &c.DepartmentID, &c.Credits, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CourseRepository) Create(ctx context.Context, c *models.Course) error {
	sql, args, err := r.sb.Insert("courses").
		Columns("code", "name", "department_id", "credits", "description").
		Values(c.Code, c.Name, c.DepartmentID, c.Credits, c.Description).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create course query: %w", err)
	}
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if dberrors.IsDuplicateConstraintError(err, "courses_code_key") {
			return apperrors.ErrCourseAlreadyExists
		}
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.ErrDepartmentNotFound
		}
		return fmt.Errorf("error creating course: %w", err)
	}
	return nil
}

func (r *CourseRepository) GetByID(ctx context.Context, id int64) (*models.Course, error) {
	sql, args, err := r.sb.Select(courseColumns...).From("courses co").Where(squirrel.Eq{"co.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get course query: %w", err)
	}
	c, err := scanCourse(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrCourseNotFound
		}
		return nil, fmt.Errorf("error retrieving course: %w", err)
	}
	return c, nil
}

// List returns courses, optionally restricted to a department.
func (r *CourseRepository) List(ctx context.Context, departmentID *int64) ([]models.Course, error) {
	q := r.sb.Select(courseColumns...).From("courses co").OrderBy("co.code")
	if departmentID != nil {
		q = q.Where(squirrel.Eq{"co.department_id": *departmentID})
	}
	return r.list(ctx, q)
}

// ListForClass returns the distinct courses timetabled for a class.
func (r *CourseRepository) ListForClass(ctx context.Context, classID int64) ([]models.Course, error) {
	q := r.sb.Select(courseColumns...).Distinct().
		From("courses co").
		Join("timetable_entries t ON t.course_id = co.id").
		Where(squirrel.Eq{"t.class_id": classID}).
		OrderBy("co.code")
	return r.list(ctx, q)
}

// ListForTeacher returns the distinct courses a teacher is timetabled for.
func (r *CourseRepository) ListForTeacher(ctx context.Context, teacherID int64) ([]models.Course, error) {
	q := r.sb.Select(courseColumns...).Distinct().
		From("courses co").
		Join("timetable_entries t ON t.course_id = co.id").
		Where(squirrel.Eq{"t.teacher_id": teacherID}).
		OrderBy("co.code")
	return r.list(ctx, q)
}

func (r *CourseRepository) list(ctx context.Context, q squirrel.SelectBuilder) ([]models.Course, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list courses query: %w", err)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing courses: %w", err)
	}
	defer rows.Close()

	out := make([]models.Course, 0)
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning course: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *CourseRepository) Update(ctx context.Context, c *models.Course) error {
	sql, args, err := r.sb.Update("courses").
		Set("code", c.Code).
		Set("name", c.Name).
		Set("department_id", c.DepartmentID).
		Set("credits", c.Credits).
		Set("description", c.Description).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": c.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update course query: %w", err)
	}
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, "courses_code_key") {
			return apperrors.ErrCourseAlreadyExists
		}
		return fmt.Errorf("error updating course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrCourseNotFound
	}
	return nil
}

func (r *CourseRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.ErrCourseHasRelations
		}
		return fmt.Errorf("error deleting course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrCourseNotFound
	}
	return nil
}

// Count counts courses, optionally within a department.
func (r *CourseRepository) Count(ctx context.Context, departmentID *int64) (int64, error) {
	q := r.sb.Select("COUNT(*)").From("courses")
	if departmentID != nil {
		q = q.Where(squirrel.Eq{"department_id": *departmentID})
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count courses query: %w", err)
	}
	var n int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting courses: %w", err)
	}
	return n, nil
}
