package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/models/dto"
	"github.com/smis-school/smis/internal/db"
	"github.com/smis-school/smis/internal/pkg/apperrors"
	"github.com/smis-school/smis/internal/pkg/dberrors"
)

// GradeRepository handles the grades table.
type GradeRepository struct {
	db db.DBTX
	sb squirrel.StatementBuilderType
}

func NewGradeRepository(conn db.DBTX) *GradeRepository {
	return &GradeRepository{db: conn, sb: psql}
}

func (r *GradeRepository) selectGrades() squirrel.SelectBuilder {
	return r.sb.Select("g.id", "g.student_id", "g.course_id", "g.teacher_id", "g.assessment",
		"g.score", "g.max_score", "g.term", "g.remarks", "g.created_at", "g.updated_at",
		"co.code", "co.name", "u.first_name || ' ' || u.last_name").
		From("grades g").
		Join("courses co ON co.id = g.course_id").
		Join("students s ON s.id = g.student_id").
		Join("users u ON u.id = s.user_id")
}

func scanGrade(row pgx.Row) (*models.Grade, error) {
	g := &models.Grade{}
	err := row.Scan(&g.ID, &g.StudentID, &g.CourseID, &g.TeacherID, &g.Assessment,
		&g.Score, &g.MaxScore, &g.Term, &g.Remarks, &g.CreatedAt, &g.UpdatedAt,
		&g.CourseCode, &g.CourseName, &g.StudentName)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func mapGradeWriteError(err error) error {
	switch {
	case dberrors.IsCheckViolation(err):
		return apperrors.NewValidationError("score must be between 0 and maxScore")
	case dberrors.IsForeignKeyViolation(err):
		return apperrors.NewBadRequestError("student or course does not exist")
	}
	return err
}

func (r *GradeRepository) Create(ctx context.Context, g *models.Grade) error {
	sql, args, err := r.sb.Insert("grades").
		Columns("student_id", "course_id", "teacher_id", "assessment", "score", "max_score", "term", "remarks").
		Values(g.StudentID, g.CourseID, g.TeacherID, g.Assessment, g.Score, g.MaxScore, g.Term, g.Remarks).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create grade query: %w", err)
	}
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt); err != nil {
		if mapped := mapGradeWriteError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("error creating grade: %w", err)
	}
	return nil
}

func (r *GradeRepository) GetByID(ctx context.Context, id int64) (*models.Grade, error) {
	sql, args, err := r.selectGrades().Where(squirrel.Eq{"g.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get grade query: %w", err)
	}
	g, err := scanGrade(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrGradeNotFound
		}
		return nil, fmt.Errorf("error retrieving grade: %w", err)
	}
	return g, nil
}

func (r *GradeRepository) Update(ctx context.Context, g *models.Grade) error {
	sql, args, err := r.sb.Update("grades").
		Set("assessment", g.Assessment).
		Set("score", g.Score).
		Set("max_score", g.MaxScore).
		Set("remarks", g.Remarks).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": g.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update grade query: %w", err)
	}
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&g.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrGradeNotFound
		}
		if mapped := mapGradeWriteError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("error updating grade: %w", err)
	}
	return nil
}

func applyGradeFilter(q squirrel.SelectBuilder, f models.GradeFilter) squirrel.SelectBuilder {
	if f.StudentID > 0 {
		q = q.Where(squirrel.Eq{"g.student_id": f.StudentID})
	}
	if f.CourseID > 0 {
		q = q.Where(squirrel.Eq{"g.course_id": f.CourseID})
	}
	if f.TeacherID > 0 {
		q = q.Where(squirrel.Eq{"g.teacher_id": f.TeacherID})
	}
	if f.Term != "" {
		q = q.Where(squirrel.Eq{"g.term": f.Term})
	}
	return q
}

// List returns matching grades, newest first.
func (r *GradeRepository) List(ctx context.Context, f models.GradeFilter) ([]models.Grade, error) {
	q := applyGradeFilter(r.selectGrades(), f).OrderBy("g.created_at DESC", "g.id DESC")
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list grades query: %w", err)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing grades: %w", err)
	}
	defer rows.Close()

	out := make([]models.Grade, 0)
	for rows.Next() {
		g, err := scanGrade(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning grade: %w", err)
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// AveragePercentage is the mean score percentage over matching grades, zero
// when there are none.
func (r *GradeRepository) AveragePercentage(ctx context.Context, f models.GradeFilter) (float64, error) {
	q := applyGradeFilter(r.sb.Select("COALESCE(ROUND(AVG(g.score / g.max_score * 100), 2), 0)::float8").
		From("grades g"), f)
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build grade average query: %w", err)
	}
	var avg float64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&avg); err != nil {
		return 0, fmt.Errorf("error computing grade average: %w", err)
	}
	return avg, nil
}

// AverageByCourse reports the mean percentage per course of a department.
func (r *GradeRepository) AverageByCourse(ctx context.Context, departmentID int64) ([]dto.CoursePerformance, error) {
	sql, args, err := r.sb.Select("co.id", "co.code", "co.name",
		"COALESCE(ROUND(AVG(g.score / g.max_score * 100), 2), 0)::float8", "COUNT(g.id)").
		From("courses co").
		LeftJoin("grades g ON g.course_id = co.id").
		Where(squirrel.Eq{"co.department_id": departmentID}).
		GroupBy("co.id", "co.code", "co.name").
		OrderBy("co.code").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build course performance query: %w", err)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error computing course performance: %w", err)
	}
	defer rows.Close()

	out := make([]dto.CoursePerformance, 0)
	for rows.Next() {
		var p dto.CoursePerformance
		if err := rows.Scan(&p.CourseID, &p.CourseCode, &p.CourseName, &p.AverageScore, &p.GradeCount); err != nil {
			return nil, fmt.Errorf("error scanning course performance: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountByTeacher counts grades recorded by a teacher.
func (r *GradeRepository) CountByTeacher(ctx context.Context, teacherID int64) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM grades WHERE teacher_id = $1`, teacherID).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting grades: %w", err)
	}
	return n, nil
}
