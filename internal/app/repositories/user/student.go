package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/db"
	"github.com/smis-school/smis/internal/pkg/apperrors"
	"github.com/smis-school/smis/internal/pkg/dberrors"
)

var studentColumns = []string{
	"s.id", "s.user_id", "s.student_number", "s.class_id", "s.enrollment_year",
	"s.guardian_name", "s.guardian_phone", "s.created_at",
	"u.first_name", "u.last_name", "u.email", "u.department_id", "COALESCE(c.name, '')",
}

// StudentRepository handles the students table.
type StudentRepository struct {
	db db.DBTX
	sb squirrel.StatementBuilderType
}

func NewStudentRepository(conn db.DBTX) *StudentRepository {
	return &StudentRepository{
		db: conn,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *StudentRepository) selectStudents() squirrel.SelectBuilder {
	return r.sb.Select(studentColumns...).
		From("students s").
		Join("users u ON u.id = s.user_id").
		LeftJoin("classes c ON c.id = s.class_id")
}

func scanStudent(row pgx.Row) (*models.Student, error) {
	s := &models.Student{}
	err := row.Scan(&s.ID, &s.UserID, &s.StudentNumber, &s.ClassID, &s.EnrollmentYear,
		&s.GuardianName, &s.GuardianPhone, &s.CreatedAt,
		&s.FirstName, &s.LastName, &s.Email, &s.DepartmentID, &s.ClassName)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CreateStudent inserts the students row for an existing user.
func (r *StudentRepository) CreateStudent(ctx context.Context, s *models.Student) error {
	sql, args, err := r.sb.Insert("students").
		Columns("user_id", "student_number", "class_id", "enrollment_year", "guardian_name", "guardian_phone").
		Values(s.UserID, strings.ToUpper(s.StudentNumber), s.ClassID, s.EnrollmentYear, s.GuardianName, s.GuardianPhone).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create student query: %w", err)
	}
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&s.ID, &s.CreatedAt); err != nil {
		if dberrors.IsDuplicateConstraintError(err, "students_student_number_key") {
			return apperrors.ErrStudentNumberAlreadyExists
		}
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.ErrClassNotFound
		}
		return fmt.Errorf("error creating student: %w", err)
	}
	return nil
}

func (r *StudentRepository) getOne(ctx context.Context, where squirrel.Sqlizer) (*models.Student, error) {
	sql, args, err := r.selectStudents().Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get student query: %w", err)
	}
	s, err := scanStudent(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrStudentNotFound
		}
		return nil, fmt.Errorf("error retrieving student: %w", err)
	}
	return s, nil
}

func (r *StudentRepository) GetStudentByID(ctx context.Context, id int64) (*models.Student, error) {
	return r.getOne(ctx, squirrel.Eq{"s.id": id})
}

func (r *StudentRepository) GetStudentByUserID(ctx context.Context, userID int64) (*models.Student, error) {
	return r.getOne(ctx, squirrel.Eq{"s.user_id": userID})
}

func (r *StudentRepository) StudentNumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM students WHERE student_number = $1)`, strings.ToUpper(number)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking student number: %w", err)
	}
	return exists, nil
}

func applyStudentFilter(q squirrel.SelectBuilder, f models.StudentFilter) squirrel.SelectBuilder {
	if f.DepartmentID != nil {
		q = q.Where(squirrel.Eq{"u.department_id": *f.DepartmentID})
	}
	if f.ClassID != nil {
		q = q.Where(squirrel.Eq{"s.class_id": *f.ClassID})
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"s.student_number": like},
			squirrel.ILike{"u.first_name": like},
			squirrel.ILike{"u.last_name": like},
		})
	}
	return q
}

// ListStudents returns a page of students and the total matching count.
func (r *StudentRepository) ListStudents(ctx context.Context, f models.StudentFilter, offset, limit uint64) ([]models.Student, int64, error) {
	countSQL, countArgs, err := applyStudentFilter(
		r.sb.Select("COUNT(*)").From("students s").Join("users u ON u.id = s.user_id"), f).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count students query: %w", err)
	}
	var total int64
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting students: %w", err)
	}

	sql, args, err := applyStudentFilter(r.selectStudents(), f).
		OrderBy("u.last_name", "u.first_name").
		Limit(limit).Offset(offset).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list students query: %w", err)
	}
	students, err := r.query(ctx, sql, args)
	return students, total, err
}

// ListByIDs returns the students with the given ids, ordered by name.
func (r *StudentRepository) ListByIDs(ctx context.Context, ids []int64) ([]models.Student, error) {
	if len(ids) == 0 {
		return []models.Student{}, nil
	}
	sql, args, err := r.selectStudents().
		Where(squirrel.Eq{"s.id": ids}).
		OrderBy("u.last_name", "u.first_name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list students query: %w", err)
	}
	return r.query(ctx, sql, args)
}

// CountByDepartment counts students whose user belongs to the department.
func (r *StudentRepository) CountByDepartment(ctx context.Context, departmentID int64) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM students s JOIN users u ON u.id = s.user_id
		WHERE u.department_id = $1`, departmentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("error counting students: %w", err)
	}
	return n, nil
}

// AssignClass points the given students at classID and detaches students no
// longer on the roster. It keeps students.class_id in step with the roster.
func (r *StudentRepository) AssignClass(ctx context.Context, classID int64, studentIDs []int64) error {
	if studentIDs == nil {
		studentIDs = []int64{}
	}
	if _, err := r.db.Exec(ctx, `UPDATE students SET class_id = NULL WHERE class_id = $1 AND NOT (id = ANY($2))`, classID, studentIDs); err != nil {
		return fmt.Errorf("error detaching students: %w", err)
	}
	if len(studentIDs) == 0 {
		return nil
	}
	if _, err := r.db.Exec(ctx, `UPDATE students SET class_id = $1 WHERE id = ANY($2)`, classID, studentIDs); err != nil {
		return fmt.Errorf("error assigning students: %w", err)
	}
	return nil
}

func (r *StudentRepository) query(ctx context.Context, sql string, args []interface{}) ([]models.Student, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing students: %w", err)
	}
	defer rows.Close()

	students := make([]models.Student, 0)
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning student: %w", err)
		}
		students = append(students, *s)
	}
	return students, rows.Err()
}
