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

// TimetableRepository handles timetable_entries.
type TimetableRepository struct {
	db db.DBTX
	sb squirrel.StatementBuilderType
}

func NewTimetableRepository(conn db.DBTX) *TimetableRepository {
	return &TimetableRepository{db: conn, sb: psql}
}

func (r *TimetableRepository) selectEntries() squirrel.SelectBuilder {
	return r.sb.Select("t.id", "t.course_id", "t.teacher_id", "t.class_id", "t.day_of_week",
		"t.start_time", "t.end_time", "t.room", "t.created_at",
		"co.code", "co.name", "cl.name", "u.first_name || ' ' || u.last_name").
		From("timetable_entries t").
		Join("courses co ON co.id = t.course_id").
		Join("classes cl ON cl.id = t.class_id").
		Join("users u ON u.id = t.teacher_id")
}

func scanEntry(row pgx.Row) (*models.TimetableEntry, error) {
	e := &models.TimetableEntry{}
	err := row.Scan(&e.ID, &e.CourseID, &e.TeacherID, &e.ClassID, &e.DayOfWeek,
		&e.StartTime, &e.EndTime, &e.Room, &e.CreatedAt,
		&e.CourseCode, &e.CourseName, &e.ClassName, &e.Teacher)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Create inserts an entry. Course, teacher and class ids must be set.
func (r *TimetableRepository) Create(ctx context.Context, e *models.TimetableEntry) error {
	if e.CourseID == 0 || e.TeacherID == 0 || e.ClassID == 0 {
		return apperrors.NewValidationError("courseId, teacherId and classId are required")
	}
	sql, args, err := r.sb.Insert("timetable_entries").
		Columns("course_id", "teacher_id", "class_id", "day_of_week", "start_time", "end_time", "room").
		Values(e.CourseID, e.TeacherID, e.ClassID, e.DayOfWeek, e.StartTime, e.EndTime, e.Room).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create timetable entry query: %w", err)
	}
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&e.ID, &e.CreatedAt); err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.NewBadRequestError("course, teacher or class does not exist")
		}
		if dberrors.IsCheckViolation(err) {
			return apperrors.NewValidationError("invalid day or time range")
		}
		return fmt.Errorf("error creating timetable entry: %w", err)
	}
	return nil
}

func (r *TimetableRepository) GetByID(ctx context.Context, id int64) (*models.TimetableEntry, error) {
	sql, args, err := r.selectEntries().Where(squirrel.Eq{"t.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get timetable entry query: %w", err)
	}
	e, err := scanEntry(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTimetableEntryNotFound
		}
		return nil, fmt.Errorf("error retrieving timetable entry: %w", err)
	}
	return e, nil
}

func applyTimetableFilter(q squirrel.SelectBuilder, f models.TimetableFilter) squirrel.SelectBuilder {
	if f.ClassID > 0 {
		q = q.Where(squirrel.Eq{"t.class_id": f.ClassID})
	}
	if f.TeacherID > 0 {
		q = q.Where(squirrel.Eq{"t.teacher_id": f.TeacherID})
	}
	if f.CourseID > 0 {
		q = q.Where(squirrel.Eq{"t.course_id": f.CourseID})
	}
	if f.DepartmentID > 0 {
		q = q.Where(squirrel.Eq{"co.department_id": f.DepartmentID})
	}
	if f.DayOfWeek > 0 {
		q = q.Where(squirrel.Eq{"t.day_of_week": f.DayOfWeek})
	}
	return q
}

// List returns entries ordered by day and start time.
func (r *TimetableRepository) List(ctx context.Context, f models.TimetableFilter) ([]models.TimetableEntry, error) {
	q := applyTimetableFilter(r.selectEntries(), f).OrderBy("t.day_of_week", "t.start_time")
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list timetable query: %w", err)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing timetable: %w", err)
	}
	defer rows.Close()

	out := make([]models.TimetableEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning timetable entry: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// FindClashes returns entries on the same day whose time overlaps e and that
// share its class or its teacher.
func (r *TimetableRepository) FindClashes(ctx context.Context, e *models.TimetableEntry) ([]models.TimetableEntry, error) {
	q := r.selectEntries().
		Where(squirrel.Eq{"t.day_of_week": e.DayOfWeek}).
		Where(squirrel.Lt{"t.start_time": e.EndTime}).
		Where(squirrel.Gt{"t.end_time": e.StartTime}).
		Where(squirrel.Or{
			squirrel.Eq{"t.class_id": e.ClassID},
			squirrel.Eq{"t.teacher_id": e.TeacherID},
		})
	if e.ID > 0 {
		q = q.Where(squirrel.NotEq{"t.id": e.ID})
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build timetable clash query: %w", err)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error checking timetable clashes: %w", err)
	}
	defer rows.Close()

	out := make([]models.TimetableEntry, 0)
	for rows.Next() {
		c, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning timetable entry: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// IsTeacherAssigned reports whether teacherID has at least one entry for the
// class, optionally narrowed to a course. A zero classID matches any class.
func (r *TimetableRepository) IsTeacherAssigned(ctx context.Context, teacherID, classID, courseID int64) (bool, error) {
	where := squirrel.And{squirrel.Eq{"teacher_id": teacherID}}
	if classID > 0 {
		where = append(where, squirrel.Eq{"class_id": classID})
	}
	if courseID > 0 {
		where = append(where, squirrel.Eq{"course_id": courseID})
	}
	sql, args, err := r.sb.Select("1").From("timetable_entries").Where(where).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build timetable assignment query: %w", err)
	}
	var one int
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("error checking timetable assignment: %w", err)
	}
	return true, nil
}

func (r *TimetableRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM timetable_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting timetable entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrTimetableEntryNotFound
	}
	return nil
}
