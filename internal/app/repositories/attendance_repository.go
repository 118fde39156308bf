package repositories

import (
	"context"
	"fmt"
	"math"

	"github.com/Masterminds/squirrel"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/models/dto"
	"github.com/smis-school/smis/internal/db"
	"github.com/smis-school/smis/internal/pkg/apperrors"
	"github.com/smis-school/smis/internal/pkg/dberrors"
)

const upsertAttendanceSQL = `
INSERT INTO attendance_records (student_id, class_id, course_id, date, status, marked_by, remarks)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (student_id, class_id, (COALESCE(course_id, 0)), date)
DO UPDATE SET status = EXCLUDED.status, marked_by = EXCLUDED.marked_by, remarks = EXCLUDED.remarks
RETURNING id, created_at`

// AttendanceRepository handles attendance_records.
type AttendanceRepository struct {
	db db.DBTX
	sb squirrel.StatementBuilderType
}

func NewAttendanceRepository(conn db.DBTX) *AttendanceRepository {
	return &AttendanceRepository{db: conn, sb: psql}
}

func (r *AttendanceRepository) WithTx(tx db.DBTX) *AttendanceRepository {
	return &AttendanceRepository{db: tx, sb: r.sb}
}

// UpsertBulk writes every record, replacing an earlier mark for the same
// student, class, course and date. Run it inside a transaction so a batch is
// applied whole.
func (r *AttendanceRepository) UpsertBulk(ctx context.Context, records []models.AttendanceRecord) error {
	for i := range records {
		rec := &records[i]
		err := r.db.QueryRow(ctx, upsertAttendanceSQL,
			rec.StudentID, rec.ClassID, rec.CourseID, rec.Date, rec.Status, rec.MarkedBy, rec.Remarks,
		).Scan(&rec.ID, &rec.CreatedAt)
		if err != nil {
			if dberrors.IsForeignKeyViolation(err) {
				return apperrors.ErrStudentNotFound
			}
			return fmt.Errorf("error saving attendance for student %d: %w", rec.StudentID, err)
		}
	}
	return nil
}

func applyAttendanceFilter(q squirrel.SelectBuilder, f models.AttendanceFilter) squirrel.SelectBuilder {
	if f.StudentID > 0 {
		q = q.Where(squirrel.Eq{"a.student_id": f.StudentID})
	}
	if f.ClassID > 0 {
		q = q.Where(squirrel.Eq{"a.class_id": f.ClassID})
	}
	if f.CourseID > 0 {
		q = q.Where(squirrel.Eq{"a.course_id": f.CourseID})
	}
	if f.From != nil {
		q = q.Where(squirrel.GtOrEq{"a.date": *f.From})
	}
	if f.To != nil {
		q = q.Where(squirrel.LtOrEq{"a.date": *f.To})
	}
	return q
}

// List returns matching records, newest date first.
func (r *AttendanceRepository) List(ctx context.Context, f models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	q := r.sb.Select("a.id", "a.student_id", "a.class_id", "a.course_id", "a.date", "a.status",
		"a.marked_by", "a.remarks", "a.created_at", "u.first_name || ' ' || u.last_name").
		From("attendance_records a").
		Join("students s ON s.id = a.student_id").
		Join("users u ON u.id = s.user_id")
	q = applyAttendanceFilter(q, f).OrderBy("a.date DESC", "u.last_name", "u.first_name")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list attendance query: %w", err)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing attendance: %w", err)
	}
	defer rows.Close()

	out := make([]models.AttendanceRecord, 0)
	for rows.Next() {
		var a models.AttendanceRecord
		if err := rows.Scan(&a.ID, &a.StudentID, &a.ClassID, &a.CourseID, &a.Date, &a.Status,
			&a.MarkedBy, &a.Remarks, &a.CreatedAt, &a.StudentName); err != nil {
			return nil, fmt.Errorf("error scanning attendance: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Summary counts marks by status for the filter.
func (r *AttendanceRepository) Summary(ctx context.Context, f models.AttendanceFilter) (dto.AttendanceSummary, error) {
	q := applyAttendanceFilter(r.sb.Select("a.status", "COUNT(*)").From("attendance_records a"), f).
		GroupBy("a.status")
	sql, args, err := q.ToSql()
	if err != nil {
		return dto.AttendanceSummary{}, fmt.Errorf("failed to build attendance summary query: %w", err)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return dto.AttendanceSummary{}, fmt.Errorf("error summarising attendance: %w", err)
	}
	defer rows.Close()

	var s dto.AttendanceSummary
	for rows.Next() {
		var status models.AttendanceStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return dto.AttendanceSummary{}, fmt.Errorf("error scanning attendance summary: %w", err)
		}
		s.Total += n
		switch status {
		case models.AttendancePresent:
			s.Present = n
		case models.AttendanceAbsent:
			s.Absent = n
		case models.AttendanceLate:
			s.Late = n
		case models.AttendanceExcused:
			s.Excused = n
		}
	}
	if err := rows.Err(); err != nil {
		return dto.AttendanceSummary{}, err
	}
	s.Rate = AttendanceRate(s.Present+s.Late, s.Total)
	return s, nil
}

// AttendanceRate is attended/total as a percentage rounded to two places.
func AttendanceRate(attended, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(attended)/float64(total)*10000) / 100
}

// RateByClass reports the attendance rate of each class in a department.
func (r *AttendanceRepository) RateByClass(ctx context.Context, departmentID int64) ([]dto.ClassAttendance, error) {
	sql, args, err := r.sb.Select("cl.id", "cl.name",
		"COUNT(a.id)",
		"COUNT(a.id) FILTER (WHERE a.status IN ('PRESENT', 'LATE'))").
		From("classes cl").
		LeftJoin("attendance_records a ON a.class_id = cl.id").
		Where(squirrel.Eq{"cl.department_id": departmentID}).
		GroupBy("cl.id", "cl.name").
		OrderBy("cl.name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build class attendance query: %w", err)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error computing class attendance: %w", err)
	}
	defer rows.Close()

	out := make([]dto.ClassAttendance, 0)
	for rows.Next() {
		var c dto.ClassAttendance
		var attended int64
		if err := rows.Scan(&c.ClassID, &c.ClassName, &c.RecordCount, &attended); err != nil {
			return nil, fmt.Errorf("error scanning class attendance: %w", err)
		}
		c.AttendanceRate = AttendanceRate(attended, c.RecordCount)
		out = append(out, c)
	}
	return out, rows.Err()
}
