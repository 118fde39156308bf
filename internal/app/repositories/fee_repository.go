package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/db"
	"github.com/smis-school/smis/internal/pkg/apperrors"
	"github.com/smis-school/smis/internal/pkg/dberrors"
)

var feeColumns = []string{
	"f.id", "f.student_id", "f.description", "f.amount::float8", "f.amount_paid::float8",
	"f.due_date", "f.status", "f.term", "f.created_at", "f.updated_at",
}

// FeeRepository handles fees and fee_payments.
type FeeRepository struct {
	db db.DBTX
	sb squirrel.StatementBuilderType
}

func NewFeeRepository(conn db.DBTX) *FeeRepository {
	return &FeeRepository{db: conn, sb: psql}
}

// WithTx returns a copy bound to tx.
func (r *FeeRepository) WithTx(tx db.DBTX) *FeeRepository {
	return &FeeRepository{db: tx, sb: r.sb}
}

func (r *FeeRepository) selectFees() squirrel.SelectBuilder {
	return r.sb.Select(append(feeColumns, "u.first_name || ' ' || u.last_name", "s.student_number")...).
		From("fees f").
		Join("students s ON s.id = f.student_id").
		Join("users u ON u.id = s.user_id")
}

func scanFee(row pgx.Row) (*models.Fee, error) {
	f := &models.Fee{}
	err := row.Scan(&f.ID, &f.StudentID, &f.Description, &f.Amount, &f.AmountPaid,
		&f.DueDate, &f.Status, &f.Term, &f.CreatedAt, &f.UpdatedAt,
		&f.StudentName, &f.StudentNumber)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *FeeRepository) Create(ctx context.Context, f *models.Fee) error {
	sql, args, err := r.sb.Insert("fees").
		Columns("student_id", "description", "amount", "amount_paid", "due_date", "status", "term").
		Values(f.StudentID, f.Description, f.Amount, f.AmountPaid, f.DueDate, f.Status, f.Term).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create fee query: %w", err)
	}
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.ErrStudentNotFound
		}
		return fmt.Errorf("error creating fee: %w", err)
	}
	return nil
}

func (r *FeeRepository) GetByID(ctx context.Context, id int64) (*models.Fee, error) {
	sql, args, err := r.selectFees().Where(squirrel.Eq{"f.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get fee query: %w", err)
	}
	f, err := scanFee(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrFeeNotFound
		}
		return nil, fmt.Errorf("error retrieving fee: %w", err)
	}
	return f, nil
}

// GetForUpdate reads a fee and locks its row until the surrounding
// transaction ends. Concurrent payments against the same fee serialize here.
func (r *FeeRepository) GetForUpdate(ctx context.Context, id int64) (*models.Fee, error) {
	sql, args, err := r.selectFees().Where(squirrel.Eq{"f.id": id}).Suffix("FOR UPDATE OF f").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build lock fee query: %w", err)
	}
	f, err := scanFee(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrFeeNotFound
		}
		return nil, fmt.Errorf("error locking fee: %w", err)
	}
	return f, nil
}

func applyFeeFilter(q squirrel.SelectBuilder, f models.FeeFilter) squirrel.SelectBuilder {
	if f.Status != "" {
		q = q.Where(squirrel.Eq{"f.status": f.Status})
	}
	if f.StudentID > 0 {
		q = q.Where(squirrel.Eq{"f.student_id": f.StudentID})
	}
	if f.Term != "" {
		q = q.Where(squirrel.Eq{"f.term": f.Term})
	}
	if f.DueBefore != nil {
		q = q.Where(squirrel.Lt{"f.due_date": *f.DueBefore})
	}
	return q
}

// List returns one page of fees (due date ascending) and the total count.
// A zero limit returns every match.
func (r *FeeRepository) List(ctx context.Context, f models.FeeFilter, offset, limit uint64) ([]models.Fee, int64, error) {
	countSQL, countArgs, err := applyFeeFilter(r.sb.Select("COUNT(*)").From("fees f"), f).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count fees query: %w", err)
	}
	var total int64
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting fees: %w", err)
	}

	q := applyFeeFilter(r.selectFees(), f).OrderBy("f.due_date", "f.id")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list fees query: %w", err)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("error listing fees: %w", err)
	}
	defer rows.Close()

	out := make([]models.Fee, 0)
	for rows.Next() {
		fee, err := scanFee(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("error scanning fee: %w", err)
		}
		out = append(out, *fee)
	}
	return out, total, rows.Err()
}

func (r *FeeRepository) Update(ctx context.Context, f *models.Fee) error {
	sql, args, err := r.sb.Update("fees").
		Set("description", f.Description).
		Set("amount", f.Amount).
		Set("due_date", f.DueDate).
		Set("status", f.Status).
		Set("term", f.Term).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": f.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update fee query: %w", err)
	}
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		if dberrors.IsCheckViolation(err) {
			return apperrors.NewValidationError("amount cannot be less than the amount already paid")
		}
		return fmt.Errorf("error updating fee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrFeeNotFound
	}
	return nil
}

func (r *FeeRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM fees WHERE id = $1`, id)
	if err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.ErrFeeHasPayments
		}
		return fmt.Errorf("error deleting fee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrFeeNotFound
	}
	return nil
}

// ApplyPayment stores the new paid amount and status of a locked fee.
func (r *FeeRepository) ApplyPayment(ctx context.Context, feeID int64, amountPaid float64, status models.FeeStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE fees SET amount_paid = $1, status = $2, updated_at = NOW() WHERE id = $3`,
		amountPaid, status, feeID)
	if err != nil {
		if dberrors.IsCheckViolation(err) {
			return apperrors.ErrOverpayment
		}
		return fmt.Errorf("error applying payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrFeeNotFound
	}
	return nil
}

// InsertPayment records a payment row.
func (r *FeeRepository) InsertPayment(ctx context.Context, p *models.FeePayment) error {
	sql, args, err := r.sb.Insert("fee_payments").
		Columns("fee_id", "amount", "method", "reference", "recorded_by").
		Values(p.FeeID, p.Amount, p.Method, p.Reference, p.RecordedBy).
		Suffix("RETURNING id, paid_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert payment query: %w", err)
	}
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&p.ID, &p.PaidAt); err != nil {
		return fmt.Errorf("error recording payment: %w", err)
	}
	return nil
}

func (r *FeeRepository) queryPayments(ctx context.Context, q squirrel.SelectBuilder) ([]models.FeePayment, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build payments query: %w", err)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing payments: %w", err)
	}
	defer rows.Close()

	out := make([]models.FeePayment, 0)
	for rows.Next() {
		var p models.FeePayment
		if err := rows.Scan(&p.ID, &p.FeeID, &p.Amount, &p.Method, &p.Reference, &p.RecordedBy, &p.PaidAt); err != nil {
			return nil, fmt.Errorf("error scanning payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *FeeRepository) selectPayments() squirrel.SelectBuilder {
	return r.sb.Select("p.id", "p.fee_id", "p.amount::float8", "p.method", "p.reference", "p.recorded_by", "p.paid_at").
		From("fee_payments p")
}

// ListPayments returns the payments of a fee, oldest first.
func (r *FeeRepository) ListPayments(ctx context.Context, feeID int64) ([]models.FeePayment, error) {
	return r.queryPayments(ctx, r.selectPayments().Where(squirrel.Eq{"p.fee_id": feeID}).OrderBy("p.paid_at", "p.id"))
}

// RecentPayments returns the latest payments across all fees.
func (r *FeeRepository) RecentPayments(ctx context.Context, limit uint64) ([]models.FeePayment, error) {
	return r.queryPayments(ctx, r.selectPayments().OrderBy("p.paid_at DESC", "p.id DESC").Limit(limit))
}

// Totals aggregates billed, collected and outstanding amounts.
func (r *FeeRepository) Totals(ctx context.Context, f models.FeeFilter) (models.FeeTotals, error) {
	q := applyFeeFilter(r.sb.Select(
		"COALESCE(SUM(f.amount), 0)::float8",
		"COALESCE(SUM(f.amount_paid), 0)::float8",
		"COALESCE(SUM(f.amount - f.amount_paid), 0)::float8",
		"COALESCE(SUM(f.amount - f.amount_paid) FILTER (WHERE f.status = 'OVERDUE'), 0)::float8",
		"COUNT(*)",
		"COUNT(*) FILTER (WHERE f.status = 'OVERDUE')",
	).From("fees f"), f)
	sql, args, err := q.ToSql()
	if err != nil {
		return models.FeeTotals{}, fmt.Errorf("failed to build fee totals query: %w", err)
	}
	var t models.FeeTotals
	if err := r.db.QueryRow(ctx, sql, args...).Scan(
		&t.Billed, &t.Collected, &t.Outstanding, &t.Overdue, &t.FeeCount, &t.OverdueCount); err != nil {
		return models.FeeTotals{}, fmt.Errorf("error computing fee totals: %w", err)
	}
	return t, nil
}

// CountByStatus counts fees per status, optionally for one term.
func (r *FeeRepository) CountByStatus(ctx context.Context, term string) (map[models.FeeStatus]int64, error) {
	q := applyFeeFilter(r.sb.Select("f.status", "COUNT(*)").From("fees f"), models.FeeFilter{Term: term}).
		GroupBy("f.status")
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build fee status query: %w", err)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error counting fees by status: %w", err)
	}
	defer rows.Close()

	out := map[models.FeeStatus]int64{
		models.FeePending: 0, models.FeePartial: 0, models.FeePaid: 0, models.FeeOverdue: 0,
	}
	for rows.Next() {
		var status models.FeeStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("error scanning fee status count: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}

// PaymentsByMethod sums collected amounts per payment method.
func (r *FeeRepository) PaymentsByMethod(ctx context.Context, term string) (map[string]float64, error) {
	q := r.sb.Select("p.method", "COALESCE(SUM(p.amount), 0)::float8").
		From("fee_payments p").
		Join("fees f ON f.id = p.fee_id").
		GroupBy("p.method")
	if term != "" {
		q = q.Where(squirrel.Eq{"f.term": term})
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build payment method query: %w", err)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error summing payments by method: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var method string
		var sum float64
		if err := rows.Scan(&method, &sum); err != nil {
			return nil, fmt.Errorf("error scanning payment method sum: %w", err)
		}
		out[method] = sum
	}
	return out, rows.Err()
}

// MarkOverdue flags unpaid fees whose due date is before today.
func (r *FeeRepository) MarkOverdue(ctx context.Context, today time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE fees SET status = 'OVERDUE', updated_at = NOW()
		 WHERE status IN ('PENDING', 'PARTIAL') AND due_date < $1`, today)
	if err != nil {
		return 0, fmt.Errorf("error marking overdue fees: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListDueBetween returns unpaid fees due in [from, to] with the student's
// email.
func (r *FeeRepository) ListDueBetween(ctx context.Context, from, to time.Time) ([]models.FeeReminder, error) {
	sql, args, err := r.sb.Select(append(feeColumns, "u.first_name || ' ' || u.last_name", "s.student_number", "u.email")...).
		From("fees f").
		Join("students s ON s.id = f.student_id").
		Join("users u ON u.id = s.user_id").
		Where(squirrel.Eq{"f.status": []models.FeeStatus{models.FeePending, models.FeePartial}}).
		Where(squirrel.GtOrEq{"f.due_date": from}).
		Where(squirrel.LtOrEq{"f.due_date": to}).
		Where(squirrel.Eq{"u.is_active": true}).
		OrderBy("f.due_date").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build due fees query: %w", err)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing due fees: %w", err)
	}
	defer rows.Close()

	out := make([]models.FeeReminder, 0)
	for rows.Next() {
		var rem models.FeeReminder
		f := &rem.Fee
		if err := rows.Scan(&f.ID, &f.StudentID, &f.Description, &f.Amount, &f.AmountPaid,
			&f.DueDate, &f.Status, &f.Term, &f.CreatedAt, &f.UpdatedAt,
			&f.StudentName, &f.StudentNumber, &rem.Email); err != nil {
			return nil, fmt.Errorf("error scanning due fee: %w", err)
		}
		out = append(out, rem)
	}
	return out, rows.Err()
}
