package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/pkg/apperrors"
)

var feeRowColumns = []string{
	"id", "student_id", "description", "amount", "amount_paid", "due_date", "status", "term",
	"created_at", "updated_at", "student_name", "student_number",
}

func TestFeeRepository_GetForUpdateLocksRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	due := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`WHERE f.id = \$1 FOR UPDATE OF f`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(feeRowColumns).AddRow(
			int64(7), int64(2), "Tuition", 1500.0, 500.0, due, models.FeePartial, "2025-T1",
			now, now, "Ada Obi", "STU-0002"))
	mock.ExpectRollback()

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)
	fee, err := NewFeeRepository(mock).WithTx(tx).GetForUpdate(context.Background(), 7)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(context.Background()))

	assert.Equal(t, 1000.0, fee.Outstanding())
	assert.Equal(t, models.FeePartial, fee.Status)
	assert.Equal(t, "STU-0002", fee.StudentNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepository_GetForUpdateNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FOR UPDATE OF f").WithArgs(int64(99)).WillReturnError(pgx.ErrNoRows)

	_, err = NewFeeRepository(mock).GetForUpdate(context.Background(), 99)
	assert.ErrorIs(t, err, apperrors.ErrFeeNotFound)
}

func TestFeeRepository_ApplyPaymentCheckViolationIsOverpayment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE fees SET amount_paid").
		WithArgs(2000.0, models.FeePaid, int64(7)).
		WillReturnError(&pgconn.PgError{Code: "23514", ConstraintName: "fees_paid_range"})

	err = NewFeeRepository(mock).ApplyPayment(context.Background(), 7, 2000, models.FeePaid)
	assert.ErrorIs(t, err, apperrors.ErrOverpayment)
}

func TestFeeRepository_DeleteWithPayments(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM fees").
		WithArgs(int64(7)).
		WillReturnError(&pgconn.PgError{Code: "23503"})
	mock.ExpectExec("DELETE FROM fees").
		WithArgs(int64(8)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	repo := NewFeeRepository(mock)
	assert.ErrorIs(t, repo.Delete(context.Background(), 7), apperrors.ErrFeeHasPayments)
	assert.ErrorIs(t, repo.Delete(context.Background(), 8), apperrors.ErrFeeNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepository_MarkOverdue(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	today := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("SET status = 'OVERDUE'").
		WithArgs(today).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := NewFeeRepository(mock).MarkOverdue(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
