package services

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/models/dto"
	"github.com/smis-school/smis/internal/app/repositories"
	"github.com/smis-school/smis/internal/pkg/apperrors"
)

var lockedFeeColumns = []string{
	"id", "student_id", "description", "amount", "amount_paid", "due_date", "status", "term",
	"created_at", "updated_at", "student_name", "student_number",
}

var financeNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newFinanceService(t *testing.T) (*FinanceServiceImpl, pgxmock.PgxPoolIface, *fakeActivity) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	activity := &fakeActivity{}
	svc := NewFinanceService(mock, repositories.NewRepositories(mock), nil, activity, nil, zerolog.Nop())
	svc.now = func() time.Time { return financeNow }
	return svc, mock, activity
}

func expectLockedFee(mock pgxmock.PgxPoolIface, amount, paid float64, status models.FeeStatus) {
	due := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FOR UPDATE OF f`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(lockedFeeColumns).AddRow(
			int64(7), int64(2), "Tuition", amount, paid, due, status, "2025-T1",
			financeNow, financeNow, "Ada Obi", "STU-0002"))
}

func TestFinanceService_RecordPaymentTransitions(t *testing.T) {
	tests := []struct {
		name     string
		paid     float64
		status   models.FeeStatus
		payment  float64
		wantPaid float64
		want     models.FeeStatus
	}{
		{"pending to partial", 0, models.FeePending, 600, 600, models.FeePartial},
		{"partial to paid", 600, models.FeePartial, 900, 1500, models.FeePaid},
		{"pending straight to paid", 0, models.FeePending, 1500, 1500, models.FeePaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock, activity := newFinanceService(t)

			mock.ExpectBegin()
			expectLockedFee(mock, 1500, tt.paid, tt.status)
			mock.ExpectExec("UPDATE fees SET amount_paid").
				WithArgs(tt.wantPaid, tt.want, int64(7)).
				WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			mock.ExpectQuery("INSERT INTO fee_payments").
				WithArgs(int64(7), tt.payment, models.PaymentCash, pgxmock.AnyArg(), int64(5)).
				WillReturnRows(pgxmock.NewRows([]string{"id", "paid_at"}).AddRow(int64(11), financeNow))
			mock.ExpectCommit()

			actor := &models.Actor{UserID: 5, Role: models.RoleFinance}
			res, err := svc.RecordPayment(context.Background(), actor, 7,
				&dto.RecordPaymentRequest{Amount: tt.payment, Method: models.PaymentCash})
			require.NoError(t, err)

			assert.Equal(t, tt.want, res.Fee.Status)
			assert.Equal(t, tt.wantPaid, res.Fee.AmountPaid)
			assert.Equal(t, int64(11), res.Payment.ID)
			assert.Equal(t, []string{ActionPaymentRecorded}, activity.actions())
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestFinanceService_RecordPaymentRejectsOverpayment(t *testing.T) {
	svc, mock, activity := newFinanceService(t)

	mock.ExpectBegin()
	expectLockedFee(mock, 1500, 1000, models.FeePartial)
	mock.ExpectRollback()

	actor := &models.Actor{UserID: 5, Role: models.RoleFinance}
	_, err := svc.RecordPayment(context.Background(), actor, 7,
		&dto.RecordPaymentRequest{Amount: 500.01, Method: models.PaymentBank})

	assert.ErrorIs(t, err, apperrors.ErrOverpayment)
	assert.Contains(t, err.Error(), "500.00")
	assert.Empty(t, activity.actions())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinanceService_RecordPaymentOnSettledFee(t *testing.T) {
	svc, mock, _ := newFinanceService(t)

	mock.ExpectBegin()
	expectLockedFee(mock, 1500, 1500, models.FeePaid)
	mock.ExpectRollback()

	_, err := svc.RecordPayment(context.Background(), &models.Actor{UserID: 5}, 7,
		&dto.RecordPaymentRequest{Amount: 1, Method: models.PaymentCard})
	assert.ErrorIs(t, err, apperrors.ErrFeeSettled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinanceService_RecordPaymentValidatesMethod(t *testing.T) {
	svc, mock, _ := newFinanceService(t)

	_, err := svc.RecordPayment(context.Background(), &models.Actor{UserID: 5}, 7,
		&dto.RecordPaymentRequest{Amount: 10, Method: "BARTER"})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinanceService_UpdateFeeBelowPaid(t *testing.T) {
	svc, mock, _ := newFinanceService(t)

	due := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`WHERE f.id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(lockedFeeColumns).AddRow(
			int64(7), int64(2), "Tuition", 1500.0, 800.0, due, models.FeePartial, "2025-T1",
			financeNow, financeNow, "Ada Obi", "STU-0002"))

	amount := 700.0
	_, err := svc.UpdateFee(context.Background(), &models.Actor{UserID: 5}, 7, &dto.UpdateFeeRequest{Amount: &amount})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinanceService_CreateFeeRejectsAmountRoundingToZero(t *testing.T) {
	svc, mock, activity := newFinanceService(t)

	_, err := svc.CreateFee(context.Background(), &models.Actor{UserID: 5}, &dto.CreateFeeRequest{
		StudentID:   2,
		Description: "Library",
		Amount:      0.004,
		DueDate:     "2025-06-30",
		Term:        "2025-T2",
	})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
	assert.Empty(t, activity.actions())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinanceService_UpdateFeeAmountRoundingToZero(t *testing.T) {
	svc, mock, _ := newFinanceService(t)

	due := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`WHERE f.id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(lockedFeeColumns).AddRow(
			int64(7), int64(2), "Tuition", 1500.0, 0.0, due, models.FeePending, "2025-T1",
			financeNow, financeNow, "Ada Obi", "STU-0002"))

	amount := 0.001
	_, err := svc.UpdateFee(context.Background(), &models.Actor{UserID: 5}, 7, &dto.UpdateFeeRequest{Amount: &amount})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type captureMailer struct {
	sent []int64
	fail map[int64]bool
}

func (m *captureMailer) SendFeeReminder(_ context.Context, r models.FeeReminder) error {
	if m.fail[r.ID] {
		return assert.AnError
	}
	m.sent = append(m.sent, r.ID)
	return nil
}

func TestFinanceService_SendReminders(t *testing.T) {
	svc, mock, _ := newFinanceService(t)
	mailer := &captureMailer{fail: map[int64]bool{2: true}}
	svc.mailer = mailer

	due := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	cols := append(append([]string{}, lockedFeeColumns...), "email")
	rows := pgxmock.NewRows(cols)
	for _, id := range []int64{1, 2, 3} {
		rows.AddRow(id, int64(10+id), "Tuition", 100.0, 0.0, due, models.FeePending, "2025-T1",
			financeNow, financeNow, "Student", "STU", "s@school.test")
	}
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`f.due_date >= \$3 AND f.due_date <= \$4`).
		WithArgs(models.FeePending, models.FeePartial, from, from.AddDate(0, 0, 7), true).
		WillReturnRows(rows)

	sent, err := svc.SendReminders(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []int64{1, 3}, mailer.sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}
