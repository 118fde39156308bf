package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/models/dto"
	"github.com/smis-school/smis/internal/app/repositories"
	"github.com/smis-school/smis/internal/db"
	"github.com/smis-school/smis/internal/pkg/apperrors"
	"github.com/smis-school/smis/internal/pkg/email"
	"github.com/smis-school/smis/internal/pkg/helpers"
	"github.com/smis-school/smis/internal/pkg/report"
)

const recentPaymentsLimit = 10

// FinanceService manages fees and payments.
type FinanceService interface {
	Dashboard(ctx context.Context) (*dto.FinanceDashboard, error)
	ListFees(ctx context.Context, filter models.FeeFilter, page, size int) (*dto.PaginatedResponse, error)
	CreateFee(ctx context.Context, actor *models.Actor, req *dto.CreateFeeRequest) (*models.Fee, error)
	GetFee(ctx context.Context, id int64) (*models.Fee, error)
	UpdateFee(ctx context.Context, actor *models.Actor, id int64, req *dto.UpdateFeeRequest) (*models.Fee, error)
	DeleteFee(ctx context.Context, actor *models.Actor, id int64) error
	RecordPayment(ctx context.Context, actor *models.Actor, feeID int64, req *dto.RecordPaymentRequest) (*dto.PaymentResult, error)
	ListPayments(ctx context.Context, feeID int64) ([]models.FeePayment, error)
	ExportFees(ctx context.Context, filter models.FeeFilter, w io.Writer) error
	Summary(ctx context.Context, term string) (*dto.FinanceSummaryResponse, error)
	MarkOverdue(ctx context.Context) (int64, error)
	SendReminders(ctx context.Context, daysAhead int) (int, error)
}

// FinanceServiceImpl implements FinanceService.
type FinanceServiceImpl struct {
	conn     db.DBTX
	feeRepo  *repositories.FeeRepository
	userRepo *repositories.UserRepository
	mailer   email.Mailer
	activity ActivityService
	cache    *DashboardCache
	logger   zerolog.Logger
	now      func() time.Time
}

func NewFinanceService(conn db.DBTX, repos *repositories.Repositories, mailer email.Mailer, activity ActivityService, cache *DashboardCache, logger zerolog.Logger) *FinanceServiceImpl {
	return &FinanceServiceImpl{
		conn:     conn,
		feeRepo:  repos.FeeRepository,
		userRepo: repos.UserRepository,
		mailer:   mailer,
		activity: activity,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *FinanceServiceImpl) Dashboard(ctx context.Context) (*dto.FinanceDashboard, error) {
	return remember(ctx, s.cache, financeDashKey, func(ctx context.Context) (*dto.FinanceDashboard, error) {
		totals, err := s.feeRepo.Totals(ctx, models.FeeFilter{})
		if err != nil {
			return nil, err
		}
		byStatus, err := s.feeRepo.CountByStatus(ctx, "")
		if err != nil {
			return nil, err
		}
		recent, err := s.feeRepo.RecentPayments(ctx, recentPaymentsLimit)
		if err != nil {
			return nil, err
		}
		return &dto.FinanceDashboard{
			Totals:         totals,
			CollectionRate: totals.CollectionRate(),
			ByStatus:       byStatus,
			RecentPayments: recent,
		}, nil
	})
}

func (s *FinanceServiceImpl) ListFees(ctx context.Context, filter models.FeeFilter, page, size int) (*dto.PaginatedResponse, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperrors.NewValidationError("unknown fee status " + string(filter.Status))
	}
	offset, limit := helpers.CalculateOffsetLimit(page, size)
	fees, total, err := s.feeRepo.List(ctx, filter, offset, limit)
	if err != nil {
		return nil, err
	}
	resp := helpers.NewPaginatedResponse(fees, total, page, int(limit))
	return &resp, nil
}

func (s *FinanceServiceImpl) CreateFee(ctx context.Context, actor *models.Actor, req *dto.CreateFeeRequest) (*models.Fee, error) {
	due, err := helpers.ParseDate(req.DueDate)
	if err != nil {
		return nil, apperrors.NewValidationError("dueDate must be formatted YYYY-MM-DD")
	}
	amount := models.RoundMoney(req.Amount)
	if amount <= 0 {
		return nil, apperrors.NewValidationError("amount must be at least 0.01")
	}
	if _, err := s.userRepo.GetStudentByID(ctx, req.StudentID); err != nil {
		return nil, err
	}

	fee := &models.Fee{
		StudentID:   req.StudentID,
		Description: strings.TrimSpace(req.Description),
		Amount:      amount,
		DueDate:     due,
		Term:        strings.TrimSpace(req.Term),
	}
	fee.Status = fee.DeriveStatus(s.now())
	if err := s.feeRepo.Create(ctx, fee); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor, ActionFeeCreated, "fee", int64Ptr(fee.ID),
		map[string]interface{}{"studentId": fee.StudentID, "amount": fee.Amount, "term": fee.Term})
	s.invalidate(ctx, fee.StudentID)
	return s.feeRepo.GetByID(ctx, fee.ID)
}

func (s *FinanceServiceImpl) GetFee(ctx context.Context, id int64) (*models.Fee, error) {
	return s.feeRepo.GetByID(ctx, id)
}

// UpdateFee edits a fee. The amount may not drop below what was already
// paid; the status is recomputed.
func (s *FinanceServiceImpl) UpdateFee(ctx context.Context, actor *models.Actor, id int64, req *dto.UpdateFeeRequest) (*models.Fee, error) {
	fee, err := s.feeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Description != nil {
		fee.Description = strings.TrimSpace(*req.Description)
	}
	if req.Amount != nil {
		fee.Amount = models.RoundMoney(*req.Amount)
		if fee.Amount <= 0 {
			return nil, apperrors.NewValidationError("amount must be at least 0.01")
		}
	}
	if req.DueDate != nil {
		due, err := helpers.ParseDate(*req.DueDate)
		if err != nil {
			return nil, apperrors.NewValidationError("dueDate must be formatted YYYY-MM-DD")
		}
		fee.DueDate = due
	}
	if req.Term != nil {
		fee.Term = strings.TrimSpace(*req.Term)
	}
	if fee.Amount < fee.AmountPaid {
		return nil, apperrors.NewValidationError(fmt.Sprintf("amount cannot be less than the %.2f already paid", fee.AmountPaid))
	}
	fee.Status = fee.DeriveStatus(s.now())

	if err := s.feeRepo.Update(ctx, fee); err != nil {
		return nil, err
	}
	s.activity.Record(ctx, actor, ActionFeeUpdated, "fee", int64Ptr(id),
		map[string]interface{}{"amount": fee.Amount, "status": fee.Status})
	s.invalidate(ctx, fee.StudentID)
	return fee, nil
}

func (s *FinanceServiceImpl) DeleteFee(ctx context.Context, actor *models.Actor, id int64) error {
	fee, err := s.feeRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.feeRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.activity.Record(ctx, actor, ActionFeeDeleted, "fee", int64Ptr(id),
		map[string]interface{}{"studentId": fee.StudentID, "amount": fee.Amount})
	s.invalidate(ctx, fee.StudentID)
	return nil
}

// RecordPayment applies a payment to a fee. The fee row is locked for the
// duration of the transaction so concurrent payments cannot overshoot the
// balance.
func (s *FinanceServiceImpl) RecordPayment(ctx context.Context, actor *models.Actor, feeID int64, req *dto.RecordPaymentRequest) (*dto.PaymentResult, error) {
	if !req.Method.IsValid() {
		return nil, apperrors.NewValidationError("unknown payment method " + string(req.Method))
	}
	amount := models.RoundMoney(req.Amount)
	if amount <= 0 {
		return nil, apperrors.NewValidationError("amount must be greater than 0")
	}

	var result dto.PaymentResult
	err := db.WithTransaction(ctx, s.conn, &s.logger, func(ctx context.Context, tx pgx.Tx) error {
		repo := s.feeRepo.WithTx(tx)
		fee, err := repo.GetForUpdate(ctx, feeID)
		if err != nil {
			return err
		}
		outstanding := fee.Outstanding()
		if outstanding == 0 {
			return apperrors.ErrFeeSettled
		}
		if amount > outstanding {
			return apperrors.NewCustomError(apperrors.ErrOverpayment,
				fmt.Sprintf("payment of %.2f exceeds outstanding balance of %.2f", amount, outstanding)).
				WithDetails(map[string]interface{}{"outstanding": outstanding})
		}

		fee.AmountPaid = models.RoundMoney(fee.AmountPaid + amount)
		fee.Status = fee.DeriveStatus(s.now())
		if err := repo.ApplyPayment(ctx, fee.ID, fee.AmountPaid, fee.Status); err != nil {
			return err
		}

		payment := &models.FeePayment{
			FeeID:      fee.ID,
			Amount:     amount,
			Method:     req.Method,
			Reference:  req.Reference,
			RecordedBy: actor.UserID,
		}
		if err := repo.InsertPayment(ctx, payment); err != nil {
			return err
		}
		result = dto.PaymentResult{Fee: fee, Payment: payment}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("feeID", feeID).Float64("amount", amount).Str("status", string(result.Fee.Status)).Msg("Payment recorded")
	s.activity.Record(ctx, actor, ActionPaymentRecorded, "fee", int64Ptr(feeID), map[string]interface{}{
		"paymentId": result.Payment.ID, "amount": amount, "method": req.Method, "status": result.Fee.Status,
	})
	s.invalidate(ctx, result.Fee.StudentID)
	return &result, nil
}

func (s *FinanceServiceImpl) ListPayments(ctx context.Context, feeID int64) ([]models.FeePayment, error) {
	if _, err := s.feeRepo.GetByID(ctx, feeID); err != nil {
		return nil, err
	}
	return s.feeRepo.ListPayments(ctx, feeID)
}

// ExportFees writes every fee matching filter as an xlsx workbook.
func (s *FinanceServiceImpl) ExportFees(ctx context.Context, filter models.FeeFilter, w io.Writer) error {
	fees, _, err := s.feeRepo.List(ctx, filter, 0, 0)
	if err != nil {
		return err
	}
	return report.WriteFees(w, fees)
}

func (s *FinanceServiceImpl) Summary(ctx context.Context, term string) (*dto.FinanceSummaryResponse, error) {
	totals, err := s.feeRepo.Totals(ctx, models.FeeFilter{Term: term})
	if err != nil {
		return nil, err
	}
	byStatus, err := s.feeRepo.CountByStatus(ctx, term)
	if err != nil {
		return nil, err
	}
	byMethod, err := s.feeRepo.PaymentsByMethod(ctx, term)
	if err != nil {
		return nil, err
	}
	return &dto.FinanceSummaryResponse{
		Term:           term,
		Totals:         totals,
		CollectionRate: totals.CollectionRate(),
		ByStatus:       byStatus,
		ByMethod:       byMethod,
	}, nil
}

// MarkOverdue flags unpaid fees whose due date has passed.
func (s *FinanceServiceImpl) MarkOverdue(ctx context.Context) (int64, error) {
	n, err := s.feeRepo.MarkOverdue(ctx, helpers.StartOfDay(s.now().UTC()))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info().Int64("count", n).Msg("Marked fees overdue")
		s.cache.Invalidate(ctx, financeDashKey)
		s.cache.InvalidatePrefix(ctx, studentDashPrefix)
	}
	return n, nil
}

// SendReminders emails students whose unpaid fees fall due within daysAhead
// days. Individual failures are logged and skipped.
func (s *FinanceServiceImpl) SendReminders(ctx context.Context, daysAhead int) (int, error) {
	if s.mailer == nil {
		return 0, nil
	}
	from := helpers.StartOfDay(s.now().UTC())
	to := from.AddDate(0, 0, daysAhead)
	due, err := s.feeRepo.ListDueBetween(ctx, from, to)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, r := range due {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if err := s.mailer.SendFeeReminder(ctx, r); err != nil {
			s.logger.Warn().Err(err).Int64("feeID", r.ID).Str("email", r.Email).Msg("Failed to send fee reminder")
			continue
		}
		sent++
	}
	s.logger.Info().Int("due", len(due)).Int("sent", sent).Msg("Fee reminders processed")
	return sent, nil
}

func (s *FinanceServiceImpl) invalidate(ctx context.Context, studentID int64) {
	s.cache.Invalidate(ctx, financeDashKey, studentDashKey(studentID))
}
