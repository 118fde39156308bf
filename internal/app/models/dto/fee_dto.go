package dto

import "github.com/smis-school/smis/internal/app/models"

// CreateFeeRequest bills a student.
type CreateFeeRequest struct {
	StudentID   int64   `json:"studentId" binding:"required,gt=0"`
	Description string  `json:"description" binding:"required,max=255"`
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	DueDate     string  `json:"dueDate" binding:"required,date" example:"2025-03-31"`
	Term        string  `json:"term" binding:"required,max=20"`
}

// UpdateFeeRequest amends a fee; nil fields are left unchanged.
type UpdateFeeRequest struct {
	Description *string  `json:"description,omitempty" binding:"omitempty,max=255"`
	Amount      *float64 `json:"amount,omitempty" binding:"omitempty,gt=0"`
	DueDate     *string  `json:"dueDate,omitempty" binding:"omitempty,date"`
	Term        *string  `json:"term,omitempty" binding:"omitempty,max=20"`
}

// RecordPaymentRequest records an instalment against a fee.
type RecordPaymentRequest struct {
	Amount    float64              `json:"amount" binding:"required,gt=0"`
	Method    models.PaymentMethod `json:"method" binding:"required,oneof=CASH BANK_TRANSFER CARD MOBILE_MONEY CHEQUE"`
	Reference *string              `json:"reference,omitempty" binding:"omitempty,max=100"`
}

// PaymentResult is the fee after a payment together with the payment.
type PaymentResult struct {
	Fee     *models.Fee        `json:"fee"`
	Payment *models.FeePayment `json:"payment"`
}

// StudentFeesResponse lists a student's fees with totals.
type StudentFeesResponse struct {
	Fees   []models.Fee     `json:"fees"`
	Totals models.FeeTotals `json:"totals"`
}

// FinanceSummaryResponse is the per-term finance report.
type FinanceSummaryResponse struct {
	Term           string                     `json:"term,omitempty"`
	Totals         models.FeeTotals           `json:"totals"`
	CollectionRate float64                    `json:"collectionRate"`
	ByStatus       map[models.FeeStatus]int64 `json:"byStatus"`
	ByMethod       map[string]float64         `json:"byMethod"`
}
