package models

import (
	"math"
	"time"
)

// Fee is an amount billed to a student.
type Fee struct {
	ID          int64     `json:"id"`
	StudentID   int64     `json:"studentId"`
	Description string    `json:"description" example:"Tuition"`
	Amount      float64   `json:"amount" example:"1500"`
	AmountPaid  float64   `json:"amountPaid" example:"500"`
	DueDate     time.Time `json:"dueDate"`
	Status      FeeStatus `json:"status" example:"PARTIAL"`
	Term        string    `json:"term" example:"2024-T1"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	StudentName   string `json:"studentName,omitempty"`
	StudentNumber string `json:"studentNumber,omitempty"`
}

// RoundMoney rounds to cents.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// Outstanding is the unpaid balance, never negative.
func (f *Fee) Outstanding() float64 {
	return math.Max(0, RoundMoney(f.Amount-f.AmountPaid))
}

// DeriveStatus computes the status from amounts and the due date. A fee with
// any balance left after its due date is overdue.
func (f *Fee) DeriveStatus(now time.Time) FeeStatus {
	switch {
	case f.Outstanding() == 0:
		return FeePaid
	case now.After(endOfDay(f.DueDate)):
		return FeeOverdue
	case f.AmountPaid > 0:
		return FeePartial
	default:
		return FeePending
	}
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}

// FeePayment is one instalment against a fee.
type FeePayment struct {
	ID         int64         `json:"id"`
	FeeID      int64         `json:"feeId"`
	Amount     float64       `json:"amount"`
	Method     PaymentMethod `json:"method"`
	Reference  *string       `json:"reference,omitempty"`
	RecordedBy int64         `json:"recordedBy"`
	PaidAt     time.Time     `json:"paidAt"`
}

// FeeFilter narrows fee listings.
type FeeFilter struct {
	Status    FeeStatus
	StudentID int64
	Term      string
	DueBefore *time.Time
}

// FeeTotals aggregates billed and collected amounts.
type FeeTotals struct {
	Billed       float64 `json:"billed"`
	Collected    float64 `json:"collected"`
	Outstanding  float64 `json:"outstanding"`
	Overdue      float64 `json:"overdue"`
	FeeCount     int64   `json:"feeCount"`
	OverdueCount int64   `json:"overdueCount"`
}

// CollectionRate is collected / billed as a percentage.
func (t FeeTotals) CollectionRate() float64 {
	if t.Billed == 0 {
		return 0
	}
	return RoundMoney(t.Collected / t.Billed * 100)
}

// FeeReminder is an unpaid fee together with where to send a reminder.
type FeeReminder struct {
	Fee
	Email string `json:"email"`
}
