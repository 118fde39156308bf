package models

// RoleType defines the user role type
type RoleType string

const (
	RoleStudent RoleType = "STUDENT"
	RoleTeacher RoleType = "TEACHER"
	RoleHOD     RoleType = "HOD"
	RoleFinance RoleType = "FINANCE"
	RoleAdmin   RoleType = "ADMIN"
)

// AllRoles lists every role in display order.
var AllRoles = []RoleType{RoleStudent, RoleTeacher, RoleHOD, RoleFinance, RoleAdmin}

// IsValid reports whether r is a known role.
func (r RoleType) IsValid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// IsStaff reports whether the role teaches or heads a department.
func (r RoleType) IsStaff() bool {
	return r == RoleTeacher || r == RoleHOD
}

// AttendanceStatus is the mark recorded for a student on a date.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceLate    AttendanceStatus = "LATE"
	AttendanceExcused AttendanceStatus = "EXCUSED"
)

func (s AttendanceStatus) IsValid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused:
		return true
	}
	return false
}

// CountsAsPresent reports whether the mark contributes to the attendance rate.
func (s AttendanceStatus) CountsAsPresent() bool {
	return s == AttendancePresent || s == AttendanceLate
}

// FeeStatus tracks the settlement state of a fee.
type FeeStatus string

const (
	FeePending FeeStatus = "PENDING"
	FeePartial FeeStatus = "PARTIAL"
	FeePaid    FeeStatus = "PAID"
	FeeOverdue FeeStatus = "OVERDUE"
)

func (s FeeStatus) IsValid() bool {
	switch s {
	case FeePending, FeePartial, FeePaid, FeeOverdue:
		return true
	}
	return false
}

// PaymentMethod is how a fee payment was made.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "CASH"
	PaymentBank   PaymentMethod = "BANK_TRANSFER"
	PaymentCard   PaymentMethod = "CARD"
	PaymentMobile PaymentMethod = "MOBILE_MONEY"
	PaymentCheque PaymentMethod = "CHEQUE"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCash, PaymentBank, PaymentCard, PaymentMobile, PaymentCheque:
		return true
	}
	return false
}
