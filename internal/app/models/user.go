package models

import (
	"time"
)

// User is a row of the users table. Every role shares it.
type User struct {
	ID           int64      `json:"id" example:"1"`
	Email        string     `json:"email" example:"jane.doe@school.test"`
	Password     string     `json:"-"`
	FirstName    string     `json:"firstName" example:"Jane"`
	LastName     string     `json:"lastName" example:"Doe"`
	RoleType     RoleType   `json:"role" example:"TEACHER"`
	DepartmentID *int64     `json:"departmentId,omitempty" example:"2"`
	IsActive     bool       `json:"isActive" example:"true"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// FullName joins first and last names.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// Student is the students row joined with the owning user.
type Student struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"userId"`
	StudentNumber  string    `json:"studentNumber" example:"STU2024001"`
	ClassID        *int64    `json:"classId,omitempty"`
	EnrollmentYear int       `json:"enrollmentYear" example:"2024"`
	GuardianName   *string   `json:"guardianName,omitempty"`
	GuardianPhone  *string   `json:"guardianPhone,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`

	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	DepartmentID *int64 `json:"departmentId,omitempty"`
	ClassName    string `json:"className,omitempty"`
}

// RefreshToken is a persisted refresh token.
type RefreshToken struct {
	ID         int64
	Token      string
	UserID     int64
	ExpiryDate time.Time
	IsRevoked  bool
	CreatedAt  time.Time
}

// IsUsable reports whether the token can still be exchanged.
func (t *RefreshToken) IsUsable(now time.Time) bool {
	return !t.IsRevoked && now.Before(t.ExpiryDate)
}

// UserFilter narrows user listings.
type UserFilter struct {
	Role         RoleType
	DepartmentID *int64
	IsActive     *bool
	Search       string
	SortBy       string
	SortOrder    string
}

// StudentFilter narrows student listings.
type StudentFilter struct {
	DepartmentID *int64
	ClassID      *int64
	Search       string
}
