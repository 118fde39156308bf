package dto

import "github.com/smis-school/smis/internal/app/models"

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" example:"admin@smis.local"`
	Password string `json:"password" binding:"required" example:"ChangeMe123"`
}

// RegisterRequest is a student self-registration.
type RegisterRequest struct {
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required,strongpassword"`
	FirstName      string `json:"firstName" binding:"required,min=2,max=100"`
	LastName       string `json:"lastName" binding:"required,min=2,max=100"`
	StudentNumber  string `json:"studentNumber" binding:"required,studentnumber"`
	DepartmentID   *int64 `json:"departmentId,omitempty" binding:"omitempty,gt=0"`
	EnrollmentYear int    `json:"enrollmentYear,omitempty" binding:"omitempty,min=1990,max=2100"`
}

// RefreshTokenRequest carries a refresh token for rotation or logout.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// ChangePasswordRequest represents a password change request
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,strongpassword"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	TokenType    string        `json:"tokenType" example:"Bearer"`
	ExpiresIn    int64         `json:"expiresIn" example:"3600"`
	User         *UserResponse `json:"user,omitempty"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID            int64           `json:"id"`
	Email         string          `json:"email"`
	FirstName     string          `json:"firstName"`
	LastName      string          `json:"lastName"`
	Role          models.RoleType `json:"role"`
	DepartmentID  *int64          `json:"departmentId,omitempty"`
	IsActive      bool            `json:"isActive"`
	LastLoginAt   *string         `json:"lastLoginAt,omitempty"`
	StudentID     *int64          `json:"studentId,omitempty"`
	StudentNumber string          `json:"studentNumber,omitempty"`
}

// NewUserResponse maps a user model to its public view.
func NewUserResponse(u *models.User) *UserResponse {
	if u == nil {
		return nil
	}
	resp := &UserResponse{
		ID:           u.ID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Role:         u.RoleType,
		DepartmentID: u.DepartmentID,
		IsActive:     u.IsActive,
	}
	if u.LastLoginAt != nil {
		s := u.LastLoginAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		resp.LastLoginAt = &s
	}
	return resp
}
