package dto

import "github.com/smis-school/smis/internal/app/models"

// CreateUserRequest is an admin-created account of any role. Student fields
// are required when role is STUDENT.
type CreateUserRequest struct {
	Email          string          `json:"email" binding:"required,email"`
	Password       string          `json:"password" binding:"required,strongpassword"`
	FirstName      string          `json:"firstName" binding:"required,min=2,max=100"`
	LastName       string          `json:"lastName" binding:"required,min=2,max=100"`
	Role           models.RoleType `json:"role" binding:"required,role"`
	DepartmentID   *int64          `json:"departmentId,omitempty" binding:"omitempty,gt=0"`
	StudentNumber  string          `json:"studentNumber,omitempty" binding:"omitempty,studentnumber"`
	ClassID        *int64          `json:"classId,omitempty" binding:"omitempty,gt=0"`
	EnrollmentYear int             `json:"enrollmentYear,omitempty" binding:"omitempty,min=1990,max=2100"`
	GuardianName   *string         `json:"guardianName,omitempty"`
	GuardianPhone  *string         `json:"guardianPhone,omitempty"`
}

// UpdateUserRequest updates profile fields; nil fields are left unchanged.
type UpdateUserRequest struct {
	Email        *string          `json:"email,omitempty" binding:"omitempty,email"`
	FirstName    *string          `json:"firstName,omitempty" binding:"omitempty,min=2,max=100"`
	LastName     *string          `json:"lastName,omitempty" binding:"omitempty,min=2,max=100"`
	Role         *models.RoleType `json:"role,omitempty" binding:"omitempty,role"`
	DepartmentID *int64           `json:"departmentId,omitempty" binding:"omitempty,gt=0"`
}

// UpdateUserStatusRequest enables or disables an account.
type UpdateUserStatusRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// StudentProfileResponse is a student's own profile.
type StudentProfileResponse struct {
	User    *UserResponse   `json:"user"`
	Student *models.Student `json:"student"`
	Class   *models.Class   `json:"class,omitempty"`
}
