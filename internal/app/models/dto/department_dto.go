package dto

// CreateDepartmentRequest represents department creation data
type CreateDepartmentRequest struct {
	Name      string `json:"name" binding:"required,min=2,max=150"`
	Code      string `json:"code" binding:"required,min=2,max=20"`
	HODUserID *int64 `json:"hodUserId,omitempty" binding:"omitempty,gt=0"`
}

// UpdateDepartmentRequest represents department update data
type UpdateDepartmentRequest struct {
	Name      string `json:"name" binding:"required,min=2,max=150"`
	Code      string `json:"code" binding:"required,min=2,max=20"`
	HODUserID *int64 `json:"hodUserId,omitempty" binding:"omitempty,gt=0"`
}
