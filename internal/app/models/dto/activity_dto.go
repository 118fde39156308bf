package dto

// CreateActivityRequest is a client-reported activity.
type CreateActivityRequest struct {
	Action     string                 `json:"action" binding:"required,max=100"`
	EntityType string                 `json:"entityType" binding:"required,max=50"`
	EntityID   *int64                 `json:"entityId,omitempty" binding:"omitempty,gt=0"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// ActivityQuery binds the activity listing query string.
type ActivityQuery struct {
	UserID     *int64 `form:"userId" binding:"omitempty,gt=0"`
	Action     string `form:"action"`
	EntityType string `form:"entityType"`
	EntityID   *int64 `form:"entityId" binding:"omitempty,gt=0"`
	From       string `form:"from" binding:"omitempty,date"`
	To         string `form:"to" binding:"omitempty,date"`
	Search     string `form:"search"`
}
