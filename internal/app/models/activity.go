package models

import "time"

// ActivityLog is an append-only audit entry.
type ActivityLog struct {
	ID         int64                  `json:"id"`
	UserID     *int64                 `json:"userId,omitempty"`
	Action     string                 `json:"action" example:"fee.payment.recorded"`
	EntityType string                 `json:"entityType" example:"fee"`
	EntityID   *int64                 `json:"entityId,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	IPAddress  *string                `json:"ipAddress,omitempty"`
	UserAgent  *string                `json:"userAgent,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
	UserName   string                 `json:"userName,omitempty"`
}

// ActivityFilter narrows activity queries. Zero values match everything.
type ActivityFilter struct {
	UserID     *int64
	Action     string
	EntityType string
	EntityID   *int64
	From       *time.Time
	To         *time.Time
	Search     string
}

// ActionCount is the number of log entries for an action.
type ActionCount struct {
	Action string `json:"action"`
	Count  int64  `json:"count"`
}
