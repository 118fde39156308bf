package models

import "time"

// Department groups courses, classes and staff under a head of department.
type Department struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	HODUserID *int64    `json:"hodUserId,omitempty"`
	HODName   string    `json:"hodName,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
