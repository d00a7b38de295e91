package models

import "time"

// Goal belongs to exactly one organization and groups subtasks.
// The core only reads it to resolve the owning organization.
type Goal struct {
	ID             string     `json:"id" db:"id"`
	OrganizationID string     `json:"organization_id" db:"organization_id"`
	Title          string     `json:"title" db:"title"`
	Description    string     `json:"description,omitempty" db:"description"`
	Status         string     `json:"status,omitempty" db:"status"`
	TargetDate     *time.Time `json:"target_date,omitempty" db:"target_date"`
	CreatedBy      string     `json:"created_by" db:"created_by"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}
