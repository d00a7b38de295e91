package models

import "time"

// Organization represents a tenant boundary (one owner + staff members)
type Organization struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	OwnerID     string    `json:"owner_id" db:"owner_id"`
	Description string    `json:"description,omitempty" db:"description"`
	Avatar      string    `json:"avatar,omitempty" db:"avatar"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// StaffMembership relates a user to an organization with an ordinal access level.
// A user holds at most one active membership per organization; level 4 and above
// carries organization-wide update authority ("manager").
type StaffMembership struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	UserID         string    `json:"user_id" db:"user_id"`
	AccessLevel    int       `json:"access_level" db:"access_level"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// StaffMember is a membership joined with the user's display identity
// (used by the members listing)
type StaffMember struct {
	StaffMembership
	Name  string `json:"name"`
	Email string `json:"email"`
}
