package models

import "time"

// Subtask is a unit of work under a goal. Ownership (created_by) never
// transfers after creation; all other mutable fields go through the
// authorization rules in pkg/tasks.
type Subtask struct {
	ID          string     `json:"id" db:"id"`
	GoalID      string     `json:"goal_id" db:"goal_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description,omitempty" db:"description"`
	Status      string     `json:"status" db:"status"`
	Priority    string     `json:"priority,omitempty" db:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty" db:"due_date"`
	CreatedBy   string     `json:"created_by" db:"created_by"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// Assignment links a subtask to a staff membership. The (subtask_id, staff_id)
// pair is unique — a subtask has at most one assignment row per staff member.
// AssignedBy references the assigner's staff membership and is nil when the
// assigner is the organization owner (owners may hold no membership row).
type Assignment struct {
	ID         string    `json:"id" db:"id"`
	SubtaskID  string    `json:"subtask_id" db:"subtask_id"`
	StaffID    string    `json:"staff_id" db:"staff_id"`
	AssignedBy *string   `json:"assigned_by,omitempty" db:"assigned_by"`
	Status     string    `json:"status" db:"status"`
	AssignedAt time.Time `json:"assigned_at" db:"assigned_at"`
}

// AssignedUser is an assignment resolved to a display identity
type AssignedUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SubtaskView is the response shape for subtasks. assigned_user and
// assigned_to are derived legacy fields: always the first assignee (or null)
// so older clients keep working against the multi-assignee model.
type SubtaskView struct {
	Subtask
	AssignedUsers []AssignedUser `json:"assigned_users"`
	AssignedUser  *AssignedUser  `json:"assigned_user"`
	AssignedTo    *string        `json:"assigned_to"`
}
