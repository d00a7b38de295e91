package tasks

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"venturehub-backend/pkg/database"
	"venturehub-backend/pkg/models"
)

// Store is the storage collaborator the service depends on. It is satisfied
// by every database.DatabaseInterface implementation; keeping it narrow here
// lets the core be exercised against any of them.
type Store interface {
	GetOrganization(orgID string) (*models.Organization, error)
	GetStaffMembership(orgID, userID string) (*models.StaffMembership, error)
	GetStaffMembershipByID(staffID string) (*models.StaffMembership, error)
	GetGoal(goalID string) (*models.Goal, error)
	GetUserByID(id string) (*models.User, error)

	CreateSubtask(st *models.Subtask) error
	GetSubtask(subtaskID string) (*models.Subtask, error)
	ListSubtasksByGoal(goalID string) ([]models.Subtask, error)
	UpdateSubtask(st *models.Subtask) error
	DeleteSubtask(subtaskID string) error

	ListAssignmentsBySubtask(subtaskID string) ([]models.Assignment, error)
	CreateAssignment(a *models.Assignment) error
	DeleteAssignment(subtaskID, staffID string) error
}

// Service is the subtask assignment engine: membership resolution,
// authorization, reconciliation and projection behind one request-scoped,
// stateless surface. Collaborators are injected, never ambient.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// CreateSubtaskInput carries the fields for a new subtask. DesiredStaffIDs
// runs the reconciler once against an empty current set.
type CreateSubtaskInput struct {
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Priority        string     `json:"priority,omitempty"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	DesiredStaffIDs []string   `json:"desired_staff_ids,omitempty"`
}

// UpdateSubtaskInput carries a partial update. Field updates and
// reconciliation are independent: nil pointers leave fields alone, and a nil
// DesiredStaffIDs leaves the assignment set alone (an empty non-nil set
// unassigns everyone).
type UpdateSubtaskInput struct {
	Title           *string    `json:"title,omitempty"`
	Description     *string    `json:"description,omitempty"`
	Status          *string    `json:"status,omitempty"`
	Priority        *string    `json:"priority,omitempty"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	DesiredStaffIDs *[]string  `json:"desired_staff_ids,omitempty"`
}

func (in *UpdateSubtaskInput) hasFieldChanges() bool {
	return in.Title != nil || in.Description != nil || in.Status != nil ||
		in.Priority != nil || in.DueDate != nil
}

// ListSubtasks returns every subtask under the goal with its live assignment
// set, visible to any member of the goal's organization. A goal with no
// subtasks yields an empty list, not an error.
func (s *Service) ListSubtasks(goalID, actorID string) ([]models.SubtaskView, error) {
	goal, err := s.getGoal(goalID)
	if err != nil {
		return nil, err
	}
	m, err := s.ResolveMembership(goal.OrganizationID, actorID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(m, actorID, nil, nil, OpRead); err != nil {
		return nil, err
	}

	subtasks, err := s.store.ListSubtasksByGoal(goalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subtasks: %w", err)
	}

	views := make([]models.SubtaskView, 0, len(subtasks))
	for i := range subtasks {
		st := subtasks[i]
		// PartialProjection: a failed assignment fetch renders the subtask
		// without assignees rather than failing the whole listing
		assignments, err := s.store.ListAssignmentsBySubtask(st.ID)
		if err != nil {
			assignments = nil
		}
		views = append(views, s.Project(&st, assignments))
	}
	return views, nil
}

// CreateSubtask creates a subtask under the goal. Any organization member may
// create; the creator is recorded permanently and never changes.
func (s *Service) CreateSubtask(goalID, actorID string, input CreateSubtaskInput) (*models.SubtaskView, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, invalidInput("title", "title is required")
	}

	goal, err := s.getGoal(goalID)
	if err != nil {
		return nil, err
	}
	m, err := s.ResolveMembership(goal.OrganizationID, actorID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(m, actorID, nil, nil, OpCreate); err != nil {
		return nil, err
	}

	st := &models.Subtask{
		GoalID:      goalID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Status:      "pending",
		Priority:    input.Priority,
		DueDate:     input.DueDate,
		CreatedBy:   actorID,
	}
	if err := s.store.CreateSubtask(st); err != nil {
		return nil, fmt.Errorf("failed to create subtask: %w", err)
	}

	assignments, err := s.Reconcile(st, goal.OrganizationID, input.DesiredStaffIDs, m.AssignerStaffID())
	if err != nil {
		return nil, err
	}

	view := s.Project(st, assignments)
	return &view, nil
}

// UpdateSubtask applies a partial field update and/or reconciles the
// assignment set. Allowed for the owner, a manager, the creator, or a
// current assignee.
func (s *Service) UpdateSubtask(subtaskID, actorID string, input UpdateSubtaskInput) (*models.SubtaskView, error) {
	st, goal, err := s.getSubtaskWithGoal(subtaskID)
	if err != nil {
		return nil, err
	}
	m, err := s.ResolveMembership(goal.OrganizationID, actorID)
	if err != nil {
		return nil, err
	}

	assignments, err := s.store.ListAssignmentsBySubtask(st.ID)
	if err != nil {
		// Authorization needs the real assignment set; no degradation here
		return nil, fmt.Errorf("failed to read assignments: %w", err)
	}

	op := OpUpdate
	if !input.hasFieldChanges() && input.DesiredStaffIDs != nil {
		op = OpReassign
	}
	if err := Authorize(m, actorID, st, assignments, op); err != nil {
		return nil, err
	}

	if input.hasFieldChanges() {
		if input.Title != nil {
			if strings.TrimSpace(*input.Title) == "" {
				return nil, invalidInput("title", "title cannot be empty")
			}
			st.Title = strings.TrimSpace(*input.Title)
		}
		if input.Description != nil {
			st.Description = *input.Description
		}
		if input.Status != nil {
			st.Status = *input.Status
		}
		if input.Priority != nil {
			st.Priority = *input.Priority
		}
		if input.DueDate != nil {
			st.DueDate = input.DueDate
		}
		if err := s.store.UpdateSubtask(st); err != nil {
			return nil, fmt.Errorf("failed to update subtask: %w", err)
		}
	}

	if input.DesiredStaffIDs != nil {
		assignments, err = s.Reconcile(st, goal.OrganizationID, *input.DesiredStaffIDs, m.AssignerStaffID())
		if err != nil {
			return nil, err
		}
	}

	view := s.Project(st, assignments)
	return &view, nil
}

// DeleteSubtask removes a subtask. Creator-only: not even the organization
// owner or a level-5 manager may delete someone else's subtask. Assignment
// rows cascade in storage.
func (s *Service) DeleteSubtask(subtaskID, actorID string) error {
	st, goal, err := s.getSubtaskWithGoal(subtaskID)
	if err != nil {
		return err
	}
	m, err := s.ResolveMembership(goal.OrganizationID, actorID)
	if err != nil {
		return err
	}
	if err := Authorize(m, actorID, st, nil, OpDelete); err != nil {
		return err
	}
	if err := s.store.DeleteSubtask(subtaskID); err != nil {
		return fmt.Errorf("failed to delete subtask: %w", err)
	}
	return nil
}

func (s *Service) getGoal(goalID string) (*models.Goal, error) {
	goal, err := s.store.GetGoal(goalID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("goal %s: %w", goalID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load goal: %w", err)
	}
	return goal, nil
}

func (s *Service) getSubtaskWithGoal(subtaskID string) (*models.Subtask, *models.Goal, error) {
	st, err := s.store.GetSubtask(subtaskID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil, fmt.Errorf("subtask %s: %w", subtaskID, ErrNotFound)
		}
		return nil, nil, fmt.Errorf("failed to load subtask: %w", err)
	}
	goal, err := s.getGoal(st.GoalID)
	if err != nil {
		return nil, nil, err
	}
	return st, goal, nil
}
