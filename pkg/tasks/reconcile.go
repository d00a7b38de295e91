package tasks

import (
	"errors"
	"fmt"
	"time"

	"venturehub-backend/pkg/database"
	"venturehub-backend/pkg/models"
)

// UnassignedSentinel is the legacy "no assignee" marker some clients still
// send inside the desired set. It is dropped during normalization.
const UnassignedSentinel = "unassigned"

// AssignedStatus is the status new assignment rows are created with
const AssignedStatus = "assigned"

// NormalizeDesired drops empty entries and the unassigned sentinel and
// deduplicates while preserving first-seen order.
func NormalizeDesired(desired []string) []string {
	out := make([]string, 0, len(desired))
	seen := make(map[string]bool, len(desired))
	for _, id := range desired {
		if id == "" || id == UnassignedSentinel {
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Reconcile brings the subtask's assignment set to the desired staff ids by
// applying the minimal insert/delete diff. Rows in both sets are left
// untouched, preserving their original assigned_at/assigned_by/status.
//
// Every desired staff id must be a membership of the subtask's organization;
// an invalid id rejects the whole call before any row is written. An empty
// desired set removes all assignments. Calling twice with the same desired
// set is a no-op on the second call.
//
// A uniqueness violation on insert means a concurrent reconciliation won the
// race; it surfaces as ErrConflict with any already-applied deletes left in
// place, and the caller retries from fresh state.
func (s *Service) Reconcile(subtask *models.Subtask, orgID string, desired []string, assignedBy *string) ([]models.Assignment, error) {
	desired = NormalizeDesired(desired)

	// Validate the whole desired set up front: reject-all, not best-effort
	for _, staffID := range desired {
		sm, err := s.store.GetStaffMembershipByID(staffID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return nil, invalidInput("staff_id", fmt.Sprintf("staff membership %s does not exist", staffID))
			}
			return nil, fmt.Errorf("failed to validate staff membership: %w", err)
		}
		if sm.OrganizationID != orgID {
			return nil, invalidInput("staff_id", fmt.Sprintf("staff membership %s belongs to another organization", staffID))
		}
	}

	current, err := s.store.ListAssignmentsBySubtask(subtask.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read current assignments: %w", err)
	}

	inDesired := make(map[string]bool, len(desired))
	for _, id := range desired {
		inDesired[id] = true
	}
	inCurrent := make(map[string]bool, len(current))
	for _, a := range current {
		inCurrent[a.StaffID] = true
	}

	for _, a := range current {
		if inDesired[a.StaffID] {
			continue
		}
		if err := s.store.DeleteAssignment(subtask.ID, a.StaffID); err != nil {
			return nil, fmt.Errorf("failed to remove assignment %s: %w", a.StaffID, err)
		}
	}

	for _, staffID := range desired {
		if inCurrent[staffID] {
			continue
		}
		a := &models.Assignment{
			SubtaskID:  subtask.ID,
			StaffID:    staffID,
			AssignedBy: assignedBy,
			Status:     AssignedStatus,
			AssignedAt: time.Now(),
		}
		if err := s.store.CreateAssignment(a); err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				return nil, ErrConflict
			}
			return nil, fmt.Errorf("failed to create assignment %s: %w", staffID, err)
		}
	}

	// Re-read rather than patch the in-memory set: the diff is always
	// computed against the store's current state
	final, err := s.store.ListAssignmentsBySubtask(subtask.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read reconciled assignments: %w", err)
	}
	return final, nil
}
