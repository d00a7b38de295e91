package tasks

import "venturehub-backend/pkg/models"

// Placeholder identity rendered for assignments whose staff membership or
// user row can no longer be resolved. One dangling reference must not fail
// the listing of everything else (PartialProjection policy).
const (
	unknownName  = "Unknown"
	unknownEmail = "unknown"
)

// Project joins a subtask with its live assignment set, resolving each
// assignment to a display identity. assigned_users is ordered
// first-assigned-first; the legacy assigned_user/assigned_to fields are
// derived from the first element (null when the set is empty).
func (s *Service) Project(subtask *models.Subtask, assignments []models.Assignment) models.SubtaskView {
	view := models.SubtaskView{
		Subtask:       *subtask,
		AssignedUsers: make([]models.AssignedUser, 0, len(assignments)),
	}

	for _, a := range assignments {
		view.AssignedUsers = append(view.AssignedUsers, s.resolveAssignee(a))
	}

	if len(view.AssignedUsers) > 0 {
		first := view.AssignedUsers[0]
		view.AssignedUser = &first
		view.AssignedTo = &first.ID
	}
	return view
}

// resolveAssignee follows Assignment -> StaffMembership -> User. Any broken
// link degrades to the placeholder identity instead of erroring.
func (s *Service) resolveAssignee(a models.Assignment) models.AssignedUser {
	sm, err := s.store.GetStaffMembershipByID(a.StaffID)
	if err != nil {
		return models.AssignedUser{ID: a.StaffID, Name: unknownName, Email: unknownEmail}
	}

	user, err := s.store.GetUserByID(sm.UserID)
	if err != nil {
		return models.AssignedUser{ID: sm.UserID, Name: unknownName, Email: unknownEmail}
	}

	name := user.Name
	if name == "" {
		name = user.Email
	}
	return models.AssignedUser{ID: user.ID, Name: name, Email: user.Email}
}
