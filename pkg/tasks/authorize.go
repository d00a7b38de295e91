package tasks

import "venturehub-backend/pkg/models"

// Operation is the closed set of actions the evaluator knows about
type Operation int

const (
	OpRead Operation = iota
	OpCreate
	OpUpdate
	OpDelete
	OpReassign
)

func (op Operation) String() string {
	switch op {
	case OpRead:
		return "read"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpReassign:
		return "reassign"
	default:
		return "unknown"
	}
}

// Authorize decides whether the actor may perform op. subtask and assignments
// are only consulted for subtask-scoped operations (update/delete/reassign);
// read and create are organization-wide.
//
// Precedence, first match wins:
//   - read/create: owner or any staff membership
//   - update/reassign: owner, manager (access level >= 4), the subtask's
//     creator, or a current assignee of that specific subtask
//   - delete: the creator only — deliberately the most restrictive rule, so a
//     manager who did not author the task cannot destroy it
//
// Returns nil on allow, *ForbiddenError on deny. Existence checks happen
// before this is called; a deny is never downgraded to a partial success.
func Authorize(m Membership, actorID string, subtask *models.Subtask, assignments []models.Assignment, op Operation) error {
	switch op {
	case OpRead, OpCreate:
		if m.IsMember() {
			return nil
		}
		return &ForbiddenError{Op: op, Reason: ReasonNotMember}

	case OpUpdate, OpReassign:
		if m.Kind == MembershipOwner {
			return nil
		}
		if m.IsManager() {
			return nil
		}
		if subtask != nil && subtask.CreatedBy == actorID {
			return nil
		}
		if m.Kind == MembershipStaff {
			for _, a := range assignments {
				if a.StaffID == m.StaffID {
					return nil
				}
			}
		}
		return &ForbiddenError{Op: op, Reason: ReasonNotAssignee}

	case OpDelete:
		if subtask != nil && subtask.CreatedBy == actorID {
			return nil
		}
		return &ForbiddenError{Op: op, Reason: ReasonNotCreator}

	default:
		return &ForbiddenError{Op: op, Reason: ReasonNotMember}
	}
}
