package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venturehub-backend/pkg/models"
)

func TestAuthorize(t *testing.T) {
	owner := Membership{Kind: MembershipOwner}
	manager := Membership{Kind: MembershipStaff, StaffID: "sm-manager", AccessLevel: 4}
	staff := Membership{Kind: MembershipStaff, StaffID: "sm-staff", AccessLevel: 3}
	assignee := Membership{Kind: MembershipStaff, StaffID: "sm-assignee", AccessLevel: 1}
	none := Membership{Kind: MembershipNone}

	subtask := &models.Subtask{ID: "st-1", CreatedBy: "user-creator"}
	assignments := []models.Assignment{
		{SubtaskID: "st-1", StaffID: "sm-assignee"},
		{SubtaskID: "st-1", StaffID: "sm-other"},
	}

	cases := []struct {
		name       string
		m          Membership
		actorID    string
		op         Operation
		wantReason string // empty means allowed
	}{
		{"owner reads", owner, "user-owner", OpRead, ""},
		{"staff reads", staff, "user-staff", OpRead, ""},
		{"outsider read denied", none, "user-out", OpRead, ReasonNotMember},
		{"staff creates", staff, "user-staff", OpCreate, ""},
		{"outsider create denied", none, "user-out", OpCreate, ReasonNotMember},

		{"owner updates", owner, "user-owner", OpUpdate, ""},
		{"manager updates", manager, "user-manager", OpUpdate, ""},
		{"creator updates", staff, "user-creator", OpUpdate, ""},
		{"assignee updates", assignee, "user-assignee", OpUpdate, ""},
		{"level 3 bystander update denied", staff, "user-staff", OpUpdate, ReasonNotAssignee},
		{"outsider update denied", none, "user-out", OpUpdate, ReasonNotAssignee},

		{"owner reassigns", owner, "user-owner", OpReassign, ""},
		{"manager reassigns", manager, "user-manager", OpReassign, ""},
		{"assignee reassigns", assignee, "user-assignee", OpReassign, ""},
		{"bystander reassign denied", staff, "user-staff", OpReassign, ReasonNotAssignee},

		{"creator deletes", staff, "user-creator", OpDelete, ""},
		{"owner delete denied", owner, "user-owner", OpDelete, ReasonNotCreator},
		{"manager delete denied", manager, "user-manager", OpDelete, ReasonNotCreator},
		{"assignee delete denied", assignee, "user-assignee", OpDelete, ReasonNotCreator},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(tc.m, tc.actorID, subtask, assignments, tc.op)
			if tc.wantReason == "" {
				assert.NoError(t, err)
				return
			}
			var forbidden *ForbiddenError
			require.ErrorAs(t, err, &forbidden)
			assert.Equal(t, tc.wantReason, forbidden.Reason)
			assert.Equal(t, tc.op, forbidden.Op)
		})
	}
}

func TestAuthorizeManagerLevelBoundary(t *testing.T) {
	subtask := &models.Subtask{ID: "st-1", CreatedBy: "someone-else"}

	level3 := Membership{Kind: MembershipStaff, StaffID: "sm-3", AccessLevel: 3}
	level4 := Membership{Kind: MembershipStaff, StaffID: "sm-4", AccessLevel: 4}
	level5 := Membership{Kind: MembershipStaff, StaffID: "sm-5", AccessLevel: 5}

	assert.Error(t, Authorize(level3, "u3", subtask, nil, OpUpdate))
	assert.NoError(t, Authorize(level4, "u4", subtask, nil, OpUpdate))
	assert.NoError(t, Authorize(level5, "u5", subtask, nil, OpUpdate))
}

func TestOperationString(t *testing.T) {
	assert.Equal(t, "read", OpRead.String())
	assert.Equal(t, "create", OpCreate.String())
	assert.Equal(t, "update", OpUpdate.String())
	assert.Equal(t, "delete", OpDelete.String())
	assert.Equal(t, "reassign", OpReassign.String())
}
