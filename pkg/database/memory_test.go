package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venturehub-backend/pkg/models"
)

func seedOrgWithStaff(t *testing.T, db *MemoryDatabase) (*models.Organization, *models.StaffMembership) {
	t.Helper()
	owner := &models.User{Email: "owner@test.dev"}
	require.NoError(t, db.CreateUser(owner))
	org := &models.Organization{Name: "Org", OwnerID: owner.ID}
	require.NoError(t, db.CreateOrganization(org))

	staffUser := &models.User{Email: "staff@test.dev"}
	require.NoError(t, db.CreateUser(staffUser))
	sm := &models.StaffMembership{OrganizationID: org.ID, UserID: staffUser.ID, AccessLevel: 2}
	require.NoError(t, db.AddStaffMembership(sm))
	return org, sm
}

func TestMemoryUserEmailUnique(t *testing.T) {
	db := NewMemoryDatabase()
	require.NoError(t, db.CreateUser(&models.User{Email: "dup@test.dev"}))
	err := db.CreateUser(&models.User{Email: "DUP@test.dev"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestMemoryStaffMembershipUnique(t *testing.T) {
	db := NewMemoryDatabase()
	org, sm := seedOrgWithStaff(t, db)

	dup := &models.StaffMembership{OrganizationID: org.ID, UserID: sm.UserID, AccessLevel: 5}
	assert.ErrorIs(t, db.AddStaffMembership(dup), ErrDuplicate)

	// same user in a different org is fine
	other := &models.Organization{Name: "Other", OwnerID: sm.UserID}
	require.NoError(t, db.CreateOrganization(other))
	again := &models.StaffMembership{OrganizationID: other.ID, UserID: sm.UserID, AccessLevel: 1}
	assert.NoError(t, db.AddStaffMembership(again))
}

func TestMemoryAssignmentUniqueAndOrdered(t *testing.T) {
	db := NewMemoryDatabase()
	org, sm := seedOrgWithStaff(t, db)

	u2 := &models.User{Email: "second@test.dev"}
	require.NoError(t, db.CreateUser(u2))
	sm2 := &models.StaffMembership{OrganizationID: org.ID, UserID: u2.ID, AccessLevel: 1}
	require.NoError(t, db.AddStaffMembership(sm2))

	goal := &models.Goal{OrganizationID: org.ID, Title: "g", CreatedBy: org.OwnerID}
	require.NoError(t, db.CreateGoal(goal))
	st := &models.Subtask{GoalID: goal.ID, Title: "s", CreatedBy: org.OwnerID}
	require.NoError(t, db.CreateSubtask(st))

	require.NoError(t, db.CreateAssignment(&models.Assignment{SubtaskID: st.ID, StaffID: sm.ID}))
	require.NoError(t, db.CreateAssignment(&models.Assignment{SubtaskID: st.ID, StaffID: sm2.ID}))

	err := db.CreateAssignment(&models.Assignment{SubtaskID: st.ID, StaffID: sm.ID})
	assert.ErrorIs(t, err, ErrDuplicate)

	rows, err := db.ListAssignmentsBySubtask(st.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// insertion order survives
	assert.Equal(t, sm.ID, rows[0].StaffID)
	assert.Equal(t, sm2.ID, rows[1].StaffID)
}

func TestMemoryDeleteSubtaskCascades(t *testing.T) {
	db := NewMemoryDatabase()
	org, sm := seedOrgWithStaff(t, db)

	goal := &models.Goal{OrganizationID: org.ID, Title: "g", CreatedBy: org.OwnerID}
	require.NoError(t, db.CreateGoal(goal))
	st := &models.Subtask{GoalID: goal.ID, Title: "s", CreatedBy: org.OwnerID}
	require.NoError(t, db.CreateSubtask(st))
	require.NoError(t, db.CreateAssignment(&models.Assignment{SubtaskID: st.ID, StaffID: sm.ID}))

	require.NoError(t, db.DeleteSubtask(st.ID))

	_, err := db.GetSubtask(st.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	rows, err := db.ListAssignmentsBySubtask(st.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMemoryDeleteGoalCascades(t *testing.T) {
	db := NewMemoryDatabase()
	org, sm := seedOrgWithStaff(t, db)

	goal := &models.Goal{OrganizationID: org.ID, Title: "g", CreatedBy: org.OwnerID}
	require.NoError(t, db.CreateGoal(goal))
	st := &models.Subtask{GoalID: goal.ID, Title: "s", CreatedBy: org.OwnerID}
	require.NoError(t, db.CreateSubtask(st))
	require.NoError(t, db.CreateAssignment(&models.Assignment{SubtaskID: st.ID, StaffID: sm.ID}))

	require.NoError(t, db.DeleteGoal(goal.ID))

	_, err := db.GetSubtask(st.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	rows, err := db.ListAssignmentsBySubtask(st.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMemoryInvitationByToken(t *testing.T) {
	db := NewMemoryDatabase()
	org, _ := seedOrgWithStaff(t, db)

	inv := &models.StaffInvitation{
		OrganizationID: org.ID,
		Email:          "new@test.dev",
		InviterID:      org.OwnerID,
		AccessLevel:    3,
		Token:          "tok-123",
		Status:         models.InvitationPending,
	}
	require.NoError(t, db.CreateInvitation(inv))

	got, err := db.GetInvitationByToken("tok-123")
	require.NoError(t, err)
	assert.Equal(t, inv.ID, got.ID)
	assert.Equal(t, 3, got.AccessLevel)

	_, err = db.GetInvitationByToken("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryListUserOrganizations(t *testing.T) {
	db := NewMemoryDatabase()
	org, sm := seedOrgWithStaff(t, db)

	// staff member sees the org through their membership
	orgs, err := db.ListUserOrganizations(sm.UserID)
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, org.ID, orgs[0].ID)

	// owner sees it through ownership
	orgs, err = db.ListUserOrganizations(org.OwnerID)
	require.NoError(t, err)
	assert.Len(t, orgs, 1)
}
