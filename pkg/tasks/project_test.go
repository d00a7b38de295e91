package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venturehub-backend/pkg/models"
)

func TestProject(t *testing.T) {
	env := newTestEnv(t)
	userA, smA := env.addStaff(t, "ada", 1)
	userB, smB := env.addStaff(t, "bo", 1)
	st := env.newSubtask(t, "projected")

	t.Run("empty assignment set", func(t *testing.T) {
		view := env.svc.Project(st, nil)
		assert.NotNil(t, view.AssignedUsers)
		assert.Empty(t, view.AssignedUsers)
		assert.Nil(t, view.AssignedUser)
		assert.Nil(t, view.AssignedTo)
	})

	t.Run("legacy fields derive from first assignee", func(t *testing.T) {
		assignments, err := env.svc.Reconcile(st, env.org.ID, []string{smA.ID, smB.ID}, nil)
		require.NoError(t, err)

		view := env.svc.Project(st, assignments)
		require.Len(t, view.AssignedUsers, 2)
		assert.Equal(t, userA.ID, view.AssignedUsers[0].ID)
		assert.Equal(t, userB.ID, view.AssignedUsers[1].ID)

		require.NotNil(t, view.AssignedUser)
		assert.Equal(t, userA.ID, view.AssignedUser.ID)
		require.NotNil(t, view.AssignedTo)
		assert.Equal(t, userA.ID, *view.AssignedTo)
	})

	t.Run("dangling staff id degrades to placeholder", func(t *testing.T) {
		assignments := []models.Assignment{{SubtaskID: st.ID, StaffID: "gone-staff"}}
		view := env.svc.Project(st, assignments)
		require.Len(t, view.AssignedUsers, 1)
		assert.Equal(t, "Unknown", view.AssignedUsers[0].Name)
		assert.Equal(t, "unknown", view.AssignedUsers[0].Email)
		// the id still round-trips so clients can report it
		assert.Equal(t, "gone-staff", view.AssignedUsers[0].ID)
	})

	t.Run("name falls back to email", func(t *testing.T) {
		nameless := &models.User{Email: "nameless@acme.test"}
		require.NoError(t, env.db.CreateUser(nameless))
		smN := &models.StaffMembership{OrganizationID: env.org.ID, UserID: nameless.ID, AccessLevel: 1}
		require.NoError(t, env.db.AddStaffMembership(smN))

		assignments := []models.Assignment{{SubtaskID: st.ID, StaffID: smN.ID}}
		view := env.svc.Project(st, assignments)
		require.Len(t, view.AssignedUsers, 1)
		assert.Equal(t, "nameless@acme.test", view.AssignedUsers[0].Name)
	})
}
