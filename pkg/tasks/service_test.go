package tasks

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venturehub-backend/pkg/database"
	"venturehub-backend/pkg/models"
)

// testEnv wires a Service against the in-memory database with one
// organization, its owner and a goal already seeded.
type testEnv struct {
	db    *database.MemoryDatabase
	svc   *Service
	org   *models.Organization
	owner *models.User
	goal  *models.Goal
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := database.NewMemoryDatabase()

	owner := &models.User{Email: "owner@acme.test", Name: "Olive Owner"}
	require.NoError(t, db.CreateUser(owner))

	org := &models.Organization{Name: "Acme", OwnerID: owner.ID}
	require.NoError(t, db.CreateOrganization(org))

	goal := &models.Goal{OrganizationID: org.ID, Title: "Launch", CreatedBy: owner.ID}
	require.NoError(t, db.CreateGoal(goal))

	return &testEnv{db: db, svc: NewService(db), org: org, owner: owner, goal: goal}
}

// addStaff creates a user plus a staff membership at the given access level
// and returns both.
func (e *testEnv) addStaff(t *testing.T, name string, level int) (*models.User, *models.StaffMembership) {
	t.Helper()
	u := &models.User{Email: fmt.Sprintf("%s@acme.test", name), Name: name}
	require.NoError(t, e.db.CreateUser(u))
	m := &models.StaffMembership{OrganizationID: e.org.ID, UserID: u.ID, AccessLevel: level}
	require.NoError(t, e.db.AddStaffMembership(m))
	return u, m
}

func TestResolveMembership(t *testing.T) {
	env := newTestEnv(t)

	t.Run("owner", func(t *testing.T) {
		m, err := env.svc.ResolveMembership(env.org.ID, env.owner.ID)
		require.NoError(t, err)
		assert.Equal(t, MembershipOwner, m.Kind)
		assert.True(t, m.IsMember())
		assert.Nil(t, m.AssignerStaffID())
	})

	t.Run("staff", func(t *testing.T) {
		u, sm := env.addStaff(t, "stella", 3)
		m, err := env.svc.ResolveMembership(env.org.ID, u.ID)
		require.NoError(t, err)
		assert.Equal(t, MembershipStaff, m.Kind)
		assert.Equal(t, sm.ID, m.StaffID)
		assert.Equal(t, 3, m.AccessLevel)
		assert.False(t, m.IsManager())
		require.NotNil(t, m.AssignerStaffID())
		assert.Equal(t, sm.ID, *m.AssignerStaffID())
	})

	t.Run("manager threshold", func(t *testing.T) {
		u, _ := env.addStaff(t, "max", ManagerAccessLevel)
		m, err := env.svc.ResolveMembership(env.org.ID, u.ID)
		require.NoError(t, err)
		assert.True(t, m.IsManager())
	})

	t.Run("non-member", func(t *testing.T) {
		stranger := &models.User{Email: "stranger@other.test"}
		require.NoError(t, env.db.CreateUser(stranger))
		m, err := env.svc.ResolveMembership(env.org.ID, stranger.ID)
		require.NoError(t, err)
		assert.Equal(t, MembershipNone, m.Kind)
		assert.False(t, m.IsMember())
	})

	t.Run("owner wins over membership row", func(t *testing.T) {
		// An owner who also holds a staff row still resolves as owner
		sm := &models.StaffMembership{OrganizationID: env.org.ID, UserID: env.owner.ID, AccessLevel: 1}
		require.NoError(t, env.db.AddStaffMembership(sm))
		m, err := env.svc.ResolveMembership(env.org.ID, env.owner.ID)
		require.NoError(t, err)
		assert.Equal(t, MembershipOwner, m.Kind)
	})

	t.Run("missing organization", func(t *testing.T) {
		_, err := env.svc.ResolveMembership("no-such-org", env.owner.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCreateSubtask(t *testing.T) {
	env := newTestEnv(t)
	staff, _ := env.addStaff(t, "carol", 1)

	t.Run("any member may create", func(t *testing.T) {
		view, err := env.svc.CreateSubtask(env.goal.ID, staff.ID, CreateSubtaskInput{Title: "  Write pitch deck  "})
		require.NoError(t, err)
		assert.Equal(t, "Write pitch deck", view.Title)
		assert.Equal(t, "pending", view.Status)
		assert.Equal(t, staff.ID, view.CreatedBy)
		assert.Empty(t, view.AssignedUsers)
		assert.Nil(t, view.AssignedTo)
	})

	t.Run("title required", func(t *testing.T) {
		_, err := env.svc.CreateSubtask(env.goal.ID, staff.ID, CreateSubtaskInput{Title: "   "})
		var invalid *InvalidInputError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "title", invalid.Field)
	})

	t.Run("non-member denied", func(t *testing.T) {
		stranger := &models.User{Email: "nobody@other.test"}
		require.NoError(t, env.db.CreateUser(stranger))
		_, err := env.svc.CreateSubtask(env.goal.ID, stranger.ID, CreateSubtaskInput{Title: "sneaky"})
		var forbidden *ForbiddenError
		require.ErrorAs(t, err, &forbidden)
		assert.Equal(t, ReasonNotMember, forbidden.Reason)
	})

	t.Run("unknown goal", func(t *testing.T) {
		_, err := env.svc.CreateSubtask("no-such-goal", staff.ID, CreateSubtaskInput{Title: "x"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("create with initial assignees", func(t *testing.T) {
		a, smA := env.addStaff(t, "alice", 2)
		view, err := env.svc.CreateSubtask(env.goal.ID, env.owner.ID, CreateSubtaskInput{
			Title:           "Hire designer",
			DesiredStaffIDs: []string{smA.ID},
		})
		require.NoError(t, err)
		require.Len(t, view.AssignedUsers, 1)
		assert.Equal(t, a.ID, view.AssignedUsers[0].ID)
		require.NotNil(t, view.AssignedTo)
		assert.Equal(t, a.ID, *view.AssignedTo)
	})
}

func TestListSubtasks(t *testing.T) {
	env := newTestEnv(t)
	staff, _ := env.addStaff(t, "lena", 1)

	t.Run("empty goal lists empty", func(t *testing.T) {
		views, err := env.svc.ListSubtasks(env.goal.ID, staff.ID)
		require.NoError(t, err)
		assert.NotNil(t, views)
		assert.Empty(t, views)
	})

	t.Run("members see all subtasks", func(t *testing.T) {
		_, err := env.svc.CreateSubtask(env.goal.ID, env.owner.ID, CreateSubtaskInput{Title: "one"})
		require.NoError(t, err)
		_, err = env.svc.CreateSubtask(env.goal.ID, staff.ID, CreateSubtaskInput{Title: "two"})
		require.NoError(t, err)

		views, err := env.svc.ListSubtasks(env.goal.ID, staff.ID)
		require.NoError(t, err)
		assert.Len(t, views, 2)
	})

	t.Run("non-member denied", func(t *testing.T) {
		stranger := &models.User{Email: "peek@other.test"}
		require.NoError(t, env.db.CreateUser(stranger))
		_, err := env.svc.ListSubtasks(env.goal.ID, stranger.ID)
		var forbidden *ForbiddenError
		require.ErrorAs(t, err, &forbidden)
		assert.Equal(t, ReasonNotMember, forbidden.Reason)
	})

	t.Run("unknown goal", func(t *testing.T) {
		_, err := env.svc.ListSubtasks("no-such-goal", staff.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

// flakyAssignmentStore fails assignment listings for one subtask to exercise
// the degraded projection path.
type flakyAssignmentStore struct {
	Store
	failFor string
}

func (s *flakyAssignmentStore) ListAssignmentsBySubtask(subtaskID string) ([]models.Assignment, error) {
	if subtaskID == s.failFor {
		return nil, errors.New("connection reset")
	}
	return s.Store.ListAssignmentsBySubtask(subtaskID)
}

func TestListSubtasksPartialProjection(t *testing.T) {
	env := newTestEnv(t)
	_, sm := env.addStaff(t, "dana", 2)

	healthy, err := env.svc.CreateSubtask(env.goal.ID, env.owner.ID, CreateSubtaskInput{
		Title: "healthy", DesiredStaffIDs: []string{sm.ID},
	})
	require.NoError(t, err)
	broken, err := env.svc.CreateSubtask(env.goal.ID, env.owner.ID, CreateSubtaskInput{
		Title: "broken", DesiredStaffIDs: []string{sm.ID},
	})
	require.NoError(t, err)

	svc := NewService(&flakyAssignmentStore{Store: env.db, failFor: broken.ID})
	views, err := svc.ListSubtasks(env.goal.ID, env.owner.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)

	byID := map[string]models.SubtaskView{}
	for _, v := range views {
		byID[v.ID] = v
	}
	// The failing subtask renders without assignees instead of sinking the list
	assert.Empty(t, byID[broken.ID].AssignedUsers)
	assert.Nil(t, byID[broken.ID].AssignedTo)
	assert.Len(t, byID[healthy.ID].AssignedUsers, 1)
}

func TestUpdateSubtask(t *testing.T) {
	env := newTestEnv(t)
	creator, _ := env.addStaff(t, "cora", 1)
	assignee, smAssignee := env.addStaff(t, "andy", 1)
	bystander, _ := env.addStaff(t, "bob", 3)
	manager, _ := env.addStaff(t, "mia", 4)

	newSubtask := func(t *testing.T) *models.SubtaskView {
		view, err := env.svc.CreateSubtask(env.goal.ID, creator.ID, CreateSubtaskInput{
			Title: "Ship MVP", DesiredStaffIDs: []string{smAssignee.ID},
		})
		require.NoError(t, err)
		return view
	}

	t.Run("creator updates fields", func(t *testing.T) {
		st := newSubtask(t)
		title := "Ship MVP v2"
		status := "in_progress"
		view, err := env.svc.UpdateSubtask(st.ID, creator.ID, UpdateSubtaskInput{Title: &title, Status: &status})
		require.NoError(t, err)
		assert.Equal(t, "Ship MVP v2", view.Title)
		assert.Equal(t, "in_progress", view.Status)
		// assignment set untouched
		assert.Len(t, view.AssignedUsers, 1)
	})

	t.Run("assignee may update", func(t *testing.T) {
		st := newSubtask(t)
		status := "done"
		_, err := env.svc.UpdateSubtask(st.ID, assignee.ID, UpdateSubtaskInput{Status: &status})
		require.NoError(t, err)
	})

	t.Run("manager may update", func(t *testing.T) {
		st := newSubtask(t)
		status := "blocked"
		_, err := env.svc.UpdateSubtask(st.ID, manager.ID, UpdateSubtaskInput{Status: &status})
		require.NoError(t, err)
	})

	t.Run("owner may update", func(t *testing.T) {
		st := newSubtask(t)
		status := "review"
		_, err := env.svc.UpdateSubtask(st.ID, env.owner.ID, UpdateSubtaskInput{Status: &status})
		require.NoError(t, err)
	})

	t.Run("level 3 bystander denied", func(t *testing.T) {
		st := newSubtask(t)
		status := "done"
		_, err := env.svc.UpdateSubtask(st.ID, bystander.ID, UpdateSubtaskInput{Status: &status})
		var forbidden *ForbiddenError
		require.ErrorAs(t, err, &forbidden)
		assert.Equal(t, ReasonNotAssignee, forbidden.Reason)
	})

	t.Run("empty title rejected", func(t *testing.T) {
		st := newSubtask(t)
		title := "  "
		_, err := env.svc.UpdateSubtask(st.ID, creator.ID, UpdateSubtaskInput{Title: &title})
		var invalid *InvalidInputError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "title", invalid.Field)
	})

	t.Run("reassign via update", func(t *testing.T) {
		st := newSubtask(t)
		_, smOther := env.addStaff(t, fmt.Sprintf("other-%s", st.ID[:8]), 1)
		desired := []string{smOther.ID}
		view, err := env.svc.UpdateSubtask(st.ID, creator.ID, UpdateSubtaskInput{DesiredStaffIDs: &desired})
		require.NoError(t, err)
		require.Len(t, view.AssignedUsers, 1)
		require.NotNil(t, view.AssignedTo)
	})

	t.Run("unknown subtask", func(t *testing.T) {
		status := "done"
		_, err := env.svc.UpdateSubtask("no-such-subtask", creator.ID, UpdateSubtaskInput{Status: &status})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeleteSubtask(t *testing.T) {
	env := newTestEnv(t)
	creator, _ := env.addStaff(t, "cleo", 1)
	_, smAssignee := env.addStaff(t, "arno", 1)
	boss, _ := env.addStaff(t, "bree", 5)

	newSubtask := func(t *testing.T) *models.SubtaskView {
		view, err := env.svc.CreateSubtask(env.goal.ID, creator.ID, CreateSubtaskInput{
			Title: "Throwaway", DesiredStaffIDs: []string{smAssignee.ID},
		})
		require.NoError(t, err)
		return view
	}

	t.Run("creator deletes and assignments cascade", func(t *testing.T) {
		st := newSubtask(t)
		require.NoError(t, env.svc.DeleteSubtask(st.ID, creator.ID))

		_, err := env.db.GetSubtask(st.ID)
		assert.ErrorIs(t, err, database.ErrNotFound)
		rows, err := env.db.ListAssignmentsBySubtask(st.ID)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("owner denied", func(t *testing.T) {
		st := newSubtask(t)
		err := env.svc.DeleteSubtask(st.ID, env.owner.ID)
		var forbidden *ForbiddenError
		require.ErrorAs(t, err, &forbidden)
		assert.Equal(t, ReasonNotCreator, forbidden.Reason)
	})

	t.Run("level 5 manager denied", func(t *testing.T) {
		st := newSubtask(t)
		err := env.svc.DeleteSubtask(st.ID, boss.ID)
		var forbidden *ForbiddenError
		require.ErrorAs(t, err, &forbidden)
		assert.Equal(t, ReasonNotCreator, forbidden.Reason)
	})

	t.Run("unknown subtask", func(t *testing.T) {
		err := env.svc.DeleteSubtask("no-such-subtask", creator.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
