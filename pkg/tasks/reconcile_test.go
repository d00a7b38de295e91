package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venturehub-backend/pkg/database"
	"venturehub-backend/pkg/models"
)

func TestNormalizeDesired(t *testing.T) {
	cases := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, []string{}},
		{"drops empty and sentinel", []string{"", "unassigned", "a"}, []string{"a"}},
		{"dedupes preserving order", []string{"b", "a", "b", "a"}, []string{"b", "a"}},
		{"sentinel only", []string{"unassigned", "unassigned"}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeDesired(tc.in))
		})
	}
}

func (e *testEnv) newSubtask(t *testing.T, title string) *models.Subtask {
	t.Helper()
	st := &models.Subtask{GoalID: e.goal.ID, Title: title, Status: "pending", CreatedBy: e.owner.ID}
	require.NoError(t, e.db.CreateSubtask(st))
	return st
}

func staffIDs(assignments []models.Assignment) []string {
	out := make([]string, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, a.StaffID)
	}
	return out
}

func TestReconcile(t *testing.T) {
	env := newTestEnv(t)
	_, smA := env.addStaff(t, "ana", 1)
	_, smB := env.addStaff(t, "ben", 1)
	_, smC := env.addStaff(t, "cid", 1)

	t.Run("idempotent", func(t *testing.T) {
		st := env.newSubtask(t, "idempotent")

		first, err := env.svc.Reconcile(st, env.org.ID, []string{smA.ID, smB.ID}, nil)
		require.NoError(t, err)
		require.Len(t, first, 2)

		second, err := env.svc.Reconcile(st, env.org.ID, []string{smA.ID, smB.ID}, nil)
		require.NoError(t, err)
		// Same rows, byte for byte: ids and timestamps untouched
		assert.Equal(t, first, second)
	})

	t.Run("minimal diff preserves untouched rows", func(t *testing.T) {
		st := env.newSubtask(t, "diff")

		initial, err := env.svc.Reconcile(st, env.org.ID, []string{smA.ID, smB.ID}, nil)
		require.NoError(t, err)
		var rowB models.Assignment
		for _, a := range initial {
			if a.StaffID == smB.ID {
				rowB = a
			}
		}
		require.NotEmpty(t, rowB.ID)

		after, err := env.svc.Reconcile(st, env.org.ID, []string{smB.ID, smC.ID}, nil)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{smB.ID, smC.ID}, staffIDs(after))

		for _, a := range after {
			if a.StaffID == smB.ID {
				// B was in both sets: the original row survives untouched
				assert.Equal(t, rowB.ID, a.ID)
				assert.Equal(t, rowB.AssignedAt, a.AssignedAt)
			}
		}
	})

	t.Run("empty set unassigns everyone", func(t *testing.T) {
		st := env.newSubtask(t, "clear")
		_, err := env.svc.Reconcile(st, env.org.ID, []string{smA.ID, smB.ID}, nil)
		require.NoError(t, err)

		final, err := env.svc.Reconcile(st, env.org.ID, []string{}, nil)
		require.NoError(t, err)
		assert.Empty(t, final)
	})

	t.Run("sentinel and duplicates collapse", func(t *testing.T) {
		st := env.newSubtask(t, "noise")
		final, err := env.svc.Reconcile(st, env.org.ID, []string{"", "unassigned", smA.ID, smA.ID}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{smA.ID}, staffIDs(final))
	})

	t.Run("unknown staff id rejects all before writing", func(t *testing.T) {
		st := env.newSubtask(t, "reject")
		_, err := env.svc.Reconcile(st, env.org.ID, []string{smA.ID, "no-such-staff"}, nil)
		var invalid *InvalidInputError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "staff_id", invalid.Field)

		// nothing was written, not even the valid half
		rows, err := env.db.ListAssignmentsBySubtask(st.ID)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("cross-organization staff id rejected", func(t *testing.T) {
		otherOwner := &models.User{Email: "rival@other.test"}
		require.NoError(t, env.db.CreateUser(otherOwner))
		otherOrg := &models.Organization{Name: "Rival", OwnerID: otherOwner.ID}
		require.NoError(t, env.db.CreateOrganization(otherOrg))
		outsider := &models.User{Email: "out@other.test"}
		require.NoError(t, env.db.CreateUser(outsider))
		smOut := &models.StaffMembership{OrganizationID: otherOrg.ID, UserID: outsider.ID, AccessLevel: 1}
		require.NoError(t, env.db.AddStaffMembership(smOut))

		st := env.newSubtask(t, "cross-org")
		_, err := env.svc.Reconcile(st, env.org.ID, []string{smOut.ID}, nil)
		var invalid *InvalidInputError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "staff_id", invalid.Field)

		rows, err := env.db.ListAssignmentsBySubtask(st.ID)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("records assigned_by", func(t *testing.T) {
		st := env.newSubtask(t, "attributed")
		assigner := smC.ID
		final, err := env.svc.Reconcile(st, env.org.ID, []string{smA.ID}, &assigner)
		require.NoError(t, err)
		require.Len(t, final, 1)
		require.NotNil(t, final[0].AssignedBy)
		assert.Equal(t, assigner, *final[0].AssignedBy)
		assert.Equal(t, AssignedStatus, final[0].Status)
	})
}

// racingStore makes every insert lose the uniqueness race.
type racingStore struct {
	Store
}

func (s *racingStore) CreateAssignment(a *models.Assignment) error {
	return database.ErrDuplicate
}

func TestReconcileConflict(t *testing.T) {
	env := newTestEnv(t)
	_, smA := env.addStaff(t, "amy", 1)
	st := env.newSubtask(t, "contended")

	svc := NewService(&racingStore{Store: env.db})
	_, err := svc.Reconcile(st, env.org.ID, []string{smA.ID}, nil)
	assert.ErrorIs(t, err, ErrConflict)
}
