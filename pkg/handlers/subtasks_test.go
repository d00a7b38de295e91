package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venturehub-backend/pkg/config"
	"venturehub-backend/pkg/database"
	"venturehub-backend/pkg/middleware"
	"venturehub-backend/pkg/models"
	"venturehub-backend/pkg/utils"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:        "test",
		Port:               "3000",
		JWTSecret:          "test-secret",
		InvitationTTLHours: 72,
		AllowedOrigins:     []string{"*"},
	}
}

// authedRequest builds a request carrying an authenticated user and chi URL
// params, the way the router middleware would.
func authedRequest(t *testing.T, method, target string, body interface{}, user *models.User, params map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	if user != nil {
		ctx = context.WithValue(ctx, middleware.UserContextKey, user)
	}
	return r.WithContext(ctx)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) utils.APIResponse {
	t.Helper()
	var resp utils.APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

type subtasksFixture struct {
	handler *SubtasksHandler
	db      *database.MemoryDatabase
	owner   *models.User
	staff   *models.User
	staffSM *models.StaffMembership
	goal    *models.Goal
}

func newSubtasksFixture(t *testing.T) *subtasksFixture {
	t.Helper()
	db := database.NewMemoryDatabase()

	owner := &models.User{Email: "owner@test.dev", Name: "Owner"}
	require.NoError(t, db.CreateUser(owner))
	org := &models.Organization{Name: "Org", OwnerID: owner.ID}
	require.NoError(t, db.CreateOrganization(org))

	staff := &models.User{Email: "staff@test.dev", Name: "Staff"}
	require.NoError(t, db.CreateUser(staff))
	sm := &models.StaffMembership{OrganizationID: org.ID, UserID: staff.ID, AccessLevel: 1}
	require.NoError(t, db.AddStaffMembership(sm))

	goal := &models.Goal{OrganizationID: org.ID, Title: "Goal", CreatedBy: owner.ID}
	require.NoError(t, db.CreateGoal(goal))

	return &subtasksFixture{
		handler: NewSubtasksHandler(testConfig(), db),
		db:      db,
		owner:   owner,
		staff:   staff,
		staffSM: sm,
		goal:    goal,
	}
}

func TestSubtasksHandlerCreateAndList(t *testing.T) {
	f := newSubtasksFixture(t)

	rec := httptest.NewRecorder()
	r := authedRequest(t, http.MethodPost, "/api/goals/"+f.goal.ID+"/subtasks",
		map[string]interface{}{"title": "First task", "desired_staff_ids": []string{f.staffSM.ID}},
		f.owner, map[string]string{"goalID": f.goal.ID})
	f.handler.CreateSubtask(rec, r)

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.True(t, resp.Success)

	rec = httptest.NewRecorder()
	r = authedRequest(t, http.MethodGet, "/api/goals/"+f.goal.ID+"/subtasks", nil,
		f.staff, map[string]string{"goalID": f.goal.ID})
	f.handler.ListSubtasks(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeEnvelope(t, rec)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	subtasks, ok := data["subtasks"].([]interface{})
	require.True(t, ok)
	assert.Len(t, subtasks, 1)
}

func TestSubtasksHandlerErrorMapping(t *testing.T) {
	f := newSubtasksFixture(t)

	outsider := &models.User{Email: "out@test.dev"}
	require.NoError(t, f.db.CreateUser(outsider))

	t.Run("missing goal is 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := authedRequest(t, http.MethodGet, "/api/goals/nope/subtasks", nil,
			f.owner, map[string]string{"goalID": "nope"})
		f.handler.ListSubtasks(rec, r)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("non-member is 403 with reason", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := authedRequest(t, http.MethodGet, "/api/goals/"+f.goal.ID+"/subtasks", nil,
			outsider, map[string]string{"goalID": f.goal.ID})
		f.handler.ListSubtasks(rec, r)
		require.Equal(t, http.StatusForbidden, rec.Code)
		resp := decodeEnvelope(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "not-member", resp.Error.Details)
	})

	t.Run("missing title is 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := authedRequest(t, http.MethodPost, "/api/goals/"+f.goal.ID+"/subtasks",
			map[string]interface{}{"title": "  "},
			f.owner, map[string]string{"goalID": f.goal.ID})
		f.handler.CreateSubtask(rec, r)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid staff id is 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := authedRequest(t, http.MethodPost, "/api/goals/"+f.goal.ID+"/subtasks",
			map[string]interface{}{"title": "t", "desired_staff_ids": []string{"ghost"}},
			f.owner, map[string]string{"goalID": f.goal.ID})
		f.handler.CreateSubtask(rec, r)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unauthenticated is 401", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := authedRequest(t, http.MethodGet, "/api/goals/"+f.goal.ID+"/subtasks", nil,
			nil, map[string]string{"goalID": f.goal.ID})
		f.handler.ListSubtasks(rec, r)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestSubtasksHandlerReassignAndDelete(t *testing.T) {
	f := newSubtasksFixture(t)

	// creator makes a subtask
	rec := httptest.NewRecorder()
	r := authedRequest(t, http.MethodPost, "/api/goals/"+f.goal.ID+"/subtasks",
		map[string]interface{}{"title": "Owned by staff"},
		f.staff, map[string]string{"goalID": f.goal.ID})
	f.handler.CreateSubtask(rec, r)
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeEnvelope(t, rec)
	data := resp.Data.(map[string]interface{})
	subtask := data["subtask"].(map[string]interface{})
	subtaskID := subtask["id"].(string)

	t.Run("reassign replaces set", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := authedRequest(t, http.MethodPut, "/api/subtasks/"+subtaskID+"/assignees",
			map[string]interface{}{"staff_ids": []string{f.staffSM.ID}},
			f.staff, map[string]string{"id": subtaskID})
		f.handler.ReassignSubtask(rec, r)
		require.Equal(t, http.StatusOK, rec.Code)

		rows, err := f.db.ListAssignmentsBySubtask(subtaskID)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("owner cannot delete someone else's subtask", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := authedRequest(t, http.MethodDelete, "/api/subtasks/"+subtaskID, nil,
			f.owner, map[string]string{"id": subtaskID})
		f.handler.DeleteSubtask(rec, r)
		require.Equal(t, http.StatusForbidden, rec.Code)
		resp := decodeEnvelope(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "not-creator", resp.Error.Details)
	})

	t.Run("creator deletes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := authedRequest(t, http.MethodDelete, "/api/subtasks/"+subtaskID, nil,
			f.staff, map[string]string{"id": subtaskID})
		f.handler.DeleteSubtask(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
