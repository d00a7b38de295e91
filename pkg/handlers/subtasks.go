package handlers

import (
	"errors"
	"net/http"
	"strings"

	"venturehub-backend/pkg/config"
	"venturehub-backend/pkg/database"
	"venturehub-backend/pkg/middleware"
	"venturehub-backend/pkg/tasks"
	"venturehub-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

// SubtasksHandler is the HTTP face of the assignment engine. All membership,
// authorization and reconciliation decisions live in pkg/tasks; this layer
// only parses requests and maps the error taxonomy to status codes.
type SubtasksHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	svc    *tasks.Service
}

func NewSubtasksHandler(cfg *config.Config, db database.DatabaseInterface) *SubtasksHandler {
	return &SubtasksHandler{config: cfg, db: db, svc: tasks.NewService(db)}
}

// writeTaskError maps service errors to the response envelope:
// not found → 404, forbidden → 403, invalid input → 400, conflict → 409.
func writeTaskError(w http.ResponseWriter, err error) {
	var forbidden *tasks.ForbiddenError
	var invalid *tasks.InvalidInputError
	switch {
	case errors.Is(err, tasks.ErrNotFound):
		utils.WriteNotFoundResponse(w, err.Error())
	case errors.As(err, &forbidden):
		utils.WriteErrorResponseWithCode(w, http.StatusForbidden, "FORBIDDEN",
			"Operation not permitted", forbidden.Reason)
	case errors.As(err, &invalid):
		utils.WriteValidationErrorResponse(w, invalid.Message, invalid.Field)
	case errors.Is(err, tasks.ErrConflict):
		utils.WriteConflictResponse(w, "Assignment conflict, please retry")
	default:
		utils.WriteInternalServerErrorResponse(w, err.Error())
	}
}

// GET /api/goals/{goalID}/subtasks
func (h *SubtasksHandler) ListSubtasks(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	goalID := chiRoute.URLParam(r, "goalID")
	if strings.TrimSpace(goalID) == "" {
		utils.WriteBadRequestResponse(w, "goal id required")
		return
	}
	views, err := h.svc.ListSubtasks(goalID, user.ID)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"subtasks": views})
}

// POST /api/goals/{goalID}/subtasks
func (h *SubtasksHandler) CreateSubtask(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	goalID := chiRoute.URLParam(r, "goalID")
	if strings.TrimSpace(goalID) == "" {
		utils.WriteBadRequestResponse(w, "goal id required")
		return
	}
	var input tasks.CreateSubtaskInput
	if err := utils.ParseJSONBody(r, &input); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	view, err := h.svc.CreateSubtask(goalID, user.ID, input)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"subtask": view})
}

// PUT /api/subtasks/{id}
func (h *SubtasksHandler) UpdateSubtask(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	subtaskID := chiRoute.URLParam(r, "id")
	if strings.TrimSpace(subtaskID) == "" {
		utils.WriteBadRequestResponse(w, "subtask id required")
		return
	}
	var input tasks.UpdateSubtaskInput
	if err := utils.ParseJSONBody(r, &input); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	view, err := h.svc.UpdateSubtask(subtaskID, user.ID, input)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"subtask": view})
}

// PUT /api/subtasks/{id}/assignees
// Replaces the full assignment set; an empty list unassigns everyone.
func (h *SubtasksHandler) ReassignSubtask(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	subtaskID := chiRoute.URLParam(r, "id")
	if strings.TrimSpace(subtaskID) == "" {
		utils.WriteBadRequestResponse(w, "subtask id required")
		return
	}
	var req struct {
		StaffIDs []string `json:"staff_ids"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if req.StaffIDs == nil {
		req.StaffIDs = []string{}
	}
	view, err := h.svc.UpdateSubtask(subtaskID, user.ID, tasks.UpdateSubtaskInput{
		DesiredStaffIDs: &req.StaffIDs,
	})
	if err != nil {
		writeTaskError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"subtask": view})
}

// DELETE /api/subtasks/{id}
func (h *SubtasksHandler) DeleteSubtask(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	subtaskID := chiRoute.URLParam(r, "id")
	if strings.TrimSpace(subtaskID) == "" {
		utils.WriteBadRequestResponse(w, "subtask id required")
		return
	}
	if err := h.svc.DeleteSubtask(subtaskID, user.ID); err != nil {
		writeTaskError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true, "id": subtaskID})
}
