package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"venturehub-backend/pkg/config"
	"venturehub-backend/pkg/database"
	"venturehub-backend/pkg/middleware"
	"venturehub-backend/pkg/models"
	"venturehub-backend/pkg/tasks"
	"venturehub-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

type GoalsHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	svc    *tasks.Service
}

func NewGoalsHandler(cfg *config.Config, db database.DatabaseInterface) *GoalsHandler {
	return &GoalsHandler{config: cfg, db: db, svc: tasks.NewService(db)}
}

func (h *GoalsHandler) requireOrgMember(w http.ResponseWriter, userID, orgID string) (tasks.Membership, bool) {
	m, err := h.svc.ResolveMembership(orgID, userID)
	if err != nil {
		if errors.Is(err, tasks.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Organization not found")
		} else {
			utils.WriteInternalServerErrorResponse(w, err.Error())
		}
		return tasks.Membership{}, false
	}
	if !m.IsMember() {
		utils.WriteForbiddenResponse(w, "Not a member of organization")
		return tasks.Membership{}, false
	}
	return m, true
}

// POST /api/goals
func (h *GoalsHandler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	var req struct {
		OrganizationID string     `json:"organization_id"`
		Title          string     `json:"title"`
		Description    string     `json:"description"`
		TargetDate     *time.Time `json:"target_date"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if req.OrganizationID == "" || strings.TrimSpace(req.Title) == "" {
		utils.WriteBadRequestResponse(w, "organization_id and title required")
		return
	}
	m, ok := h.requireOrgMember(w, user.ID, req.OrganizationID)
	if !ok {
		return
	}
	if m.Kind != tasks.MembershipOwner && !m.IsManager() {
		utils.WriteForbiddenResponse(w, "Only owner or manager can create goals")
		return
	}

	goal := &models.Goal{
		OrganizationID: req.OrganizationID,
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		Status:         "active",
		TargetDate:     req.TargetDate,
		CreatedBy:      user.ID,
	}
	if err := h.db.CreateGoal(goal); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Create goal failed: "+err.Error())
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"goal": goal})
}

// GET /api/goals?org_id=
func (h *GoalsHandler) ListGoals(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("org_id")
	if orgID == "" {
		utils.WriteBadRequestResponse(w, "org_id required")
		return
	}
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	if _, ok := h.requireOrgMember(w, user.ID, orgID); !ok {
		return
	}
	goals, err := h.db.ListGoalsByOrganization(orgID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"goals": goals})
}

// GET /api/goals/{id}
func (h *GoalsHandler) GetGoal(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	goalID := chiRoute.URLParam(r, "id")
	goal, err := h.db.GetGoal(goalID)
	if err != nil {
		utils.WriteNotFoundResponse(w, "Goal not found")
		return
	}
	if _, ok := h.requireOrgMember(w, user.ID, goal.OrganizationID); !ok {
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"goal": goal})
}

// PUT /api/goals/{id}
func (h *GoalsHandler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	goalID := chiRoute.URLParam(r, "id")
	goal, err := h.db.GetGoal(goalID)
	if err != nil {
		utils.WriteNotFoundResponse(w, "Goal not found")
		return
	}
	m, ok := h.requireOrgMember(w, user.ID, goal.OrganizationID)
	if !ok {
		return
	}
	if m.Kind != tasks.MembershipOwner && !m.IsManager() {
		utils.WriteForbiddenResponse(w, "Only owner or manager can update goals")
		return
	}
	var req struct {
		Title       *string    `json:"title"`
		Description *string    `json:"description"`
		Status      *string    `json:"status"`
		TargetDate  *time.Time `json:"target_date"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			utils.WriteValidationErrorResponse(w, "title cannot be empty", "title")
			return
		}
		goal.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		goal.Description = *req.Description
	}
	if req.Status != nil {
		goal.Status = *req.Status
	}
	if req.TargetDate != nil {
		goal.TargetDate = req.TargetDate
	}
	if err := h.db.UpdateGoal(goal); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"goal": goal})
}

// DELETE /api/goals/{id}
func (h *GoalsHandler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	goalID := chiRoute.URLParam(r, "id")
	goal, err := h.db.GetGoal(goalID)
	if err != nil {
		utils.WriteNotFoundResponse(w, "Goal not found")
		return
	}
	m, ok := h.requireOrgMember(w, user.ID, goal.OrganizationID)
	if !ok {
		return
	}
	if m.Kind != tasks.MembershipOwner {
		utils.WriteForbiddenResponse(w, "Only owner can delete goals")
		return
	}
	if err := h.db.DeleteGoal(goalID); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true, "id": goalID})
}
