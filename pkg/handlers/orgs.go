package handlers

import (
	"errors"
	"fmt"
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

type OrgsHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	svc    *tasks.Service
}

func NewOrgsHandler(cfg *config.Config, db database.DatabaseInterface) *OrgsHandler {
	return &OrgsHandler{config: cfg, db: db, svc: tasks.NewService(db)}
}

// ==== helpers: membership checks ====

func (h *OrgsHandler) requireOrgMember(w http.ResponseWriter, userID, orgID string) (tasks.Membership, bool) {
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

func (h *OrgsHandler) requireOwner(w http.ResponseWriter, userID, orgID string) bool {
	m, ok := h.requireOrgMember(w, userID, orgID)
	if !ok {
		return false
	}
	if m.Kind != tasks.MembershipOwner {
		utils.WriteForbiddenResponse(w, "Owner privileges required")
		return false
	}
	return true
}

// POST /api/orgs
func (h *OrgsHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Avatar      string `json:"avatar"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		utils.WriteBadRequestResponse(w, "Name required")
		return
	}

	org := &models.Organization{Name: req.Name, Description: req.Description, Avatar: req.Avatar, OwnerID: user.ID}
	if err := h.db.CreateOrganization(org); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Create org failed: "+err.Error())
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"organization": org})
}

// GET /api/orgs
func (h *OrgsHandler) ListMyOrganizations(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	orgs, err := h.db.ListUserOrganizations(user.ID)
	if err != nil {
		fmt.Printf("[error] ListMyOrganizations failed for user=%s: %v\n", user.ID, err)
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"organizations": orgs})
}

// PUT /api/orgs/{id}
func (h *OrgsHandler) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	orgID := chiRoute.URLParam(r, "id")
	if strings.TrimSpace(orgID) == "" {
		utils.WriteBadRequestResponse(w, "organization id required")
		return
	}
	if !h.requireOwner(w, user.ID, orgID) {
		return
	}
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Avatar      string `json:"avatar"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	org, err := h.db.GetOrganization(orgID)
	if err != nil {
		utils.WriteNotFoundResponse(w, "Organization not found")
		return
	}
	// Apply patch values (only non-empty)
	if strings.TrimSpace(req.Name) != "" {
		org.Name = req.Name
	}
	if strings.TrimSpace(req.Description) != "" {
		org.Description = req.Description
	}
	if strings.TrimSpace(req.Avatar) != "" {
		org.Avatar = req.Avatar
	}
	if err := h.db.UpdateOrganization(org); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"organization": org})
}

// GET /api/orgs/members?org_id=
func (h *OrgsHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
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
	members, err := h.db.ListStaffByOrganization(orgID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"members": members})
}

// POST /api/orgs/invite
func (h *OrgsHandler) InviteStaff(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	var req struct {
		OrganizationID string `json:"organization_id"`
		Email          string `json:"email"`
		AccessLevel    int    `json:"access_level"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if req.OrganizationID == "" || strings.TrimSpace(req.Email) == "" {
		utils.WriteBadRequestResponse(w, "organization_id and email required")
		return
	}
	if req.AccessLevel == 0 {
		req.AccessLevel = 1
	}
	if req.AccessLevel < 1 || req.AccessLevel > 5 {
		utils.WriteValidationErrorResponse(w, "access_level must be between 1 and 5", "access_level")
		return
	}
	// Only owner can invite
	if !h.requireOwner(w, user.ID, req.OrganizationID) {
		return
	}
	tok, err := utils.GenerateURLToken(24)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "failed to generate token")
		return
	}
	ttl := time.Duration(h.config.InvitationTTLHours) * time.Hour
	inv := &models.StaffInvitation{
		OrganizationID: req.OrganizationID,
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		InviterID:      user.ID,
		AccessLevel:    req.AccessLevel,
		Token:          tok,
		Status:         models.InvitationPending,
		ExpiresAt:      time.Now().Add(ttl),
	}
	if err := h.db.CreateInvitation(inv); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"invitation": inv})
}

// GET /api/invitations/my
func (h *OrgsHandler) ListMyInvitations(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	invs, err := h.db.ListInvitationsByEmail(user.Email)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"invitations": invs})
}

// POST /api/invitations/accept
func (h *OrgsHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	var req struct {
		Token string `json:"token"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if req.Token == "" {
		utils.WriteBadRequestResponse(w, "token required")
		return
	}
	inv, err := h.db.GetInvitationByToken(req.Token)
	if err != nil {
		utils.WriteNotFoundResponse(w, "Invitation not found")
		return
	}
	if inv.Status != models.InvitationPending || time.Now().After(inv.ExpiresAt) {
		utils.WriteBadRequestResponse(w, "Invitation invalid or expired")
		return
	}

	// Add membership at the invited access level
	m := &models.StaffMembership{
		OrganizationID: inv.OrganizationID,
		UserID:         user.ID,
		AccessLevel:    inv.AccessLevel,
	}
	if err := h.db.AddStaffMembership(m); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			utils.WriteConflictResponse(w, "Already a member of this organization")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to add membership: "+err.Error())
		return
	}
	// Update invitation
	inv.Status = models.InvitationAccepted
	inv.AcceptedBy = &user.ID
	if err := h.db.UpdateInvitation(inv); err != nil {
		fmt.Printf("[warn] update invitation failed: %v\n", err)
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"organization_id": inv.OrganizationID,
		"membership":      m,
	})
}

// PUT /api/orgs/members/{staffID}/access-level
func (h *OrgsHandler) UpdateStaffAccessLevel(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	staffID := chiRoute.URLParam(r, "staffID")
	if strings.TrimSpace(staffID) == "" {
		utils.WriteBadRequestResponse(w, "staff id required")
		return
	}
	var req struct {
		AccessLevel int `json:"access_level"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if req.AccessLevel < 1 || req.AccessLevel > 5 {
		utils.WriteValidationErrorResponse(w, "access_level must be between 1 and 5", "access_level")
		return
	}
	sm, err := h.db.GetStaffMembershipByID(staffID)
	if err != nil {
		utils.WriteNotFoundResponse(w, "Membership not found")
		return
	}
	// Only the organization owner changes access levels
	if !h.requireOwner(w, user.ID, sm.OrganizationID) {
		return
	}
	if err := h.db.UpdateStaffAccessLevel(staffID, req.AccessLevel); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	sm.AccessLevel = req.AccessLevel
	utils.WriteSuccessResponse(w, map[string]interface{}{"membership": sm})
}
