package database

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"venturehub-backend/pkg/models"
)

// SupabaseDatabase Supabase数据库实现（PostgREST）
type SupabaseDatabase struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewSupabaseDatabase 创建Supabase数据库实例
func NewSupabaseDatabase(url, key string) DatabaseInterface {
	// 确保URL格式正确
	if !strings.HasPrefix(url, "http") {
		url = "https://" + url
	}

	return &SupabaseDatabase{
		baseURL: url,
		apiKey:  key,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// supabaseError keeps the REST status code so callers can map 409 (unique
// violation) to ErrDuplicate
type supabaseError struct {
	status int
	body   string
}

func (e *supabaseError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.status, e.body)
}

// makeRequest 发送HTTP请求到Supabase
func (db *SupabaseDatabase) makeRequest(method, endpoint string, body interface{}) ([]byte, error) {
	var reqBody io.Reader

	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	reqURL := db.baseURL + "/rest/v1" + endpoint
	req, err := http.NewRequest(method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// 设置请求头
	req.Header.Set("apikey", db.apiKey)
	req.Header.Set("Authorization", "Bearer "+db.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := db.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &supabaseError{status: resp.StatusCode, body: string(respBody)}
	}

	return respBody, nil
}

// duplicateOr maps a PostgREST conflict to ErrDuplicate
func duplicateOr(err error, wrap string) error {
	if se, ok := err.(*supabaseError); ok && se.status == http.StatusConflict {
		return ErrDuplicate
	}
	return fmt.Errorf("%s: %w", wrap, err)
}

// firstOf unmarshals a PostgREST array response and returns ErrNotFound for
// an empty result
func firstOf[T any](data []byte) (*T, error) {
	var rows []T
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// ==== Users ====

func (db *SupabaseDatabase) CreateUser(user *models.User) error {
	payload := map[string]interface{}{
		"email":         user.Email,
		"password_hash": user.Password,
		"name":          user.Name,
		"avatar":        user.Avatar,
	}
	respBody, err := db.makeRequest("POST", "/users", payload)
	if err != nil {
		return duplicateOr(err, "failed to create user")
	}
	created, err := firstOf[models.User](respBody)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = created.ID
	user.CreatedAt = created.CreatedAt
	user.UpdatedAt = created.UpdatedAt
	return nil
}

func (db *SupabaseDatabase) GetUserByEmail(email string) (*models.User, error) {
	endpoint := fmt.Sprintf("/users?email=eq.%s&select=*", url.QueryEscape(email))
	respBody, err := db.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return firstOf[models.User](respBody)
}

func (db *SupabaseDatabase) GetUserByID(id string) (*models.User, error) {
	endpoint := fmt.Sprintf("/users?id=eq.%s&select=*", url.QueryEscape(id))
	respBody, err := db.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return firstOf[models.User](respBody)
}

func (db *SupabaseDatabase) UpdateUser(user *models.User) error {
	payload := map[string]interface{}{
		"name":       user.Name,
		"avatar":     user.Avatar,
		"updated_at": time.Now().Format(time.RFC3339),
	}
	endpoint := fmt.Sprintf("/users?id=eq.%s", url.QueryEscape(user.ID))
	if _, err := db.makeRequest("PATCH", endpoint, payload); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// ==== Organizations & staff memberships ====

func (db *SupabaseDatabase) CreateOrganization(org *models.Organization) error {
	payload := map[string]interface{}{
		"name":        org.Name,
		"owner_id":    org.OwnerID,
		"description": org.Description,
		"avatar":      org.Avatar,
	}
	respBody, err := db.makeRequest("POST", "/organizations", payload)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	created, err := firstOf[models.Organization](respBody)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	org.ID = created.ID
	org.CreatedAt = created.CreatedAt
	org.UpdatedAt = created.UpdatedAt
	return nil
}

func (db *SupabaseDatabase) GetOrganization(orgID string) (*models.Organization, error) {
	endpoint := fmt.Sprintf("/organizations?id=eq.%s&select=*", url.QueryEscape(orgID))
	respBody, err := db.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return firstOf[models.Organization](respBody)
}

func (db *SupabaseDatabase) UpdateOrganization(org *models.Organization) error {
	payload := map[string]interface{}{
		"name":        org.Name,
		"description": org.Description,
		"avatar":      org.Avatar,
		"updated_at":  time.Now().Format(time.RFC3339),
	}
	endpoint := fmt.Sprintf("/organizations?id=eq.%s", url.QueryEscape(org.ID))
	if _, err := db.makeRequest("PATCH", endpoint, payload); err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	return nil
}

func (db *SupabaseDatabase) ListUserOrganizations(userID string) ([]models.Organization, error) {
	// Owned organizations
	endpoint := fmt.Sprintf("/organizations?owner_id=eq.%s&select=*&order=created_at", url.QueryEscape(userID))
	respBody, err := db.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	var owned []models.Organization
	if err := json.Unmarshal(respBody, &owned); err != nil {
		return nil, fmt.Errorf("failed to parse organizations: %w", err)
	}

	// Staff organizations via membership embed
	endpoint = fmt.Sprintf("/staff_memberships?user_id=eq.%s&select=organizations(*)", url.QueryEscape(userID))
	respBody, err = db.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff organizations: %w", err)
	}
	var memberRows []struct {
		Organization models.Organization `json:"organizations"`
	}
	if err := json.Unmarshal(respBody, &memberRows); err != nil {
		return nil, fmt.Errorf("failed to parse staff organizations: %w", err)
	}

	seen := make(map[string]bool, len(owned))
	orgs := make([]models.Organization, 0, len(owned)+len(memberRows))
	for _, o := range owned {
		seen[o.ID] = true
		orgs = append(orgs, o)
	}
	for _, row := range memberRows {
		if row.Organization.ID == "" || seen[row.Organization.ID] {
			continue
		}
		seen[row.Organization.ID] = true
		orgs = append(orgs, row.Organization)
	}
	return orgs, nil
}

func (db *SupabaseDatabase) AddStaffMembership(m *models.StaffMembership) error {
	payload := map[string]interface{}{
		"organization_id": m.OrganizationID,
		"user_id":         m.UserID,
		"access_level":    m.AccessLevel,
	}
	respBody, err := db.makeRequest("POST", "/staff_memberships", payload)
	if err != nil {
		return duplicateOr(err, "failed to add staff membership")
	}
	created, err := firstOf[models.StaffMembership](respBody)
	if err != nil {
		return fmt.Errorf("failed to add staff membership: %w", err)
	}
	m.ID = created.ID
	m.CreatedAt = created.CreatedAt
	return nil
}

func (db *SupabaseDatabase) GetStaffMembership(orgID, userID string) (*models.StaffMembership, error) {
	endpoint := fmt.Sprintf("/staff_memberships?organization_id=eq.%s&user_id=eq.%s&select=*",
		url.QueryEscape(orgID), url.QueryEscape(userID))
	respBody, err := db.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get staff membership: %w", err)
	}
	return firstOf[models.StaffMembership](respBody)
}

func (db *SupabaseDatabase) GetStaffMembershipByID(staffID string) (*models.StaffMembership, error) {
	endpoint := fmt.Sprintf("/staff_memberships?id=eq.%s&select=*", url.QueryEscape(staffID))
	respBody, err := db.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get staff membership: %w", err)
	}
	return firstOf[models.StaffMembership](respBody)
}

func (db *SupabaseDatabase) ListStaffByOrganization(orgID string) ([]models.StaffMember, error) {
	endpoint := fmt.Sprintf("/staff_memberships?organization_id=eq.%s&select=*,users(name,email)&order=created_at",
		url.QueryEscape(orgID))
	respBody, err := db.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}

	var rows []struct {
		models.StaffMembership
		User struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"users"`
	}
	if err := json.Unmarshal(respBody, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse staff list: %w", err)
	}

	members := make([]models.StaffMember, 0, len(rows))
	for _, row := range rows {
		members = append(members, models.StaffMember{
			StaffMembership: row.StaffMembership,
			Name:            row.User.Name,
			Email:           row.User.Email,
		})
	}
	return members, nil
}

func (db *SupabaseDatabase) UpdateStaffAccessLevel(staffID string, accessLevel int) error {
	payload := map[string]interface{}{"access_level": accessLevel}
	endpoint := fmt.Sprintf("/staff_memberships?id=eq.%s", url.QueryEscape(staffID))
	respBody, err := db.makeRequest("PATCH", endpoint, payload)
	if err != nil {
		return fmt.Errorf("failed to update access level: %w", err)
	}
	if _, err := firstOf[models.StaffMembership](respBody); err != nil {
		return err
	}
	return nil
}

// ==== Staff invitations ====

func (db *SupabaseDatabase) CreateInvitation(inv *models.StaffInvitation) error {
	payload := map[string]interface{}{
		"organization_id": inv.OrganizationID,
		"email":           inv.Email,
		"inviter_id":      inv.InviterID,
		"access_level":    inv.AccessLevel,
		"token":           inv.Token,
		"status":          inv.Status,
		"expires_at":      inv.ExpiresAt.Format(time.RFC3339),
	}
	respBody, err := db.makeRequest("POST", "/staff_invitations", payload)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	created, err := firstOf[models.StaffInvitation](respBody)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	inv.ID = created.ID
	inv.CreatedAt = created.CreatedAt
	inv.UpdatedAt = created.UpdatedAt
	return nil
}

func (db *SupabaseDatabase) GetInvitationByToken(token string) (*models.StaffInvitation, error) {
	endpoint := fmt.Sprintf("/staff_invitations?token=eq.%s&select=*", url.QueryEscape(token))
	respBody, err := db.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return firstOf[models.StaffInvitation](respBody)
}

func (db *SupabaseDatabase) ListInvitationsByEmail(email string) ([]models.StaffInvitation, error) {
	endpoint := fmt.Sprintf("/staff_invitations?email=eq.%s&status=eq.pending&select=*&order=created_at.desc",
		url.QueryEscape(email))
	respBody, err := db.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	var invs []models.StaffInvitation
	if err := json.Unmarshal(respBody, &invs); err != nil {
		return nil, fmt.Errorf("failed to parse invitations: %w", err)
	}
	return invs, nil
}

func (db *SupabaseDatabase) UpdateInvitation(inv *models.StaffInvitation) error {
	payload := map[string]interface{}{
		"status":     inv.Status,
		"updated_at": time.Now().Format(time.RFC3339),
	}
	if inv.AcceptedBy != nil {
		payload["accepted_by"] = *inv.AcceptedBy
	}
	endpoint := fmt.Sprintf("/staff_invitations?id=eq.%s", url.QueryEscape(inv.ID))
	if _, err := db.makeRequest("PATCH", endpoint, payload); err != nil {
		return fmt.Errorf("failed to update invitation: %w", err)
	}
	return nil
}

// ==== Goals ====

func (db *SupabaseDatabase) CreateGoal(goal *models.Goal) error {
	payload := map[string]interface{}{
		"organization_id": goal.OrganizationID,
		"title":           goal.Title,
		"description":     goal.Description,
		"status":          goal.Status,
		"created_by":      goal.CreatedBy,
	}
	if goal.TargetDate != nil {
		payload["target_date"] = goal.TargetDate.Format(time.RFC3339)
	}
	respBody, err := db.makeRequest("POST", "/goals", payload)
	if err != nil {
		return fmt.Errorf("failed to create goal: %w", err)
	}
	created, err := firstOf[models.Goal](respBody)
	if err != nil {
		return fmt.Errorf("failed to create goal: %w", err)
	}
	goal.ID = created.ID
	goal.CreatedAt = created.CreatedAt
	goal.UpdatedAt = created.UpdatedAt
	return nil
}

func (db *SupabaseDatabase) GetGoal(goalID string) (*models.Goal, error) {
	endpoint := fmt.Sprintf("/goals?id=eq.%s&select=*", url.QueryEscape(goalID))
	respBody, err := db.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	return firstOf[models.Goal](respBody)
}

func (db *SupabaseDatabase) ListGoalsByOrganization(orgID string) ([]models.Goal, error) {
	endpoint := fmt.Sprintf("/goals?organization_id=eq.%s&select=*&order=created_at", url.QueryEscape(orgID))
	respBody, err := db.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	var goals []models.Goal
	if err := json.Unmarshal(respBody, &goals); err != nil {
		return nil, fmt.Errorf("failed to parse goals: %w", err)
	}
	return goals, nil
}

func (db *SupabaseDatabase) UpdateGoal(goal *models.Goal) error {
	payload := map[string]interface{}{
		"title":       goal.Title,
		"description": goal.Description,
		"status":      goal.Status,
		"updated_at":  time.Now().Format(time.RFC3339),
	}
	if goal.TargetDate != nil {
		payload["target_date"] = goal.TargetDate.Format(time.RFC3339)
	}
	endpoint := fmt.Sprintf("/goals?id=eq.%s", url.QueryEscape(goal.ID))
	if _, err := db.makeRequest("PATCH", endpoint, payload); err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}
	return nil
}

func (db *SupabaseDatabase) DeleteGoal(goalID string) error {
	endpoint := fmt.Sprintf("/goals?id=eq.%s", url.QueryEscape(goalID))
	respBody, err := db.makeRequest("DELETE", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	if _, err := firstOf[models.Goal](respBody); err != nil {
		return err
	}
	return nil
}

// ==== Subtasks ====

func (db *SupabaseDatabase) CreateSubtask(st *models.Subtask) error {
	payload := map[string]interface{}{
		"goal_id":     st.GoalID,
		"title":       st.Title,
		"description": st.Description,
		"status":      st.Status,
		"priority":    st.Priority,
		"created_by":  st.CreatedBy,
	}
	if st.DueDate != nil {
		payload["due_date"] = st.DueDate.Format(time.RFC3339)
	}
	respBody, err := db.makeRequest("POST", "/subtasks", payload)
	if err != nil {
		return fmt.Errorf("failed to create subtask: %w", err)
	}
	created, err := firstOf[models.Subtask](respBody)
	if err != nil {
		return fmt.Errorf("failed to create subtask: %w", err)
	}
	st.ID = created.ID
	st.CreatedAt = created.CreatedAt
	st.UpdatedAt = created.UpdatedAt
	return nil
}

func (db *SupabaseDatabase) GetSubtask(subtaskID string) (*models.Subtask, error) {
	endpoint := fmt.Sprintf("/subtasks?id=eq.%s&select=*", url.QueryEscape(subtaskID))
	respBody, err := db.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get subtask: %w", err)
	}
	return firstOf[models.Subtask](respBody)
}

func (db *SupabaseDatabase) ListSubtasksByGoal(goalID string) ([]models.Subtask, error) {
	endpoint := fmt.Sprintf("/subtasks?goal_id=eq.%s&select=*&order=created_at", url.QueryEscape(goalID))
	respBody, err := db.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list subtasks: %w", err)
	}
	var subtasks []models.Subtask
	if err := json.Unmarshal(respBody, &subtasks); err != nil {
		return nil, fmt.Errorf("failed to parse subtasks: %w", err)
	}
	return subtasks, nil
}

func (db *SupabaseDatabase) UpdateSubtask(st *models.Subtask) error {
	payload := map[string]interface{}{
		"title":       st.Title,
		"description": st.Description,
		"status":      st.Status,
		"priority":    st.Priority,
		"updated_at":  time.Now().Format(time.RFC3339),
	}
	if st.DueDate != nil {
		payload["due_date"] = st.DueDate.Format(time.RFC3339)
	}
	endpoint := fmt.Sprintf("/subtasks?id=eq.%s", url.QueryEscape(st.ID))
	if _, err := db.makeRequest("PATCH", endpoint, payload); err != nil {
		return fmt.Errorf("failed to update subtask: %w", err)
	}
	return nil
}

func (db *SupabaseDatabase) DeleteSubtask(subtaskID string) error {
	endpoint := fmt.Sprintf("/subtasks?id=eq.%s", url.QueryEscape(subtaskID))
	respBody, err := db.makeRequest("DELETE", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to delete subtask: %w", err)
	}
	if _, err := firstOf[models.Subtask](respBody); err != nil {
		return err
	}
	return nil
}

// ==== Subtask assignments ====

func (db *SupabaseDatabase) ListAssignmentsBySubtask(subtaskID string) ([]models.Assignment, error) {
	endpoint := fmt.Sprintf("/subtask_assignments?subtask_id=eq.%s&select=*&order=assigned_at,id",
		url.QueryEscape(subtaskID))
	respBody, err := db.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	var assignments []models.Assignment
	if err := json.Unmarshal(respBody, &assignments); err != nil {
		return nil, fmt.Errorf("failed to parse assignments: %w", err)
	}
	return assignments, nil
}

func (db *SupabaseDatabase) CreateAssignment(a *models.Assignment) error {
	payload := map[string]interface{}{
		"subtask_id": a.SubtaskID,
		"staff_id":   a.StaffID,
		"status":     a.Status,
	}
	if a.AssignedBy != nil {
		payload["assigned_by"] = *a.AssignedBy
	}
	respBody, err := db.makeRequest("POST", "/subtask_assignments", payload)
	if err != nil {
		return duplicateOr(err, "failed to create assignment")
	}
	created, err := firstOf[models.Assignment](respBody)
	if err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	a.ID = created.ID
	a.AssignedAt = created.AssignedAt
	return nil
}

func (db *SupabaseDatabase) DeleteAssignment(subtaskID, staffID string) error {
	endpoint := fmt.Sprintf("/subtask_assignments?subtask_id=eq.%s&staff_id=eq.%s",
		url.QueryEscape(subtaskID), url.QueryEscape(staffID))
	if _, err := db.makeRequest("DELETE", endpoint, nil); err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	return nil
}

// HealthCheck 健康检查
func (db *SupabaseDatabase) HealthCheck() error {
	_, err := db.makeRequest("GET", "/users?select=id&limit=1", nil)
	return err
}

// Close 关闭连接（REST客户端无需关闭）
func (db *SupabaseDatabase) Close() error {
	return nil
}
