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
	"venturehub-backend/pkg/utils"

	"golang.org/x/crypto/bcrypt"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config, db database.DatabaseInterface) *AuthHandler {
	return &AuthHandler{
		config: cfg,
		db:     db,
	}
}

// ensureDefaultOrg ensures the user owns at least one organization.
// Returns the organization ID, or an empty string on failure.
func (h *AuthHandler) ensureDefaultOrg(user *models.User) (string, error) {
	if user == nil || user.ID == "" {
		return "", fmt.Errorf("invalid user")
	}
	// Check existing orgs
	orgs, err := h.db.ListUserOrganizations(user.ID)
	if err == nil && len(orgs) > 0 {
		return orgs[0].ID, nil
	}
	// Create a default org
	displayName := user.Name
	if strings.TrimSpace(displayName) == "" {
		parts := strings.Split(user.Email, "@")
		if len(parts) > 0 {
			displayName = parts[0]
		}
	}
	org := &models.Organization{
		Name:        fmt.Sprintf("%s's Venture", displayName),
		Description: "Default organization",
		OwnerID:     user.ID,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := h.db.CreateOrganization(org); err != nil {
		return "", err
	}
	return org.ID, nil
}

// Register 用户注册
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.UserRegisterRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		utils.WriteValidationErrorResponse(w, "A valid email is required", "email")
		return
	}
	if len(req.Password) < 8 {
		utils.WriteValidationErrorResponse(w, "Password must be at least 8 characters", "password")
		return
	}

	// 检查邮箱是否已被占用
	if existing, err := h.db.GetUserByEmail(req.Email); err == nil && existing != nil {
		utils.WriteConflictResponse(w, "Email already registered")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to hash password")
		return
	}

	user := &models.User{
		Email:    req.Email,
		Password: string(hash),
		Name:     strings.TrimSpace(req.Name),
	}
	if err := h.db.CreateUser(user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			utils.WriteConflictResponse(w, "Email already registered")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to create user: "+err.Error())
		return
	}

	// 为新用户创建默认组织（best-effort）
	orgID, err := h.ensureDefaultOrg(user)
	if err != nil {
		fmt.Printf("[warn] failed to create default org for %s: %v\n", user.ID, err)
	}

	jwtService := utils.NewJWTService(h.config.JWTSecret)
	accessToken, refreshToken, expiresIn, err := jwtService.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to generate tokens")
		return
	}

	utils.WriteCreatedResponse(w, models.UserLoginResponse{
		User:         *user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
		OrgID:        orgID,
	})
}

// Login 用户登录
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.UserLoginRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		utils.WriteBadRequestResponse(w, "Email and password are required")
		return
	}

	user, err := h.db.GetUserByEmail(req.Email)
	if err != nil {
		// 不区分"不存在"与"密码错误"，避免账号枚举
		utils.WriteUnauthorizedResponse(w, "Invalid email or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid email or password")
		return
	}

	orgID := ""
	if orgs, err := h.db.ListUserOrganizations(user.ID); err == nil && len(orgs) > 0 {
		orgID = orgs[0].ID
	}

	jwtService := utils.NewJWTService(h.config.JWTSecret)
	accessToken, refreshToken, expiresIn, err := jwtService.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to generate tokens")
		return
	}

	utils.WriteSuccessResponse(w, models.UserLoginResponse{
		User:         *user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
		OrgID:        orgID,
	})
}

// RefreshToken 刷新令牌
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		utils.WriteBadRequestResponse(w, "refresh_token is required")
		return
	}

	jwtService := utils.NewJWTService(h.config.JWTSecret)
	accessToken, expiresIn, err := jwtService.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid or expired refresh token: "+err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"access_token": accessToken,
		"expires_in":   expiresIn,
	})
}

// Logout 用户登出（无状态JWT：客户端丢弃令牌即可）
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, map[string]interface{}{"logged_out": true})
}

// Profile 获取当前用户信息
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	full, err := h.db.GetUserByID(user.ID)
	if err != nil {
		utils.WriteNotFoundResponse(w, "User not found")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"user": full})
}

// HealthCheck 健康检查端点
func (h *AuthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	if err := h.db.HealthCheck(); err != nil {
		dbStatus = "error: " + err.Error()
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"status":      "ok",
		"environment": h.config.Environment,
		"database":    dbStatus,
		"time":        time.Now().Format(time.RFC3339),
	})
}
