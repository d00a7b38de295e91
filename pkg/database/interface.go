package database

import (
	"errors"
	"fmt"
	"os"

	"venturehub-backend/pkg/models"
)

// Storage-level sentinels. Implementations translate their native errors
// (sql.ErrNoRows, REST 404s, pq 23505) into these so callers can branch with
// errors.Is instead of string matching.
var (
	ErrNotFound  = errors.New("row not found")
	ErrDuplicate = errors.New("duplicate row")
)

// DatabaseInterface 定义数据库访问接口
type DatabaseInterface interface {
	// 用户管理
	CreateUser(user *models.User) error
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	UpdateUser(user *models.User) error

	// Organizations & staff memberships
	CreateOrganization(org *models.Organization) error
	GetOrganization(orgID string) (*models.Organization, error)
	UpdateOrganization(org *models.Organization) error
	ListUserOrganizations(userID string) ([]models.Organization, error)
	AddStaffMembership(m *models.StaffMembership) error
	GetStaffMembership(orgID, userID string) (*models.StaffMembership, error)
	GetStaffMembershipByID(staffID string) (*models.StaffMembership, error)
	ListStaffByOrganization(orgID string) ([]models.StaffMember, error)
	UpdateStaffAccessLevel(staffID string, accessLevel int) error

	// Staff invitations
	CreateInvitation(inv *models.StaffInvitation) error
	GetInvitationByToken(token string) (*models.StaffInvitation, error)
	ListInvitationsByEmail(email string) ([]models.StaffInvitation, error)
	UpdateInvitation(inv *models.StaffInvitation) error

	// Goals
	CreateGoal(goal *models.Goal) error
	GetGoal(goalID string) (*models.Goal, error)
	ListGoalsByOrganization(orgID string) ([]models.Goal, error)
	UpdateGoal(goal *models.Goal) error
	DeleteGoal(goalID string) error

	// Subtasks
	CreateSubtask(st *models.Subtask) error
	GetSubtask(subtaskID string) (*models.Subtask, error)
	ListSubtasksByGoal(goalID string) ([]models.Subtask, error)
	UpdateSubtask(st *models.Subtask) error
	DeleteSubtask(subtaskID string) error

	// Subtask assignments (junction rows; unique on (subtask_id, staff_id))
	ListAssignmentsBySubtask(subtaskID string) ([]models.Assignment, error)
	CreateAssignment(a *models.Assignment) error
	DeleteAssignment(subtaskID, staffID string) error

	// 健康检查
	HealthCheck() error

	// 关闭连接
	Close() error
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	UseMemoryDB bool
	PostgresDSN string
	SupabaseURL string
	SupabaseKey string
	Debug       bool
}

// NewDatabase 根据环境与配置选择数据库实现
func NewDatabase(config DatabaseConfig) DatabaseInterface {
	// 是否在 Vercel 生产环境
	isVercelProduction := IsVercelEnvironment()

	if isVercelProduction {
		fmt.Printf("🧭 Detected Vercel production environment\n")

		// Vercel 优先使用 Supabase（避免 IPv6）
		if config.SupabaseURL != "" && config.SupabaseKey != "" {
			fmt.Printf("🚀  Using Supabase REST API (Vercel optimized)\n")
			return NewSupabaseDatabase(config.SupabaseURL, config.SupabaseKey)
		}

		// 次选 PostgreSQL
		if config.PostgresDSN != "" {
			fmt.Printf("🌐  Using PostgreSQL in Vercel (may have IPv6 issues)\n")
			return NewPostgresDatabase(config.PostgresDSN)
		}

		panic("No valid database configured for Vercel environment. Please set SUPABASE_URL+SUPABASE_SERVICE_KEY or POSTGRES_DSN")
	}

	// 非 Vercel 环境：PostgreSQL > Supabase > 内存
	if config.PostgresDSN != "" {
		fmt.Printf("🗄️  Using PostgreSQL database\n")
		return NewPostgresDatabase(config.PostgresDSN)
	}

	if config.SupabaseURL != "" && config.SupabaseKey != "" {
		fmt.Printf("🧰  Using Supabase REST API\n")
		return NewSupabaseDatabase(config.SupabaseURL, config.SupabaseKey)
	}

	if config.UseMemoryDB {
		fmt.Printf("🧪  Using in-memory database (development only)\n")
		return NewMemoryDatabase()
	}

	panic("No valid database configuration found. Please configure POSTGRES_DSN or SUPABASE_URL+SUPABASE_SERVICE_KEY")
}

// IsVercelEnvironment 检查 Vercel 环境
func IsVercelEnvironment() bool {
	vercelEnv := os.Getenv("VERCEL_ENV")
	vercelURL := os.Getenv("VERCEL_URL")
	awsLambda := os.Getenv("AWS_LAMBDA_FUNCTION_NAME")
	return vercelEnv != "" || vercelURL != "" || awsLambda != ""
}
