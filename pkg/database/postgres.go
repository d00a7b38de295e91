package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"venturehub-backend/pkg/models"

	"github.com/lib/pq"
)

// PostgresDatabase PostgreSQL数据库实现
type PostgresDatabase struct {
	db *sql.DB
}

// NewPostgresDatabase 创建PostgreSQL数据库实例
func NewPostgresDatabase(dsn string) DatabaseInterface {
	// 尝试多种连接策略来解决Vercel Lambda的IPv6问题
	// Sanitize DSN to avoid stray CR/LF from env values
	dsn = strings.TrimSpace(dsn)
	strategies := []string{
		addConnectionParams(dsn, "prefer_simple_protocol=true"),
		addConnectionParams(dsn, "prefer_simple_protocol=true&connect_timeout=10"),
		addConnectionParams(dsn, "sslmode=require&prefer_simple_protocol=true"),
		dsn, // 最后尝试原始DSN
	}

	var db *sql.DB
	var err error

	for i, strategy := range strategies {
		fmt.Printf("🔄 Trying connection strategy %d...\n", i+1)

		db, err = sql.Open("postgres", strategy)
		if err != nil {
			fmt.Printf("❌ Strategy %d failed to open: %v\n", i+1, err)
			continue
		}

		// 设置连接池参数，适合无服务器环境
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err = db.Ping(); err != nil {
			fmt.Printf("❌ Strategy %d failed to ping: %v\n", i+1, err)
			db.Close()
			continue
		}

		fmt.Printf("✅ PostgreSQL connection established successfully with strategy %d\n", i+1)
		return &PostgresDatabase{db: db}
	}

	panic(fmt.Sprintf("Failed to connect to PostgreSQL with all strategies. Last error: %v", err))
}

// addConnectionParams 添加连接参数到DSN
func addConnectionParams(dsn, params string) string {
	if params == "" {
		return dsn
	}

	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}

	return dsn + separator + params
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505), e.g. a concurrent reconciliation inserting the
// same (subtask_id, staff_id) pair
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

// ==== Users ====

// CreateUser 创建用户
func (db *PostgresDatabase) CreateUser(user *models.User) error {
	query := `
        INSERT INTO public.users (email, password_hash, name, avatar, created_at, updated_at)
        VALUES ($1, $2, $3, $4, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `
	err := db.db.QueryRow(query, user.Email, user.Password, user.Name, user.Avatar).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByEmail 根据邮箱获取用户
func (db *PostgresDatabase) GetUserByEmail(email string) (*models.User, error) {
	query := `
        SELECT id, email, COALESCE(name,''), COALESCE(avatar,''), COALESCE(password_hash,''),
               created_at, updated_at
        FROM public.users
        WHERE email = $1
    `
	var u models.User
	err := db.db.QueryRow(query, email).Scan(
		&u.ID, &u.Email, &u.Name, &u.Avatar, &u.Password, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &u, nil
}

// GetUserByID 根据ID获取用户
func (db *PostgresDatabase) GetUserByID(id string) (*models.User, error) {
	query := `
        SELECT id, email, COALESCE(name,''), COALESCE(avatar,''), created_at, updated_at
        FROM public.users
        WHERE id = $1
    `
	var u models.User
	err := db.db.QueryRow(query, id).Scan(
		&u.ID, &u.Email, &u.Name, &u.Avatar, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// UpdateUser 更新用户
func (db *PostgresDatabase) UpdateUser(user *models.User) error {
	if user.ID == "" {
		return fmt.Errorf("user ID is required for update")
	}
	query := `
        UPDATE public.users
        SET name = $1,
            avatar = $2,
            updated_at = NOW()
        WHERE id = $3
    `
	_, err := db.db.Exec(query, user.Name, user.Avatar, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// ==== Organizations & staff memberships ====

// CreateOrganization creates the organization and records the caller as owner
func (db *PostgresDatabase) CreateOrganization(org *models.Organization) error {
	query := `
        INSERT INTO public.organizations (name, owner_id, description, avatar, created_at, updated_at)
        VALUES ($1, $2, $3, $4, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `
	err := db.db.QueryRow(query, org.Name, org.OwnerID, org.Description, org.Avatar).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetOrganization(orgID string) (*models.Organization, error) {
	query := `
        SELECT id, name, owner_id, COALESCE(description,''), COALESCE(avatar,''), created_at, updated_at
        FROM public.organizations
        WHERE id = $1
    `
	var org models.Organization
	err := db.db.QueryRow(query, orgID).Scan(
		&org.ID, &org.Name, &org.OwnerID, &org.Description, &org.Avatar, &org.CreatedAt, &org.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

func (db *PostgresDatabase) UpdateOrganization(org *models.Organization) error {
	query := `
        UPDATE public.organizations
        SET name = $1, description = $2, avatar = $3, updated_at = NOW()
        WHERE id = $4
    `
	_, err := db.db.Exec(query, org.Name, org.Description, org.Avatar, org.ID)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	return nil
}

// ListUserOrganizations lists organizations the user owns or belongs to as staff
func (db *PostgresDatabase) ListUserOrganizations(userID string) ([]models.Organization, error) {
	query := `
        SELECT DISTINCT o.id, o.name, o.owner_id, COALESCE(o.description,''), COALESCE(o.avatar,''),
               o.created_at, o.updated_at
        FROM public.organizations o
        LEFT JOIN public.staff_memberships sm ON sm.organization_id = o.id
        WHERE o.owner_id = $1 OR sm.user_id = $1
        ORDER BY o.created_at
    `
	rows, err := db.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	orgs := []models.Organization{}
	for rows.Next() {
		var o models.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.OwnerID, &o.Description, &o.Avatar, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

func (db *PostgresDatabase) AddStaffMembership(m *models.StaffMembership) error {
	query := `
        INSERT INTO public.staff_memberships (organization_id, user_id, access_level, created_at)
        VALUES ($1, $2, $3, NOW())
        RETURNING id, created_at
    `
	err := db.db.QueryRow(query, m.OrganizationID, m.UserID, m.AccessLevel).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to add staff membership: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetStaffMembership(orgID, userID string) (*models.StaffMembership, error) {
	query := `
        SELECT id, organization_id, user_id, access_level, created_at
        FROM public.staff_memberships
        WHERE organization_id = $1 AND user_id = $2
    `
	var m models.StaffMembership
	err := db.db.QueryRow(query, orgID, userID).Scan(
		&m.ID, &m.OrganizationID, &m.UserID, &m.AccessLevel, &m.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get staff membership: %w", err)
	}
	return &m, nil
}

func (db *PostgresDatabase) GetStaffMembershipByID(staffID string) (*models.StaffMembership, error) {
	query := `
        SELECT id, organization_id, user_id, access_level, created_at
        FROM public.staff_memberships
        WHERE id = $1
    `
	var m models.StaffMembership
	err := db.db.QueryRow(query, staffID).Scan(
		&m.ID, &m.OrganizationID, &m.UserID, &m.AccessLevel, &m.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get staff membership: %w", err)
	}
	return &m, nil
}

// ListStaffByOrganization returns memberships joined with user identity
func (db *PostgresDatabase) ListStaffByOrganization(orgID string) ([]models.StaffMember, error) {
	query := `
        SELECT sm.id, sm.organization_id, sm.user_id, sm.access_level, sm.created_at,
               COALESCE(u.name,''), u.email
        FROM public.staff_memberships sm
        JOIN public.users u ON u.id = sm.user_id
        WHERE sm.organization_id = $1
        ORDER BY sm.created_at
    `
	rows, err := db.db.Query(query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	defer rows.Close()

	members := []models.StaffMember{}
	for rows.Next() {
		var m models.StaffMember
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.AccessLevel, &m.CreatedAt, &m.Name, &m.Email); err != nil {
			return nil, fmt.Errorf("failed to scan staff member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (db *PostgresDatabase) UpdateStaffAccessLevel(staffID string, accessLevel int) error {
	result, err := db.db.Exec(
		`UPDATE public.staff_memberships SET access_level = $1 WHERE id = $2`,
		accessLevel, staffID,
	)
	if err != nil {
		return fmt.Errorf("failed to update access level: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ==== Staff invitations ====

func (db *PostgresDatabase) CreateInvitation(inv *models.StaffInvitation) error {
	query := `
        INSERT INTO public.staff_invitations
            (organization_id, email, inviter_id, access_level, token, status, expires_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `
	err := db.db.QueryRow(query, inv.OrganizationID, inv.Email, inv.InviterID,
		inv.AccessLevel, inv.Token, inv.Status, inv.ExpiresAt).
		Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetInvitationByToken(token string) (*models.StaffInvitation, error) {
	query := `
        SELECT id, organization_id, email, inviter_id, access_level, token, status,
               expires_at, accepted_by, created_at, updated_at
        FROM public.staff_invitations
        WHERE token = $1
    `
	var inv models.StaffInvitation
	err := db.db.QueryRow(query, token).Scan(
		&inv.ID, &inv.OrganizationID, &inv.Email, &inv.InviterID, &inv.AccessLevel,
		&inv.Token, &inv.Status, &inv.ExpiresAt, &inv.AcceptedBy, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return &inv, nil
}

func (db *PostgresDatabase) ListInvitationsByEmail(email string) ([]models.StaffInvitation, error) {
	query := `
        SELECT id, organization_id, email, inviter_id, access_level, token, status,
               expires_at, accepted_by, created_at, updated_at
        FROM public.staff_invitations
        WHERE email = $1 AND status = 'pending'
        ORDER BY created_at DESC
    `
	rows, err := db.db.Query(query, email)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	invs := []models.StaffInvitation{}
	for rows.Next() {
		var inv models.StaffInvitation
		if err := rows.Scan(&inv.ID, &inv.OrganizationID, &inv.Email, &inv.InviterID, &inv.AccessLevel,
			&inv.Token, &inv.Status, &inv.ExpiresAt, &inv.AcceptedBy, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invs = append(invs, inv)
	}
	return invs, rows.Err()
}

func (db *PostgresDatabase) UpdateInvitation(inv *models.StaffInvitation) error {
	query := `
        UPDATE public.staff_invitations
        SET status = $1, accepted_by = $2, updated_at = NOW()
        WHERE id = $3
    `
	_, err := db.db.Exec(query, inv.Status, inv.AcceptedBy, inv.ID)
	if err != nil {
		return fmt.Errorf("failed to update invitation: %w", err)
	}
	return nil
}

// ==== Goals ====

func (db *PostgresDatabase) CreateGoal(goal *models.Goal) error {
	query := `
        INSERT INTO public.goals (organization_id, title, description, status, target_date, created_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `
	err := db.db.QueryRow(query, goal.OrganizationID, goal.Title, goal.Description,
		goal.Status, goal.TargetDate, goal.CreatedBy).
		Scan(&goal.ID, &goal.CreatedAt, &goal.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create goal: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetGoal(goalID string) (*models.Goal, error) {
	query := `
        SELECT id, organization_id, title, COALESCE(description,''), COALESCE(status,''),
               target_date, created_by, created_at, updated_at
        FROM public.goals
        WHERE id = $1
    `
	var g models.Goal
	err := db.db.QueryRow(query, goalID).Scan(
		&g.ID, &g.OrganizationID, &g.Title, &g.Description, &g.Status,
		&g.TargetDate, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	return &g, nil
}

func (db *PostgresDatabase) ListGoalsByOrganization(orgID string) ([]models.Goal, error) {
	query := `
        SELECT id, organization_id, title, COALESCE(description,''), COALESCE(status,''),
               target_date, created_by, created_at, updated_at
        FROM public.goals
        WHERE organization_id = $1
        ORDER BY created_at
    `
	rows, err := db.db.Query(query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	goals := []models.Goal{}
	for rows.Next() {
		var g models.Goal
		if err := rows.Scan(&g.ID, &g.OrganizationID, &g.Title, &g.Description, &g.Status,
			&g.TargetDate, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func (db *PostgresDatabase) UpdateGoal(goal *models.Goal) error {
	query := `
        UPDATE public.goals
        SET title = $1, description = $2, status = $3, target_date = $4, updated_at = NOW()
        WHERE id = $5
    `
	_, err := db.db.Exec(query, goal.Title, goal.Description, goal.Status, goal.TargetDate, goal.ID)
	if err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) DeleteGoal(goalID string) error {
	result, err := db.db.Exec(`DELETE FROM public.goals WHERE id = $1`, goalID)
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ==== Subtasks ====

func (db *PostgresDatabase) CreateSubtask(st *models.Subtask) error {
	query := `
        INSERT INTO public.subtasks (goal_id, title, description, status, priority, due_date, created_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `
	err := db.db.QueryRow(query, st.GoalID, st.Title, st.Description, st.Status,
		st.Priority, st.DueDate, st.CreatedBy).
		Scan(&st.ID, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create subtask: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetSubtask(subtaskID string) (*models.Subtask, error) {
	query := `
        SELECT id, goal_id, title, COALESCE(description,''), status, COALESCE(priority,''),
               due_date, created_by, created_at, updated_at
        FROM public.subtasks
        WHERE id = $1
    `
	var st models.Subtask
	err := db.db.QueryRow(query, subtaskID).Scan(
		&st.ID, &st.GoalID, &st.Title, &st.Description, &st.Status, &st.Priority,
		&st.DueDate, &st.CreatedBy, &st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get subtask: %w", err)
	}
	return &st, nil
}

func (db *PostgresDatabase) ListSubtasksByGoal(goalID string) ([]models.Subtask, error) {
	query := `
        SELECT id, goal_id, title, COALESCE(description,''), status, COALESCE(priority,''),
               due_date, created_by, created_at, updated_at
        FROM public.subtasks
        WHERE goal_id = $1
        ORDER BY created_at
    `
	rows, err := db.db.Query(query, goalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subtasks: %w", err)
	}
	defer rows.Close()

	subtasks := []models.Subtask{}
	for rows.Next() {
		var st models.Subtask
		if err := rows.Scan(&st.ID, &st.GoalID, &st.Title, &st.Description, &st.Status, &st.Priority,
			&st.DueDate, &st.CreatedBy, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subtask: %w", err)
		}
		subtasks = append(subtasks, st)
	}
	return subtasks, rows.Err()
}

func (db *PostgresDatabase) UpdateSubtask(st *models.Subtask) error {
	query := `
        UPDATE public.subtasks
        SET title = $1, description = $2, status = $3, priority = $4, due_date = $5, updated_at = NOW()
        WHERE id = $6
    `
	_, err := db.db.Exec(query, st.Title, st.Description, st.Status, st.Priority, st.DueDate, st.ID)
	if err != nil {
		return fmt.Errorf("failed to update subtask: %w", err)
	}
	return nil
}

// DeleteSubtask removes the subtask; assignment rows cascade via FK
func (db *PostgresDatabase) DeleteSubtask(subtaskID string) error {
	result, err := db.db.Exec(`DELETE FROM public.subtasks WHERE id = $1`, subtaskID)
	if err != nil {
		return fmt.Errorf("failed to delete subtask: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ==== Subtask assignments ====

// ListAssignmentsBySubtask returns assignments first-assigned-first
func (db *PostgresDatabase) ListAssignmentsBySubtask(subtaskID string) ([]models.Assignment, error) {
	query := `
        SELECT id, subtask_id, staff_id, assigned_by, COALESCE(status,''), assigned_at
        FROM public.subtask_assignments
        WHERE subtask_id = $1
        ORDER BY assigned_at, id
    `
	rows, err := db.db.Query(query, subtaskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	assignments := []models.Assignment{}
	for rows.Next() {
		var a models.Assignment
		if err := rows.Scan(&a.ID, &a.SubtaskID, &a.StaffID, &a.AssignedBy, &a.Status, &a.AssignedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// CreateAssignment inserts one assignment row. The (subtask_id, staff_id)
// unique constraint is the storage-side guard against concurrent
// double-assignment; violations come back as ErrDuplicate
func (db *PostgresDatabase) CreateAssignment(a *models.Assignment) error {
	query := `
        INSERT INTO public.subtask_assignments (subtask_id, staff_id, assigned_by, status, assigned_at)
        VALUES ($1, $2, $3, $4, NOW())
        RETURNING id, assigned_at
    `
	err := db.db.QueryRow(query, a.SubtaskID, a.StaffID, a.AssignedBy, a.Status).
		Scan(&a.ID, &a.AssignedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) DeleteAssignment(subtaskID, staffID string) error {
	_, err := db.db.Exec(
		`DELETE FROM public.subtask_assignments WHERE subtask_id = $1 AND staff_id = $2`,
		subtaskID, staffID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	return nil
}

// HealthCheck 健康检查
func (db *PostgresDatabase) HealthCheck() error {
	return db.db.Ping()
}

// Close 关闭连接
func (db *PostgresDatabase) Close() error {
	return db.db.Close()
}
