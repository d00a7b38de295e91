package database

import (
	"sort"
	"strings"
	"sync"
	"time"

	"venturehub-backend/pkg/models"

	"github.com/google/uuid"
)

// MemoryDatabase is an in-memory implementation used for development and
// tests. It enforces the same uniqueness rules the SQL schema does: one
// staff membership per (organization, user) and one assignment row per
// (subtask, staff member).
type MemoryDatabase struct {
	mu sync.Mutex

	users         map[string]models.User
	organizations map[string]models.Organization
	staff         map[string]models.StaffMembership
	invitations   map[string]models.StaffInvitation
	goals         map[string]models.Goal
	subtasks      map[string]models.Subtask
	// assignments keeps insertion order per subtask so projections stay
	// first-assigned-first
	assignments []models.Assignment
}

// NewMemoryDatabase 创建内存数据库实例
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		users:         make(map[string]models.User),
		organizations: make(map[string]models.Organization),
		staff:         make(map[string]models.StaffMembership),
		invitations:   make(map[string]models.StaffInvitation),
		goals:         make(map[string]models.Goal),
		subtasks:      make(map[string]models.Subtask),
	}
}

// ==== Users ====

func (db *MemoryDatabase) CreateUser(user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if strings.EqualFold(u.Email, user.Email) {
			return ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	db.users[user.ID] = *user
	return nil
}

func (db *MemoryDatabase) GetUserByEmail(email string) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if strings.EqualFold(u.Email, email) {
			user := u
			return &user, nil
		}
	}
	return nil, ErrNotFound
}

func (db *MemoryDatabase) GetUserByID(id string) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	u, ok := db.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	user := u
	return &user, nil
}

func (db *MemoryDatabase) UpdateUser(user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.users[user.ID]; !ok {
		return ErrNotFound
	}
	user.UpdatedAt = time.Now()
	db.users[user.ID] = *user
	return nil
}

// ==== Organizations & staff memberships ====

func (db *MemoryDatabase) CreateOrganization(org *models.Organization) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	org.CreatedAt = time.Now()
	org.UpdatedAt = time.Now()
	db.organizations[org.ID] = *org
	return nil
}

func (db *MemoryDatabase) GetOrganization(orgID string) (*models.Organization, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	o, ok := db.organizations[orgID]
	if !ok {
		return nil, ErrNotFound
	}
	org := o
	return &org, nil
}

func (db *MemoryDatabase) UpdateOrganization(org *models.Organization) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.organizations[org.ID]; !ok {
		return ErrNotFound
	}
	org.UpdatedAt = time.Now()
	db.organizations[org.ID] = *org
	return nil
}

func (db *MemoryDatabase) ListUserOrganizations(userID string) ([]models.Organization, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	orgs := []models.Organization{}
	for _, o := range db.organizations {
		if o.OwnerID == userID {
			orgs = append(orgs, o)
			continue
		}
		for _, sm := range db.staff {
			if sm.OrganizationID == o.ID && sm.UserID == userID {
				orgs = append(orgs, o)
				break
			}
		}
	}
	sort.Slice(orgs, func(i, j int) bool { return orgs[i].CreatedAt.Before(orgs[j].CreatedAt) })
	return orgs, nil
}

func (db *MemoryDatabase) AddStaffMembership(m *models.StaffMembership) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, sm := range db.staff {
		if sm.OrganizationID == m.OrganizationID && sm.UserID == m.UserID {
			return ErrDuplicate
		}
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.CreatedAt = time.Now()
	db.staff[m.ID] = *m
	return nil
}

func (db *MemoryDatabase) GetStaffMembership(orgID, userID string) (*models.StaffMembership, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, sm := range db.staff {
		if sm.OrganizationID == orgID && sm.UserID == userID {
			m := sm
			return &m, nil
		}
	}
	return nil, ErrNotFound
}

func (db *MemoryDatabase) GetStaffMembershipByID(staffID string) (*models.StaffMembership, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	sm, ok := db.staff[staffID]
	if !ok {
		return nil, ErrNotFound
	}
	m := sm
	return &m, nil
}

func (db *MemoryDatabase) ListStaffByOrganization(orgID string) ([]models.StaffMember, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	members := []models.StaffMember{}
	for _, sm := range db.staff {
		if sm.OrganizationID != orgID {
			continue
		}
		member := models.StaffMember{StaffMembership: sm}
		if u, ok := db.users[sm.UserID]; ok {
			member.Name = u.Name
			member.Email = u.Email
		}
		members = append(members, member)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].CreatedAt.Before(members[j].CreatedAt) })
	return members, nil
}

func (db *MemoryDatabase) UpdateStaffAccessLevel(staffID string, accessLevel int) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	sm, ok := db.staff[staffID]
	if !ok {
		return ErrNotFound
	}
	sm.AccessLevel = accessLevel
	db.staff[staffID] = sm
	return nil
}

// ==== Staff invitations ====

func (db *MemoryDatabase) CreateInvitation(inv *models.StaffInvitation) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = time.Now()
	db.invitations[inv.ID] = *inv
	return nil
}

func (db *MemoryDatabase) GetInvitationByToken(token string) (*models.StaffInvitation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, inv := range db.invitations {
		if inv.Token == token {
			out := inv
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (db *MemoryDatabase) ListInvitationsByEmail(email string) ([]models.StaffInvitation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	invs := []models.StaffInvitation{}
	for _, inv := range db.invitations {
		if strings.EqualFold(inv.Email, email) && inv.Status == models.InvitationPending {
			invs = append(invs, inv)
		}
	}
	sort.Slice(invs, func(i, j int) bool { return invs[i].CreatedAt.After(invs[j].CreatedAt) })
	return invs, nil
}

func (db *MemoryDatabase) UpdateInvitation(inv *models.StaffInvitation) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.invitations[inv.ID]; !ok {
		return ErrNotFound
	}
	inv.UpdatedAt = time.Now()
	db.invitations[inv.ID] = *inv
	return nil
}

// ==== Goals ====

func (db *MemoryDatabase) CreateGoal(goal *models.Goal) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if goal.ID == "" {
		goal.ID = uuid.New().String()
	}
	goal.CreatedAt = time.Now()
	goal.UpdatedAt = time.Now()
	db.goals[goal.ID] = *goal
	return nil
}

func (db *MemoryDatabase) GetGoal(goalID string) (*models.Goal, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	g, ok := db.goals[goalID]
	if !ok {
		return nil, ErrNotFound
	}
	goal := g
	return &goal, nil
}

func (db *MemoryDatabase) ListGoalsByOrganization(orgID string) ([]models.Goal, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	goals := []models.Goal{}
	for _, g := range db.goals {
		if g.OrganizationID == orgID {
			goals = append(goals, g)
		}
	}
	sort.Slice(goals, func(i, j int) bool { return goals[i].CreatedAt.Before(goals[j].CreatedAt) })
	return goals, nil
}

func (db *MemoryDatabase) UpdateGoal(goal *models.Goal) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.goals[goal.ID]; !ok {
		return ErrNotFound
	}
	goal.UpdatedAt = time.Now()
	db.goals[goal.ID] = *goal
	return nil
}

func (db *MemoryDatabase) DeleteGoal(goalID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.goals[goalID]; !ok {
		return ErrNotFound
	}
	delete(db.goals, goalID)
	// Cascade: subtasks under the goal and their assignment rows
	for id, st := range db.subtasks {
		if st.GoalID == goalID {
			delete(db.subtasks, id)
			db.removeAssignmentsLocked(id)
		}
	}
	return nil
}

// ==== Subtasks ====

func (db *MemoryDatabase) CreateSubtask(st *models.Subtask) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	st.CreatedAt = time.Now()
	st.UpdatedAt = time.Now()
	db.subtasks[st.ID] = *st
	return nil
}

func (db *MemoryDatabase) GetSubtask(subtaskID string) (*models.Subtask, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, ok := db.subtasks[subtaskID]
	if !ok {
		return nil, ErrNotFound
	}
	st := s
	return &st, nil
}

func (db *MemoryDatabase) ListSubtasksByGoal(goalID string) ([]models.Subtask, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	subtasks := []models.Subtask{}
	for _, st := range db.subtasks {
		if st.GoalID == goalID {
			subtasks = append(subtasks, st)
		}
	}
	sort.Slice(subtasks, func(i, j int) bool { return subtasks[i].CreatedAt.Before(subtasks[j].CreatedAt) })
	return subtasks, nil
}

func (db *MemoryDatabase) UpdateSubtask(st *models.Subtask) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.subtasks[st.ID]; !ok {
		return ErrNotFound
	}
	st.UpdatedAt = time.Now()
	db.subtasks[st.ID] = *st
	return nil
}

func (db *MemoryDatabase) DeleteSubtask(subtaskID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.subtasks[subtaskID]; !ok {
		return ErrNotFound
	}
	delete(db.subtasks, subtaskID)
	db.removeAssignmentsLocked(subtaskID)
	return nil
}

// ==== Subtask assignments ====

func (db *MemoryDatabase) ListAssignmentsBySubtask(subtaskID string) ([]models.Assignment, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := []models.Assignment{}
	for _, a := range db.assignments {
		if a.SubtaskID == subtaskID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (db *MemoryDatabase) CreateAssignment(a *models.Assignment) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.assignments {
		if existing.SubtaskID == a.SubtaskID && existing.StaffID == a.StaffID {
			return ErrDuplicate
		}
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now()
	}
	db.assignments = append(db.assignments, *a)
	return nil
}

func (db *MemoryDatabase) DeleteAssignment(subtaskID, staffID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	kept := db.assignments[:0]
	for _, a := range db.assignments {
		if a.SubtaskID == subtaskID && a.StaffID == staffID {
			continue
		}
		kept = append(kept, a)
	}
	db.assignments = kept
	return nil
}

func (db *MemoryDatabase) removeAssignmentsLocked(subtaskID string) {
	kept := db.assignments[:0]
	for _, a := range db.assignments {
		if a.SubtaskID == subtaskID {
			continue
		}
		kept = append(kept, a)
	}
	db.assignments = kept
}

// HealthCheck 健康检查
func (db *MemoryDatabase) HealthCheck() error {
	return nil
}

// Close 关闭连接
func (db *MemoryDatabase) Close() error {
	return nil
}
