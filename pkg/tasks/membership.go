package tasks

import (
	"errors"
	"fmt"

	"venturehub-backend/pkg/database"
)

// ManagerAccessLevel is the access level at which a staff membership gains
// organization-wide update authority. The levels themselves are ordinal
// (1-5) and carry no other names in the data model.
const ManagerAccessLevel = 4

// MembershipKind tags the Membership variant
type MembershipKind int

const (
	MembershipNone MembershipKind = iota
	MembershipStaff
	MembershipOwner
)

func (k MembershipKind) String() string {
	switch k {
	case MembershipOwner:
		return "owner"
	case MembershipStaff:
		return "staff"
	default:
		return "none"
	}
}

// Membership is an actor's resolved relationship to an organization:
// Owner, Staff (with access level and staff id), or None.
// StaffID and AccessLevel are only meaningful for MembershipStaff.
type Membership struct {
	Kind        MembershipKind
	StaffID     string
	AccessLevel int
}

// IsMember reports whether the actor belongs to the organization at all
func (m Membership) IsMember() bool {
	return m.Kind == MembershipOwner || m.Kind == MembershipStaff
}

// IsManager reports whether the membership carries manager authority.
// The owner's authority is handled separately by the evaluator.
func (m Membership) IsManager() bool {
	return m.Kind == MembershipStaff && m.AccessLevel >= ManagerAccessLevel
}

// AssignerStaffID returns the staff id to record as assigned_by, or nil when
// the actor is the organization owner (owners may hold no membership row).
func (m Membership) AssignerStaffID() *string {
	if m.Kind == MembershipStaff && m.StaffID != "" {
		id := m.StaffID
		return &id
	}
	return nil
}

// ResolveMembership resolves the actor's relationship to an organization.
// The organization's owner_id always wins over the membership table; a
// missing organization propagates as ErrNotFound, not as None.
func (s *Service) ResolveMembership(orgID, actorID string) (Membership, error) {
	org, err := s.store.GetOrganization(orgID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return Membership{}, fmt.Errorf("organization %s: %w", orgID, ErrNotFound)
		}
		return Membership{}, fmt.Errorf("failed to resolve organization: %w", err)
	}

	if org.OwnerID == actorID {
		return Membership{Kind: MembershipOwner}, nil
	}

	sm, err := s.store.GetStaffMembership(orgID, actorID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return Membership{Kind: MembershipNone}, nil
		}
		return Membership{}, fmt.Errorf("failed to resolve staff membership: %w", err)
	}

	return Membership{
		Kind:        MembershipStaff,
		StaffID:     sm.ID,
		AccessLevel: sm.AccessLevel,
	}, nil
}
