package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the CRM role of an internal user, driving record visibility.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleAgent   Role = "AGENT"
	RoleViewer  Role = "VIEWER"
)

// Contact is a CRM contact. Several contacts within a tenant may share the
// same normalized phone; the visibility predicate plus a deterministic
// tie-break disambiguates, never a uniqueness constraint.
type Contact struct {
	ID              uuid.UUID     `json:"id"`
	TenantID        uuid.UUID     `json:"tenant_id"`
	OwnerUserID     uuid.UUID     `json:"owner_user_id"`
	AssignedUserID  uuid.NullUUID `json:"assigned_user_id,omitempty"`
	Name            string        `json:"name"`
	RawPhone        string        `json:"raw_phone"`
	NormalizedPhone string        `json:"normalized_phone"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Requester identifies who is asking, for visibility filtering.
// TeamUserIDs is the set of user ids in the requester's team, supplied by the
// caller (claims or team lookup); it includes the requester for convenience.
type Requester struct {
	UserID      uuid.UUID
	Role        Role
	TeamUserIDs []uuid.UUID
}

func (r Requester) inTeam(userID uuid.UUID) bool {
	for _, id := range r.TeamUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// CanSee reports whether the requester's role permits seeing the contact.
// ADMIN sees all; MANAGER sees own plus team's; AGENT sees own plus contacts
// assigned to them; VIEWER sees the team's (read-only).
func (r Requester) CanSee(c *Contact) bool {
	switch r.Role {
	case RoleAdmin:
		return true
	case RoleManager:
		return c.OwnerUserID == r.UserID || r.inTeam(c.OwnerUserID)
	case RoleAgent:
		return c.OwnerUserID == r.UserID ||
			(c.AssignedUserID.Valid && c.AssignedUserID.UUID == r.UserID)
	case RoleViewer:
		return r.inTeam(c.OwnerUserID)
	default:
		return false
	}
}
