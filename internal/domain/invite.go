package domain

import "time"

// Invite is a one-shot, expiring token for joining a workspace.
type Invite struct {
	ID          string
	WorkspaceID string
	Code        string
	RoleToGrant Role
	ExpiresAt   time.Time
	Used        bool
	UsedAt      *time.Time
	UsedBy      *string
	Email       *string
	CreatedBy   string
	CreatedAt   time.Time
}

// Expired reports whether the invite is expired relative to now.
func (i Invite) Expired(now time.Time) bool {
	if i.ExpiresAt.IsZero() {
		return false
	}
	return now.UTC().After(i.ExpiresAt.UTC())
}

// NormalizeInviteRole maps anything other than Admin to Member. Owner is
// never granted through an invite.
func NormalizeInviteRole(raw string) Role {
	if role, ok := ParseRole(raw); ok && role == RoleAdmin {
		return RoleAdmin
	}
	return RoleMember
}
