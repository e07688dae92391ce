package domain

import (
	"strings"
	"time"
)

// Role is a workspace-scoped permission level.
type Role string

const (
	RoleOwner  Role = "Owner"
	RoleAdmin  Role = "Admin"
	RoleMember Role = "Member"
)

// ParseRole matches a role name case-insensitively and reports whether it is known.
func ParseRole(raw string) (Role, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, r := range []Role{RoleOwner, RoleAdmin, RoleMember} {
		if strings.EqualFold(string(r), trimmed) {
			return r, true
		}
	}
	return "", false
}

// User is a workspace member. WorkspaceID never changes after signup.
type User struct {
	ID          string
	WorkspaceID string
	TeamID      *string
	Email       string
	Role        Role
	CreatedAt   time.Time
}

// InTeam reports whether the user currently belongs to any team.
func (u User) InTeam() bool {
	return u.TeamID != nil && *u.TeamID != ""
}

// Workspace is the tenant boundary for users, teams, tasks and invites.
type Workspace struct {
	ID          string
	Name        string
	MaxMembers  int
	EmailDomain string
	CreatedAt   time.Time
}

// EmailDomainOf returns the lower-cased domain part of an address, or "" when
// the address has no '@'.
func EmailDomainOf(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}

// AcceptsEmail reports whether the address belongs to the workspace's domain.
func (w Workspace) AcceptsEmail(email string) bool {
	domain := EmailDomainOf(email)
	return domain != "" && domain == strings.ToLower(w.EmailDomain)
}
