// Package identity carries the authenticated caller's facts into the engine.
// The engine never authenticates; it only authorises from an Identity.
package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/splax/taskflow/internal/domain"
	"github.com/splax/taskflow/pkg/jwt"
)

// Identity describes the acting user.
type Identity struct {
	UserID      string
	WorkspaceID string
	TeamID      string
	Roles       []domain.Role
}

// HasRole reports whether the identity holds role.
func (i Identity) HasRole(role domain.Role) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// CanManageWorkspace reports whether the identity may administer its
// workspace (create invites and similar).
func (i Identity) CanManageWorkspace() bool {
	return i.HasRole(domain.RoleOwner) || i.HasRole(domain.RoleAdmin)
}

// Validate checks that the identity names a user and a workspace.
func (i Identity) Validate() error {
	if strings.TrimSpace(i.UserID) == "" || strings.TrimSpace(i.WorkspaceID) == "" {
		return fmt.Errorf("%w: identity requires user and workspace", domain.ErrValidation)
	}
	return nil
}

// FromUser builds an identity from a stored user.
func FromUser(u domain.User) Identity {
	id := Identity{UserID: u.ID, WorkspaceID: u.WorkspaceID}
	if u.TeamID != nil {
		id.TeamID = *u.TeamID
	}
	if u.Role != "" {
		id.Roles = []domain.Role{u.Role}
	}
	return id
}

// FromClaims builds an identity from parsed token claims. The role claim may
// hold several comma separated roles; unknown names are dropped.
func FromClaims(claims *jwt.Claims) (Identity, error) {
	if claims == nil {
		return Identity{}, errors.New("identity: nil claims")
	}
	id := Identity{
		UserID:      claims.UserID,
		WorkspaceID: claims.WorkspaceID,
		TeamID:      claims.TeamID,
	}
	for _, raw := range strings.Split(claims.Role, ",") {
		if role, ok := domain.ParseRole(raw); ok && !id.HasRole(role) {
			id.Roles = append(id.Roles, role)
		}
	}
	if err := id.Validate(); err != nil {
		return Identity{}, err
	}
	return id, nil
}
