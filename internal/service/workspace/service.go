package workspace

import (
	"context"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/splax/taskflow/internal/domain"
	"github.com/splax/taskflow/internal/repository"
)

// Service manages workspaces.
type Service struct {
	workspaces repository.WorkspaceRepository
	users      repository.UserRepository
	logger     *slog.Logger
	now        func() time.Time
}

// New constructs a Service.
func New(workspaces repository.WorkspaceRepository, users repository.UserRepository, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{
		workspaces: workspaces,
		users:      users,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput describes a new workspace and its owner.
type CreateInput struct {
	Name        string
	MaxMembers  int
	EmailDomain string
	OwnerID     string
	OwnerEmail  string
}

// Create registers a workspace and its Owner user.
func (s Service) Create(ctx context.Context, input CreateInput) (*domain.Workspace, *domain.User, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, nil, fmt.Errorf("%w: workspace name is required", domain.ErrValidation)
	}
	if input.MaxMembers <= 0 {
		return nil, nil, fmt.Errorf("%w: max members must be positive", domain.ErrValidation)
	}
	emailDomain, err := NormalizeDomain(input.EmailDomain)
	if err != nil {
		return nil, nil, err
	}
	now := s.now()
	ws := &domain.Workspace{
		ID:          uuid.NewString(),
		Name:        name,
		MaxMembers:  input.MaxMembers,
		EmailDomain: emailDomain,
		CreatedAt:   now,
	}
	if !ws.AcceptsEmail(input.OwnerEmail) {
		return nil, nil, fmt.Errorf("%w: owner email must belong to %s", domain.ErrValidation, emailDomain)
	}
	ownerID := input.OwnerID
	if ownerID == "" {
		ownerID = uuid.NewString()
	}
	owner := &domain.User{
		ID:          ownerID,
		WorkspaceID: ws.ID,
		Email:       strings.ToLower(strings.TrimSpace(input.OwnerEmail)),
		Role:        domain.RoleOwner,
		CreatedAt:   now,
	}
	if err := s.workspaces.CreateWorkspaceWithOwner(ctx, ws, owner); err != nil {
		return nil, nil, err
	}
	s.logger.Info("workspace created", "workspace_id", ws.ID, "owner_id", owner.ID, "email_domain", emailDomain)
	return ws, owner, nil
}

// Get returns a workspace.
func (s Service) Get(ctx context.Context, workspaceID string) (*domain.Workspace, error) {
	return s.workspaces.GetWorkspaceByID(ctx, workspaceID)
}

// EmailMatches reports whether email belongs to the workspace's domain.
func (s Service) EmailMatches(ws domain.Workspace, email string) bool {
	return ws.AcceptsEmail(email)
}

// IsFull reports whether the workspace has reached MaxMembers.
func (s Service) IsFull(ctx context.Context, ws domain.Workspace) (bool, error) {
	count, err := s.users.CountMembers(ctx, ws.ID)
	if err != nil {
		return false, err
	}
	return count >= ws.MaxMembers, nil
}

// BackfillLegacy assigns every record that predates workspaces to
// workspaceID. It is a one-time migration step and never runs on the request
// path.
func (s Service) BackfillLegacy(ctx context.Context, workspaceID string) (int64, error) {
	if _, err := s.workspaces.GetWorkspaceByID(ctx, workspaceID); err != nil {
		return 0, err
	}
	touched, err := s.workspaces.BackfillWorkspace(ctx, workspaceID)
	if err != nil {
		return 0, err
	}
	s.logger.Warn("legacy records assigned to workspace", "workspace_id", workspaceID, "rows", touched)
	return touched, nil
}

// NormalizeDomain lower-cases raw, strips a leading '@' and checks it looks
// like a DNS name with at least two labels.
func NormalizeDomain(raw string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "@")
	invalid := fmt.Errorf("%w: invalid email domain %q", domain.ErrValidation, raw)
	if d == "" || len(d) > 253 {
		return "", invalid
	}
	labels := strings.Split(d, ".")
	if len(labels) < 2 {
		return "", invalid
	}
	for _, label := range labels {
		if label == "" || len(label) > 63 || label[0] == '-' || label[len(label)-1] == '-' {
			return "", invalid
		}
		for _, r := range label {
			if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
				return "", invalid
			}
		}
	}
	return d, nil
}
