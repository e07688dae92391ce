// Package invite mints and validates workspace invites.
package invite

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/splax/taskflow/internal/domain"
	"github.com/splax/taskflow/internal/identity"
	"github.com/splax/taskflow/internal/metrics"
	"github.com/splax/taskflow/internal/ratelimit"
	"github.com/splax/taskflow/internal/repository"
)

// Denial reasons. Validate and Redeem return them wrapped together with
// domain.ErrForbidden.
var (
	ErrInviteNotFound      = errors.New("invite not found")
	ErrInviteUsed          = errors.New("invite already used")
	ErrInviteExpired       = errors.New("invite expired")
	ErrInviteEmailMismatch = errors.New("invite is locked to another email")
	ErrInviteDomain        = errors.New("email domain not accepted by workspace")
	ErrWorkspaceFull       = errors.New("workspace is full")
	ErrTooManyAttempts     = errors.New("too many invite attempts")
)

const maxCodeAttempts = 5

// Config tunes invite creation and validation.
type Config struct {
	TTL           time.Duration
	CodeBytes     int
	AttemptLimit  int
	AttemptWindow time.Duration
}

// Service implements the invite workflows.
type Service struct {
	invites    repository.InviteRepository
	workspaces repository.WorkspaceRepository
	users      repository.UserRepository
	limiter    ratelimit.Limiter
	cfg        Config
	metrics    *metrics.Recorder
	logger     *slog.Logger
	now        func() time.Time
	random     io.Reader
}

// New constructs a Service. recorder may be nil.
func New(store repository.Store, cfg Config, recorder *metrics.Recorder, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 72 * time.Hour
	}
	if cfg.CodeBytes <= 0 {
		cfg.CodeBytes = 24
	}
	return Service{
		invites:    store,
		workspaces: store,
		users:      store,
		cfg:        cfg,
		metrics:    recorder,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		random:     rand.Reader,
	}
}

// WithLimiter returns a copy of s that throttles Validate per email.
func (s Service) WithLimiter(l ratelimit.Limiter) Service {
	s.limiter = l
	return s
}

// CreateInput describes a new invite.
type CreateInput struct {
	Actor identity.Identity
	Role  string
	TTL   time.Duration
	Email string
}

// Create mints an invite for the actor's workspace. Only Owners and Admins
// may invite; the granted role is Admin or Member, never Owner.
func (s Service) Create(ctx context.Context, input CreateInput) (*domain.Invite, error) {
	if err := input.Actor.Validate(); err != nil {
		return nil, err
	}
	if !input.Actor.CanManageWorkspace() {
		return nil, fmt.Errorf("%w: only owners and admins may invite", domain.ErrForbidden)
	}
	ws, err := s.workspaces.GetWorkspaceByID(ctx, input.Actor.WorkspaceID)
	if err != nil {
		return nil, err
	}
	var lock *string
	if email := strings.ToLower(strings.TrimSpace(input.Email)); email != "" {
		if !ws.AcceptsEmail(email) {
			return nil, fmt.Errorf("%w: locked email must belong to %s", domain.ErrValidation, ws.EmailDomain)
		}
		lock = &email
	}
	ttl := input.TTL
	if ttl <= 0 {
		ttl = s.cfg.TTL
	}
	now := s.now()
	inv := &domain.Invite{
		ID:          uuid.NewString(),
		WorkspaceID: ws.ID,
		RoleToGrant: domain.NormalizeInviteRole(input.Role),
		ExpiresAt:   now.Add(ttl),
		Email:       lock,
		CreatedBy:   input.Actor.UserID,
		CreatedAt:   now,
	}
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, err
		}
		inv.Code = code
		err = s.invites.CreateInvite(ctx, inv)
		if err == nil {
			s.logger.Info("invite created", "invite_id", inv.ID, "workspace_id", ws.ID, "role", inv.RoleToGrant, "expires_at", inv.ExpiresAt)
			return inv, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, err
		}
		s.logger.Warn("invite code collision", "attempt", attempt)
	}
	return nil, fmt.Errorf("%w: could not mint a unique invite code", domain.ErrConflict)
}

func (s Service) newCode() (string, error) {
	buf := make([]byte, s.cfg.CodeBytes)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", fmt.Errorf("generate invite code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Validate checks that code may be redeemed by email. It never changes
// stored records.
func (s Service) Validate(ctx context.Context, code, email string) (*domain.Invite, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if s.limiter != nil {
		if d := s.limiter.Allow("invite:"+email, s.cfg.AttemptLimit, s.cfg.AttemptWindow); !d.Allowed {
			return nil, s.deny(ErrTooManyAttempts)
		}
	}
	inv, err := s.invites.GetInviteByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, s.deny(ErrInviteNotFound)
		}
		return nil, err
	}
	if inv.Used {
		return nil, s.deny(ErrInviteUsed)
	}
	if inv.Expired(s.now()) {
		return nil, s.deny(ErrInviteExpired)
	}
	if inv.Email != nil && !strings.EqualFold(*inv.Email, email) {
		return nil, s.deny(ErrInviteEmailMismatch)
	}
	ws, err := s.workspaces.GetWorkspaceByID(ctx, inv.WorkspaceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, s.deny(ErrInviteNotFound)
		}
		return nil, err
	}
	if !ws.AcceptsEmail(email) {
		return nil, s.deny(ErrInviteDomain)
	}
	count, err := s.users.CountMembers(ctx, ws.ID)
	if err != nil {
		return nil, err
	}
	if count >= ws.MaxMembers {
		return nil, s.deny(ErrWorkspaceFull)
	}
	s.metrics.InviteValidated("ok")
	return inv, nil
}

func (s Service) deny(reason error) error {
	s.metrics.InviteValidated(outcome(reason))
	return fmt.Errorf("%w: %w", domain.ErrForbidden, reason)
}

func outcome(reason error) string {
	switch {
	case errors.Is(reason, ErrInviteNotFound):
		return "not_found"
	case errors.Is(reason, ErrInviteUsed):
		return "used"
	case errors.Is(reason, ErrInviteExpired):
		return "expired"
	case errors.Is(reason, ErrInviteEmailMismatch):
		return "email_mismatch"
	case errors.Is(reason, ErrInviteDomain):
		return "domain"
	case errors.Is(reason, ErrWorkspaceFull):
		return "full"
	case errors.Is(reason, ErrTooManyAttempts):
		return "throttled"
	default:
		return "denied"
	}
}

// MarkUsed consumes an invite. Of several concurrent callers exactly one
// succeeds; the others get a conflict.
func (s Service) MarkUsed(ctx context.Context, inviteID, userID string) error {
	if err := s.invites.MarkInviteUsed(ctx, inviteID, userID); err != nil {
		return err
	}
	s.logger.Info("invite used", "invite_id", inviteID, "user_id", userID)
	return nil
}

// NewUser is the account a redeemed invite creates.
type NewUser struct {
	ID    string
	Email string
}

// Redeem validates the invite, creates the user with the invite's role and
// marks the invite used in one step.
func (s Service) Redeem(ctx context.Context, code string, nu NewUser) (*domain.User, error) {
	inv, err := s.Validate(ctx, code, nu.Email)
	if err != nil {
		return nil, err
	}
	id := nu.ID
	if id == "" {
		id = uuid.NewString()
	}
	user := &domain.User{
		ID:          id,
		WorkspaceID: inv.WorkspaceID,
		Email:       strings.ToLower(strings.TrimSpace(nu.Email)),
		Role:        inv.RoleToGrant,
		CreatedAt:   s.now(),
	}
	if err := s.invites.RedeemInvite(ctx, inv.ID, user); err != nil {
		if errors.Is(err, repository.ErrCapacity) {
			return nil, s.deny(ErrWorkspaceFull)
		}
		return nil, err
	}
	s.logger.Info("invite redeemed", "invite_id", inv.ID, "user_id", user.ID, "workspace_id", user.WorkspaceID, "role", user.Role)
	return user, nil
}
