package team

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/splax/taskflow/internal/domain"
	"github.com/splax/taskflow/internal/repository"
)

// MemberHook is notified after a user joins a team so dependent records can
// be brought up to date.
type MemberHook interface {
	MemberJoined(ctx context.Context, team domain.Team, userID string) error
}

// Service handles team workflows.
type Service struct {
	teams  repository.TeamRepository
	users  repository.UserRepository
	hook   MemberHook
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Service with default logging.
func New(teams repository.TeamRepository, users repository.UserRepository, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{
		teams:  teams,
		users:  users,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithMemberHook returns a copy of s that notifies hook on joins.
func (s Service) WithMemberHook(hook MemberHook) Service {
	s.hook = hook
	return s
}

var (
	ErrInvalidName        = fmt.Errorf("%w: team name is required", domain.ErrValidation)
	ErrNameTaken          = fmt.Errorf("%w: team name already used in workspace", domain.ErrConflict)
	ErrAlreadyInTeam      = fmt.Errorf("%w: user already belongs to a team", domain.ErrConflict)
	ErrNotLeader          = fmt.Errorf("%w: only the team leader may do this", domain.ErrForbidden)
	ErrLeaderMustTransfer = fmt.Errorf("%w: leader must transfer leadership before leaving", domain.ErrForbidden)
	ErrNotMember          = fmt.Errorf("%w: user is not a member of the team", domain.ErrValidation)
)

// Create registers a team with leader as its sole member.
func (s Service) Create(ctx context.Context, name, description string, leader domain.User) (*domain.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	current, err := s.users.GetUserByID(ctx, leader.ID)
	if err != nil {
		return nil, err
	}
	if current.WorkspaceID == "" {
		return nil, fmt.Errorf("%w: user %s has no workspace", domain.ErrValidation, current.ID)
	}
	if current.InTeam() {
		return nil, ErrAlreadyInTeam
	}
	if _, err := s.teams.GetTeamByName(ctx, current.WorkspaceID, name); err == nil {
		return nil, ErrNameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	team := &domain.Team{
		ID:          uuid.NewString(),
		WorkspaceID: current.WorkspaceID,
		Name:        name,
		Description: strings.TrimSpace(description),
		LeaderID:    current.ID,
		MemberIDs:   []string{current.ID},
		CreatedAt:   s.now(),
	}
	if err := s.teams.CreateTeam(ctx, team); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrNameTaken
		}
		return nil, err
	}
	if err := s.users.SetUserTeam(ctx, current.ID, &team.ID); err != nil {
		return nil, err
	}
	s.logger.Info("team created", "team_id", team.ID, "workspace_id", team.WorkspaceID, "leader_id", current.ID)
	return team, nil
}

// Join adds user to the team. A user holds at most one team.
func (s Service) Join(ctx context.Context, teamID string, user domain.User) (*domain.Team, error) {
	current, err := s.users.GetUserByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if current.InTeam() {
		return nil, ErrAlreadyInTeam
	}
	team, err := s.Get(ctx, teamID, current.WorkspaceID)
	if err != nil {
		return nil, err
	}
	member := &domain.TeamMember{
		TeamID:    team.ID,
		UserID:    current.ID,
		CreatedAt: s.now(),
	}
	if err := s.teams.AddMember(ctx, member); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrAlreadyInTeam
		}
		return nil, err
	}
	if err := s.users.SetUserTeam(ctx, current.ID, &team.ID); err != nil {
		return nil, err
	}
	if !team.HasMember(current.ID) {
		team.MemberIDs = append(team.MemberIDs, current.ID)
	}
	if s.hook != nil {
		if err := s.hook.MemberJoined(ctx, *team, current.ID); err != nil {
			s.logger.Warn("member hook failed", "team_id", team.ID, "user_id", current.ID, "error", err)
		}
	}
	s.logger.Info("team joined", "team_id", team.ID, "user_id", current.ID)
	return team, nil
}

// Leave removes user from their team. It is a no-op when the user has none.
func (s Service) Leave(ctx context.Context, user domain.User) error {
	current, err := s.users.GetUserByID(ctx, user.ID)
	if err != nil {
		return err
	}
	if !current.InTeam() {
		return nil
	}
	team, err := s.teams.GetTeam(ctx, current.WorkspaceID, *current.TeamID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// dangling back-reference
			return s.users.SetUserTeam(ctx, current.ID, nil)
		}
		return err
	}
	if team.LeaderID == current.ID {
		return ErrLeaderMustTransfer
	}
	if err := s.teams.RemoveMember(ctx, team.ID, current.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if err := s.users.SetUserTeam(ctx, current.ID, nil); err != nil {
		return err
	}
	s.logger.Info("team left", "team_id", team.ID, "user_id", current.ID)
	return nil
}

// RemoveMember lets the leader drop another member.
func (s Service) RemoveMember(ctx context.Context, teamID, memberID, leaderID, workspaceID string) error {
	team, err := s.Get(ctx, teamID, workspaceID)
	if err != nil {
		return err
	}
	if team.LeaderID != leaderID {
		return ErrNotLeader
	}
	if memberID == leaderID {
		return ErrLeaderMustTransfer
	}
	if !team.HasMember(memberID) {
		return ErrNotMember
	}
	if err := s.teams.RemoveMember(ctx, team.ID, memberID); err != nil {
		return err
	}
	if err := s.users.SetUserTeam(ctx, memberID, nil); err != nil {
		return err
	}
	s.logger.Info("team member removed", "team_id", team.ID, "user_id", memberID, "leader_id", leaderID)
	return nil
}

// TransferLeadership hands the team to another existing member.
func (s Service) TransferLeadership(ctx context.Context, teamID, newLeaderID, currentLeaderID, workspaceID string) error {
	team, err := s.Get(ctx, teamID, workspaceID)
	if err != nil {
		return err
	}
	if team.LeaderID != currentLeaderID {
		return ErrNotLeader
	}
	if !team.HasMember(newLeaderID) {
		return ErrNotMember
	}
	if newLeaderID == currentLeaderID {
		return nil
	}
	if err := s.teams.SetLeader(ctx, team.ID, newLeaderID); err != nil {
		return err
	}
	s.logger.Info("team leadership transferred", "team_id", team.ID, "from", currentLeaderID, "to", newLeaderID)
	return nil
}

// IsTeamLeader reports whether userID leads the team. Lookup failures read as false.
func (s Service) IsTeamLeader(ctx context.Context, teamID, userID, workspaceID string) bool {
	team, err := s.Get(ctx, teamID, workspaceID)
	if err != nil {
		return false
	}
	return userID != "" && team.LeaderID == userID
}

// Get returns a team inside workspaceID.
func (s Service) Get(ctx context.Context, teamID, workspaceID string) (*domain.Team, error) {
	if workspaceID == "" {
		return nil, repository.ErrNotFound
	}
	return s.teams.GetTeam(ctx, workspaceID, teamID)
}

// List returns every team of a workspace.
func (s Service) List(ctx context.Context, workspaceID string) ([]domain.Team, error) {
	return s.teams.ListTeams(ctx, workspaceID)
}

// Members resolves the team's member records.
func (s Service) Members(ctx context.Context, teamID, workspaceID string) ([]domain.User, error) {
	team, err := s.Get(ctx, teamID, workspaceID)
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(team.MemberIDs))
	for _, id := range team.MemberIDs {
		u, err := s.users.GetUserByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, err
		}
		users = append(users, *u)
	}
	return users, nil
}
