package repository

import (
	"context"

	"github.com/splax/taskflow/internal/domain"
)

// WorkspaceRepository persists workspaces.
type WorkspaceRepository interface {
	CreateWorkspace(ctx context.Context, workspace *domain.Workspace) error
	// CreateWorkspaceWithOwner inserts the workspace and its first user as one
	// step. Neither row is stored when either insert fails.
	CreateWorkspaceWithOwner(ctx context.Context, workspace *domain.Workspace, owner *domain.User) error
	GetWorkspaceByID(ctx context.Context, workspaceID string) (*domain.Workspace, error)
	// BackfillWorkspace assigns every record with an empty workspace id to
	// workspaceID and returns how many rows were touched.
	BackfillWorkspace(ctx context.Context, workspaceID string) (int64, error)
}

// UserRepository persists users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)
	SetUserTeam(ctx context.Context, userID string, teamID *string) error
	CountMembers(ctx context.Context, workspaceID string) (int, error)
}

// TeamRepository manages teams and memberships. Lookups are always scoped by
// workspace.
type TeamRepository interface {
	CreateTeam(ctx context.Context, team *domain.Team) error
	GetTeam(ctx context.Context, workspaceID, teamID string) (*domain.Team, error)
	GetTeamByName(ctx context.Context, workspaceID, name string) (*domain.Team, error)
	ListTeams(ctx context.Context, workspaceID string) ([]domain.Team, error)
	AddMember(ctx context.Context, member *domain.TeamMember) error
	RemoveMember(ctx context.Context, teamID, userID string) error
	SetLeader(ctx context.Context, teamID, leaderID string) error
}

// StateFunc computes a task's next global state from a consistent snapshot of
// the task and its progress rows.
type StateFunc func(task domain.Task, progress []domain.TaskProgress) (domain.State, error)

// TaskRepository persists tasks. Lookups are always scoped by workspace.
type TaskRepository interface {
	CreateTask(ctx context.Context, task *domain.Task) error
	GetTask(ctx context.Context, workspaceID, taskID string) (*domain.Task, error)
	SetTaskTeam(ctx context.Context, workspaceID, taskID, teamID string) error
	// MutateTaskState runs fn while holding the task row and persists its
	// result. The updated task is returned.
	MutateTaskState(ctx context.Context, workspaceID, taskID string, fn StateFunc) (*domain.Task, error)
	ListTasks(ctx context.Context, workspaceID string) ([]domain.Task, error)
	ListTasksByCreator(ctx context.Context, workspaceID, creatorID string) ([]domain.Task, error)
	ListTasksByTeam(ctx context.Context, workspaceID, teamID string) ([]domain.Task, error)
	ListTasksAssignedTo(ctx context.Context, workspaceID, userID string) ([]domain.Task, error)
}

// ProgressRepository persists per-member progress rows.
type ProgressRepository interface {
	// EnsureProgress inserts a row unless one exists for the (task, user)
	// pair and reports whether it inserted.
	EnsureProgress(ctx context.Context, progress *domain.TaskProgress) (bool, error)
	SaveProgress(ctx context.Context, progress *domain.TaskProgress) error
	GetProgress(ctx context.Context, taskID, userID string) (*domain.TaskProgress, error)
	ListProgress(ctx context.Context, taskID string) ([]domain.TaskProgress, error)
}

// InviteRepository persists workspace invites.
type InviteRepository interface {
	CreateInvite(ctx context.Context, invite *domain.Invite) error
	GetInviteByCode(ctx context.Context, code string) (*domain.Invite, error)
	// MarkInviteUsed flips the one-shot flag. It returns ErrConflict when the
	// invite was already used.
	MarkInviteUsed(ctx context.Context, inviteID, userID string) error
	// RedeemInvite creates user and marks the invite used atomically. The
	// workspace capacity is re-checked while the workspace is held.
	RedeemInvite(ctx context.Context, inviteID string, user *domain.User) error
}

// Store bundles every repository the engine needs.
type Store interface {
	WorkspaceRepository
	UserRepository
	TeamRepository
	TaskRepository
	ProgressRepository
	InviteRepository
}
