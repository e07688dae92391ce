// Package workspace enforces tenant isolation and manages workspaces.
package workspace

import (
	"context"

	"github.com/splax/taskflow/internal/domain"
	"github.com/splax/taskflow/internal/repository"
)

// Guard resolves entity references strictly inside one workspace. A record
// that exists in another workspace, or in none, is reported exactly like a
// missing record.
type Guard struct {
	tasks repository.TaskRepository
	teams repository.TeamRepository
	users repository.UserRepository
}

// NewGuard constructs a Guard.
func NewGuard(tasks repository.TaskRepository, teams repository.TeamRepository, users repository.UserRepository) Guard {
	return Guard{tasks: tasks, teams: teams, users: users}
}

// Task resolves a task in workspaceID.
func (g Guard) Task(ctx context.Context, workspaceID, taskID string) (*domain.Task, error) {
	if workspaceID == "" || taskID == "" {
		return nil, repository.ErrNotFound
	}
	task, err := g.tasks.GetTask(ctx, workspaceID, taskID)
	if err != nil {
		return nil, err
	}
	if task.WorkspaceID != workspaceID {
		return nil, repository.ErrNotFound
	}
	return task, nil
}

// Team resolves a team in workspaceID.
func (g Guard) Team(ctx context.Context, workspaceID, teamID string) (*domain.Team, error) {
	if workspaceID == "" || teamID == "" {
		return nil, repository.ErrNotFound
	}
	team, err := g.teams.GetTeam(ctx, workspaceID, teamID)
	if err != nil {
		return nil, err
	}
	if team.WorkspaceID != workspaceID {
		return nil, repository.ErrNotFound
	}
	return team, nil
}

// User resolves a user in workspaceID.
func (g Guard) User(ctx context.Context, workspaceID, userID string) (*domain.User, error) {
	if workspaceID == "" || userID == "" {
		return nil, repository.ErrNotFound
	}
	user, err := g.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.WorkspaceID != workspaceID {
		return nil, repository.ErrNotFound
	}
	return user, nil
}
