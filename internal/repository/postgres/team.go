package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/splax/taskflow/internal/domain"
	"github.com/splax/taskflow/internal/repository"
)

const teamSelect = `SELECT t.id, COALESCE(t.workspace_id, ''), t.name, t.description, t.leader_id, t.created_at,
		COALESCE(array_agg(tm.user_id ORDER BY tm.created_at, tm.user_id) FILTER (WHERE tm.user_id IS NOT NULL), '{}')
	FROM teams t
	LEFT JOIN team_members tm ON tm.team_id = t.id`

// CreateTeam inserts a team together with its initial members.
func (r *Repository) CreateTeam(ctx context.Context, team *domain.Team) error {
	const insertTeam = `INSERT INTO teams (id, workspace_id, name, description, leader_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	const insertMember = `INSERT INTO team_members (team_id, user_id, created_at) VALUES ($1, $2, $3)`
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertTeam, team.ID, nilIfEmpty(team.WorkspaceID), team.Name, team.Description, team.LeaderID, team.CreatedAt); err != nil {
			return translate(err)
		}
		for _, memberID := range team.MemberIDs {
			if _, err := tx.Exec(ctx, insertMember, team.ID, memberID, team.CreatedAt); err != nil {
				return translate(err)
			}
		}
		return nil
	})
}

// GetTeam returns a team inside a workspace.
func (r *Repository) GetTeam(ctx context.Context, workspaceID, teamID string) (*domain.Team, error) {
	query := teamSelect + ` WHERE t.id = $1 AND t.workspace_id = $2 GROUP BY t.id`
	return scanTeam(r.pool.QueryRow(ctx, query, teamID, workspaceID))
}

// GetTeamByName returns a team by exact name inside a workspace.
func (r *Repository) GetTeamByName(ctx context.Context, workspaceID, name string) (*domain.Team, error) {
	query := teamSelect + ` WHERE t.workspace_id = $1 AND t.name = $2 GROUP BY t.id`
	return scanTeam(r.pool.QueryRow(ctx, query, workspaceID, name))
}

// ListTeams returns the workspace's teams ordered by name.
func (r *Repository) ListTeams(ctx context.Context, workspaceID string) ([]domain.Team, error) {
	query := teamSelect + ` WHERE t.workspace_id = $1 GROUP BY t.id ORDER BY t.name`
	rows, err := r.pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := make([]domain.Team, 0)
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, *team)
	}
	return teams, rows.Err()
}

// AddMember adds a membership edge. A user can hold one membership at a time;
// a second one violates the unique index and surfaces as ErrConflict.
func (r *Repository) AddMember(ctx context.Context, member *domain.TeamMember) error {
	const query = `INSERT INTO team_members (team_id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (team_id, user_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, query, member.TeamID, member.UserID, member.CreatedAt)
	return translate(err)
}

// RemoveMember drops a membership edge.
func (r *Repository) RemoveMember(ctx context.Context, teamID, userID string) error {
	const query = `DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, query, teamID, userID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetLeader changes the team leader.
func (r *Repository) SetLeader(ctx context.Context, teamID, leaderID string) error {
	const query = `UPDATE teams SET leader_id = $2 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, teamID, leaderID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanTeam(row pgx.Row) (*domain.Team, error) {
	var team domain.Team
	if err := row.Scan(
		&team.ID,
		&team.WorkspaceID,
		&team.Name,
		&team.Description,
		&team.LeaderID,
		&team.CreatedAt,
		&team.MemberIDs,
	); err != nil {
		return nil, translate(err)
	}
	return &team, nil
}
