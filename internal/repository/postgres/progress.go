package postgres

import (
	"context"

	"github.com/splax/taskflow/internal/domain"
)

const progressSelect = `SELECT task_id, user_id, COALESCE(workspace_id, ''), state, completed_at, updated_at FROM task_progress`

// EnsureProgress inserts a row unless the (task, user) pair exists. Concurrent
// first writes race on the primary key; the loser inserts nothing.
func (r *Repository) EnsureProgress(ctx context.Context, progress *domain.TaskProgress) (bool, error) {
	const query = `INSERT INTO task_progress (task_id, user_id, workspace_id, state, completed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (task_id, user_id) DO NOTHING`
	tag, err := r.pool.Exec(ctx, query,
		progress.TaskID,
		progress.UserID,
		nilIfEmpty(progress.WorkspaceID),
		string(progress.State),
		progress.CompletedAt,
		progress.UpdatedAt,
	)
	if err != nil {
		return false, translate(err)
	}
	return tag.RowsAffected() == 1, nil
}

// SaveProgress upserts a member's row.
func (r *Repository) SaveProgress(ctx context.Context, progress *domain.TaskProgress) error {
	const query = `INSERT INTO task_progress (task_id, user_id, workspace_id, state, completed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (task_id, user_id) DO UPDATE
		SET state = EXCLUDED.state,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at`
	_, err := r.pool.Exec(ctx, query,
		progress.TaskID,
		progress.UserID,
		nilIfEmpty(progress.WorkspaceID),
		string(progress.State),
		progress.CompletedAt,
		progress.UpdatedAt,
	)
	return translate(err)
}

// GetProgress returns one member's row.
func (r *Repository) GetProgress(ctx context.Context, taskID, userID string) (*domain.TaskProgress, error) {
	row := r.pool.QueryRow(ctx, progressSelect+` WHERE task_id = $1 AND user_id = $2`, taskID, userID)
	var (
		p     domain.TaskProgress
		state string
	)
	if err := row.Scan(&p.TaskID, &p.UserID, &p.WorkspaceID, &state, &p.CompletedAt, &p.UpdatedAt); err != nil {
		return nil, translate(err)
	}
	p.State = domain.State(state)
	return &p, nil
}

// ListProgress returns every row of a task ordered by user id.
func (r *Repository) ListProgress(ctx context.Context, taskID string) ([]domain.TaskProgress, error) {
	return listProgress(ctx, r.pool, taskID)
}

func listProgress(ctx context.Context, q querier, taskID string) ([]domain.TaskProgress, error) {
	rows, err := q.Query(ctx, progressSelect+` WHERE task_id = $1 ORDER BY user_id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.TaskProgress, 0)
	for rows.Next() {
		var (
			p     domain.TaskProgress
			state string
		)
		if err := rows.Scan(&p.TaskID, &p.UserID, &p.WorkspaceID, &state, &p.CompletedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.State = domain.State(state)
		out = append(out, p)
	}
	return out, rows.Err()
}
