package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/splax/taskflow/internal/domain"
	"github.com/splax/taskflow/internal/repository"
)

const taskColumns = `t.id, COALESCE(t.workspace_id, ''), t.title, t.description, t.start_at, t.end_at,
		t.creator_id, t.team_id, t.state, t.created_at, t.updated_at`

// CreateTask inserts a task.
func (r *Repository) CreateTask(ctx context.Context, task *domain.Task) error {
	const query = `INSERT INTO tasks (id, workspace_id, title, description, start_at, end_at, creator_id, team_id, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.pool.Exec(ctx, query,
		task.ID,
		nilIfEmpty(task.WorkspaceID),
		task.Title,
		task.Description,
		task.StartAt.UTC(),
		task.EndAt.UTC(),
		task.CreatorID,
		task.TeamID,
		string(task.State),
		task.CreatedAt,
		task.UpdatedAt,
	)
	return translate(err)
}

// GetTask returns a task inside a workspace.
func (r *Repository) GetTask(ctx context.Context, workspaceID, taskID string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.id = $1 AND t.workspace_id = $2`
	return scanTask(r.pool.QueryRow(ctx, query, taskID, workspaceID))
}

// SetTaskTeam assigns a team to a task.
func (r *Repository) SetTaskTeam(ctx context.Context, workspaceID, taskID, teamID string) error {
	const query = `UPDATE tasks SET team_id = $3, updated_at = NOW() WHERE id = $1 AND workspace_id = $2`
	tag, err := r.pool.Exec(ctx, query, taskID, workspaceID, teamID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// MutateTaskState locks the task row, evaluates fn against the task and its
// progress rows, and stores the returned state in the same transaction.
func (r *Repository) MutateTaskState(ctx context.Context, workspaceID, taskID string, fn repository.StateFunc) (*domain.Task, error) {
	var updated *domain.Task
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.id = $1 AND t.workspace_id = $2 FOR UPDATE`
		task, err := scanTask(tx.QueryRow(ctx, query, taskID, workspaceID))
		if err != nil {
			return err
		}
		progress, err := listProgress(ctx, tx, taskID)
		if err != nil {
			return err
		}
		next, err := fn(*task, progress)
		if err != nil {
			return err
		}
		if next != task.State {
			const update = `UPDATE tasks SET state = $2, updated_at = $3 WHERE id = $1`
			now := time.Now().UTC()
			if _, err := tx.Exec(ctx, update, taskID, string(next), now); err != nil {
				return translate(err)
			}
			task.State = next
			task.UpdatedAt = now
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListTasks returns every task in a workspace, newest first.
func (r *Repository) ListTasks(ctx context.Context, workspaceID string) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.workspace_id = $1 ORDER BY t.created_at DESC, t.id`
	return r.queryTasks(ctx, query, workspaceID)
}

// ListTasksByCreator returns tasks created by a user.
func (r *Repository) ListTasksByCreator(ctx context.Context, workspaceID, creatorID string) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.workspace_id = $1 AND t.creator_id = $2 ORDER BY t.created_at DESC, t.id`
	return r.queryTasks(ctx, query, workspaceID, creatorID)
}

// ListTasksByTeam returns tasks assigned to a team.
func (r *Repository) ListTasksByTeam(ctx context.Context, workspaceID, teamID string) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.workspace_id = $1 AND t.team_id = $2 ORDER BY t.created_at DESC, t.id`
	return r.queryTasks(ctx, query, workspaceID, teamID)
}

// ListTasksAssignedTo returns tasks the user holds a progress row for.
func (r *Repository) ListTasksAssignedTo(ctx context.Context, workspaceID, userID string) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t
		INNER JOIN task_progress p ON p.task_id = t.id
		WHERE t.workspace_id = $1 AND p.user_id = $2
		ORDER BY t.created_at DESC, t.id`
	return r.queryTasks(ctx, query, workspaceID, userID)
}

func (r *Repository) queryTasks(ctx context.Context, query string, args ...any) ([]domain.Task, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		task  domain.Task
		state string
	)
	if err := row.Scan(
		&task.ID,
		&task.WorkspaceID,
		&task.Title,
		&task.Description,
		&task.StartAt,
		&task.EndAt,
		&task.CreatorID,
		&task.TeamID,
		&state,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	task.State = domain.State(state)
	task.StartAt = task.StartAt.UTC()
	task.EndAt = task.EndAt.UTC()
	return &task, nil
}
