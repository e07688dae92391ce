// Package progress maintains per-member progress rows and derives a task's
// global state from them.
package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/splax/taskflow/internal/domain"
	"github.com/splax/taskflow/internal/metrics"
	"github.com/splax/taskflow/internal/repository"
)

// Aggregator writes progress rows and recomputes global state.
type Aggregator struct {
	tasks    repository.TaskRepository
	progress repository.ProgressRepository
	metrics  *metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// New constructs an Aggregator. recorder may be nil.
func New(tasks repository.TaskRepository, progress repository.ProgressRepository, recorder *metrics.Recorder, logger *slog.Logger) Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return Aggregator{
		tasks:    tasks,
		progress: progress,
		metrics:  recorder,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Report records userID's state on a task, creating the row on first write,
// and recomputes the task's global state. The caller has already resolved
// the task inside workspaceID.
func (a Aggregator) Report(ctx context.Context, workspaceID, taskID, userID string, state domain.State) (*domain.Task, error) {
	if !state.Valid() {
		return nil, fmt.Errorf("%w: unknown state %q", domain.ErrValidation, state)
	}
	now := a.now()
	if _, err := a.progress.EnsureProgress(ctx, &domain.TaskProgress{
		TaskID:      taskID,
		UserID:      userID,
		WorkspaceID: workspaceID,
		State:       domain.StateOngoing,
		UpdatedAt:   now,
	}); err != nil {
		return nil, err
	}
	row, err := a.progress.GetProgress(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}
	row.Apply(state, now)
	if err := a.progress.SaveProgress(ctx, row); err != nil {
		return nil, err
	}
	a.logger.Debug("progress reported", "task_id", taskID, "user_id", userID, "state", state)
	return a.Recompute(ctx, workspaceID, taskID)
}

// Recompute derives the global state from the current progress rows while
// the task row is held.
func (a Aggregator) Recompute(ctx context.Context, workspaceID, taskID string) (*domain.Task, error) {
	var from domain.State
	task, err := a.tasks.MutateTaskState(ctx, workspaceID, taskID, func(task domain.Task, rows []domain.TaskProgress) (domain.State, error) {
		from = task.State
		return domain.Aggregate(task.Assigned(), task.State, domain.ProgressStates(rows)), nil
	})
	if err != nil {
		return nil, err
	}
	if task.State != from {
		a.metrics.Transition(metrics.SourceAggregate, from.String(), task.State.String())
		a.logger.Info("task state recomputed", "task_id", taskID, "from", from, "to", task.State)
	}
	return task, nil
}

// EnsureMembers inserts an Ongoing row for every member that has none and
// returns how many rows were created. Existing rows are left untouched.
func (a Aggregator) EnsureMembers(ctx context.Context, task domain.Task, memberIDs []string) (int, error) {
	now := a.now()
	created := 0
	for _, userID := range memberIDs {
		inserted, err := a.progress.EnsureProgress(ctx, &domain.TaskProgress{
			TaskID:      task.ID,
			UserID:      userID,
			WorkspaceID: task.WorkspaceID,
			State:       domain.StateOngoing,
			UpdatedAt:   now,
		})
		if err != nil {
			return created, err
		}
		if inserted {
			created++
		}
	}
	if created > 0 {
		a.logger.Info("progress rows created", "task_id", task.ID, "count", created)
	}
	return created, nil
}

// Members returns the users holding progress rows on a task.
func (a Aggregator) Members(ctx context.Context, taskID string) ([]string, error) {
	rows, err := a.progress.ListProgress(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return domain.ProgressMembers(rows), nil
}

// State returns userID's own progress state on a task. ok is false when the
// user has no row.
func (a Aggregator) State(ctx context.Context, taskID, userID string) (domain.State, bool, error) {
	row, err := a.progress.GetProgress(ctx, taskID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return row.State, true, nil
}
