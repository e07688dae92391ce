// Package task orchestrates the task lifecycle: creation, team assignment,
// member progress and global state changes.
package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/splax/taskflow/internal/domain"
	"github.com/splax/taskflow/internal/metrics"
	"github.com/splax/taskflow/internal/policy"
	"github.com/splax/taskflow/internal/repository"
	"github.com/splax/taskflow/internal/service/progress"
	"github.com/splax/taskflow/internal/service/team"
	"github.com/splax/taskflow/internal/service/workspace"
)

// Service implements the task workflows.
type Service struct {
	tasks    repository.TaskRepository
	guard    workspace.Guard
	teams    team.Service
	progress progress.Aggregator
	metrics  *metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// New constructs a Service over store. recorder may be nil.
func New(store repository.Store, teams team.Service, agg progress.Aggregator, recorder *metrics.Recorder, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{
		tasks:    store,
		guard:    workspace.NewGuard(store, store, store),
		teams:    teams,
		progress: agg,
		metrics:  recorder,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput carries the fields of a new task.
type CreateInput struct {
	Title       string
	Description string
	CreatorID   string
	WorkspaceID string
	StartAt     time.Time
	EndAt       time.Time
}

// Transition is the outcome of a global state change.
type Transition struct {
	Task    *domain.Task
	From    domain.State
	To      domain.State
	Applied bool
}

// BulkResult summarises a bulk state change. Failed items are counted, not
// reported individually.
type BulkResult struct {
	Attempted int
	Applied   int
	Unchanged int
	Skipped   int
}

const (
	opAssign      = "assign"
	opProgress    = "set_progress"
	opChangeState = "change_state"
)

// Create registers a new, unassigned task.
func (s Service) Create(ctx context.Context, input CreateInput) (*domain.Task, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", domain.ErrValidation)
	}
	if input.StartAt.IsZero() || input.EndAt.IsZero() {
		return nil, fmt.Errorf("%w: start and end are required", domain.ErrValidation)
	}
	if input.EndAt.Before(input.StartAt) {
		return nil, fmt.Errorf("%w: end must not be before start", domain.ErrValidation)
	}
	if _, err := s.guard.User(ctx, input.WorkspaceID, input.CreatorID); err != nil {
		return nil, err
	}
	now := s.now()
	task := &domain.Task{
		ID:          uuid.NewString(),
		WorkspaceID: input.WorkspaceID,
		Title:       title,
		Description: description,
		StartAt:     input.StartAt.UTC(),
		EndAt:       input.EndAt.UTC(),
		CreatorID:   input.CreatorID,
		State:       domain.StateNotAssigned,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	s.logger.Info("task created", "task_id", task.ID, "workspace_id", task.WorkspaceID, "creator_id", task.CreatorID)
	return task, nil
}

// AssignToTeam hands the task to a team. Only the creator may assign. Every
// current member gets an Ongoing progress row unless one exists, so repeating
// the call is harmless.
func (s Service) AssignToTeam(ctx context.Context, taskID, teamID, actingUserID, workspaceID string) (*domain.Task, error) {
	task, err := s.guard.Task(ctx, workspaceID, taskID)
	if err != nil {
		return nil, err
	}
	tm, err := s.guard.Team(ctx, workspaceID, teamID)
	if err != nil {
		return nil, err
	}
	if actingUserID != task.CreatorID {
		s.metrics.Denied(opAssign, "creator")
		return nil, fmt.Errorf("%w: only the creator may assign task %s", domain.ErrForbidden, task.ID)
	}
	if task.TeamID == nil || *task.TeamID != tm.ID {
		if err := s.tasks.SetTaskTeam(ctx, workspaceID, task.ID, tm.ID); err != nil {
			return nil, err
		}
		task.TeamID = &tm.ID
	}
	if _, err := s.progress.EnsureMembers(ctx, *task, tm.MemberIDs); err != nil {
		return nil, err
	}
	var from domain.State
	updated, err := s.tasks.MutateTaskState(ctx, workspaceID, task.ID, func(current domain.Task, _ []domain.TaskProgress) (domain.State, error) {
		from = current.State
		if current.State == domain.StateNotAssigned {
			return domain.StateOngoing, nil
		}
		return current.State, nil
	})
	if err != nil {
		return nil, err
	}
	if updated.State != from {
		s.metrics.Transition(metrics.SourceAssign, from.String(), updated.State.String())
	}
	s.logger.Info("task assigned", "task_id", task.ID, "team_id", tm.ID, "members", len(tm.MemberIDs))
	return updated, nil
}

// SetMyProgress records the caller's own state and recomputes the global state.
func (s Service) SetMyProgress(ctx context.Context, taskID, userID, workspaceID string, newState domain.State) (*domain.Task, error) {
	if !newState.Valid() {
		return nil, fmt.Errorf("%w: unknown state %q", domain.ErrValidation, newState)
	}
	task, err := s.guard.Task(ctx, workspaceID, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: task %s is not in workspace", domain.ErrForbidden, taskID)
		}
		return nil, err
	}
	if err := s.requireParticipant(ctx, *task, userID); err != nil {
		return nil, err
	}
	return s.progress.Report(ctx, workspaceID, task.ID, userID, newState)
}

// requireParticipant allows users who already hold a progress row or belong
// to the task's team.
func (s Service) requireParticipant(ctx context.Context, task domain.Task, userID string) error {
	if _, ok, err := s.progress.State(ctx, task.ID, userID); err != nil {
		return err
	} else if ok {
		return nil
	}
	if task.Assigned() {
		tm, err := s.guard.Team(ctx, task.WorkspaceID, *task.TeamID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if err == nil && tm.HasMember(userID) {
			return nil
		}
	}
	s.metrics.Denied(opProgress, "participant")
	return fmt.Errorf("%w: user %s is not on task %s", domain.ErrForbidden, userID, task.ID)
}

// ChangeGlobalState overrides the task's global state after consulting the
// permission policy. A permitted change that the transition table does not
// allow leaves the task untouched and reports Applied=false.
func (s Service) ChangeGlobalState(ctx context.Context, taskID string, newState domain.State, actingUserID, workspaceID string) (Transition, error) {
	if !newState.Valid() {
		return Transition{}, fmt.Errorf("%w: unknown state %q", domain.ErrValidation, newState)
	}
	task, err := s.guard.Task(ctx, workspaceID, taskID)
	if err != nil {
		return Transition{}, err
	}
	var leaderID string
	if task.Assigned() {
		tm, err := s.teams.Get(ctx, *task.TeamID, workspaceID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return Transition{}, err
		}
		if err == nil {
			leaderID = tm.LeaderID
		}
	}
	isLeader := leaderID != "" && leaderID == actingUserID

	var (
		from     domain.State
		decision policy.Decision
	)
	updated, err := s.tasks.MutateTaskState(ctx, workspaceID, task.ID, func(current domain.Task, rows []domain.TaskProgress) (domain.State, error) {
		from = current.State
		decision = policy.Evaluate(policy.Subject{
			Task:         current,
			Members:      domain.ProgressMembers(rows),
			UserID:       actingUserID,
			NewState:     newState,
			IsTeamLeader: isLeader,
		})
		if !decision.Allowed {
			return current.State, errDenied
		}
		if !domain.CanTransition(current.State, newState) {
			return current.State, nil
		}
		return newState, nil
	})
	if err != nil {
		if errors.Is(err, errDenied) {
			s.metrics.Denied(opChangeState, decision.Rule)
			s.logger.Info("state change denied", "task_id", task.ID, "user_id", actingUserID, "from", from, "to", newState, "rule", decision.Rule)
			return Transition{}, fmt.Errorf("%w: user %s may not set task %s from %s to %s", domain.ErrForbidden, actingUserID, task.ID, from, newState)
		}
		return Transition{}, err
	}
	tr := Transition{Task: updated, From: from, To: updated.State, Applied: updated.State != from}
	if tr.Applied {
		s.metrics.Transition(metrics.SourceOverride, from.String(), updated.State.String())
		s.logger.Info("task state changed", "task_id", task.ID, "user_id", actingUserID, "from", from, "to", updated.State, "rule", decision.Rule)
	} else {
		s.logger.Debug("state change not in transition table", "task_id", task.ID, "from", from, "to", newState)
	}
	return tr, nil
}

var errDenied = errors.New("policy denied")

// assignedMembers lists the progress holders judged by the member rule. The
// team leader holds a row like everyone else but is judged as leader.
func assignedMembers(rows []domain.TaskProgress, leaderID string) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.UserID != leaderID {
			out = append(out, row.UserID)
		}
	}
	return out
}

// BulkChangeState applies ChangeGlobalState to each id. Failing ids are
// skipped and never roll back earlier ones.
func (s Service) BulkChangeState(ctx context.Context, taskIDs []string, newState domain.State, actingUserID, workspaceID string) BulkResult {
	result := BulkResult{Attempted: len(taskIDs)}
	for _, id := range taskIDs {
		tr, err := s.ChangeGlobalState(ctx, id, newState, actingUserID, workspaceID)
		switch {
		case err == nil && tr.Applied:
			result.Applied++
		case err == nil:
			result.Unchanged++
		default:
			result.Skipped++
			if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrForbidden) {
				s.logger.Warn("bulk state change item failed", "task_id", id, "error", err)
			}
		}
	}
	s.logger.Info("bulk state change", "user_id", actingUserID, "state", newState, "attempted", result.Attempted, "applied", result.Applied, "skipped", result.Skipped)
	return result
}

// MemberJoined gives a new team member progress rows on the team's open
// tasks. Completed and Canceled tasks are left alone.
func (s Service) MemberJoined(ctx context.Context, tm domain.Team, userID string) error {
	tasks, err := s.tasks.ListTasksByTeam(ctx, tm.WorkspaceID, tm.ID)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if t.State.Terminal() {
			continue
		}
		created, err := s.progress.EnsureMembers(ctx, t, []string{userID})
		if err != nil {
			return err
		}
		if created == 0 {
			continue
		}
		if _, err := s.progress.Recompute(ctx, t.WorkspaceID, t.ID); err != nil {
			return err
		}
	}
	return nil
}

var _ team.MemberHook = Service{}
