package task

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/splax/taskflow/internal/domain"
)

// Get returns a task inside workspaceID.
func (s Service) Get(ctx context.Context, workspaceID, taskID string) (*domain.Task, error) {
	return s.guard.Task(ctx, workspaceID, taskID)
}

// ListAll returns every task in the workspace.
func (s Service) ListAll(ctx context.Context, workspaceID string) ([]domain.Task, error) {
	return s.tasks.ListTasks(ctx, workspaceID)
}

// ListCreatedBy returns the tasks userID created.
func (s Service) ListCreatedBy(ctx context.Context, workspaceID, userID string) ([]domain.Task, error) {
	return s.tasks.ListTasksByCreator(ctx, workspaceID, userID)
}

// ListAssignedTo returns the tasks userID holds a progress row for.
func (s Service) ListAssignedTo(ctx context.Context, workspaceID, userID string) ([]domain.Task, error) {
	return s.tasks.ListTasksAssignedTo(ctx, workspaceID, userID)
}

// ListByTeam returns the tasks assigned to a team of the workspace.
func (s Service) ListByTeam(ctx context.Context, workspaceID, teamID string) ([]domain.Task, error) {
	if _, err := s.guard.Team(ctx, workspaceID, teamID); err != nil {
		return nil, err
	}
	return s.tasks.ListTasksByTeam(ctx, workspaceID, teamID)
}

// MyState returns userID's own progress state. ok is false when the user has
// not reported on the task and is not an assigned member.
func (s Service) MyState(ctx context.Context, workspaceID, taskID, userID string) (domain.State, bool, error) {
	task, err := s.guard.Task(ctx, workspaceID, taskID)
	if err != nil {
		return "", false, err
	}
	return s.progress.State(ctx, task.ID, userID)
}

// CountByState counts the workspace's tasks per global state. Every known
// state is present in the result.
func (s Service) CountByState(ctx context.Context, workspaceID string) (map[domain.State]int, error) {
	tasks, err := s.tasks.ListTasks(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.State]int, len(domain.States))
	for _, st := range domain.States {
		counts[st] = 0
	}
	for _, t := range tasks {
		counts[t.State]++
	}
	return counts, nil
}

// Range names for Filter.Range.
const (
	RangeToday  = "today"
	RangeWeek   = "week"
	RangeCustom = "custom"
)

// Sort orders for Filter.Sort.
const (
	SortStartAsc  = "start_asc"
	SortStartDesc = "start_desc"
	SortEndAsc    = "end_asc"
	SortEndDesc   = "end_desc"
)

// DefaultPageSize is used by Page when size is not positive.
const DefaultPageSize = 5

// Filter narrows and orders a task list. Zero values disable each criterion.
type Filter struct {
	Query          string
	State          domain.State
	Range          string
	From           time.Time
	To             time.Time
	Sort           string
	OnlyUnassigned bool
}

// Validate rejects unknown range, sort or state values.
func (f Filter) Validate() error {
	switch f.Range {
	case "", RangeToday, RangeWeek:
	case RangeCustom:
		if f.From.IsZero() || f.To.IsZero() {
			return fmt.Errorf("%w: custom range needs from and to", domain.ErrValidation)
		}
		if f.To.Before(f.From) {
			return fmt.Errorf("%w: range end before start", domain.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown range %q", domain.ErrValidation, f.Range)
	}
	switch f.Sort {
	case "", SortStartAsc, SortStartDesc, SortEndAsc, SortEndDesc:
	default:
		return fmt.Errorf("%w: unknown sort %q", domain.ErrValidation, f.Sort)
	}
	if f.State != "" && !f.State.Valid() {
		return fmt.Errorf("%w: unknown state %q", domain.ErrValidation, f.State)
	}
	return nil
}

// Filter applies f to tasks using the service clock.
func (s Service) Filter(tasks []domain.Task, f Filter) ([]domain.Task, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return Apply(tasks, f, s.now()), nil
}

// Apply filters and sorts tasks relative to now. The input slice is not
// modified.
//
// "today" and "week" keep tasks that started within the last one or seven
// days. "custom" keeps tasks whose start and end dates both fall inside
// [From, To], compared by calendar day.
func Apply(tasks []domain.Task, f Filter, now time.Time) []domain.Task {
	query := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if query != "" &&
			!strings.Contains(strings.ToLower(t.Title), query) &&
			!strings.Contains(strings.ToLower(t.Description), query) {
			continue
		}
		if f.State != "" && t.State != f.State {
			continue
		}
		if f.OnlyUnassigned && t.Assigned() {
			continue
		}
		if !inRange(t, f, now) {
			continue
		}
		out = append(out, t)
	}

	less := func(i, j int) bool { return out[i].StartAt.After(out[j].StartAt) }
	switch f.Sort {
	case SortStartAsc:
		less = func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) }
	case SortEndAsc:
		less = func(i, j int) bool { return out[i].EndAt.Before(out[j].EndAt) }
	case SortEndDesc:
		less = func(i, j int) bool { return out[i].EndAt.After(out[j].EndAt) }
	}
	sort.SliceStable(out, less)
	return out
}

func inRange(t domain.Task, f Filter, now time.Time) bool {
	switch f.Range {
	case RangeToday:
		return t.StartAt.After(now.AddDate(0, 0, -1))
	case RangeWeek:
		return t.StartAt.After(now.AddDate(0, 0, -7))
	case RangeCustom:
		return !day(t.StartAt).Before(day(f.From)) && !day(t.EndAt).After(day(f.To))
	default:
		return true
	}
}

func day(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Page returns the 1-based page of tasks and the total page count.
func Page(tasks []domain.Task, page, size int) ([]domain.Task, int) {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := (len(tasks) + size - 1) / size
	if page < 1 {
		page = 1
	}
	start := (page - 1) * size
	if start >= len(tasks) {
		return []domain.Task{}, total
	}
	end := start + size
	if end > len(tasks) {
		end = len(tasks)
	}
	return tasks[start:end], total
}
