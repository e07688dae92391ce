package domain

import "time"

// Task is a unit of work. Its State is either derived from member progress or
// set directly by a creator or team leader.
type Task struct {
	ID          string
	WorkspaceID string
	Title       string
	Description string
	StartAt     time.Time
	EndAt       time.Time
	CreatorID   string
	TeamID      *string
	State       State
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Assigned reports whether the task has a team.
func (t Task) Assigned() bool {
	return t.TeamID != nil && *t.TeamID != ""
}

// TaskProgress is one member's personal state against a task. (TaskID, UserID)
// is unique.
type TaskProgress struct {
	TaskID      string
	UserID      string
	WorkspaceID string
	State       State
	CompletedAt *time.Time
	UpdatedAt   time.Time
}

// Apply sets the progress state and keeps CompletedAt consistent with it.
func (p *TaskProgress) Apply(state State, now time.Time) {
	p.State = state
	p.UpdatedAt = now
	if state == StateCompleted {
		ts := now
		p.CompletedAt = &ts
		return
	}
	p.CompletedAt = nil
}

// ProgressStates extracts the states of the given rows.
func ProgressStates(rows []TaskProgress) []State {
	out := make([]State, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.State)
	}
	return out
}

// ProgressMembers extracts the user ids of the given rows.
func ProgressMembers(rows []TaskProgress) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.UserID)
	}
	return out
}
