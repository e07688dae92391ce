// Package memory implements the repository interfaces in process. It backs
// the service tests and single-process embedding; every call is serialised
// by one mutex so per-row guarantees match the postgres implementation.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/splax/taskflow/internal/domain"
	"github.com/splax/taskflow/internal/repository"
)

type progressKey struct {
	taskID string
	userID string
}

// Store is an in-memory repository.Store.
type Store struct {
	mu         sync.Mutex
	workspaces map[string]domain.Workspace
	users      map[string]domain.User
	teams      map[string]domain.Team
	tasks      map[string]domain.Task
	progress   map[progressKey]domain.TaskProgress
	invites    map[string]domain.Invite
	now        func() time.Time
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		workspaces: make(map[string]domain.Workspace),
		users:      make(map[string]domain.User),
		teams:      make(map[string]domain.Team),
		tasks:      make(map[string]domain.Task),
		progress:   make(map[progressKey]domain.TaskProgress),
		invites:    make(map[string]domain.Invite),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateWorkspace inserts a workspace.
func (s *Store) CreateWorkspace(_ context.Context, workspace *domain.Workspace) error {
	if workspace == nil || workspace.ID == "" {
		return repository.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workspaces[workspace.ID]; ok {
		return repository.ErrConflict
	}
	s.workspaces[workspace.ID] = *workspace
	return nil
}

// CreateWorkspaceWithOwner inserts a workspace and its owner under one lock.
func (s *Store) CreateWorkspaceWithOwner(_ context.Context, workspace *domain.Workspace, owner *domain.User) error {
	if workspace == nil || workspace.ID == "" || owner == nil || owner.ID == "" {
		return repository.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workspaces[workspace.ID]; ok {
		return repository.ErrConflict
	}
	if err := s.insertUserLocked(*owner); err != nil {
		return err
	}
	s.workspaces[workspace.ID] = *workspace
	return nil
}

// GetWorkspaceByID returns a workspace.
func (s *Store) GetWorkspaceByID(_ context.Context, workspaceID string) (*domain.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.workspaces[workspaceID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ws, nil
}

// BackfillWorkspace assigns rows with an empty workspace id.
func (s *Store) BackfillWorkspace(_ context.Context, workspaceID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workspaces[workspaceID]; !ok {
		return 0, repository.ErrNotFound
	}
	var touched int64
	for id, u := range s.users {
		if u.WorkspaceID == "" {
			u.WorkspaceID = workspaceID
			s.users[id] = u
			touched++
		}
	}
	for id, t := range s.teams {
		if t.WorkspaceID == "" {
			t.WorkspaceID = workspaceID
			s.teams[id] = t
			touched++
		}
	}
	for id, t := range s.tasks {
		if t.WorkspaceID == "" {
			t.WorkspaceID = workspaceID
			s.tasks[id] = t
			touched++
		}
	}
	for key, p := range s.progress {
		if p.WorkspaceID == "" {
			p.WorkspaceID = workspaceID
			s.progress[key] = p
			touched++
		}
	}
	return touched, nil
}

// CreateUser inserts a user.
func (s *Store) CreateUser(_ context.Context, user *domain.User) error {
	if user == nil || user.ID == "" {
		return repository.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertUserLocked(*user)
}

func (s *Store) insertUserLocked(user domain.User) error {
	if _, ok := s.users[user.ID]; ok {
		return repository.ErrConflict
	}
	for _, existing := range s.users {
		if user.Email != "" && strings.EqualFold(existing.Email, user.Email) {
			return repository.ErrConflict
		}
	}
	user.TeamID = cloneString(user.TeamID)
	s.users[user.ID] = user
	return nil
}

// GetUserByID returns a user.
func (s *Store) GetUserByID(_ context.Context, userID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.TeamID = cloneString(u.TeamID)
	return &u, nil
}

// SetUserTeam updates the user's team back-reference.
func (s *Store) SetUserTeam(_ context.Context, userID string, teamID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.TeamID = cloneString(teamID)
	s.users[userID] = u
	return nil
}

// CountMembers counts users in a workspace.
func (s *Store) CountMembers(_ context.Context, workspaceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countMembersLocked(workspaceID), nil
}

func (s *Store) countMembersLocked(workspaceID string) int {
	count := 0
	for _, u := range s.users {
		if u.WorkspaceID == workspaceID {
			count++
		}
	}
	return count
}

// CreateTeam inserts a team. Names are unique per workspace.
func (s *Store) CreateTeam(_ context.Context, team *domain.Team) error {
	if team == nil || team.ID == "" {
		return repository.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teams[team.ID]; ok {
		return repository.ErrConflict
	}
	for _, existing := range s.teams {
		if existing.WorkspaceID == team.WorkspaceID && existing.Name == team.Name {
			return repository.ErrConflict
		}
	}
	for _, id := range team.MemberIDs {
		if s.teamOfLocked(id) != "" {
			return repository.ErrConflict
		}
	}
	stored := *team
	stored.MemberIDs = append([]string(nil), team.MemberIDs...)
	s.teams[team.ID] = stored
	return nil
}

// GetTeam returns a team inside a workspace.
func (s *Store) GetTeam(_ context.Context, workspaceID, teamID string) (*domain.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[teamID]
	if !ok || t.WorkspaceID != workspaceID {
		return nil, repository.ErrNotFound
	}
	return cloneTeam(t), nil
}

// GetTeamByName returns a team by exact name inside a workspace.
func (s *Store) GetTeamByName(_ context.Context, workspaceID, name string) (*domain.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.teams {
		if t.WorkspaceID == workspaceID && t.Name == name {
			return cloneTeam(t), nil
		}
	}
	return nil, repository.ErrNotFound
}

// ListTeams returns the workspace's teams ordered by name.
func (s *Store) ListTeams(_ context.Context, workspaceID string) ([]domain.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	teams := make([]domain.Team, 0)
	for _, t := range s.teams {
		if t.WorkspaceID == workspaceID {
			teams = append(teams, *cloneTeam(t))
		}
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].Name < teams[j].Name })
	return teams, nil
}

// AddMember adds a membership edge; adding an existing member is a no-op. A
// user belongs to at most one team.
func (s *Store) AddMember(_ context.Context, member *domain.TeamMember) error {
	if member == nil {
		return repository.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[member.TeamID]
	if !ok {
		return repository.ErrNotFound
	}
	if t.HasMember(member.UserID) {
		return nil
	}
	if s.teamOfLocked(member.UserID) != "" {
		return repository.ErrConflict
	}
	t.MemberIDs = append(append([]string(nil), t.MemberIDs...), member.UserID)
	s.teams[t.ID] = t
	return nil
}

func (s *Store) teamOfLocked(userID string) string {
	for id, t := range s.teams {
		if t.HasMember(userID) {
			return id
		}
	}
	return ""
}

// RemoveMember drops a membership edge.
func (s *Store) RemoveMember(_ context.Context, teamID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[teamID]
	if !ok || !t.HasMember(userID) {
		return repository.ErrNotFound
	}
	members := make([]string, 0, len(t.MemberIDs))
	for _, id := range t.MemberIDs {
		if id != userID {
			members = append(members, id)
		}
	}
	t.MemberIDs = members
	s.teams[teamID] = t
	return nil
}

// SetLeader changes the team leader.
func (s *Store) SetLeader(_ context.Context, teamID, leaderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[teamID]
	if !ok {
		return repository.ErrNotFound
	}
	t.LeaderID = leaderID
	s.teams[teamID] = t
	return nil
}

// CreateTask inserts a task.
func (s *Store) CreateTask(_ context.Context, task *domain.Task) error {
	if task == nil || task.ID == "" {
		return repository.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; ok {
		return repository.ErrConflict
	}
	stored := *task
	stored.TeamID = cloneString(task.TeamID)
	s.tasks[task.ID] = stored
	return nil
}

// GetTask returns a task inside a workspace.
func (s *Store) GetTask(_ context.Context, workspaceID, taskID string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok || t.WorkspaceID != workspaceID {
		return nil, repository.ErrNotFound
	}
	return cloneTask(t), nil
}

// SetTaskTeam assigns a team to a task.
func (s *Store) SetTaskTeam(_ context.Context, workspaceID, taskID, teamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok || t.WorkspaceID != workspaceID {
		return repository.ErrNotFound
	}
	t.TeamID = &teamID
	t.UpdatedAt = s.now()
	s.tasks[taskID] = t
	return nil
}

// MutateTaskState applies fn to a consistent snapshot and stores the result.
func (s *Store) MutateTaskState(_ context.Context, workspaceID, taskID string, fn repository.StateFunc) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok || t.WorkspaceID != workspaceID {
		return nil, repository.ErrNotFound
	}
	next, err := fn(*cloneTask(t), s.listProgressLocked(taskID))
	if err != nil {
		return nil, err
	}
	if next != t.State {
		t.State = next
		t.UpdatedAt = s.now()
		s.tasks[taskID] = t
	}
	return cloneTask(t), nil
}

// ListTasks returns every task in a workspace.
func (s *Store) ListTasks(_ context.Context, workspaceID string) ([]domain.Task, error) {
	return s.filterTasks(func(t domain.Task) bool { return t.WorkspaceID == workspaceID }), nil
}

// ListTasksByCreator returns tasks created by a user.
func (s *Store) ListTasksByCreator(_ context.Context, workspaceID, creatorID string) ([]domain.Task, error) {
	return s.filterTasks(func(t domain.Task) bool {
		return t.WorkspaceID == workspaceID && t.CreatorID == creatorID
	}), nil
}

// ListTasksByTeam returns tasks assigned to a team.
func (s *Store) ListTasksByTeam(_ context.Context, workspaceID, teamID string) ([]domain.Task, error) {
	return s.filterTasks(func(t domain.Task) bool {
		return t.WorkspaceID == workspaceID && t.TeamID != nil && *t.TeamID == teamID
	}), nil
}

// ListTasksAssignedTo returns tasks the user holds a progress row for.
func (s *Store) ListTasksAssignedTo(_ context.Context, workspaceID, userID string) ([]domain.Task, error) {
	s.mu.Lock()
	held := make(map[string]struct{})
	for key := range s.progress {
		if key.userID == userID {
			held[key.taskID] = struct{}{}
		}
	}
	s.mu.Unlock()
	return s.filterTasks(func(t domain.Task) bool {
		_, ok := held[t.ID]
		return ok && t.WorkspaceID == workspaceID
	}), nil
}

func (s *Store) filterTasks(keep func(domain.Task) bool) []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := make([]domain.Task, 0)
	for _, t := range s.tasks {
		if keep(t) {
			tasks = append(tasks, *cloneTask(t))
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks
}

// EnsureProgress inserts the row unless the pair already exists.
func (s *Store) EnsureProgress(_ context.Context, progress *domain.TaskProgress) (bool, error) {
	if progress == nil {
		return false, repository.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := progressKey{taskID: progress.TaskID, userID: progress.UserID}
	if _, ok := s.tasks[progress.TaskID]; !ok {
		return false, repository.ErrNotFound
	}
	if _, ok := s.progress[key]; ok {
		return false, nil
	}
	s.progress[key] = cloneProgress(*progress)
	return true, nil
}

// SaveProgress upserts a row on the (task, user) pair.
func (s *Store) SaveProgress(_ context.Context, progress *domain.TaskProgress) error {
	if progress == nil {
		return repository.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[progress.TaskID]; !ok {
		return repository.ErrNotFound
	}
	s.progress[progressKey{taskID: progress.TaskID, userID: progress.UserID}] = cloneProgress(*progress)
	return nil
}

// GetProgress returns one member's row.
func (s *Store) GetProgress(_ context.Context, taskID, userID string) (*domain.TaskProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[progressKey{taskID: taskID, userID: userID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p = cloneProgress(p)
	return &p, nil
}

// ListProgress returns every row of a task ordered by user id.
func (s *Store) ListProgress(_ context.Context, taskID string) ([]domain.TaskProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listProgressLocked(taskID), nil
}

func (s *Store) listProgressLocked(taskID string) []domain.TaskProgress {
	rows := make([]domain.TaskProgress, 0)
	for key, p := range s.progress {
		if key.taskID == taskID {
			rows = append(rows, cloneProgress(p))
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].UserID < rows[j].UserID })
	return rows
}

// CreateInvite inserts an invite. Codes are unique.
func (s *Store) CreateInvite(_ context.Context, invite *domain.Invite) error {
	if invite == nil || invite.ID == "" || invite.Code == "" {
		return repository.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.invites {
		if existing.Code == invite.Code || existing.ID == invite.ID {
			return repository.ErrConflict
		}
	}
	s.invites[invite.ID] = *invite
	return nil
}

// GetInviteByCode returns an invite by code.
func (s *Store) GetInviteByCode(_ context.Context, code string) (*domain.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invites {
		if inv.Code == code {
			return &inv, nil
		}
	}
	return nil, repository.ErrNotFound
}

// MarkInviteUsed flips the one-shot flag.
func (s *Store) MarkInviteUsed(_ context.Context, inviteID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markUsedLocked(inviteID, userID)
}

func (s *Store) markUsedLocked(inviteID, userID string) error {
	inv, ok := s.invites[inviteID]
	if !ok {
		return repository.ErrNotFound
	}
	if inv.Used {
		return repository.ErrConflict
	}
	now := s.now()
	inv.Used = true
	inv.UsedAt = &now
	if userID != "" {
		inv.UsedBy = &userID
	}
	s.invites[inviteID] = inv
	return nil
}

// RedeemInvite creates the user and consumes the invite as one step.
func (s *Store) RedeemInvite(_ context.Context, inviteID string, user *domain.User) error {
	if user == nil || user.ID == "" {
		return repository.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invites[inviteID]
	if !ok {
		return repository.ErrNotFound
	}
	if inv.Used || inv.Expired(s.now()) {
		return repository.ErrConflict
	}
	ws, ok := s.workspaces[inv.WorkspaceID]
	if !ok {
		return repository.ErrNotFound
	}
	if s.countMembersLocked(ws.ID) >= ws.MaxMembers {
		return repository.ErrCapacity
	}
	if err := s.insertUserLocked(*user); err != nil {
		return err
	}
	return s.markUsedLocked(inviteID, user.ID)
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTeam(t domain.Team) *domain.Team {
	t.MemberIDs = append([]string(nil), t.MemberIDs...)
	return &t
}

func cloneTask(t domain.Task) *domain.Task {
	t.TeamID = cloneString(t.TeamID)
	return &t
}

func cloneProgress(p domain.TaskProgress) domain.TaskProgress {
	if p.CompletedAt != nil {
		ts := *p.CompletedAt
		p.CompletedAt = &ts
	}
	return p
}
