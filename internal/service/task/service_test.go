package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/splax/taskflow/internal/domain"
	"github.com/splax/taskflow/internal/metrics"
	"github.com/splax/taskflow/internal/repository/memory"
	"github.com/splax/taskflow/internal/service/progress"
	"github.com/splax/taskflow/internal/service/team"
)

type fixture struct {
	svc      Service
	teams    team.Service
	store    *memory.Store
	recorder *metrics.Recorder
	start    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	for _, ws := range []string{"ws-1", "ws-2"} {
		if err := store.CreateWorkspace(ctx, &domain.Workspace{ID: ws, Name: ws, MaxMembers: 50, EmailDomain: "acme.com"}); err != nil {
			t.Fatalf("create workspace: %v", err)
		}
	}
	for _, u := range []struct{ id, ws string }{
		{"creator", "ws-1"}, {"lead", "ws-1"}, {"m1", "ws-1"}, {"m2", "ws-1"}, {"late", "ws-1"}, {"stranger", "ws-1"}, {"foreign", "ws-2"},
	} {
		if err := store.CreateUser(ctx, &domain.User{ID: u.id, WorkspaceID: u.ws, Email: u.id + "@acme.com", Role: domain.RoleMember}); err != nil {
			t.Fatalf("create user %s: %v", u.id, err)
		}
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := metrics.New(prometheus.NewRegistry())
	teams := team.New(store, store, log)
	agg := progress.New(store, store, recorder, log)
	svc := New(store, teams, agg, recorder, log)
	teams = teams.WithMemberHook(svc)
	svc.teams = teams
	return &fixture{
		svc:      svc,
		teams:    teams,
		store:    store,
		recorder: recorder,
		start:    time.Date(2025, time.April, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) user(t *testing.T, id string) domain.User {
	t.Helper()
	u, err := f.store.GetUserByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get user %s: %v", id, err)
	}
	return *u
}

func (f *fixture) newTask(t *testing.T, title string) *domain.Task {
	t.Helper()
	task, err := f.svc.Create(context.Background(), CreateInput{
		Title:       title,
		Description: "do " + title,
		CreatorID:   "creator",
		WorkspaceID: "ws-1",
		StartAt:     f.start,
		EndAt:       f.start.Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

// newTeam creates a team led by "lead" with the given extra members.
func (f *fixture) newTeam(t *testing.T, members ...string) *domain.Team {
	t.Helper()
	ctx := context.Background()
	tm, err := f.teams.Create(ctx, "core", "", f.user(t, "lead"))
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	for _, id := range members {
		if tm, err = f.teams.Join(ctx, tm.ID, f.user(t, id)); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
	}
	return tm
}

func (f *fixture) assigned(t *testing.T, title string, members ...string) (*domain.Task, *domain.Team) {
	t.Helper()
	tm := f.newTeam(t, members...)
	task := f.newTask(t, title)
	task, err := f.svc.AssignToTeam(context.Background(), task.ID, tm.ID, "creator", "ws-1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	return task, tm
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := CreateInput{Title: "t", Description: "d", CreatorID: "creator", WorkspaceID: "ws-1", StartAt: f.start, EndAt: f.start}

	cases := map[string]func(in *CreateInput){
		"end before start":  func(in *CreateInput) { in.EndAt = in.StartAt.Add(-time.Second) },
		"end a day earlier": func(in *CreateInput) { in.EndAt = in.StartAt.AddDate(0, 0, -1) },
		"empty title":       func(in *CreateInput) { in.Title = "  " },
		"empty description": func(in *CreateInput) { in.Description = "" },
		"missing end":       func(in *CreateInput) { in.EndAt = time.Time{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := base
			mutate(&in)
			if _, err := f.svc.Create(ctx, in); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	in := base
	in.CreatorID = "foreign"
	if _, err := f.svc.Create(ctx, in); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for creator outside workspace, got %v", err)
	}
}

func TestCreateStartsNotAssignedWithoutProgress(t *testing.T) {
	f := newFixture(t)
	for _, span := range []time.Duration{0, time.Minute, 72 * time.Hour} {
		task, err := f.svc.Create(context.Background(), CreateInput{
			Title: "t", Description: "d", CreatorID: "creator", WorkspaceID: "ws-1",
			StartAt: f.start, EndAt: f.start.Add(span),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if task.State != domain.StateNotAssigned || task.Assigned() {
			t.Fatalf("unexpected initial task %+v", task)
		}
		rows, _ := f.store.ListProgress(context.Background(), task.ID)
		if len(rows) != 0 {
			t.Fatalf("expected no progress rows, got %d", len(rows))
		}
	}
}

func TestAssignToTeamIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, tm := f.assigned(t, "ship", "m1", "m2")
	if task.State != domain.StateOngoing {
		t.Fatalf("expected Ongoing after assignment, got %s", task.State)
	}
	again, err := f.svc.AssignToTeam(ctx, task.ID, tm.ID, "creator", "ws-1")
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if again.State != domain.StateOngoing {
		t.Fatalf("expected Ongoing, got %s", again.State)
	}
	rows, _ := f.store.ListProgress(ctx, task.ID)
	if len(rows) != 3 {
		t.Fatalf("expected 3 progress rows, got %d", len(rows))
	}
	seen := map[string]bool{}
	for _, r := range rows {
		if seen[r.UserID] {
			t.Fatalf("duplicate row for %s", r.UserID)
		}
		seen[r.UserID] = true
		if r.State != domain.StateOngoing {
			t.Fatalf("expected Ongoing row, got %s", r.State)
		}
	}
	got := testutil.ToFloat64(f.recorder.TransitionCounter().WithLabelValues(metrics.SourceAssign, "NotAssigned", "Ongoing"))
	if got != 1 {
		t.Fatalf("expected a single assignment transition, got %v", got)
	}
}

func TestAssignToTeamRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tm := f.newTeam(t)
	task := f.newTask(t, "ship")

	if _, err := f.svc.AssignToTeam(ctx, task.ID, tm.ID, "lead", "ws-1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for non-creator, got %v", err)
	}
	if _, err := f.svc.AssignToTeam(ctx, task.ID, "missing", "creator", "ws-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for missing team, got %v", err)
	}
	if _, err := f.svc.AssignToTeam(ctx, task.ID, tm.ID, "creator", "ws-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found across workspaces, got %v", err)
	}
}

func TestSetMyProgressAggregationExamples(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, _ := f.assigned(t, "ship", "m1", "m2")

	var err error
	for _, u := range []string{"lead", "m1"} {
		if task, err = f.svc.SetMyProgress(ctx, task.ID, u, "ws-1", domain.StateCompleted); err != nil {
			t.Fatalf("progress %s: %v", u, err)
		}
	}
	if task.State != domain.StateOngoing {
		t.Fatalf("{Completed, Completed, Ongoing} should aggregate to Ongoing, got %s", task.State)
	}
	if task, err = f.svc.SetMyProgress(ctx, task.ID, "m2", "ws-1", domain.StateCompleted); err != nil {
		t.Fatalf("progress m2: %v", err)
	}
	if task.State != domain.StateCompleted {
		t.Fatalf("{Completed x3} should aggregate to Completed, got %s", task.State)
	}
	if state, ok, err := f.svc.MyState(ctx, "ws-1", task.ID, "m2"); err != nil || !ok || state != domain.StateCompleted {
		t.Fatalf("unexpected my state %s %v %v", state, ok, err)
	}
}

func TestSetMyProgressOrderIndependent(t *testing.T) {
	reports := []struct {
		user  string
		state domain.State
	}{
		{"lead", domain.StateInterrupted},
		{"m1", domain.StateCompleted},
		{"m2", domain.StateInterrupted},
	}
	orders := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	var want domain.State
	for i, order := range orders {
		f := newFixture(t)
		task, _ := f.assigned(t, "ship", "m1", "m2")
		var err error
		for _, idx := range order {
			r := reports[idx]
			if task, err = f.svc.SetMyProgress(context.Background(), task.ID, r.user, "ws-1", r.state); err != nil {
				t.Fatalf("progress: %v", err)
			}
		}
		if i == 0 {
			want = task.State
			continue
		}
		if task.State != want {
			t.Fatalf("order %v produced %s, want %s", order, task.State, want)
		}
	}
	if want != domain.StateInterrupted {
		t.Fatalf("expected Interrupted, got %s", want)
	}
}

func TestSetMyProgressOutsideWorkspaceIsForbidden(t *testing.T) {
	f := newFixture(t)
	task := f.newTask(t, "ship")
	if _, err := f.svc.SetMyProgress(context.Background(), task.ID, "foreign", "ws-2", domain.StateOngoing); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := f.svc.SetMyProgress(context.Background(), task.ID, "m1", "ws-1", domain.State("Bogus")); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMemberSelfServiceNeverCancels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, _ := f.assigned(t, "ship", "m1")

	var err error
	for _, u := range []string{"lead", "m1"} {
		if task, err = f.svc.SetMyProgress(ctx, task.ID, u, "ws-1", domain.StateCanceled); err != nil {
			t.Fatalf("progress: %v", err)
		}
		if task.State == domain.StateCanceled {
			t.Fatal("self-service progress must not cancel the task")
		}
	}
	if _, err := f.svc.ChangeGlobalState(ctx, task.ID, domain.StateCanceled, "m1", "ws-1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected member cancel to be forbidden, got %v", err)
	}
	got := testutil.ToFloat64(f.recorder.DenialCounter().WithLabelValues(opChangeState, "assigned_member"))
	if got != 1 {
		t.Fatalf("expected one member denial, got %v", got)
	}
}

func TestChangeGlobalStateMemberSelfService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, _ := f.assigned(t, "ship", "m1")

	tr, err := f.svc.ChangeGlobalState(ctx, task.ID, domain.StateInterrupted, "m1", "ws-1")
	if err != nil {
		t.Fatalf("interrupt: %v", err)
	}
	if !tr.Applied || tr.From != domain.StateOngoing || tr.To != domain.StateInterrupted {
		t.Fatalf("unexpected transition %+v", tr)
	}
	if _, err := f.svc.ChangeGlobalState(ctx, task.ID, domain.StateCompleted, "m1", "ws-1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("completing an interrupted task must be denied, got %v", err)
	}
	if _, err := f.svc.ChangeGlobalState(ctx, task.ID, domain.StateOngoing, "stranger", "ws-1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("stranger must be denied, got %v", err)
	}
}

func TestCreatorCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, _ := f.assigned(t, "ship", "m1")

	// Ongoing -> Canceled is permitted but not in the transition table.
	tr, err := f.svc.ChangeGlobalState(ctx, task.ID, domain.StateCanceled, "creator", "ws-1")
	if err != nil {
		t.Fatalf("cancel ongoing: %v", err)
	}
	if tr.Applied || tr.Task.State != domain.StateOngoing {
		t.Fatalf("expected silent no-op, got %+v", tr)
	}

	if _, err := f.svc.ChangeGlobalState(ctx, task.ID, domain.StateInterrupted, "m1", "ws-1"); err != nil {
		t.Fatalf("interrupt: %v", err)
	}
	tr, err = f.svc.ChangeGlobalState(ctx, task.ID, domain.StateCanceled, "creator", "ws-1")
	if err != nil {
		t.Fatalf("cancel interrupted: %v", err)
	}
	if !tr.Applied || tr.Task.State != domain.StateCanceled {
		t.Fatalf("expected cancel to apply, got %+v", tr)
	}
}

func TestCreatorCannotCancelCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, _ := f.assigned(t, "ship")
	if _, err := f.svc.SetMyProgress(ctx, task.ID, "lead", "ws-1", domain.StateCompleted); err != nil {
		t.Fatalf("progress: %v", err)
	}
	if _, err := f.svc.ChangeGlobalState(ctx, task.ID, domain.StateCanceled, "creator", "ws-1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestLeaderOverridesAssignedTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, _ := f.assigned(t, "ship", "m1")
	if _, ok, _ := f.svc.MyState(ctx, "ws-1", task.ID, "lead"); !ok {
		t.Fatal("expected the leader to hold a progress row after assignment")
	}

	if _, err := f.svc.ChangeGlobalState(ctx, task.ID, domain.StateInterrupted, "m1", "ws-1"); err != nil {
		t.Fatalf("member interrupt: %v", err)
	}
	tr, err := f.svc.ChangeGlobalState(ctx, task.ID, domain.StateCanceled, "lead", "ws-1")
	if err != nil {
		t.Fatalf("leader cancel: %v", err)
	}
	if !tr.Applied || tr.From != domain.StateInterrupted || tr.Task.State != domain.StateCanceled {
		t.Fatalf("unexpected transition %+v", tr)
	}
}

func TestLeaderResumesAndInterruptsAssignedTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, _ := f.assigned(t, "ship", "m1")

	tr, err := f.svc.ChangeGlobalState(ctx, task.ID, domain.StateInterrupted, "lead", "ws-1")
	if err != nil || !tr.Applied {
		t.Fatalf("leader interrupt: %+v %v", tr, err)
	}
	tr, err = f.svc.ChangeGlobalState(ctx, task.ID, domain.StateOngoing, "lead", "ws-1")
	if err != nil || !tr.Applied || tr.Task.State != domain.StateOngoing {
		t.Fatalf("leader resume: %+v %v", tr, err)
	}
	if _, err := f.svc.ChangeGlobalState(ctx, task.ID, domain.StateCompleted, "lead", "ws-1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("leader must not complete directly, got %v", err)
	}
	got := testutil.ToFloat64(f.recorder.DenialCounter().WithLabelValues(opChangeState, "team_leader"))
	if got != 1 {
		t.Fatalf("expected one leader denial, got %v", got)
	}
}

func TestLeaderOverrideWithoutProgressRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tm := f.newTeam(t, "m1")
	task := f.newTask(t, "ship")
	if err := f.store.SetTaskTeam(ctx, "ws-1", task.ID, tm.ID); err != nil {
		t.Fatalf("set team: %v", err)
	}
	if _, err := f.svc.SetMyProgress(ctx, task.ID, "m1", "ws-1", domain.StateOngoing); err != nil {
		t.Fatalf("progress: %v", err)
	}

	tr, err := f.svc.ChangeGlobalState(ctx, task.ID, domain.StateInterrupted, "lead", "ws-1")
	if err != nil || !tr.Applied {
		t.Fatalf("leader interrupt: %+v %v", tr, err)
	}
	tr, err = f.svc.ChangeGlobalState(ctx, task.ID, domain.StateCanceled, "lead", "ws-1")
	if err != nil || !tr.Applied || tr.Task.State != domain.StateCanceled {
		t.Fatalf("leader cancel: %+v %v", tr, err)
	}
}

func TestLeaderCannotCancelCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, _ := f.assigned(t, "ship", "m1")
	var err error
	for _, u := range []string{"lead", "m1"} {
		if task, err = f.svc.SetMyProgress(ctx, task.ID, u, "ws-1", domain.StateCompleted); err != nil {
			t.Fatalf("progress %s: %v", u, err)
		}
	}
	if task.State != domain.StateCompleted {
		t.Fatalf("expected Completed, got %s", task.State)
	}
	if _, err := f.svc.ChangeGlobalState(ctx, task.ID, domain.StateCanceled, "lead", "ws-1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestSetMyProgressRequiresTeamMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unassigned := f.newTask(t, "draft")
	if _, err := f.svc.SetMyProgress(ctx, unassigned.ID, "m1", "ws-1", domain.StateOngoing); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden on an unassigned task, got %v", err)
	}

	task, _ := f.assigned(t, "ship", "m1")
	var err error
	for _, u := range []string{"lead", "m1"} {
		if task, err = f.svc.SetMyProgress(ctx, task.ID, u, "ws-1", domain.StateCompleted); err != nil {
			t.Fatalf("progress %s: %v", u, err)
		}
	}
	if _, err := f.svc.SetMyProgress(ctx, task.ID, "stranger", "ws-1", domain.StateInterrupted); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for a user outside the team, got %v", err)
	}
	got, _ := f.svc.Get(ctx, "ws-1", task.ID)
	if got.State != domain.StateCompleted {
		t.Fatalf("expected state to stay Completed, got %s", got.State)
	}
	if _, ok, _ := f.svc.MyState(ctx, "ws-1", task.ID, "stranger"); ok {
		t.Fatal("rejected report must not create a progress row")
	}
	if n := testutil.ToFloat64(f.recorder.DenialCounter().WithLabelValues(opProgress, "participant")); n != 2 {
		t.Fatalf("expected two participant denials, got %v", n)
	}
}

func TestChangeGlobalStateScopedToWorkspace(t *testing.T) {
	f := newFixture(t)
	task, _ := f.assigned(t, "ship")
	if _, err := f.svc.ChangeGlobalState(context.Background(), task.ID, domain.StateCanceled, "creator", "ws-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBulkChangeStateSkipsFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tm := f.newTeam(t, "m1")

	interrupted := f.newTask(t, "a")
	ongoing := f.newTask(t, "b")
	for _, task := range []*domain.Task{interrupted, ongoing} {
		if _, err := f.svc.AssignToTeam(ctx, task.ID, tm.ID, "creator", "ws-1"); err != nil {
			t.Fatalf("assign: %v", err)
		}
	}
	if _, err := f.svc.ChangeGlobalState(ctx, interrupted.ID, domain.StateInterrupted, "m1", "ws-1"); err != nil {
		t.Fatalf("interrupt: %v", err)
	}
	completed := f.newTask(t, "c")
	if _, err := f.svc.AssignToTeam(ctx, completed.ID, tm.ID, "creator", "ws-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	for _, u := range []string{"lead", "m1"} {
		if _, err := f.svc.SetMyProgress(ctx, completed.ID, u, "ws-1", domain.StateCompleted); err != nil {
			t.Fatalf("progress: %v", err)
		}
	}

	result := f.svc.BulkChangeState(ctx, []string{interrupted.ID, "missing", ongoing.ID, completed.ID}, domain.StateCanceled, "creator", "ws-1")
	want := BulkResult{Attempted: 4, Applied: 1, Unchanged: 1, Skipped: 2}
	if result != want {
		t.Fatalf("unexpected result %+v, want %+v", result, want)
	}
	got, _ := f.svc.Get(ctx, "ws-1", interrupted.ID)
	if got.State != domain.StateCanceled {
		t.Fatalf("expected first item canceled, got %s", got.State)
	}
}

func TestJoiningMemberGetsRowsOnOpenTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	open, tm := f.assigned(t, "open", "m1")
	closed := f.newTask(t, "closed")
	if _, err := f.svc.AssignToTeam(ctx, closed.ID, tm.ID, "creator", "ws-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	for _, u := range []string{"lead", "m1"} {
		if _, err := f.svc.SetMyProgress(ctx, open.ID, u, "ws-1", domain.StateCompleted); err != nil {
			t.Fatalf("progress: %v", err)
		}
		if _, err := f.svc.SetMyProgress(ctx, closed.ID, u, "ws-1", domain.StateCompleted); err != nil {
			t.Fatalf("progress: %v", err)
		}
	}
	// Reopen one task so it is not terminal.
	if _, err := f.svc.SetMyProgress(ctx, open.ID, "m1", "ws-1", domain.StateInterrupted); err != nil {
		t.Fatalf("progress: %v", err)
	}

	if _, err := f.teams.Join(ctx, tm.ID, f.user(t, "late")); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, ok, _ := f.svc.MyState(ctx, "ws-1", open.ID, "late"); !ok {
		t.Fatal("expected late joiner to have a row on the open task")
	}
	if _, ok, _ := f.svc.MyState(ctx, "ws-1", closed.ID, "late"); ok {
		t.Fatal("completed task must not gain rows")
	}
	reopened, _ := f.svc.Get(ctx, "ws-1", open.ID)
	if reopened.State != domain.StateOngoing {
		t.Fatalf("expected recompute to Ongoing, got %s", reopened.State)
	}
}

func TestQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assigned, tm := f.assigned(t, "assigned", "m1")
	_ = f.newTask(t, "loose")

	created, err := f.svc.ListCreatedBy(ctx, "ws-1", "creator")
	if err != nil || len(created) != 2 {
		t.Fatalf("created by: %d %v", len(created), err)
	}
	mine, err := f.svc.ListAssignedTo(ctx, "ws-1", "m1")
	if err != nil || len(mine) != 1 || mine[0].ID != assigned.ID {
		t.Fatalf("assigned to: %v %v", mine, err)
	}
	byTeam, err := f.svc.ListByTeam(ctx, "ws-1", tm.ID)
	if err != nil || len(byTeam) != 1 {
		t.Fatalf("by team: %v %v", byTeam, err)
	}
	if _, err := f.svc.ListByTeam(ctx, "ws-2", tm.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for foreign team, got %v", err)
	}
	counts, err := f.svc.CountByState(ctx, "ws-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[domain.StateOngoing] != 1 || counts[domain.StateNotAssigned] != 1 || counts[domain.StateCanceled] != 0 {
		t.Fatalf("unexpected counts %v", counts)
	}
	if len(counts) != len(domain.States) {
		t.Fatalf("expected every state present, got %v", counts)
	}
}
