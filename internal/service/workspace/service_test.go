package workspace

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/splax/taskflow/internal/domain"
	"github.com/splax/taskflow/internal/repository/memory"
)

func newTestService() (Service, *memory.Store) {
	store := memory.New()
	return New(store, store, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func TestNormalizeDomain(t *testing.T) {
	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{raw: "acme.com", want: "acme.com", ok: true},
		{raw: " @ACME.com ", want: "acme.com", ok: true},
		{raw: "mail.acme.co.uk", want: "mail.acme.co.uk", ok: true},
		{raw: "acme", ok: false},
		{raw: "acme..com", ok: false},
		{raw: "-acme.com", ok: false},
		{raw: "ac me.com", ok: false},
		{raw: "", ok: false},
	}
	for _, tc := range cases {
		got, err := NormalizeDomain(tc.raw)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("NormalizeDomain(%q) = %q, %v; want %q", tc.raw, got, err, tc.want)
			}
			continue
		}
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("NormalizeDomain(%q) expected validation error, got %q, %v", tc.raw, got, err)
		}
	}
}

func TestCreateRegistersOwner(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	ws, owner, err := svc.Create(ctx, CreateInput{Name: "Acme", MaxMembers: 2, EmailDomain: "@Acme.com", OwnerEmail: "Boss@acme.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ws.EmailDomain != "acme.com" {
		t.Fatalf("expected normalised domain, got %q", ws.EmailDomain)
	}
	if owner.Role != domain.RoleOwner || owner.WorkspaceID != ws.ID || owner.Email != "boss@acme.com" {
		t.Fatalf("unexpected owner %+v", owner)
	}
	full, err := svc.IsFull(ctx, *ws)
	if err != nil || full {
		t.Fatalf("expected free capacity, got %v %v", full, err)
	}
	if err := store.CreateUser(ctx, &domain.User{ID: "u2", WorkspaceID: ws.ID, Email: "two@acme.com", Role: domain.RoleMember}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	full, err = svc.IsFull(ctx, *ws)
	if err != nil || !full {
		t.Fatalf("expected full workspace, got %v %v", full, err)
	}
}

func TestCreateRejectsForeignOwnerEmail(t *testing.T) {
	svc, _ := newTestService()
	_, _, err := svc.Create(context.Background(), CreateInput{Name: "Acme", MaxMembers: 2, EmailDomain: "acme.com", OwnerEmail: "boss@evil.com"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, _, err = svc.Create(context.Background(), CreateInput{Name: "Acme", MaxMembers: 0, EmailDomain: "acme.com", OwnerEmail: "boss@acme.com"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for zero capacity, got %v", err)
	}
}

func TestEmailMatchesIsCaseInsensitiveExact(t *testing.T) {
	svc, _ := newTestService()
	ws := domain.Workspace{EmailDomain: "acme.com"}
	if !svc.EmailMatches(ws, "Bob@ACME.com") {
		t.Fatal("expected case-insensitive match")
	}
	for _, email := range []string{"bob@wrong.com", "bob@notacme.com", "bob@sub.acme.com", "bob"} {
		if svc.EmailMatches(ws, email) {
			t.Fatalf("did not expect %s to match", email)
		}
	}
}

func TestGuardHidesOtherWorkspaces(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	guard := NewGuard(store, store, store)
	for _, id := range []string{"ws-1", "ws-2"} {
		if err := store.CreateWorkspace(ctx, &domain.Workspace{ID: id, Name: id, MaxMembers: 5, EmailDomain: "acme.com"}); err != nil {
			t.Fatalf("create workspace: %v", err)
		}
	}
	now := time.Now().UTC()
	task := &domain.Task{ID: "t1", WorkspaceID: "ws-1", Title: "x", Description: "y", StartAt: now, EndAt: now, CreatorID: "u1", State: domain.StateNotAssigned, CreatedAt: now, UpdatedAt: now}
	if err := store.CreateTask(ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if err := store.CreateUser(ctx, &domain.User{ID: "u1", WorkspaceID: "ws-1", Email: "u1@acme.com", Role: domain.RoleMember}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := store.CreateTeam(ctx, &domain.Team{ID: "team", WorkspaceID: "ws-1", Name: "core", LeaderID: "u1", MemberIDs: []string{"u1"}}); err != nil {
		t.Fatalf("create team: %v", err)
	}

	if _, err := guard.Task(ctx, "ws-1", "t1"); err != nil {
		t.Fatalf("task in workspace: %v", err)
	}
	if _, err := guard.Task(ctx, "ws-2", "t1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for foreign task, got %v", err)
	}
	if _, err := guard.Task(ctx, "ws-2", "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for missing task, got %v", err)
	}
	if _, err := guard.Team(ctx, "ws-2", "team"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for foreign team, got %v", err)
	}
	if _, err := guard.User(ctx, "ws-2", "u1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for foreign user, got %v", err)
	}
}

func TestLegacyRecordsNeedExplicitBackfill(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	guard := NewGuard(store, store, store)
	if err := store.CreateWorkspace(ctx, &domain.Workspace{ID: "ws-1", Name: "acme", MaxMembers: 5, EmailDomain: "acme.com"}); err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	now := time.Now().UTC()
	legacy := &domain.Task{ID: "old", Title: "x", Description: "y", StartAt: now, EndAt: now, CreatorID: "u1", State: domain.StateNotAssigned, CreatedAt: now, UpdatedAt: now}
	if err := store.CreateTask(ctx, legacy); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := guard.Task(ctx, "ws-1", "old"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("legacy task must not resolve before backfill, got %v", err)
	}
	if _, err := guard.Task(ctx, "", "old"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("empty workspace must never resolve, got %v", err)
	}
	touched, err := svc.BackfillLegacy(ctx, "ws-1")
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if touched != 1 {
		t.Fatalf("expected 1 row touched, got %d", touched)
	}
	if _, err := guard.Task(ctx, "ws-1", "old"); err != nil {
		t.Fatalf("expected legacy task after backfill, got %v", err)
	}
	if _, err := svc.BackfillLegacy(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown workspace, got %v", err)
	}
}

type recordingStore struct {
	*memory.Store
	lastWorkspaceID string
}

func (r *recordingStore) CreateWorkspaceWithOwner(ctx context.Context, ws *domain.Workspace, owner *domain.User) error {
	r.lastWorkspaceID = ws.ID
	return r.Store.CreateWorkspaceWithOwner(ctx, ws, owner)
}

func TestCreateLeavesNothingWhenOwnerInsertFails(t *testing.T) {
	store := &recordingStore{Store: memory.New()}
	svc := New(store, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()
	if _, _, err := svc.Create(ctx, CreateInput{Name: "Acme", MaxMembers: 5, EmailDomain: "acme.com", OwnerEmail: "boss@acme.com"}); err != nil {
		t.Fatalf("first create: %v", err)
	}

	_, _, err := svc.Create(ctx, CreateInput{Name: "Acme again", MaxMembers: 5, EmailDomain: "acme.com", OwnerEmail: "boss@acme.com"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for reused owner email, got %v", err)
	}
	if store.lastWorkspaceID == "" {
		t.Fatal("expected the second workspace to reach the repository")
	}
	if _, err := store.GetWorkspaceByID(ctx, store.lastWorkspaceID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected no workspace row after failed owner insert, got %v", err)
	}
}
