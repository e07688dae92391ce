package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splax/taskflow/internal/domain"
	"github.com/splax/taskflow/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.WorkspaceRepository = (*Repository)(nil)
	_ repository.UserRepository      = (*Repository)(nil)
	_ repository.TeamRepository      = (*Repository)(nil)
	_ repository.TaskRepository      = (*Repository)(nil)
	_ repository.ProgressRepository  = (*Repository)(nil)
	_ repository.InviteRepository    = (*Repository)(nil)
	_ repository.Store               = (*Repository)(nil)
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// translate maps constraint violations onto repository sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return repository.ErrConflict
		case "23503":
			return repository.ErrNotFound
		case "23514", "22P02":
			return repository.ErrInvalidArgument
		}
	}
	return err
}

func (r *Repository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CreateWorkspace inserts a workspace.
func (r *Repository) CreateWorkspace(ctx context.Context, workspace *domain.Workspace) error {
	const query = `INSERT INTO workspaces (id, name, max_members, email_domain, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, workspace.ID, workspace.Name, workspace.MaxMembers, workspace.EmailDomain, workspace.CreatedAt)
	return translate(err)
}

// CreateWorkspaceWithOwner inserts a workspace and its owner in one transaction.
func (r *Repository) CreateWorkspaceWithOwner(ctx context.Context, workspace *domain.Workspace, owner *domain.User) error {
	const query = `INSERT INTO workspaces (id, name, max_members, email_domain, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, query, workspace.ID, workspace.Name, workspace.MaxMembers, workspace.EmailDomain, workspace.CreatedAt); err != nil {
			return translate(err)
		}
		return insertUser(ctx, tx, owner)
	})
}

// GetWorkspaceByID fetches a workspace.
func (r *Repository) GetWorkspaceByID(ctx context.Context, workspaceID string) (*domain.Workspace, error) {
	const query = `SELECT id, name, max_members, email_domain, created_at FROM workspaces WHERE id = $1`
	var ws domain.Workspace
	err := r.pool.QueryRow(ctx, query, workspaceID).Scan(&ws.ID, &ws.Name, &ws.MaxMembers, &ws.EmailDomain, &ws.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &ws, nil
}

// BackfillWorkspace assigns legacy rows without a workspace to workspaceID.
func (r *Repository) BackfillWorkspace(ctx context.Context, workspaceID string) (int64, error) {
	statements := []string{
		`UPDATE users SET workspace_id = $1 WHERE workspace_id IS NULL`,
		`UPDATE teams SET workspace_id = $1 WHERE workspace_id IS NULL`,
		`UPDATE tasks SET workspace_id = $1 WHERE workspace_id IS NULL`,
		`UPDATE task_progress SET workspace_id = $1 WHERE workspace_id IS NULL`,
	}
	var touched int64
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM workspaces WHERE id = $1)`, workspaceID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return repository.ErrNotFound
		}
		for _, stmt := range statements {
			tag, err := tx.Exec(ctx, stmt, workspaceID)
			if err != nil {
				return translate(err)
			}
			touched += tag.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return touched, nil
}

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	return insertUser(ctx, r.pool, user)
}

func insertUser(ctx context.Context, q querier, user *domain.User) error {
	const query = `INSERT INTO users (id, workspace_id, team_id, email, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := q.Exec(ctx, query,
		user.ID,
		nilIfEmpty(user.WorkspaceID),
		user.TeamID,
		strings.ToLower(strings.TrimSpace(user.Email)),
		string(user.Role),
		user.CreatedAt,
	)
	return translate(err)
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	const query = `SELECT id, COALESCE(workspace_id, ''), team_id, email, role, created_at FROM users WHERE id = $1`
	var (
		u    domain.User
		role string
	)
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&u.ID, &u.WorkspaceID, &u.TeamID, &u.Email, &role, &u.CreatedAt); err != nil {
		return nil, translate(err)
	}
	u.Role = domain.Role(role)
	return &u, nil
}

// SetUserTeam updates the user's team back-reference.
func (r *Repository) SetUserTeam(ctx context.Context, userID string, teamID *string) error {
	const query = `UPDATE users SET team_id = $2 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, userID, teamID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CountMembers counts users in a workspace.
func (r *Repository) CountMembers(ctx context.Context, workspaceID string) (int, error) {
	return countMembers(ctx, r.pool, workspaceID)
}

func countMembers(ctx context.Context, q querier, workspaceID string) (int, error) {
	const query = `SELECT COUNT(1) FROM users WHERE workspace_id = $1`
	var count int
	if err := q.QueryRow(ctx, query, workspaceID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func nilIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
