package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/splax/taskflow/internal/domain"
	"github.com/splax/taskflow/internal/repository"
)

const inviteSelect = `SELECT id, workspace_id, code, role_to_grant, expires_at, used, used_at, used_by, email, created_by, created_at FROM invites`

// CreateInvite persists a new invite. A code collision surfaces as ErrConflict.
func (r *Repository) CreateInvite(ctx context.Context, invite *domain.Invite) error {
	if invite == nil {
		return repository.ErrInvalidArgument
	}
	code := strings.TrimSpace(invite.Code)
	if code == "" {
		return repository.ErrInvalidArgument
	}
	const query = `INSERT INTO invites (id, workspace_id, code, role_to_grant, expires_at, used, email, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7, $8)`
	_, err := r.pool.Exec(ctx, query,
		invite.ID,
		invite.WorkspaceID,
		code,
		string(invite.RoleToGrant),
		invite.ExpiresAt.UTC(),
		invite.Email,
		invite.CreatedBy,
		invite.CreatedAt,
	)
	if err != nil {
		return translate(err)
	}
	invite.Code = code
	return nil
}

// GetInviteByCode fetches an invite by its code.
func (r *Repository) GetInviteByCode(ctx context.Context, code string) (*domain.Invite, error) {
	row := r.pool.QueryRow(ctx, inviteSelect+` WHERE code = $1`, strings.TrimSpace(code))
	return scanInvite(row)
}

// MarkInviteUsed flips the one-shot flag with a conditional update so that
// exactly one concurrent caller wins.
func (r *Repository) MarkInviteUsed(ctx context.Context, inviteID, userID string) error {
	return markInviteUsed(ctx, r.pool, inviteID, userID)
}

func markInviteUsed(ctx context.Context, q querier, inviteID, userID string) error {
	const query = `UPDATE invites
		SET used = TRUE,
			used_at = NOW(),
			used_by = $2
		WHERE id = $1 AND used = FALSE
		RETURNING id`
	var id string
	if err := q.QueryRow(ctx, query, inviteID, nilIfEmpty(userID)).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrConflict
		}
		return translate(err)
	}
	return nil
}

// RedeemInvite creates the user and consumes the invite in one transaction.
// The invite and workspace rows stay locked until commit, so capacity and the
// used flag cannot change underneath.
func (r *Repository) RedeemInvite(ctx context.Context, inviteID string, user *domain.User) error {
	if user == nil {
		return repository.ErrInvalidArgument
	}
	return r.inTx(ctx, func(tx pgx.Tx) error {
		const lock = `SELECT w.id, w.max_members
			FROM invites i
			INNER JOIN workspaces w ON w.id = i.workspace_id
			WHERE i.id = $1 AND i.used = FALSE AND i.expires_at > NOW()
			FOR UPDATE`
		var (
			workspaceID string
			maxMembers  int
		)
		if err := tx.QueryRow(ctx, lock, inviteID).Scan(&workspaceID, &maxMembers); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return repository.ErrConflict
			}
			return err
		}
		count, err := countMembers(ctx, tx, workspaceID)
		if err != nil {
			return err
		}
		if count >= maxMembers {
			return repository.ErrCapacity
		}
		if err := insertUser(ctx, tx, user); err != nil {
			return err
		}
		return markInviteUsed(ctx, tx, inviteID, user.ID)
	})
}

func scanInvite(row pgx.Row) (*domain.Invite, error) {
	var (
		inv  domain.Invite
		role string
	)
	if err := row.Scan(
		&inv.ID,
		&inv.WorkspaceID,
		&inv.Code,
		&role,
		&inv.ExpiresAt,
		&inv.Used,
		&inv.UsedAt,
		&inv.UsedBy,
		&inv.Email,
		&inv.CreatedBy,
		&inv.CreatedAt,
	); err != nil {
		return nil, translate(err)
	}
	inv.RoleToGrant = domain.Role(role)
	inv.ExpiresAt = inv.ExpiresAt.UTC()
	return &inv, nil
}
