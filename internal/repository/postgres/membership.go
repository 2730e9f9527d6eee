package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/reddert/notification-system/internal/domain"
	"github.com/reddert/notification-system/internal/repository"
)

// GetMember fetches a single membership by its composite identity.
func (r *Repository) GetMember(ctx context.Context, teamID, userID string) (*domain.Membership, error) {
	return getMember(ctx, r.pool, teamID, userID)
}

// ListTeamMembers returns memberships for a team, oldest first.
func (r *Repository) ListTeamMembers(ctx context.Context, teamID string) ([]domain.Membership, error) {
	const query = `SELECT team_id, user_id, role, created_at FROM team_members
		WHERE team_id = $1 ORDER BY created_at ASC, user_id ASC`
	rows, err := r.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return scanMemberships(rows)
}

// ListUserMemberships returns memberships held by a user across teams.
func (r *Repository) ListUserMemberships(ctx context.Context, userID string) ([]domain.Membership, error) {
	const query = `SELECT team_id, user_id, role, created_at FROM team_members
		WHERE user_id = $1 ORDER BY created_at ASC, team_id ASC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return scanMemberships(rows)
}

// WithTeamLock opens a transaction, takes an exclusive lock on the team row,
// and runs fn against the transactional store view. Concurrent operations on
// the same team queue on the row lock; other teams are unaffected.
func (r *Repository) WithTeamLock(ctx context.Context, teamID string, fn func(ctx context.Context, tx repository.MembershipTx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return mapError(err)
	}
	defer tx.Rollback(ctx)

	var one int
	if err := tx.QueryRow(ctx, `SELECT 1 FROM teams WHERE id = $1 FOR UPDATE`, teamID).Scan(&one); err != nil {
		return mapError(err)
	}
	if err := fn(ctx, &membershipTx{tx: tx}); err != nil {
		return err
	}
	return mapError(tx.Commit(ctx))
}

// membershipTx implements repository.MembershipTx over an open transaction.
type membershipTx struct {
	tx pgx.Tx
}

var _ repository.MembershipTx = (*membershipTx)(nil)

func (m *membershipTx) GetMember(ctx context.Context, teamID, userID string) (*domain.Membership, error) {
	return getMember(ctx, m.tx, teamID, userID)
}

func (m *membershipTx) PutMember(ctx context.Context, member *domain.Membership) error {
	const query = `INSERT INTO team_members (team_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (team_id, user_id) DO UPDATE SET role = EXCLUDED.role`
	_, err := m.tx.Exec(ctx, query, member.TeamID, member.UserID, member.Role, member.CreatedAt)
	return mapError(err)
}

func (m *membershipTx) DeleteMember(ctx context.Context, teamID, userID string) error {
	const query = `DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`
	cmdTag, err := m.tx.Exec(ctx, query, teamID, userID)
	if err != nil {
		return mapError(err)
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (m *membershipTx) HasMembers(ctx context.Context, teamID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM team_members WHERE team_id = $1)`
	var exists bool
	if err := m.tx.QueryRow(ctx, query, teamID).Scan(&exists); err != nil {
		return false, mapError(err)
	}
	return exists, nil
}

// FirstMemberWithRole selects the succession candidate for a role. The
// ordering makes succession reproducible: earliest joiner wins, user id
// breaks creation-time ties.
func (m *membershipTx) FirstMemberWithRole(ctx context.Context, teamID string, role domain.Role) (*domain.Membership, error) {
	const query = `SELECT team_id, user_id, role, created_at FROM team_members
		WHERE team_id = $1 AND role = $2
		ORDER BY created_at ASC, user_id ASC
		LIMIT 1`
	row := m.tx.QueryRow(ctx, query, teamID, role)
	var member domain.Membership
	if err := row.Scan(&member.TeamID, &member.UserID, &member.Role, &member.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	return &member, nil
}

func (m *membershipTx) DeleteTeam(ctx context.Context, teamID string) error {
	// Remaining memberships (GUEST-only teams) go with the team.
	if _, err := m.tx.Exec(ctx, `DELETE FROM team_members WHERE team_id = $1`, teamID); err != nil {
		return mapError(err)
	}
	cmdTag, err := m.tx.Exec(ctx, `DELETE FROM teams WHERE id = $1`, teamID)
	if err != nil {
		return mapError(err)
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// queryer abstracts pool and transaction for shared reads.
type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getMember(ctx context.Context, q queryer, teamID, userID string) (*domain.Membership, error) {
	const query = `SELECT team_id, user_id, role, created_at FROM team_members
		WHERE team_id = $1 AND user_id = $2`
	row := q.QueryRow(ctx, query, teamID, userID)
	var member domain.Membership
	if err := row.Scan(&member.TeamID, &member.UserID, &member.Role, &member.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	return &member, nil
}

func scanMemberships(rows pgx.Rows) ([]domain.Membership, error) {
	members := make([]domain.Membership, 0)
	for rows.Next() {
		var member domain.Membership
		if err := rows.Scan(&member.TeamID, &member.UserID, &member.Role, &member.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, rows.Err()
}
