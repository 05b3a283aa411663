package sqlite

import (
	"context"
	"fmt"

	"github.com/example/oncall-scheduler/internal/persistence"
)

// RosterRepository implements persistence.RosterStore using SQLite.
type RosterRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewRosterRepository creates a new SQLite roster repository.
func NewRosterRepository(pool *ConnectionPool) *RosterRepository {
	return &RosterRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// AddRosterMember records a user's membership in a roster.
func (r *RosterRepository) AddRosterMember(ctx context.Context, member persistence.RosterMember) error {
	if member.RosterID == "" || member.UserID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.helper.Exec(ctx,
		"INSERT INTO roster_users (roster_id, user_id, in_rotation) VALUES (?, ?, ?)",
		member.RosterID, member.UserID, member.InRotation)
	return r.mapper.MapError(err)
}

// SetInRotation flips a member's rotation eligibility.
func (r *RosterRepository) SetInRotation(ctx context.Context, rosterID, userID string, inRotation bool) error {
	result, err := r.helper.Exec(ctx,
		"UPDATE roster_users SET in_rotation = ? WHERE roster_id = ? AND user_id = ?",
		inRotation, rosterID, userID)
	if err != nil {
		return r.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ListRosterMembers returns the roster's members ordered by user identifier.
func (r *RosterRepository) ListRosterMembers(ctx context.Context, rosterID string) ([]persistence.RosterMember, error) {
	rows, err := r.helper.Query(ctx,
		"SELECT roster_id, user_id, in_rotation FROM roster_users WHERE roster_id = ? ORDER BY user_id ASC",
		rosterID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var members []persistence.RosterMember
	for rows.Next() {
		var member persistence.RosterMember
		if err := rows.Scan(&member.RosterID, &member.UserID, &member.InRotation); err != nil {
			return nil, r.mapper.MapError(err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return members, nil
}
