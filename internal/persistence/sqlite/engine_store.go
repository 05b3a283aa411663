package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/example/oncall-scheduler/internal/persistence"
	"github.com/example/oncall-scheduler/internal/recurrence"
)

// EngineStore adapts one open transaction to the view the populate pipeline
// operates through. Every query runs on the transaction, so a run sees its
// own uncommitted inserts and a rolled-back transaction leaves no trace.
type EngineStore struct {
	tx     *sql.Tx
	mapper *ErrorMapper
}

// NewEngineStore wraps an open transaction.
func NewEngineStore(tx *sql.Tx) *EngineStore {
	return &EngineStore{tx: tx, mapper: NewErrorMapper()}
}

// RotationRoster returns the schedule's priority-ordered users restricted to
// the roster's in-rotation members.
func (s *EngineStore) RotationRoster(ctx context.Context, scheduleID, rosterID string) ([]string, error) {
	query := `
		SELECT so.user_id
		FROM schedule_order so
		JOIN roster_users ru ON ru.user_id = so.user_id AND ru.roster_id = ?
		WHERE so.schedule_id = ? AND ru.in_rotation = 1
		ORDER BY so.priority ASC, so.user_id ASC
	`

	rows, err := s.tx.QueryContext(ctx, query, rosterID, scheduleID)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	defer rows.Close()

	var roster []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, s.mapper.MapError(err)
		}
		roster = append(roster, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapper.MapError(err)
	}
	return roster, nil
}

// Subscriptions returns the visibility edges declared for the team and role.
func (s *EngineStore) Subscriptions(ctx context.Context, teamID, role string) ([]persistence.Subscription, error) {
	rows, err := s.tx.QueryContext(ctx,
		"SELECT team_id, role, source_team_id, source_role FROM subscriptions WHERE team_id = ? AND role = ?",
		teamID, role)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	defer rows.Close()

	var subscriptions []persistence.Subscription
	for rows.Next() {
		var sub persistence.Subscription
		if err := rows.Scan(&sub.TeamID, &sub.Role, &sub.SourceTeamID, &sub.SourceRole); err != nil {
			return nil, s.mapper.MapError(err)
		}
		subscriptions = append(subscriptions, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapper.MapError(err)
	}
	return subscriptions, nil
}

// OverlappingEvents returns the user's events, on any team, intersecting the
// half-open window.
func (s *EngineStore) OverlappingEvents(ctx context.Context, userID string, window recurrence.Window) ([]persistence.Event, error) {
	query := "SELECT " + eventColumns + " FROM events WHERE user_id = ? AND start_time < ? AND end_time > ? ORDER BY start_time ASC, id ASC"

	rows, err := s.tx.QueryContext(ctx, query, userID, toEpoch(window.End), toEpoch(window.Start))
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	defer rows.Close()

	return scanEvents(rows, s.mapper)
}

// EventCovered reports whether any event already holds the exact team, role,
// start and end, regardless of user or schedule attribution.
func (s *EngineStore) EventCovered(ctx context.Context, teamID, role string, window recurrence.Window) (bool, error) {
	var one int
	err := s.tx.QueryRowContext(ctx,
		"SELECT 1 FROM events WHERE team_id = ? AND role = ? AND start_time = ? AND end_time = ? LIMIT 1",
		teamID, role, toEpoch(window.Start), toEpoch(window.End)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, s.mapper.MapError(err)
	}
	return true, nil
}

// LastScheduledUser returns the roster member holding the most recent event
// for the team and role starting at or before the bound, or "" when the
// calendar offers no evidence.
func (s *EngineStore) LastScheduledUser(ctx context.Context, teamID, role string, roster []string, before time.Time) (string, error) {
	if len(roster) == 0 {
		return "", nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(roster)), ",")
	query := "SELECT user_id FROM events WHERE team_id = ? AND role = ? AND start_time <= ? AND user_id IN (" + placeholders + ") ORDER BY start_time DESC, id DESC LIMIT 1"

	args := make([]any, 0, len(roster)+3)
	args = append(args, teamID, role, toEpoch(before))
	for _, userID := range roster {
		args = append(args, userID)
	}

	var userID string
	err := s.tx.QueryRowContext(ctx, query, args...).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", s.mapper.MapError(err)
	}
	return userID, nil
}

// InsertEvent persists a new event within the transaction.
func (s *EngineStore) InsertEvent(ctx context.Context, event persistence.Event) error {
	_, err := s.tx.ExecContext(ctx,
		"INSERT INTO events ("+eventColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		event.ID,
		event.TeamID,
		event.ScheduleID,
		event.UserID,
		event.Role,
		toEpoch(event.Start),
		toEpoch(event.End),
		event.LinkID,
	)
	return s.mapper.MapError(err)
}

// SetRotationCursor records the schedule's last scheduled user.
func (s *EngineStore) SetRotationCursor(ctx context.Context, scheduleID, userID string) error {
	_, err := s.tx.ExecContext(ctx,
		"UPDATE schedules SET last_scheduled_user_id = ? WHERE id = ?",
		userID, scheduleID)
	return s.mapper.MapError(err)
}

// ClearRotationCursor resets the schedule's cursor to unknown.
func (s *EngineStore) ClearRotationCursor(ctx context.Context, scheduleID string) error {
	_, err := s.tx.ExecContext(ctx,
		"UPDATE schedules SET last_scheduled_user_id = NULL WHERE id = ?",
		scheduleID)
	return s.mapper.MapError(err)
}
