package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/oncall-scheduler/internal/persistence"
)

func toEpoch(t time.Time) int64 {
	return t.UTC().Unix()
}

func fromEpoch(v int64) time.Time {
	return time.Unix(v, 0).UTC()
}

const eventColumns = "id, team_id, schedule_id, user_id, role, start_time, end_time, link_id"

// EventRepository implements persistence.EventStore using SQLite.
type EventRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewEventRepository creates a new SQLite event repository.
func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateEvent inserts a manual calendar event.
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event) error {
	if event.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if !event.End.After(event.Start) {
		return persistence.ErrConstraintViolation
	}

	_, err := r.helper.Exec(ctx,
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
	return r.mapper.MapError(err)
}

// DeleteEvent removes an event by identifier.
func (r *EventRepository) DeleteEvent(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, "DELETE FROM events WHERE id = ?", id)
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

// ListEvents returns events matching the filter ordered by start time.
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	query := "SELECT " + eventColumns + " FROM events"

	var conditions []string
	var args []any
	if filter.TeamID != "" {
		conditions = append(conditions, "team_id = ?")
		args = append(args, filter.TeamID)
	}
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Role != "" {
		conditions = append(conditions, "role = ?")
		args = append(args, filter.Role)
	}
	if filter.StartBefore != nil {
		conditions = append(conditions, "start_time < ?")
		args = append(args, toEpoch(*filter.StartBefore))
	}
	if filter.EndAfter != nil {
		conditions = append(conditions, "end_time > ?")
		args = append(args, toEpoch(*filter.EndAfter))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_time ASC, id ASC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	return scanEvents(rows, r.mapper)
}

// ActiveEvents returns events on any of the given teams covering the instant
// at, optionally narrowed to one role.
func (r *EventRepository) ActiveEvents(ctx context.Context, teamIDs []string, role string, at time.Time) ([]persistence.Event, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(teamIDs)), ",")
	query := "SELECT " + eventColumns + " FROM events WHERE team_id IN (" + placeholders + ") AND start_time <= ? AND end_time > ?"

	args := make([]any, 0, len(teamIDs)+3)
	for _, teamID := range teamIDs {
		args = append(args, teamID)
	}
	args = append(args, toEpoch(at), toEpoch(at))

	if role != "" {
		query += " AND role = ?"
		args = append(args, role)
	}
	query += " ORDER BY start_time ASC, id ASC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	return scanEvents(rows, r.mapper)
}

type eventRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEvents(rows eventRows, mapper *ErrorMapper) ([]persistence.Event, error) {
	var events []persistence.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, mapper.MapError(err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, mapper.MapError(err)
	}
	return events, nil
}

func scanEvent(row rowScanner) (persistence.Event, error) {
	var event persistence.Event
	var startEpoch, endEpoch int64

	err := row.Scan(
		&event.ID,
		&event.TeamID,
		&event.ScheduleID,
		&event.UserID,
		&event.Role,
		&startEpoch,
		&endEpoch,
		&event.LinkID,
	)
	if err != nil {
		return persistence.Event{}, err
	}

	event.Start = fromEpoch(startEpoch)
	event.End = fromEpoch(endEpoch)
	return event, nil
}
