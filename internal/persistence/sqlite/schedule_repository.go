package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/oncall-scheduler/internal/persistence"
)

// ScheduleRepository implements persistence.ScheduleStore using SQLite.
type ScheduleRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	now    func() time.Time
}

// NewScheduleRepository creates a new SQLite schedule repository. A nil now
// defaults to the wall clock.
func NewScheduleRepository(pool *ConnectionPool, now func() time.Time) *ScheduleRepository {
	if now == nil {
		now = time.Now
	}
	return &ScheduleRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		now:    now,
	}
}

// CreateSchedule inserts a new schedule with its template segments.
func (r *ScheduleRepository) CreateSchedule(ctx context.Context, schedule persistence.Schedule) error {
	if schedule.ID == "" {
		return persistence.ErrConstraintViolation
	}

	now := r.now().UTC()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO schedules (id, team_id, roster_id, role, strategy, horizon_days, advanced_mode, period_seconds, last_scheduled_user_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`

		var cursor sql.NullString
		if schedule.LastScheduledUserID != nil {
			cursor = sql.NullString{String: *schedule.LastScheduledUserID, Valid: true}
		}

		_, err := r.helper.ExecTx(tx, query,
			schedule.ID,
			schedule.TeamID,
			schedule.RosterID,
			schedule.Role,
			schedule.Strategy,
			schedule.HorizonDays,
			schedule.AdvancedMode,
			int64(schedule.Period/time.Second),
			cursor,
			schedule.CreatedAt.Format(time.RFC3339),
			schedule.UpdatedAt.Format(time.RFC3339),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}

		return r.insertSegments(tx, schedule.ID, schedule.Segments)
	})
}

// GetSchedule retrieves a schedule with its template segments.
func (r *ScheduleRepository) GetSchedule(ctx context.Context, id string) (persistence.Schedule, error) {
	if id == "" {
		return persistence.Schedule{}, persistence.ErrNotFound
	}

	query := `
		SELECT id, team_id, roster_id, role, strategy, horizon_days, advanced_mode, period_seconds, last_scheduled_user_id, created_at, updated_at
		FROM schedules
		WHERE id = ?
	`

	// Schedule row and segments load in one read-only transaction so a
	// concurrent template replacement cannot interleave between them.
	var schedule persistence.Schedule
	err := r.pool.WithReadOnlyTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		schedule, err = r.scanSchedule(r.helper.QueryRowTx(tx, query, id))
		if err != nil {
			return err
		}
		schedule.Segments, err = r.loadSegmentsTx(tx, id)
		return err
	})
	if err != nil {
		return persistence.Schedule{}, err
	}
	return schedule, nil
}

// ListSchedules returns every schedule ordered by identifier, templates
// included.
func (r *ScheduleRepository) ListSchedules(ctx context.Context) ([]persistence.Schedule, error) {
	query := `
		SELECT id, team_id, roster_id, role, strategy, horizon_days, advanced_mode, period_seconds, last_scheduled_user_id, created_at, updated_at
		FROM schedules
		ORDER BY id ASC
	`

	var schedules []persistence.Schedule
	err := r.pool.WithReadOnlyTransaction(ctx, func(tx *sql.Tx) error {
		rows, err := r.helper.QueryTx(tx, query)
		if err != nil {
			return r.mapper.MapError(err)
		}
		defer rows.Close()

		for rows.Next() {
			schedule, err := r.scanSchedule(rows)
			if err != nil {
				return err
			}
			schedules = append(schedules, schedule)
		}
		if err := rows.Err(); err != nil {
			return r.mapper.MapError(err)
		}

		for i := range schedules {
			schedules[i].Segments, err = r.loadSegmentsTx(tx, schedules[i].ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return schedules, nil
}

// ReplaceTemplate swaps the schedule's period and segment list wholesale.
// Events already written from the old template are untouched.
func (r *ScheduleRepository) ReplaceTemplate(ctx context.Context, scheduleID string, period time.Duration, segments []persistence.Segment) error {
	if scheduleID == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := r.helper.ExecTx(tx,
			"UPDATE schedules SET period_seconds = ?, updated_at = ? WHERE id = ?",
			int64(period/time.Second), r.now().UTC().Format(time.RFC3339), scheduleID)
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

		if _, err := r.helper.ExecTx(tx, "DELETE FROM schedule_segments WHERE schedule_id = ?", scheduleID); err != nil {
			return r.mapper.MapError(err)
		}
		return r.insertSegments(tx, scheduleID, segments)
	})
}

// SetScheduleOrder replaces the priority ordering for a schedule.
func (r *ScheduleRepository) SetScheduleOrder(ctx context.Context, scheduleID string, order []persistence.ScheduleOrder) error {
	if scheduleID == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := r.helper.ExecTx(tx, "DELETE FROM schedule_order WHERE schedule_id = ?", scheduleID); err != nil {
			return r.mapper.MapError(err)
		}

		for _, entry := range order {
			_, err := r.helper.ExecTx(tx,
				"INSERT INTO schedule_order (schedule_id, user_id, priority) VALUES (?, ?, ?)",
				scheduleID, entry.UserID, entry.Priority)
			if err != nil {
				return r.mapper.MapError(err)
			}
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ScheduleRepository) scanSchedule(row rowScanner) (persistence.Schedule, error) {
	var schedule persistence.Schedule
	var periodSeconds int64
	var cursor sql.NullString
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&schedule.ID,
		&schedule.TeamID,
		&schedule.RosterID,
		&schedule.Role,
		&schedule.Strategy,
		&schedule.HorizonDays,
		&schedule.AdvancedMode,
		&periodSeconds,
		&cursor,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Schedule{}, persistence.ErrNotFound
		}
		return persistence.Schedule{}, r.mapper.MapError(err)
	}

	schedule.Period = time.Duration(periodSeconds) * time.Second
	if cursor.Valid {
		schedule.LastScheduledUserID = &cursor.String
	}
	if schedule.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.Schedule{}, fmt.Errorf("parse created_at: %w", err)
	}
	if schedule.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.Schedule{}, fmt.Errorf("parse updated_at: %w", err)
	}

	return schedule, nil
}

func (r *ScheduleRepository) insertSegments(tx *sql.Tx, scheduleID string, segments []persistence.Segment) error {
	for position, segment := range segments {
		_, err := r.helper.ExecTx(tx,
			"INSERT INTO schedule_segments (schedule_id, position, offset_seconds, duration_seconds) VALUES (?, ?, ?, ?)",
			scheduleID, position, int64(segment.Offset/time.Second), int64(segment.Duration/time.Second))
		if err != nil {
			return r.mapper.MapError(err)
		}
	}
	return nil
}

func (r *ScheduleRepository) loadSegmentsTx(tx *sql.Tx, scheduleID string) ([]persistence.Segment, error) {
	query := `
		SELECT offset_seconds, duration_seconds
		FROM schedule_segments
		WHERE schedule_id = ?
		ORDER BY position ASC
	`

	rows, err := r.helper.QueryTx(tx, query, scheduleID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var segments []persistence.Segment
	for rows.Next() {
		var offsetSeconds, durationSeconds int64
		if err := rows.Scan(&offsetSeconds, &durationSeconds); err != nil {
			return nil, r.mapper.MapError(err)
		}
		segments = append(segments, persistence.Segment{
			Offset:   time.Duration(offsetSeconds) * time.Second,
			Duration: time.Duration(durationSeconds) * time.Second,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return segments, nil
}
