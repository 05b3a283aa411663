package sqlite

import (
	"context"
	"fmt"
)

// Event windows are stored as epoch seconds so exact-cover checks compare
// integers, never parsed timestamps. Schedule bookkeeping timestamps stay
// RFC 3339 text; nothing ever equality-matches on them.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS schedules (
		id                     TEXT PRIMARY KEY,
		team_id                TEXT NOT NULL,
		roster_id              TEXT NOT NULL,
		role                   TEXT NOT NULL,
		strategy               TEXT NOT NULL DEFAULT 'default',
		horizon_days           INTEGER NOT NULL,
		advanced_mode          INTEGER NOT NULL DEFAULT 0,
		period_seconds         INTEGER NOT NULL,
		last_scheduled_user_id TEXT,
		created_at             TEXT NOT NULL,
		updated_at             TEXT NOT NULL,
		CHECK (horizon_days > 0),
		CHECK (period_seconds > 0)
	)`,

	`CREATE TABLE IF NOT EXISTS schedule_segments (
		schedule_id      TEXT NOT NULL REFERENCES schedules(id) ON DELETE CASCADE,
		position         INTEGER NOT NULL,
		offset_seconds   INTEGER NOT NULL,
		duration_seconds INTEGER NOT NULL,
		PRIMARY KEY (schedule_id, position),
		CHECK (offset_seconds >= 0),
		CHECK (duration_seconds > 0)
	)`,

	`CREATE TABLE IF NOT EXISTS schedule_order (
		schedule_id TEXT NOT NULL REFERENCES schedules(id) ON DELETE CASCADE,
		user_id     TEXT NOT NULL,
		priority    INTEGER NOT NULL,
		PRIMARY KEY (schedule_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS roster_users (
		roster_id   TEXT NOT NULL,
		user_id     TEXT NOT NULL,
		in_rotation INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (roster_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS events (
		id          TEXT PRIMARY KEY,
		team_id     TEXT NOT NULL,
		schedule_id TEXT,
		user_id     TEXT NOT NULL,
		role        TEXT NOT NULL,
		start_time  INTEGER NOT NULL,
		end_time    INTEGER NOT NULL,
		link_id     TEXT,
		CHECK (end_time > start_time)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_events_user_window ON events (user_id, start_time, end_time)`,

	`CREATE INDEX IF NOT EXISTS idx_events_cover ON events (team_id, role, start_time, end_time)`,

	`CREATE TABLE IF NOT EXISTS subscriptions (
		team_id        TEXT NOT NULL,
		role           TEXT NOT NULL,
		source_team_id TEXT NOT NULL,
		source_role    TEXT NOT NULL,
		PRIMARY KEY (team_id, role, source_team_id, source_role)
	)`,
}

// Migrate creates the schema. Every statement is idempotent, so Migrate is
// safe to run on every startup.
func Migrate(ctx context.Context, pool *ConnectionPool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
