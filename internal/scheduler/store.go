package scheduler

import (
	"context"
	"time"

	"github.com/example/oncall-scheduler/internal/persistence"
	"github.com/example/oncall-scheduler/internal/recurrence"
)

// Store is the transactional view of the durable store used by one
// populate/preview invocation. All methods operate within the single
// transaction owned by that invocation; a preview caller supplies a store
// whose transaction is always rolled back.
type Store interface {
	// RotationRoster returns the eligible rotation users for a schedule:
	// the roster's in-rotation members intersected with the schedule's
	// priority ordering, sorted by priority then user identifier. An empty
	// result is a valid terminal state, not an error.
	RotationRoster(ctx context.Context, scheduleID, rosterID string) ([]string, error)

	// Subscriptions returns the visibility edges declared for the given
	// owning team and role.
	Subscriptions(ctx context.Context, teamID, role string) ([]persistence.Subscription, error)

	// OverlappingEvents returns every event for the user, on any team,
	// intersecting the half-open window.
	OverlappingEvents(ctx context.Context, userID string, window recurrence.Window) ([]persistence.Event, error)

	// EventCovered reports whether an event with the exact team, role, start
	// and end already exists, regardless of its user or schedule attribution.
	EventCovered(ctx context.Context, teamID, role string, window recurrence.Window) (bool, error)

	// LastScheduledUser returns the roster member holding the most recent
	// event for the team and role with start at or before the bound, or ""
	// when the calendar offers no evidence.
	LastScheduledUser(ctx context.Context, teamID, role string, roster []string, before time.Time) (string, error)

	// InsertEvent persists a new event. Events are only ever inserted by the
	// engine, never updated or deleted.
	InsertEvent(ctx context.Context, event persistence.Event) error

	// SetRotationCursor records the schedule's last scheduled user.
	SetRotationCursor(ctx context.Context, scheduleID, userID string) error

	// ClearRotationCursor resets the schedule's cursor to unknown.
	ClearRotationCursor(ctx context.Context, scheduleID string) error
}
