package persistence

import (
	"context"
	"time"
)

// ScheduleStore exposes schedule access for the engine and its callers.
// Schedule creation and template replacement exist for management tooling and
// fixtures; populate itself only reads schedules and moves the cursor.
type ScheduleStore interface {
	CreateSchedule(ctx context.Context, schedule Schedule) error
	GetSchedule(ctx context.Context, id string) (Schedule, error)
	ListSchedules(ctx context.Context) ([]Schedule, error)
	// ReplaceTemplate swaps the schedule's period and segment list wholesale.
	ReplaceTemplate(ctx context.Context, scheduleID string, period time.Duration, segments []Segment) error
	// SetScheduleOrder replaces the priority ordering for a schedule.
	SetScheduleOrder(ctx context.Context, scheduleID string, order []ScheduleOrder) error
}

// EventFilter narrows event queries.
type EventFilter struct {
	TeamID      string
	UserID      string
	Role        string
	StartBefore *time.Time
	EndAfter    *time.Time
}

// EventStore exposes the read/write contract the engine needs from the
// durable event store: insert, overlap-range query, exact-cover check, and
// the most-recent-by-user lookback that seeds rotation inference.
type EventStore interface {
	CreateEvent(ctx context.Context, event Event) error
	DeleteEvent(ctx context.Context, id string) error
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	// ActiveEvents returns events on any of the given teams covering the
	// instant at, optionally narrowed to one role.
	ActiveEvents(ctx context.Context, teamIDs []string, role string, at time.Time) ([]Event, error)
}

// RosterStore resolves roster membership and rotation eligibility.
type RosterStore interface {
	AddRosterMember(ctx context.Context, member RosterMember) error
	SetInRotation(ctx context.Context, rosterID, userID string, inRotation bool) error
	ListRosterMembers(ctx context.Context, rosterID string) ([]RosterMember, error)
}

// SubscriptionStore manages cross-team visibility edges.
type SubscriptionStore interface {
	CreateSubscription(ctx context.Context, sub Subscription) error
	ListSubscriptions(ctx context.Context, teamID, role string) ([]Subscription, error)
}
