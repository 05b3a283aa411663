// Package testfixtures provides deterministic clocks, identifier
// generators, and domain fixtures shared by tests across packages.
package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/oncall-scheduler/internal/persistence"
)

var (
	scheduleCounter uint64
	eventCounter    uint64
)

var referenceTime = time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
// It falls on a Monday so weekly templates align with calendar weeks.
func ReferenceTime() time.Time {
	return referenceTime
}

// ScheduleOption configures a generated schedule fixture.
type ScheduleOption func(*persistence.Schedule)

// NewScheduleFixture returns a weekly single-segment schedule with
// deterministic identifiers. Options override individual fields.
func NewScheduleFixture(opts ...ScheduleOption) persistence.Schedule {
	idx := atomic.AddUint64(&scheduleCounter, 1)
	schedule := persistence.Schedule{
		ID:          fmt.Sprintf("schedule-%03d", idx),
		TeamID:      fmt.Sprintf("team-%03d", idx),
		RosterID:    fmt.Sprintf("roster-%03d", idx),
		Role:        "primary",
		Strategy:    persistence.StrategyDefault,
		HorizonDays: 21,
		Period:      7 * 24 * time.Hour,
		Segments: []persistence.Segment{
			{Offset: 0, Duration: 7 * 24 * time.Hour},
		},
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&schedule)
	}
	return schedule
}

// WithScheduleID overrides the generated schedule ID.
func WithScheduleID(id string) ScheduleOption {
	return func(s *persistence.Schedule) { s.ID = id }
}

// WithTeam overrides the owning team and roster.
func WithTeam(teamID, rosterID string) ScheduleOption {
	return func(s *persistence.Schedule) {
		s.TeamID = teamID
		s.RosterID = rosterID
	}
}

// WithRole overrides the schedule role.
func WithRole(role string) ScheduleOption {
	return func(s *persistence.Schedule) { s.Role = role }
}

// WithStrategy overrides the rotation strategy.
func WithStrategy(strategy string) ScheduleOption {
	return func(s *persistence.Schedule) { s.Strategy = strategy }
}

// WithHorizonDays overrides the populate horizon.
func WithHorizonDays(days int) ScheduleOption {
	return func(s *persistence.Schedule) { s.HorizonDays = days }
}

// WithTemplate replaces the period and segments. AdvancedMode tracks
// whether the template has more than one segment.
func WithTemplate(period time.Duration, segments ...persistence.Segment) ScheduleOption {
	return func(s *persistence.Schedule) {
		s.Period = period
		s.Segments = segments
		s.AdvancedMode = len(segments) > 1
	}
}

// EventOption configures a generated event fixture.
type EventOption func(*persistence.Event)

// NewEventFixture returns a one-day manual event starting at the
// reference time plus a per-fixture offset.
func NewEventFixture(opts ...EventOption) persistence.Event {
	idx := atomic.AddUint64(&eventCounter, 1)
	start := referenceTime.Add(time.Duration(idx) * 24 * time.Hour)
	event := persistence.Event{
		ID:     fmt.Sprintf("event-%03d", idx),
		TeamID: "team-001",
		UserID: fmt.Sprintf("user-%03d", idx),
		Role:   "primary",
		Start:  start,
		End:    start.Add(24 * time.Hour),
	}
	for _, opt := range opts {
		opt(&event)
	}
	return event
}

// WithEventID overrides the generated event ID.
func WithEventID(id string) EventOption {
	return func(e *persistence.Event) { e.ID = id }
}

// WithEventTeam overrides the owning team.
func WithEventTeam(teamID string) EventOption {
	return func(e *persistence.Event) { e.TeamID = teamID }
}

// WithEventUser overrides the assigned user.
func WithEventUser(userID string) EventOption {
	return func(e *persistence.Event) { e.UserID = userID }
}

// WithEventRole overrides the event role.
func WithEventRole(role string) EventOption {
	return func(e *persistence.Event) { e.Role = role }
}

// WithEventWindow replaces the event interval.
func WithEventWindow(start, end time.Time) EventOption {
	return func(e *persistence.Event) {
		e.Start = start
		e.End = end
	}
}

// WithEventSchedule marks the event as engine generated.
func WithEventSchedule(scheduleID string) EventOption {
	return func(e *persistence.Event) { e.ScheduleID = &scheduleID }
}

// RosterMembers builds in-rotation roster entries for the given users.
func RosterMembers(rosterID string, userIDs ...string) []persistence.RosterMember {
	members := make([]persistence.RosterMember, 0, len(userIDs))
	for _, userID := range userIDs {
		members = append(members, persistence.RosterMember{
			RosterID:   rosterID,
			UserID:     userID,
			InRotation: true,
		})
	}
	return members
}

// ScheduleOrderFor builds rotation priorities matching slice order.
func ScheduleOrderFor(scheduleID string, userIDs ...string) []persistence.ScheduleOrder {
	order := make([]persistence.ScheduleOrder, 0, len(userIDs))
	for i, userID := range userIDs {
		order = append(order, persistence.ScheduleOrder{
			ScheduleID: scheduleID,
			UserID:     userID,
			Priority:   i,
		})
	}
	return order
}
