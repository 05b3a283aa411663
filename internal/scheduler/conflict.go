package scheduler

import (
	"context"

	"github.com/example/oncall-scheduler/internal/persistence"
	"github.com/example/oncall-scheduler/internal/recurrence"
)

// Visibility decides whether an existing event makes its user busy for the
// given schedule. Strategies differ only in this rule and in candidate order.
type Visibility func(schedule persistence.Schedule, subscriptions []persistence.Subscription, event persistence.Event) bool

// TeamScopedVisibility is the rule used by the default and round-robin
// strategies: an event blocks a user when it is on the schedule's own team,
// when it is a vacation event on any team, or when its (team, role) pair is
// reachable through one of the schedule's subscriptions.
func TeamScopedVisibility(schedule persistence.Schedule, subscriptions []persistence.Subscription, event persistence.Event) bool {
	if event.TeamID == schedule.TeamID {
		return true
	}
	if event.Role == persistence.VacationRole {
		return true
	}
	for _, sub := range subscriptions {
		if sub.SourceTeamID == event.TeamID && sub.SourceRole == event.Role {
			return true
		}
	}
	return false
}

// GlobalVisibility is the multi-team rule: any event for the user, on any
// team and role, counts as busy.
func GlobalVisibility(persistence.Schedule, []persistence.Subscription, persistence.Event) bool {
	return true
}

// ConflictChecker answers busy/free queries for candidate users against the
// calendar visible to one schedule. Subscriptions are loaded once per
// invocation; events created earlier in the same run are visible because all
// queries share the invocation's transaction.
type ConflictChecker struct {
	store      Store
	schedule   persistence.Schedule
	visibility Visibility

	subscriptions []persistence.Subscription
	loaded        bool
}

// NewConflictChecker builds a checker for one schedule and visibility rule.
func NewConflictChecker(store Store, schedule persistence.Schedule, visibility Visibility) *ConflictChecker {
	if visibility == nil {
		visibility = TeamScopedVisibility
	}
	return &ConflictChecker{store: store, schedule: schedule, visibility: visibility}
}

// IsBusy reports whether the user holds a conflicting commitment in any of
// the windows. The overlap test is half-open interval intersection.
func (c *ConflictChecker) IsBusy(ctx context.Context, userID string, windows []recurrence.Window) (bool, error) {
	if err := c.ensureSubscriptions(ctx); err != nil {
		return false, err
	}

	for _, window := range windows {
		events, err := c.store.OverlappingEvents(ctx, userID, window)
		if err != nil {
			return false, err
		}
		for _, event := range events {
			if c.visibility(c.schedule, c.subscriptions, event) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (c *ConflictChecker) ensureSubscriptions(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	subscriptions, err := c.store.Subscriptions(ctx, c.schedule.TeamID, c.schedule.Role)
	if err != nil {
		return err
	}
	c.subscriptions = subscriptions
	c.loaded = true
	return nil
}
