package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/example/oncall-scheduler/internal/persistence"
)

// EventReader captures the event lookups needed by the on-call service.
type EventReader interface {
	ActiveEvents(ctx context.Context, teamIDs []string, role string, at time.Time) ([]persistence.Event, error)
}

// SubscriptionReader resolves a team's visibility edges.
type SubscriptionReader interface {
	ListSubscriptions(ctx context.Context, teamID, role string) ([]persistence.Subscription, error)
}

// OncallEntry names one user currently holding a role for a team. For
// entries contributed through a subscription, TeamID and Role carry the
// source team's values.
type OncallEntry struct {
	UserID string
	TeamID string
	Role   string
	Start  time.Time
	End    time.Time
}

// OncallService answers "who is on call right now" queries.
type OncallService struct {
	events        EventReader
	subscriptions SubscriptionReader
	now           func() time.Time
	logger        *slog.Logger
}

// NewOncallService wires dependencies for on-call lookups. A nil now defaults
// to the wall clock.
func NewOncallService(events EventReader, subscriptions SubscriptionReader, now func() time.Time, logger *slog.Logger) *OncallService {
	if now == nil {
		now = time.Now
	}
	return &OncallService{
		events:        events,
		subscriptions: subscriptions,
		now:           now,
		logger:        logger,
	}
}

// CurrentOncall returns the users on call for the team at this instant. With
// a role, events from teams the (team, role) pair subscribes to are included;
// with an empty role only the team's own events are considered.
func (s *OncallService) CurrentOncall(ctx context.Context, teamID, role string) ([]OncallEntry, error) {
	now := s.now()

	entries, err := s.activeEntries(ctx, []string{teamID}, role, now)
	if err != nil {
		return nil, err
	}

	if role != "" {
		subscriptions, err := s.subscriptions.ListSubscriptions(ctx, teamID, role)
		if err != nil {
			return nil, fmt.Errorf("load subscriptions: %w", err)
		}
		for _, sub := range subscriptions {
			subscribed, err := s.activeEntries(ctx, []string{sub.SourceTeamID}, sub.SourceRole, now)
			if err != nil {
				return nil, err
			}
			entries = append(entries, subscribed...)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TeamID != entries[j].TeamID {
			return entries[i].TeamID < entries[j].TeamID
		}
		if entries[i].Role != entries[j].Role {
			return entries[i].Role < entries[j].Role
		}
		return entries[i].UserID < entries[j].UserID
	})

	return entries, nil
}

func (s *OncallService) activeEntries(ctx context.Context, teamIDs []string, role string, at time.Time) ([]OncallEntry, error) {
	events, err := s.events.ActiveEvents(ctx, teamIDs, role, at)
	if err != nil {
		return nil, fmt.Errorf("load active events: %w", err)
	}

	entries := make([]OncallEntry, 0, len(events))
	for _, event := range events {
		entries = append(entries, OncallEntry{
			UserID: event.UserID,
			TeamID: event.TeamID,
			Role:   event.Role,
			Start:  event.Start,
			End:    event.End,
		})
	}
	return entries, nil
}
