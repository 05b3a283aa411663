package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/oncall-scheduler/internal/persistence"
)

// EventRepository captures the persistence interactions needed by the event
// service.
type EventRepository interface {
	CreateEvent(ctx context.Context, event persistence.Event) error
	DeleteEvent(ctx context.Context, id string) error
	ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error)
}

// CreateEventInput describes a manual calendar event. Manual events carry no
// schedule attribution and participate in conflict and idempotency checks
// exactly like generated ones.
type CreateEventInput struct {
	TeamID string
	UserID string
	Role   string
	Start  time.Time
	End    time.Time
}

// EventService manages manual calendar events.
type EventService struct {
	events      EventRepository
	idGenerator func() string
	logger      *slog.Logger
}

// NewEventService wires dependencies for manual event operations.
func NewEventService(events EventRepository, idGenerator func() string, logger *slog.Logger) *EventService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	return &EventService{
		events:      events,
		idGenerator: idGenerator,
		logger:      logger,
	}
}

// CreateEvent validates and persists a manual event.
func (s *EventService) CreateEvent(ctx context.Context, input CreateEventInput) (persistence.Event, error) {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.TeamID) == "" {
		vErr.add("team", "team is required")
	}
	if strings.TrimSpace(input.UserID) == "" {
		vErr.add("user", "user is required")
	}
	if strings.TrimSpace(input.Role) == "" {
		vErr.add("role", "role is required")
	}
	if input.Start.IsZero() || input.End.IsZero() {
		vErr.add("window", "start and end are required")
	} else if !input.End.After(input.Start) {
		vErr.add("window", "end must be after start")
	}
	if vErr.HasErrors() {
		return persistence.Event{}, vErr
	}

	event := persistence.Event{
		ID:     s.idGenerator(),
		TeamID: strings.TrimSpace(input.TeamID),
		UserID: strings.TrimSpace(input.UserID),
		Role:   strings.TrimSpace(input.Role),
		Start:  input.Start,
		End:    input.End,
	}

	if err := s.events.CreateEvent(ctx, event); err != nil {
		return persistence.Event{}, fmt.Errorf("create event: %w", err)
	}

	serviceLogger(ctx, s.logger, "events", "create", "event", event.ID).
		InfoContext(ctx, "event created", "team", event.TeamID, "user", event.UserID, "role", event.Role)
	return event, nil
}

// DeleteEvent removes an event by identifier.
func (s *EventService) DeleteEvent(ctx context.Context, id string) error {
	if err := s.events.DeleteEvent(ctx, id); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// ListEvents returns events matching the filter.
func (s *EventService) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	events, err := s.events.ListEvents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}
