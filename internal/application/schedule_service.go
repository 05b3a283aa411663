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

// DefaultPeriod is the recurrence period applied when a schedule is created
// without one.
const DefaultPeriod = 7 * 24 * time.Hour

// DefaultHorizonDays is the populate horizon applied when a schedule is
// created without one.
const DefaultHorizonDays = 7

// CreateScheduleInput describes a new schedule. Zero-valued template fields
// fall back to a single full-period segment recurring weekly.
type CreateScheduleInput struct {
	TeamID      string
	RosterID    string
	Role        string
	Strategy    string
	HorizonDays int
	Period      time.Duration
	Segments    []persistence.Segment
	// Order lists roster users in rotation priority order.
	Order []string
}

// ScheduleService orchestrates validation and persistence for schedule
// management.
type ScheduleService struct {
	schedules   persistence.ScheduleStore
	idGenerator func() string
	logger      *slog.Logger
}

// NewScheduleService wires dependencies for schedule operations.
func NewScheduleService(schedules persistence.ScheduleStore, idGenerator func() string, logger *slog.Logger) *ScheduleService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	return &ScheduleService{
		schedules:   schedules,
		idGenerator: idGenerator,
		logger:      logger,
	}
}

// CreateSchedule validates the input, applies template defaults and persists
// the schedule with its rotation order.
func (s *ScheduleService) CreateSchedule(ctx context.Context, input CreateScheduleInput) (persistence.Schedule, error) {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.TeamID) == "" {
		vErr.add("team", "team is required")
	}
	if strings.TrimSpace(input.RosterID) == "" {
		vErr.add("roster", "roster is required")
	}
	if strings.TrimSpace(input.Role) == "" {
		vErr.add("role", "role is required")
	}
	if input.HorizonDays < 0 {
		vErr.add("horizon_days", "horizon must be positive")
	}
	if input.Period < 0 {
		vErr.add("period", "period must be positive")
	}

	strategy := input.Strategy
	switch strategy {
	case "":
		strategy = persistence.StrategyDefault
	case persistence.StrategyDefault, persistence.StrategyRoundRobin, persistence.StrategyMultiTeam:
	default:
		vErr.add("strategy", "unknown rotation strategy")
	}

	period := input.Period
	if period == 0 {
		period = DefaultPeriod
	}
	segments := input.Segments
	if len(segments) == 0 {
		segments = []persistence.Segment{{Offset: 0, Duration: period}}
	}
	for _, segment := range segments {
		if segment.Offset < 0 || segment.Duration <= 0 || segment.Offset+segment.Duration > period {
			vErr.add("segments", "segments must lie within the period")
			break
		}
	}
	horizonDays := input.HorizonDays
	if horizonDays == 0 {
		horizonDays = DefaultHorizonDays
	}

	if vErr.HasErrors() {
		return persistence.Schedule{}, vErr
	}

	schedule := persistence.Schedule{
		ID:           s.idGenerator(),
		TeamID:       strings.TrimSpace(input.TeamID),
		RosterID:     strings.TrimSpace(input.RosterID),
		Role:         strings.TrimSpace(input.Role),
		Strategy:     strategy,
		HorizonDays:  horizonDays,
		AdvancedMode: len(segments) > 1,
		Period:       period,
		Segments:     segments,
	}

	if err := s.schedules.CreateSchedule(ctx, schedule); err != nil {
		return persistence.Schedule{}, fmt.Errorf("create schedule: %w", err)
	}

	if len(input.Order) > 0 {
		if err := s.setOrder(ctx, schedule.ID, input.Order); err != nil {
			return persistence.Schedule{}, err
		}
	}

	serviceLogger(ctx, s.logger, "schedules", "create", "schedule", schedule.ID).
		InfoContext(ctx, "schedule created", "team", schedule.TeamID, "role", schedule.Role, "strategy", schedule.Strategy)
	return schedule, nil
}

// GetSchedule retrieves a schedule by identifier.
func (s *ScheduleService) GetSchedule(ctx context.Context, id string) (persistence.Schedule, error) {
	schedule, err := s.schedules.GetSchedule(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.Schedule{}, ErrNotFound
		}
		return persistence.Schedule{}, fmt.Errorf("load schedule: %w", err)
	}
	return schedule, nil
}

// ListSchedules returns every schedule.
func (s *ScheduleService) ListSchedules(ctx context.Context) ([]persistence.Schedule, error) {
	schedules, err := s.schedules.ListSchedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return schedules, nil
}

// ReplaceTemplate swaps the schedule's recurrence template. Events written
// from the old template remain on the calendar; the next populate works from
// the new shape.
func (s *ScheduleService) ReplaceTemplate(ctx context.Context, scheduleID string, period time.Duration, segments []persistence.Segment) error {
	vErr := &ValidationError{}
	if period <= 0 {
		vErr.add("period", "period must be positive")
	}
	if len(segments) == 0 {
		vErr.add("segments", "at least one segment is required")
	}
	for _, segment := range segments {
		if segment.Offset < 0 || segment.Duration <= 0 || (period > 0 && segment.Offset+segment.Duration > period) {
			vErr.add("segments", "segments must lie within the period")
			break
		}
	}
	if vErr.HasErrors() {
		return vErr
	}

	if err := s.schedules.ReplaceTemplate(ctx, scheduleID, period, segments); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("replace template: %w", err)
	}
	return nil
}

// SetOrder replaces the schedule's rotation priority order.
func (s *ScheduleService) SetOrder(ctx context.Context, scheduleID string, userIDs []string) error {
	if len(userIDs) == 0 {
		vErr := &ValidationError{}
		vErr.add("order", "at least one user is required")
		return vErr
	}
	return s.setOrder(ctx, scheduleID, userIDs)
}

func (s *ScheduleService) setOrder(ctx context.Context, scheduleID string, userIDs []string) error {
	order := make([]persistence.ScheduleOrder, 0, len(userIDs))
	for priority, userID := range userIDs {
		order = append(order, persistence.ScheduleOrder{ScheduleID: scheduleID, UserID: userID, Priority: priority})
	}
	if err := s.schedules.SetScheduleOrder(ctx, scheduleID, order); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("set rotation order: %w", err)
	}
	return nil
}
