package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/oncall-scheduler/internal/persistence"
	"github.com/example/oncall-scheduler/internal/recurrence"
	"github.com/example/oncall-scheduler/internal/scheduler"
)

// ScheduleReader captures the schedule lookups needed by the populate service.
type ScheduleReader interface {
	GetSchedule(ctx context.Context, id string) (persistence.Schedule, error)
	ListSchedules(ctx context.Context) ([]persistence.Schedule, error)
}

// EngineStoreProvider hands the populate pipeline a transactional store view.
// With commit true the transaction commits when fn succeeds; with commit
// false it is rolled back unconditionally, which is how previews stay
// side-effect free while running the identical pipeline.
type EngineStoreProvider interface {
	WithEngineStore(ctx context.Context, commit bool, fn func(store scheduler.Store) error) error
}

// Populator runs the assignment pipeline for one schedule against a store.
// Satisfied by *scheduler.Engine.
type Populator interface {
	Run(ctx context.Context, store scheduler.Store, schedule persistence.Schedule, start time.Time) (scheduler.Result, error)
}

// PopulateOutcome is the result of a populate or preview call.
type PopulateOutcome struct {
	ScheduleID string
	Start      time.Time
	Created    []persistence.Event
	Unassigned []recurrence.Window
}

// PopulateService fills schedules with events. Populate and Preview differ
// only in whether the transaction commits.
type PopulateService struct {
	schedules ScheduleReader
	stores    EngineStoreProvider
	engine    Populator
	now       func() time.Time
	logger    *slog.Logger
}

// NewPopulateService wires dependencies for populate operations. A nil now
// defaults to the wall clock.
func NewPopulateService(schedules ScheduleReader, stores EngineStoreProvider, engine Populator, now func() time.Time, logger *slog.Logger) *PopulateService {
	if now == nil {
		now = time.Now
	}
	return &PopulateService{
		schedules: schedules,
		stores:    stores,
		engine:    engine,
		now:       now,
		logger:    logger,
	}
}

// Populate generates and persists events for the schedule from the given
// start instant. A zero start means "now". When the start is rejected the
// schedule and its events are untouched.
func (s *PopulateService) Populate(ctx context.Context, scheduleID string, start time.Time) (PopulateOutcome, error) {
	return s.run(ctx, scheduleID, start, true)
}

// Preview computes the events Populate would create without persisting
// anything. The pipeline, including conflict checks against its own pending
// inserts, is the same one Populate runs; only the final rollback differs.
func (s *PopulateService) Preview(ctx context.Context, scheduleID string, start time.Time) (PopulateOutcome, error) {
	return s.run(ctx, scheduleID, start, false)
}

func (s *PopulateService) run(ctx context.Context, scheduleID string, start time.Time, commit bool) (PopulateOutcome, error) {
	operation := "preview"
	if commit {
		operation = "populate"
	}
	logger := serviceLogger(ctx, s.logger, "populate", operation, "schedule", scheduleID)

	schedule, err := s.schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return PopulateOutcome{}, ErrNotFound
		}
		return PopulateOutcome{}, fmt.Errorf("load schedule: %w", err)
	}

	now := s.now()
	if start.IsZero() {
		start = now
	}
	horizon := time.Duration(schedule.HorizonDays) * 24 * time.Hour
	if start.Before(now.Add(-horizon)) {
		return PopulateOutcome{}, ErrInvalidStart
	}

	var result scheduler.Result
	err = s.stores.WithEngineStore(ctx, commit, func(store scheduler.Store) error {
		var runErr error
		result, runErr = s.engine.Run(ctx, store, schedule, start)
		return runErr
	})
	if err != nil {
		return PopulateOutcome{}, err
	}

	logger.InfoContext(ctx, "run complete",
		"start", start, "created", len(result.Created), "unassigned", len(result.Unassigned))

	return PopulateOutcome{
		ScheduleID: scheduleID,
		Start:      start,
		Created:    result.Created,
		Unassigned: result.Unassigned,
	}, nil
}

// PopulateAll sweeps every schedule from now. Failures are logged per
// schedule and do not stop the sweep; the first error is returned after all
// schedules ran.
func (s *PopulateService) PopulateAll(ctx context.Context) error {
	schedules, err := s.schedules.ListSchedules(ctx)
	if err != nil {
		return fmt.Errorf("list schedules: %w", err)
	}

	var firstErr error
	for _, schedule := range schedules {
		if _, err := s.Populate(ctx, schedule.ID, time.Time{}); err != nil {
			serviceLogger(ctx, s.logger, "populate", "populate_all", "schedule", schedule.ID).
				ErrorContext(ctx, "populate failed", "error", err, "kind", ErrorKind(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
