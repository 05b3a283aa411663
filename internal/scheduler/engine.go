package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/oncall-scheduler/internal/persistence"
	"github.com/example/oncall-scheduler/internal/recurrence"
)

// Result reports the outcome of one populate/preview run.
type Result struct {
	// Created lists the events inserted (or, under preview, the events that
	// would be inserted) by this run, in chronological order.
	Created []persistence.Event
	// Unassigned lists the period windows no candidate was free for. This is
	// a reported condition, not an error.
	Unassigned []recurrence.Window
}

// Engine expands a schedule's template over its horizon and assigns each
// period to a rotation member, writing events idempotently. The engine
// neither owns nor commits the transaction; the caller decides whether the
// supplied store's transaction commits (populate) or rolls back (preview),
// which is why both entry points share this code path byte for byte.
type Engine struct {
	newEventID func() string
	newLinkID  func() string
	logger     *slog.Logger
}

// NewEngine constructs an engine. Nil generators default to random UUIDs and
// a nil logger discards debug output.
func NewEngine(newEventID, newLinkID func() string, logger *slog.Logger) *Engine {
	if newEventID == nil {
		newEventID = uuid.NewString
	}
	if newLinkID == nil {
		newLinkID = uuid.NewString
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(12)}))
	}
	return &Engine{newEventID: newEventID, newLinkID: newLinkID, logger: logger}
}

// Run executes the populate pipeline for one schedule from the given start
// instant. The rotation cursor is reset to unknown first so that fairness is
// derived from the calendar, never from stale cursor state.
func (e *Engine) Run(ctx context.Context, store Store, schedule persistence.Schedule, start time.Time) (Result, error) {
	expansion, err := recurrence.Expand(templateOf(schedule), start, schedule.HorizonDays)
	if err != nil {
		return Result{}, fmt.Errorf("expand schedule %s: %w", schedule.ID, err)
	}

	if err := store.ClearRotationCursor(ctx, schedule.ID); err != nil {
		return Result{}, fmt.Errorf("reset rotation cursor: %w", err)
	}

	roster, err := store.RotationRoster(ctx, schedule.ID, schedule.RosterID)
	if err != nil {
		return Result{}, fmt.Errorf("resolve roster: %w", err)
	}

	var result Result
	if len(roster) == 0 {
		e.logger.InfoContext(ctx, "no rotation members, leaving schedule unpopulated", "schedule", schedule.ID)
		for _, period := range expansion.Periods() {
			result.Unassigned = append(result.Unassigned, recurrence.Window{Start: period.Start, End: period.End})
		}
		return result, nil
	}

	strategy := StrategyFor(schedule.Strategy)
	checker := NewConflictChecker(store, schedule, strategy.Visibility())

	// Infer the predecessor from the calendar using the earliest period
	// start; an empty result means roster[0] takes the first free period.
	lastScheduled, err := store.LastScheduledUser(ctx, schedule.TeamID, schedule.Role, roster, expansion.Period(0).Start)
	if err != nil {
		return Result{}, fmt.Errorf("infer last scheduled user: %w", err)
	}

	for k := 0; k < expansion.Len(); k++ {
		period := expansion.Period(k)

		// A fully covered period gets no candidate pick at all; rotation
		// continues from whoever the calendar says was last on duty.
		covered, err := e.periodCovered(ctx, store, schedule, period)
		if err != nil {
			return Result{}, err
		}
		if covered {
			if k+1 < expansion.Len() {
				lastScheduled, err = store.LastScheduledUser(ctx, schedule.TeamID, schedule.Role, roster, expansion.Period(k+1).Start)
				if err != nil {
					return Result{}, fmt.Errorf("infer last scheduled user: %w", err)
				}
			}
			continue
		}

		chosen := ""
		for _, candidate := range strategy.SelectCandidates(roster, lastScheduled) {
			busy, err := checker.IsBusy(ctx, candidate, period.Segments)
			if err != nil {
				return Result{}, fmt.Errorf("conflict check for %s: %w", candidate, err)
			}
			if !busy {
				chosen = candidate
				break
			}
		}
		if chosen == "" {
			e.logger.InfoContext(ctx, "every candidate busy, leaving period unassigned",
				"schedule", schedule.ID, "period_start", period.Start)
			result.Unassigned = append(result.Unassigned, recurrence.Window{Start: period.Start, End: period.End})
			continue
		}

		created, err := e.writeAssignment(ctx, store, schedule, period, chosen)
		if err != nil {
			return Result{}, err
		}
		lastScheduled = chosen

		if len(created) > 0 {
			result.Created = append(result.Created, created...)
			if strategy.PersistsCursor() {
				if err := store.SetRotationCursor(ctx, schedule.ID, chosen); err != nil {
					return Result{}, fmt.Errorf("persist rotation cursor: %w", err)
				}
			}
		}
	}

	return result, nil
}

// periodCovered reports whether every segment of the period already has an
// exact (team, role, start, end) event.
func (e *Engine) periodCovered(ctx context.Context, store Store, schedule persistence.Schedule, period recurrence.Period) (bool, error) {
	for _, window := range period.Segments {
		covered, err := store.EventCovered(ctx, schedule.TeamID, schedule.Role, window)
		if err != nil {
			return false, fmt.Errorf("idempotency check: %w", err)
		}
		if !covered {
			return false, nil
		}
	}
	return true, nil
}

// writeAssignment persists the period's segments for the chosen user,
// skipping segments already covered by an exact (team, role, start, end)
// match. Newly created segments of a multi-segment period share one freshly
// generated link id; single-segment periods carry none.
func (e *Engine) writeAssignment(ctx context.Context, store Store, schedule persistence.Schedule, period recurrence.Period, userID string) ([]persistence.Event, error) {
	var created []persistence.Event
	var linkID *string

	for _, window := range period.Segments {
		covered, err := store.EventCovered(ctx, schedule.TeamID, schedule.Role, window)
		if err != nil {
			return nil, fmt.Errorf("idempotency check: %w", err)
		}
		if covered {
			continue
		}

		if linkID == nil && len(period.Segments) > 1 {
			id := e.newLinkID()
			linkID = &id
		}

		scheduleID := schedule.ID
		event := persistence.Event{
			ID:         e.newEventID(),
			TeamID:     schedule.TeamID,
			ScheduleID: &scheduleID,
			UserID:     userID,
			Role:       schedule.Role,
			Start:      window.Start,
			End:        window.End,
			LinkID:     linkID,
		}
		e.logger.DebugContext(ctx, "inserting event",
			"schedule", schedule.ID, "user", userID, "start", window.Start, "end", window.End)
		if err := store.InsertEvent(ctx, event); err != nil {
			return nil, fmt.Errorf("insert event: %w", err)
		}
		created = append(created, event)
	}

	return created, nil
}

func templateOf(schedule persistence.Schedule) recurrence.Template {
	segments := make([]recurrence.Segment, 0, len(schedule.Segments))
	for _, segment := range schedule.Segments {
		segments = append(segments, recurrence.Segment{Offset: segment.Offset, Duration: segment.Duration})
	}
	return recurrence.Template{Period: schedule.Period, Segments: segments}
}
