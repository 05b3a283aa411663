package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/example/oncall-scheduler/internal/persistence"
	"github.com/example/oncall-scheduler/internal/recurrence"
	"github.com/example/oncall-scheduler/internal/scheduler"
)

var testStart = time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)

const week = 7 * 24 * time.Hour

func newTestPool(t *testing.T) *ConnectionPool {
	t.Helper()

	pool, err := NewConnectionPool(InMemoryConfig())
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	if err := Migrate(context.Background(), pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func fixedClock() time.Time {
	return time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
}

func testSchedule(id string) persistence.Schedule {
	return persistence.Schedule{
		ID:          id,
		TeamID:      "team-1",
		RosterID:    "roster-1",
		Role:        "primary",
		Strategy:    persistence.StrategyRoundRobin,
		HorizonDays: 14,
		Period:      week,
		Segments:    []persistence.Segment{{Offset: 0, Duration: week}},
	}
}

func TestScheduleRepository_RoundTrip(t *testing.T) {
	pool := newTestPool(t)
	repo := NewScheduleRepository(pool, fixedClock)
	ctx := context.Background()

	if err := repo.CreateSchedule(ctx, testSchedule("sched-1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetSchedule(ctx, "sched-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TeamID != "team-1" || got.Role != "primary" || got.Strategy != persistence.StrategyRoundRobin {
		t.Fatalf("unexpected schedule: %+v", got)
	}
	if got.Period != week {
		t.Fatalf("period = %v, want %v", got.Period, week)
	}
	if len(got.Segments) != 1 || got.Segments[0].Duration != week {
		t.Fatalf("unexpected segments: %+v", got.Segments)
	}
	if got.LastScheduledUserID != nil {
		t.Fatalf("fresh schedule must have no rotation cursor, got %q", *got.LastScheduledUserID)
	}
	if !got.CreatedAt.Equal(fixedClock()) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, fixedClock())
	}
}

func TestScheduleRepository_DuplicateCreate(t *testing.T) {
	pool := newTestPool(t)
	repo := NewScheduleRepository(pool, fixedClock)
	ctx := context.Background()

	if err := repo.CreateSchedule(ctx, testSchedule("sched-1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.CreateSchedule(ctx, testSchedule("sched-1")); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestScheduleRepository_GetMissing(t *testing.T) {
	pool := newTestPool(t)
	repo := NewScheduleRepository(pool, fixedClock)

	if _, err := repo.GetSchedule(context.Background(), "nope"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestScheduleRepository_ReplaceTemplate(t *testing.T) {
	pool := newTestPool(t)
	repo := NewScheduleRepository(pool, fixedClock)
	ctx := context.Background()

	if err := repo.CreateSchedule(ctx, testSchedule("sched-1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	segments := make([]persistence.Segment, 0, 7)
	for day := 0; day < 7; day++ {
		segments = append(segments, persistence.Segment{
			Offset:   time.Duration(day) * 24 * time.Hour,
			Duration: 12 * time.Hour,
		})
	}
	if err := repo.ReplaceTemplate(ctx, "sched-1", week, segments); err != nil {
		t.Fatalf("replace template: %v", err)
	}

	got, err := repo.GetSchedule(ctx, "sched-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Segments) != 7 {
		t.Fatalf("expected 7 segments after replacement, got %d", len(got.Segments))
	}
	if got.Segments[3].Offset != 3*24*time.Hour {
		t.Fatalf("segment order lost: %+v", got.Segments)
	}

	if err := repo.ReplaceTemplate(ctx, "nope", week, segments); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEventRepository_FilterAndDelete(t *testing.T) {
	pool := newTestPool(t)
	repo := NewEventRepository(pool)
	ctx := context.Background()

	scheduleID := "sched-1"
	events := []persistence.Event{
		{ID: "e1", TeamID: "team-1", ScheduleID: &scheduleID, UserID: "alice", Role: "primary", Start: testStart, End: testStart.Add(week)},
		{ID: "e2", TeamID: "team-1", UserID: "bob", Role: "primary", Start: testStart.Add(week), End: testStart.Add(2 * week)},
		{ID: "e3", TeamID: "team-2", UserID: "alice", Role: "secondary", Start: testStart, End: testStart.Add(week)},
	}
	for _, event := range events {
		if err := repo.CreateEvent(ctx, event); err != nil {
			t.Fatalf("create %s: %v", event.ID, err)
		}
	}

	byTeam, err := repo.ListEvents(ctx, persistence.EventFilter{TeamID: "team-1"})
	if err != nil {
		t.Fatalf("list by team: %v", err)
	}
	if len(byTeam) != 2 {
		t.Fatalf("expected 2 team-1 events, got %d", len(byTeam))
	}
	if byTeam[0].ID != "e1" || byTeam[1].ID != "e2" {
		t.Fatalf("events out of order: %s, %s", byTeam[0].ID, byTeam[1].ID)
	}
	if byTeam[0].ScheduleID == nil || *byTeam[0].ScheduleID != scheduleID {
		t.Fatalf("schedule attribution lost: %+v", byTeam[0])
	}
	if !byTeam[0].Start.Equal(testStart) {
		t.Fatalf("start round-trip failed: %v", byTeam[0].Start)
	}

	windowEnd := testStart.Add(week)
	inWindow, err := repo.ListEvents(ctx, persistence.EventFilter{UserID: "alice", StartBefore: &windowEnd, EndAfter: &testStart})
	if err != nil {
		t.Fatalf("list by window: %v", err)
	}
	if len(inWindow) != 2 {
		t.Fatalf("expected both alice events in window, got %d", len(inWindow))
	}

	if err := repo.DeleteEvent(ctx, "e2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteEvent(ctx, "e2"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestEventRepository_RejectsEmptyWindow(t *testing.T) {
	pool := newTestPool(t)
	repo := NewEventRepository(pool)

	err := repo.CreateEvent(context.Background(), persistence.Event{
		ID: "e1", TeamID: "team-1", UserID: "alice", Role: "primary",
		Start: testStart, End: testStart,
	})
	if !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}
}

func TestEventRepository_ActiveEventsBoundaries(t *testing.T) {
	pool := newTestPool(t)
	repo := NewEventRepository(pool)
	ctx := context.Background()

	event := persistence.Event{
		ID: "e1", TeamID: "team-1", UserID: "alice", Role: "primary",
		Start: testStart, End: testStart.Add(week),
	}
	if err := repo.CreateEvent(ctx, event); err != nil {
		t.Fatalf("create: %v", err)
	}

	tests := []struct {
		name   string
		at     time.Time
		role   string
		active int
	}{
		{name: "start instant is covered", at: testStart, role: "", active: 1},
		{name: "mid window is covered", at: testStart.Add(3 * 24 * time.Hour), role: "", active: 1},
		{name: "end instant is not covered", at: testStart.Add(week), role: "", active: 0},
		{name: "role filter matches", at: testStart, role: "primary", active: 1},
		{name: "role filter excludes", at: testStart, role: "secondary", active: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			active, err := repo.ActiveEvents(ctx, []string{"team-1"}, tt.role, tt.at)
			if err != nil {
				t.Fatalf("active events: %v", err)
			}
			if len(active) != tt.active {
				t.Fatalf("got %d active events, want %d", len(active), tt.active)
			}
		})
	}
}

func TestRosterRepository(t *testing.T) {
	pool := newTestPool(t)
	repo := NewRosterRepository(pool)
	ctx := context.Background()

	for _, userID := range []string{"bob", "alice"} {
		err := repo.AddRosterMember(ctx, persistence.RosterMember{RosterID: "roster-1", UserID: userID, InRotation: true})
		if err != nil {
			t.Fatalf("add %s: %v", userID, err)
		}
	}

	if err := repo.SetInRotation(ctx, "roster-1", "bob", false); err != nil {
		t.Fatalf("set in_rotation: %v", err)
	}
	if err := repo.SetInRotation(ctx, "roster-1", "nope", false); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	members, err := repo.ListRosterMembers(ctx, "roster-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if members[0].UserID != "alice" || !members[0].InRotation {
		t.Fatalf("unexpected first member: %+v", members[0])
	}
	if members[1].UserID != "bob" || members[1].InRotation {
		t.Fatalf("unexpected second member: %+v", members[1])
	}
}

func TestSubscriptionRepository(t *testing.T) {
	pool := newTestPool(t)
	repo := NewSubscriptionRepository(pool)
	ctx := context.Background()

	sub := persistence.Subscription{TeamID: "team-1", Role: "primary", SourceTeamID: "team-2", SourceRole: "primary"}
	if err := repo.CreateSubscription(ctx, sub); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.CreateSubscription(ctx, sub); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	subscriptions, err := repo.ListSubscriptions(ctx, "team-1", "primary")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subscriptions) != 1 || subscriptions[0] != sub {
		t.Fatalf("unexpected subscriptions: %+v", subscriptions)
	}

	other, err := repo.ListSubscriptions(ctx, "team-1", "secondary")
	if err != nil {
		t.Fatalf("list other role: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected no edges for other role, got %+v", other)
	}
}

func seedEngineFixture(t *testing.T, pool *ConnectionPool) {
	t.Helper()
	ctx := context.Background()

	schedules := NewScheduleRepository(pool, fixedClock)
	rosters := NewRosterRepository(pool)

	if err := schedules.CreateSchedule(ctx, testSchedule("sched-1")); err != nil {
		t.Fatalf("seed schedule: %v", err)
	}
	order := []persistence.ScheduleOrder{
		{ScheduleID: "sched-1", UserID: "alice", Priority: 0},
		{ScheduleID: "sched-1", UserID: "bob", Priority: 1},
		{ScheduleID: "sched-1", UserID: "carol", Priority: 2},
	}
	if err := schedules.SetScheduleOrder(ctx, "sched-1", order); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	for _, userID := range []string{"alice", "bob", "carol"} {
		err := rosters.AddRosterMember(ctx, persistence.RosterMember{RosterID: "roster-1", UserID: userID, InRotation: true})
		if err != nil {
			t.Fatalf("seed roster %s: %v", userID, err)
		}
	}
}

func TestEngineStore_RotationRoster(t *testing.T) {
	pool := newTestPool(t)
	seedEngineFixture(t, pool)
	ctx := context.Background()

	if err := NewRosterRepository(pool).SetInRotation(ctx, "roster-1", "bob", false); err != nil {
		t.Fatalf("set in_rotation: %v", err)
	}

	err := pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		roster, err := NewEngineStore(tx).RotationRoster(ctx, "sched-1", "roster-1")
		if err != nil {
			return err
		}
		if len(roster) != 2 || roster[0] != "alice" || roster[1] != "carol" {
			t.Fatalf("unexpected roster: %v", roster)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func TestEngineStore_EventCoveredExactMatchOnly(t *testing.T) {
	pool := newTestPool(t)
	seedEngineFixture(t, pool)
	ctx := context.Background()

	event := persistence.Event{
		ID: "e1", TeamID: "team-1", UserID: "alice", Role: "primary",
		Start: testStart, End: testStart.Add(week),
	}
	if err := NewEventRepository(pool).CreateEvent(ctx, event); err != nil {
		t.Fatalf("seed event: %v", err)
	}

	err := pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		store := NewEngineStore(tx)

		covered, err := store.EventCovered(ctx, "team-1", "primary", recurrence.Window{Start: testStart, End: testStart.Add(week)})
		if err != nil {
			return err
		}
		if !covered {
			t.Fatal("exact window must be covered")
		}

		covered, err = store.EventCovered(ctx, "team-1", "primary", recurrence.Window{Start: testStart, End: testStart.Add(week - time.Hour)})
		if err != nil {
			return err
		}
		if covered {
			t.Fatal("shorter window must not count as covered")
		}

		covered, err = store.EventCovered(ctx, "team-1", "secondary", recurrence.Window{Start: testStart, End: testStart.Add(week)})
		if err != nil {
			return err
		}
		if covered {
			t.Fatal("other role must not count as covered")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func TestEngineStore_OverlappingEventsHalfOpen(t *testing.T) {
	pool := newTestPool(t)
	seedEngineFixture(t, pool)
	ctx := context.Background()

	event := persistence.Event{
		ID: "e1", TeamID: "team-9", UserID: "alice", Role: "secondary",
		Start: testStart, End: testStart.Add(week),
	}
	if err := NewEventRepository(pool).CreateEvent(ctx, event); err != nil {
		t.Fatalf("seed event: %v", err)
	}

	err := pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		store := NewEngineStore(tx)

		// Adjacent window sharing only the boundary instant does not overlap.
		adjacent, err := store.OverlappingEvents(ctx, "alice", recurrence.Window{Start: testStart.Add(week), End: testStart.Add(2 * week)})
		if err != nil {
			return err
		}
		if len(adjacent) != 0 {
			t.Fatalf("adjacent window must not overlap, got %d events", len(adjacent))
		}

		overlapping, err := store.OverlappingEvents(ctx, "alice", recurrence.Window{Start: testStart.Add(week - time.Hour), End: testStart.Add(2 * week)})
		if err != nil {
			return err
		}
		if len(overlapping) != 1 {
			t.Fatalf("expected 1 overlapping event, got %d", len(overlapping))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func TestEngineStore_LastScheduledUser(t *testing.T) {
	pool := newTestPool(t)
	seedEngineFixture(t, pool)
	ctx := context.Background()

	events := NewEventRepository(pool)
	seed := []persistence.Event{
		{ID: "e1", TeamID: "team-1", UserID: "alice", Role: "primary", Start: testStart.Add(-2 * week), End: testStart.Add(-week)},
		{ID: "e2", TeamID: "team-1", UserID: "bob", Role: "primary", Start: testStart.Add(-week), End: testStart},
		{ID: "e3", TeamID: "team-1", UserID: "dave", Role: "primary", Start: testStart.Add(-time.Hour), End: testStart},
		{ID: "e4", TeamID: "team-1", UserID: "carol", Role: "primary", Start: testStart.Add(week), End: testStart.Add(2 * week)},
	}
	for _, event := range seed {
		if err := events.CreateEvent(ctx, event); err != nil {
			t.Fatalf("seed %s: %v", event.ID, err)
		}
	}

	err := pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		store := NewEngineStore(tx)
		roster := []string{"alice", "bob", "carol"}

		// dave's more recent event is invisible because dave is not in the
		// roster; carol's event starts after the bound.
		last, err := store.LastScheduledUser(ctx, "team-1", "primary", roster, testStart)
		if err != nil {
			return err
		}
		if last != "bob" {
			t.Fatalf("last scheduled = %q, want bob", last)
		}

		last, err = store.LastScheduledUser(ctx, "team-1", "secondary", roster, testStart)
		if err != nil {
			return err
		}
		if last != "" {
			t.Fatalf("expected no evidence for other role, got %q", last)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func TestEngineStore_CursorLifecycle(t *testing.T) {
	pool := newTestPool(t)
	seedEngineFixture(t, pool)
	ctx := context.Background()

	err := pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		store := NewEngineStore(tx)
		if err := store.SetRotationCursor(ctx, "sched-1", "bob"); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		t.Fatalf("set cursor: %v", err)
	}

	schedules := NewScheduleRepository(pool, fixedClock)
	got, err := schedules.GetSchedule(ctx, "sched-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LastScheduledUserID == nil || *got.LastScheduledUserID != "bob" {
		t.Fatalf("cursor not persisted: %+v", got.LastScheduledUserID)
	}

	err = pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		return NewEngineStore(tx).ClearRotationCursor(ctx, "sched-1")
	})
	if err != nil {
		t.Fatalf("clear cursor: %v", err)
	}

	got, err = schedules.GetSchedule(ctx, "sched-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LastScheduledUserID != nil {
		t.Fatalf("cursor not cleared: %q", *got.LastScheduledUserID)
	}
}

func TestRollbackOnlyTransactionLeavesNoTrace(t *testing.T) {
	pool := newTestPool(t)
	seedEngineFixture(t, pool)
	ctx := context.Background()

	err := pool.WithRollbackOnlyTransaction(ctx, func(tx *sql.Tx) error {
		store := NewEngineStore(tx)
		event := persistence.Event{
			ID: "preview-1", TeamID: "team-1", UserID: "alice", Role: "primary",
			Start: testStart, End: testStart.Add(week),
		}
		if err := store.InsertEvent(ctx, event); err != nil {
			return err
		}
		if err := store.SetRotationCursor(ctx, "sched-1", "alice"); err != nil {
			return err
		}

		// Within the transaction the insert is visible.
		covered, err := store.EventCovered(ctx, "team-1", "primary", recurrence.Window{Start: testStart, End: testStart.Add(week)})
		if err != nil {
			return err
		}
		if !covered {
			t.Fatal("insert must be visible inside its own transaction")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("rollback-only transaction: %v", err)
	}

	remaining, err := NewEventRepository(pool).ListEvents(ctx, persistence.EventFilter{TeamID: "team-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("rolled-back insert leaked: %d events", len(remaining))
	}

	got, err := NewScheduleRepository(pool, fixedClock).GetSchedule(ctx, "sched-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LastScheduledUserID != nil {
		t.Fatalf("rolled-back cursor leaked: %q", *got.LastScheduledUserID)
	}
}

func TestErrorMapper(t *testing.T) {
	mapper := NewErrorMapper()

	tests := []struct {
		name string
		in   error
		want error
	}{
		{name: "no rows", in: sql.ErrNoRows, want: persistence.ErrNotFound},
		{name: "unique violation", in: errors.New("constraint failed: UNIQUE constraint failed: events.id"), want: persistence.ErrDuplicate},
		{name: "foreign key violation", in: errors.New("FOREIGN KEY constraint failed"), want: persistence.ErrForeignKeyViolation},
		{name: "check violation", in: errors.New("CHECK constraint failed: end_time > start_time"), want: persistence.ErrConstraintViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapper.MapError(tt.in); !errors.Is(got, tt.want) {
				t.Fatalf("MapError(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if mapper.MapError(nil) != nil {
		t.Fatal("nil must map to nil")
	}
	unknown := errors.New("disk I/O error")
	if got := mapper.MapError(unknown); got != unknown {
		t.Fatalf("unknown errors must pass through, got %v", got)
	}
}

func TestRetryHelper(t *testing.T) {
	config := RetryConfig{
		MaxRetries:    3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}

	t.Run("retries lock contention until success", func(t *testing.T) {
		helper := NewRetryHelper(config)

		attempts := 0
		err := helper.WithRetry(context.Background(), func() error {
			attempts++
			if attempts < 3 {
				return errors.New("database is locked (SQLITE_BUSY)")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("WithRetry returned error: %v", err)
		}
		if attempts != 3 {
			t.Fatalf("ran %d attempts, want 3", attempts)
		}
	})

	t.Run("mapped sentinels are not retried", func(t *testing.T) {
		helper := NewRetryHelper(config)

		attempts := 0
		err := helper.WithRetry(context.Background(), func() error {
			attempts++
			return errors.New("UNIQUE constraint failed: events.id")
		})
		if !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
		if attempts != 1 {
			t.Fatalf("ran %d attempts, want 1", attempts)
		}
	})

	t.Run("exhausted retries report the last error", func(t *testing.T) {
		helper := NewRetryHelper(config)

		attempts := 0
		err := helper.WithRetry(context.Background(), func() error {
			attempts++
			return errors.New("database is busy")
		})
		if err == nil {
			t.Fatal("expected error after exhausting retries")
		}
		if attempts != config.MaxRetries+1 {
			t.Fatalf("ran %d attempts, want %d", attempts, config.MaxRetries+1)
		}
	})
}

func TestStoreProviderRetriesLockedTransactions(t *testing.T) {
	pool := newTestPool(t)
	provider := NewStoreProvider(pool)
	provider.retry = NewRetryHelper(RetryConfig{
		MaxRetries:    2,
		InitialDelay:  time.Millisecond,
		MaxDelay:      2 * time.Millisecond,
		BackoffFactor: 2.0,
	})

	attempts := 0
	err := provider.WithEngineStore(context.Background(), true, func(store scheduler.Store) error {
		attempts++
		if attempts == 1 {
			return errors.New("database is locked")
		}
		return store.SetRotationCursor(context.Background(), "missing", "alice")
	})
	if err != nil {
		t.Fatalf("WithEngineStore returned error: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("ran %d attempts, want 2", attempts)
	}
}
