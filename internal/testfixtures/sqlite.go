package testfixtures

import (
	"context"
	"testing"

	"github.com/example/oncall-scheduler/internal/persistence"
	"github.com/example/oncall-scheduler/internal/persistence/sqlite"
)

// SQLiteHarness bundles a migrated in-memory database with every
// repository, for integration-style persistence tests.
type SQLiteHarness struct {
	Pool          *sqlite.ConnectionPool
	Schedules     *sqlite.ScheduleRepository
	Events        *sqlite.EventRepository
	Rosters       *sqlite.RosterRepository
	Subscriptions *sqlite.SubscriptionRepository
	Stores        *sqlite.StoreProvider
}

// NewSQLiteHarness opens an in-memory database, runs migrations, and
// registers cleanup with the test. The clock defaults to ReferenceTime
// when nil.
func NewSQLiteHarness(tb testing.TB, clock *Clock) *SQLiteHarness {
	tb.Helper()

	pool, err := sqlite.NewConnectionPool(sqlite.InMemoryConfig())
	if err != nil {
		tb.Fatalf("open database: %v", err)
	}
	tb.Cleanup(func() { _ = pool.Close() })

	if err := sqlite.Migrate(context.Background(), pool); err != nil {
		tb.Fatalf("migrate database: %v", err)
	}

	if clock == nil {
		clock = NewClock(ReferenceTime())
	}

	return &SQLiteHarness{
		Pool:          pool,
		Schedules:     sqlite.NewScheduleRepository(pool, clock.NowFunc()),
		Events:        sqlite.NewEventRepository(pool),
		Rosters:       sqlite.NewRosterRepository(pool),
		Subscriptions: sqlite.NewSubscriptionRepository(pool),
		Stores:        sqlite.NewStoreProvider(pool),
	}
}

// SeedSchedule stores a schedule together with roster membership and
// rotation order derived from the given users.
func (h *SQLiteHarness) SeedSchedule(tb testing.TB, schedule persistence.Schedule, userIDs ...string) {
	tb.Helper()
	ctx := context.Background()

	if err := h.Schedules.CreateSchedule(ctx, schedule); err != nil {
		tb.Fatalf("seed schedule %s: %v", schedule.ID, err)
	}
	for _, member := range RosterMembers(schedule.RosterID, userIDs...) {
		if err := h.Rosters.AddRosterMember(ctx, member); err != nil {
			tb.Fatalf("seed roster member %s: %v", member.UserID, err)
		}
	}
	if len(userIDs) > 0 {
		order := ScheduleOrderFor(schedule.ID, userIDs...)
		if err := h.Schedules.SetScheduleOrder(ctx, schedule.ID, order); err != nil {
			tb.Fatalf("seed schedule order: %v", err)
		}
	}
}

// SeedEvents stores the given events, failing the test on any error.
func (h *SQLiteHarness) SeedEvents(tb testing.TB, events ...persistence.Event) {
	tb.Helper()
	ctx := context.Background()
	for _, event := range events {
		if err := h.Events.CreateEvent(ctx, event); err != nil {
			tb.Fatalf("seed event %s: %v", event.ID, err)
		}
	}
}
