package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/oncall-scheduler/internal/application"
	"github.com/example/oncall-scheduler/internal/persistence"
	"github.com/example/oncall-scheduler/internal/scheduler"
)

// ServiceFactory assists tests with constructing application services
// using deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLogger overrides the logger handed to constructed services.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// NewEngine builds a populate engine with deterministic event and link
// identifiers drawn from the factory generator.
func (f *ServiceFactory) NewEngine() *scheduler.Engine {
	return scheduler.NewEngine(f.IDGenerator.NextFunc(), f.IDGenerator.NextFunc(), f.Logger)
}

// NewScheduleService builds a schedule service over the given store.
func (f *ServiceFactory) NewScheduleService(schedules persistence.ScheduleStore) *application.ScheduleService {
	return application.NewScheduleService(schedules, f.IDGenerator.NextFunc(), f.Logger)
}

// NewEventService builds an event service over the given repository.
func (f *ServiceFactory) NewEventService(events application.EventRepository) *application.EventService {
	return application.NewEventService(events, f.IDGenerator.NextFunc(), f.Logger)
}

// NewOncallService builds an on-call lookup service.
func (f *ServiceFactory) NewOncallService(events application.EventReader, subscriptions application.SubscriptionReader) *application.OncallService {
	return application.NewOncallService(events, subscriptions, f.Clock.NowFunc(), f.Logger)
}

// NewPopulateService builds a populate service wired to a fresh engine.
func (f *ServiceFactory) NewPopulateService(schedules application.ScheduleReader, stores application.EngineStoreProvider) *application.PopulateService {
	return application.NewPopulateService(schedules, stores, f.NewEngine(), f.Clock.NowFunc(), f.Logger)
}
