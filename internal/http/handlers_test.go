package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/oncall-scheduler/internal/application"
	"github.com/example/oncall-scheduler/internal/persistence"
)

var handlerNow = time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)

type scheduleServiceStub struct {
	schedules map[string]persistence.Schedule
}

func (s *scheduleServiceStub) CreateSchedule(ctx context.Context, input application.CreateScheduleInput) (persistence.Schedule, error) {
	if input.TeamID == "" {
		vErr := &application.ValidationError{FieldErrors: map[string]string{"team": "team is required"}}
		return persistence.Schedule{}, vErr
	}
	schedule := persistence.Schedule{
		ID:       "sched-1",
		TeamID:   input.TeamID,
		RosterID: input.RosterID,
		Role:     input.Role,
		Strategy: persistence.StrategyDefault,
		Period:   7 * 24 * time.Hour,
		Segments: []persistence.Segment{{Offset: 0, Duration: 7 * 24 * time.Hour}},
	}
	return schedule, nil
}

func (s *scheduleServiceStub) GetSchedule(ctx context.Context, id string) (persistence.Schedule, error) {
	schedule, ok := s.schedules[id]
	if !ok {
		return persistence.Schedule{}, application.ErrNotFound
	}
	return schedule, nil
}

func (s *scheduleServiceStub) ListSchedules(ctx context.Context) ([]persistence.Schedule, error) {
	schedules := make([]persistence.Schedule, 0, len(s.schedules))
	for _, schedule := range s.schedules {
		schedules = append(schedules, schedule)
	}
	return schedules, nil
}

func (s *scheduleServiceStub) ReplaceTemplate(ctx context.Context, scheduleID string, period time.Duration, segments []persistence.Segment) error {
	if _, ok := s.schedules[scheduleID]; !ok {
		return application.ErrNotFound
	}
	return nil
}

func (s *scheduleServiceStub) SetOrder(ctx context.Context, scheduleID string, userIDs []string) error {
	if _, ok := s.schedules[scheduleID]; !ok {
		return application.ErrNotFound
	}
	return nil
}

type populateServiceStub struct {
	outcome       application.PopulateOutcome
	err           error
	lastOperation string
	lastStart     time.Time
}

func (s *populateServiceStub) Populate(ctx context.Context, scheduleID string, start time.Time) (application.PopulateOutcome, error) {
	s.lastOperation = "populate"
	s.lastStart = start
	if s.err != nil {
		return application.PopulateOutcome{}, s.err
	}
	return s.outcome, nil
}

func (s *populateServiceStub) Preview(ctx context.Context, scheduleID string, start time.Time) (application.PopulateOutcome, error) {
	s.lastOperation = "preview"
	s.lastStart = start
	if s.err != nil {
		return application.PopulateOutcome{}, s.err
	}
	return s.outcome, nil
}

type eventServiceStub struct {
	events map[string]persistence.Event
}

func (s *eventServiceStub) CreateEvent(ctx context.Context, input application.CreateEventInput) (persistence.Event, error) {
	if input.UserID == "" {
		return persistence.Event{}, &application.ValidationError{FieldErrors: map[string]string{"user": "user is required"}}
	}
	return persistence.Event{ID: "event-1", TeamID: input.TeamID, UserID: input.UserID, Role: input.Role, Start: input.Start, End: input.End}, nil
}

func (s *eventServiceStub) DeleteEvent(ctx context.Context, id string) error {
	if _, ok := s.events[id]; !ok {
		return application.ErrNotFound
	}
	delete(s.events, id)
	return nil
}

func (s *eventServiceStub) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	events := make([]persistence.Event, 0, len(s.events))
	for _, event := range s.events {
		events = append(events, event)
	}
	return events, nil
}

type oncallServiceStub struct {
	lastTeam string
	lastRole string
	entries  []application.OncallEntry
}

func (s *oncallServiceStub) CurrentOncall(ctx context.Context, teamID, role string) ([]application.OncallEntry, error) {
	s.lastTeam = teamID
	s.lastRole = role
	return s.entries, nil
}

type routerFixture struct {
	handler  http.Handler
	populate *populateServiceStub
	oncall   *oncallServiceStub
}

func newRouterFixture() *routerFixture {
	schedules := &scheduleServiceStub{schedules: map[string]persistence.Schedule{
		"sched-1": {ID: "sched-1", TeamID: "team-1", Role: "primary"},
	}}
	populate := &populateServiceStub{outcome: application.PopulateOutcome{
		ScheduleID: "sched-1",
		Start:      handlerNow,
		Created: []persistence.Event{
			{ID: "gen-1", TeamID: "team-1", UserID: "alice", Role: "primary", Start: handlerNow, End: handlerNow.Add(7 * 24 * time.Hour)},
		},
	}}
	events := &eventServiceStub{events: map[string]persistence.Event{"event-1": {ID: "event-1"}}}
	oncall := &oncallServiceStub{entries: []application.OncallEntry{
		{UserID: "alice", TeamID: "team-1", Role: "primary", Start: handlerNow, End: handlerNow.Add(24 * time.Hour)},
	}}

	handler := NewRouter(RouterConfig{
		Schedules: NewScheduleHandler(schedules, populate, nil),
		Events:    NewEventHandler(events, nil),
		Oncall:    NewOncallHandler(oncall, nil),
	})
	return &routerFixture{handler: handler, populate: populate, oncall: oncall}
}

func (f *routerFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, req)
	return recorder
}

func TestRouter_PopulateSchedule(t *testing.T) {
	fixture := newRouterFixture()

	resp := fixture.do(t, http.MethodPost, "/schedules/sched-1/populate", `{"start":"2024-06-03T00:00:00Z"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.Code, resp.Body.String())
	}
	if fixture.populate.lastOperation != "populate" {
		t.Fatalf("operation = %q, want populate", fixture.populate.lastOperation)
	}
	if !fixture.populate.lastStart.Equal(handlerNow) {
		t.Fatalf("start = %v, want %v", fixture.populate.lastStart, handlerNow)
	}

	var payload populateResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.ScheduleID != "sched-1" || len(payload.Created) != 1 || payload.Created[0].UserID != "alice" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestRouter_PopulateWithoutBodyDefaultsStart(t *testing.T) {
	fixture := newRouterFixture()

	resp := fixture.do(t, http.MethodPost, "/schedules/sched-1/populate", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.Code, resp.Body.String())
	}
	if !fixture.populate.lastStart.IsZero() {
		t.Fatalf("start = %v, want zero (service applies its own default)", fixture.populate.lastStart)
	}
}

func TestRouter_PopulateRejectsMalformedStart(t *testing.T) {
	fixture := newRouterFixture()

	resp := fixture.do(t, http.MethodPost, "/schedules/sched-1/populate", `{"start":"tomorrow"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
	if fixture.populate.lastOperation != "" {
		t.Fatal("malformed start must not reach the service")
	}
}

func TestRouter_PopulateInvalidStartIsBadRequest(t *testing.T) {
	fixture := newRouterFixture()
	fixture.populate.err = application.ErrInvalidStart

	resp := fixture.do(t, http.MethodPost, "/schedules/sched-1/populate", `{"start":"2024-01-01T00:00:00Z"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}

	var payload errorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.ErrorCode != "INVALID_START" {
		t.Fatalf("error_code = %q, want INVALID_START", payload.ErrorCode)
	}
}

func TestRouter_PreviewUsesQueryStart(t *testing.T) {
	fixture := newRouterFixture()

	resp := fixture.do(t, http.MethodGet, "/schedules/sched-1/preview?start=2024-06-03T00:00:00Z", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.Code, resp.Body.String())
	}
	if fixture.populate.lastOperation != "preview" {
		t.Fatalf("operation = %q, want preview", fixture.populate.lastOperation)
	}
	if !fixture.populate.lastStart.Equal(handlerNow) {
		t.Fatalf("start = %v, want %v", fixture.populate.lastStart, handlerNow)
	}
}

func TestRouter_UnknownScheduleIs404(t *testing.T) {
	fixture := newRouterFixture()
	fixture.populate.err = application.ErrNotFound

	resp := fixture.do(t, http.MethodPost, "/schedules/nope/populate", "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.Code)
	}
}

func TestRouter_CreateSchedule(t *testing.T) {
	fixture := newRouterFixture()

	resp := fixture.do(t, http.MethodPost, "/schedules", `{"team":"team-1","roster":"roster-1","role":"primary"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", resp.Code, resp.Body.String())
	}

	var payload scheduleDTO
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.ID != "sched-1" || payload.TeamID != "team-1" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestRouter_CreateScheduleValidationIs422(t *testing.T) {
	fixture := newRouterFixture()

	resp := fixture.do(t, http.MethodPost, "/schedules", `{"role":"primary"}`)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.Code)
	}

	var payload errorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, ok := payload.Errors["team"]; !ok {
		t.Fatalf("expected field error on team, got %+v", payload.Errors)
	}
}

func TestRouter_DeleteEvent(t *testing.T) {
	fixture := newRouterFixture()

	resp := fixture.do(t, http.MethodDelete, "/events/event-1", "")
	if resp.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.Code)
	}

	resp = fixture.do(t, http.MethodDelete, "/events/event-1", "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 on second delete", resp.Code)
	}
}

func TestRouter_OncallPathParsing(t *testing.T) {
	fixture := newRouterFixture()

	resp := fixture.do(t, http.MethodGet, "/teams/team-1/oncall/primary", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.Code, resp.Body.String())
	}
	if fixture.oncall.lastTeam != "team-1" || fixture.oncall.lastRole != "primary" {
		t.Fatalf("parsed team %q role %q", fixture.oncall.lastTeam, fixture.oncall.lastRole)
	}

	resp = fixture.do(t, http.MethodGet, "/teams/team-1/oncall", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d for roleless query", resp.Code)
	}
	if fixture.oncall.lastRole != "" {
		t.Fatalf("roleless query parsed role %q", fixture.oncall.lastRole)
	}

	resp = fixture.do(t, http.MethodGet, "/teams/team-1/unknown", "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d for unknown action, want 404", resp.Code)
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	fixture := newRouterFixture()

	resp := fixture.do(t, http.MethodDelete, "/schedules", "")
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.Code)
	}
	if allow := resp.Header().Get("Allow"); !strings.Contains(allow, http.MethodPost) {
		t.Fatalf("Allow header = %q", allow)
	}
}
