package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/oncall-scheduler/internal/application"
	"github.com/example/oncall-scheduler/internal/persistence"
)

type eventService interface {
	CreateEvent(ctx context.Context, input application.CreateEventInput) (persistence.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error)
}

type EventHandler struct {
	service   eventService
	responder responder
}

func NewEventHandler(service eventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{service: service, responder: newResponder(logger)}
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	event, err := h.service.CreateEvent(r.Context(), application.CreateEventInput{
		TeamID: req.TeamID,
		UserID: req.UserID,
		Role:   req.Role,
		Start:  req.Start,
		End:    req.End,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toEventDTO(event))
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	eventID, ok := EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	if err := h.service.DeleteEvent(r.Context(), eventID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := buildEventFilter(r)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	events, err := h.service.ListEvents(r.Context(), filter)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]eventDTO, 0, len(events))
	for _, event := range events {
		dtos = append(dtos, toEventDTO(event))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listEventsResponse{Events: dtos})
}

func buildEventFilter(r *http.Request) (persistence.EventFilter, error) {
	query := r.URL.Query()
	filter := persistence.EventFilter{
		TeamID: query.Get("team"),
		UserID: query.Get("user"),
		Role:   query.Get("role"),
	}

	if raw := query.Get("start_before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return persistence.EventFilter{}, errInvalidStartParam
		}
		filter.StartBefore = &t
	}
	if raw := query.Get("end_after"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return persistence.EventFilter{}, errInvalidStartParam
		}
		filter.EndAfter = &t
	}
	return filter, nil
}

type eventRequest struct {
	TeamID string    `json:"team"`
	UserID string    `json:"user"`
	Role   string    `json:"role"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

type eventDTO struct {
	ID         string    `json:"id"`
	TeamID     string    `json:"team"`
	ScheduleID *string   `json:"schedule_id,omitempty"`
	UserID     string    `json:"user"`
	Role       string    `json:"role"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	LinkID     *string   `json:"link_id,omitempty"`
}

func toEventDTO(event persistence.Event) eventDTO {
	return eventDTO{
		ID:         event.ID,
		TeamID:     event.TeamID,
		ScheduleID: event.ScheduleID,
		UserID:     event.UserID,
		Role:       event.Role,
		Start:      event.Start,
		End:        event.End,
		LinkID:     event.LinkID,
	}
}

type listEventsResponse struct {
	Events []eventDTO `json:"events"`
}
