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

type scheduleService interface {
	CreateSchedule(ctx context.Context, input application.CreateScheduleInput) (persistence.Schedule, error)
	GetSchedule(ctx context.Context, id string) (persistence.Schedule, error)
	ListSchedules(ctx context.Context) ([]persistence.Schedule, error)
	ReplaceTemplate(ctx context.Context, scheduleID string, period time.Duration, segments []persistence.Segment) error
	SetOrder(ctx context.Context, scheduleID string, userIDs []string) error
}

type populateService interface {
	Populate(ctx context.Context, scheduleID string, start time.Time) (application.PopulateOutcome, error)
	Preview(ctx context.Context, scheduleID string, start time.Time) (application.PopulateOutcome, error)
}

type ScheduleHandler struct {
	schedules scheduleService
	populate  populateService
	responder responder
}

func NewScheduleHandler(schedules scheduleService, populate populateService, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules, populate: populate, responder: newResponder(logger)}
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	schedule, err := h.schedules.CreateSchedule(r.Context(), req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toScheduleDTO(schedule))
}

func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	scheduleID, ok := ScheduleIDFromContext(r.Context())
	if !ok || strings.TrimSpace(scheduleID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidScheduleID)
		return
	}

	schedule, err := h.schedules.GetSchedule(r.Context(), scheduleID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toScheduleDTO(schedule))
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.schedules.ListSchedules(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]scheduleDTO, 0, len(schedules))
	for _, schedule := range schedules {
		dtos = append(dtos, toScheduleDTO(schedule))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSchedulesResponse{Schedules: dtos})
}

func (h *ScheduleHandler) ReplaceTemplate(w http.ResponseWriter, r *http.Request) {
	scheduleID, ok := ScheduleIDFromContext(r.Context())
	if !ok || strings.TrimSpace(scheduleID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidScheduleID)
		return
	}

	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	period := time.Duration(req.PeriodSeconds) * time.Second
	if err := h.schedules.ReplaceTemplate(r.Context(), scheduleID, period, toSegments(req.Segments)); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *ScheduleHandler) SetOrder(w http.ResponseWriter, r *http.Request) {
	scheduleID, ok := ScheduleIDFromContext(r.Context())
	if !ok || strings.TrimSpace(scheduleID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidScheduleID)
		return
	}

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	if err := h.schedules.SetOrder(r.Context(), scheduleID, req.Order); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *ScheduleHandler) Populate(w http.ResponseWriter, r *http.Request) {
	scheduleID, ok := ScheduleIDFromContext(r.Context())
	if !ok || strings.TrimSpace(scheduleID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidScheduleID)
		return
	}

	var req populateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
	}

	start, err := parseStart(req.Start)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidStartParam)
		return
	}

	outcome, err := h.populate.Populate(r.Context(), scheduleID, start)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.responder.logger, "schedules", "populate", "schedule", scheduleID).
		InfoContext(r.Context(), "schedule populated", "created", len(outcome.Created))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toPopulateResponse(outcome))
}

func (h *ScheduleHandler) Preview(w http.ResponseWriter, r *http.Request) {
	scheduleID, ok := ScheduleIDFromContext(r.Context())
	if !ok || strings.TrimSpace(scheduleID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidScheduleID)
		return
	}

	start, err := parseStart(r.URL.Query().Get("start"))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidStartParam)
		return
	}

	outcome, err := h.populate.Preview(r.Context(), scheduleID, start)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toPopulateResponse(outcome))
}

func parseStart(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, value)
}

type createScheduleRequest struct {
	TeamID        string       `json:"team"`
	RosterID      string       `json:"roster"`
	Role          string       `json:"role"`
	Strategy      string       `json:"strategy"`
	HorizonDays   int          `json:"horizon_days"`
	PeriodSeconds int64        `json:"period_seconds"`
	Segments      []segmentDTO `json:"segments"`
	Order         []string     `json:"order"`
}

func (req createScheduleRequest) toInput() application.CreateScheduleInput {
	return application.CreateScheduleInput{
		TeamID:      req.TeamID,
		RosterID:    req.RosterID,
		Role:        req.Role,
		Strategy:    req.Strategy,
		HorizonDays: req.HorizonDays,
		Period:      time.Duration(req.PeriodSeconds) * time.Second,
		Segments:    toSegments(req.Segments),
		Order:       req.Order,
	}
}

type templateRequest struct {
	PeriodSeconds int64        `json:"period_seconds"`
	Segments      []segmentDTO `json:"segments"`
}

type orderRequest struct {
	Order []string `json:"order"`
}

type populateRequest struct {
	Start string `json:"start"`
}

type segmentDTO struct {
	OffsetSeconds   int64 `json:"offset_seconds"`
	DurationSeconds int64 `json:"duration_seconds"`
}

func toSegments(dtos []segmentDTO) []persistence.Segment {
	segments := make([]persistence.Segment, 0, len(dtos))
	for _, dto := range dtos {
		segments = append(segments, persistence.Segment{
			Offset:   time.Duration(dto.OffsetSeconds) * time.Second,
			Duration: time.Duration(dto.DurationSeconds) * time.Second,
		})
	}
	return segments
}

type scheduleDTO struct {
	ID                string       `json:"id"`
	TeamID            string       `json:"team"`
	RosterID          string       `json:"roster"`
	Role              string       `json:"role"`
	Strategy          string       `json:"strategy"`
	HorizonDays       int          `json:"horizon_days"`
	AdvancedMode      bool         `json:"advanced_mode"`
	PeriodSeconds     int64        `json:"period_seconds"`
	Segments          []segmentDTO `json:"segments"`
	LastScheduledUser *string      `json:"last_scheduled_user,omitempty"`
}

func toScheduleDTO(schedule persistence.Schedule) scheduleDTO {
	segments := make([]segmentDTO, 0, len(schedule.Segments))
	for _, segment := range schedule.Segments {
		segments = append(segments, segmentDTO{
			OffsetSeconds:   int64(segment.Offset / time.Second),
			DurationSeconds: int64(segment.Duration / time.Second),
		})
	}
	return scheduleDTO{
		ID:                schedule.ID,
		TeamID:            schedule.TeamID,
		RosterID:          schedule.RosterID,
		Role:              schedule.Role,
		Strategy:          schedule.Strategy,
		HorizonDays:       schedule.HorizonDays,
		AdvancedMode:      schedule.AdvancedMode,
		PeriodSeconds:     int64(schedule.Period / time.Second),
		Segments:          segments,
		LastScheduledUser: schedule.LastScheduledUserID,
	}
}

type listSchedulesResponse struct {
	Schedules []scheduleDTO `json:"schedules"`
}

type windowDTO struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type populateResponse struct {
	ScheduleID string      `json:"schedule_id"`
	Start      time.Time   `json:"start"`
	Created    []eventDTO  `json:"created"`
	Unassigned []windowDTO `json:"unassigned,omitempty"`
}

func toPopulateResponse(outcome application.PopulateOutcome) populateResponse {
	created := make([]eventDTO, 0, len(outcome.Created))
	for _, event := range outcome.Created {
		created = append(created, toEventDTO(event))
	}
	unassigned := make([]windowDTO, 0, len(outcome.Unassigned))
	for _, window := range outcome.Unassigned {
		unassigned = append(unassigned, windowDTO{Start: window.Start, End: window.End})
	}
	return populateResponse{
		ScheduleID: outcome.ScheduleID,
		Start:      outcome.Start,
		Created:    created,
		Unassigned: unassigned,
	}
}
