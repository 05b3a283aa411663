package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/oncall-scheduler/internal/application"
)

type oncallService interface {
	CurrentOncall(ctx context.Context, teamID, role string) ([]application.OncallEntry, error)
}

type OncallHandler struct {
	service   oncallService
	responder responder
}

func NewOncallHandler(service oncallService, logger *slog.Logger) *OncallHandler {
	return &OncallHandler{service: service, responder: newResponder(logger)}
}

func (h *OncallHandler) Current(w http.ResponseWriter, r *http.Request, teamID, role string) {
	if strings.TrimSpace(teamID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidTeamID)
		return
	}

	entries, err := h.service.CurrentOncall(r.Context(), teamID, role)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]oncallEntryDTO, 0, len(entries))
	for _, entry := range entries {
		dtos = append(dtos, oncallEntryDTO{
			UserID: entry.UserID,
			TeamID: entry.TeamID,
			Role:   entry.Role,
			Start:  entry.Start,
			End:    entry.End,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, oncallResponse{Oncall: dtos})
}

type oncallEntryDTO struct {
	UserID string    `json:"user"`
	TeamID string    `json:"team"`
	Role   string    `json:"role"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

type oncallResponse struct {
	Oncall []oncallEntryDTO `json:"oncall"`
}
