package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/zapdeck/session-server/internal/errors"
	"github.com/zapdeck/session-server/internal/jobs"
	"github.com/zapdeck/session-server/internal/model"
	"github.com/zapdeck/session-server/internal/service"
)

type ScheduleManager interface {
	Schedule(ctx context.Context, ownerID string, params service.ScheduleParams) (*model.ScheduledMessage, error)
	List(ctx context.Context, ownerID string, status *model.ScheduledStatus, limit, offset int) ([]model.ScheduledMessage, int, error)
	Cancel(ctx context.Context, ownerID, id string) error
	Update(ctx context.Context, ownerID, id string, params model.UpdateScheduledMessageParams) (*model.ScheduledMessage, error)
}

type SchedulerStatusReporter interface {
	Status() jobs.SchedulerStatus
}

type ScheduledHandler struct {
	schedules ScheduleManager
	scheduler SchedulerStatusReporter
}

func NewScheduledHandler(schedules ScheduleManager, scheduler SchedulerStatusReporter) *ScheduledHandler {
	return &ScheduledHandler{
		schedules: schedules,
		scheduler: scheduler,
	}
}

func (h *ScheduledHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/scheduler", h.SchedulerStatus)
	r.Patch("/{messageId}", h.Update)
	r.Delete("/{messageId}", h.Cancel)

	return r
}

type scheduleRequest struct {
	SessionID       string    `json:"sessionId"`
	RecipientNumber string    `json:"recipientNumber"`
	RecipientName   *string   `json:"recipientName"`
	TemplateID      *string   `json:"templateId"`
	Content         string    `json:"content"`
	ScheduledAt     time.Time `json:"scheduledAt"`
}

// POST /v1/scheduled-messages
func (h *ScheduledHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == nil {
		return
	}

	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	msg, err := h.schedules.Schedule(r.Context(), owner.ID, service.ScheduleParams{
		SessionID:       req.SessionID,
		RecipientNumber: req.RecipientNumber,
		RecipientName:   req.RecipientName,
		TemplateID:      req.TemplateID,
		Content:         req.Content,
		ScheduledAt:     req.ScheduledAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// GET /v1/scheduled-messages?status=pending&limit=50&offset=0
func (h *ScheduledHandler) List(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == nil {
		return
	}

	var status *model.ScheduledStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := model.ScheduledStatus(raw)
		if !s.Valid() {
			writeError(w, apperrors.ValidationError("Invalid status filter"))
			return
		}
		status = &s
	}

	pagination := ParsePagination(r)
	msgs, total, err := h.schedules.List(r.Context(), owner.ID, status, pagination.Limit, pagination.Offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if msgs == nil {
		msgs = []model.ScheduledMessage{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages": msgs,
		"total":    total,
		"limit":    pagination.Limit,
		"offset":   pagination.Offset,
	})
}

type updateScheduleRequest struct {
	RecipientNumber *string    `json:"recipientNumber"`
	RecipientName   *string    `json:"recipientName"`
	Content         *string    `json:"content"`
	ScheduledAt     *time.Time `json:"scheduledAt"`
}

// PATCH /v1/scheduled-messages/{messageId}
func (h *ScheduledHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == nil {
		return
	}

	var req updateScheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	msg, err := h.schedules.Update(r.Context(), owner.ID, chi.URLParam(r, "messageId"), model.UpdateScheduledMessageParams{
		RecipientNumber: req.RecipientNumber,
		RecipientName:   req.RecipientName,
		Content:         req.Content,
		ScheduledAt:     req.ScheduledAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

// DELETE /v1/scheduled-messages/{messageId}
func (h *ScheduledHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == nil {
		return
	}

	if err := h.schedules.Cancel(r.Context(), owner.ID, chi.URLParam(r, "messageId")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GET /v1/scheduled-messages/scheduler
func (h *ScheduledHandler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.scheduler.Status())
}
