package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zapdeck/session-server/internal/audit"
	apperrors "github.com/zapdeck/session-server/internal/errors"
	"github.com/zapdeck/session-server/internal/model"
	"github.com/zapdeck/session-server/internal/service"
)

type AdminOperations interface {
	GetStats(ctx context.Context) (*service.Stats, error)
	CreateOwner(ctx context.Context, displayName string, email *string, rateLimit int) (*model.Owner, string, error)
	RegenerateToken(ctx context.Context, ownerID string) (string, error)
	GetOwners(ctx context.Context, limit, offset int) ([]model.Owner, int, error)
	GetOwnerByID(ctx context.Context, id string) (*model.Owner, error)
}

type SubscriptionGranter interface {
	Grant(ctx context.Context, ownerID, planID string, months int) (*model.Subscription, error)
}

// SessionAdministration is the registry surface for operators, who see every owner's sessions.
type SessionAdministration interface {
	List() []model.Session
	StatusOf(id string) model.StatusInfo
	Delete(ctx context.Context, id string) (bool, error)
}

type AdminHandler struct {
	admin         AdminOperations
	subscriptions SubscriptionGranter
	sessions      SessionAdministration
}

func NewAdminHandler(admin AdminOperations, subscriptions SubscriptionGranter, sessions SessionAdministration) *AdminHandler {
	return &AdminHandler{
		admin:         admin,
		subscriptions: subscriptions,
		sessions:      sessions,
	}
}

// Routes expects the caller to mount it behind admin authentication.
func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/stats", h.Stats)

	// Owners
	r.Get("/owners", h.ListOwners)
	r.Post("/owners", h.CreateOwner)
	r.Get("/owners/{id}", h.GetOwner)
	r.Post("/owners/{id}/regenerate-token", h.RegenerateToken)

	// Subscriptions
	r.Post("/subscriptions", h.GrantSubscription)

	// Sessions
	r.Get("/sessions", h.ListSessions)
	r.Delete("/sessions/{id}", h.DeleteSession)

	return r
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.GetStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) ListOwners(w http.ResponseWriter, r *http.Request) {
	pagination := ParsePagination(r)
	owners, total, err := h.admin.GetOwners(r.Context(), pagination.Limit, pagination.Offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if owners == nil {
		owners = []model.Owner{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": owners,
		"total": total,
	})
}

type createOwnerRequest struct {
	DisplayName        string  `json:"displayName"`
	Email              *string `json:"email"`
	RateLimitPerMinute int     `json:"rateLimitPerMinute"`
}

func (h *AdminHandler) CreateOwner(w http.ResponseWriter, r *http.Request) {
	var req createOwnerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	owner, token, err := h.admin.CreateOwner(r.Context(), req.DisplayName, req.Email, req.RateLimitPerMinute)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventOwnerCreate, OwnerID: owner.ID, Actor: "admin"})
	writeJSON(w, http.StatusCreated, map[string]any{
		"owner": owner,
		"token": token,
	})
}

func (h *AdminHandler) GetOwner(w http.ResponseWriter, r *http.Request) {
	owner, err := h.admin.GetOwnerByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, owner)
}

func (h *AdminHandler) RegenerateToken(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "id")
	token, err := h.admin.RegenerateToken(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	audit.LogFromRequest(r, audit.Event{Type: audit.EventTokenRegenerate, OwnerID: ownerID, Actor: "admin"})
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type grantSubscriptionRequest struct {
	OwnerID string `json:"ownerId"`
	PlanID  string `json:"planId"`
	Months  int    `json:"months"`
}

func (h *AdminHandler) GrantSubscription(w http.ResponseWriter, r *http.Request) {
	var req grantSubscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		writeError(w, apperrors.MissingRequired("ownerId"))
		return
	}
	if strings.TrimSpace(req.PlanID) == "" {
		writeError(w, apperrors.MissingRequired("planId"))
		return
	}
	if req.Months == 0 {
		req.Months = 1
	}

	ctx := r.Context()
	if _, err := h.admin.GetOwnerByID(ctx, req.OwnerID); err != nil {
		writeError(w, err)
		return
	}

	sub, err := h.subscriptions.Grant(ctx, req.OwnerID, req.PlanID, req.Months)
	if err != nil {
		writeError(w, err)
		return
	}
	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventSubscriptionSet,
		OwnerID: req.OwnerID,
		Actor:   "admin",
		Details: map[string]interface{}{"planId": req.PlanID, "months": req.Months, "devices": sub.Devices},
	})
	writeJSON(w, http.StatusCreated, sub)
}

func (h *AdminHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessions.List()
	views := make([]model.SessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, sessionView(s, h.sessions.StatusOf(s.ID)))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": views,
		"total": len(views),
	})
}

func (h *AdminHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	deleted, err := h.sessions.Delete(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		writeError(w, apperrors.NotFound("Session"))
		return
	}
	audit.LogFromRequest(r, audit.Event{Type: audit.EventSessionDelete, SessionID: sessionID, Actor: "admin"})
	w.WriteHeader(http.StatusNoContent)
}
