package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zapdeck/session-server/internal/audit"
	apperrors "github.com/zapdeck/session-server/internal/errors"
	"github.com/zapdeck/session-server/internal/model"
	"github.com/zapdeck/session-server/internal/util"
	"github.com/zapdeck/session-server/internal/whatsapp"
)

// SessionManager is the registry surface the HTTP layer needs.
type SessionManager interface {
	NewSession(ownerID, name string) model.Session
	Create(ctx context.Context, session model.Session) (whatsapp.Client, error)
	Delete(ctx context.Context, id string) (bool, error)
	ListByOwner(ownerID string) []model.Session
	FindByID(id string) (model.Session, bool)
	StatusOf(id string) model.StatusInfo
	QRCode(id string) (string, bool)
}

// SessionAllowanceChecker gates session creation on the owner's plan.
type SessionAllowanceChecker interface {
	CanCreateSession(ctx context.Context, ownerID string) (*model.SessionAllowance, error)
}

type SessionHandler struct {
	sessions  SessionManager
	allowance SessionAllowanceChecker
}

func NewSessionHandler(sessions SessionManager, allowance SessionAllowanceChecker) *SessionHandler {
	return &SessionHandler{
		sessions:  sessions,
		allowance: allowance,
	}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateSession)
	r.Get("/", h.ListSessions)
	r.Get("/{sessionId}", h.GetSession)
	r.Delete("/{sessionId}", h.DeleteSession)
	r.Get("/{sessionId}/qr", h.GetQR)
	r.Get("/{sessionId}/qr/base64", h.GetQRBase64)
	r.Get("/{sessionId}/qr/image", h.GetQRImage)

	return r
}

type createSessionRequest struct {
	Name string `json:"name"`
}

// POST /v1/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == nil {
		return
	}

	var req createSessionRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}

	ctx := r.Context()
	allowance, err := h.allowance.CanCreateSession(ctx, owner.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !allowance.CanCreate {
		log.Info().
			Str("ownerId", owner.ID).
			Str("reason", allowance.Reason).
			Msg("session creation blocked by plan")
		writeError(w, apperrors.PlanLimitReached(allowance.CurrentCount, allowance.MaxDevices))
		return
	}

	session := h.sessions.NewSession(owner.ID, req.Name)
	if _, err := h.sessions.Create(ctx, session); err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventSessionCreate, OwnerID: owner.ID, SessionID: session.ID})
	writeJSON(w, http.StatusCreated, sessionView(session, h.sessions.StatusOf(session.ID)))
}

// GET /v1/sessions
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == nil {
		return
	}

	sessions := h.sessions.ListByOwner(owner.ID)
	views := make([]model.SessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, sessionView(s, h.sessions.StatusOf(s.ID)))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": views,
		"total":    len(views),
	})
}

// GET /v1/sessions/{sessionId}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, sessionView(session, h.sessions.StatusOf(session.ID)))
}

// DELETE /v1/sessions/{sessionId}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	deleted, err := h.sessions.Delete(r.Context(), session.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		writeError(w, apperrors.NotFound("Session"))
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventSessionDelete, OwnerID: session.OwnerID, SessionID: session.ID})
	w.WriteHeader(http.StatusNoContent)
}

// GET /v1/sessions/{sessionId}/qr
func (h *SessionHandler) GetQR(w http.ResponseWriter, r *http.Request) {
	session, qr, ok := h.pendingQR(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": session.ID,
		"qrCode":    qr,
	})
}

// GET /v1/sessions/{sessionId}/qr/base64
func (h *SessionHandler) GetQRBase64(w http.ResponseWriter, r *http.Request) {
	session, qr, ok := h.pendingQR(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": session.ID,
		"base64":    whatsapp.QRBase64(qr),
		"mimeType":  "image/png",
	})
}

// GET /v1/sessions/{sessionId}/qr/image
func (h *SessionHandler) GetQRImage(w http.ResponseWriter, r *http.Request) {
	session, qr, ok := h.pendingQR(w, r)
	if !ok {
		return
	}

	png, err := whatsapp.QRPNG(qr)
	if err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("stored qr is not a png data uri")
		writeError(w, apperrors.Internal("QR code could not be decoded"))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// ownedSession resolves the path session and hides sessions of other owners behind 404.
func (h *SessionHandler) ownedSession(w http.ResponseWriter, r *http.Request) (model.Session, bool) {
	owner := requireOwner(w, r)
	if owner == nil {
		return model.Session{}, false
	}

	sessionID := chi.URLParam(r, "sessionId")
	if !util.IsValidSessionID(sessionID) {
		writeError(w, apperrors.ValidationError("Invalid session id"))
		return model.Session{}, false
	}

	session, ok := h.sessions.FindByID(sessionID)
	if !ok || session.OwnerID != owner.ID {
		writeError(w, apperrors.NotFound("Session"))
		return model.Session{}, false
	}
	return session, true
}

func (h *SessionHandler) pendingQR(w http.ResponseWriter, r *http.Request) (model.Session, string, bool) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return model.Session{}, "", false
	}

	qr, ok := h.sessions.QRCode(session.ID)
	if !ok {
		writeError(w, apperrors.QRCodeNotAvailable())
		return model.Session{}, "", false
	}
	return session, qr, true
}
