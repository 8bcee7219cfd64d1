package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/zapdeck/session-server/internal/errors"
	"github.com/zapdeck/session-server/internal/model"
	"github.com/zapdeck/session-server/internal/util"
)

// MessageSender delivers text through a session's live client.
type MessageSender interface {
	Send(ctx context.Context, sessionID, destination, text string) (*model.SentMessage, error)
}

type MessageHandler struct {
	sessions SessionManager
	sender   MessageSender
}

func NewMessageHandler(sessions SessionManager, sender MessageSender) *MessageHandler {
	return &MessageHandler{
		sessions: sessions,
		sender:   sender,
	}
}

func (h *MessageHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.SendMessage)
	r.Get("/sessions/{sessionId}", h.GetSessionReadiness)

	return r
}

type sendMessageRequest struct {
	SessionID string `json:"sessionId"`
	To        string `json:"to"`
	Message   string `json:"message"`
}

// POST /v1/messages
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == nil {
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	switch {
	case strings.TrimSpace(req.SessionID) == "":
		writeError(w, apperrors.MissingRequired("sessionId"))
		return
	case strings.TrimSpace(req.To) == "":
		writeError(w, apperrors.MissingRequired("to"))
		return
	case strings.TrimSpace(req.Message) == "":
		writeError(w, apperrors.MissingRequired("message"))
		return
	}

	session, ok := h.sessions.FindByID(req.SessionID)
	if !ok || session.OwnerID != owner.ID {
		writeError(w, apperrors.NotFound("Session"))
		return
	}

	status := h.sessions.StatusOf(session.ID)
	if status.Status != model.SessionStatusConnected {
		writeError(w, apperrors.SessionNotConnected(session.ID).
			WithDetails(map[string]any{"status": status.Status}))
		return
	}

	// A client hanging up must not abort a send already handed to the transport.
	sent, err := h.sender.Send(context.WithoutCancel(r.Context()), session.ID, req.To, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"messageId": sent.ID,
		"to":        sent.To,
		"timestamp": sent.Timestamp,
		"ack":       sent.DeliveryAck,
	})
}

// GET /v1/messages/sessions/{sessionId}
func (h *MessageHandler) GetSessionReadiness(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == nil {
		return
	}

	sessionID := chi.URLParam(r, "sessionId")
	if !util.IsValidSessionID(sessionID) {
		writeError(w, apperrors.ValidationError("Invalid session id"))
		return
	}

	session, ok := h.sessions.FindByID(sessionID)
	if !ok || session.OwnerID != owner.ID {
		writeError(w, apperrors.NotFound("Session"))
		return
	}

	status := h.sessions.StatusOf(session.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": session.ID,
		"name":      session.Name,
		"status":    status.Status,
		"isActive":  status.IsActive,
		"canSend":   status.Status == model.SessionStatusConnected,
	})
}
