package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/zapdeck/session-server/internal/errors"
	"github.com/zapdeck/session-server/internal/model"
	"github.com/zapdeck/session-server/internal/sse"
)

type EventSubscriber interface {
	Subscribe(ownerID string) *sse.Client
	Unsubscribe(client *sse.Client)
}

// EventsHandler streams an owner's session lifecycle events over SSE.
type EventsHandler struct {
	broker            EventSubscriber
	sessions          SessionManager
	heartbeatInterval time.Duration
}

func NewEventsHandler(broker EventSubscriber, sessions SessionManager) *EventsHandler {
	return &EventsHandler{
		broker:            broker,
		sessions:          sessions,
		heartbeatInterval: sse.HeartbeatInterval,
	}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == nil {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperrors.Internal("Streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(owner.ID)
	defer h.broker.Unsubscribe(client)

	log.Info().Str("ownerId", owner.ID).Msg("sse connection established")

	// The snapshot lets a dashboard render current state before the first transition arrives.
	sessions := h.sessions.ListByOwner(owner.ID)
	views := make([]model.SessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, sessionView(s, h.sessions.StatusOf(s.ID)))
	}
	if err := h.sendEvent(w, flusher, "connected", map[string]any{
		"ownerId":  owner.ID,
		"sessions": views,
	}); err != nil {
		log.Debug().Err(err).Str("ownerId", owner.ID).Msg("failed to send connected event")
		return
	}

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("ownerId", owner.ID).Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().Str("ownerId", owner.ID).Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().Str("ownerId", owner.ID).Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
