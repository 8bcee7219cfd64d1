package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/zapdeck/session-server/internal/config"
	"github.com/zapdeck/session-server/internal/model"
	"github.com/zapdeck/session-server/internal/repository"
	"github.com/zapdeck/session-server/internal/sse"
	"github.com/zapdeck/session-server/internal/whatsapp"
)

// EventPublisher fans lifecycle events out to an owner's live dashboards.
type EventPublisher interface {
	Publish(ctx context.Context, ownerID string, event sse.Event) error
}

type transition func(ctx context.Context, sessionID, payload string)

// sessionProjector applies transport events to the registry and the durable record.
// It never returns errors to the transport.
type sessionProjector struct {
	registry    *SessionRegistry
	store       repository.SessionRepository
	publisher   EventPublisher
	qrFileDir   string
	transitions map[whatsapp.EventKind]transition
}

func newSessionProjector(
	registry *SessionRegistry,
	store repository.SessionRepository,
	publisher EventPublisher,
	qrFileDir string,
) *sessionProjector {
	p := &sessionProjector{
		registry:  registry,
		store:     store,
		publisher: publisher,
		qrFileDir: qrFileDir,
	}
	p.transitions = map[whatsapp.EventKind]transition{
		whatsapp.EventQR:            p.onQR,
		whatsapp.EventReady:         p.onReady,
		whatsapp.EventAuthenticated: p.onAuthenticated,
		whatsapp.EventAuthFailure:   p.onAuthFailure,
		whatsapp.EventDisconnected:  p.onDisconnected,
	}
	return p
}

func (p *sessionProjector) HandleEvent(evt whatsapp.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Str("sessionId", evt.SessionID).
				Str("event", string(evt.Kind)).
				Msg("session event handler panicked")
		}
	}()

	t, ok := p.transitions[evt.Kind]
	if !ok {
		log.Debug().Str("event", string(evt.Kind)).Msg("ignoring unknown session event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.StoreWriteTimeout)
	defer cancel()

	log.Debug().
		Str("sessionId", evt.SessionID).
		Str("event", string(evt.Kind)).
		Msg("session event")

	t(ctx, evt.SessionID, evt.Payload)
}

func (p *sessionProjector) onQR(ctx context.Context, sessionID, payload string) {
	qr, err := whatsapp.RenderQR(payload)
	if err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("failed to render qr code")
		return
	}

	if !p.registry.setQR(sessionID, qr) {
		log.Debug().Str("sessionId", sessionID).Msg("qr code without a live client dropped")
		return
	}

	p.persist(ctx, sessionID, model.SessionUpdate{
		QRCode:    &qr,
		Ready:     boolPtr(false),
		Connected: boolPtr(false),
	})
	p.writeQRFile(sessionID, qr)
	p.publish(ctx, sessionID, "session.qr", map[string]any{"qrCode": qr})

	log.Info().Str("sessionId", sessionID).Msg("qr code issued")
}

func (p *sessionProjector) onReady(ctx context.Context, sessionID, _ string) {
	p.registry.clearQR(sessionID)
	p.persist(ctx, sessionID, model.SessionUpdate{
		Ready:     boolPtr(true),
		Connected: boolPtr(true),
		ClearQR:   true,
	})
	p.publish(ctx, sessionID, "session.ready", nil)

	log.Info().Str("sessionId", sessionID).Msg("session ready")
}

func (p *sessionProjector) onAuthenticated(ctx context.Context, sessionID, jid string) {
	upd := model.SessionUpdate{Connected: boolPtr(true)}
	if jid != "" {
		upd.JID = &jid
	}
	p.persist(ctx, sessionID, upd)
	p.publish(ctx, sessionID, "session.authenticated", map[string]any{"jid": jid})

	log.Info().Str("sessionId", sessionID).Str("jid", jid).Msg("session authenticated")
}

func (p *sessionProjector) onAuthFailure(ctx context.Context, sessionID, reason string) {
	p.persist(ctx, sessionID, model.SessionUpdate{
		Ready:     boolPtr(false),
		Connected: boolPtr(false),
	})
	p.release(sessionID)
	p.publish(ctx, sessionID, "session.auth_failure", map[string]any{"reason": reason})

	log.Warn().Str("sessionId", sessionID).Str("reason", reason).Msg("session authentication failed")
}

func (p *sessionProjector) onDisconnected(ctx context.Context, sessionID, reason string) {
	p.release(sessionID)
	p.persist(ctx, sessionID, model.SessionUpdate{
		Ready:     boolPtr(false),
		Connected: boolPtr(false),
	})
	p.publish(ctx, sessionID, "session.disconnected", map[string]any{"reason": reason})

	log.Warn().Str("sessionId", sessionID).Str("reason", reason).Msg("session disconnected")
}

// release drops the client from the registry and tears it down off the transport's event goroutine.
func (p *sessionProjector) release(sessionID string) {
	client := p.registry.dropClient(sessionID)
	if client == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.StoreWriteTimeout)
		defer cancel()
		p.registry.destroy(ctx, sessionID, client)
	}()
}

func (p *sessionProjector) persist(ctx context.Context, sessionID string, upd model.SessionUpdate) {
	if err := p.store.Update(ctx, sessionID, upd); err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("failed to persist session state")
	}
}

func (p *sessionProjector) publish(ctx context.Context, sessionID, eventType string, data map[string]any) {
	if p.publisher == nil {
		return
	}
	session, ok := p.registry.FindByID(sessionID)
	if !ok {
		return
	}

	if data == nil {
		data = make(map[string]any)
	}
	data["sessionId"] = sessionID
	data["status"] = p.registry.StatusOf(sessionID).Status

	payload, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("failed to encode session event")
		return
	}

	if err := p.publisher.Publish(ctx, session.OwnerID, sse.Event{Type: eventType, Data: payload}); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Str("event", eventType).Msg("failed to publish session event")
	}
}

func (p *sessionProjector) writeQRFile(sessionID, qr string) {
	if p.qrFileDir == "" {
		return
	}
	path := filepath.Join(p.qrFileDir, "qr-"+sessionID+".txt")
	if err := os.WriteFile(path, []byte(qr), 0o600); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to write qr file")
	}
}
