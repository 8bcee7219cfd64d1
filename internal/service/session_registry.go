package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zapdeck/session-server/internal/config"
	apperrors "github.com/zapdeck/session-server/internal/errors"
	"github.com/zapdeck/session-server/internal/model"
	"github.com/zapdeck/session-server/internal/repository"
	"github.com/zapdeck/session-server/internal/util"
	"github.com/zapdeck/session-server/internal/whatsapp"
)

// SessionRegistry owns every known session, its live transport client and its pending QR code.
// Status is always derived from the client and QR maps, never stored.
type SessionRegistry struct {
	store     repository.SessionRepository
	factory   whatsapp.ClientFactory
	projector *sessionProjector

	mu        sync.RWMutex
	sessions  []model.Session
	clients   map[string]whatsapp.Client
	pendingQR map[string]string
}

func NewSessionRegistry(
	store repository.SessionRepository,
	factory whatsapp.ClientFactory,
	publisher EventPublisher,
	qrFileDir string,
) *SessionRegistry {
	r := &SessionRegistry{
		store:     store,
		factory:   factory,
		clients:   make(map[string]whatsapp.Client),
		pendingQR: make(map[string]string),
	}
	r.projector = newSessionProjector(r, store, publisher, qrFileDir)
	return r
}

// NewSession builds a session with a generated id. An empty name falls back to the id.
func (r *SessionRegistry) NewSession(ownerID, name string) model.Session {
	now := time.Now()
	id := util.NewSessionID(ownerID, now)
	if name == "" {
		name = id
	}
	return model.Session{
		ID:        id,
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: now,
	}
}

// Create registers the session, persists it and starts its transport client.
// Nothing is left behind when any step fails.
func (r *SessionRegistry) Create(ctx context.Context, session model.Session) (whatsapp.Client, error) {
	if r.Exists(session.ID) {
		return nil, apperrors.AlreadyExists("Session")
	}

	pingCtx, cancel := context.WithTimeout(ctx, config.DBPingTimeout)
	err := r.store.Ping(pingCtx)
	cancel()
	if err != nil {
		return nil, apperrors.Unavailable("Session store", err)
	}

	client, err := r.factory.New(ctx, session.ID, r.projector)
	if err != nil {
		return nil, apperrors.Unavailable("WhatsApp transport", err)
	}

	r.mu.Lock()
	if r.existsLocked(session.ID) {
		r.mu.Unlock()
		r.destroy(ctx, session.ID, client)
		return nil, apperrors.AlreadyExists("Session")
	}
	r.sessions = append(r.sessions, session)
	r.clients[session.ID] = client
	r.mu.Unlock()

	_, err = r.store.Create(ctx, model.CreateSessionRecordParams{
		ID:        session.ID,
		Name:      session.Name,
		OwnerID:   session.OwnerID,
		CreatedAt: session.CreatedAt,
	})
	if err != nil {
		r.forget(session.ID)
		r.destroy(ctx, session.ID, client)
		return nil, apperrors.Unavailable("Session store", err)
	}

	if err := client.Initialize(ctx); err != nil {
		r.forget(session.ID)
		r.destroy(ctx, session.ID, client)
		if delErr := r.store.Delete(ctx, session.ID); delErr != nil {
			log.Error().Err(delErr).Str("sessionId", session.ID).Msg("failed to remove record of session that did not start")
		}
		return nil, apperrors.Unavailable("WhatsApp transport", err)
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("ownerId", session.OwnerID).
		Msg("session created")

	return client, nil
}

// Delete tears down the live client before removing the durable record.
func (r *SessionRegistry) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.RLock()
	known := r.indexLocked(id) >= 0
	client := r.clients[id]
	r.mu.RUnlock()

	if !known {
		return false, nil
	}

	if client != nil {
		r.destroy(ctx, id, client)
	}
	r.forget(id)

	if err := r.store.Delete(ctx, id); err != nil {
		log.Error().Err(err).Str("sessionId", id).Msg("failed to delete session record")
	}

	log.Info().Str("sessionId", id).Msg("session deleted")
	return true, nil
}

func (r *SessionRegistry) List() []model.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Session, len(r.sessions))
	copy(out, r.sessions)
	return out
}

func (r *SessionRegistry) ListByOwner(ownerID string) []model.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Session
	for _, s := range r.sessions {
		if s.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	return out
}

// CountByOwner counts known sessions, connected or not.
func (r *SessionRegistry) CountByOwner(ownerID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, s := range r.sessions {
		if s.OwnerID == ownerID {
			count++
		}
	}
	return count
}

func (r *SessionRegistry) FindByID(id string) (model.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexLocked(id); i >= 0 {
		return r.sessions[i], true
	}
	return model.Session{}, false
}

func (r *SessionRegistry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.existsLocked(id)
}

func (r *SessionRegistry) StatusOf(id string) model.StatusInfo {
	r.mu.RLock()
	_, hasClient := r.clients[id]
	_, hasQR := r.pendingQR[id]
	r.mu.RUnlock()

	status := model.SessionStatusDisconnected
	switch {
	case hasQR:
		status = model.SessionStatusWaitingQR
	case hasClient:
		status = model.SessionStatusConnected
	}
	return model.StatusInfo{
		Status:    status,
		IsActive:  hasClient,
		HasQRCode: hasQR,
	}
}

func (r *SessionRegistry) QRCode(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	qr, ok := r.pendingQR[id]
	return qr, ok
}

func (r *SessionRegistry) Client(id string) (whatsapp.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

// Evict drops a client whose transport is no longer usable and records the session as offline.
func (r *SessionRegistry) Evict(ctx context.Context, id, reason string) {
	client := r.dropClient(id)
	if client == nil {
		return
	}
	r.destroy(ctx, id, client)

	r.projector.persist(ctx, id, model.SessionUpdate{Ready: boolPtr(false), Connected: boolPtr(false)})
	r.projector.publish(ctx, id, "session.evicted", map[string]any{"reason": reason})

	log.Warn().Str("sessionId", id).Str("reason", reason).Msg("session evicted")
}

// Recover loads every persisted session and reconnects them one at a time.
// Only a failure to read the records is returned.
func (r *SessionRegistry) Recover(ctx context.Context) error {
	records, err := r.store.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("load session records: %w", err)
	}

	recovered := make([]model.Session, 0, len(records))
	r.mu.Lock()
	for i := range records {
		session := records[i].Session()
		if r.indexLocked(session.ID) >= 0 {
			continue
		}
		r.sessions = append(r.sessions, session)
		recovered = append(recovered, session)
	}
	r.mu.Unlock()

	connected := 0
	for _, session := range recovered {
		if err := r.reconnect(ctx, session.ID); err != nil {
			log.Error().Err(err).Str("sessionId", session.ID).Msg("failed to reconnect session")
			continue
		}
		connected++
	}

	log.Info().
		Int("sessions", len(recovered)).
		Int("reconnected", connected).
		Msg("session recovery finished")
	return nil
}

func (r *SessionRegistry) reconnect(ctx context.Context, id string) error {
	if _, live := r.Client(id); live {
		return nil
	}

	client, err := r.factory.New(ctx, id, r.projector)
	if err != nil {
		return fmt.Errorf("build client: %w", err)
	}

	r.mu.Lock()
	if _, live := r.clients[id]; live {
		r.mu.Unlock()
		r.destroy(ctx, id, client)
		return nil
	}
	r.clients[id] = client
	r.mu.Unlock()

	if err := client.Initialize(ctx); err != nil {
		r.dropClient(id)
		r.destroy(ctx, id, client)
		return fmt.Errorf("initialize: %w", err)
	}
	return nil
}

// Shutdown disconnects every live client without touching durable state, so linked devices resume on restart.
func (r *SessionRegistry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[string]whatsapp.Client)
	r.pendingQR = make(map[string]string)
	r.mu.Unlock()

	for id, client := range clients {
		r.destroy(ctx, id, client)
	}
	log.Info().Int("clients", len(clients)).Msg("session clients disconnected")
}

// setQR stores a QR code for a session with a live client.
func (r *SessionRegistry) setQR(id, qr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexLocked(id) < 0 {
		return false
	}
	if _, live := r.clients[id]; !live {
		return false
	}
	r.pendingQR[id] = qr
	return true
}

func (r *SessionRegistry) clearQR(id string) {
	r.mu.Lock()
	delete(r.pendingQR, id)
	r.mu.Unlock()
}

// dropClient removes the live client and its QR code, returning the removed client.
func (r *SessionRegistry) dropClient(id string) whatsapp.Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	client := r.clients[id]
	delete(r.clients, id)
	delete(r.pendingQR, id)
	return client
}

// forget removes every trace of a session from memory.
func (r *SessionRegistry) forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.clients, id)
	delete(r.pendingQR, id)
	if i := r.indexLocked(id); i >= 0 {
		r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
	}
}

func (r *SessionRegistry) destroy(ctx context.Context, id string, client whatsapp.Client) {
	if err := client.Destroy(ctx); err != nil {
		log.Warn().Err(err).Str("sessionId", id).Msg("failed to destroy session client")
	}
}

func (r *SessionRegistry) existsLocked(id string) bool {
	if _, ok := r.clients[id]; ok {
		return true
	}
	return r.indexLocked(id) >= 0
}

func (r *SessionRegistry) indexLocked(id string) int {
	for i := range r.sessions {
		if r.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

func boolPtr(b bool) *bool { return &b }
