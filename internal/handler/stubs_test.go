package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/zapdeck/session-server/internal/middleware"
	"github.com/zapdeck/session-server/internal/model"
	"github.com/zapdeck/session-server/internal/whatsapp"
)

var (
	ownerA = &model.Owner{ID: "owner-a", DisplayName: "A"}
	ownerB = &model.Owner{ID: "owner-b", DisplayName: "B"}
)

// stubSessions is an in-memory SessionManager with fixed statuses and QR codes.
type stubSessions struct {
	mu        sync.Mutex
	sessions  map[string]model.Session
	statuses  map[string]model.SessionStatus
	qrs       map[string]string
	createErr error
	deleteErr error
	created   []model.Session
	deleted   []string
}

func newStubSessions(sessions ...model.Session) *stubSessions {
	s := &stubSessions{
		sessions: make(map[string]model.Session),
		statuses: make(map[string]model.SessionStatus),
		qrs:      make(map[string]string),
	}
	for _, session := range sessions {
		s.sessions[session.ID] = session
	}
	return s
}

func (s *stubSessions) NewSession(ownerID, name string) model.Session {
	id := ownerID + "_new"
	if name == "" {
		name = id
	}
	return model.Session{ID: id, Name: name, OwnerID: ownerID}
}

func (s *stubSessions) Create(_ context.Context, session model.Session) (whatsapp.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.sessions[session.ID] = session
	s.created = append(s.created, session)
	return nil, nil
}

func (s *stubSessions) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return false, s.deleteErr
	}
	if _, ok := s.sessions[id]; !ok {
		return false, nil
	}
	delete(s.sessions, id)
	s.deleted = append(s.deleted, id)
	return true, nil
}

func (s *stubSessions) List() []model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *stubSessions) ListByOwner(ownerID string) []model.Session {
	var out []model.Session
	for _, session := range s.List() {
		if session.OwnerID == ownerID {
			out = append(out, session)
		}
	}
	return out
}

func (s *stubSessions) FindByID(id string) (model.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	return session, ok
}

func (s *stubSessions) StatusOf(id string) model.StatusInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.statuses[id]
	if !ok {
		status = model.SessionStatusDisconnected
	}
	_, hasQR := s.qrs[id]
	return model.StatusInfo{
		Status:    status,
		IsActive:  status != model.SessionStatusDisconnected,
		HasQRCode: hasQR,
	}
}

func (s *stubSessions) QRCode(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	qr, ok := s.qrs[id]
	return qr, ok
}

// serve routes req through router with owner attached, as the auth middleware would.
func serve(router chi.Router, owner *model.Owner, req *http.Request) *httptest.ResponseRecorder {
	if owner != nil {
		req = req.WithContext(middleware.WithOwner(req.Context(), owner))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}
