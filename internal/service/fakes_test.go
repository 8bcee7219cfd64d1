package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zapdeck/session-server/internal/model"
	"github.com/zapdeck/session-server/internal/sse"
	"github.com/zapdeck/session-server/internal/whatsapp"
)

// memSessionStore is an in-memory SessionRepository.
type memSessionStore struct {
	mu        sync.Mutex
	records   map[string]*model.SessionRecord
	order     []string
	pingErr   error
	createErr error
	updateErr error
	listErr   error
	updates   []model.SessionUpdate
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{records: make(map[string]*model.SessionRecord)}
}

func (s *memSessionStore) Ping(ctx context.Context) error { return s.pingErr }

func (s *memSessionStore) FindAll(ctx context.Context) ([]model.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]model.SessionRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.records[id])
	}
	return out, nil
}

func (s *memSessionStore) FindByOwner(ctx context.Context, ownerID string) ([]model.SessionRecord, error) {
	all, err := s.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.SessionRecord
	for _, r := range all {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memSessionStore) FindByID(ctx context.Context, id string) (*model.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *memSessionStore) Create(ctx context.Context, params model.CreateSessionRecordParams) (*model.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	name := params.Name
	rec := &model.SessionRecord{
		ID:        params.ID,
		Name:      &name,
		OwnerID:   params.OwnerID,
		CreatedAt: params.CreatedAt,
		UpdatedAt: params.CreatedAt,
	}
	if _, ok := s.records[params.ID]; !ok {
		s.order = append(s.order, params.ID)
	}
	s.records[params.ID] = rec
	cp := *rec
	return &cp, nil
}

func (s *memSessionStore) Update(ctx context.Context, id string, upd model.SessionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, upd)
	if s.updateErr != nil {
		return s.updateErr
	}
	rec, ok := s.records[id]
	if !ok {
		return nil
	}
	if upd.Ready != nil {
		rec.Ready = *upd.Ready
	}
	if upd.Connected != nil {
		rec.Connected = *upd.Connected
	}
	if upd.ClearQR {
		rec.QRCode = nil
	} else if upd.QRCode != nil {
		qr := *upd.QRCode
		rec.QRCode = &qr
	}
	if upd.JID != nil {
		jid := *upd.JID
		rec.JID = &jid
	}
	return nil
}

func (s *memSessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *memSessionStore) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	recs, err := s.FindByOwner(ctx, ownerID)
	return len(recs), err
}

func (s *memSessionStore) record(id string) *model.SessionRecord {
	rec, _ := s.FindByID(context.Background(), id)
	return rec
}

func (s *memSessionStore) seed(id, ownerID string, name *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = &model.SessionRecord{ID: id, OwnerID: ownerID, Name: name, CreatedAt: time.Now()}
	s.order = append(s.order, id)
}

type verifyResult struct {
	registered bool
	err        error
}

type sendResult struct {
	sent *model.SentMessage
	err  error
}

// fakeClient is a scriptable transport client. Scripted slices are consumed in
// order and the last entry repeats.
type fakeClient struct {
	mu          sync.Mutex
	sessionID   string
	sink        whatsapp.EventSink
	initErr     error
	onInit      func(c *fakeClient)
	states      []whatsapp.ConnectionState
	verify      []verifyResult
	verifyDelay time.Duration
	sends       []sendResult
	destroyed   int
	stateCalls  int
	verifyCalls int
	sendCalls   int
}

func (c *fakeClient) Initialize(ctx context.Context) error {
	if c.onInit != nil {
		c.onInit(c)
	}
	return c.initErr
}

func (c *fakeClient) Destroy(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed++
	return nil
}

func (c *fakeClient) State(ctx context.Context) (whatsapp.ConnectionState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateCalls++
	if len(c.states) == 0 {
		return whatsapp.StateConnected, nil
	}
	st := c.states[0]
	if len(c.states) > 1 {
		c.states = c.states[1:]
	}
	return st, nil
}

func (c *fakeClient) IsRegistered(ctx context.Context, dest string) (bool, error) {
	if c.verifyDelay > 0 {
		// Ignores ctx like a transport without deadline support.
		time.Sleep(c.verifyDelay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verifyCalls++
	if len(c.verify) == 0 {
		return true, nil
	}
	res := c.verify[0]
	if len(c.verify) > 1 {
		c.verify = c.verify[1:]
	}
	return res.registered, res.err
}

func (c *fakeClient) SendText(ctx context.Context, dest, text string) (*model.SentMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendCalls++
	if len(c.sends) == 0 {
		return &model.SentMessage{ID: "msg-1", To: dest, Body: text, Timestamp: time.Now(), DeliveryAck: model.AckServer}, nil
	}
	res := c.sends[0]
	if len(c.sends) > 1 {
		c.sends = c.sends[1:]
	}
	if res.sent != nil {
		sent := *res.sent
		sent.To = dest
		sent.Body = text
		return &sent, nil
	}
	return nil, res.err
}

func (c *fakeClient) emit(kind whatsapp.EventKind, payload string) {
	c.sink.HandleEvent(whatsapp.Event{Kind: kind, SessionID: c.sessionID, Payload: payload})
}

func (c *fakeClient) sendCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendCalls
}

func (c *fakeClient) destroyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

// fakeFactory hands out fakeClients, letting each test script them per session.
type fakeFactory struct {
	mu      sync.Mutex
	err     error
	prepare func(c *fakeClient)
	built   map[string][]*fakeClient
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{built: make(map[string][]*fakeClient)}
}

func (f *fakeFactory) New(ctx context.Context, sessionID string, sink whatsapp.EventSink) (whatsapp.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c := &fakeClient{sessionID: sessionID, sink: sink}
	if f.prepare != nil {
		f.prepare(c)
	}
	f.built[sessionID] = append(f.built[sessionID], c)
	return c, nil
}

func (f *fakeFactory) last(sessionID string) *fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	clients := f.built[sessionID]
	if len(clients) == 0 {
		return nil
	}
	return clients[len(clients)-1]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []sse.Event
	owners []string
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, ownerID string, event sse.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	p.owners = append(p.owners, ownerID)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

var errTransport = errors.New("transport failure")

func newTestRegistry() (*SessionRegistry, *memSessionStore, *fakeFactory, *recordingPublisher) {
	store := newMemSessionStore()
	factory := newFakeFactory()
	pub := &recordingPublisher{}
	return NewSessionRegistry(store, factory, pub, ""), store, factory, pub
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }
