package whatsapp

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/zapdeck/session-server/internal/model"
)

// DeviceLookup resolves the linked device of a session.
type DeviceLookup interface {
	FindByID(ctx context.Context, id string) (*model.SessionRecord, error)
}

// MeowFactory builds whatsmeow clients whose device keys live in the shared Postgres database.
type MeowFactory struct {
	container *sqlstore.Container
	devices   DeviceLookup
	logLevel  string
}

func NewMeowFactory(ctx context.Context, databaseURL string, devices DeviceLookup, logLevel string) (*MeowFactory, error) {
	container, err := sqlstore.New(ctx, "postgres", databaseURL, NewLogger("whatsmeow.store", logLevel))
	if err != nil {
		return nil, fmt.Errorf("open device store: %w", err)
	}
	return &MeowFactory{
		container: container,
		devices:   devices,
		logLevel:  logLevel,
	}, nil
}

func (f *MeowFactory) New(ctx context.Context, sessionID string, sink EventSink) (Client, error) {
	device, err := f.device(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	cli := whatsmeow.NewClient(device, NewLogger("whatsmeow."+sessionID, f.logLevel))
	// A dropped connection ends the session; reconnecting is an explicit create.
	cli.EnableAutoReconnect = false

	c := &meowClient{
		sessionID: sessionID,
		client:    cli,
		sink:      sink,
	}
	c.handlerID = cli.AddEventHandler(c.handle)
	return c, nil
}

func (f *MeowFactory) device(ctx context.Context, sessionID string) (*store.Device, error) {
	rec, err := f.devices.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("lookup session device: %w", err)
	}
	if rec == nil || rec.JID == nil || *rec.JID == "" {
		return f.container.NewDevice(), nil
	}

	jid, err := types.ParseJID(*rec.JID)
	if err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("Stored device JID is invalid, pairing a new device")
		return f.container.NewDevice(), nil
	}

	device, err := f.container.GetDevice(ctx, jid)
	if err != nil {
		return nil, fmt.Errorf("load device %s: %w", jid, err)
	}
	if device == nil {
		log.Info().Str("sessionId", sessionID).Str("jid", jid.String()).Msg("Linked device not found, pairing a new device")
		return f.container.NewDevice(), nil
	}
	return device, nil
}

type meowClient struct {
	sessionID string
	client    *whatsmeow.Client
	sink      EventSink
	handlerID uint32

	mu       sync.Mutex
	cancelQR context.CancelFunc
}

func (c *meowClient) Initialize(ctx context.Context) error {
	if c.client.Store.ID != nil {
		return c.client.Connect()
	}

	qrCtx, cancel := context.WithCancel(context.Background())
	qrChan, err := c.client.GetQRChannel(qrCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("get qr channel: %w", err)
	}

	c.mu.Lock()
	c.cancelQR = cancel
	c.mu.Unlock()

	if err := c.client.Connect(); err != nil {
		cancel()
		return err
	}

	go c.consumeQR(qrChan)
	return nil
}

func (c *meowClient) consumeQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case "code":
			c.emit(EventQR, item.Code)
		case "success":
			return
		case "timeout":
			c.emit(EventDisconnected, "qr timeout")
			return
		default:
			reason := item.Event
			if item.Error != nil {
				reason = item.Error.Error()
			}
			c.emit(EventAuthFailure, reason)
			return
		}
	}
}

func (c *meowClient) Destroy(ctx context.Context) error {
	c.mu.Lock()
	if c.cancelQR != nil {
		c.cancelQR()
		c.cancelQR = nil
	}
	c.mu.Unlock()

	c.client.RemoveEventHandler(c.handlerID)
	c.client.Disconnect()
	return nil
}

func (c *meowClient) State(ctx context.Context) (ConnectionState, error) {
	switch {
	case !c.client.IsConnected():
		return StateDisconnected, nil
	case !c.client.IsLoggedIn():
		return StateOpening, nil
	default:
		return StateConnected, nil
	}
}

func (c *meowClient) IsRegistered(ctx context.Context, dest string) (bool, error) {
	jid, err := types.ParseJID(dest)
	if err != nil {
		return false, fmt.Errorf("parse destination: %w", err)
	}
	if jid.Server != types.DefaultUserServer {
		// Groups and other servers cannot be looked up by phone.
		return true, nil
	}

	type lookup struct {
		resp []types.IsOnWhatsAppResponse
		err  error
	}
	done := make(chan lookup, 1)
	go func() {
		resp, err := c.client.IsOnWhatsApp([]string{"+" + jid.User})
		done <- lookup{resp: resp, err: err}
	}()

	// IsOnWhatsApp takes no context, so the deadline is enforced here.
	select {
	case res := <-done:
		if res.err != nil {
			return false, res.err
		}
		if len(res.resp) == 0 {
			return false, nil
		}
		return res.resp[0].IsIn, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (c *meowClient) SendText(ctx context.Context, dest, text string) (*model.SentMessage, error) {
	jid, err := types.ParseJID(dest)
	if err != nil {
		return nil, fmt.Errorf("parse destination: %w", err)
	}

	resp, err := c.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return nil, err
	}
	// SendMessage returns once the server has accepted the message.
	return &model.SentMessage{
		ID:          resp.ID,
		To:          dest,
		Body:        text,
		Timestamp:   resp.Timestamp,
		DeliveryAck: model.AckServer,
	}, nil
}

func (c *meowClient) handle(rawEvt interface{}) {
	if evt, ok := translate(rawEvt); ok {
		c.emit(evt.Kind, evt.Payload)
	}
}

func (c *meowClient) emit(kind EventKind, payload string) {
	c.sink.HandleEvent(Event{
		Kind:      kind,
		SessionID: c.sessionID,
		Payload:   payload,
	})
}

// translate maps whatsmeow events onto lifecycle events. Other events are ignored.
func translate(rawEvt interface{}) (Event, bool) {
	switch evt := rawEvt.(type) {
	case *events.PairSuccess:
		return Event{Kind: EventAuthenticated, Payload: evt.ID.String()}, true
	case *events.Connected:
		return Event{Kind: EventReady}, true
	case *events.LoggedOut:
		return Event{Kind: EventAuthFailure, Payload: fmt.Sprintf("logged out: %v", evt.Reason)}, true
	case *events.ConnectFailure:
		return Event{Kind: EventAuthFailure, Payload: fmt.Sprintf("connect failure: %v", evt.Reason)}, true
	case *events.ClientOutdated:
		return Event{Kind: EventAuthFailure, Payload: "client outdated"}, true
	case *events.TemporaryBan:
		return Event{Kind: EventAuthFailure, Payload: "temporary ban"}, true
	case *events.StreamReplaced:
		return Event{Kind: EventDisconnected, Payload: "stream replaced"}, true
	case *events.Disconnected:
		return Event{Kind: EventDisconnected, Payload: "connection lost"}, true
	}
	return Event{}, false
}
