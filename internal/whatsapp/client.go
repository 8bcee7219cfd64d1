package whatsapp

import (
	"context"

	"github.com/zapdeck/session-server/internal/model"
)

// EventKind names a lifecycle notification emitted by a transport client.
type EventKind string

const (
	EventQR            EventKind = "qr"
	EventReady         EventKind = "ready"
	EventAuthenticated EventKind = "authenticated"
	EventAuthFailure   EventKind = "auth_failure"
	EventDisconnected  EventKind = "disconnected"
)

// Event is delivered to an EventSink. Payload is the raw QR string for EventQR,
// the device JID for EventAuthenticated and a reason for failures.
type Event struct {
	Kind      EventKind
	SessionID string
	Payload   string
}

type EventSink interface {
	HandleEvent(evt Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(evt Event)

func (f EventSinkFunc) HandleEvent(evt Event) { f(evt) }

// ConnectionState is the live state reported by the transport.
type ConnectionState string

const (
	StateConnected    ConnectionState = "CONNECTED"
	StateOpening      ConnectionState = "OPENING"
	StateDisconnected ConnectionState = "DISCONNECTED"
)

// Client is one live WhatsApp connection bound to a session.
type Client interface {
	// Initialize starts the connection. Events may be emitted before it returns.
	Initialize(ctx context.Context) error
	Destroy(ctx context.Context) error
	State(ctx context.Context) (ConnectionState, error)
	// IsRegistered reports whether dest (a normalized contact address) has a WhatsApp account.
	IsRegistered(ctx context.Context, dest string) (bool, error)
	SendText(ctx context.Context, dest, text string) (*model.SentMessage, error)
}

// ClientFactory builds a client for a session with sink already attached.
type ClientFactory interface {
	New(ctx context.Context, sessionID string, sink EventSink) (Client, error)
}
