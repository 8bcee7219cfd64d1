package whatsapp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

func TestTranslate(t *testing.T) {
	device := types.NewJID("5511999999999", types.DefaultUserServer)

	tests := []struct {
		name    string
		raw     interface{}
		kind    EventKind
		payload string
	}{
		{"pair success carries device jid", &events.PairSuccess{ID: device}, EventAuthenticated, device.String()},
		{"connected is ready", &events.Connected{}, EventReady, ""},
		{"client outdated fails auth", &events.ClientOutdated{}, EventAuthFailure, "client outdated"},
		{"temporary ban fails auth", &events.TemporaryBan{}, EventAuthFailure, "temporary ban"},
		{"stream replaced disconnects", &events.StreamReplaced{}, EventDisconnected, "stream replaced"},
		{"disconnected disconnects", &events.Disconnected{}, EventDisconnected, "connection lost"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			evt, ok := translate(tc.raw)
			assert.True(t, ok)
			assert.Equal(t, tc.kind, evt.Kind)
			assert.Equal(t, tc.payload, evt.Payload)
		})
	}

	t.Run("logged out fails auth", func(t *testing.T) {
		evt, ok := translate(&events.LoggedOut{})
		assert.True(t, ok)
		assert.Equal(t, EventAuthFailure, evt.Kind)
		assert.Contains(t, evt.Payload, "logged out")
	})

	t.Run("unrelated events are ignored", func(t *testing.T) {
		_, ok := translate(&events.Receipt{})
		assert.False(t, ok)
	})
}

func TestEventSinkFunc(t *testing.T) {
	var got Event
	sink := EventSinkFunc(func(evt Event) { got = evt })

	sink.HandleEvent(Event{Kind: EventQR, SessionID: "s1", Payload: "code"})
	assert.Equal(t, Event{Kind: EventQR, SessionID: "s1", Payload: "code"}, got)
}

func TestLoggerSub(t *testing.T) {
	logger := NewLogger("whatsmeow.s1", "debug")
	sub := logger.Sub("Socket")

	zl, ok := sub.(*zeroLogger)
	assert.True(t, ok)
	assert.Equal(t, "whatsmeow.s1/Socket", zl.module)

	fallback := NewLogger("whatsmeow", "nonsense").(*zeroLogger)
	assert.Equal(t, "warn", fallback.logger.GetLevel().String())
}
