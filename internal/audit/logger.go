package audit

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventAdminAuthFailure EventType = "admin_auth_failure"
	EventAdminLockout     EventType = "admin_lockout"
	EventOwnerCreate      EventType = "owner_create"
	EventTokenRegenerate  EventType = "token_regenerate"
	EventSubscriptionSet  EventType = "subscription_grant"
	EventSessionCreate    EventType = "session_create"
	EventSessionDelete    EventType = "session_delete"
)

// Event is one security-relevant action. Empty fields are omitted from the log line.
type Event struct {
	Type      EventType
	OwnerID   string
	SessionID string
	Actor     string
	IP        string
	UserAgent string
	Details   map[string]interface{}
}

func Log(event Event) {
	logger := log.With().
		Str("audit", "security").
		Str("eventType", string(event.Type)).
		Time("at", time.Now()).
		Logger()

	logEvent := logger.Info()
	logEvent = optional(logEvent, "ownerId", event.OwnerID)
	logEvent = optional(logEvent, "sessionId", event.SessionID)
	logEvent = optional(logEvent, "actor", event.Actor)
	logEvent = optional(logEvent, "ip", event.IP)
	logEvent = optional(logEvent, "userAgent", event.UserAgent)
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("security audit event")
}

// LogFromRequest fills in the caller's address, user agent and request id.
func LogFromRequest(r *http.Request, event Event) {
	event.IP = r.RemoteAddr
	event.UserAgent = r.UserAgent()
	if reqID := chimiddleware.GetReqID(r.Context()); reqID != "" {
		if event.Details == nil {
			event.Details = make(map[string]interface{}, 1)
		}
		event.Details["requestId"] = reqID
	}
	Log(event)
}

func optional(e *zerolog.Event, key, value string) *zerolog.Event {
	if value == "" {
		return e
	}
	return e.Str(key, value)
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}
