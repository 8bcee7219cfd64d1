package model

import (
	"time"
)

// Session is the immutable identity of a WhatsApp connection owned by an Owner.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionRecord is the durable row backing a Session.
type SessionRecord struct {
	ID        string    `db:"id" json:"id"`
	Name      *string   `db:"name" json:"name,omitempty"`
	OwnerID   string    `db:"owner_id" json:"ownerId"`
	JID       *string   `db:"jid" json:"jid,omitempty"`
	Ready     bool      `db:"ready" json:"ready"`
	Connected bool      `db:"connected" json:"connected"`
	QRCode    *string   `db:"qr_code" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Session returns the identity part of the record. A missing name falls back to the id.
func (r *SessionRecord) Session() Session {
	name := r.ID
	if r.Name != nil && *r.Name != "" {
		name = *r.Name
	}
	return Session{
		ID:        r.ID,
		Name:      name,
		OwnerID:   r.OwnerID,
		CreatedAt: r.CreatedAt,
	}
}

type CreateSessionRecordParams struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
}

// SessionUpdate is a partial update; nil fields are left untouched.
type SessionUpdate struct {
	Ready     *bool
	Connected *bool
	QRCode    *string
	ClearQR   bool
	JID       *string
}

// StatusInfo is the derived view returned by status queries.
type StatusInfo struct {
	Status    SessionStatus `json:"status"`
	IsActive  bool          `json:"isActive"`
	HasQRCode bool          `json:"hasQrCode"`
}

// SessionView is a session joined with its derived status.
type SessionView struct {
	Session
	StatusInfo
}
