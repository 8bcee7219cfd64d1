package model

import (
	"time"
)

// DeliveryAck levels reported for outbound messages.
const (
	AckPending = 0
	AckServer  = 1
	AckDevice  = 2
	AckRead    = 3
)

// SentMessage is the transport acknowledgement of an outbound text.
type SentMessage struct {
	ID          string    `json:"id"`
	To          string    `json:"to"`
	Body        string    `json:"body"`
	Timestamp   time.Time `json:"timestamp"`
	DeliveryAck int       `json:"deliveryAck"`
}

type ScheduledMessage struct {
	ID              string          `db:"id" json:"id"`
	OwnerID         string          `db:"owner_id" json:"ownerId"`
	SessionID       string          `db:"session_id" json:"sessionId"`
	RecipientNumber string          `db:"recipient_number" json:"recipientNumber"`
	RecipientName   *string         `db:"recipient_name" json:"recipientName,omitempty"`
	TemplateID      *string         `db:"template_id" json:"templateId,omitempty"`
	Content         string          `db:"content" json:"content"`
	ScheduledAt     time.Time       `db:"scheduled_at" json:"scheduledAt"`
	Status          ScheduledStatus `db:"status" json:"status"`
	Attempts        int             `db:"attempts" json:"attempts"`
	MaxAttempts     int             `db:"max_attempts" json:"maxAttempts"`
	SentAt          *time.Time      `db:"sent_at" json:"sentAt,omitempty"`
	ErrorMessage    *string         `db:"error_message" json:"errorMessage,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updatedAt"`
}

type CreateScheduledMessageParams struct {
	ID              string
	OwnerID         string
	SessionID       string
	RecipientNumber string
	RecipientName   *string
	TemplateID      *string
	Content         string
	ScheduledAt     time.Time
	MaxAttempts     int
}

type UpdateScheduledMessageParams struct {
	RecipientNumber *string
	RecipientName   *string
	Content         *string
	ScheduledAt     *time.Time
}
