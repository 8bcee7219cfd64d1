package model

import (
	"time"
)

type Plan struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Devices     int       `db:"devices" json:"devices"`
	PriceCents  int       `db:"price_cents" json:"priceCents"`
	Description string    `db:"description" json:"description"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

type Subscription struct {
	ID        string             `db:"id" json:"id"`
	OwnerID   string             `db:"owner_id" json:"ownerId"`
	PlanID    string             `db:"plan_id" json:"planId"`
	Devices   int                `db:"devices" json:"devices"`
	Status    SubscriptionStatus `db:"status" json:"status"`
	StartDate time.Time          `db:"start_date" json:"startDate"`
	EndDate   time.Time          `db:"end_date" json:"endDate"`
	AutoRenew bool               `db:"auto_renew" json:"autoRenew"`
	CreatedAt time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time          `db:"updated_at" json:"updatedAt"`
}

type CreateSubscriptionParams struct {
	ID        string
	OwnerID   string
	PlanID    string
	Devices   int
	StartDate time.Time
	EndDate   time.Time
}

// SessionAllowance is the result of the plan gate check for an owner.
type SessionAllowance struct {
	CanCreate    bool   `json:"canCreate"`
	CurrentCount int    `json:"currentCount"`
	MaxDevices   int    `json:"maxDevices"`
	Reason       string `json:"reason,omitempty"`
}
