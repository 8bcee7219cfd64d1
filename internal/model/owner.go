package model

import (
	"time"
)

type Owner struct {
	ID              string     `db:"id" json:"id"`
	DisplayName     string     `db:"display_name" json:"displayName"`
	Email           *string    `db:"email" json:"email,omitempty"`
	APITokenHash    string     `db:"api_token_hash" json:"-"`
	RateLimitPerMin int        `db:"rate_limit_per_minute" json:"rateLimitPerMinute"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
	DisabledAt      *time.Time `db:"disabled_at" json:"disabledAt,omitempty"`
}

type CreateOwnerParams struct {
	DisplayName     string
	Email           *string
	APITokenHash    string
	RateLimitPerMin int
}
