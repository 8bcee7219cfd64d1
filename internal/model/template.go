package model

import (
	"time"

	"github.com/lib/pq"
)

const DefaultTemplateCategory = "General"

type MessageTemplate struct {
	ID         string         `db:"id" json:"id"`
	OwnerID    string         `db:"owner_id" json:"ownerId"`
	Name       string         `db:"name" json:"name"`
	Content    string         `db:"content" json:"content"`
	Category   string         `db:"category" json:"category"`
	Tags       pq.StringArray `db:"tags" json:"tags"`
	UsageCount int            `db:"usage_count" json:"usageCount"`
	Active     bool           `db:"active" json:"active"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updatedAt"`
}

type CreateTemplateParams struct {
	ID       string
	OwnerID  string
	Name     string
	Content  string
	Category string
	Tags     []string
}

// UpdateTemplateParams holds a partial update; nil fields are left unchanged.
type UpdateTemplateParams struct {
	Name     *string
	Content  *string
	Category *string
	Tags     *[]string
}

type TemplateFilter struct {
	Category string
	Search   string
}
