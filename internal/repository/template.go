package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/zapdeck/session-server/internal/model"
)

type TemplateRepository interface {
	Create(ctx context.Context, params model.CreateTemplateParams) (*model.MessageTemplate, error)
	FindActiveByID(ctx context.Context, id, ownerID string) (*model.MessageTemplate, error)
	FindByOwner(ctx context.Context, ownerID string, filter model.TemplateFilter) ([]model.MessageTemplate, error)
	Categories(ctx context.Context, ownerID string) ([]string, error)
	// Update and IncrementUsage return nil when no active template matches.
	Update(ctx context.Context, id, ownerID string, params model.UpdateTemplateParams) (*model.MessageTemplate, error)
	IncrementUsage(ctx context.Context, id, ownerID string) (*model.MessageTemplate, error)
	// Deactivate reports whether an active template was found.
	Deactivate(ctx context.Context, id, ownerID string) (bool, error)
}

type templateRepo struct {
	db sqlxDB
}

func NewTemplateRepository(db *sqlx.DB) TemplateRepository {
	return &templateRepo{db: db}
}

func (r *templateRepo) Create(ctx context.Context, params model.CreateTemplateParams) (*model.MessageTemplate, error) {
	tags := params.Tags
	if tags == nil {
		tags = []string{}
	}

	var tpl model.MessageTemplate
	err := r.db.GetContext(ctx, &tpl, `
		INSERT INTO message_templates (id, owner_id, name, content, category, tags)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, params.ID, params.OwnerID, params.Name, params.Content, params.Category, pq.Array(tags))
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *templateRepo) FindActiveByID(ctx context.Context, id, ownerID string) (*model.MessageTemplate, error) {
	var tpl model.MessageTemplate
	err := r.db.GetContext(ctx, &tpl, `
		SELECT * FROM message_templates
		WHERE id = $1 AND owner_id = $2 AND active = TRUE
	`, id, ownerID)
	return HandleNotFound(&tpl, err)
}

// FindByOwner lists active templates, most used first. Search matches name,
// content or any tag case-insensitively.
func (r *templateRepo) FindByOwner(ctx context.Context, ownerID string, filter model.TemplateFilter) ([]model.MessageTemplate, error) {
	var tpls []model.MessageTemplate
	err := r.db.SelectContext(ctx, &tpls, `
		SELECT * FROM message_templates
		WHERE owner_id = $1 AND active = TRUE
		  AND ($2::text = '' OR category = $2)
		  AND ($3::text = '' OR name ILIKE '%' || $3 || '%' OR content ILIKE '%' || $3 || '%'
		       OR EXISTS (SELECT 1 FROM unnest(tags) AS tag WHERE tag ILIKE '%' || $3 || '%'))
		ORDER BY usage_count DESC, updated_at DESC
	`, ownerID, filter.Category, filter.Search)
	return tpls, err
}

func (r *templateRepo) Categories(ctx context.Context, ownerID string) ([]string, error) {
	var categories []string
	err := r.db.SelectContext(ctx, &categories, `
		SELECT DISTINCT category FROM message_templates
		WHERE owner_id = $1 AND active = TRUE AND category <> ''
		ORDER BY category
	`, ownerID)
	return categories, err
}

func (r *templateRepo) Update(ctx context.Context, id, ownerID string, params model.UpdateTemplateParams) (*model.MessageTemplate, error) {
	var tags interface{}
	if params.Tags != nil {
		tags = pq.Array(append([]string{}, *params.Tags...))
	}

	var tpl model.MessageTemplate
	err := r.db.GetContext(ctx, &tpl, `
		UPDATE message_templates SET
			name = COALESCE($3, name),
			content = COALESCE($4, content),
			category = COALESCE($5, category),
			tags = COALESCE($6, tags),
			updated_at = $7
		WHERE id = $1 AND owner_id = $2 AND active = TRUE
		RETURNING *
	`, id, ownerID, params.Name, params.Content, params.Category, tags, time.Now())
	return HandleNotFound(&tpl, err)
}

func (r *templateRepo) IncrementUsage(ctx context.Context, id, ownerID string) (*model.MessageTemplate, error) {
	var tpl model.MessageTemplate
	err := r.db.GetContext(ctx, &tpl, `
		UPDATE message_templates SET usage_count = usage_count + 1, updated_at = $3
		WHERE id = $1 AND owner_id = $2 AND active = TRUE
		RETURNING *
	`, id, ownerID, time.Now())
	return HandleNotFound(&tpl, err)
}

func (r *templateRepo) Deactivate(ctx context.Context, id, ownerID string) (bool, error) {
	return affected(r.db.ExecContext(ctx, `
		UPDATE message_templates SET active = FALSE, updated_at = $3
		WHERE id = $1 AND owner_id = $2 AND active = TRUE
	`, id, ownerID, time.Now()))
}
