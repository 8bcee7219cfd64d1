package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/zapdeck/session-server/internal/model"
)

type OwnerRepository interface {
	FindByID(ctx context.Context, id string) (*model.Owner, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.Owner, error)
	FindAll(ctx context.Context, limit, offset int) ([]model.Owner, error)
	Create(ctx context.Context, params model.CreateOwnerParams) (*model.Owner, error)
	Count(ctx context.Context) (int, error)
	// UpdateTokenHash reports whether the owner exists.
	UpdateTokenHash(ctx context.Context, id, tokenHash string) (bool, error)
}

type ownerRepo struct {
	db sqlxDB
}

func NewOwnerRepository(db *sqlx.DB) OwnerRepository {
	return &ownerRepo{db: db}
}

func (r *ownerRepo) FindByID(ctx context.Context, id string) (*model.Owner, error) {
	var owner model.Owner
	err := r.db.GetContext(ctx, &owner, `SELECT * FROM owners WHERE id = $1`, id)
	return HandleNotFound(&owner, err)
}

func (r *ownerRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Owner, error) {
	var owner model.Owner
	err := r.db.GetContext(ctx, &owner, `
		SELECT * FROM owners
		WHERE api_token_hash = $1 AND disabled_at IS NULL
	`, tokenHash)
	return HandleNotFound(&owner, err)
}

func (r *ownerRepo) FindAll(ctx context.Context, limit, offset int) ([]model.Owner, error) {
	var owners []model.Owner
	err := r.db.SelectContext(ctx, &owners, `
		SELECT * FROM owners
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return owners, nil
}

func (r *ownerRepo) Create(ctx context.Context, params model.CreateOwnerParams) (*model.Owner, error) {
	var owner model.Owner
	err := r.db.GetContext(ctx, &owner, `
		INSERT INTO owners (display_name, email, api_token_hash, rate_limit_per_minute)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.DisplayName, params.Email, params.APITokenHash, params.RateLimitPerMin)
	if err != nil {
		return nil, err
	}
	return &owner, nil
}

func (r *ownerRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM owners`)
	return count, err
}

func (r *ownerRepo) UpdateTokenHash(ctx context.Context, id, tokenHash string) (bool, error) {
	return affected(r.db.ExecContext(ctx, `
		UPDATE owners SET api_token_hash = $2, updated_at = NOW()
		WHERE id = $1
	`, id, tokenHash))
}
