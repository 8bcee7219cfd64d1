package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/zapdeck/session-server/internal/model"
)

type SubscriptionRepository interface {
	FindActiveByOwner(ctx context.Context, ownerID string, now time.Time) (*model.Subscription, error)
	Create(ctx context.Context, params model.CreateSubscriptionParams) (*model.Subscription, error)
	Extend(ctx context.Context, id, planID string, devices int, endDate time.Time) (*model.Subscription, error)
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

type subscriptionRepo struct {
	db sqlxDB
}

func NewSubscriptionRepository(db *sqlx.DB) SubscriptionRepository {
	return &subscriptionRepo{db: db}
}

func (r *subscriptionRepo) FindActiveByOwner(ctx context.Context, ownerID string, now time.Time) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.GetContext(ctx, &sub, `
		SELECT * FROM subscriptions
		WHERE owner_id = $1 AND status = 'active' AND end_date > $2
		ORDER BY end_date DESC
		LIMIT 1
	`, ownerID, now)
	return HandleNotFound(&sub, err)
}

func (r *subscriptionRepo) Create(ctx context.Context, params model.CreateSubscriptionParams) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.GetContext(ctx, &sub, `
		INSERT INTO subscriptions (id, owner_id, plan_id, devices, status, start_date, end_date)
		VALUES ($1, $2, $3, $4, 'active', $5, $6)
		RETURNING *
	`, params.ID, params.OwnerID, params.PlanID, params.Devices, params.StartDate, params.EndDate)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepo) Extend(ctx context.Context, id, planID string, devices int, endDate time.Time) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.GetContext(ctx, &sub, `
		UPDATE subscriptions SET
			plan_id = $2,
			devices = $3,
			end_date = $4,
			updated_at = $5
		WHERE id = $1
		RETURNING *
	`, id, planID, devices, endDate, time.Now())
	return HandleNotFound(&sub, err)
}

func (r *subscriptionRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions SET status = 'expired', updated_at = $1
		WHERE status = 'active' AND end_date <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
