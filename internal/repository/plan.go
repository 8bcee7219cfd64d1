package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/zapdeck/session-server/internal/model"
)

type PlanRepository interface {
	FindActive(ctx context.Context) ([]model.Plan, error)
	FindByID(ctx context.Context, id string) (*model.Plan, error)
	Upsert(ctx context.Context, plan model.Plan) error
}

type planRepo struct {
	db sqlxDB
}

func NewPlanRepository(db *sqlx.DB) PlanRepository {
	return &planRepo{db: db}
}

func (r *planRepo) FindActive(ctx context.Context) ([]model.Plan, error) {
	var plans []model.Plan
	err := r.db.SelectContext(ctx, &plans, `
		SELECT * FROM plans WHERE active = TRUE ORDER BY devices ASC
	`)
	return plans, err
}

func (r *planRepo) FindByID(ctx context.Context, id string) (*model.Plan, error) {
	var plan model.Plan
	err := r.db.GetContext(ctx, &plan, `SELECT * FROM plans WHERE id = $1`, id)
	return HandleNotFound(&plan, err)
}

func (r *planRepo) Upsert(ctx context.Context, plan model.Plan) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO plans (id, name, devices, price_cents, description, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			devices = EXCLUDED.devices,
			price_cents = EXCLUDED.price_cents,
			description = EXCLUDED.description,
			active = EXCLUDED.active
	`, plan.ID, plan.Name, plan.Devices, plan.PriceCents, plan.Description, plan.Active)
	return err
}
