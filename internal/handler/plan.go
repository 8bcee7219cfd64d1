package handler

import (
	"context"
	"net/http"

	"github.com/zapdeck/session-server/internal/model"
)

type PlanCatalog interface {
	ActivePlans(ctx context.Context) ([]model.Plan, error)
	ActiveSubscription(ctx context.Context, ownerID string) (*model.Subscription, error)
	CanCreateSession(ctx context.Context, ownerID string) (*model.SessionAllowance, error)
}

type PlanHandler struct {
	plans PlanCatalog
}

func NewPlanHandler(plans PlanCatalog) *PlanHandler {
	return &PlanHandler{plans: plans}
}

// GET /v1/plans
func (h *PlanHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.ActivePlans(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if plans == nil {
		plans = []model.Plan{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"plans": plans})
}

// GET /v1/subscription
func (h *PlanHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == nil {
		return
	}

	ctx := r.Context()
	sub, err := h.plans.ActiveSubscription(ctx, owner.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	allowance, err := h.plans.CanCreateSession(ctx, owner.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"subscription": sub,
		"usage":        allowance,
	})
}
