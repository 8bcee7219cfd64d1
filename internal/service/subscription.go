package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/zapdeck/session-server/internal/errors"
	"github.com/zapdeck/session-server/internal/model"
	"github.com/zapdeck/session-server/internal/repository"
)

// DefaultPlans are seeded on startup.
var DefaultPlans = []model.Plan{
	{ID: "plan_1_device", Name: "Basic", Devices: 1, PriceCents: 3900, Description: "1 active WhatsApp device", Active: true},
	{ID: "plan_2_devices", Name: "Standard", Devices: 2, PriceCents: 5900, Description: "2 active WhatsApp devices", Active: true},
	{ID: "plan_3_devices", Name: "Advanced", Devices: 3, PriceCents: 7900, Description: "3 active WhatsApp devices", Active: true},
}

// SessionCounter reports how many sessions an owner currently has.
type SessionCounter interface {
	CountByOwner(ownerID string) int
}

type SubscriptionService struct {
	planRepo repository.PlanRepository
	subRepo  repository.SubscriptionRepository
	sessions SessionCounter
	now      func() time.Time
}

func NewSubscriptionService(
	planRepo repository.PlanRepository,
	subRepo repository.SubscriptionRepository,
	sessions SessionCounter,
) *SubscriptionService {
	return &SubscriptionService{
		planRepo: planRepo,
		subRepo:  subRepo,
		sessions: sessions,
		now:      time.Now,
	}
}

func (s *SubscriptionService) SeedPlans(ctx context.Context) error {
	for _, plan := range DefaultPlans {
		if err := s.planRepo.Upsert(ctx, plan); err != nil {
			return fmt.Errorf("seed plan %s: %w", plan.ID, err)
		}
	}
	log.Info().Int("count", len(DefaultPlans)).Msg("plans seeded")
	return nil
}

func (s *SubscriptionService) ActivePlans(ctx context.Context) ([]model.Plan, error) {
	plans, err := s.planRepo.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("find active plans: %w", err)
	}
	return plans, nil
}

// ActiveSubscription returns nil when the owner has no running subscription.
func (s *SubscriptionService) ActiveSubscription(ctx context.Context, ownerID string) (*model.Subscription, error) {
	sub, err := s.subRepo.FindActiveByOwner(ctx, ownerID, s.now())
	if err != nil {
		return nil, fmt.Errorf("find active subscription: %w", err)
	}
	return sub, nil
}

// CanCreateSession compares the owner's session count with the subscribed device allowance.
func (s *SubscriptionService) CanCreateSession(ctx context.Context, ownerID string) (*model.SessionAllowance, error) {
	sub, err := s.ActiveSubscription(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	current := s.sessions.CountByOwner(ownerID)
	if sub == nil {
		return &model.SessionAllowance{
			CanCreate:    false,
			CurrentCount: current,
			MaxDevices:   0,
			Reason:       "no active subscription",
		}, nil
	}

	allowance := &model.SessionAllowance{
		CanCreate:    current < sub.Devices,
		CurrentCount: current,
		MaxDevices:   sub.Devices,
	}
	if !allowance.CanCreate {
		allowance.Reason = "device limit reached"
	}
	return allowance, nil
}

// Grant activates planID for months. A running subscription is extended and
// keeps the larger device allowance.
func (s *SubscriptionService) Grant(ctx context.Context, ownerID, planID string, months int) (*model.Subscription, error) {
	if months < 1 {
		return nil, apperrors.ValidationError("months must be at least 1")
	}

	plan, err := s.planRepo.FindByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("find plan: %w", err)
	}
	if plan == nil || !plan.Active {
		return nil, apperrors.NotFound("Plan")
	}

	existing, err := s.ActiveSubscription(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		devices := existing.Devices
		effectivePlan := existing.PlanID
		if plan.Devices >= devices {
			devices = plan.Devices
			effectivePlan = plan.ID
		}

		sub, err := s.subRepo.Extend(ctx, existing.ID, effectivePlan, devices, existing.EndDate.AddDate(0, months, 0))
		if err != nil {
			return nil, fmt.Errorf("extend subscription: %w", err)
		}
		if sub == nil {
			return nil, apperrors.NotFound("Subscription")
		}

		log.Info().
			Str("ownerId", ownerID).
			Str("subscriptionId", sub.ID).
			Int("devices", sub.Devices).
			Time("endDate", sub.EndDate).
			Msg("subscription extended")
		return sub, nil
	}

	start := s.now()
	sub, err := s.subRepo.Create(ctx, model.CreateSubscriptionParams{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		PlanID:    plan.ID,
		Devices:   plan.Devices,
		StartDate: start,
		EndDate:   start.AddDate(0, months, 0),
	})
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	log.Info().
		Str("ownerId", ownerID).
		Str("subscriptionId", sub.ID).
		Str("planId", plan.ID).
		Time("endDate", sub.EndDate).
		Msg("subscription created")
	return sub, nil
}

func (s *SubscriptionService) ExpireOverdue(ctx context.Context) (int64, error) {
	return s.subRepo.ExpireOverdue(ctx, s.now())
}
