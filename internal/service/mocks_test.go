package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/zapdeck/session-server/internal/model"
)

type mockPlanRepo struct {
	mock.Mock
}

func (m *mockPlanRepo) FindActive(ctx context.Context) ([]model.Plan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Plan), args.Error(1)
}

func (m *mockPlanRepo) FindByID(ctx context.Context, id string) (*model.Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Plan), args.Error(1)
}

func (m *mockPlanRepo) Upsert(ctx context.Context, plan model.Plan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

type mockSubscriptionRepo struct {
	mock.Mock
}

func (m *mockSubscriptionRepo) FindActiveByOwner(ctx context.Context, ownerID string, now time.Time) (*model.Subscription, error) {
	args := m.Called(ctx, ownerID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepo) Create(ctx context.Context, params model.CreateSubscriptionParams) (*model.Subscription, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepo) Extend(ctx context.Context, id, planID string, devices int, endDate time.Time) (*model.Subscription, error) {
	args := m.Called(ctx, id, planID, devices, endDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type mockScheduledRepo struct {
	mock.Mock
}

func (m *mockScheduledRepo) Create(ctx context.Context, params model.CreateScheduledMessageParams) (*model.ScheduledMessage, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScheduledMessage), args.Error(1)
}

func (m *mockScheduledRepo) FindByID(ctx context.Context, id string) (*model.ScheduledMessage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScheduledMessage), args.Error(1)
}

func (m *mockScheduledRepo) FindByOwner(ctx context.Context, ownerID string, status *model.ScheduledStatus, limit, offset int) ([]model.ScheduledMessage, error) {
	args := m.Called(ctx, ownerID, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ScheduledMessage), args.Error(1)
}

func (m *mockScheduledRepo) CountByOwner(ctx context.Context, ownerID string, status *model.ScheduledStatus) (int, error) {
	args := m.Called(ctx, ownerID, status)
	return args.Int(0), args.Error(1)
}

func (m *mockScheduledRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]model.ScheduledMessage, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ScheduledMessage), args.Error(1)
}

func (m *mockScheduledRepo) UpdatePending(ctx context.Context, id, ownerID string, params model.UpdateScheduledMessageParams) (*model.ScheduledMessage, error) {
	args := m.Called(ctx, id, ownerID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScheduledMessage), args.Error(1)
}

func (m *mockScheduledRepo) CancelPending(ctx context.Context, id, ownerID string) (bool, error) {
	args := m.Called(ctx, id, ownerID)
	return args.Bool(0), args.Error(1)
}

func (m *mockScheduledRepo) IncrementAttempts(ctx context.Context, id string) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

func (m *mockScheduledRepo) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	args := m.Called(ctx, id, sentAt)
	return args.Error(0)
}

func (m *mockScheduledRepo) RecordFailure(ctx context.Context, id, message string, final bool) error {
	args := m.Called(ctx, id, message, final)
	return args.Error(0)
}

func (m *mockScheduledRepo) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type mockTemplateRepo struct {
	mock.Mock
}

func (m *mockTemplateRepo) Create(ctx context.Context, params model.CreateTemplateParams) (*model.MessageTemplate, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MessageTemplate), args.Error(1)
}

func (m *mockTemplateRepo) FindActiveByID(ctx context.Context, id, ownerID string) (*model.MessageTemplate, error) {
	args := m.Called(ctx, id, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MessageTemplate), args.Error(1)
}

func (m *mockTemplateRepo) FindByOwner(ctx context.Context, ownerID string, filter model.TemplateFilter) ([]model.MessageTemplate, error) {
	args := m.Called(ctx, ownerID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MessageTemplate), args.Error(1)
}

func (m *mockTemplateRepo) Categories(ctx context.Context, ownerID string) ([]string, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockTemplateRepo) Update(ctx context.Context, id, ownerID string, params model.UpdateTemplateParams) (*model.MessageTemplate, error) {
	args := m.Called(ctx, id, ownerID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MessageTemplate), args.Error(1)
}

func (m *mockTemplateRepo) IncrementUsage(ctx context.Context, id, ownerID string) (*model.MessageTemplate, error) {
	args := m.Called(ctx, id, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MessageTemplate), args.Error(1)
}

func (m *mockTemplateRepo) Deactivate(ctx context.Context, id, ownerID string) (bool, error) {
	args := m.Called(ctx, id, ownerID)
	return args.Bool(0), args.Error(1)
}

type mockOwnerRepo struct {
	mock.Mock
}

func (m *mockOwnerRepo) FindByID(ctx context.Context, id string) (*model.Owner, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Owner), args.Error(1)
}

func (m *mockOwnerRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Owner, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Owner), args.Error(1)
}

func (m *mockOwnerRepo) FindAll(ctx context.Context, limit, offset int) ([]model.Owner, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Owner), args.Error(1)
}

func (m *mockOwnerRepo) Create(ctx context.Context, params model.CreateOwnerParams) (*model.Owner, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Owner), args.Error(1)
}

func (m *mockOwnerRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockOwnerRepo) UpdateTokenHash(ctx context.Context, id, tokenHash string) (bool, error) {
	args := m.Called(ctx, id, tokenHash)
	return args.Bool(0), args.Error(1)
}

// staticSessions is a fixed session lookup.
type staticSessions map[string]model.Session

func (s staticSessions) FindByID(id string) (model.Session, bool) {
	session, ok := s[id]
	return session, ok
}

func (s staticSessions) CountByOwner(ownerID string) int {
	n := 0
	for _, session := range s {
		if session.OwnerID == ownerID {
			n++
		}
	}
	return n
}
