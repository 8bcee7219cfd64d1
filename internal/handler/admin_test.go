package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zapdeck/session-server/internal/errors"
	"github.com/zapdeck/session-server/internal/model"
	"github.com/zapdeck/session-server/internal/service"
)

type mockAdmin struct {
	mock.Mock
}

func (m *mockAdmin) GetStats(ctx context.Context) (*service.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Stats), args.Error(1)
}

func (m *mockAdmin) CreateOwner(ctx context.Context, displayName string, email *string, rateLimit int) (*model.Owner, string, error) {
	args := m.Called(ctx, displayName, email, rateLimit)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*model.Owner), args.String(1), args.Error(2)
}

func (m *mockAdmin) RegenerateToken(ctx context.Context, ownerID string) (string, error) {
	args := m.Called(ctx, ownerID)
	return args.String(0), args.Error(1)
}

func (m *mockAdmin) GetOwners(ctx context.Context, limit, offset int) ([]model.Owner, int, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]model.Owner), args.Int(1), args.Error(2)
}

func (m *mockAdmin) GetOwnerByID(ctx context.Context, id string) (*model.Owner, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Owner), args.Error(1)
}

type mockGranter struct {
	mock.Mock
}

func (m *mockGranter) Grant(ctx context.Context, ownerID, planID string, months int) (*model.Subscription, error) {
	args := m.Called(ctx, ownerID, planID, months)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscription), args.Error(1)
}

func TestAdminHandler_Owners(t *testing.T) {
	t.Run("create returns the token once", func(t *testing.T) {
		admin := new(mockAdmin)
		admin.On("CreateOwner", mock.Anything, "Acme", (*string)(nil), 120).
			Return(&model.Owner{ID: "o1", DisplayName: "Acme", APITokenHash: "secret-hash"}, "plain-token", nil)

		h := NewAdminHandler(admin, new(mockGranter), newStubSessions())
		rec := serve(h.Routes(), nil, httptest.NewRequest(http.MethodPost, "/owners",
			strings.NewReader(`{"displayName":"Acme","rateLimitPerMinute":120}`)))

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"token":"plain-token"`)
		assert.NotContains(t, rec.Body.String(), "secret-hash")
		admin.AssertExpectations(t)
	})

	t.Run("list uses pagination", func(t *testing.T) {
		admin := new(mockAdmin)
		admin.On("GetOwners", mock.Anything, 5, 10).Return([]model.Owner{{ID: "o1"}}, 11, nil)

		h := NewAdminHandler(admin, new(mockGranter), newStubSessions())
		rec := serve(h.Routes(), nil, httptest.NewRequest(http.MethodGet, "/owners?limit=5&offset=10", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"total":11`)
	})

	t.Run("unknown owner is 404", func(t *testing.T) {
		admin := new(mockAdmin)
		admin.On("GetOwnerByID", mock.Anything, "nope").Return(nil, apperrors.NotFound("Owner"))

		h := NewAdminHandler(admin, new(mockGranter), newStubSessions())
		rec := serve(h.Routes(), nil, httptest.NewRequest(http.MethodGet, "/owners/nope", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("regenerate token", func(t *testing.T) {
		admin := new(mockAdmin)
		admin.On("RegenerateToken", mock.Anything, "o1").Return("fresh", nil)

		h := NewAdminHandler(admin, new(mockGranter), newStubSessions())
		rec := serve(h.Routes(), nil, httptest.NewRequest(http.MethodPost, "/owners/o1/regenerate-token", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"token":"fresh"}`, rec.Body.String())
	})
}

func TestAdminHandler_GrantSubscription(t *testing.T) {
	t.Run("grants with default of one month", func(t *testing.T) {
		admin := new(mockAdmin)
		admin.On("GetOwnerByID", mock.Anything, "o1").Return(&model.Owner{ID: "o1"}, nil)
		granter := new(mockGranter)
		granter.On("Grant", mock.Anything, "o1", "plan_2_devices", 1).Return(&model.Subscription{
			ID: "sub-1", OwnerID: "o1", PlanID: "plan_2_devices", Devices: 2,
			Status: model.SubscriptionStatusActive, EndDate: time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC),
		}, nil)

		h := NewAdminHandler(admin, granter, newStubSessions())
		rec := serve(h.Routes(), nil, httptest.NewRequest(http.MethodPost, "/subscriptions",
			strings.NewReader(`{"ownerId":"o1","planId":"plan_2_devices"}`)))

		require.Equal(t, http.StatusCreated, rec.Code)
		var sub model.Subscription
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
		assert.Equal(t, 2, sub.Devices)
		granter.AssertExpectations(t)
	})

	t.Run("requires plan id", func(t *testing.T) {
		granter := new(mockGranter)
		h := NewAdminHandler(new(mockAdmin), granter, newStubSessions())

		rec := serve(h.Routes(), nil, httptest.NewRequest(http.MethodPost, "/subscriptions",
			strings.NewReader(`{"ownerId":"o1"}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		granter.AssertNotCalled(t, "Grant")
	})

	t.Run("unknown owner is 404", func(t *testing.T) {
		admin := new(mockAdmin)
		admin.On("GetOwnerByID", mock.Anything, "ghost").Return(nil, apperrors.NotFound("Owner"))
		granter := new(mockGranter)

		h := NewAdminHandler(admin, granter, newStubSessions())
		rec := serve(h.Routes(), nil, httptest.NewRequest(http.MethodPost, "/subscriptions",
			strings.NewReader(`{"ownerId":"ghost","planId":"plan_1_device","months":3}`)))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		granter.AssertNotCalled(t, "Grant")
	})
}

func TestAdminHandler_Sessions(t *testing.T) {
	sessions := newStubSessions(
		model.Session{ID: "a1", OwnerID: "owner-a"},
		model.Session{ID: "b1", OwnerID: "owner-b"},
	)
	sessions.statuses["b1"] = model.SessionStatusWaitingQR
	h := NewAdminHandler(new(mockAdmin), new(mockGranter), sessions)

	rec := serve(h.Routes(), nil, httptest.NewRequest(http.MethodGet, "/sessions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Items []model.SessionView `json:"items"`
		Total int                 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Total)
	assert.Equal(t, model.SessionStatusWaitingQR, body.Items[1].Status)

	rec = serve(h.Routes(), nil, httptest.NewRequest(http.MethodDelete, "/sessions/b1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(h.Routes(), nil, httptest.NewRequest(http.MethodDelete, "/sessions/b1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminHandler_Stats(t *testing.T) {
	admin := new(mockAdmin)
	stats := &service.Stats{Owners: 3}
	stats.Sessions.Total = 4
	stats.Sessions.Connected = 2
	admin.On("GetStats", mock.Anything).Return(stats, nil)

	h := NewAdminHandler(admin, new(mockGranter), newStubSessions())
	rec := serve(h.Routes(), nil, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"owners":3`)
	assert.Contains(t, rec.Body.String(), `"connected":2`)
}
