package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapdeck/session-server/internal/model"
)

func boolPtr(b bool) *bool { return &b }
func strPtr(s string) *string { return &s }

func TestSessionRepository_CreateAndFind(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewSessionRepository(db.DB)
	ctx := context.Background()

	require.NoError(t, repo.Ping(ctx))

	created, err := repo.Create(ctx, model.CreateSessionRecordParams{
		ID:        "sales-1",
		Name:      "Sales",
		OwnerID:   "owner-1",
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, "sales-1", created.ID)
	assert.False(t, created.Ready)
	assert.False(t, created.Connected)
	assert.Nil(t, created.QRCode)

	t.Run("finds by id", func(t *testing.T) {
		rec, err := repo.FindByID(ctx, "sales-1")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "Sales", rec.Session().Name)
	})

	t.Run("returns nil for unknown id", func(t *testing.T) {
		rec, err := repo.FindByID(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("counts by owner", func(t *testing.T) {
		count, err := repo.CountByOwner(ctx, "owner-1")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestSessionRepository_PartialUpdate(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewSessionRepository(db.DB)
	ctx := context.Background()

	_, err := repo.Create(ctx, model.CreateSessionRecordParams{ID: "s1", Name: "One", OwnerID: "o", CreatedAt: time.Now()})
	require.NoError(t, err)

	require.NoError(t, repo.Update(ctx, "s1", model.SessionUpdate{
		QRCode:    strPtr("data:image/png;base64,AAAA"),
		Ready:     boolPtr(false),
		Connected: boolPtr(false),
	}))

	rec, err := repo.FindByID(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, rec.QRCode)

	t.Run("connected only leaves other fields", func(t *testing.T) {
		require.NoError(t, repo.Update(ctx, "s1", model.SessionUpdate{
			Connected: boolPtr(true),
			JID:       strPtr("5511999999999.0:1@s.whatsapp.net"),
		}))
		rec, err := repo.FindByID(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, rec.Connected)
		assert.False(t, rec.Ready)
		assert.NotNil(t, rec.QRCode)
		assert.Equal(t, "5511999999999.0:1@s.whatsapp.net", *rec.JID)
	})

	t.Run("clear qr removes the code", func(t *testing.T) {
		require.NoError(t, repo.Update(ctx, "s1", model.SessionUpdate{Ready: boolPtr(true), ClearQR: true}))
		rec, err := repo.FindByID(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, rec.Ready)
		assert.Nil(t, rec.QRCode)
		assert.NotNil(t, rec.JID)
	})

	t.Run("delete removes the record", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "s1"))
		rec, err := repo.FindByID(ctx, "s1")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})
}
