package repository

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zapdeck/session-server/internal/database"
	"github.com/zapdeck/session-server/migrations"
)

// setupTestDB connects to TEST_DATABASE_URL, applies the schema and truncates all tables.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := database.Connect(url)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx, migrations.FS))

	_, err = db.ExecContext(ctx, `
		TRUNCATE wa_sessions, owners, subscriptions, plans, message_templates, scheduled_messages
	`)
	require.NoError(t, err)

	return db
}
