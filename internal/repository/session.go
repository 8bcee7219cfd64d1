package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/zapdeck/session-server/internal/model"
)

// SessionRepository is the durable store of session records.
type SessionRepository interface {
	// Ping probes store readiness.
	Ping(ctx context.Context) error
	FindAll(ctx context.Context) ([]model.SessionRecord, error)
	FindByOwner(ctx context.Context, ownerID string) ([]model.SessionRecord, error)
	FindByID(ctx context.Context, id string) (*model.SessionRecord, error)
	Create(ctx context.Context, params model.CreateSessionRecordParams) (*model.SessionRecord, error)
	Update(ctx context.Context, id string, upd model.SessionUpdate) error
	Delete(ctx context.Context, id string) error
	CountByOwner(ctx context.Context, ownerID string) (int, error)
}

type sessionRepo struct {
	db *sqlx.DB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *sessionRepo) FindAll(ctx context.Context) ([]model.SessionRecord, error) {
	var records []model.SessionRecord
	err := r.db.SelectContext(ctx, &records, `
		SELECT * FROM wa_sessions ORDER BY created_at ASC
	`)
	return records, err
}

func (r *sessionRepo) FindByOwner(ctx context.Context, ownerID string) ([]model.SessionRecord, error) {
	var records []model.SessionRecord
	err := r.db.SelectContext(ctx, &records, `
		SELECT * FROM wa_sessions WHERE owner_id = $1 ORDER BY created_at ASC
	`, ownerID)
	return records, err
}

func (r *sessionRepo) FindByID(ctx context.Context, id string) (*model.SessionRecord, error) {
	var record model.SessionRecord
	err := r.db.GetContext(ctx, &record, `SELECT * FROM wa_sessions WHERE id = $1`, id)
	return HandleNotFound(&record, err)
}

// Create upserts the record so a stale row left by a crashed process is reset.
func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionRecordParams) (*model.SessionRecord, error) {
	var record model.SessionRecord
	err := r.db.GetContext(ctx, &record, `
		INSERT INTO wa_sessions (id, name, owner_id, ready, connected, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, FALSE, $4, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			owner_id = EXCLUDED.owner_id,
			ready = FALSE,
			connected = FALSE,
			qr_code = NULL,
			updated_at = EXCLUDED.updated_at
		RETURNING *
	`, params.ID, params.Name, params.OwnerID, params.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *sessionRepo) Update(ctx context.Context, id string, upd model.SessionUpdate) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE wa_sessions SET
			ready = COALESCE($2, ready),
			connected = COALESCE($3, connected),
			qr_code = CASE WHEN $4::boolean THEN NULL ELSE COALESCE($5, qr_code) END,
			jid = COALESCE($6, jid),
			updated_at = $7
		WHERE id = $1
	`, id, upd.Ready, upd.Connected, upd.ClearQR, upd.QRCode, upd.JID, time.Now())
	return err
}

func (r *sessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM wa_sessions WHERE id = $1`, id)
	return err
}

func (r *sessionRepo) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM wa_sessions WHERE owner_id = $1
	`, ownerID)
	return count, err
}
