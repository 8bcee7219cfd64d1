package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/zapdeck/session-server/internal/model"
)

type ScheduledMessageRepository interface {
	Create(ctx context.Context, params model.CreateScheduledMessageParams) (*model.ScheduledMessage, error)
	FindByID(ctx context.Context, id string) (*model.ScheduledMessage, error)
	FindByOwner(ctx context.Context, ownerID string, status *model.ScheduledStatus, limit, offset int) ([]model.ScheduledMessage, error)
	CountByOwner(ctx context.Context, ownerID string, status *model.ScheduledStatus) (int, error)
	FindDue(ctx context.Context, now time.Time, limit int) ([]model.ScheduledMessage, error)
	// UpdatePending applies params only while the message is still pending.
	UpdatePending(ctx context.Context, id, ownerID string, params model.UpdateScheduledMessageParams) (*model.ScheduledMessage, error)
	// CancelPending reports whether a pending message was cancelled.
	CancelPending(ctx context.Context, id, ownerID string) (bool, error)
	IncrementAttempts(ctx context.Context, id string) (int, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	RecordFailure(ctx context.Context, id, message string, final bool) error
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type scheduledMessageRepo struct {
	db sqlxDB
}

func NewScheduledMessageRepository(db *sqlx.DB) ScheduledMessageRepository {
	return &scheduledMessageRepo{db: db}
}

func (r *scheduledMessageRepo) Create(ctx context.Context, params model.CreateScheduledMessageParams) (*model.ScheduledMessage, error) {
	var msg model.ScheduledMessage
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO scheduled_messages (
			id, owner_id, session_id, recipient_number, recipient_name,
			template_id, content, scheduled_at, status, attempts, max_attempts
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', 0, $9)
		RETURNING *
	`, params.ID, params.OwnerID, params.SessionID, params.RecipientNumber, params.RecipientName,
		params.TemplateID, params.Content, params.ScheduledAt, params.MaxAttempts)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *scheduledMessageRepo) FindByID(ctx context.Context, id string) (*model.ScheduledMessage, error) {
	var msg model.ScheduledMessage
	err := r.db.GetContext(ctx, &msg, `SELECT * FROM scheduled_messages WHERE id = $1`, id)
	return HandleNotFound(&msg, err)
}

func (r *scheduledMessageRepo) FindByOwner(ctx context.Context, ownerID string, status *model.ScheduledStatus, limit, offset int) ([]model.ScheduledMessage, error) {
	var msgs []model.ScheduledMessage
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM scheduled_messages
		WHERE owner_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY scheduled_at DESC
		LIMIT $3 OFFSET $4
	`, ownerID, status, limit, offset)
	return msgs, err
}

func (r *scheduledMessageRepo) CountByOwner(ctx context.Context, ownerID string, status *model.ScheduledStatus) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM scheduled_messages
		WHERE owner_id = $1 AND ($2::text IS NULL OR status = $2)
	`, ownerID, status)
	return count, err
}

func (r *scheduledMessageRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]model.ScheduledMessage, error) {
	var msgs []model.ScheduledMessage
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM scheduled_messages
		WHERE status = 'pending' AND scheduled_at <= $1 AND attempts < max_attempts
		ORDER BY scheduled_at ASC
		LIMIT $2
	`, now, limit)
	return msgs, err
}

func (r *scheduledMessageRepo) UpdatePending(ctx context.Context, id, ownerID string, params model.UpdateScheduledMessageParams) (*model.ScheduledMessage, error) {
	var msg model.ScheduledMessage
	err := r.db.GetContext(ctx, &msg, `
		UPDATE scheduled_messages SET
			recipient_number = COALESCE($3, recipient_number),
			recipient_name = COALESCE($4, recipient_name),
			content = COALESCE($5, content),
			scheduled_at = COALESCE($6, scheduled_at),
			updated_at = $7
		WHERE id = $1 AND owner_id = $2 AND status = 'pending'
		RETURNING *
	`, id, ownerID, params.RecipientNumber, params.RecipientName, params.Content, params.ScheduledAt, time.Now())
	return HandleNotFound(&msg, err)
}

func (r *scheduledMessageRepo) CancelPending(ctx context.Context, id, ownerID string) (bool, error) {
	return affected(r.db.ExecContext(ctx, `
		UPDATE scheduled_messages SET status = 'cancelled', updated_at = $3
		WHERE id = $1 AND owner_id = $2 AND status = 'pending'
	`, id, ownerID, time.Now()))
}

func (r *scheduledMessageRepo) IncrementAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.db.GetContext(ctx, &attempts, `
		UPDATE scheduled_messages SET attempts = attempts + 1, updated_at = $2
		WHERE id = $1
		RETURNING attempts
	`, id, time.Now())
	return attempts, err
}

func (r *scheduledMessageRepo) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_messages SET status = 'sent', sent_at = $2, error_message = NULL, updated_at = $2
		WHERE id = $1
	`, id, sentAt)
	return err
}

func (r *scheduledMessageRepo) RecordFailure(ctx context.Context, id, message string, final bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_messages SET
			error_message = $2,
			status = CASE WHEN $3::boolean THEN 'failed' ELSE status END,
			updated_at = $4
		WHERE id = $1
	`, id, message, final, time.Now())
	return err
}

func (r *scheduledMessageRepo) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM scheduled_messages
		WHERE status IN ('sent', 'failed', 'cancelled') AND updated_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
