package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zapdeck/session-server/internal/config"
	apperrors "github.com/zapdeck/session-server/internal/errors"
	"github.com/zapdeck/session-server/internal/model"
	"github.com/zapdeck/session-server/internal/repository"
)

// SessionLookup resolves a session by id.
type SessionLookup interface {
	FindByID(id string) (model.Session, bool)
}

type ScheduleParams struct {
	SessionID       string
	RecipientNumber string
	RecipientName   *string
	TemplateID      *string
	Content         string
	ScheduledAt     time.Time
}

type ScheduleService struct {
	msgRepo      repository.ScheduledMessageRepository
	templateRepo repository.TemplateRepository
	sessions     SessionLookup
	now          func() time.Time
}

func NewScheduleService(
	msgRepo repository.ScheduledMessageRepository,
	templateRepo repository.TemplateRepository,
	sessions SessionLookup,
) *ScheduleService {
	return &ScheduleService{
		msgRepo:      msgRepo,
		templateRepo: templateRepo,
		sessions:     sessions,
		now:          time.Now,
	}
}

// Schedule stores a message for later delivery. Content comes from the template when one is given.
func (s *ScheduleService) Schedule(ctx context.Context, ownerID string, params ScheduleParams) (*model.ScheduledMessage, error) {
	if params.SessionID == "" {
		return nil, apperrors.MissingRequired("sessionId")
	}
	if strings.TrimSpace(params.RecipientNumber) == "" {
		return nil, apperrors.MissingRequired("recipientNumber")
	}
	if params.TemplateID == nil && strings.TrimSpace(params.Content) == "" {
		return nil, apperrors.ValidationError("either templateId or content is required")
	}
	if !params.ScheduledAt.After(s.now()) {
		return nil, apperrors.ValidationError("scheduledAt must be in the future")
	}

	session, ok := s.sessions.FindByID(params.SessionID)
	if !ok {
		return nil, apperrors.NotFound("Session")
	}
	if session.OwnerID != ownerID {
		return nil, apperrors.Forbidden("Session belongs to another owner")
	}

	content := params.Content
	if params.TemplateID != nil {
		tpl, err := s.templateRepo.FindActiveByID(ctx, *params.TemplateID, ownerID)
		if err != nil {
			return nil, fmt.Errorf("find template: %w", err)
		}
		if tpl == nil {
			return nil, apperrors.NotFound("Template")
		}
		content = tpl.Content

		if _, err := s.templateRepo.IncrementUsage(ctx, tpl.ID, ownerID); err != nil {
			log.Warn().Err(err).Str("templateId", tpl.ID).Msg("failed to increment template usage")
		}
	}
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.MissingRequired("content")
	}

	msg, err := s.msgRepo.Create(ctx, model.CreateScheduledMessageParams{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		SessionID:       params.SessionID,
		RecipientNumber: strings.TrimSpace(params.RecipientNumber),
		RecipientName:   params.RecipientName,
		TemplateID:      params.TemplateID,
		Content:         content,
		ScheduledAt:     params.ScheduledAt,
		MaxAttempts:     config.ScheduledMaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("create scheduled message: %w", err)
	}

	log.Info().
		Str("messageId", msg.ID).
		Str("ownerId", ownerID).
		Str("sessionId", msg.SessionID).
		Time("scheduledAt", msg.ScheduledAt).
		Msg("message scheduled")

	return msg, nil
}

// List returns a page of the owner's scheduled messages and the total matching count.
func (s *ScheduleService) List(ctx context.Context, ownerID string, status *model.ScheduledStatus, limit, offset int) ([]model.ScheduledMessage, int, error) {
	msgs, err := s.msgRepo.FindByOwner(ctx, ownerID, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("find scheduled messages: %w", err)
	}
	total, err := s.msgRepo.CountByOwner(ctx, ownerID, status)
	if err != nil {
		return nil, 0, fmt.Errorf("count scheduled messages: %w", err)
	}
	return msgs, total, nil
}

func (s *ScheduleService) Cancel(ctx context.Context, ownerID, id string) error {
	cancelled, err := s.msgRepo.CancelPending(ctx, id, ownerID)
	if err != nil {
		return fmt.Errorf("cancel scheduled message: %w", err)
	}
	if !cancelled {
		return apperrors.NotFound("Pending scheduled message")
	}

	log.Info().Str("messageId", id).Str("ownerId", ownerID).Msg("scheduled message cancelled")
	return nil
}

// Update edits a message that has not been processed yet.
func (s *ScheduleService) Update(ctx context.Context, ownerID, id string, params model.UpdateScheduledMessageParams) (*model.ScheduledMessage, error) {
	if params.ScheduledAt != nil && !params.ScheduledAt.After(s.now()) {
		return nil, apperrors.ValidationError("scheduledAt must be in the future")
	}
	if params.Content != nil && strings.TrimSpace(*params.Content) == "" {
		return nil, apperrors.ValidationError("content must not be empty")
	}
	if params.RecipientNumber != nil && strings.TrimSpace(*params.RecipientNumber) == "" {
		return nil, apperrors.ValidationError("recipientNumber must not be empty")
	}

	msg, err := s.msgRepo.UpdatePending(ctx, id, ownerID, params)
	if err != nil {
		return nil, fmt.Errorf("update scheduled message: %w", err)
	}
	if msg == nil {
		return nil, apperrors.NotFound("Pending scheduled message")
	}

	log.Info().Str("messageId", id).Str("ownerId", ownerID).Msg("scheduled message updated")
	return msg, nil
}
