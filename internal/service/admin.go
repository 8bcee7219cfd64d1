package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/zapdeck/session-server/internal/config"
	apperrors "github.com/zapdeck/session-server/internal/errors"
	"github.com/zapdeck/session-server/internal/model"
	"github.com/zapdeck/session-server/internal/repository"
	"github.com/zapdeck/session-server/internal/util"
)

// SessionOverview is the read side of the registry used for operator statistics.
type SessionOverview interface {
	List() []model.Session
	StatusOf(id string) model.StatusInfo
}

type AdminService struct {
	ownerRepo repository.OwnerRepository
	sessions  SessionOverview
}

func NewAdminService(ownerRepo repository.OwnerRepository, sessions SessionOverview) *AdminService {
	return &AdminService{
		ownerRepo: ownerRepo,
		sessions:  sessions,
	}
}

type Stats struct {
	Owners   int `json:"owners"`
	Sessions struct {
		Total        int `json:"total"`
		Connected    int `json:"connected"`
		WaitingQR    int `json:"waitingQr"`
		Disconnected int `json:"disconnected"`
	} `json:"sessions"`
}

func (s *AdminService) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	owners, err := s.ownerRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count owners: %w", err)
	}
	stats.Owners = owners

	for _, session := range s.sessions.List() {
		stats.Sessions.Total++
		switch s.sessions.StatusOf(session.ID).Status {
		case model.SessionStatusConnected:
			stats.Sessions.Connected++
		case model.SessionStatusWaitingQR:
			stats.Sessions.WaitingQR++
		default:
			stats.Sessions.Disconnected++
		}
	}
	return stats, nil
}

// CreateOwner registers an owner and returns the plaintext API token. Only its hash is stored.
func (s *AdminService) CreateOwner(ctx context.Context, displayName string, email *string, rateLimit int) (*model.Owner, string, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, "", apperrors.MissingRequired("displayName")
	}
	if rateLimit <= 0 {
		rateLimit = config.DefaultRateLimitPerMin
	}

	token, err := util.GenerateToken()
	if err != nil {
		return nil, "", err
	}

	owner, err := s.ownerRepo.Create(ctx, model.CreateOwnerParams{
		DisplayName:     displayName,
		Email:           email,
		APITokenHash:    util.HashToken(token),
		RateLimitPerMin: rateLimit,
	})
	if err != nil {
		return nil, "", fmt.Errorf("create owner: %w", err)
	}

	log.Info().
		Str("ownerId", owner.ID).
		Str("token", util.MaskToken(token)).
		Msg("owner created")

	return owner, token, nil
}

func (s *AdminService) RegenerateToken(ctx context.Context, ownerID string) (string, error) {
	token, err := util.GenerateToken()
	if err != nil {
		return "", err
	}

	found, err := s.ownerRepo.UpdateTokenHash(ctx, ownerID, util.HashToken(token))
	if err != nil {
		return "", fmt.Errorf("update token: %w", err)
	}
	if !found {
		return "", apperrors.NotFound("Owner")
	}

	log.Info().Str("ownerId", ownerID).Msg("owner token regenerated")
	return token, nil
}

func (s *AdminService) GetOwners(ctx context.Context, limit, offset int) ([]model.Owner, int, error) {
	owners, err := s.ownerRepo.FindAll(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.ownerRepo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return owners, total, nil
}

func (s *AdminService) GetOwnerByID(ctx context.Context, id string) (*model.Owner, error) {
	owner, err := s.ownerRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, apperrors.NotFound("Owner")
	}
	return owner, nil
}
