package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/zapdeck/session-server/internal/errors"
	"github.com/zapdeck/session-server/internal/model"
	"github.com/zapdeck/session-server/internal/repository"
)

const maxTemplateNameLength = 100

type TemplateParams struct {
	Name     string
	Content  string
	Category string
	Tags     []string
}

type TemplateService struct {
	templateRepo repository.TemplateRepository
}

func NewTemplateService(templateRepo repository.TemplateRepository) *TemplateService {
	return &TemplateService{templateRepo: templateRepo}
}

func (s *TemplateService) Create(ctx context.Context, ownerID string, params TemplateParams) (*model.MessageTemplate, error) {
	name := strings.TrimSpace(params.Name)
	content := strings.TrimSpace(params.Content)
	if name == "" {
		return nil, apperrors.MissingRequired("name")
	}
	if content == "" {
		return nil, apperrors.MissingRequired("content")
	}
	if err := validateTemplateName(name); err != nil {
		return nil, err
	}

	tpl, err := s.templateRepo.Create(ctx, model.CreateTemplateParams{
		ID:       uuid.NewString(),
		OwnerID:  ownerID,
		Name:     name,
		Content:  content,
		Category: normalizeCategory(params.Category),
		Tags:     normalizeTags(params.Tags),
	})
	if err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}

	log.Info().Str("templateId", tpl.ID).Str("ownerId", ownerID).Msg("template created")
	return tpl, nil
}

func (s *TemplateService) List(ctx context.Context, ownerID string, filter model.TemplateFilter) ([]model.MessageTemplate, error) {
	filter.Category = strings.TrimSpace(filter.Category)
	if strings.EqualFold(filter.Category, "all") {
		filter.Category = ""
	}
	filter.Search = strings.TrimSpace(filter.Search)
	return s.templateRepo.FindByOwner(ctx, ownerID, filter)
}

func (s *TemplateService) Get(ctx context.Context, ownerID, id string) (*model.MessageTemplate, error) {
	tpl, err := s.templateRepo.FindActiveByID(ctx, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("find template: %w", err)
	}
	if tpl == nil {
		return nil, apperrors.NotFound("Template")
	}
	return tpl, nil
}

func (s *TemplateService) Update(ctx context.Context, ownerID, id string, params model.UpdateTemplateParams) (*model.MessageTemplate, error) {
	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if name == "" {
			return nil, apperrors.ValidationError("name must not be empty")
		}
		if err := validateTemplateName(name); err != nil {
			return nil, err
		}
		params.Name = &name
	}
	if params.Content != nil {
		content := strings.TrimSpace(*params.Content)
		if content == "" {
			return nil, apperrors.ValidationError("content must not be empty")
		}
		params.Content = &content
	}
	if params.Category != nil {
		category := normalizeCategory(*params.Category)
		params.Category = &category
	}
	if params.Tags != nil {
		tags := normalizeTags(*params.Tags)
		params.Tags = &tags
	}

	tpl, err := s.templateRepo.Update(ctx, id, ownerID, params)
	if err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	if tpl == nil {
		return nil, apperrors.NotFound("Template")
	}

	log.Info().Str("templateId", id).Str("ownerId", ownerID).Msg("template updated")
	return tpl, nil
}

// Use records one use of the template and returns it with the new count.
func (s *TemplateService) Use(ctx context.Context, ownerID, id string) (*model.MessageTemplate, error) {
	tpl, err := s.templateRepo.IncrementUsage(ctx, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("record template usage: %w", err)
	}
	if tpl == nil {
		return nil, apperrors.NotFound("Template")
	}
	return tpl, nil
}

func (s *TemplateService) Categories(ctx context.Context, ownerID string) ([]string, error) {
	categories, err := s.templateRepo.Categories(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list template categories: %w", err)
	}
	return categories, nil
}

// Delete deactivates the template so scheduled messages keep their reference.
func (s *TemplateService) Delete(ctx context.Context, ownerID, id string) error {
	found, err := s.templateRepo.Deactivate(ctx, id, ownerID)
	if err != nil {
		return fmt.Errorf("deactivate template: %w", err)
	}
	if !found {
		return apperrors.NotFound("Template")
	}

	log.Info().Str("templateId", id).Str("ownerId", ownerID).Msg("template deleted")
	return nil
}

func validateTemplateName(name string) error {
	if len(name) > maxTemplateNameLength {
		return apperrors.ValidationError(fmt.Sprintf("name must be at most %d characters", maxTemplateNameLength))
	}
	return nil
}

func normalizeCategory(category string) string {
	if category = strings.TrimSpace(category); category == "" {
		return model.DefaultTemplateCategory
	}
	return category
}

// normalizeTags trims tags and drops blanks and duplicates, keeping order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
