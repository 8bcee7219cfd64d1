package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zapdeck/session-server/internal/model"
	"github.com/zapdeck/session-server/internal/service"
)

type TemplateManager interface {
	Create(ctx context.Context, ownerID string, params service.TemplateParams) (*model.MessageTemplate, error)
	List(ctx context.Context, ownerID string, filter model.TemplateFilter) ([]model.MessageTemplate, error)
	Get(ctx context.Context, ownerID, id string) (*model.MessageTemplate, error)
	Update(ctx context.Context, ownerID, id string, params model.UpdateTemplateParams) (*model.MessageTemplate, error)
	Use(ctx context.Context, ownerID, id string) (*model.MessageTemplate, error)
	Categories(ctx context.Context, ownerID string) ([]string, error)
	Delete(ctx context.Context, ownerID, id string) error
}

type TemplateHandler struct {
	templates TemplateManager
}

func NewTemplateHandler(templates TemplateManager) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

func (h *TemplateHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/categories", h.Categories)
	r.Get("/{templateId}", h.Get)
	r.Patch("/{templateId}", h.Update)
	r.Put("/{templateId}", h.Update)
	r.Delete("/{templateId}", h.Delete)
	r.Post("/{templateId}/use", h.Use)

	return r
}

type createTemplateRequest struct {
	Name     string   `json:"name"`
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

type updateTemplateRequest struct {
	Name     *string   `json:"name"`
	Content  *string   `json:"content"`
	Category *string   `json:"category"`
	Tags     *[]string `json:"tags"`
}

// POST /v1/templates
func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == nil {
		return
	}

	var req createTemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	tmpl, err := h.templates.Create(r.Context(), owner.ID, service.TemplateParams{
		Name:     req.Name,
		Content:  req.Content,
		Category: req.Category,
		Tags:     req.Tags,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, tmpl)
}

// GET /v1/templates?category=&search=
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == nil {
		return
	}

	query := r.URL.Query()
	templates, err := h.templates.List(r.Context(), owner.ID, model.TemplateFilter{
		Category: query.Get("category"),
		Search:   query.Get("search"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if templates == nil {
		templates = []model.MessageTemplate{}
	}

	categorized := make(map[string][]model.MessageTemplate)
	for _, tpl := range templates {
		categorized[tpl.Category] = append(categorized[tpl.Category], tpl)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"templates":   templates,
		"categorized": categorized,
		"total":       len(templates),
	})
}

// GET /v1/templates/categories
func (h *TemplateHandler) Categories(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == nil {
		return
	}

	categories, err := h.templates.Categories(r.Context(), owner.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if categories == nil {
		categories = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

// GET /v1/templates/{templateId}
func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == nil {
		return
	}

	tmpl, err := h.templates.Get(r.Context(), owner.ID, chi.URLParam(r, "templateId"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tmpl)
}

// PATCH /v1/templates/{templateId}
func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == nil {
		return
	}

	var req updateTemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	tmpl, err := h.templates.Update(r.Context(), owner.ID, chi.URLParam(r, "templateId"), model.UpdateTemplateParams{
		Name:     req.Name,
		Content:  req.Content,
		Category: req.Category,
		Tags:     req.Tags,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tmpl)
}

// POST /v1/templates/{templateId}/use
func (h *TemplateHandler) Use(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == nil {
		return
	}

	tmpl, err := h.templates.Use(r.Context(), owner.ID, chi.URLParam(r, "templateId"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"templateId": tmpl.ID,
		"usageCount": tmpl.UsageCount,
	})
}

// DELETE /v1/templates/{templateId}
func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == nil {
		return
	}

	if err := h.templates.Delete(r.Context(), owner.ID, chi.URLParam(r, "templateId")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
