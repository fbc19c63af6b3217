package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/template_store/pkg/logger"
	"github.com/fjod/template_store/storefront-service/domain"
	"go.uber.org/zap"
)

type CatalogReader interface {
	ListTemplates(ctx context.Context) ([]*domain.Template, error)
	Search(ctx context.Context, query string) ([]*domain.Template, error)
}

type TemplateHandler struct {
	catalog CatalogReader
	timeout time.Duration
	log     *zap.Logger
}

func NewTemplateHandler(catalog CatalogReader, timeout time.Duration, log *zap.Logger) *TemplateHandler {
	return &TemplateHandler{
		catalog: catalog,
		timeout: timeout,
		log:     log,
	}
}

type TemplateResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Category    string `json:"category"`
}

// GET /api/templates
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	templates, err := h.catalog.ListTemplates(ctx)
	if err != nil {
		logger.WithContext(ctx, h.log).Error("list templates failed", zap.Error(err))
		respondError(w, h.log, http.StatusInternalServerError, msgInternalError)
		return
	}

	respondJSON(w, h.log, http.StatusOK, toTemplateResponses(templates))
}

// GET /api/search?q=
func (h *TemplateHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	query := r.URL.Query().Get("q")
	templates, err := h.catalog.Search(ctx, query)
	if err != nil {
		logger.WithContext(ctx, h.log).Error("search templates failed", zap.String("query", query), zap.Error(err))
		respondError(w, h.log, http.StatusInternalServerError, msgInternalError)
		return
	}

	respondJSON(w, h.log, http.StatusOK, toTemplateResponses(templates))
}

func toTemplateResponses(templates []*domain.Template) []TemplateResponse {
	out := make([]TemplateResponse, 0, len(templates))
	for _, t := range templates {
		out = append(out, TemplateResponse{
			ID:          t.ID,
			Name:        t.Name,
			Description: t.Description,
			Price:       t.Price,
			Category:    t.Category,
		})
	}
	return out
}
