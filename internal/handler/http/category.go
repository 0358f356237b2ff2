package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/revu/internal/service"
	"github.com/utafrali/revu/pkg/httputil"
)

// CategoryHandler handles HTTP requests for category endpoints.
type CategoryHandler struct {
	service *service.CategoryService
	logger  *slog.Logger
}

// NewCategoryHandler creates a new category HTTP handler.
func NewCategoryHandler(svc *service.CategoryService, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{
		service: svc,
		logger:  logger,
	}
}

// ListCategories handles GET /api/v1/categories
func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, categories)
}

// GetCategoryProducts handles GET /api/v1/categories/{slug}/products
func (h *CategoryHandler) GetCategoryProducts(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.GetCategoryProducts(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, result)
}

// SearchCategories handles GET /api/v1/categories/search?q=
func (h *CategoryHandler) SearchCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.SearchCategories(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, categories)
}
