package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/revu/internal/domain"
	"github.com/utafrali/revu/internal/repository"
	"github.com/utafrali/revu/internal/service"
	"github.com/utafrali/revu/pkg/httputil"
	"github.com/utafrali/revu/pkg/pagination"
)

// ProductHandler handles HTTP requests for product endpoints.
type ProductHandler struct {
	service *service.ProductService
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc *service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: svc,
		logger:  logger,
	}
}

// ProductListResponse is one page of products with paging metadata.
type ProductListResponse struct {
	Products []domain.Product `json:"products"`
	pagination.Meta
}

// ListProducts handles GET /api/v1/products
// Query: page, limit (max 100), category (slug), sort
// (rating_desc, rating_asc, price_asc, price_desc, newest).
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	p := pagination.FromRequest(r)
	filter := repository.ProductFilter{
		Sort:   r.URL.Query().Get("sort"),
		Limit:  p.Limit,
		Offset: p.Offset,
	}
	if v := r.URL.Query().Get("category"); v != "" {
		filter.Category = &v
	}

	page, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, ProductListResponse{
		Products: page.Products,
		Meta:     pagination.NewMeta(page.Total, p),
	})
}

// GetProduct handles GET /api/v1/products/{id}
// Stale marketplace reviews are refreshed before the product and its
// reviews are returned.
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	detail, err := h.service.GetProductDetail(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, detail)
}
