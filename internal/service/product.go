package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/revu/internal/domain"
	"github.com/utafrali/revu/internal/repository"
)

// Listing limits.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Refresher refreshes a product's reviews. *ReviewRefresher implements it.
type Refresher interface {
	Refresh(ctx context.Context, p *domain.Product) (bool, error)
}

// ProductService implements the business logic for product operations.
type ProductService struct {
	products  repository.ProductRepository
	reviews   repository.ReviewRepository
	refresher Refresher
	listCache repository.ProductListCache
	logger    *slog.Logger
}

// NewProductService creates a new product service. refresher and listCache
// may be nil.
func NewProductService(
	products repository.ProductRepository,
	reviews repository.ReviewRepository,
	refresher Refresher,
	listCache repository.ProductListCache,
	logger *slog.Logger,
) *ProductService {
	return &ProductService{
		products:  products,
		reviews:   reviews,
		refresher: refresher,
		listCache: listCache,
		logger:    logger,
	}
}

// GetProduct retrieves a product by its ID.
func (s *ProductService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return product, nil
}

// GetProductDetail retrieves a product with all of its reviews. Stale
// marketplace reviews are refreshed first; a failed refresh is logged and
// the cached reviews are returned.
func (s *ProductService) GetProductDetail(ctx context.Context, id string) (*domain.ProductDetail, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}

	if s.refresher != nil {
		if _, err := s.refresher.Refresh(ctx, product); err != nil {
			s.logger.WarnContext(ctx, "review refresh failed, serving cached reviews",
				slog.String("product_id", product.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	reviews, err := s.reviews.ListByProductID(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("list product reviews: %w", err)
	}

	return &domain.ProductDetail{Product: *product, Reviews: reviews}, nil
}

// ListProducts returns a filtered, sorted page of products. Pages are served
// from the list cache when possible; cache failures fall through to the store.
func (s *ProductService) ListProducts(ctx context.Context, filter repository.ProductFilter) (*repository.ProductPage, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	filter.Sort = domain.NormalizeSort(filter.Sort)

	if s.listCache != nil {
		page, err := s.listCache.Get(ctx, filter)
		if err != nil {
			s.logger.WarnContext(ctx, "product list cache read failed",
				slog.String("error", err.Error()),
			)
		} else if page != nil {
			return page, nil
		}
	}

	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	page := &repository.ProductPage{Products: products, Total: total}

	if s.listCache != nil {
		if err := s.listCache.Set(ctx, filter, page); err != nil {
			s.logger.WarnContext(ctx, "product list cache write failed",
				slog.String("error", err.Error()),
			)
		}
	}

	return page, nil
}
