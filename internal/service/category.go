package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/utafrali/revu/internal/domain"
	"github.com/utafrali/revu/internal/repository"
	"github.com/utafrali/revu/pkg/slug"
)

const (
	// categorySearchLimit caps category name search results.
	categorySearchLimit = 5
	// categoryProductsLimit caps a category's product listing.
	categoryProductsLimit = 500
)

// CategoryProducts is a category with its products, best rated first.
type CategoryProducts struct {
	Category *domain.Category `json:"category"`
	Products []domain.Product `json:"products"`
	Total    int              `json:"total"`
}

// CategoryService implements the business logic for category operations.
type CategoryService struct {
	categories repository.CategoryRepository
	products   repository.ProductRepository
	logger     *slog.Logger
}

// NewCategoryService creates a new category service.
func NewCategoryService(categories repository.CategoryRepository, products repository.ProductRepository, logger *slog.Logger) *CategoryService {
	return &CategoryService{
		categories: categories,
		products:   products,
		logger:     logger,
	}
}

// ListCategories returns every category ordered by name.
func (s *CategoryService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.categories.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// GetCategoryProducts returns the category identified by key with its
// products ordered by rating. key may be a slug or a display name.
func (s *CategoryService) GetCategoryProducts(ctx context.Context, key string) (*CategoryProducts, error) {
	category, err := s.categories.GetBySlug(ctx, slug.Generate(key))
	if err != nil {
		return nil, fmt.Errorf("get category by slug: %w", err)
	}

	products, _, err := s.products.List(ctx, repository.ProductFilter{
		Category: &category.Slug,
		Sort:     domain.SortRatingDesc,
		Limit:    categoryProductsLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("list category products: %w", err)
	}

	return &CategoryProducts{Category: category, Products: products, Total: len(products)}, nil
}

// SearchCategories returns up to five categories whose name contains query.
// A blank query matches nothing.
func (s *CategoryService) SearchCategories(ctx context.Context, query string) ([]domain.Category, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Category{}, nil
	}

	categories, err := s.categories.Search(ctx, query, categorySearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search categories: %w", err)
	}
	return categories, nil
}
