package repository

import (
	"context"
	"time"

	"github.com/utafrali/revu/internal/domain"
)

// ProductFilter defines filter criteria for listing products.
type ProductFilter struct {
	Category *string
	Sort     string
	Limit    int
	Offset   int
}

// ProductPage is one page of a product listing plus the unpaginated total.
type ProductPage struct {
	Products []domain.Product `json:"products"`
	Total    int              `json:"total"`
}

// RatingUpdate is the denormalized rating state written after a review replace.
type RatingUpdate struct {
	ReviewCount int
	Rating      float64
	FetchedAt   time.Time
}

// ProductRepository defines the interface for product persistence operations.
type ProductRepository interface {
	// GetByID retrieves a product by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// List returns products matching the given filter along with the total count.
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error)

	// SetAmazonASIN persists the marketplace identifier resolved for a product.
	SetAmazonASIN(ctx context.Context, id, asin string) error

	// MarkReviewsFetched stamps reviews_fetched_at without touching reviews.
	MarkReviewsFetched(ctx context.Context, id string, at time.Time) error

	// UpsertByASIN inserts or updates a product keyed by amazon_asin and
	// reports whether a new row was created.
	UpsertByASIN(ctx context.Context, p *domain.Product) (bool, error)

	// UpsertBySKU inserts or updates a product keyed by bestbuy_sku and
	// reports whether a new row was created.
	UpsertBySKU(ctx context.Context, p *domain.Product) (bool, error)

	// Count returns the number of stored products.
	Count(ctx context.Context) (int, error)
}

// ReviewRepository defines the interface for review persistence operations.
type ReviewRepository interface {
	// ListByProductID returns every review of a product, newest first.
	ListByProductID(ctx context.Context, productID string) ([]domain.Review, error)

	// ReplaceForSource deletes the product's reviews from source, inserts
	// reviews, recomputes the product's rating and review count from all of
	// its reviews and stamps reviews_fetched_at, all in one transaction.
	ReplaceForSource(ctx context.Context, productID string, source domain.ReviewSource, reviews []domain.Review, fetchedAt time.Time) (*RatingUpdate, error)
}

// CategoryRepository defines the interface for category persistence operations.
type CategoryRepository interface {
	// ListAll returns every category ordered by name.
	ListAll(ctx context.Context) ([]domain.Category, error)

	// GetBySlug retrieves a category by its slug.
	GetBySlug(ctx context.Context, slug string) (*domain.Category, error)

	// Search returns up to limit categories whose name contains query.
	Search(ctx context.Context, query string, limit int) ([]domain.Category, error)

	// EnsureExists inserts the given categories, skipping slugs already present.
	EnsureExists(ctx context.Context, categories []domain.Category) error

	// RecountProducts refreshes product_count for every category.
	RecountProducts(ctx context.Context) error
}

// UsageRepository records and counts outbound API calls.
type UsageRepository interface {
	// CountSince counts calls to apiName made at or after since.
	CountSince(ctx context.Context, apiName string, since time.Time) (int, error)

	// Create appends a usage record.
	Create(ctx context.Context, usage *domain.APIUsage) error
}

// Resetter wipes all catalog data.
type Resetter interface {
	// ResetAll deletes reviews, products, categories and usage records in one
	// transaction, children first.
	ResetAll(ctx context.Context) error
}

// ProductListCache caches product listing pages.
type ProductListCache interface {
	// Get returns the cached page for filter. A miss returns (nil, nil).
	Get(ctx context.Context, filter ProductFilter) (*ProductPage, error)

	// Set stores page for filter.
	Set(ctx context.Context, filter ProductFilter, page *ProductPage) error

	// Invalidate makes every cached page unreachable.
	Invalidate(ctx context.Context) error
}
