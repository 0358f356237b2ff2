package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/revu/internal/catalog"
	"github.com/utafrali/revu/internal/domain"
	"github.com/utafrali/revu/internal/marketplace"
	"github.com/utafrali/revu/internal/repository"
)

// --- Mock Repositories ---

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepository) SetAmazonASIN(ctx context.Context, id, asin string) error {
	args := m.Called(ctx, id, asin)
	return args.Error(0)
}

func (m *mockProductRepository) MarkReviewsFetched(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *mockProductRepository) UpsertByASIN(ctx context.Context, p *domain.Product) (bool, error) {
	args := m.Called(ctx, p)
	return args.Bool(0), args.Error(1)
}

func (m *mockProductRepository) UpsertBySKU(ctx context.Context, p *domain.Product) (bool, error) {
	args := m.Called(ctx, p)
	return args.Bool(0), args.Error(1)
}

func (m *mockProductRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockReviewRepository struct {
	mock.Mock
}

func (m *mockReviewRepository) ListByProductID(ctx context.Context, productID string) ([]domain.Review, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Review), args.Error(1)
}

func (m *mockReviewRepository) ReplaceForSource(ctx context.Context, productID string, source domain.ReviewSource, reviews []domain.Review, fetchedAt time.Time) (*repository.RatingUpdate, error) {
	args := m.Called(ctx, productID, source, reviews, fetchedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.RatingUpdate), args.Error(1)
}

type mockCategoryRepository struct {
	mock.Mock
}

func (m *mockCategoryRepository) ListAll(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *mockCategoryRepository) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCategoryRepository) Search(ctx context.Context, query string, limit int) ([]domain.Category, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *mockCategoryRepository) EnsureExists(ctx context.Context, categories []domain.Category) error {
	args := m.Called(ctx, categories)
	return args.Error(0)
}

func (m *mockCategoryRepository) RecountProducts(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type mockResetter struct {
	mock.Mock
}

func (m *mockResetter) ResetAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type mockListCache struct {
	mock.Mock
}

func (m *mockListCache) Get(ctx context.Context, filter repository.ProductFilter) (*repository.ProductPage, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.ProductPage), args.Error(1)
}

func (m *mockListCache) Set(ctx context.Context, filter repository.ProductFilter, page *repository.ProductPage) error {
	args := m.Called(ctx, filter, page)
	return args.Error(0)
}

func (m *mockListCache) Invalidate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- Mock Collaborators ---

type mockRefresher struct {
	mock.Mock
}

func (m *mockRefresher) Refresh(ctx context.Context, p *domain.Product) (bool, error) {
	args := m.Called(ctx, p)
	return args.Bool(0), args.Error(1)
}

type mockMarketplace struct {
	mock.Mock
}

func (m *mockMarketplace) SearchProducts(ctx context.Context, query string, productID *string) ([]marketplace.Listing, error) {
	args := m.Called(ctx, query, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]marketplace.Listing), args.Error(1)
}

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) SearchByCategory(ctx context.Context, categoryID string, page, pageSize, minReviews int) (*catalog.Listing, error) {
	args := m.Called(ctx, categoryID, page, pageSize, minReviews)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Listing), args.Error(1)
}

type mockUsageReporter struct {
	mock.Mock
	api string
}

func (m *mockUsageReporter) API() string { return m.api }

func (m *mockUsageReporter) UsageStats(ctx context.Context) (domain.UsageStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.UsageStats), args.Error(1)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func strPtr(s string) *string {
	return &s
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func floatPtr(f float64) *float64 {
	return &f
}
