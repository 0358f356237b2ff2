package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/revu/internal/domain"
	"github.com/utafrali/revu/internal/llm"
	"github.com/utafrali/revu/internal/repository"
	"github.com/utafrali/revu/internal/service"
	apperrors "github.com/utafrali/revu/pkg/errors"
	"github.com/utafrali/revu/pkg/health"
	"github.com/utafrali/revu/pkg/middleware"
)

// =============================================================================
// Mocks
// =============================================================================

type mockProductRepo struct {
	mock.Mock
}

func (m *mockProductRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepo) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepo) SetAmazonASIN(ctx context.Context, id, asin string) error {
	return m.Called(ctx, id, asin).Error(0)
}

func (m *mockProductRepo) MarkReviewsFetched(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *mockProductRepo) UpsertByASIN(ctx context.Context, p *domain.Product) (bool, error) {
	args := m.Called(ctx, p)
	return args.Bool(0), args.Error(1)
}

func (m *mockProductRepo) UpsertBySKU(ctx context.Context, p *domain.Product) (bool, error) {
	args := m.Called(ctx, p)
	return args.Bool(0), args.Error(1)
}

func (m *mockProductRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockReviewRepo struct {
	mock.Mock
}

func (m *mockReviewRepo) ListByProductID(ctx context.Context, productID string) ([]domain.Review, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).([]domain.Review), args.Error(1)
}

func (m *mockReviewRepo) ReplaceForSource(ctx context.Context, productID string, source domain.ReviewSource, reviews []domain.Review, fetchedAt time.Time) (*repository.RatingUpdate, error) {
	args := m.Called(ctx, productID, source, reviews, fetchedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.RatingUpdate), args.Error(1)
}

type mockCategoryRepo struct {
	mock.Mock
}

func (m *mockCategoryRepo) ListAll(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *mockCategoryRepo) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCategoryRepo) Search(ctx context.Context, query string, limit int) ([]domain.Category, error) {
	args := m.Called(ctx, query, limit)
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *mockCategoryRepo) EnsureExists(ctx context.Context, categories []domain.Category) error {
	return m.Called(ctx, categories).Error(0)
}

func (m *mockCategoryRepo) RecountProducts(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type stubRefresher struct {
	err error
}

func (s stubRefresher) Refresh(context.Context, *domain.Product) (bool, error) {
	return false, s.err
}

type stubUsage struct {
	api   string
	stats domain.UsageStats
}

func (s stubUsage) API() string { return s.api }

func (s stubUsage) UsageStats(context.Context) (domain.UsageStats, error) { return s.stats, nil }

type stubModel struct {
	configured bool
	reply      string
}

func (s stubModel) Configured() bool { return s.configured }

func (s stubModel) CreateMessage(context.Context, llm.Request) (*llm.Response, error) {
	return &llm.Response{Model: llm.DefaultModel, Content: []llm.ContentBlock{{Type: "text", Text: s.reply}}}, nil
}

// =============================================================================
// Helpers
// =============================================================================

const productID = "7f1d3c6e-3b8a-4c59-9a57-2f0a3c1b9d10"

type testEnv struct {
	products   *mockProductRepo
	reviews    *mockReviewRepo
	categories *mockCategoryRepo
	model      stubModel
	refresher  stubRefresher
	limiter    *middleware.RateLimiter
}

func newTestEnv() *testEnv {
	return &testEnv{
		products:   &mockProductRepo{},
		reviews:    &mockReviewRepo{},
		categories: &mockCategoryRepo{},
	}
}

func (e *testEnv) router() http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svcs := Services{
		Products:   service.NewProductService(e.products, e.reviews, e.refresher, nil, logger),
		Categories: service.NewCategoryService(e.categories, e.products, logger),
		Chat:       service.NewChatService(e.products, e.reviews, e.model, logger),
		Usage: service.NewUsageService(
			stubUsage{api: domain.APISerpApi, stats: domain.NewUsageStats(12, 250)},
			stubUsage{api: domain.APIBestBuy, stats: domain.NewUsageStats(0, 50000)},
		),
	}
	return NewRouter(svcs, RouterConfig{ServiceName: "revu-test", CORSOrigins: []string{"*"}, ChatLimiter: e.limiter}, health.NewHandler(), logger)
}

func (e *testEnv) do(t *testing.T, method, target string, body any) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, reader)
	req.RemoteAddr = "203.0.113.7:1234"
	rec := httptest.NewRecorder()
	e.router().ServeHTTP(rec, req)

	var envelope map[string]json.RawMessage
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	}
	return rec, envelope
}

func errorCode(t *testing.T, envelope map[string]json.RawMessage) string {
	t.Helper()
	var e struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(envelope["error"], &e))
	return e.Code
}

func testProduct() *domain.Product {
	return &domain.Product{
		ID:          productID,
		Name:        "Acme Air Fryer",
		Category:    "home-kitchen",
		Price:       decimal.RequireFromString("89.99"),
		Rating:      8.2,
		ReviewCount: 2,
	}
}

// =============================================================================
// Products
// =============================================================================

func TestListProducts(t *testing.T) {
	env := newTestEnv()
	category := "home-kitchen"
	env.products.On("List", mock.Anything, repository.ProductFilter{
		Category: &category,
		Sort:     domain.SortPriceAsc,
		Limit:    10,
		Offset:   10,
	}).Return([]domain.Product{*testProduct()}, 21, nil)

	rec, envelope := env.do(t, http.MethodGet, "/api/v1/products?page=2&limit=10&category=home-kitchen&sort=price_asc", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Products []domain.Product `json:"products"`
		Total    int              `json:"total"`
		Page     int              `json:"page"`
		Limit    int              `json:"limit"`
		Pages    int              `json:"pages"`
	}
	require.NoError(t, json.Unmarshal(envelope["data"], &data))
	require.Len(t, data.Products, 1)
	assert.Equal(t, "Acme Air Fryer", data.Products[0].Name)
	assert.True(t, decimal.RequireFromString("89.99").Equal(data.Products[0].Price))
	assert.Equal(t, 21, data.Total)
	assert.Equal(t, 2, data.Page)
	assert.Equal(t, 10, data.Limit)
	assert.Equal(t, 3, data.Pages)
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv()
	env.products.On("GetByID", mock.Anything, productID).Return(testProduct(), nil)
	env.reviews.On("ListByProductID", mock.Anything, productID).Return([]domain.Review{
		{ID: "r1", ProductID: productID, Source: domain.ReviewSourceAmazon, Text: "Crispy fries", SentimentScore: 0.9, Pros: []string{"Fast"}, Cons: []string{}},
	}, nil)

	rec, envelope := env.do(t, http.MethodGet, "/api/v1/products/"+productID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var detail domain.ProductDetail
	require.NoError(t, json.Unmarshal(envelope["data"], &detail))
	assert.Equal(t, productID, detail.ID)
	require.Len(t, detail.Reviews, 1)
	assert.Equal(t, []string{"Fast"}, detail.Reviews[0].Pros)
}

func TestGetProduct_RefreshErrorStillServes(t *testing.T) {
	env := newTestEnv()
	env.refresher = stubRefresher{err: apperrors.Upstream("serpapi", assert.AnError)}
	env.products.On("GetByID", mock.Anything, productID).Return(testProduct(), nil)
	env.reviews.On("ListByProductID", mock.Anything, productID).Return([]domain.Review{}, nil)

	rec, _ := env.do(t, http.MethodGet, "/api/v1/products/"+productID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetProduct_Errors(t *testing.T) {
	env := newTestEnv()
	env.products.On("GetByID", mock.Anything, productID).Return(nil, apperrors.NotFound("product", productID))

	rec, envelope := env.do(t, http.MethodGet, "/api/v1/products/"+productID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, envelope))

	rec, envelope = env.do(t, http.MethodGet, "/api/v1/products/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", errorCode(t, envelope))
}

// =============================================================================
// Chat
// =============================================================================

func TestChat(t *testing.T) {
	env := newTestEnv()
	env.model = stubModel{configured: true, reply: "Owners love how fast it cooks."}
	env.products.On("GetByID", mock.Anything, productID).Return(testProduct(), nil)
	env.reviews.On("ListByProductID", mock.Anything, productID).Return([]domain.Review{}, nil)

	rec, envelope := env.do(t, http.MethodPost, "/api/v1/products/"+productID+"/chat", map[string]any{
		"message": "Is it fast?",
		"history": []map[string]string{{"role": "user", "content": "hello"}, {"role": "assistant", "content": "hi"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var reply service.ChatReply
	require.NoError(t, json.Unmarshal(envelope["data"], &reply))
	assert.Equal(t, "Owners love how fast it cooks.", reply.Reply)
}

func TestChat_NotConfigured(t *testing.T) {
	env := newTestEnv()
	rec, envelope := env.do(t, http.MethodPost, "/api/v1/products/"+productID+"/chat", map[string]any{"message": "hi"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", errorCode(t, envelope))
}

func TestChat_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"missing message", map[string]any{"history": []any{}}},
		{"bad role", map[string]any{"message": "hi", "history": []map[string]string{{"role": "system", "content": "x"}}}},
		{"unknown field", map[string]any{"message": "hi", "temperature": 2}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv()
			env.model = stubModel{configured: true, reply: "x"}
			rec, _ := env.do(t, http.MethodPost, "/api/v1/products/"+productID+"/chat", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			env.products.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
		})
	}
}

func TestChat_RateLimited(t *testing.T) {
	env := newTestEnv()
	env.limiter = middleware.NewPerMinuteLimiter(1, 1, slog.New(slog.NewTextHandler(io.Discard, nil)))
	router := env.router()

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/products/"+productID+"/chat", bytes.NewReader([]byte(`{"message":"hi"}`)))
		req.RemoteAddr = "198.51.100.4:999"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusServiceUnavailable, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}

// =============================================================================
// Categories and usage
// =============================================================================

func TestCategoryRoutes(t *testing.T) {
	env := newTestEnv()
	env.categories.On("ListAll", mock.Anything).Return(domain.CanonicalCategories, nil)
	env.categories.On("Search", mock.Anything, "home", 5).Return([]domain.Category{{Name: "Home & Kitchen", Slug: "home-kitchen"}}, nil)
	env.categories.On("GetBySlug", mock.Anything, "unknown").Return(nil, apperrors.NotFound("category", "unknown"))

	rec, envelope := env.do(t, http.MethodGet, "/api/v1/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))
	var all []domain.Category
	require.NoError(t, json.Unmarshal(envelope["data"], &all))
	assert.Len(t, all, 8)

	rec, envelope = env.do(t, http.MethodGet, "/api/v1/categories/search?q=home", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var found []domain.Category
	require.NoError(t, json.Unmarshal(envelope["data"], &found))
	assert.Equal(t, "home-kitchen", found[0].Slug)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/categories/unknown/products", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCategoryProducts(t *testing.T) {
	env := newTestEnv()
	cat := &domain.Category{ID: "c1", Name: "Home & Kitchen", Slug: "home-kitchen", ProductCount: 1}
	env.categories.On("GetBySlug", mock.Anything, "home-kitchen").Return(cat, nil)
	env.products.On("List", mock.Anything, mock.Anything).Return([]domain.Product{*testProduct()}, 1, nil)

	rec, envelope := env.do(t, http.MethodGet, "/api/v1/categories/home-kitchen/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var data service.CategoryProducts
	require.NoError(t, json.Unmarshal(envelope["data"], &data))
	assert.Equal(t, "home-kitchen", data.Category.Slug)
	assert.Equal(t, 1, data.Total)
}

func TestUsage(t *testing.T) {
	env := newTestEnv()
	rec, envelope := env.do(t, http.MethodGet, "/api/v1/usage", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats map[string]domain.UsageStats
	require.NoError(t, json.Unmarshal(envelope["data"], &stats))
	assert.Equal(t, domain.UsageStats{Used: 12, Limit: 250, Remaining: 238}, stats["serpapi"])
	assert.Equal(t, 50000, stats["bestbuy"].Remaining)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv()
	router := env.router()

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
