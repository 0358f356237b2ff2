package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/revu/internal/domain"
	"github.com/utafrali/revu/internal/event"
	"github.com/utafrali/revu/internal/marketplace"
	"github.com/utafrali/revu/internal/repository"
	"github.com/utafrali/revu/internal/sentiment"
	apperrors "github.com/utafrali/revu/pkg/errors"
	"github.com/utafrali/revu/pkg/tracing"
)

const tracerName = "github.com/utafrali/revu/internal/service"

// DefaultReviewCacheDays is how long fetched reviews stay fresh.
const DefaultReviewCacheDays = 7

// ReviewSource looks up marketplace identifiers and reviews.
// *marketplace.Client implements it.
type ReviewSource interface {
	ResolveCanonicalID(ctx context.Context, productName string, productID *string) (string, error)
	FetchReviews(ctx context.Context, asin string, productID *string) ([]marketplace.RawReview, error)
}

// SentimentNormalizer scores raw reviews. *sentiment.Normalizer implements it.
type SentimentNormalizer interface {
	Normalize(ctx context.Context, inputs []sentiment.Input) ([]sentiment.Result, sentiment.Source)
}

// EventPublisher announces finished refreshes. *event.Producer implements it.
type EventPublisher interface {
	PublishReviewsRefreshed(ctx context.Context, data event.ReviewsRefreshedData) error
}

// ReviewRefresher keeps a product's marketplace reviews and rating current.
type ReviewRefresher struct {
	products   repository.ProductRepository
	reviews    repository.ReviewRepository
	source     ReviewSource
	normalizer SentimentNormalizer
	events     EventPublisher
	listCache  repository.ProductListCache
	cacheDays  int
	now        func() time.Time
	logger     *slog.Logger
}

// RefresherConfig holds the collaborators of a ReviewRefresher. Events and
// ListCache are optional.
type RefresherConfig struct {
	Products   repository.ProductRepository
	Reviews    repository.ReviewRepository
	Source     ReviewSource
	Normalizer SentimentNormalizer
	Events     EventPublisher
	ListCache  repository.ProductListCache
	CacheDays  int
}

// NewReviewRefresher creates a ReviewRefresher. A negative CacheDays uses
// DefaultReviewCacheDays.
func NewReviewRefresher(cfg RefresherConfig, logger *slog.Logger) *ReviewRefresher {
	if cfg.CacheDays < 0 {
		cfg.CacheDays = DefaultReviewCacheDays
	}
	return &ReviewRefresher{
		products:   cfg.Products,
		reviews:    cfg.Reviews,
		source:     cfg.Source,
		normalizer: cfg.Normalizer,
		events:     cfg.Events,
		listCache:  cfg.ListCache,
		cacheDays:  cfg.CacheDays,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

// Refresh brings p's marketplace reviews up to date and reports whether new
// reviews were stored. Fresh products are left alone without any external
// call. A lookup that finds no identifier or no reviews stamps
// reviews_fetched_at so the next request within the cache window is a no-op.
// On success p is updated in place with its new rating, review count,
// identifier and fetch time.
//
// Errors come from the review source or the store; the caller is expected
// to log them and keep serving the cached product.
func (r *ReviewRefresher) Refresh(ctx context.Context, p *domain.Product) (bool, error) {
	ctx, end := tracing.StartSpan(ctx, tracerName, "reviews.refresh", trace.SpanKindInternal,
		attribute.String("product.id", p.ID),
	)
	refreshed, outcome, err := r.refresh(ctx, p)
	if err != nil {
		outcome = outcomeFailed
	}
	end(err)
	refreshTotal.WithLabelValues(outcome).Inc()
	return refreshed, err
}

func (r *ReviewRefresher) refresh(ctx context.Context, p *domain.Product) (bool, string, error) {
	now := r.now()

	switch p.RefreshStateAt(now, r.cacheDays) {
	case domain.RefreshFresh:
		return false, outcomeFresh, nil

	case domain.RefreshStaleNoID:
		asin, err := r.source.ResolveCanonicalID(ctx, p.Name, &p.ID)
		if err != nil {
			return false, "", fmt.Errorf("resolve marketplace id: %w", err)
		}
		if asin == "" {
			return false, outcomeNoMatch, r.markFetched(ctx, p, now)
		}
		if err := r.products.SetAmazonASIN(ctx, p.ID, asin); err != nil {
			if errors.Is(err, apperrors.ErrAlreadyExists) {
				r.logger.WarnContext(ctx, "marketplace id already linked to another product",
					slog.String("product_id", p.ID),
					slog.String("asin", asin),
				)
				return false, outcomeIDConflict, r.markFetched(ctx, p, now)
			}
			return false, "", fmt.Errorf("persist marketplace id: %w", err)
		}
		p.AmazonASIN = &asin
	}

	raw, err := r.source.FetchReviews(ctx, *p.AmazonASIN, &p.ID)
	if err != nil {
		return false, "", fmt.Errorf("fetch marketplace reviews: %w", err)
	}
	if len(raw) == 0 {
		return false, outcomeNoReviews, r.markFetched(ctx, p, now)
	}

	reviews, via := r.score(ctx, raw, now)

	update, err := r.reviews.ReplaceForSource(ctx, p.ID, domain.ReviewSourceAmazon, reviews, now)
	if err != nil {
		return false, "", fmt.Errorf("replace reviews: %w", err)
	}
	p.Rating = update.Rating
	p.ReviewCount = update.ReviewCount
	p.ReviewsFetchedAt = &update.FetchedAt

	r.logger.InfoContext(ctx, "product reviews refreshed",
		slog.String("product_id", p.ID),
		slog.Int("reviews", len(reviews)),
		slog.String("sentiment", string(via)),
		slog.Float64("rating", update.Rating),
	)

	r.afterRefresh(ctx, p, via, update)
	return true, outcomeRefreshed, nil
}

// score turns raw reviews into stored reviews. Sentiment for the whole set
// comes either from the model or from star ratings, never a mix.
func (r *ReviewRefresher) score(ctx context.Context, raw []marketplace.RawReview, now time.Time) ([]domain.Review, sentiment.Source) {
	inputs := make([]sentiment.Input, len(raw))
	for i, rv := range raw {
		inputs[i] = sentiment.Input{ID: i, Title: rv.Title, Text: rv.Text, StarRating: rv.Rating}
	}

	results, via := r.normalizer.Normalize(ctx, inputs)

	reviews := make([]domain.Review, len(raw))
	for i, res := range results {
		rating := raw[i].Rating
		reviews[i] = domain.Review{
			Source:         domain.ReviewSourceAmazon,
			Text:           raw[i].Text,
			SentimentScore: res.SentimentScore,
			Pros:           res.Pros,
			Cons:           res.Cons,
			SourceRating:   &rating,
			ScrapedAt:      now,
		}
	}
	return reviews, via
}

func (r *ReviewRefresher) markFetched(ctx context.Context, p *domain.Product, now time.Time) error {
	if err := r.products.MarkReviewsFetched(ctx, p.ID, now); err != nil {
		return fmt.Errorf("mark reviews fetched: %w", err)
	}
	p.ReviewsFetchedAt = &now
	return nil
}

// afterRefresh publishes the refresh and drops cached listings. Failures
// are logged only.
func (r *ReviewRefresher) afterRefresh(ctx context.Context, p *domain.Product, via sentiment.Source, update *repository.RatingUpdate) {
	if r.events != nil {
		err := r.events.PublishReviewsRefreshed(ctx, event.ReviewsRefreshedData{
			ProductID:   p.ID,
			Source:      string(domain.ReviewSourceAmazon),
			ReviewCount: update.ReviewCount,
			Rating:      update.Rating,
			Sentiment:   string(via),
			FetchedAt:   update.FetchedAt,
		})
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to publish reviews_refreshed event",
				slog.String("product_id", p.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if r.listCache != nil {
		if err := r.listCache.Invalidate(ctx); err != nil {
			r.logger.WarnContext(ctx, "failed to invalidate product list cache",
				slog.String("error", err.Error()),
			)
		}
	}
}
