package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/utafrali/revu/internal/domain"
	"github.com/utafrali/revu/internal/repository"
	"github.com/utafrali/revu/pkg/database"
	apperrors "github.com/utafrali/revu/pkg/errors"
)

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// ListByProductID returns every review of a product, newest first.
func (r *ReviewRepository) ListByProductID(ctx context.Context, productID string) ([]domain.Review, error) {
	query := `
		SELECT id, product_id, source, text, sentiment_score, pros, cons, source_rating, scraped_at
		FROM reviews
		WHERE product_id = $1
		ORDER BY scraped_at DESC, id`

	rows, err := r.pool.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []domain.Review{}
	for rows.Next() {
		var (
			rv                  domain.Review
			prosJSON, consJSON []byte
		)

		if err := rows.Scan(
			&rv.ID,
			&rv.ProductID,
			&rv.Source,
			&rv.Text,
			&rv.SentimentScore,
			&prosJSON,
			&consJSON,
			&rv.SourceRating,
			&rv.ScrapedAt,
		); err != nil {
			return nil, fmt.Errorf("scan review row: %w", err)
		}

		if rv.Pros, err = decodePoints(prosJSON); err != nil {
			return nil, fmt.Errorf("unmarshal pros: %w", err)
		}
		if rv.Cons, err = decodePoints(consJSON); err != nil {
			return nil, fmt.Errorf("unmarshal cons: %w", err)
		}

		reviews = append(reviews, rv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review rows: %w", err)
	}

	return reviews, nil
}

// ReplaceForSource swaps a product's reviews from one source for a new set and
// updates the product's rating, review count and fetch stamp in the same
// transaction. Reviews from other sources are kept and count towards the rating.
func (r *ReviewRepository) ReplaceForSource(
	ctx context.Context,
	productID string,
	source domain.ReviewSource,
	reviews []domain.Review,
	fetchedAt time.Time,
) (_ *repository.RatingUpdate, err error) {
	ctx, end := database.TraceQuery(ctx, "ReplaceReviews", "DELETE/INSERT reviews; UPDATE products")
	defer func() { end(err) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin replace reviews: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM reviews WHERE product_id = $1 AND source = $2`, productID, source); err != nil {
		return nil, fmt.Errorf("delete reviews: %w", err)
	}

	insert := `
		INSERT INTO reviews (id, product_id, source, text, sentiment_score, pros, cons, source_rating, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for i := range reviews {
		rv := &reviews[i]
		if rv.ID == "" {
			rv.ID = uuid.New().String()
		}
		rv.ProductID = productID
		rv.Source = source
		if rv.ScrapedAt.IsZero() {
			rv.ScrapedAt = fetchedAt
		}

		prosJSON, err := encodePoints(rv.Pros)
		if err != nil {
			return nil, fmt.Errorf("marshal pros: %w", err)
		}
		consJSON, err := encodePoints(rv.Cons)
		if err != nil {
			return nil, fmt.Errorf("marshal cons: %w", err)
		}

		if _, err := tx.Exec(ctx, insert,
			rv.ID,
			rv.ProductID,
			rv.Source,
			rv.Text,
			rv.SentimentScore,
			prosJSON,
			consJSON,
			rv.SourceRating,
			rv.ScrapedAt,
		); err != nil {
			return nil, fmt.Errorf("insert review: %w", err)
		}
	}

	current, err := sentimentScores(ctx, tx, productID)
	if err != nil {
		return nil, err
	}

	update := &repository.RatingUpdate{
		ReviewCount: len(current),
		Rating:      domain.RecomputeRating(current),
		FetchedAt:   fetchedAt,
	}

	ct, err := tx.Exec(ctx, `
		UPDATE products
		SET rating = $2, review_count = $3, reviews_fetched_at = $4, updated_at = NOW()
		WHERE id = $1`,
		productID, update.Rating, update.ReviewCount, update.FetchedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update product rating: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return nil, apperrors.NotFound("product", productID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit replace reviews: %w", err)
	}

	return update, nil
}

// sentimentScores loads the sentiment of every review currently stored for a product.
func sentimentScores(ctx context.Context, tx pgx.Tx, productID string) ([]domain.Review, error) {
	rows, err := tx.Query(ctx, `SELECT sentiment_score FROM reviews WHERE product_id = $1`, productID)
	if err != nil {
		return nil, fmt.Errorf("load review scores: %w", err)
	}
	defer rows.Close()

	var reviews []domain.Review
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(&rv.SentimentScore); err != nil {
			return nil, fmt.Errorf("scan review score: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review scores: %w", err)
	}

	return reviews, nil
}

func encodePoints(items []string) ([]byte, error) {
	if items == nil {
		items = []string{}
	}
	return json.Marshal(items)
}

func decodePoints(raw []byte) ([]string, error) {
	out := []string{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
