package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/utafrali/revu/internal/domain"
	"github.com/utafrali/revu/internal/repository"
	"github.com/utafrali/revu/pkg/database"
	apperrors "github.com/utafrali/revu/pkg/errors"
)

// productColumns is the standard SELECT column list for products.
const productColumns = `id, name, description, category, price::text, rating, review_count,
	image_url, source_url, bestbuy_sku, amazon_asin, reviews_fetched_at, created_at, updated_at`

var productOrderBy = map[string]string{
	domain.SortRatingDesc: "rating DESC, name ASC",
	domain.SortRatingAsc:  "rating ASC, name ASC",
	domain.SortPriceAsc:   "price ASC, name ASC",
	domain.SortPriceDesc:  "price DESC, name ASC",
	domain.SortNewest:     "created_at DESC, id",
}

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	pool database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool database.DBTX) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID retrieves a product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)

	var row productRow
	err := r.pool.QueryRow(ctx, query, id).Scan(row.dest()...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return row.product()
}

// List returns products matching the given filter with the total count.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) (products []domain.Product, total int, err error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIndex))
		args = append(args, *filter.Category)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := max(filter.Offset, 0)

	// Use count(*) OVER() for total count in a single query.
	query := fmt.Sprintf(`
		SELECT %s,
		       count(*) OVER() AS total_count
		FROM products
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		productColumns, whereClause, productOrderBy[domain.NormalizeSort(filter.Sort)], argIndex, argIndex+1,
	)
	args = append(args, limit, offset)

	ctx, end := database.TraceQuery(ctx, "ListProducts", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row productRow
		if err := rows.Scan(append(row.dest(), &total)...); err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		p, err := row.product()
		if err != nil {
			return nil, 0, err
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}

	if products == nil {
		products = []domain.Product{}
	}

	return products, total, nil
}

// SetAmazonASIN stores the marketplace identifier for a product.
func (r *ProductRepository) SetAmazonASIN(ctx context.Context, id, asin string) error {
	query := `UPDATE products SET amazon_asin = $2, updated_at = NOW() WHERE id = $1`

	ct, err := r.pool.Exec(ctx, query, id, asin)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("product", "amazon_asin", asin)
		}
		return fmt.Errorf("set amazon asin: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}

	return nil
}

// MarkReviewsFetched records a refresh attempt that produced no new reviews.
func (r *ProductRepository) MarkReviewsFetched(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE products SET reviews_fetched_at = $2 WHERE id = $1`

	ct, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("mark reviews fetched: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}

	return nil
}

// UpsertByASIN inserts or updates a product keyed by its Amazon ASIN.
func (r *ProductRepository) UpsertByASIN(ctx context.Context, p *domain.Product) (bool, error) {
	if p.AmazonASIN == nil || *p.AmazonASIN == "" {
		return false, apperrors.InvalidInput("amazon_asin is required")
	}
	return r.upsert(ctx, "amazon_asin", p)
}

// UpsertBySKU inserts or updates a product keyed by its Best Buy SKU.
func (r *ProductRepository) UpsertBySKU(ctx context.Context, p *domain.Product) (bool, error) {
	if p.BestBuySKU == nil || *p.BestBuySKU == "" {
		return false, apperrors.InvalidInput("bestbuy_sku is required")
	}
	return r.upsert(ctx, "bestbuy_sku", p)
}

// upsert writes p, keyed by the unique column key. On update the category and
// description are kept, and rating and review_count are only overwritten while
// the product has no stored reviews.
func (r *ProductRepository) upsert(ctx context.Context, key string, p *domain.Product) (bool, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	query := fmt.Sprintf(`
		INSERT INTO products (id, name, description, category, price, rating, review_count,
			image_url, source_url, bestbuy_sku, amazon_asin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (%[1]s) DO UPDATE
		SET name = EXCLUDED.name,
		    price = EXCLUDED.price,
		    image_url = EXCLUDED.image_url,
		    source_url = EXCLUDED.source_url,
		    rating = CASE WHEN EXISTS (SELECT 1 FROM reviews WHERE reviews.product_id = products.id)
		                  THEN products.rating ELSE EXCLUDED.rating END,
		    review_count = CASE WHEN EXISTS (SELECT 1 FROM reviews WHERE reviews.product_id = products.id)
		                  THEN products.review_count ELSE EXCLUDED.review_count END,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, (xmax = 0) AS inserted`, key)

	var inserted bool
	err := r.pool.QueryRow(ctx, query,
		p.ID,
		p.Name,
		p.Description,
		p.Category,
		p.Price,
		p.Rating,
		p.ReviewCount,
		p.ImageURL,
		p.SourceURL,
		p.BestBuySKU,
		p.AmazonASIN,
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(&p.ID, &inserted)
	if err != nil {
		return false, fmt.Errorf("upsert product by %s: %w", key, err)
	}

	return inserted, nil
}

// Count returns the number of products.
func (r *ProductRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// productRow receives a product row. Price is read as text so it keeps its
// exact NUMERIC value.
type productRow struct {
	p     domain.Product
	price string
}

func (row *productRow) dest() []any {
	p := &row.p
	return []any{
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Category,
		&row.price,
		&p.Rating,
		&p.ReviewCount,
		&p.ImageURL,
		&p.SourceURL,
		&p.BestBuySKU,
		&p.AmazonASIN,
		&p.ReviewsFetchedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
}

func (row *productRow) product() (*domain.Product, error) {
	price, err := decimal.NewFromString(row.price)
	if err != nil {
		return nil, fmt.Errorf("parse price %q: %w", row.price, err)
	}
	p := row.p
	p.Price = price
	return &p, nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	return strings.Contains(err.Error(), uniqueViolationCode)
}

const uniqueViolationCode = "23505"
