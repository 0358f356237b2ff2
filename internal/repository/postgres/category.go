package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/utafrali/revu/internal/domain"
	"github.com/utafrali/revu/pkg/database"
	apperrors "github.com/utafrali/revu/pkg/errors"
)

// categoryColumns is the standard SELECT column list for categories.
const categoryColumns = `id, name, slug, product_count`

// CategoryRepository implements repository.CategoryRepository using PostgreSQL.
type CategoryRepository struct {
	pool database.DBTX
}

// NewCategoryRepository creates a new PostgreSQL-backed category repository.
func NewCategoryRepository(pool database.DBTX) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

// ListAll returns every category ordered by name.
func (r *CategoryRepository) ListAll(ctx context.Context) ([]domain.Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM categories ORDER BY name`, categoryColumns)
	return r.queryCategories(ctx, query)
}

// GetBySlug retrieves a category by its slug.
func (r *CategoryRepository) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM categories WHERE slug = $1`, categoryColumns)

	var c domain.Category
	if err := r.pool.QueryRow(ctx, query, slug).Scan(&c.ID, &c.Name, &c.Slug, &c.ProductCount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("category", slug)
		}
		return nil, fmt.Errorf("get category: %w", err)
	}

	return &c, nil
}

// Search returns up to limit categories whose name contains query, case-insensitively.
func (r *CategoryRepository) Search(ctx context.Context, query string, limit int) ([]domain.Category, error) {
	sql := fmt.Sprintf(`SELECT %s FROM categories WHERE name ILIKE $1 ORDER BY name LIMIT $2`, categoryColumns)
	return r.queryCategories(ctx, sql, "%"+query+"%", limit)
}

// EnsureExists inserts any of the given categories whose slug is not stored yet.
func (r *CategoryRepository) EnsureExists(ctx context.Context, categories []domain.Category) error {
	query := `
		INSERT INTO categories (id, name, slug, product_count)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (slug) DO NOTHING`

	for _, c := range categories {
		id := c.ID
		if id == "" {
			id = uuid.New().String()
		}
		if _, err := r.pool.Exec(ctx, query, id, c.Name, c.Slug); err != nil {
			return fmt.Errorf("ensure category %s: %w", c.Slug, err)
		}
	}

	return nil
}

// RecountProducts sets product_count on every category from the products table.
func (r *CategoryRepository) RecountProducts(ctx context.Context) error {
	query := `
		UPDATE categories c
		SET product_count = (SELECT COUNT(*) FROM products p WHERE p.category = c.slug)`

	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("recount category products: %w", err)
	}
	return nil
}

func (r *CategoryRepository) queryCategories(ctx context.Context, query string, args ...any) ([]domain.Category, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.ProductCount); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category rows: %w", err)
	}

	return categories, nil
}
