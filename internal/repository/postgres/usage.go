package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/revu/internal/domain"
	"github.com/utafrali/revu/pkg/database"
)

// UsageRepository implements repository.UsageRepository using PostgreSQL.
type UsageRepository struct {
	pool database.DBTX
}

// NewUsageRepository creates a new PostgreSQL-backed API usage repository.
func NewUsageRepository(pool database.DBTX) *UsageRepository {
	return &UsageRepository{pool: pool}
}

// CountSince counts calls to apiName at or after since.
func (r *UsageRepository) CountSince(ctx context.Context, apiName string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM api_usage WHERE api_name = $1 AND called_at >= $2`

	var n int
	if err := r.pool.QueryRow(ctx, query, apiName, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("count api usage: %w", err)
	}
	return n, nil
}

// Create appends a usage record.
func (r *UsageRepository) Create(ctx context.Context, u *domain.APIUsage) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CalledAt.IsZero() {
		u.CalledAt = time.Now().UTC()
	}

	query := `
		INSERT INTO api_usage (id, api_name, endpoint, product_id, called_at)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.pool.Exec(ctx, query, u.ID, u.APIName, u.Endpoint, u.ProductID, u.CalledAt); err != nil {
		return fmt.Errorf("insert api usage: %w", err)
	}
	return nil
}
