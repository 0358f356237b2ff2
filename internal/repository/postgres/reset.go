package postgres

import (
	"context"
	"fmt"

	"github.com/utafrali/revu/pkg/database"
)

// resetOrder lists tables children first so foreign keys never block a delete.
var resetOrder = []string{"reviews", "products", "categories", "api_usage"}

// ResetRepository implements repository.Resetter using PostgreSQL.
type ResetRepository struct {
	pool database.DBTX
}

// NewResetRepository creates a new PostgreSQL-backed resetter.
func NewResetRepository(pool database.DBTX) *ResetRepository {
	return &ResetRepository{pool: pool}
}

// ResetAll deletes all catalog data in a single transaction.
func (r *ResetRepository) ResetAll(ctx context.Context) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, table := range resetOrder {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}
