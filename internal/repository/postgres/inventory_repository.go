package postgres

import (
	"context"
	"fmt"

	domainErrors "github.com/retailops/refunds/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InventoryRepository implements inventory.Repository using PostgreSQL.
// All stock writes are atomic relative increments so concurrent refunds
// never lose updates.
type InventoryRepository struct {
	pool *pgxpool.Pool
}

// NewInventoryRepository creates a new InventoryRepository.
func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

func (r *InventoryRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// AddProductStock increments the product stock counter.
func (r *InventoryRepository) AddProductStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE products SET stock_quantity = stock_quantity + $1, updated_at = NOW() WHERE id = $2`,
		quantity, productID,
	)
	if err != nil {
		return fmt.Errorf("add product stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrProductNotFound
	}
	return nil
}

// AddVariantStock increments the variant stock counter.
func (r *InventoryRepository) AddVariantStock(ctx context.Context, variantID uuid.UUID, quantity int) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE product_variants SET stock_quantity = stock_quantity + $1, updated_at = NOW() WHERE id = $2`,
		quantity, variantID,
	)
	if err != nil {
		return fmt.Errorf("add variant stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrVariantNotFound
	}
	return nil
}

// AddBranchStock increments the per-branch stock counter. A missing
// branch stock row is not an error; it reports applied=false and the
// caller records the skip.
func (r *InventoryRepository) AddBranchStock(ctx context.Context, branchID, productID uuid.UUID, variantID *uuid.UUID, quantity int) (bool, error) {
	var (
		tag interface{ RowsAffected() int64 }
		err error
	)
	if variantID != nil {
		tag, err = r.db(ctx).Exec(ctx,
			`UPDATE branch_stock SET quantity = quantity + $1, updated_at = NOW()
			 WHERE branch_id = $2 AND product_id = $3 AND variant_id = $4`,
			quantity, branchID, productID, *variantID,
		)
	} else {
		tag, err = r.db(ctx).Exec(ctx,
			`UPDATE branch_stock SET quantity = quantity + $1, updated_at = NOW()
			 WHERE branch_id = $2 AND product_id = $3 AND variant_id IS NULL`,
			quantity, branchID, productID,
		)
	}
	if err != nil {
		return false, fmt.Errorf("add branch stock: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
