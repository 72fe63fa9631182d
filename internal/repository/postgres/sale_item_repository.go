package postgres

import (
	"context"
	"fmt"
	"time"

	domainErrors "github.com/retailops/refunds/internal/domain/errors"
	"github.com/retailops/refunds/internal/domain/sale"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SaleItemRepository implements sale.Repository using PostgreSQL.
type SaleItemRepository struct {
	pool *pgxpool.Pool
}

// NewSaleItemRepository creates a new SaleItemRepository.
func NewSaleItemRepository(pool *pgxpool.Pool) *SaleItemRepository {
	return &SaleItemRepository{pool: pool}
}

func (r *SaleItemRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// GetItemDetail retrieves a sale item joined with its parent sale's customer
// and branch.
func (r *SaleItemRepository) GetItemDetail(ctx context.Context, itemID uuid.UUID) (*sale.ItemDetail, error) {
	d := &sale.ItemDetail{}
	var (
		unitPriceStr    string
		totalPriceStr   string
		refundAmountStr *string
	)
	err := r.db(ctx).QueryRow(ctx,
		`SELECT si.id, si.sale_id, si.product_id, si.variant_id, si.quantity,
		        si.unit_price, si.total_price, si.refunded, si.refund_amount, si.refund_date,
		        s.customer_id, s.branch_id
		 FROM sale_items si
		 JOIN sales s ON s.id = si.sale_id
		 WHERE si.id = $1`, itemID,
	).Scan(
		&d.ID, &d.SaleID, &d.ProductID, &d.VariantID, &d.Quantity,
		&unitPriceStr, &totalPriceStr, &d.Refunded, &refundAmountStr, &d.RefundDate,
		&d.CustomerID, &d.BranchID,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrSaleItemNotFound
		}
		return nil, fmt.Errorf("scan sale item: %w", err)
	}

	if d.UnitPriceCents, err = numericStringToCents(unitPriceStr); err != nil {
		return nil, fmt.Errorf("parse unit_price: %w", err)
	}
	if d.TotalPriceCents, err = numericStringToCents(totalPriceStr); err != nil {
		return nil, fmt.Errorf("parse total_price: %w", err)
	}
	if refundAmountStr != nil {
		cents, err := numericStringToCents(*refundAmountStr)
		if err != nil {
			return nil, fmt.Errorf("parse refund_amount: %w", err)
		}
		d.RefundAmountCents = &cents
	}
	return d, nil
}

// MarkItemRefunded flips refunded=false to true in a single conditional
// update. Zero affected rows means another attempt won the race (or the item
// does not exist); the caller gets ErrAlreadyRefunded / ErrSaleItemNotFound
// and must not treat the refund as applied.
func (r *SaleItemRepository) MarkItemRefunded(ctx context.Context, itemID uuid.UUID, amountCents int64, at time.Time) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE sale_items
		 SET refunded = true, refund_amount = $1, refund_date = $2
		 WHERE id = $3 AND refunded = false`,
		centsToNumericString(amountCents), at, itemID,
	)
	if err != nil {
		return fmt.Errorf("mark sale item refunded: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish missing item from the lost race.
		var exists bool
		if scanErr := r.db(ctx).QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM sale_items WHERE id = $1)`, itemID,
		).Scan(&exists); scanErr == nil && !exists {
			return domainErrors.ErrSaleItemNotFound
		}
		return domainErrors.ErrAlreadyRefunded
	}
	return nil
}
