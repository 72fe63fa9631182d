package inventory

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for stock-quantity persistence.
//
// Every increment is applied atomically at the storage layer
// (SET stock_quantity = stock_quantity + delta), never as an application-side
// read-modify-write, so concurrent refunds of the same SKU cannot lose an
// update.
type Repository interface {
	// AddProductStock increments a product's global stock quantity.
	AddProductStock(ctx context.Context, productID uuid.UUID, quantity int) error

	// AddVariantStock increments a variant's stock quantity.
	AddVariantStock(ctx context.Context, variantID uuid.UUID, quantity int) error

	// AddBranchStock increments the branch-scoped stock row for
	// (branch, product, variant). It returns false when no such row exists;
	// not all deployments track branch-level stock, so absence is not an
	// error.
	AddBranchStock(ctx context.Context, branchID, productID uuid.UUID, variantID *uuid.UUID, quantity int) (bool, error)
}
