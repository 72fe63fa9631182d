package customer

import (
	"context"

	"github.com/retailops/refunds/internal/domain/customer"
	"github.com/google/uuid"
)

const defaultLedgerLimit = 50

// GetLedgerUseCase lists a customer's balance history, newest first.
type GetLedgerUseCase struct {
	customerRepo customer.Repository
}

// NewGetLedgerUseCase creates a new GetLedgerUseCase.
func NewGetLedgerUseCase(customerRepo customer.Repository) *GetLedgerUseCase {
	return &GetLedgerUseCase{customerRepo: customerRepo}
}

// Execute returns ledger entries for the customer. Zero or negative limit
// falls back to the default page size.
func (uc *GetLedgerUseCase) Execute(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*customer.LedgerEntry, error) {
	// An unknown customer is a 404, not an empty ledger.
	if _, err := uc.customerRepo.GetByID(ctx, customerID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultLedgerLimit
	}
	if offset < 0 {
		offset = 0
	}
	return uc.customerRepo.GetLedger(ctx, customerID, limit, offset)
}
