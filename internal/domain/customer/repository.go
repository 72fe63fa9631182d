package customer

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for customer account persistence
type Repository interface {
	// GetByID retrieves a customer by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*Customer, error)

	// Credit atomically increments the customer's balance
	// (SET balance = balance + amount) and returns the balance after the
	// increment. Returns ErrCustomerNotFound when the customer is missing.
	Credit(ctx context.Context, customerID uuid.UUID, amountCents int64) (balanceAfterCents int64, err error)

	// AddLedgerEntry records an auditable balance change.
	AddLedgerEntry(ctx context.Context, entry *LedgerEntry) error

	// GetLedger retrieves ledger entries for a customer, newest first.
	GetLedger(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*LedgerEntry, error)
}
