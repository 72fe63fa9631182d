package customer

import (
	"time"

	"github.com/google/uuid"
)

// Customer carries the account balance used for "account" method refunds.
type Customer struct {
	ID           uuid.UUID
	Name         string
	BalanceCents int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LedgerEntry is the auditable record of a balance change. The balance column
// alone is not reconstructible; every credit writes one of these.
type LedgerEntry struct {
	ID                uuid.UUID
	CustomerID        uuid.UUID
	RefundID          *uuid.UUID
	AmountCents       int64
	BalanceAfterCents int64
	Reason            string
	CreatedAt         time.Time
}

// NewRefundCredit builds the ledger entry for a refund credit.
func NewRefundCredit(customerID uuid.UUID, refundID uuid.UUID, amountCents, balanceAfterCents int64) *LedgerEntry {
	return &LedgerEntry{
		ID:                uuid.New(),
		CustomerID:        customerID,
		RefundID:          &refundID,
		AmountCents:       amountCents,
		BalanceAfterCents: balanceAfterCents,
		Reason:            "refund",
		CreatedAt:         time.Now(),
	}
}
