package sale

import (
	"time"

	"github.com/retailops/refunds/internal/domain/errors"
	"github.com/google/uuid"
)

// Item represents a sold line item. It is owned by the sale aggregate and is
// read-only for the refund flow except for the terminal refunded marking.
type Item struct {
	ID                uuid.UUID
	SaleID            uuid.UUID
	ProductID         uuid.UUID
	VariantID         *uuid.UUID
	Quantity          int
	UnitPriceCents    int64
	TotalPriceCents   int64
	Refunded          bool
	RefundAmountCents *int64
	RefundDate        *time.Time
}

// ItemDetail is an Item joined with its parent sale's linkage. The refund
// flow needs the sale's customer to resolve who receives an account credit.
type ItemDetail struct {
	Item
	CustomerID *uuid.UUID
	BranchID   uuid.UUID
}

// EnsureRefundable is the idempotency guard plus the amount bound: it rejects
// items that were already refunded and amounts exceeding the item total. It
// is a pre-check only; the conditional refunded-flag update at the storage
// layer is the true serialization point.
func (i *Item) EnsureRefundable(amountCents int64) error {
	if i.Refunded {
		return errors.ErrAlreadyRefunded
	}
	if amountCents <= 0 {
		return errors.NewValidationError("refund_amount", "must be greater than 0")
	}
	if amountCents > i.TotalPriceCents {
		return errors.ErrAmountExceedsTotal
	}
	return nil
}

// MarkRefunded records the terminal refund marking on the in-memory item.
func (i *Item) MarkRefunded(amountCents int64, at time.Time) error {
	if i.Refunded {
		return errors.ErrAlreadyRefunded
	}
	i.Refunded = true
	i.RefundAmountCents = &amountCents
	i.RefundDate = &at
	return nil
}
