package sale

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for sale item persistence as seen by the
// refund flow: one read, one terminal write.
type Repository interface {
	// GetItemDetail retrieves a sale item with its parent sale's customer
	// and branch linkage.
	GetItemDetail(ctx context.Context, itemID uuid.UUID) (*ItemDetail, error)

	// MarkItemRefunded sets refunded=true, refund_amount and refund_date on
	// the item. The update is conditional on refunded=false; when the item
	// was already refunded it returns ErrAlreadyRefunded without writing.
	// This conditional update is the serialization point that guarantees a
	// sale item is refunded at most once under concurrent attempts.
	MarkItemRefunded(ctx context.Context, itemID uuid.UUID, amountCents int64, at time.Time) error
}
