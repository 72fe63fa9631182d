package refund

import (
	"context"
	"time"

	"github.com/retailops/refunds/internal/domain/outbox"
	"github.com/retailops/refunds/internal/domain/refund"
	"github.com/google/uuid"
)

// TransactionManager defines the interface for transaction management.
// This is an application-layer port, not a domain concern.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// AtomicProcedure runs the whole refund as a single server-side
// transaction. ErrProcedureUnavailable means the backing function is
// not installed and the caller should use the step-by-step path.
type AtomicProcedure interface {
	Execute(ctx context.Context, rf *refund.Refund, quantity int) error
}

// OutboxWriter defines the interface for writing to the transactional outbox.
type OutboxWriter interface {
	Insert(ctx context.Context, entry *outbox.Entry) error
}

// ItemLocker serializes refund attempts on a sale item across service
// instances. The lock is advisory; the conditional refunded-flag update
// in storage remains authoritative.
type ItemLocker interface {
	// AcquireItemLock tries to take the per-item lock. When acquired it
	// returns a release func; acquired=false means another attempt holds
	// the lock.
	AcquireItemLock(ctx context.Context, saleItemID uuid.UUID, ttl time.Duration) (release func(context.Context), acquired bool, err error)
}
