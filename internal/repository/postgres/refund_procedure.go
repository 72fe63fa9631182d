package postgres

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/retailops/refunds/internal/domain/errors"
	"github.com/retailops/refunds/internal/domain/refund"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATEs raised by process_refund() for domain rejections.
const (
	sqlstateAlreadyRefunded = "RF001"
	sqlstateItemNotFound    = "RF002"
	sqlstateExceedsTotal    = "RF003"

	sqlstateUndefinedFunction = "42883"
	sqlstateInvalidSchemaName = "3F000"
)

// RefundProcedure calls the process_refund() database function, which
// performs the whole refund (guard, refund rows, restock, customer
// credit, item flip) in a single server-side transaction.
type RefundProcedure struct {
	pool *pgxpool.Pool
}

// NewRefundProcedure creates a new RefundProcedure.
func NewRefundProcedure(pool *pgxpool.Pool) *RefundProcedure {
	return &RefundProcedure{pool: pool}
}

func (p *RefundProcedure) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, p.pool)
}

// Execute runs the atomic refund for rf and reports its final step
// count so the caller can persist a fully-advanced cursor.
//
// Domain rejections raised by the function map to the same sentinel
// errors the manual path produces, so callers never branch on which
// path ran. ErrProcedureUnavailable means the function is missing and
// the caller should fall back to the step-by-step path.
func (p *RefundProcedure) Execute(ctx context.Context, rf *refund.Refund, quantity int) error {
	_, err := p.db(ctx).Exec(ctx,
		`SELECT process_refund($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		rf.ID, rf.Number, rf.SaleItemID, centsToNumericString(rf.AmountCents),
		string(rf.Method), rf.Reason, rf.ProcessedBy, rf.BranchID, rf.CustomerID, quantity,
	)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlstateAlreadyRefunded:
			return domainErrors.ErrAlreadyRefunded
		case sqlstateItemNotFound:
			return domainErrors.ErrSaleItemNotFound
		case sqlstateExceedsTotal:
			return domainErrors.ErrAmountExceedsTotal
		case sqlstateUndefinedFunction, sqlstateInvalidSchemaName:
			return fmt.Errorf("%w: %s", domainErrors.ErrProcedureUnavailable, pgErr.Message)
		}
	}
	return fmt.Errorf("process_refund: %w", err)
}
