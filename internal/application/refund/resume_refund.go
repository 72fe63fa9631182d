package refund

import (
	"context"
	"errors"

	"github.com/retailops/refunds/internal/domain/customer"
	domainErrors "github.com/retailops/refunds/internal/domain/errors"
	"github.com/retailops/refunds/internal/domain/inventory"
	"github.com/retailops/refunds/internal/domain/refund"
	"github.com/retailops/refunds/internal/domain/sale"
	"github.com/retailops/refunds/internal/infrastructure/observability"
	"github.com/retailops/refunds/pkg/saga"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ResumeRefundUseCase resumes a partially failed refund: it re-runs the
// saga starting after the persisted cursor, so steps that already
// committed are never re-applied.
type ResumeRefundUseCase struct {
	saleRepo      sale.Repository
	refundRepo    refund.Repository
	inventoryRepo inventory.Repository
	customerRepo  customer.Repository
	outboxRepo    OutboxWriter
	txManager     TransactionManager
	metrics       *observability.Metrics
}

// SetMetrics attaches saga counters to resumed runs.
func (uc *ResumeRefundUseCase) SetMetrics(m *observability.Metrics) {
	uc.metrics = m
}

// NewResumeRefundUseCase creates a new ResumeRefundUseCase.
func NewResumeRefundUseCase(
	saleRepo sale.Repository,
	refundRepo refund.Repository,
	inventoryRepo inventory.Repository,
	customerRepo customer.Repository,
	outboxRepo OutboxWriter,
	txManager TransactionManager,
) *ResumeRefundUseCase {
	return &ResumeRefundUseCase{
		saleRepo:      saleRepo,
		refundRepo:    refundRepo,
		inventoryRepo: inventoryRepo,
		customerRepo:  customerRepo,
		outboxRepo:    outboxRepo,
		txManager:     txManager,
	}
}

// Execute resumes a single partially failed refund by ID.
func (uc *ResumeRefundUseCase) Execute(ctx context.Context, refundID uuid.UUID) (*refund.Refund, error) {
	rf, err := uc.refundRepo.GetByID(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if !rf.IsResumable() {
		return nil, domainErrors.ErrRefundNotResumable
	}

	detail, err := uc.saleRepo.GetItemDetail(ctx, rf.SaleItemID)
	if err != nil {
		return nil, err
	}

	quantity := uc.refundQuantity(ctx, rf, detail)

	runner := &sagaRunner{
		saleRepo:      uc.saleRepo,
		refundRepo:    uc.refundRepo,
		inventoryRepo: uc.inventoryRepo,
		customerRepo:  uc.customerRepo,
		txManager:     uc.txManager,
		metrics:       uc.metrics,
	}

	startAfter := rf.LastCompletedStep
	if _, err := runner.run(ctx, rf, detail, quantity, startAfter); err != nil {
		var stepErr *saga.StepError
		if errors.As(err, &stepErr) {
			_ = uc.refundRepo.MarkPartiallyFailed(ctx, rf.ID, stepErr.Err.Error())
		}
		return nil, err
	}

	if err := rf.MarkCompleted(); err != nil {
		return nil, err
	}
	if err := uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.refundRepo.MarkCompleted(txCtx, rf.ID); err != nil {
			return err
		}
		return uc.outboxRepo.Insert(txCtx, completedEvent(rf, PathStepwise))
	}); err != nil {
		return nil, err
	}

	log.Info().
		Str("refund_id", rf.ID.String()).
		Str("sale_item_id", rf.SaleItemID.String()).
		Int("resumed_after_step", startAfter).
		Msg("partially failed refund resumed to completion")

	return rf, nil
}

// refundQuantity recovers the restock quantity from the refund's item row.
// When the original attempt failed before the item row was written, the
// requested quantity is gone with it; the full sale item quantity is the
// only recoverable value and is what a resume restocks. The refunded
// amount is unaffected, it lives on the refund row.
func (uc *ResumeRefundUseCase) refundQuantity(ctx context.Context, rf *refund.Refund, detail *sale.ItemDetail) int {
	items, err := uc.refundRepo.GetItems(ctx, rf.ID)
	if err == nil && len(items) > 0 {
		return items[0].Quantity
	}
	return detail.Quantity
}
