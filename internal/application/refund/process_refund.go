package refund

import (
	"context"
	"errors"
	"time"

	"github.com/retailops/refunds/internal/domain/customer"
	domainErrors "github.com/retailops/refunds/internal/domain/errors"
	"github.com/retailops/refunds/internal/domain/inventory"
	"github.com/retailops/refunds/internal/domain/outbox"
	"github.com/retailops/refunds/internal/domain/refund"
	"github.com/retailops/refunds/internal/domain/sale"
	"github.com/retailops/refunds/internal/infrastructure/observability"
	"github.com/retailops/refunds/pkg/saga"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
)

// Path names which execution path completed a refund.
const (
	PathAtomic   = "atomic"
	PathStepwise = "stepwise"
)

const defaultItemLockTTL = 30 * time.Second

// ProcessRefundRequest holds the input for processing a refund.
type ProcessRefundRequest struct {
	SaleItemID  uuid.UUID
	AmountCents int64
	Method      refund.Method
	Reason      string
	// CustomerID overrides the sale's customer for account credits. Nil
	// falls back to the customer on the original sale.
	CustomerID  *uuid.UUID
	ProcessedBy string
	// BranchID is the branch processing the return; restocked units go back
	// to its shelf, which may differ from the branch that made the sale.
	BranchID uuid.UUID
	// Quantity is the number of units returned to stock. Zero means the
	// full sale item quantity.
	Quantity int
}

func (r ProcessRefundRequest) validate() error {
	if r.SaleItemID == uuid.Nil {
		return domainErrors.NewValidationError("sale_item_id", "cannot be empty")
	}
	if r.BranchID == uuid.Nil {
		return domainErrors.NewValidationError("branch_id", "cannot be empty")
	}
	if r.ProcessedBy == "" {
		return domainErrors.NewValidationError("processed_by", "cannot be empty")
	}
	if r.AmountCents <= 0 {
		return domainErrors.NewValidationError("amount", "must be greater than 0")
	}
	if _, err := refund.ParseMethod(string(r.Method)); err != nil {
		return err
	}
	return nil
}

// ProcessRefundResponse holds the result of processing a refund.
type ProcessRefundResponse struct {
	Refund *refund.Refund
	// BalanceAfterCents is set for account-method refunds.
	BalanceAfterCents *int64
	Path              string
}

// ProcessRefundUseCase orchestrates a refund end to end: it validates the
// request, prefers the atomic database procedure, and falls back to the
// step-by-step path when the procedure cannot run.
type ProcessRefundUseCase struct {
	saleRepo      sale.Repository
	refundRepo    refund.Repository
	inventoryRepo inventory.Repository
	customerRepo  customer.Repository
	outboxRepo    OutboxWriter
	txManager     TransactionManager
	atomicProc    AtomicProcedure
	breaker       *gobreaker.CircuitBreaker[struct{}]
	locker        ItemLocker
	lockTTL       time.Duration
	metrics       *observability.Metrics
}

// SetLockTTL overrides the advisory lock TTL. Zero keeps the default.
func (uc *ProcessRefundUseCase) SetLockTTL(ttl time.Duration) {
	if ttl > 0 {
		uc.lockTTL = ttl
	}
}

// SetMetrics attaches refund and saga counters. Without it the use case
// runs unmetered, which tests rely on.
func (uc *ProcessRefundUseCase) SetMetrics(m *observability.Metrics) {
	uc.metrics = m
}

// NewProcessRefundUseCase creates a new ProcessRefundUseCase. atomicProc,
// breaker and locker may be nil; the use case degrades to the step-by-step
// path without locking.
func NewProcessRefundUseCase(
	saleRepo sale.Repository,
	refundRepo refund.Repository,
	inventoryRepo inventory.Repository,
	customerRepo customer.Repository,
	outboxRepo OutboxWriter,
	txManager TransactionManager,
	atomicProc AtomicProcedure,
	breaker *gobreaker.CircuitBreaker[struct{}],
	locker ItemLocker,
) *ProcessRefundUseCase {
	return &ProcessRefundUseCase{
		saleRepo:      saleRepo,
		refundRepo:    refundRepo,
		inventoryRepo: inventoryRepo,
		customerRepo:  customerRepo,
		outboxRepo:    outboxRepo,
		txManager:     txManager,
		atomicProc:    atomicProc,
		breaker:       breaker,
		locker:        locker,
		lockTTL:       defaultItemLockTTL,
	}
}

// Execute processes a refund for a single sale item.
func (uc *ProcessRefundUseCase) Execute(ctx context.Context, req ProcessRefundRequest) (*ProcessRefundResponse, error) {
	start := time.Now()
	resp, err := uc.process(ctx, req)
	uc.recordOutcome(resp, err, time.Since(start))
	return resp, err
}

func (uc *ProcessRefundUseCase) process(ctx context.Context, req ProcessRefundRequest) (*ProcessRefundResponse, error) {
	// Fail fast before touching storage.
	if err := req.validate(); err != nil {
		return nil, err
	}

	detail, err := uc.saleRepo.GetItemDetail(ctx, req.SaleItemID)
	if err != nil {
		return nil, err
	}

	// Pre-check only; the conditional item update is the real guard.
	if err := detail.EnsureRefundable(req.AmountCents); err != nil {
		return nil, err
	}

	customerID := detail.CustomerID
	if req.CustomerID != nil {
		customerID = req.CustomerID
	}

	rf, err := refund.New(
		detail.SaleID, req.SaleItemID, customerID,
		req.AmountCents, req.Method, req.Reason, req.ProcessedBy, req.BranchID,
	)
	if err != nil {
		return nil, err
	}

	quantity := req.Quantity
	if quantity <= 0 || quantity > detail.Quantity {
		quantity = detail.Quantity
	}

	// Advisory per-item lock. A lock backend failure does not block the
	// refund; the database guard still serializes.
	if uc.locker != nil {
		release, acquired, lockErr := uc.locker.AcquireItemLock(ctx, req.SaleItemID, uc.lockTTL)
		if lockErr == nil {
			if !acquired {
				return nil, domainErrors.ErrRefundInProgress
			}
			defer release(ctx)
		}
	}

	if uc.atomicProc != nil {
		resp, done, err := uc.tryAtomic(ctx, rf, quantity)
		if done {
			return resp, err
		}
	}

	return uc.runStepwise(ctx, rf, detail, quantity, 0)
}

// tryAtomic runs the refund through the database procedure behind the
// circuit breaker. done=false means the caller should fall back to the
// step-by-step path.
func (uc *ProcessRefundUseCase) tryAtomic(ctx context.Context, rf *refund.Refund, quantity int) (*ProcessRefundResponse, bool, error) {
	run := func() (struct{}, error) {
		return struct{}{}, uc.atomicProc.Execute(ctx, rf, quantity)
	}

	var err error
	if uc.breaker != nil {
		_, err = uc.breaker.Execute(run)
		if uc.metrics != nil {
			uc.metrics.CircuitBreakerRequests.WithLabelValues(uc.breaker.Name(), breakerResult(err)).Inc()
		}
	} else {
		_, err = run()
	}

	switch {
	case err == nil:
		rf.Status = refund.StatusCompleted
		rf.LastCompletedStep = len(stepNames())
		resp := &ProcessRefundResponse{Refund: rf, Path: PathAtomic}
		if rf.Method == refund.MethodAccount && rf.CustomerID != nil {
			if c, berr := uc.customerRepo.GetByID(ctx, *rf.CustomerID); berr == nil {
				resp.BalanceAfterCents = &c.BalanceCents
			}
		}
		uc.writeCompletedEvent(ctx, rf, PathAtomic)
		return resp, true, nil

	// Domain rejections surface as-is. A rejected call wrote nothing, so
	// there is nothing to fall back to.
	case errors.Is(err, domainErrors.ErrAlreadyRefunded),
		errors.Is(err, domainErrors.ErrSaleItemNotFound),
		errors.Is(err, domainErrors.ErrAmountExceedsTotal):
		return nil, true, err

	default:
		// Procedure missing, breaker open, or the call failed. A failed
		// function call aborted atomically and the step-by-step path
		// re-runs the guard, so falling back is safe.
		log.Warn().
			Err(err).
			Str("refund_id", rf.ID.String()).
			Str("sale_item_id", rf.SaleItemID.String()).
			Msg("atomic refund procedure failed, falling back to step-by-step path")
		return nil, false, nil
	}
}

// breakerResult labels a circuit breaker outcome for metrics.
func breakerResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "rejected"
	default:
		return "failure"
	}
}

// runStepwise executes the refund saga step by step. Reused by the resume
// path with a non-zero cursor.
func (uc *ProcessRefundUseCase) runStepwise(ctx context.Context, rf *refund.Refund, detail *sale.ItemDetail, quantity, startAfter int) (*ProcessRefundResponse, error) {
	runner := &sagaRunner{
		saleRepo:      uc.saleRepo,
		refundRepo:    uc.refundRepo,
		inventoryRepo: uc.inventoryRepo,
		customerRepo:  uc.customerRepo,
		txManager:     uc.txManager,
		metrics:       uc.metrics,
	}

	balanceAfter, err := runner.run(ctx, rf, detail, quantity, startAfter)
	if err != nil {
		// A failure at the first step rolled the refund row back with it,
		// so there is nothing to mark for reconciliation.
		var stepErr *saga.StepError
		if errors.As(err, &stepErr) && stepErr.Index > 1 {
			cause := stepErr.Err.Error()
			if markErr := rf.MarkPartiallyFailed(cause); markErr == nil {
				_ = uc.refundRepo.MarkPartiallyFailed(ctx, rf.ID, cause)
			}
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

	return &ProcessRefundResponse{
		Refund:            rf,
		BalanceAfterCents: balanceAfter,
		Path:              PathStepwise,
	}, nil
}

// recordOutcome logs the finished refund and feeds the refund counters.
func (uc *ProcessRefundUseCase) recordOutcome(resp *ProcessRefundResponse, err error, elapsed time.Duration) {
	if err != nil {
		if uc.metrics != nil {
			uc.metrics.RefundErrors.WithLabelValues(errorType(err)).Inc()
		}
		return
	}

	rf := resp.Refund
	log.Info().
		Str("refund_id", rf.ID.String()).
		Str("refund_number", rf.Number).
		Str("sale_item_id", rf.SaleItemID.String()).
		Str("method", string(rf.Method)).
		Str("path", resp.Path).
		Int64("amount_cents", rf.AmountCents).
		Dur("elapsed", elapsed).
		Msg("refund completed")

	if uc.metrics == nil {
		return
	}
	uc.metrics.RefundsTotal.WithLabelValues(string(rf.Method), resp.Path, string(rf.Status)).Inc()
	uc.metrics.RefundDuration.WithLabelValues(resp.Path).Observe(elapsed.Seconds())
	uc.metrics.RefundAmount.WithLabelValues(string(rf.Method)).Add(float64(rf.AmountCents))
}

// errorType buckets refund failures for the errors counter. Domain
// rejections are separated from saga stops and plain infrastructure
// failures so alerting can tell user errors from ours.
func errorType(err error) string {
	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		return "validation"
	}
	var stepErr *saga.StepError
	if errors.As(err, &stepErr) {
		return "saga_step"
	}
	for _, sentinel := range []error{
		domainErrors.ErrSaleItemNotFound,
		domainErrors.ErrAlreadyRefunded,
		domainErrors.ErrAmountExceedsTotal,
		domainErrors.ErrCustomerRequired,
		domainErrors.ErrRefundInProgress,
	} {
		if errors.Is(err, sentinel) {
			return "rejected"
		}
	}
	return "internal"
}

// writeCompletedEvent records the refund.completed outbox entry. The atomic
// procedure has already committed, so this is a best-effort follow-up write.
func (uc *ProcessRefundUseCase) writeCompletedEvent(ctx context.Context, rf *refund.Refund, path string) {
	_ = uc.outboxRepo.Insert(ctx, completedEvent(rf, path))
}

func completedEvent(rf *refund.Refund, path string) *outbox.Entry {
	return outbox.NewRefundEvent(rf.ID, "refund.completed", map[string]any{
		"refund_id":     rf.ID.String(),
		"refund_number": rf.Number,
		"sale_item_id":  rf.SaleItemID.String(),
		"amount_cents":  rf.AmountCents,
		"method":        string(rf.Method),
		"branch_id":     rf.BranchID.String(),
		"path":          path,
	})
}
