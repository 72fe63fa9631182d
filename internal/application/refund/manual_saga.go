package refund

import (
	"context"
	"errors"
	"time"

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

// Step names of the step-by-step refund path, in execution order. Each step
// commits in its own transaction together with the cursor update recording
// it, so the persisted cursor exactly matches what committed.
const (
	stepCreateRefund     = "create_refund"
	stepCreateRefundItem = "create_refund_item"
	stepRestockProduct   = "restock_product"
	stepRestockVariant   = "restock_variant"
	stepRestockBranch    = "restock_branch"
	stepCreditCustomer   = "credit_customer"
	stepMarkItemRefunded = "mark_item_refunded"
)

func stepNames() []string {
	return []string{
		stepCreateRefund,
		stepCreateRefundItem,
		stepRestockProduct,
		stepRestockVariant,
		stepRestockBranch,
		stepCreditCustomer,
		stepMarkItemRefunded,
	}
}

// sagaRunner executes the step-by-step refund saga. Shared by the process
// and resume use cases. metrics may be nil.
type sagaRunner struct {
	saleRepo      sale.Repository
	refundRepo    refund.Repository
	inventoryRepo inventory.Repository
	customerRepo  customer.Repository
	txManager     TransactionManager
	metrics       *observability.Metrics
}

// run executes the saga starting after the given cursor. It returns the
// customer balance after an account credit, when that step ran.
func (r *sagaRunner) run(ctx context.Context, rf *refund.Refund, detail *sale.ItemDetail, quantity, startAfter int) (*int64, error) {
	var balanceAfter *int64
	var adjustments []inventory.Adjustment
	resuming := startAfter > 0

	s := saga.New("refund").
		AddStep(saga.Step{
			Name: stepCreateRefund,
			Run: func(ctx context.Context) error {
				return r.refundRepo.Create(ctx, rf)
			},
		}).
		AddStep(saga.Step{
			Name: stepCreateRefundItem,
			Run: func(ctx context.Context) error {
				return r.refundRepo.CreateItem(ctx, &refund.Item{
					ID:             uuid.New(),
					RefundID:       rf.ID,
					SaleItemID:     detail.ID,
					ProductID:      detail.ProductID,
					VariantID:      detail.VariantID,
					Quantity:       quantity,
					UnitPriceCents: detail.UnitPriceCents,
					AmountCents:    rf.AmountCents,
					Reason:         rf.Reason,
					CreatedAt:      time.Now(),
				})
			},
		}).
		AddStep(saga.Step{
			Name: stepRestockProduct,
			Run: func(ctx context.Context) error {
				if err := r.inventoryRepo.AddProductStock(ctx, detail.ProductID, quantity); err != nil {
					return err
				}
				adjustments = append(adjustments, inventory.Adjustment{
					Level: inventory.LevelProduct, Quantity: quantity, Applied: true,
				})
				return nil
			},
		}).
		AddStep(saga.Step{
			Name: stepRestockVariant,
			Run: func(ctx context.Context) error {
				if detail.VariantID == nil {
					return nil
				}
				if err := r.inventoryRepo.AddVariantStock(ctx, *detail.VariantID, quantity); err != nil {
					return err
				}
				adjustments = append(adjustments, inventory.Adjustment{
					Level: inventory.LevelVariant, Quantity: quantity, Applied: true,
				})
				return nil
			},
		}).
		AddStep(saga.Step{
			Name: stepRestockBranch,
			Run: func(ctx context.Context) error {
				// A branch with no stock row for this product is skipped.
				applied, err := r.inventoryRepo.AddBranchStock(ctx, rf.BranchID, detail.ProductID, detail.VariantID, quantity)
				if err != nil {
					return err
				}
				adjustments = append(adjustments, inventory.Adjustment{
					Level: inventory.LevelBranch, Quantity: quantity, Applied: applied,
				})
				return nil
			},
		}).
		AddStep(saga.Step{
			Name: stepCreditCustomer,
			Run: func(ctx context.Context) error {
				if rf.Method != refund.MethodAccount {
					return nil
				}
				if rf.CustomerID == nil {
					return domainErrors.ErrCustomerRequired
				}
				after, err := r.customerRepo.Credit(ctx, *rf.CustomerID, rf.AmountCents)
				if err != nil {
					return err
				}
				balanceAfter = &after
				return r.customerRepo.AddLedgerEntry(ctx,
					customer.NewRefundCredit(*rf.CustomerID, rf.ID, rf.AmountCents, after))
			},
		}).
		AddStep(saga.Step{
			Name: stepMarkItemRefunded,
			Run: func(ctx context.Context) error {
				err := r.saleRepo.MarkItemRefunded(ctx, detail.ID, rf.AmountCents, time.Now())
				if err == nil {
					return nil
				}
				// On resume the item may already carry our marking when the
				// original attempt crashed after its final step committed.
				// A matching recorded amount means the work was done.
				if resuming && errors.Is(err, domainErrors.ErrAlreadyRefunded) {
					fresh, ferr := r.saleRepo.GetItemDetail(ctx, detail.ID)
					if ferr == nil && fresh.RefundAmountCents != nil && *fresh.RefundAmountCents == rf.AmountCents {
						return nil
					}
				}
				return err
			},
		}).
		InTransaction(r.txManager.WithTransaction).
		OnStepCompleted(func(ctx context.Context, index int, name string) error {
			if err := r.refundRepo.SetCursor(ctx, rf.ID, index); err != nil {
				return err
			}
			rf.LastCompletedStep = index
			r.stepCompleted(rf, detail, index, name)
			return nil
		})

	_, err := s.Execute(ctx, startAfter)
	if err != nil {
		r.stepFailed(rf, detail, err)
		return balanceAfter, err
	}

	for _, adj := range adjustments {
		log.Debug().
			Str("refund_id", rf.ID.String()).
			Str("level", string(adj.Level)).
			Int("quantity", adj.Quantity).
			Bool("applied", adj.Applied).
			Msg("stock adjustment recorded")
	}
	return balanceAfter, nil
}

func (r *sagaRunner) stepCompleted(rf *refund.Refund, detail *sale.ItemDetail, index int, name string) {
	log.Debug().
		Str("refund_id", rf.ID.String()).
		Str("sale_item_id", detail.ID.String()).
		Str("step", name).
		Int("step_index", index).
		Msg("refund step committed")
	if r.metrics != nil {
		r.metrics.SagaStepsTotal.WithLabelValues(name).Inc()
	}
}

func (r *sagaRunner) stepFailed(rf *refund.Refund, detail *sale.ItemDetail, err error) {
	var stepErr *saga.StepError
	if !errors.As(err, &stepErr) {
		return
	}
	log.Error().
		Err(stepErr.Err).
		Str("refund_id", rf.ID.String()).
		Str("sale_item_id", detail.ID.String()).
		Str("step", stepErr.Step).
		Int("step_index", stepErr.Index).
		Int("cursor", rf.LastCompletedStep).
		Msg("refund step failed")
	if r.metrics != nil {
		r.metrics.SagaStepFailures.WithLabelValues(stepErr.Step).Inc()
	}
}
