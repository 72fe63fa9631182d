package refund_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	refundApp "github.com/retailops/refunds/internal/application/refund"
	domainErrors "github.com/retailops/refunds/internal/domain/errors"
	domainRefund "github.com/retailops/refunds/internal/domain/refund"
	"github.com/retailops/refunds/internal/testutil"
	"github.com/google/uuid"
)

func (d *deps) resumeUseCase() *refundApp.ResumeRefundUseCase {
	return refundApp.NewResumeRefundUseCase(
		d.saleRepo, d.refundRepo, d.inventoryRepo, d.customerRepo,
		d.outboxRepo, d.txManager,
	)
}

func TestResumeRefund_SkipsCommittedSteps(t *testing.T) {
	ctx := context.Background()
	d := newDeps()

	cust := testutil.NewTestCustomer("Carol", 10_00)
	d.customerRepo.AddCustomer(cust)

	item := testutil.NewTestSaleItem(2, 10_00)
	item.CustomerID = &cust.ID
	d.saleRepo.AddItem(item)

	// Original attempt committed through restock_branch (step 5) and then
	// failed at credit_customer.
	rf := testutil.NewPartiallyFailedRefund(item, 20_00, domainRefund.MethodAccount, 5, "connection reset")
	d.refundRepo.Create(ctx, rf)

	uc := d.resumeUseCase()
	resumed, err := uc.Execute(ctx, rf.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resumed.Status != domainRefund.StatusCompleted {
		t.Errorf("expected status completed, got %s", resumed.Status)
	}
	// Steps 1-5 must not re-run: no new stock increments.
	if got := d.inventoryRepo.ProductStock[item.ProductID]; got != 0 {
		t.Errorf("expected no restock on resume, got +%d", got)
	}
	// The remaining steps did run.
	if c := d.customerRepo.GetCustomerByID(cust.ID); c.BalanceCents != 30_00 {
		t.Errorf("expected balance 3000 after credit, got %d", c.BalanceCents)
	}
	if !d.saleRepo.GetItem(item.ID).Refunded {
		t.Error("expected sale item marked refunded")
	}
	if len(d.outboxRepo.Entries) != 1 || d.outboxRepo.Entries[0].EventType != "refund.completed" {
		t.Error("expected refund.completed outbox entry")
	}
}

func TestResumeRefund_NotResumable(t *testing.T) {
	ctx := context.Background()
	d := newDeps()

	item := testutil.NewTestSaleItem(1, 10_00)
	d.saleRepo.AddItem(item)

	rf := testutil.NewTestRefund(item, 10_00, domainRefund.MethodCash)
	rf.Status = domainRefund.StatusCompleted
	d.refundRepo.Create(ctx, rf)

	uc := d.resumeUseCase()
	_, err := uc.Execute(ctx, rf.ID)
	if !errors.Is(err, domainErrors.ErrRefundNotResumable) {
		t.Fatalf("expected ErrRefundNotResumable, got %v", err)
	}
}

func TestResumeRefund_NotFound(t *testing.T) {
	ctx := context.Background()
	d := newDeps()

	uc := d.resumeUseCase()
	_, err := uc.Execute(ctx, uuid.New())
	if !errors.Is(err, domainErrors.ErrRefundNotFound) {
		t.Fatalf("expected ErrRefundNotFound, got %v", err)
	}
}

func TestResumeRefund_FailsAgain_KeepsCause(t *testing.T) {
	ctx := context.Background()
	d := newDeps()

	cust := testutil.NewTestCustomer("Dave", 0)
	d.customerRepo.AddCustomer(cust)

	item := testutil.NewTestSaleItem(1, 10_00)
	item.CustomerID = &cust.ID
	d.saleRepo.AddItem(item)

	rf := testutil.NewPartiallyFailedRefund(item, 10_00, domainRefund.MethodAccount, 5, "connection reset")
	d.refundRepo.Create(ctx, rf)

	d.customerRepo.CreditFunc = func(context.Context, uuid.UUID, int64) (int64, error) {
		return 0, fmt.Errorf("still down")
	}

	uc := d.resumeUseCase()
	_, err := uc.Execute(ctx, rf.ID)
	if err == nil {
		t.Fatal("expected error from failing credit step, got nil")
	}

	stored := d.refundRepo.GetRefundByID(rf.ID)
	if stored.Status != domainRefund.StatusPartiallyFailed {
		t.Errorf("expected status partially_failed, got %s", stored.Status)
	}
	if stored.LastError == nil || *stored.LastError != "still down" {
		t.Errorf("expected updated failure cause, got %v", stored.LastError)
	}
	if stored.LastCompletedStep != 5 {
		t.Errorf("expected cursor unchanged at 5, got %d", stored.LastCompletedStep)
	}
}

func TestResumeRefund_ItemAlreadyMarkedByUs(t *testing.T) {
	ctx := context.Background()
	d := newDeps()

	item := testutil.NewTestSaleItem(1, 10_00)
	d.saleRepo.AddItem(item)

	// The original attempt crashed after marking the item but before the
	// cursor write for the final step landed.
	amount := int64(10_00)
	now := time.Now()
	if err := d.saleRepo.MarkItemRefunded(ctx, item.ID, amount, now); err != nil {
		t.Fatalf("setup: %v", err)
	}

	rf := testutil.NewPartiallyFailedRefund(item, amount, domainRefund.MethodCash, 6, "connection reset")
	d.refundRepo.Create(ctx, rf)

	uc := d.resumeUseCase()
	resumed, err := uc.Execute(ctx, rf.ID)
	if err != nil {
		t.Fatalf("expected resume to accept matching marking, got %v", err)
	}
	if resumed.Status != domainRefund.StatusCompleted {
		t.Errorf("expected status completed, got %s", resumed.Status)
	}
}

func TestResumeRefund_ItemMarkedByOther_Fails(t *testing.T) {
	ctx := context.Background()
	d := newDeps()

	item := testutil.NewTestSaleItem(2, 10_00)
	d.saleRepo.AddItem(item)

	// Another refund marked the item with a different amount.
	if err := d.saleRepo.MarkItemRefunded(ctx, item.ID, 5_00, time.Now()); err != nil {
		t.Fatalf("setup: %v", err)
	}

	rf := testutil.NewPartiallyFailedRefund(item, 20_00, domainRefund.MethodCash, 6, "connection reset")
	d.refundRepo.Create(ctx, rf)

	uc := d.resumeUseCase()
	_, err := uc.Execute(ctx, rf.ID)
	if !errors.Is(err, domainErrors.ErrAlreadyRefunded) {
		t.Fatalf("expected ErrAlreadyRefunded, got %v", err)
	}
}

func TestResumeRefund_RecoversQuantityFromItemRow(t *testing.T) {
	ctx := context.Background()
	d := newDeps()

	item := testutil.NewTestSaleItem(5, 10_00)
	d.saleRepo.AddItem(item)

	rf := testutil.NewPartiallyFailedRefund(item, 50_00, domainRefund.MethodCash, 2, "connection reset")
	d.refundRepo.Create(ctx, rf)
	// Step 2 committed a refund item with quantity 3 (partial return).
	d.refundRepo.CreateItem(ctx, &domainRefund.Item{
		ID:         uuid.New(),
		RefundID:   rf.ID,
		SaleItemID: item.ID,
		ProductID:  item.ProductID,
		Quantity:   3,
	})

	uc := d.resumeUseCase()
	if _, err := uc.Execute(ctx, rf.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := d.inventoryRepo.ProductStock[item.ProductID]; got != 3 {
		t.Errorf("expected restock of recovered quantity 3, got %d", got)
	}
}
