package testutil

import (
	"time"

	"github.com/retailops/refunds/internal/domain/customer"
	"github.com/retailops/refunds/internal/domain/refund"
	"github.com/retailops/refunds/internal/domain/sale"
	"github.com/google/uuid"
)

func NewTestSaleItem(quantity int, unitPriceCents int64) *sale.ItemDetail {
	return &sale.ItemDetail{
		Item: sale.Item{
			ID:              uuid.New(),
			SaleID:          uuid.New(),
			ProductID:       uuid.New(),
			Quantity:        quantity,
			UnitPriceCents:  unitPriceCents,
			TotalPriceCents: int64(quantity) * unitPriceCents,
		},
		BranchID: uuid.New(),
	}
}

func NewTestSaleItemWithVariant(quantity int, unitPriceCents int64) *sale.ItemDetail {
	detail := NewTestSaleItem(quantity, unitPriceCents)
	variantID := uuid.New()
	detail.VariantID = &variantID
	return detail
}

func NewTestCustomer(name string, balanceCents int64) *customer.Customer {
	now := time.Now()
	return &customer.Customer{
		ID:           uuid.New(),
		Name:         name,
		BalanceCents: balanceCents,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func NewTestRefund(detail *sale.ItemDetail, amountCents int64, method refund.Method) *refund.Refund {
	rf, err := refund.New(
		detail.SaleID, detail.ID, detail.CustomerID,
		amountCents, method, "test refund", "cashier-1", detail.BranchID,
	)
	if err != nil {
		panic(err)
	}
	return rf
}

func NewPartiallyFailedRefund(detail *sale.ItemDetail, amountCents int64, method refund.Method, lastStep int, cause string) *refund.Refund {
	rf := NewTestRefund(detail, amountCents, method)
	rf.Status = refund.StatusPartiallyFailed
	rf.LastCompletedStep = lastStep
	rf.LastError = &cause
	return rf
}

func UUIDPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
