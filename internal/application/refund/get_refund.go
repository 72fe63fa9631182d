package refund

import (
	"context"

	"github.com/retailops/refunds/internal/domain/refund"
	"github.com/google/uuid"
)

// GetRefundUseCase retrieves a refund with its items.
type GetRefundUseCase struct {
	refundRepo refund.Repository
}

// NewGetRefundUseCase creates a new GetRefundUseCase.
func NewGetRefundUseCase(refundRepo refund.Repository) *GetRefundUseCase {
	return &GetRefundUseCase{refundRepo: refundRepo}
}

// GetRefundResponse is a refund with its line items.
type GetRefundResponse struct {
	Refund *refund.Refund
	Items  []*refund.Item
}

// Execute retrieves a refund by ID.
func (uc *GetRefundUseCase) Execute(ctx context.Context, id uuid.UUID) (*GetRefundResponse, error) {
	rf, err := uc.refundRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := uc.refundRepo.GetItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return &GetRefundResponse{Refund: rf, Items: items}, nil
}
