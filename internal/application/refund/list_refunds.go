package refund

import (
	"context"

	"github.com/retailops/refunds/internal/domain/refund"
)

const maxPageSize = 100

// ListRefundsUseCase lists refunds with filters and pagination.
type ListRefundsUseCase struct {
	refundRepo refund.Repository
}

// NewListRefundsUseCase creates a new ListRefundsUseCase.
func NewListRefundsUseCase(refundRepo refund.Repository) *ListRefundsUseCase {
	return &ListRefundsUseCase{refundRepo: refundRepo}
}

// Execute lists refunds matching the filter.
func (uc *ListRefundsUseCase) Execute(ctx context.Context, filter refund.ListFilter) ([]*refund.Refund, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return uc.refundRepo.List(ctx, filter)
}
