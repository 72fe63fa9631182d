package refund

import (
	"context"

	"github.com/retailops/refunds/internal/domain/refund"
)

// RefundStatsUseCase aggregates completed refunds for reporting.
type RefundStatsUseCase struct {
	refundRepo refund.Repository
}

// NewRefundStatsUseCase creates a new RefundStatsUseCase.
func NewRefundStatsUseCase(refundRepo refund.Repository) *RefundStatsUseCase {
	return &RefundStatsUseCase{refundRepo: refundRepo}
}

// Execute returns refund statistics scoped by the filter.
func (uc *RefundStatsUseCase) Execute(ctx context.Context, filter refund.StatsFilter) (*refund.Stats, error) {
	return uc.refundRepo.Stats(ctx, filter)
}
