package sale

import (
	"testing"
	"time"

	"github.com/retailops/refunds/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newItem(quantity int, unitCents int64) *Item {
	return &Item{
		ID:              uuid.New(),
		SaleID:          uuid.New(),
		ProductID:       uuid.New(),
		Quantity:        quantity,
		UnitPriceCents:  unitCents,
		TotalPriceCents: int64(quantity) * unitCents,
	}
}

func TestEnsureRefundable_OK(t *testing.T) {
	item := newItem(2, 100_00)
	assert.NoError(t, item.EnsureRefundable(200_00))
	assert.NoError(t, item.EnsureRefundable(50_00)) // partial amount
}

func TestEnsureRefundable_AlreadyRefunded(t *testing.T) {
	item := newItem(2, 100_00)
	item.Refunded = true
	assert.ErrorIs(t, item.EnsureRefundable(100_00), errors.ErrAlreadyRefunded)
}

func TestEnsureRefundable_ExceedsTotal(t *testing.T) {
	item := newItem(2, 100_00)
	assert.ErrorIs(t, item.EnsureRefundable(200_01), errors.ErrAmountExceedsTotal)
}

func TestEnsureRefundable_NonPositiveAmount(t *testing.T) {
	item := newItem(1, 100_00)
	assert.Error(t, item.EnsureRefundable(0))
	assert.Error(t, item.EnsureRefundable(-5))
}

func TestMarkRefunded_SetsFieldsOnce(t *testing.T) {
	item := newItem(2, 100_00)
	at := time.Now()

	require.NoError(t, item.MarkRefunded(200_00, at))
	assert.True(t, item.Refunded)
	require.NotNil(t, item.RefundAmountCents)
	assert.Equal(t, int64(200_00), *item.RefundAmountCents)
	require.NotNil(t, item.RefundDate)
	assert.Equal(t, at, *item.RefundDate)

	// Second marking is rejected.
	assert.ErrorIs(t, item.MarkRefunded(200_00, at), errors.ErrAlreadyRefunded)
}
