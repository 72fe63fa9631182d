package controller

import (
	"time"

	"github.com/retailops/refunds/internal/domain/customer"
	"github.com/retailops/refunds/internal/domain/refund"
)

// --- Request DTOs ---
// These DTOs handle HTTP/JSON concerns (float64 for money, string for IDs,
// validation tags). Controllers convert these to use case inputs before
// calling business logic.

// CreateRefundRequest holds the input for processing a refund.
type CreateRefundRequest struct {
	SaleItemID  string  `json:"sale_item_id" validate:"required,uuid"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Method      string  `json:"method" validate:"required,oneof=cash card account store_credit"`
	Reason      string  `json:"reason,omitempty"`
	CustomerID  *string `json:"customer_id,omitempty" validate:"omitempty,uuid"`
	ProcessedBy string  `json:"processed_by" validate:"required"`
	BranchID    string  `json:"branch_id" validate:"required,uuid"`
	Quantity    int     `json:"quantity,omitempty" validate:"gte=0"`
}

// --- Response DTOs ---

// RefundResponse represents a refund in API responses.
type RefundResponse struct {
	ID                string     `json:"id"`
	RefundNumber      string     `json:"refund_number"`
	SaleID            string     `json:"sale_id"`
	SaleItemID        string     `json:"sale_item_id"`
	CustomerID        *string    `json:"customer_id,omitempty"`
	Amount            float64    `json:"amount"`
	Method            string     `json:"method"`
	Reason            string     `json:"reason,omitempty"`
	Status            string     `json:"status"`
	ProcessedBy       string     `json:"processed_by"`
	BranchID          string     `json:"branch_id"`
	LastCompletedStep int        `json:"last_completed_step"`
	LastError         *string    `json:"last_error,omitempty"`
	BalanceAfter      *float64   `json:"balance_after,omitempty"`
	Items             []RefundItemResponse `json:"items,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// RefundItemResponse represents a refund line item in API responses.
type RefundItemResponse struct {
	ID         string  `json:"id"`
	SaleItemID string  `json:"sale_item_id"`
	ProductID  string  `json:"product_id"`
	VariantID  *string `json:"variant_id,omitempty"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	Amount     float64 `json:"amount"`
	Reason     string  `json:"reason,omitempty"`
}

// RefundStatsResponse represents aggregated refund statistics.
type RefundStatsResponse struct {
	Count    int64                      `json:"count"`
	Amount   float64                    `json:"amount"`
	ByMethod []RefundMethodStatsResponse `json:"by_method"`
}

// RefundMethodStatsResponse is the per-method stats breakdown.
type RefundMethodStatsResponse struct {
	Method string  `json:"method"`
	Count  int64   `json:"count"`
	Amount float64 `json:"amount"`
}

// LedgerEntryResponse represents a customer balance change in API responses.
type LedgerEntryResponse struct {
	ID           string    `json:"id"`
	RefundID     *string   `json:"refund_id,omitempty"`
	Amount       float64   `json:"amount"`
	BalanceAfter float64   `json:"balance_after"`
	Reason       string    `json:"reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Conversion helpers ---

// FromRefund converts a domain refund to API response.
func FromRefund(r *refund.Refund) *RefundResponse {
	resp := &RefundResponse{
		ID:                r.ID.String(),
		RefundNumber:      r.Number,
		SaleID:            r.SaleID.String(),
		SaleItemID:        r.SaleItemID.String(),
		Amount:            centsToFloat(r.AmountCents),
		Method:            string(r.Method),
		Reason:            r.Reason,
		Status:            string(r.Status),
		ProcessedBy:       r.ProcessedBy,
		BranchID:          r.BranchID.String(),
		LastCompletedStep: r.LastCompletedStep,
		LastError:         r.LastError,
		CreatedAt:         r.CreatedAt,
	}
	if r.CustomerID != nil {
		cid := r.CustomerID.String()
		resp.CustomerID = &cid
	}
	return resp
}

// FromRefundItem converts a domain refund item to API response.
func FromRefundItem(item *refund.Item) RefundItemResponse {
	resp := RefundItemResponse{
		ID:         item.ID.String(),
		SaleItemID: item.SaleItemID.String(),
		ProductID:  item.ProductID.String(),
		Quantity:   item.Quantity,
		UnitPrice:  centsToFloat(item.UnitPriceCents),
		Amount:     centsToFloat(item.AmountCents),
		Reason:     item.Reason,
	}
	if item.VariantID != nil {
		vid := item.VariantID.String()
		resp.VariantID = &vid
	}
	return resp
}

// FromLedgerEntry converts a domain ledger entry to API response.
func FromLedgerEntry(e *customer.LedgerEntry) LedgerEntryResponse {
	resp := LedgerEntryResponse{
		ID:           e.ID.String(),
		Amount:       centsToFloat(e.AmountCents),
		BalanceAfter: centsToFloat(e.BalanceAfterCents),
		Reason:       e.Reason,
		CreatedAt:    e.CreatedAt,
	}
	if e.RefundID != nil {
		rid := e.RefundID.String()
		resp.RefundID = &rid
	}
	return resp
}

// FromStats converts domain stats to API response.
func FromStats(s *refund.Stats) *RefundStatsResponse {
	resp := &RefundStatsResponse{
		Count:    s.Count,
		Amount:   centsToFloat(s.AmountCents),
		ByMethod: make([]RefundMethodStatsResponse, 0, len(s.ByMethod)),
	}
	for _, ms := range s.ByMethod {
		resp.ByMethod = append(resp.ByMethod, RefundMethodStatsResponse{
			Method: string(ms.Method),
			Count:  ms.Count,
			Amount: centsToFloat(ms.AmountCents),
		})
	}
	return resp
}

// floatToCents converts a float currency amount to cents.
func floatToCents(f float64) int64 {
	return int64(f*100 + 0.5)
}

// centsToFloat converts cents to a float currency amount.
func centsToFloat(cents int64) float64 {
	return float64(cents) / 100.0
}
