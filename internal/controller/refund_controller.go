package controller

import (
	"net/http"
	"strconv"
	"time"

	refundApp "github.com/retailops/refunds/internal/application/refund"
	"github.com/retailops/refunds/internal/domain/refund"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// RefundController handles refund-related HTTP requests.
type RefundController struct {
	processUC *refundApp.ProcessRefundUseCase
	resumeUC  *refundApp.ResumeRefundUseCase
	getUC     *refundApp.GetRefundUseCase
	listUC    *refundApp.ListRefundsUseCase
	statsUC   *refundApp.RefundStatsUseCase
}

// NewRefundController creates a new RefundController.
func NewRefundController(
	processUC *refundApp.ProcessRefundUseCase,
	resumeUC *refundApp.ResumeRefundUseCase,
	getUC *refundApp.GetRefundUseCase,
	listUC *refundApp.ListRefundsUseCase,
	statsUC *refundApp.RefundStatsUseCase,
) *RefundController {
	return &RefundController{
		processUC: processUC,
		resumeUC:  resumeUC,
		getUC:     getUC,
		listUC:    listUC,
		statsUC:   statsUC,
	}
}

// CreateRefund handles POST /api/v1/refunds
func (h *RefundController) CreateRefund(w http.ResponseWriter, r *http.Request) {
	var req CreateRefundRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	saleItemID, err := uuid.Parse(req.SaleItemID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid sale_item_id", Code: "invalid_id"})
		return
	}
	branchID, err := uuid.Parse(req.BranchID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid branch_id", Code: "invalid_id"})
		return
	}
	var customerID *uuid.UUID
	if req.CustomerID != nil {
		id, err := uuid.Parse(*req.CustomerID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid customer_id", Code: "invalid_id"})
			return
		}
		customerID = &id
	}

	method, err := refund.ParseMethod(req.Method)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.processUC.Execute(r.Context(), refundApp.ProcessRefundRequest{
		SaleItemID:  saleItemID,
		AmountCents: floatToCents(req.Amount),
		Method:      method,
		Reason:      req.Reason,
		CustomerID:  customerID,
		ProcessedBy: req.ProcessedBy,
		BranchID:    branchID,
		Quantity:    req.Quantity,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	out := FromRefund(resp.Refund)
	if resp.BalanceAfterCents != nil {
		balance := centsToFloat(*resp.BalanceAfterCents)
		out.BalanceAfter = &balance
	}
	writeJSON(w, http.StatusCreated, out)
}

// GetRefund handles GET /api/v1/refunds/{id}
func (h *RefundController) GetRefund(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid refund id", Code: "invalid_id"})
		return
	}

	res, err := h.getUC.Execute(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	out := FromRefund(res.Refund)
	for _, item := range res.Items {
		out.Items = append(out.Items, FromRefundItem(item))
	}
	writeJSON(w, http.StatusOK, out)
}

// ListRefunds handles GET /api/v1/refunds
func (h *RefundController) ListRefunds(w http.ResponseWriter, r *http.Request) {
	filter := refund.ListFilter{}

	if s := r.URL.Query().Get("branch_id"); s != "" {
		id, err := uuid.Parse(s)
		if err == nil {
			filter.BranchID = &id
		}
	}
	if s := r.URL.Query().Get("method"); s != "" {
		method, err := refund.ParseMethod(s)
		if err != nil {
			writeError(w, err)
			return
		}
		filter.Method = &method
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := refund.Status(s)
		filter.Status = &status
	}
	if s := r.URL.Query().Get("from"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			filter.From = &t
		}
	}
	if s := r.URL.Query().Get("to"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			filter.To = &t
		}
	}
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	filter.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	filter.SortBy = r.URL.Query().Get("sort_by")
	filter.SortOrder = r.URL.Query().Get("sort_order")

	refunds, err := h.listUC.Execute(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*RefundResponse, 0, len(refunds))
	for _, rf := range refunds {
		resp = append(resp, FromRefund(rf))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetStats handles GET /api/v1/refunds/stats
func (h *RefundController) GetStats(w http.ResponseWriter, r *http.Request) {
	filter := refund.StatsFilter{}

	if s := r.URL.Query().Get("branch_id"); s != "" {
		id, err := uuid.Parse(s)
		if err == nil {
			filter.BranchID = &id
		}
	}
	if s := r.URL.Query().Get("from"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			filter.From = &t
		}
	}
	if s := r.URL.Query().Get("to"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			filter.To = &t
		}
	}

	stats, err := h.statsUC.Execute(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromStats(stats))
}

// ResumeRefund handles POST /api/v1/refunds/{id}/resume
func (h *RefundController) ResumeRefund(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid refund id", Code: "invalid_id"})
		return
	}

	rf, err := h.resumeUC.Execute(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromRefund(rf))
}
