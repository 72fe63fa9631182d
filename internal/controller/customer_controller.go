package controller

import (
	"net/http"
	"strconv"

	customerApp "github.com/retailops/refunds/internal/application/customer"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CustomerController handles customer account HTTP requests.
type CustomerController struct {
	ledgerUC *customerApp.GetLedgerUseCase
}

// NewCustomerController creates a new CustomerController.
func NewCustomerController(ledgerUC *customerApp.GetLedgerUseCase) *CustomerController {
	return &CustomerController{ledgerUC: ledgerUC}
}

// GetLedger handles GET /api/v1/customers/{id}/ledger
func (h *CustomerController) GetLedger(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid customer id", Code: "invalid_id"})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.ledgerUC.Execute(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]LedgerEntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, FromLedgerEntry(entry))
	}
	writeJSON(w, http.StatusOK, resp)
}
