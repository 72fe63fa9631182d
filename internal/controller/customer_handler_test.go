package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	customerApp "github.com/retailops/refunds/internal/application/customer"
	"github.com/retailops/refunds/internal/domain/customer"
	"github.com/retailops/refunds/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func ledgerController(repo *testutil.MockCustomerRepository) *CustomerController {
	return NewCustomerController(customerApp.NewGetLedgerUseCase(repo))
}

func TestCustomerController_GetLedger(t *testing.T) {
	repo := testutil.NewMockCustomerRepository()
	cust := testutil.NewTestCustomer("Alice", 30_00)
	repo.AddCustomer(cust)

	refundID := uuid.New()
	entry := customer.NewRefundCredit(cust.ID, refundID, 30_00, 30_00)
	if err := repo.AddLedgerEntry(context.Background(), entry); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}

	handler := ledgerController(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/customers/"+cust.ID.String()+"/ledger", nil)
	rec := httptest.NewRecorder()

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", cust.ID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	handler.GetLedger(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp []LedgerEntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(resp))
	}
	if resp[0].Amount != 30.00 {
		t.Errorf("expected amount 30.00, got %.2f", resp[0].Amount)
	}
	if resp[0].BalanceAfter != 30.00 {
		t.Errorf("expected balance_after 30.00, got %.2f", resp[0].BalanceAfter)
	}
	if resp[0].RefundID == nil || *resp[0].RefundID != refundID.String() {
		t.Errorf("expected refund_id %s, got %v", refundID, resp[0].RefundID)
	}
}

func TestCustomerController_GetLedger_UnknownCustomer(t *testing.T) {
	handler := ledgerController(testutil.NewMockCustomerRepository())

	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/customers/"+id.String()+"/ledger", nil)
	rec := httptest.NewRecorder()

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	handler.GetLedger(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestCustomerController_GetLedger_InvalidID(t *testing.T) {
	handler := ledgerController(testutil.NewMockCustomerRepository())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/customers/not-a-uuid/ledger", nil)
	rec := httptest.NewRecorder()

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "not-a-uuid")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	handler.GetLedger(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}
