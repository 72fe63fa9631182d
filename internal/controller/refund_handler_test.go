package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	refundApp "github.com/retailops/refunds/internal/application/refund"
	"github.com/retailops/refunds/internal/domain/refund"
	"github.com/retailops/refunds/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type handlerDeps struct {
	saleRepo     *testutil.MockSaleItemRepository
	refundRepo   *testutil.MockRefundRepository
	inventory    *testutil.MockInventoryRepository
	customerRepo *testutil.MockCustomerRepository
	outboxRepo   *testutil.MockOutboxRepository
	txManager    *testutil.MockTransactionManager
}

func newHandlerDeps() *handlerDeps {
	return &handlerDeps{
		saleRepo:     testutil.NewMockSaleItemRepository(),
		refundRepo:   testutil.NewMockRefundRepository(),
		inventory:    testutil.NewMockInventoryRepository(),
		customerRepo: testutil.NewMockCustomerRepository(),
		outboxRepo:   testutil.NewMockOutboxRepository(),
		txManager:    testutil.NewMockTransactionManager(),
	}
}

func (d *handlerDeps) controller() *RefundController {
	processUC := refundApp.NewProcessRefundUseCase(
		d.saleRepo, d.refundRepo, d.inventory, d.customerRepo,
		d.outboxRepo, d.txManager, nil, nil, nil,
	)
	resumeUC := refundApp.NewResumeRefundUseCase(
		d.saleRepo, d.refundRepo, d.inventory, d.customerRepo,
		d.outboxRepo, d.txManager,
	)
	return NewRefundController(
		processUC,
		resumeUC,
		refundApp.NewGetRefundUseCase(d.refundRepo),
		refundApp.NewListRefundsUseCase(d.refundRepo),
		refundApp.NewRefundStatsUseCase(d.refundRepo),
	)
}

func TestRefundController_CreateRefund(t *testing.T) {
	d := newHandlerDeps()
	detail := testutil.NewTestSaleItem(2, 25_00)
	d.saleRepo.AddItem(detail)
	d.inventory.ProductStock[detail.ProductID] = 10

	handler := d.controller()

	reqBody := CreateRefundRequest{
		SaleItemID:  detail.ID.String(),
		Amount:      50.00,
		Method:      "cash",
		Reason:      "damaged goods",
		ProcessedBy: "cashier-1",
		BranchID:    detail.BranchID.String(),
	}
	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/refunds", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.CreateRefund(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var resp RefundResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Status != string(refund.StatusCompleted) {
		t.Errorf("expected status completed, got %s", resp.Status)
	}
	if resp.Amount != 50.00 {
		t.Errorf("expected amount 50.00, got %.2f", resp.Amount)
	}
	if resp.RefundNumber == "" {
		t.Error("expected a refund number")
	}
}

func TestRefundController_CreateRefund_ValidationError(t *testing.T) {
	handler := newHandlerDeps().controller()

	// processed_by missing
	body := []byte(`{"sale_item_id":"` + uuid.New().String() + `","amount":10.0,"method":"cash"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/refunds", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.CreateRefund(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d: %s", http.StatusBadRequest, rec.Code, rec.Body.String())
	}
}

func TestRefundController_CreateRefund_AlreadyRefunded(t *testing.T) {
	d := newHandlerDeps()
	detail := testutil.NewTestSaleItem(1, 10_00)
	d.saleRepo.AddItem(detail)
	if err := d.saleRepo.MarkItemRefunded(context.Background(), detail.ID, 10_00, time.Now()); err != nil {
		t.Fatalf("mark refunded: %v", err)
	}

	handler := d.controller()

	reqBody := CreateRefundRequest{
		SaleItemID:  detail.ID.String(),
		Amount:      10.00,
		Method:      "cash",
		ProcessedBy: "cashier-1",
		BranchID:    detail.BranchID.String(),
	}
	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/refunds", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.CreateRefund(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d: %s", http.StatusConflict, rec.Code, rec.Body.String())
	}

	var resp ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Code != "already_refunded" {
		t.Errorf("expected code already_refunded, got %s", resp.Code)
	}
}

func TestRefundController_GetRefund(t *testing.T) {
	d := newHandlerDeps()
	detail := testutil.NewTestSaleItem(1, 30_00)
	rf := testutil.NewTestRefund(detail, 30_00, refund.MethodCash)
	if err := d.refundRepo.Create(context.Background(), rf); err != nil {
		t.Fatalf("seed refund: %v", err)
	}

	handler := d.controller()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/refunds/"+rf.ID.String(), nil)
	rec := httptest.NewRecorder()

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", rf.ID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	handler.GetRefund(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp RefundResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.ID != rf.ID.String() {
		t.Errorf("expected id %s, got %s", rf.ID, resp.ID)
	}
}

func TestRefundController_GetRefund_NotFound(t *testing.T) {
	handler := newHandlerDeps().controller()

	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/refunds/"+id.String(), nil)
	rec := httptest.NewRecorder()

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	handler.GetRefund(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestRefundController_GetRefund_InvalidID(t *testing.T) {
	handler := newHandlerDeps().controller()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/refunds/not-a-uuid", nil)
	rec := httptest.NewRecorder()

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "not-a-uuid")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	handler.GetRefund(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestRefundController_ListRefunds(t *testing.T) {
	d := newHandlerDeps()
	for i := 0; i < 3; i++ {
		detail := testutil.NewTestSaleItem(1, 10_00)
		rf := testutil.NewTestRefund(detail, 10_00, refund.MethodCash)
		if err := d.refundRepo.Create(context.Background(), rf); err != nil {
			t.Fatalf("seed refund: %v", err)
		}
	}

	handler := d.controller()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/refunds?limit=10", nil)
	rec := httptest.NewRecorder()

	handler.ListRefunds(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp []RefundResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp) != 3 {
		t.Errorf("expected 3 refunds, got %d", len(resp))
	}
}

func TestRefundController_ListRefunds_BadMethodFilter(t *testing.T) {
	handler := newHandlerDeps().controller()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/refunds?method=cheque", nil)
	rec := httptest.NewRecorder()

	handler.ListRefunds(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestRefundController_GetStats(t *testing.T) {
	d := newHandlerDeps()
	detail := testutil.NewTestSaleItem(1, 20_00)
	rf := testutil.NewTestRefund(detail, 20_00, refund.MethodCard)
	rf.MarkCompleted()
	if err := d.refundRepo.Create(context.Background(), rf); err != nil {
		t.Fatalf("seed refund: %v", err)
	}

	handler := d.controller()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/refunds/stats", nil)
	rec := httptest.NewRecorder()

	handler.GetStats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp RefundStatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Count != 1 {
		t.Errorf("expected count 1, got %d", resp.Count)
	}
	if resp.Amount != 20.00 {
		t.Errorf("expected amount 20.00, got %.2f", resp.Amount)
	}
}

func TestRefundController_ResumeRefund_NotResumable(t *testing.T) {
	d := newHandlerDeps()
	detail := testutil.NewTestSaleItem(1, 10_00)
	rf := testutil.NewTestRefund(detail, 10_00, refund.MethodCash)
	rf.MarkCompleted()
	if err := d.refundRepo.Create(context.Background(), rf); err != nil {
		t.Fatalf("seed refund: %v", err)
	}

	handler := d.controller()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/refunds/"+rf.ID.String()+"/resume", nil)
	rec := httptest.NewRecorder()

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", rf.ID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	handler.ResumeRefund(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d: %s", http.StatusConflict, rec.Code, rec.Body.String())
	}
}

func TestRefundController_ResumeRefund_Success(t *testing.T) {
	d := newHandlerDeps()
	detail := testutil.NewTestSaleItem(2, 15_00)
	d.saleRepo.AddItem(detail)
	d.inventory.ProductStock[detail.ProductID] = 5

	rf := testutil.NewPartiallyFailedRefund(detail, 30_00, refund.MethodCash, 2, "stock service down")
	if err := d.refundRepo.Create(context.Background(), rf); err != nil {
		t.Fatalf("seed refund: %v", err)
	}

	handler := d.controller()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/refunds/"+rf.ID.String()+"/resume", nil)
	rec := httptest.NewRecorder()

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", rf.ID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	handler.ResumeRefund(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp RefundResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Status != string(refund.StatusCompleted) {
		t.Errorf("expected status completed, got %s", resp.Status)
	}
}
