package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/retailops/refunds/internal/domain/customer"
	domainErrors "github.com/retailops/refunds/internal/domain/errors"
	"github.com/retailops/refunds/internal/domain/outbox"
	"github.com/retailops/refunds/internal/domain/refund"
	"github.com/retailops/refunds/internal/domain/sale"
	"github.com/google/uuid"
)

// --- Sale Item Repository Mock ---

// MockSaleItemRepository is a mock implementation of sale.Repository. Its
// MarkItemRefunded keeps the conditional-update semantics of the real
// store: the first marking wins, later ones get ErrAlreadyRefunded.
type MockSaleItemRepository struct {
	mu    sync.Mutex
	items map[uuid.UUID]*sale.ItemDetail

	GetItemDetailFunc    func(ctx context.Context, itemID uuid.UUID) (*sale.ItemDetail, error)
	MarkItemRefundedFunc func(ctx context.Context, itemID uuid.UUID, amountCents int64, at time.Time) error
}

func NewMockSaleItemRepository() *MockSaleItemRepository {
	return &MockSaleItemRepository{items: make(map[uuid.UUID]*sale.ItemDetail)}
}

// AddItem pre-populates the mock with a sale item.
func (m *MockSaleItemRepository) AddItem(detail *sale.ItemDetail) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[detail.ID] = detail
}

func (m *MockSaleItemRepository) GetItemDetail(ctx context.Context, itemID uuid.UUID) (*sale.ItemDetail, error) {
	if m.GetItemDetailFunc != nil {
		return m.GetItemDetailFunc(ctx, itemID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	detail, ok := m.items[itemID]
	if !ok {
		return nil, domainErrors.ErrSaleItemNotFound
	}
	cp := *detail
	return &cp, nil
}

func (m *MockSaleItemRepository) MarkItemRefunded(ctx context.Context, itemID uuid.UUID, amountCents int64, at time.Time) error {
	if m.MarkItemRefundedFunc != nil {
		return m.MarkItemRefundedFunc(ctx, itemID, amountCents, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	detail, ok := m.items[itemID]
	if !ok {
		return domainErrors.ErrSaleItemNotFound
	}
	if detail.Refunded {
		return domainErrors.ErrAlreadyRefunded
	}
	detail.Refunded = true
	detail.RefundAmountCents = &amountCents
	detail.RefundDate = &at
	return nil
}

// GetItem returns the stored item (test helper, no context needed).
func (m *MockSaleItemRepository) GetItem(id uuid.UUID) *sale.ItemDetail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id]
}

// --- Refund Repository Mock ---

// MockRefundRepository is a mock implementation of refund.Repository.
type MockRefundRepository struct {
	mu      sync.Mutex
	refunds map[uuid.UUID]*refund.Refund
	items   map[uuid.UUID][]*refund.Item

	CreateFunc              func(ctx context.Context, r *refund.Refund) error
	CreateItemFunc          func(ctx context.Context, item *refund.Item) error
	GetByIDFunc             func(ctx context.Context, id uuid.UUID) (*refund.Refund, error)
	GetItemsFunc            func(ctx context.Context, refundID uuid.UUID) ([]*refund.Item, error)
	SetCursorFunc           func(ctx context.Context, id uuid.UUID, step int) error
	MarkCompletedFunc       func(ctx context.Context, id uuid.UUID) error
	MarkPartiallyFailedFunc func(ctx context.Context, id uuid.UUID, cause string) error
	ListFunc                func(ctx context.Context, filter refund.ListFilter) ([]*refund.Refund, error)
	ListPartiallyFailedFunc func(ctx context.Context, limit int) ([]*refund.Refund, error)
	StatsFunc               func(ctx context.Context, filter refund.StatsFilter) (*refund.Stats, error)
}

func NewMockRefundRepository() *MockRefundRepository {
	return &MockRefundRepository{
		refunds: make(map[uuid.UUID]*refund.Refund),
		items:   make(map[uuid.UUID][]*refund.Item),
	}
}

func (m *MockRefundRepository) Create(ctx context.Context, r *refund.Refund) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.refunds[r.ID] = &cp
	return nil
}

func (m *MockRefundRepository) CreateItem(ctx context.Context, item *refund.Item) error {
	if m.CreateItemFunc != nil {
		return m.CreateItemFunc(ctx, item)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.RefundID] = append(m.items[item.RefundID], item)
	return nil
}

func (m *MockRefundRepository) GetByID(ctx context.Context, id uuid.UUID) (*refund.Refund, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.refunds[id]
	if !ok {
		return nil, domainErrors.ErrRefundNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MockRefundRepository) GetItems(ctx context.Context, refundID uuid.UUID) ([]*refund.Item, error) {
	if m.GetItemsFunc != nil {
		return m.GetItemsFunc(ctx, refundID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[refundID], nil
}

func (m *MockRefundRepository) SetCursor(ctx context.Context, id uuid.UUID, step int) error {
	if m.SetCursorFunc != nil {
		return m.SetCursorFunc(ctx, id, step)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.refunds[id]
	if !ok {
		return domainErrors.ErrRefundNotFound
	}
	if step > r.LastCompletedStep {
		r.LastCompletedStep = step
	}
	return nil
}

func (m *MockRefundRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	if m.MarkCompletedFunc != nil {
		return m.MarkCompletedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.refunds[id]
	if !ok {
		return domainErrors.ErrRefundNotFound
	}
	r.Status = refund.StatusCompleted
	r.LastError = nil
	return nil
}

func (m *MockRefundRepository) MarkPartiallyFailed(ctx context.Context, id uuid.UUID, cause string) error {
	if m.MarkPartiallyFailedFunc != nil {
		return m.MarkPartiallyFailedFunc(ctx, id, cause)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.refunds[id]
	if !ok {
		return domainErrors.ErrRefundNotFound
	}
	r.Status = refund.StatusPartiallyFailed
	r.LastError = &cause
	return nil
}

func (m *MockRefundRepository) List(ctx context.Context, filter refund.ListFilter) ([]*refund.Refund, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*refund.Refund, 0, len(m.refunds))
	for _, r := range m.refunds {
		cp := *r
		result = append(result, &cp)
	}
	return result, nil
}

func (m *MockRefundRepository) ListPartiallyFailed(ctx context.Context, limit int) ([]*refund.Refund, error) {
	if m.ListPartiallyFailedFunc != nil {
		return m.ListPartiallyFailedFunc(ctx, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*refund.Refund
	for _, r := range m.refunds {
		if r.Status == refund.StatusPartiallyFailed {
			cp := *r
			result = append(result, &cp)
		}
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (m *MockRefundRepository) Stats(ctx context.Context, filter refund.StatsFilter) (*refund.Stats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &refund.Stats{}
	byMethod := make(map[refund.Method]*refund.MethodStats)
	for _, r := range m.refunds {
		if r.Status != refund.StatusCompleted {
			continue
		}
		stats.Count++
		stats.AmountCents += r.AmountCents
		ms, ok := byMethod[r.Method]
		if !ok {
			ms = &refund.MethodStats{Method: r.Method}
			byMethod[r.Method] = ms
		}
		ms.Count++
		ms.AmountCents += r.AmountCents
	}
	for _, ms := range byMethod {
		stats.ByMethod = append(stats.ByMethod, *ms)
	}
	return stats, nil
}

// GetRefundByID returns the stored refund (test helper, no context needed).
func (m *MockRefundRepository) GetRefundByID(id uuid.UUID) *refund.Refund {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refunds[id]
}

// Refunds returns every stored refund (test helper).
func (m *MockRefundRepository) Refunds() []*refund.Refund {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*refund.Refund, 0, len(m.refunds))
	for _, r := range m.refunds {
		out = append(out, r)
	}
	return out
}

// --- Inventory Repository Mock ---

// MockInventoryRepository is a mock implementation of inventory.Repository.
// It tracks relative stock deltas per product, variant and branch row.
type MockInventoryRepository struct {
	mu            sync.Mutex
	ProductStock  map[uuid.UUID]int
	VariantStock  map[uuid.UUID]int
	BranchStock   map[string]int
	TrackBranches bool

	AddProductStockFunc func(ctx context.Context, productID uuid.UUID, quantity int) error
	AddVariantStockFunc func(ctx context.Context, variantID uuid.UUID, quantity int) error
	AddBranchStockFunc  func(ctx context.Context, branchID, productID uuid.UUID, variantID *uuid.UUID, quantity int) (bool, error)
}

func NewMockInventoryRepository() *MockInventoryRepository {
	return &MockInventoryRepository{
		ProductStock:  make(map[uuid.UUID]int),
		VariantStock:  make(map[uuid.UUID]int),
		BranchStock:   make(map[string]int),
		TrackBranches: true,
	}
}

func (m *MockInventoryRepository) AddProductStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	if m.AddProductStockFunc != nil {
		return m.AddProductStockFunc(ctx, productID, quantity)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProductStock[productID] += quantity
	return nil
}

func (m *MockInventoryRepository) AddVariantStock(ctx context.Context, variantID uuid.UUID, quantity int) error {
	if m.AddVariantStockFunc != nil {
		return m.AddVariantStockFunc(ctx, variantID, quantity)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.VariantStock[variantID] += quantity
	return nil
}

func (m *MockInventoryRepository) AddBranchStock(ctx context.Context, branchID, productID uuid.UUID, variantID *uuid.UUID, quantity int) (bool, error) {
	if m.AddBranchStockFunc != nil {
		return m.AddBranchStockFunc(ctx, branchID, productID, variantID, quantity)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.TrackBranches {
		return false, nil
	}
	key := branchID.String() + "/" + productID.String()
	if variantID != nil {
		key += "/" + variantID.String()
	}
	m.BranchStock[key] += quantity
	return true, nil
}

// --- Customer Repository Mock ---

// MockCustomerRepository is a mock implementation of customer.Repository.
type MockCustomerRepository struct {
	mu        sync.Mutex
	customers map[uuid.UUID]*customer.Customer
	ledger    map[uuid.UUID][]*customer.LedgerEntry

	GetByIDFunc        func(ctx context.Context, id uuid.UUID) (*customer.Customer, error)
	CreditFunc         func(ctx context.Context, customerID uuid.UUID, amountCents int64) (int64, error)
	AddLedgerEntryFunc func(ctx context.Context, entry *customer.LedgerEntry) error
	GetLedgerFunc      func(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*customer.LedgerEntry, error)
}

func NewMockCustomerRepository() *MockCustomerRepository {
	return &MockCustomerRepository{
		customers: make(map[uuid.UUID]*customer.Customer),
		ledger:    make(map[uuid.UUID][]*customer.LedgerEntry),
	}
}

// AddCustomer pre-populates the mock with a customer.
func (m *MockCustomerRepository) AddCustomer(c *customer.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.ID] = c
}

func (m *MockCustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, domainErrors.ErrCustomerNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockCustomerRepository) Credit(ctx context.Context, customerID uuid.UUID, amountCents int64) (int64, error) {
	if m.CreditFunc != nil {
		return m.CreditFunc(ctx, customerID, amountCents)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[customerID]
	if !ok {
		return 0, domainErrors.ErrCustomerNotFound
	}
	c.BalanceCents += amountCents
	return c.BalanceCents, nil
}

func (m *MockCustomerRepository) AddLedgerEntry(ctx context.Context, entry *customer.LedgerEntry) error {
	if m.AddLedgerEntryFunc != nil {
		return m.AddLedgerEntryFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger[entry.CustomerID] = append(m.ledger[entry.CustomerID], entry)
	return nil
}

func (m *MockCustomerRepository) GetLedger(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*customer.LedgerEntry, error) {
	if m.GetLedgerFunc != nil {
		return m.GetLedgerFunc(ctx, customerID, limit, offset)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.ledger[customerID]
	if offset >= len(entries) {
		return nil, nil
	}
	end := len(entries)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return entries[offset:end], nil
}

// GetCustomerByID returns the stored customer (test helper, no context needed).
func (m *MockCustomerRepository) GetCustomerByID(id uuid.UUID) *customer.Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.customers[id]
}

// LedgerEntries returns the stored ledger entries for a customer.
func (m *MockCustomerRepository) LedgerEntries(customerID uuid.UUID) []*customer.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger[customerID]
}

// --- Transaction Manager Mock ---

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// --- Atomic Procedure Mock ---

// MockAtomicProcedure is a mock of the atomic refund procedure.
type MockAtomicProcedure struct {
	ExecuteFunc func(ctx context.Context, rf *refund.Refund, quantity int) error
	Calls       int
}

func (m *MockAtomicProcedure) Execute(ctx context.Context, rf *refund.Refund, quantity int) error {
	m.Calls++
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, rf, quantity)
	}
	return nil
}

// --- Item Locker Mock ---

// MockItemLocker is a mock per-item lock.
type MockItemLocker struct {
	mu   sync.Mutex
	held map[uuid.UUID]bool

	AcquireItemLockFunc func(ctx context.Context, saleItemID uuid.UUID, ttl time.Duration) (func(context.Context), bool, error)
}

func NewMockItemLocker() *MockItemLocker {
	return &MockItemLocker{held: make(map[uuid.UUID]bool)}
}

func (m *MockItemLocker) AcquireItemLock(ctx context.Context, saleItemID uuid.UUID, ttl time.Duration) (func(context.Context), bool, error) {
	if m.AcquireItemLockFunc != nil {
		return m.AcquireItemLockFunc(ctx, saleItemID, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[saleItemID] {
		return func(context.Context) {}, false, nil
	}
	m.held[saleItemID] = true
	return func(context.Context) {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.held, saleItemID)
	}, true, nil
}

// --- Outbox Repository Mock ---

// MockOutboxRepository is a mock implementation of outbox.Repository.
type MockOutboxRepository struct {
	mu      sync.Mutex
	Entries []*outbox.Entry

	InsertFunc        func(ctx context.Context, entry *outbox.Entry) error
	GetPendingFunc    func(ctx context.Context, limit int) ([]*outbox.Entry, error)
	MarkPublishedFunc func(ctx context.Context, id uuid.UUID) error
	MarkFailedFunc    func(ctx context.Context, id uuid.UUID) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

func (m *MockOutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, entry)
	return nil
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if m.GetPendingFunc != nil {
		return m.GetPendingFunc(ctx, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []*outbox.Entry
	for _, e := range m.Entries {
		if e.Status == outbox.StatusPending {
			pending = append(pending, e)
		}
		if limit > 0 && len(pending) >= limit {
			break
		}
	}
	return pending, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Entries {
		if e.ID == id {
			e.Status = outbox.StatusPublished
		}
	}
	return nil
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Entries {
		if e.ID == id {
			e.RetryCount++
			if e.RetryCount >= e.MaxRetries {
				e.Status = outbox.StatusFailed
			}
		}
	}
	return nil
}
