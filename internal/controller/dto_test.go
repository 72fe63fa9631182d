package controller

import (
	"testing"

	"github.com/retailops/refunds/internal/domain/refund"
	"github.com/retailops/refunds/internal/testutil"
	"github.com/google/uuid"
)

func TestFloatToCents(t *testing.T) {
	tests := []struct {
		name  string
		input float64
		want  int64
	}{
		{"whole amount", 50.00, 5000},
		{"with cents", 123.45, 12345},
		{"smallest unit", 0.01, 1},
		{"binary float drift", 19.99, 1999},
		{"zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := floatToCents(tt.input); got != tt.want {
				t.Errorf("floatToCents(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCentsToFloat(t *testing.T) {
	tests := []struct {
		cents int64
		want  float64
	}{
		{5000, 50.00},
		{12345, 123.45},
		{1, 0.01},
		{0, 0},
	}

	for _, tt := range tests {
		if got := centsToFloat(tt.cents); got != tt.want {
			t.Errorf("centsToFloat(%d) = %v, want %v", tt.cents, got, tt.want)
		}
	}
}

func TestFromRefund(t *testing.T) {
	detail := testutil.NewTestSaleItem(2, 25_00)
	// Account refunds need a customer to credit.
	detail.CustomerID = testutil.UUIDPtr(uuid.New())
	rf := testutil.NewTestRefund(detail, 50_00, refund.MethodAccount)

	resp := FromRefund(rf)

	if resp.ID != rf.ID.String() {
		t.Errorf("expected id %s, got %s", rf.ID, resp.ID)
	}
	if resp.Amount != 50.00 {
		t.Errorf("expected amount 50.00, got %.2f", resp.Amount)
	}
	if resp.Method != "account" {
		t.Errorf("expected method account, got %s", resp.Method)
	}
	if resp.Status != string(refund.StatusPending) {
		t.Errorf("expected status pending, got %s", resp.Status)
	}
	if resp.BalanceAfter != nil {
		t.Error("balance_after should be unset by default")
	}
}

func TestFromStats(t *testing.T) {
	stats := &refund.Stats{
		Count:       3,
		AmountCents: 75_50,
		ByMethod: []refund.MethodStats{
			{Method: refund.MethodCash, Count: 2, AmountCents: 50_00},
			{Method: refund.MethodCard, Count: 1, AmountCents: 25_50},
		},
	}

	resp := FromStats(stats)

	if resp.Count != 3 {
		t.Errorf("expected count 3, got %d", resp.Count)
	}
	if resp.Amount != 75.50 {
		t.Errorf("expected amount 75.50, got %.2f", resp.Amount)
	}
	if len(resp.ByMethod) != 2 {
		t.Fatalf("expected 2 method entries, got %d", len(resp.ByMethod))
	}
	if resp.ByMethod[0].Method != "cash" || resp.ByMethod[0].Amount != 50.00 {
		t.Errorf("unexpected first method entry: %+v", resp.ByMethod[0])
	}
}
