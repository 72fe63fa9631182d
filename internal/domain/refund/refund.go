package refund

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/retailops/refunds/internal/domain/errors"
	"github.com/google/uuid"
)

// Method is how the refunded value is returned to the customer.
type Method string

const (
	MethodCash        Method = "cash"
	MethodCard        Method = "card"
	MethodAccount     Method = "account"
	MethodStoreCredit Method = "store_credit"
)

// ParseMethod validates and normalizes a refund method string.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case MethodCash:
		return MethodCash, nil
	case MethodCard:
		return MethodCard, nil
	case MethodAccount:
		return MethodAccount, nil
	case MethodStoreCredit:
		return MethodStoreCredit, nil
	default:
		return "", errors.ErrInvalidRefundMethod
	}
}

// Status represents the refund attempt's state.
type Status string

const (
	// StatusPending: the refund row exists but the saga has not finished.
	StatusPending Status = "pending"
	// StatusCompleted: all steps committed; terminal.
	StatusCompleted Status = "completed"
	// StatusPartiallyFailed: a saga step failed after the refund row was
	// created. Committed side effects remain; the reconciler may resume.
	StatusPartiallyFailed Status = "partially_failed"
)

// Refund represents one refund attempt for a sale item.
type Refund struct {
	ID          uuid.UUID
	Number      string
	SaleID      uuid.UUID
	SaleItemID  uuid.UUID
	CustomerID  *uuid.UUID
	AmountCents int64
	Method      Method
	Reason      string
	Status      Status
	ProcessedBy string
	BranchID    uuid.UUID

	// LastCompletedStep is the saga's persisted completion cursor: the number
	// of committing steps that have durably finished. A resumed attempt
	// starts after this step and never re-applies an increment.
	LastCompletedStep int
	LastError         *string

	CreatedAt time.Time
}

// Item is the line-level child of a Refund, one per refunded sale item.
type Item struct {
	ID             uuid.UUID
	RefundID       uuid.UUID
	SaleItemID     uuid.UUID
	ProductID      uuid.UUID
	VariantID      *uuid.UUID
	Quantity       int
	UnitPriceCents int64
	AmountCents    int64
	Reason         string
	CreatedAt      time.Time
}

// New creates a pending refund for a sale item.
func New(
	saleID uuid.UUID,
	saleItemID uuid.UUID,
	customerID *uuid.UUID,
	amountCents int64,
	method Method,
	reason string,
	processedBy string,
	branchID uuid.UUID,
) (*Refund, error) {
	if amountCents <= 0 {
		return nil, errors.NewValidationError("amount", "must be greater than 0")
	}
	if processedBy == "" {
		return nil, errors.NewValidationError("processed_by", "cannot be empty")
	}
	if _, err := ParseMethod(string(method)); err != nil {
		return nil, err
	}
	if method == MethodAccount && customerID == nil {
		return nil, errors.ErrCustomerRequired
	}

	return &Refund{
		ID:          uuid.New(),
		Number:      NewNumber(),
		SaleID:      saleID,
		SaleItemID:  saleItemID,
		CustomerID:  customerID,
		AmountCents: amountCents,
		Method:      method,
		Reason:      reason,
		Status:      StatusPending,
		ProcessedBy: processedBy,
		BranchID:    branchID,
		CreatedAt:   time.Now(),
	}, nil
}

// NewNumber generates a refund number: UTC timestamp plus a random suffix,
// enough entropy that concurrent creation does not collide.
func NewNumber() string {
	suffix := make([]byte, 3)
	rand.Read(suffix)
	return "RF-" + time.Now().UTC().Format("20060102150405") + "-" + strings.ToUpper(hex.EncodeToString(suffix))
}

// CanTransitionTo checks if the refund can transition to the given status.
func (r *Refund) CanTransitionTo(newStatus Status) bool {
	transitions := map[Status][]Status{
		StatusPending: {
			StatusCompleted,
			StatusPartiallyFailed,
		},
		StatusPartiallyFailed: {
			StatusCompleted, // successful resume
		},
		StatusCompleted: {}, // terminal
	}

	allowed, exists := transitions[r.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == newStatus {
			return true
		}
	}
	return false
}

// TransitionTo transitions the refund to a new status.
func (r *Refund) TransitionTo(newStatus Status) error {
	if !r.CanTransitionTo(newStatus) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition from "+string(r.Status)+" to "+string(newStatus),
			errors.ErrInvalidStateTransition,
		)
	}
	r.Status = newStatus
	return nil
}

// MarkCompleted transitions the refund to completed.
func (r *Refund) MarkCompleted() error {
	return r.TransitionTo(StatusCompleted)
}

// MarkPartiallyFailed records a saga step failure.
func (r *Refund) MarkPartiallyFailed(cause string) error {
	if err := r.TransitionTo(StatusPartiallyFailed); err != nil {
		return err
	}
	r.LastError = &cause
	return nil
}

// IsResumable reports whether the reconciler may resume this refund.
func (r *Refund) IsResumable() bool {
	return r.Status == StatusPartiallyFailed
}
