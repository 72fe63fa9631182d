package refund

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for refund persistence
type Repository interface {
	// Create inserts a new refund row.
	Create(ctx context.Context, r *Refund) error

	// CreateItem inserts a refund item row. The refund row must already
	// exist; referential integrity is maintained by write ordering.
	CreateItem(ctx context.Context, item *Item) error

	// GetByID retrieves a refund by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*Refund, error)

	// GetItems retrieves the items of a refund.
	GetItems(ctx context.Context, refundID uuid.UUID) ([]*Item, error)

	// SetCursor persists the saga completion cursor on the refund row.
	SetCursor(ctx context.Context, id uuid.UUID, step int) error

	// MarkCompleted sets status=completed.
	MarkCompleted(ctx context.Context, id uuid.UUID) error

	// MarkPartiallyFailed sets status=partially_failed with the failure cause.
	MarkPartiallyFailed(ctx context.Context, id uuid.UUID, cause string) error

	// List lists refunds with filters.
	List(ctx context.Context, filter ListFilter) ([]*Refund, error)

	// ListPartiallyFailed returns resumable refunds, oldest first.
	ListPartiallyFailed(ctx context.Context, limit int) ([]*Refund, error)

	// Stats aggregates refunds by method for a branch and time window.
	Stats(ctx context.Context, filter StatsFilter) (*Stats, error)
}

// ListFilter defines filters for listing refunds
type ListFilter struct {
	BranchID  *uuid.UUID
	Method    *Method
	Status    *Status
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

// StatsFilter scopes refund statistics.
type StatsFilter struct {
	BranchID *uuid.UUID
	From     *time.Time
	To       *time.Time
}

// Stats is an aggregate over a set of refunds.
type Stats struct {
	Count       int64
	AmountCents int64
	ByMethod    []MethodStats
}

// MethodStats is the per-method breakdown of refund statistics.
type MethodStats struct {
	Method      Method
	Count       int64
	AmountCents int64
}
