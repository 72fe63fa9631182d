package postgres

import (
	"context"
	"fmt"

	"github.com/retailops/refunds/internal/domain/customer"
	domainErrors "github.com/retailops/refunds/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CustomerRepository implements customer.Repository using PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository creates a new CustomerRepository.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

func (r *CustomerRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// GetByID retrieves a customer by ID.
func (r *CustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error) {
	c := &customer.Customer{}
	var balanceStr string
	err := r.db(ctx).QueryRow(ctx,
		`SELECT id, name, account_balance, created_at, updated_at FROM customers WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &balanceStr, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	if c.BalanceCents, err = numericStringToCents(balanceStr); err != nil {
		return nil, fmt.Errorf("parse customer balance: %w", err)
	}
	return c, nil
}

// Credit atomically increments the customer balance and returns the
// balance after the credit.
func (r *CustomerRepository) Credit(ctx context.Context, id uuid.UUID, amountCents int64) (int64, error) {
	var balanceStr string
	err := r.db(ctx).QueryRow(ctx,
		`UPDATE customers SET account_balance = account_balance + $1, updated_at = NOW()
		 WHERE id = $2 RETURNING account_balance`,
		centsToNumericString(amountCents), id,
	).Scan(&balanceStr)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, domainErrors.ErrCustomerNotFound
		}
		return 0, fmt.Errorf("credit customer: %w", err)
	}
	balanceAfter, err := numericStringToCents(balanceStr)
	if err != nil {
		return 0, fmt.Errorf("parse balance after credit: %w", err)
	}
	return balanceAfter, nil
}

// AddLedgerEntry appends an entry to the customer ledger.
func (r *CustomerRepository) AddLedgerEntry(ctx context.Context, entry *customer.LedgerEntry) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO customer_ledger (id, customer_id, refund_id, amount, balance_after, reason, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		entry.ID, entry.CustomerID, entry.RefundID,
		centsToNumericString(entry.AmountCents), centsToNumericString(entry.BalanceAfterCents),
		entry.Reason, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// GetLedger lists ledger entries for a customer, newest first.
func (r *CustomerRepository) GetLedger(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*customer.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, customer_id, refund_id, amount, balance_after, reason, created_at
		 FROM customer_ledger WHERE customer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		customerID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*customer.LedgerEntry
	for rows.Next() {
		e := &customer.LedgerEntry{}
		var amountStr, balanceStr string
		if err := rows.Scan(&e.ID, &e.CustomerID, &e.RefundID, &amountStr, &balanceStr, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		if e.AmountCents, err = numericStringToCents(amountStr); err != nil {
			return nil, fmt.Errorf("parse ledger amount: %w", err)
		}
		if e.BalanceAfterCents, err = numericStringToCents(balanceStr); err != nil {
			return nil, fmt.Errorf("parse ledger balance: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
