package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domainErrors "github.com/retailops/refunds/internal/domain/errors"
	"github.com/retailops/refunds/internal/domain/refund"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// allowedSortColumns is a whitelist of columns valid for ORDER BY.
var allowedSortColumns = map[string]string{
	"created_at": "created_at",
	"amount":     "amount",
	"status":     "status",
	"method":     "method",
}

// RefundRepository implements refund.Repository using PostgreSQL.
type RefundRepository struct {
	pool *pgxpool.Pool
}

// NewRefundRepository creates a new RefundRepository.
func NewRefundRepository(pool *pgxpool.Pool) *RefundRepository {
	return &RefundRepository{pool: pool}
}

func (r *RefundRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Create inserts a new refund row.
func (r *RefundRepository) Create(ctx context.Context, rf *refund.Refund) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO refunds
		 (id, refund_number, sale_id, sale_item_id, customer_id, amount, method, reason,
		  status, processed_by, branch_id, last_completed_step, last_error, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		rf.ID, rf.Number, rf.SaleID, rf.SaleItemID, rf.CustomerID,
		centsToNumericString(rf.AmountCents), string(rf.Method), rf.Reason,
		string(rf.Status), rf.ProcessedBy, rf.BranchID, rf.LastCompletedStep, rf.LastError, rf.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrDuplicateRefundNumber
		}
		return fmt.Errorf("insert refund: %w", err)
	}
	return nil
}

// CreateItem inserts a refund item row.
func (r *RefundRepository) CreateItem(ctx context.Context, item *refund.Item) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO refund_items
		 (id, refund_id, sale_item_id, product_id, variant_id, quantity, unit_price, amount, reason, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		item.ID, item.RefundID, item.SaleItemID, item.ProductID, item.VariantID,
		item.Quantity, centsToNumericString(item.UnitPriceCents),
		centsToNumericString(item.AmountCents), item.Reason, item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert refund item: %w", err)
	}
	return nil
}

const refundColumns = `id, refund_number, sale_id, sale_item_id, customer_id, amount, method, reason,
		        status, processed_by, branch_id, last_completed_step, last_error, created_at`

// GetByID retrieves a refund by its ID.
func (r *RefundRepository) GetByID(ctx context.Context, id uuid.UUID) (*refund.Refund, error) {
	return r.scanRefund(r.db(ctx).QueryRow(ctx,
		`SELECT `+refundColumns+` FROM refunds WHERE id = $1`, id))
}

// GetItems retrieves the items of a refund.
func (r *RefundRepository) GetItems(ctx context.Context, refundID uuid.UUID) ([]*refund.Item, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, refund_id, sale_item_id, product_id, variant_id, quantity, unit_price, amount, reason, created_at
		 FROM refund_items WHERE refund_id = $1 ORDER BY created_at ASC`, refundID,
	)
	if err != nil {
		return nil, fmt.Errorf("list refund items: %w", err)
	}
	defer rows.Close()

	var items []*refund.Item
	for rows.Next() {
		item := &refund.Item{}
		var unitPriceStr, amountStr string
		if err := rows.Scan(&item.ID, &item.RefundID, &item.SaleItemID, &item.ProductID, &item.VariantID,
			&item.Quantity, &unitPriceStr, &amountStr, &item.Reason, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan refund item: %w", err)
		}
		if item.UnitPriceCents, err = numericStringToCents(unitPriceStr); err != nil {
			return nil, fmt.Errorf("parse unit_price: %w", err)
		}
		if item.AmountCents, err = numericStringToCents(amountStr); err != nil {
			return nil, fmt.Errorf("parse amount: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SetCursor persists the saga completion cursor. The cursor only moves
// forward; a stale writer cannot rewind it.
func (r *RefundRepository) SetCursor(ctx context.Context, id uuid.UUID, step int) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE refunds SET last_completed_step = $1 WHERE id = $2 AND last_completed_step < $1`,
		step, id,
	)
	if err != nil {
		return fmt.Errorf("set refund cursor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the refund is gone or the cursor already advanced past step.
		var exists bool
		if scanErr := r.db(ctx).QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM refunds WHERE id = $1)`, id,
		).Scan(&exists); scanErr == nil && !exists {
			return domainErrors.ErrRefundNotFound
		}
	}
	return nil
}

// MarkCompleted sets status=completed and clears the failure cause.
func (r *RefundRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE refunds SET status = 'completed', last_error = NULL WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("mark refund completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrRefundNotFound
	}
	return nil
}

// MarkPartiallyFailed records a step failure for later reconciliation.
func (r *RefundRepository) MarkPartiallyFailed(ctx context.Context, id uuid.UUID, cause string) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE refunds SET status = 'partially_failed', last_error = $1 WHERE id = $2`, cause, id,
	)
	if err != nil {
		return fmt.Errorf("mark refund partially failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrRefundNotFound
	}
	return nil
}

// List lists refunds with optional filters.
func (r *RefundRepository) List(ctx context.Context, f refund.ListFilter) ([]*refund.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE 1=1`
	args := []any{}
	argIdx := 1

	if f.BranchID != nil {
		query += fmt.Sprintf(" AND branch_id = $%d", argIdx)
		args = append(args, *f.BranchID)
		argIdx++
	}
	if f.Method != nil {
		query += fmt.Sprintf(" AND method = $%d", argIdx)
		args = append(args, string(*f.Method))
		argIdx++
	}
	if f.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(*f.Status))
		argIdx++
	}
	if f.From != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *f.From)
		argIdx++
	}
	if f.To != nil {
		query += fmt.Sprintf(" AND created_at < $%d", argIdx)
		args = append(args, *f.To)
		argIdx++
	}

	// Strict whitelist for sort column
	sortBy := "created_at"
	if col, ok := allowedSortColumns[f.SortBy]; ok {
		sortBy = col
	}
	sortOrder := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		sortOrder = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortBy, sortOrder)

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list refunds: %w", err)
	}
	defer rows.Close()

	var refunds []*refund.Refund
	for rows.Next() {
		rf, err := r.scanRefund(rows)
		if err != nil {
			return nil, err
		}
		refunds = append(refunds, rf)
	}
	return refunds, rows.Err()
}

// ListPartiallyFailed returns resumable refunds, oldest first.
func (r *RefundRepository) ListPartiallyFailed(ctx context.Context, limit int) ([]*refund.Refund, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+refundColumns+` FROM refunds
		 WHERE status = 'partially_failed'
		 ORDER BY created_at ASC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list partially failed refunds: %w", err)
	}
	defer rows.Close()

	var refunds []*refund.Refund
	for rows.Next() {
		rf, err := r.scanRefund(rows)
		if err != nil {
			return nil, err
		}
		refunds = append(refunds, rf)
	}
	return refunds, rows.Err()
}

// Stats aggregates completed refunds by method.
func (r *RefundRepository) Stats(ctx context.Context, f refund.StatsFilter) (*refund.Stats, error) {
	query := `SELECT method, COUNT(*), COALESCE(SUM(amount), 0)
	          FROM refunds WHERE status = 'completed'`
	args := []any{}
	argIdx := 1

	if f.BranchID != nil {
		query += fmt.Sprintf(" AND branch_id = $%d", argIdx)
		args = append(args, *f.BranchID)
		argIdx++
	}
	if f.From != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *f.From)
		argIdx++
	}
	if f.To != nil {
		query += fmt.Sprintf(" AND created_at < $%d", argIdx)
		args = append(args, *f.To)
		argIdx++
	}
	query += " GROUP BY method ORDER BY method"

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("refund stats: %w", err)
	}
	defer rows.Close()

	stats := &refund.Stats{}
	for rows.Next() {
		var (
			method    string
			count     int64
			amountStr string
		)
		if err := rows.Scan(&method, &count, &amountStr); err != nil {
			return nil, fmt.Errorf("scan refund stats: %w", err)
		}
		cents, err := numericStringToCents(amountStr)
		if err != nil {
			return nil, fmt.Errorf("parse stats amount: %w", err)
		}
		stats.ByMethod = append(stats.ByMethod, refund.MethodStats{
			Method:      refund.Method(method),
			Count:       count,
			AmountCents: cents,
		})
		stats.Count += count
		stats.AmountCents += cents
	}
	return stats, rows.Err()
}

// scanRefund scans a refund from any source implementing the scanner interface.
func (r *RefundRepository) scanRefund(s scanner) (*refund.Refund, error) {
	rf := &refund.Refund{}
	var (
		amountStr string
		method    string
		status    string
	)
	err := s.Scan(
		&rf.ID, &rf.Number, &rf.SaleID, &rf.SaleItemID, &rf.CustomerID,
		&amountStr, &method, &rf.Reason, &status, &rf.ProcessedBy, &rf.BranchID,
		&rf.LastCompletedStep, &rf.LastError, &rf.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrRefundNotFound
		}
		return nil, fmt.Errorf("scan refund: %w", err)
	}

	if rf.AmountCents, err = numericStringToCents(amountStr); err != nil {
		return nil, fmt.Errorf("parse refund amount: %w", err)
	}
	rf.Method = refund.Method(method)
	rf.Status = refund.Status(status)
	return rf, nil
}
