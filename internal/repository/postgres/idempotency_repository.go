package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyEntry is a cached HTTP response keyed by the client's
// Idempotency-Key header.
type IdempotencyEntry struct {
	Key            string
	ResponseBody   string
	ResponseStatus int
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

type IdempotencyRepository struct {
	pool *pgxpool.Pool
}

func NewIdempotencyRepository(pool *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool}
}

func (r *IdempotencyRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

const getIdempotencyQuery = `
	SELECT key, response_body, response_status, created_at, expires_at
	FROM idempotency_keys
	WHERE key = $1 AND expires_at > NOW()`

// Get returns the cached entry for key. Absent and expired keys both come
// back as (nil, nil); the middleware treats them identically.
func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*IdempotencyEntry, error) {
	var e IdempotencyEntry
	err := r.db(ctx).QueryRow(ctx, getIdempotencyQuery, key).
		Scan(&e.Key, &e.ResponseBody, &e.ResponseStatus, &e.CreatedAt, &e.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	return &e, nil
}

const setIdempotencyQuery = `
	INSERT INTO idempotency_keys (key, response_body, response_status, created_at, expires_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (key) DO UPDATE
	SET response_body = EXCLUDED.response_body,
	    response_status = EXCLUDED.response_status`

// Set stores the response for key. A concurrent request that won the race
// simply has its response overwritten with an equivalent one.
func (r *IdempotencyRepository) Set(ctx context.Context, entry *IdempotencyEntry) error {
	_, err := r.db(ctx).Exec(ctx, setIdempotencyQuery,
		entry.Key, entry.ResponseBody, entry.ResponseStatus, entry.CreatedAt, entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("set idempotency key: %w", err)
	}
	return nil
}

// Cleanup deletes expired keys and reports how many went away. Called by
// the worker's purge loop.
func (r *IdempotencyRepository) Cleanup(ctx context.Context) (int64, error) {
	tag, err := r.db(ctx).Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
