package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Owner-checked delete so a lock that expired and was re-acquired by
// another request is never released by the original holder.
var releaseLockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// ItemLockManager hands out short-lived advisory locks, one per sale item,
// so concurrent refund requests for the same item fail fast instead of
// racing to the database guard.
type ItemLockManager struct {
	client *redis.Client
}

func NewItemLockManager(client *redis.Client) *ItemLockManager {
	return &ItemLockManager{client: client}
}

// AcquireItemLock takes the advisory lock for a sale item via SET NX with
// a TTL. The returned release func is safe to call even when acquisition
// failed, and only deletes the key while this caller still owns it.
func (m *ItemLockManager) AcquireItemLock(ctx context.Context, saleItemID uuid.UUID, ttl time.Duration) (func(context.Context), bool, error) {
	key := itemLockKey(saleItemID)
	token := uuid.New().String()

	acquired, err := m.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return func(context.Context) {}, false, fmt.Errorf("acquire item lock: %w", err)
	}
	if !acquired {
		return func(context.Context) {}, false, nil
	}

	release := func(ctx context.Context) {
		// Best effort; an expired lock releases itself.
		_ = releaseLockScript.Run(ctx, m.client, []string{key}, token).Err()
	}
	return release, true, nil
}

func itemLockKey(saleItemID uuid.UUID) string {
	return "lock:refund:item:" + saleItemID.String()
}
