package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// BalanceCache keeps per-tenant account balance projections in Redis. The
// posting engine invalidates the whole tenant hash on every commit, so a
// stale read can only serve a balance that was valid at some earlier commit.
type BalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBalanceCache constructs the cache.
func NewBalanceCache(client *redis.Client, ttl time.Duration) *BalanceCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &BalanceCache{client: client, ttl: ttl}
}

func balanceKey(tenantID int64) string {
	return fmt.Sprintf("ledger:balances:%d", tenantID)
}

// Get returns the cached balance and whether it was present.
func (c *BalanceCache) Get(ctx context.Context, tenantID, accountID int64) (int64, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}
	raw, err := c.client.HGet(ctx, balanceKey(tenantID), strconv.FormatInt(accountID, 10)).Result()
	if err != nil {
		return 0, false
	}
	cents, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return cents, true
}

// Set stores the balance; failures are ignored, the cache is best effort.
func (c *BalanceCache) Set(ctx context.Context, tenantID, accountID, cents int64) {
	if c == nil || c.client == nil {
		return
	}
	key := balanceKey(tenantID)
	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, strconv.FormatInt(accountID, 10), strconv.FormatInt(cents, 10))
	pipe.Expire(ctx, key, c.ttl)
	_, _ = pipe.Exec(ctx)
}

// Invalidate drops every cached balance for the tenant.
func (c *BalanceCache) Invalidate(ctx context.Context, tenantID int64) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, balanceKey(tenantID)).Err()
}
