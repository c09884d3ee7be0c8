package accounts

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/meridianfin/ledgermirror/pkg/db/models"
	"github.com/meridianfin/ledgermirror/pkg/redis"
)

const (
	cacheScope      = "account"
	defaultCacheTTL = 10 * time.Minute
)

// Cache is a read-through cache in front of the registry. Accounts are
// read-mostly, so cached reads carry the hot path while writes invalidate.
type Cache struct {
	store redis.CacheStore
	ttl   time.Duration
}

// NewCache builds an account cache with the provided TTL (default 10m).
func NewCache(store redis.CacheStore, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{store: store, ttl: ttl}
}

// Get returns the cached account or nil on a miss. Cache failures degrade to
// a miss rather than failing the read.
func (c *Cache) Get(ctx context.Context, id uuid.UUID) *models.Account {
	if c == nil || c.store == nil {
		return nil
	}
	raw, err := c.store.Get(ctx, c.store.CacheKey(cacheScope, id.String()))
	if err != nil {
		return nil
	}
	var account models.Account
	if err := json.Unmarshal([]byte(raw), &account); err != nil {
		return nil
	}
	return &account
}

// Put stores the account for the configured TTL.
func (c *Cache) Put(ctx context.Context, account *models.Account) {
	if c == nil || c.store == nil || account == nil {
		return
	}
	raw, err := json.Marshal(account)
	if err != nil {
		return
	}
	_ = c.store.Set(ctx, c.store.CacheKey(cacheScope, account.ID.String()), string(raw), c.ttl)
}

// Invalidate drops the cached account.
func (c *Cache) Invalidate(ctx context.Context, id uuid.UUID) {
	if c == nil || c.store == nil {
		return
	}
	_ = c.store.Del(ctx, c.store.CacheKey(cacheScope, id.String()))
}
