package cache

import (
	"context"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-commerce/metrics"
	"github.com/saiset-co/sai-commerce/types"
	"github.com/saiset-co/sai-commerce/utils"
)

// CartCache caches a user's formatted cart under cart:{userId}. Every cart
// mutation invalidates it, as does any error during a mutation: on
// uncertainty the cache is dropped rather than risk serving a stale cart.
type CartCache struct {
	store   types.CacheStore
	logger  types.Logger
	metrics *metrics.Metrics
}

func NewCartCache(store types.CacheStore, logger types.Logger, m *metrics.Metrics) *CartCache {
	return &CartCache{
		store:   store,
		logger:  logger,
		metrics: m,
	}
}

func (c *CartCache) Get(ctx context.Context, userID string) (*types.CartSnapshot, bool) {
	raw, found := c.store.Get(ctx, CartKey(userID))
	if !found {
		c.metrics.CacheMiss("cart")
		return nil, false
	}

	var snapshot types.CartSnapshot
	if err := utils.Unmarshal(raw, &snapshot); err != nil {
		c.logger.Error("failed to unmarshal cached cart",
			zap.String("user_id", userID),
			zap.Error(err))
		c.store.Delete(ctx, CartKey(userID))
		c.metrics.CacheMiss("cart")
		return nil, false
	}

	c.metrics.CacheHit("cart")
	return &snapshot, true
}

func (c *CartCache) Put(ctx context.Context, userID string, cart *types.CartSnapshot) {
	if userID == "" || cart == nil {
		return
	}

	raw, err := utils.Marshal(cart)
	if err != nil {
		c.logger.Error("failed to marshal cart snapshot",
			zap.String("user_id", userID),
			zap.Error(err))
		return
	}

	c.store.Set(ctx, CartKey(userID), raw, CartTTL)
}

func (c *CartCache) Invalidate(ctx context.Context, userID string) bool {
	if userID == "" {
		return true
	}
	return c.store.Delete(ctx, CartKey(userID))
}
