package cache

import (
	"context"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-commerce/metrics"
	"github.com/saiset-co/sai-commerce/types"
	"github.com/saiset-co/sai-commerce/utils"
)

// ProductCache caches single-product lookups under product:{id}. A hit is a
// plain data snapshot; staleness is bounded by the product TTL even when an
// invalidation edge is missed.
type ProductCache struct {
	store   types.CacheStore
	logger  types.Logger
	metrics *metrics.Metrics
}

func NewProductCache(store types.CacheStore, logger types.Logger, m *metrics.Metrics) *ProductCache {
	return &ProductCache{
		store:   store,
		logger:  logger,
		metrics: m,
	}
}

func (c *ProductCache) Get(ctx context.Context, productID string) (*types.ProductSnapshot, bool) {
	raw, found := c.store.Get(ctx, ProductKey(productID))
	if !found {
		c.metrics.CacheMiss("product")
		return nil, false
	}

	var snapshot types.ProductSnapshot
	if err := utils.Unmarshal(raw, &snapshot); err != nil {
		c.logger.Error("failed to unmarshal cached product",
			zap.String("product_id", productID),
			zap.Error(err))
		c.store.Delete(ctx, ProductKey(productID))
		c.metrics.CacheMiss("product")
		return nil, false
	}

	c.metrics.CacheHit("product")
	return &snapshot, true
}

func (c *ProductCache) Put(ctx context.Context, product *types.ProductSnapshot) {
	if product == nil || product.ID == "" {
		return
	}

	raw, err := utils.Marshal(product)
	if err != nil {
		c.logger.Error("failed to marshal product snapshot",
			zap.String("product_id", product.ID),
			zap.Error(err))
		return
	}

	c.store.Set(ctx, ProductKey(product.ID), raw, ProductTTL)
}

func (c *ProductCache) Invalidate(ctx context.Context, productID string) bool {
	if productID == "" {
		return true
	}
	return c.store.Delete(ctx, ProductKey(productID))
}
