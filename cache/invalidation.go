package cache

import (
	"context"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-commerce/metrics"
	"github.com/saiset-co/sai-commerce/types"
)

// Invalidator is the single dispatch point between record-store mutations
// and cache state. Mutating operations describe what changed; the decision
// table below maps the change kind to the keys and namespaces to clear.
// Dispatch is awaited for ordering but absorbs every failure: a failed
// invalidation is logged and widened to a coarse namespace clear, never
// surfaced as a request failure.
//
// Decision table:
//
//	product_created   -> search + suggestions namespaces
//	product_updated   -> product:{id}..., search + suggestions namespaces
//	stock_decremented -> product:{id}..., search + suggestions namespaces, cart:{userId}
//	cart_mutated      -> cart:{userId}, product:{id}... (price/stock re-read on next view)
type Invalidator struct {
	products *ProductCache
	carts    *CartCache
	search   *SearchCache
	logger   types.Logger
	metrics  *metrics.Metrics
}

func NewInvalidator(products *ProductCache, carts *CartCache, search *SearchCache, logger types.Logger, m *metrics.Metrics) *Invalidator {
	return &Invalidator{
		products: products,
		carts:    carts,
		search:   search,
		logger:   logger,
		metrics:  m,
	}
}

func (inv *Invalidator) Apply(ctx context.Context, change types.Change) {
	switch change.Kind {
	case types.ChangeProductCreated:
		inv.search.InvalidateAll(ctx)

	case types.ChangeProductUpdated:
		inv.dropProducts(ctx, change.ProductIDs)
		inv.search.InvalidateAll(ctx)

	case types.ChangeStockDecremented:
		inv.dropProducts(ctx, change.ProductIDs)
		inv.search.InvalidateAll(ctx)
		inv.dropCart(ctx, change.UserID)

	case types.ChangeCartMutated:
		inv.dropCart(ctx, change.UserID)
		if !inv.dropProducts(ctx, change.ProductIDs) {
			// A product entry we could not drop may still be reachable
			// through cached search pages; widen to the coarse clear.
			inv.search.InvalidateAll(ctx)
		}

	default:
		inv.logger.Warn("unknown change kind, widening to search namespace clear",
			zap.String("kind", string(change.Kind)))
		inv.search.InvalidateAll(ctx)
	}

	inv.metrics.Invalidation(string(change.Kind))
}

// dropProducts deletes the product entries for ids, retrying each failed
// targeted delete once. Returns false when at least one entry could not be
// removed.
func (inv *Invalidator) dropProducts(ctx context.Context, ids []string) bool {
	clean := true
	for _, id := range ids {
		if inv.products.Invalidate(ctx, id) {
			continue
		}
		if inv.products.Invalidate(ctx, id) {
			continue
		}
		inv.logger.Warn("failed to invalidate product entry",
			zap.String("product_id", id))
		clean = false
	}
	return clean
}

func (inv *Invalidator) dropCart(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	if !inv.carts.Invalidate(ctx, userID) && !inv.carts.Invalidate(ctx, userID) {
		inv.logger.Warn("failed to invalidate cart entry",
			zap.String("user_id", userID))
	}
}
