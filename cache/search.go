package cache

import (
	"context"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-commerce/metrics"
	"github.com/saiset-co/sai-commerce/types"
	"github.com/saiset-co/sai-commerce/utils"
)

// SearchCache caches query-result pages keyed by the serialized query tuple
// and suggestion lists under their own namespace. Invalidation is coarse:
// any product-affecting write clears both namespaces wholesale. Search
// results come from full-text style queries over arbitrary filter
// combinations, so precise invalidation would mean indexing every cached
// query's predicate against every write; the 5 minute TTL bounds staleness
// either way.
type SearchCache struct {
	store   types.CacheStore
	logger  types.Logger
	metrics *metrics.Metrics
}

func NewSearchCache(store types.CacheStore, logger types.Logger, m *metrics.Metrics) *SearchCache {
	return &SearchCache{
		store:   store,
		logger:  logger,
		metrics: m,
	}
}

func (c *SearchCache) GetPage(ctx context.Context, query types.SearchQuery) (*types.SearchResultPage, bool) {
	key := SearchKey(query)

	raw, found := c.store.Get(ctx, key)
	if !found {
		c.metrics.CacheMiss("search")
		return nil, false
	}

	var page types.SearchResultPage
	if err := utils.Unmarshal(raw, &page); err != nil {
		c.logger.Error("failed to unmarshal cached search page", zap.String("key", key), zap.Error(err))
		c.store.Delete(ctx, key)
		c.metrics.CacheMiss("search")
		return nil, false
	}

	c.metrics.CacheHit("search")
	return &page, true
}

func (c *SearchCache) PutPage(ctx context.Context, query types.SearchQuery, page *types.SearchResultPage) {
	if page == nil {
		return
	}

	raw, err := utils.Marshal(page)
	if err != nil {
		c.logger.Error("failed to marshal search page", zap.Error(err))
		return
	}

	c.store.Set(ctx, SearchKey(query), raw, SearchTTL)
}

func (c *SearchCache) GetSuggestions(ctx context.Context, prefix string) ([]string, bool) {
	raw, found := c.store.Get(ctx, SuggestionKey(prefix))
	if !found {
		c.metrics.CacheMiss("suggestions")
		return nil, false
	}

	var suggestions []string
	if err := utils.Unmarshal(raw, &suggestions); err != nil {
		c.logger.Error("failed to unmarshal cached suggestions", zap.String("prefix", prefix), zap.Error(err))
		c.store.Delete(ctx, SuggestionKey(prefix))
		c.metrics.CacheMiss("suggestions")
		return nil, false
	}

	c.metrics.CacheHit("suggestions")
	return suggestions, true
}

func (c *SearchCache) PutSuggestions(ctx context.Context, prefix string, suggestions []string) {
	raw, err := utils.Marshal(suggestions)
	if err != nil {
		c.logger.Error("failed to marshal suggestions", zap.Error(err))
		return
	}

	c.store.Set(ctx, SuggestionKey(prefix), raw, SearchTTL)
}

// InvalidateAll clears the search and suggestions namespaces and returns
// the number of entries removed.
func (c *SearchCache) InvalidateAll(ctx context.Context) int {
	cleared := c.store.DeleteByPrefix(ctx, SearchPrefix)
	cleared += c.store.DeleteByPrefix(ctx, SuggestionsPrefix)
	return cleared
}
