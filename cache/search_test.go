package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-commerce/logger"
	"github.com/saiset-co/sai-commerce/types"
)

func newSearchCache(store *MemoryStore) *SearchCache {
	return NewSearchCache(store, logger.NewZapWrapper(zap.NewNop()), nil)
}

func TestSearchCachePageRoundTrip(t *testing.T) {
	c := newSearchCache(NewMemoryStore())
	ctx := context.Background()

	query := types.SearchQuery{Text: "laptop", Page: 1, Limit: 10}
	page := &types.SearchResultPage{
		Products:     []types.ProductSnapshot{{ID: "p1", Name: "Laptop"}},
		TotalResults: 1,
	}

	c.PutPage(ctx, query, page)

	got, found := c.GetPage(ctx, query)
	require.True(t, found)
	assert.Equal(t, int64(1), got.TotalResults)
	require.Len(t, got.Products, 1)
	assert.Equal(t, "p1", got.Products[0].ID)

	_, found = c.GetPage(ctx, types.SearchQuery{Text: "laptop", Page: 2, Limit: 10})
	assert.False(t, found, "a different page is a different entry")
}

func TestSearchCacheSuggestions(t *testing.T) {
	c := newSearchCache(NewMemoryStore())
	ctx := context.Background()

	c.PutSuggestions(ctx, "lap", []string{"Laptop Air", "Laptop Pro"})

	suggestions, found := c.GetSuggestions(ctx, "lap")
	require.True(t, found)
	assert.Equal(t, []string{"Laptop Air", "Laptop Pro"}, suggestions)

	suggestions, found = c.GetSuggestions(ctx, " LAP ")
	require.True(t, found, "prefix is normalized before keying")
	assert.Len(t, suggestions, 2)
}

func TestSearchCacheInvalidateAll(t *testing.T) {
	store := NewMemoryStore()
	c := newSearchCache(store)
	ctx := context.Background()

	c.PutPage(ctx, types.SearchQuery{Text: "laptop", Page: 1, Limit: 10}, &types.SearchResultPage{})
	c.PutPage(ctx, types.SearchQuery{Text: "mouse", Page: 1, Limit: 10}, &types.SearchResultPage{})
	c.PutSuggestions(ctx, "lap", []string{"Laptop"})
	store.Set(ctx, "product:p1", []byte("{}"), ProductTTL)

	cleared := c.InvalidateAll(ctx)
	assert.Equal(t, 3, cleared)

	_, found := c.GetPage(ctx, types.SearchQuery{Text: "laptop", Page: 1, Limit: 10})
	assert.False(t, found)
	_, found = c.GetSuggestions(ctx, "lap")
	assert.False(t, found)
	assert.True(t, store.Exists(ctx, "product:p1"), "other namespaces are untouched")
}
