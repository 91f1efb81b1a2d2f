package commerce

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiset-co/sai-commerce/cache"
	"github.com/saiset-co/sai-commerce/types"
)

func TestGetProductCachesSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.products.CreateProduct(ctx, &types.ProductSnapshot{
		Name:     "Gaming Laptop",
		Category: "electronics",
		Brand:    "Acme",
		Price:    150000,
		Stock:    5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	snapshot, err := env.products.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, snapshot.ID)
	assert.Equal(t, "Gaming Laptop", snapshot.Name)
	assert.Equal(t, int64(150000), snapshot.Price)

	assert.True(t, env.store.Exists(ctx, cache.ProductKey(id)),
		"first read populates the cache entry")
}

func TestPriceUpdateVisibleImmediately(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.products.CreateProduct(ctx, &types.ProductSnapshot{
		Name:  "Laptop",
		Price: 1000,
		Stock: 5,
	})
	require.NoError(t, err)

	snapshot, err := env.products.GetProduct(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(1000), snapshot.Price)

	require.NoError(t, env.products.UpdateProduct(ctx, id, map[string]interface{}{"price": 1200}))

	snapshot, err = env.products.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), snapshot.Price,
		"update drops the cached entry so the next read sees the new price")
}

func TestGetProductUnknown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.products.GetProduct(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrProductNotFound)

	_, err = env.products.GetProduct(ctx, "")
	assert.ErrorIs(t, err, types.ErrProductNotFound)
}

func TestUpdateProductUnknown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.products.UpdateProduct(ctx, "missing", map[string]interface{}{"price": 1})
	assert.ErrorIs(t, err, types.ErrProductNotFound)
}

func TestDecrementStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.products.CreateProduct(ctx, &types.ProductSnapshot{Name: "Laptop", Stock: 3})
	require.NoError(t, err)

	require.NoError(t, env.products.DecrementStock(ctx, id, 2))

	err = env.products.DecrementStock(ctx, id, 2)
	assert.ErrorIs(t, err, types.ErrInsufficientStock)

	err = env.products.DecrementStock(ctx, "missing", 1)
	assert.ErrorIs(t, err, types.ErrProductNotFound)

	doc, err := env.records.FindByID(ctx, types.CollectionProducts, id)
	require.NoError(t, err)
	snapshot, err := productSnapshot(doc)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snapshot.Stock)
}

func TestCreateProductClearsSearchPages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	query := types.SearchQuery{Text: "laptop", Page: 1, Limit: 10}
	env.searchCache.PutPage(ctx, query, &types.SearchResultPage{TotalResults: 0})
	env.searchCache.PutSuggestions(ctx, "lap", []string{})

	_, err := env.products.CreateProduct(ctx, &types.ProductSnapshot{Name: "Laptop", Stock: 1})
	require.NoError(t, err)

	_, found := env.searchCache.GetPage(ctx, query)
	assert.False(t, found)
	_, found = env.searchCache.GetSuggestions(ctx, "lap")
	assert.False(t, found)
}

func TestDeleteProduct(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.products.CreateProduct(ctx, &types.ProductSnapshot{Name: "Laptop", Stock: 1})
	require.NoError(t, err)

	_, err = env.products.GetProduct(ctx, id)
	require.NoError(t, err)

	require.NoError(t, env.products.DeleteProduct(ctx, id))

	_, err = env.products.GetProduct(ctx, id)
	assert.ErrorIs(t, err, types.ErrProductNotFound)
	assert.False(t, env.store.Exists(ctx, cache.ProductKey(id)))
}
