package commerce

import (
	"testing"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-commerce/cache"
	"github.com/saiset-co/sai-commerce/database"
	"github.com/saiset-co/sai-commerce/logger"
	"github.com/saiset-co/sai-commerce/types"
)

type testEnv struct {
	store        *cache.MemoryStore
	records      *database.CloverStore
	productCache *cache.ProductCache
	searchCache  *cache.SearchCache
	cartCache    *cache.CartCache
	dedup        *cache.WebhookDeduplicator
	invalidator  *cache.Invalidator

	products *Products
	search   *Search
	carts    *Carts
	webhooks *Webhooks
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := logger.NewZapWrapper(zap.NewNop())

	records, err := database.NewCloverStore(&types.StoreConfig{Path: t.TempDir()}, log)
	if err != nil {
		t.Fatalf("failed to open record store: %v", err)
	}
	t.Cleanup(func() { records.Close() })

	store := cache.NewMemoryStore()
	productCache := cache.NewProductCache(store, log, nil)
	searchCache := cache.NewSearchCache(store, log, nil)
	cartCache := cache.NewCartCache(store, log, nil)
	dedup := cache.NewWebhookDeduplicator(store)
	invalidator := cache.NewInvalidator(productCache, cartCache, searchCache, log, nil)

	products := NewProducts(records, productCache, invalidator, log)

	return &testEnv{
		store:        store,
		records:      records,
		productCache: productCache,
		searchCache:  searchCache,
		cartCache:    cartCache,
		dedup:        dedup,
		invalidator:  invalidator,

		products: products,
		search:   NewSearch(records, searchCache, log),
		carts:    NewCarts(records, cartCache, invalidator, log),
		webhooks: NewWebhooks(records, products, dedup, invalidator, log, nil),
	}
}
