package commerce

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-commerce/cache"
	"github.com/saiset-co/sai-commerce/types"
)

type cartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

// keyedMutex serializes cart mutations per user. Entries are refcounted and
// dropped when the last holder releases, so the map stays bounded by the
// number of concurrently mutating users.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

func (km *keyedMutex) lock(key string) {
	km.mu.Lock()
	lock, exists := km.locks[key]
	if !exists {
		lock = &keyedLock{}
		km.locks[key] = lock
	}
	lock.refs++
	km.mu.Unlock()

	lock.mu.Lock()
}

func (km *keyedMutex) unlock(key string) {
	km.mu.Lock()
	lock := km.locks[key]
	lock.refs--
	if lock.refs == 0 {
		delete(km.locks, key)
	}
	km.mu.Unlock()

	lock.mu.Unlock()
}

// Carts owns cart reads and mutations. Mutations run under a per-user lock
// so concurrent read-modify-write cycles on the same cart cannot interleave,
// and any mutation error drops the cached cart before returning.
type Carts struct {
	records     types.RecordStore
	cache       *cache.CartCache
	invalidator *cache.Invalidator
	logger      types.Logger
	locks       *keyedMutex
}

func NewCarts(records types.RecordStore, cartCache *cache.CartCache, invalidator *cache.Invalidator, logger types.Logger) *Carts {
	return &Carts{
		records:     records,
		cache:       cartCache,
		invalidator: invalidator,
		logger:      logger,
		locks:       newKeyedMutex(),
	}
}

// GetCart returns the user's formatted cart, creating an empty cart record
// on first access. A cached snapshot is cross-checked against the record
// store: if the backing cart is gone the entry is dropped and rebuilt.
func (c *Carts) GetCart(ctx context.Context, userID string) (*types.CartSnapshot, error) {
	if userID == "" {
		return nil, types.ErrCartNotFound
	}

	if snapshot, found := c.cache.Get(ctx, userID); found {
		count, err := c.records.Count(ctx, types.CollectionCarts, map[string]interface{}{"user_id": userID})
		if err == nil && count > 0 {
			return snapshot, nil
		}
		c.cache.Invalidate(ctx, userID)
	}

	cartID, items, err := c.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	snapshot := c.formatCart(ctx, cartID, userID, items)
	c.cache.Put(ctx, userID, snapshot)
	return snapshot, nil
}

func (c *Carts) AddItem(ctx context.Context, userID, productID string, quantity int64) (snapshot *types.CartSnapshot, err error) {
	if quantity <= 0 {
		return nil, types.NewErrorf("quantity must be positive")
	}

	c.locks.lock(userID)
	defer c.locks.unlock(userID)
	defer c.dropOnError(ctx, userID, &err)

	cartID, items, err := c.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	existing := int64(0)
	for _, item := range items {
		if item.ProductID == productID {
			existing = item.Quantity
			break
		}
	}

	if err = c.checkStock(ctx, productID, existing+quantity); err != nil {
		return nil, err
	}

	updated := false
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity += quantity
			updated = true
			break
		}
	}
	if !updated {
		items = append(items, cartItem{ProductID: productID, Quantity: quantity})
	}

	return c.commit(ctx, cartID, userID, items, []string{productID})
}

func (c *Carts) UpdateItem(ctx context.Context, userID, productID string, quantity int64) (snapshot *types.CartSnapshot, err error) {
	if quantity <= 0 {
		return c.RemoveItem(ctx, userID, productID)
	}

	c.locks.lock(userID)
	defer c.locks.unlock(userID)
	defer c.dropOnError(ctx, userID, &err)

	cartID, items, err := c.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	index := -1
	for i := range items {
		if items[i].ProductID == productID {
			index = i
			break
		}
	}
	if index == -1 {
		return nil, types.ErrCartItemNotFound
	}

	if err = c.checkStock(ctx, productID, quantity); err != nil {
		return nil, err
	}

	items[index].Quantity = quantity
	return c.commit(ctx, cartID, userID, items, []string{productID})
}

func (c *Carts) RemoveItem(ctx context.Context, userID, productID string) (snapshot *types.CartSnapshot, err error) {
	c.locks.lock(userID)
	defer c.locks.unlock(userID)
	defer c.dropOnError(ctx, userID, &err)

	cartID, items, err := c.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	filtered := items[:0]
	removed := false
	for _, item := range items {
		if item.ProductID == productID {
			removed = true
			continue
		}
		filtered = append(filtered, item)
	}
	if !removed {
		return nil, types.ErrCartItemNotFound
	}

	return c.commit(ctx, cartID, userID, filtered, nil)
}

func (c *Carts) Clear(ctx context.Context, userID string) (snapshot *types.CartSnapshot, err error) {
	c.locks.lock(userID)
	defer c.locks.unlock(userID)
	defer c.dropOnError(ctx, userID, &err)

	cartID, _, err := c.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	return c.commit(ctx, cartID, userID, []cartItem{}, nil)
}

// commit persists the item list, dispatches the cart change, and caches the
// freshly formatted snapshot.
func (c *Carts) commit(ctx context.Context, cartID, userID string, items []cartItem, productIDs []string) (*types.CartSnapshot, error) {
	serialized := make([]interface{}, 0, len(items))
	for _, item := range items {
		serialized = append(serialized, map[string]interface{}{
			"product_id": item.ProductID,
			"quantity":   item.Quantity,
		})
	}

	if err := c.records.UpdateByID(ctx, types.CollectionCarts, cartID, map[string]interface{}{"items": serialized}); err != nil {
		return nil, types.WrapError(err, "failed to persist cart")
	}

	c.invalidator.Apply(ctx, types.Change{
		Kind:       types.ChangeCartMutated,
		ProductIDs: productIDs,
		UserID:     userID,
	})

	snapshot := c.formatCart(ctx, cartID, userID, items)
	c.cache.Put(ctx, userID, snapshot)
	return snapshot, nil
}

func (c *Carts) checkStock(ctx context.Context, productID string, wanted int64) error {
	doc, err := c.records.FindByID(ctx, types.CollectionProducts, productID)
	if err != nil {
		if types.IsError(err, types.ErrRecordNotFound) {
			return types.ErrProductNotFound
		}
		return types.WrapError(err, "failed to load product")
	}

	product, err := productSnapshot(doc)
	if err != nil {
		return types.WrapError(err, "failed to decode product record")
	}

	if product.Stock < wanted {
		return types.Errorf(types.ErrInsufficientStock, "product %s: %d available, %d wanted", productID, product.Stock, wanted)
	}

	return nil
}

func (c *Carts) load(ctx context.Context, userID string) (string, []cartItem, error) {
	docs, _, err := c.records.Find(ctx, types.CollectionCarts, types.RecordQuery{
		Filter: map[string]interface{}{"user_id": userID},
		Limit:  1,
	})
	if err != nil {
		return "", nil, types.WrapError(err, "failed to load cart")
	}
	if len(docs) == 0 {
		return "", nil, types.ErrCartNotFound
	}

	return cartRecord(docs[0])
}

func (c *Carts) loadOrCreate(ctx context.Context, userID string) (string, []cartItem, error) {
	cartID, items, err := c.load(ctx, userID)
	if err == nil {
		return cartID, items, nil
	}
	if !types.IsError(err, types.ErrCartNotFound) {
		return "", nil, err
	}

	cartID, err = c.records.Save(ctx, types.CollectionCarts, map[string]interface{}{
		"user_id": userID,
		"items":   []interface{}{},
	})
	if err != nil {
		return "", nil, types.WrapError(err, "failed to create cart")
	}

	c.logger.Info("cart created", zap.String("user_id", userID), zap.String("cart_id", cartID))
	return cartID, []cartItem{}, nil
}

// formatCart resolves each line against the product records. Lines whose
// product has disappeared are skipped rather than failing the whole cart.
func (c *Carts) formatCart(ctx context.Context, cartID, userID string, items []cartItem) *types.CartSnapshot {
	snapshot := &types.CartSnapshot{
		CartID: cartID,
		UserID: userID,
		Items:  make([]types.CartLine, 0, len(items)),
	}

	for _, item := range items {
		doc, err := c.records.FindByID(ctx, types.CollectionProducts, item.ProductID)
		if err != nil {
			c.logger.Warn("cart references missing product",
				zap.String("user_id", userID),
				zap.String("product_id", item.ProductID))
			continue
		}

		product, err := productSnapshot(doc)
		if err != nil {
			continue
		}

		snapshot.Items = append(snapshot.Items, types.CartLine{
			ProductID: item.ProductID,
			Name:      product.Name,
			ImageURL:  product.ImageURL,
			Price:     product.Price,
			Stock:     product.Stock,
			Quantity:  item.Quantity,
		})
		snapshot.TotalAmount += product.Price * item.Quantity
	}

	snapshot.TotalItems = len(snapshot.Items)
	return snapshot
}

func (c *Carts) dropOnError(ctx context.Context, userID string, err *error) {
	if *err == nil {
		return
	}
	if !c.cache.Invalidate(ctx, userID) {
		c.logger.Warn("failed to drop cart cache after mutation error",
			zap.String("user_id", userID))
	}
}

func cartRecord(doc map[string]interface{}) (string, []cartItem, error) {
	cartID, _ := doc["internal_id"].(string)
	if cartID == "" {
		return "", nil, types.ErrCartNotFound
	}

	rawItems, _ := doc["items"].([]interface{})
	items := make([]cartItem, 0, len(rawItems))
	for _, raw := range rawItems {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}

		productID, _ := entry["product_id"].(string)
		if productID == "" {
			continue
		}

		items = append(items, cartItem{
			ProductID: productID,
			Quantity:  toInt64(entry["quantity"]),
		})
	}

	return cartID, items, nil
}

func toInt64(value interface{}) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case uint64:
		return int64(v)
	default:
		return 0
	}
}
