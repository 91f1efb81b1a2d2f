package commerce

import (
	"context"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-commerce/cache"
	"github.com/saiset-co/sai-commerce/types"
	"github.com/saiset-co/sai-commerce/utils"
)

// Products serves product reads through the cache-aside path and routes
// every product write through the invalidator.
type Products struct {
	records     types.RecordStore
	cache       *cache.ProductCache
	invalidator *cache.Invalidator
	logger      types.Logger
}

func NewProducts(records types.RecordStore, productCache *cache.ProductCache, invalidator *cache.Invalidator, logger types.Logger) *Products {
	return &Products{
		records:     records,
		cache:       productCache,
		invalidator: invalidator,
		logger:      logger,
	}
}

// GetProduct returns the product snapshot, from cache when present. A miss
// reads the record store and repopulates the cache before returning.
func (p *Products) GetProduct(ctx context.Context, productID string) (*types.ProductSnapshot, error) {
	if productID == "" {
		return nil, types.ErrProductNotFound
	}

	if snapshot, found := p.cache.Get(ctx, productID); found {
		return snapshot, nil
	}

	doc, err := p.records.FindByID(ctx, types.CollectionProducts, productID)
	if err != nil {
		if types.IsError(err, types.ErrRecordNotFound) {
			return nil, types.ErrProductNotFound
		}
		return nil, types.WrapError(err, "failed to load product")
	}

	snapshot, err := productSnapshot(doc)
	if err != nil {
		return nil, types.WrapError(err, "failed to decode product record")
	}

	p.cache.Put(ctx, snapshot)
	return snapshot, nil
}

func (p *Products) CreateProduct(ctx context.Context, product *types.ProductSnapshot) (string, error) {
	document := map[string]interface{}{
		"name":        product.Name,
		"description": product.Description,
		"category":    product.Category,
		"brand":       product.Brand,
		"image_url":   product.ImageURL,
		"seller_id":   product.SellerID,
		"price":       product.Price,
		"stock":       product.Stock,
	}

	id, err := p.records.Save(ctx, types.CollectionProducts, document)
	if err != nil {
		return "", types.WrapError(err, "failed to create product")
	}

	p.logger.Info("product created", zap.String("product_id", id))

	p.invalidator.Apply(ctx, types.Change{Kind: types.ChangeProductCreated})
	return id, nil
}

func (p *Products) UpdateProduct(ctx context.Context, productID string, patch map[string]interface{}) error {
	if err := p.records.UpdateByID(ctx, types.CollectionProducts, productID, patch); err != nil {
		if types.IsError(err, types.ErrRecordNotFound) {
			return types.ErrProductNotFound
		}
		return types.WrapError(err, "failed to update product")
	}

	p.invalidator.Apply(ctx, types.Change{
		Kind:       types.ChangeProductUpdated,
		ProductIDs: []string{productID},
	})
	return nil
}

func (p *Products) DeleteProduct(ctx context.Context, productID string) error {
	if err := p.records.DeleteByID(ctx, types.CollectionProducts, productID); err != nil {
		if types.IsError(err, types.ErrRecordNotFound) {
			return types.ErrProductNotFound
		}
		return types.WrapError(err, "failed to delete product")
	}

	p.invalidator.Apply(ctx, types.Change{
		Kind:       types.ChangeProductUpdated,
		ProductIDs: []string{productID},
	})
	return nil
}

// DecrementStock subtracts quantity after checking availability. It does not
// dispatch a change; callers batch their decrements into a single
// stock_decremented dispatch.
func (p *Products) DecrementStock(ctx context.Context, productID string, quantity int64) error {
	doc, err := p.records.FindByID(ctx, types.CollectionProducts, productID)
	if err != nil {
		if types.IsError(err, types.ErrRecordNotFound) {
			return types.ErrProductNotFound
		}
		return types.WrapError(err, "failed to load product")
	}

	snapshot, err := productSnapshot(doc)
	if err != nil {
		return types.WrapError(err, "failed to decode product record")
	}

	if snapshot.Stock < quantity {
		return types.Errorf(types.ErrInsufficientStock,
			"product %s: %d available, %d wanted", productID, snapshot.Stock, quantity)
	}

	err = p.records.UpdateByID(ctx, types.CollectionProducts, productID, map[string]interface{}{
		"stock": snapshot.Stock - quantity,
	})
	if err != nil {
		return types.WrapError(err, "failed to decrement stock")
	}

	return nil
}

func productSnapshot(doc map[string]interface{}) (*types.ProductSnapshot, error) {
	var snapshot types.ProductSnapshot
	if err := utils.Decode(doc, &snapshot); err != nil {
		return nil, err
	}

	if id, ok := doc["internal_id"].(string); ok {
		snapshot.ID = id
	}

	return &snapshot, nil
}
