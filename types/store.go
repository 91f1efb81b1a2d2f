package types

import "context"

const (
	CollectionProducts = "products"
	CollectionCarts    = "carts"
	CollectionOrders   = "orders"
)

type RecordQuery struct {
	Filter map[string]interface{}
	Sort   map[string]int
	Skip   int
	Limit  int
}

// RecordStore is the document-store collaborator. Writes report success or
// failure unambiguously so cache invalidation fires only after a confirmed
// write.
type RecordStore interface {
	FindByID(ctx context.Context, collection, id string) (map[string]interface{}, error)
	Find(ctx context.Context, collection string, query RecordQuery) ([]map[string]interface{}, int64, error)
	Count(ctx context.Context, collection string, filter map[string]interface{}) (int64, error)
	Save(ctx context.Context, collection string, document map[string]interface{}) (string, error)
	UpdateByID(ctx context.Context, collection, id string, patch map[string]interface{}) error
	DeleteByID(ctx context.Context, collection, id string) error
}
