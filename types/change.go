package types

// ChangeKind names a record-store mutation that affects cached state. Each
// mutating operation returns a Change describing what it touched, and the
// invalidation dispatcher maps the kind to the cache keys and namespaces to
// clear. The mapping lives in one place instead of being repeated at every
// call site.
type ChangeKind string

const (
	ChangeProductCreated   ChangeKind = "product_created"
	ChangeProductUpdated   ChangeKind = "product_updated"
	ChangeStockDecremented ChangeKind = "stock_decremented"
	ChangeCartMutated      ChangeKind = "cart_mutated"
)

type Change struct {
	Kind       ChangeKind
	ProductIDs []string
	UserID     string
}
