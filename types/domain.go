package types

// ProductSnapshot is the tagged payload stored under the product cache
// namespace. It is a plain data copy of the product record, not a live
// document.
type ProductSnapshot struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Brand       string `json:"brand"`
	ImageURL    string `json:"image_url"`
	SellerID    string `json:"seller_id"`
	Price       int64  `json:"price"`
	Stock       int64  `json:"stock"`
}

type CartLine struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	ImageURL  string `json:"image_url"`
	Price     int64  `json:"price"`
	Stock     int64  `json:"stock"`
	Quantity  int64  `json:"quantity"`
}

// CartSnapshot is the formatted cart as served to clients, stored under the
// cart cache namespace.
type CartSnapshot struct {
	CartID      string     `json:"cart_id"`
	UserID      string     `json:"user_id"`
	Items       []CartLine `json:"items"`
	TotalAmount int64      `json:"total_amount"`
	TotalItems  int        `json:"total_items"`
}

type SearchQuery struct {
	Text     string `json:"q"`
	Category string `json:"category"`
	Brand    string `json:"brand"`
	MinPrice int64  `json:"min_price"`
	MaxPrice int64  `json:"max_price"`
	Page     int    `json:"page"`
	Limit    int    `json:"limit"`
}

type FacetBucket struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

type PriceRange struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
	Min   int64  `json:"min"`
	Max   int64  `json:"max"`
}

type SearchFacets struct {
	Categories  []FacetBucket `json:"categories"`
	Brands      []FacetBucket `json:"brands"`
	PriceRanges []PriceRange  `json:"price_ranges"`
}

// SearchResultPage is the tagged payload stored under the search cache
// namespace, keyed by the serialized query tuple.
type SearchResultPage struct {
	Products     []ProductSnapshot `json:"products"`
	TotalResults int64             `json:"total_results"`
	Facets       SearchFacets      `json:"facets"`
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type OrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	Price     int64  `json:"price"`
}

type Order struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	Items           []OrderItem   `json:"items"`
	TotalAmount     int64         `json:"total_amount"`
	OrderStatus     OrderStatus   `json:"order_status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	PaymentIntentID string        `json:"payment_intent_id"`
}

const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)

// PaymentEvent is the payment-provider notification. Delivery is
// at-least-once and unordered across retries; ID is the deduplication key.
type PaymentEvent struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	PaymentIntentID string `json:"payment_intent_id"`
}
