package commerce

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiset-co/sai-commerce/cache"
	"github.com/saiset-co/sai-commerce/types"
)

func seedOrder(t *testing.T, env *testEnv, userID, intentID string, items []types.OrderItem) string {
	t.Helper()

	serialized := make([]interface{}, 0, len(items))
	total := int64(0)
	for _, item := range items {
		serialized = append(serialized, map[string]interface{}{
			"product_id": item.ProductID,
			"quantity":   item.Quantity,
			"price":      item.Price,
		})
		total += item.Quantity * item.Price
	}

	id, err := env.records.Save(context.Background(), types.CollectionOrders, map[string]interface{}{
		"user_id":           userID,
		"items":             serialized,
		"total_amount":      total,
		"order_status":      string(types.OrderPending),
		"payment_status":    string(types.PaymentPending),
		"payment_intent_id": intentID,
	})
	require.NoError(t, err)
	return id
}

func productStock(t *testing.T, env *testEnv, productID string) int64 {
	t.Helper()

	doc, err := env.records.FindByID(context.Background(), types.CollectionProducts, productID)
	require.NoError(t, err)

	snapshot, err := productSnapshot(doc)
	require.NoError(t, err)
	return snapshot.Stock
}

func TestPaymentSucceededConfirmsAndDecrements(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	laptop := seedProduct(t, env, "Laptop", 150000, 5)
	orderID := seedOrder(t, env, "u1", "pi_1", []types.OrderItem{
		{ProductID: laptop, Quantity: 2, Price: 150000},
	})

	receipt, err := env.webhooks.HandleEvent(ctx, types.PaymentEvent{
		ID:              "evt_123",
		Type:            types.EventPaymentSucceeded,
		PaymentIntentID: "pi_1",
	})
	require.NoError(t, err)
	assert.True(t, receipt.Received)
	assert.Equal(t, StatusProcessed, receipt.Status)

	assert.Equal(t, int64(3), productStock(t, env, laptop))

	doc, err := env.records.FindByID(ctx, types.CollectionOrders, orderID)
	require.NoError(t, err)
	assert.Equal(t, string(types.PaymentPaid), doc["payment_status"])
	assert.Equal(t, string(types.OrderConfirmed), doc["order_status"])
}

func TestDuplicateDeliveryDecrementsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	laptop := seedProduct(t, env, "Laptop", 150000, 5)
	seedOrder(t, env, "u1", "pi_1", []types.OrderItem{
		{ProductID: laptop, Quantity: 2, Price: 150000},
	})

	event := types.PaymentEvent{
		ID:              "evt_123",
		Type:            types.EventPaymentSucceeded,
		PaymentIntentID: "pi_1",
	}

	receipt, err := env.webhooks.HandleEvent(ctx, event)
	require.NoError(t, err)
	require.Equal(t, StatusProcessed, receipt.Status)

	receipt, err = env.webhooks.HandleEvent(ctx, event)
	require.NoError(t, err)
	assert.True(t, receipt.Received)
	assert.Equal(t, StatusDuplicate, receipt.Status)

	assert.Equal(t, int64(3), productStock(t, env, laptop), "stock decremented exactly once")
}

func TestRetryWithFreshEventID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	laptop := seedProduct(t, env, "Laptop", 150000, 5)
	seedOrder(t, env, "u1", "pi_1", []types.OrderItem{
		{ProductID: laptop, Quantity: 2, Price: 150000},
	})

	_, err := env.webhooks.HandleEvent(ctx, types.PaymentEvent{
		ID: "evt_123", Type: types.EventPaymentSucceeded, PaymentIntentID: "pi_1",
	})
	require.NoError(t, err)

	// A provider retry with a different event id passes the dedup gate but
	// is caught by the order's payment status.
	receipt, err := env.webhooks.HandleEvent(ctx, types.PaymentEvent{
		ID: "evt_456", Type: types.EventPaymentSucceeded, PaymentIntentID: "pi_1",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyProcessed, receipt.Status)
	assert.Equal(t, int64(3), productStock(t, env, laptop))
}

func TestUnknownPaymentIntentIgnored(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	receipt, err := env.webhooks.HandleEvent(ctx, types.PaymentEvent{
		ID: "evt_123", Type: types.EventPaymentSucceeded, PaymentIntentID: "pi_missing",
	})
	require.NoError(t, err)
	assert.True(t, receipt.Received)
	assert.Equal(t, StatusIgnored, receipt.Status)
}

func TestUnhandledEventTypeIgnored(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	receipt, err := env.webhooks.HandleEvent(ctx, types.PaymentEvent{
		ID: "evt_123", Type: "charge.refunded", PaymentIntentID: "pi_1",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, receipt.Status)
}

func TestInvalidPayload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.webhooks.HandleEvent(ctx, types.PaymentEvent{Type: types.EventPaymentSucceeded})
	assert.ErrorIs(t, err, types.ErrEventPayloadInvalid)

	_, err = env.webhooks.HandleEvent(ctx, types.PaymentEvent{ID: "evt_123"})
	assert.ErrorIs(t, err, types.ErrEventPayloadInvalid)
}

func TestInsufficientStockLeavesOrderUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	laptop := seedProduct(t, env, "Laptop", 150000, 1)
	orderID := seedOrder(t, env, "u1", "pi_1", []types.OrderItem{
		{ProductID: laptop, Quantity: 2, Price: 150000},
	})

	_, err := env.webhooks.HandleEvent(ctx, types.PaymentEvent{
		ID: "evt_123", Type: types.EventPaymentSucceeded, PaymentIntentID: "pi_1",
	})
	require.ErrorIs(t, err, types.ErrInsufficientStock)

	assert.Equal(t, int64(1), productStock(t, env, laptop))

	doc, err := env.records.FindByID(ctx, types.CollectionOrders, orderID)
	require.NoError(t, err)
	assert.Equal(t, string(types.PaymentPending), doc["payment_status"])

	assert.False(t, env.dedup.IsProcessed(ctx, "evt_123"),
		"a failed event is not marked, the provider retry can succeed later")
}

func TestPaymentFailed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	laptop := seedProduct(t, env, "Laptop", 150000, 5)
	orderID := seedOrder(t, env, "u1", "pi_1", []types.OrderItem{
		{ProductID: laptop, Quantity: 2, Price: 150000},
	})

	receipt, err := env.webhooks.HandleEvent(ctx, types.PaymentEvent{
		ID: "evt_123", Type: types.EventPaymentFailed, PaymentIntentID: "pi_1",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, receipt.Status)

	doc, err := env.records.FindByID(ctx, types.CollectionOrders, orderID)
	require.NoError(t, err)
	assert.Equal(t, string(types.PaymentFailed), doc["payment_status"])
	assert.Equal(t, string(types.OrderPending), doc["order_status"])

	assert.Equal(t, int64(5), productStock(t, env, laptop), "failed payment never touches stock")
}

func TestStockDecrementInvalidatesBuyerCaches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	laptop := seedProduct(t, env, "Laptop", 150000, 5)
	seedOrder(t, env, "u1", "pi_1", []types.OrderItem{
		{ProductID: laptop, Quantity: 1, Price: 150000},
	})

	_, err := env.products.GetProduct(ctx, laptop)
	require.NoError(t, err)
	env.cartCache.Put(ctx, "u1", &types.CartSnapshot{CartID: "c1", UserID: "u1"})
	env.searchCache.PutPage(ctx, types.SearchQuery{Text: "laptop", Page: 1, Limit: 10}, &types.SearchResultPage{})

	_, err = env.webhooks.HandleEvent(ctx, types.PaymentEvent{
		ID: "evt_123", Type: types.EventPaymentSucceeded, PaymentIntentID: "pi_1",
	})
	require.NoError(t, err)

	assert.False(t, env.store.Exists(ctx, cache.ProductKey(laptop)))
	assert.False(t, env.store.Exists(ctx, cache.CartKey("u1")))
	_, found := env.searchCache.GetPage(ctx, types.SearchQuery{Text: "laptop", Page: 1, Limit: 10})
	assert.False(t, found)
}
