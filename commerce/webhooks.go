package commerce

import (
	"context"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-commerce/cache"
	"github.com/saiset-co/sai-commerce/metrics"
	"github.com/saiset-co/sai-commerce/types"
	"github.com/saiset-co/sai-commerce/utils"
)

const (
	StatusProcessed        = "processed"
	StatusDuplicate        = "duplicate"
	StatusAlreadyProcessed = "already_processed"
	StatusIgnored          = "ignored"
)

// Receipt acknowledges a webhook delivery. Received is always true for a
// structurally valid event so the provider stops retrying.
type Receipt struct {
	Received bool   `json:"received"`
	Status   string `json:"status"`
}

// Webhooks processes payment-provider events idempotently. Deduplication by
// event id is the first gate; order payment status is the second, so a
// duplicate that races past the marker still cannot double-decrement stock.
type Webhooks struct {
	records     types.RecordStore
	products    *Products
	dedup       *cache.WebhookDeduplicator
	invalidator *cache.Invalidator
	logger      types.Logger
	metrics     *metrics.Metrics
}

func NewWebhooks(records types.RecordStore, products *Products, dedup *cache.WebhookDeduplicator, invalidator *cache.Invalidator, logger types.Logger, m *metrics.Metrics) *Webhooks {
	return &Webhooks{
		records:     records,
		products:    products,
		dedup:       dedup,
		invalidator: invalidator,
		logger:      logger,
		metrics:     m,
	}
}

func (w *Webhooks) HandleEvent(ctx context.Context, event types.PaymentEvent) (*Receipt, error) {
	if event.ID == "" || event.Type == "" {
		return nil, types.ErrEventPayloadInvalid
	}

	if w.dedup.IsProcessed(ctx, event.ID) {
		w.metrics.WebhookDuplicate()
		w.logger.Info("duplicate webhook event skipped", zap.String("event_id", event.ID))
		return &Receipt{Received: true, Status: StatusDuplicate}, nil
	}

	switch event.Type {
	case types.EventPaymentSucceeded:
		return w.handlePaymentSucceeded(ctx, event)
	case types.EventPaymentFailed:
		return w.handlePaymentFailed(ctx, event)
	default:
		w.logger.Info("unhandled webhook event type",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type))
		return &Receipt{Received: true, Status: StatusIgnored}, nil
	}
}

func (w *Webhooks) handlePaymentSucceeded(ctx context.Context, event types.PaymentEvent) (*Receipt, error) {
	order, err := w.findOrder(ctx, event.PaymentIntentID)
	if err != nil {
		if types.IsError(err, types.ErrOrderNotFound) {
			w.logger.Warn("webhook references unknown payment intent",
				zap.String("event_id", event.ID),
				zap.String("payment_intent_id", event.PaymentIntentID))
			return &Receipt{Received: true, Status: StatusIgnored}, nil
		}
		return nil, err
	}

	if order.PaymentStatus == types.PaymentPaid {
		return &Receipt{Received: true, Status: StatusAlreadyProcessed}, nil
	}

	// All stock levels are validated before any record is touched so a
	// failure leaves nothing half-applied.
	for _, item := range order.Items {
		doc, err := w.records.FindByID(ctx, types.CollectionProducts, item.ProductID)
		if err != nil {
			return nil, types.WrapError(err, "failed to load ordered product")
		}

		product, err := productSnapshot(doc)
		if err != nil {
			return nil, types.WrapError(err, "failed to decode ordered product")
		}

		if product.Stock < item.Quantity {
			return nil, types.Errorf(types.ErrInsufficientStock,
				"product %s: %d available, %d ordered", item.ProductID, product.Stock, item.Quantity)
		}
	}

	// Confirming before decrementing means a retry can never decrement
	// twice; a write failure mid-loop under-decrements instead.
	err = w.records.UpdateByID(ctx, types.CollectionOrders, order.ID, map[string]interface{}{
		"payment_status": string(types.PaymentPaid),
		"order_status":   string(types.OrderConfirmed),
	})
	if err != nil {
		return nil, types.WrapError(err, "failed to confirm order")
	}

	productIDs := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		if err := w.products.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
		productIDs = append(productIDs, item.ProductID)
	}

	w.dedup.MarkProcessed(ctx, event.ID)

	w.invalidator.Apply(ctx, types.Change{
		Kind:       types.ChangeStockDecremented,
		ProductIDs: productIDs,
		UserID:     order.UserID,
	})

	w.logger.Info("payment confirmed",
		zap.String("event_id", event.ID),
		zap.String("order_id", order.ID))

	return &Receipt{Received: true, Status: StatusProcessed}, nil
}

func (w *Webhooks) handlePaymentFailed(ctx context.Context, event types.PaymentEvent) (*Receipt, error) {
	order, err := w.findOrder(ctx, event.PaymentIntentID)
	if err != nil {
		if types.IsError(err, types.ErrOrderNotFound) {
			return &Receipt{Received: true, Status: StatusIgnored}, nil
		}
		return nil, err
	}

	if order.PaymentStatus == types.PaymentPaid {
		return &Receipt{Received: true, Status: StatusAlreadyProcessed}, nil
	}

	err = w.records.UpdateByID(ctx, types.CollectionOrders, order.ID, map[string]interface{}{
		"payment_status": string(types.PaymentFailed),
	})
	if err != nil {
		return nil, types.WrapError(err, "failed to mark payment as failed")
	}

	w.dedup.MarkProcessed(ctx, event.ID)

	w.logger.Info("payment failed",
		zap.String("event_id", event.ID),
		zap.String("order_id", order.ID))

	return &Receipt{Received: true, Status: StatusProcessed}, nil
}

func (w *Webhooks) findOrder(ctx context.Context, paymentIntentID string) (*types.Order, error) {
	if paymentIntentID == "" {
		return nil, types.ErrOrderNotFound
	}

	docs, _, err := w.records.Find(ctx, types.CollectionOrders, types.RecordQuery{
		Filter: map[string]interface{}{"payment_intent_id": paymentIntentID},
		Limit:  1,
	})
	if err != nil {
		return nil, types.WrapError(err, "failed to load order")
	}
	if len(docs) == 0 {
		return nil, types.ErrOrderNotFound
	}

	var order types.Order
	if err := utils.Decode(docs[0], &order); err != nil {
		return nil, types.WrapError(err, "failed to decode order record")
	}
	if id, ok := docs[0]["internal_id"].(string); ok {
		order.ID = id
	}

	return &order, nil
}
