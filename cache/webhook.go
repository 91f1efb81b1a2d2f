package cache

import (
	"context"
	"time"

	"github.com/saiset-co/sai-commerce/types"
)

var processedMarker = []byte("processed")

// WebhookDeduplicator marks externally delivered event ids as processed so
// at-least-once webhook delivery stays idempotent. Check and mark are not
// atomic: tight concurrent duplicates can still slip through, which is why
// the processing itself gates on order status. The 24h TTL bounds the
// dedup window to the provider's retry horizon.
type WebhookDeduplicator struct {
	store types.CacheStore
}

func NewWebhookDeduplicator(store types.CacheStore) *WebhookDeduplicator {
	return &WebhookDeduplicator{store: store}
}

// IsProcessed reports whether eventID was already handled. Store failure
// reads as "not processed": reprocessing is safe because handlers are
// idempotent, whereas treating an unknown event as processed would drop it.
func (d *WebhookDeduplicator) IsProcessed(ctx context.Context, eventID string) bool {
	if eventID == "" {
		return false
	}
	return d.store.Exists(ctx, WebhookKey(eventID))
}

func (d *WebhookDeduplicator) MarkProcessed(ctx context.Context, eventID string) {
	if eventID == "" {
		return
	}
	d.store.Set(ctx, WebhookKey(eventID), processedMarker, WebhookTTL)
}

// Window reports the remaining dedup lifetime for an event id, zero when
// unknown.
func (d *WebhookDeduplicator) Window(ctx context.Context, eventID string) time.Duration {
	remaining, ok := d.store.TTL(ctx, WebhookKey(eventID))
	if !ok {
		return 0
	}
	return remaining
}
