package cache

import (
	"strconv"
	"strings"
	"time"

	"github.com/saiset-co/sai-commerce/types"
)

// Key namespaces. A key's prefix fully determines its TTL class and which
// invalidation edges clear it.
const (
	ProductPrefix     = "product:"
	CartPrefix        = "cart:"
	SearchPrefix      = "search:"
	SuggestionsPrefix = "suggestions:"
	WebhookPrefix     = "webhook:"
)

const (
	ProductTTL = 30 * time.Minute
	SearchTTL  = 5 * time.Minute
	CartTTL    = 48 * time.Hour
	WebhookTTL = 24 * time.Hour
)

func ProductKey(productID string) string {
	return ProductPrefix + productID
}

func CartKey(userID string) string {
	return CartPrefix + userID
}

func WebhookKey(eventID string) string {
	return WebhookPrefix + eventID
}

// SearchKey serializes the normalized query tuple deterministically so the
// same search always maps to the same cache entry.
func SearchKey(query types.SearchQuery) string {
	var b strings.Builder
	b.WriteString(SearchPrefix)
	b.WriteString("q=")
	b.WriteString(NormalizeText(query.Text))
	b.WriteString("|category=")
	b.WriteString(query.Category)
	b.WriteString("|brand=")
	b.WriteString(query.Brand)
	b.WriteString("|min=")
	b.WriteString(strconv.FormatInt(query.MinPrice, 10))
	b.WriteString("|max=")
	b.WriteString(strconv.FormatInt(query.MaxPrice, 10))
	b.WriteString("|page=")
	b.WriteString(strconv.Itoa(query.Page))
	b.WriteString("|limit=")
	b.WriteString(strconv.Itoa(query.Limit))
	return b.String()
}

func SuggestionKey(prefix string) string {
	return SuggestionsPrefix + NormalizeText(prefix)
}

// NormalizeText lowercases and collapses runs of whitespace to single
// spaces.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
