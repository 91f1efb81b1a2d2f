package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saiset-co/sai-commerce/types"
)

func TestSearchKeyDeterministic(t *testing.T) {
	a := SearchKey(types.SearchQuery{Text: "Gaming  Laptop", Category: "electronics", Page: 1, Limit: 10})
	b := SearchKey(types.SearchQuery{Text: "gaming laptop", Category: "electronics", Page: 1, Limit: 10})

	assert.Equal(t, a, b, "text normalization folds case and whitespace")
	assert.Equal(t, "search:q=gaming laptop|category=electronics|brand=|min=0|max=0|page=1|limit=10", a)
}

func TestSearchKeyDistinguishesTuples(t *testing.T) {
	base := types.SearchQuery{Text: "laptop", Page: 1, Limit: 10}

	page2 := base
	page2.Page = 2

	priced := base
	priced.MaxPrice = 50000

	assert.NotEqual(t, SearchKey(base), SearchKey(page2))
	assert.NotEqual(t, SearchKey(base), SearchKey(priced))
}

func TestNamespaceKeys(t *testing.T) {
	assert.Equal(t, "product:p1", ProductKey("p1"))
	assert.Equal(t, "cart:u1", CartKey("u1"))
	assert.Equal(t, "webhook:evt_123", WebhookKey("evt_123"))
	assert.Equal(t, "suggestions:lap top", SuggestionKey(" Lap  Top "))
}
