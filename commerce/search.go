package commerce

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/saiset-co/sai-commerce/cache"
	"github.com/saiset-co/sai-commerce/types"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
	suggestionLimit = 5
)

// priceBoundaries delimit the facet buckets; the final bucket is open-ended.
var priceBoundaries = []int64{0, 5000, 15000, 50000, 100000, 500000}

// Search answers catalog queries through the search cache. Result pages and
// suggestion lists are cached under their serialized keys; the coarse
// invalidation policy lives in the cache layer.
type Search struct {
	records types.RecordStore
	cache   *cache.SearchCache
	logger  types.Logger
}

func NewSearch(records types.RecordStore, searchCache *cache.SearchCache, logger types.Logger) *Search {
	return &Search{
		records: records,
		cache:   searchCache,
		logger:  logger,
	}
}

// Search runs the catalog query, serving a cached page when the normalized
// query tuple was seen within the TTL.
func (s *Search) Search(ctx context.Context, query types.SearchQuery) (*types.SearchResultPage, error) {
	query = normalizeQuery(query)

	if page, found := s.cache.GetPage(ctx, query); found {
		return page, nil
	}

	docs, _, err := s.records.Find(ctx, types.CollectionProducts, types.RecordQuery{
		Filter: searchFilter(query),
		Sort:   map[string]int{"cr_time": -1},
	})
	if err != nil {
		return nil, types.WrapError(err, "search query failed")
	}

	matches := make([]types.ProductSnapshot, 0, len(docs))
	for _, doc := range docs {
		snapshot, err := productSnapshot(doc)
		if err != nil {
			continue
		}
		matches = append(matches, *snapshot)
	}

	page := &types.SearchResultPage{
		Products:     pageSlice(matches, query.Page, query.Limit),
		TotalResults: int64(len(matches)),
		Facets:       buildFacets(matches),
	}

	s.cache.PutPage(ctx, query, page)
	return page, nil
}

// Suggest returns up to five product names starting with the prefix.
func (s *Search) Suggest(ctx context.Context, prefix string) ([]string, error) {
	prefix = cache.NormalizeText(prefix)
	if prefix == "" {
		return []string{}, nil
	}

	if suggestions, found := s.cache.GetSuggestions(ctx, prefix); found {
		return suggestions, nil
	}

	docs, _, err := s.records.Find(ctx, types.CollectionProducts, types.RecordQuery{
		Filter: map[string]interface{}{
			"name": map[string]interface{}{
				"$regex": "(?i)^" + regexp.QuoteMeta(prefix),
			},
		},
		Sort:  map[string]int{"name": 1},
		Limit: suggestionLimit,
	})
	if err != nil {
		return nil, types.WrapError(err, "suggestion query failed")
	}

	suggestions := make([]string, 0, len(docs))
	for _, doc := range docs {
		if name, ok := doc["name"].(string); ok && name != "" {
			suggestions = append(suggestions, name)
		}
	}

	s.cache.PutSuggestions(ctx, prefix, suggestions)
	return suggestions, nil
}

func normalizeQuery(query types.SearchQuery) types.SearchQuery {
	query.Text = cache.NormalizeText(query.Text)
	query.Category = strings.TrimSpace(query.Category)
	query.Brand = strings.TrimSpace(query.Brand)

	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = defaultPageSize
	}
	if query.Limit > maxPageSize {
		query.Limit = maxPageSize
	}
	if query.MinPrice < 0 {
		query.MinPrice = 0
	}
	if query.MaxPrice < 0 {
		query.MaxPrice = 0
	}

	return query
}

func searchFilter(query types.SearchQuery) map[string]interface{} {
	filter := map[string]interface{}{}

	if query.Text != "" {
		terms := strings.Fields(query.Text)
		quoted := make([]string, 0, len(terms))
		for _, term := range terms {
			quoted = append(quoted, regexp.QuoteMeta(term))
		}
		pattern := "(?i)(" + strings.Join(quoted, "|") + ")"

		filter["$or"] = []interface{}{
			map[string]interface{}{"name": map[string]interface{}{"$regex": pattern}},
			map[string]interface{}{"description": map[string]interface{}{"$regex": pattern}},
		}
	}

	if query.Category != "" {
		filter["category"] = query.Category
	}
	if query.Brand != "" {
		filter["brand"] = query.Brand
	}

	price := map[string]interface{}{}
	if query.MinPrice > 0 {
		price["$gte"] = query.MinPrice
	}
	if query.MaxPrice > 0 {
		price["$lte"] = query.MaxPrice
	}
	if len(price) > 0 {
		filter["price"] = price
	}

	return filter
}

func pageSlice(matches []types.ProductSnapshot, page, limit int) []types.ProductSnapshot {
	start := (page - 1) * limit
	if start >= len(matches) {
		return []types.ProductSnapshot{}
	}

	end := start + limit
	if end > len(matches) {
		end = len(matches)
	}

	return matches[start:end]
}

func buildFacets(matches []types.ProductSnapshot) types.SearchFacets {
	categories := map[string]int64{}
	brands := map[string]int64{}
	rangeCounts := make([]int64, len(priceBoundaries))

	for _, product := range matches {
		if product.Category != "" {
			categories[product.Category]++
		}
		if product.Brand != "" {
			brands[product.Brand]++
		}
		rangeCounts[priceBucket(product.Price)]++
	}

	facets := types.SearchFacets{
		Categories:  facetBuckets(categories),
		Brands:      facetBuckets(brands),
		PriceRanges: make([]types.PriceRange, 0, len(priceBoundaries)),
	}

	for i, min := range priceBoundaries {
		pr := types.PriceRange{Count: rangeCounts[i], Min: min}
		if i+1 < len(priceBoundaries) {
			pr.Max = priceBoundaries[i+1]
			pr.Label = strconv.FormatInt(min, 10) + "-" + strconv.FormatInt(pr.Max, 10)
		} else {
			pr.Label = strconv.FormatInt(min, 10) + "+"
		}
		facets.PriceRanges = append(facets.PriceRanges, pr)
	}

	return facets
}

func priceBucket(price int64) int {
	for i := len(priceBoundaries) - 1; i > 0; i-- {
		if price >= priceBoundaries[i] {
			return i
		}
	}
	return 0
}

func facetBuckets(counts map[string]int64) []types.FacetBucket {
	buckets := make([]types.FacetBucket, 0, len(counts))
	for value, count := range counts {
		buckets = append(buckets, types.FacetBucket{Value: value, Count: count})
	}

	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Value < buckets[j].Value
	})

	return buckets
}
