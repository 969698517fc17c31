package cache

import (
	"context"
	"strings"
	"time"

	"github.com/vibeelabs/vibee-go/vibee"
)

// SearchCache holds combined search results keyed by normalized query.
type SearchCache struct {
	tier *TwoTier[vibee.SearchResults]
}

// NewSearchCache creates a search cache instance over store.
func NewSearchCache(store vibee.KVStore, ttl time.Duration, logger vibee.Logger) *SearchCache {
	return &SearchCache{tier: NewTwoTier[vibee.SearchResults](store, "search:", ttl, logger)}
}

// NormalizeQuery canonicalizes a query for cache keying, so "Kutti "
// and "kutti" share an entry.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Get returns cached results for query from either tier.
func (c *SearchCache) Get(ctx context.Context, query string) (*vibee.SearchResults, bool) {
	results, ok := c.tier.Get(ctx, NormalizeQuery(query))
	if !ok {
		return nil, false
	}
	return &results, true
}

// Put caches results for query in both tiers.
func (c *SearchCache) Put(ctx context.Context, query string, results vibee.SearchResults) {
	c.tier.Put(ctx, NormalizeQuery(query), results)
}
