package rules

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// InMemoryCandidateCache implements CandidateCache on go-cache.
// Safe for concurrent access.
type InMemoryCandidateCache struct {
	items *gocache.Cache
}

// NewInMemoryCandidateCache creates a new in-memory candidate cache.
func NewInMemoryCandidateCache(config CacheConfig) *InMemoryCandidateCache {
	expiration, cleanup := gocache.NoExpiration, time.Duration(0)
	if config.TTL > 0 {
		expiration, cleanup = config.TTL, 2*config.TTL
	}
	return &InMemoryCandidateCache{items: gocache.New(expiration, cleanup)}
}

func (c *InMemoryCandidateCache) Get(key CandidateKey) ([]Candidate, bool) {
	v, ok := c.items.Get(key.String())
	if !ok {
		return nil, false
	}
	// Return copy to prevent external reordering
	cached := v.([]Candidate)
	out := make([]Candidate, len(cached))
	copy(out, cached)
	return out, true
}

func (c *InMemoryCandidateCache) Set(key CandidateKey, candidates []Candidate) {
	stored := make([]Candidate, len(candidates))
	copy(stored, candidates)
	c.items.SetDefault(key.String(), stored)
}

func (c *InMemoryCandidateCache) Invalidate() {
	c.items.Flush()
}

// Len reports the number of cached lookups.
func (c *InMemoryCandidateCache) Len() int {
	return c.items.ItemCount()
}
