package rules

import "time"

// CandidateKey identifies one resolution lookup.
type CandidateKey struct {
	ScopeType ScopeType
	ScopeID   string
	RuleType  Type
}

func (k CandidateKey) String() string {
	return string(k.ScopeType) + "/" + k.ScopeID + "/" + string(k.RuleType)
}

// CandidateCache caches sorted, evaluable candidates per lookup.
// This allows swapping between in-memory, Redis, or other caching implementations.
type CandidateCache interface {
	// Get retrieves cached candidates, ok is false on a miss or expiry.
	Get(key CandidateKey) (candidates []Candidate, ok bool)

	// Set stores candidates for key.
	Set(key CandidateKey, candidates []Candidate)

	// Invalidate drops every entry, forcing a refresh on next Get.
	Invalidate()
}

// CacheConfig holds configuration for cache behavior.
type CacheConfig struct {
	// TTL is the time-to-live for cached entries.
	// Set to 0 for no expiration (invalidation on mutations only).
	TTL time.Duration
}

// DefaultCacheConfig returns sensible defaults for candidate caching.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL: 0,
	}
}
