package expression

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultProgramTTL is the entry lifetime used when no program cache is
// supplied.
const DefaultProgramTTL = 10 * time.Minute

// ProgramCache memoises parsed expressions by source text. Parsed trees are
// never mutated, so a cached Node may be evaluated from many goroutines.
type ProgramCache struct {
	c   *gocache.Cache
	ttl time.Duration
}

// NewProgramCache creates a cache whose entries live for ttl after their
// last insert. A non-positive ttl keeps entries until Flush.
func NewProgramCache(ttl time.Duration) *ProgramCache {
	expiration, cleanup := gocache.NoExpiration, time.Duration(0)
	if ttl > 0 {
		expiration, cleanup = ttl, 2*ttl
	}
	return &ProgramCache{c: gocache.New(expiration, cleanup), ttl: max(ttl, 0)}
}

// Parse returns the cached tree for source, parsing it on a miss.
// Parse errors are not cached.
func (pc *ProgramCache) Parse(source string) (Node, error) {
	if v, ok := pc.c.Get(source); ok {
		return v.(Node), nil
	}
	n, err := Parse(source)
	if err != nil {
		return nil, err
	}
	pc.c.SetDefault(source, n)
	return n, nil
}

// Evaluate parses source through the cache and evaluates it.
func (pc *ProgramCache) Evaluate(source string, ctx Context) (Value, error) {
	n, err := pc.Parse(source)
	if err != nil {
		return nil, err
	}
	return Evaluate(n, ctx)
}

// TTL reports the entry lifetime; 0 means entries never expire.
func (pc *ProgramCache) TTL() time.Duration { return pc.ttl }

func (pc *ProgramCache) Len() int { return pc.c.ItemCount() }

func (pc *ProgramCache) Flush() { pc.c.Flush() }
