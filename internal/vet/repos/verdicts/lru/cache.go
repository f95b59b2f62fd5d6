package lru

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haukened/linkvet/internal/vet/domain"
	"github.com/haukened/linkvet/internal/vet/repos/verdicts"
)

// verdictCache is an LRU-backed implementation of verdicts.VerdictCache.
// It tracks basic metrics: hits, misses, and evictions.
type verdictCache struct {
	lru       *lru.Cache[string, domain.StoredVerdict]
	capacity  int
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// disabledCache is a no-op VerdictCache used when size <= 0.
type disabledCache struct{}

// New creates a new VerdictCache with the given capacity. If size <= 0, a
// disabled no-op cache is returned that always misses.
func New(size int) (verdicts.VerdictCache, error) {
	if size <= 0 {
		return disabledCache{}, nil
	}

	vc := &verdictCache{capacity: size}
	// NewWithEvict observes evictions, including Purge-induced ones.
	cache, err := lru.NewWithEvict(size, func(string, domain.StoredVerdict) {
		vc.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	vc.lru = cache
	return vc, nil
}

// Get looks up a verdict by URL, counting hits and misses.
func (c *verdictCache) Get(url string) (domain.StoredVerdict, bool) {
	if val, ok := c.lru.Get(url); ok {
		c.hits.Add(1)
		return val, true
	}
	c.misses.Add(1)
	return domain.StoredVerdict{}, false
}

func (c *verdictCache) Put(url string, v domain.StoredVerdict) {
	c.lru.Add(url, v)
}

func (c *verdictCache) Len() int { return c.lru.Len() }

// Purge clears all entries. Evictions are counted via the eviction callback.
func (c *verdictCache) Purge() { c.lru.Purge() }

func (c *verdictCache) Stats() verdicts.CacheStats {
	return verdicts.CacheStats{
		Capacity:  c.capacity,
		Size:      c.lru.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

func (disabledCache) Get(string) (domain.StoredVerdict, bool) {
	return domain.StoredVerdict{}, false
}

func (disabledCache) Put(string, domain.StoredVerdict) {}

func (disabledCache) Len() int { return 0 }

func (disabledCache) Purge() {}

func (disabledCache) Stats() verdicts.CacheStats { return verdicts.CacheStats{} }

var _ verdicts.VerdictCache = (*verdictCache)(nil)
var _ verdicts.VerdictCache = disabledCache{}
