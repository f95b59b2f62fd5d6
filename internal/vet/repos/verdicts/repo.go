package verdicts

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haukened/linkvet/internal/vet/common/clock"
	"github.com/haukened/linkvet/internal/vet/domain"
)

var (
	ErrCacheRequired   = errors.New("verdict cache is required")
	ErrFactoryRequired = errors.New("bloom factory is required")
)

// Options configures NewRepository.
type Options struct {
	Cache   VerdictCache
	Factory BloomFactory
	Store   Store // nil selects NopStore
	Clock   clock.Clock
	// MaxAge bounds how old a reused verdict may be; 0 keeps verdicts forever.
	MaxAge time.Duration
	// ExpectedURLs sizes the Bloom filter on top of the stored verdicts.
	ExpectedURLs uint64
	FPRate       float64
}

// repository implements Repository by composing a Store, a Bloom filter and
// a VerdictCache. Reads go cache → bloom → store; writes go to all three.
type repository struct {
	mu     sync.RWMutex
	store  Store
	cache  VerdictCache
	bloom  BloomFilter
	clock  clock.Clock
	maxAge time.Duration

	hits   atomic.Uint64
	misses atomic.Uint64
	stale  atomic.Uint64
}

// NewRepository constructs a Repository and seeds the Bloom filter with every
// URL already held by the store.
func NewRepository(opts Options) (Repository, error) {
	if opts.Cache == nil {
		return nil, ErrCacheRequired
	}
	if opts.Factory == nil {
		return nil, ErrFactoryRequired
	}
	if opts.Store == nil {
		opts.Store = NopStore{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}

	capacity := opts.Store.Stats().Verdicts + opts.ExpectedURLs
	bf := opts.Factory.New(capacity, opts.FPRate)
	err := opts.Store.VisitKeys(func(key []byte) bool {
		bf.Add(key)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to seed bloom filter: %w", err)
	}

	return &repository{
		store:  opts.Store,
		cache:  opts.Cache,
		bloom:  bf,
		clock:  opts.Clock,
		maxAge: opts.MaxAge,
	}, nil
}

// Lookup returns a fresh verdict for url. Store errors count as a miss.
func (r *repository) Lookup(url string) (domain.Verdict, bool) {
	key := strings.TrimSpace(url)
	now := r.clock.Now()

	// 1) checkCache
	if sv, ok := r.checkCache(key); ok {
		if sv.Fresh(now, r.maxAge) {
			r.hits.Add(1)
			return sv.Verdict, true
		}
		r.stale.Add(1)
		r.misses.Add(1)
		return domain.Verdict{}, false
	}
	// 2) checkBloom: early miss if definitively absent
	if !r.checkBloom(key) {
		r.misses.Add(1)
		return domain.Verdict{}, false
	}
	// 3) checkStore
	sv, ok := r.checkStore(key)
	if !ok {
		r.misses.Add(1)
		return domain.Verdict{}, false
	}
	if !sv.Fresh(now, r.maxAge) {
		r.stale.Add(1)
		r.misses.Add(1)
		return domain.Verdict{}, false
	}
	// 4) updateCache
	r.cache.Put(key, sv)
	r.hits.Add(1)
	return sv.Verdict, true
}

// Record keeps v for url. Inconclusive verdicts are dropped so a transient
// network failure is retried on the next lookup.
func (r *repository) Record(url string, v domain.Verdict) error {
	if v.Inconclusive() {
		return nil
	}
	key := strings.TrimSpace(url)
	sv := domain.StoredVerdict{Verdict: v, CheckedAt: r.clock.Now()}

	if err := r.store.Put(key, sv); err != nil {
		return fmt.Errorf("failed to store verdict: %w", err)
	}
	r.mu.Lock()
	r.bloom.Add([]byte(key))
	r.mu.Unlock()
	r.cache.Put(key, sv)
	return nil
}

// RepoStats returns repository counters with cache and store snapshots.
func (r *repository) RepoStats() RepoStats {
	return RepoStats{
		Hits:   r.hits.Load(),
		Misses: r.misses.Load(),
		Stale:  r.stale.Load(),
		Cache:  r.cache.Stats(),
		Store:  r.store.Stats(),
	}
}

// Close purges the cache and closes the store.
func (r *repository) Close() error {
	r.cache.Purge()
	return r.store.Close()
}

func (r *repository) checkCache(key string) (domain.StoredVerdict, bool) {
	return r.cache.Get(key)
}

func (r *repository) checkBloom(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bloom.MightContain([]byte(key))
}

// checkStore consults the authoritative store. Errors are treated as a miss.
func (r *repository) checkStore(key string) (domain.StoredVerdict, bool) {
	sv, ok, err := r.store.Get(key)
	if err != nil || !ok {
		return domain.StoredVerdict{}, false
	}
	return sv, true
}
