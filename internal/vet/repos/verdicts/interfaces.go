package verdicts

import "github.com/haukened/linkvet/internal/vet/domain"

// BloomFactory builds filters sized for an expected number of keys.
type BloomFactory interface {
	New(capacity uint64, fpRate float64) BloomFilter
}

// BloomFilter is the minimal interface the repository needs from Bloom filters.
// A negative answer is definitive: the store holds no verdict for the key.
type BloomFilter interface {
	Add(key []byte)
	MightContain(key []byte) bool
}

// VerdictCache caches stored verdicts by URL with basic metrics.
type VerdictCache interface {
	Get(url string) (domain.StoredVerdict, bool)
	Put(url string, v domain.StoredVerdict)
	Len() int
	Purge()
	Stats() CacheStats
}

// Store is the persistent verdict index.
//   - Get/Put: verdict by URL
//   - VisitKeys: iterate stored URLs, stops when visit returns false
//   - Stats: counts and metadata; Close: release resources
type Store interface {
	Get(url string) (domain.StoredVerdict, bool, error)
	Put(url string, v domain.StoredVerdict) error
	VisitKeys(visit func(key []byte) bool) error
	Stats() StoreStats
	Close() error
}

// Repository is the composition layer that wires cache → bloom → store.
// Lookup returns a fresh verdict previously recorded for the URL.
// Record keeps a conclusive verdict for later lookups.
type Repository interface {
	Lookup(url string) (domain.Verdict, bool)
	Record(url string, v domain.Verdict) error
	RepoStats() RepoStats
	Close() error
}
