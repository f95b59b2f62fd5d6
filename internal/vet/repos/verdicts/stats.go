package verdicts

// CacheStats reports lightweight cache metrics.
// All fields are best-effort snapshots and may be updated concurrently.
type CacheStats struct {
	Capacity  int    // configured capacity (0 for disabled cache)
	Size      int    // current number of entries
	Hits      uint64 // total cache hits since construction
	Misses    uint64 // total cache misses since construction
	Evictions uint64 // total evictions since construction
}

// StoreStats reports store metrics and metadata.
type StoreStats struct {
	Verdicts    uint64 // number of stored verdicts
	Fingerprint string // rule set the stored verdicts were produced with
}

// RepoStats exposes repository-level counters and underlying stats.
type RepoStats struct {
	Hits   uint64 // lookups answered with a fresh verdict
	Misses uint64 // lookups that required evaluation
	Stale  uint64 // verdicts found but older than the max age
	Cache  CacheStats
	Store  StoreStats
}
