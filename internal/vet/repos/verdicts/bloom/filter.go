package bloom

import (
	"sync"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"
)

// filter is the negative lookup in front of the verdict store: a URL the
// filter has never seen has no stored verdict, so the store read is skipped.
// Runner workers record verdicts while others look up, hence the lock.
type filter struct {
	mu sync.RWMutex
	bf *bitsbloom.BloomFilter
}

// Add marks a URL key as having a stored verdict.
func (f *filter) Add(key []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bf.Add(key)
}

// MightContain reports false only when no verdict was ever stored for key.
func (f *filter) MightContain(key []byte) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bf.Test(key)
}
