package bloom

import (
	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/linkvet/internal/vet/repos/verdicts"
)

const (
	minCapacity   = 1024
	defaultFPRate = 0.01
)

// factory implements verdicts.BloomFactory on top of bits-and-blooms' estimator.
type factory struct{}

// NewFactory returns a BloomFactory that sizes filters from capacity and FP rate.
func NewFactory() verdicts.BloomFactory { return factory{} }

// New constructs a filter for capacity keys at the target false-positive
// rate. Small capacities are raised so URLs recorded during the run do not
// saturate the filter; an invalid rate falls back to 1%.
func (factory) New(capacity uint64, fpRate float64) verdicts.BloomFilter {
	if capacity < minCapacity {
		capacity = minCapacity
	}
	if !(fpRate > 0 && fpRate < 1) {
		fpRate = defaultFPRate
	}
	return &filter{bf: bitsbloom.NewWithEstimates(uint(capacity), fpRate)}
}
