// Package bloom backs the remote list prefilter with bits-and-blooms filters.
package bloom

import (
	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/tempmail-gate/internal/gate/repos/blocklist"
)

// minCapacity keeps a small or empty remote list from producing a filter
// that saturates after a handful of entries.
const minCapacity = 64

// defaultFPRate applies when the requested rate is outside (0, 1).
const defaultFPRate = 0.001

type factory struct{}

// NewFactory returns a BloomFactory sized by the library's own estimates.
func NewFactory() blocklist.BloomFactory { return factory{} }

// New constructs a filter for capacity entries at the target false-positive
// rate.
func (factory) New(capacity uint64, fpRate float64) blocklist.BloomFilter {
	if capacity < minCapacity {
		capacity = minCapacity
	}
	if !(fpRate > 0 && fpRate < 1) {
		fpRate = defaultFPRate
	}
	return filter{bf: bitsbloom.NewWithEstimates(uint(capacity), fpRate)}
}

// filter is filled while one remote snapshot is indexed and only read once
// the index is published.
type filter struct {
	bf *bitsbloom.BloomFilter
}

func (f filter) Add(key []byte) { f.bf.Add(key) }

func (f filter) MightContain(key []byte) bool { return f.bf.Test(key) }
