package orchestrator

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// DedupFilter is a probabilistic fast-path ahead of the persistence layer's
// content_hash unique constraint (spec.md §4.5's bloom pre-check, grounded
// on the teacher's pkg/storage/cache/bloom_exchange.go /
// pkg/core/index/bloom_filter.go use of bits-and-blooms/bloom). The filter
// starts empty and only holds hashes this process has added. A miss skips
// the database lookup; a hash stored before the filter saw it is then
// caught by the unique constraint at insert time. A hit still requires the
// real database check, since bloom filters produce false positives — it is
// an optimization, never the source of truth for "duplicate".
type DedupFilter struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewDedupFilter sizes the filter for expectedItems at the given false
// positive rate.
func NewDedupFilter(expectedItems uint, falsePositiveRate float64) *DedupFilter {
	return &DedupFilter{filter: bloom.NewWithEstimates(expectedItems, falsePositiveRate)}
}

// MightContain reports whether hash may already have been added. false
// means this filter has never been given hash; true requires the real DB
// check.
func (d *DedupFilter) MightContain(hash string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.filter.TestString(hash)
}

// Add records hash as seen.
func (d *DedupFilter) Add(hash string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.filter.AddString(hash)
}
