package filter

import (
	"math"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/snapdb/snapdb/internal/bitarray"
)

// PointIdBitArray is a MatchFilter backed by internal/bitarray.BitArray,
// giving O(1) membership testing for a dense, small-domain set of IDs
// (spec.md §4.13).
type PointIdBitArray struct {
	bits *bitarray.BitArray
}

// NewPointIdBitArray creates an empty filter sized for IDs up to capacity.
func NewPointIdBitArray(capacity uint) *PointIdBitArray {
	return &PointIdBitArray{bits: bitarray.New(capacity)}
}

// Add marks id as matching.
func (f *PointIdBitArray) Add(id uint64) { f.bits.Set(uint(id)) }

// Match implements MatchFilter.
func (f *PointIdBitArray) Match(id uint64) bool { return f.bits.Test(uint(id)) }

// UIntHashSet is a MatchFilter backed by a plain Go map, sized for small
// sparse domains of 32-bit-range IDs where a bitset would waste memory.
type UIntHashSet struct {
	ids map[uint32]struct{}
}

// NewUIntHashSet creates an empty set with a size hint.
func NewUIntHashSet(sizeHint int) *UIntHashSet {
	return &UIntHashSet{ids: make(map[uint32]struct{}, sizeHint)}
}

// Add marks id as matching.
func (f *UIntHashSet) Add(id uint32) { f.ids[id] = struct{}{} }

// Match implements MatchFilter.
func (f *UIntHashSet) Match(id uint64) bool {
	if id > math.MaxUint32 {
		return false
	}
	_, ok := f.ids[uint32(id)]
	return ok
}

// ULongHashSet is a MatchFilter backed by a plain Go map over the full
// uint64 domain, for sparse large-domain IDs where a BloomMatchFilter's
// false positives are unacceptable.
type ULongHashSet struct {
	ids map[uint64]struct{}
}

// NewULongHashSet creates an empty set with a size hint.
func NewULongHashSet(sizeHint int) *ULongHashSet {
	return &ULongHashSet{ids: make(map[uint64]struct{}, sizeHint)}
}

// Add marks id as matching.
func (f *ULongHashSet) Add(id uint64) { f.ids[id] = struct{}{} }

// Match implements MatchFilter.
func (f *ULongHashSet) Match(id uint64) bool {
	_, ok := f.ids[id]
	return ok
}

// BloomMatchFilter is a probabilistic MatchFilter for sparse, large-domain
// ID sets where exact membership would cost more memory than the false
// positive rate is worth (spec.md §4.13's supplemented implementation).
// A positive match must still be confirmed against the actual record; a
// BloomMatchFilter never produces false negatives.
type BloomMatchFilter struct {
	filter *bloom.BloomFilter
}

// NewBloomMatchFilter creates a filter sized for n expected entries at the
// given target false-positive rate.
func NewBloomMatchFilter(n uint, falsePositiveRate float64) *BloomMatchFilter {
	return &BloomMatchFilter{filter: bloom.NewWithEstimates(n, falsePositiveRate)}
}

// Add marks id as matching.
func (f *BloomMatchFilter) Add(id uint64) {
	var buf [8]byte
	putUint64(buf[:], id)
	f.filter.Add(buf[:])
}

// Match implements MatchFilter. May return a false positive; never a
// false negative for an id previously Added.
func (f *BloomMatchFilter) Match(id uint64) bool {
	var buf [8]byte
	putUint64(buf[:], id)
	return f.filter.Test(buf[:])
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
}

// DomainStats summarizes a candidate ID set's shape for the factory's
// dense-vs-sparse, small-vs-large decision.
type DomainStats struct {
	// Count is the expected number of IDs the filter will hold.
	Count uint
	// MaxID is the largest ID value expected (0 if unknown/unbounded).
	MaxID uint64
	// DenseThreshold is the maximum MaxID for which a bitset is
	// considered memory-efficient; callers may leave it 0 to accept the
	// factory's default.
	DenseThreshold uint64
}

// defaultDenseThreshold bounds how large a bitset the factory will build
// for a "dense small domain" before preferring a hash set or bloom filter
// instead.
const defaultDenseThreshold = 1 << 20

// NewMatchFilter picks a MatchFilter implementation from stats, per
// spec.md §4.13: bitset for dense small domains, a hash set for small
// sparse domains, bloom for large sparse domains.
func NewMatchFilter(stats DomainStats) MatchFilter {
	threshold := stats.DenseThreshold
	if threshold == 0 {
		threshold = defaultDenseThreshold
	}

	switch {
	case stats.MaxID > 0 && stats.MaxID <= threshold:
		return NewPointIdBitArray(uint(stats.MaxID) + 1)
	case stats.Count > 0 && stats.Count <= 4096:
		return NewULongHashSet(int(stats.Count))
	default:
		n := stats.Count
		if n == 0 {
			n = 1024
		}
		return NewBloomMatchFilter(n, 0.01)
	}
}
