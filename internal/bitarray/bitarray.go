// Package bitarray implements the BitArray and NullableLargeArray
// containers described in spec.md §4.2.
//
// Grounded on PriyanshuSharma23-FlashLog's direct dependency on
// github.com/bits-and-blooms/bitset: that package already implements the
// word-trick trailing-ones/trailing-zeros scan spec.md asks for
// (NextSet/NextClear); BitArray wraps it and adds the amortized
// sequential-scan cache spec.md calls out explicitly, which bitset itself
// does not provide.
package bitarray

import "github.com/bits-and-blooms/bitset"

// BitArray supports set/clear/test and amortized first-set/first-cleared
// scans. A single BitArray instance is not safe for concurrent use; callers
// needing concurrency provide their own locking (the allocation bitmap is
// always guarded by the single writer transaction per spec.md §5).
type BitArray struct {
	bits *bitset.BitSet

	// lastSetHit/lastClearHit cache the index of the previous
	// FindFirstSet/FindFirstCleared call so a sequential scan (the common
	// case: allocator probing for the next free block) resumes near
	// where it left off instead of rescanning from zero.
	lastSetHit   uint
	lastClearHit uint
}

// New creates a BitArray with an initial capacity of n bits, all clear.
func New(n uint) *BitArray {
	return &BitArray{bits: bitset.New(n)}
}

// Len returns the number of bits currently addressable. Accessing an index
// >= Len() via Set implicitly grows the array.
func (a *BitArray) Len() uint {
	return a.bits.Len()
}

// Set marks bit i, growing the array if necessary.
func (a *BitArray) Set(i uint) {
	a.bits.Set(i)
}

// Clear unmarks bit i. Clearing an out-of-range bit is a no-op.
func (a *BitArray) Clear(i uint) {
	a.bits.Clear(i)
}

// Test reports whether bit i is set. Out-of-range bits read as clear.
func (a *BitArray) Test(i uint) bool {
	return a.bits.Test(i)
}

// Count returns the number of set bits.
func (a *BitArray) Count() uint {
	return a.bits.Count()
}

// FindFirstSet returns the index of the first set bit at or after the last
// hit (wrapping to a full rescan from zero if the cached position no
// longer yields a hit), and whether one was found.
func (a *BitArray) FindFirstSet() (uint, bool) {
	if idx, ok := a.bits.NextSet(a.lastSetHit); ok {
		a.lastSetHit = idx
		return idx, true
	}
	if a.lastSetHit != 0 {
		if idx, ok := a.bits.NextSet(0); ok {
			a.lastSetHit = idx
			return idx, true
		}
	}
	return 0, false
}

// FindFirstCleared returns the index of the first cleared bit at or after
// the last hit (wrapping to a full rescan from zero if the cached position
// no longer yields a hit). If every tracked bit is set it returns Len(),
// one past the end; the array itself grows only once that index is Set.
func (a *BitArray) FindFirstCleared() uint {
	if idx, ok := a.bits.NextClear(a.lastClearHit); ok {
		a.lastClearHit = idx
		return idx
	}
	if a.lastClearHit != 0 {
		if idx, ok := a.bits.NextClear(0); ok {
			a.lastClearHit = idx
			return idx
		}
	}
	// Every tracked bit is set: the next clear bit is one past the end.
	idx := a.bits.Len()
	a.lastClearHit = idx
	return idx
}

// Clone returns an independent copy of a.
func (a *BitArray) Clone() *BitArray {
	return &BitArray{bits: a.bits.Clone()}
}

// MarshalBinary serializes the bit contents for on-disk persistence (the
// allocation bitmap's blocks, addressed by FileHeaderBlock.AllocBitmapRoot).
func (a *BitArray) MarshalBinary() ([]byte, error) {
	return a.bits.MarshalBinary()
}

// UnmarshalBinary restores a BitArray previously serialized with
// MarshalBinary. Scan-position caches reset to zero.
func (a *BitArray) UnmarshalBinary(data []byte) error {
	bs := &bitset.BitSet{}
	if err := bs.UnmarshalBinary(data); err != nil {
		return err
	}
	a.bits = bs
	a.lastSetHit = 0
	a.lastClearHit = 0
	return nil
}
