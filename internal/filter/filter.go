// Package filter implements the seek filter and match filter contracts
// described in spec.md §4.13: a seek filter narrows a scan to a sequence
// of key intervals pushed down to each source before merge, while a match
// filter is a per-record predicate applied during read_while_and_filter,
// chosen by a factory based on the domain's size and sparsity.
package filter

// Interval is a single [Start, End] key range a SeekFilter yields. End is
// exclusive of nothing in particular by itself; the scanner stops once it
// reads a key greater than End.
type Interval struct {
	Start []byte
	End   []byte
}

// SeekFilter produces the ordered sequence of intervals a scanner visits.
// Intervals must be non-overlapping and in ascending order; this is the
// caller's responsibility, not validated here (it mirrors how the scanner
// consuming it is already trusted with seek order elsewhere).
type SeekFilter interface {
	// Intervals returns the full interval sequence.
	Intervals() []Interval
}

// AccessControlledSeekFilter wraps a SeekFilter with a predicate checked
// at each seek boundary before the scanner is allowed to land there,
// per spec.md §4.13's "access-controlled variant".
type AccessControlledSeekFilter struct {
	Inner  SeekFilter
	Allow  func(boundary []byte) bool
}

// Intervals returns only the intervals whose start boundary passes Allow.
func (f *AccessControlledSeekFilter) Intervals() []Interval {
	all := f.Inner.Intervals()
	out := make([]Interval, 0, len(all))
	for _, iv := range all {
		if f.Allow(iv.Start) {
			out = append(out, iv)
		}
	}
	return out
}

// StaticSeekFilter is the common case: a fixed, caller-supplied interval
// list (e.g. a point lookup's single [key, key] interval, or a range
// scan's single [start, end]).
type StaticSeekFilter struct {
	intervals []Interval
}

// NewStaticSeekFilter wraps a fixed interval list.
func NewStaticSeekFilter(intervals []Interval) *StaticSeekFilter {
	return &StaticSeekFilter{intervals: intervals}
}

func (f *StaticSeekFilter) Intervals() []Interval { return f.intervals }

// MatchFilter is a per-record predicate, applied to a record's identifying
// key (or a caller-chosen ID derived from it) after a scanner has already
// passed any SeekFilter narrowing.
type MatchFilter interface {
	// Match reports whether the record with the given id should be kept.
	Match(id uint64) bool
}

// BytesMatchFilter adapts a MatchFilter to operate on raw keys via a
// caller-supplied id extraction function, for callers whose domain ID
// is not naturally a uint64.
type BytesMatchFilter struct {
	Filter  MatchFilter
	KeyToID func(key []byte) uint64
}

func (f *BytesMatchFilter) MatchKey(key []byte) bool {
	return f.Filter.Match(f.KeyToID(key))
}

