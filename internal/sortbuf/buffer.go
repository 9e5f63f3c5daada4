// Package sortbuf provides the in-memory staging buffer behind the
// non-sequential bulk writer (spec.md §4.11): packed records arrive in
// arbitrary order, duplicates are rejected by their fixed-width key
// prefix at insert time, and the whole buffer drains once in key order
// into the sequential tree builder.
//
// The buffer is deliberately not an ordered structure. Its one consumer
// is a single writer that accumulates everything and then drains exactly
// once, so sorting at drain time costs one O(n log n) pass total, while
// keeping insert at a hash probe plus an append. Duplicate detection
// cannot wait for the sort because the caller needs the error on the
// offending Insert, not at Finish.
package sortbuf

import (
	"bytes"
	"sort"
)

// Buffer accumulates packed key+value records whose first keySize bytes
// are the ordering key. Not safe for concurrent use; the bulk writer is
// a single writer by contract (spec.md §5).
type Buffer struct {
	keySize int
	index   map[string]struct{}
	recs    [][]byte
	bytes   int
	sorted  bool
}

// New creates an empty Buffer for records keyed on their first keySize
// bytes.
func New(keySize int) *Buffer {
	return &Buffer{
		keySize: keySize,
		index:   make(map[string]struct{}),
	}
}

// Insert copies rec into the buffer, reporting false if a record with the
// same key prefix was already inserted.
func (b *Buffer) Insert(rec []byte) bool {
	key := string(rec[:b.keySize])
	if _, dup := b.index[key]; dup {
		return false
	}
	b.index[key] = struct{}{}
	b.recs = append(b.recs, append([]byte(nil), rec...))
	b.bytes += len(rec)
	b.sorted = false
	return true
}

// Len returns the number of buffered records.
func (b *Buffer) Len() int { return len(b.recs) }

// UsedBytes returns the total record bytes held, for callers bounding the
// buffer before draining it.
func (b *Buffer) UsedBytes() int { return b.bytes }

// Scan calls fn on every record in ascending key order, sorting first if
// anything was inserted since the last scan. An error from fn stops the
// scan and is returned.
func (b *Buffer) Scan(fn func(rec []byte) error) error {
	if !b.sorted {
		sort.Slice(b.recs, func(i, j int) bool {
			return bytes.Compare(b.recs[i][:b.keySize], b.recs[j][:b.keySize]) < 0
		})
		b.sorted = true
	}
	for _, rec := range b.recs {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}
