package tree

import (
	"bytes"
	"sort"
	"sync/atomic"

	"github.com/snapdb/snapdb/internal/block"
	"github.com/snapdb/snapdb/internal/filter"
)

// Scanner is a single-session, non-clonable cursor over one sub-file's
// sorted tree (spec.md §4.9). It holds exactly one decoded leaf's records
// at a time and advances across leaves by following right-sibling
// pointers, never re-consulting the root except on an explicit Seek.
type Scanner struct {
	store     *Store
	valueSize int
	root      uint32
	height    uint8

	cur     *Node
	records []Record
	pos     int

	canceled atomic.Bool
}

// NewScanner returns a Scanner over the tree rooted at root with the given
// height (number of levels from root to leaf, inclusive; a lone leaf root
// has height 1, matching spec.md §4.7's "height >= 1 always").
func NewScanner(store *Store, root uint32, height uint8, valueSize int) *Scanner {
	return &Scanner{store: store, root: root, height: height, valueSize: valueSize}
}

// Cancel sets the scanner's cooperative cancel flag (spec.md §5): the next
// Read/ReadWhile call returns ErrCanceled promptly instead of continuing.
func (s *Scanner) Cancel() { s.canceled.Store(true) }

// Canceled reports whether Cancel has been called.
func (s *Scanner) Canceled() bool { return s.canceled.Load() }

// SeekToStart positions the scanner at the first record in the tree.
func (s *Scanner) SeekToStart() error { return s.seek(nil) }

// Seek positions the scanner at the first record with key >= target,
// walking root-to-leaf with a binary search at each internal level
// (spec.md §4.9's seek algorithm), then tolerating one pending concurrent
// split by following at most one right sibling when the leaf reached ends
// below target.
func (s *Scanner) Seek(target []byte) error { return s.seek(target) }

func (s *Scanner) seek(target []byte) error {
	blockIdx := s.root
	level := s.height

	for level > 1 {
		node, err := s.store.LoadNode(blockIdx, false)
		if err != nil {
			return err
		}
		blockIdx = chooseChild(node.Separators, target)
		level--
	}

	leaf, err := s.store.LoadNode(blockIdx, true)
	if err != nil {
		return err
	}
	// One retry through the sibling chain tolerates a split observed
	// mid-traversal. The scanner does not re-seek from the root: if the
	// leaf reached by that one hop still ends below target, it is read as
	// is and no error is reported.
	if target != nil && len(leaf.Header.UpperBound) > 0 &&
		bytes.Compare(leaf.Header.UpperBound, target) < 0 &&
		leaf.Header.RightSibling != block.NilSibling {
		leaf, err = s.store.LoadNode(leaf.Header.RightSibling, true)
		if err != nil {
			return err
		}
	}

	records, err := DecodeLeafRecords(s.store.Enc, leaf.RecordBytes, s.store.KeySize, s.valueSize)
	if err != nil {
		return err
	}
	s.cur = leaf
	s.records = records
	if target == nil {
		s.pos = 0
	} else {
		s.pos = sort.Search(len(records), func(i int) bool {
			return bytes.Compare(records[i].Key, target) >= 0
		})
	}
	return nil
}

// chooseChild binary searches node's separators (ascending by Key) for
// the child whose range contains target, or the first child when target
// is nil (seek-to-start).
func chooseChild(seps []Separator, target []byte) uint32 {
	if target == nil || len(seps) == 0 {
		if len(seps) == 0 {
			return block.NilSibling
		}
		return seps[0].Child
	}
	i := sort.Search(len(seps), func(i int) bool {
		return bytes.Compare(seps[i].Key, target) > 0
	})
	if i == 0 {
		return seps[0].Child
	}
	return seps[i-1].Child
}

// advance returns the next record in key order, loading the right
// sibling leaf when the current one is exhausted. ok is false exactly
// when the scan has reached the end of the tree.
func (s *Scanner) advance() (rec Record, ok bool, err error) {
	for {
		if s.cur == nil {
			return Record{}, false, nil
		}
		if s.pos < len(s.records) {
			rec = s.records[s.pos]
			s.pos++
			return rec, true, nil
		}
		if s.cur.Header.RightSibling == block.NilSibling {
			s.cur = nil
			return Record{}, false, nil
		}
		next, err := s.store.LoadNode(s.cur.Header.RightSibling, true)
		if err != nil {
			return Record{}, false, err
		}
		records, err := DecodeLeafRecords(s.store.Enc, next.RecordBytes, s.store.KeySize, s.valueSize)
		if err != nil {
			return Record{}, false, err
		}
		s.cur = next
		s.records = records
		s.pos = 0
	}
}

// unread pushes the most recently returned record back onto the front of
// the current window, for ReadWhile's upper-bound lookahead.
func (s *Scanner) unread() { s.pos-- }

// Read returns the next (key, value) pair and advances the cursor. ok is
// false once the scan is exhausted.
func (s *Scanner) Read() (key, value []byte, ok bool, err error) {
	if s.canceled.Load() {
		return nil, nil, false, ErrCanceled
	}
	rec, ok, err := s.advance()
	if err != nil || !ok {
		return nil, nil, false, err
	}
	return rec.Key, rec.Value, true, nil
}

// Peek returns the next (key, value) pair without advancing the cursor.
func (s *Scanner) Peek() (key, value []byte, ok bool, err error) {
	if s.canceled.Load() {
		return nil, nil, false, ErrCanceled
	}
	rec, ok, err := s.advance()
	if err != nil || !ok {
		return nil, nil, false, err
	}
	s.unread()
	return rec.Key, rec.Value, true, nil
}

// ReadWhile returns the next record if its key is <= upperBound, leaving
// the cursor positioned just before it (for a subsequent Seek/ReadWhile)
// otherwise.
func (s *Scanner) ReadWhile(upperBound []byte) (key, value []byte, ok bool, err error) {
	if s.canceled.Load() {
		return nil, nil, false, ErrCanceled
	}
	rec, ok, err := s.advance()
	if err != nil || !ok {
		return nil, nil, false, err
	}
	if upperBound != nil && bytes.Compare(rec.Key, upperBound) > 0 {
		s.unread()
		return nil, nil, false, nil
	}
	return rec.Key, rec.Value, true, nil
}

// ReadWhileAndFilter is ReadWhile with a per-record MatchFilter predicate
// applied after the upper-bound check; records the filter rejects are
// skipped transparently (they still count toward advancing the cursor).
func (s *Scanner) ReadWhileAndFilter(upperBound []byte, match *filter.BytesMatchFilter) (key, value []byte, ok bool, err error) {
	for {
		key, value, ok, err = s.ReadWhile(upperBound)
		if err != nil || !ok {
			return key, value, ok, err
		}
		if match == nil || match.MatchKey(key) {
			return key, value, true, nil
		}
	}
}
