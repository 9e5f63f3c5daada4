package tree

import (
	"github.com/snapdb/snapdb/internal/checksum"
	"github.com/snapdb/snapdb/internal/encoding"
	"github.com/snapdb/snapdb/internal/filestructure"
	"github.com/snapdb/snapdb/internal/subfile"
)

// Store binds a sub-file's session pool, its pair encoding, and (for
// writers) the enclosing transaction's allocator together, so the
// scanner/writer/builder in this package never touch diskio.Session or
// filestructure.Transaction directly. Level 0 (leaf) nodes are loaded and
// staged through the pool's Data session pair; level >= 1 (internal)
// nodes go through the Index pair, per spec.md §4.5.
type Store struct {
	Pool     *subfile.Pool
	Enc      encoding.PairEncoding
	KeySize  int
	PageSize int

	// Txn is the open write transaction backing AllocateBlocks/FreeBlock.
	// Nil for a read-only Store (Scanner never needs it).
	Txn *filestructure.Transaction
}

// LoadNode reads and decodes the node at blockIdx, choosing the Data or
// Index session by the expected level (0 = leaf, the caller always knows
// this in advance from the parent's level - 1 or the sub-file's recorded
// tree height).
func (s *Store) LoadNode(blockIdx uint32, expectLeaf bool) (*Node, error) {
	sess := s.Pool.Source()
	session := sess.Index
	if expectLeaf {
		session = sess.Data
	}
	raw, err := session.Load(blockIdx)
	if err != nil {
		return nil, err
	}
	n, err := LoadNode(raw, blockIdx, s.KeySize)
	if err != nil {
		return nil, err
	}
	if n.IsLeaf() != expectLeaf {
		return nil, ErrBlockTypeMismatch
	}
	return n, nil
}

// AllocateNode reserves one fresh block index via the transaction's
// allocator (so the allocation bitmap stays authoritative) and stages the
// encoded node into it through the Destination session pair, matching
// spec.md §3's "created by the writer acquiring a fresh block" lifecycle.
func (s *Store) AllocateNode(n *Node) (uint32, error) {
	idx, err := s.allocate(1)
	if err != nil {
		return 0, err
	}
	n.BlockIdx = idx[0]
	if err := s.stage(n, checksum.StatusValid); err != nil {
		return 0, err
	}
	return idx[0], nil
}

func (s *Store) allocate(n uint32) ([]uint32, error) {
	return s.Txn.AllocateBlocks(n)
}

// StageNode re-encodes n and stages it at its existing BlockIdx (used for
// a block this same transaction already allocated, so re-staging it is
// still invisible to any reader holding an older snapshot).
func (s *Store) StageNode(n *Node) error {
	return s.stage(n, checksum.StatusValid)
}

func (s *Store) stage(n *Node, status checksum.Status) error {
	raw, err := n.Encode(s.PageSize, status)
	if err != nil {
		return err
	}
	dest, err := s.Pool.Destination()
	if err != nil {
		return err
	}
	session := dest.Index
	if n.IsLeaf() {
		session = dest.Data
	}
	return session.Stage(n.BlockIdx, raw)
}

// FreeNode defers blockIdx to the transaction's free list, released only
// once Commit succeeds (spec.md §4.6: "freeing defers to commit").
func (s *Store) FreeNode(blockIdx uint32) error {
	return s.Txn.FreeBlock(blockIdx)
}

// Promote swaps the Destination session pairs into Source, making every
// block staged during this operation visible to subsequent reads within
// the same transaction (spec.md §4.5's swap_data/swap_index).
func (s *Store) Promote() error {
	if err := s.Pool.SwapData(); err != nil {
		return err
	}
	return s.Pool.SwapIndex()
}
