package tree

import (
	"github.com/snapdb/snapdb/internal/block"
	"github.com/snapdb/snapdb/internal/checksum"
	"github.com/snapdb/snapdb/internal/encoding"
)

// Separator is one internal-node record (spec.md §3/§4.7): a fixed-width
// key and the block index of the child subtree holding every key in
// [this separator's key, the next separator's key).
type Separator struct {
	Key   []byte
	Child uint32
}

func separatorSize(keySize int) int { return keySize + 4 }

// Node is a decoded sorted-tree node. Exactly one of RecordBytes (leaf) or
// Separators (internal, level >= 1) is populated, selected by
// Header.IsLeaf().
type Node struct {
	Header   *block.NodeHeader
	BlockIdx uint32
	KeySize  int

	// RecordBytes is the leaf's raw, framed pair-encoded record stream
	// (ValidBytesUsed bytes long), decoded lazily by a Scanner via the
	// sub-file's PairEncoding. Populated only when Header.IsLeaf().
	RecordBytes []byte

	// LeafRecordCount is the number of decoded records RecordBytes holds,
	// set explicitly by whoever builds the leaf (the framing itself is
	// self-delimiting, so this is informational header metadata only,
	// not required to decode).
	LeafRecordCount int

	// Separators is the internal node's decoded child-pointer array, in
	// ascending key order, len(Separators) == Header.RecordCount.
	// Populated only when !Header.IsLeaf().
	Separators []Separator
}

func (n *Node) IsLeaf() bool { return n.Header.IsLeaf() }

// NewLeaf returns an empty leaf node header/body pair for keySize-wide
// bound keys.
func NewLeaf(blockIdx uint32, keySize int) *Node {
	return &Node{
		Header: &block.NodeHeader{
			Version:     1,
			Level:       0,
			LeftSibling: block.NilSibling,
			RightSibling: block.NilSibling,
			LowerBound:  make([]byte, keySize),
			UpperBound:  make([]byte, keySize),
		},
		BlockIdx: blockIdx,
		KeySize:  keySize,
	}
}

// NewInternal returns an empty internal node at the given tree level
// (>= 1).
func NewInternal(blockIdx uint32, level uint8, keySize int) *Node {
	return &Node{
		Header: &block.NodeHeader{
			Version:      1,
			Level:        level,
			LeftSibling:  block.NilSibling,
			RightSibling: block.NilSibling,
			LowerBound:   make([]byte, keySize),
			UpperBound:   make([]byte, keySize),
		},
		BlockIdx: blockIdx,
		KeySize:  keySize,
	}
}

// LoadNode decodes the node stored in raw (one full, PageSize()-length
// block), verifying its trailer checksum first (spec.md invariant 5: a
// block's status must be Valid when loaded unless recomputation is
// pending).
func LoadNode(raw []byte, blockIdx uint32, keySize int) (*Node, error) {
	status, ok := checksum.VerifyTrailer(raw)
	if !ok {
		return nil, ErrChecksumInvalid
	}
	if status != checksum.StatusValid && status != checksum.StatusMustBeRecomputed {
		return nil, ErrChecksumInvalid
	}

	payload := raw[:len(raw)-checksum.TrailerSize]
	h, rest, err := block.DecodeNodeHeader(payload, keySize)
	if err != nil {
		return nil, err
	}
	n := &Node{Header: h, BlockIdx: blockIdx, KeySize: keySize}
	if int(h.ValidBytesUsed) > len(rest) {
		return nil, ErrCorruptNode
	}
	body := rest[:h.ValidBytesUsed]

	if h.IsLeaf() {
		n.RecordBytes = append([]byte(nil), body...)
		n.LeafRecordCount = int(h.RecordCount)
		return n, nil
	}

	recSize := separatorSize(keySize)
	seps := make([]Separator, 0, h.RecordCount)
	for i := 0; i < int(h.RecordCount); i++ {
		off := i * recSize
		if off+recSize > len(body) {
			return nil, ErrCorruptNode
		}
		key := append([]byte(nil), body[off:off+keySize]...)
		child := encoding.DecodeFixed32(body[off+keySize : off+recSize])
		seps = append(seps, Separator{Key: key, Child: child})
	}
	n.Separators = seps
	return n, nil
}

// bodyBytes returns the node's record-area content, re-encoding the
// internal separator array when necessary.
func (n *Node) bodyBytes() []byte {
	if n.Header.IsLeaf() {
		return n.RecordBytes
	}
	recSize := separatorSize(n.KeySize)
	body := make([]byte, 0, len(n.Separators)*recSize)
	for _, s := range n.Separators {
		body = append(body, s.Key...)
		body = encoding.AppendFixed32(body, s.Child)
	}
	return body
}

// Encode serializes n into a full pageSize-length block and stamps its
// trailer with status. Store stages every node it writes with
// StatusValid.
func (n *Node) Encode(pageSize int, status checksum.Status) ([]byte, error) {
	body := n.bodyBytes()
	if !n.Header.IsLeaf() {
		n.Header.RecordCount = uint16(len(n.Separators))
	} else {
		n.Header.RecordCount = uint16(n.LeafRecordCount)
	}
	n.Header.ValidBytesUsed = uint16(len(body))

	out := make([]byte, pageSize)
	hdrSize := n.Header.EncodedSize(n.KeySize)
	if hdrSize+len(body) > pageSize-checksum.TrailerSize {
		return nil, ErrCorruptNode
	}
	if err := n.Header.EncodeTo(out[:hdrSize]); err != nil {
		return nil, err
	}
	copy(out[hdrSize:], body)
	checksum.WriteTrailer(out, status)
	return out, nil
}

// FreeBytes returns the number of bytes still available in the node's
// record area for the given block size.
func (n *Node) FreeBytes(pageSize int) int {
	return block.RecordAreaSize(pageSize, n.KeySize) - len(n.bodyBytes())
}

// FirstSeparatorKey returns an internal node's first separator key, or nil
// when the node has no separators (always the case for a leaf, whose keys
// are decoded from RecordBytes via the sub-file's PairEncoding; see
// Scanner).
func (n *Node) FirstSeparatorKey() []byte {
	if len(n.Separators) == 0 {
		return nil
	}
	return n.Separators[0].Key
}
