package block

import (
	"encoding/binary"
	"errors"

	"github.com/snapdb/snapdb/internal/checksum"
)

// HeaderFixedSize is the size in bytes of a NodeHeader excluding its two
// variable-width (KeySize) bound keys.
const HeaderFixedSize = 1 + 1 + 2 + 2 + 4 + 4

// NilSibling is the sentinel left/right sibling block index meaning "no
// sibling in that direction".
const NilSibling uint32 = ^uint32(0)

// ErrBadNodeHeader is returned when a node header cannot be decoded.
var ErrBadNodeHeader = errors.New("block: bad node header")

// NodeHeader is the fixed-offset header stored at the start of every
// sorted-tree node block, per spec.md §3:
//
//	version            (1 byte)
//	level              (1 byte; 0 = leaf)
//	record count       (u16)
//	valid bytes used   (u16)
//	left sibling block index  (u32)
//	right sibling block index (u32)
//	lower-bound key    (KeySize bytes)
//	upper-bound key    (KeySize bytes)
type NodeHeader struct {
	Version        uint8
	Level          uint8
	RecordCount    uint16
	ValidBytesUsed uint16
	LeftSibling    uint32
	RightSibling   uint32
	LowerBound     []byte
	UpperBound     []byte
}

// IsLeaf reports whether this header describes a leaf (level 0) node.
func (h *NodeHeader) IsLeaf() bool {
	return h.Level == 0
}

// EncodedSize returns the on-disk size of h for the given key size.
func (h *NodeHeader) EncodedSize(keySize int) int {
	return HeaderFixedSize + 2*keySize
}

// EncodeTo writes h into the first EncodedSize(len(h.LowerBound)) bytes of
// dst. len(h.LowerBound) must equal len(h.UpperBound) (the sub-file's fixed
// key size).
func (h *NodeHeader) EncodeTo(dst []byte) error {
	keySize := len(h.LowerBound)
	if len(h.UpperBound) != keySize {
		return ErrBadNodeHeader
	}
	need := h.EncodedSize(keySize)
	if len(dst) < need {
		return ErrBadNodeHeader
	}

	dst[0] = h.Version
	dst[1] = h.Level
	binary.LittleEndian.PutUint16(dst[2:4], h.RecordCount)
	binary.LittleEndian.PutUint16(dst[4:6], h.ValidBytesUsed)
	binary.LittleEndian.PutUint32(dst[6:10], h.LeftSibling)
	binary.LittleEndian.PutUint32(dst[10:14], h.RightSibling)
	copy(dst[14:14+keySize], h.LowerBound)
	copy(dst[14+keySize:14+2*keySize], h.UpperBound)
	return nil
}

// DecodeNodeHeader decodes a NodeHeader of the given key size from the
// front of data, returning the header and the remaining bytes (the record
// area plus trailer).
func DecodeNodeHeader(data []byte, keySize int) (*NodeHeader, []byte, error) {
	need := HeaderFixedSize + 2*keySize
	if len(data) < need {
		return nil, nil, ErrBadNodeHeader
	}

	h := &NodeHeader{
		Version:        data[0],
		Level:          data[1],
		RecordCount:    binary.LittleEndian.Uint16(data[2:4]),
		ValidBytesUsed: binary.LittleEndian.Uint16(data[4:6]),
		LeftSibling:    binary.LittleEndian.Uint32(data[6:10]),
		RightSibling:   binary.LittleEndian.Uint32(data[10:14]),
	}
	h.LowerBound = append([]byte(nil), data[14:14+keySize]...)
	h.UpperBound = append([]byte(nil), data[14+keySize:14+2*keySize]...)

	return h, data[need:], nil
}

// RecordAreaSize returns the number of bytes available for records between
// the header and the trailer, for a block of the given total size.
func RecordAreaSize(blockSize, keySize int) int {
	return blockSize - (HeaderFixedSize + 2*keySize) - checksum.TrailerSize
}
