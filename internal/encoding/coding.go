// coding.go holds the binary field primitives the pair encodings and the
// on-disk header layouts are assembled from: little-endian fixed-width
// fields (the node header and FileHeaderBlock layouts in spec.md §3/§6 are
// little-endian), unsigned LEB128 varints, zigzag-signed varints for the
// delta encodings, and varint-length-prefixed byte strings for sub-file
// names.
//
// Everything here is a thin veneer over encoding/binary — the stdlib
// already speaks LEB128 and zigzag — existing only to give the callers an
// (value, bytesRead, error) shape and to fold the stdlib's negative/zero
// return-count convention into real errors once, in one place.
package encoding

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrMalformedVarint is returned when a varint field does not terminate
// within the buffer or exceeds the range of its declared width.
var ErrMalformedVarint = errors.New("encoding: malformed varint")

// AppendFixed16 appends v as 2 little-endian bytes.
func AppendFixed16(dst []byte, v uint16) []byte {
	return binary.LittleEndian.AppendUint16(dst, v)
}

// AppendFixed32 appends v as 4 little-endian bytes.
func AppendFixed32(dst []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(dst, v)
}

// AppendFixed64 appends v as 8 little-endian bytes.
func AppendFixed64(dst []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(dst, v)
}

// DecodeFixed16 reads 2 little-endian bytes. src must hold at least 2.
func DecodeFixed16(src []byte) uint16 {
	return binary.LittleEndian.Uint16(src)
}

// DecodeFixed32 reads 4 little-endian bytes. src must hold at least 4.
func DecodeFixed32(src []byte) uint32 {
	return binary.LittleEndian.Uint32(src)
}

// DecodeFixed64 reads 8 little-endian bytes. src must hold at least 8.
func DecodeFixed64(src []byte) uint64 {
	return binary.LittleEndian.Uint64(src)
}

// AppendVarint32 appends v in unsigned LEB128 form (at most 5 bytes).
func AppendVarint32(dst []byte, v uint32) []byte {
	return binary.AppendUvarint(dst, uint64(v))
}

// DecodeVarint32 reads an unsigned LEB128 varint from the front of src,
// rejecting values that do not fit in 32 bits.
func DecodeVarint32(src []byte) (v uint32, n int, err error) {
	u, n := binary.Uvarint(src)
	if n <= 0 || u > math.MaxUint32 {
		return 0, 0, ErrMalformedVarint
	}
	return uint32(u), n, nil
}

// AppendVarsignedint64 appends v zigzag-folded into an unsigned LEB128
// varint (at most 10 bytes), the form the delta pair encodings store
// key/value differences in.
func AppendVarsignedint64(dst []byte, v int64) []byte {
	return binary.AppendVarint(dst, v)
}

// DecodeVarsignedint64 reads a zigzag varint from the front of src.
func DecodeVarsignedint64(src []byte) (v int64, n int, err error) {
	v, n = binary.Varint(src)
	if n <= 0 {
		return 0, 0, ErrMalformedVarint
	}
	return v, n, nil
}

// AppendLengthPrefixedSlice appends value behind a varint byte count.
func AppendLengthPrefixedSlice(dst, value []byte) []byte {
	dst = AppendVarint32(dst, uint32(len(value)))
	return append(dst, value...)
}

// DecodeLengthPrefixedSlice reads a varint byte count and that many bytes
// from the front of src. The returned slice aliases src.
func DecodeLengthPrefixedSlice(src []byte) (value []byte, n int, err error) {
	length, n, err := DecodeVarint32(src)
	if err != nil {
		return nil, 0, err
	}
	end := n + int(length)
	if end > len(src) {
		return nil, 0, ErrShortBuffer
	}
	return src[n:end], end, nil
}
