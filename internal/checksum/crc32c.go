// Package checksum provides the content-checksum algorithms a sub-file can
// select for its ambient, out-of-band ContentChecksumKind/ContentChecksum
// fields (spec.md §4.3's per-block Murmur3 trailer is separate and
// mandatory; this package covers the optional whole-sub-file audit sum).
//
// This package implements:
// - CRC32C (Castagnoli), with Mask/Unmask for storing a CRC inside data
//   that is itself checksummed
// - XXHash64 and XXH3
//
// Reference: Castagnoli CRC32C polynomial (RFC 3720 Annex B).
package checksum

import (
	"hash/crc32"
)

// crc32cTable is the Castagnoli polynomial table used for CRC32C.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// maskDelta is the constant added during masking.
const maskDelta = 0xa282ead8

// Value computes the CRC32C checksum of data.
func Value(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// Extend computes the CRC32C of concat(A, data) where initCRC is the CRC32C of A.
func Extend(initCRC uint32, data []byte) uint32 {
	return crc32.Update(initCRC, crc32cTable, data)
}

// Mask returns a masked representation of crc.
//
// A sub-file's ContentChecksum is itself stored in a header block; masking
// before storage avoids a CRC of a buffer that embeds its own CRC.
func Mask(crc uint32) uint32 {
	// Rotate right by 15 bits and add a constant.
	return ((crc >> 15) | (crc << 17)) + maskDelta
}

// Unmask returns the crc whose masked representation is maskedCRC.
func Unmask(maskedCRC uint32) uint32 {
	rot := maskedCRC - maskDelta
	return (rot >> 17) | (rot << 15)
}

// MaskedValue computes the CRC32C and masks it in one call.
// This is a convenience function equivalent to Mask(Value(data)).
func MaskedValue(data []byte) uint32 {
	return Mask(Value(data))
}

// MaskedExtend extends an existing CRC and masks the result.
// This is equivalent to Mask(Extend(initCRC, data)).
func MaskedExtend(initCRC uint32, data []byte) uint32 {
	return Mask(Extend(initCRC, data))
}
