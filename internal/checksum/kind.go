// kind.go defines the ambient content-checksum algorithm selector stored in
// a SubFileHeader (spec.md §4.3/§6): SnapDB records one whole-sub-file
// checksum, chosen from this set, independent of the mandatory per-block
// Murmur3 trailer computed by trailer.go.
package checksum

// Kind identifies a content-checksum algorithm.
type Kind uint8

const (
	// KindNone means no content checksum is recorded.
	KindNone Kind = 0
	// KindCRC32C is CRC32C (Castagnoli).
	KindCRC32C Kind = 1
	// KindXXHash64 is 64-bit XXHash.
	KindXXHash64 Kind = 3
	// KindXXH3 is XXH3-64.
	KindXXH3 Kind = 4
)

// String returns a human-readable name for the checksum kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindCRC32C:
		return "CRC32C"
	case KindXXHash64:
		return "XXHash64"
	case KindXXH3:
		return "XXH3"
	default:
		return "Unknown"
	}
}

// ComputeCRC32CChecksumWithLastByte computes CRC32C checksum with a separate last byte.
func ComputeCRC32CChecksumWithLastByte(data []byte, lastByte byte) uint32 {
	crc := Value(data)
	crc = Extend(crc, []byte{lastByte})
	return Mask(crc)
}

// ComputeXXH3ChecksumWithLastByte computes XXH3 checksum with a separate last byte.
func ComputeXXH3ChecksumWithLastByte(data []byte, lastByte byte) uint32 {
	return XXH3ChecksumWithLastByte(data, lastByte)
}

// ComputeXXHash64ChecksumWithLastByte computes XXHash64 checksum with a separate last byte.
func ComputeXXHash64ChecksumWithLastByte(data []byte, lastByte byte) uint32 {
	return XXHash64ChecksumWithLastByte(data, lastByte)
}

// ComputeContentChecksum computes a whole-sub-file content checksum of the
// given kind over data, with lastByte folded in the same way block checksums
// fold in their compression-type byte.
func ComputeContentChecksum(k Kind, data []byte, lastByte byte) uint32 {
	switch k {
	case KindCRC32C:
		return ComputeCRC32CChecksumWithLastByte(data, lastByte)
	case KindXXHash64:
		return ComputeXXHash64ChecksumWithLastByte(data, lastByte)
	case KindXXH3:
		return ComputeXXH3ChecksumWithLastByte(data, lastByte)
	case KindNone:
		return 0
	default:
		return 0
	}
}
