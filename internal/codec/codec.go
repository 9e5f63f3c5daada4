// Package codec implements the selectable value-compression codecs
// backing CompressedBlobEncoding: a pair encoding may choose to
// compress its value payload before framing it into a leaf record. This
// is not the block-trailer format (that stays bit-exact and
// uncompressed) — it is a per-record payload transform a
// codec-aware encoding opts into.
//
// Grounded on an internal/compression package, trimmed to three
// algorithms (Snappy, LZ4, Zstd); RocksDB's zlib/bzip2/LZ4HC/Xpress
// variants served a table-level block-compression concern this design
// does not have and are dropped.
package codec

import (
	"fmt"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Kind identifies a value-compression codec a CompressedBlobEncoding may
// select at sub-file creation.
type Kind uint8

const (
	// None stores the value payload uncompressed.
	None Kind = 0
	// Snappy compresses with Google Snappy.
	Snappy Kind = 1
	// LZ4 compresses with LZ4 raw block format.
	LZ4 Kind = 2
	// Zstd compresses with Zstandard.
	Zstd Kind = 3
)

func (k Kind) String() string {
	switch k {
	case None:
		return "None"
	case Snappy:
		return "Snappy"
	case LZ4:
		return "LZ4"
	case Zstd:
		return "Zstd"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Encode compresses src using the codec identified by k.
func Encode(k Kind, src []byte) ([]byte, error) {
	switch k {
	case None:
		return src, nil
	case Snappy:
		return snappy.Encode(nil, src), nil
	case LZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(src)))
		var ht [1 << 16]int
		n, err := lz4.CompressBlock(src, dst, ht[:])
		if err != nil {
			return nil, fmt.Errorf("codec: lz4 compress: %w", err)
		}
		if n == 0 {
			// Incompressible input: LZ4CompressBlock signals this by
			// returning 0; fall back to storing it raw under a distinct
			// codec so Decode knows not to attempt LZ4 decompression.
			return nil, errIncompressible
		}
		return dst[:n], nil
	case Zstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("codec: zstd encoder: %w", err)
		}
		return enc.EncodeAll(src, nil), nil
	default:
		return nil, fmt.Errorf("codec: unknown kind %d", k)
	}
}

var errIncompressible = fmt.Errorf("codec: lz4 block incompressible")

// Decode decompresses src, which was produced by Encode with the same kind
// and, for LZ4, the given uncompressed size hint (0 means unknown).
func Decode(k Kind, src []byte, uncompressedSize int) ([]byte, error) {
	switch k {
	case None:
		return src, nil
	case Snappy:
		return snappy.Decode(nil, src)
	case LZ4:
		if uncompressedSize <= 0 {
			return nil, fmt.Errorf("codec: lz4 decode requires known uncompressed size")
		}
		dst := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(src, dst)
		if err != nil {
			return nil, fmt.Errorf("codec: lz4 uncompress: %w", err)
		}
		return dst[:n], nil
	case Zstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("codec: zstd decoder: %w", err)
		}
		defer dec.Close()
		return dec.DecodeAll(src, nil)
	default:
		return nil, fmt.Errorf("codec: unknown kind %d", k)
	}
}
