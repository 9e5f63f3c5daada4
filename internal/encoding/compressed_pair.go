package encoding

import (
	"github.com/google/uuid"

	"github.com/snapdb/snapdb/internal/codec"
)

// CompressedBlobGUID identifies CompressedBlobEncoding. The GUID does not
// name a codec and SubFileHeader has no codec field: an instance built
// through the registry (Lookup) always uses Snappy.
var CompressedBlobGUID = uuid.MustParse("d5f7b9c1-4e6a-4d8f-ab2c-5f7b9d1e3a4c")

func init() {
	Register(CompressedBlobGUID, func(keySize, valueSize int) PairEncoding {
		return &CompressedBlobEncoding{KeySize: keySize, ValueSize: valueSize, Codec: codec.Snappy}
	})
}

// CompressedBlobEncoding stores the raw key followed by a varint-prefixed,
// codec-compressed value payload. It gives a concrete pair-encoding home
// to the compression codecs registered at startup: a value that
// compresses well (long historian strings, repeated blobs) is stored
// compressed with the Codec field's algorithm (Snappy, LZ4 or Zstd).
type CompressedBlobEncoding struct {
	KeySize   int
	ValueSize int // uncompressed size, needed to size LZ4 decode buffers
	Codec     codec.Kind
}

func (e *CompressedBlobEncoding) ID() uuid.UUID { return CompressedBlobGUID }
func (e *CompressedBlobEncoding) Name() string  { return "CompressedBlob/" + e.Codec.String() }

// MaxRecordSize assumes the worst case of no compression benefit plus a
// one-byte raw/compressed flag and varint-length-prefix overhead.
func (e *CompressedBlobEncoding) MaxRecordSize() int { return e.KeySize + 1 + 5 + e.ValueSize }

func (e *CompressedBlobEncoding) ContainsEndOfStreamSymbol() bool { return false }

const (
	blobRaw        byte = 0
	blobCompressed byte = 1
)

func (e *CompressedBlobEncoding) Encode(dst, _, _, key, value []byte) ([]byte, int) {
	start := len(dst)
	dst = append(dst, key...)

	compressed, err := codec.Encode(e.Codec, value)
	if err != nil {
		// Incompressible or unsupported: fall back to storing the value
		// raw rather than failing the write; the flag byte records which
		// path Decode must take.
		dst = append(dst, blobRaw)
		dst = AppendVarint32(dst, uint32(len(value)))
		dst = append(dst, value...)
		return dst, len(dst) - start
	}
	dst = append(dst, blobCompressed)
	dst = AppendVarint32(dst, uint32(len(compressed)))
	dst = append(dst, compressed...)
	return dst, len(dst) - start
}

func (e *CompressedBlobEncoding) Decode(src, _, _ []byte) (key, value []byte, n int, endOfStream bool, err error) {
	if len(src) < e.KeySize+1 {
		return nil, nil, 0, false, ErrShortBuffer
	}
	key = append([]byte(nil), src[:e.KeySize]...)
	flag := src[e.KeySize]
	rest := src[e.KeySize+1:]

	payloadLen, nv, derr := DecodeVarint32(rest)
	if derr != nil {
		return nil, nil, 0, false, ErrShortBuffer
	}
	rest = rest[nv:]
	if len(rest) < int(payloadLen) {
		return nil, nil, 0, false, ErrShortBuffer
	}
	payload := rest[:payloadLen]

	if flag == blobRaw {
		value = append([]byte(nil), payload...)
	} else {
		value, err = codec.Decode(e.Codec, payload, e.ValueSize)
		if err != nil {
			return nil, nil, 0, false, err
		}
	}
	return key, value, e.KeySize + 1 + nv + int(payloadLen), false, nil
}
