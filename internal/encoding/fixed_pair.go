package encoding

import "github.com/google/uuid"

// FixedPairGUID is the well-known identifier for FixedPairEncoding, the
// mandatory default combined encoding required by spec.md §4.8.
var FixedPairGUID = uuid.MustParse("6f1a0d7e-9b3c-4f2a-8e7d-1a2b3c4d5e6f")

func init() {
	Register(FixedPairGUID, func(keySize, valueSize int) PairEncoding {
		return &FixedPairEncoding{KeySize: keySize, ValueSize: valueSize}
	})
}

// FixedPairEncoding stores raw key bytes followed by raw value bytes with
// no compression or delta encoding: the mandatory default per spec.md §4.8.
// MaxRecordSize is exactly KeySize+ValueSize.
type FixedPairEncoding struct {
	KeySize   int
	ValueSize int
}

func (e *FixedPairEncoding) ID() uuid.UUID { return FixedPairGUID }
func (e *FixedPairEncoding) Name() string  { return "FixedPair" }

func (e *FixedPairEncoding) MaxRecordSize() int { return e.KeySize + e.ValueSize }

// ContainsEndOfStreamSymbol is false: fixed-size records carry no
// self-describing length, so node writers must wrap them in the one-byte
// record/end framing prefix (see EncodeFramed/DecodeFramed).
func (e *FixedPairEncoding) ContainsEndOfStreamSymbol() bool { return false }

func (e *FixedPairEncoding) Encode(dst, _, _, key, value []byte) ([]byte, int) {
	start := len(dst)
	dst = append(dst, key...)
	dst = append(dst, value...)
	return dst, len(dst) - start
}

func (e *FixedPairEncoding) Decode(src, _, _ []byte) (key, value []byte, n int, endOfStream bool, err error) {
	need := e.KeySize + e.ValueSize
	if len(src) < need {
		return nil, nil, 0, false, ErrShortBuffer
	}
	key = append([]byte(nil), src[:e.KeySize]...)
	value = append([]byte(nil), src[e.KeySize:need]...)
	return key, value, need, false, nil
}
