package encoding

import "github.com/google/uuid"

// TimestampRunLengthGUID identifies TimestampRunLengthEncoding.
var TimestampRunLengthGUID = uuid.MustParse("b3d5f7a9-2c4e-4b6d-8f1a-3d5f7b9c1e2a")

func init() {
	Register(TimestampRunLengthGUID, func(keySize, valueSize int) PairEncoding {
		return &TimestampRunLengthEncoding{KeySize: keySize, ValueSize: valueSize}
	})
}

// TimestampRunLengthEncoding is the run-length-collapsing encoding spec.md
// §4.8 names for streams where the key is a (big-endian, for byte-order
// comparability) monotonic timestamp and the value repeats across many
// consecutive points (e.g. a sensor holding steady). A record is:
//
//	zigzag-varint(key - prevKey)
//	flag byte: 1 = value unchanged from prevValue, 0 = value follows
//	[value bytes, only when flag == 0]
type TimestampRunLengthEncoding struct {
	KeySize   int
	ValueSize int
}

func (e *TimestampRunLengthEncoding) ID() uuid.UUID { return TimestampRunLengthGUID }
func (e *TimestampRunLengthEncoding) Name() string  { return "TimestampRunLength" }

func (e *TimestampRunLengthEncoding) MaxRecordSize() int { return 10 + 1 + e.ValueSize }

func (e *TimestampRunLengthEncoding) ContainsEndOfStreamSymbol() bool { return false }

func (e *TimestampRunLengthEncoding) Encode(dst, prevKey, prevValue, key, value []byte) ([]byte, int) {
	start := len(dst)
	curK := beUint(key)
	prevK := beUint(prevKey)
	dst = AppendVarsignedint64(dst, int64(curK-prevK))

	if len(prevValue) == e.ValueSize && bytesEqual(prevValue, value) {
		dst = append(dst, 1)
	} else {
		dst = append(dst, 0)
		dst = append(dst, value...)
	}
	return dst, len(dst) - start
}

func (e *TimestampRunLengthEncoding) Decode(src, prevKey, prevValue []byte) (key, value []byte, n int, endOfStream bool, err error) {
	dk, n1, err := DecodeVarsignedint64(src)
	if err != nil {
		return nil, nil, 0, false, ErrShortBuffer
	}
	rest := src[n1:]
	if len(rest) < 1 {
		return nil, nil, 0, false, ErrShortBuffer
	}
	flag := rest[0]
	consumed := n1 + 1

	curK := beUint(prevKey) + uint64(dk)
	key = make([]byte, e.KeySize)
	putBeUint(key, curK)

	if flag == 1 {
		value = append([]byte(nil), prevValue...)
		if len(value) != e.ValueSize {
			value = make([]byte, e.ValueSize)
		}
		return key, value, consumed, false, nil
	}

	if len(rest) < 1+e.ValueSize {
		return nil, nil, 0, false, ErrShortBuffer
	}
	value = append([]byte(nil), rest[1:1+e.ValueSize]...)
	consumed += e.ValueSize
	return key, value, consumed, false, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
