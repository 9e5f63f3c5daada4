package encoding

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// HistorianFileGUID identifies HistorianFileEncoding.
var HistorianFileGUID = uuid.MustParse("c4e6a8b0-3d5f-4c7e-9a1b-4e6a8c0d2f3b")

func init() {
	Register(HistorianFileGUID, func(keySize, valueSize int) PairEncoding {
		return &HistorianFileEncoding{KeySize: keySize, ValueSize: valueSize}
	})
}

// HistorianFileEncoding packs the classic historian-file point shape named
// in spec.md §4.8: (timestamp, quality, value). The key is a big-endian
// timestamp (delta-encoded against prevKey, as in DeltaOfDeltaEncoding);
// the value is a 4-byte little-endian quality code followed by the raw
// value payload (ValueSize-4 bytes), stored whole — historian values
// rarely repeat enough to benefit from TimestampRunLengthEncoding's
// run-length trick once quality flags are taken into account.
type HistorianFileEncoding struct {
	KeySize   int
	ValueSize int // must be >= 4 (quality prefix)
}

func (e *HistorianFileEncoding) ID() uuid.UUID { return HistorianFileGUID }
func (e *HistorianFileEncoding) Name() string  { return "HistorianFile" }

func (e *HistorianFileEncoding) MaxRecordSize() int { return 10 + e.ValueSize }

func (e *HistorianFileEncoding) ContainsEndOfStreamSymbol() bool { return false }

// Quality unpacks the 4-byte quality code from a historian value.
func Quality(value []byte) uint32 {
	if len(value) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(value[:4])
}

func (e *HistorianFileEncoding) Encode(dst, prevKey, _, key, value []byte) ([]byte, int) {
	start := len(dst)
	curK := beUint(key)
	prevK := beUint(prevKey)
	dst = AppendVarsignedint64(dst, int64(curK-prevK))
	dst = append(dst, value...)
	return dst, len(dst) - start
}

func (e *HistorianFileEncoding) Decode(src, prevKey, _ []byte) (key, value []byte, n int, endOfStream bool, err error) {
	dk, n1, err := DecodeVarsignedint64(src)
	if err != nil {
		return nil, nil, 0, false, ErrShortBuffer
	}
	rest := src[n1:]
	if len(rest) < e.ValueSize {
		return nil, nil, 0, false, ErrShortBuffer
	}

	curK := beUint(prevKey) + uint64(dk)
	key = make([]byte, e.KeySize)
	putBeUint(key, curK)
	value = append([]byte(nil), rest[:e.ValueSize]...)

	return key, value, n1 + e.ValueSize, false, nil
}
