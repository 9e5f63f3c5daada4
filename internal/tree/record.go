package tree

import "github.com/snapdb/snapdb/internal/encoding"

// Record is one decoded (key, value) leaf entry.
type Record struct {
	Key   []byte
	Value []byte
}

// DecodeLeafRecords decodes every record out of a leaf's RecordBytes using
// enc, re-zeroing prevKey/prevValue at the start as spec.md §4.8 requires
// ("prev_key/prev_value are zero-cleared at the start of every node").
func DecodeLeafRecords(enc encoding.PairEncoding, recordBytes []byte, keySize, valueSize int) ([]Record, error) {
	var out []Record
	prevKey := make([]byte, keySize)
	prevValue := make([]byte, valueSize)

	src := recordBytes
	for len(src) > 0 {
		key, value, n, end, err := encoding.DecodeFramed(enc, src, prevKey, prevValue)
		if err != nil {
			return nil, err
		}
		if end {
			break
		}
		out = append(out, Record{Key: key, Value: value})
		prevKey, prevValue = key, value
		src = src[n:]
	}
	return out, nil
}

// EncodeLeafRecords encodes records (already sorted ascending by Key) into
// a fresh leaf record-area byte stream using enc, re-zeroing
// prevKey/prevValue at the start exactly like DecodeLeafRecords.
func EncodeLeafRecords(enc encoding.PairEncoding, records []Record, keySize, valueSize int) []byte {
	var dst []byte
	prevKey := make([]byte, keySize)
	prevValue := make([]byte, valueSize)

	for _, r := range records {
		dst, _ = encoding.EncodeFramed(enc, dst, prevKey, prevValue, r.Key, r.Value)
		prevKey, prevValue = r.Key, r.Value
	}
	dst = encoding.EncodeEndOfStream(enc, dst)
	return dst
}

// EncodedLeafSize returns the byte length EncodeLeafRecords(records, ...)
// would produce, without building it, for free-space checks before
// committing to a splice.
func EncodedLeafSize(enc encoding.PairEncoding, records []Record, keySize, valueSize int) int {
	return len(EncodeLeafRecords(enc, records, keySize, valueSize))
}
