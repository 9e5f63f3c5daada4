package encoding

import (
	"bytes"
	"testing"
)

func roundTrip(t *testing.T, enc PairEncoding, keys, values [][]byte) {
	t.Helper()
	prevKey := make([]byte, len(keys[0]))
	prevValue := make([]byte, len(values[0]))

	var buf []byte
	offsets := make([]int, len(keys))
	pk, pv := prevKey, prevValue
	for i := range keys {
		offsets[i] = len(buf)
		var n int
		buf, n = EncodeFramed(enc, buf, pk, pv, keys[i], values[i])
		_ = n
		pk, pv = keys[i], values[i]
	}
	buf = EncodeEndOfStream(enc, buf)

	pk, pv = prevKey, prevValue
	cursor := buf
	for i := range keys {
		k, v, n, end, err := DecodeFramed(enc, cursor, pk, pv)
		if err != nil {
			t.Fatalf("record %d: decode error: %v", i, err)
		}
		if end {
			t.Fatalf("record %d: unexpected end of stream", i)
		}
		if !bytes.Equal(k, keys[i]) {
			t.Fatalf("record %d: key mismatch: got %x want %x", i, k, keys[i])
		}
		if !bytes.Equal(v, values[i]) {
			t.Fatalf("record %d: value mismatch: got %x want %x", i, v, values[i])
		}
		cursor = cursor[n:]
		pk, pv = keys[i], values[i]
	}

	_, _, _, end, err := DecodeFramed(enc, cursor, pk, pv)
	if err != nil {
		t.Fatalf("end marker: %v", err)
	}
	if !end {
		t.Fatal("expected end of stream after last record")
	}
}

func beKey(n uint64) []byte {
	k := make([]byte, 8)
	putBeUint(k, n)
	return k
}

func TestFixedPairRoundTrip(t *testing.T) {
	enc := &FixedPairEncoding{KeySize: 8, ValueSize: 8}
	keys := [][]byte{beKey(1), beKey(2), beKey(3)}
	values := [][]byte{beKey(10), beKey(20), beKey(30)}
	roundTrip(t, enc, keys, values)
}

func TestDeltaOfDeltaRoundTrip(t *testing.T) {
	enc := &DeltaOfDeltaEncoding{KeySize: 8, ValueSize: 8}
	keys := [][]byte{beKey(100), beKey(105), beKey(205), beKey(206)}
	values := [][]byte{beKey(1), beKey(1), beKey(50), beKey(0)}
	roundTrip(t, enc, keys, values)
}

func TestTimestampRunLengthRoundTrip(t *testing.T) {
	enc := &TimestampRunLengthEncoding{KeySize: 8, ValueSize: 8}
	keys := [][]byte{beKey(1), beKey(2), beKey(3), beKey(4)}
	values := [][]byte{beKey(7), beKey(7), beKey(7), beKey(9)}
	roundTrip(t, enc, keys, values)
}

func TestHistorianFileRoundTrip(t *testing.T) {
	enc := &HistorianFileEncoding{KeySize: 8, ValueSize: 12}
	keys := [][]byte{beKey(1000), beKey(1001), beKey(1002)}
	values := [][]byte{
		append([]byte{1, 0, 0, 0}, beKey(111)...),
		append([]byte{1, 0, 0, 0}, beKey(112)...),
		append([]byte{0, 0, 0, 0}, beKey(0)...),
	}
	roundTrip(t, enc, keys, values)
}

func TestCompressedBlobRoundTrip(t *testing.T) {
	enc := &CompressedBlobEncoding{KeySize: 8, ValueSize: 64}
	longValue := bytes.Repeat([]byte("x"), 64)
	keys := [][]byte{beKey(1), beKey(2)}
	values := [][]byte{longValue, longValue}
	roundTrip(t, enc, keys, values)
}

func TestLookupUnknownGUID(t *testing.T) {
	var zero [16]byte
	if _, err := Lookup(zero, 8, 8); err != ErrUnknownEncoding {
		t.Fatalf("expected ErrUnknownEncoding, got %v", err)
	}
}

func TestLookupRegisteredGUIDs(t *testing.T) {
	for _, id := range []struct {
		name string
		g    [16]byte
	}{
		{"Fixed", FixedPairGUID},
		{"DeltaOfDelta", DeltaOfDeltaGUID},
		{"TimestampRunLength", TimestampRunLengthGUID},
		{"HistorianFile", HistorianFileGUID},
		{"CompressedBlob", CompressedBlobGUID},
	} {
		enc, err := Lookup(id.g, 8, 8)
		if err != nil {
			t.Fatalf("%s: %v", id.name, err)
		}
		if enc.MaxRecordSize() <= 0 {
			t.Fatalf("%s: expected positive MaxRecordSize", id.name)
		}
	}
}
