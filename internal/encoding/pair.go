// pair.go defines the pair-encoding plugin contract from spec.md §4.8: a
// per-(KeyType,ValueType) plugin that serializes and deserializes leaf
// records, identified by a 16-byte GUID (github.com/google/uuid, grounded
// on perkeep-perkeep's dependency — spec.md §6 calls for literal 16-byte
// GUIDs for encoding identity).
//
// prev_key/prev_value are zero-cleared at the start of every node (a fresh
// scan or a freshly built node), so delta-based encodings still decode
// correctly starting from any node without cross-node state.
package encoding

import (
	"errors"

	"github.com/google/uuid"
)

// ErrShortBuffer is returned by Decode when src does not contain a
// complete record.
var ErrShortBuffer = errors.New("encoding: short buffer")

// ErrUnknownEncoding is returned by Lookup for an unregistered GUID.
var ErrUnknownEncoding = errors.New("encoding: unknown pair encoding")

// PairEncoding is the per-(KeyType,ValueType) plugin contract of spec.md
// §4.8. A single instance is configured for one sub-file's fixed KeySize
// (and, for fixed-width value encodings, ValueSize) at open time.
type PairEncoding interface {
	// ID returns the well-known or registered GUID for this encoding.
	ID() uuid.UUID

	// Name returns a human-readable name, for logging/diagnostics only.
	Name() string

	// MaxRecordSize is the upper bound on a single record's encoded size,
	// used to size leaf-node free-space checks (spec.md §4.8).
	MaxRecordSize() int

	// ContainsEndOfStreamSymbol reports whether the encoding's own byte
	// stream signals end-of-node; if false, callers must wrap records in
	// the one-byte record/end framing prefix (see EncodeFramed/DecodeFramed).
	ContainsEndOfStreamSymbol() bool

	// Encode appends the encoded representation of (key, value) — given
	// the previous record's (prevKey, prevValue), zeroed at node start —
	// to dst, returning the extended slice and the number of bytes
	// appended.
	Encode(dst, prevKey, prevValue, key, value []byte) (out []byte, n int)

	// Decode reads one record from the front of src, given the previous
	// record's (prevKey, prevValue). endOfStream is true when the
	// encoding's own sentinel marks stream end (only possible when
	// ContainsEndOfStreamSymbol is true); in that case key/value/n should
	// be ignored by the caller.
	Decode(src, prevKey, prevValue []byte) (key, value []byte, n int, endOfStream bool, err error)
}

// Factory constructs a PairEncoding instance configured for a sub-file's
// fixed key size (and, where meaningful, value size).
type Factory func(keySize, valueSize int) PairEncoding

var registry = map[uuid.UUID]Factory{}

// Register adds a pair-encoding factory to the process-wide registry,
// keyed by the GUID its instances report from ID(). Called at package
// init by every built-in encoding and by external encoding plugins before
// their GUID is referenced in a SubFileHeader.
func Register(id uuid.UUID, f Factory) {
	registry[id] = f
}

// Lookup constructs a PairEncoding for the registered factory matching id,
// configured for the given key/value sizes.
func Lookup(id uuid.UUID, keySize, valueSize int) (PairEncoding, error) {
	f, ok := registry[id]
	if !ok {
		return nil, ErrUnknownEncoding
	}
	return f(keySize, valueSize), nil
}

const (
	frameRecord byte = 1
	frameEnd    byte = 0
)

// EncodeFramed appends one record using enc, prefixed with a one-byte
// record marker when enc.ContainsEndOfStreamSymbol() is false. Node writers
// always go through this helper rather than calling enc.Encode directly,
// so the framing policy lives in one place.
func EncodeFramed(enc PairEncoding, dst, prevKey, prevValue, key, value []byte) (out []byte, n int) {
	if enc.ContainsEndOfStreamSymbol() {
		return enc.Encode(dst, prevKey, prevValue, key, value)
	}
	start := len(dst)
	dst = append(dst, frameRecord)
	dst, _ = enc.Encode(dst, prevKey, prevValue, key, value)
	return dst, len(dst) - start
}

// EncodeEndOfStream appends the end-of-node marker for encodings that rely
// on the one-byte framing prefix rather than their own sentinel.
func EncodeEndOfStream(enc PairEncoding, dst []byte) []byte {
	if enc.ContainsEndOfStreamSymbol() {
		return dst
	}
	return append(dst, frameEnd)
}

// DecodeFramed reads one record from src using enc, unwrapping the
// record/end framing prefix when enc.ContainsEndOfStreamSymbol() is false.
func DecodeFramed(enc PairEncoding, src, prevKey, prevValue []byte) (key, value []byte, n int, endOfStream bool, err error) {
	if enc.ContainsEndOfStreamSymbol() {
		return enc.Decode(src, prevKey, prevValue)
	}
	if len(src) < 1 {
		return nil, nil, 0, false, ErrShortBuffer
	}
	if src[0] == frameEnd {
		return nil, nil, 1, true, nil
	}
	key, value, n, _, err = enc.Decode(src[1:], prevKey, prevValue)
	return key, value, n + 1, false, err
}
