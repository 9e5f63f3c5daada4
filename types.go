package snapdb

import "github.com/google/uuid"

// Well-known domain-type identifiers for a sub-file's KeyType/ValueType
// fields: these are opaque 16-byte GUIDs a caller assigns meaning to;
// this package defines a small set for the fixed-width primitive shapes
// internal/encoding.FixedPairEncoding already handles, following the
// same "well-known GUID constant" precedent as encoding.FixedPairGUID. A
// caller is free to mint its own GUID for any other domain type; these
// are conveniences, not a closed set.
var (
	// KeyTypeUint64 identifies an 8-byte big-endian unsigned integer key.
	KeyTypeUint64 = uuid.MustParse("a1d6c1f0-6e3a-4b8b-9d6a-9e2f9b6a1c01")

	// KeyTypeBytes identifies an opaque fixed-width byte-string key.
	KeyTypeBytes = uuid.MustParse("a1d6c1f0-6e3a-4b8b-9d6a-9e2f9b6a1c02")

	// ValueTypeUint64 identifies an 8-byte big-endian unsigned integer
	// value.
	ValueTypeUint64 = uuid.MustParse("a1d6c1f0-6e3a-4b8b-9d6a-9e2f9b6a1c03")

	// ValueTypeBytes identifies an opaque fixed-width byte-string value.
	ValueTypeBytes = uuid.MustParse("a1d6c1f0-6e3a-4b8b-9d6a-9e2f9b6a1c04")

	// ValueTypeTimestamped identifies a value paired with a timestamp
	// component, for sub-files using the delta-of-delta or
	// timestamp-run-length pair encodings.
	ValueTypeTimestamped = uuid.MustParse("a1d6c1f0-6e3a-4b8b-9d6a-9e2f9b6a1c05")
)
