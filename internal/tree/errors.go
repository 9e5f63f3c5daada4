// Package tree implements a copy-on-write B+tree occupying one sub-file's
// block range: node layout, a seekable scanner, a random-insert writer,
// and a sequential bulk writer, with internal-node separators and leaf
// records framed through an internal/encoding.PairEncoding plugin.
//
// Nodes are framed by internal/block.NodeHeader; the scanner is an
// explicit cursor in the out-parameter read(&key, &value) bool style,
// one decoded leaf resident at a time.
package tree

import "errors"

// Sentinel errors for this layer.
var (
	// ErrBlockTypeMismatch is returned when a loaded node's level does not
	// match what the caller expected (leaf vs internal).
	ErrBlockTypeMismatch = errors.New("tree: block type mismatch")

	// ErrChecksumInvalid is returned when a loaded node's trailer
	// checksum does not verify.
	ErrChecksumInvalid = errors.New("tree: checksum invalid")

	// ErrCorruptNode is returned when a node's header or record area
	// cannot be decoded even though its checksum verified.
	ErrCorruptNode = errors.New("tree: corrupt node")

	// ErrDuplicateKey is returned by Insert when the key already exists;
	// no writer in this package overwrites an existing key.
	ErrDuplicateKey = errors.New("tree: duplicate key")

	// ErrCanceled is returned by a Scanner's Read/ReadWhile methods once
	// the scanner's cooperative cancel flag has been set.
	ErrCanceled = errors.New("tree: canceled")

	// ErrEmptyTree names the condition of an operation that requires at
	// least one record and finds none. No function in this package returns
	// it; an empty tree scans as zero records.
	ErrEmptyTree = errors.New("tree: empty tree")
)
