// builder.go implements the sequential ("simple") bulk writer of spec.md
// §4.11: given a pre-sorted stream of (key, value) pairs, build a tree
// bottom-up in one pass, packing each leaf to the encoding's packing
// threshold and bubbling a separator per emitted node up to the next
// level, until exactly one node remains (the root).
package tree

import (
	"github.com/snapdb/snapdb/internal/block"
	"github.com/snapdb/snapdb/internal/sortbuf"
)

// SequentialBuilder packs a pre-sorted input stream into a tree with a
// single bottom-up pass and minimum I/O (no node is ever re-read or
// re-split once emitted).
type SequentialBuilder struct {
	store     *Store
	valueSize int
	areaLimit int
	fillLimit int // spec.md §4.11: pack to >= ~90% of block before emitting

	pending  []Record
	level0   []Separator
	count    uint64
	prevLeaf *Node
}

// NewSequentialBuilder returns a builder over store, targeting leaves
// packed to ~90% of the sub-file's record-area capacity.
func NewSequentialBuilder(store *Store, valueSize int) *SequentialBuilder {
	area := block.RecordAreaSize(store.PageSize, store.KeySize)
	return &SequentialBuilder{
		store:     store,
		valueSize: valueSize,
		areaLimit: area,
		fillLimit: area * 9 / 10,
	}
}

// Add appends the next (key, value) pair. The caller must supply keys in
// strictly ascending order; this type does not re-sort.
func (b *SequentialBuilder) Add(key, value []byte) error {
	b.pending = append(b.pending, Record{
		Key:   append([]byte(nil), key...),
		Value: append([]byte(nil), value...),
	})
	b.count++
	size := EncodedLeafSize(b.store.Enc, b.pending, b.store.KeySize, b.valueSize)
	if size >= b.fillLimit {
		return b.flushLeaf()
	}
	return nil
}

func (b *SequentialBuilder) flushLeaf() error {
	if len(b.pending) == 0 {
		return nil
	}
	records := b.pending
	encoded := EncodeLeafRecords(b.store.Enc, records, b.store.KeySize, b.valueSize)
	for len(encoded) > b.areaLimit && len(records) > 1 {
		records = records[:len(records)-1]
		encoded = EncodeLeafRecords(b.store.Enc, records, b.store.KeySize, b.valueSize)
	}
	if err := b.emitLeaf(records); err != nil {
		return err
	}
	b.pending = append([]Record(nil), b.pending[len(records):]...)
	if len(b.pending) > 0 {
		return b.flushLeaf()
	}
	return nil
}

func (b *SequentialBuilder) emitLeaf(records []Record) error {
	n := NewLeaf(0, b.store.KeySize)
	n.RecordBytes = EncodeLeafRecords(b.store.Enc, records, b.store.KeySize, b.valueSize)
	n.LeafRecordCount = len(records)
	n.Header.LowerBound = append([]byte(nil), records[0].Key...)
	n.Header.UpperBound = append([]byte(nil), records[len(records)-1].Key...)
	n.Header.LeftSibling = block.NilSibling
	n.Header.RightSibling = block.NilSibling
	if b.prevLeaf != nil {
		n.Header.LeftSibling = b.prevLeaf.BlockIdx
	}
	idx, err := b.store.AllocateNode(n)
	if err != nil {
		return err
	}
	if b.prevLeaf != nil {
		b.prevLeaf.Header.RightSibling = idx
		if err := b.store.StageNode(b.prevLeaf); err != nil {
			return err
		}
	}
	b.prevLeaf = n
	b.level0 = append(b.level0, Separator{Key: n.Header.LowerBound, Child: idx})
	return nil
}

// Finish closes out any buffered records, builds internal levels
// bottom-up from the bubbled separators, and returns the final root block
// index, tree height, and total record count. An empty input produces a
// single empty leaf as root with height 1 (spec.md §4.9 edge case).
func (b *SequentialBuilder) Finish() (root uint32, height uint8, count uint64, err error) {
	if err := b.flushLeaf(); err != nil {
		return 0, 0, 0, err
	}

	if len(b.level0) == 0 {
		n := NewLeaf(0, b.store.KeySize)
		n.RecordBytes = EncodeLeafRecords(b.store.Enc, nil, b.store.KeySize, b.valueSize)
		idx, err := b.store.AllocateNode(n)
		if err != nil {
			return 0, 0, 0, err
		}
		if err := b.store.Promote(); err != nil {
			return 0, 0, 0, err
		}
		return idx, 1, 0, nil
	}

	level := b.level0
	height = 1
	lvl := uint8(1)
	for len(level) > 1 {
		next, err := b.buildLevel(level, lvl)
		if err != nil {
			return 0, 0, 0, err
		}
		level = next
		lvl++
		height++
	}
	if err := b.store.Promote(); err != nil {
		return 0, 0, 0, err
	}
	return level[0].Child, height, b.count, nil
}

// buildLevel packs seps (bubbled from the level below, already in
// left-to-right order) into fixed-capacity internal nodes at level,
// returning the separators bubbled to the next level up.
func (b *SequentialBuilder) buildLevel(seps []Separator, level uint8) ([]Separator, error) {
	recSize := separatorSize(b.store.KeySize)
	perNode := b.fillLimit / recSize
	if perNode < 1 {
		perNode = 1
	}

	var out []Separator
	var prev *Node
	for start := 0; start < len(seps); start += perNode {
		end := start + perNode
		if end > len(seps) {
			end = len(seps)
		}
		chunk := seps[start:end]

		n := NewInternal(0, level, b.store.KeySize)
		n.Separators = append([]Separator(nil), chunk...)
		n.Header.LowerBound = append([]byte(nil), chunk[0].Key...)
		n.Header.UpperBound = append([]byte(nil), chunk[len(chunk)-1].Key...)
		n.Header.LeftSibling = block.NilSibling
		n.Header.RightSibling = block.NilSibling
		if prev != nil {
			n.Header.LeftSibling = prev.BlockIdx
		}
		idx, err := b.store.AllocateNode(n)
		if err != nil {
			return nil, err
		}
		if prev != nil {
			prev.Header.RightSibling = idx
			if err := b.store.StageNode(prev); err != nil {
				return nil, err
			}
		}
		prev = n
		out = append(out, Separator{Key: n.Header.LowerBound, Child: idx})
	}
	return out, nil
}

// BufferedBuilder accepts arbitrary-order input, stages it in an
// internal/sortbuf.Buffer, and drives a SequentialBuilder over the sorted
// result at Finish.
//
// Simplification, recorded in DESIGN.md: spilling the buffer to a
// temporary sub-file once it exceeds a byte budget is not implemented,
// and adding it would require a second merge pass (internal/merge)
// that internal/tree cannot import without creating an import cycle
// (internal/merge already depends on internal/tree's Scanner).
type BufferedBuilder struct {
	store     *Store
	valueSize int
	keySize   int
	buf       *sortbuf.Buffer
}

// NewBufferedBuilder returns a BufferedBuilder over store.
func NewBufferedBuilder(store *Store, valueSize int) *BufferedBuilder {
	return &BufferedBuilder{
		store:     store,
		valueSize: valueSize,
		keySize:   store.KeySize,
		buf:       sortbuf.New(store.KeySize),
	}
}

// Add inserts (key, value) into the sort buffer in arbitrary order.
// Duplicate keys are rejected with ErrDuplicateKey, matching the random
// writer's default policy (spec.md §4.10's strict rejection, carried into
// the bulk path since no "latest wins" configuration was requested here).
func (b *BufferedBuilder) Add(key, value []byte) error {
	packed := make([]byte, 0, len(key)+len(value))
	packed = append(packed, key...)
	packed = append(packed, value...)
	if !b.buf.Insert(packed) {
		return ErrDuplicateKey
	}
	return nil
}

// Finish sorts the buffered input and builds the tree via a
// SequentialBuilder, returning the same (root, height, count) triple.
func (b *BufferedBuilder) Finish() (root uint32, height uint8, count uint64, err error) {
	seq := NewSequentialBuilder(b.store, b.valueSize)
	err = b.buf.Scan(func(rec []byte) error {
		return seq.Add(rec[:b.keySize], rec[b.keySize:])
	})
	if err != nil {
		return 0, 0, 0, err
	}
	return seq.Finish()
}
