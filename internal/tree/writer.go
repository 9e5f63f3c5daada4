// writer.go implements the random insert path of spec.md §4.10: splice
// into the target leaf when it fits, otherwise split and bubble a
// separator into the parent (recursing, growing the tree's height when
// the root itself splits).
//
// Every mutated node is copy-on-write: a fresh block is allocated for the
// new content, the old block is deferred to the transaction's free list
// (spec.md §3: "destroyed ... never before commit"), and the change is
// bubbled up through the path of ancestors walked during Seek.
//
// Simplification (documented in DESIGN.md): only the Right sibling chain
// is eagerly kept exact on a leaf split. The far leaf's LeftSibling field
// is left pointing at the pre-split block until that leaf is itself next
// mutated; no read operation in this package's contract (no Prev) ever
// consults a leaf's LeftSibling, so this cannot produce an observable
// inconsistency, only a stale backward pointer.
package tree

import (
	"bytes"
	"sort"

	"github.com/snapdb/snapdb/internal/block"
)

// Writer drives the random insert path over one sub-file's tree.
type Writer struct {
	store     *Store
	valueSize int

	root        uint32
	height      uint8
	recordCount uint64
}

// OpenWriter returns a Writer over the tree rooted at root.
func OpenWriter(store *Store, root uint32, height uint8, recordCount uint64, valueSize int) *Writer {
	return &Writer{store: store, root: root, height: height, recordCount: recordCount, valueSize: valueSize}
}

func (w *Writer) Root() uint32          { return w.root }
func (w *Writer) Height() uint8         { return w.height }
func (w *Writer) RecordCount() uint64   { return w.recordCount }
func (w *Writer) ValueSize() int        { return w.valueSize }

type pathEntry struct {
	node     *Node
	childPos int
}

func (w *Writer) walkToLeaf(key []byte) (path []pathEntry, leaf *Node, err error) {
	blockIdx := w.root
	level := w.height
	for level > 1 {
		node, err := w.store.LoadNode(blockIdx, false)
		if err != nil {
			return nil, nil, err
		}
		pos := chooseChildIndex(node.Separators, key)
		path = append(path, pathEntry{node: node, childPos: pos})
		blockIdx = node.Separators[pos].Child
		level--
	}
	leaf, err = w.store.LoadNode(blockIdx, true)
	return path, leaf, err
}

func chooseChildIndex(seps []Separator, target []byte) int {
	i := sort.Search(len(seps), func(i int) bool {
		return bytes.Compare(seps[i].Key, target) > 0
	})
	if i == 0 {
		return 0
	}
	return i - 1
}

// Insert adds (key, value), rejecting an existing key with ErrDuplicateKey
// (spec.md §4.10's default strict policy; §9 Open Question resolved in
// favor of rejection at the core).
func (w *Writer) Insert(key, value []byte) error {
	path, leaf, err := w.walkToLeaf(key)
	if err != nil {
		return err
	}

	records, err := DecodeLeafRecords(w.store.Enc, leaf.RecordBytes, w.store.KeySize, w.valueSize)
	if err != nil {
		return err
	}
	i := sort.Search(len(records), func(i int) bool { return bytes.Compare(records[i].Key, key) >= 0 })
	if i < len(records) && bytes.Equal(records[i].Key, key) {
		return ErrDuplicateKey
	}

	merged := make([]Record, 0, len(records)+1)
	merged = append(merged, records[:i]...)
	merged = append(merged, Record{Key: append([]byte(nil), key...), Value: append([]byte(nil), value...)})
	merged = append(merged, records[i:]...)

	limit := block.RecordAreaSize(w.store.PageSize, w.store.KeySize)
	encoded := EncodeLeafRecords(w.store.Enc, merged, w.store.KeySize, w.valueSize)

	var newSeps []Separator
	var upper []byte

	if len(encoded) <= limit {
		newLeaf := NewLeaf(0, w.store.KeySize)
		newLeaf.RecordBytes = encoded
		newLeaf.LeafRecordCount = len(merged)
		newLeaf.Header.LeftSibling = leaf.Header.LeftSibling
		newLeaf.Header.RightSibling = leaf.Header.RightSibling
		newLeaf.Header.LowerBound = append([]byte(nil), merged[0].Key...)
		newLeaf.Header.UpperBound = append([]byte(nil), merged[len(merged)-1].Key...)
		idx, err := w.store.AllocateNode(newLeaf)
		if err != nil {
			return err
		}
		if err := w.store.FreeNode(leaf.BlockIdx); err != nil {
			return err
		}
		newSeps = []Separator{{Key: newLeaf.Header.LowerBound, Child: idx}}
		upper = newLeaf.Header.UpperBound
	} else {
		mid := len(merged) / 2
		leftRecords, rightRecords := merged[:mid], merged[mid:]
		idxs, err := w.store.allocate(2)
		if err != nil {
			return err
		}
		leftIdx, rightIdx := idxs[0], idxs[1]

		left := NewLeaf(leftIdx, w.store.KeySize)
		left.RecordBytes = EncodeLeafRecords(w.store.Enc, leftRecords, w.store.KeySize, w.valueSize)
		left.LeafRecordCount = len(leftRecords)
		left.Header.LeftSibling = leaf.Header.LeftSibling
		left.Header.RightSibling = rightIdx
		left.Header.LowerBound = append([]byte(nil), leftRecords[0].Key...)
		left.Header.UpperBound = append([]byte(nil), leftRecords[len(leftRecords)-1].Key...)

		right := NewLeaf(rightIdx, w.store.KeySize)
		right.RecordBytes = EncodeLeafRecords(w.store.Enc, rightRecords, w.store.KeySize, w.valueSize)
		right.LeafRecordCount = len(rightRecords)
		right.Header.LeftSibling = leftIdx
		right.Header.RightSibling = leaf.Header.RightSibling
		right.Header.LowerBound = append([]byte(nil), rightRecords[0].Key...)
		right.Header.UpperBound = append([]byte(nil), rightRecords[len(rightRecords)-1].Key...)

		if err := w.store.StageNode(left); err != nil {
			return err
		}
		if err := w.store.StageNode(right); err != nil {
			return err
		}
		if err := w.store.FreeNode(leaf.BlockIdx); err != nil {
			return err
		}

		newSeps = []Separator{
			{Key: left.Header.LowerBound, Child: leftIdx},
			{Key: right.Header.LowerBound, Child: rightIdx},
		}
		upper = right.Header.UpperBound
	}

	finalSeps, finalUpper, err := w.climb(path, newSeps, upper)
	if err != nil {
		return err
	}

	if len(finalSeps) == 1 {
		w.root = finalSeps[0].Child
	} else {
		idx, err := w.store.allocate(1)
		if err != nil {
			return err
		}
		rootNode := NewInternal(idx[0], w.rootLevel()+1, w.store.KeySize)
		rootNode.Separators = finalSeps
		rootNode.Header.LowerBound = append([]byte(nil), finalSeps[0].Key...)
		rootNode.Header.UpperBound = append([]byte(nil), finalUpper...)
		if err := w.store.StageNode(rootNode); err != nil {
			return err
		}
		w.root = idx[0]
		w.height++
	}

	w.recordCount++
	return w.store.Promote()
}

// rootLevel returns the current root node's level (height-1, since a lone
// leaf root has height 1 and level 0).
func (w *Writer) rootLevel() uint8 {
	if w.height == 0 {
		return 0
	}
	return w.height - 1
}

// climb bubbles newSeps (a 1- or 2-entry replacement for the child at
// path's deepest childPos) up through path's ancestors, splitting any
// internal node that overflows, and returns the final separator(s) that
// replace what the root used to point at (1 entry: no root change needed
// beyond Writer.root; 2 entries: Insert must allocate a new root).
func (w *Writer) climb(path []pathEntry, newSeps []Separator, upper []byte) ([]Separator, []byte, error) {
	for i := len(path) - 1; i >= 0; i-- {
		node := path[i].node
		pos := path[i].childPos

		seps := make([]Separator, 0, len(node.Separators)+1)
		seps = append(seps, node.Separators[:pos]...)
		seps = append(seps, newSeps...)
		seps = append(seps, node.Separators[pos+1:]...)

		limit := block.RecordAreaSize(w.store.PageSize, w.store.KeySize)
		size := len(seps) * separatorSize(w.store.KeySize)

		nodeUpper := node.Header.UpperBound
		if bytes.Compare(upper, nodeUpper) > 0 {
			nodeUpper = upper
		}

		if size <= limit {
			n := NewInternal(0, node.Header.Level, w.store.KeySize)
			n.Separators = seps
			n.Header.LeftSibling = node.Header.LeftSibling
			n.Header.RightSibling = node.Header.RightSibling
			n.Header.LowerBound = append([]byte(nil), seps[0].Key...)
			n.Header.UpperBound = append([]byte(nil), nodeUpper...)
			idx, err := w.store.AllocateNode(n)
			if err != nil {
				return nil, nil, err
			}
			if err := w.store.FreeNode(node.BlockIdx); err != nil {
				return nil, nil, err
			}
			newSeps = []Separator{{Key: n.Header.LowerBound, Child: idx}}
			upper = n.Header.UpperBound
			continue
		}

		mid := len(seps) / 2
		leftSeps, rightSeps := seps[:mid], seps[mid:]
		idxs, err := w.store.allocate(2)
		if err != nil {
			return nil, nil, err
		}
		leftIdx, rightIdx := idxs[0], idxs[1]

		left := NewInternal(leftIdx, node.Header.Level, w.store.KeySize)
		left.Separators = leftSeps
		left.Header.LeftSibling = node.Header.LeftSibling
		left.Header.RightSibling = rightIdx
		left.Header.LowerBound = append([]byte(nil), leftSeps[0].Key...)
		left.Header.UpperBound = append([]byte(nil), rightSeps[0].Key...)

		right := NewInternal(rightIdx, node.Header.Level, w.store.KeySize)
		right.Separators = rightSeps
		right.Header.LeftSibling = leftIdx
		right.Header.RightSibling = node.Header.RightSibling
		right.Header.LowerBound = append([]byte(nil), rightSeps[0].Key...)
		right.Header.UpperBound = append([]byte(nil), nodeUpper...)

		if err := w.store.StageNode(left); err != nil {
			return nil, nil, err
		}
		if err := w.store.StageNode(right); err != nil {
			return nil, nil, err
		}
		if err := w.store.FreeNode(node.BlockIdx); err != nil {
			return nil, nil, err
		}

		newSeps = []Separator{
			{Key: left.Header.LowerBound, Child: leftIdx},
			{Key: right.Header.LowerBound, Child: rightIdx},
		}
		upper = right.Header.UpperBound
	}
	return newSeps, upper, nil
}
