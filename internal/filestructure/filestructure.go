// Package filestructure implements the transactional allocator of
// spec.md §4.6: a single-writer, multi-reader state machine
// (Editable -> PendingCommit -> Committed / RolledBack) layered over an
// internal/diskio.Medium and an internal/fileheader.FileHeaderBlock.
//
// Grounded on the teacher's internal/manifest (version_edit.go + tags.go):
// the idea of collecting pending changes into an in-memory "edit" object
// that is only durably published on commit is kept, generalized from a
// tagged incremental MANIFEST log entry to an in-memory edit that
// produces a whole new FileHeaderBlock (spec.md's container is
// header-swap, not a WAL, so there is no on-disk incremental log here).
package filestructure

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/snapdb/snapdb/internal/bitarray"
	"github.com/snapdb/snapdb/internal/checksum"
	"github.com/snapdb/snapdb/internal/diskio"
	"github.com/snapdb/snapdb/internal/fileheader"
	"github.com/snapdb/snapdb/internal/logging"
)

// State is a transaction's position in the Editable -> PendingCommit ->
// Committed/RolledBack state machine.
type State int

const (
	Editable State = iota
	PendingCommit
	Committed
	RolledBack
)

func (s State) String() string {
	switch s {
	case Editable:
		return "Editable"
	case PendingCommit:
		return "PendingCommit"
	case Committed:
		return "Committed"
	case RolledBack:
		return "RolledBack"
	default:
		return "Unknown"
	}
}

var (
	// ErrEditorExists is returned by BeginEdit when another Editor is
	// already open against the same Container (spec.md §4.6: "only one
	// Editor may exist for a container at a time").
	ErrEditorExists = errors.New("filestructure: a writer transaction is already open for this container")

	// ErrNotEditable is returned by any mutating Transaction method once
	// the transaction has left the Editable state.
	ErrNotEditable = errors.New("filestructure: transaction is not in the Editable state")

	// ErrUnknownSubFile is returned when a Transaction method references
	// a sub-file ID absent from the base header and not newly added in
	// this transaction.
	ErrUnknownSubFile = errors.New("filestructure: unknown sub-file id")
)

// Container owns a Medium and its last-committed FileHeaderBlock, and
// enforces the single-Editor rule in-process (the advisory lock
// internal/diskio.FileMedium takes at open enforces it across processes;
// this mutex enforces it across concurrent goroutines within one).
type Container struct {
	medium diskio.Medium

	mu        sync.Mutex
	header    *fileheader.FileHeaderBlock
	bitmap    *bitarray.BitArray
	hasEditor bool
	log       logging.Logger
}

// OpenContainer wraps medium with the last-committed header and its
// decoded allocation bitmap (bitmap covers exactly header.BlockCount
// bits, one per block; block 0 and the bitmap's own blocks are always
// set).
func OpenContainer(medium diskio.Medium, header *fileheader.FileHeaderBlock, bitmap *bitarray.BitArray) *Container {
	return &Container{medium: medium, header: header, bitmap: bitmap, log: logging.Discard}
}

// SetLogger installs l as the container's logger for commit/rollback
// events (spec.md §5); a nil or typed-nil l falls back to
// logging.OrDefault's WARN-level default logger.
func (c *Container) SetLogger(l logging.Logger) {
	c.mu.Lock()
	c.log = logging.OrDefault(l)
	c.mu.Unlock()
}

// CurrentHeader returns the last-committed header. Safe to call
// concurrently with an open Editor; it never observes uncommitted state.
func (c *Container) CurrentHeader() *fileheader.FileHeaderBlock {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.header
}

// BeginEdit opens a new Editable Transaction against the container's
// current committed state. Only one Transaction may be open at a time.
func (c *Container) BeginEdit() (*Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasEditor {
		return nil, ErrEditorExists
	}
	c.hasEditor = true
	return &Transaction{
		container:   c,
		medium:      c.medium,
		base:        c.header.Clone(),
		bitmap:      c.bitmap.Clone(),
		state:       Editable,
		roots:       make(map[uuid.UUID]rootChange),
		contentSums: make(map[uuid.UUID]contentSum),
	}, nil
}

func (c *Container) release() {
	c.mu.Lock()
	c.hasEditor = false
	c.mu.Unlock()
}

func (c *Container) publish(header *fileheader.FileHeaderBlock, bitmap *bitarray.BitArray) {
	c.mu.Lock()
	c.header = header
	c.bitmap = bitmap
	c.mu.Unlock()
}

type rootChange struct {
	rootBlock   uint32
	treeHeight  uint8
	recordCount uint64
}

// Transaction is a single writer's view of a Container between BeginEdit
// and Commit/Rollback. Allocating a block flips a bit in the
// transaction's private shadow copy of the allocation bitmap
// immediately; freeing a block only takes effect on Commit (the block
// stays allocated, per spec.md §4.6, so a reader racing a not-yet-committed
// transaction never sees it reused).
type Transaction struct {
	container *Container
	medium    diskio.Medium

	mu sync.Mutex

	base   *fileheader.FileHeaderBlock
	bitmap *bitarray.BitArray
	state  State

	pendingFrees []uint32
	roots        map[uuid.UUID]rootChange
	contentSums  map[uuid.UUID]contentSum
	newSubFiles  []*fileheader.SubFileHeader
	mutated      bool
}

type contentSum struct {
	kind checksum.Kind
	sum  uint32
}

// State returns the transaction's current position in the state machine.
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// AllocateBlocks reserves n fresh blocks, extending the underlying medium
// if the container has no free blocks left, and returns their indices in
// ascending order.
func (t *Transaction) AllocateBlocks(n uint32) ([]uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Editable {
		return nil, ErrNotEditable
	}
	t.mutated = true
	return t.allocateBlocksLocked(n)
}

// allocateBlocksLocked is AllocateBlocks without the Editable check or
// locking, for use by Commit (already holding t.mu and past the Editable
// state by the time it needs one more allocation for the bitmap itself).
func (t *Transaction) allocateBlocksLocked(n uint32) ([]uint32, error) {
	out := make([]uint32, 0, n)
	for uint32(len(out)) < n {
		idx := t.bitmap.FindFirstCleared()
		if idx >= uint(t.base.BlockCount) {
			if _, err := t.medium.Extend(1); err != nil {
				return nil, err
			}
			t.base.BlockCount++
		}
		t.bitmap.Set(idx)
		out = append(out, uint32(idx))
	}
	return out, nil
}

// FreeBlock marks idx to be released on Commit. The block remains
// allocated (and must not be reused by AllocateBlocks) until then.
func (t *Transaction) FreeBlock(idx uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Editable {
		return ErrNotEditable
	}
	t.mutated = true
	t.pendingFrees = append(t.pendingFrees, idx)
	return nil
}

// SetSubFileRoot records a new root block, tree height, and record count
// for an existing sub-file, to be published on Commit.
func (t *Transaction) SetSubFileRoot(id uuid.UUID, rootBlock uint32, treeHeight uint8, recordCount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Editable {
		return ErrNotEditable
	}
	if t.base.FindSubFile(id) == nil && !t.hasNewSubFileLocked(id) {
		return ErrUnknownSubFile
	}
	t.mutated = true
	t.roots[id] = rootChange{rootBlock: rootBlock, treeHeight: treeHeight, recordCount: recordCount}
	return nil
}

// SetSubFileContentChecksum records a new whole-sub-file content checksum
// for an existing or newly added sub-file, published on Commit alongside
// any root change.
func (t *Transaction) SetSubFileContentChecksum(id uuid.UUID, kind checksum.Kind, sum uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Editable {
		return ErrNotEditable
	}
	if t.base.FindSubFile(id) == nil && !t.hasNewSubFileLocked(id) {
		return ErrUnknownSubFile
	}
	t.mutated = true
	t.contentSums[id] = contentSum{kind: kind, sum: sum}
	return nil
}

func (t *Transaction) hasNewSubFileLocked(id uuid.UUID) bool {
	for _, sf := range t.newSubFiles {
		if sf.ID == id {
			return true
		}
	}
	return false
}

// FindSubFile returns the sub-file header with the given id, preferring a
// newly added entry in this transaction over the base header's, or nil if
// id is unknown to either.
func (t *Transaction) FindSubFile(id uuid.UUID) *fileheader.SubFileHeader {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, sf := range t.newSubFiles {
		if sf.ID == id {
			return sf
		}
	}
	return t.base.FindSubFile(id)
}

// SubFiles returns every sub-file visible in this transaction: the base
// header's entries plus any added via AddSubFile.
func (t *Transaction) SubFiles() []*fileheader.SubFileHeader {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*fileheader.SubFileHeader, 0, len(t.base.SubFiles)+len(t.newSubFiles))
	out = append(out, t.base.SubFiles...)
	out = append(out, t.newSubFiles...)
	return out
}

// AddSubFile registers a brand-new sub-file directory entry, to be
// published on Commit alongside any existing entries.
func (t *Transaction) AddSubFile(header *fileheader.SubFileHeader) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Editable {
		return ErrNotEditable
	}
	if t.base.FindSubFile(header.ID) != nil || t.hasNewSubFileLocked(header.ID) {
		return errors.New("filestructure: sub-file id already exists")
	}
	t.mutated = true
	t.newSubFiles = append(t.newSubFiles, header)
	return nil
}

// Commit applies every queued root change, new sub-file, and deferred
// free, publishes a new FileHeaderBlock as the container's committed
// state, and advances SnapshotSeq by one. The released Container's editor
// slot becomes available for the next BeginEdit.
func (t *Transaction) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Editable {
		return ErrNotEditable
	}
	// A transaction that performed no mutations leaves the committed
	// header untouched: same SnapshotSeq, same bitmap span, no block 0
	// rewrite.
	if !t.mutated {
		t.state = Committed
		t.container.release()
		return nil
	}
	t.state = PendingCommit

	for _, idx := range t.pendingFrees {
		t.bitmap.Clear(uint(idx))
	}

	payload, err := t.bitmap.MarshalBinary()
	if err != nil {
		t.state = Editable
		return err
	}
	// The bitmap is re-staged to a fresh span on every commit rather than
	// tracked for in-place reuse: its old blocks become unreachable
	// garbage (no compaction pass reclaims them in this package), which
	// is simpler than bookkeeping the previous span's exact block count
	// and safe since allocation never shrinks a container.
	needed := BlocksNeeded(len(payload), t.medium.PageSize())
	blocks, err := t.allocateBlocksLocked(needed)
	if err != nil {
		t.state = Editable
		return err
	}
	bitmapRoot := blocks[0]
	// Re-marshal: allocateBlocksLocked may have flipped bits in the very
	// bitmap being serialized.
	payload, err = t.bitmap.MarshalBinary()
	if err != nil {
		t.state = Editable
		return err
	}
	if err := storeBitmapPayload(t.medium, bitmapRoot, payload); err != nil {
		t.state = Editable
		return err
	}

	next := t.base
	next.AllocBitmapRoot = bitmapRoot
	next.SubFiles = append(next.SubFiles, t.newSubFiles...)
	// Root changes must be applied after the new sub-files join the
	// directory: a sub-file created and then written within the same
	// transaction carries its final root, not the empty tree it was
	// registered with.
	for _, sf := range next.SubFiles {
		if rc, ok := t.roots[sf.ID]; ok {
			sf.RootBlock = rc.rootBlock
			sf.TreeHeight = rc.treeHeight
			sf.RecordCount = rc.recordCount
			sf.LastModifiedSnapshot = next.SnapshotSeq + 1
		}
		if cc, ok := t.contentSums[sf.ID]; ok {
			sf.ContentChecksumKind = cc.kind
			sf.ContentChecksum = cc.sum
		}
	}
	next.SnapshotSeq++
	next.BlockCount = t.base.BlockCount

	if err := t.medium.Commit(next.Encode()); err != nil {
		t.state = Editable
		return err
	}

	t.state = Committed
	t.container.publish(next, t.bitmap)
	t.container.log.Infof(logging.NSAllocator+"commit: snapshot_seq=%d sub_files=%d", next.SnapshotSeq, len(next.SubFiles))
	t.container.release()
	return nil
}

// Rollback discards every queued change and any blocks allocated by
// AllocateBlocks, leaving the container's committed state untouched.
func (t *Transaction) Rollback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Editable {
		return
	}
	t.medium.Rollback()
	t.state = RolledBack
	t.container.log.Infof(logging.NSAllocator + "rollback")
	t.container.release()
}
