package filestructure

import (
	"testing"

	"github.com/google/uuid"

	"github.com/snapdb/snapdb/internal/bitarray"
	"github.com/snapdb/snapdb/internal/diskio"
	"github.com/snapdb/snapdb/internal/fileheader"
	"github.com/snapdb/snapdb/internal/mempool"
)

func newEmptyContainer(t *testing.T) (*Container, diskio.Medium) {
	t.Helper()
	pool, err := mempool.New(mempool.Config{PageSize: 512, MaxBytes: 1 << 20, TargetBytes: 1 << 19})
	if err != nil {
		t.Fatalf("mempool.New: %v", err)
	}
	medium := diskio.NewHeapMedium(pool)
	if _, err := medium.Extend(1); err != nil {
		t.Fatalf("Extend: %v", err)
	}
	header := &fileheader.FileHeaderBlock{BlockSize: 512, BlockCount: 1}
	if err := medium.Commit(header.Encode()); err != nil {
		t.Fatalf("initial Commit: %v", err)
	}
	bm := bitarray.New(1)
	bm.Set(0)
	return OpenContainer(medium, header, bm), medium
}

func TestBeginEditRejectsConcurrentEditor(t *testing.T) {
	c, _ := newEmptyContainer(t)
	tx1, err := c.BeginEdit()
	if err != nil {
		t.Fatalf("BeginEdit: %v", err)
	}
	defer tx1.Rollback()

	if _, err := c.BeginEdit(); err != ErrEditorExists {
		t.Fatalf("second BeginEdit err = %v, want ErrEditorExists", err)
	}
}

func TestCommitPublishesNewSubFileAndAdvancesSnapshot(t *testing.T) {
	c, _ := newEmptyContainer(t)
	tx, err := c.BeginEdit()
	if err != nil {
		t.Fatalf("BeginEdit: %v", err)
	}

	blocks, err := tx.AllocateBlocks(1)
	if err != nil {
		t.Fatalf("AllocateBlocks: %v", err)
	}

	sfID := uuid.New()
	sf := &fileheader.SubFileHeader{ID: sfID, Name: "points", RootBlock: blocks[0], TreeHeight: 1}
	if err := tx.AddSubFile(sf); err != nil {
		t.Fatalf("AddSubFile: %v", err)
	}
	if err := tx.SetSubFileRoot(sfID, blocks[0], 1, 3); err != nil {
		t.Fatalf("SetSubFileRoot: %v", err)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if tx.State() != Committed {
		t.Fatalf("State() = %v, want Committed", tx.State())
	}

	head := c.CurrentHeader()
	if head.SnapshotSeq != 1 {
		t.Fatalf("SnapshotSeq = %d, want 1", head.SnapshotSeq)
	}
	got := head.FindSubFile(sfID)
	if got == nil {
		t.Fatalf("FindSubFile(%s) = nil", sfID)
	}
	if got.RecordCount != 3 {
		t.Fatalf("RecordCount = %d, want 3", got.RecordCount)
	}

	if _, err := c.BeginEdit(); err != nil {
		t.Fatalf("BeginEdit after commit released editor: %v", err)
	}
}

func TestSetSubFileRootRejectsUnknownID(t *testing.T) {
	c, _ := newEmptyContainer(t)
	tx, err := c.BeginEdit()
	if err != nil {
		t.Fatalf("BeginEdit: %v", err)
	}
	defer tx.Rollback()

	if err := tx.SetSubFileRoot(uuid.New(), 1, 1, 0); err != ErrUnknownSubFile {
		t.Fatalf("SetSubFileRoot err = %v, want ErrUnknownSubFile", err)
	}
}

func TestRollbackReleasesEditorWithoutPublishing(t *testing.T) {
	c, _ := newEmptyContainer(t)
	tx, err := c.BeginEdit()
	if err != nil {
		t.Fatalf("BeginEdit: %v", err)
	}
	if _, err := tx.AllocateBlocks(2); err != nil {
		t.Fatalf("AllocateBlocks: %v", err)
	}
	tx.Rollback()

	if tx.State() != RolledBack {
		t.Fatalf("State() = %v, want RolledBack", tx.State())
	}
	if c.CurrentHeader().SnapshotSeq != 0 {
		t.Fatalf("SnapshotSeq changed after rollback")
	}
	if _, err := c.BeginEdit(); err != nil {
		t.Fatalf("BeginEdit after rollback: %v", err)
	}
}

func TestFreeBlockDeferredUntilCommit(t *testing.T) {
	c, _ := newEmptyContainer(t)
	tx, err := c.BeginEdit()
	if err != nil {
		t.Fatalf("BeginEdit: %v", err)
	}
	blocks, err := tx.AllocateBlocks(1)
	if err != nil {
		t.Fatalf("AllocateBlocks: %v", err)
	}
	if err := tx.FreeBlock(blocks[0]); err != nil {
		t.Fatalf("FreeBlock: %v", err)
	}
	// Allocating again before commit must not reuse the freed block.
	again, err := tx.AllocateBlocks(1)
	if err != nil {
		t.Fatalf("second AllocateBlocks: %v", err)
	}
	if again[0] == blocks[0] {
		t.Fatalf("freed-but-uncommitted block was reused within the same transaction")
	}
}

func TestNoopCommitLeavesHeaderUnchanged(t *testing.T) {
	c, _ := newEmptyContainer(t)
	before := c.CurrentHeader()

	tx, err := c.BeginEdit()
	if err != nil {
		t.Fatalf("BeginEdit: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if tx.State() != Committed {
		t.Fatalf("State() = %v, want Committed", tx.State())
	}

	after := c.CurrentHeader()
	if after.SnapshotSeq != before.SnapshotSeq {
		t.Fatalf("SnapshotSeq = %d after no-op commit, want %d", after.SnapshotSeq, before.SnapshotSeq)
	}
	if after.AllocBitmapRoot != before.AllocBitmapRoot {
		t.Fatalf("AllocBitmapRoot rewritten by a no-op commit")
	}

	if _, err := c.BeginEdit(); err != nil {
		t.Fatalf("BeginEdit after no-op commit: %v", err)
	}
}
