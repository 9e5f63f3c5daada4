// Package diskio implements DiskMedium (spec.md §4.4): a paged address
// space with shadow-paged commit/rollback. Two backends exist, both behind
// the Medium interface: HeapMedium (internal/mempool-backed, for ephemeral
// or staging containers) and FileMedium (buffered over a vfs.FS file, for
// durable containers). A Session is a per-caller cursor over a Medium
// fronted by the shared page cache (it places no limit on how many pages
// it pins), matching spec.md §4.5's
// "per-sub-file pool of sessions" shape one level down (at the raw block
// level; internal/subfile builds the data/index session pairs on top).
package diskio

import (
	"errors"
	"sort"
	"sync"

	"github.com/snapdb/snapdb/internal/checksum"
)

// Sentinel errors matching spec.md §7's error-kind taxonomy for this layer.
var (
	ErrOutOfRange  = errors.New("diskio: block index out of range")
	ErrDiskFull    = errors.New("diskio: allocator exhausted backing storage")
	ErrNotWritable = errors.New("diskio: medium opened read-only")
)

// Medium is the paged address space spec.md §4.4 describes. Writes are
// staged until Commit publishes them atomically; Rollback discards staged
// writes without touching committed state. The medium does not tell
// callers apart: ReadBlock of a staged index returns the staged content to
// whoever calls it.
type Medium interface {
	// PageSize returns the fixed block size this medium was created with.
	PageSize() int

	// BlockCount returns the number of committed blocks (block 0 is
	// always the header).
	BlockCount() uint32

	// ReadBlock reads the committed content of block idx into dst, which
	// must be exactly PageSize() bytes. Staged-but-uncommitted writes by
	// the current transaction are visible to ReadBlock so a writer can
	// read back its own uncommitted mutations.
	ReadBlock(idx uint32, dst []byte) error

	// StageWrite queues data (exactly PageSize() bytes, including its
	// trailer) to be written to block idx on the next Commit. Staging the
	// same index twice replaces the earlier staged content.
	StageWrite(idx uint32, data []byte) error

	// Extend grows the medium by n blocks, returning the index of the
	// first new block. New blocks are staged, not committed, until the
	// next Commit (so an aborted transaction leaves BlockCount
	// unchanged).
	Extend(n uint32) (first uint32, err error)

	// Commit flushes every staged write (recomputing and stamping each
	// block's checksum trailer) and then writes header as block 0 last,
	// establishing a happens-before edge to every subsequent read of the
	// committed state (spec.md §5).
	Commit(header []byte) error

	// Rollback discards every staged write and any blocks added by
	// Extend since the last Commit.
	Rollback()

	// Close releases backing resources. Close does not implicitly commit.
	Close() error
}

// stageMap is the shared staged-write bookkeeping both backends use:
// dirty blocks recomputed and flushed together on Commit.
type stageMap struct {
	mu      sync.Mutex
	dirty   map[uint32][]byte
	extendN uint32 // blocks appended by Extend since the last Commit/Rollback
}

func newStageMap() *stageMap {
	return &stageMap{dirty: make(map[uint32][]byte)}
}

func (s *stageMap) stage(idx uint32, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.dirty[idx] = cp
}

func (s *stageMap) peek(idx uint32) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dirty[idx]
	return d, ok
}

func (s *stageMap) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = make(map[uint32][]byte)
	s.extendN = 0
}

// stampAndFlush recomputes and stamps the checksum trailer of every staged
// block, invoking write for each, in ascending block-index order (so a
// crash mid-flush leaves lower-numbered blocks — never the header, which
// is written last by the caller — in a self-consistent state).
func (s *stageMap) stampAndFlush(write func(idx uint32, data []byte) error) error {
	s.mu.Lock()
	indices := make([]uint32, 0, len(s.dirty))
	for idx := range s.dirty {
		indices = append(indices, idx)
	}
	s.mu.Unlock()

	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	for _, idx := range indices {
		data, _ := s.peek(idx)
		checksum.WriteTrailer(data, checksum.StatusValid)
		if err := write(idx, data); err != nil {
			return err
		}
	}
	return nil
}

