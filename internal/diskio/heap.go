package diskio

import (
	"sync"

	"github.com/snapdb/snapdb/internal/mempool"
)

// HeapMedium is a Medium backed entirely by an internal/mempool.Pool — no
// file descriptor, no persistence beyond process lifetime. Used for
// ephemeral or staging containers (spec.md §4.4's first backend).
type HeapMedium struct {
	pool *mempool.Pool

	mu      sync.RWMutex
	blocks  []mempool.PageIndex // committed blocks, indexed by block number
	staged  *stageMap
}

// NewHeapMedium creates an empty HeapMedium whose blocks are PageSize()
// bytes, backed by pool.
func NewHeapMedium(pool *mempool.Pool) *HeapMedium {
	return &HeapMedium{
		pool:   pool,
		staged: newStageMap(),
	}
}

func (m *HeapMedium) PageSize() int { return m.pool.PageSize() }

func (m *HeapMedium) BlockCount() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint32(len(m.blocks))
}

func (m *HeapMedium) ReadBlock(idx uint32, dst []byte) error {
	if data, ok := m.staged.peek(idx); ok {
		copy(dst, data)
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if int(idx) >= len(m.blocks) {
		return ErrOutOfRange
	}
	page := m.pool.PageFor(m.blocks[idx])
	copy(dst, page)
	return nil
}

func (m *HeapMedium) StageWrite(idx uint32, data []byte) error {
	m.staged.stage(idx, data)
	return nil
}

func (m *HeapMedium) Extend(n uint32) (first uint32, err error) {
	m.mu.RLock()
	first = uint32(len(m.blocks)) + m.staged.extendN
	m.mu.RUnlock()
	m.staged.mu.Lock()
	m.staged.extendN += n
	m.staged.mu.Unlock()
	for i := uint32(0); i < n; i++ {
		empty := make([]byte, m.pool.PageSize())
		m.staged.stage(first+i, empty)
	}
	return first, nil
}

func (m *HeapMedium) Commit(header []byte) error {
	if err := m.staged.stampAndFlush(func(idx uint32, data []byte) error {
		return m.writeCommitted(idx, data)
	}); err != nil {
		return err
	}
	if err := m.writeCommitted(0, header); err != nil {
		return err
	}
	m.staged.reset()
	return nil
}

func (m *HeapMedium) writeCommitted(idx uint32, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for uint32(len(m.blocks)) <= idx {
		pi, _, err := m.pool.Allocate()
		if err != nil {
			return err
		}
		m.blocks = append(m.blocks, pi)
	}
	copy(m.pool.PageFor(m.blocks[idx]), data)
	return nil
}

func (m *HeapMedium) Rollback() {
	m.staged.reset()
}

func (m *HeapMedium) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool.ReleaseMany(m.blocks)
}
