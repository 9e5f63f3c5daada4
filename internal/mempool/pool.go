// pool.go implements the fixed-size page allocator described in spec.md
// §4.1: Allocate/Release/ReleaseMany plus cooperative collection events
// published through internal/rqueue's weak subscriber list, so a
// relieving subscriber is never pinned alive by the pool it watches.
package mempool

import (
	"errors"
	"sync"

	"github.com/snapdb/snapdb/internal/bitarray"
	"github.com/snapdb/snapdb/internal/logging"
	"github.com/snapdb/snapdb/internal/rqueue"
)

// ErrOutOfMemory is returned by Allocate when the pool is in Critical
// collection mode and cannot satisfy a new allocation.
var ErrOutOfMemory = errors.New("mempool: out of memory")

// ErrDoubleRelease is returned (debug builds only, see pool_debug.go) when
// a page index is released without a matching prior Allocate.
var ErrDoubleRelease = errors.New("mempool: double release")

// PageIndex is a dense identifier for an allocated page, stable for the
// page's lifetime and safe for a client to persist (HeapMedium maps block
// numbers to these).
type PageIndex uint32

// Config bounds a Pool's memory usage. PageSize must be a power of two.
type Config struct {
	PageSize    int
	MinBytes    int64 // bytes the pool keeps even when idle
	MaxBytes    int64 // hard ceiling; exceeding it in Critical mode rejects allocation
	TargetBytes int64 // soft target; reaching 90% of it fires Emergency collection
}

// Pool is a bounded allocator of fixed-size pages backed by unmanaged
// ([]byte) memory rather than individually GC-tracked objects. The page
// table is a chunked bitarray.LargeArray so growth never moves existing
// pages, and in-use tracking is a bitarray.BitArray rather than a map
// (the same containers backing the on-disk allocation bitmap).
type Pool struct {
	cfg Config

	mu    sync.Mutex
	pages *bitarray.LargeArray[[]byte]
	inUse *bitarray.BitArray

	// free is the reusable-page queue. A lock-free bounded queue rather
	// than a slice under mu: its capacity bound is soft (spec.md §5
	// accepts a brief overage to avoid a lock), and a Put that finds it
	// full simply strands that index, which only costs reuse of one page.
	free *rqueue.Queue[PageIndex]

	usedSize int64

	// Events publishes CollectionMode notifications, e.g. to a page cache
	// that should shed clean pages under pressure.
	Events *rqueue.WeakSubscriberList

	log logging.Logger
}

// New creates a Pool with the given configuration.
func New(cfg Config) (*Pool, error) {
	if cfg.PageSize <= 0 || cfg.PageSize&(cfg.PageSize-1) != 0 {
		return nil, errors.New("mempool: page size must be a power of two")
	}
	if cfg.MaxBytes < int64(cfg.PageSize) {
		return nil, errors.New("mempool: max bytes smaller than one page")
	}
	return &Pool{
		cfg:    cfg,
		pages:  bitarray.NewLargeArray[[]byte](),
		inUse:  bitarray.New(0),
		free:   rqueue.New[PageIndex](int(cfg.MaxBytes/int64(cfg.PageSize)) + 64),
		Events: rqueue.NewWeakSubscriberList(),
		log:    logging.Discard,
	}, nil
}

// SetLogger installs l as the pool's logger for collection-mode and
// out-of-memory events (spec.md §5's "collection callbacks invoked
// synchronously"); a nil or typed-nil l falls back to
// logging.OrDefault's WARN-level default logger.
func (p *Pool) SetLogger(l logging.Logger) {
	p.log = logging.OrDefault(l)
}

// PageSize returns the fixed page size this pool allocates.
func (p *Pool) PageSize() int { return p.cfg.PageSize }

// Allocate returns an owned, zeroed page and its dense index. It fails
// with ErrOutOfMemory if granting it would exceed MaxBytes while already
// in Critical mode.
func (p *Pool) Allocate() (PageIndex, []byte, error) {
	p.mu.Lock()

	before := p.collectionModeLocked()
	if before == rqueue.CollectionCritical && p.usedSize+int64(p.cfg.PageSize) > p.cfg.MaxBytes {
		p.mu.Unlock()
		p.log.Warnf(logging.NSPool+"allocate rejected: critical pressure, used=%d max=%d", p.usedSize, p.cfg.MaxBytes)
		return 0, nil, ErrOutOfMemory
	}

	var idx PageIndex
	if reused, ok := p.free.Get(); ok {
		idx = reused
		clear(p.pages.Get(uint(idx)))
	} else {
		idx = PageIndex(p.pages.Len())
		p.pages.Set(uint(idx), make([]byte, p.cfg.PageSize))
	}
	p.inUse.Set(uint(idx))
	p.usedSize += int64(p.cfg.PageSize)
	page := p.pages.Get(uint(idx))
	after := p.collectionModeLocked()
	p.mu.Unlock()

	if after != rqueue.CollectionNormal {
		p.RequestCollection(after)
	}
	return idx, page, nil
}

// Release returns a page to the pool for reuse.
func (p *Pool) Release(idx PageIndex) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.releaseLocked(idx)
}

func (p *Pool) releaseLocked(idx PageIndex) error {
	if uint(idx) >= p.pages.Len() || !p.inUse.Test(uint(idx)) {
		if debugPool {
			return ErrDoubleRelease
		}
		return nil
	}
	p.inUse.Clear(uint(idx))
	p.free.Put(idx)
	p.usedSize -= int64(p.cfg.PageSize)
	return nil
}

// ReleaseMany releases a batch of pages, returning the first error seen
// after attempting every release.
func (p *Pool) ReleaseMany(indices []PageIndex) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, idx := range indices {
		if err := p.releaseLocked(idx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PageFor returns the backing page for a previously allocated index. The
// returned slice aliases the pool's storage; callers must not retain it
// past Release.
func (p *Pool) PageFor(idx PageIndex) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pages.Get(uint(idx))
}

// UsedBytes returns the number of bytes currently allocated (not free).
func (p *Pool) UsedBytes() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.usedSize
}

// collectionModeLocked derives the current pressure mode from usage
// relative to Target/MaxBytes. Callers must hold p.mu.
func (p *Pool) collectionModeLocked() rqueue.CollectionMode {
	switch {
	case p.usedSize >= p.cfg.MaxBytes:
		return rqueue.CollectionCritical
	case p.cfg.TargetBytes > 0 && p.usedSize >= (p.cfg.TargetBytes*9)/10:
		return rqueue.CollectionEmergency
	default:
		return rqueue.CollectionNormal
	}
}

// RequestCollection publishes a collection event to subscribers. Exported
// so a caller (e.g. the page cache fronting DiskMedium) can also force a
// collection pass outside of the allocation path.
func (p *Pool) RequestCollection(mode rqueue.CollectionMode) {
	if mode != rqueue.CollectionNormal {
		p.log.Infof(logging.NSPool+"collection requested: mode=%s used=%d target=%d", mode, p.UsedBytes(), p.cfg.TargetBytes)
	}
	p.Events.Publish(mode)
}
