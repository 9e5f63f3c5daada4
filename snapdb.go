// Package snapdb is the public facade of the storage core: Open/Create a
// container, BeginEdit to mutate it through an Editor, and
// AcquireReadSnapshot to read a pinned, lock-free view of it through a
// ReadSnapshot. Everything underneath (internal/filestructure's
// Editable->PendingCommit->Committed state machine, internal/diskio's
// shadow-paged Medium, internal/tree's copy-on-write B+tree) is described
// in the internal packages' own doc comments; this file only wires them
// together into one handle: a diskio.Medium, a filestructure.Container, a
// shared subfile/cache.PageCache, and the registered pair encodings,
// opened and closed together.
package snapdb

import (
	"encoding/binary"
	"errors"

	"github.com/google/uuid"

	"github.com/snapdb/snapdb/internal/bitarray"
	"github.com/snapdb/snapdb/internal/cache"
	"github.com/snapdb/snapdb/internal/diskio"
	"github.com/snapdb/snapdb/internal/fileheader"
	"github.com/snapdb/snapdb/internal/filestructure"
	"github.com/snapdb/snapdb/internal/logging"
	"github.com/snapdb/snapdb/internal/mempool"
	"github.com/snapdb/snapdb/vfs"
)

// Errors surfaced by the facade beyond what the internal packages already
// define; those layers' sentinels propagate through this package
// unwrapped where they already name the condition precisely.
var (
	// ErrClosed is returned by any DB/Editor/ReadSnapshot method called
	// after Close.
	ErrClosed = errors.New("snapdb: handle is closed")

	// ErrUnknownSubFile is returned when an operation names a sub-file id
	// absent from the container.
	ErrUnknownSubFile = errors.New("snapdb: unknown sub-file")

	// ErrSubFileNameExists is returned by CreateSubFile when name is
	// already in use by another sub-file in the same container: sub-files
	// are also addressable by name, so names must not collide even though
	// the directory itself keys on ID.
	ErrSubFileNameExists = errors.New("snapdb: sub-file name already exists")
)

// DB is an open container: a Medium, its committed FileHeaderBlock state
// machine (internal/filestructure.Container), and the shared resources
// (page cache, memory pool) every Editor/ReadSnapshot against it uses.
type DB struct {
	medium    diskio.Medium
	container *filestructure.Container
	cache     *cache.PressureAwareCache
	unsub     func()
	pool      *mempool.Pool
	cfg       *Config
	log       logging.Logger

	closed bool
	path   string
}

// SetLogger installs l as the logger used by this DB and every future
// Editor/Transaction/Pool event against it; a nil l installs
// logging.OrDefault's WARN-level default logger. Safe to call at any time.
func (db *DB) SetLogger(l logging.Logger) {
	db.log = logging.OrDefault(l)
	db.container.SetLogger(db.log)
	db.pool.SetLogger(db.log)
}

// CreateMemory creates a new, ephemeral, in-memory-only container: its
// Medium is an internal/diskio.HeapMedium, so nothing outlives process
// exit. Useful for tests and short-lived scratch containers.
func CreateMemory(cfg *Config) (*DB, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	pool, err := mempool.New(mempool.Config{
		PageSize:    cfg.PageSize,
		MinBytes:    cfg.MinPoolBytes,
		MaxBytes:    cfg.MaxPoolBytes,
		TargetBytes: cfg.TargetPoolBytes,
	})
	if err != nil {
		return nil, err
	}
	medium := diskio.NewHeapMedium(pool)
	return bootstrap(medium, cfg, pool, "")
}

// Create creates a brand-new durable container at path, which must not
// already exist as a valid container (an existing zero-length or absent
// file is treated as "does not exist yet").
func Create(path string, cfg *Config) (*DB, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	pool, err := mempool.New(mempool.Config{
		PageSize:    cfg.PageSize,
		MinBytes:    cfg.MinPoolBytes,
		MaxBytes:    cfg.MaxPoolBytes,
		TargetBytes: cfg.TargetPoolBytes,
	})
	if err != nil {
		return nil, err
	}
	medium, err := diskio.OpenFileMedium(path, cfg.PageSize, 0)
	if err != nil {
		return nil, err
	}
	return bootstrap(medium, cfg, pool, path)
}

// bootstrap stages and commits block 0 (the header) for a brand-new
// container, then wraps medium in a Container. medium must report
// BlockCount() == 0 (nothing committed yet).
func bootstrap(medium diskio.Medium, cfg *Config, pool *mempool.Pool, path string) (*DB, error) {
	if _, err := medium.Extend(1); err != nil {
		return nil, err
	}
	header := &fileheader.FileHeaderBlock{
		BlockSize:  uint32(cfg.PageSize),
		BlockCount: 1,
	}
	if err := medium.Commit(header.Encode()); err != nil {
		return nil, err
	}

	bitmap := bitarray.New(1)
	bitmap.Set(0)

	container := filestructure.OpenContainer(medium, header, bitmap)
	pageCache := cache.NewPressureAwareCache(cfg.CacheCapacityBytes)
	db := &DB{
		medium:    medium,
		container: container,
		cache:     pageCache,
		unsub:     pageCache.Subscribe(pool.Events),
		pool:      pool,
		cfg:       cfg,
		log:       logging.Discard,
		path:      path,
	}
	return db, nil
}

// Open reopens an existing durable container at path.
func Open(path string, cfg *Config) (*DB, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	info, err := vfs.Default().Stat(path)
	if err != nil {
		return nil, err
	}
	blockCount := uint32(info.Size() / int64(cfg.PageSize))

	medium, err := diskio.OpenFileMedium(path, cfg.PageSize, blockCount)
	if err != nil {
		return nil, err
	}

	pool, err := mempool.New(mempool.Config{
		PageSize:    cfg.PageSize,
		MinBytes:    cfg.MinPoolBytes,
		MaxBytes:    cfg.MaxPoolBytes,
		TargetBytes: cfg.TargetPoolBytes,
	})
	if err != nil {
		_ = medium.Close()
		return nil, err
	}

	page := make([]byte, cfg.PageSize)
	if err := medium.ReadBlock(0, page); err != nil {
		_ = medium.Close()
		return nil, err
	}
	header, err := fileheader.Decode(page)
	if err != nil {
		_ = medium.Close()
		return nil, err
	}
	cfg.PageSize = int(header.BlockSize)

	bitmap, err := filestructure.LoadBitmap(medium, header.AllocBitmapRoot)
	if err != nil {
		_ = medium.Close()
		return nil, err
	}

	container := filestructure.OpenContainer(medium, header, bitmap)
	pageCache := cache.NewPressureAwareCache(cfg.CacheCapacityBytes)
	db := &DB{
		medium:    medium,
		container: container,
		cache:     pageCache,
		unsub:     pageCache.Subscribe(pool.Events),
		pool:      pool,
		cfg:       cfg,
		log:       logging.Discard,
		path:      path,
	}
	return db, nil
}

// BeginEdit opens a new Editor against the container's current committed
// state. Only one Editor may be open at a time; a second concurrent
// BeginEdit returns filestructure.ErrEditorExists.
func (db *DB) BeginEdit() (*Editor, error) {
	if db.closed {
		return nil, ErrClosed
	}
	txn, err := db.container.BeginEdit()
	if err != nil {
		return nil, err
	}
	return &Editor{
		db:      db,
		txn:     txn,
		pools:   make(map[uuid.UUID]*subfilePool),
		writers: make(map[uuid.UUID]*writerEntry),
	}, nil
}

// AcquireReadSnapshot pins the container's current committed header and
// returns a ReadSnapshot over it. The snapshot is unaffected by any
// writer commit that happens after this call returns.
func (db *DB) AcquireReadSnapshot() *ReadSnapshot {
	return &ReadSnapshot{
		db:     db,
		header: db.container.CurrentHeader(),
		pools:  make(map[uuid.UUID]*subfilePool),
	}
}

// SnapshotSeq returns the container's last-committed snapshot sequence
// number.
func (db *DB) SnapshotSeq() uint64 {
	return db.container.CurrentHeader().SnapshotSeq
}

// Close releases the DB's Medium and any backing resources (the
// advisory lock on a durable container, the in-memory pool's pages).
// Close does not implicitly commit or discard an open Editor; the caller
// must Commit or Rollback it first.
func (db *DB) Close() error {
	if db.closed {
		return ErrClosed
	}
	db.closed = true
	db.unsub()
	db.cache.Close()
	return db.medium.Close()
}

// fileIDFor derives a subfile.Pool fileID deterministically from a
// sub-file's UUID, so reopening a container never needs a persisted
// counter to keep cache keys stable across sessions.
func fileIDFor(id uuid.UUID) uint64 {
	return binary.BigEndian.Uint64(id[:8])
}
