package snapdb

import (
	"github.com/google/uuid"

	"github.com/snapdb/snapdb/internal/checksum"
	"github.com/snapdb/snapdb/internal/encoding"
	"github.com/snapdb/snapdb/internal/fileheader"
	"github.com/snapdb/snapdb/internal/filestructure"
	"github.com/snapdb/snapdb/internal/subfile"
	"github.com/snapdb/snapdb/internal/tree"
)

// subfilePool pairs a subfile.Pool with the tree.Store built over it, so
// an Editor only ever constructs one of each per sub-file per edit.
type subfilePool struct {
	pool  *subfile.Pool
	store *tree.Store
}

// writerEntry is a sub-file's in-progress Writer together with the
// SubFileHeader fields it was opened from, so Commit knows which
// directory entry to update.
type writerEntry struct {
	sf     *fileheader.SubFileHeader
	writer *tree.Writer
}

// Editor is a single writer's view of a container between BeginEdit and
// Commit/Rollback. It wraps a filestructure.Transaction and lazily opens
// a tree.Store/tree.Writer per sub-file the caller touches; there is no
// separate batch-of-mutations object, since every call already lands
// directly in the transaction's shadow state rather than a replayable
// log record.
type Editor struct {
	db      *DB
	txn     *filestructure.Transaction
	pools   map[uuid.UUID]*subfilePool
	writers map[uuid.UUID]*writerEntry

	done bool
}

func (e *Editor) poolFor(sf *fileheader.SubFileHeader) (*subfilePool, error) {
	if p, ok := e.pools[sf.ID]; ok {
		return p, nil
	}
	enc, err := encoding.Lookup(sf.Encoding, int(sf.KeySize), int(sf.ValueSize))
	if err != nil {
		return nil, err
	}
	pool := subfile.OpenWritable(e.db.medium, fileIDFor(sf.ID), e.db.cache.PageCache)
	store := &tree.Store{
		Pool:     pool,
		Enc:      enc,
		KeySize:  int(sf.KeySize),
		PageSize: e.db.cfg.PageSize,
		Txn:      e.txn,
	}
	p := &subfilePool{pool: pool, store: store}
	e.pools[sf.ID] = p
	return p, nil
}

// findSubFile looks up id among the sub-files already committed before
// this edit began, or newly added within it.
func (e *Editor) findSubFile(id uuid.UUID) *fileheader.SubFileHeader {
	return e.txn.FindSubFile(id)
}

func (e *Editor) writerFor(id uuid.UUID) (*tree.Writer, error) {
	if w, ok := e.writers[id]; ok {
		return w.writer, nil
	}
	sf := e.findSubFile(id)
	if sf == nil {
		return nil, ErrUnknownSubFile
	}
	p, err := e.poolFor(sf)
	if err != nil {
		return nil, err
	}
	w := tree.OpenWriter(p.store, sf.RootBlock, sf.TreeHeight, sf.RecordCount, int(sf.ValueSize))
	e.writers[id] = &writerEntry{sf: sf, writer: w}
	return w, nil
}

// CreateSubFile registers a new, initially empty sub-file named name,
// storing keyType/valueType as opaque domain-type identifiers (see
// KeyTypeUint64/ValueTypeBytes etc. for this package's own well-known
// choices) and encodingID as the GUID of a registered
// internal/encoding.PairEncoding sized for keySize/valueSize (valueSize
// is 0 for a variable-length value encoding).
func (e *Editor) CreateSubFile(name string, keyType, valueType, encodingID uuid.UUID, keySize, valueSize int) (uuid.UUID, error) {
	for _, sf := range e.allSubFiles() {
		if sf.Name == name {
			return uuid.Nil, ErrSubFileNameExists
		}
	}

	enc, err := encoding.Lookup(encodingID, keySize, valueSize)
	if err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	pool := subfile.OpenWritable(e.db.medium, fileIDFor(id), e.db.cache.PageCache)
	store := &tree.Store{
		Pool:     pool,
		Enc:      enc,
		KeySize:  keySize,
		PageSize: e.db.cfg.PageSize,
		Txn:      e.txn,
	}
	builder := tree.NewSequentialBuilder(store, valueSize)
	root, height, count, err := builder.Finish()
	if err != nil {
		return uuid.Nil, err
	}

	sf := &fileheader.SubFileHeader{
		ID:          id,
		Name:        name,
		KeyType:     keyType,
		ValueType:   valueType,
		Encoding:    encodingID,
		RootBlock:   root,
		TreeHeight:  height,
		RecordCount: count,
		KeySize:     uint32(keySize),
		ValueSize:   uint32(valueSize),
	}
	if err := e.txn.AddSubFile(sf); err != nil {
		return uuid.Nil, err
	}

	e.pools[id] = &subfilePool{pool: pool, store: store}
	e.writers[id] = &writerEntry{sf: sf, writer: tree.OpenWriter(store, root, height, count, valueSize)}
	return id, nil
}

// allSubFiles returns every sub-file visible in this edit: committed
// entries plus any AddSubFile calls already made, as reported by the
// transaction's SubFiles. Callers that just need one entry should use
// findSubFile.
func (e *Editor) allSubFiles() []*fileheader.SubFileHeader {
	return e.txn.SubFiles()
}

// Insert adds (key, value) to the named sub-file's tree, rejecting a
// duplicate key with tree.ErrDuplicateKey.
func (e *Editor) Insert(subFileID uuid.UUID, key, value []byte) error {
	w, err := e.writerFor(subFileID)
	if err != nil {
		return err
	}
	return w.Insert(key, value)
}

// PairSource supplies pre-sorted (key, value) pairs to BulkLoad. Next
// returns ok == false once exhausted.
type PairSource interface {
	Next() (key, value []byte, ok bool)
}

// SliceSource is a PairSource over an in-memory, pre-sorted slice of
// key/value pairs, for callers building a bulk load from data already
// held in memory.
type SliceSource struct {
	Keys   [][]byte
	Values [][]byte
	pos    int
}

// Next returns the slice's next pair.
func (s *SliceSource) Next() (key, value []byte, ok bool) {
	if s.pos >= len(s.Keys) {
		return nil, nil, false
	}
	key, value = s.Keys[s.pos], s.Values[s.pos]
	s.pos++
	return key, value, true
}

// BulkLoad replaces subFileID's entire tree with one built in a single
// sequential pass over src, for the initial population of a freshly
// created, still-empty sub-file. src must yield strictly ascending keys;
// BulkLoad does not sort.
func (e *Editor) BulkLoad(subFileID uuid.UUID, src PairSource) error {
	sf := e.findSubFile(subFileID)
	if sf == nil {
		return ErrUnknownSubFile
	}
	p, err := e.poolFor(sf)
	if err != nil {
		return err
	}

	builder := tree.NewSequentialBuilder(p.store, int(sf.ValueSize))
	for {
		k, v, ok := src.Next()
		if !ok {
			break
		}
		if err := builder.Add(k, v); err != nil {
			return err
		}
	}
	root, height, count, err := builder.Finish()
	if err != nil {
		return err
	}

	e.writers[subFileID] = &writerEntry{
		sf:     sf,
		writer: tree.OpenWriter(p.store, root, height, count, int(sf.ValueSize)),
	}
	return nil
}

// StampContentChecksum computes the whole-sub-file content checksum of
// kind k over subFileID's current (uncommitted) record stream and queues
// it for publication with this edit's commit, so an auditor can later run
// ReadSnapshot.VerifyContent against the committed state.
func (e *Editor) StampContentChecksum(subFileID uuid.UUID, k checksum.Kind) error {
	w, err := e.writerFor(subFileID)
	if err != nil {
		return err
	}
	p := e.pools[subFileID]
	sc := tree.NewScanner(p.store, w.Root(), w.Height(), w.ValueSize())
	if err := sc.SeekToStart(); err != nil {
		return err
	}
	var buf []byte
	for {
		key, value, ok, err := sc.Read()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		buf = append(buf, key...)
		buf = append(buf, value...)
	}
	sum := checksum.ComputeContentChecksum(k, buf, byte(k))
	return e.txn.SetSubFileContentChecksum(subFileID, k, sum)
}

// Commit publishes every queued root change and new sub-file as the
// container's next committed state. A commit failure triggers an
// automatic rollback, so the container's committed state is never left
// half-published. The Editor is unusable afterward either way.
func (e *Editor) Commit() error {
	if e.done {
		return filestructure.ErrNotEditable
	}
	for id, entry := range e.writers {
		if err := e.txn.SetSubFileRoot(id, entry.writer.Root(), entry.writer.Height(), entry.writer.RecordCount()); err != nil {
			e.txn.Rollback()
			e.done = true
			return err
		}
	}
	if err := e.txn.Commit(); err != nil {
		e.txn.Rollback()
		e.done = true
		return err
	}
	e.done = true
	return nil
}

// Rollback discards every change made through this Editor, leaving the
// container's committed state untouched. The Editor is unusable
// afterward.
func (e *Editor) Rollback() {
	if e.done {
		return
	}
	e.txn.Rollback()
	e.done = true
}
