package snapdb

import (
	"errors"

	"github.com/google/uuid"

	"github.com/snapdb/snapdb/internal/checksum"
	"github.com/snapdb/snapdb/internal/encoding"
	"github.com/snapdb/snapdb/internal/fileheader"
	"github.com/snapdb/snapdb/internal/filter"
	"github.com/snapdb/snapdb/internal/merge"
	"github.com/snapdb/snapdb/internal/subfile"
	"github.com/snapdb/snapdb/internal/tree"
)

// ErrNotFound is returned by ReadSnapshot.Get when no record with the
// given key exists.
var ErrNotFound = errors.New("snapdb: key not found")

// ErrContentChecksumMismatch is returned by VerifyContent when a
// sub-file's recomputed content checksum does not match the value
// recorded in its directory entry.
var ErrContentChecksumMismatch = errors.New("snapdb: sub-file content checksum mismatch")

// ReadSnapshot is a read-only, lock-free view of a container pinned at
// the header observed by AcquireReadSnapshot: later writer commits never
// mutate the FileHeaderBlock this snapshot holds, so every Scanner/Union
// opened from it keeps reading the tree shapes that existed at acquire
// time even while a concurrent Editor commits new ones.
type ReadSnapshot struct {
	db     *DB
	header *fileheader.FileHeaderBlock
	pools  map[uuid.UUID]*subfilePool

	closed bool
}

// SnapshotSeq returns the snapshot sequence number this snapshot is
// pinned to.
func (s *ReadSnapshot) SnapshotSeq() uint64 {
	return s.header.SnapshotSeq
}

// SubFiles lists every sub-file directory entry visible in this
// snapshot.
func (s *ReadSnapshot) SubFiles() []*fileheader.SubFileHeader {
	return s.header.SubFiles
}

func (s *ReadSnapshot) find(id uuid.UUID) (*fileheader.SubFileHeader, error) {
	sf := s.header.FindSubFile(id)
	if sf == nil {
		return nil, ErrUnknownSubFile
	}
	return sf, nil
}

func (s *ReadSnapshot) poolFor(sf *fileheader.SubFileHeader) (*subfilePool, error) {
	if p, ok := s.pools[sf.ID]; ok {
		return p, nil
	}
	enc, err := encoding.Lookup(sf.Encoding, int(sf.KeySize), int(sf.ValueSize))
	if err != nil {
		return nil, err
	}
	pool := subfile.OpenReadOnly(s.db.medium, fileIDFor(sf.ID), s.db.cache.PageCache)
	store := &tree.Store{
		Pool:     pool,
		Enc:      enc,
		KeySize:  int(sf.KeySize),
		PageSize: s.db.cfg.PageSize,
	}
	p := &subfilePool{pool: pool, store: store}
	s.pools[sf.ID] = p
	return p, nil
}

// NewScanner returns a Scanner over subFileID's tree as it stood at this
// snapshot's acquire time.
func (s *ReadSnapshot) NewScanner(subFileID uuid.UUID) (*tree.Scanner, error) {
	if s.closed {
		return nil, ErrClosed
	}
	sf, err := s.find(subFileID)
	if err != nil {
		return nil, err
	}
	p, err := s.poolFor(sf)
	if err != nil {
		return nil, err
	}
	return tree.NewScanner(p.store, sf.RootBlock, sf.TreeHeight, int(sf.ValueSize)), nil
}

// Get looks up key in subFileID's tree by seeking directly to it, without
// requiring the caller to manage a Scanner.
func (s *ReadSnapshot) Get(subFileID uuid.UUID, key []byte) (value []byte, err error) {
	sc, err := s.NewScanner(subFileID)
	if err != nil {
		return nil, err
	}
	if err := sc.Seek(key); err != nil {
		return nil, err
	}
	k, v, ok, err := sc.Read()
	if err != nil {
		return nil, err
	}
	if !ok || string(k) != string(key) {
		return nil, ErrNotFound
	}
	return v, nil
}

// RecordCount returns the number of records subFileID held at this
// snapshot's acquire time.
func (s *ReadSnapshot) RecordCount(subFileID uuid.UUID) (uint64, error) {
	sf, err := s.find(subFileID)
	if err != nil {
		return 0, err
	}
	return sf.RecordCount, nil
}

// ContentChecksum computes the whole-sub-file content checksum of kind k
// over subFileID's records in key order, as stamped by
// Editor.StampContentChecksum. The record stream is materialized to apply
// the one-shot checksum algorithms, so this is an auditing operation, not
// a per-read check (per-block integrity is the trailer's job).
func (s *ReadSnapshot) ContentChecksum(subFileID uuid.UUID, k checksum.Kind) (uint32, error) {
	sc, err := s.NewScanner(subFileID)
	if err != nil {
		return 0, err
	}
	if err := sc.SeekToStart(); err != nil {
		return 0, err
	}
	var buf []byte
	for {
		key, value, ok, err := sc.Read()
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		buf = append(buf, key...)
		buf = append(buf, value...)
	}
	return checksum.ComputeContentChecksum(k, buf, byte(k)), nil
}

// VerifyContent recomputes subFileID's content checksum with the kind
// recorded in its directory entry and compares it against the stored
// value. A sub-file with no recorded checksum (KindNone) verifies
// trivially.
func (s *ReadSnapshot) VerifyContent(subFileID uuid.UUID) error {
	sf, err := s.find(subFileID)
	if err != nil {
		return err
	}
	if sf.ContentChecksumKind == checksum.KindNone {
		return nil
	}
	got, err := s.ContentChecksum(subFileID, sf.ContentChecksumKind)
	if err != nil {
		return err
	}
	if got != sf.ContentChecksum {
		return ErrContentChecksumMismatch
	}
	return nil
}

// UnionSource names one sub-file's contribution to NewUnion, ordered
// most-recent first: on a key collision between sources, the lowest-index
// source's record wins.
type UnionSource struct {
	SubFileID uuid.UUID
	Seek      filter.SeekFilter
}

// NewUnion opens a k-way merged ascending-key stream across sources,
// applying match (optional) to every merged record.
func (s *ReadSnapshot) NewUnion(sources []UnionSource, match *filter.BytesMatchFilter) (*merge.UnionTreeStream, error) {
	if s.closed {
		return nil, ErrClosed
	}
	merged := make([]merge.Source, 0, len(sources))
	for _, src := range sources {
		sc, err := s.NewScanner(src.SubFileID)
		if err != nil {
			return nil, err
		}
		merged = append(merged, merge.Source{Scanner: sc, Seek: src.Seek})
	}
	return merge.NewUnionTreeStream(merged, match), nil
}

// Close releases this snapshot's resources. A ReadSnapshot holds no lock
// on the container (the pinned header is plain immutable data), so Close
// only needs to drop its sub-file session pools.
func (s *ReadSnapshot) Close() {
	s.closed = true
	s.pools = nil
}
