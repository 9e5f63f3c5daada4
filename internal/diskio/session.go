package diskio

import "github.com/snapdb/snapdb/internal/cache"

// Session is a per-caller cursor over a Medium, fronted by a shared
// internal/cache.PageCache (the "buffered page cache that fronts [the
// file-structure]" named in spec.md §2's system overview). FileID
// distinguishes one sub-file's blocks from another's within a shared
// cache, since a container's sub-files share the same underlying Medium
// address space but must not collide in the cache key.
type Session struct {
	medium Medium
	fileID uint64
	cache  *cache.PageCache
}

// NewSession creates a Session reading/writing through medium, using
// pageCache for reads (shared across all sessions against the same
// container so eviction pressure is pooled).
func NewSession(medium Medium, fileID uint64, pageCache *cache.PageCache) *Session {
	return &Session{medium: medium, fileID: fileID, cache: pageCache}
}

func (s *Session) key(idx uint32) cache.PageKey {
	return cache.PageKey{SubFileID: s.fileID, BlockIndex: uint64(idx)}
}

// Load returns a copy of block idx's current content (staged-but-uncommitted
// writes are visible, per Medium.ReadBlock).
func (s *Session) Load(idx uint32) ([]byte, error) {
	if page, ok := s.cache.Get(s.key(idx)); ok {
		return append([]byte(nil), page...), nil
	}
	buf := make([]byte, s.medium.PageSize())
	if err := s.medium.ReadBlock(idx, buf); err != nil {
		return nil, err
	}
	s.cache.Add(s.key(idx), buf)
	return append([]byte(nil), buf...), nil
}

// Stage queues data for block idx to be written on the next commit,
// dropping any cached copy so subsequent Load calls observe it.
func (s *Session) Stage(idx uint32, data []byte) error {
	s.cache.Drop(s.key(idx))
	return s.medium.StageWrite(idx, data)
}

// Extend allocates n fresh blocks, returning the first new index.
func (s *Session) Extend(n uint32) (uint32, error) {
	return s.medium.Extend(n)
}

// Pin loads block idx and returns a cache pin keeping it resident (immune
// to eviction) until the caller calls Unpin, so that a destination
// session's shadow copies during a node split do not evict pages a source
// session still needs (spec.md §4.5).
func (s *Session) Pin(idx uint32) (*cache.Pin, []byte, error) {
	if page, ok := s.cache.Get(s.key(idx)); ok {
		p := s.cache.Pin(s.key(idx), page)
		return p, p.Page(), nil
	}
	buf := make([]byte, s.medium.PageSize())
	if err := s.medium.ReadBlock(idx, buf); err != nil {
		return nil, nil, err
	}
	p := s.cache.Pin(s.key(idx), buf)
	return p, p.Page(), nil
}

// Unpin releases a pin obtained from Pin, making the page eligible for
// eviction again once no other pin holds it.
func (s *Session) Unpin(p *cache.Pin) { s.cache.Unpin(p) }

// PageSize returns the underlying medium's fixed page size.
func (s *Session) PageSize() int { return s.medium.PageSize() }

// BlockCount returns the underlying medium's committed block count.
func (s *Session) BlockCount() uint32 { return s.medium.BlockCount() }
