// Package subfile implements the sub-file I/O session pool of spec.md
// §4.5: a writable open of a sub-file creates two parallel session pairs
// (SourceData/DestinationData, SourceIndex/DestinationIndex) so shadow
// copies made during a node split never evict the source pages a
// concurrent reader of the same transaction still needs; a read-only
// open allocates only the source pair.
package subfile

import (
	"errors"

	"github.com/snapdb/snapdb/internal/cache"
	"github.com/snapdb/snapdb/internal/diskio"
)

// ErrReadOnly is returned by Destination and the swap operations when
// called against a read-only Pool.
var ErrReadOnly = errors.New("subfile: pool was opened read-only")

// Sessions is one data/index session pair.
type Sessions struct {
	Data  *diskio.Session
	Index *diskio.Session
}

// Pool is one open sub-file's session pool. A writable Pool holds a
// Source pair (the sub-file's current, durable state) and a Destination
// pair (scratch space for in-flight shadow copies); a read-only Pool
// holds only Source.
type Pool struct {
	source      Sessions
	destination Sessions
	writable    bool
}

// OpenWritable creates a Pool with both Source and Destination session
// pairs, all addressing the same Medium and sharing pageCache, keyed by
// fileID so this sub-file's pages never collide with another's in a
// shared cache.
func OpenWritable(medium diskio.Medium, fileID uint64, pageCache *cache.PageCache) *Pool {
	return &Pool{
		source: Sessions{
			Data:  diskio.NewSession(medium, fileID, pageCache),
			Index: diskio.NewSession(medium, fileID, pageCache),
		},
		destination: Sessions{
			Data:  diskio.NewSession(medium, fileID, pageCache),
			Index: diskio.NewSession(medium, fileID, pageCache),
		},
		writable: true,
	}
}

// OpenReadOnly creates a Pool with only a Source session pair.
func OpenReadOnly(medium diskio.Medium, fileID uint64, pageCache *cache.PageCache) *Pool {
	return &Pool{
		source: Sessions{
			Data:  diskio.NewSession(medium, fileID, pageCache),
			Index: diskio.NewSession(medium, fileID, pageCache),
		},
		writable: false,
	}
}

// Writable reports whether this Pool has a Destination pair.
func (p *Pool) Writable() bool { return p.writable }

// Source returns the sub-file's current-state session pair.
func (p *Pool) Source() Sessions { return p.source }

// Destination returns the scratch session pair used for in-flight shadow
// copies. Only valid on a writable Pool.
func (p *Pool) Destination() (Sessions, error) {
	if !p.writable {
		return Sessions{}, ErrReadOnly
	}
	return p.destination, nil
}

// SwapData promotes the Destination data session to Source, demoting the
// former Source to Destination, after a successful write completes
// (spec.md §4.5's swap_data).
func (p *Pool) SwapData() error {
	if !p.writable {
		return ErrReadOnly
	}
	p.source.Data, p.destination.Data = p.destination.Data, p.source.Data
	return nil
}

// SwapIndex promotes the Destination index session to Source (swap_index).
func (p *Pool) SwapIndex() error {
	if !p.writable {
		return ErrReadOnly
	}
	p.source.Index, p.destination.Index = p.destination.Index, p.source.Index
	return nil
}
