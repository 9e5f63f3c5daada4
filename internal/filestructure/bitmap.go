package filestructure

import (
	"encoding/binary"

	"github.com/snapdb/snapdb/internal/bitarray"
	"github.com/snapdb/snapdb/internal/diskio"
	"github.com/snapdb/snapdb/internal/mempool"
)

// pageScratch returns a zeroed pageSize-length scratch buffer from the
// shared buffer pool. Both ReadBlock and StageWrite copy, so callers may
// Put the buffer back as soon as the call returns.
func pageScratch(pageSize int) []byte {
	buf := mempool.GlobalBufferPool.Get(pageSize)
	if cap(buf) < pageSize {
		return make([]byte, pageSize)
	}
	buf = buf[:pageSize]
	clear(buf)
	return buf
}

// bitmapLenPrefix is the byte width of the length prefix stored ahead of
// the serialized bitmap: a plain uint32 byte count, so decoding knows how
// many of the trailing blocks' bytes are real payload versus padding.
const bitmapLenPrefix = 4

// LoadBitmap reads the allocation bitmap starting at rootBlock from
// medium, spanning as many blocks as its stored length requires. An empty
// bitmap (rootBlock == 0 with no prior commit) is returned for a brand
// new container.
func LoadBitmap(medium diskio.Medium, rootBlock uint32) (*bitarray.BitArray, error) {
	bm := bitarray.New(0)
	if medium.BlockCount() <= rootBlock {
		return bm, nil
	}

	page := pageScratch(medium.PageSize())
	defer mempool.GlobalBufferPool.Put(page)
	if err := medium.ReadBlock(rootBlock, page); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(page[:bitmapLenPrefix])
	if n == 0 {
		return bm, nil
	}

	payload := make([]byte, 0, n)
	perBlock := medium.PageSize() - bitmapLenPrefix
	end := bitmapLenPrefix + int(n)
	if end > len(page) {
		end = len(page)
	}
	payload = append(payload, page[bitmapLenPrefix:end]...)
	remaining := int(n) - (perBlock)
	blockIdx := rootBlock + 1
	for remaining > 0 {
		blk := pageScratch(medium.PageSize())
		if err := medium.ReadBlock(blockIdx, blk); err != nil {
			mempool.GlobalBufferPool.Put(blk)
			return nil, err
		}
		take := remaining
		if take > len(blk) {
			take = len(blk)
		}
		payload = append(payload, blk[:take]...)
		mempool.GlobalBufferPool.Put(blk)
		remaining -= take
		blockIdx++
	}

	if err := bm.UnmarshalBinary(payload); err != nil {
		return nil, err
	}
	return bm, nil
}

// StoreBitmap serializes bm and stages it across as many blocks as needed
// starting at rootBlock, via sess. Callers allocate rootBlock's span
// through the same Transaction used for everything else in the commit, so
// the writes land in the same atomic header-swap.
func StoreBitmap(medium diskio.Medium, rootBlock uint32, bm *bitarray.BitArray) error {
	payload, err := bm.MarshalBinary()
	if err != nil {
		return err
	}
	return storeBitmapPayload(medium, rootBlock, payload)
}

// storeBitmapPayload is StoreBitmap given an already-marshaled payload, so
// Commit can reuse it without re-serializing the bitmap redundantly.
func storeBitmapPayload(medium diskio.Medium, rootBlock uint32, payload []byte) error {
	pageSize := medium.PageSize()
	first := pageScratch(pageSize)
	defer mempool.GlobalBufferPool.Put(first)
	binary.LittleEndian.PutUint32(first[:bitmapLenPrefix], uint32(len(payload)))
	n := copy(first[bitmapLenPrefix:], payload)
	if err := medium.StageWrite(rootBlock, first); err != nil {
		return err
	}

	rest := payload[n:]
	blockIdx := rootBlock + 1
	for len(rest) > 0 {
		blk := pageScratch(pageSize)
		take := copy(blk, rest)
		err := medium.StageWrite(blockIdx, blk)
		mempool.GlobalBufferPool.Put(blk)
		if err != nil {
			return err
		}
		rest = rest[take:]
		blockIdx++
	}
	return nil
}

// BlocksNeeded returns how many whole blocks a serialized bitmap of
// byteLen bytes (plus its length prefix) would span at the given page
// size, for an AllocateBlocks(n) call ahead of StoreBitmap.
func BlocksNeeded(byteLen, pageSize int) uint32 {
	total := byteLen + bitmapLenPrefix
	n := (total + pageSize - 1) / pageSize
	if n == 0 {
		n = 1
	}
	return uint32(n)
}
