// Package fileheader implements FileHeaderBlock, the container
// superblock: stored at block 0, describing block size, the
// allocation-bitmap root, the sub-file directory, and the last-committed
// snapshot sequence number. It is immutable once published; mutation is
// by clone-edit-commit (internal/filestructure drives that protocol).
//
// Grounded on internal/manifest/version_edit.go (tagged persistent-state
// record); the allocation-bitmap and sub-file table roots are plain
// uint32 block indices, not offset/size handles. The RocksDB multi-legacy-format-version SST footer that used
// to live in internal/block/footer.go belongs here instead: a container
// has exactly one on-disk superblock layout, not a format history, so
// FileHeaderBlock is new code shaped like a manifest tag record rather
// than a copy of any one source file.
package fileheader

import (
	"encoding/binary"
	"errors"

	"github.com/google/uuid"

	"github.com/snapdb/snapdb/internal/checksum"
	"github.com/snapdb/snapdb/internal/encoding"
)

// Magic is the 16-byte container identifier stored at the start of block 0.
var Magic = [16]byte{'S', 'n', 'a', 'p', 'D', 'B', 'F', 'i', 'l', 'e', 0, 0, 0, 0, 0, 1}

// Version is the on-disk format version this package reads and writes.
const Version uint16 = 1

// Errors surfaced while opening or decoding a container, matching spec.md
// §7's error-kind taxonomy.
var (
	ErrCorruptHeader  = errors.New("fileheader: corrupt header")
	ErrChecksumInvalid = errors.New("fileheader: checksum invalid")
)

// SubFileHeader is one entry in the sub-file directory, exactly per
// spec.md §6, with the ambient ContentChecksumKind/ContentChecksum fields
// added by SPEC_FULL.md §4.3 (additive, in the directory entry's flexible
// trailing region — no field spec.md's table already names is touched).
type SubFileHeader struct {
	ID       uuid.UUID
	Name     string
	KeyType  uuid.UUID
	ValueType uuid.UUID
	Encoding uuid.UUID

	RootBlock             uint32
	TreeHeight            uint8
	RecordCount           uint64
	LastModifiedSnapshot  uint64

	KeySize   uint32
	ValueSize uint32

	ContentChecksumKind checksum.Kind
	ContentChecksum     uint32
}

// EncodeTo appends the wire encoding of h to dst.
func (h *SubFileHeader) EncodeTo(dst []byte) []byte {
	dst = append(dst, h.ID[:]...)
	dst = encoding.AppendLengthPrefixedSlice(dst, []byte(h.Name))
	dst = append(dst, h.KeyType[:]...)
	dst = append(dst, h.ValueType[:]...)
	dst = append(dst, h.Encoding[:]...)
	dst = encoding.AppendFixed32(dst, h.RootBlock)
	dst = append(dst, h.TreeHeight)
	dst = encoding.AppendFixed64(dst, h.RecordCount)
	dst = encoding.AppendFixed64(dst, h.LastModifiedSnapshot)
	dst = encoding.AppendFixed32(dst, h.KeySize)
	dst = encoding.AppendFixed32(dst, h.ValueSize)
	dst = append(dst, byte(h.ContentChecksumKind))
	dst = encoding.AppendFixed32(dst, h.ContentChecksum)
	return dst
}

// DecodeSubFileHeader decodes one SubFileHeader from the front of data,
// returning it and the remaining bytes.
func DecodeSubFileHeader(data []byte) (*SubFileHeader, []byte, error) {
	if len(data) < 16 {
		return nil, nil, ErrCorruptHeader
	}
	h := &SubFileHeader{}
	copy(h.ID[:], data[:16])
	data = data[16:]

	name, n, err := encoding.DecodeLengthPrefixedSlice(data)
	if err != nil {
		return nil, nil, ErrCorruptHeader
	}
	h.Name = string(name)
	data = data[n:]

	if len(data) < 16+16+16 {
		return nil, nil, ErrCorruptHeader
	}
	copy(h.KeyType[:], data[:16])
	data = data[16:]
	copy(h.ValueType[:], data[:16])
	data = data[16:]
	copy(h.Encoding[:], data[:16])
	data = data[16:]

	if len(data) < 4+1+8+8+4+4+1+4 {
		return nil, nil, ErrCorruptHeader
	}
	h.RootBlock = encoding.DecodeFixed32(data[0:4])
	h.TreeHeight = data[4]
	h.RecordCount = encoding.DecodeFixed64(data[5:13])
	h.LastModifiedSnapshot = encoding.DecodeFixed64(data[13:21])
	h.KeySize = encoding.DecodeFixed32(data[21:25])
	h.ValueSize = encoding.DecodeFixed32(data[25:29])
	h.ContentChecksumKind = checksum.Kind(data[29])
	h.ContentChecksum = encoding.DecodeFixed32(data[30:34])

	return h, data[34:], nil
}

// FileHeaderBlock is the root superblock of a container, stored at block 0
// (spec.md §3). A FileHeaderBlock value returned by Decode is a snapshot:
// it never mutates in place. FileStructure publishes a new value on commit.
type FileHeaderBlock struct {
	BlockSize       uint32
	BlockCount      uint32
	SnapshotSeq     uint64
	AllocBitmapRoot uint32
	NextFreeBlock   uint32
	SubFiles        []*SubFileHeader
	Flags           []uuid.UUID
}

// Clone returns a deep, independently mutable copy of h.
func (h *FileHeaderBlock) Clone() *FileHeaderBlock {
	c := &FileHeaderBlock{
		BlockSize:       h.BlockSize,
		BlockCount:      h.BlockCount,
		SnapshotSeq:     h.SnapshotSeq,
		AllocBitmapRoot: h.AllocBitmapRoot,
		NextFreeBlock:   h.NextFreeBlock,
	}
	c.SubFiles = make([]*SubFileHeader, len(h.SubFiles))
	for i, sf := range h.SubFiles {
		cp := *sf
		c.SubFiles[i] = &cp
	}
	c.Flags = append([]uuid.UUID(nil), h.Flags...)
	return c
}

// Encode serializes h into a full block of size h.BlockSize, including the
// checksum.TrailerSize trailer stamped as checksum.StatusValid.
func (h *FileHeaderBlock) Encode() []byte {
	block := make([]byte, h.BlockSize)
	buf := block[:0]
	buf = append(buf, Magic[:]...)
	buf = encoding.AppendFixed16(buf, Version)
	buf = encoding.AppendFixed32(buf, h.BlockSize)
	buf = encoding.AppendFixed32(buf, h.BlockCount)
	buf = encoding.AppendFixed64(buf, h.SnapshotSeq)
	buf = encoding.AppendFixed32(buf, h.AllocBitmapRoot)
	buf = encoding.AppendFixed32(buf, h.NextFreeBlock)
	buf = encoding.AppendFixed16(buf, uint16(len(h.SubFiles)))
	// sub_file_table_root: this format inlines the directory in the
	// header block itself rather than indirecting through a separate
	// block, so the root is the header block's own index (0).
	buf = encoding.AppendFixed32(buf, 0)
	buf = encoding.AppendFixed16(buf, uint16(len(h.Flags)))
	for _, f := range h.Flags {
		buf = append(buf, f[:]...)
	}
	buf = encoding.AppendFixed32(buf, uint32(len(h.SubFiles)))
	for _, sf := range h.SubFiles {
		buf = sf.EncodeTo(buf)
	}

	trailerStart := len(block) - checksum.TrailerSize
	if len(buf) > trailerStart {
		panic("fileheader: header block overflows block size")
	}
	copy(block[:len(buf)], buf)
	checksum.WriteTrailer(block, checksum.StatusValid)
	return block
}

// Decode parses a FileHeaderBlock from a full-size block, verifying its
// magic, version, and trailer checksum.
func Decode(block []byte) (*FileHeaderBlock, error) {
	if len(block) < checksum.TrailerSize+32 {
		return nil, ErrCorruptHeader
	}
	status, ok := checksum.VerifyTrailer(block)
	if !ok || status != checksum.StatusValid {
		return nil, ErrChecksumInvalid
	}

	data := block[:len(block)-checksum.TrailerSize]
	if len(data) < 16 {
		return nil, ErrCorruptHeader
	}
	if string(data[:16]) != string(Magic[:]) {
		return nil, ErrCorruptHeader
	}
	data = data[16:]

	if len(data) < 2+4+4+8+4+4+2+4+2 {
		return nil, ErrCorruptHeader
	}
	version := binary.LittleEndian.Uint16(data[0:2])
	if version != Version {
		return nil, ErrCorruptHeader
	}
	h := &FileHeaderBlock{}
	h.BlockSize = encoding.DecodeFixed32(data[2:6])
	h.BlockCount = encoding.DecodeFixed32(data[6:10])
	h.SnapshotSeq = encoding.DecodeFixed64(data[10:18])
	h.AllocBitmapRoot = encoding.DecodeFixed32(data[18:22])
	h.NextFreeBlock = encoding.DecodeFixed32(data[22:26])
	subFileCount := encoding.DecodeFixed16(data[26:28])
	_ = subFileCount // unused: the directory's own uint32 count below is read instead
	data = data[28:]
	if len(data) < 4 {
		return nil, ErrCorruptHeader
	}
	data = data[4:] // sub_file_table_root

	if len(data) < 2 {
		return nil, ErrCorruptHeader
	}
	flagCount := encoding.DecodeFixed16(data[0:2])
	data = data[2:]
	h.Flags = make([]uuid.UUID, flagCount)
	for i := range h.Flags {
		if len(data) < 16 {
			return nil, ErrCorruptHeader
		}
		copy(h.Flags[i][:], data[:16])
		data = data[16:]
	}

	if len(data) < 4 {
		return nil, ErrCorruptHeader
	}
	n := encoding.DecodeFixed32(data[0:4])
	data = data[4:]
	h.SubFiles = make([]*SubFileHeader, 0, n)
	for i := uint32(0); i < n; i++ {
		var sf *SubFileHeader
		var err error
		sf, data, err = DecodeSubFileHeader(data)
		if err != nil {
			return nil, err
		}
		h.SubFiles = append(h.SubFiles, sf)
	}

	return h, nil
}

// FindSubFile returns the sub-file header with the given id, or nil.
func (h *FileHeaderBlock) FindSubFile(id uuid.UUID) *SubFileHeader {
	for _, sf := range h.SubFiles {
		if sf.ID == id {
			return sf
		}
	}
	return nil
}
