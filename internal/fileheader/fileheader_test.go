package fileheader

import (
	"testing"

	"github.com/google/uuid"

	"github.com/snapdb/snapdb/internal/checksum"
	"github.com/snapdb/snapdb/internal/encoding"
)

func sampleHeader() *FileHeaderBlock {
	return &FileHeaderBlock{
		BlockSize:       4096,
		SnapshotSeq:     7,
		AllocBitmapRoot: 1,
		NextFreeBlock:   42,
		SubFiles: []*SubFileHeader{
			{
				ID:        uuid.New(),
				Name:      "temperature",
				KeyType:   uuid.New(),
				ValueType: uuid.New(),
				Encoding:  encoding.FixedPairGUID,
				RootBlock: 2,
				TreeHeight: 1,
				RecordCount: 0,
				KeySize:   8,
				ValueSize: 8,
			},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := sampleHeader()
	block := h.Encode()
	if len(block) != int(h.BlockSize) {
		t.Fatalf("encoded block size = %d, want %d", len(block), h.BlockSize)
	}

	got, err := Decode(block)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.SnapshotSeq != h.SnapshotSeq || got.AllocBitmapRoot != h.AllocBitmapRoot {
		t.Fatalf("header mismatch: %+v vs %+v", got, h)
	}
	if len(got.SubFiles) != 1 || got.SubFiles[0].Name != "temperature" {
		t.Fatalf("sub-file directory mismatch: %+v", got.SubFiles)
	}
	if got.SubFiles[0].Encoding != encoding.FixedPairGUID {
		t.Fatal("encoding GUID mismatch")
	}
}

func TestDecodeRejectsBadChecksum(t *testing.T) {
	h := sampleHeader()
	block := h.Encode()
	block[10] ^= 0xFF // corrupt a payload byte

	if _, err := Decode(block); err != ErrChecksumInvalid {
		t.Fatalf("expected ErrChecksumInvalid, got %v", err)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	h := sampleHeader()
	block := h.Encode()
	block[0] ^= 0xFF
	checksum.WriteTrailer(block, checksum.StatusValid)

	if _, err := Decode(block); err != ErrCorruptHeader {
		t.Fatalf("expected ErrCorruptHeader, got %v", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	h := sampleHeader()
	clone := h.Clone()
	clone.SubFiles[0].RecordCount = 99
	if h.SubFiles[0].RecordCount == 99 {
		t.Fatal("mutating clone's sub-file affected original")
	}
}

func TestFindSubFile(t *testing.T) {
	h := sampleHeader()
	id := h.SubFiles[0].ID
	if got := h.FindSubFile(id); got == nil || got.Name != "temperature" {
		t.Fatal("FindSubFile did not return the expected entry")
	}
	if got := h.FindSubFile(uuid.New()); got != nil {
		t.Fatal("expected nil for unknown id")
	}
}
