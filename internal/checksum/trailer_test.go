package checksum

import "testing"

func TestWriteVerifyTrailerRoundTrip(t *testing.T) {
	block := make([]byte, 64)
	copy(block, []byte("the quick brown fox jumps over the lazy dog"))

	WriteTrailer(block, StatusValid)

	status, ok := VerifyTrailer(block)
	if !ok {
		t.Fatalf("VerifyTrailer: checksum mismatch after WriteTrailer")
	}
	if status != StatusValid {
		t.Fatalf("status = %v, want %v", status, StatusValid)
	}
}

func TestVerifyTrailerDetectsCorruption(t *testing.T) {
	block := make([]byte, 64)
	copy(block, []byte("payload that must round trip"))
	WriteTrailer(block, StatusValid)

	block[0] ^= 0xff

	if _, ok := VerifyTrailer(block); ok {
		t.Fatalf("VerifyTrailer: expected mismatch after payload corruption")
	}
}

func TestTrailerLayoutOffsets(t *testing.T) {
	block := make([]byte, TrailerSize+8)
	WriteTrailer(block, StatusMustBeRecomputed)

	n := len(block)
	gotStatus := Status(getUint32LE(block[n-4 : n]))
	if gotStatus != StatusMustBeRecomputed {
		t.Fatalf("status bytes at size-4..size = %v, want %v", gotStatus, StatusMustBeRecomputed)
	}
}

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusNotComputed:      "NotComputed",
		StatusValid:            "Valid",
		StatusNotValid:         "NotValid",
		StatusMustBeRecomputed: "MustBeRecomputed",
		Status(99):             "Unknown",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", status, got, want)
		}
	}
}
