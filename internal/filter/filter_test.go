package filter

import (
	"bytes"
	"testing"
)

// keyBetween mirrors the inclusive boundary comparison the scanner
// applies to a SeekFilter interval, as a reference for the table below.
func keyBetween(key, start, end []byte) bool {
	if start != nil && bytes.Compare(key, start) < 0 {
		return false
	}
	if end != nil && bytes.Compare(key, end) > 0 {
		return false
	}
	return true
}

func TestStaticSeekFilterIntervals(t *testing.T) {
	f := NewStaticSeekFilter([]Interval{
		{Start: []byte("a"), End: []byte("c")},
		{Start: []byte("m"), End: []byte("z")},
	})
	got := f.Intervals()
	if len(got) != 2 {
		t.Fatalf("len(Intervals()) = %d, want 2", len(got))
	}
}

func TestAccessControlledSeekFilterFiltersBoundaries(t *testing.T) {
	inner := NewStaticSeekFilter([]Interval{
		{Start: []byte("a"), End: []byte("c")},
		{Start: []byte("secret"), End: []byte("z")},
	})
	f := &AccessControlledSeekFilter{
		Inner: inner,
		Allow: func(b []byte) bool { return string(b) != "secret" },
	}
	got := f.Intervals()
	if len(got) != 1 {
		t.Fatalf("len(Intervals()) = %d, want 1", len(got))
	}
	if string(got[0].Start) != "a" {
		t.Fatalf("surviving interval start = %q, want %q", got[0].Start, "a")
	}
}

func TestKeyBetween(t *testing.T) {
	cases := []struct {
		key, start, end []byte
		want            bool
	}{
		{[]byte("m"), []byte("a"), []byte("z"), true},
		{[]byte("m"), []byte("n"), []byte("z"), false},
		{[]byte("m"), []byte("a"), []byte("b"), false},
		{[]byte("m"), nil, nil, true},
	}
	for _, c := range cases {
		if got := keyBetween(c.key, c.start, c.end); got != c.want {
			t.Errorf("keyBetween(%q, %q, %q) = %v, want %v", c.key, c.start, c.end, got, c.want)
		}
	}
}

func TestPointIdBitArray(t *testing.T) {
	f := NewPointIdBitArray(1024)
	f.Add(5)
	f.Add(900)
	if !f.Match(5) || !f.Match(900) {
		t.Fatalf("expected 5 and 900 to match")
	}
	if f.Match(6) {
		t.Fatalf("6 should not match")
	}
}

func TestUIntHashSet(t *testing.T) {
	f := NewUIntHashSet(4)
	f.Add(42)
	if !f.Match(42) {
		t.Fatalf("expected 42 to match")
	}
	if f.Match(43) {
		t.Fatalf("43 should not match")
	}
	if f.Match(1 << 40) {
		t.Fatalf("out-of-range uint32 id should not match")
	}
}

func TestULongHashSet(t *testing.T) {
	f := NewULongHashSet(4)
	big := uint64(1) << 40
	f.Add(big)
	if !f.Match(big) {
		t.Fatalf("expected %d to match", big)
	}
	if f.Match(big + 1) {
		t.Fatalf("%d should not match", big+1)
	}
}

func TestBloomMatchFilterNoFalseNegatives(t *testing.T) {
	f := NewBloomMatchFilter(1000, 0.01)
	for i := uint64(0); i < 500; i++ {
		f.Add(i)
	}
	for i := uint64(0); i < 500; i++ {
		if !f.Match(i) {
			t.Fatalf("false negative for id %d", i)
		}
	}
}

func TestNewMatchFilterFactory(t *testing.T) {
	dense := NewMatchFilter(DomainStats{MaxID: 100})
	if _, ok := dense.(*PointIdBitArray); !ok {
		t.Fatalf("dense small domain = %T, want *PointIdBitArray", dense)
	}

	sparseSmall := NewMatchFilter(DomainStats{Count: 10})
	if _, ok := sparseSmall.(*ULongHashSet); !ok {
		t.Fatalf("sparse small domain = %T, want *ULongHashSet", sparseSmall)
	}

	sparseLarge := NewMatchFilter(DomainStats{Count: 1_000_000, MaxID: 1 << 40})
	if _, ok := sparseLarge.(*BloomMatchFilter); !ok {
		t.Fatalf("sparse large domain = %T, want *BloomMatchFilter", sparseLarge)
	}
}
