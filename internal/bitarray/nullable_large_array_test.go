package bitarray

import "testing"

func TestNullableLargeArrayAddGetSetNull(t *testing.T) {
	a := NewNullableLargeArray[string]()
	i0 := a.Add("zero")
	i1 := a.Add("one")
	if i0 != 0 || i1 != 1 {
		t.Fatalf("expected sequential slots 0,1, got %d,%d", i0, i1)
	}
	if v, ok := a.Get(0); !ok || v != "zero" {
		t.Fatalf("Get(0) = %q,%v, want zero,true", v, ok)
	}

	a.SetNull(0)
	if _, ok := a.Get(0); ok {
		t.Fatalf("expected slot 0 absent after SetNull")
	}

	i2 := a.Add("reused")
	if i2 != 0 {
		t.Fatalf("expected freed slot 0 to be reused, got %d", i2)
	}
}

func TestNullableLargeArrayEnumerateOrder(t *testing.T) {
	a := NewNullableLargeArray[int]()
	for i := 0; i < 5; i++ {
		a.Add(i * 10)
	}
	a.SetNull(2)

	var seen []uint
	a.Enumerate(func(index uint, value int) bool {
		seen = append(seen, index)
		if int(index)*10 != value {
			t.Errorf("index %d has value %d, want %d", index, value, int(index)*10)
		}
		return true
	})
	want := []uint{0, 1, 3, 4}
	if len(seen) != len(want) {
		t.Fatalf("enumerate saw %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("enumerate saw %v, want %v", seen, want)
		}
	}
	if a.Count() != 4 {
		t.Fatalf("Count() = %d, want 4", a.Count())
	}
}

func TestLargeArrayGrowthAcrossChunks(t *testing.T) {
	l := NewLargeArray[int]()
	idx := uint(chunkSize*2 + 17)
	l.Set(idx, 99)
	if got := l.Get(idx); got != 99 {
		t.Fatalf("Get(%d) = %d, want 99", idx, got)
	}
	if got := l.Get(0); got != 0 {
		t.Fatalf("Get(0) = %d, want zero value", got)
	}
	if l.Len() != idx+1 {
		t.Fatalf("Len() = %d, want %d", l.Len(), idx+1)
	}
}
