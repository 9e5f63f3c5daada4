package diskio

import (
	"bytes"
	"testing"

	"github.com/snapdb/snapdb/internal/cache"
)

func TestSessionLoadCachesAcrossCalls(t *testing.T) {
	pool := newTestPool(t)
	m := NewHeapMedium(pool)

	if _, err := m.Extend(1); err != nil {
		t.Fatalf("Extend: %v", err)
	}
	payload := bytes.Repeat([]byte{0x11}, m.PageSize())
	if err := m.StageWrite(0, payload); err != nil {
		t.Fatalf("StageWrite: %v", err)
	}
	header := make([]byte, m.PageSize())
	if err := m.Commit(header); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	pc := cache.NewPressureAwareCache(uint64(m.PageSize()) * 8)
	sess := NewSession(m, 1, pc.PageCache)

	first, err := sess.Load(0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if pc.Len() != 1 {
		t.Fatalf("occupancy after first Load = %d, want 1", pc.Len())
	}

	second, err := sess.Load(0)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("cached Load mismatch")
	}
	if hits, _ := pc.Stats(); hits != 1 {
		t.Fatalf("hit count = %d, want 1", hits)
	}
}

func TestSessionStageInvalidatesCache(t *testing.T) {
	pool := newTestPool(t)
	m := NewHeapMedium(pool)
	if _, err := m.Extend(1); err != nil {
		t.Fatalf("Extend: %v", err)
	}
	header := make([]byte, m.PageSize())
	if err := m.Commit(header); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	pc := cache.NewPressureAwareCache(uint64(m.PageSize()) * 8)
	sess := NewSession(m, 1, pc.PageCache)

	if _, err := sess.Load(0); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := sess.Stage(0, bytes.Repeat([]byte{0x22}, m.PageSize())); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if pc.Len() != 0 {
		t.Fatalf("occupancy after Stage = %d, want 0 (invalidated)", pc.Len())
	}
}
