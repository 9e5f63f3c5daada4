package config

import (
	"errors"
	"testing"
)

type poolConfig struct {
	Base
	TargetBytes int64
}

func (c *poolConfig) SetTargetBytes(n int64) error {
	if err := c.CheckMutable(); err != nil {
		return err
	}
	c.TargetBytes = n
	return nil
}

func (c *poolConfig) CloneEditable() *poolConfig {
	return &poolConfig{TargetBytes: c.TargetBytes}
}

func TestFreezeRejectsMutation(t *testing.T) {
	c := &poolConfig{TargetBytes: 10}
	if err := c.SetTargetBytes(20); err != nil {
		t.Fatalf("editable mutation failed: %v", err)
	}
	c.Freeze()
	if !c.Frozen() {
		t.Fatal("expected Frozen() true after Freeze")
	}
	if err := c.SetTargetBytes(30); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	if c.TargetBytes != 20 {
		t.Fatalf("mutation after freeze should not apply, got %d", c.TargetBytes)
	}
}

func TestCloneEditableIsIndependent(t *testing.T) {
	c := &poolConfig{TargetBytes: 10}
	c.Freeze()
	clone := c.CloneEditable()
	if clone.Frozen() {
		t.Fatal("clone should start editable")
	}
	if err := clone.SetTargetBytes(99); err != nil {
		t.Fatalf("clone mutation failed: %v", err)
	}
	if c.TargetBytes != 10 {
		t.Fatal("mutating clone must not affect original")
	}
}

func TestFreezeAllCascades(t *testing.T) {
	parent := &poolConfig{TargetBytes: 1}
	child := &poolConfig{TargetBytes: 2}
	FreezeAll(parent, child)
	if !parent.Frozen() || !child.Frozen() {
		t.Fatal("expected both parent and child frozen")
	}
}
