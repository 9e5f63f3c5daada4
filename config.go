package snapdb

import "github.com/snapdb/snapdb/internal/config"

// Config is the public, freezable configuration surface for opening a
// container, a plain struct over the internal packages' own options
// (the alias-the-internal-types pattern). It embeds internal/config.Base
// for the freeze/clone-on-edit discipline.
type Config struct {
	config.Base

	// PageSize is the container's fixed block size; must be a power of
	// two.
	PageSize int

	// MinPoolBytes/MaxPoolBytes/TargetPoolBytes bound the MemoryPool
	// backing in-flight pages.
	MinPoolBytes    int64
	MaxPoolBytes    int64
	TargetPoolBytes int64

	// CacheCapacityBytes bounds the shared page cache fronting every
	// sub-file's sessions.
	CacheCapacityBytes uint64
}

// DefaultConfig returns an editable Config with reasonable defaults: a
// 4096-byte page, a 64MiB page pool, and a 32MiB page cache.
func DefaultConfig() *Config {
	return &Config{
		PageSize:           4096,
		MinPoolBytes:       1 << 20,
		MaxPoolBytes:       64 << 20,
		TargetPoolBytes:    48 << 20,
		CacheCapacityBytes: 32 << 20,
	}
}

// CloneEditable returns a deep, unfrozen copy of c.
func (c *Config) CloneEditable() *Config {
	return &Config{
		PageSize:           c.PageSize,
		MinPoolBytes:       c.MinPoolBytes,
		MaxPoolBytes:       c.MaxPoolBytes,
		TargetPoolBytes:    c.TargetPoolBytes,
		CacheCapacityBytes: c.CacheCapacityBytes,
	}
}

// CloneReadonly returns a frozen copy of c, or c itself if c is already
// frozen.
func (c *Config) CloneReadonly() *Config {
	if c.Frozen() {
		return c
	}
	clone := c.CloneEditable()
	clone.Freeze()
	return clone
}
