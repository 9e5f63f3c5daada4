//go:build !windows

// lock.go implements the container's single-writer advisory lock on Unix
// systems, backing FS.Lock. The lock is the flock itself, not the file's
// content: a crashed holder's flock disappears with its process, so no
// stale-lock cleanup pass exists. The file body records the holder's PID
// purely as a diagnostic for an operator wondering who has a container
// open.
package vfs

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// LockFile is a held single-writer lock, released by Unlock.
type LockFile struct {
	f *os.File
}

func acquireLock(name string) (*LockFile, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, ErrLocked
		}
		return nil, err
	}
	_ = f.Truncate(0)
	_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
	return &LockFile{f: f}, nil
}

// Unlock releases the lock. The lock file itself is left in place for the
// next writer to reuse.
func (l *LockFile) Unlock() error {
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	return err
}
