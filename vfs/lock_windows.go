//go:build windows

// lock_windows.go implements the container's single-writer lock on
// Windows via exclusive lock-file creation: O_EXCL either creates the
// file (lock acquired) or fails because a holder already created it.
// Unlike the Unix flock variant, the file's existence IS the lock, so
// Unlock must remove it.
package vfs

import (
	"fmt"
	"os"
)

// LockFile is a held single-writer lock, released by Unlock.
type LockFile struct {
	f    *os.File
	name string
}

func acquireLock(name string) (*LockFile, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrLocked
		}
		return nil, err
	}
	_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
	return &LockFile{f: f, name: name}, nil
}

// Unlock releases the lock by removing the lock file. A holder that dies
// without Unlock leaves the file behind; the operator removes it by hand
// (this variant has no kernel-scoped flock to expire on its own).
func (l *LockFile) Unlock() error {
	err := l.f.Close()
	if rerr := os.Remove(l.name); err == nil {
		err = rerr
	}
	return err
}
