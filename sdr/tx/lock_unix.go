//go:build unix

package tx

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// FileLock is an exclusive flock on a heap file. The lock belongs to the
// open file description, so it is dropped when the holding process dies.
type FileLock struct {
	f *os.File
}

// NewFileLock returns a Locker over f.
func NewFileLock(f *os.File) *FileLock { return &FileLock{f: f} }

func (l *FileLock) Lock() error {
	for {
		err := unix.Flock(int(l.f.Fd()), unix.LOCK_EX)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("flock %s: %w", l.f.Name(), err)
		}
		return nil
	}
}

func (l *FileLock) Unlock() error {
	return unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
}

// TryLock takes the lock without blocking and reports whether it did.
func (l *FileLock) TryLock() (bool, error) {
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	switch err {
	case nil:
		return true, nil
	case unix.EWOULDBLOCK:
		return false, nil
	}
	return false, fmt.Errorf("flock %s: %w", l.f.Name(), err)
}

// Alive reports whether process pid still exists.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}
