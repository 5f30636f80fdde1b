//go:build !unix

package tx

import "os"

// FileLock does not lock on platforms without flock; file heaps are
// single-process there.
type FileLock struct{ f *os.File }

func NewFileLock(f *os.File) *FileLock { return &FileLock{f: f} }

func (l *FileLock) Lock() error            { return nil }
func (l *FileLock) Unlock() error          { return nil }
func (l *FileLock) TryLock() (bool, error) { return true, nil }

// Alive assumes any positive pid is running.
func Alive(pid int) bool { return pid > 0 }
