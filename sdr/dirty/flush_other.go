//go:build !linux && !freebsd && !darwin

package dirty

import "os"

// SyncMapped is a no-op: file-mapped heaps are only supported on unix.
func SyncMapped([]byte, []Range) error { return nil }

// SyncFile makes written file data durable according to mode.
func SyncFile(f *os.File, mode FlushMode) error {
	if mode == FlushDataOnly {
		return nil
	}
	return f.Sync()
}
