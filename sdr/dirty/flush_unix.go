//go:build linux || freebsd

package dirty

import (
	"os"

	"golang.org/x/sys/unix"
)

// SyncMapped msyncs each range of a mapped region.
//
// On Linux msync() can handle sub-slices correctly.
func SyncMapped(data []byte, ranges []Range) error {
	for _, r := range ranges {
		r, ok := Clip(r, int64(len(data)))
		if !ok {
			continue
		}
		if err := unix.Msync(data[r.Off:r.End()], unix.MS_SYNC); err != nil {
			return err
		}
	}
	return nil
}

// SyncFile makes written file data durable according to mode.
func SyncFile(f *os.File, mode FlushMode) error {
	if mode == FlushDataOnly {
		return nil
	}
	return unix.Fdatasync(int(f.Fd()))
}
