//go:build darwin

package dirty

import (
	"os"

	"golang.org/x/sys/unix"
)

// SyncMapped syncs the whole mapped region.
//
// On macOS, msync() requires the address to match the original mmap() address,
// so sub-slices cannot be passed. The kernel only writes dirty pages anyway.
func SyncMapped(data []byte, ranges []Range) error {
	if len(ranges) == 0 || len(data) == 0 {
		return nil
	}
	return unix.Msync(data, unix.MS_SYNC)
}

// SyncFile makes written file data durable according to mode. FlushFull uses
// F_FULLFSYNC so the data leaves the drive cache too.
func SyncFile(f *os.File, mode FlushMode) error {
	switch mode {
	case FlushDataOnly:
		return nil
	case FlushFull:
		_, err := unix.FcntlInt(f.Fd(), unix.F_FULLFSYNC, 0)
		return err
	default:
		return unix.Fsync(int(f.Fd()))
	}
}
