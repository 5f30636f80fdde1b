//go:build !(linux || freebsd)

package wal

import "os"

func datasync(f *os.File) error {
	return f.Sync()
}
