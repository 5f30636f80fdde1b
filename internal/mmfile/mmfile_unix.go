//go:build unix

package mmfile

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Open maps the file at path read/write and shared, so stores to Data reach
// the file's page cache and are visible to every process mapping it. A missing
// file is created zero-filled at size bytes; an existing file must be exactly
// size bytes long.
func Open(path string, size int64) (*Mapping, error) {
	if size <= 0 || size > int64(^uint(0)>>1) {
		return nil, fmt.Errorf("mmfile: bad mapping size %d", size)
	}
	created := false
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if errors.Is(err, os.ErrNotExist) {
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
		created = true
	}
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	switch {
	case created || info.Size() == 0:
		if err := f.Truncate(size); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("mmfile: size %s: %w", path, err)
		}
		created = true
	case info.Size() != size:
		_ = f.Close()
		return nil, fmt.Errorf("mmfile: %s is %d bytes, want %d: %w", path, info.Size(), size, ErrSizeMismatch)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmap failed: %w", err)
	}
	return &Mapping{Data: data, File: f, Created: created}, nil
}

// Close unmaps the data and closes the file. A second Close is a no-op.
func (m *Mapping) Close() error {
	if m.Data == nil {
		return nil
	}
	err := unix.Munmap(m.Data)
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		err = nil
	}
	m.Data = nil
	if cerr := m.File.Close(); err == nil {
		err = cerr
	}
	return err
}
