package wal

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Store is the append-only medium behind a Log.
type Store interface {
	// Append writes p at the end of the store and returns its offset.
	Append(p []byte) (int64, error)
	// ReadAt fills p from offset off.
	ReadAt(p []byte, off int64) error
	// Size returns the number of bytes appended since the last Reset.
	Size() int64
	// Reset discards every entry.
	Reset() error
	Close() error
}

// FileStore is a Store backed by a log file.
type FileStore struct {
	f    *os.File
	size int64
	sync bool
}

// OpenFile opens or creates the log file at path. Existing contents are kept
// so Reload can recover them. With sync set, every Append and Reset is
// followed by fdatasync so an entry is durable before the heap write it
// protects can reach the disk.
func OpenFile(path string, sync bool) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &FileStore{f: f, size: info.Size(), sync: sync}, nil
}

// Name returns the log file path.
func (s *FileStore) Name() string { return s.f.Name() }

func (s *FileStore) Append(p []byte) (int64, error) {
	if s.f == nil {
		return 0, ErrClosed
	}
	off := s.size
	if _, err := s.f.WriteAt(p, off); err != nil {
		return 0, fmt.Errorf("append log: %w", err)
	}
	s.size += int64(len(p))
	if s.sync {
		if err := datasync(s.f); err != nil {
			return 0, fmt.Errorf("sync log: %w", err)
		}
	}
	return off, nil
}

func (s *FileStore) ReadAt(p []byte, off int64) error {
	if s.f == nil {
		return ErrClosed
	}
	if _, err := s.f.ReadAt(p, off); err != nil {
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}

func (s *FileStore) Size() int64 { return s.size }

// Refresh re-reads the file size, picking up entries appended or a truncate
// done through another descriptor of the same file.
func (s *FileStore) Refresh() error {
	if s.f == nil {
		return ErrClosed
	}
	info, err := s.f.Stat()
	if err != nil {
		return err
	}
	s.size = info.Size()
	return nil
}

func (s *FileStore) Reset() error {
	if s.f == nil {
		return ErrClosed
	}
	if s.size == 0 {
		return nil
	}
	if err := s.f.Truncate(0); err != nil {
		return fmt.Errorf("truncate log: %w", err)
	}
	s.size = 0
	if s.sync {
		return datasync(s.f)
	}
	return nil
}

func (s *FileStore) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// MemStore is a fixed-capacity Store held in process memory.
type MemStore struct {
	mu   sync.Mutex
	buf  []byte
	used int64
}

// NewMemStore returns an empty store of capacity bytes.
func NewMemStore(capacity int) *MemStore {
	return &MemStore{buf: make([]byte, capacity)}
}

// Capacity returns the fixed size of the region.
func (s *MemStore) Capacity() int { return len(s.buf) }

func (s *MemStore) Append(p []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used+int64(len(p)) > int64(len(s.buf)) {
		return 0, fmt.Errorf("%d of %d bytes used, entry needs %d: %w", s.used, len(s.buf), len(p), ErrLogFull)
	}
	off := s.used
	copy(s.buf[off:], p)
	s.used += int64(len(p))
	return off, nil
}

func (s *MemStore) ReadAt(p []byte, off int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if off < 0 || off+int64(len(p)) > s.used {
		return io.ErrUnexpectedEOF
	}
	copy(p, s.buf[off:])
	return nil
}

func (s *MemStore) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

func (s *MemStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used = 0
	return nil
}

func (s *MemStore) Close() error { return nil }
