// Package image provides the byte regions a heap lives in: process memory,
// a shared memory-mapped file, or process memory mirrored to a file.
//
// Stores go straight into Bytes(); Flush makes the given dirty ranges durable
// in whatever backing the region has.
package image

import (
	"errors"
	"fmt"
	"os"

	"github.com/joshuapare/sdrkit/sdr/dirty"
)

// ErrClosed is returned by operations on a closed region.
var ErrClosed = errors.New("image: region closed")

// Memory is a heap image held only in process memory.
type Memory struct {
	data []byte
}

// NewMemory returns a zeroed region of size bytes.
func NewMemory(size int64) (*Memory, error) {
	if size <= 0 || size > int64(^uint(0)>>1) {
		return nil, fmt.Errorf("image: bad region size %d", size)
	}
	return &Memory{data: make([]byte, size)}, nil
}

func (m *Memory) Bytes() []byte { return m.data }

// Flush is a no-op: there is nothing behind process memory.
func (m *Memory) Flush([]dirty.Range, dirty.FlushMode) error { return nil }

// File returns nil.
func (m *Memory) File() *os.File { return nil }

// Fresh is always true for memory regions.
func (m *Memory) Fresh() bool { return true }

func (m *Memory) Close() error {
	m.data = nil
	return nil
}
