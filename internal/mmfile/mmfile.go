// Package mmfile provides platform-specific helpers for memory-mapping heap
// image files.
package mmfile

import (
	"errors"
	"os"
)

// ErrSizeMismatch indicates an existing file does not match the requested
// mapping size.
var ErrSizeMismatch = errors.New("mmfile: file size mismatch")

// Mapping is a read/write shared view of a file.
type Mapping struct {
	Data    []byte
	File    *os.File
	Created bool // file was created (or was empty) and holds only zeros
}

// FD returns the descriptor of the mapped file.
func (m *Mapping) FD() int {
	return int(m.File.Fd())
}
