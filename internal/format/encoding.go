package format

import "encoding/binary"

// Every integer in the heap image and the log is little-endian whatever the
// host byte order. The helpers panic on short buffers; callers size their
// buffers from the layout constants.

var le = binary.LittleEndian

// PutU16 stores v at b[off:off+2].
func PutU16(b []byte, off int, v uint16) { le.PutUint16(b[off:off+2], v) }

// PutU32 stores v at b[off:off+4].
func PutU32(b []byte, off int, v uint32) { le.PutUint32(b[off:off+4], v) }

// PutU64 stores v at b[off:off+8].
func PutU64(b []byte, off int, v uint64) { le.PutUint64(b[off:off+WordSize], v) }

// ReadU16 loads the uint16 at b[off:off+2].
func ReadU16(b []byte, off int) uint16 { return le.Uint16(b[off : off+2]) }

// ReadU32 loads the uint32 at b[off:off+4].
func ReadU32(b []byte, off int) uint32 { return le.Uint32(b[off : off+4]) }

// ReadU64 loads the word at b[off:off+8].
func ReadU64(b []byte, off int) uint64 { return le.Uint64(b[off : off+WordSize]) }
