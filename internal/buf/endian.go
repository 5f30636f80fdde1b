package buf

import "encoding/binary"

// U32LE reads the little-endian uint32 at the start of b, or 0 when b is
// shorter than 4 bytes.
func U32LE(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// U64LE reads the little-endian uint64 at the start of b, or 0 when b is
// shorter than a word.
func U64LE(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}
