package format

import (
	"bytes"
	"fmt"

	"github.com/joshuapare/sdrkit/internal/buf"
)

// Map captures the scalar fields of the map header. Free-list heads are read
// individually through SmallFreeOffset and LargeFreeOffset since the
// allocator touches one at a time.
type Map struct {
	Version        uint32
	HeapSize       int64
	CatalogueRoot  int64
	StartSmallPool int64
	EndSmallPool   int64
	StartLargePool int64
	EndLargePool   int64
	Unassigned     int64
}

// ParseMap validates the signature and version of an image and extracts the
// scalar map fields.
func ParseMap(b []byte) (Map, error) {
	if len(b) < MapSize {
		return Map{}, fmt.Errorf("map: %w", ErrTruncated)
	}
	if !bytes.Equal(b[MapMagicOffset:MapMagicOffset+len(MapMagic)], MapMagic) {
		return Map{}, fmt.Errorf("map: %w", ErrSignatureMismatch)
	}
	m := Map{
		Version:        buf.U32LE(b[MapVersionOffset:]),
		HeapSize:       int64(buf.U64LE(b[MapHeapSizeOffset:])),
		CatalogueRoot:  int64(buf.U64LE(b[MapCatalogueOffset:])),
		StartSmallPool: int64(buf.U64LE(b[MapStartSmallOffset:])),
		EndSmallPool:   int64(buf.U64LE(b[MapEndSmallOffset:])),
		StartLargePool: int64(buf.U64LE(b[MapStartLargeOffset:])),
		EndLargePool:   int64(buf.U64LE(b[MapEndLargeOffset:])),
		Unassigned:     int64(buf.U64LE(b[MapUnassignedOffset:])),
	}
	if m.Version != MapVersion {
		return Map{}, fmt.Errorf("map version %d: %w", m.Version, ErrUnsupported)
	}
	return m, nil
}

// Validate checks the pool ordering invariant against the image length.
func (m Map) Validate(imageLen int64) error {
	switch {
	case m.HeapSize != imageLen:
		return fmt.Errorf("heap size %d != image length %d: %w", m.HeapSize, imageLen, ErrCorruptMap)
	case m.StartSmallPool != MapSize:
		return fmt.Errorf("small pool starts at %d: %w", m.StartSmallPool, ErrCorruptMap)
	case m.StartSmallPool > m.EndSmallPool,
		m.EndSmallPool > m.StartLargePool,
		m.StartLargePool > m.EndLargePool,
		m.EndLargePool > m.HeapSize:
		return fmt.Errorf("pool bounds %d/%d/%d/%d: %w",
			m.StartSmallPool, m.EndSmallPool, m.StartLargePool, m.EndLargePool, ErrCorruptMap)
	case m.Unassigned != m.StartLargePool-m.EndSmallPool:
		return fmt.Errorf("unassigned %d != %d: %w",
			m.Unassigned, m.StartLargePool-m.EndSmallPool, ErrCorruptMap)
	}
	return nil
}

// InitMap writes a fresh map for an image of len(b) bytes: empty pools,
// no free blocks, no catalogue, no owner. The descriptor is left empty.
func InitMap(b []byte) {
	clear(b[:MapSize])
	size := int64(len(b))
	copy(b[MapMagicOffset:], MapMagic)
	PutU32(b, MapVersionOffset, MapVersion)
	PutU64(b, MapHeapSizeOffset, uint64(size))
	PutU64(b, MapStartSmallOffset, MapSize)
	PutU64(b, MapEndSmallOffset, MapSize)
	PutU64(b, MapStartLargeOffset, uint64(size))
	PutU64(b, MapEndLargeOffset, uint64(size))
	PutU64(b, MapUnassignedOffset, uint64(size-MapSize))
}

// SmallFreeOffset returns the map offset of the free-list head for small
// size class n (1..SmallSizes).
func SmallFreeOffset(n int) int {
	return MapSmallFreeOffset + (n-1)*WordSize
}

// LargeFreeOffset returns the map offset of the free-list head for large
// bucket b (0..LargeOrders-1).
func LargeFreeOffset(b int) int {
	return MapLargeFreeOffset + b*WordSize
}

// Descriptor returns the descriptor bytes stored in the map, or nil.
func Descriptor(b []byte) []byte {
	n := int(ReadU16(b, MapDescLenOffset))
	if n == 0 || n > MaxDescriptor {
		return nil
	}
	return b[MapDescOffset : MapDescOffset+n]
}

// PutDescriptor stores d in the map's descriptor slot.
func PutDescriptor(b []byte, d []byte) error {
	if len(d) > MaxDescriptor {
		return fmt.Errorf("descriptor of %d bytes exceeds %d", len(d), MaxDescriptor)
	}
	clear(b[MapDescOffset : MapDescOffset+MaxDescriptor])
	copy(b[MapDescOffset:], d)
	PutU16(b, MapDescLenOffset, uint16(len(d)))
	return nil
}

// EncodeSmallInUse builds the overhead word of an allocated small block whose
// header sits at addr and which holds n words.
func EncodeSmallInUse(addr int64, n int) uint64 {
	return uint64(SmallInUseTag)<<56 | (uint64(addr)&MaxAddress)<<8 | uint64(n)
}

// DecodeSmallInUse reports whether w is the overhead word of an allocated small
// block at addr and, if so, its size in words.
func DecodeSmallInUse(w uint64, addr int64) (int, bool) {
	if w>>56 != SmallInUseTag {
		return 0, false
	}
	if (w>>8)&MaxAddress != uint64(addr)&MaxAddress {
		return 0, false
	}
	n := int(w & 0xFF)
	if n < 1 || n > SmallSizes {
		return 0, false
	}
	return n, true
}

// MapOwner is the transaction owner recorded in the map. Task 0 means free.
type MapOwner struct {
	Task   int64
	Thread [16]byte
	Depth  uint32
}

// ReadOwner returns the owner fields of the map.
func ReadOwner(b []byte) MapOwner {
	var o MapOwner
	o.Task = int64(ReadU64(b, MapOwnerTaskOffset))
	copy(o.Thread[:], b[MapOwnerThreadOffset:MapOwnerThreadOffset+16])
	o.Depth = ReadU32(b, MapOwnerDepthOffset)
	return o
}

// PutOwner stores o in the owner fields of the map.
func PutOwner(b []byte, o MapOwner) {
	PutU64(b, MapOwnerTaskOffset, uint64(o.Task))
	copy(b[MapOwnerThreadOffset:], o.Thread[:])
	PutU32(b, MapOwnerDepthOffset, o.Depth)
}
