// Package format houses the fixed binary layout of an SDR heap image: the map
// header at offset zero, the small and large block headers, and the log entry
// header. Everything here works on plain byte slices so the higher-level
// packages never overlay structs on heap memory.
package format

// MapMagic is the four-byte signature at the start of every heap image.
var MapMagic = []byte{'S', 'D', 'R', 'K'}

const (
	// WordSize is the allocation granule of the small pool and the width of
	// every address stored inside the heap.
	WordSize = 8

	// MapVersion is the current map layout version.
	MapVersion = 1

	// SmallSizes is the number of small size classes (1..SmallSizes words).
	SmallSizes = 64

	// MaxSmallObject is the largest user size served by the small pool.
	MaxSmallObject = SmallSizes * WordSize

	// LargeOrders is the number of large free-list buckets.
	LargeOrders = 48

	// LargeGranule is the rounding unit of large block user lengths; it equals
	// the combined size of the leading and trailing headers.
	LargeGranule = 32

	// LargeHeaderSize is the size of each of the two large block headers.
	LargeHeaderSize = 2 * WordSize

	// LargeOverhead is the total header cost of one large block.
	LargeOverhead = 2 * LargeHeaderSize

	// SmallOverhead is the header cost of one small block.
	SmallOverhead = WordSize

	// InUse marks a large block header field of a block that is allocated.
	InUse = ^uint64(0)

	// SmallInUseTag is the top byte of a small block overhead word while the
	// block is allocated.
	SmallInUseTag = 0xA5

	// MaxDescriptor is the room reserved for the CBOR profile descriptor.
	MaxDescriptor = 254

	// MaxAddress bounds any address representable in a small block header.
	MaxAddress = 1<<48 - 1
)

// Map header layout.
//
//	Offset  Size  Description
//	------  ----  ----------------------------------------------------------
//	 0x000   4    'S' 'D' 'R' 'K'
//	 0x004   4    Layout version
//	 0x008   8    Heap size in bytes (map included)
//	 0x010   8    Catalogue root object
//	 0x018   8    Start of small pool
//	 0x020   8    End of small pool
//	 0x028   8    Start of large pool
//	 0x030   8    End of large pool
//	 0x038   8    Unassigned space
//	 0x040   8    Owner task id
//	 0x048  16    Owner thread id
//	 0x058   4    Owner depth
//	 0x05C   4    Reserved
//	 0x060 512    Small free-list heads (classes 1..64)
//	 0x260 384    Large free-list heads (buckets 0..47)
//	 0x3E0   2    Descriptor length
//	 0x3E2 254    Descriptor bytes (CBOR)
const (
	MapMagicOffset       = 0x000
	MapVersionOffset     = 0x004
	MapHeapSizeOffset    = 0x008
	MapCatalogueOffset   = 0x010
	MapStartSmallOffset  = 0x018
	MapEndSmallOffset    = 0x020
	MapStartLargeOffset  = 0x028
	MapEndLargeOffset    = 0x030
	MapUnassignedOffset  = 0x038
	MapOwnerTaskOffset   = 0x040
	MapOwnerThreadOffset = 0x048
	MapOwnerDepthOffset  = 0x058
	MapSmallFreeOffset   = 0x060
	MapLargeFreeOffset   = MapSmallFreeOffset + SmallSizes*WordSize
	MapDescLenOffset     = MapLargeFreeOffset + LargeOrders*WordSize
	MapDescOffset        = MapDescLenOffset + 2

	// MapSize is the size of the map region; the heap starts right after it.
	MapSize = MapDescOffset + MaxDescriptor

	// MapOwnerSize spans the owner fields, which are never logged.
	MapOwnerSize = MapSmallFreeOffset - MapOwnerTaskOffset
)

// Log entry header layout.
//
//	Offset  Size  Description
//	------  ----  ----------------------------
//	 0x00    8    Target address
//	 0x08    4    Length of saved bytes
//	 0x0C    4    CRC-32 (IEEE) of header fields and bytes
const (
	LogAddrOffset   = 0x00
	LogLenOffset    = 0x08
	LogCRCOffset    = 0x0C
	LogEntryHdrSize = 0x10
)
