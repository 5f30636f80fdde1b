// Package space implements object allocation inside an SDR heap image.
//
// # Overview
//
// The heap image starts with a fixed-format map (see internal/format) and
// is otherwise split into three regions:
//
//	MapSize         endOfSmallPool     startOfLargePool        heapSize
//	   |  small pool  ->   |   unassigned   |   <-  large pool     |
//
// The small pool grows upward by carving from the unassigned region, the
// large pool grows downward. Neither ever shrinks.
//
// # Small Objects
//
// Requests of 1..512 bytes are rounded up to whole words and served from one
// of 64 size classes. Each block is one overhead word followed by N words of
// user data:
//
//	in use:  0xA5 | own address (48 bits) | N
//	free:    address of next free block of the same class (0 ends the list)
//
// Allocation pops the class's free list or carves a new block; there is no
// cross-class search and no splitting. Free pushes the block back.
//
// # Large Objects
//
// Larger requests are rounded up to 32 bytes and served from 48 buckets;
// bucket b holds free blocks with user length in [32<<b, 32<<(b+1)).
//
//	leading header:   user length | next free or IN_USE
//	user data
//	trailing header:  leading header address | prev free or IN_USE
//
// Allocation inspects at most Config.SearchLimit blocks of the request's own
// bucket, then takes the head of the next non-empty larger bucket (which is
// always big enough), then carves. A surplus big enough to hold a block is
// split off when it lands in the source block's bucket or the one below;
// otherwise it stays with the allocation. Free merges the block with free
// physical neighbours on both sides before re-listing it.
//
// # Scale Detection
//
// ScaleOf decides from the block headers alone whether an address is the
// start of a live small object, a live large object, or neither. The in-use
// small word embeds its own address and a large block's trailer points back
// at its leader, so interior addresses of user data are rejected.
//
// # Logging
//
// Every store goes through Image.Write, which the sdr package routes through
// the write-ahead log. The manager keeps no cached copy of the map, so a
// reversal leaves it consistent without notification.
package space
