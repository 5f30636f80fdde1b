package space

import (
	"fmt"

	"github.com/joshuapare/sdrkit/internal/format"
)

// Usage summarizes how the heap is divided.
type Usage struct {
	HeapSize int64 `json:"heap_size"`
	MapSize  int64 `json:"map_size"`

	SmallPoolSize      int64                   `json:"small_pool_size"`
	SmallPoolFree      int64                   `json:"small_pool_free"`
	SmallPoolAllocated int64                   `json:"small_pool_allocated"`
	SmallFree          [format.SmallSizes]int64 `json:"-"` // free bytes per class (index 0 = 1 word)

	LargePoolSize      int64                    `json:"large_pool_size"`
	LargePoolFree      int64                    `json:"large_pool_free"`
	LargePoolAllocated int64                    `json:"large_pool_allocated"`
	LargeFree          [format.LargeOrders]int64 `json:"-"` // free bytes per bucket

	Unassigned int64 `json:"unassigned"`
}

// Usage walks every free list and reports pool occupancy. Sizes include
// block overhead.
func (m *Manager) Usage() (Usage, error) {
	mp, err := m.Map()
	if err != nil {
		return Usage{}, err
	}
	u := Usage{
		HeapSize:      mp.HeapSize,
		MapSize:       format.MapSize,
		SmallPoolSize: mp.EndSmallPool - mp.StartSmallPool,
		LargePoolSize: mp.EndLargePool - mp.StartLargePool,
		Unassigned:    mp.Unassigned,
	}
	for n := 1; n <= format.SmallSizes; n++ {
		count, err := m.walkSmall(n, mp)
		if err != nil {
			return Usage{}, err
		}
		u.SmallFree[n-1] = int64(count) * int64(n+1) * format.WordSize
		u.SmallPoolFree += u.SmallFree[n-1]
	}
	for b := range format.LargeOrders {
		bytes, err := m.walkLarge(b, mp)
		if err != nil {
			return Usage{}, err
		}
		u.LargeFree[b] = bytes
		u.LargePoolFree += bytes
	}
	u.SmallPoolAllocated = u.SmallPoolSize - u.SmallPoolFree
	u.LargePoolAllocated = u.LargePoolSize - u.LargePoolFree
	return u, nil
}

// Check verifies the map invariants and the structure of every free list.
func (m *Manager) Check() error {
	mp, err := m.Map()
	if err != nil {
		return err
	}
	if err := mp.Validate(int64(len(m.img.Bytes()))); err != nil {
		return err
	}
	_, err = m.Usage()
	return err
}

// walkSmall counts the free blocks of class n, validating each link.
func (m *Manager) walkSmall(n int, mp format.Map) (int, error) {
	limit := (mp.EndSmallPool-mp.StartSmallPool)/(2*format.WordSize) + 1
	count := 0
	for hdr := m.mapWord(format.SmallFreeOffset(n)); hdr != 0; hdr = int64(m.word(hdr)) {
		if err := m.checkSmallFree(hdr); err != nil {
			return 0, fmt.Errorf("class %d: %w", n, err)
		}
		count++
		if int64(count) > limit {
			return 0, fmt.Errorf("class %d free list cycles: %w", n, ErrCorrupt)
		}
	}
	return count, nil
}

// walkLarge sums the block sizes in bucket b, validating bucket membership
// and back links.
func (m *Manager) walkLarge(b int, mp format.Map) (int64, error) {
	limit := (mp.EndLargePool-mp.StartLargePool)/(format.LargeOverhead+format.LargeGranule) + 1
	var (
		total int64
		count int64
		prev  int64
	)
	for lead := m.mapWord(format.LargeFreeOffset(b)); lead != 0; lead = int64(m.word(lead + format.WordSize)) {
		if err := m.checkLargeFree(lead); err != nil {
			return 0, fmt.Errorf("bucket %d: %w", b, err)
		}
		u := int64(m.word(lead))
		if bucketOf(u) != b {
			return 0, fmt.Errorf("bucket %d holds block 0x%x of %d bytes: %w", b, lead, u, ErrCorrupt)
		}
		if got := int64(m.word(m.trailerOf(lead) + format.WordSize)); got != prev {
			return 0, fmt.Errorf("bucket %d block 0x%x prev 0x%x want 0x%x: %w", b, lead, got, prev, ErrCorrupt)
		}
		total += u + format.LargeOverhead
		prev = lead
		count++
		if count > limit {
			return 0, fmt.Errorf("bucket %d free list cycles: %w", b, ErrCorrupt)
		}
	}
	return total, nil
}
