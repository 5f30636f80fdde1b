package space

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/joshuapare/sdrkit/internal/format"
)

// bucketOf returns the free-list bucket for a large user length u.
func bucketOf(u int64) int {
	b := bits.Len64(uint64(u/format.LargeGranule)) - 1
	switch {
	case b < 0:
		return 0
	case b >= format.LargeOrders:
		return format.LargeOrders - 1
	}
	return b
}

// trailerOf returns the trailing header address of the block led at lead.
func (m *Manager) trailerOf(lead int64) int64 {
	return lead + format.LargeHeaderSize + int64(m.word(lead))
}

// largeAlloc serves n (> MaxSmallObject) bytes from the large pool.
func (m *Manager) largeAlloc(n int64) (Object, error) {
	u := format.AlignLarge(n)
	if u < n || u > math.MaxInt64-format.LargeOverhead {
		return Nil, fmt.Errorf("large alloc %d: %w", n, ErrBadSize)
	}
	b := bucketOf(u)

	// Own bucket: a bounded number of candidates, since only the bucket's
	// minimum size is guaranteed to fit.
	cand := m.mapWord(format.LargeFreeOffset(b))
	for i := 0; cand != 0 && i < m.limit; i++ {
		if err := m.checkLargeFree(cand); err != nil {
			return Nil, err
		}
		if int64(m.word(cand)) >= u {
			return m.takeLarge(cand, u)
		}
		cand = int64(m.word(cand + format.WordSize))
	}

	// Any block in a larger bucket is big enough.
	for bb := b + 1; bb < format.LargeOrders; bb++ {
		if head := m.mapWord(format.LargeFreeOffset(bb)); head != 0 {
			if err := m.checkLargeFree(head); err != nil {
				return Nil, err
			}
			m.stats.Escalations++
			return m.takeLarge(head, u)
		}
	}

	lead, err := m.carve(u+format.LargeOverhead, false)
	if err != nil {
		return Nil, fmt.Errorf("large alloc %d: %w", n, err)
	}
	if err := m.markLargeInUse(lead, u); err != nil {
		return Nil, err
	}
	return Object(lead + format.LargeHeaderSize), nil
}

// takeLarge unlinks the free block at lead and allocates u bytes of it,
// splitting off the surplus when it forms a useful block.
func (m *Manager) takeLarge(lead, u int64) (Object, error) {
	if err := m.unlinkLarge(lead); err != nil {
		return Nil, err
	}
	have := int64(m.word(lead))
	surplus := have - u
	keep := have
	if surplus >= format.LargeOverhead+format.LargeGranule {
		su := surplus - format.LargeOverhead
		if sb, ob := bucketOf(su), bucketOf(have); sb == ob || sb == ob-1 {
			keep = u
			rest := lead + format.LargeOverhead + u
			if err := m.insertLargeFree(rest, su); err != nil {
				return Nil, err
			}
			m.stats.Splits++
		}
	}
	if err := m.markLargeInUse(lead, keep); err != nil {
		return Nil, err
	}
	m.stats.LargeReuse++
	return Object(lead + format.LargeHeaderSize), nil
}

// largeFree merges the live large object obj with free physical neighbours
// and lists the result.
func (m *Manager) largeFree(obj Object) error {
	lead := int64(obj) - format.LargeHeaderSize
	u := int64(m.word(lead))
	start, end := m.mapWord(format.MapStartLargeOffset), m.mapWord(format.MapEndLargeOffset)

	// Preceding neighbour: its trailer sits right before our leader.
	if prevTrail := lead - format.LargeHeaderSize; prevTrail >= start {
		prevLead := int64(m.word(prevTrail))
		if m.word(prevTrail+format.WordSize) != format.InUse && m.isFreeLeader(prevLead, start, end) &&
			m.trailerOf(prevLead) == prevTrail {
			if err := m.unlinkLarge(prevLead); err != nil {
				return err
			}
			u += int64(m.word(prevLead)) + format.LargeOverhead
			lead = prevLead
			m.stats.Coalesces++
		}
	}

	// Following neighbour: its leader sits right after our trailer.
	if next := lead + format.LargeOverhead + u; next < end && m.isFreeLeader(next, start, end) {
		if err := m.unlinkLarge(next); err != nil {
			return err
		}
		u += int64(m.word(next)) + format.LargeOverhead
		m.stats.Coalesces++
	}

	return m.insertLargeFree(lead, u)
}

// isFreeLeader reports whether lead heads a well-formed free large block.
func (m *Manager) isFreeLeader(lead, start, end int64) bool {
	if lead < start || lead+format.LargeOverhead > end || !format.IsWordAligned(lead) {
		return false
	}
	if m.word(lead+format.WordSize) == format.InUse {
		return false
	}
	u := int64(m.word(lead))
	if u < format.LargeGranule || u%format.LargeGranule != 0 || lead+format.LargeOverhead+u > end {
		return false
	}
	trail := lead + format.LargeHeaderSize + u
	return m.word(trail) == uint64(lead) && m.word(trail+format.WordSize) != format.InUse
}

func (m *Manager) checkLargeFree(lead int64) error {
	start, end := m.mapWord(format.MapStartLargeOffset), m.mapWord(format.MapEndLargeOffset)
	if !m.isFreeLeader(lead, start, end) {
		return fmt.Errorf("large free link 0x%x is not a free block: %w", lead, ErrCorrupt)
	}
	return nil
}

// markLargeInUse writes both headers of an allocated block of user length u.
func (m *Manager) markLargeInUse(lead, u int64) error {
	trail := lead + format.LargeHeaderSize + u
	for _, w := range []struct {
		off int64
		v   uint64
	}{
		{lead, uint64(u)},
		{lead + format.WordSize, format.InUse},
		{trail, uint64(lead)},
		{trail + format.WordSize, format.InUse},
	} {
		if err := m.putWord(w.off, w.v); err != nil {
			return err
		}
	}
	return nil
}

// insertLargeFree formats a free block of user length u at lead and pushes it
// onto its bucket.
func (m *Manager) insertLargeFree(lead, u int64) error {
	headOff := format.LargeFreeOffset(bucketOf(u))
	head := m.mapWord(headOff)
	trail := lead + format.LargeHeaderSize + u
	for _, w := range []struct {
		off int64
		v   uint64
	}{
		{lead, uint64(u)},
		{lead + format.WordSize, uint64(head)},
		{trail, uint64(lead)},
		{trail + format.WordSize, 0},
	} {
		if err := m.putWord(w.off, w.v); err != nil {
			return err
		}
	}
	if head != 0 {
		if err := m.putWord(m.trailerOf(head)+format.WordSize, uint64(lead)); err != nil {
			return err
		}
	}
	return m.putMapWord(headOff, lead)
}

// unlinkLarge removes the free block at lead from its bucket.
func (m *Manager) unlinkLarge(lead int64) error {
	next := m.word(lead + format.WordSize)
	prev := m.word(m.trailerOf(lead) + format.WordSize)
	if prev == 0 {
		headOff := format.LargeFreeOffset(bucketOf(int64(m.word(lead))))
		if m.mapWord(headOff) != lead {
			return fmt.Errorf("large block 0x%x has no predecessor but is not its bucket head: %w", lead, ErrCorrupt)
		}
		if err := m.putMapWord(headOff, int64(next)); err != nil {
			return err
		}
	} else if err := m.putWord(int64(prev)+format.WordSize, next); err != nil {
		return err
	}
	if next != 0 {
		if err := m.putWord(m.trailerOf(int64(next))+format.WordSize, prev); err != nil {
			return err
		}
	}
	return nil
}
