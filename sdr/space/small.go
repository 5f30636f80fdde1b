package space

import (
	"fmt"

	"github.com/joshuapare/sdrkit/internal/format"
)

// smallAlloc serves n (1..MaxSmallObject) bytes from its size class.
func (m *Manager) smallAlloc(n int64) (Object, error) {
	words := int(format.Words(n))
	headOff := format.SmallFreeOffset(words)

	if head := m.mapWord(headOff); head != 0 {
		if err := m.checkSmallFree(head); err != nil {
			return Nil, err
		}
		next := m.word(head)
		if err := m.putMapWord(headOff, int64(next)); err != nil {
			return Nil, err
		}
		if err := m.putWord(head, format.EncodeSmallInUse(head, words)); err != nil {
			return Nil, err
		}
		m.stats.SmallReuse++
		return Object(head + format.SmallOverhead), nil
	}

	hdr, err := m.carve(int64(words+1)*format.WordSize, true)
	if err != nil {
		return Nil, fmt.Errorf("small alloc %d: %w", n, err)
	}
	if err := m.putWord(hdr, format.EncodeSmallInUse(hdr, words)); err != nil {
		return Nil, err
	}
	return Object(hdr + format.SmallOverhead), nil
}

// smallFree pushes the live small object obj onto its class's free list.
func (m *Manager) smallFree(obj Object) error {
	hdr := int64(obj) - format.SmallOverhead
	words, ok := format.DecodeSmallInUse(m.word(hdr), hdr)
	if !ok {
		return fmt.Errorf("small free %s: %w", obj, ErrNotObject)
	}
	headOff := format.SmallFreeOffset(words)
	if err := m.putWord(hdr, uint64(m.mapWord(headOff))); err != nil {
		return err
	}
	return m.putMapWord(headOff, hdr)
}

// checkSmallFree verifies that a free-list link names a free block inside the
// small pool.
func (m *Manager) checkSmallFree(hdr int64) error {
	start, end := m.mapWord(format.MapStartSmallOffset), m.mapWord(format.MapEndSmallOffset)
	if hdr < start || hdr >= end || !format.IsWordAligned(hdr) {
		return fmt.Errorf("small free link 0x%x outside pool [0x%x,0x%x): %w", hdr, start, end, ErrCorrupt)
	}
	if _, inUse := format.DecodeSmallInUse(m.word(hdr), hdr); inUse {
		return fmt.Errorf("small free link 0x%x names a block in use: %w", hdr, ErrCorrupt)
	}
	return nil
}
