package space

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"

	"github.com/joshuapare/sdrkit/internal/format"
	"github.com/joshuapare/sdrkit/internal/logger"
)

// Runtime debug flag for allocation logging - controlled by SDRKIT_LOG_ALLOC env var.
var logAlloc = os.Getenv("SDRKIT_LOG_ALLOC") != ""

// DefaultSearchLimit is the number of candidates inspected in a large
// request's own bucket before escalating.
const DefaultSearchLimit = 1

// Config tunes a Manager.
type Config struct {
	// SearchLimit bounds the candidates inspected in the request's own
	// bucket. Zero means DefaultSearchLimit.
	SearchLimit int

	// Logger receives allocation debug records when SDRKIT_LOG_ALLOC is set.
	Logger *slog.Logger
}

// Manager allocates and frees objects in an Image.
//
// The manager holds no state besides its configuration and counters; the map
// in the image is the only source of truth. It is not safe for concurrent
// use: callers serialize through the SDR transaction lock.
type Manager struct {
	img   Image
	limit int
	log   *slog.Logger
	stats Stats
}

// Stats counts allocator activity since the Manager was created. Counters are
// process-local and are not rolled back by a cancelled transaction.
type Stats struct {
	AllocCalls  int // Malloc calls that succeeded
	FreeCalls   int // Free calls that succeeded
	SmallReuse  int // small allocations served from a free list
	LargeReuse  int // large allocations served from a free list
	Carves      int // blocks carved from unassigned space
	Splits      int // surplus split off a reused large block
	Coalesces   int // merges with a free physical neighbour
	Escalations int // large requests served from a larger bucket
}

// New creates a manager over img, which must already hold a valid map.
func New(img Image, cfg Config) *Manager {
	limit := cfg.SearchLimit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	lg := cfg.Logger
	if lg == nil {
		lg = logger.L
	}
	return &Manager{img: img, limit: limit, log: lg}
}

// Format writes a fresh map into b, making the whole image past the map
// unassigned. It writes directly and is meant for images that nothing else
// references yet.
func Format(b []byte) error {
	if len(b) < format.MapSize+format.WordSize*2 {
		return fmt.Errorf("image of %d bytes cannot hold a map: %w", len(b), ErrBadSize)
	}
	if len(b)%format.WordSize != 0 {
		return fmt.Errorf("image of %d bytes is not word aligned: %w", len(b), ErrBadSize)
	}
	format.InitMap(b)
	return nil
}

// Map returns the current map scalars.
func (m *Manager) Map() (format.Map, error) {
	return format.ParseMap(m.img.Bytes())
}

// Stats returns a snapshot of the allocator counters.
func (m *Manager) Stats() Stats { return m.stats }

// SearchLimit returns the configured large-bucket search limit.
func (m *Manager) SearchLimit() int { return m.limit }

// Malloc allocates an object of at least n bytes.
func (m *Manager) Malloc(n int64) (Object, error) {
	if n <= 0 {
		return Nil, fmt.Errorf("malloc %d: %w", n, ErrBadSize)
	}
	var (
		obj Object
		err error
	)
	if n <= format.MaxSmallObject {
		obj, err = m.smallAlloc(n)
	} else {
		obj, err = m.largeAlloc(n)
	}
	if err != nil {
		return Nil, err
	}
	m.stats.AllocCalls++
	if logAlloc {
		m.log.Debug("malloc", "size", n, "object", obj)
	}
	return obj, nil
}

// Free releases obj. Freeing anything but the start of a live object fails
// with ErrNotObject and changes nothing.
func (m *Manager) Free(obj Object) error {
	var err error
	switch m.ScaleOf(obj.Addr()) {
	case ScaleSmall:
		err = m.smallFree(obj)
	case ScaleLarge:
		err = m.largeFree(obj)
	default:
		return fmt.Errorf("free %s: %w", obj, ErrNotObject)
	}
	if err != nil {
		return err
	}
	m.stats.FreeCalls++
	if logAlloc {
		m.log.Debug("free", "object", obj)
	}
	return nil
}

// ObjectLength returns the user length of the live object obj.
func (m *Manager) ObjectLength(obj Object) (int64, error) {
	a := obj.Addr()
	switch m.ScaleOf(a) {
	case ScaleSmall:
		n, _ := format.DecodeSmallInUse(m.word(int64(a)-format.SmallOverhead), int64(a)-format.SmallOverhead)
		return int64(n) * format.WordSize, nil
	case ScaleLarge:
		return int64(m.word(int64(a) - format.LargeHeaderSize)), nil
	default:
		return 0, fmt.Errorf("length of %s: %w", obj, ErrNotObject)
	}
}

// ScaleOf reports whether a is the start of a live small object, a live
// large object, or neither, reading only block headers.
func (m *Manager) ScaleOf(a Address) Scale {
	b := m.img.Bytes()
	off := int64(a)
	if off < format.MapSize || off >= int64(len(b)) || !format.IsWordAligned(off) {
		return ScaleNone
	}
	if m.isLiveSmall(off) {
		return ScaleSmall
	}
	if m.isLiveLarge(off) {
		return ScaleLarge
	}
	return ScaleNone
}

func (m *Manager) isLiveSmall(a int64) bool {
	hdr := a - format.SmallOverhead
	start, end := m.mapWord(format.MapStartSmallOffset), m.mapWord(format.MapEndSmallOffset)
	if hdr < start || a >= end {
		return false
	}
	n, ok := format.DecodeSmallInUse(m.word(hdr), hdr)
	return ok && a+int64(n)*format.WordSize <= end
}

func (m *Manager) isLiveLarge(a int64) bool {
	lead := a - format.LargeHeaderSize
	start, end := m.mapWord(format.MapStartLargeOffset), m.mapWord(format.MapEndLargeOffset)
	if lead < start || a >= end {
		return false
	}
	if m.word(lead+format.WordSize) != format.InUse {
		return false
	}
	u := int64(m.word(lead))
	if u < format.LargeGranule || u%format.LargeGranule != 0 || u > end-a-format.LargeHeaderSize {
		return false
	}
	trail := a + u
	return m.word(trail) == uint64(lead) && m.word(trail+format.WordSize) == format.InUse
}

// word reads the little-endian word at off.
func (m *Manager) word(off int64) uint64 {
	return format.ReadU64(m.img.Bytes(), int(off))
}

func (m *Manager) mapWord(off int) int64 {
	return int64(format.ReadU64(m.img.Bytes(), off))
}

// putWord stores v at off through the image's logged write path.
func (m *Manager) putWord(off int64, v uint64) error {
	var w [format.WordSize]byte
	binary.LittleEndian.PutUint64(w[:], v)
	return m.img.Write(off, w[:])
}

func (m *Manager) putMapWord(off int, v int64) error {
	return m.putWord(int64(off), uint64(v))
}

// carve takes size bytes of unassigned space for the small (low) or large
// (high) pool and returns the address of the new region.
func (m *Manager) carve(size int64, small bool) (int64, error) {
	if size <= 0 {
		return 0, fmt.Errorf("carve %d bytes: %w", size, ErrBadSize)
	}
	unassigned := m.mapWord(format.MapUnassignedOffset)
	if unassigned < size {
		return 0, fmt.Errorf("carve %d bytes, %d unassigned: %w", size, unassigned, ErrNoSpace)
	}
	var at int64
	if small {
		at = m.mapWord(format.MapEndSmallOffset)
		if err := m.putMapWord(format.MapEndSmallOffset, at+size); err != nil {
			return 0, err
		}
	} else {
		at = m.mapWord(format.MapStartLargeOffset) - size
		if err := m.putMapWord(format.MapStartLargeOffset, at); err != nil {
			return 0, err
		}
	}
	if err := m.putMapWord(format.MapUnassignedOffset, unassigned-size); err != nil {
		return 0, err
	}
	m.stats.Carves++
	return at, nil
}
