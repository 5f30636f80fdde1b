package dirty

import (
	"fmt"
	"slices"
	"strings"
)

const (
	// defaultRangeCapacity is the pre-allocated capacity for dirty ranges.
	defaultRangeCapacity = 64

	// standardPageSize is the typical OS page size (4KB).
	standardPageSize = 4096
)

// FlushMode controls durability guarantees for transaction commits.
type FlushMode int

const (
	// FlushAuto syncs dirty pages and then fdatasyncs the heap file.
	FlushAuto FlushMode = iota

	// FlushDataOnly only syncs dirty pages. Log appends are not synced
	// either; use it when an external checkpoint provides durability.
	FlushDataOnly

	// FlushFull syncs dirty pages and the file, with F_FULLFSYNC on macOS.
	FlushFull
)

func (m FlushMode) String() string {
	switch m {
	case FlushAuto:
		return "auto"
	case FlushDataOnly:
		return "data"
	case FlushFull:
		return "full"
	default:
		return fmt.Sprintf("FlushMode(%d)", int(m))
	}
}

// ParseFlushMode accepts the names printed by FlushMode.String.
func ParseFlushMode(s string) (FlushMode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FlushAuto, nil
	case "data", "dataonly", "data-only":
		return FlushDataOnly, nil
	case "full":
		return FlushFull, nil
	}
	return FlushAuto, fmt.Errorf("unknown flush mode %q", s)
}

// Range represents a dirty byte range (absolute image offsets).
type Range struct {
	Off int64
	Len int64
}

// End returns the offset just past the range.
func (r Range) End() int64 { return r.Off + r.Len }

// Tracker accumulates dirty ranges.
//
// NOT thread-safe. Only one goroutine should use it at a time.
type Tracker struct {
	ranges   []Range
	pageSize int64
}

// NewTracker returns an empty tracker using 4KB pages.
func NewTracker() *Tracker {
	return &Tracker{
		ranges:   make([]Range, 0, defaultRangeCapacity),
		pageSize: standardPageSize,
	}
}

// Add records a dirty range. Empty ranges are ignored.
func (t *Tracker) Add(off, length int64) {
	if length <= 0 {
		return
	}
	t.ranges = append(t.ranges, Range{Off: off, Len: length})
}

// Pending reports whether any range has been added since the last Reset.
func (t *Tracker) Pending() bool { return len(t.ranges) > 0 }

// Reset clears all tracked ranges.
func (t *Tracker) Reset() {
	t.ranges = t.ranges[:0]
}

// Raw returns a copy of the ranges as added.
func (t *Tracker) Raw() []Range {
	return slices.Clone(t.ranges)
}

// Ranges returns the page-aligned, sorted and merged dirty ranges.
func (t *Tracker) Ranges() []Range {
	if len(t.ranges) == 0 {
		return nil
	}

	aligned := make([]Range, len(t.ranges))
	for i, r := range t.ranges {
		start := (r.Off / t.pageSize) * t.pageSize
		end := r.End()
		if end%t.pageSize != 0 {
			end = ((end / t.pageSize) + 1) * t.pageSize
		}
		aligned[i] = Range{Off: start, Len: end - start}
	}

	slices.SortFunc(aligned, func(a, b Range) int {
		switch {
		case a.Off < b.Off:
			return -1
		case a.Off > b.Off:
			return 1
		}
		return 0
	})

	merged := make([]Range, 0, len(aligned))
	current := aligned[0]
	for _, next := range aligned[1:] {
		if next.Off <= current.End() {
			if next.End() > current.End() {
				current.Len = next.End() - current.Off
			}
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}

// Clip bounds r to [0, limit). The second result is false when nothing is
// left.
func Clip(r Range, limit int64) (Range, bool) {
	if r.Off >= limit {
		return Range{}, false
	}
	if r.End() > limit {
		r.Len = limit - r.Off
	}
	return r, r.Len > 0
}
