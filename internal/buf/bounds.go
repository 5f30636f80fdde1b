// Package buf contains overflow-safe span arithmetic and little-endian reads
// used when laying fixed layouts over heap objects.
package buf

import (
	"fmt"
	"math"
)

// AddOverflowSafe adds two non-negative spans, returning ok = false when the
// sum would overflow int64 or either operand is negative.
func AddOverflowSafe(a, b int64) (int64, bool) {
	if a < 0 || b < 0 || a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}

// MulOverflowSafe multiplies two non-negative spans, returning ok = false when
// the product would overflow int64 or either operand is negative.
func MulOverflowSafe(a, b int64) (int64, bool) {
	switch {
	case a < 0 || b < 0:
		return 0, false
	case a == 0 || b == 0:
		return 0, true
	case a > math.MaxInt64/b:
		return 0, false
	}
	return a * b, true
}

// CheckRows validates that count rows of rowSize bytes fit in a region of
// limit bytes starting at offset, and returns the end offset.
//
//	if _, err := buf.CheckRows(rowCount*rowSize, i*rowSize, 1, n); err != nil {
//	    return fmt.Errorf("row %d: %w", i, err)
//	}
func CheckRows(limit, offset, count, rowSize int64) (int64, error) {
	switch {
	case offset < 0:
		return 0, fmt.Errorf("negative offset: %d", offset)
	case count < 0:
		return 0, fmt.Errorf("negative count: %d", count)
	case rowSize < 0:
		return 0, fmt.Errorf("negative row size: %d", rowSize)
	}
	total, ok := MulOverflowSafe(count, rowSize)
	if !ok {
		return 0, fmt.Errorf("overflow: count=%d * rowSize=%d", count, rowSize)
	}
	end, ok := AddOverflowSafe(offset, total)
	if !ok {
		return 0, fmt.Errorf("overflow: offset=%d + size=%d", offset, total)
	}
	if end > limit {
		return 0, fmt.Errorf("bounds: end=%d > limit=%d", end, limit)
	}
	return end, nil
}
