package format

// Alignment utilities for the heap image.
// Small blocks are sized in words; large blocks in LargeGranule units.

const (
	wordMask  = WordSize - 1
	largeMask = LargeGranule - 1
)

// AlignWord returns n aligned up to the next word boundary.
//
// Example:
//
//	AlignWord(1)  = 8
//	AlignWord(8)  = 8
//	AlignWord(9)  = 16
func AlignWord(n int64) int64 {
	return (n + wordMask) &^ wordMask
}

// AlignLarge returns n aligned up to the next LargeGranule boundary.
//
// Example:
//
//	AlignLarge(513)  = 544
//	AlignLarge(4000) = 4000
//	AlignLarge(4001) = 4032
func AlignLarge(n int64) int64 {
	return (n + largeMask) &^ largeMask
}

// Words returns the number of words needed to hold n bytes.
func Words(n int64) int64 {
	return (n + wordMask) / WordSize
}

// IsWordAligned reports whether n sits on a word boundary.
func IsWordAligned(n int64) bool {
	return n&wordMask == 0
}
