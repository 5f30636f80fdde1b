package format

import "errors"

var (
	// ErrSignatureMismatch indicates the image does not start with MapMagic.
	ErrSignatureMismatch = errors.New("format: signature mismatch")
	// ErrTruncated indicates the buffer lacked the bytes required for a structure.
	ErrTruncated = errors.New("format: truncated buffer")
	// ErrUnsupported indicates a map layout version this build cannot read.
	ErrUnsupported = errors.New("format: unsupported layout version")
	// ErrCorruptMap indicates the map's pool bounds violate their ordering.
	ErrCorruptMap = errors.New("format: corrupt map")
)
