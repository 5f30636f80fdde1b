package space

import "errors"

var (
	// ErrNoSpace indicates that the pool and the unassigned region cannot
	// satisfy the request.
	ErrNoSpace = errors.New("space: no space left in heap")

	// ErrNotObject indicates an address that is not the start of a live object.
	ErrNotObject = errors.New("space: address is not a live object")

	// ErrBadSize indicates a non-positive or unrepresentable request size.
	ErrBadSize = errors.New("space: bad allocation size")

	// ErrCorrupt indicates that a free list or block header is inconsistent.
	ErrCorrupt = errors.New("space: heap structure corrupt")
)
