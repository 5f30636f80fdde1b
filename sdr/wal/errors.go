package wal

import "errors"

var (
	// ErrLogFull indicates a fixed-size store cannot hold another entry.
	ErrLogFull = errors.New("wal: log region full")

	// ErrBadEntry indicates a noted entry no longer matches what was written.
	ErrBadEntry = errors.New("wal: log entry damaged")

	// ErrClosed indicates use of a store after Close.
	ErrClosed = errors.New("wal: store closed")
)
