package sdr

import (
	"errors"
	"fmt"

	"github.com/joshuapare/sdrkit/sdr/space"
	"github.com/joshuapare/sdrkit/sdr/wal"
)

// ErrKind classifies errors so callers can branch on intent rather than text.
type ErrKind int

const (
	ErrKindMisuse    ErrKind = iota // invalid arguments, use outside a transaction
	ErrKindBounds                   // write or free outside a live object
	ErrKindExhausted                // heap or log space used up
	ErrKindOutcome                  // how a transaction ended
	ErrKindState                    // SDR not usable (halted, conflicting profile)
)

// Error is a typed error with an optional underlying cause.
type Error struct {
	Kind ErrKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

var (
	// ErrNotInTransaction indicates a Txn used after its transaction ended,
	// or an operation by a view that does not own the SDR.
	ErrNotInTransaction = &Error{Kind: ErrKindMisuse, Msg: "sdr: not in transaction"}
	// ErrInvalidArgument indicates a bad address, length or profile field.
	ErrInvalidArgument = &Error{Kind: ErrKindMisuse, Msg: "sdr: invalid argument"}
	// ErrOutOfBounds indicates a write outside every known object, or into the map.
	ErrOutOfBounds = &Error{Kind: ErrKindBounds, Msg: "sdr: write out of bounds"}
	// ErrTransactionCanceled is returned by End after reversal, and by every
	// operation of a transaction already marked for cancellation.
	ErrTransactionCanceled = &Error{Kind: ErrKindOutcome, Msg: "sdr: transaction canceled"}
	// ErrExitModified is returned by Exit when the transaction wrote data.
	ErrExitModified = &Error{Kind: ErrKindOutcome, Msg: "sdr: exit from modifying transaction, reversed"}
	// ErrHalted indicates the SDR took the fatal path and refuses all work.
	ErrHalted = &Error{Kind: ErrKindState, Msg: "sdr: halted after fatal error"}
	// ErrProfileConflict indicates a Load whose profile disagrees with the
	// loaded SDR of the same name, or with the descriptor in its heap file.
	ErrProfileConflict = &Error{Kind: ErrKindState, Msg: "sdr: profile conflict"}
	// ErrNotLoaded indicates an unknown SDR name.
	ErrNotLoaded = &Error{Kind: ErrKindState, Msg: "sdr: not loaded"}
	// ErrOwnerAlive indicates an unlock of a heap whose owner process runs.
	ErrOwnerAlive = &Error{Kind: ErrKindState, Msg: "sdr: owner process is alive"}
)

// KindOf returns the kind of err, mapping allocator and log errors onto the
// SDR taxonomy. The second result is false for unclassified errors.
func KindOf(err error) (ErrKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	switch {
	case errors.Is(err, space.ErrNoSpace), errors.Is(err, wal.ErrLogFull):
		return ErrKindExhausted, true
	case errors.Is(err, space.ErrNotObject):
		return ErrKindBounds, true
	case errors.Is(err, space.ErrBadSize):
		return ErrKindMisuse, true
	}
	return 0, false
}

// FatalError is the value an SDR panics with when it cannot restore a
// consistent heap. The SDR is halted before the panic.
type FatalError struct {
	SDR string
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("sdr %s: fatal in %s: %v", e.SDR, e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// FatalHook runs after an SDR is halted and before the panic.
type FatalHook func(*FatalError)
