package sdr

import (
	"errors"
	"fmt"
	"slices"

	"github.com/joshuapare/sdrkit/internal/format"
	"github.com/joshuapare/sdrkit/sdr/space"
)

// Txn is the handle of one Begin. Every read, write and allocation goes
// through the Txn of an open transaction; nested Begins return their own
// Txn, and each must be finished, innermost first, with End, Exit or Cancel.
type Txn struct {
	v     *View
	epoch uint64
	depth int
	done  bool
}

// View returns the view that began the transaction.
func (t *Txn) View() *View { return t.v }

// Depth returns the nesting depth of this handle, 1 for the outermost.
func (t *Txn) Depth() int { return t.depth }

// Modified reports whether the transaction has written to the heap.
func (t *Txn) Modified() bool { return t.v.modified }

// check returns nil when t may operate. Using a finished handle while the
// view still owns a transaction cancels that transaction.
func (t *Txn) check() error {
	s := t.v.sdr
	switch {
	case s.halted.Load():
		return ErrHalted
	case s.closed.Load():
		return ErrNotLoaded
	}
	if t.done || !s.tx.Holds(t.v.owner, t.epoch) {
		if s.tx.Depth(t.v.owner) > 0 {
			s.tx.SetCanceled()
		}
		return ErrNotInTransaction
	}
	if s.tx.Canceled() {
		return ErrTransactionCanceled
	}
	return nil
}

// fail marks the transaction for cancellation and returns err.
func (t *Txn) fail(err error) error {
	t.v.sdr.tx.SetCanceled()
	return err
}

// Fail marks the transaction for cancellation and returns err. Data
// structures built on the heap call it when they detect misuse.
func (t *Txn) Fail(err error) error {
	if cerr := t.check(); cerr != nil {
		return cerr
	}
	return t.fail(err)
}

type finish int

const (
	finishEnd finish = iota
	finishExit
	finishCancel
)

func (f finish) String() string {
	switch f {
	case finishExit:
		return "exit"
	case finishCancel:
		return "cancel"
	default:
		return "end"
	}
}

// End finishes the transaction. At the outermost level it commits, or,
// when the transaction was marked for cancellation, reverses it and returns
// ErrTransactionCanceled.
func (t *Txn) End() error { return t.finish(finishEnd) }

// Exit finishes a transaction that was meant to be read-only. At the
// outermost level a transaction that wrote anything is reversed and
// ErrExitModified returned; on a non-reversible SDR that is fatal.
func (t *Txn) Exit() error { return t.finish(finishExit) }

// Cancel marks the transaction for reversal; at the outermost level it is
// reversed at once. Canceling a transaction that wrote to a non-reversible
// SDR is fatal.
func (t *Txn) Cancel() error { return t.finish(finishCancel) }

func (t *Txn) finish(how finish) error {
	s := t.v.sdr
	switch {
	case s.halted.Load():
		return ErrHalted
	case s.closed.Load():
		return ErrNotLoaded
	case t.done || !s.tx.Holds(t.v.owner, t.epoch):
		return ErrNotInTransaction
	}
	if d := s.tx.Depth(t.v.owner); d != t.depth {
		s.tx.SetCanceled()
		return fmt.Errorf("%s at depth %d while depth %d is open: %w", how, t.depth, d, ErrNotInTransaction)
	}

	t.done = true
	if how == finishCancel {
		s.tx.SetCanceled()
	}
	left, err := s.tx.Leave(t.v.owner)
	if err != nil {
		return err
	}
	if left > 0 {
		s.publishOwner(t.v.owner, left)
		return nil
	}

	modified := t.v.modified
	var result error
	switch {
	case s.tx.Canceled():
		s.undo(how.String(), modified)
		if how != finishCancel {
			result = ErrTransactionCanceled
		}
	case how == finishExit && modified:
		s.undo(how.String(), modified)
		result = ErrExitModified
	default:
		s.commit()
	}
	s.endOwnership(t.v.owner)
	return result
}

// Read copies len(p) bytes at from into p.
func (t *Txn) Read(from Address, p []byte) error {
	if err := t.check(); err != nil {
		return err
	}
	data := t.v.sdr.data
	if from < 0 || int64(from)+int64(len(p)) > int64(len(data)) {
		return t.fail(fmt.Errorf("read %s+%d: %w", from, len(p), ErrInvalidArgument))
	}
	copy(p, data[from:])
	return nil
}

// Write stores p at into. The map is never writable this way; on a bounded
// SDR the span must also lie inside an object allocated or staged by this
// transaction. A refused write cancels the transaction with ErrOutOfBounds.
func (t *Txn) Write(into Address, p []byte) error {
	if err := t.check(); err != nil {
		return err
	}
	s := t.v.sdr
	start, end := int64(into), int64(into)+int64(len(p))
	if start < format.MapSize || end > int64(len(s.data)) || end < start {
		return t.fail(fmt.Errorf("write %s+%d: %w", into, len(p), ErrOutOfBounds))
	}
	if s.prof.Bounded() && !t.v.knows(start, end) {
		return t.fail(fmt.Errorf("write %s+%d outside known objects: %w", into, len(p), ErrOutOfBounds))
	}
	if err := s.poke(start, p); err != nil {
		return t.fail(err)
	}
	return nil
}

// Poke stores p at into through the log without bounds checks. It is the
// write path of data structures built on the SDR.
func (t *Txn) Poke(into Address, p []byte) error {
	if err := t.check(); err != nil {
		return err
	}
	if err := t.v.sdr.poke(int64(into), p); err != nil {
		return t.fail(err)
	}
	return nil
}

// Stage validates that obj is a live object, makes it known to the
// transaction for bounded writes, and reads its leading bytes into p (which
// may be nil). It returns the object length.
func (t *Txn) Stage(obj Object, p []byte) (int64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	s := t.v.sdr
	n, err := s.space.ObjectLength(obj)
	if err != nil {
		return 0, t.fail(fmt.Errorf("stage %s: %w: %w", obj, ErrOutOfBounds, err))
	}
	t.v.learn(int64(obj), int64(obj)+n)
	copy(p, s.data[obj:int64(obj)+n])
	return n, nil
}

// Malloc allocates an object of at least n bytes. Exhausted space cancels
// the transaction.
func (t *Txn) Malloc(n int64) (Object, error) {
	return t.malloc(n, 1)
}

// Zalloc is Malloc with the whole object zeroed.
func (t *Txn) Zalloc(n int64) (Object, error) {
	obj, err := t.malloc(n, 1)
	if err != nil {
		return Nil, err
	}
	length, _ := t.v.sdr.space.ObjectLength(obj)
	if err := t.v.sdr.poke(int64(obj), make([]byte, length)); err != nil {
		return Nil, t.fail(err)
	}
	return obj, nil
}

func (t *Txn) malloc(n int64, skip int) (Object, error) {
	if err := t.check(); err != nil {
		return Nil, err
	}
	if n <= 0 {
		return Nil, t.fail(fmt.Errorf("malloc %d: %w", n, ErrInvalidArgument))
	}
	s := t.v.sdr
	obj, err := s.space.Malloc(n)
	if err != nil {
		return Nil, t.fail(err)
	}
	length, _ := s.space.ObjectLength(obj)
	t.v.learn(int64(obj), int64(obj)+length)
	if s.trace != nil {
		s.trace.malloc(obj, n, skip+1)
	}
	return obj, nil
}

// Free releases obj. Freeing anything but a live object cancels the
// transaction.
func (t *Txn) Free(obj Object) error {
	if err := t.check(); err != nil {
		return err
	}
	s := t.v.sdr
	if err := s.space.Free(obj); err != nil {
		if errors.Is(err, space.ErrNotObject) {
			err = fmt.Errorf("%w: %w", ErrOutOfBounds, err)
		}
		return t.fail(err)
	}
	t.v.forget(int64(obj))
	if s.trace != nil {
		s.trace.free(obj)
	}
	return nil
}

// ObjectLength returns the user length of the live object obj.
func (t *Txn) ObjectLength(obj Object) (int64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	n, err := t.v.sdr.space.ObjectLength(obj)
	if err != nil {
		return 0, t.fail(err)
	}
	return n, nil
}

// ScaleOf reports whether a starts a live small object, a live large
// object, or neither.
func (t *Txn) ScaleOf(a Address) (space.Scale, error) {
	if err := t.check(); err != nil {
		return space.ScaleNone, err
	}
	return t.v.sdr.space.ScaleOf(a), nil
}

// Root returns the catalogue root object, Nil when there is none.
func (t *Txn) Root() (Object, error) {
	a, err := t.ReadAddress(format.MapCatalogueOffset)
	return Object(a), err
}

// SetRoot replaces the catalogue root object.
func (t *Txn) SetRoot(obj Object) error {
	return t.PokeAddress(format.MapCatalogueOffset, Address(obj))
}

// ReadAddress reads the address stored in the word at a.
func (t *Txn) ReadAddress(a Address) (Address, error) {
	var w [format.WordSize]byte
	if err := t.Read(a, w[:]); err != nil {
		return 0, err
	}
	return Address(format.ReadU64(w[:], 0)), nil
}

// PokeAddress stores v in the word at a.
func (t *Txn) PokeAddress(a, v Address) error {
	var w [format.WordSize]byte
	format.PutU64(w[:], 0, uint64(v))
	return t.Poke(a, w[:])
}

func (v *View) knows(start, end int64) bool {
	for _, e := range v.known {
		if start >= e.start && end <= e.end {
			return true
		}
	}
	return false
}

func (v *View) learn(start, end int64) {
	for _, e := range v.known {
		if e.start == start && e.end == end {
			return
		}
	}
	v.known = append(v.known, extent{start, end})
}

func (v *View) forget(start int64) {
	v.known = slices.DeleteFunc(v.known, func(e extent) bool { return e.start == start })
}
