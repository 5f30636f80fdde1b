package sdr

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/joshuapare/sdrkit/sdr/tx"
)

// extent is a span of heap known to the current transaction.
type extent struct {
	start, end int64
}

// View is a goroutine's handle on an SDR. A View must not be shared between
// goroutines; each goroutine that begins transactions starts its own.
type View struct {
	sdr   *SDR
	owner tx.Owner

	// state of the view's current transaction
	modified bool
	known    []extent

	stopped bool
}

// StartUsing returns a new View of s.
func (s *SDR) StartUsing() (*View, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("start using %s: %w", s.name, ErrNotLoaded)
	}
	if s.halted.Load() {
		return nil, ErrHalted
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	return &View{sdr: s, owner: tx.Owner{Task: os.Getpid(), Thread: id}}, nil
}

// ID returns the view's identity, recorded as the owner thread while it
// holds a transaction.
func (v *View) ID() uuid.UUID { return v.owner.Thread }

// SDR returns the SDR the view belongs to.
func (v *View) SDR() *SDR { return v.sdr }

// Begin starts a transaction, or nests one inside the transaction this view
// already owns. It blocks while another view owns the SDR.
func (v *View) Begin() (*Txn, error) {
	s := v.sdr
	switch {
	case v.stopped:
		return nil, fmt.Errorf("begin on stopped view: %w", ErrInvalidArgument)
	case s.closed.Load():
		return nil, fmt.Errorf("begin on %s: %w", s.name, ErrNotLoaded)
	case s.halted.Load():
		return nil, ErrHalted
	}

	epoch, depth, err := s.tx.Acquire(v.owner)
	if err != nil {
		return nil, err
	}
	if s.halted.Load() || s.closed.Load() {
		if _, lerr := s.tx.Leave(v.owner); lerr == nil && depth == 1 {
			_ = s.tx.Release(v.owner)
		}
		if s.closed.Load() {
			return nil, ErrNotLoaded
		}
		return nil, ErrHalted
	}

	if depth == 1 {
		s.cur = v
		v.modified = false
		v.known = v.known[:0]
		if err := s.adopt(); err != nil {
			_, _ = s.tx.Leave(v.owner)
			s.endOwnership(v.owner)
			return nil, err
		}
	}
	s.publishOwner(v.owner, depth)
	return &Txn{v: v, epoch: epoch, depth: depth}, nil
}

// adopt picks up the log of a transaction another process left behind on a
// shared heap file, and reverses it before the new transaction starts.
func (s *SDR) adopt() error {
	if !s.prof.fileLog() || !s.prof.InFile() {
		return nil
	}
	store, ok := s.wal.Store().(interface{ Refresh() error })
	if !ok {
		return nil
	}
	if err := store.Refresh(); err != nil {
		return err
	}
	if s.wal.Store().Size() == 0 {
		return nil
	}
	count, _, err := s.wal.Reload()
	if err != nil {
		return err
	}
	if count > 0 {
		s.log.Warn("reversing transaction abandoned by another process", "entries", count)
		if err := s.rollback(); err != nil {
			s.fatal("adopt", err)
		}
		return nil
	}
	return s.wal.Clear()
}

// StopUsing discards the view. A transaction the view still owns is
// canceled.
func (v *View) StopUsing() error {
	if v.stopped {
		return nil
	}
	v.stopped = true
	s := v.sdr
	if s.closed.Load() || s.halted.Load() || s.tx.Depth(v.owner) == 0 {
		return nil
	}
	s.log.Warn("view stopped inside a transaction, canceling", "view", v.owner.Thread.String())
	o, err := s.tx.Impersonate()
	if err != nil {
		return err
	}
	s.undo("stop using", v.modified)
	s.endOwnership(o)
	return ErrTransactionCanceled
}
