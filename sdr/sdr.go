package sdr

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync/atomic"
	"unsafe"

	"github.com/joshuapare/sdrkit/internal/format"
	"github.com/joshuapare/sdrkit/internal/mmfile"
	"github.com/joshuapare/sdrkit/sdr/dirty"
	"github.com/joshuapare/sdrkit/sdr/image"
	"github.com/joshuapare/sdrkit/sdr/space"
	"github.com/joshuapare/sdrkit/sdr/tx"
	"github.com/joshuapare/sdrkit/sdr/wal"
)

// Address is any byte offset into a heap image.
type Address = space.Address

// Object is the address of the first user byte of an allocated block.
type Object = space.Object

// Nil is the zero Object.
const Nil = space.Nil

// region is the byte image a heap lives in.
type region interface {
	Bytes() []byte
	Flush(ranges []dirty.Range, mode dirty.FlushMode) error
	File() *os.File
	Fresh() bool
	Close() error
}

// SDR is one loaded heap: its image, log, allocator and transaction state.
// Goroutines use it through Views.
type SDR struct {
	name string
	prof Profile
	log  *slog.Logger
	hook FatalHook

	region region
	data   []byte
	wal    *wal.Log // nil when not reversible
	space  *space.Manager
	tx     *tx.Manager
	dirty  *dirty.Tracker
	flock  *tx.FileLock // nil for heaps without a file
	trace  *tracer      // nil unless tracing

	halted atomic.Bool
	closed atomic.Bool

	// cur is the view owning the current transaction; only its goroutine
	// touches it.
	cur *View
}

// heapImage routes allocator stores through the logged write path.
type heapImage struct{ s *SDR }

func (h heapImage) Bytes() []byte                   { return h.s.data }
func (h heapImage) Write(off int64, p []byte) error { return h.s.poke(off, p) }

func open(p Profile, r *Registry) (s *SDR, err error) {
	s = &SDR{
		name:  p.Name,
		prof:  p,
		log:   r.log.With("sdr", p.Name),
		hook:  r.hook,
		dirty: dirty.NewTracker(),
	}

	size := p.HeapSize()
	switch {
	case p.InFile() && p.Flags&InDRAM != 0:
		s.region, err = image.OpenMirror(p.HeapPath(), size)
	case p.InFile():
		s.region, err = image.OpenMapped(p.HeapPath(), size)
	default:
		s.region, err = image.NewMemory(size)
	}
	if errors.Is(err, mmfile.ErrSizeMismatch) {
		return nil, fmt.Errorf("load %s: %w: %w", p.Name, ErrProfileConflict, err)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", p.Name, err)
	}
	defer func() {
		if err != nil {
			s.release()
		}
	}()
	s.data = s.region.Bytes()

	var lock tx.Locker = tx.NopLocker{}
	if f := s.region.File(); f != nil {
		s.flock = tx.NewFileLock(f)
		lock = s.flock
	}
	s.tx = tx.NewManager(lock)
	if r.trace {
		s.trace = newTracer()
	}

	if err := s.openLog(); err != nil {
		return nil, err
	}

	if err := lock.Lock(); err != nil {
		return nil, err
	}
	err = s.prepare()
	if uerr := lock.Unlock(); err == nil {
		err = uerr
	}
	if err != nil {
		return nil, err
	}

	s.space = space.New(heapImage{s}, space.Config{SearchLimit: p.SearchLimit, Logger: s.log})
	return s, nil
}

func (s *SDR) openLog() error {
	p := s.prof
	if !p.Reversible() {
		return nil
	}
	if p.LogSize > 0 {
		if info, err := os.Stat(p.LogPath()); err == nil && info.Size() > 0 && p.InFile() {
			s.log.Warn("discarding log file of a heap whose log is now in memory", "path", p.LogPath(), "bytes", info.Size())
			if err := os.Remove(p.LogPath()); err != nil {
				return err
			}
		}
		s.wal = wal.New(wal.NewMemStore(int(p.LogSize)))
		return nil
	}
	store, err := wal.OpenFile(p.LogPath(), p.Durability != dirty.FlushDataOnly)
	if err != nil {
		return err
	}
	s.wal = wal.New(store)
	return nil
}

// prepare formats a fresh image or recovers an existing one. The caller
// holds the cross-process lock.
// blankMap reports whether the map area holds nothing but zeros.
func blankMap(data []byte) bool {
	return !slices.ContainsFunc(data[:format.MapSize], func(b byte) bool { return b != 0 })
}

func (s *SDR) prepare() error {
	p := s.prof
	// A file another process created but has not formatted yet reads as
	// zeros; whoever holds the lock first formats it.
	fresh := s.region.Fresh() || blankMap(s.data)
	if fresh {
		if err := space.Format(s.data); err != nil {
			return err
		}
		if err := writeDescriptor(s.data, p); err != nil {
			return err
		}
		s.dirty.Add(0, format.MapSize)
		if err := s.flush(); err != nil {
			return err
		}
	}

	if p.fileLog() {
		count, torn, err := s.wal.Reload()
		if err != nil {
			return fmt.Errorf("reload log: %w", err)
		}
		if torn {
			s.log.Warn("log ends in a torn entry", "entries", count)
		}
		switch {
		case count == 0:
			if err := s.wal.Clear(); err != nil {
				return err
			}
		case !p.InFile() || fresh:
			s.log.Warn("discarding stale log of a heap that did not survive", "entries", count)
			if err := s.wal.Clear(); err != nil {
				return err
			}
		default:
			s.log.Warn("recovering interrupted transaction", "entries", count)
			if err := s.rollback(); err != nil {
				return fmt.Errorf("recover: %w", err)
			}
		}
	}

	mp, err := format.ParseMap(s.data)
	if err != nil {
		return fmt.Errorf("heap %s: %w", p.HeapPath(), err)
	}
	if err := mp.Validate(int64(len(s.data))); err != nil {
		return fmt.Errorf("heap %s: %w", p.HeapPath(), err)
	}
	if !fresh {
		d, err := readDescriptor(s.data)
		switch {
		case err != nil:
			s.log.Warn("heap descriptor unreadable", "err", err)
		case len(d.diff(p)) > 0:
			s.log.Info("profile differs from the one that formatted the heap", "fields", d.diff(p))
		}
	}
	if o := format.ReadOwner(s.data); o.Task != 0 {
		s.log.Warn("clearing stale transaction owner", "pid", o.Task, "depth", o.Depth)
		format.PutOwner(s.data, format.MapOwner{})
	}
	return nil
}

// Name returns the SDR name.
func (s *SDR) Name() string { return s.name }

// Profile returns the profile the SDR was loaded with, defaults filled in.
func (s *SDR) Profile() Profile { return s.prof }

// Halted reports whether the SDR took the fatal path.
func (s *SDR) Halted() bool { return s.halted.Load() }

// Stats returns the allocator counters.
func (s *SDR) Stats() space.Stats { return s.space.Stats() }

// HeapSize returns the image size in bytes.
func (s *SDR) HeapSize() int64 { return int64(len(s.data)) }

// Owner reports the transaction owner recorded in the map and its depth.
// For a mapped heap file this includes owners in other processes.
func (s *SDR) Owner() (tx.Owner, int) {
	o := format.ReadOwner(s.data)
	return tx.Owner{Task: int(o.Task), Thread: o.Thread}, int(o.Depth)
}

// Pointer returns the image bytes [a, a+n). The slice aliases the heap and
// is only meaningful inside a transaction.
func (s *SDR) Pointer(a Address, n int64) ([]byte, error) {
	if a < 0 || n < 0 || int64(a)+n > int64(len(s.data)) {
		return nil, fmt.Errorf("pointer %s+%d: %w", a, n, ErrInvalidArgument)
	}
	return s.data[a : int64(a)+n : int64(a)+n], nil
}

// AddressOf maps a slice returned by Pointer back to its heap address.
func (s *SDR) AddressOf(p []byte) (Address, error) {
	if p == nil || len(s.data) == 0 {
		return 0, fmt.Errorf("address of foreign slice: %w", ErrInvalidArgument)
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(s.data)))
	ptr := uintptr(unsafe.Pointer(unsafe.SliceData(p)))
	if ptr < base || ptr-base+uintptr(len(p)) > uintptr(len(s.data)) {
		return 0, fmt.Errorf("address of foreign slice: %w", ErrInvalidArgument)
	}
	return Address(ptr - base), nil
}

// Usage reports pool occupancy inside a read-only transaction. The caller
// must not hold a transaction on s.
func (s *SDR) Usage() (u space.Usage, err error) {
	err = s.readOnly(func() error {
		u, err = s.space.Usage()
		return err
	})
	return u, err
}

// Check verifies the map and every free list inside a read-only transaction.
func (s *SDR) Check() error {
	return s.readOnly(s.space.Check)
}

// TraceReport lists outstanding allocations by address. It is empty unless
// the registry was created WithTrace.
func (s *SDR) TraceReport() []TraceEntry {
	if s.trace == nil {
		return nil
	}
	return s.trace.report()
}

func (s *SDR) readOnly(fn func() error) error {
	v, err := s.StartUsing()
	if err != nil {
		return err
	}
	defer v.StopUsing()
	t, err := v.Begin()
	if err != nil {
		return err
	}
	ferr := fn()
	if err := t.Exit(); err != nil {
		return err
	}
	return ferr
}

// Eject cancels the transaction of an owner that cannot finish it and
// returns that owner. It is for operators who know the owner is dead; a live
// owner's next operation fails with ErrNotInTransaction.
func (s *SDR) Eject() (tx.Owner, error) {
	if s.halted.Load() {
		return tx.Owner{}, ErrHalted
	}
	o, err := s.tx.Impersonate()
	if err != nil {
		return tx.Owner{}, err
	}
	s.log.Warn("ejecting transaction owner", "owner", o.String())
	s.undo("eject", s.cur != nil && s.cur.modified)
	s.endOwnership(o)
	return o, nil
}

// poke is the logged write path shared by the allocator and every write.
func (s *SDR) poke(off int64, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	end := off + int64(len(p))
	if off < 0 || end > int64(len(s.data)) || end < off {
		return fmt.Errorf("write [0x%x,+%d): %w", off, len(p), ErrOutOfBounds)
	}
	if s.wal != nil {
		if err := s.wal.Note(off, s.data[off:end]); err != nil {
			return err
		}
	}
	copy(s.data[off:end], p)
	s.dirty.Add(off, int64(len(p)))
	if s.cur != nil {
		s.cur.modified = true
	}
	return nil
}

func (s *SDR) flush() error {
	if !s.dirty.Pending() {
		return nil
	}
	if err := s.region.Flush(s.dirty.Ranges(), s.prof.Durability); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	s.dirty.Reset()
	return nil
}

// commit makes the transaction's writes durable and then drops its log.
func (s *SDR) commit() {
	if err := s.flush(); err != nil {
		s.fatal("commit", err)
	}
	if s.wal != nil {
		if err := s.wal.Clear(); err != nil {
			s.fatal("commit", err)
		}
	}
	if s.trace != nil {
		s.trace.commit()
	}
}

// rollback restores every logged range, newest first, and makes the result
// durable. The restart command runs afterwards.
func (s *SDR) rollback() error {
	n, err := s.wal.Reverse(func(addr int64, saved []byte) error {
		if addr < 0 || addr+int64(len(saved)) > int64(len(s.data)) {
			return fmt.Errorf("entry [0x%x,+%d) outside heap: %w", addr, len(saved), wal.ErrBadEntry)
		}
		copy(s.data[addr:], saved)
		s.dirty.Add(addr, int64(len(saved)))
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.flush(); err != nil {
		return err
	}
	if s.trace != nil {
		s.trace.rollback()
	}
	s.log.Info("transaction reversed", "entries", n)
	s.runRestart()
	return nil
}

// undo reverses the current transaction when it modified the heap. A
// modified transaction on a non-reversible SDR cannot be undone.
func (s *SDR) undo(op string, modified bool) {
	if !modified {
		s.dirty.Reset()
		if s.trace != nil {
			s.trace.rollback()
		}
		return
	}
	if s.wal == nil {
		s.fatal(op, errors.New("modified transaction canceled on a non-reversible SDR"))
	}
	if err := s.rollback(); err != nil {
		s.fatal(op, err)
	}
}

func (s *SDR) publishOwner(o tx.Owner, depth int) {
	format.PutOwner(s.data, format.MapOwner{Task: int64(o.Task), Thread: o.Thread, Depth: uint32(depth)})
}

// endOwnership clears the owner fields and releases the transaction.
func (s *SDR) endOwnership(o tx.Owner) {
	format.PutOwner(s.data, format.MapOwner{})
	if s.cur != nil {
		s.cur.known = s.cur.known[:0]
		s.cur = nil
	}
	if err := s.tx.Release(o); err != nil {
		s.log.Error("release transaction", "owner", o.String(), "err", err)
	}
}

// fatal halts the SDR and panics with a *FatalError. Ownership is dropped
// first so goroutines blocked in Begin wake up and see ErrHalted.
func (s *SDR) fatal(op string, err error) {
	fe := &FatalError{SDR: s.name, Op: op, Err: err}
	s.halted.Store(true)
	s.log.Error("fatal error, SDR halted", "op", op, "err", err)
	if s.hook != nil {
		s.hook(fe)
	}
	if o, ierr := s.tx.Impersonate(); ierr == nil {
		s.endOwnership(o)
	}
	panic(fe)
}

// close ejects any transaction in progress and releases the image and log.
func (s *SDR) close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if !s.halted.Load() {
		if o, _ := s.tx.Owner(); !o.IsZero() {
			s.log.Warn("closing with a transaction in progress", "owner", o.String())
			_, _ = s.Eject()
		}
	}
	return s.release()
}

func (s *SDR) release() error {
	var errs []error
	if s.wal != nil {
		errs = append(errs, s.wal.Close())
	}
	if s.region != nil {
		errs = append(errs, s.region.Close())
	}
	s.data = nil
	return errors.Join(errs...)
}
