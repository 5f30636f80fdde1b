package wal

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"

	"github.com/joshuapare/sdrkit/internal/format"
)

// Entry locates one undo record.
type Entry struct {
	Offset int64 // position of the record in the store
	Addr   int64 // heap address the saved bytes belong to
	Len    int   // number of saved bytes
}

// Log records undo entries for the current transaction.
//
// NOT thread-safe; the owner of the SDR transaction is its only user.
type Log struct {
	store Store
	notes []Entry
	buf   []byte
}

// New returns a Log over store with no notes. Entries already in the store
// are left alone until Reload, Reverse or Clear.
func New(store Store) *Log {
	return &Log{store: store}
}

// Store returns the underlying store.
func (l *Log) Store() Store { return l.store }

// Len returns the number of noted entries.
func (l *Log) Len() int { return len(l.notes) }

// Entries returns a copy of the noted entries in write order.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.notes))
	copy(out, l.notes)
	return out
}

// Note appends an entry saving old, the current bytes at addr, and remembers
// it for reversal.
func (l *Log) Note(addr int64, old []byte) error {
	if uint64(len(old)) > math.MaxUint32 {
		return fmt.Errorf("log %d bytes at 0x%x: entry too long", len(old), addr)
	}
	need := format.LogEntryHdrSize + len(old)
	if cap(l.buf) < need {
		l.buf = make([]byte, need)
	}
	rec := l.buf[:need]
	encodeEntry(rec, addr, old)
	off, err := l.store.Append(rec)
	if err != nil {
		return err
	}
	l.notes = append(l.notes, Entry{Offset: off, Addr: addr, Len: len(old)})
	return nil
}

// Reverse hands every noted entry, newest first, to apply and then empties
// the log. It returns the number of entries applied. If reading an entry or
// apply fails, the remaining notes are kept and the error is returned.
func (l *Log) Reverse(apply func(addr int64, saved []byte) error) (int, error) {
	applied := 0
	for i := len(l.notes) - 1; i >= 0; i-- {
		e := l.notes[i]
		rec := make([]byte, format.LogEntryHdrSize+e.Len)
		if err := l.store.ReadAt(rec, e.Offset); err != nil {
			return applied, fmt.Errorf("read log entry %d at %d: %w", i, e.Offset, err)
		}
		addr, saved, ok := decodeEntry(rec)
		if !ok || addr != e.Addr || len(saved) != e.Len {
			return applied, fmt.Errorf("log entry %d at %d: %w", i, e.Offset, ErrBadEntry)
		}
		if err := apply(addr, saved); err != nil {
			return applied, fmt.Errorf("apply log entry %d to 0x%x: %w", i, addr, err)
		}
		l.notes = l.notes[:i]
		applied++
	}
	return applied, l.Clear()
}

// Clear forgets every note and empties the store.
func (l *Log) Clear() error {
	l.notes = l.notes[:0]
	return l.store.Reset()
}

// Reload rebuilds the notes from the complete entries in the store, in
// write order. A damaged or incomplete tail ends the scan and is reported
// through torn; the entries before it are kept.
func (l *Log) Reload() (count int, torn bool, err error) {
	size := l.store.Size()
	l.notes = l.notes[:0]
	var hdr [format.LogEntryHdrSize]byte
	for off := int64(0); off < size; {
		if size-off < format.LogEntryHdrSize {
			return len(l.notes), true, nil
		}
		if err := l.store.ReadAt(hdr[:], off); err != nil {
			return 0, false, err
		}
		n := int64(format.ReadU32(hdr[:], format.LogLenOffset))
		if size-off-format.LogEntryHdrSize < n {
			return len(l.notes), true, nil
		}
		rec := make([]byte, format.LogEntryHdrSize+n)
		if err := l.store.ReadAt(rec, off); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return len(l.notes), true, nil
			}
			return 0, false, err
		}
		addr, saved, ok := decodeEntry(rec)
		if !ok {
			return len(l.notes), true, nil
		}
		l.notes = append(l.notes, Entry{Offset: off, Addr: addr, Len: len(saved)})
		off += int64(len(rec))
	}
	return len(l.notes), false, nil
}

// Close closes the store.
func (l *Log) Close() error { return l.store.Close() }

func encodeEntry(rec []byte, addr int64, saved []byte) {
	format.PutU64(rec, format.LogAddrOffset, uint64(addr))
	format.PutU32(rec, format.LogLenOffset, uint32(len(saved)))
	copy(rec[format.LogEntryHdrSize:], saved)
	format.PutU32(rec, format.LogCRCOffset, entryCRC(rec))
}

func decodeEntry(rec []byte) (int64, []byte, bool) {
	if len(rec) < format.LogEntryHdrSize {
		return 0, nil, false
	}
	n := int(format.ReadU32(rec, format.LogLenOffset))
	if len(rec) != format.LogEntryHdrSize+n {
		return 0, nil, false
	}
	if format.ReadU32(rec, format.LogCRCOffset) != entryCRC(rec) {
		return 0, nil, false
	}
	return int64(format.ReadU64(rec, format.LogAddrOffset)), rec[format.LogEntryHdrSize:], true
}

// entryCRC covers the address, the length and the saved bytes.
func entryCRC(rec []byte) uint32 {
	c := crc32.ChecksumIEEE(rec[:format.LogCRCOffset])
	return crc32.Update(c, crc32.IEEETable, rec[format.LogEntryHdrSize:])
}
