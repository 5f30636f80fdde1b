// Package sdr is a persistent, transactional object heap with a flat
// address space.
//
// # Overview
//
// A heap image is one contiguous byte region: a fixed map followed by the
// heap proper. "Pointers" inside the heap are offsets (Address, Object), so
// they stay valid when the image is saved to a file, mapped by another
// process, or reloaded after a restart.
//
// A Registry loads SDRs by Profile. Each goroutine obtains a View and
// brackets its work in a transaction:
//
//	reg := sdr.NewRegistry(sdr.WithLogger(log))
//	s, err := reg.Load(sdr.Profile{
//	    Name:      "bundles",
//	    Flags:     sdr.InFile | sdr.Reversible,
//	    HeapWords: 1 << 20,
//	    Path:      "/var/lib/dtn",
//	})
//	v, _ := s.StartUsing()
//	t, _ := v.Begin()
//	obj, _ := t.Malloc(64)
//	_ = t.Write(obj.Addr(), payload)
//	if err := t.End(); err != nil { ... }
//
// # Transactions
//
// Only one view owns an SDR at a time; Begin blocks while another view owns
// it and nests when the same view begins again. At the outermost level End
// commits, Cancel reverses and Exit reverses a transaction that wrote
// anything. Any failed operation marks the transaction canceled, and End
// then reverses it and reports ErrTransactionCanceled.
//
// On a Reversible SDR every write first logs the bytes it overwrites. The
// log lives in <Path>/<Name>.sdrlog, or in memory when Profile.LogSize is
// set. Loading a heap file whose file log is not empty reverses the
// interrupted transaction before the SDR is returned.
//
// # Fatal errors
//
// A modified transaction that cannot be reversed (non-reversible SDR, or a
// failing log) halts the SDR and panics with *FatalError. A halted SDR
// refuses all further work with ErrHalted.
//
// # Bounds
//
// On a Bounded SDR, Txn.Write only accepts spans inside objects the
// transaction allocated or staged with Txn.Stage. Txn.Poke is the unchecked
// write path for data structures layered on the heap.
package sdr
