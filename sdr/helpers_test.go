package sdr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func memProfile(name string, flags Flags) Profile {
	return Profile{Name: name, Flags: InDRAM | flags, HeapWords: 1 << 16, LogSize: 1 << 20}
}

func fileProfile(t *testing.T, name string, flags Flags) Profile {
	t.Helper()
	return Profile{Name: name, Flags: InFile | flags, HeapWords: 1 << 16, Path: t.TempDir()}
}

func load(t *testing.T, p Profile, opts ...Option) (*Registry, *SDR) {
	t.Helper()
	r := NewRegistry(opts...)
	t.Cleanup(func() { _ = r.Close() })
	s, err := r.Load(p)
	require.NoError(t, err)
	return r, s
}

func begin(t *testing.T, s *SDR) (*View, *Txn) {
	t.Helper()
	v, err := s.StartUsing()
	require.NoError(t, err)
	txn, err := v.Begin()
	require.NoError(t, err)
	return v, txn
}

// committed allocates an object holding data in a transaction of its own.
func committed(t *testing.T, s *SDR, data string) Object {
	t.Helper()
	_, txn := begin(t, s)
	obj, err := txn.Malloc(int64(len(data)))
	require.NoError(t, err)
	require.NoError(t, txn.Write(obj.Addr(), []byte(data)))
	require.NoError(t, txn.End())
	return obj
}

func readBack(t *testing.T, s *SDR, a Address, n int) []byte {
	t.Helper()
	_, txn := begin(t, s)
	p := make([]byte, n)
	require.NoError(t, txn.Read(a, p))
	require.NoError(t, txn.Exit())
	return p
}

// snapshot copies the whole image outside any transaction.
func snapshot(s *SDR) []byte {
	return append([]byte(nil), s.data...)
}

// abandon drops s the way a crash would: files are closed, nothing is ended.
func abandon(s *SDR) {
	s.closed.Store(true)
	_ = s.release()
}

// catchFatal runs fn and returns the *FatalError it panicked with, if any.
func catchFatal(fn func()) (fe *FatalError) {
	defer func() {
		if r := recover(); r != nil {
			fe = r.(*FatalError)
		}
	}()
	fn()
	return nil
}
