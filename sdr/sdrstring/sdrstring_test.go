package sdrstring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/sdrkit/sdr"
)

func begin(t *testing.T) *sdr.Txn {
	t.Helper()
	r := sdr.NewRegistry()
	t.Cleanup(func() { _ = r.Close() })
	s, err := r.Load(sdr.Profile{Name: "strings", Flags: sdr.InDRAM | sdr.Reversible | sdr.Bounded, HeapWords: 1 << 15, LogSize: 1 << 20})
	require.NoError(t, err)
	v, err := s.StartUsing()
	require.NoError(t, err)
	txn, err := v.Begin()
	require.NoError(t, err)
	return txn
}

func TestRoundTripEveryLength(t *testing.T) {
	txn := begin(t)
	for n := 0; n <= MaxLen; n++ {
		want := strings.Repeat(string(rune('a'+n%26)), n)
		obj, err := Create(txn, want)
		require.NoError(t, err, "length %d", n)
		got, err := Read(txn, obj)
		require.NoError(t, err)
		require.Equal(t, want, got)
		length, err := Length(txn, obj)
		require.NoError(t, err)
		require.Equal(t, n, length)
		require.NoError(t, Destroy(txn, obj))
	}
	require.NoError(t, txn.End())
}

func TestRoundTripBinary(t *testing.T) {
	txn := begin(t)
	want := "\x00\xff\x01 héllo\n"
	obj, err := Create(txn, want)
	require.NoError(t, err)
	dup, err := Dup(txn, obj)
	require.NoError(t, err)
	assert.NotEqual(t, obj, dup)
	got, err := Read(txn, dup)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	require.NoError(t, txn.End())
}

func TestTooLongCancels(t *testing.T) {
	txn := begin(t)
	_, err := Create(txn, strings.Repeat("x", MaxLen+1))
	assert.ErrorIs(t, err, sdr.ErrInvalidArgument)
	assert.ErrorIs(t, txn.End(), sdr.ErrTransactionCanceled)
}
