package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type write struct {
	addr  int64
	saved string
}

func collect(t *testing.T, l *Log) []write {
	t.Helper()
	var got []write
	_, err := l.Reverse(func(addr int64, saved []byte) error {
		got = append(got, write{addr, string(saved)})
		return nil
	})
	require.NoError(t, err)
	return got
}

func TestReverseIsNewestFirst(t *testing.T) {
	l := New(NewMemStore(4096))
	require.NoError(t, l.Note(100, []byte("aaaa")))
	require.NoError(t, l.Note(200, []byte("bb")))
	require.NoError(t, l.Note(100, []byte("cccc")))
	require.Equal(t, 3, l.Len())

	got := collect(t, l)
	require.Equal(t, []write{{100, "cccc"}, {200, "bb"}, {100, "aaaa"}}, got)
	require.Zero(t, l.Len())
	require.Zero(t, l.Store().Size())

	// A second reversal finds nothing.
	require.Empty(t, collect(t, l))
}

func TestClearDropsEntries(t *testing.T) {
	l := New(NewMemStore(4096))
	require.NoError(t, l.Note(8, []byte{1, 2, 3}))
	require.NoError(t, l.Clear())
	require.Zero(t, l.Len())
	require.Empty(t, collect(t, l))
}

func TestMemStoreFull(t *testing.T) {
	l := New(NewMemStore(40))
	require.NoError(t, l.Note(8, make([]byte, 16)))
	err := l.Note(16, make([]byte, 16))
	require.ErrorIs(t, err, ErrLogFull)
	require.Equal(t, 1, l.Len(), "failed append must not be noted")
}

func TestReverseStopsOnApplyError(t *testing.T) {
	l := New(NewMemStore(4096))
	require.NoError(t, l.Note(1, []byte("x")))
	require.NoError(t, l.Note(2, []byte("y")))

	n, err := l.Reverse(func(addr int64, _ []byte) error {
		if addr == 1 {
			return os.ErrPermission
		}
		return nil
	})
	require.ErrorIs(t, err, os.ErrPermission)
	require.Equal(t, 1, n)
	require.Equal(t, 1, l.Len())
}

func TestFileStoreReloadAfterReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.sdrlog")
	s, err := OpenFile(path, true)
	require.NoError(t, err)
	l := New(s)
	for i := range 5 {
		require.NoError(t, l.Note(int64(1000+i*8), []byte{byte(i), byte(i), byte(i)}))
	}
	require.NoError(t, l.Close())

	s2, err := OpenFile(path, true)
	require.NoError(t, err)
	l2 := New(s2)
	defer l2.Close()
	require.Zero(t, l2.Len(), "notes come back only through Reload")

	count, torn, err := l2.Reload()
	require.NoError(t, err)
	require.False(t, torn)
	require.Equal(t, 5, count)

	got := collect(t, l2)
	require.Len(t, got, 5)
	require.Equal(t, write{1032, "\x04\x04\x04"}, got[0])
	require.Equal(t, write{1000, "\x00\x00\x00"}, got[4])

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Zero(t, info.Size())
}

func TestReloadIgnoresTornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "torn.sdrlog")
	s, err := OpenFile(path, false)
	require.NoError(t, err)
	l := New(s)
	require.NoError(t, l.Note(64, []byte("good")))
	require.NoError(t, l.Note(72, []byte("half-written")))
	require.NoError(t, l.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-3))

	s2, err := OpenFile(path, false)
	require.NoError(t, err)
	l2 := New(s2)
	defer l2.Close()
	count, torn, err := l2.Reload()
	require.NoError(t, err)
	require.True(t, torn)
	require.Equal(t, 1, count)
	require.Equal(t, []write{{64, "good"}}, collect(t, l2))
}

func TestReloadStopsAtCorruptEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.sdrlog")
	s, err := OpenFile(path, false)
	require.NoError(t, err)
	l := New(s)
	require.NoError(t, l.Note(64, []byte("first")))
	require.NoError(t, l.Note(128, []byte("second")))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	s2, err := OpenFile(path, false)
	require.NoError(t, err)
	l2 := New(s2)
	defer l2.Close()
	count, torn, err := l2.Reload()
	require.NoError(t, err)
	require.True(t, torn)
	require.Equal(t, 1, count)
}

func TestFileStoreRefreshSeesOtherDescriptor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.sdrlog")
	a, err := OpenFile(path, false)
	require.NoError(t, err)
	defer a.Close()
	b, err := OpenFile(path, false)
	require.NoError(t, err)
	defer b.Close()

	_, err = New(a).Store().Append([]byte("12345678"))
	require.NoError(t, err)
	require.Zero(t, b.Size())
	require.NoError(t, b.Refresh())
	require.Equal(t, int64(8), b.Size())
}
