package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/sdrkit/sdr"
)

func loadSDR(t *testing.T, p sdr.Profile) (*sdr.Registry, *sdr.SDR) {
	t.Helper()
	r := sdr.NewRegistry()
	t.Cleanup(func() { _ = r.Close() })
	s, err := r.Load(p)
	require.NoError(t, err)
	return r, s
}

func memSDR(t *testing.T) *sdr.SDR {
	_, s := loadSDR(t, sdr.Profile{Name: "catalog", Flags: sdr.InDRAM | sdr.Reversible, HeapWords: 1 << 15, LogSize: 1 << 20})
	return s
}

func begin(t *testing.T, s *sdr.SDR) *sdr.Txn {
	t.Helper()
	v, err := s.StartUsing()
	require.NoError(t, err)
	txn, err := v.Begin()
	require.NoError(t, err)
	return txn
}

func TestPutFindSorted(t *testing.T) {
	s := memSDR(t)
	txn := begin(t, s)
	for i, name := range []string{"pear", "apple", "fig", "banana"} {
		require.NoError(t, Put(txn, name, byte(i), sdr.Object(0x1000+8*i)))
	}
	names, err := Names(txn)
	require.NoError(t, err)
	assert.Equal(t, []string{"apple", "banana", "fig", "pear"}, names)

	e, found, err := Find(txn, "fig")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, Entry{Name: "fig", Type: 2, Object: 0x1010}, e)

	_, found, err = Find(txn, "grape")
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, txn.End())
}

func TestFindOnEmptyCatalogue(t *testing.T) {
	s := memSDR(t)
	txn := begin(t, s)
	_, found, err := Find(txn, "nothing")
	require.NoError(t, err)
	assert.False(t, found)
	names, err := Names(txn)
	require.NoError(t, err)
	assert.Empty(t, names)
	require.NoError(t, txn.Exit())
}

func TestDuplicateAndMissing(t *testing.T) {
	s := memSDR(t)
	txn := begin(t, s)
	require.NoError(t, Put(txn, "one", 1, 0x100))
	assert.ErrorIs(t, Put(txn, "one", 2, 0x200), ErrExists)
	assert.ErrorIs(t, Remove(txn, "two"), ErrNotFound)
	require.NoError(t, txn.End())
}

func TestRemove(t *testing.T) {
	s := memSDR(t)
	txn := begin(t, s)
	require.NoError(t, Put(txn, "a", 0, 0x100))
	require.NoError(t, Put(txn, "b", 0, 0x200))
	require.NoError(t, Remove(txn, "a"))
	names, err := Names(txn)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, names)
	require.NoError(t, txn.End())
}

func TestNamesAreNormalised(t *testing.T) {
	s := memSDR(t)
	txn := begin(t, s)
	require.NoError(t, Put(txn, "caf\u00e9", 7, 0x100))
	e, found, err := Find(txn, "cafe\u0301")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "caf\u00e9", e.Name)
	assert.ErrorIs(t, Put(txn, "cafe\u0301", 8, 0x200), ErrExists)
	require.NoError(t, txn.End())
}

func TestBadNamesCancel(t *testing.T) {
	for name, bad := range map[string]string{
		"empty":    "",
		"too long": strings.Repeat("n", MaxNameLen+1),
	} {
		t.Run(name, func(t *testing.T) {
			s := memSDR(t)
			txn := begin(t, s)
			assert.ErrorIs(t, Put(txn, bad, 0, 0x100), sdr.ErrInvalidArgument)
			assert.ErrorIs(t, txn.End(), sdr.ErrTransactionCanceled)
		})
	}
}

func TestWalkStops(t *testing.T) {
	s := memSDR(t)
	txn := begin(t, s)
	for _, n := range []string{"x", "y", "z"} {
		require.NoError(t, Put(txn, n, 0, 0x100))
	}
	var seen []string
	require.NoError(t, Walk(txn, func(e Entry) (bool, error) {
		seen = append(seen, e.Name)
		return e.Name != "y", nil
	}))
	assert.Equal(t, []string{"x", "y"}, seen)
	require.NoError(t, txn.End())
}

func TestCatalogueSurvivesReload(t *testing.T) {
	p := sdr.Profile{Name: "persist", Flags: sdr.InFile | sdr.Reversible, HeapWords: 1 << 15, Path: t.TempDir()}
	r, s := loadSDR(t, p)
	txn := begin(t, s)
	require.NoError(t, Put(txn, "root", 9, 0x4242))
	require.NoError(t, txn.End())
	require.NoError(t, r.Close())

	_, s = loadSDR(t, p)
	txn = begin(t, s)
	e, found, err := Find(txn, "root")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, byte(9), e.Type)
	assert.Equal(t, sdr.Object(0x4242), e.Object)
	require.NoError(t, txn.Exit())
}
