package dirty

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_DirtyTracker_PageAlignment(t *testing.T) {
	tracker := NewTracker()
	tracker.Add(100, 200)

	got := tracker.Ranges()
	require.Len(t, got, 1)
	assert.Equal(t, Range{Off: 0, Len: 4096}, got[0])
}

func Test_DirtyTracker_Coalesce_Adjacent(t *testing.T) {
	tracker := NewTracker()
	tracker.Add(4096, 4096)
	tracker.Add(8192, 4096)

	assert.Equal(t, []Range{{Off: 4096, Len: 8192}}, tracker.Ranges())
}

func Test_DirtyTracker_Coalesce_Unsorted(t *testing.T) {
	tracker := NewTracker()
	tracker.Add(0x5000, 4)
	tracker.Add(0x1ff8, 16)
	tracker.Add(0x1010, 8)

	assert.Equal(t, []Range{
		{Off: 0x1000, Len: 0x2000},
		{Off: 0x5000, Len: 0x1000},
	}, tracker.Ranges())
	assert.Len(t, tracker.Raw(), 3, "raw ranges are kept as added")
}

func Test_DirtyTracker_Reset(t *testing.T) {
	tracker := NewTracker()
	tracker.Add(10, 10)
	tracker.Add(10, 0)
	require.True(t, tracker.Pending())
	require.Len(t, tracker.Raw(), 1, "empty ranges are dropped")

	tracker.Reset()
	assert.False(t, tracker.Pending())
	assert.Nil(t, tracker.Ranges())
}

func TestClip(t *testing.T) {
	r, ok := Clip(Range{Off: 4096, Len: 4096}, 6000)
	require.True(t, ok)
	assert.Equal(t, Range{Off: 4096, Len: 1904}, r)

	_, ok = Clip(Range{Off: 8192, Len: 4096}, 6000)
	assert.False(t, ok)
}

func TestParseFlushMode(t *testing.T) {
	for _, m := range []FlushMode{FlushAuto, FlushDataOnly, FlushFull} {
		got, err := ParseFlushMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseFlushMode("sometimes")
	assert.Error(t, err)
}

func TestSyncFile(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "heap.sdr"))
	require.NoError(t, err)
	defer f.Close()
	_, err = f.Write(make([]byte, 8192))
	require.NoError(t, err)

	for _, m := range []FlushMode{FlushAuto, FlushDataOnly, FlushFull} {
		assert.NoError(t, SyncFile(f, m), m.String())
	}
}
