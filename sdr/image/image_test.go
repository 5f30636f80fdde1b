package image

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/sdrkit/internal/mmfile"
	"github.com/joshuapare/sdrkit/sdr/dirty"
)

func TestMemory(t *testing.T) {
	m, err := NewMemory(8192)
	require.NoError(t, err)
	assert.Len(t, m.Bytes(), 8192)
	assert.True(t, m.Fresh())
	assert.Nil(t, m.File())
	assert.NoError(t, m.Flush([]dirty.Range{{Off: 0, Len: 4096}}, dirty.FlushFull))
	assert.NoError(t, m.Close())

	_, err = NewMemory(0)
	assert.Error(t, err)
}

func TestMirrorWritesOnlyFlushedRanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.sdr")
	r, err := OpenMirror(path, 3*4096)
	require.NoError(t, err)
	require.True(t, r.Fresh())

	copy(r.Bytes()[100:], "flushed")
	copy(r.Bytes()[2*4096+5:], "pending")
	require.NoError(t, r.Flush([]dirty.Range{{Off: 0, Len: 4096}}, dirty.FlushAuto))
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, 3*4096)
	assert.Equal(t, "flushed", string(data[100:107]))
	assert.Equal(t, make([]byte, 7), data[2*4096+5:2*4096+12])

	r2, err := OpenMirror(path, 3*4096)
	require.NoError(t, err)
	defer r2.Close()
	assert.False(t, r2.Fresh())
	assert.Equal(t, "flushed", string(r2.Bytes()[100:107]))
}

func TestMirrorRejectsOtherSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.sdr")
	require.NoError(t, os.WriteFile(path, make([]byte, 4096), 0o644))
	_, err := OpenMirror(path, 8192)
	assert.ErrorIs(t, err, mmfile.ErrSizeMismatch)
}
