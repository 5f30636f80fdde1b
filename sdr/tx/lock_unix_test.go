//go:build unix

package tx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLockExcludesSecondDescription(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.sdr")
	f1, err := os.Create(path)
	require.NoError(t, err)
	defer f1.Close()
	f2, err := os.Open(path)
	require.NoError(t, err)
	defer f2.Close()

	a, b := NewFileLock(f1), NewFileLock(f2)
	require.NoError(t, a.Lock())
	ok, err := b.TryLock()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Unlock())
	ok, err = b.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Unlock())
}

func TestAlive(t *testing.T) {
	assert.True(t, Alive(os.Getpid()))
	assert.False(t, Alive(0))
}
