package kernels

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherLoadsExistingAndNewBinaries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "first.spv"), []byte{1, 2, 3, 4}, 0o644))

	r := NewRegistry()
	w, err := NewWatcher(r, dir)
	require.NoError(t, err)
	defer w.Close()

	_, ok := r.Lookup("first")
	assert.True(t, ok, "existing binaries load at startup")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "second.spv"), []byte{5, 6, 7, 8}, 0o644))
	assert.Eventually(t, func() bool {
		_, ok := r.Lookup("second")
		return ok
	}, 5*time.Second, 20*time.Millisecond, "new binaries load after the debounce interval")
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()
	w, err := NewWatcher(r, dir)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	time.Sleep(3 * debounceInterval)
	assert.Empty(t, r.Names())
}

func TestWatcherCloseTwice(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(NewRegistry(), dir)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Error(t, w.Close())
}
