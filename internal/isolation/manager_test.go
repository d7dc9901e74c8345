package isolation

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two fresh acquisitions must yield two distinct, existing directories.
func TestAcquireFresh(t *testing.T) {
	ctx := context.Background()

	m1 := NewManager()
	dir1, err := m1.Acquire(ctx, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = m1.Release(ctx) })

	m2 := NewManager()
	dir2, err := m2.Acquire(ctx, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = m2.Release(ctx) })

	assert.NotEqual(t, dir1, dir2)
	assert.DirExists(t, dir1)
	assert.DirExists(t, dir2)
}

// A caller-supplied directory is reused verbatim and survives Release.
func TestAcquireExisting(t *testing.T) {
	ctx := context.Background()
	existing := t.TempDir()

	m := NewManager()
	dir, err := m.Acquire(ctx, existing)
	require.NoError(t, err)
	assert.Equal(t, existing, dir)

	require.NoError(t, m.Release(ctx))
	assert.DirExists(t, existing)
}

// A supplied path that does not exist falls back to a fresh temp directory.
func TestAcquireMissingExistingFallsBack(t *testing.T) {
	ctx := context.Background()
	missing := filepath.Join(t.TempDir(), "never-created")

	m := NewManager()
	dir, err := m.Acquire(ctx, missing)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Release(ctx) })

	assert.NotEqual(t, missing, dir)
	assert.DirExists(t, dir)
}

// Acquire is idempotent within one manager.
func TestAcquireTwiceSameManager(t *testing.T) {
	ctx := context.Background()
	m := NewManager()

	dir1, err := m.Acquire(ctx, "")
	require.NoError(t, err)
	dir2, err := m.Acquire(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, dir1, dir2)

	require.NoError(t, m.Release(ctx))
}

// Release deletes an owned directory and tolerates being called twice.
func TestReleaseOwned(t *testing.T) {
	ctx := context.Background()
	m := NewManager()
	m.Delay = time.Millisecond

	dir, err := m.Acquire(ctx, "")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mayaLog"), []byte("log"), 0644))

	require.NoError(t, m.Release(ctx))
	assert.NoDirExists(t, dir)

	require.NoError(t, m.Release(ctx))
}

// Read-only leftovers must not survive Release.
func TestReleaseReadOnlyEntries(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix permission bits")
	}
	ctx := context.Background()
	m := NewManager()
	m.Delay = time.Millisecond

	dir, err := m.Acquire(ctx, "")
	require.NoError(t, err)

	sub := filepath.Join(dir, "prefs")
	require.NoError(t, os.MkdirAll(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "userPrefs.mel"), []byte("x"), 0644))
	require.NoError(t, os.Chmod(sub, 0500))
	t.Cleanup(func() { _ = os.Chmod(sub, 0755) })

	require.NoError(t, m.Release(ctx))
	assert.NoDirExists(t, dir)
}

// A second harness instance cannot share a caller-supplied app dir.
func TestAcquireExistingIsLocked(t *testing.T) {
	ctx := context.Background()
	existing := t.TempDir()

	m1 := NewManager()
	_, err := m1.Acquire(ctx, existing)
	require.NoError(t, err)
	defer m1.Release(ctx)

	lockCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()

	m2 := NewManager()
	_, err = m2.Acquire(lockCtx, existing)
	assert.Error(t, err)
}

func TestRemoveTreeMissingPath(t *testing.T) {
	err := removeTree(context.Background(), filepath.Join(t.TempDir(), "gone"), 2, time.Millisecond)
	assert.NoError(t, err)
}
