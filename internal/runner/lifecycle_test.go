package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlpipeline/mayatest/internal/host/hosttest"
)

func newLifecycle(t *testing.T, fake *hosttest.Fake) (*Context, Settings) {
	t.Helper()
	settings := DefaultSettings()
	settings.TempDir = filepath.Join(t.TempDir(), "tmp")
	return NewContext(settings, fake), settings
}

// The same relative name twice yields two distinct paths, the second with a
// numeric suffix before the extension; both are registered for cleanup.
func TestTempFileNameCollision(t *testing.T) {
	c, settings := newLifecycle(t, &hosttest.Fake{})

	first, err := c.TempFileName("out.ma")
	require.NoError(t, err)
	second, err := c.TempFileName("out.ma")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(settings.TempDir, "out.ma"), first)
	assert.Equal(t, filepath.Join(settings.TempDir, "out1.ma"), second)
	assert.Equal(t, []string{first, second}, c.Files())
}

// Colliding with a file already on disk also bumps the suffix.
func TestTempFileNameExistingFile(t *testing.T) {
	c, settings := newLifecycle(t, &hosttest.Fake{})
	require.NoError(t, os.MkdirAll(settings.TempDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(settings.TempDir, "scene.mb"), nil, 0644))

	path, err := c.TempFileName("scene.mb")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(settings.TempDir, "scene1.mb"), path)
}

// Subdirectories implied by the relative name are created.
func TestTempFileNameNestedDirs(t *testing.T) {
	c, settings := newLifecycle(t, &hosttest.Fake{})

	path, err := c.TempFileName(filepath.Join("caches", "sim.abc"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(settings.TempDir, "caches", "sim.abc"), path)
	assert.DirExists(t, filepath.Join(settings.TempDir, "caches"))
}

// Cleanup unloads recorded plugins, removes registered files and the temp
// dir, and tolerates individual failures.
func TestCleanup(t *testing.T) {
	ctx := context.Background()
	fake := &hosttest.Fake{UnloadErr: map[string]error{"broken": errors.New("still in use")}}
	c, settings := newLifecycle(t, fake)

	require.NoError(t, c.LoadPlugin(ctx, "matrixNodes"))
	require.NoError(t, c.LoadPlugin(ctx, "broken"))
	require.NoError(t, c.LoadPlugin(ctx, "matrixNodes")) // recorded once
	assert.Equal(t, []string{"matrixNodes", "broken"}, c.Plugins())

	path, err := c.TempFileName("export.ma")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("scene"), 0644))

	missing, err := c.TempFileName("never-written.ma")
	require.NoError(t, err)

	c.Cleanup(ctx)

	assert.Equal(t, []string{"matrixNodes"}, fake.Unloaded, "unload errors are logged, not raised")
	assert.NoFileExists(t, path)
	assert.NoFileExists(t, missing)
	assert.NoDirExists(t, settings.TempDir)
	assert.Empty(t, c.Plugins())
	assert.Empty(t, c.Files())
}

// DeleteFiles off keeps the temp files around.
func TestCleanupKeepsFilesWhenDisabled(t *testing.T) {
	ctx := context.Background()
	settings := DefaultSettings()
	settings.TempDir = filepath.Join(t.TempDir(), "tmp")
	settings.DeleteFiles = false
	c := NewContext(settings, &hosttest.Fake{})

	path, err := c.TempFileName("kept.ma")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("scene"), 0644))

	c.Cleanup(ctx)
	assert.FileExists(t, path)
}

// Outside a collector-driven run the lifecycle resets the scene itself;
// under the collector it must not double-reset.
func TestResetScene(t *testing.T) {
	ctx := context.Background()
	fake := &hosttest.Fake{}
	c, _ := newLifecycle(t, fake)

	os.Unsetenv(MarkerEnv)
	require.NoError(t, c.ResetScene(ctx))
	assert.Equal(t, 1, fake.SceneResets)

	t.Setenv(MarkerEnv, "1")
	require.NoError(t, c.ResetScene(ctx))
	assert.Equal(t, 1, fake.SceneResets)
}
