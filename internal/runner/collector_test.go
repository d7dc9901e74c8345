package runner

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlpipeline/mayatest/internal/host"
	"github.com/dlpipeline/mayatest/internal/host/hosttest"
)

// While buffering, the collector suppresses every script editor channel and
// restores the recorded state afterwards.
func TestCollectorScriptEditorLifecycle(t *testing.T) {
	ctx := context.Background()
	prior := host.ScriptEditorState{SuppressWarnings: true}
	fake := &hosttest.Fake{Editor: prior}

	settings := DefaultSettings()
	settings.TempDir = filepath.Join(t.TempDir(), "tmp")

	c := NewCollector(settings, fake, nil, nil)
	require.NoError(t, c.StartRun(ctx))
	assert.Equal(t, host.Suppressed(), fake.Editor)
	assert.NotEmpty(t, os.Getenv(MarkerEnv))

	c.StopRun(ctx)
	assert.Equal(t, prior, fake.Editor)
	_, set := os.LookupEnv(MarkerEnv)
	assert.False(t, set, "marker must be cleared at run end")
}

// Without buffering the script editor is left alone.
func TestCollectorNoBuffering(t *testing.T) {
	ctx := context.Background()
	fake := &hosttest.Fake{}

	settings := DefaultSettings()
	settings.TempDir = filepath.Join(t.TempDir(), "tmp")
	settings.BufferOutput = false

	c := NewCollector(settings, fake, nil, nil)
	require.NoError(t, c.StartRun(ctx))
	assert.Empty(t, fake.EditorSets)
	c.StopRun(ctx)
}

// Buffering raises the log threshold for the duration of the run.
func TestCollectorLogLevel(t *testing.T) {
	ctx := context.Background()
	level := new(slog.LevelVar)
	level.Set(slog.LevelDebug)

	settings := DefaultSettings()
	settings.TempDir = filepath.Join(t.TempDir(), "tmp")

	c := NewCollector(settings, &hosttest.Fake{}, nil, level)
	require.NoError(t, c.StartRun(ctx))
	assert.Equal(t, slog.LevelError, level.Level())

	c.StopRun(ctx)
	assert.Equal(t, slog.LevelDebug, level.Level())
}

// StopRun deletes the temp dir only when deletion is enabled.
func TestCollectorTempDirDeletion(t *testing.T) {
	ctx := context.Background()

	t.Run("enabled", func(t *testing.T) {
		settings := DefaultSettings()
		settings.TempDir = filepath.Join(t.TempDir(), "tmp")
		settings.BufferOutput = false
		require.NoError(t, os.MkdirAll(settings.TempDir, 0755))

		c := NewCollector(settings, &hosttest.Fake{}, nil, nil)
		require.NoError(t, c.StartRun(ctx))
		c.StopRun(ctx)
		assert.NoDirExists(t, settings.TempDir)
	})

	t.Run("disabled", func(t *testing.T) {
		settings := DefaultSettings()
		settings.TempDir = filepath.Join(t.TempDir(), "tmp")
		settings.BufferOutput = false
		settings.DeleteFiles = false
		require.NoError(t, os.MkdirAll(settings.TempDir, 0755))

		c := NewCollector(settings, &hosttest.Fake{}, nil, nil)
		require.NoError(t, c.StartRun(ctx))
		c.StopRun(ctx)
		assert.DirExists(t, settings.TempDir)
	})
}

// Events drive the counts, the successes list and the verbose stream.
func TestCollectorEvents(t *testing.T) {
	var out bytes.Buffer
	c := NewCollector(DefaultSettings(), &hosttest.Fake{}, &out, nil)

	c.Event(host.TestEvent{Kind: host.EventStart, Test: "m.T.test_a"})
	c.Event(host.TestEvent{Kind: host.EventPass, Test: "m.T.test_a"})
	c.Event(host.TestEvent{Kind: host.EventStart, Test: "m.T.test_b"})
	c.Event(host.TestEvent{Kind: host.EventFail, Test: "m.T.test_b", Message: "expected 1, got 2"})
	c.Event(host.TestEvent{Kind: host.EventStart, Test: "m.T.test_c"})
	c.Event(host.TestEvent{Kind: host.EventSkip, Test: "m.T.test_c", Message: "needs gpu"})

	assert.Equal(t, 3, c.Executed)
	assert.Equal(t, 1, c.Failures)
	assert.Equal(t, 0, c.Errors)
	assert.Equal(t, 1, c.Skipped)
	assert.Equal(t, []string{"m.T.test_a"}, c.Successes)

	assert.Contains(t, out.String(), "m.T.test_a ... ok")
	assert.Contains(t, out.String(), "expected 1, got 2")
	assert.Contains(t, out.String(), "skipped (needs gpu)")
}
