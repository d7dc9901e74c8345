package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dlpipeline/mayatest/internal/host"
)

// MarkerEnv is present in the environment while the collector drives a run,
// so test lifecycle code knows scene resets are already taken care of.
const MarkerEnv = "MAYATEST_RUNNER"

// Collector accumulates per-test events for a run and owns the run-scoped
// host state: script editor suppression, log threshold, the marker variable
// and the temp dir. Verbose and never fail-fast, like the reference runner.
type Collector struct {
	settings Settings
	host     host.Commander
	out      io.Writer

	logLevel  *slog.LevelVar
	prevLevel slog.Level

	prevEditor *host.ScriptEditorState

	Executed  int
	Failures  int
	Errors    int
	Skipped   int
	Successes []string
}

// NewCollector builds a collector writing verbose test lines to out.
// logLevel may be nil when the caller has no leveled handler to quiet.
func NewCollector(settings Settings, h host.Commander, out io.Writer, logLevel *slog.LevelVar) *Collector {
	if out == nil {
		out = io.Discard
	}
	return &Collector{settings: settings, host: h, out: out, logLevel: logLevel}
}

// StartRun marks the environment and, when buffering, silences the host
// script editor (recording the prior state) and raises the log threshold.
func (c *Collector) StartRun(ctx context.Context) error {
	os.Setenv(MarkerEnv, "1")

	if !c.settings.BufferOutput {
		return nil
	}

	state, err := c.host.ScriptEditor(ctx)
	if err != nil {
		return fmt.Errorf("failed to query script editor state: %w", err)
	}
	if err := c.host.SetScriptEditor(ctx, host.Suppressed()); err != nil {
		return fmt.Errorf("failed to suppress script editor output: %w", err)
	}
	c.prevEditor = &state

	if c.logLevel != nil {
		c.prevLevel = c.logLevel.Level()
		c.logLevel.Set(slog.LevelError)
	}
	return nil
}

// StopRun restores everything StartRun changed and deletes the run temp dir
// when deletion is enabled. Cleanup problems are warnings, never failures.
func (c *Collector) StopRun(ctx context.Context) {
	if c.logLevel != nil && c.settings.BufferOutput {
		c.logLevel.Set(c.prevLevel)
	}

	if c.prevEditor != nil {
		if err := c.host.SetScriptEditor(ctx, *c.prevEditor); err != nil {
			slog.Warn("failed to restore script editor state", "err", err)
		}
		c.prevEditor = nil
	}

	if c.settings.DeleteFiles && c.settings.TempDir != "" {
		if err := os.RemoveAll(c.settings.TempDir); err != nil {
			slog.Warn("failed to remove temp dir", "dir", c.settings.TempDir, "err", err)
		}
	}

	os.Unsetenv(MarkerEnv)
}

// Event implements host.EventSink.
func (c *Collector) Event(ev host.TestEvent) {
	switch ev.Kind {
	case host.EventStart:
		c.Executed++
		fmt.Fprintf(c.out, "%s ... ", ev.Test)
	case host.EventPass:
		c.Successes = append(c.Successes, ev.Test)
		fmt.Fprintln(c.out, "ok")
	case host.EventFail:
		c.Failures++
		fmt.Fprintln(c.out, "FAIL")
		c.printDetail(ev.Message)
	case host.EventError:
		c.Errors++
		fmt.Fprintln(c.out, "ERROR")
		c.printDetail(ev.Message)
	case host.EventSkip:
		c.Skipped++
		if ev.Message != "" {
			fmt.Fprintf(c.out, "skipped (%s)\n", ev.Message)
		} else {
			fmt.Fprintln(c.out, "skipped")
		}
	}
}

func (c *Collector) printDetail(message string) {
	if message == "" {
		return
	}
	fmt.Fprintln(c.out, message)
}
