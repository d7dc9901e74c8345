package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dlpipeline/mayatest/internal/envcfg"
	"github.com/dlpipeline/mayatest/internal/host"
)

// Maya versions from this one on require an explicit uninitialize call;
// older standalone runtimes must not receive one.
const uninitializeSince = 2016

// Summary is the outcome of one run.
type Summary struct {
	Executed  int
	Failures  int
	Errors    int
	Skipped   int
	Successes []string
	Duration  time.Duration
}

// Clean reports a run with no failures and no errors.
func (s Summary) Clean() bool {
	return s.Failures == 0 && s.Errors == 0
}

func (s Summary) String() string {
	return fmt.Sprintf("ran %d tests in %s: %d failures, %d errors",
		s.Executed, s.Duration.Round(time.Millisecond), s.Failures, s.Errors)
}

// Run executes the in-host phase: initialize the standalone runtime, line up
// the import path, collect the test units, run them through the collector
// and guarantee the runtime is torn down again.
//
// dirs may be empty, in which case they derive from MAYA_MODULE_PATH.
// singleTest narrows the run to one module, class or method.
func Run(ctx context.Context, h host.Host, settings Settings, dirs []string, singleTest string, out io.Writer, logLevel *slog.LevelVar) (Summary, error) {
	started := time.Now()

	if len(dirs) == 0 {
		dirs = DefaultTestDirs()
	}
	if len(dirs) == 0 {
		return Summary{}, fmt.Errorf("no test directories: pass --packages or set %s", envcfg.ModulePathEnv)
	}

	if err := h.Initialize(ctx); err != nil {
		return Summary{}, fmt.Errorf("failed to initialize the standalone runtime: %w", err)
	}
	defer shutdown(ctx, h)

	if err := reconcileImportPaths(ctx, h); err != nil {
		return Summary{}, err
	}

	var units []host.Unit
	var err error
	if singleTest != "" {
		units, err = ResolveSingle(ctx, h, dirs, singleTest)
	} else {
		units, err = Discover(ctx, dirs)
	}
	if err != nil {
		return Summary{}, err
	}

	collector := NewCollector(settings, h, out, logLevel)
	if err := collector.StartRun(ctx); err != nil {
		return Summary{}, err
	}
	defer collector.StopRun(ctx)

	for _, unit := range units {
		if err := h.RunUnit(ctx, unit, settings.NewSceneBetweenTests, collector); err != nil {
			return Summary{}, fmt.Errorf("failed to run %s: %w", unit.Module, err)
		}
	}

	return Summary{
		Executed:  collector.Executed,
		Failures:  collector.Failures,
		Errors:    collector.Errors,
		Skipped:   collector.Skipped,
		Successes: collector.Successes,
		Duration:  time.Since(started),
	}, nil
}

// reconcileImportPaths prepends every PYTHONPATH entry missing from the live
// interpreter path. Symlinks are resolved first so the same directory
// reached via different links is not inserted twice.
func reconcileImportPaths(ctx context.Context, h host.Importer) error {
	pythonPath := envcfg.SplitPaths(os.Getenv(envcfg.PythonPathEnv))
	if len(pythonPath) == 0 {
		return nil
	}

	live, err := h.ImportPaths(ctx)
	if err != nil {
		return fmt.Errorf("failed to read host import paths: %w", err)
	}
	present := make(map[string]bool, len(live))
	for _, p := range live {
		present[realPath(p)] = true
	}

	for _, dir := range pythonPath {
		if present[realPath(dir)] {
			continue
		}
		if err := h.AddImportPath(ctx, dir); err != nil {
			return fmt.Errorf("failed to add %s to host import path: %w", dir, err)
		}
		present[realPath(dir)] = true
	}
	return nil
}

// shutdown uninitializes the runtime on the versions that require it. When
// the version probe itself fails, uninitialize is still attempted: leaking
// an initialized runtime is worse than a redundant shutdown call.
func shutdown(ctx context.Context, h host.Runtime) {
	version, err := h.Version(ctx)
	if err == nil && version < uninitializeSince {
		return
	}
	if err != nil {
		slog.Warn("failed to probe host version, uninitializing anyway", "err", err)
	}
	if err := h.Uninitialize(ctx); err != nil {
		slog.Warn("failed to uninitialize the standalone runtime", "err", err)
	}
}
