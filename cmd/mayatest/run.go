package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dlpipeline/mayatest/internal/config"
	"github.com/dlpipeline/mayatest/internal/envcfg"
	"github.com/dlpipeline/mayatest/internal/host"
	"github.com/dlpipeline/mayatest/internal/install"
	"github.com/dlpipeline/mayatest/internal/isolation"
	"github.com/dlpipeline/mayatest/internal/launcher"
	"github.com/dlpipeline/mayatest/internal/pkgdir"
	"github.com/dlpipeline/mayatest/internal/runner"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the unit tests of one or more Maya module packages",
	Long: `Run discovers and executes the tests/ directory of every package root
inside mayapy. Each root must contain tests/; a python/ directory is added
to PYTHONPATH when present.`,
	Example: `  mayatest run --maya 2024 --packages ~/dev/rigging,~/dev/anim
  mayatest run --packages ~/dev/rigging --test test_rig.RigTests.test_build
  mayatest run --packages ~/dev/rigging --clean-app-dir --pause`,
	RunE: runTests,
}

type runOptions struct {
	mayaVersion int
	mayaPath    string
	installsMap string
	packages    []string
	singleTest  string
	cleanAppDir bool
	appDir      string
	pause       bool
	configPath  string
	inHost      bool
}

func init() {
	runCmd.Flags().Int("maya", install.DefaultVersion, "Maya version to test against")
	runCmd.Flags().String("maya-path", "", "Explicit Maya install root (overrides --maya and MAYA_LOCATION)")
	runCmd.Flags().String("maya-installs", defaultInstallMapPath(), "Path to the maya_installs.json lookup map")
	runCmd.Flags().StringSlice("packages", nil, "Package root directories, each containing tests/")
	runCmd.Flags().String("test", "", "Single test to run: module, module.Class or module.Class.test_method")
	runCmd.Flags().Bool("clean-app-dir", false, "Run against a disposable MAYA_APP_DIR, deleted when the run ends")
	runCmd.Flags().String("app-dir", "", "Existing directory to reuse as MAYA_APP_DIR (never deleted)")
	runCmd.Flags().Bool("pause", false, "Pause before exiting (useful when double-clicked)")
	runCmd.Flags().String("config", "", "Path to mayatest.toml")
	runCmd.Flags().Bool("in-host", false, "internal: marks the in-host phase")
	_ = runCmd.Flags().MarkHidden("in-host")
	_ = runCmd.MarkFlagRequired("packages")
	rootCmd.AddCommand(runCmd)
}

// defaultInstallMapPath looks for maya_installs.json next to the harness
// binary, so studios can ship a site-wide map alongside it.
func defaultInstallMapPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "maya_installs.json"
	}
	return filepath.Join(filepath.Dir(exe), "maya_installs.json")
}

func parseRunOptions(cmd *cobra.Command) runOptions {
	var opts runOptions
	opts.mayaVersion, _ = cmd.Flags().GetInt("maya")
	opts.mayaPath, _ = cmd.Flags().GetString("maya-path")
	opts.installsMap, _ = cmd.Flags().GetString("maya-installs")
	opts.packages, _ = cmd.Flags().GetStringSlice("packages")
	opts.singleTest, _ = cmd.Flags().GetString("test")
	opts.cleanAppDir, _ = cmd.Flags().GetBool("clean-app-dir")
	opts.appDir, _ = cmd.Flags().GetString("app-dir")
	opts.pause, _ = cmd.Flags().GetBool("pause")
	opts.configPath, _ = cmd.Flags().GetString("config")
	opts.inHost, _ = cmd.Flags().GetBool("in-host")
	return opts
}

func runTests(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	opts := parseRunOptions(cmd)

	packages, err := pkgdir.FromRoots(opts.packages)
	if err != nil {
		return err
	}

	location, err := install.Resolve(install.Options{
		Version:      opts.mayaVersion,
		ExplicitPath: opts.mayaPath,
		MapPath:      opts.installsMap,
	})
	if err != nil {
		return err
	}
	// The CLI selection wins for this run, including the child process.
	os.Setenv(install.LocationEnv, location)

	if !launcher.InHost(opts.inHost) {
		return runOuterPhase(ctx, opts, packages, location)
	}
	return runInHostPhase(ctx, opts, packages, location)
}

// runOuterPhase prepares the environment and re-invokes the harness for the
// in-host phase, forwarding its exit code verbatim.
func runOuterPhase(ctx context.Context, opts runOptions, packages []pkgdir.Package, location string) error {
	env := envcfg.Configure(packages, "")
	env.Set(install.LocationEnv, location)

	code, err := launcher.Relaunch(ctx, location, os.Args[1:], env.Environ())
	if err != nil {
		return err
	}
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

// runInHostPhase owns the isolation dir and the host session and drives the
// actual test run.
func runInHostPhase(ctx context.Context, opts runOptions, packages []pkgdir.Package, location string) error {
	started := time.Now()

	cfg, err := config.Load(config.Locate(opts.configPath))
	if err != nil {
		return err
	}
	settings := runner.DefaultSettings()
	cfg.ApplySettings(&settings)

	manager := isolation.NewManager()
	if err := cfg.ApplyCleanup(manager); err != nil {
		return err
	}

	var appDir string
	if opts.cleanAppDir || opts.appDir != "" {
		appDir, err = manager.Acquire(ctx, opts.appDir)
		if err != nil {
			return err
		}
	}
	defer func() {
		if err := manager.Release(ctx); err != nil {
			slog.Warn("failed to remove app dir", "err", err)
		}
	}()

	env := envcfg.Configure(packages, appDir)
	env.Set(install.LocationEnv, location)
	restore := env.Apply()
	defer restore()

	names := make([]string, len(packages))
	for i, pkg := range packages {
		names[i] = pkg.Name
	}
	slog.Info("starting Maya test run",
		"location", location,
		"app_dir", appDir,
		"packages", strings.Join(names, ", "))

	session, err := host.Start(ctx, install.InterpreterPath(location), env.Environ())
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("host session did not shut down cleanly", "err", err)
		}
	}()

	summary, err := runner.Run(ctx, session, settings, pkgdir.TestsDirs(packages), opts.singleTest, os.Stdout, logLevel)
	if err != nil {
		return err
	}

	printSummary(summary)
	if opts.pause {
		pause(started)
	}
	// Failures and errors live in the summary, not the exit code.
	return nil
}

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Faint(true)
)

func printSummary(s runner.Summary) {
	status := okStyle.Render("OK")
	if !s.Clean() {
		status = failStyle.Render("FAILED")
	}
	fmt.Printf("\n%s  ran %d tests in %s\n", status, s.Executed, s.Duration.Round(time.Millisecond))
	if s.Failures > 0 || s.Errors > 0 {
		fmt.Println(failStyle.Render(fmt.Sprintf("  %d failures, %d errors", s.Failures, s.Errors)))
	}
	if s.Skipped > 0 {
		fmt.Println(dimStyle.Render(fmt.Sprintf("  %d skipped", s.Skipped)))
	}
}

func pause(started time.Time) {
	done := true
	prompt := huh.NewConfirm().
		Title(fmt.Sprintf("Run finished (started %s)", humanize.Time(started))).
		Affirmative("Close").
		Negative("").
		Value(&done)
	if err := prompt.Run(); err != nil {
		// Not a terminal; nothing to hold open.
		slog.Debug("pause prompt unavailable", "err", err)
	}
}
