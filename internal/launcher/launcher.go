// Package launcher implements the two-phase run: an outer phase that
// resolves the install and prepares the environment, and an inner phase that
// owns the host session. The outer phase re-invokes the harness binary for
// the inner phase and forwards its exit code verbatim.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dlpipeline/mayatest/internal/install"
)

const (
	// InHostEnv marks the inner phase in the child's environment.
	InHostEnv = "MAYATEST_IN_HOST"
	// InHostFlag is the hidden CLI flag marking the inner phase.
	InHostFlag = "--in-host"

	hostExeMarker = "mayapy"
)

// InHost reports whether this process is already the inner phase: the
// explicit flag, the environment marker, or an executable name carrying the
// host marker.
func InHost(inHostFlag bool) bool {
	if inHostFlag {
		return true
	}
	if os.Getenv(InHostEnv) != "" {
		return true
	}
	exe, err := os.Executable()
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(filepath.Base(exe)), hostExeMarker)
}

// Relaunch verifies the interpreter under the resolved install and
// synchronously re-invokes the harness for the inner phase, with the
// original arguments plus the in-host flag, the prepared environment and
// inherited stdio. The child's exit code is returned verbatim.
func Relaunch(ctx context.Context, location string, args []string, environ []string) (int, error) {
	interpreter := install.InterpreterPath(location)
	if _, err := os.Stat(interpreter); err != nil {
		return 0, fmt.Errorf(
			"cannot find the host interpreter at %s: install Maya there, or point --maya-path / --maya / %s at an existing install",
			interpreter, install.LocationEnv)
	}

	self, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to locate the harness binary: %w", err)
	}

	forwarded := slices.Clone(args)
	if !slices.Contains(forwarded, InHostFlag) {
		forwarded = append(forwarded, InHostFlag)
	}

	cmd := exec.CommandContext(ctx, self, forwarded...)
	cmd.Env = append(slices.Clone(environ), InHostEnv+"=1")
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	slog.Info("starting in-host phase", "interpreter", interpreter, "args", forwarded)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 0, fmt.Errorf("failed to run the in-host phase: %w", err)
	}
	return 0, nil
}
