package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

// logLevel is shared with the result collector, which raises the threshold
// while buffered tests run.
var logLevel = new(slog.LevelVar)

func parseLogLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug", "DEBUG":
		return slog.LevelDebug
	case "info", "INFO":
		return slog.LevelInfo
	case "warn", "WARN", "warning", "WARNING":
		return slog.LevelWarn
	case "error", "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogger() error {
	logLevel.Set(parseLogLevel(os.Getenv("MAYATEST_LOG_LEVEL")))

	// Interactive runs get pretty stderr logging; redirected runs log to a
	// file so the test stream stays parseable.
	isInteractive := term.IsTerminal(int(os.Stderr.Fd()))

	var writer io.Writer = os.Stderr
	if target := os.Getenv("MAYATEST_STDERR_FILE"); target != "" && target != "/dev/stderr" {
		file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", target, err)
		}
		writer = file
		isInteractive = false
	} else if !isInteractive {
		logFile := filepath.Join(os.TempDir(), "mayatest.debug.stderr.log")
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", logFile, err)
		}
		writer = file
	}

	var handler slog.Handler
	if isInteractive {
		handler = tint.NewHandler(writer, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.Kitchen,
		})
	} else {
		handler = slog.NewTextHandler(writer, &slog.HandlerOptions{
			Level: logLevel,
		})
	}
	slog.SetDefault(slog.New(handler))

	return nil
}
