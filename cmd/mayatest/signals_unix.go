//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// setupSignalHandling ignores SIGPIPE so a closed pager or pipe does not
// kill a run mid-teardown.
func setupSignalHandling() {
	signal.Ignore(syscall.SIGPIPE)
}

func getNotifySignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}
