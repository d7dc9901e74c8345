package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mayatest",
	Short: "Run Maya unit tests for one or more module packages",
	Long: `mayatest runs the unit tests of Maya module packages inside mayapy.
It resolves the requested Maya install, spawns the in-host phase with a
predictable environment and an optional disposable MAYA_APP_DIR, and tears
everything down again when the run is over.`,
}

func main() {
	ctx := context.Background()
	setupSignalHandling()

	if err := setupLogger(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logger: %v\n", err)
		os.Exit(1)
	}

	if err := fang.Execute(
		ctx,
		rootCmd,
		fang.WithVersion(version),
		fang.WithCommit(commit),
		fang.WithNotifySignal(getNotifySignals()...),
	); err != nil {
		os.Exit(1)
	}
}
