package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dlpipeline/mayatest/internal/isolation"
)

var appdirCmd = &cobra.Command{
	Use:   "appdir",
	Short: "Create a clean MAYA_APP_DIR and print its path",
	Long: `appdir creates a fresh directory suitable for MAYA_APP_DIR and prints
its path without deleting it afterwards. Point an interactive Maya session at
it to reproduce the preference-free environment the test runs use.`,
	Example: `  MAYA_APP_DIR=$(mayatest appdir) maya`,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager := isolation.NewManager()
		dir, err := manager.Acquire(cmd.Context(), "")
		if err != nil {
			return err
		}
		// Deliberately not released; the caller owns the directory now.
		fmt.Fprintln(cmd.OutOrStdout(), dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(appdirCmd)
}
