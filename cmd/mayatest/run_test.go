package main

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlpipeline/mayatest/internal/install"
)

func TestRunCommandFlags(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		version, err := runCmd.Flags().GetInt("maya")
		require.NoError(t, err)
		assert.Equal(t, install.DefaultVersion, version)

		clean, err := runCmd.Flags().GetBool("clean-app-dir")
		require.NoError(t, err)
		assert.False(t, clean)

		installs, err := runCmd.Flags().GetString("maya-installs")
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(installs, "maya_installs.json"))
	})

	t.Run("InHostHidden", func(t *testing.T) {
		flag := runCmd.Flags().Lookup("in-host")
		require.NotNil(t, flag)
		assert.True(t, flag.Hidden)
	})

	t.Run("PackagesRequired", func(t *testing.T) {
		flag := runCmd.Flags().Lookup("packages")
		require.NotNil(t, flag)
		assert.Contains(t, flag.Annotations, cobra.BashCompOneRequiredFlag)
	})
}

func TestParseRunOptions(t *testing.T) {
	cmd := runCmd
	require.NoError(t, cmd.Flags().Set("maya", "2025"))
	require.NoError(t, cmd.Flags().Set("packages", "/tmp/a,/tmp/b"))
	require.NoError(t, cmd.Flags().Set("test", "test_rig.RigTests"))

	opts := parseRunOptions(cmd)
	assert.Equal(t, 2025, opts.mayaVersion)
	assert.Equal(t, []string{"/tmp/a", "/tmp/b"}, opts.packages)
	assert.Equal(t, "test_rig.RigTests", opts.singleTest)
	assert.False(t, opts.inHost)
}
