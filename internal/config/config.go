// Package config loads the optional mayatest.toml with harness defaults.
// Every field is optional; the zero Config changes nothing.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/karrick/tparse"
	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"

	"github.com/dlpipeline/mayatest/internal/isolation"
	"github.com/dlpipeline/mayatest/internal/runner"
)

// DefaultPath is consulted when no --config flag is given, after a
// mayatest.toml in the working directory.
const DefaultPath = "~/.config/mayatest/mayatest.toml"

type Config struct {
	Run     RunConfig     `toml:"run"`
	Cleanup CleanupConfig `toml:"cleanup"`
}

type RunConfig struct {
	TempDir              string `toml:"temp_dir"`
	DeleteFiles          *bool  `toml:"delete_files"`
	BufferOutput         *bool  `toml:"buffer_output"`
	NewSceneBetweenTests *bool  `toml:"new_scene_between_tests"`
}

type CleanupConfig struct {
	Attempts int    `toml:"attempts"`
	Delay    string `toml:"delay"` // duration expression, e.g. "250ms" or "1s"
}

// Load reads one config file. A missing file yields the zero Config.
func Load(path string) (Config, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to expand config path %s: %w", path, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("failed to read config %s: %w", expanded, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", expanded, err)
	}
	return cfg, nil
}

// Locate returns the first config path that exists: the explicit flag value,
// ./mayatest.toml, then DefaultPath. "" means no config anywhere.
func Locate(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if _, err := os.Stat("mayatest.toml"); err == nil {
		return "mayatest.toml"
	}
	if expanded, err := homedir.Expand(DefaultPath); err == nil {
		if _, err := os.Stat(expanded); err == nil {
			return expanded
		}
	}
	return ""
}

// ApplySettings overlays the configured run defaults onto settings.
func (c Config) ApplySettings(settings *runner.Settings) {
	if c.Run.TempDir != "" {
		settings.TempDir = c.Run.TempDir
	}
	if c.Run.DeleteFiles != nil {
		settings.DeleteFiles = *c.Run.DeleteFiles
	}
	if c.Run.BufferOutput != nil {
		settings.BufferOutput = *c.Run.BufferOutput
	}
	if c.Run.NewSceneBetweenTests != nil {
		settings.NewSceneBetweenTests = *c.Run.NewSceneBetweenTests
	}
}

// ApplyCleanup overlays the configured removal retry policy onto a manager.
func (c Config) ApplyCleanup(m *isolation.Manager) error {
	if c.Cleanup.Attempts > 0 {
		m.Attempts = c.Cleanup.Attempts
	}
	if c.Cleanup.Delay != "" {
		delay, err := parseDelay(c.Cleanup.Delay)
		if err != nil {
			return fmt.Errorf("invalid cleanup.delay %q: %w", c.Cleanup.Delay, err)
		}
		m.Delay = delay
	}
	return nil
}

// parseDelay accepts tparse duration expressions relative to a fixed base.
func parseDelay(expr string) (time.Duration, error) {
	base := time.Now()
	at, err := tparse.AddDuration(base, expr)
	if err != nil {
		return 0, err
	}
	delay := at.Sub(base)
	if delay < 0 {
		return 0, fmt.Errorf("negative delay")
	}
	return delay, nil
}
