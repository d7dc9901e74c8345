// Package install resolves the Maya installation used for a test run.
//
// Resolution order, highest priority first: an explicit path from the
// command line, the maya_installs.json lookup map, the MAYA_LOCATION
// environment variable, and finally a synthesized platform default.
package install

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/mitchellh/go-homedir"
)

const (
	// DefaultVersion is the Maya version assumed when none is requested.
	DefaultVersion = 2022

	// LocationEnv points at the Maya install root. It is consulted as a
	// fallback during resolution and rewritten before any process launch so
	// the in-host phase and the interpreter agree on the install.
	LocationEnv = "MAYA_LOCATION"

	// Linux installs older than this carry an -x64 directory suffix.
	archSuffixCutoff = 2016
)

// Options selects the install to resolve.
type Options struct {
	Version      int    // requested Maya version, e.g. 2024
	ExplicitPath string // --maya-path override, wins over everything
	MapPath      string // path to maya_installs.json, "" to skip the map
}

// Map mirrors maya_installs.json on disk:
//
//	{ "windows": { "2024": "C:/..." }, "linux": { ... }, "darwin": { ... } }
type Map map[string]map[string]string

// LoadMap reads an install map from disk. A missing file is not an error,
// it just yields an empty map; a file that fails to parse is.
func LoadMap(path string) (Map, error) {
	if path == "" {
		return Map{}, nil
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand install map path %s: %w", path, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("install map not found, using defaults", "path", expanded)
			return Map{}, nil
		}
		return nil, fmt.Errorf("failed to read install map %s: %w", expanded, err)
	}
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse install map %s: %w", expanded, err)
	}
	if m == nil {
		m = Map{}
	}
	return m, nil
}

// Lookup returns the mapped install root for a platform/version pair, or ""
// when the map has no entry for it.
func (m Map) Lookup(platform string, version int) string {
	return m[platform][strconv.Itoa(version)]
}

// PlatformKey normalizes the current OS to one of the three map keys.
func PlatformKey() string {
	switch runtime.GOOS {
	case "windows":
		return "windows"
	case "darwin":
		return "darwin"
	default:
		return "linux"
	}
}

// DefaultLocation synthesizes the stock install root for a platform/version
// pair. Pure so it can be checked for every branch regardless of the OS the
// harness runs on.
func DefaultLocation(platform string, version int) string {
	switch platform {
	case "windows":
		return fmt.Sprintf("C:/Program Files/Autodesk/Maya%d", version)
	case "darwin":
		return fmt.Sprintf("/Applications/Autodesk/maya%d/Maya.app/Contents", version)
	}
	location := fmt.Sprintf("/usr/autodesk/maya%d", version)
	if version < archSuffixCutoff {
		location += "-x64"
	}
	return location
}

// Resolve picks exactly one install root for the run. An explicit path is
// returned verbatim; whether it actually exists is checked at launch time.
func Resolve(opts Options) (string, error) {
	if opts.ExplicitPath != "" {
		return opts.ExplicitPath, nil
	}

	version := opts.Version
	if version == 0 {
		version = DefaultVersion
	}

	installs, err := LoadMap(opts.MapPath)
	if err != nil {
		return "", err
	}
	platform := PlatformKey()
	if location := installs.Lookup(platform, version); location != "" {
		return location, nil
	}

	if location := os.Getenv(LocationEnv); location != "" {
		return location, nil
	}

	return DefaultLocation(platform, version), nil
}

// InterpreterPath returns the mayapy binary under an install root.
func InterpreterPath(location string) string {
	exe := filepath.Join(location, "bin", "mayapy")
	if runtime.GOOS == "windows" {
		exe += ".exe"
	}
	return exe
}
