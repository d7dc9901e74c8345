// Package envcfg assembles the environment a Maya test run must see.
//
// The variables are built as an explicit value rather than written straight
// into the process, so the outer phase can hand them to the child process
// and the in-host phase can apply them with a restore.
package envcfg

import (
	"os"
	"strings"

	"github.com/dlpipeline/mayatest/internal/pkgdir"
)

const (
	// AppDirEnv points Maya at its per-user application data root.
	AppDirEnv = "MAYA_APP_DIR"
	// ScriptPathEnv is always reset so no user scripts pollute the run.
	ScriptPathEnv = "MAYA_SCRIPT_PATH"
	// ModulePathEnv is where Maya discovers installable module packages.
	ModulePathEnv = "MAYA_MODULE_PATH"
	// PythonPathEnv carries the companion-source import prefix.
	PythonPathEnv = "PYTHONPATH"
)

// Env is an ordered set of variable assignments layered over the current
// process environment.
type Env struct {
	keys []string
	vars map[string]string
}

func New() *Env {
	return &Env{vars: make(map[string]string)}
}

// Set records an assignment, keeping first-set order for Environ.
func (e *Env) Set(key, value string) {
	if _, ok := e.vars[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.vars[key] = value
}

// Get returns an assignment recorded in this Env.
func (e *Env) Get(key string) (string, bool) {
	value, ok := e.vars[key]
	return value, ok
}

// Configure derives the run environment for a set of packages. The app dir
// is only written when isolation was requested. Must happen before the host
// session starts: the host resolves its own library locations from these
// variables exactly once at startup.
func Configure(packages []pkgdir.Package, appDir string) *Env {
	e := New()

	if appDir != "" {
		e.Set(AppDirEnv, appDir)
	}

	e.Set(ScriptPathEnv, "")
	e.Set(ModulePathEnv, JoinPaths(pkgdir.Roots(packages)))

	if pythonDirs := pkgdir.PythonDirs(packages); len(pythonDirs) > 0 {
		prefix := JoinPaths(pythonDirs)
		if existing := os.Getenv(PythonPathEnv); existing != "" {
			prefix = prefix + string(os.PathListSeparator) + existing
		}
		e.Set(PythonPathEnv, prefix)
	}

	return e
}

// Environ returns the process environment with this Env's assignments
// applied, suitable for exec.Cmd.
func (e *Env) Environ() []string {
	environ := os.Environ()
	seen := make(map[string]bool, len(e.vars))

	for i, kv := range environ {
		key, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if value, set := e.vars[key]; set {
			environ[i] = key + "=" + value
			seen[key] = true
		}
	}
	for _, key := range e.keys {
		if !seen[key] {
			environ = append(environ, key+"="+e.vars[key])
		}
	}
	return environ
}

// Apply writes the assignments into the process environment and returns a
// closure restoring the previous values, including unsetting variables that
// did not exist before.
func (e *Env) Apply() func() {
	type prev struct {
		value  string
		wasSet bool
	}
	previous := make(map[string]prev, len(e.keys))

	for _, key := range e.keys {
		value, wasSet := os.LookupEnv(key)
		previous[key] = prev{value: value, wasSet: wasSet}
		os.Setenv(key, e.vars[key])
	}

	return func() {
		for key, p := range previous {
			if p.wasSet {
				os.Setenv(key, p.value)
			} else {
				os.Unsetenv(key)
			}
		}
	}
}

// JoinPaths joins paths with the platform list separator.
func JoinPaths(paths []string) string {
	return strings.Join(paths, string(os.PathListSeparator))
}

// SplitPaths splits a list-separated variable, dropping empty entries.
func SplitPaths(value string) []string {
	var paths []string
	for _, p := range strings.Split(value, string(os.PathListSeparator)) {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
