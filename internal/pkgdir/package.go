// Package pkgdir models the package roots a run tests.
//
// Each root must carry a tests/ directory with the discoverable test modules
// and may carry a python/ directory with companion sources.
package pkgdir

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

const (
	testsDirName  = "tests"
	pythonDirName = "python"
)

// Package describes one module root under test. Immutable once built.
type Package struct {
	Root      string
	Name      string
	TestsDir  string
	PythonDir string // empty when the root has no python/ directory
}

// FromRoot builds a descriptor for one root. A missing root or a missing
// tests/ subdirectory is a configuration error and aborts the run.
func FromRoot(root string) (Package, error) {
	expanded, err := homedir.Expand(root)
	if err != nil {
		return Package{}, fmt.Errorf("failed to expand package root %s: %w", root, err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return Package{}, fmt.Errorf("failed to resolve package root %s: %w", root, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return Package{}, fmt.Errorf("package root does not exist: %s", abs)
	}

	testsDir := filepath.Join(abs, testsDirName)
	if _, err := os.Stat(testsDir); err != nil {
		return Package{}, fmt.Errorf("missing tests/ in package root: %s (create it or drop the root from --packages)", testsDir)
	}

	pythonDir := filepath.Join(abs, pythonDirName)
	if _, err := os.Stat(pythonDir); err != nil {
		pythonDir = ""
	}

	return Package{
		Root:      abs,
		Name:      filepath.Base(abs),
		TestsDir:  testsDir,
		PythonDir: pythonDir,
	}, nil
}

// FromRoots builds descriptors for every root, preserving order.
func FromRoots(roots []string) ([]Package, error) {
	packages := make([]Package, 0, len(roots))
	for _, root := range roots {
		pkg, err := FromRoot(root)
		if err != nil {
			return nil, err
		}
		packages = append(packages, pkg)
	}
	return packages, nil
}

// Roots returns every package root, in package order.
func Roots(packages []Package) []string {
	roots := make([]string, len(packages))
	for i, pkg := range packages {
		roots[i] = pkg.Root
	}
	return roots
}

// TestsDirs returns every tests/ directory, in package order.
func TestsDirs(packages []Package) []string {
	dirs := make([]string, len(packages))
	for i, pkg := range packages {
		dirs[i] = pkg.TestsDir
	}
	return dirs
}

// PythonDirs returns the python/ directories of the packages that have one,
// in package order.
func PythonDirs(packages []Package) []string {
	var dirs []string
	for _, pkg := range packages {
		if pkg.PythonDir != "" {
			dirs = append(dirs, pkg.PythonDir)
		}
	}
	return dirs
}
