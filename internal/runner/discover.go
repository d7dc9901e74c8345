package runner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dlpipeline/mayatest/internal/envcfg"
	"github.com/dlpipeline/mayatest/internal/host"
)

var testModuleRE = regexp.MustCompile(`^test_.+\.py$`)

// DefaultTestDirs derives test directories from MAYA_MODULE_PATH: the tests/
// subdirectory of every configured root that has one.
func DefaultTestDirs() []string {
	var dirs []string
	for _, root := range envcfg.SplitPaths(os.Getenv(envcfg.ModulePathEnv)) {
		dir := filepath.Join(root, "tests")
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// Discover walks every directory for test modules. Directories are scanned
// concurrently but the merged result preserves directory order, and within a
// directory modules are sorted by path.
func Discover(ctx context.Context, dirs []string) ([]host.Unit, error) {
	perDir := make([][]host.Unit, len(dirs))

	g, ctx := errgroup.WithContext(ctx)
	for i, dir := range dirs {
		g.Go(func() error {
			units, err := discoverDir(ctx, dir)
			if err != nil {
				return err
			}
			perDir[i] = units
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var units []host.Unit
	for _, found := range perDir {
		units = append(units, found...)
	}
	return units, nil
}

func discoverDir(ctx context.Context, dir string) ([]host.Unit, error) {
	var units []host.Unit
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !testModuleRE.MatchString(d.Name()) {
			return nil
		}
		units = append(units, host.Unit{
			Dir:    filepath.Dir(path),
			Module: strings.TrimSuffix(d.Name(), ".py"),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover tests under %s: %w", dir, err)
	}
	sort.Slice(units, func(i, j int) bool {
		return filepath.Join(units[i].Dir, units[i].Module) < filepath.Join(units[j].Dir, units[j].Module)
	})
	return units, nil
}

// ResolveSingle resolves one requested test, "module", "module.Class" or
// "module.Class.test_method", against the candidate directories. Only
// directories missing from the host import path are added for the lookup,
// and exactly those are removed again afterwards.
func ResolveSingle(ctx context.Context, h host.Importer, dirs []string, name string) ([]host.Unit, error) {
	module, filter, _ := strings.Cut(name, ".")
	if module == "" {
		return nil, fmt.Errorf("invalid test name %q", name)
	}

	live, err := h.ImportPaths(ctx)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(live))
	for _, p := range live {
		present[realPath(p)] = true
	}

	var added []string
	for _, dir := range dirs {
		if present[realPath(dir)] {
			continue
		}
		if err := h.AddImportPath(ctx, dir); err != nil {
			return nil, err
		}
		added = append(added, dir)
	}
	defer func() {
		for _, dir := range added {
			if err := h.RemoveImportPath(ctx, dir); err != nil {
				// Lookup is done either way; the leftover entry is harmless.
				return
			}
		}
	}()

	for _, dir := range dirs {
		if _, err := os.Stat(filepath.Join(dir, module+".py")); err == nil {
			return []host.Unit{{Dir: dir, Module: module, Filter: filter}}, nil
		}
	}
	return nil, fmt.Errorf("test %q not found under %s", name, strings.Join(dirs, ", "))
}

// realPath resolves symlinks so the same directory reached via different
// links compares equal. Unresolvable paths compare as given.
func realPath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}
