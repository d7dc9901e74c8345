package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dlpipeline/mayatest/internal/host"
)

// Context carries the per-run bookkeeping the test lifecycle needs: temp
// files to delete and plugins to unload. One Context belongs to one run; it
// replaces state shared across test cases so two runs can never leak into
// each other.
type Context struct {
	settings Settings
	host     host.Commander

	mu      sync.Mutex
	files   []string
	fileSet map[string]bool
	plugins []string
	loaded  map[string]bool
}

// NewContext builds the lifecycle context for one run.
func NewContext(settings Settings, h host.Commander) *Context {
	return &Context{
		settings: settings,
		host:     h,
		fileSet:  make(map[string]bool),
		loaded:   make(map[string]bool),
	}
}

// TempFileName returns a unique path under the run temp dir for a relative
// file name, creating the temp dir and any directories the name implies. A
// colliding name gets an increasing numeric suffix before the extension.
// The returned path is registered for cleanup.
func (c *Context) TempFileName(rel string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	candidate := filepath.Join(c.settings.TempDir, rel)
	if err := os.MkdirAll(filepath.Dir(candidate), 0755); err != nil {
		return "", fmt.Errorf("failed to create temp dir for %s: %w", rel, err)
	}

	ext := filepath.Ext(candidate)
	base := strings.TrimSuffix(candidate, ext)
	path := candidate
	for count := 1; c.taken(path); count++ {
		path = fmt.Sprintf("%s%d%s", base, count, ext)
	}

	c.files = append(c.files, path)
	c.fileSet[path] = true
	return path, nil
}

// taken reports whether a candidate clashes with the filesystem or with a
// path already handed out this run but not written yet.
func (c *Context) taken(path string) bool {
	if c.fileSet[path] {
		return true
	}
	_, err := os.Stat(path)
	return err == nil
}

// LoadPlugin loads a plugin through the host and records it for unload at
// cleanup. Loading the same plugin twice records it once.
func (c *Context) LoadPlugin(ctx context.Context, name string) error {
	if err := c.host.LoadPlugin(ctx, name); err != nil {
		return fmt.Errorf("failed to load plugin %s: %w", name, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded[name] {
		c.loaded[name] = true
		c.plugins = append(c.plugins, name)
	}
	return nil
}

// Plugins returns the recorded plugin names in load order.
func (c *Context) Plugins() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.plugins...)
}

// Files returns the registered temp file paths in creation order.
func (c *Context) Files() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.files...)
}

// Cleanup unloads every recorded plugin and removes every registered temp
// file plus the temp dir tree. Individual problems are logged, never raised,
// and never abort the rest of the cleanup.
func (c *Context) Cleanup(ctx context.Context) {
	c.mu.Lock()
	plugins := c.plugins
	files := c.files
	c.plugins = nil
	c.loaded = make(map[string]bool)
	c.files = nil
	c.fileSet = make(map[string]bool)
	c.mu.Unlock()

	for _, name := range plugins {
		if err := c.host.UnloadPlugin(ctx, name); err != nil {
			slog.Warn("failed to unload plugin", "plugin", name, "err", err)
		}
	}

	if !c.settings.DeleteFiles {
		return
	}
	for _, path := range files {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove temp file", "file", path, "err", err)
		}
	}
	if err := os.RemoveAll(c.settings.TempDir); err != nil {
		slog.Warn("failed to remove temp dir", "dir", c.settings.TempDir, "err", err)
	}
}

// ResetScene opens a blank scene after a test, unless the collector is
// active and already does this between tests.
func (c *Context) ResetScene(ctx context.Context) error {
	if !c.settings.NewSceneBetweenTests {
		return nil
	}
	if _, active := os.LookupEnv(MarkerEnv); active {
		return nil
	}
	return c.host.NewScene(ctx)
}
