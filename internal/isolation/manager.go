// Package isolation manages the disposable MAYA_APP_DIR a test run uses in
// place of the user's real preferences.
package isolation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

const (
	dirPrefix    = "mayatest-appdir"
	lockFileName = ".mayatest.lock"

	// Maya can keep files (mayaLog and friends) open briefly after the run,
	// so removal gets a bounded number of tries.
	DefaultAttempts = 12
	DefaultDelay    = 250 * time.Millisecond
)

// Manager owns at most one app dir per run. A directory the caller supplied
// is reused and never deleted; a directory the manager created is removed in
// Release no matter how the run went.
type Manager struct {
	Attempts int
	Delay    time.Duration

	dir      string
	owned    bool
	released bool
	lock     *flock.Flock
}

func NewManager() *Manager {
	return &Manager{Attempts: DefaultAttempts, Delay: DefaultDelay}
}

// Acquire returns the app dir for this run. When existing names a directory
// already on disk it is reused unchanged; a file lock inside it keeps a
// second harness instance from sharing the same preferences concurrently.
// Otherwise a uniquely named directory is created under the temp root and
// owned by this run.
func (m *Manager) Acquire(ctx context.Context, existing string) (string, error) {
	if m.dir != "" {
		return m.dir, nil
	}

	if existing != "" {
		if _, err := os.Stat(existing); err == nil {
			lock := flock.New(filepath.Join(existing, lockFileName))
			locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
			if err != nil {
				return "", fmt.Errorf("failed to lock app dir %s: %w", existing, err)
			}
			if !locked {
				return "", fmt.Errorf("app dir %s is in use by another run", existing)
			}
			m.dir = existing
			m.lock = lock
			slog.Info("reusing app dir", "dir", existing)
			return existing, nil
		}
	}

	dir := filepath.Join(os.TempDir(), fmt.Sprintf("%s-%s-%s", dirPrefix, petname.Generate(2, "-"), shortID()))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create app dir %s: %w", dir, err)
	}
	m.dir = dir
	m.owned = true
	slog.Info("created clean app dir", "dir", dir)
	return dir, nil
}

// Dir returns the acquired directory, or "" before Acquire.
func (m *Manager) Dir() string {
	return m.dir
}

// Release deletes the app dir if this run owns it. Reused directories are
// only unlocked. Calling Release again, or on a directory that is already
// gone, does nothing.
func (m *Manager) Release(ctx context.Context) error {
	if m.lock != nil {
		if err := m.lock.Unlock(); err != nil {
			slog.Warn("failed to unlock app dir", "dir", m.dir, "err", err)
		}
		m.lock = nil
	}
	if m.released || !m.owned || m.dir == "" {
		return nil
	}
	m.released = true

	if _, err := os.Stat(m.dir); err != nil {
		return nil
	}
	if err := removeTree(ctx, m.dir, m.Attempts, m.Delay); err != nil {
		return fmt.Errorf("failed to remove app dir %s: %w", m.dir, err)
	}
	return nil
}

func shortID() string {
	return uuid.NewString()[:8]
}
