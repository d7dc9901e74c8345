package isolation

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// forceRemoveAll deletes a tree, forcing permissions open on entries the
// host process left read-only before trying again.
func forceRemoveAll(path string) error {
	err := os.RemoveAll(path)
	if err == nil {
		return nil
	}

	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		_ = os.Chmod(p, 0777)
		return nil
	})
	return os.RemoveAll(path)
}

// removeTree deletes path with bounded retries, absorbing the host's delayed
// file-handle release. After the attempts run out the tree is renamed aside
// and removal is tried once more; if even that fails, the original removal
// error is the one reported.
func removeTree(ctx context.Context, path string, attempts int, delay time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}

	var removeErr error
	for i := 0; i < attempts; i++ {
		if removeErr = forceRemoveAll(path); removeErr == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	renamed := path + "-delete-later"
	if err := os.Rename(path, renamed); err != nil {
		renamed = path
	}
	if err := forceRemoveAll(renamed); err != nil {
		slog.Warn("directory left behind", "dir", renamed, "err", err)
		return removeErr
	}
	return nil
}
