package runner

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Settings is the per-run configuration. It is threaded explicitly through
// the driver, collector and lifecycle context; nothing reads it from process
// globals.
type Settings struct {
	// TempDir is where lifecycle temp files live for this run.
	TempDir string
	// DeleteFiles removes registered temp files and the temp dir at run end.
	DeleteFiles bool
	// BufferOutput suppresses the host script editor channels and raises the
	// log threshold while tests run.
	BufferOutput bool
	// NewSceneBetweenTests opens a blank scene after every test.
	NewSceneBetweenTests bool
}

// DefaultSettings returns the stock configuration with a fresh, run-unique
// temp dir.
func DefaultSettings() Settings {
	return Settings{
		TempDir:              filepath.Join(os.TempDir(), "mayatest", uuid.NewString()),
		DeleteFiles:          true,
		BufferOutput:         true,
		NewSceneBetweenTests: true,
	}
}
