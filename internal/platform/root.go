package platform

import (
	"errors"
	"os"
	"path/filepath"
)

// WorkspaceDir is the directory holding a workspace's device storage.
const WorkspaceDir = ".notesync"

// ErrNoWorkspace is returned when no workspace encloses a directory.
var ErrNoWorkspace = errors.New("no notesync workspace found")

// FindWorkspace looks upwards from startDir for a WorkspaceDir and returns
// its absolute path.
func FindWorkspace(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		candidate := filepath.Join(dir, WorkspaceDir)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", ErrNoWorkspace
}
