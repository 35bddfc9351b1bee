package logging

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the docidx state directory (default ~/.docidx).
const HomeEnv = "DOCIDX_HOME"

// StateDir returns the docidx state directory.
// Falls back to the temp directory if the home directory is unavailable.
func StateDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".docidx")
	}
	return filepath.Join(home, ".docidx")
}

// DefaultLogDir returns the default log directory (~/.docidx/logs/).
func DefaultLogDir() string {
	return filepath.Join(StateDir(), "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "docidx.log")
}
