package scaffold

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrAlreadyInitialized is returned by CheckExisting when discgraph.yml exists.
var ErrAlreadyInitialized = errors.New("already initialized")

// CheckExisting returns an error if dir already holds a discgraph.yml.
func CheckExisting(dir string) error {
	path := filepath.Join(dir, ConfigFile)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: found existing %s", ErrAlreadyInitialized, path)
	}
	return nil
}
