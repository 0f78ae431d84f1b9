// Package utils provides small filesystem helpers for storage backends
// (currently the chromem vector provider).
package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureStateDir ensures the .evoagent directory exists at the given base
// path. If basePath is empty or ".", it creates ./.evoagent in the current
// directory. Otherwise, it creates {basePath}/.evoagent.
//
// Used by:
//   - ChromemProvider, when its PersistPath lies under .evoagent
func EnsureStateDir(basePath string) (string, error) {
	var dir string
	if basePath == "" || basePath == "." {
		dir = ".evoagent"
	} else {
		dir = filepath.Join(basePath, ".evoagent")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create state directory at '%s': %w", dir, err)
	}

	return dir, nil
}
