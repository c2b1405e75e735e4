package resources

import (
	"fmt"
	"os"
	"path/filepath"
)

// getwd is a package-level variable for testability.
var getwd = os.Getwd

// findRoot walks up from cwd looking for a .git entry. Without one the
// working directory itself is the project root.
func findRoot() (string, error) {
	dir, err := getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}

	current := dir
	for {
		if _, err := os.Stat(filepath.Join(current, ".git")); err == nil {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return dir, nil
		}
		current = parent
	}
}
