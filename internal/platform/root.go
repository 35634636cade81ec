package platform

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfigFileNames are the file names FindConfig looks for, in order.
var ConfigFileNames = []string{".lockbox.yaml", "lockbox.yaml"}

// FindConfig looks upwards from startDir for a configuration file and
// returns its absolute path.
func FindConfig(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		for _, name := range ConfigFileNames {
			if hasFile(dir, name) {
				return filepath.Join(dir, name), nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("config not found")
}

func hasFile(dir, name string) bool {
	info, err := os.Stat(filepath.Join(dir, name))
	return err == nil && !info.IsDir()
}
