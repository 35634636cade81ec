package platform

import (
	"os"
	"path/filepath"
	"strings"
)

// devDirName is the sandbox directory under the system temp dir.
const devDirName = "lockbox-dev"

// IsDevRun checks if the current process is running via `go run` or `go test`.
// It relies on the fact that these commands build binaries in temporary directories.
func IsDevRun() bool {
	exe, err := os.Executable()
	if err != nil {
		return false
	}

	if strings.HasPrefix(strings.ToLower(exe), strings.ToLower(os.TempDir())) {
		return true
	}

	return strings.HasSuffix(exe, ".test") || strings.HasSuffix(exe, ".test.exe")
}

// ResolveArchivePath determines the archive path actually used. When
// forceTemp is set, an archive outside the system temp directory is
// re-rooted into the dev sandbox, keeping only its file name.
func ResolveArchivePath(userPath string, forceTemp bool) string {
	if !forceTemp {
		return userPath
	}

	clean := filepath.Clean(userPath)
	if abs, err := filepath.Abs(clean); err == nil {
		// Paths already under the temp dir (t.TempDir()) are trusted.
		rel, err := filepath.Rel(os.TempDir(), abs)
		if err == nil && !strings.HasPrefix(rel, "..") {
			return abs
		}
	}

	name := filepath.Base(clean)
	if name == "." || name == string(os.PathSeparator) || name == "" {
		name = "default.lbx"
	}
	return filepath.Join(os.TempDir(), devDirName, name)
}
