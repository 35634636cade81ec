package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveArchivePath(t *testing.T) {
	t.Parallel()

	devBase := filepath.Join(os.TempDir(), devDirName)
	inTemp := filepath.Join(os.TempDir(), "some-test", "vault.lbx")

	tests := []struct {
		name      string
		userPath  string
		forceTemp bool
		expected  string
	}{
		{name: "Normal Mode", userPath: "/some/path/vault.lbx", expected: "/some/path/vault.lbx"},
		{name: "Dev Mode - Relative", userPath: "vault.lbx", forceTemp: true, expected: filepath.Join(devBase, "vault.lbx")},
		{name: "Dev Mode - Traversal", userPath: "../bad/secrets.lbx", forceTemp: true, expected: filepath.Join(devBase, "secrets.lbx")},
		{name: "Dev Mode - Current Dir", userPath: ".", forceTemp: true, expected: filepath.Join(devBase, "default.lbx")},
		{name: "Dev Mode - Exception for Temp Dir", userPath: inTemp, forceTemp: true, expected: inTemp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveArchivePath(tt.userPath, tt.forceTemp))
		})
	}
}

func TestIsDevRun(t *testing.T) {
	// Tests run from a .test binary in a temp dir.
	assert.True(t, IsDevRun())
}
