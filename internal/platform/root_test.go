package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindConfig(t *testing.T) {
	// base/
	//   repo/ (.lockbox.yaml)
	//     subdir/nested/
	//   empty/
	baseDir := t.TempDir()
	repoDir := filepath.Join(baseDir, "repo")
	nestedDir := filepath.Join(repoDir, "subdir", "nested")
	emptyDir := filepath.Join(baseDir, "empty")
	require.NoError(t, os.MkdirAll(nestedDir, 0o755))
	require.NoError(t, os.MkdirAll(emptyDir, 0o755))
	marker := filepath.Join(repoDir, ".lockbox.yaml")
	require.NoError(t, os.WriteFile(marker, []byte("backup:\n  count: 1\n"), 0o600))

	tests := []struct {
		name      string
		startPath string
		want      string
		wantErr   bool
	}{
		{name: "Start at Root", startPath: repoDir, want: marker},
		{name: "Start in Nested Dir", startPath: nestedDir, want: marker},
		{name: "No Config", startPath: emptyDir, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindConfig(tt.startPath)
			if tt.wantErr {
				// A config further up the real filesystem may exist; only
				// assert it is not ours.
				if err == nil {
					assert.NotEqual(t, marker, got)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindConfig_IgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "lockbox.yaml"), 0o755))
	got, err := FindConfig(dir)
	if err == nil {
		assert.NotEqual(t, filepath.Join(dir, "lockbox.yaml"), got)
	}
}
