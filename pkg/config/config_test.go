package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 6, cfg.Compression().Level)
	assert.True(t, cfg.Compression().Solid)
	assert.True(t, cfg.Validation.AutoRepair)
}

func TestLoad(t *testing.T) {
	t.Setenv("LOCKBOX_TEST_BACKUPS", "7")
	path := filepath.Join(t.TempDir(), "lockbox.yaml")
	content := `
archive:
  compression_level: 9
  solid: false
kdf:
  time: 4
  memory_kib: 131072
  threads: 2
validation:
  deep_validation: false
  check_legacy_formats: true
  validate_schemas: true
  auto_repair: false
  fail_on_critical_issues: true
timeouts:
  lock: 2s
  operation: 30s
backup:
  count: ${LOCKBOX_TEST_BACKUPS}
  auto: true
lock:
  stale_after: 10m
passphrase:
  min_length: 12
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := Default()
	require.NoError(t, Load(path, &cfg))

	assert.Equal(t, 9, cfg.Archive.CompressionLevel)
	assert.False(t, cfg.Archive.Solid)
	assert.Equal(t, uint32(4), cfg.KDF.Time)
	assert.Equal(t, uint32(131072), cfg.KDF.MemoryKiB)
	assert.Equal(t, uint8(2), cfg.KDF.Threads)
	assert.False(t, cfg.Validation.DeepValidation)
	assert.False(t, cfg.Validation.AutoRepair)
	assert.Equal(t, 2*time.Second, cfg.Timeouts.Lock)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Operation)
	assert.Equal(t, 7, cfg.Backup.Count)
	assert.Equal(t, 10*time.Minute, cfg.Lock.StaleAfter)
	assert.Equal(t, 12, cfg.Passphrase.MinLength)
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, Parse([]byte("archive:\n  compression_level: 1\n"), &cfg))
	assert.Equal(t, 1, cfg.Archive.CompressionLevel)
	assert.Equal(t, Default().KDF, cfg.KDF)
	assert.Equal(t, Default().Timeouts, cfg.Timeouts)
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]string{
		"compression level": "archive:\n  compression_level: 12\n",
		"kdf memory":        "kdf:\n  memory_kib: 1024\n",
		"backup count":      "backup:\n  count: 1000\n",
		"negative timeout":  "timeouts:\n  operation: -1s\n",
		"malformed":         "archive: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			assert.Error(t, Parse([]byte(doc), &cfg))
		})
	}
}

func TestLoadOptional(t *testing.T) {
	cfg := Default()
	found, err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), &cfg)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, Default(), cfg)

	found, err = LoadOptional("", &cfg)
	require.NoError(t, err)
	assert.False(t, found)
}
