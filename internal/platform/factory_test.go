package platform

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lockbox/pkg/adapters/host"
	"github.com/aretw0/lockbox/pkg/config"
	"github.com/aretw0/lockbox/pkg/core"
	"github.com/aretw0/lockbox/pkg/manager"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.KDF.Time = 1
	cfg.KDF.MemoryKiB = 8 * 1024
	cfg.KDF.Threads = 1
	cfg.Backup.Count = 2
	return cfg
}

func TestNew_FS(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vault.lbx")

	v, err := New(path, WithConfig(testConfig()))
	require.NoError(t, err)
	assert.Equal(t, path, v.Locator())

	require.NoError(t, v.Create(ctx, []byte("long enough passphrase")))
	_, err = v.Add(core.Credential{Name: "Mail"})
	require.NoError(t, err)
	require.NoError(t, v.Close(ctx))
	assert.FileExists(t, path)
	assert.FileExists(t, path+".bak.1")

	_, err = v.Open(ctx, []byte("long enough passphrase"))
	require.NoError(t, err)
	list, err := v.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
	require.NoError(t, v.Close(ctx))
}

func TestNew_Host(t *testing.T) {
	ctx := context.Background()
	h := host.NewMemoryHost()

	v, err := New("content://vault", WithHost(h), WithConfig(testConfig()), WithClock(func() time.Time { return time.Unix(1700000000, 0) }))
	require.NoError(t, err)
	require.NoError(t, v.Create(ctx, []byte("long enough passphrase")))
	require.NoError(t, v.Close(ctx))

	_, ok := h.Get("content://vault")
	assert.True(t, ok)
	assert.Equal(t, manager.StateClosed, v.Status())
}

func TestNew_Errors(t *testing.T) {
	_, err := New("x", WithAdapter("s3"))
	assert.ErrorContains(t, err, "unknown adapter")

	_, err = New("x", WithAdapter("host"))
	assert.ErrorContains(t, err, "requires a host")

	_, err = New("")
	assert.Error(t, err)

	bad := config.Default()
	bad.Archive.CompressionLevel = 42
	_, err = New("x.lbx", WithConfig(bad))
	assert.ErrorContains(t, err, "invalid config")
}

func TestManagerOptionsFromConfig(t *testing.T) {
	o := defaultOptions()
	o.config.Passphrase.MinLength = 20
	o.config.Archive.Solid = false
	o.watch = true

	opts := managerOptions(o)
	assert.Equal(t, 20, opts.MinPassphraseLength)
	assert.False(t, opts.Codec.Compression.Solid)
	assert.True(t, opts.Watch)
	assert.Equal(t, o.config.Timeouts.Operation, opts.OperationTimeout)
}
