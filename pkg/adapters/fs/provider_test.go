package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lockbox/pkg/core"
)

func TestProvider_ReadWrite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := NewProvider(Config{Root: dir})

	_, err := p.ReadArchive(ctx, "vault.lbx")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrIO)
	assert.ErrorIs(t, err, core.ErrArchiveNotFound)

	require.NoError(t, p.WriteArchive(ctx, "vault.lbx", []byte("one")))
	data, err := p.ReadArchive(ctx, filepath.Join(dir, "vault.lbx"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	info, err := os.Stat(filepath.Join(dir, "vault.lbx"))
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	state := p.State().(ProviderState)
	assert.Equal(t, 1, state.Reads)
	assert.Equal(t, 1, state.Writes)
	assert.Equal(t, "fs-provider", p.ComponentType())
}

func TestProvider_EmptyLocator(t *testing.T) {
	p := NewProvider(Config{})
	_, err := p.ReadArchive(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrIO)
}

func TestProvider_OwnWrite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := NewProvider(Config{Root: dir})
	path := filepath.Join(dir, "vault.lbx")

	require.NoError(t, p.WriteArchive(ctx, "vault.lbx", []byte("mine")))
	assert.True(t, p.ownWrite(path))

	// A foreign rewrite with different content changes the size.
	require.NoError(t, os.WriteFile(path, []byte("someone else"), 0o600))
	assert.False(t, p.ownWrite(path))
}

func TestProvider_BackupRotation(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := NewProvider(Config{Root: dir, AutoBackup: true, BackupCount: 2})

	for _, v := range []string{"v1", "v2", "v3", "v4"} {
		require.NoError(t, p.WriteArchive(ctx, "vault.lbx", []byte(v)))
	}

	backups, err := p.Backups("vault.lbx")
	require.NoError(t, err)
	require.Len(t, backups, 2)

	newest, _ := os.ReadFile(backups[0])
	oldest, _ := os.ReadFile(backups[1])
	assert.Equal(t, "v3", string(newest))
	assert.Equal(t, "v2", string(oldest))

	current, _ := os.ReadFile(filepath.Join(dir, "vault.lbx"))
	assert.Equal(t, "v4", string(current))
	assert.NoFileExists(t, filepath.Join(dir, "vault.lbx"+BackupSuffix+"3"))
}

func TestProvider_BackupDisabled(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := NewProvider(Config{Root: dir, BackupCount: 3})

	require.NoError(t, p.WriteArchive(ctx, "vault.lbx", []byte("v1")))
	require.NoError(t, p.WriteArchive(ctx, "vault.lbx", []byte("v2")))

	backups, err := p.Backups("vault.lbx")
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestProvider_Lock(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("Exclusive", func(t *testing.T) {
		p := NewProvider(Config{Root: dir, LockTimeout: 50 * time.Millisecond})

		unlock, err := p.Lock(ctx, "vault.lbx")
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(dir, "vault.lbx"+LockSuffix))

		_, err = p.Lock(ctx, "vault.lbx")
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrLockTimeout)
		assert.Contains(t, err.Error(), "pid")

		require.NoError(t, unlock())
		assert.NoFileExists(t, filepath.Join(dir, "vault.lbx"+LockSuffix))

		unlock, err = p.Lock(ctx, "vault.lbx")
		require.NoError(t, err)
		require.NoError(t, unlock())
	})

	t.Run("Breaks Stale Lock", func(t *testing.T) {
		p := NewProvider(Config{Root: dir, LockTimeout: 50 * time.Millisecond, StaleAfter: time.Minute})
		lock := filepath.Join(dir, "stale.lbx"+LockSuffix)
		require.NoError(t, os.WriteFile(lock, []byte("99999\n0\n"), 0o600))
		old := time.Now().Add(-time.Hour)
		require.NoError(t, os.Chtimes(lock, old, old))

		unlock, err := p.Lock(ctx, "stale.lbx")
		require.NoError(t, err)
		require.NoError(t, unlock())
	})

	t.Run("Live Holder Is Never Stale", func(t *testing.T) {
		p := NewProvider(Config{Root: dir, LockTimeout: 50 * time.Millisecond, StaleAfter: 50 * time.Millisecond})

		unlock, err := p.Lock(ctx, "held.lbx")
		require.NoError(t, err)

		time.Sleep(150 * time.Millisecond)
		_, err = p.Lock(ctx, "held.lbx")
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrLockTimeout)

		require.NoError(t, unlock())
		assert.NoFileExists(t, filepath.Join(dir, "held.lbx"+LockSuffix))
	})

	t.Run("Unlock Keeps Foreign Lock", func(t *testing.T) {
		p := NewProvider(Config{Root: dir, LockTimeout: 50 * time.Millisecond})
		lock := filepath.Join(dir, "taken.lbx"+LockSuffix)

		unlock, err := p.Lock(ctx, "taken.lbx")
		require.NoError(t, err)

		// Another holder broke our lock and wrote its own.
		foreign := lockInfo{pid: 4242, since: time.Now().Unix(), token: "someone-else"}
		require.NoError(t, os.WriteFile(lock, foreign.encode(), 0o600))

		err = unlock()
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrIO)
		assert.ErrorIs(t, err, errLockLost)

		current, err := readLock(lock)
		require.NoError(t, err)
		assert.Equal(t, "someone-else", current.token)
		require.NoError(t, os.Remove(lock))
	})

	t.Run("Honors Cancellation", func(t *testing.T) {
		p := NewProvider(Config{Root: dir, LockTimeout: time.Minute})
		unlock, err := p.Lock(ctx, "busy.lbx")
		require.NoError(t, err)
		defer unlock()

		cancelled, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
		defer cancel()
		_, err = p.Lock(cancelled, "busy.lbx")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestProvider_Watch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	p := NewProvider(Config{Root: dir})
	require.NoError(t, p.WriteArchive(ctx, "vault.lbx", []byte("v1")))

	events := make(chan core.Event, 4)
	stop, err := p.Watch(ctx, "vault.lbx", func(e core.Event) { events <- e })
	require.NoError(t, err)

	// Our own write is filtered.
	require.NoError(t, p.WriteArchive(ctx, "vault.lbx", []byte("v2")))
	select {
	case e := <-events:
		t.Fatalf("unexpected event for own write: %v", e)
	case <-time.After(4 * watchDebounce):
	}

	// Unrelated files in the directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "vault.lbx"), []byte("external change"), 0o600))
	select {
	case e := <-events:
		assert.Equal(t, core.EventExternalChange, e.Type)
		assert.Equal(t, "vault.lbx", e.Locator)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for external change event")
	}

	assert.Equal(t, 1, p.State().(ProviderState).Watchers)
	require.NoError(t, stop())
	assert.Eventually(t, func() bool {
		return p.State().(ProviderState).Watchers == 0
	}, time.Second, 10*time.Millisecond)
}
