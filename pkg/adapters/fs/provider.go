// Package fs implements the direct file provider: archives live on the local
// filesystem, written atomically, guarded by a lock file and optionally
// rotated into backups before each overwrite.
package fs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/aretw0/lockbox/pkg/core"
)

// Config configures a Provider.
type Config struct {
	// Root, when set, resolves relative locators against it.
	Root string
	// Logger receives debug output. Defaults to a discard logger.
	Logger *slog.Logger
	// ErrorHandler receives asynchronous watcher errors.
	ErrorHandler func(error)
	// Perm is the mode of written archives. Defaults to 0600.
	Perm os.FileMode
	// LockTimeout bounds lock acquisition. Defaults to 5s.
	LockTimeout time.Duration
	// StaleAfter is the age after which a lock file is considered abandoned.
	// Zero disables stale lock detection.
	StaleAfter time.Duration
	// AutoBackup enables backup rotation before overwrites.
	AutoBackup bool
	// BackupCount is the number of backups kept.
	BackupCount int
}

// Provider reads and writes archives on the local filesystem.
type Provider struct {
	config Config

	mu       sync.Mutex
	written  map[string]stamp
	reads    int
	writes   int
	watchers int
}

// stamp identifies a file version this provider wrote itself.
type stamp struct {
	size    int64
	modTime time.Time
}

var (
	_ core.FileProvider = (*Provider)(nil)
	_ core.Locker       = (*Provider)(nil)
	_ core.Watcher      = (*Provider)(nil)
)

// NewProvider returns a Provider with defaults filled in.
func NewProvider(config Config) *Provider {
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.Perm == 0 {
		config.Perm = 0o600
	}
	if config.LockTimeout <= 0 {
		config.LockTimeout = 5 * time.Second
	}
	return &Provider{
		config:  config,
		written: make(map[string]stamp),
	}
}

func (p *Provider) resolve(locator string) (string, error) {
	if locator == "" {
		return "", core.NewError(core.ErrIO, "resolve", fmt.Errorf("empty locator"))
	}
	if p.config.Root != "" && !filepath.IsAbs(locator) {
		locator = filepath.Join(p.config.Root, locator)
	}
	return filepath.Abs(locator)
}

// ReadArchive reads the archive at locator.
func (p *Provider) ReadArchive(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := p.resolve(locator)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.NewError(core.ErrIO, "read archive", classify(err)).WithPath(path)
	}
	p.mu.Lock()
	p.reads++
	p.mu.Unlock()
	p.config.Logger.Debug("archive read", "path", path, "bytes", len(data))
	return data, nil
}

// WriteArchive atomically replaces the archive at locator, rotating backups
// first when enabled.
func (p *Provider) WriteArchive(ctx context.Context, locator string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := p.resolve(locator)
	if err != nil {
		return err
	}
	if err := p.rotateBackups(path); err != nil {
		return core.NewError(core.ErrIO, "backup archive", classify(err)).WithPath(path)
	}
	if err := writeFileAtomic(ctx, path, data, p.config.Perm); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return core.NewError(core.ErrIO, "write archive", classify(err)).WithPath(path)
	}

	p.mu.Lock()
	p.writes++
	if info, err := os.Stat(path); err == nil {
		p.written[path] = stamp{size: info.Size(), modTime: info.ModTime()}
	}
	p.mu.Unlock()

	p.config.Logger.Debug("archive written", "path", path, "bytes", len(data))
	return nil
}

// ownWrite reports whether the file at path is the last version this
// provider wrote.
func (p *Provider) ownWrite(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.written[path]
	return ok && s.size == info.Size() && s.modTime.Equal(info.ModTime())
}

// classify maps OS errors onto the storage causes the core understands.
func classify(err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %w", core.ErrArchiveNotFound, err)
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: %w", core.ErrPermissionDenied, err)
	case errors.Is(err, syscall.ENOSPC):
		return fmt.Errorf("%w: %w", core.ErrQuotaExceeded, err)
	}
	return err
}

// reportError logs an asynchronous failure and hands it to ErrorHandler.
func (p *Provider) reportError(err error) {
	p.config.Logger.Error("archive background task failed", "error", err)
	if p.config.ErrorHandler != nil {
		p.config.ErrorHandler(err)
	}
}
