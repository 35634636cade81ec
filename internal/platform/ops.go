package platform

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/lockbox/pkg/adapters/fs"
	"github.com/aretw0/lockbox/pkg/adapters/host"
	"github.com/aretw0/lockbox/pkg/codec"
	"github.com/aretw0/lockbox/pkg/core"
	"github.com/aretw0/lockbox/pkg/manager"
)

// Init assembles the file provider for the archive at uri and returns it
// with the locator the manager should use. The uri is adapter-specific: a
// file path for "fs", an opaque host key for "host".
func Init(uri string, opts ...Option) (core.FileProvider, string, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return initProvider(uri, o)
}

func initProvider(uri string, o *options) (core.FileProvider, string, error) {
	if o.provider != nil {
		return o.provider, uri, nil
	}
	if err := o.config.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}

	switch o.adapter {
	case "fs":
		return initFS(uri, o)
	case "host":
		if o.host == nil {
			return nil, "", fmt.Errorf("host adapter requires a host")
		}
		if uri == "" {
			return nil, "", fmt.Errorf("empty locator")
		}
		return host.NewProvider(o.host, host.WithLogger(o.logger)), uri, nil
	default:
		return nil, "", fmt.Errorf("unknown adapter: %s", o.adapter)
	}
}

// initFS resolves the archive path and configures the filesystem adapter.
func initFS(path string, o *options) (core.FileProvider, string, error) {
	if path == "" {
		return nil, "", fmt.Errorf("empty archive path")
	}

	useTemp := o.devSafety && IsDevRun()
	resolved := ResolveArchivePath(path, useTemp)
	if o.logger != nil {
		if useTemp && resolved != path {
			o.logger.Warn("running in SAFE MODE (Dev/Test)", "original_path", path, "resolved_path", resolved)
		} else if IsDevRun() && !o.devSafety {
			o.logger.Warn("running in UNSAFE mode (bypassing dev sandbox)", "path", resolved)
		}
	}

	if useTemp {
		if err := os.MkdirAll(filepath.Dir(resolved), 0o700); err != nil {
			return nil, "", fmt.Errorf("failed to create sandbox: %w", err)
		}
	}

	abs, err := filepath.Abs(resolved)
	if err != nil {
		return nil, "", err
	}

	cfg := o.config
	p := fs.NewProvider(fs.Config{
		Logger:       o.logger,
		ErrorHandler: o.errorHandler,
		LockTimeout:  cfg.Timeouts.Lock,
		StaleAfter:   cfg.Lock.StaleAfter,
		AutoBackup:   cfg.Backup.Auto,
		BackupCount:  cfg.Backup.Count,
	})
	return p, abs, nil
}

// managerOptions maps the configuration onto the manager.
func managerOptions(o *options) manager.Options {
	cfg := o.config
	opts := manager.DefaultOptions()
	opts.Codec = codec.Options{KDF: cfg.KDF, Compression: cfg.Compression()}
	opts.Validation = cfg.Validation
	opts.OperationTimeout = cfg.Timeouts.Operation
	opts.MinPassphraseLength = cfg.Passphrase.MinLength
	opts.Watch = o.watch
	return opts
}
