package lockbox

import (
	"log/slog"
	"time"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/lockbox/internal/platform"
	lifecycleadapter "github.com/aretw0/lockbox/pkg/adapters/lifecycle"
	"github.com/aretw0/lockbox/pkg/config"
	"github.com/aretw0/lockbox/pkg/core"
	"github.com/aretw0/lockbox/pkg/execution"
	"github.com/aretw0/lockbox/pkg/manager"
	"github.com/aretw0/lockbox/pkg/memory"
)

// --- Types ---

// Vault is a manager bound to one archive.
type Vault = platform.Vault

// Credential is a stored record.
type Credential = core.Credential

// Field is a named value inside a credential.
type Field = core.Field

// Template describes the fields of a kind of credential.
type Template = core.Template

// Report is the outcome of validation.
type Report = core.Report

// Query selects credentials in Search.
type Query = memory.Query

// State is the lifecycle state of a vault.
type State = manager.State

// Config is the configuration surface.
type Config = config.Config

// --- Configuration ---

// Option defines a functional option for configuring a vault.
type Option = platform.Option

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return config.Default()
}

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := config.Default()
	if err := config.Load(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithConfig replaces the configuration.
func WithConfig(cfg Config) Option {
	return platform.WithConfig(cfg)
}

// WithProvider injects a custom file provider.
func WithProvider(p core.FileProvider) Option {
	return platform.WithProvider(p)
}

// WithHost delegates storage to the embedding host.
func WithHost(h core.Host) Option {
	return platform.WithHost(h)
}

// WithAdapter selects the storage adapter by name.
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithWatch reports archive changes made by other processes.
func WithWatch(enabled bool) Option {
	return platform.WithWatch(enabled)
}

// WithWatcherErrorHandler receives asynchronous watcher failures.
func WithWatcherErrorHandler(fn func(error)) Option {
	return platform.WithWatcherErrorHandler(fn)
}

// WithDevSafety controls the `go run` sandbox.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return platform.WithClock(now)
}

// WithScheduler marks ctx as running inside the caller's own scheduler, so
// vault operations hand their blocking phases to it.
var WithScheduler = execution.WithScheduler

// --- Factory ---

// New wires a vault for the archive at path. Nothing is read until Create
// or Open.
func New(path string, opts ...Option) (*Vault, error) {
	return platform.New(path, opts...)
}

// FindConfig looks upwards from dir for a configuration file.
func FindConfig(dir string) (string, error) {
	return platform.FindConfig(dir)
}

// EventSource exposes the vault events as a lifecycle.Source. When kinds is
// non-empty only those event types are forwarded.
func EventSource(v *Vault, kinds ...core.EventType) lifecycle.Source {
	return lifecycleadapter.NewSource(v.Events(), kinds...)
}
