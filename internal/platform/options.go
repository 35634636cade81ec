package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/lockbox/pkg/config"
	"github.com/aretw0/lockbox/pkg/core"
	"github.com/aretw0/lockbox/pkg/execution"
)

// options holds the internal configuration for a vault.
type options struct {
	provider     core.FileProvider
	host         core.Host
	logger       *slog.Logger
	adapter      string
	config       config.Config
	watch        bool
	devSafety    bool
	errorHandler func(error)
	clock        func() time.Time
	executor     *execution.Adapter
}

// Option defines a functional option for configuring a vault.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		adapter:   "fs",
		config:    config.Default(),
		devSafety: true,
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg config.Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithProvider injects a custom file provider (e.g. a test double).
// If provided, the adapter selection is skipped.
func WithProvider(p core.FileProvider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithHost selects delegated file operations through h.
func WithHost(h core.Host) Option {
	return func(o *options) {
		o.host = h
		o.adapter = "host"
	}
}

// WithAdapter selects the storage adapter by name ("fs" or "host").
// Defaults to "fs".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithWatch reports changes made to the archive by other processes on the
// vault's event channel.
func WithWatch(enabled bool) Option {
	return func(o *options) {
		o.watch = enabled
	}
}

// WithWatcherErrorHandler registers a callback for asynchronous watcher
// failures, which are otherwise only logged.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.errorHandler = fn
	}
}

// WithDevSafety controls the sandbox used when running via `go run` or
// `go test`. By default (true) archives outside the temp directory are
// redirected into it so development never touches a real vault.
//
// CAUTION: Only disable this if you are sure your code is safe.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.devSafety = enabled
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

// WithExecutionAdapter overrides the runtime adapter.
func WithExecutionAdapter(a *execution.Adapter) Option {
	return func(o *options) {
		o.executor = a
	}
}
