package manager

import (
	"log/slog"
	"time"

	"github.com/aretw0/lockbox/pkg/codec"
	"github.com/aretw0/lockbox/pkg/execution"
	"github.com/aretw0/lockbox/pkg/validate"
)

// DefaultMinPassphraseLength is the passphrase policy applied when none is
// configured.
const DefaultMinPassphraseLength = 8

// Options configures a Manager.
type Options struct {
	// Codec holds the KDF and compression used for new archives and saves.
	Codec codec.Options
	// Validation is the policy applied on open.
	Validation validate.Options
	// OperationTimeout bounds each create, open, save and close.
	// Zero means no bound beyond the caller's context.
	OperationTimeout time.Duration
	// MinPassphraseLength is enforced on create and passphrase change.
	MinPassphraseLength int
	// EventBuffer is the capacity of the event channel. Events are dropped
	// when it is full.
	EventBuffer int
	// Watch reports external archive changes when the provider supports it.
	Watch bool
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Codec:               codec.DefaultOptions(),
		Validation:          validate.DefaultOptions(),
		OperationTimeout:    2 * time.Minute,
		MinPassphraseLength: DefaultMinPassphraseLength,
		EventBuffer:         16,
	}
}

// Option configures optional collaborators.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source for records and manifests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator overrides record identifier generation.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) { m.newID = gen }
}

// WithAdapter sets the execution adapter.
func WithAdapter(a *execution.Adapter) Option {
	return func(m *Manager) {
		if a != nil {
			m.adapter = a
		}
	}
}
