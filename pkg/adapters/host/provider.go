// Package host implements the delegated file provider. The core never
// touches storage itself; every read and write is handed to a core.Host as a
// single FileMap exchange.
package host

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/lockbox/pkg/core"
)

// Provider forwards archive I/O to a host.
type Provider struct {
	host   core.Host
	logger *slog.Logger

	mu        sync.Mutex
	exchanges int
	failures  int
}

var (
	_ core.FileProvider = (*Provider)(nil)
	_ core.Delegated    = (*Provider)(nil)
)

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProvider returns a Provider delegating to h.
func NewProvider(h core.Host, opts ...Option) *Provider {
	p := &Provider{
		host:   h,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Delegated implements core.Delegated.
func (p *Provider) Delegated() bool { return true }

// ReadArchive asks the host for the bytes stored at locator.
func (p *Provider) ReadArchive(ctx context.Context, locator string) ([]byte, error) {
	resp, err := p.exchange(ctx, "read archive", core.FileMap{locator: nil})
	if err != nil {
		return nil, err
	}
	data, ok := resp[locator]
	if !ok || data == nil {
		return nil, core.NewError(core.ErrIO, "read archive", core.ErrArchiveNotFound).WithPath(locator)
	}
	p.logger.Debug("archive read from host", "locator", locator, "bytes", len(data))
	return data, nil
}

// WriteArchive asks the host to store data at locator. The host must echo
// the accepted bytes back.
func (p *Provider) WriteArchive(ctx context.Context, locator string, data []byte) error {
	if len(data) == 0 {
		return core.NewError(core.ErrIO, "write archive", fmt.Errorf("empty archive")).WithPath(locator)
	}
	resp, err := p.exchange(ctx, "write archive", core.FileMap{locator: bytes.Clone(data)})
	if err != nil {
		return err
	}
	if accepted, ok := resp[locator]; !ok || !bytes.Equal(accepted, data) {
		p.countFailure()
		return core.NewError(core.ErrIO, "write archive", fmt.Errorf("host did not accept the archive")).WithPath(locator)
	}
	p.logger.Debug("archive written to host", "locator", locator, "bytes", len(data))
	return nil
}

func (p *Provider) exchange(ctx context.Context, op string, req core.FileMap) (core.FileMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.exchanges++
	p.mu.Unlock()

	resp, err := p.host.Exchange(ctx, req)
	if err != nil {
		p.countFailure()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, core.NewError(core.ErrIO, op, err)
	}
	return resp, nil
}

func (p *Provider) countFailure() {
	p.mu.Lock()
	p.failures++
	p.mu.Unlock()
}
