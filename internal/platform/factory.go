package platform

import (
	"context"

	"github.com/aretw0/lockbox/pkg/core"
	"github.com/aretw0/lockbox/pkg/manager"
)

// Vault binds a Manager to one archive locator.
type Vault struct {
	*manager.Manager
	locator string
}

// New wires a vault for the archive at uri.
//
//	v, err := lockbox.New("./secrets.lbx", lockbox.WithLogger(logger))
func New(uri string, opts ...Option) (*Vault, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	provider, locator, err := initProvider(uri, o)
	if err != nil {
		return nil, err
	}

	var mopts []manager.Option
	if o.logger != nil {
		mopts = append(mopts, manager.WithLogger(o.logger))
	}
	if o.clock != nil {
		mopts = append(mopts, manager.WithClock(o.clock))
	}
	if o.executor != nil {
		mopts = append(mopts, manager.WithAdapter(o.executor))
	}

	return &Vault{
		Manager: manager.New(provider, managerOptions(o), mopts...),
		locator: locator,
	}, nil
}

// Locator returns the resolved archive locator.
func (v *Vault) Locator() string {
	return v.locator
}

// Create writes a new empty vault and leaves it open.
func (v *Vault) Create(ctx context.Context, passphrase []byte) error {
	return v.Manager.Create(ctx, v.locator, passphrase)
}

// Open decrypts, validates and loads the vault.
func (v *Vault) Open(ctx context.Context, passphrase []byte) (core.Report, error) {
	return v.Manager.Open(ctx, v.locator, passphrase)
}
