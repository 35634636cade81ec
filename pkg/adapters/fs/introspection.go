package fs

import (
	"github.com/aretw0/introspection"
)

// ProviderState exposes internal state for observability.
type ProviderState struct {
	Root        string `json:"root,omitempty"`
	Reads       int    `json:"reads"`
	Writes      int    `json:"writes"`
	Watchers    int    `json:"active_watchers"`
	AutoBackup  bool   `json:"auto_backup"`
	BackupCount int    `json:"backup_count"`
	LockTimeout string `json:"lock_timeout"`
}

// State implements introspection.Introspectable.
func (p *Provider) State() any {
	p.mu.Lock()
	defer p.mu.Unlock()

	return ProviderState{
		Root:        p.config.Root,
		Reads:       p.reads,
		Writes:      p.writes,
		Watchers:    p.watchers,
		AutoBackup:  p.config.AutoBackup,
		BackupCount: p.config.BackupCount,
		LockTimeout: p.config.LockTimeout.String(),
	}
}

// ComponentType implements introspection.Component.
func (p *Provider) ComponentType() string {
	return "fs-provider"
}

var _ introspection.Introspectable = (*Provider)(nil)
var _ introspection.Component = (*Provider)(nil)

func (p *Provider) trackWatcher(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.watchers += delta
}
