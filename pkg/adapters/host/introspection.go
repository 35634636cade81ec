package host

import "github.com/aretw0/introspection"

// ProviderState exposes internal state for observability.
type ProviderState struct {
	Exchanges int `json:"exchanges"`
	Failures  int `json:"failures"`
}

// State implements introspection.Introspectable.
func (p *Provider) State() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ProviderState{Exchanges: p.exchanges, Failures: p.failures}
}

// ComponentType implements introspection.Component.
func (p *Provider) ComponentType() string {
	return "host-provider"
}

var _ introspection.Component = (*Provider)(nil)
