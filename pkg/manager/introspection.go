package manager

import (
	"time"

	"github.com/aretw0/introspection"

	"github.com/aretw0/lockbox/pkg/core"
)

// Stats summarizes the open vault.
type Stats struct {
	Locator       string             `json:"locator"`
	State         State              `json:"state"`
	Records       int                `json:"records"`
	Fields        int                `json:"fields"`
	Favorites     int                `json:"favorites"`
	Templates     int                `json:"custom_templates"`
	Dirty         bool               `json:"dirty"`
	FormatVersion int                `json:"format_version"`
	OpenedAt      time.Time          `json:"opened_at"`
	Report        core.ReportSummary `json:"report"`
}

// Stats returns counts for the open vault.
func (m *Manager) Stats() (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.open("stats")
	if err != nil {
		return Stats{}, err
	}

	s := Stats{
		Locator:       h.locator,
		State:         m.Status(),
		Dirty:         h.repo.Dirty(),
		FormatVersion: h.repo.Manifest().FormatVersion,
		OpenedAt:      h.openedAt,
		Report:        m.lastReport.Summary(),
	}
	for _, c := range h.repo.List() {
		s.Records++
		s.Fields += len(c.Fields)
		if c.Favorite {
			s.Favorites++
		}
	}
	for _, t := range h.repo.Templates() {
		if !t.BuiltIn {
			s.Templates++
		}
	}
	return s, nil
}

// ManagerState exposes internal state for observability. It never carries
// record content or key material.
type ManagerState struct {
	State      State  `json:"state"`
	Locator    string `json:"locator,omitempty"`
	Records    int    `json:"records"`
	Dirty      bool   `json:"dirty"`
	Saves      int    `json:"saves"`
	LastFailed string `json:"last_failed,omitempty"`
	Provider   any    `json:"provider,omitempty"`
}

// State implements introspection.Introspectable.
func (m *Manager) State() any {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := ManagerState{State: m.Status(), Saves: m.saves}
	if m.lastFailed != StateClosed {
		s.LastFailed = m.lastFailed.String()
	}
	if h := m.handle; h != nil {
		s.Locator = h.locator
		s.Records = h.repo.Len()
		s.Dirty = h.repo.Dirty()
	}
	if p, ok := m.provider.(introspection.Introspectable); ok {
		s.Provider = p.State()
	}
	return s
}

// ComponentType implements introspection.Component.
func (m *Manager) ComponentType() string {
	return "vault-manager"
}

var _ introspection.Introspectable = (*Manager)(nil)
var _ introspection.Component = (*Manager)(nil)
