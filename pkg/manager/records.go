package manager

import (
	"fmt"
	"sort"

	"github.com/aretw0/lockbox/pkg/core"
	"github.com/aretw0/lockbox/pkg/memory"
	"github.com/aretw0/lockbox/pkg/totp"
)

// List returns every credential ordered by name.
func (m *Manager) List() ([]core.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.open("list")
	if err != nil {
		return nil, err
	}
	return h.repo.List(), nil
}

// Get returns the credential with the given identifier.
func (m *Manager) Get(id string) (core.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.open("get")
	if err != nil {
		return core.Credential{}, err
	}
	return h.repo.Get(id)
}

// Search runs q against the open vault.
func (m *Manager) Search(q memory.Query) ([]memory.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.open("search")
	if err != nil {
		return nil, err
	}
	return h.repo.Search(q), nil
}

// Add stores c and returns its identifier.
func (m *Manager) Add(c core.Credential) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.open("add")
	if err != nil {
		return "", err
	}
	return h.repo.Add(c)
}

// AddFromTemplate creates a credential named name from the template, filling
// fields from values. Values for fields the template does not declare and
// missing required values are rejected, as are one-time code secrets that
// do not decode.
func (m *Manager) AddFromTemplate(template, name string, values map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.open("add from template")
	if err != nil {
		return "", err
	}
	t, ok := h.repo.Template(template)
	if !ok {
		return "", core.NewError(core.ErrNotFound, "add from template", fmt.Errorf("template %q", template))
	}

	c := t.NewCredential(name)
	declared := make(map[string]bool, len(t.Fields))
	for _, tf := range t.Fields {
		declared[tf.Name] = true
		if tf.Required && values[tf.Name] == "" {
			return "", core.NewError(core.ErrSchema, "add from template", fmt.Errorf("field %q is required by %s", tf.Name, t.Name))
		}
	}
	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if !declared[k] {
			return "", core.NewError(core.ErrSchema, "add from template", fmt.Errorf("field %q is not part of %s", k, t.Name))
		}
		f, _ := c.Field(k)
		f.Value = values[k]
		if f.Type == core.FieldTOTPSecret && f.Value != "" {
			if err := totp.Validate(f.Value); err != nil {
				return "", core.NewError(core.ErrSchema, "add from template", fmt.Errorf("field %q: %w", k, err))
			}
			f.Value = totp.Normalize(f.Value)
		}
		c.SetField(f)
	}
	return h.repo.Add(c)
}

// Update replaces the credential stored under id.
func (m *Manager) Update(id string, c core.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.open("update")
	if err != nil {
		return err
	}
	return h.repo.Update(id, c)
}

// Delete removes the credential stored under id.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.open("delete")
	if err != nil {
		return err
	}
	return h.repo.Delete(id)
}

// Templates returns built-in and custom templates.
func (m *Manager) Templates() ([]core.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.open("templates")
	if err != nil {
		return nil, err
	}
	return h.repo.Templates(), nil
}

// PutTemplate stores a custom template in the vault.
func (m *Manager) PutTemplate(t core.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.open("put template")
	if err != nil {
		return err
	}
	return h.repo.PutTemplate(t)
}

// Dirty reports whether the open vault has unsaved changes.
func (m *Manager) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle != nil && m.handle.repo.Dirty()
}
