// Package core holds the vault domain: credential records, the FileMap
// interchange unit, validation reports, errors and the storage contracts.
package core

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// FieldType tags the structural type of a field value.
type FieldType string

const (
	FieldText       FieldType = "text"
	FieldPassword   FieldType = "password"
	FieldEmail      FieldType = "email"
	FieldURL        FieldType = "url"
	FieldUsername   FieldType = "username"
	FieldPhone      FieldType = "phone"
	FieldCardNumber FieldType = "credit_card_number"
	FieldExpiryDate FieldType = "expiry_date"
	FieldCVV        FieldType = "cvv"
	FieldTOTPSecret FieldType = "totp_secret"
	FieldMultiline  FieldType = "multiline"
	FieldNumber     FieldType = "number"
	FieldDate       FieldType = "date"
	FieldCustom     FieldType = "custom"
)

var fieldTypes = []FieldType{
	FieldText, FieldPassword, FieldEmail, FieldURL, FieldUsername, FieldPhone,
	FieldCardNumber, FieldExpiryDate, FieldCVV, FieldTOTPSecret, FieldMultiline,
	FieldNumber, FieldDate, FieldCustom,
}

// FieldTypes returns every known field type.
func FieldTypes() []FieldType {
	return slices.Clone(fieldTypes)
}

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	return slices.Contains(fieldTypes, t)
}

// DefaultSensitive reports whether values of this type are secret unless
// the caller says otherwise.
func (t FieldType) DefaultSensitive() bool {
	switch t {
	case FieldPassword, FieldCVV, FieldTOTPSecret, FieldCardNumber:
		return true
	}
	return false
}

// Field is a single named value inside a credential.
type Field struct {
	Name      string    `yaml:"name"`
	Label     string    `yaml:"label,omitempty"`
	Type      FieldType `yaml:"type"`
	Value     string    `yaml:"value"`
	Sensitive bool      `yaml:"sensitive,omitempty"`
}

// Masked reports whether a UI or export must hide the value.
// Multiline values are never masked as single-line secrets.
func (f Field) Masked() bool {
	return f.Sensitive && f.Type != FieldMultiline
}

// DisplayName returns the label, falling back to the field name.
func (f Field) DisplayName() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// Credential is a structured record stored in the vault.
// Its ID never changes once assigned.
type Credential struct {
	ID         string    `yaml:"id"`
	Name       string    `yaml:"name"`
	Template   string    `yaml:"template,omitempty"`
	Fields     []Field   `yaml:"fields,omitempty"`
	Tags       []string  `yaml:"tags,omitempty"`
	Notes      string    `yaml:"notes,omitempty"`
	Favorite   bool      `yaml:"favorite,omitempty"`
	CreatedAt  time.Time `yaml:"created_at"`
	ModifiedAt time.Time `yaml:"modified_at"`
}

// Clone returns a deep copy.
func (c Credential) Clone() Credential {
	out := c
	out.Fields = slices.Clone(c.Fields)
	out.Tags = slices.Clone(c.Tags)
	return out
}

// Field looks up a field by name.
func (c Credential) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// SetField replaces the named field in place or appends it.
func (c *Credential) SetField(f Field) {
	for i := range c.Fields {
		if c.Fields[i].Name == f.Name {
			c.Fields[i] = f
			return
		}
	}
	c.Fields = append(c.Fields, f)
}

// RemoveField drops the named field. It reports whether it existed.
func (c *Credential) RemoveField(name string) bool {
	n := len(c.Fields)
	c.Fields = slices.DeleteFunc(c.Fields, func(f Field) bool { return f.Name == name })
	return len(c.Fields) != n
}

// HasTag reports whether the credential carries tag (case-insensitive).
func (c Credential) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// NormalizeTags trims, deduplicates and sorts tags. Tags are a set.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	out = slices.Compact(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

// Check verifies the record invariants that hold for every stored credential.
func (c Credential) Check() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("credential %q: name is empty", c.ID)
	}
	seen := make(map[string]struct{}, len(c.Fields))
	for _, f := range c.Fields {
		if f.Name == "" {
			return fmt.Errorf("credential %q: field without name", c.ID)
		}
		if !f.Type.Valid() {
			return fmt.Errorf("credential %q: field %q has unknown type %q", c.ID, f.Name, f.Type)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("credential %q: duplicate field %q", c.ID, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// EventType represents the kind of lifecycle change in a vault.
type EventType string

const (
	EventOpened         EventType = "OPENED"
	EventSaved          EventType = "SAVED"
	EventClosed         EventType = "CLOSED"
	EventRepaired       EventType = "REPAIRED"
	EventExternalChange EventType = "EXTERNAL_CHANGE"
)

// Event represents a change in the vault.
type Event struct {
	Type      EventType
	Locator   string
	Timestamp int64 // Unix timestamp
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s", e.Type, e.Locator)
}
