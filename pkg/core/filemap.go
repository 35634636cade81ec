package core

import (
	"bytes"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Layout of a decoded archive.
const (
	ManifestPath   = "manifest.yaml"
	CredentialsDir = "credentials"
	TypesDir       = "types"
	QuarantineDir  = "quarantine"
	RecordFile     = "record.yaml"
	Placeholder    = ".keep"

	// CurrentFormatVersion is the layout written by this release.
	// Version 1 stored records as flat credentials/<id>.yaml files.
	CurrentFormatVersion = 2

	// Generator is recorded in new manifests.
	Generator = "lockbox"
)

// FileMap maps relative POSIX paths to raw content. It is the unit exchanged
// between the codec, the validator and storage providers.
type FileMap map[string][]byte

// Paths returns the keys in lexical order.
func (m FileMap) Paths() []string {
	out := make([]string, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy.
func (m FileMap) Clone() FileMap {
	out := make(FileMap, len(m))
	for p, b := range m {
		out[p] = bytes.Clone(b)
	}
	return out
}

// Equal reports whether both maps hold the same paths with the same content.
func (m FileMap) Equal(o FileMap) bool {
	if len(m) != len(o) {
		return false
	}
	for p, b := range m {
		ob, ok := o[p]
		if !ok || !bytes.Equal(b, ob) {
			return false
		}
	}
	return true
}

// HasPrefix reports whether any path lives under dir.
func (m FileMap) HasPrefix(dir string) bool {
	prefix := strings.TrimSuffix(dir, "/") + "/"
	for p := range m {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// Size returns the total content size in bytes.
func (m FileMap) Size() int {
	n := 0
	for _, b := range m {
		n += len(b)
	}
	return n
}

// CleanPath normalizes p and rejects absolute or escaping paths.
func CleanPath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty path")
	}
	if strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return "", fmt.Errorf("path %q must be relative and POSIX-style", p)
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("path %q escapes the archive root", p)
	}
	return clean, nil
}

// RecordPath returns the canonical location of a credential file.
func RecordPath(id string) string {
	return path.Join(CredentialsDir, id, RecordFile)
}

// TemplatePath returns the location of a custom template.
func TemplatePath(name string) string {
	return path.Join(TypesDir, name+".yaml")
}

// QuarantinePath returns where an unreadable file is moved by repair.
func QuarantinePath(p string) string {
	return path.Join(QuarantineDir, p)
}

// Migration is one step in the manifest lineage.
type Migration struct {
	From int       `yaml:"from"`
	To   int       `yaml:"to"`
	At   time.Time `yaml:"at"`
}

// Manifest records the repository format.
type Manifest struct {
	FormatVersion int         `yaml:"format_version"`
	CreatedAt     time.Time   `yaml:"created_at"`
	Generator     string      `yaml:"generator,omitempty"`
	Lineage       []Migration `yaml:"lineage,omitempty"`
}

// NewManifest returns a manifest for a fresh repository.
func NewManifest(now time.Time) Manifest {
	return Manifest{
		FormatVersion: CurrentFormatVersion,
		CreatedAt:     now.UTC().Truncate(time.Second),
		Generator:     Generator,
	}
}

// Marshal serializes the manifest.
func (m Manifest) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

// ParseManifest decodes and sanity checks a manifest.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, err
	}
	if m.FormatVersion <= 0 {
		return Manifest{}, fmt.Errorf("format_version must be positive, got %d", m.FormatVersion)
	}
	return m, nil
}

// NewFileMap builds the layout of an empty repository.
func NewFileMap(now time.Time) (FileMap, error) {
	manifest, err := NewManifest(now).Marshal()
	if err != nil {
		return nil, err
	}
	return FileMap{
		ManifestPath:                        manifest,
		path.Join(CredentialsDir, Placeholder): {},
		path.Join(TypesDir, Placeholder):       {},
	}, nil
}

// MarshalCredential serializes a record deterministically.
func MarshalCredential(c Credential) ([]byte, error) {
	return yaml.Marshal(c)
}

// ParseCredential decodes a record and checks its field schema.
// Name and identifier checks are left to callers.
func ParseCredential(data []byte) (Credential, error) {
	var c Credential
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Credential{}, err
	}
	for i, f := range c.Fields {
		if f.Name == "" {
			return Credential{}, fmt.Errorf("field %d has no name", i)
		}
		if !f.Type.Valid() {
			return Credential{}, fmt.Errorf("field %q has unknown type %q", f.Name, f.Type)
		}
	}
	return c, nil
}

// ParseTemplate decodes and checks a custom template.
func ParseTemplate(data []byte) (Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Template{}, err
	}
	if err := t.Check(); err != nil {
		return Template{}, err
	}
	return t, nil
}

// MarshalTemplate serializes a custom template.
func MarshalTemplate(t Template) ([]byte, error) {
	return yaml.Marshal(t)
}
