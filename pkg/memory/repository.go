// Package memory holds the decrypted vault model. It never touches
// persistent storage.
package memory

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/lockbox/pkg/core"
)

// errLegacyLayout marks a flat v1 record file. Only migration reads those.
var errLegacyLayout = errors.New("flat legacy record, repair migrates it")

// Repository is the in-memory store of one open vault.
// Mutations apply in call order and are visible to the next read.
type Repository struct {
	mu        sync.RWMutex
	manifest  core.Manifest
	records   map[string]core.Credential
	templates map[string]core.Template
	extras    core.FileMap
	skipped   []error
	dirty     bool

	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(gen func() string) Option {
	return func(r *Repository) { r.newID = gen }
}

// New returns an empty repository with a fresh manifest.
func New(opts ...Option) *Repository {
	r := &Repository{
		records:   make(map[string]core.Credential),
		templates: make(map[string]core.Template),
		extras:    core.FileMap{},
		logger:    slog.New(slog.DiscardHandler),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.manifest = core.NewManifest(r.now())
	return r
}

func (r *Repository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Second)
}

// Load replaces the repository content with the records in files.
// Records and templates that cannot be parsed are skipped and returned as
// *core.Error values carrying their path. Their bytes stay where they were,
// so a later materialize writes them back untouched; moving them aside is
// left to repair. An unreadable manifest is replaced and its bytes are kept
// under quarantine/. Load never marks the repository dirty.
func (r *Repository) Load(files core.FileMap) []error {
	var (
		skipped   []error
		manifest  core.Manifest
		records   = make(map[string]core.Credential)
		templates = make(map[string]core.Template)
		extras    = core.FileMap{}
	)

	skip := func(p string, data []byte, err *core.Error) {
		skipped = append(skipped, err)
		extras[p] = data
	}

	if data, ok := files[core.ManifestPath]; ok {
		m, err := core.ParseManifest(data)
		if err != nil {
			skipped = append(skipped, core.NewError(core.ErrSchema, "load", err).WithPath(core.ManifestPath))
			extras[uniquePath(files, extras, core.QuarantinePath(core.ManifestPath))] = data
			manifest = core.NewManifest(r.now())
		} else {
			manifest = m
		}
	} else {
		manifest = core.NewManifest(r.now())
	}

	for _, p := range files.Paths() {
		data := files[p]
		switch classify(p) {
		case fileManifest, filePlaceholder:
		case fileRecord:
			c, err := core.ParseCredential(data)
			if err == nil {
				if c.ID == "" {
					c.ID = recordDir(p)
				}
				if err = checkID(c.ID); err == nil {
					err = c.Check()
				}
			}
			if err != nil {
				skip(p, data, core.NewError(core.ErrSchema, "load", err).WithPath(p).WithID(recordDir(p)))
				continue
			}
			if _, dup := records[c.ID]; dup {
				skip(p, data, core.NewError(core.ErrDuplicate, "load", nil).WithPath(p).WithID(c.ID))
				continue
			}
			c.Tags = core.NormalizeTags(c.Tags)
			records[c.ID] = c
		case fileLegacyRecord:
			id := strings.TrimSuffix(path.Base(p), ".yaml")
			skip(p, data, core.NewError(core.ErrSchema, "load", errLegacyLayout).WithPath(p).WithID(id))
		case fileTemplate:
			t, err := core.ParseTemplate(data)
			if err != nil {
				skip(p, data, core.NewError(core.ErrSchema, "load", err).WithPath(p))
				continue
			}
			templates[t.Name] = t
		default:
			extras[p] = data
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.manifest = manifest
	r.records = records
	r.templates = templates
	r.extras = extras
	r.skipped = skipped
	r.dirty = false

	r.logger.Debug("repository loaded", "records", len(records), "skipped", len(skipped))
	return skipped
}

// Add stores a new credential and returns its identifier.
func (r *Repository) Add(c core.Credential) (string, error) {
	if err := c.Check(); err != nil {
		return "", core.NewError(core.ErrSchema, "add", err).WithID(c.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" {
		for {
			c.ID = r.newID()
			if !r.taken(c.ID) {
				break
			}
		}
	} else {
		if err := checkID(c.ID); err != nil {
			return "", core.NewError(core.ErrSchema, "add", err).WithID(c.ID)
		}
		if r.taken(c.ID) {
			return "", core.NewError(core.ErrDuplicate, "add", nil).WithID(c.ID)
		}
	}

	now := r.timestamp()
	c = c.Clone()
	c.Tags = core.NormalizeTags(c.Tags)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.ModifiedAt = now
	r.records[c.ID] = c
	r.dirty = true
	return c.ID, nil
}

// Skipped returns the errors of the entries the last Load left out.
func (r *Repository) Skipped() []error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.skipped)
}

// taken reports whether id is used by a loaded record or by a record file
// that was skipped on load.
func (r *Repository) taken(id string) bool {
	if _, ok := r.records[id]; ok {
		return true
	}
	_, ok := r.extras[core.RecordPath(id)]
	return ok
}

// Get returns a copy of the credential.
func (r *Repository) Get(id string) (core.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.records[id]
	if !ok {
		return core.Credential{}, core.NewError(core.ErrNotFound, "get", nil).WithID(id)
	}
	return c.Clone(), nil
}

// Update replaces the credential stored under id. The identifier and
// creation time are preserved.
func (r *Repository) Update(id string, c core.Credential) error {
	if c.ID != "" && c.ID != id {
		return core.NewError(core.ErrSchema, "update", fmt.Errorf("identifier is immutable, got %q", c.ID)).WithID(id)
	}
	c.ID = id
	if err := c.Check(); err != nil {
		return core.NewError(core.ErrSchema, "update", err).WithID(id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.records[id]
	if !ok {
		return core.NewError(core.ErrNotFound, "update", nil).WithID(id)
	}
	c = c.Clone()
	c.Tags = core.NormalizeTags(c.Tags)
	c.CreatedAt = old.CreatedAt
	c.ModifiedAt = r.timestamp()
	r.records[id] = c
	r.dirty = true
	return nil
}

// Delete removes the credential and every file kept under its directory.
func (r *Repository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return core.NewError(core.ErrNotFound, "delete", nil).WithID(id)
	}
	delete(r.records, id)
	prefix := path.Join(core.CredentialsDir, id) + "/"
	for p := range r.extras {
		if strings.HasPrefix(p, prefix) {
			delete(r.extras, p)
		}
	}
	r.dirty = true
	return nil
}

// List returns every credential ordered by name, then identifier.
func (r *Repository) List() []core.Credential {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Credential, 0, len(r.records))
	for _, c := range r.records {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return lessByName(out[i], out[j]) })
	return out
}

// Len returns the number of credentials.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Manifest returns the repository manifest.
func (r *Repository) Manifest() core.Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.manifest
}

// Templates returns the built-in templates followed by the custom ones.
func (r *Repository) Templates() []core.Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := core.BuiltinTemplates()
	custom := make([]core.Template, 0, len(r.templates))
	for _, t := range r.templates {
		custom = append(custom, t)
	}
	sort.Slice(custom, func(i, j int) bool { return custom[i].Name < custom[j].Name })
	return append(out, custom...)
}

// Template resolves a template by name, custom ones shadowing built-ins.
func (r *Repository) Template(name string) (core.Template, bool) {
	r.mu.RLock()
	t, ok := r.templates[name]
	r.mu.RUnlock()
	if ok {
		return t, true
	}
	return core.BuiltinTemplate(name)
}

// PutTemplate stores a custom template.
func (r *Repository) PutTemplate(t core.Template) error {
	if err := t.Check(); err != nil {
		return core.NewError(core.ErrSchema, "put template", err)
	}
	if err := checkID(t.Name); err != nil {
		return core.NewError(core.ErrSchema, "put template", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t.BuiltIn = false
	r.templates[t.Name] = t
	r.dirty = true
	return nil
}

// Dirty reports whether there are unsaved mutations.
func (r *Repository) Dirty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dirty
}

// MarkDirty flags the repository as changed.
func (r *Repository) MarkDirty() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirty = true
}

// MarkClean clears the dirty flag. Only a successful persist should call it.
func (r *Repository) MarkClean() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirty = false
}

// Reset drops every record and kept file.
func (r *Repository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.records)
	clear(r.templates)
	clear(r.extras)
	r.skipped = nil
	r.dirty = false
}

func lessByName(a, b core.Credential) bool {
	an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
	if an != bn {
		return an < bn
	}
	return a.ID < b.ID
}

// checkID rejects identifiers that cannot be used as a single path segment.
func checkID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, "/\\") || strings.HasPrefix(id, ".") {
		return fmt.Errorf("invalid identifier %q", id)
	}
	return nil
}

// uniquePath returns p, or p with a numeric suffix if it is already taken.
func uniquePath(existing, pending core.FileMap, p string) string {
	candidate := p
	for n := 1; ; n++ {
		_, a := existing[candidate]
		_, b := pending[candidate]
		if !a && !b {
			return candidate
		}
		candidate = fmt.Sprintf("%s.%d", p, n)
	}
}
