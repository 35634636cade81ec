package memory

import (
	"bytes"
	"path"
	"strings"

	"github.com/aretw0/lockbox/pkg/core"
)

type fileClass int

const (
	fileOther fileClass = iota
	fileManifest
	filePlaceholder
	fileRecord
	fileTemplate
	fileLegacyRecord
)

func classify(p string) fileClass {
	if p == core.ManifestPath {
		return fileManifest
	}
	parts := strings.Split(p, "/")
	switch {
	case len(parts) == 2 && parts[1] == core.Placeholder && (parts[0] == core.CredentialsDir || parts[0] == core.TypesDir):
		return filePlaceholder
	case len(parts) == 3 && parts[0] == core.CredentialsDir && parts[2] == core.RecordFile:
		return fileRecord
	case len(parts) == 2 && parts[0] == core.TypesDir && path.Ext(parts[1]) == ".yaml":
		return fileTemplate
	case len(parts) == 2 && parts[0] == core.CredentialsDir && path.Ext(parts[1]) == ".yaml":
		return fileLegacyRecord
	}
	return fileOther
}

// recordDir returns the directory name of a record path.
func recordDir(p string) string {
	return path.Base(path.Dir(p))
}

// Materialize serializes the in-memory state back into a FileMap. Calling it
// twice without a mutation in between yields identical bytes. It does not
// clear the dirty flag.
func (r *Repository) Materialize() (core.FileMap, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	files := make(core.FileMap, len(r.records)+len(r.templates)+len(r.extras)+3)

	manifest, err := r.manifest.Marshal()
	if err != nil {
		return nil, core.NewError(core.ErrSchema, "materialize", err).WithPath(core.ManifestPath)
	}
	files[core.ManifestPath] = manifest
	files[path.Join(core.CredentialsDir, core.Placeholder)] = []byte{}
	files[path.Join(core.TypesDir, core.Placeholder)] = []byte{}

	for id, c := range r.records {
		data, err := core.MarshalCredential(c)
		if err != nil {
			return nil, core.NewError(core.ErrSchema, "materialize", err).WithID(id)
		}
		files[core.RecordPath(id)] = data
	}
	for name, t := range r.templates {
		data, err := core.MarshalTemplate(t)
		if err != nil {
			return nil, core.NewError(core.ErrSchema, "materialize", err).WithPath(core.TemplatePath(name))
		}
		files[core.TemplatePath(name)] = data
	}
	for p, data := range r.extras {
		if _, taken := files[p]; !taken {
			files[p] = bytes.Clone(data)
		}
	}
	return files, nil
}
