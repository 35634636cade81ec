package validate

import (
	"fmt"
	"path"
	"time"

	"github.com/aretw0/lockbox/pkg/core"
)

// Migrate upgrades files from format version from to the current format and
// returns the upgraded copy. It is the only place where the layout changes
// format; the codec never migrates.
//
// Version 1 stored records as flat credentials/<id>.yaml files. They move to
// credentials/<id>/record.yaml; a file whose target is taken is quarantined.
func Migrate(files core.FileMap, from int, now time.Time) (core.FileMap, error) {
	if from < 1 {
		return nil, fmt.Errorf("migrate: invalid source version %d", from)
	}
	if from > core.CurrentFormatVersion {
		return nil, fmt.Errorf("migrate: version %d is newer than %d", from, core.CurrentFormatVersion)
	}
	log := &repairLog{moves: map[string]string{}}
	out := files.Clone()
	m := core.NewManifest(now)
	if data, ok := out[core.ManifestPath]; ok {
		parsed, err := core.ParseManifest(data)
		if err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		m = parsed
	}
	m.FormatVersion = from
	data, err := m.Marshal()
	if err != nil {
		return nil, err
	}
	out[core.ManifestPath] = data
	return migrate(out, log, now)
}

// migrate moves flat records and bumps the manifest. It mutates files, so
// callers hand it a copy.
func migrate(files core.FileMap, log *repairLog, now time.Time) (core.FileMap, error) {
	m := core.NewManifest(now)
	if data, ok := files[core.ManifestPath]; ok {
		parsed, err := core.ParseManifest(data)
		if err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		m = parsed
	}
	if m.FormatVersion > core.CurrentFormatVersion {
		return nil, fmt.Errorf("migrate: version %d is newer than %d", m.FormatVersion, core.CurrentFormatVersion)
	}

	for _, p := range files.Paths() {
		if classify(p) != classLegacyRecord {
			continue
		}
		id := legacyID(p)
		target := core.RecordPath(id)
		if !validSegment(id) || files.HasPrefix(path.Dir(target)) {
			if err := quarantine(files, log, p); err != nil {
				return nil, err
			}
			continue
		}
		if err := relocate(files, log, p, target); err != nil {
			return nil, err
		}
	}

	if m.FormatVersion < core.CurrentFormatVersion {
		m.Lineage = append(m.Lineage, core.Migration{
			From: m.FormatVersion,
			To:   core.CurrentFormatVersion,
			At:   now.UTC().Truncate(time.Second),
		})
		m.FormatVersion = core.CurrentFormatVersion
	}
	data, err := m.Marshal()
	if err != nil {
		return nil, err
	}
	files[core.ManifestPath] = data

	for _, dir := range []string{core.CredentialsDir, core.TypesDir} {
		if !files.HasPrefix(dir) {
			files[path.Join(dir, core.Placeholder)] = []byte{}
		}
	}
	return files, nil
}
