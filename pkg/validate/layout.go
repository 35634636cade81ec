package validate

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/lockbox/pkg/core"
)

const (
	recordPattern     = "credentials/*/" + core.RecordFile
	legacyPattern     = "credentials/*.{yaml,yml}"
	templatePattern   = "types/*.yaml"
	quarantinePattern = core.QuarantineDir + "/**"
)

type fileClass int

const (
	classStray fileClass = iota
	classManifest
	classPlaceholder
	classRecord
	classLegacyRecord
	classTemplate
	classRecordAttachment
	classQuarantined
)

func matches(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}

func classify(p string) fileClass {
	switch {
	case p == core.ManifestPath:
		return classManifest
	case p == path.Join(core.CredentialsDir, core.Placeholder), p == path.Join(core.TypesDir, core.Placeholder):
		return classPlaceholder
	case matches(quarantinePattern, p):
		return classQuarantined
	case matches(recordPattern, p):
		return classRecord
	case matches(legacyPattern, p):
		return classLegacyRecord
	case matches(templatePattern, p):
		return classTemplate
	}
	if dir, ok := recordDirOf(p); ok && dir != "" {
		return classRecordAttachment
	}
	return classStray
}

// recordDirOf returns the record directory a nested credentials path lives in.
func recordDirOf(p string) (string, bool) {
	parts := strings.Split(p, "/")
	if len(parts) < 3 || parts[0] != core.CredentialsDir {
		return "", false
	}
	return parts[1], true
}

// legacyID derives the identifier of a flat v1 record from its file name.
func legacyID(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

func validSegment(s string) bool {
	return s != "" && !strings.HasPrefix(s, ".") && !strings.ContainsAny(s, "/\\")
}
