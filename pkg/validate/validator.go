// Package validate inspects a decoded FileMap for structural, schema and
// legacy-format problems and repairs the ones it can.
package validate

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/lockbox/pkg/core"
	"github.com/aretw0/lockbox/pkg/totp"
)

// Options are the validation policy knobs.
type Options struct {
	DeepValidation       bool `yaml:"deep_validation"`
	CheckLegacyFormats   bool `yaml:"check_legacy_formats"`
	ValidateSchemas      bool `yaml:"validate_schemas"`
	AutoRepair           bool `yaml:"auto_repair"`
	FailOnCriticalIssues bool `yaml:"fail_on_critical_issues"`
}

// DefaultOptions enables every check, repairs automatically and refuses to
// open with unrepaired critical issues.
func DefaultOptions() Options {
	return Options{
		DeepValidation:       true,
		CheckLegacyFormats:   true,
		ValidateSchemas:      true,
		AutoRepair:           true,
		FailOnCriticalIssues: true,
	}
}

// Validator runs validation passes. It is safe for concurrent use.
type Validator struct {
	opts        Options
	logger      *slog.Logger
	now         func() time.Time
	concurrency int
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithClock overrides the time source used for migration lineage.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// WithConcurrency bounds parallel record parsing.
func WithConcurrency(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.concurrency = n
		}
	}
}

// New returns a Validator for the given policy.
func New(opts Options, vopts ...Option) *Validator {
	v := &Validator{
		opts:        opts,
		logger:      slog.New(slog.DiscardHandler),
		now:         time.Now,
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, o := range vopts {
		o(v)
	}
	return v
}

// Options returns the policy.
func (v *Validator) Options() Options {
	return v.opts
}

type parsedRecord struct {
	path   string
	dir    string
	legacy bool
	cred   core.Credential
	err    error
	syntax bool
}

type scan struct {
	files     core.FileMap
	manifest  *core.Manifest
	records   []parsedRecord
	templates []parsedRecord
	legacy    []string
}

// Validate inspects files without modifying them. Issues are ordered by
// check stage, then by path.
func (v *Validator) Validate(ctx context.Context, files core.FileMap) (core.Report, error) {
	s := &scan{files: files}
	var report core.Report

	v.checkStructure(s, &report)
	if err := v.checkSchemas(ctx, s, &report); err != nil {
		return core.Report{}, err
	}
	v.checkLegacy(s, &report)
	if v.opts.DeepValidation {
		v.checkContent(s, &report)
	}

	v.logger.Debug("validation finished", "files", len(files), "issues", len(report.Issues))
	return report, nil
}

func (v *Validator) schemaSeverity() core.Severity {
	if v.opts.ValidateSchemas {
		return core.SeverityCritical
	}
	return core.SeverityWarning
}

// checkStructure looks for the manifest, the required directories and files
// that do not belong to the layout.
func (v *Validator) checkStructure(s *scan, r *core.Report) {
	if _, ok := s.files[core.ManifestPath]; !ok {
		r.Add(core.Issue{
			Severity:   core.SeverityCritical,
			Kind:       core.KindMissingManifest,
			Code:       core.CodeMissingManifest,
			Path:       core.ManifestPath,
			Repairable: true,
		})
	}
	for _, dir := range []string{core.CredentialsDir, core.TypesDir} {
		if !s.files.HasPrefix(dir) {
			r.Add(core.Issue{
				Severity:   core.SeverityCritical,
				Kind:       core.KindMissingDirectory,
				Code:       core.CodeMissingDirectory,
				Path:       dir + "/",
				Repairable: true,
			})
		}
	}

	for _, p := range s.files.Paths() {
		switch classify(p) {
		case classRecord:
			s.records = append(s.records, parsedRecord{path: p, dir: path.Base(path.Dir(p))})
		case classLegacyRecord:
			s.legacy = append(s.legacy, p)
			s.records = append(s.records, parsedRecord{path: p, dir: legacyID(p), legacy: true})
		case classTemplate:
			s.templates = append(s.templates, parsedRecord{path: p})
		case classStray:
			r.Add(core.Issue{
				Severity: core.SeverityWarning,
				Kind:     core.KindExtraneousFile,
				Code:     core.CodeStrayFile,
				Path:     p,
			})
		}
	}
}

// checkSchemas parses the manifest, every record and every template.
func (v *Validator) checkSchemas(ctx context.Context, s *scan, r *core.Report) error {
	if data, ok := s.files[core.ManifestPath]; ok {
		syntax, err := checkSyntax(data)
		var m core.Manifest
		if err == nil {
			m, err = core.ParseManifest(data)
		}
		if err != nil {
			r.Add(schemaIssue(core.ManifestPath, syntax, err, v.schemaSeverity()))
		} else {
			s.manifest = &m
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)
	parse := func(items []parsedRecord, fn func(*parsedRecord, []byte)) {
		for i := range items {
			item := &items[i]
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				fn(item, s.files[item.path])
				return nil
			})
		}
	}
	parse(s.records, func(pr *parsedRecord, data []byte) {
		if pr.syntax, pr.err = checkSyntax(data); pr.err == nil {
			pr.cred, pr.err = core.ParseCredential(data)
		}
	})
	parse(s.templates, func(pr *parsedRecord, data []byte) {
		if pr.syntax, pr.err = checkSyntax(data); pr.err == nil {
			_, pr.err = core.ParseTemplate(data)
		}
	})
	if err := g.Wait(); err != nil {
		return err
	}

	for _, items := range [][]parsedRecord{s.records, s.templates} {
		for _, pr := range items {
			if pr.err != nil {
				r.Add(schemaIssue(pr.path, pr.syntax, pr.err, v.schemaSeverity()))
			}
		}
	}
	return nil
}

// checkSyntax reports a YAML syntax error separately from schema errors.
func checkSyntax(data []byte) (syntax bool, err error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return true, err
	}
	return false, nil
}

func schemaIssue(p string, syntax bool, err error, sev core.Severity) core.Issue {
	issue := core.Issue{
		Severity:   sev,
		Kind:       core.KindSchemaViolation,
		Code:       core.CodeInvalidSchema,
		Path:       p,
		Detail:     err.Error(),
		Repairable: true,
	}
	if syntax {
		issue.Kind = core.KindMalformedFile
		issue.Code = core.CodeMalformedYAML
	}
	return issue
}

// checkLegacy compares the manifest version and looks for the flat layout.
func (v *Validator) checkLegacy(s *scan, r *core.Report) {
	legacySeverity, repairable := core.SeverityWarning, false
	if v.opts.CheckLegacyFormats {
		legacySeverity, repairable = core.SeverityCritical, true
	}

	if s.manifest != nil {
		switch version := s.manifest.FormatVersion; {
		case version > core.CurrentFormatVersion:
			r.Add(core.Issue{
				Severity: core.SeverityCritical,
				Kind:     core.KindUnsupportedVersion,
				Code:     core.CodeFutureVersion,
				Path:     core.ManifestPath,
				Detail:   fmt.Sprintf("format version %d is newer than %d", version, core.CurrentFormatVersion),
			})
		case version < core.CurrentFormatVersion:
			r.Add(core.Issue{
				Severity:   legacySeverity,
				Kind:       core.KindLegacyFormat,
				Code:       core.CodeLegacyVersion,
				Path:       core.ManifestPath,
				Detail:     fmt.Sprintf("format version %d, current is %d", version, core.CurrentFormatVersion),
				Repairable: repairable,
			})
		}
	}
	for _, p := range s.legacy {
		r.Add(core.Issue{
			Severity:   legacySeverity,
			Kind:       core.KindLegacyFormat,
			Code:       core.CodeLegacyLayout,
			Path:       p,
			RecordID:   legacyID(p),
			Repairable: repairable,
		})
	}
}

// checkContent runs per-record consistency checks. Cost grows with the
// number of records.
func (v *Validator) checkContent(s *scan, r *core.Report) {
	owners := map[string]string{}
	dirs := map[string]bool{}
	for _, pr := range s.records {
		if pr.legacy {
			continue
		}
		dirs[pr.dir] = true
		if pr.err == nil && pr.cred.ID != "" {
			if _, taken := owners[pr.cred.ID]; !taken || pr.cred.ID == pr.dir {
				owners[pr.cred.ID] = pr.path
			}
		}
	}

	for _, pr := range s.records {
		if pr.legacy || pr.err != nil {
			continue
		}
		c := pr.cred
		switch {
		case c.ID == "":
			r.Add(core.Issue{
				Severity:   core.SeverityCritical,
				Kind:       core.KindSchemaViolation,
				Code:       core.CodeEmptyID,
				Path:       pr.path,
				Repairable: true,
			})
		case c.ID != pr.dir && (dirs[c.ID] || owners[c.ID] != pr.path):
			r.Add(core.Issue{
				Severity:   core.SeverityCritical,
				Kind:       core.KindOrphanedReference,
				Code:       core.CodeDuplicateID,
				Path:       pr.path,
				RecordID:   c.ID,
				Detail:     "identifier already used by another record",
				Repairable: true,
			})
		case c.ID != pr.dir:
			r.Add(core.Issue{
				Severity:   core.SeverityWarning,
				Kind:       core.KindOrphanedReference,
				Code:       core.CodeMisplacedRecord,
				Path:       pr.path,
				RecordID:   c.ID,
				Detail:     fmt.Sprintf("record %q stored under %q", c.ID, pr.dir),
				Repairable: validSegment(c.ID),
			})
		}

		if strings.TrimSpace(c.Name) == "" {
			r.Add(core.Issue{
				Severity: core.SeverityCritical,
				Kind:     core.KindSchemaViolation,
				Code:     core.CodeEmptyName,
				Path:     pr.path,
				RecordID: c.ID,
			})
		}
		if dup := duplicateFields(c); len(dup) > 0 {
			r.Add(core.Issue{
				Severity:   core.SeverityWarning,
				Kind:       core.KindSchemaViolation,
				Code:       core.CodeDuplicateField,
				Path:       pr.path,
				RecordID:   c.ID,
				Detail:     strings.Join(dup, ", "),
				Repairable: true,
			})
		}
		if hasDuplicateTags(c.Tags) {
			r.Add(core.Issue{
				Severity:   core.SeverityInfo,
				Kind:       core.KindSchemaViolation,
				Code:       core.CodeDuplicateTag,
				Path:       pr.path,
				RecordID:   c.ID,
				Repairable: true,
			})
		}
		for _, f := range c.Fields {
			if f.Type != core.FieldTOTPSecret || f.Value == "" {
				continue
			}
			if err := totp.Validate(f.Value); err != nil {
				r.Add(core.Issue{
					Severity: core.SeverityWarning,
					Kind:     core.KindSchemaViolation,
					Code:     core.CodeInvalidTOTP,
					Path:     pr.path,
					RecordID: c.ID,
					Detail:   fmt.Sprintf("field %q: %v", f.Name, err),
				})
			}
		}
	}

	// Files inside record directories.
	withRecord := map[string]bool{}
	for _, pr := range s.records {
		if !pr.legacy {
			withRecord[pr.dir] = true
		}
	}
	var missing []string
	seenMissing := map[string]bool{}
	for _, p := range s.files.Paths() {
		if classify(p) != classRecordAttachment {
			continue
		}
		dir, _ := recordDirOf(p)
		if withRecord[dir] {
			r.Add(core.Issue{
				Severity: core.SeverityWarning,
				Kind:     core.KindExtraneousFile,
				Code:     core.CodeStrayFile,
				Path:     p,
				RecordID: dir,
			})
		} else if !seenMissing[dir] {
			seenMissing[dir] = true
			missing = append(missing, dir)
		}
	}
	sort.Strings(missing)
	for _, dir := range missing {
		r.Add(core.Issue{
			Severity: core.SeverityWarning,
			Kind:     core.KindOrphanedReference,
			Code:     core.CodeMissingRecord,
			Path:     core.RecordPath(dir),
			RecordID: dir,
			Detail:   "directory has files but no record",
		})
	}
}

func duplicateFields(c core.Credential) []string {
	seen := map[string]int{}
	var dup []string
	for _, f := range c.Fields {
		seen[f.Name]++
		if seen[f.Name] == 2 {
			dup = append(dup, f.Name)
		}
	}
	return dup
}

func hasDuplicateTags(tags []string) bool {
	seen := map[string]bool{}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if seen[t] {
			return true
		}
		seen[t] = true
	}
	return false
}
