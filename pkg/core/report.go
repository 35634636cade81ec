package core

import "fmt"

// Severity ranks validation issues.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IssueKind classifies a validation issue.
type IssueKind string

const (
	KindMissingManifest    IssueKind = "missing-manifest"
	KindMissingDirectory   IssueKind = "missing-directory"
	KindMalformedFile      IssueKind = "malformed-file"
	KindSchemaViolation    IssueKind = "schema-violation"
	KindLegacyFormat       IssueKind = "legacy-format"
	KindUnsupportedVersion IssueKind = "unsupported-version"
	KindOrphanedReference  IssueKind = "orphaned-reference"
	KindExtraneousFile     IssueKind = "extraneous-file"
)

// Issue codes narrow a kind down to the specific check that fired.
const (
	CodeMissingManifest  = "missing-manifest"
	CodeMissingDirectory = "missing-directory"
	CodeMalformedYAML    = "malformed-yaml"
	CodeInvalidSchema    = "invalid-schema"
	CodeLegacyVersion    = "legacy-version"
	CodeLegacyLayout     = "legacy-layout"
	CodeFutureVersion    = "future-version"
	CodeEmptyID          = "empty-id"
	CodeEmptyName        = "empty-name"
	CodeMisplacedRecord  = "misplaced-record"
	CodeDuplicateID      = "duplicate-id"
	CodeDuplicateField   = "duplicate-field"
	CodeDuplicateTag     = "duplicate-tag"
	CodeMissingRecord    = "missing-record"
	CodeStrayFile        = "stray-file"
	CodeSkippedRecord    = "skipped-record"
	CodeInvalidTOTP      = "invalid-totp-secret"
)

// Issue is a single finding of a validation pass.
type Issue struct {
	Severity   Severity  `json:"severity" yaml:"severity"`
	Kind       IssueKind `json:"kind" yaml:"kind"`
	Code       string    `json:"code" yaml:"code"`
	Path       string    `json:"path" yaml:"path"`
	RecordID   string    `json:"record_id,omitempty" yaml:"record_id,omitempty"`
	Detail     string    `json:"detail,omitempty" yaml:"detail,omitempty"`
	Repairable bool      `json:"repairable" yaml:"repairable"`
	Repaired   bool      `json:"repaired" yaml:"repaired"`
}

// Key identifies the issue across validation passes.
func (i Issue) Key() string {
	return i.Code + "\x00" + i.Path
}

func (i Issue) String() string {
	s := fmt.Sprintf("[%s] %s %s", i.Severity, i.Kind, i.Path)
	if i.Detail != "" {
		s += ": " + i.Detail
	}
	if i.Repaired {
		s += " (repaired)"
	}
	return s
}

// Report is the ordered result of a validation pass.
type Report struct {
	Issues []Issue `json:"issues" yaml:"issues"`
}

// Add appends an issue.
func (r *Report) Add(i Issue) {
	r.Issues = append(r.Issues, i)
}

// Empty reports whether nothing was found.
func (r Report) Empty() bool {
	return len(r.Issues) == 0
}

// Blocking returns the critical issues that were not repaired.
func (r Report) Blocking() []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityCritical && !i.Repaired {
			out = append(out, i)
		}
	}
	return out
}

// HasBlocking reports whether any critical issue remains unrepaired.
func (r Report) HasBlocking() bool {
	return len(r.Blocking()) > 0
}

// RepairedCount returns how many issues were repaired.
func (r Report) RepairedCount() int {
	n := 0
	for _, i := range r.Issues {
		if i.Repaired {
			n++
		}
	}
	return n
}

// Find returns the first issue with the given code.
func (r Report) Find(code string) (Issue, bool) {
	for _, i := range r.Issues {
		if i.Code == code {
			return i, true
		}
	}
	return Issue{}, false
}

// ReportSummary counts issues by severity.
type ReportSummary struct {
	Info     int `json:"info"`
	Warning  int `json:"warning"`
	Critical int `json:"critical"`
	Repaired int `json:"repaired"`
}

// Summary counts the issues.
func (r Report) Summary() ReportSummary {
	var s ReportSummary
	for _, i := range r.Issues {
		switch i.Severity {
		case SeverityInfo:
			s.Info++
		case SeverityWarning:
			s.Warning++
		case SeverityCritical:
			s.Critical++
		}
		if i.Repaired {
			s.Repaired++
		}
	}
	return s
}
