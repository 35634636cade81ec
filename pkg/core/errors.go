package core

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Match them with errors.Is.
var (
	ErrAuth           = errors.New("authentication failed")
	ErrCorruption     = errors.New("archive is corrupted")
	ErrValidation     = errors.New("repository failed validation")
	ErrSchema         = errors.New("record does not match schema")
	ErrDuplicate      = errors.New("duplicate identifier")
	ErrNotFound       = errors.New("record not found")
	ErrAlreadyOpen    = errors.New("repository already open")
	ErrNotOpen        = errors.New("repository not open")
	ErrInvalidState   = errors.New("operation not allowed in current state")
	ErrLockTimeout    = errors.New("timed out acquiring archive lock")
	ErrIO             = errors.New("storage i/o failure")
	ErrCrypto         = errors.New("cryptographic failure")
	ErrWeakPassphrase = errors.New("passphrase does not meet policy")
)

// Storage causes, carried inside ErrIO failures.
var (
	ErrArchiveNotFound  = errors.New("archive not found")
	ErrArchiveExists    = errors.New("archive already exists")
	ErrPermissionDenied = errors.New("permission denied")
	ErrQuotaExceeded    = errors.New("storage quota exceeded")
)

// Error is a failure annotated with the operation and the affected
// locator, path or record.
type Error struct {
	Kind error
	Op   string
	Path string
	ID   string
	Err  error
}

// NewError builds an Error of the given kind.
func NewError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithPath sets the affected path.
func (e *Error) WithPath(p string) *Error {
	e.Path = p
	return e
}

// WithID sets the affected record identifier.
func (e *Error) WithID(id string) *Error {
	e.ID = id
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
	}
	if e.Path != "" {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(e.Path)
	}
	if e.ID != "" {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "[%s]", e.ID)
	}
	if b.Len() > 0 {
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		if e.Kind != nil {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// ValidationError carries the report of a repository that failed validation.
type ValidationError struct {
	Report Report
}

func (e *ValidationError) Error() string {
	blocking := e.Report.Blocking()
	if len(blocking) == 0 {
		return ErrValidation.Error()
	}
	return fmt.Sprintf("%s: %d critical issue(s), first: %s", ErrValidation, len(blocking), blocking[0])
}

// Unwrap makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// IsRetriable reports whether retrying the same call may succeed.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrIO) || errors.Is(err, ErrLockTimeout)
}

// IsFatal reports archive-level failures that retrying cannot fix.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuth) || errors.Is(err, ErrCorruption) || errors.Is(err, ErrCrypto)
}

// KindOf returns the first kind sentinel matched by err, or nil.
func KindOf(err error) error {
	for _, k := range []error{
		ErrAuth, ErrCorruption, ErrValidation, ErrSchema, ErrDuplicate, ErrNotFound,
		ErrAlreadyOpen, ErrNotOpen, ErrInvalidState, ErrLockTimeout, ErrIO, ErrCrypto,
		ErrWeakPassphrase,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
