package core

import "context"

// FileProvider moves archive bytes in and out of persistent storage.
// The same instance serves sequential handles; it is shared, never owned.
type FileProvider interface {
	// ReadArchive returns the archive at locator. Failures wrap ErrIO with
	// ErrArchiveNotFound or ErrPermissionDenied as cause where known.
	ReadArchive(ctx context.Context, locator string) ([]byte, error)

	// WriteArchive replaces the archive at locator. A cancelled or failed
	// write must leave the previous archive intact.
	WriteArchive(ctx context.Context, locator string, data []byte) error
}

// Locker is implemented by providers that can hold an exclusive lock on a
// locator across processes.
type Locker interface {
	// Lock blocks until the lock is held or the wait bound expires with
	// ErrLockTimeout. The returned func releases it.
	Lock(ctx context.Context, locator string) (unlock func() error, err error)
}

// Watcher is implemented by providers that can report replacement of an
// archive by someone else.
type Watcher interface {
	Watch(ctx context.Context, locator string, notify func(Event)) (stop func() error, err error)
}

// Delegated is implemented by providers whose I/O is performed by the host.
type Delegated interface {
	Delegated() bool
}

// Host performs storage on behalf of the core when it cannot touch the
// filesystem itself.
//
// Exchange receives a FileMap keyed by locator. An entry with nil content
// asks for the stored bytes; an entry with content asks the host to store
// it. The host answers with the same keys: the stored bytes for reads and
// the accepted bytes for writes. A missing key in the answer means the
// locator does not exist.
type Host interface {
	Exchange(ctx context.Context, request FileMap) (FileMap, error)
}

// HostFunc adapts a function to Host.
type HostFunc func(ctx context.Context, request FileMap) (FileMap, error)

// Exchange implements Host.
func (f HostFunc) Exchange(ctx context.Context, request FileMap) (FileMap, error) {
	return f(ctx, request)
}

// IsDelegated reports whether p hands its I/O to the host.
func IsDelegated(p FileProvider) bool {
	d, ok := p.(Delegated)
	return ok && d.Delegated()
}
