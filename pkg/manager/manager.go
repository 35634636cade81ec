// Package manager runs the vault lifecycle: it opens an archive through a
// file provider, validates and repairs it, holds the decrypted repository
// while open and persists it back on save and close.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/lockbox/pkg/codec"
	"github.com/aretw0/lockbox/pkg/core"
	"github.com/aretw0/lockbox/pkg/execution"
	"github.com/aretw0/lockbox/pkg/memory"
	"github.com/aretw0/lockbox/pkg/password"
	"github.com/aretw0/lockbox/pkg/validate"
)

// Manager owns at most one open vault at a time. Its methods are safe for
// concurrent use; operations are serialized.
type Manager struct {
	provider core.FileProvider
	opts     Options
	adapter  *execution.Adapter
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string

	state  atomic.Int32
	events chan core.Event

	mu         sync.Mutex
	handle     *handle
	lastReport core.Report
	lastFailed State
	saves      int
}

// handle is the open vault: its repository, its key and the resources held
// on its archive. Everything it holds is released together.
type handle struct {
	locator   string
	key       *codec.Key
	repo      *memory.Repository
	unlock    func() error
	stopWatch func() error
	openedAt  time.Time
}

// release stops the watcher, wipes the key, drops the records and unlocks.
func (h *handle) release() error {
	var errs []error
	if h.stopWatch != nil {
		errs = append(errs, h.stopWatch())
		h.stopWatch = nil
	}
	h.key.Wipe()
	if h.repo != nil {
		h.repo.Reset()
	}
	if h.unlock != nil {
		errs = append(errs, h.unlock())
		h.unlock = nil
	}
	return errors.Join(errs...)
}

// New returns a Manager persisting through provider. The provider is shared
// and may serve later managers once this one is closed.
func New(provider core.FileProvider, opts Options, options ...Option) *Manager {
	if opts.EventBuffer < 0 {
		opts.EventBuffer = 0
	}
	m := &Manager{
		provider: provider,
		opts:     opts,
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
		events:   make(chan core.Event, opts.EventBuffer),
	}
	for _, o := range options {
		o(m)
	}
	if m.adapter == nil {
		m.adapter = execution.NewAdapter(execution.WithLogger(m.logger))
	}
	return m
}

// Status returns the current lifecycle state.
func (m *Manager) Status() State {
	return State(m.state.Load())
}

// Events returns the channel on which lifecycle events are published.
func (m *Manager) Events() <-chan core.Event {
	return m.events
}

// LastReport returns the report produced by the most recent open, validate
// or repair.
func (m *Manager) LastReport() core.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReport
}

func (m *Manager) setState(s State) {
	prev := State(m.state.Swap(int32(s)))
	if prev != s {
		m.logger.Debug("state transition", "from", prev.String(), "to", s.String())
	}
}

func (m *Manager) emit(t core.EventType, locator string) {
	e := core.Event{Type: t, Locator: locator, Timestamp: m.now().Unix()}
	select {
	case m.events <- e:
	default:
		m.logger.Debug("event dropped", "type", string(t))
	}
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.opts.OperationTimeout > 0 {
		return context.WithTimeout(ctx, m.opts.OperationTimeout)
	}
	return context.WithCancel(ctx)
}

func (m *Manager) validator() *validate.Validator {
	return validate.New(m.opts.Validation, validate.WithLogger(m.logger), validate.WithClock(m.now))
}

func (m *Manager) newRepository() *memory.Repository {
	opts := []memory.Option{memory.WithLogger(m.logger), memory.WithClock(m.now)}
	if m.newID != nil {
		opts = append(opts, memory.WithIDGenerator(m.newID))
	}
	return memory.New(opts...)
}

func (m *Manager) checkPassphrase(op string, passphrase []byte) error {
	if len(passphrase) < m.opts.MinPassphraseLength {
		return core.NewError(core.ErrWeakPassphrase, op, fmt.Errorf("at least %d bytes required", m.opts.MinPassphraseLength))
	}
	if a := password.AnalyzeBytes(passphrase); a.Strength < password.Fair {
		m.logger.Warn("weak passphrase", "op", op, "strength", a.Strength.String(), "score", a.Score)
	}
	return nil
}

// lock takes the provider's archive lock, if it has one.
func (m *Manager) lock(ctx context.Context, locator string) (func() error, error) {
	l, ok := m.provider.(core.Locker)
	if !ok {
		return nil, nil
	}
	return l.Lock(ctx, locator)
}

// fail ends a failed create or open attempt.
func (m *Manager) fail(h *handle, terminal State, err error) error {
	m.setState(terminal)
	m.lastFailed = terminal
	if releaseErr := h.release(); releaseErr != nil {
		m.logger.Warn("release after failed open", "error", releaseErr)
	}
	m.setState(StateClosed)
	return err
}

// Create writes a new empty vault at locator and leaves it open.
func (m *Manager) Create(ctx context.Context, locator string, passphrase []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Status() != StateClosed {
		return core.NewError(core.ErrAlreadyOpen, "create", nil).WithPath(locator)
	}
	if err := m.checkPassphrase("create", passphrase); err != nil {
		return err
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	op := m.adapter.Begin(ctx, "create", m.provider)
	m.setState(StateOpening)

	h := &handle{locator: locator, repo: m.newRepository()}
	var err error
	if h.unlock, err = m.lock(ctx, locator); err != nil {
		return m.fail(h, StateOpenFailed, err)
	}

	err = op.Run(ctx, "exists", func(ctx context.Context) error {
		_, err := m.provider.ReadArchive(ctx, locator)
		switch {
		case err == nil:
			return core.NewError(core.ErrIO, "create", core.ErrArchiveExists).WithPath(locator)
		case errors.Is(err, core.ErrArchiveNotFound):
			return nil
		}
		return err
	})
	if err != nil {
		return m.fail(h, StateOpenFailed, err)
	}

	err = op.Run(ctx, "derive", func(context.Context) (err error) {
		h.key, err = codec.DeriveKey(passphrase, m.opts.Codec.KDF)
		return err
	})
	if err != nil {
		return m.fail(h, StateOpenFailed, err)
	}

	if err := m.persist(ctx, op, h); err != nil {
		return m.fail(h, StateOpenFailed, err)
	}

	h.openedAt = m.now()
	m.handle = h
	m.lastReport = core.Report{}
	m.startWatch(ctx, h)
	m.setState(StateOpen)
	m.logger.Info("vault created", "locator", locator)
	m.emit(core.EventOpened, locator)
	return nil
}

// Open decrypts, validates and loads the vault at locator. The returned
// report lists what validation found and what was repaired. With
// FailOnCriticalIssues set, unrepaired critical issues fail the open with a
// *core.ValidationError and storage is left untouched.
func (m *Manager) Open(ctx context.Context, locator string, passphrase []byte) (core.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Status() != StateClosed {
		return core.Report{}, core.NewError(core.ErrAlreadyOpen, "open", nil).WithPath(locator)
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	op := m.adapter.Begin(ctx, "open", m.provider)
	m.setState(StateOpening)

	h := &handle{locator: locator}
	var err error
	if h.unlock, err = m.lock(ctx, locator); err != nil {
		return core.Report{}, m.fail(h, StateOpenFailed, err)
	}

	var data []byte
	err = op.Run(ctx, "read", func(ctx context.Context) (err error) {
		data, err = m.provider.ReadArchive(ctx, locator)
		return err
	})
	if err != nil {
		return core.Report{}, m.fail(h, StateOpenFailed, err)
	}

	var files core.FileMap
	err = op.Run(ctx, "decode", func(context.Context) (err error) {
		files, h.key, err = codec.Open(data, passphrase)
		return err
	})
	if err != nil {
		return core.Report{}, m.fail(h, StateOpenFailed, withPath(err, locator))
	}

	m.setState(StateValidating)
	var (
		repaired core.FileMap
		report   core.Report
	)
	err = op.Run(ctx, "validate", func(ctx context.Context) (err error) {
		repaired, report, err = m.validator().ValidateAndRepair(ctx, files)
		return err
	})
	if err != nil {
		return core.Report{}, m.fail(h, StateValidationFailed, err)
	}

	if report.HasBlocking() {
		if m.opts.Validation.FailOnCriticalIssues {
			m.lastReport = report
			m.logger.Warn("vault failed validation", "locator", locator, "critical", len(report.Blocking()))
			return report, m.fail(h, StateValidationFailed, &core.ValidationError{Report: report})
		}
		m.logger.Warn("vault opened with unrepaired critical issues", "locator", locator, "critical", len(report.Blocking()))
	}

	h.repo = m.newRepository()
	if skipped := h.repo.Load(repaired); len(skipped) > 0 {
		m.logger.Warn("records skipped on load", "locator", locator, "skipped", len(skipped))
		reportSkipped(&report, skipped)
	}
	m.lastReport = report

	if report.RepairedCount() > 0 || !repaired.Equal(files) {
		h.repo.MarkDirty()
		if err := m.persist(ctx, op, h); err != nil {
			return report, m.fail(h, StateOpenFailed, err)
		}
		m.logger.Info("vault repaired", "locator", locator, "repaired", report.RepairedCount())
		m.emit(core.EventRepaired, locator)
	}

	h.openedAt = m.now()
	m.handle = h
	m.startWatch(ctx, h)
	m.setState(StateOpen)
	m.logger.Info("vault opened", "locator", locator, "records", h.repo.Len(), "issues", len(report.Issues))
	m.emit(core.EventOpened, locator)
	return report, nil
}

// persist materializes, seals and writes the handle's repository, then
// clears its dirty flag.
func (m *Manager) persist(ctx context.Context, op *execution.Operation, h *handle) error {
	var files core.FileMap
	err := op.Run(ctx, "materialize", func(context.Context) (err error) {
		files, err = h.repo.Materialize()
		return err
	})
	if err != nil {
		return err
	}

	var sealed []byte
	err = op.Run(ctx, "encode", func(context.Context) (err error) {
		sealed, err = codec.Seal(files, h.key, m.opts.Codec.Compression)
		return err
	})
	if err != nil {
		return err
	}

	err = op.Run(ctx, "write", func(ctx context.Context) error {
		return m.provider.WriteArchive(ctx, h.locator, sealed)
	})
	if err != nil {
		return err
	}
	h.repo.MarkClean()
	m.saves++
	return nil
}

func (m *Manager) startWatch(ctx context.Context, h *handle) {
	if !m.opts.Watch {
		return
	}
	w, ok := m.provider.(core.Watcher)
	if !ok {
		return
	}
	stop, err := w.Watch(context.WithoutCancel(ctx), h.locator, func(e core.Event) {
		m.logger.Warn("archive changed outside this session", "locator", e.Locator)
		m.emit(core.EventExternalChange, e.Locator)
	})
	if err != nil {
		m.logger.Warn("archive watch unavailable", "locator", h.locator, "error", err)
		return
	}
	h.stopWatch = stop
}

// open returns the open handle or ErrNotOpen. Callers hold m.mu.
func (m *Manager) open(op string) (*handle, error) {
	if m.Status() != StateOpen || m.handle == nil {
		return nil, core.NewError(core.ErrNotOpen, op, nil)
	}
	return m.handle, nil
}

// Save persists pending changes. It writes nothing when there are none.
func (m *Manager) Save(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, err := m.open("save")
	if err != nil {
		return err
	}
	return m.save(ctx, h)
}

func (m *Manager) save(ctx context.Context, h *handle) error {
	if !h.repo.Dirty() {
		return nil
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	op := m.adapter.Begin(ctx, "save", m.provider)
	if err := m.persist(ctx, op, h); err != nil {
		m.logger.Error("save failed", "locator", h.locator, "error", err)
		return err
	}
	m.logger.Info("vault saved", "locator", h.locator, "records", h.repo.Len())
	m.emit(core.EventSaved, h.locator)
	return nil
}

// Close saves pending changes and releases the vault. If the save fails the
// vault stays open and the error is returned; use Discard to drop changes.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, err := m.open("close")
	if err != nil {
		return err
	}
	if err := m.save(ctx, h); err != nil {
		return err
	}
	m.setState(StateClosing)
	return m.release(h)
}

// Discard releases the vault without saving.
func (m *Manager) Discard(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, err := m.open("discard")
	if err != nil {
		return err
	}
	m.setState(StateClosing)
	if h.repo.Dirty() {
		m.logger.Info("discarding unsaved changes", "locator", h.locator)
	}
	return m.release(h)
}

func (m *Manager) release(h *handle) error {
	err := h.release()
	m.handle = nil
	m.setState(StateClosed)
	m.logger.Info("vault closed", "locator", h.locator)
	m.emit(core.EventClosed, h.locator)
	if err != nil {
		return core.NewError(core.ErrIO, "close", err).WithPath(h.locator)
	}
	return nil
}

// ChangePassphrase re-encrypts the vault under a new passphrase and a fresh
// salt, and writes it immediately.
func (m *Manager) ChangePassphrase(ctx context.Context, current, next []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, err := m.open("change passphrase")
	if err != nil {
		return err
	}
	if !h.key.Matches(current) {
		return core.NewError(core.ErrAuth, "change passphrase", nil).WithPath(h.locator)
	}
	if err := m.checkPassphrase("change passphrase", next); err != nil {
		return err
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	op := m.adapter.Begin(ctx, "change passphrase", m.provider)

	var key *codec.Key
	err = op.Run(ctx, "derive", func(context.Context) (err error) {
		key, err = codec.DeriveKey(next, m.opts.Codec.KDF)
		return err
	})
	if err != nil {
		return err
	}

	old := h.key
	h.key = key
	h.repo.MarkDirty()
	if err := m.persist(ctx, op, h); err != nil {
		h.key = old
		key.Wipe()
		return err
	}
	old.Wipe()
	m.logger.Info("passphrase changed", "locator", h.locator)
	m.emit(core.EventSaved, h.locator)
	return nil
}

// Validate checks the open vault as it would be persisted now.
func (m *Manager) Validate(ctx context.Context) (core.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, err := m.open("validate")
	if err != nil {
		return core.Report{}, err
	}
	files, err := h.repo.Materialize()
	if err != nil {
		return core.Report{}, err
	}
	report, err := m.validator().Validate(ctx, files)
	if err != nil {
		return core.Report{}, err
	}
	reportSkipped(&report, h.repo.Skipped())
	m.lastReport = report
	return report, nil
}

// Repair validates the open vault, applies every available repair, reloads
// the result and writes it immediately when anything changed.
func (m *Manager) Repair(ctx context.Context) (core.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, err := m.open("repair")
	if err != nil {
		return core.Report{}, err
	}
	files, err := h.repo.Materialize()
	if err != nil {
		return core.Report{}, err
	}

	opts := m.opts.Validation
	opts.AutoRepair = true
	v := validate.New(opts, validate.WithLogger(m.logger), validate.WithClock(m.now))
	repaired, report, err := v.ValidateAndRepair(ctx, files)
	if err != nil {
		return core.Report{}, err
	}
	if repaired.Equal(files) {
		reportSkipped(&report, h.repo.Skipped())
		m.lastReport = report
		return report, nil
	}
	if skipped := h.repo.Load(repaired); len(skipped) > 0 {
		m.logger.Warn("records skipped on reload", "locator", h.locator, "skipped", len(skipped))
		reportSkipped(&report, skipped)
	}
	m.lastReport = report
	h.repo.MarkDirty()
	if err := m.save(ctx, h); err != nil {
		return report, err
	}
	m.emit(core.EventRepaired, h.locator)
	return report, nil
}

// reportSkipped adds a skipped-record issue for every file Load left out.
// The files stay in the archive as they are; only repair moves them.
func reportSkipped(report *core.Report, skipped []error) {
	for _, err := range skipped {
		issue := core.Issue{
			Severity: core.SeverityWarning,
			Kind:     core.KindSchemaViolation,
			Code:     core.CodeSkippedRecord,
			Detail:   err.Error(),
		}
		var e *core.Error
		if errors.As(err, &e) {
			issue.Path = e.Path
			issue.RecordID = e.ID
		}
		report.Add(issue)
	}
}

func withPath(err error, locator string) error {
	var e *core.Error
	if errors.As(err, &e) && e.Path == "" {
		e.Path = locator
	}
	return err
}
