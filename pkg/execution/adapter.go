// Package execution decides, once per operation, whether the core runs its
// blocking phases on goroutines it owns or hands them back to a scheduler
// the caller already runs.
//
// A caller that drives its own event loop attaches it to the context with
// WithScheduler. Every phase of an operation begun under that context is
// then submitted to the scheduler instead of being executed by the core, so
// the core never starts a second execution context inside the caller's.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/lockbox/pkg/core"
)

// Strategy is the execution mode of one operation.
type Strategy int

const (
	// OwnExecution runs phases on goroutines tracked by the core.
	OwnExecution Strategy = iota
	// DelegateExecution hands phases to the caller's scheduler, or runs them
	// inline on the caller's goroutine when no scheduler is attached.
	DelegateExecution
)

func (s Strategy) String() string {
	switch s {
	case OwnExecution:
		return "own"
	case DelegateExecution:
		return "delegate"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Scheduler runs a unit of work on the caller's own execution context and
// returns its result once it has run.
type Scheduler interface {
	Schedule(ctx context.Context, phase string, fn func(context.Context) error) error
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(ctx context.Context, phase string, fn func(context.Context) error) error

// Schedule implements Scheduler.
func (f SchedulerFunc) Schedule(ctx context.Context, phase string, fn func(context.Context) error) error {
	return f(ctx, phase, fn)
}

type schedulerKey struct{}

// WithScheduler marks ctx as running inside the caller's scheduler s.
func WithScheduler(ctx context.Context, s Scheduler) context.Context {
	return context.WithValue(ctx, schedulerKey{}, s)
}

// SchedulerFrom returns the scheduler attached to ctx, if any.
func SchedulerFrom(ctx context.Context) (Scheduler, bool) {
	s, ok := ctx.Value(schedulerKey{}).(Scheduler)
	return s, ok && s != nil
}

// ErrPhasePanic wraps a panic recovered from a phase.
var ErrPhasePanic = errors.New("phase panicked")

// Adapter selects strategies and begins operations.
type Adapter struct {
	logger *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAdapter returns an Adapter.
func NewAdapter(opts ...Option) *Adapter {
	a := &Adapter{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Select reports the strategy for an operation started under ctx against p.
func (a *Adapter) Select(ctx context.Context, p core.FileProvider) Strategy {
	if _, ok := SchedulerFrom(ctx); ok {
		return DelegateExecution
	}
	if core.IsDelegated(p) {
		return DelegateExecution
	}
	return OwnExecution
}

// Begin starts an operation. The strategy is fixed for its whole lifetime.
func (a *Adapter) Begin(ctx context.Context, name string, p core.FileProvider) *Operation {
	op := &Operation{
		Name:     name,
		Strategy: a.Select(ctx, p),
		logger:   a.logger,
	}
	op.scheduler, _ = SchedulerFrom(ctx)
	a.logger.Debug("operation started", "op", name, "strategy", op.Strategy.String())
	return op
}

// Operation is one public manager call split into phases.
type Operation struct {
	Name     string
	Strategy Strategy

	scheduler Scheduler
	logger    *slog.Logger

	mu     sync.Mutex
	phases []string
}

// Phases returns the names of the phases run so far, in order.
func (op *Operation) Phases() []string {
	op.mu.Lock()
	defer op.mu.Unlock()
	return append([]string(nil), op.phases...)
}

// Run executes one phase according to the operation's strategy and waits
// for it to finish. Cancellation is signalled through ctx; fn must honor it.
func (op *Operation) Run(ctx context.Context, phase string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	op.mu.Lock()
	op.phases = append(op.phases, phase)
	op.mu.Unlock()
	op.logger.Debug("phase", "op", op.Name, "phase", phase, "strategy", op.Strategy.String())

	if op.Strategy == DelegateExecution {
		if op.scheduler != nil {
			return op.scheduler.Schedule(ctx, phase, fn)
		}
		return guard(ctx, phase, fn)
	}

	// claimed decides exactly once whether the phase runs or the wait is
	// abandoned because ctx ended before the goroutine was scheduled.
	var claimed atomic.Bool
	done := make(chan error, 1)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		if !claimed.CompareAndSwap(false, true) {
			return nil
		}
		err := guard(ctx, phase, fn)
		done <- err
		return err
	}, lifecycle.WithErrorHandler(func(err error) {
		op.logger.Debug("phase failed", "op", op.Name, "phase", phase, "error", err)
	}))

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if claimed.CompareAndSwap(false, true) {
			return ctx.Err()
		}
		return <-done
	}
}

// guard runs fn, converting a panic into an error.
func guard(ctx context.Context, phase string, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v\n%s", ErrPhasePanic, phase, r, debug.Stack())
		}
	}()
	return fn(ctx)
}
