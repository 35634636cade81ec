package fs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/lockbox/pkg/core"
)

const watchDebounce = 50 * time.Millisecond

// Watch reports replacement of the archive at locator by another process.
// Writes made through this provider are not reported.
func (p *Provider) Watch(ctx context.Context, locator string, notify func(core.Event)) (func() error, error) {
	archive, err := p.resolve(locator)
	if err != nil {
		return nil, err
	}
	w := newWatchWorker(p, archive, locator, notify)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return func() error { return w.Stop(context.Background()) }, nil
}

type watchWorker struct {
	*worker.BaseWorker
	provider *Provider
	archive  string
	locator  string
	notify   func(core.Event)
	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
}

func newWatchWorker(p *Provider, archive, locator string, notify func(core.Event)) *watchWorker {
	return &watchWorker{
		BaseWorker: worker.NewBaseWorker("archive-watcher"),
		provider:   p,
		archive:    filepath.Clean(archive),
		locator:    locator,
		notify:     notify,
	}
}

func (w *watchWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// Atomic replacement swaps the directory entry, so watch the directory.
	if err := watcher.Add(filepath.Dir(w.archive)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.archive), err)
	}

	w.watcher = watcher
	w.provider.trackWatcher(1)

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *watchWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}

	return w.BaseWorker.Stop(ctx)
}

func (w *watchWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
			"archive":           w.archive,
		}
	})
}

func (w *watchWorker) run(ctx context.Context) (err error) {
	logger := w.provider.config.Logger
	defer func() {
		if recovered := recover(); recovered != nil {
			panicErr := fmt.Errorf("watcher panic: %v", recovered)
			if logger.Enabled(ctx, slog.LevelDebug) {
				logger.Error("watcher panic", "error", panicErr, "stack", string(debug.Stack()))
			} else {
				logger.Error("watcher panic", "error", panicErr)
			}
			err = panicErr
		}
	}()
	defer w.provider.trackWatcher(-1)
	defer w.watcher.Close()

	return w.mainEventLoop(ctx)
}

// mainEventLoop debounces bursts of events on the archive path into one
// notification.
func (w *watchWorker) mainEventLoop(ctx context.Context) error {
	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != w.archive || !event.Has(fsnotify.Create|fsnotify.Write) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			if w.provider.ownWrite(w.archive) {
				continue
			}
			w.provider.config.Logger.Debug("external archive change", "path", w.archive)
			w.notify(core.Event{
				Type:      core.EventExternalChange,
				Locator:   w.locator,
				Timestamp: time.Now().Unix(),
			})

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.provider.config.Logger.Error("fsnotify error", "error", wErr)
			if w.provider.config.ErrorHandler != nil {
				w.provider.config.ErrorHandler(wErr)
			}
		}
	}
}
