// Package lifecycle bridges vault events into the lifecycle event model so a
// supervisor can react to archive changes alongside signals and timers.
package lifecycle

import (
	"context"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/lockbox/pkg/core"
)

type vaultSource struct {
	events <-chan core.Event
	kinds  map[core.EventType]bool
	out    chan lifecycle.Event
}

// NewSource creates a lifecycle.Source that re-emits vault events. When kinds
// is non-empty only those event types are forwarded.
func NewSource(events <-chan core.Event, kinds ...core.EventType) lifecycle.Source {
	s := &vaultSource{
		events: events,
		out:    make(chan lifecycle.Event),
	}
	if len(kinds) > 0 {
		s.kinds = make(map[core.EventType]bool, len(kinds))
		for _, k := range kinds {
			s.kinds[k] = true
		}
	}
	return s
}

func (s *vaultSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *vaultSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-s.events:
				if !ok {
					return nil
				}
				if s.kinds != nil && !s.kinds[e.Type] {
					continue
				}
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
