package services

import (
	"context"
	"errors"

	"timetracker/internal/core"
)

// Invalidator drops derived data after the underlying entries change.
type Invalidator interface {
	Invalidate()
}

// Resyncer reloads the running entry from the gateway.
type Resyncer interface {
	Resync(ctx context.Context) error
}

// Fanout delivers each event to every publisher and joins their errors.
type Fanout []core.EventPublisher

var _ core.EventPublisher = Fanout(nil)

// NewFanout skips nil publishers so optional outputs can be passed as-is.
func NewFanout(pubs ...core.EventPublisher) Fanout {
	out := make(Fanout, 0, len(pubs))
	for _, p := range pubs {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (f Fanout) PublishEntryEvent(ctx context.Context, ev core.EntryEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishEntryEvent(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
