package core

import (
	"context"
	"time"
)

// EventKind names a time entry lifecycle transition.
type EventKind string

const (
	EntryStarted EventKind = "entry.started"
	EntryStopped EventKind = "entry.stopped"
	EntryUpdated EventKind = "entry.updated"
	EntryDeleted EventKind = "entry.deleted"
)

// EntryEvent carries only the id; consumers load the current record themselves.
type EntryEvent struct {
	Kind    EventKind
	EntryID string
	At      time.Time
}

// EventPublisher publishes entry lifecycle events to an outbound channel.
type EventPublisher interface {
	PublishEntryEvent(ctx context.Context, ev EntryEvent) error
}
