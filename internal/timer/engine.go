// Package timer owns the running time entry: starting, stopping and the
// elapsed-time feed shown while an entry is active.
package timer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"timetracker/internal/core"
	applog "timetracker/internal/log"
)

// Store is the subset of the gateway the engine writes through.
type Store interface {
	GetTask(ctx context.Context, id string) (core.Task, error)
	ActiveEntry(ctx context.Context) (*core.TimeEntry, error)
	InsertEntry(ctx context.Context, e core.TimeEntry) (core.TimeEntry, error)
	UpdateEntry(ctx context.Context, e core.TimeEntry) error
}

// Engine serializes start/stop and mirrors the gateway's active entry.
// The local copy only changes after the gateway has accepted a write.
type Engine struct {
	store  Store
	clock  core.Clock
	ids    core.IDGenerator
	pub    core.EventPublisher
	logger *applog.Logger

	mu      sync.Mutex
	active  *core.TimeEntry
	changed chan struct{}
}

type Option func(*Engine)

// WithPublisher emits an event after every successful start and stop.
func WithPublisher(p core.EventPublisher) Option {
	return func(e *Engine) { e.pub = p }
}

func WithLogger(l *applog.Logger) Option {
	return func(e *Engine) { e.logger = l.WithComponent(applog.ComponentTimer) }
}

func NewEngine(store Store, clock core.Clock, ids core.IDGenerator, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		clock:   clock,
		ids:     ids,
		logger:  applog.Discard(),
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resync replaces the local active entry with the gateway's view.
func (e *Engine) Resync(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resyncLocked(ctx)
}

func (e *Engine) resyncLocked(ctx context.Context) error {
	cur, err := e.store.ActiveEntry(ctx)
	if err != nil {
		return fmt.Errorf("load active entry: %w", err)
	}
	e.setActiveLocked(cur)
	return nil
}

// Active returns a copy of the running entry as last confirmed by the gateway.
func (e *Engine) Active() (core.TimeEntry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return core.TimeEntry{}, false
	}
	return *e.active, true
}

// Elapsed is now minus the active entry's start, or zero when idle.
func (e *Engine) Elapsed() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return 0
	}
	d := e.clock.Now().Sub(e.active.Start)
	if d < 0 {
		return 0
	}
	return d
}

// Start stops whatever entry the gateway reports as running and opens a new
// entry on taskID at the same instant.
func (e *Engine) Start(ctx context.Context, taskID, notes string) (core.TimeEntry, error) {
	if strings.TrimSpace(taskID) == "" {
		return core.TimeEntry{}, core.ErrEmptyID
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.store.GetTask(ctx, taskID); err != nil {
		return core.TimeEntry{}, err
	}

	now := e.clock.Now()
	prev, err := e.store.ActiveEntry(ctx)
	if err != nil {
		return core.TimeEntry{}, fmt.Errorf("load active entry: %w", err)
	}
	if prev != nil {
		if _, err := e.closeLocked(ctx, *prev, now); err != nil {
			return core.TimeEntry{}, err
		}
	}

	next := core.TimeEntry{
		ID:        e.ids.New(),
		TaskID:    taskID,
		Start:     now,
		Notes:     core.StringPtr(notes),
		CreatedAt: now,
	}
	saved, err := e.store.InsertEntry(ctx, next)
	if err != nil {
		if errors.Is(err, core.ErrActiveEntryExists) {
			// Another writer won the race; adopt its entry.
			if rerr := e.resyncLocked(ctx); rerr != nil {
				e.logger.WarnContext(ctx, "Resync after conflict failed", applog.FieldError, rerr)
			}
		}
		return core.TimeEntry{}, fmt.Errorf("start entry: %w", err)
	}
	e.setActiveLocked(&saved)
	e.logger.InfoContext(ctx, "Timer started",
		applog.FieldEntryID, saved.ID,
		applog.FieldTaskID, taskID)
	e.publish(ctx, core.EntryStarted, saved.ID, now)
	return saved, nil
}

// Stop closes the running entry. It returns false when nothing was running.
func (e *Engine) Stop(ctx context.Context) (core.TimeEntry, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur, err := e.store.ActiveEntry(ctx)
	if err != nil {
		return core.TimeEntry{}, false, fmt.Errorf("load active entry: %w", err)
	}
	if cur == nil {
		e.setActiveLocked(nil)
		return core.TimeEntry{}, false, nil
	}
	stopped, err := e.closeLocked(ctx, *cur, e.clock.Now())
	if err != nil {
		return core.TimeEntry{}, false, err
	}
	return stopped, true, nil
}

func (e *Engine) closeLocked(ctx context.Context, entry core.TimeEntry, at time.Time) (core.TimeEntry, error) {
	entry.End = core.TimePtr(at)
	if err := e.store.UpdateEntry(ctx, entry); err != nil {
		return core.TimeEntry{}, fmt.Errorf("stop entry %s: %w", entry.ID, err)
	}
	e.setActiveLocked(nil)
	e.logger.InfoContext(ctx, "Timer stopped",
		applog.FieldEntryID, entry.ID,
		applog.FieldDuration, entry.Duration().Milliseconds())
	e.publish(ctx, core.EntryStopped, entry.ID, at)
	return entry, nil
}

func (e *Engine) setActiveLocked(cur *core.TimeEntry) {
	if sameEntry(e.active, cur) {
		e.active = cur
		return
	}
	e.active = cur
	close(e.changed)
	e.changed = make(chan struct{})
}

func sameEntry(a, b *core.TimeEntry) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && a.Start.Equal(b.Start) && (a.End == nil) == (b.End == nil)
}

func (e *Engine) publish(ctx context.Context, kind core.EventKind, id string, at time.Time) {
	if e.pub == nil {
		return
	}
	if err := e.pub.PublishEntryEvent(ctx, core.EntryEvent{Kind: kind, EntryID: id, At: at}); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish entry event",
			applog.FieldEvent, string(kind),
			applog.FieldEntryID, id,
			applog.FieldError, err)
	}
}

// Tick is one elapsed-time sample delivered by Watch.
type Tick struct {
	Entry   core.TimeEntry
	Elapsed time.Duration
}

// Watch calls fn every interval while an entry is active. The ticker is torn
// down whenever the active entry changes and fn receives ok=false once when
// the engine becomes idle. Watch returns when ctx is done.
func (e *Engine) Watch(ctx context.Context, interval time.Duration, fn func(t Tick, ok bool)) {
	for {
		e.mu.Lock()
		active := e.active
		changed := e.changed
		e.mu.Unlock()

		if active == nil {
			fn(Tick{}, false)
			select {
			case <-ctx.Done():
				return
			case <-changed:
				continue
			}
		}

		entry := *active
		emit := func() {
			fn(Tick{Entry: entry, Elapsed: e.clock.Now().Sub(entry.Start)}, true)
		}
		emit()
		ticker := time.NewTicker(interval)
	loop:
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-changed:
				break loop
			case <-ticker.C:
				emit()
			}
		}
		ticker.Stop()
	}
}
